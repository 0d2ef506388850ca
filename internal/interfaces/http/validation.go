package http

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/osiris-api/internal/application/dto"
)

// validationErrors errores de validación de un request, por campo.
type validationErrors struct {
	details []dto.ValidationDetail
}

func (e *validationErrors) Error() string {
	parts := make([]string, 0, len(e.details))
	for _, d := range e.details {
		parts = append(parts, d.Field+": "+d.Message)
	}
	return "datos inválidos: " + strings.Join(parts, "; ")
}

// newValidator usa el nombre JSON de cada campo en los mensajes.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind parsea el body JSON y valida las etiquetas validate.
func bind(c *fiber.Ctx, v *validator.Validate, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return &validationErrors{details: []dto.ValidationDetail{{Field: "body", Message: "JSON inválido"}}}
	}
	if err := v.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return err
		}
		out := &validationErrors{}
		for _, fe := range ve {
			out.details = append(out.details, dto.ValidationDetail{Field: fieldPath(fe), Message: validationMessage(fe)})
		}
		return out
	}
	return nil
}

// fieldPath ruta del campo sin el nombre del struct raíz (lines[0].product_id).
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "campo obligatorio"
	case "required_if":
		return "campo obligatorio para este tipo"
	case "email":
		return "correo inválido"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "debe tener al menos " + fe.Param() + " elemento(s)"
		}
		return "mínimo " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "máximo " + fe.Param() + " caracteres"
		}
		return "máximo " + fe.Param()
	case "oneof":
		return "debe ser uno de: " + fe.Param()
	default:
		return "valor inválido"
	}
}
