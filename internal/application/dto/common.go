package dto

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Details []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail error de validación de un campo del request.
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// PartyRequest cliente o proveedor tal como figura en el comprobante.
type PartyRequest struct {
	IdentificationType string `json:"identification_type" validate:"required,oneof=04 05 06 07 08"`
	Identification     string `json:"identification" validate:"required,max=20"`
	Name               string `json:"name" validate:"required,max=300"`
	Email              string `json:"email,omitempty" validate:"omitempty,email"`
	Address            string `json:"address,omitempty" validate:"max=300"`
}

// PartyDTO datos congelados del cliente o proveedor.
type PartyDTO struct {
	IdentificationType string `json:"identification_type"`
	Identification     string `json:"identification"`
	Name               string `json:"name"`
	Email              string `json:"email,omitempty"`
	Address            string `json:"address,omitempty"`
}
