package electronic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/pkg/sri"
)

type fakeRIDE struct{ err error }

func (f fakeRIDE) Generate(context.Context, *entity.ElectronicDocument, []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.3"), nil
}

type fakeMailer struct {
	sent []Mail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, m Mail) error {
	f.sent = append(f.sent, m)
	return f.err
}

type fakeArchive struct {
	objects map[string]string
	err     error
}

func (f *fakeArchive) Put(_ context.Context, key, _ string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	if f.objects == nil {
		f.objects = map[string]string{}
	}
	f.objects[key] = string(data)
	return nil
}

func authorizedDoc(t *testing.T, email string) (*entity.ElectronicDocument, []byte) {
	t.Helper()
	at := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	doc := &entity.ElectronicDocument{
		ID: "doc-1", Type: entity.DocumentTypeFactura, AccessKey: "1003202501179001234500110010020000001231234567817",
		Status: entity.DocStatusAutorizado, AuthorizedXML: "<factura/>", AuthorizationNumber: "1003202501179001234500110010020000001231234567817",
		AuthorizedAt: &at,
	}
	payload, err := sri.Encode(&sri.FacturaPayload{
		Comprador:    sri.Sujeto{RazonSocial: "Juan Pérez", Email: email},
		ImporteTotal: decimal.NewFromInt(115),
	})
	require.NoError(t, err)
	return doc, payload
}

func TestDeliveryHandler_EntregaCompleta(t *testing.T) {
	mailer := &fakeMailer{}
	archive := &fakeArchive{}
	h := NewDeliveryHandler(fakeRIDE{}, mailer, archive, zerolog.Nop())
	doc, payload := authorizedDoc(t, "juan@example.com")

	require.NoError(t, h.OnAuthorized(context.Background(), doc, payload))

	base := "comprobantes/FACTURA/2025/03/" + doc.AccessKey
	assert.Equal(t, "<factura/>", archive.objects[base+".xml"])
	assert.Equal(t, "%PDF-1.3", archive.objects[base+".pdf"])

	require.Len(t, mailer.sent, 1)
	m := mailer.sent[0]
	assert.Equal(t, "juan@example.com", m.To)
	assert.Equal(t, "Factura electrónica "+doc.AccessKey, m.Subject)
	assert.Contains(t, m.Body, "Juan Pérez")
	require.Len(t, m.Attachments, 2)
	assert.Equal(t, doc.AccessKey+".xml", m.Attachments[0].Name)
	assert.Equal(t, "application/pdf", m.Attachments[1].ContentType)
}

func TestDeliveryHandler_SinCorreoNoEnvia(t *testing.T) {
	mailer := &fakeMailer{}
	h := NewDeliveryHandler(nil, mailer, nil, zerolog.Nop())
	doc, payload := authorizedDoc(t, "")

	require.NoError(t, h.OnAuthorized(context.Background(), doc, payload))
	assert.Empty(t, mailer.sent)
}

func TestDeliveryHandler_ErroresNoDetienenPasos(t *testing.T) {
	mailer := &fakeMailer{}
	archive := &fakeArchive{err: errors.New("bucket inaccesible")}
	h := NewDeliveryHandler(fakeRIDE{err: errors.New("fuente faltante")}, mailer, archive, zerolog.Nop())
	doc, payload := authorizedDoc(t, "juan@example.com")

	err := h.OnAuthorized(context.Background(), doc, payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fuente faltante")
	assert.Contains(t, err.Error(), "bucket inaccesible")

	require.Len(t, mailer.sent, 1, "el correo se envía aunque falle el archivo")
	assert.Len(t, mailer.sent[0].Attachments, 1, "sin RIDE solo va el XML")
}

func TestArchiveKey_SinFechaDeAutorizacion(t *testing.T) {
	doc := &entity.ElectronicDocument{Type: entity.DocumentTypeRetencion, AccessKey: "123"}
	doc.CreatedAt = time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "comprobantes/RETENCION/2024/12/123", ArchiveKey(doc))
}
