package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/osiris-api/internal/application/electronic"
	"github.com/jhoicas/osiris-api/pkg/config"
)

func testMail() electronic.Mail {
	return electronic.Mail{
		To:      "juan@example.com",
		Subject: "Factura electronica 123",
		Body:    "Adjuntamos su factura.",
		Attachments: []electronic.Attachment{
			{Name: "123.xml", ContentType: "application/xml", Data: []byte("<factura/>")},
			{Name: "123.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.3")},
		},
	}
}

func TestBuildMessage(t *testing.T) {
	var buf bytes.Buffer
	_, err := buildMessage("facturacion@andina.ec", testMail()).WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "From: facturacion@andina.ec")
	assert.Contains(t, raw, "To: juan@example.com")
	assert.Contains(t, raw, "Subject: Factura electronica 123")
	assert.Contains(t, raw, `filename="123.xml"`)
	assert.Contains(t, raw, `filename="123.pdf"`)
	assert.Contains(t, raw, "Content-Type: application/pdf")
}

func TestSMTPMailer_ContextoCancelado(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{Host: "127.0.0.1", Port: 1, From: "a@b.ec"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, testMail()), context.Canceled)
}

func TestSMTPMailer_ServidorInaccesible(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{Host: "127.0.0.1", Port: 1, From: "a@b.ec"})
	err := m.Send(context.Background(), testMail())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "juan@example.com")
}

func TestLogMailer(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer(zerolog.New(&buf))
	require.NoError(t, m.Send(context.Background(), testMail()))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "juan@example.com", entry["para"])
	assert.Equal(t, "mailer", entry["component"])
	assert.Equal(t, []any{"123.xml", "123.pdf"}, entry["adjuntos"])
}
