package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret-key-for-unit-tests"
	testIssuer = "osiris-api-test"
)

var testActor = Actor{UserID: "00000000-0000-0000-0000-000000000001", CompanyID: "00000000-0000-0000-0000-000000000002", Role: "contador"}

func TestGenerateAndParse(t *testing.T) {
	tok, err := Generate(testSecret, testActor, testIssuer, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	actor, err := Parse(testSecret, testIssuer, tok)
	require.NoError(t, err)
	assert.Equal(t, testActor, *actor)

	actor, err = Parse(testSecret, "", tok)
	require.NoError(t, err, "sin issuer configurado no se valida el emisor")
	assert.Equal(t, testActor.UserID, actor.UserID)
}

func TestParse_Errores(t *testing.T) {
	valid, err := Generate(testSecret, testActor, testIssuer, time.Hour)
	require.NoError(t, err)
	expired, err := Generate(testSecret, testActor, testIssuer, -time.Minute)
	require.NoError(t, err)
	noUser, err := Generate(testSecret, Actor{CompanyID: "c"}, testIssuer, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		issuer string
		token  string
	}{
		{"expirado", testSecret, testIssuer, expired},
		{"secret incorrecto", "otro-secret-completamente-distinto", testIssuer, valid},
		{"emisor distinto", testSecret, "otro-emisor", valid},
		{"sin user_id", testSecret, testIssuer, noUser},
		{"malformado", testSecret, testIssuer, "token.invalido.aqui"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.secret, tt.issuer, tt.token)
			assert.Error(t, err)
		})
	}
}

func TestSecretVacio(t *testing.T) {
	_, err := Generate("", testActor, testIssuer, time.Hour)
	assert.ErrorIs(t, err, ErrEmptySecret)
	_, err = Parse("", testIssuer, "x")
	assert.ErrorIs(t, err, ErrEmptySecret)
}
