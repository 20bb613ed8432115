package commands

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_IssuesValidHS256JWT(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")
	defer os.Unsetenv("JWT_SECRET")

	tokenSubject = "acme.com"
	tokenTTL = time.Hour
	var out bytes.Buffer
	tokenCmd.SetOut(&out)
	tokenCmd.SetArgs(nil)

	require.NoError(t, runToken(tokenCmd, nil))

	raw := strings.TrimSpace(out.String())
	require.NotEmpty(t, raw)

	parsed, err := jwt.ParseWithClaims(raw, &RescanClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(*RescanClaims)
	assert.Equal(t, "acme.com", claims.Subject)
	assert.Equal(t, "rescan", claims.Scope)
}

func TestToken_WithoutSecretErrors(t *testing.T) {
	os.Unsetenv("JWT_SECRET")
	tokenSubject = "acme.com"

	err := runToken(tokenCmd, nil)
	assert.Error(t, err)
}
