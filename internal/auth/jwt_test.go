package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	ti, err := NewTokenIssuer(GenerateSecureSecret(), time.Hour)
	require.NoError(t, err)
	return ti
}

// TestGenerateAndValidateJWT тестирует создание и валидацию JWT токена
func TestGenerateAndValidateJWT(t *testing.T) {
	ti := newTestIssuer(t)

	token, err := ti.GenerateJWT("ops", true)
	require.NoError(t, err, "Ошибка генерации JWT")
	assert.Equal(t, 2, strings.Count(token, "."), "Неверный формат JWT токена")

	claims, ok := ti.ValidateJWT(token)
	require.True(t, ok, "Валидный токен определен как недействительный")
	assert.Equal(t, "ops", claims.Operator)
	assert.True(t, claims.IsAdmin)
}

// TestValidateJWTRejects тестирует отказ для чужих и испорченных токенов
func TestValidateJWTRejects(t *testing.T) {
	ti := newTestIssuer(t)
	other := newTestIssuer(t)

	token, err := other.GenerateJWT("ops", true)
	require.NoError(t, err)

	_, ok := ti.ValidateJWT(token)
	assert.False(t, ok, "токен с чужим секретом")
	_, ok = ti.ValidateJWT("invalid.token.here")
	assert.False(t, ok, "испорченный токен")
	_, ok = ti.ValidateJWT("")
	assert.False(t, ok, "пустой токен")
}

func TestExpiredJWT(t *testing.T) {
	secret := GenerateSecureSecret()
	ti, err := NewTokenIssuer(secret, time.Nanosecond)
	require.NoError(t, err)

	token, err := ti.GenerateJWT("ops", false)
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)

	_, ok := ti.ValidateJWT(token)
	assert.False(t, ok, "просроченный токен")
}

func TestNewTokenIssuerRejectsWeakSecret(t *testing.T) {
	_, err := NewTokenIssuer(base64.StdEncoding.EncodeToString([]byte("short")), 0)
	assert.ErrorIs(t, err, ErrWeakSecret)

	_, err = NewTokenIssuer("not base64!", 0)
	assert.Error(t, err)
}
