package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"vcf-drop/internal/domain"
	"vcf-drop/pkg/errors"
	"vcf-drop/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSettings struct {
	settings domain.Settings
	err      error
}

func (s stubSettings) GetSettings(context.Context) (domain.Settings, error) {
	return s.settings, s.err
}

func newAuth(t *testing.T, credential string) *adminAuthService {
	t.Helper()
	svc := NewAdminAuthService(stubSettings{settings: domain.Settings{AdminCredential: credential}}, []byte("test-secret"), time.Hour, logger.NewNop())
	return svc.(*adminAuthService)
}

func TestCheckCredential(t *testing.T) {
	hash, err := HashCredential("1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		stored string
		input  string
		want   bool
	}{
		{"bcrypt match", hash, "1", true},
		{"bcrypt mismatch", hash, "2", false},
		{"plaintext match", "letmein", "letmein", true},
		{"plaintext mismatch", "letmein", "letmeout", false},
		{"empty input", hash, "", false},
		{"empty stored", "", "1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckCredential(tt.stored, tt.input))
		})
	}
}

func TestAdminAuth_LoginAndValidate(t *testing.T) {
	hash, err := HashCredential("1")
	require.NoError(t, err)
	svc := newAuth(t, hash)

	token, err := svc.Login(context.Background(), "1")
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, time.Minute)

	claims, err := svc.ValidateToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, adminRole, claims.Role)
	assert.Equal(t, tokenIssuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestAdminAuth_LoginRejected(t *testing.T) {
	svc := newAuth(t, "secret")

	_, err := svc.Login(context.Background(), "wrong")
	require.Error(t, err)
	ae := appErr(t, err)
	assert.Equal(t, errors.ErrorTypeAuthentication, ae.Type)
	assert.Equal(t, MessageLogin, ae.Message)
}

func TestAdminAuth_LoginStoreFailure(t *testing.T) {
	svc := NewAdminAuthService(stubSettings{err: stderrors.New("down")}, []byte("s"), 0, logger.NewNop())

	_, err := svc.Login(context.Background(), "1")
	assert.Equal(t, errors.ErrorTypePersistence, appErr(t, err).Type)
}

func TestAdminAuth_ValidateTokenRejects(t *testing.T) {
	svc := newAuth(t, "secret")
	token, err := svc.Login(context.Background(), "secret")
	require.NoError(t, err)

	other := newAuth(t, "secret")
	other.secret = []byte("another-secret")

	expired := newAuth(t, "secret")
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	wrongRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{
		Role: "visitor",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, AdminClaims{Role: adminRole}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		svc   *adminAuthService
		token string
	}{
		{"garbage", svc, "not-a-token"},
		{"wrong secret", other, token.Token},
		{"expired", expired, token.Token},
		{"wrong role", svc, wrongRole},
		{"unsigned", svc, noneAlg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.ValidateToken(tt.token)
			require.Error(t, err)
			assert.Equal(t, errors.ErrorTypeAuthentication, appErr(t, err).Type)
		})
	}
}
