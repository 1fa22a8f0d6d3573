package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"vcf-drop/internal/domain"
	"vcf-drop/pkg/errors"
	"vcf-drop/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminRole    = "admin"
	tokenIssuer  = "vcf-drop"
	MessageLogin = "INVALID CREDENTIAL"
)

// AdminToken is returned by a successful login
type AdminToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AdminClaims are carried by admin session tokens
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type settingsReader interface {
	GetSettings(ctx context.Context) (domain.Settings, error)
}

type adminAuthService struct {
	settings settingsReader
	secret   []byte
	ttl      time.Duration
	logger   *logger.Logger
	now      func() time.Time
}

// NewAdminAuthService creates the admin auth service. The credential is read
// from the stored settings on every login so an admin change on one replica
// applies everywhere.
func NewAdminAuthService(settings settingsReader, secret []byte, ttl time.Duration, logger *logger.Logger) AdminAuthService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &adminAuthService{
		settings: settings,
		secret:   secret,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// HashCredential returns the bcrypt hash stored as the admin credential
func HashCredential(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash credential: %w", err)
	}
	return string(hash), nil
}

// CheckCredential compares input against a stored credential. Stored values
// that are not bcrypt hashes are compared in constant time as plaintext.
func CheckCredential(stored, input string) bool {
	if stored == "" || input == "" {
		return false
	}
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(input)) == 1
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

func (s *adminAuthService) Login(ctx context.Context, credential string) (*AdminToken, error) {
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read settings for admin login")
		return nil, errors.NewPersistenceError(err)
	}

	if !CheckCredential(settings.AdminCredential, credential) {
		s.logger.Warn("Admin login rejected")
		return nil, errors.NewAuthenticationError(MessageLogin)
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := AdminClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   adminRole,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign admin token")
		return nil, errors.NewInternalError("Failed to issue token", err)
	}

	s.logger.WithField("token_id", claims.ID).Info("Admin logged in")
	return &AdminToken{Token: signed, ExpiresAt: expiresAt}, nil
}

func (s *adminAuthService) ValidateToken(tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, errors.NewAuthenticationError("Invalid or expired token")
	}
	if claims.Role != adminRole {
		return nil, errors.NewAuthenticationError("Invalid token role")
	}
	return claims, nil
}
