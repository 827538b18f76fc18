package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType is carried in the claims so a refresh credential can never be
// replayed as an access token
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

const (
	issuer            = "chatwave"
	minSigningKeyLen  = 32
	refreshTokenBytes = 32
)

// Authentication failures. Callers map these to a single refusal; the
// distinction is kept for logs and metrics.
var (
	ErrUnauthenticated = errors.New("auth: no credential presented")
	ErrInvalidToken    = errors.New("auth: invalid token")
	ErrExpired         = errors.New("auth: token expired")
)

// Claims is the access token payload
type Claims struct {
	jwt.RegisteredClaims
	UserID   uuid.UUID `json:"uid"`
	Username string    `json:"username"`
	Type     TokenType `json:"type"`
}

// Principal is the identity bound to a connection or request
type Principal struct {
	UserID    uuid.UUID
	Username  string
	ExpiresAt time.Time
}

// TokenService signs HS256 access tokens and mints opaque refresh tokens
type TokenService struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService checks the key length and fills zero TTLs with defaults
func NewTokenService(signingKey string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if len(signingKey) < minSigningKeyLen {
		return nil, fmt.Errorf("signing key must be at least %d characters", minSigningKeyLen)
	}
	s := &TokenService{
		key:        []byte(signingKey),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	if s.accessTTL <= 0 {
		s.accessTTL = 24 * time.Hour
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = 7 * 24 * time.Hour
	}
	return s, nil
}

// GenerateAccessToken signs an access token for the user and returns it
// with its expiry
func (s *TokenService) GenerateAccessToken(userID uuid.UUID, username string) (string, time.Time, error) {
	issued := s.now()
	expires := issued.Add(s.accessTTL)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		UserID:   userID,
		Username: username,
		Type:     TokenTypeAccess,
	}).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// GenerateRefreshToken returns a random opaque token. Only its digest is
// stored, so revoking it is a database update.
func (s *TokenService) GenerateRefreshToken() (string, time.Time, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("read random: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), s.now().Add(s.refreshTTL), nil
}

func (s *TokenService) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return s.key, nil
}

// ValidateAccessToken verifies signature, issuer, expiry and token type.
// Errors wrap ErrExpired or ErrInvalidToken.
func (s *TokenService) ValidateAccessToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, s.keyFunc,
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrExpired, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	case claims.Type != TokenTypeAccess:
		return nil, fmt.Errorf("%w: not an access token", ErrInvalidToken)
	case claims.UserID == uuid.Nil:
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	return claims, nil
}

// Authenticate turns a presented token into a Principal
func (s *TokenService) Authenticate(raw string) (*Principal, error) {
	if raw == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := s.ValidateAccessToken(raw)
	if err != nil {
		return nil, err
	}
	return &Principal{
		UserID:    claims.UserID,
		Username:  claims.Username,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// FailureReason returns the short label sent in 401 bodies
func FailureReason(err error) string {
	if errors.Is(err, ErrUnauthenticated) {
		return "missing"
	}
	if errors.Is(err, ErrExpired) {
		return "expired"
	}
	return "invalid"
}

func (s *TokenService) AccessTokenTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTokenTTL() time.Duration { return s.refreshTTL }
