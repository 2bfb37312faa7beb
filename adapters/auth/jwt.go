// Package auth issues and reads the bearer tokens transports use to name
// the current user of an operation.
// Tokens are stateless JWTs; any instance holding the secret can read them.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/artpar/subroutine/ports"
)

// ErrInvalidToken is returned for tokens that fail validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims of a current-user token.
type Claims struct {
	UserID   int64  `json:"uid"`
	UserType string `json:"utype,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs and validates current-user tokens.
// Safe for concurrent use.
type TokenService struct {
	secret     []byte
	issuer     string
	expiration time.Duration
	clock      ports.Clock
}

// Option configures a TokenService.
type Option func(*TokenService)

// WithClock sets the clock used for issue and expiry times.
func WithClock(c ports.Clock) Option {
	return func(s *TokenService) { s.clock = c }
}

// WithIssuer sets the issuer claim.
func WithIssuer(issuer string) Option {
	return func(s *TokenService) { s.issuer = issuer }
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// NewTokenService creates a token service.
// If secret is empty, a random 32-byte secret is generated.
func NewTokenService(secret string, expiration time.Duration, opts ...Option) *TokenService {
	var secretBytes []byte
	if secret == "" {
		secretBytes = make([]byte, 32)
		rand.Read(secretBytes)
	} else {
		secretBytes = []byte(secret)
	}

	if expiration == 0 {
		expiration = 24 * time.Hour
	}

	s := &TokenService{
		secret:     secretBytes,
		issuer:     "subroutine",
		expiration: expiration,
		clock:      wallClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateToken creates a token naming userID as the current user.
func (s *TokenService) GenerateToken(userID int64, userType string) (string, time.Time, error) {
	now := s.clock.Now().UTC()
	expiresAt := now.Add(s.expiration)

	claims := Claims{
		UserID:   userID,
		UserType: userType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign token")
	}

	return signed, expiresAt, nil
}

// ValidateToken validates a token and returns its claims.
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now), jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject != strconv.FormatInt(claims.UserID, 10) {
		return nil, errors.Wrap(ErrInvalidToken, "subject does not match user")
	}

	return claims, nil
}

// CurrentUser returns the user ID named by a token.
func (s *TokenService) CurrentUser(tokenString string) (int64, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

// RefreshToken issues a new token for the user of a valid one.
func (s *TokenService) RefreshToken(tokenString string) (string, time.Time, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", time.Time{}, err
	}

	return s.GenerateToken(claims.UserID, claims.UserType)
}

// GenerateSecret generates a random secret suitable for token signing.
func GenerateSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
