package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/core/role"
	"github.com/golang-jwt/jwt/v5"
)

// Claims represents JWT token claims
type Claims struct {
	UserID    int64     `json:"uid"`
	Username  string    `json:"username"`
	Role      role.Role `json:"role"`
	SessionID string    `json:"sid"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and parses the auth token carried in the auth cookie.
type TokenIssuer interface {
	Issue(c Claims) (token string, expiresAt time.Time, err error)
	Parse(token string) (*Claims, error)
}

type JWTTokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTTokenIssuer(secret string, ttl time.Duration) *JWTTokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTTokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (j *JWTTokenIssuer) WithClock(now func() time.Time) *JWTTokenIssuer {
	j.now = now
	return j
}

func (j *JWTTokenIssuer) TTL() time.Duration { return j.ttl }

func (j *JWTTokenIssuer) Issue(c Claims) (string, time.Time, error) {
	now := j.now()
	expiresAt := now.Add(j.ttl)

	c.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(c.UserID, 10),
		ID:        c.SessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &c)
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse validates signature and expiry. Failures map to ErrTokenExpired or
// ErrInvalidToken.
func (j *JWTTokenIssuer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithTimeFunc(j.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 || claims.SessionID == "" {
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}
