package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// SessionClaims identify a persisted session: the subject is the user id and
// the token id (jti) keys the session row.
type SessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func (c *SessionClaims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

type JWTManager struct {
	issuer   string
	audience string
	secret   []byte
}

func NewJWTManager(issuer, audience, secret string) *JWTManager {
	return &JWTManager{issuer: issuer, audience: audience, secret: []byte(secret)}
}

type SessionTokenInput struct {
	UserID   uint
	Email    string
	Role     string
	TokenID  string
	IssuedAt time.Time
	TTL      time.Duration
}

func (m *JWTManager) SignSession(in SessionTokenInput) (string, error) {
	if in.TokenID == "" || in.UserID == 0 || in.TTL <= 0 {
		return "", fmt.Errorf("sign session: incomplete claims")
	}
	claims := SessionClaims{
		Email: in.Email,
		Role:  in.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   strconv.FormatUint(uint64(in.UserID), 10),
			Audience:  jwt.ClaimStrings{m.audience},
			ExpiresAt: jwt.NewNumericDate(in.IssuedAt.Add(in.TTL)),
			IssuedAt:  jwt.NewNumericDate(in.IssuedAt),
			NotBefore: jwt.NewNumericDate(in.IssuedAt),
			ID:        in.TokenID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// ParseSession verifies signature, algorithm, issuer, audience and expiry.
func (m *JWTManager) ParseSession(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
