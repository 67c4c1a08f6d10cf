package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrTokenInvalid is wrapped by every token parsing failure.
var ErrTokenInvalid = errors.New("invalid token")

// Claims are the JWT claims issued at sign-in. The registered ID doubles as the session id.
type Claims struct {
	Email      string `json:"email"`
	FacilityID string `json:"fid,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
}

// NewTokenIssuer returns an issuer signing with secret.
func NewTokenIssuer(secret, issuer string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), issuer: issuer}
}

// Issue signs a token for user valid from now until now+ttl.
func (t *TokenIssuer) Issue(user User, now time.Time, ttl time.Duration) (string, Claims, error) {
	claims := Claims{
		Email:      user.Email,
		FacilityID: user.FacilityID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies signature, issuer and expiry as of now.
func (t *TokenIssuer) Parse(tokenString string, now time.Time) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing subject or session", ErrTokenInvalid)
	}
	return claims, nil
}
