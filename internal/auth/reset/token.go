// Package reset issues and verifies password-reset tokens.
//
// Tokens are HS256 JWTs bound to a user id and email. They carry a
// purpose claim so a token minted for another flow cannot be replayed here,
// and each token id can be redeemed once.
package reset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer  = "portfolio-service"
	purpose = "password_reset"
)

var (
	ErrInvalidToken = errors.New("reset: invalid or expired token")
	ErrTokenUsed    = errors.New("reset: token already used")
)

type Claims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	ledger Ledger
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration, ledger Ledger) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("reset: secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("reset: ttl must be positive")
	}
	if ledger == nil {
		return nil, errors.New("reset: ledger is required")
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, ledger: ledger, now: time.Now}, nil
}

// Issue mints a token for userID valid for the issuer's TTL.
func (i *Issuer) Issue(userID, email string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)

	claims := Claims{
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("reset: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies token and returns its claims.
func (i *Issuer) Parse(token string) (*Claims, error) {
	var claims Claims

	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Purpose != purpose || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// Redeem consumes claims so the token they came from cannot be used again.
// The record lives until the token would have expired anyway.
func (i *Issuer) Redeem(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return ErrInvalidToken
	}

	ok, err := i.ledger.Claim(ctx, claims.ID, claims.ExpiresAt.Time.Sub(i.now()))
	if err != nil {
		return err
	}
	if !ok {
		return ErrTokenUsed
	}
	return nil
}
