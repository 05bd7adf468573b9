package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
)

const DeskTokenRole = "loan-desk"

// DeskClaims identify a loan-desk terminal allowed to issue and return loans.
type DeskClaims struct {
	Role string `json:"role"`
	jwt.StandardClaims
}

type DeskTokens struct {
	Secret   []byte
	Lifespan time.Duration
	Now      func() time.Time
}

func NewDeskTokens(secret string, lifespan time.Duration) *DeskTokens {
	return &DeskTokens{Secret: []byte(secret), Lifespan: lifespan, Now: time.Now}
}

func (d *DeskTokens) Generate(subject string) (string, error) {
	if len(d.Secret) == 0 {
		return "", errors.New("desk token secret is not configured")
	}
	if subject == "" {
		return "", errors.New("subject is required")
	}
	now := d.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &DeskClaims{
		Role: DeskTokenRole,
		StandardClaims: jwt.StandardClaims{
			Subject:   subject,
			ExpiresAt: now.Add(d.Lifespan).Unix(),
			IssuedAt:  now.Unix(),
		},
	})
	return t.SignedString(d.Secret)
}

// Validate returns the claims of a valid, unexpired desk token.
func (d *DeskTokens) Validate(token string) (*DeskClaims, error) {
	if len(d.Secret) == 0 {
		return nil, errors.New("desk token secret is not configured")
	}
	claims := &DeskClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return d.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Role != DeskTokenRole {
		return nil, errors.New("token is not a loan-desk credential")
	}
	return claims, nil
}
