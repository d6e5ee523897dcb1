package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dimitrije/appsync-api/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidAssertion covers every authentication failure of the verify
// step: bad signature, expired assertion, audience mismatch, missing email.
var ErrInvalidAssertion = errors.New("invalid assertion")

// AssertionVerifier validates signed identity assertions. An assertion is a
// JWT carrying the asserted email, signed by the identity provider with the
// shared secret, with its audience bound to this service.
type AssertionVerifier struct {
	secret []byte
}

type AssertionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func NewAssertionVerifier(secret string) *AssertionVerifier {
	return &AssertionVerifier{secret: []byte(secret)}
}

func (v *AssertionVerifier) Verify(ctx context.Context, assertion, audience string) (*models.Identity, error) {
	token, err := jwt.ParseWithClaims(assertion, &AssertionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}

	claims, ok := token.Claims.(*AssertionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidAssertion
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrInvalidAssertion)
	}

	if !audienceMatches(claims.Audience, audience) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidAssertion)
	}

	identity := &models.Identity{
		Email:    claims.Email,
		Audience: audience,
		Issuer:   claims.Issuer,
	}
	if claims.ExpiresAt != nil {
		identity.ValidUntil = claims.ExpiresAt.Time.UnixMilli()
	}
	return identity, nil
}

func audienceMatches(claimed jwt.ClaimStrings, audience string) bool {
	for _, aud := range claimed {
		if aud == audience {
			return true
		}
	}
	return false
}
