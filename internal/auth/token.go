package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidCredential = errors.New("invalid credential")

// Verifier validates identity credentials minted by the external auth
// service. Credentials are HS256 JWTs whose subject is the user id.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
}

func NewVerifier(secret []byte, issuer, audience string) *Verifier {
	return &Verifier{secret: secret, issuer: issuer, audience: audience}
}

type identityClaims struct {
	jwt.RegisteredClaims
	DisplayName string `json:"name,omitempty"`
	AvatarURL   string `json:"avatar,omitempty"`
}

// Verify parses and validates a credential and returns the identity it
// carries. Callers must treat any error as "no identity": no detail about
// why validation failed is exposed to the client.
func (v *Verifier) Verify(credential string) (Identity, error) {
	var claims identityClaims
	_, err := jwt.ParseWithClaims(credential, &claims, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Identity{}, fmt.Errorf("%w: bad subject", ErrInvalidCredential)
	}

	return Identity{
		UserID:      userID,
		DisplayName: claims.DisplayName,
		AvatarURL:   claims.AvatarURL,
	}, nil
}

// Issue mints a credential for the given identity. The production issuer
// lives in the auth service; this is used by local tooling and tests.
func (v *Verifier) Issue(id Identity, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.UserID, 10),
			Issuer:    v.issuer,
			Audience:  jwt.ClaimStrings{v.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		DisplayName: id.DisplayName,
		AvatarURL:   id.AvatarURL,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign credential: %w", err)
	}
	return signed, nil
}
