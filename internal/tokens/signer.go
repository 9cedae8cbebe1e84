// Package tokens signs and verifies the compact tokens this service hands
// out. Both access and refresh tokens are HS256 JWTs over a shared secret;
// a private "token_use" claim keeps the two from being swapped.
package tokens

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

// ErrInvalid covers every verification failure: bad signature, expired,
// wrong issuer, wrong token_use. Callers get the same answer for all of them.
var ErrInvalid = errors.New("invalid token")

type Signer struct {
	secret []byte
	issuer string
}

func NewSigner(secret, issuer string) *Signer {
	return &Signer{
		secret: []byte(secret),
		issuer: issuer,
	}
}

func (s *Signer) Sign(userID uint, use string, ttl time.Duration) (string, error) {
	token, err := jwt.NewBuilder().
		Issuer(s.issuer).
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(ttl)).
		Subject(strconv.FormatUint(uint64(userID), 10)).
		JwtID(uuid.New().String()).
		Claim("token_use", use).
		Build()

	if err != nil {
		return "", fmt.Errorf("failed to build %s token claims: %v", use, err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), s.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %v", use, err)
	}

	return string(signed), nil
}

// Verify checks signature, expiry, issuer and token_use, and returns the
// embedded user id.
func (s *Signer) Verify(raw string, use string) (uint, error) {
	// Verify the token, this also check if the token is expired.
	verified, err := jwt.Parse([]byte(raw), jwt.WithKey(jwa.HS256(), s.secret))
	if err != nil {
		if errors.Is(err, jwt.TokenExpiredError()) {
			return 0, fmt.Errorf("%w: expired", ErrInvalid)
		}
		return 0, fmt.Errorf("%w: signature", ErrInvalid)
	}

	return s.checkClaims(verified, use)
}

// VerifyAllowExpired checks the signature but tolerates an elapsed expiry.
// The refresh endpoint uses it to read the caller's identity out of the
// access token that just expired; the signature still has to hold.
func (s *Signer) VerifyAllowExpired(raw string, use string) (uint, error) {
	verified, err := jwt.Parse([]byte(raw), jwt.WithKey(jwa.HS256(), s.secret), jwt.WithValidate(false))
	if err != nil {
		return 0, fmt.Errorf("%w: signature", ErrInvalid)
	}

	return s.checkClaims(verified, use)
}

func (s *Signer) checkClaims(verified jwt.Token, use string) (uint, error) {
	iss, ok := verified.Issuer()
	if !ok || iss != s.issuer {
		return 0, fmt.Errorf("%w: issuer", ErrInvalid)
	}

	var tokenUse string
	if err := verified.Get("token_use", &tokenUse); err != nil || tokenUse != use {
		return 0, fmt.Errorf("%w: token_use", ErrInvalid)
	}

	sub, ok := verified.Subject()
	if !ok {
		return 0, fmt.Errorf("%w: subject", ErrInvalid)
	}

	userID, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: subject", ErrInvalid)
	}

	return uint(userID), nil
}
