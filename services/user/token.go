package user

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

const issuer = "loyaltyhub"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims identifies the signed-in staff user.
type Claims struct {
	UserID   int64  `json:"uid,string"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

type tokenIssuer struct {
	key    []byte
	ttl    time.Duration
	signer jose.Signer
}

// newTokenIssuer derives a fixed size HMAC key from secret.
func newTokenIssuer(secret string, ttl time.Duration) (*tokenIssuer, error) {
	sum := sha256.Sum256([]byte(secret))
	key := sum[:]

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("token signer: %w", err)
	}

	return &tokenIssuer{key: key, ttl: ttl, signer: signer}, nil
}

func (t *tokenIssuer) issue(u *User, now time.Time) (string, time.Time, error) {
	expires := now.Add(t.ttl)
	raw, err := jwt.Signed(t.signer).
		Claims(jwt.Claims{
			Issuer:   issuer,
			Subject:  u.Username,
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(expires),
		}).
		Claims(Claims{UserID: u.ID, Username: u.Username, Role: u.Role}).
		Serialize()
	if err != nil {
		return "", time.Time{}, err
	}
	return raw, expires, nil
}

func (t *tokenIssuer) parse(raw string, now time.Time) (*Claims, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, ErrInvalidToken
	}

	var std jwt.Claims
	var claims Claims
	if err := tok.Claims(t.key, &std, &claims); err != nil {
		return nil, ErrInvalidToken
	}

	if err := std.ValidateWithLeeway(jwt.Expected{Issuer: issuer, Time: now}, 0); err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims.UserID == 0 || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
