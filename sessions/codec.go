package sessions

import (
	"crypto/sha256"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-xero-auth/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

const (
	sessionIssuer  = "xero-oauth2-sample/session"
	sessionKeyInfo = "session-cookie-hmac"
)

// sessionClaims is the signed payload of the session cookie.
type sessionClaims struct {
	UserID     string `json:"xero_userid"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	Email      string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Codec turns a Principal into a signed cookie value and back. Cookies are
// HS256 JWTs keyed with a secret derived from the configured session secret.
type Codec struct {
	key     []byte
	maxAge  time.Duration
	nowFunc func() time.Time
}

type CodecOption func(*Codec)

func WithCodecNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

// NewCodec derives the signing key from secret with HKDF-SHA256.
func NewCodec(secret string, maxAge time.Duration, options ...CodecOption) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if maxAge <= 0 {
		return nil, errors.Errorf("session max age must be positive, got %s", maxAge)
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(sessionKeyInfo)), key); err != nil {
		return nil, errors.Wrap(err, "failed to derive session key")
	}

	c := &Codec{
		key:     key,
		maxAge:  maxAge,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// MaxAge returns how long an encoded session stays valid.
func (c *Codec) MaxAge() time.Duration {
	return c.maxAge
}

// Encode signs p as a new session. SessionID, IssuedAt and ExpiresAt are
// assigned here and returned on the updated principal.
func (c *Codec) Encode(p Principal) (string, Principal, error) {
	if p.UserID == "" {
		return "", Principal{}, errors.Wrap(apperrors.ErrMissingUserID, "cannot encode session")
	}

	now := c.nowFunc().UTC().Truncate(time.Second)
	p.SessionID = uuid.NewString()
	p.IssuedAt = now
	p.ExpiresAt = now.Add(c.maxAge)

	claims := sessionClaims{
		UserID:     p.UserID,
		GivenName:  p.GivenName,
		FamilyName: p.FamilyName,
		Email:      p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   p.Subject,
			ID:        p.SessionID,
			IssuedAt:  jwt.NewNumericDate(p.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(p.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", Principal{}, errors.Wrap(err, "failed to sign session")
	}
	return signed, p, nil
}

// Decode verifies value and returns its principal. Expired cookies fail with
// ErrSessionExpired, anything else unverifiable with ErrSessionInvalid.
func (c *Codec) Decode(value string) (Principal, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(value, &claims, c.verificationKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.nowFunc),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, errors.Wrap(apperrors.ErrSessionExpired, err.Error())
		}
		return Principal{}, errors.Wrap(apperrors.ErrSessionInvalid, err.Error())
	}
	if claims.UserID == "" {
		return Principal{}, errors.Wrap(apperrors.ErrSessionInvalid, apperrors.ErrMissingUserID.Error())
	}

	p := Principal{
		UserID:     claims.UserID,
		Subject:    claims.Subject,
		GivenName:  claims.GivenName,
		FamilyName: claims.FamilyName,
		Email:      claims.Email,
		SessionID:  claims.ID,
	}
	if claims.IssuedAt != nil {
		p.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return p, nil
}

func (c *Codec) verificationKey(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return c.key, nil
}
