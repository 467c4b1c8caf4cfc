package token

import (
	"encoding/json"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// Token is one version of a user's OAuth2 credentials. It is a value: a refresh
// produces a new Token, fields are never edited in place.
type Token struct {
	AccessToken  string    // Bearer credential for resource APIs
	RefreshToken string    // Empty unless offline_access was granted
	ExpiresAtUTC time.Time // Absolute access token expiry
}

// Valid reports whether the access token is still usable at now.
func (t Token) Valid(now time.Time) bool {
	return t.ValidWithSkew(now, 0)
}

// ValidWithSkew treats the token as expiring skew earlier than its real expiry.
func (t Token) ValidWithSkew(now time.Time, skew time.Duration) bool {
	if t.AccessToken == "" {
		return false
	}
	return t.ExpiresAtUTC.Add(-skew).After(now)
}

// CanRefresh reports whether the token carries a refresh token.
func (t Token) CanRefresh() bool {
	return t.RefreshToken != ""
}

// Equal compares two tokens, using time.Equal for the expiry.
func (t Token) Equal(other Token) bool {
	return t.AccessToken == other.AccessToken &&
		t.RefreshToken == other.RefreshToken &&
		t.ExpiresAtUTC.Equal(other.ExpiresAtUTC)
}

// OAuth2 converts t into the x/oauth2 representation.
func (t Token) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAtUTC,
	}
}

// DefaultLifetime is the provider's documented access token lifetime. It is
// used when a token response carries no expiry at all.
const DefaultLifetime = 30 * time.Minute

// FromResponse builds a Token from a token endpoint response. The expiry is
// now + expires_in measured on the caller's clock; if the response carries no
// expires_in the expiry computed by x/oauth2 is used, and if that is unset the
// token lives for DefaultLifetime.
func FromResponse(tok *oauth2.Token, now time.Time) Token {
	t := Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAtUTC: tok.Expiry.UTC(),
	}
	if seconds, ok := expiresIn(tok); ok {
		t.ExpiresAtUTC = now.UTC().Add(time.Duration(seconds) * time.Second)
	} else if tok.Expiry.IsZero() {
		t.ExpiresAtUTC = now.UTC().Add(DefaultLifetime)
	}
	return t
}

func expiresIn(tok *oauth2.Token) (int64, bool) {
	if tok.ExpiresIn > 0 {
		return tok.ExpiresIn, true
	}
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v), v > 0
	case int64:
		return v, v > 0
	case json.Number:
		n, err := v.Int64()
		return n, err == nil && n > 0
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil && n > 0
	}
	return 0, false
}
