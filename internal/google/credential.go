package google

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Credential is an OAuth2 token set for one identity against a fixed scope list,
// together with what is needed to refresh it without the client secret file.
type Credential struct {
	Token *oauth2.Token

	// Scopes are the scopes the provider granted for Token.
	Scopes []string

	// TokenURI, ClientID and ClientSecret are recorded so a refresh can be
	// performed from the stored credential alone.
	TokenURI     string
	ClientID     string
	ClientSecret string
}

// AccessToken returns the access token, or "" for a nil credential.
func (c *Credential) AccessToken() string {
	if c == nil || c.Token == nil {
		return ""
	}
	return c.Token.AccessToken
}

// RefreshToken returns the refresh token, or "" if none is held.
func (c *Credential) RefreshToken() string {
	if c == nil || c.Token == nil {
		return ""
	}
	return c.Token.RefreshToken
}

// Expiry returns the access token expiry. A zero time means the token never expires.
func (c *Credential) Expiry() time.Time {
	if c == nil || c.Token == nil {
		return time.Time{}
	}
	return c.Token.Expiry
}

// Expired reports whether the access token is missing or past its expiry,
// including the oauth2 package's early-expiry skew.
func (c *Credential) Expired() bool {
	if c == nil || c.Token == nil {
		return true
	}
	return !c.Token.Valid()
}

// HasScopes reports whether the granted scopes cover required.
func (c *Credential) HasScopes(required []string) bool {
	if c == nil {
		return false
	}
	return hasScopes(c.Scopes, required)
}

// Refreshable reports whether the credential carries a refresh token.
func (c *Credential) Refreshable() bool {
	return c.RefreshToken() != ""
}

// Valid reports whether the credential is present, unexpired and carries the required scopes.
func (c *Credential) Valid(required []string) bool {
	return c != nil && !c.Expired() && c.HasScopes(required)
}

// Clone returns a deep copy of the credential.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	if c.Token != nil {
		tok := *c.Token
		out.Token = &tok
	}
	out.Scopes = copyScopes(c.Scopes)
	return &out
}

// grantedScopes extracts the scopes from a token response, falling back to requested
// when the provider did not echo them back.
func grantedScopes(tok *oauth2.Token, requested []string) []string {
	if tok != nil {
		if raw, ok := tok.Extra("scope").(string); ok && raw != "" {
			return strings.Fields(raw)
		}
	}
	return copyScopes(requested)
}
