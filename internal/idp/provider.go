// Package idp abstracts the external identity provider. The concrete
// implementation targets Auth0-compatible providers; the interface exists so
// the credential exchange can be tested against fakes.
package idp

import (
	"context"

	"golang.org/x/oauth2"
)

// Identity represents the authoritative profile fetched from the provider's
// userinfo endpoint after a successful grant.
type Identity struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// Provider abstracts identity provider operations used by the credential
// exchange.
type Provider interface {
	// PasswordGrant performs the resource-owner password grant for the given
	// credentials. Provider rejections are returned as *oauth2.RetrieveError
	// so callers can map the OAuth error code.
	PasswordGrant(ctx context.Context, email, password, connection string) (*oauth2.Token, error)

	// UserInfo fetches the profile for an issued token, including the
	// authoritative email_verified flag.
	UserInfo(ctx context.Context, token *oauth2.Token) (*Identity, error)
}

// IDToken extracts the id_token carried alongside an access token, if any
func IDToken(token *oauth2.Token) string {
	if token == nil {
		return ""
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		return idToken
	}
	return ""
}
