// Package refresh adapts external token endpoints to token.RefreshFunc.
package refresh

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"github.com/nrudenko/authcore/model"
	"github.com/nrudenko/authcore/token"
)

// OAuth2Config identifies the provider token endpoint used to exchange
// refresh tokens.
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// OAuth2 returns a RefreshFunc exchanging the refresh token at a standard
// OAuth2 token endpoint. IssuedAt is captured locally when the response
// arrives; the provider's absolute expiry is never trusted directly.
func OAuth2(cfg OAuth2Config) token.RefreshFunc {
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
		Scopes:       cfg.Scopes,
	}
	return func(ctx context.Context, refreshToken string) (model.AuthTokens, error) {
		src := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
		tok, err := src.Token()
		if err != nil {
			return model.AuthTokens{}, err
		}
		issued := time.Now()
		out := model.AuthTokens{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			IssuedAt:     issued,
		}
		if !tok.Expiry.IsZero() {
			out.ExpiresIn = int64(tok.Expiry.Sub(issued) / time.Second)
		}
		if out.RefreshToken == "" {
			// Providers that do not rotate omit the refresh token.
			out.RefreshToken = refreshToken
		}
		if id, ok := tok.Extra("id_token").(string); ok {
			out.IDToken = id
		}
		return out, nil
	}
}
