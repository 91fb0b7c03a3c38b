// Package claims extracts identity claims from provider-issued ID tokens.
package claims

import (
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nrudenko/authcore/errs"
	"github.com/nrudenko/authcore/model"
)

// Claim names looked up in the ID token. Cognito-style group claims are
// accepted alongside a plain roles claim.
const (
	claimRoles  = "roles"
	claimGroups = "cognito:groups"
	claimEmail  = "email"
)

// Decode extracts the user identity from idToken without verifying the
// signature; verification is the provider's concern before the token ever
// reaches this core. Unknown role strings are rejected, not passed through.
func Decode(idToken string) (model.User, error) {
	tok, _, err := jwt.NewParser().ParseUnverified(idToken, jwt.MapClaims{})
	if err != nil {
		return model.User{}, fmt.Errorf("%w: parse id token: %v", errs.ErrMalformedToken, err)
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return model.User{}, fmt.Errorf("%w: unexpected claims shape", errs.ErrMalformedToken)
	}
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return model.User{}, fmt.Errorf("%w: subject missing", errs.ErrMalformedToken)
	}
	id, err := uuid.FromString(sub)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: subject is not a UUID: %v", errs.ErrMalformedToken, err)
	}

	u := model.User{ID: id}
	if email, ok := mc[claimEmail].(string); ok {
		u.Email = email
	}
	groups, err := groupStrings(mc)
	if err != nil {
		return model.User{}, err
	}
	for _, g := range groups {
		role, err := model.ParseRole(g)
		if err != nil {
			return model.User{}, fmt.Errorf("%w: %v", errs.ErrMalformedToken, err)
		}
		u.Roles = append(u.Roles, role)
	}
	return u, nil
}

// groupStrings reads the roles claim, falling back to Cognito-style groups.
func groupStrings(mc jwt.MapClaims) ([]string, error) {
	raw, ok := mc[claimRoles]
	if !ok {
		raw, ok = mc[claimGroups]
	}
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: roles claim is not a list", errs.ErrMalformedToken)
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string role entry", errs.ErrMalformedToken)
		}
		out = append(out, s)
	}
	return out, nil
}
