package claims

import (
	"errors"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nrudenko/authcore/errs"
	"github.com/nrudenko/authcore/model"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestDecode(t *testing.T) {
	t.Parallel()

	id := uuid.Must(uuid.NewV4())
	tok := signToken(t, jwt.MapClaims{
		"sub":   id.String(),
		"email": "dev@example.com",
		"roles": []any{"admin", "editor"},
	})

	u, err := Decode(tok)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if u.ID != id {
		t.Fatalf("ID = %s, want %s", u.ID, id)
	}
	if u.Email != "dev@example.com" {
		t.Fatalf("Email = %q", u.Email)
	}
	if len(u.Roles) != 2 || u.Roles[0] != model.RoleAdmin || u.Roles[1] != model.RoleEditor {
		t.Fatalf("Roles = %v", u.Roles)
	}
}

func TestDecodeCognitoGroups(t *testing.T) {
	t.Parallel()

	id := uuid.Must(uuid.NewV4())
	tok := signToken(t, jwt.MapClaims{
		"sub":            id.String(),
		"cognito:groups": []any{"viewer"},
	})

	u, err := Decode(tok)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(u.Roles) != 1 || u.Roles[0] != model.RoleViewer {
		t.Fatalf("Roles = %v, want [viewer]", u.Roles)
	}
}

func TestDecodeRolesClaimWinsOverGroups(t *testing.T) {
	t.Parallel()

	id := uuid.Must(uuid.NewV4())
	tok := signToken(t, jwt.MapClaims{
		"sub":            id.String(),
		"roles":          []any{"manager"},
		"cognito:groups": []any{"admin"},
	})

	u, err := Decode(tok)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(u.Roles) != 1 || u.Roles[0] != model.RoleManager {
		t.Fatalf("Roles = %v, want [manager]", u.Roles)
	}
}

func TestDecodeNoRoles(t *testing.T) {
	t.Parallel()

	id := uuid.Must(uuid.NewV4())
	tok := signToken(t, jwt.MapClaims{"sub": id.String()})

	u, err := Decode(tok)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(u.Roles) != 0 {
		t.Fatalf("Roles = %v, want none", u.Roles)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	t.Parallel()

	id := uuid.Must(uuid.NewV4())
	cases := map[string]string{
		"garbage":        "not.a.jwt",
		"empty":          "",
		"missing sub":    signToken(t, jwt.MapClaims{"email": "x@example.com"}),
		"non-uuid sub":   signToken(t, jwt.MapClaims{"sub": "user-42"}),
		"unknown role":   signToken(t, jwt.MapClaims{"sub": id.String(), "roles": []any{"superuser"}}),
		"non-list roles": signToken(t, jwt.MapClaims{"sub": id.String(), "roles": "admin"}),
		"non-string entry": signToken(t, jwt.MapClaims{
			"sub":   id.String(),
			"roles": []any{42},
		}),
	}
	for name, tok := range cases {
		if _, err := Decode(tok); !errors.Is(err, errs.ErrMalformedToken) {
			t.Fatalf("%s: err = %v, want ErrMalformedToken", name, err)
		}
	}
}
