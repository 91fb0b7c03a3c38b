package model

import (
	"testing"
	"time"
)

func TestExpiresAt(t *testing.T) {
	t.Parallel()

	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tok := AuthTokens{ExpiresIn: 3600, IssuedAt: issued}

	want := issued.Add(time.Hour)
	if got := tok.ExpiresAt(); !got.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", got, want)
	}
	if got := tok.RefreshAt(60 * time.Second); !got.Equal(want.Add(-time.Minute)) {
		t.Fatalf("RefreshAt = %v, want %v", got, want.Add(-time.Minute))
	}
}

func TestExpired(t *testing.T) {
	t.Parallel()

	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tok := AuthTokens{ExpiresIn: 3600, IssuedAt: issued}

	if tok.Expired(issued.Add(time.Minute)) {
		t.Fatal("fresh set reported expired")
	}
	if !tok.Expired(issued.Add(time.Hour)) {
		t.Fatal("set at its expiry instant reported valid")
	}
	if !(AuthTokens{ExpiresIn: 0, IssuedAt: issued}).Expired(issued) {
		t.Fatal("zero ExpiresIn must count as expired")
	}
	if !(AuthTokens{ExpiresIn: -5, IssuedAt: issued}).Expired(issued) {
		t.Fatal("negative ExpiresIn must count as expired")
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "admin", want: RoleAdmin},
		{in: " Manager ", want: RoleManager},
		{in: "EDITOR", want: RoleEditor},
		{in: "viewer", want: RoleViewer},
		{in: "superuser", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseRole(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseRole(%q) accepted an unknown role", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseRole(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseRole(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAuthStatusString(t *testing.T) {
	t.Parallel()

	if StatusUnauthenticated.String() != "unauthenticated" ||
		StatusAuthenticated.String() != "authenticated" ||
		StatusRefreshing.String() != "refreshing" {
		t.Fatal("status names do not match")
	}
}
