package refresh

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func tokenEndpoint(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.FormValue("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", got)
		}
		if got := r.FormValue("refresh_token"); got != "ref-1" {
			t.Errorf("refresh_token = %q, want ref-1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

func TestOAuth2Exchange(t *testing.T) {
	srv := tokenEndpoint(t,
		`{"access_token":"acc-2","token_type":"Bearer","expires_in":3600,"refresh_token":"ref-2","id_token":"id-2"}`,
		http.StatusOK)
	defer srv.Close()

	fn := OAuth2(OAuth2Config{TokenURL: srv.URL, ClientID: "cid", ClientSecret: "secret"})
	got, err := fn(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got.AccessToken != "acc-2" {
		t.Fatalf("AccessToken = %q", got.AccessToken)
	}
	if got.RefreshToken != "ref-2" {
		t.Fatalf("RefreshToken = %q, want the rotated token", got.RefreshToken)
	}
	if got.IDToken != "id-2" {
		t.Fatalf("IDToken = %q", got.IDToken)
	}
	if got.ExpiresIn < 3590 || got.ExpiresIn > 3600 {
		t.Fatalf("ExpiresIn = %d, want ~3600", got.ExpiresIn)
	}
	if got.IssuedAt.IsZero() {
		t.Fatal("IssuedAt not captured")
	}
}

func TestOAuth2KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	srv := tokenEndpoint(t,
		`{"access_token":"acc-2","token_type":"Bearer","expires_in":3600}`,
		http.StatusOK)
	defer srv.Close()

	fn := OAuth2(OAuth2Config{TokenURL: srv.URL, ClientID: "cid"})
	got, err := fn(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got.RefreshToken != "ref-1" {
		t.Fatalf("RefreshToken = %q, want the original preserved", got.RefreshToken)
	}
}

func TestOAuth2ProviderRejection(t *testing.T) {
	srv := tokenEndpoint(t, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	defer srv.Close()

	fn := OAuth2(OAuth2Config{TokenURL: srv.URL, ClientID: "cid"})
	if _, err := fn(context.Background(), "ref-1"); err == nil {
		t.Fatal("provider rejection did not surface as an error")
	}
}
