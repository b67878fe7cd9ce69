package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCookieCarrierSet(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	carrier := newCookieCarrier(rr, req, true)

	carrier.Set("oauth_pkce_abc", "signed-value", 20*time.Minute)

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}

	c := cookies[0]
	if c.Name != "oauth_pkce_abc" || c.Value != "signed-value" {
		t.Errorf("unexpected cookie: %+v", c)
	}
	if !c.HttpOnly {
		t.Error("cookie must be httpOnly")
	}
	if !c.Secure {
		t.Error("cookie must be secure when secure cookies are on")
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", c.SameSite)
	}
	if c.MaxAge != int((20 * time.Minute).Seconds()) {
		t.Errorf("MaxAge = %d, want 1200", c.MaxAge)
	}
}

func TestCookieCarrierSetInsecure(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	carrier := newCookieCarrier(rr, req, false)

	carrier.Set("oauth_pkce_abc", "signed-value", time.Minute)

	if rr.Result().Cookies()[0].Secure {
		t.Error("Secure must be off for local development")
	}
}

func TestCookieCarrierGet(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_pkce_abc", Value: "signed-value"})
	carrier := newCookieCarrier(httptest.NewRecorder(), req, true)

	value, ok := carrier.Get("oauth_pkce_abc")
	if !ok || value != "signed-value" {
		t.Errorf("Get = (%q, %v), want (signed-value, true)", value, ok)
	}

	if _, ok := carrier.Get("missing"); ok {
		t.Error("missing cookie must report absent")
	}
}

func TestCookieCarrierClear(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	carrier := newCookieCarrier(rr, req, true)

	carrier.Clear("oauth_pkce_abc")

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].MaxAge != -1 || cookies[0].Value != "" {
		t.Errorf("clear must expire the cookie: %+v", cookies[0])
	}
}
