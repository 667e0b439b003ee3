package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"blogspot-api/internal/config"
	"blogspot-api/internal/domain"
	"blogspot-api/internal/service"
)

type stubUserLookup struct {
	users map[string]domain.User
	err   error
}

func (s *stubUserLookup) GetByID(_ context.Context, id string) (domain.User, error) {
	if s.err != nil {
		return domain.User{}, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return u, nil
}

type gateFixture struct {
	now      time.Time
	issuer   *service.SessionIssuer
	users    *stubUserLookup
	ledger   *service.MemoryRevocationLedger
	verifier *service.SessionVerifier
	cookies  SessionCookies
	router   *gin.Engine
}

func newGateFixture(t *testing.T, policy config.CookiePolicy) *gateFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &gateFixture{now: time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	issuer, err := service.NewSessionIssuer("gate-secret", 3*time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	f.issuer = issuer.WithClock(clock)
	f.users = &stubUserLookup{users: map[string]domain.User{
		"u1": {ID: "u1", Email: "u1@example.com", DisplayName: "User One"},
	}}
	f.ledger = service.NewMemoryRevocationLedger()
	f.verifier = service.NewSessionVerifier(nil, f.issuer, f.users, f.ledger, service.SessionVerifierOptions{Now: clock})
	f.cookies = NewSessionCookies(policy, 3*time.Hour)

	r := gin.New()
	gate := SessionMiddleware(nil, f.verifier, f.cookies, nil)
	r.GET("/protected", gate, func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": user.ID})
	})
	auth := NewAuthHandler(nil, nil, f.issuer, f.ledger, f.cookies)
	r.GET("/auth/logout", auth.Logout)
	f.router = r
	return f
}

func (f *gateFixture) issue(t *testing.T) service.IssuedSession {
	t.Helper()
	issued, err := f.issuer.Issue(service.SessionIdentity{UserID: "u1", Email: "u1@example.com"}, domain.Fingerprint{ClientIP: "192.0.2.1"}, 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return issued
}

func sessionRequest(method, path, token string, withFlag bool) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: cookieSessionToken, Value: token})
	}
	if withFlag {
		req.AddCookie(&http.Cookie{Name: cookieLoginFlag, Value: loginFlagValue})
	}
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func responseCookies(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie)
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func assertAuthRequired(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if body.Error != "yes" || body.Errors.Message != messageAuthRequired || body.Errors.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected envelope %+v", body)
	}
}

func TestSessionMiddleware_ValidSessionPassesWithoutCookies(t *testing.T) {
	f := newGateFixture(t, config.CookiePolicy{SameSite: http.SameSiteLaxMode})
	issued := f.issue(t)

	for i := 0; i < 2; i++ {
		rec := serve(f.router, sessionRequest(http.MethodGet, "/protected", issued.Token, true))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), `"id":"u1"`) {
			t.Fatalf("expected identity u1 attached, got %s", rec.Body.String())
		}
		if len(rec.Result().Cookies()) != 0 {
			t.Fatalf("expected no cookie writes, got %v", rec.Header().Values("Set-Cookie"))
		}
	}
}

func TestSessionMiddleware_RequiresBothCookies(t *testing.T) {
	f := newGateFixture(t, config.CookiePolicy{})
	issued := f.issue(t)

	assertAuthRequired(t, serve(f.router, sessionRequest(http.MethodGet, "/protected", issued.Token, false)))
	assertAuthRequired(t, serve(f.router, sessionRequest(http.MethodGet, "/protected", "", true)))
	assertAuthRequired(t, serve(f.router, sessionRequest(http.MethodGet, "/protected", "", false)))
}

func TestSessionMiddleware_ReissuesNearExpiry(t *testing.T) {
	f := newGateFixture(t, config.CookiePolicy{SameSite: http.SameSiteLaxMode})
	issued := f.issue(t)
	f.now = issued.ExpiresAt.Add(-30 * time.Minute)

	rec := serve(f.router, sessionRequest(http.MethodGet, "/protected", issued.Token, true))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	cookies := responseCookies(rec)
	token, ok := cookies[cookieSessionToken]
	if !ok || token.Value == "" || token.Value == issued.Token {
		t.Fatalf("expected replacement session cookie, got %+v", token)
	}
	if flag, ok := cookies[cookieLoginFlag]; !ok || flag.Value != loginFlagValue {
		t.Fatalf("expected login flag cookie, got %+v", flag)
	}
	if !token.HttpOnly || token.Path != "/" || token.MaxAge != int((3*time.Hour).Seconds()) {
		t.Fatalf("unexpected cookie attributes %+v", token)
	}
	if token.SameSite != http.SameSiteLaxMode || token.Secure || token.Domain != "" {
		t.Fatalf("expected development policy, got %+v", token)
	}

	rec = serve(f.router, sessionRequest(http.MethodGet, "/protected", token.Value, true))
	if rec.Code != http.StatusOK || len(rec.Result().Cookies()) != 0 {
		t.Fatalf("expected replacement token to verify without reissue, got %d", rec.Code)
	}
}

func TestSessionMiddleware_ProductionCookiePolicy(t *testing.T) {
	cfg := &config.Config{Mode: config.ModeProduction, CookieDomain: "blogspot.example.com"}
	f := newGateFixture(t, cfg.CookiePolicy())
	issued := f.issue(t)
	f.now = issued.ExpiresAt.Add(-10 * time.Minute)

	rec := serve(f.router, sessionRequest(http.MethodGet, "/protected", issued.Token, true))
	for _, raw := range rec.Header().Values("Set-Cookie") {
		for _, attr := range []string{"Secure", "SameSite=None", "Domain=blogspot.example.com", "HttpOnly"} {
			if !strings.Contains(raw, attr) {
				t.Fatalf("expected %s in %q", attr, raw)
			}
		}
	}
	if len(rec.Header().Values("Set-Cookie")) != 2 {
		t.Fatalf("expected both cookies rewritten, got %v", rec.Header().Values("Set-Cookie"))
	}
}

func TestSessionMiddleware_RejectsExpiredAndTampered(t *testing.T) {
	f := newGateFixture(t, config.CookiePolicy{})
	issued := f.issue(t)

	b := []byte(issued.Token)
	i := strings.IndexByte(issued.Token, '.') + 3
	if b[i] == 'x' {
		b[i] = 'y'
	} else {
		b[i] = 'x'
	}
	assertAuthRequired(t, serve(f.router, sessionRequest(http.MethodGet, "/protected", string(b), true)))

	f.now = issued.ExpiresAt.Add(time.Minute)
	assertAuthRequired(t, serve(f.router, sessionRequest(http.MethodGet, "/protected", issued.Token, true)))
}

func TestSessionMiddleware_StoreFailureIs500(t *testing.T) {
	f := newGateFixture(t, config.CookiePolicy{})
	issued := f.issue(t)
	f.users.err = errors.New("connection reset")

	rec := serve(f.router, sessionRequest(http.MethodGet, "/protected", issued.Token, true))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestSessionMiddleware_MissingVerifierIs500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", SessionMiddleware(nil, nil, SessionCookies{}, nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := serve(r, sessionRequest(http.MethodGet, "/protected", "whatever", true))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestLogout_ClearsCookiesAndRevokes(t *testing.T) {
	f := newGateFixture(t, config.CookiePolicy{SameSite: http.SameSiteLaxMode})
	issued := f.issue(t)

	rec := serve(f.router, sessionRequest(http.MethodGet, "/auth/logout", issued.Token, true))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "logout done") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	cookies := responseCookies(rec)
	for _, name := range []string{cookieSessionToken, cookieLoginFlag} {
		c, ok := cookies[name]
		if !ok || c.Value != "" || c.MaxAge >= 0 {
			t.Fatalf("expected %s cleared, got %+v", name, c)
		}
	}

	entries := f.ledger.Entries("u1")
	if len(entries) != 1 || entries[0].Token != issued.Token {
		t.Fatalf("expected token in ledger, got %+v", entries)
	}
	if !entries[0].ExpiresAt.Equal(issued.ExpiresAt) {
		t.Fatalf("expected ledger entry to carry token expiry, got %v", entries[0].ExpiresAt)
	}

	assertAuthRequired(t, serve(f.router, sessionRequest(http.MethodGet, "/protected", issued.Token, true)))
}

type failingRevoker struct{}

func (failingRevoker) Revoke(context.Context, string, string, time.Time) error {
	return errors.New("db down")
}

func TestLogout_RevokeFailureStillSucceeds(t *testing.T) {
	f := newGateFixture(t, config.CookiePolicy{})
	issued := f.issue(t)

	r := gin.New()
	r.GET("/auth/logout", NewAuthHandler(nil, nil, f.issuer, failingRevoker{}, f.cookies).Logout)

	rec := serve(r, sessionRequest(http.MethodGet, "/auth/logout", issued.Token, true))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(responseCookies(rec)) != 2 {
		t.Fatalf("expected cookies cleared")
	}
}

func TestLogout_WithoutSession(t *testing.T) {
	f := newGateFixture(t, config.CookiePolicy{})
	rec := serve(f.router, sessionRequest(http.MethodGet, "/auth/logout", "", false))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(f.ledger.Entries("u1")) != 0 {
		t.Fatalf("expected empty ledger")
	}
}

func TestLogout_RevokesWithoutLoginFlag(t *testing.T) {
	f := newGateFixture(t, config.CookiePolicy{})
	issued := f.issue(t)

	rec := serve(f.router, sessionRequest(http.MethodGet, "/auth/logout", issued.Token, false))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	entries := f.ledger.Entries("u1")
	if len(entries) != 1 || entries[0].Token != issued.Token {
		t.Fatalf("expected token in ledger, got %+v", entries)
	}

	assertAuthRequired(t, serve(f.router, sessionRequest(http.MethodGet, "/protected", issued.Token, true)))
}
