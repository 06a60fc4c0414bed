package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/IgorGrieder/link-redirector/internal/config"
	"github.com/IgorGrieder/link-redirector/internal/processing/links"
	"github.com/IgorGrieder/link-redirector/internal/storage/memory"
	"github.com/IgorGrieder/link-redirector/pkg/httputils"
)

const testToken = "s3cret"

type testServer struct {
	handler http.Handler
	store   *memory.Store
	svc     *links.Service
}

// testConfig mirrors the defaults of config.Load for the settings the
// handlers and the service depend on.
func testConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Name: "link-redirector-test"},
		Server: config.ServerConfig{CORSOrigins: []string{"*"}},
		Links: config.LinksConfig{
			RedirectStatus: http.StatusFound,
			AsyncEvents:    true,
			RejectSelfHost: true,
		},
		Security:  config.SecurityConfig{AuthToken: testToken},
		Store:     config.StoreConfig{KeyPrefix: "link:", TTLHints: true, TTLGrace: 72 * time.Hour},
		RateLimit: config.RateLimitConfig{PerMinute: 60},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	store := memory.NewStore()
	repo := links.NewRepository(store, links.RepositoryOptions{
		KeyPrefix: cfg.Store.KeyPrefix,
		TTLHints:  cfg.Store.TTLHints,
		TTLGrace:  cfg.Store.TTLGrace,
	})
	svc := links.NewService(repo, links.ServiceOptions{
		AsyncEvents:      cfg.Links.AsyncEvents,
		ViewWriteTimeout: cfg.Links.ViewWriteTimeout,
		RejectSelfHost:   cfg.Links.RejectSelfHost,
	})
	t.Cleanup(svc.Wait)

	opts := DefaultRouterOptions()
	opts.EnableLogging = false
	return &testServer{
		handler: NewRouter(cfg, svc, opts),
		store:   store,
		svc:     svc,
	}
}

func (s *testServer) do(method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (httputils.APIResponse, linkResponse) {
	t.Helper()
	var env struct {
		httputils.APIResponse
		Data linkResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env.APIResponse, env.Data
}

func TestRouter_CreateAndRedirect(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(http.MethodPost, "/abc", `{"url":"https://dest.test","max_views":2}`, testToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d: %s", rec.Code, rec.Body)
	}
	env, data := decodeEnvelope(t, rec)
	if env.Code != "LINK_CREATED" || data.ID != "abc" || data.Views != 0 || data.Status != "live" {
		t.Errorf("unexpected create response: %+v %+v", env, data)
	}

	for i := range 2 {
		rec := s.do(http.MethodGet, "/abc", "", "")
		if rec.Code != http.StatusFound {
			t.Fatalf("redirect #%d: got %d", i+1, rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "https://dest.test" {
			t.Errorf("redirect #%d: got Location %q", i+1, loc)
		}
	}

	rec = s.do(http.MethodGet, "/abc", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("exhausted: got %d, want 404", rec.Code)
	}
}

func TestRouter_HeadDoesNotCountViews(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.do(http.MethodPost, "/abc", `{"url":"https://dest.test","max_views":1}`, testToken)

	rec := s.do(http.MethodHead, "/abc", "", "")
	if rec.Code != http.StatusFound {
		t.Fatalf("HEAD: got %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://dest.test" {
		t.Errorf("HEAD: got Location %q", loc)
	}

	if rec := s.do(http.MethodGet, "/abc", "", ""); rec.Code != http.StatusFound {
		t.Fatalf("GET after HEAD: got %d, want 302", rec.Code)
	}
	if rec := s.do(http.MethodHead, "/abc", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("HEAD after exhaustion: got %d, want 404", rec.Code)
	}
}

func TestRouter_SequentialRedirectsRespectCap(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.do(http.MethodPost, "/abc", `{"url":"https://dest.test","max_views":3}`, testToken)

	redirects := 0
	for range 6 {
		if rec := s.do(http.MethodGet, "/abc", "", ""); rec.Code == http.StatusFound {
			redirects++
		}
	}
	if redirects != 3 {
		t.Errorf("got %d redirects, want 3", redirects)
	}
}

func TestRouter_ExpiredLinkDetailsWithTTLHints(t *testing.T) {
	s := newTestServer(t, testConfig())
	past := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	s.do(http.MethodPost, "/old", `{"url":"https://dest.test","expiry_timestamp":`+past+`}`, testToken)

	if rec := s.do(http.MethodGet, "/old", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("redirect: got %d, want 404", rec.Code)
	}
	rec := s.do(http.MethodGet, "/old/details", "", testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("details: got %d, want 200: %s", rec.Code, rec.Body)
	}
	_, data := decodeEnvelope(t, rec)
	if data.Status != "expired" {
		t.Errorf("got status %q, want expired", data.Status)
	}
}

func TestRouter_ReservedIDs(t *testing.T) {
	s := newTestServer(t, testConfig())

	for _, id := range []string{"health", "metrics"} {
		rec := s.do(http.MethodPost, "/"+id, `{"url":"https://dest.test"}`, testToken)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("POST /%s: got %d, want 400", id, rec.Code)
		}
	}
}

func TestRouter_PermanentRedirectStatus(t *testing.T) {
	cfg := testConfig()
	cfg.Links.RedirectStatus = http.StatusMovedPermanently
	s := newTestServer(t, cfg)

	s.do(http.MethodPost, "/abc", `{"url":"https://dest.test"}`, testToken)
	if rec := s.do(http.MethodGet, "/abc", "", ""); rec.Code != http.StatusMovedPermanently {
		t.Fatalf("got %d, want 301", rec.Code)
	}
}

func TestRouter_HiddenStatesRenderAsNotFound(t *testing.T) {
	s := newTestServer(t, testConfig())
	past := time.Now().Add(-time.Hour).Unix()

	bodies := map[string]string{
		"off":  `{"url":"https://a.com","disabled":true}`,
		"old":  `{"url":"https://a.com","expiry_timestamp":` + strconv.FormatInt(past, 10) + `}`,
		"used": `{"url":"https://a.com","max_views":0}`,
	}
	for id, body := range bodies {
		if rec := s.do(http.MethodPost, "/"+id, body, testToken); rec.Code != http.StatusCreated {
			t.Fatalf("create %s: got %d: %s", id, rec.Code, rec.Body)
		}
	}

	for _, id := range []string{"off", "old", "used", "missing"} {
		for _, suffix := range []string{"", "/where", "/exists"} {
			rec := s.do(http.MethodGet, "/"+id+suffix, "", "")
			if rec.Code != http.StatusNotFound {
				t.Errorf("GET /%s%s: got %d, want 404", id, suffix, rec.Code)
			}
		}
	}
}

func TestRouter_WhereAndExistsDoNotCountViews(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.do(http.MethodPost, "/abc", `{"url":"https://dest.test/x","max_views":1}`, testToken)

	rec := s.do(http.MethodGet, "/abc/where", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "https://dest.test/x" {
		t.Fatalf("where: got %d %q", rec.Code, rec.Body)
	}
	if rec := s.do(http.MethodGet, "/abc/exists", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("exists: got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/abc", "", ""); rec.Code != http.StatusFound {
		t.Fatalf("the single view must still be available, got %d", rec.Code)
	}
}

func TestRouter_Details(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.do(http.MethodPost, "/off", `{"url":"https://a.com","disabled":true}`, testToken)

	if rec := s.do(http.MethodGet, "/off/details", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: got %d, want 401", rec.Code)
	}

	rec := s.do(http.MethodGet, "/off/details", "", testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rec.Code, rec.Body)
	}
	_, data := decodeEnvelope(t, rec)
	if data.Status != "disabled" || !data.Disabled {
		t.Errorf("unexpected details: %+v", data)
	}

	if rec := s.do(http.MethodGet, "/missing/details", "", testToken); rec.Code != http.StatusNotFound {
		t.Errorf("missing: got %d, want 404", rec.Code)
	}
}

func TestRouter_ConflictAndOverwrite(t *testing.T) {
	s := newTestServer(t, testConfig())
	ctx := context.Background()

	s.do(http.MethodPost, "/abc", `{"url":"https://a.com"}`, testToken)
	s.do(http.MethodGet, "/abc", "", "")
	before, err := s.store.Get(ctx, "link:abc")
	if err != nil {
		t.Fatal(err)
	}

	rec := s.do(http.MethodPost, "/abc", `{"url":"https://b.com"}`, testToken)
	if rec.Code != http.StatusConflict {
		t.Fatalf("conflict: got %d", rec.Code)
	}
	after, _ := s.store.Get(ctx, "link:abc")
	if string(before) != string(after) {
		t.Error("record changed after conflict")
	}

	rec = s.do(http.MethodPost, "/abc", `{"url":"https://b.com","overwrite":true}`, testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("overwrite: got %d: %s", rec.Code, rec.Body)
	}
	env, data := decodeEnvelope(t, rec)
	if env.Code != "LINK_UPDATED" || data.Views != 0 || data.URL != "https://b.com" {
		t.Errorf("unexpected overwrite response: %+v %+v", env, data)
	}
}

func TestRouter_MutationAuth(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		token  string
		want   int
	}{
		{"missing token", testToken, "", http.StatusUnauthorized},
		{"wrong token", testToken, "guess", http.StatusUnauthorized},
		{"not configured", "", "anything", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Security.AuthToken = tt.secret
			s := newTestServer(t, cfg)

			for _, method := range []string{http.MethodPost, http.MethodDelete} {
				rec := s.do(method, "/abc", `{"url":"https://a.com"}`, tt.token)
				if rec.Code != tt.want {
					t.Errorf("%s: got %d, want %d", method, rec.Code, tt.want)
				}
			}
			if _, err := s.store.Get(context.Background(), "link:abc"); !errors.Is(err, links.ErrKeyNotFound) {
				t.Error("rejected mutation must not write")
			}
		})
	}
}

func TestRouter_UpsertValidation(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		wantCode string
	}{
		{"malformed json", "/abc", `{"url":`, "INVALID_REQUEST"},
		{"unknown field", "/abc", `{"url":"https://a.com","notes":"x"}`, "INVALID_REQUEST"},
		{"missing url", "/abc", `{}`, "INVALID_URL"},
		{"relative url", "/abc", `{"url":"/x"}`, "INVALID_URL"},
		{"negative max views", "/abc", `{"url":"https://a.com","max_views":-1}`, "INVALID_REQUEST"},
		{"negative expiry", "/abc", `{"url":"https://a.com","expiry_timestamp":-5}`, "INVALID_REQUEST"},
		{"bad expire_in", "/abc", `{"url":"https://a.com","expire_in":"soon"}`, "INVALID_REQUEST"},
		{"both expiries", "/abc", `{"url":"https://a.com","expire_in":"1h","expiry_timestamp":1}`, "INVALID_REQUEST"},
		{"self redirect", "/abc", `{"url":"http://example.com/other"}`, "INVALID_URL"},
		{"bad id", "/a.b", `{"url":"https://a.com"}`, "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig())

			rec := s.do(http.MethodPost, tt.path, tt.body, testToken)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("got %d, want 400: %s", rec.Code, rec.Body)
			}
			env, _ := decodeEnvelope(t, rec)
			if env.Error != tt.wantCode {
				t.Errorf("got error code %q, want %q", env.Error, tt.wantCode)
			}
		})
	}
}

func TestRouter_PayloadTooLarge(t *testing.T) {
	s := newTestServer(t, testConfig())
	body := `{"url":"https://a.com/` + strings.Repeat("x", httputils.MaxBodyBytes) + `"}`

	if rec := s.do(http.MethodPost, "/abc", body, testToken); rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("got %d, want 413", rec.Code)
	}
}

func TestRouter_ExpireIn(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(http.MethodPost, "/abc", `{"url":"https://a.com","expire_in":"1h"}`, testToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d: %s", rec.Code, rec.Body)
	}
	_, data := decodeEnvelope(t, rec)
	if data.ExpiryTimestamp == nil {
		t.Fatal("expected expiry_timestamp to be set")
	}
	if delta := *data.ExpiryTimestamp - time.Now().Unix(); delta < 3590 || delta > 3600 {
		t.Errorf("expiry %d is not about an hour away", *data.ExpiryTimestamp)
	}
}

func TestRouter_DeleteScenario(t *testing.T) {
	s := newTestServer(t, testConfig())

	if rec := s.do(http.MethodDelete, "/missing", "", testToken); rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing: got %d, want 404", rec.Code)
	}

	s.do(http.MethodPost, "/abc", `{"url":"https://a.com"}`, testToken)
	if rec := s.do(http.MethodDelete, "/abc", "", testToken); rec.Code != http.StatusOK {
		t.Fatalf("delete: got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/abc", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("resolve after delete: got %d, want 404", rec.Code)
	}
}

type fixedCounter struct{ n int64 }

func (c *fixedCounter) Incr(context.Context, string) (int64, error) {
	c.n++
	return c.n, nil
}

func TestRouter_RateLimitsMutations(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.PerMinute = 1
	store := memory.NewStore()
	svc := links.NewService(links.NewRepository(store, links.RepositoryOptions{}), links.ServiceOptions{})
	opts := DefaultRouterOptions()
	opts.EnableLogging = false
	opts.RateLimiter = &fixedCounter{}
	h := NewRouter(cfg, svc, opts)

	codes := make([]int, 0, 2)
	for _, id := range []string{"one", "two"} {
		req := httptest.NewRequest(http.MethodPost, "/"+id, strings.NewReader(`{"url":"https://a.com"}`))
		req.Header.Set("Authorization", testToken)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusCreated || codes[1] != http.StatusTooManyRequests {
		t.Errorf("got %v, want [201 429]", codes)
	}

	// Redirects are never limited.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/one", nil))
	if rec.Code != http.StatusFound {
		t.Errorf("redirect: got %d", rec.Code)
	}
}

func TestRouter_Health(t *testing.T) {
	cfg := testConfig()
	opts := DefaultRouterOptions()
	opts.EnableLogging = false
	opts.HealthCheck = func(context.Context) error { return errors.New("store down") }
	svc := links.NewService(links.NewRepository(memory.NewStore(), links.RepositoryOptions{}), links.ServiceOptions{})
	h := NewRouter(cfg, svc, opts)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503", rec.Code)
	}

	s := newTestServer(t, cfg)
	if rec := s.do(http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
}

func TestSpanName(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/abc", "links.redirect"},
		{http.MethodHead, "/abc", "links.redirect"},
		{http.MethodGet, "/abc/where", "links.where"},
		{http.MethodGet, "/abc/details", "links.details"},
		{http.MethodPost, "/abc", "links.upsert"},
		{http.MethodDelete, "/abc", "links.delete"},
		{http.MethodGet, "/health", "health"},
		{http.MethodGet, "/a/b/c", "GET unmatched"},
		{http.MethodPut, "/abc", "PUT unmatched"},
	}

	for _, tt := range tests {
		t.Run(tt.method+tt.path, func(t *testing.T) {
			if got := spanName(httptest.NewRequest(tt.method, tt.path, nil)); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
