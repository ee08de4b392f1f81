package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/custodia-labs/nexus/internal/adapters/driven/auth"
	"github.com/custodia-labs/nexus/internal/adapters/driven/index/lexical"
	"github.com/custodia-labs/nexus/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/services"
	"github.com/custodia-labs/nexus/internal/normalisers"
	"github.com/custodia-labs/nexus/internal/postprocessors"
)

// stubProvider answers one source with fixed titles.
type stubProvider struct {
	kind   domain.SourceKind
	titles []string
	err    error
}

func (p *stubProvider) Kind() domain.SourceKind { return p.kind }
func (p *stubProvider) Name() string            { return "stub-" + string(p.kind) }

func (p *stubProvider) Search(_ context.Context, _ string, limit int) ([]domain.SearchResult, error) {
	if p.err != nil {
		return nil, p.err
	}
	var out []domain.SearchResult
	for _, title := range p.titles {
		if len(out) == limit {
			break
		}
		out = append(out, domain.SearchResult{
			Source: p.kind,
			Label:  strings.ToUpper(string(p.kind)),
			Title:  title,
			URL:    "https://example.com/" + title,
		})
	}
	return out, nil
}

type fixtureOpts struct {
	quota  int64
	policy domain.UnsupportedFormatPolicy
	rps    float64
	burst  int
}

type apiFixture struct {
	srv     *Server
	handler http.Handler
}

func newFixture(t *testing.T, opts fixtureOpts) *apiFixture {
	t.Helper()
	if opts.quota == 0 {
		opts.quota = domain.DefaultQuotaBytes
	}

	store := memory.NewStore()
	index := lexical.New()
	quota := services.NewQuotaEnforcer(opts.quota, store.DocumentStore())
	docs := services.NewDocumentService(
		store.UserStore(),
		store.DocumentStore(),
		normalisers.Default(),
		postprocessors.Default(),
		index,
		quota,
		opts.policy,
	)

	agg, err := services.NewAggregator(domain.SearchSettings{Timeout: time.Second}, index,
		&stubProvider{kind: domain.SourceWeb, titles: []string{"rust-lang", "rust-book", "rustlings", "extra"}},
		&stubProvider{kind: domain.SourceWikipedia, titles: []string{"Rust_(programming_language)"}},
		&stubProvider{kind: domain.SourceDDG, err: errors.New("down")},
	)
	require.NoError(t, err)
	t.Cleanup(agg.Close)

	signer, err := auth.NewJWTSigner("test-secret")
	require.NoError(t, err)
	authSvc := services.NewAuthService(
		store.UserStore(),
		store.SessionStore(),
		auth.NewBcryptHasher(bcrypt.MinCost),
		signer,
		time.Hour,
	)

	settings := domain.DefaultSettings().Server
	settings.AllowedOrigins = []string{"http://localhost:3000"}
	settings.RateLimitRPS = opts.rps
	settings.RateLimitBurst = opts.burst

	srv := NewServer(settings, Services{
		Auth:      authSvc,
		Search:    agg,
		Documents: docs,
		Users:     services.NewUserService(store.UserStore(), store.DocumentStore(), opts.quota),
	})
	return &apiFixture{srv: srv, handler: srv.Handler()}
}

func (f *apiFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target string, body any) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func (f *apiFixture) authed(method, target, token string, body []byte, contentType string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	return req
}

// login registers a user and returns its token.
func (f *apiFixture) login(t *testing.T, username string) string {
	t.Helper()
	creds := map[string]string{"username": username, "password": "hunter22"}

	rec := f.do(jsonRequest(http.MethodPost, "/api/register", creds))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(jsonRequest(http.MethodPost, "/api/login", creds))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (f *apiFixture) upload(t *testing.T, token, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return f.do(f.authed(http.MethodPost, "/api/upload", token, body.Bytes(), w.FormDataContentType()))
}

func TestHealth(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestRegister(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	rec := f.do(jsonRequest(http.MethodPost, "/api/register", map[string]string{"username": "alice", "password": "pw"}))
	require.Equal(t, http.StatusCreated, rec.Code)
	var user userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "alice", user.Username)
	assert.NotEmpty(t, user.ID)

	rec = f.do(jsonRequest(http.MethodPost, "/api/register", map[string]string{"username": "alice", "password": "other"}))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "user already exists", rec.Body.String())

	rec = f.do(jsonRequest(http.MethodPost, "/api/register", map[string]string{"username": "", "password": "pw"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader("{not json"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusBadRequest, f.do(req).Code)
}

func TestLogin(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.login(t, "alice")

	rec := f.do(jsonRequest(http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "hunter22"}))
	require.Equal(t, http.StatusOK, rec.Code)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == tokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)

	rec = f.do(jsonRequest(http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "wrong"}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(jsonRequest(http.MethodPost, "/api/login", map[string]string{"username": "nobody", "password": "hunter22"}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSearch_RequiresToken(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/search?q=rust&web=true", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(f.authed(http.MethodGet, "/api/search?q=rust&web=true", "garbage", nil, ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSearch_WebAndPKB(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	token := f.login(t, "alice")

	rec := f.upload(t, token, "notes.txt", []byte("Rust ownership means each value has exactly one owner."))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(f.authed(http.MethodGet,
		"/api/search?q=rust%20ownership&web=true&wiki=false&ddg=false&pkb=true", token, nil, ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 4)
	for _, r := range resp.Results[:3] {
		assert.Equal(t, "web", r.Kind)
		assert.Equal(t, "WEB", r.Source)
	}
	last := resp.Results[3]
	assert.Equal(t, "pkb", last.Kind)
	assert.Equal(t, "PKB (notes.txt)", last.Source)
	assert.Contains(t, strings.ToLower(last.Snippet), "ownership")
	assert.GreaterOrEqual(t, resp.TimeTakenMs, int64(0))
}

func TestSearch_ToggleOrderAndFailures(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	token := f.login(t, "alice")

	// ddg fails and contributes nothing; wiki was toggled first.
	rec := f.do(f.authed(http.MethodGet, "/api/search?q=rust&wiki=1&ddg&web=true", token, nil, ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 4)
	assert.Equal(t, "wiki", resp.Results[0].Kind)
	assert.Equal(t, "web", resp.Results[1].Kind)
}

func TestSearch_NothingEnabled(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	token := f.login(t, "alice")

	rec := f.do(f.authed(http.MethodGet, "/api/search?q=rust", token, nil, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
}

func TestSearch_BadInput(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	token := f.login(t, "alice")

	tests := []struct {
		name   string
		target string
	}{
		{"missing query", "/api/search?web=true"},
		{"blank query", "/api/search?q=%20%20&web=true"},
		{"bad toggle", "/api/search?q=rust&web=maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(f.authed(http.MethodGet, tt.target, token, nil, ""))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestParseToggles(t *testing.T) {
	tests := []struct {
		raw     string
		sources []domain.SourceKind
		pkb     bool
	}{
		{"q=x&web=true&wiki=false&ddg=false&pkb=true", []domain.SourceKind{domain.SourceWeb}, true},
		{"ddg=1&web=1", []domain.SourceKind{domain.SourceDDG, domain.SourceWeb}, false},
		{"wiki&pkb", []domain.SourceKind{domain.SourceWikipedia}, true},
		{"web=true&web=false", []domain.SourceKind{}, false},
		{"other=1&q=web", []domain.SourceKind{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			sources, pkb, err := parseToggles(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.sources, sources)
			assert.Equal(t, tt.pkb, pkb)
		})
	}

	_, _, err := parseToggles("web=sometimes")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpload(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		token := f.login(t, "alice")

		rec := f.upload(t, token, "guide.md", []byte("# Guide\n\nHello."))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp map[string]documentView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "guide.md", resp["document"].Filename)
		assert.True(t, resp["document"].Indexed)
	})

	t.Run("missing file", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		token := f.login(t, "alice")

		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		require.NoError(t, w.WriteField("note", "no file"))
		require.NoError(t, w.Close())

		rec := f.do(f.authed(http.MethodPost, "/api/upload", token, body.Bytes(), w.FormDataContentType()))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("over quota", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{quota: 64})
		token := f.login(t, "alice")

		rec := f.upload(t, token, "big.txt", bytes.Repeat([]byte("a"), 100))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), "quota")

		rec = f.do(f.authed(http.MethodGet, "/api/user", token, nil, ""))
		assert.Contains(t, rec.Body.String(), `"total_storage_bytes":0`)
	})

	t.Run("unsupported rejected", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{policy: domain.FormatReject})
		token := f.login(t, "alice")

		rec := f.upload(t, token, "blob.bin", []byte{0x00, 0x01, 0x02})
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("unsupported degraded", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{policy: domain.FormatDegrade})
		token := f.login(t, "alice")

		rec := f.upload(t, token, "blob.bin", []byte{0x00, 0x01, 0x02})
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"indexed":false`)
	})
}

func TestUserUsage(t *testing.T) {
	f := newFixture(t, fixtureOpts{quota: 1000})
	token := f.login(t, "alice")

	require.Equal(t, http.StatusCreated, f.upload(t, token, "a.txt", []byte("alpha beta")).Code)

	rec := f.do(f.authed(http.MethodGet, "/api/user", token, nil, ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var usage usageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usage))
	assert.Equal(t, usageResponse{
		Username:          "alice",
		TotalStorageBytes: 10,
		QuotaBytes:        1000,
		DocumentCount:     1,
	}, usage)
}

func TestDocuments(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	alice := f.login(t, "alice")
	bob := f.login(t, "bob")

	rec := f.upload(t, alice, "notes.txt", []byte("borrow checker notes"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]documentView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["document"].ID

	rec = f.do(f.authed(http.MethodGet, "/api/documents", alice, nil, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	var list map[string][]documentView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list["documents"], 1)
	assert.Equal(t, id, list["documents"][0].ID)

	rec = f.do(f.authed(http.MethodGet, "/api/documents/"+id, bob, nil, ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(f.authed(http.MethodGet, "/api/documents/"+id, alice, nil, ""))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(f.authed(http.MethodDelete, "/api/documents/"+id, alice, nil, ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(f.authed(http.MethodGet, "/api/search?q=borrow&pkb=true", alice, nil, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":[]`)

	rec = f.do(f.authed(http.MethodDelete, "/api/documents/"+id, alice, nil, ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogout(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	token := f.login(t, "alice")

	rec := f.do(f.authed(http.MethodPost, "/api/logout", token, nil, ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(f.authed(http.MethodGet, "/api/user", token, nil, ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCookieAuth(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	token := f.login(t, "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.AddCookie(&http.Cookie{Name: tokenCookie, Value: token})
	assert.Equal(t, http.StatusOK, f.do(req).Code)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, fixtureOpts{rps: 1, burst: 2})

	var codes []int
	for range 4 {
		codes = append(codes, f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	}
	assert.Equal(t, []int{200, 200, 429, 429}, codes)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	assert.Equal(t, http.StatusOK, f.do(req).Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := f.do(req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec = f.do(req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestIPLimiter_SweepsIdleVisitors(t *testing.T) {
	l := newIPLimiter(1, 1)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))

	now = now.Add(10 * time.Minute)
	assert.True(t, l.allow("b"))
	l.mu.Lock()
	_, kept := l.visitors["a"]
	l.mu.Unlock()
	assert.False(t, kept)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{&domain.QuotaExceededError{UserID: "u", Requested: 10, Used: 5, Limit: 8}, http.StatusRequestEntityTooLarge},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("wrap: %w", domain.ErrUnauthorized), http.StatusUnauthorized},
		{fmt.Errorf("%w: exe", domain.ErrUnsupportedFormat), http.StatusUnsupportedMediaType},
		{fmt.Errorf("%w: empty", domain.ErrValidation), http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrAlreadyExists, http.StatusConflict},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Request Entity Too Large"), http.StatusRequestEntityTooLarge},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			code, msg := statusFor(tt.err)
			assert.Equal(t, tt.code, code)
			assert.NotContains(t, msg, "disk on fire")
		})
	}
}
