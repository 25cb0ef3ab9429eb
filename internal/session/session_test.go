package session

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"looksdehoje-backend/config"
)

type fakeSource struct {
	mu     sync.Mutex
	stored string
	err    error
}

func (f *fakeSource) AdminPassword(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored, f.err
}

func (f *fakeSource) SetAdminPassword(ctx context.Context, stored string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = stored
	return nil
}

func (f *fakeSource) current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored
}

func setupGateServer(t *testing.T, sm *scs.SessionManager, src PasswordSource) (*httptest.Server, *http.Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gate := NewGate(sm, src, zap.NewNop())

	r := gin.New()
	r.POST("/login", func(c *gin.Context) {
		ok, err := gate.Login(c.Request.Context(), c.PostForm("password"))
		switch {
		case err != nil:
			c.Status(http.StatusServiceUnavailable)
		case !ok:
			c.Status(http.StatusUnauthorized)
		default:
			c.Status(http.StatusNoContent)
		}
	})
	r.POST("/logout", func(c *gin.Context) {
		if err := gate.Logout(c.Request.Context()); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})
	r.GET("/state", func(c *gin.Context) {
		c.String(http.StatusOK, gate.State(c.Request.Context()).String())
	})
	r.GET("/admin", gate.RequireAdmin(), func(c *gin.Context) {
		c.String(http.StatusOK, "welcome")
	})

	srv := httptest.NewServer(gate.LoadAndSave(r))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return srv, &http.Client{Jar: jar}
}

func state(t *testing.T, client *http.Client, srv *httptest.Server) string {
	t.Helper()
	resp, err := client.Get(srv.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func login(t *testing.T, client *http.Client, srv *httptest.Server, password string) int {
	t.Helper()
	resp, err := client.PostForm(srv.URL+"/login", url.Values{"password": {password}})
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestGate_LoginPersistsAcrossRequests(t *testing.T) {
	src := &fakeSource{stored: "admin123"}
	srv, client := setupGateServer(t, scs.New(), src)

	assert.Equal(t, "unauthenticated", state(t, client, srv))

	resp, err := client.Get(srv.URL + "/admin")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, http.StatusNoContent, login(t, client, srv, "admin123"))
	assert.Equal(t, "authenticated", state(t, client, srv))
	assert.Equal(t, "authenticated", state(t, client, srv), "a later request sees the same state")

	resp, err = client.Get(srv.URL + "/admin")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.True(t, IsHashed(src.current()), "legacy plaintext is upgraded on login")

	resp, err = client.Post(srv.URL+"/logout", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "unauthenticated", state(t, client, srv))
}

func TestGate_WrongPasswordStaysUnauthenticated(t *testing.T) {
	srv, client := setupGateServer(t, scs.New(), &fakeSource{stored: "admin123"})

	assert.Equal(t, http.StatusUnauthorized, login(t, client, srv, "admin124"))
	assert.Equal(t, "unauthenticated", state(t, client, srv))

	resp, err := client.Post(srv.URL+"/logout", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "unauthenticated", state(t, client, srv))
}

func TestGate_LookupFailureIsNotDenial(t *testing.T) {
	srv, client := setupGateServer(t, scs.New(), &fakeSource{err: errors.New("connection refused")})

	assert.Equal(t, http.StatusServiceUnavailable, login(t, client, srv, "admin123"))
	assert.Equal(t, "unauthenticated", state(t, client, srv))
}

func TestGate_StateLoadingOutsideMiddleware(t *testing.T) {
	gate := NewGate(scs.New(), &fakeSource{}, nil)
	assert.Equal(t, StateLoading, gate.State(context.Background()))
	assert.False(t, gate.IsAuthenticated(context.Background()))
}

func TestGate_SQLiteStoreSurvivesNewManager(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:sessions_test?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.SessionConfig{Store: "sqlite", CookieName: "looksdehoje_session", LifetimeHours: 24}
	sm, err := NewManager(cfg, db)
	require.NoError(t, err)
	assert.Equal(t, "looksdehoje_session", sm.Cookie.Name)
	assert.True(t, sm.Cookie.Persist)

	src := &fakeSource{stored: "admin123"}
	srv, client := setupGateServer(t, sm, src)
	require.Equal(t, http.StatusNoContent, login(t, client, srv, "admin123"))

	// A fresh manager over the same table stands in for a process restart.
	restarted, err := NewManager(cfg, db)
	require.NoError(t, err)
	srv2, _ := setupGateServer(t, restarted, src)

	u, _ := url.Parse(srv.URL)
	req, err := http.NewRequest(http.MethodGet, srv2.URL+"/state", nil)
	require.NoError(t, err)
	for _, c := range client.Jar.Cookies(u) {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "authenticated", string(body))
}

func TestNewManager_UnknownStore(t *testing.T) {
	_, err := NewManager(config.SessionConfig{Store: "redis"}, nil)
	assert.Error(t, err)
	_, err = NewManager(config.SessionConfig{Store: "sqlite"}, nil)
	assert.Error(t, err)
}

func TestChangePassword(t *testing.T) {
	src := &fakeSource{stored: "admin123"}
	gate := NewGate(scs.New(), src, zap.NewNop())
	ctx := context.Background()

	assert.ErrorIs(t, gate.ChangePassword(ctx, "", "novasenha", "novasenha"), ErrMissingFields)
	assert.ErrorIs(t, gate.ChangePassword(ctx, "errada", "novasenha", "novasenha"), ErrWrongPassword)
	assert.ErrorIs(t, gate.ChangePassword(ctx, "admin123", "novasenha", "outrasenha"), ErrPasswordMatch)
	assert.ErrorIs(t, gate.ChangePassword(ctx, "admin123", "abc", "abc"), ErrPasswordTooWeak)
	assert.Equal(t, "admin123", src.current(), "rejected changes leave the password alone")

	require.NoError(t, gate.ChangePassword(ctx, "admin123", "novasenha", "novasenha"))
	assert.True(t, strings.HasPrefix(src.current(), "$argon2id$"))

	ok, err := CheckPassword("novasenha", src.current())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("segredo")
	require.NoError(t, err)
	assert.False(t, NeedsRehash(hash))
	assert.True(t, NeedsRehash("segredo"))

	ok, err := CheckPassword("segredo", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword("Segredo", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := HashPassword("segredo")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salts differ")

	_, err = CheckPassword("x", "$argon2id$broken")
	assert.Error(t, err)

	ok, err = CheckPassword("plain", "plain")
	require.NoError(t, err)
	assert.True(t, ok)
}
