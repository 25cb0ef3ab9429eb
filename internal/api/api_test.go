package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/alexedwards/scs/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"looksdehoje-backend/config"
	"looksdehoje-backend/internal/blob"
	"looksdehoje-backend/internal/db"
	"looksdehoje-backend/internal/model"
	"looksdehoje-backend/internal/session"
	"looksdehoje-backend/internal/store"
)

const testPassword = "segredo1"

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingNotifier struct {
	mu  sync.Mutex
	ids []string
}

func (n *recordingNotifier) Dispatch(pieceID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, pieceID)
	return true
}

func (n *recordingNotifier) dispatched() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.ids...)
}

type testEnv struct {
	t        *testing.T
	srv      *httptest.Server
	client   *http.Client
	store    store.Store
	notifier *recordingNotifier
	root     string
}

type envOption func(*Deps, *config.Config)

func withMaxImages(n int) envOption {
	return func(d *Deps, _ *config.Config) { d.MaxImages = n }
}

func withLoginRate(perMinute float64) envOption {
	return func(_ *Deps, cfg *config.Config) { cfg.Server.LoginRatePerMin = perMinute }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	gdb, err := db.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	}, zap.NewNop())
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))
	require.NoError(t, db.Seed(ctx, gdb, config.AdminConfig{StoreName: "LooksdeHoje", InitialPassword: testPassword}, zap.NewNop()))

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateLimitBurst = 1000
	cfg.Server.LoginRatePerMin = 1000
	cfg.Storage.Root = t.TempDir()

	piecesBucket, err := blob.NewLocal(cfg.Storage.Root, cfg.Storage.PublicBaseURL, cfg.Storage.PiecesBucket)
	require.NoError(t, err)
	heroBucket, err := blob.NewLocal(cfg.Storage.Root, cfg.Storage.PublicBaseURL, cfg.Storage.HeroBucket)
	require.NoError(t, err)

	st := store.NewGormStore(gdb)
	notifier := &recordingNotifier{}
	deps := Deps{
		Store:    st,
		Gate:     session.NewGate(scs.New(), st, zap.NewNop()),
		Pieces:   blob.NewImageUploader(piecesBucket, "", 1<<20),
		Hero:     blob.NewImageUploader(heroBucket, "hero", 1<<20),
		Notifier: notifier,
		WebPush:  &webpush.Options{VAPIDPublicKey: "test-public-key"},
		Logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&deps, cfg)
	}

	srv := httptest.NewServer(NewRouter(ctx, deps, cfg))
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{
		t:        t,
		srv:      srv,
		client:   &http.Client{Jar: jar},
		store:    st,
		notifier: notifier,
		root:     cfg.Storage.Root,
	}
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, v), string(r.body))
}

func (r response) code(t *testing.T) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	r.decode(t, &body)
	return body.Code
}

func (e *testEnv) do(method, path, contentType string, body io.Reader) response {
	e.t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, body)
	require.NoError(e.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := e.client.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return response{status: resp.StatusCode, header: resp.Header, body: data}
}

func (e *testEnv) get(path string) response {
	return e.do(http.MethodGet, path, "", nil)
}

func (e *testEnv) json(method, path string, v any) response {
	e.t.Helper()
	var body io.Reader
	if v != nil {
		data, err := json.Marshal(v)
		require.NoError(e.t, err)
		body = bytes.NewReader(data)
	}
	return e.do(method, path, "application/json", body)
}

func (e *testEnv) login() {
	e.t.Helper()
	resp := e.json(http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": testPassword})
	require.Equal(e.t, http.StatusOK, resp.status, string(resp.body))
}

func (e *testEnv) createCategory(name string) model.Category {
	e.t.Helper()
	resp := e.json(http.MethodPost, "/api/admin/categories", map[string]string{"name": name})
	require.Equal(e.t, http.StatusCreated, resp.status, string(resp.body))
	var c model.Category
	resp.decode(e.t, &c)
	return c
}

// pieceForm builds a multipart piece form. files maps part names to client file names;
// every file carries a tiny PNG.
type pieceForm struct {
	fields map[string]string
	json   map[string]any
	files  map[string]string
	raw    map[string][]byte
}

func (f pieceForm) encode(t *testing.T) (string, io.Reader) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range f.fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for k, v := range f.json {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		require.NoError(t, w.WriteField(k, string(data)))
	}
	for part, name := range f.files {
		fw, err := w.CreateFormFile(part, name)
		require.NoError(t, err)
		_, err = fw.Write(pngBytes)
		require.NoError(t, err)
	}
	for part, data := range f.raw {
		fw, err := w.CreateFormFile(part, part+".txt")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return w.FormDataContentType(), &buf
}

func (e *testEnv) sendPiece(method, path string, f pieceForm) response {
	e.t.Helper()
	contentType, body := f.encode(e.t)
	return e.do(method, path, contentType, body)
}

// objectFile maps a public upload URL to its file under the storage root.
func (e *testEnv) objectFile(url string) string {
	return filepath.Join(e.root, filepath.FromSlash(strings.TrimPrefix(url, "/uploads/")))
}

func (e *testEnv) objectExists(url string) bool {
	_, err := os.Stat(e.objectFile(url))
	return err == nil
}

// storedObjects counts files in a bucket directory.
func (e *testEnv) storedObjects(bucket string) int {
	e.t.Helper()
	entries, err := os.ReadDir(filepath.Join(e.root, bucket))
	require.NoError(e.t, err)
	return len(entries)
}
