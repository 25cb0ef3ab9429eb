package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"looksdehoje-backend/internal/blob"
	"looksdehoje-backend/internal/model"
)

func imageURLs(p model.Piece) []string {
	urls := make([]string, len(p.Images))
	for i, img := range p.Images {
		urls[i] = img.URL
	}
	return urls
}

func TestPieces_CreateWithImagesInManifestOrder(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	cat := env.createCategory("Vestidos")

	resp := env.sendPiece(http.MethodPost, "/api/admin/pieces", pieceForm{
		fields: map[string]string{"name": "Vestido Longo", "category_id": cat.ID, "description": "Seda"},
		json: map[string]any{
			"measurements": map[string]string{"Busto": "90cm", " ": "ignored"},
			"framing":      map[string]float64{"position_x": 120, "position_y": 30, "zoom": 150},
			"manifest":     []map[string]string{{"file": "b"}, {"file": "a"}},
		},
		files: map[string]string{"a": "frente.png", "b": "costas.png"},
	})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))

	var piece model.Piece
	resp.decode(t, &piece)
	assert.Equal(t, "Vestido Longo", piece.Name)
	assert.Equal(t, model.Available, piece.Status)
	assert.Equal(t, map[string]string{"Busto": "90cm"}, piece.Measurements)
	assert.Equal(t, 100.0, piece.Framing.X, "framing is clamped")
	assert.Equal(t, 150.0, piece.Framing.Zoom)

	require.Len(t, piece.Images, 2)
	assert.Contains(t, piece.Images[0].URL, "costas")
	assert.Contains(t, piece.Images[1].URL, "frente")
	assert.Equal(t, 0, piece.Images[0].Order)
	assert.Equal(t, 1, piece.Images[1].Order)
	for _, u := range imageURLs(piece) {
		assert.True(t, env.objectExists(u), u)
	}

	var raw map[string]any
	resp.decode(t, &raw)
	assert.Equal(t, piece.Images[0].URL, raw["image_url"], "cover is the first image")

	public := env.get("/api/pieces/" + piece.ID)
	require.Equal(t, http.StatusOK, public.status)
}

func TestPieces_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	cat := env.createCategory("Ternos")

	resp := env.json(http.MethodPost, "/api/admin/pieces", map[string]any{"category_id": cat.ID})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.status)
	assert.Equal(t, CodeMissingFields, resp.code(t))

	resp = env.json(http.MethodPost, "/api/admin/pieces", map[string]any{"name": "Terno", "category_id": "nope"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.status)
	assert.Equal(t, CodeUnknownCategory, resp.code(t))

	resp = env.json(http.MethodPost, "/api/admin/pieces", map[string]any{"name": "Terno", "category_id": cat.ID, "status": "lost"})
	assert.Equal(t, http.StatusBadRequest, resp.status)

	resp = env.json(http.MethodPost, "/api/admin/pieces", map[string]any{
		"name": "Terno", "category_id": cat.ID,
		"manifest": []map[string]string{{"url": "/uploads/pieces/other.png"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.status)
	assert.Equal(t, CodeUnknownImage, resp.code(t))

	resp = env.json(http.MethodPost, "/api/admin/pieces", map[string]any{
		"name": "Terno", "category_id": cat.ID,
		"manifest": []map[string]string{{"url": "/x.png", "file": "f"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.status)

	resp = env.sendPiece(http.MethodPost, "/api/admin/pieces", pieceForm{
		fields: map[string]string{"name": "Terno", "category_id": cat.ID},
		json:   map[string]any{"manifest": []map[string]string{{"file": "missing"}}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.status)

	assert.Equal(t, 0, env.storedObjects("pieces"))
}

func TestPieces_TooManyImagesUploadsNothing(t *testing.T) {
	env := newTestEnv(t, withMaxImages(2))
	env.login()
	cat := env.createCategory("Saias")

	resp := env.sendPiece(http.MethodPost, "/api/admin/pieces", pieceForm{
		fields: map[string]string{"name": "Saia", "category_id": cat.ID},
		json:   map[string]any{"manifest": []map[string]string{{"file": "a"}, {"file": "b"}, {"file": "c"}}},
		files:  map[string]string{"a": "a.png", "b": "b.png", "c": "c.png"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.status)
	assert.Equal(t, CodeTooManyImages, resp.code(t))
	assert.Equal(t, 0, env.storedObjects("pieces"))
}

func TestPieces_FailedUploadRollsBack(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	cat := env.createCategory("Blusas")

	resp := env.sendPiece(http.MethodPost, "/api/admin/pieces", pieceForm{
		fields: map[string]string{"name": "Blusa", "category_id": cat.ID},
		json:   map[string]any{"manifest": []map[string]string{{"file": "ok"}, {"file": "bad"}}},
		files:  map[string]string{"ok": "ok.png"},
		raw:    map[string][]byte{"bad": []byte("not an image")},
	})
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.status)
	assert.Equal(t, CodeUnsupportedMedia, resp.code(t))
	assert.Equal(t, 0, env.storedObjects("pieces"), "the first upload is removed again")

	list := env.get("/api/admin/pieces")
	assert.JSONEq(t, `[]`, string(list.body))
}

func TestPieces_UpdateManifestKeepsReordersAndDrops(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	cat := env.createCategory("Vestidos")

	resp := env.sendPiece(http.MethodPost, "/api/admin/pieces", pieceForm{
		fields: map[string]string{"name": "Vestido", "category_id": cat.ID},
		json:   map[string]any{"manifest": []map[string]string{{"file": "a"}, {"file": "b"}}},
		files:  map[string]string{"a": "a.png", "b": "b.png"},
	})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	var created model.Piece
	resp.decode(t, &created)
	first, second := created.Images[0].URL, created.Images[1].URL

	resp = env.sendPiece(http.MethodPut, "/api/admin/pieces/"+created.ID, pieceForm{
		fields: map[string]string{"name": "Vestido Novo", "category_id": cat.ID},
		json:   map[string]any{"manifest": []map[string]string{{"file": "n"}, {"url": second}}},
		files:  map[string]string{"n": "novo.png"},
	})
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	var updated model.Piece
	resp.decode(t, &updated)

	assert.Equal(t, "Vestido Novo", updated.Name)
	require.Len(t, updated.Images, 2)
	assert.Contains(t, updated.Images[0].URL, "novo")
	assert.Equal(t, second, updated.Images[1].URL)
	assert.False(t, env.objectExists(first), "dropped image is deleted")
	assert.True(t, env.objectExists(second))

	// No manifest keeps the images.
	resp = env.json(http.MethodPut, "/api/admin/pieces/"+created.ID, map[string]any{"name": "Vestido", "category_id": cat.ID})
	require.Equal(t, http.StatusOK, resp.status)
	var kept model.Piece
	resp.decode(t, &kept)
	assert.Equal(t, imageURLs(updated), imageURLs(kept))

	resp = env.json(http.MethodPut, "/api/admin/pieces/"+created.ID, map[string]any{
		"name": "Vestido", "category_id": cat.ID,
		"manifest": []map[string]string{{"url": first}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.status)
	assert.Equal(t, CodeUnknownImage, resp.code(t))

	resp = env.json(http.MethodPut, "/api/admin/pieces/missing", map[string]any{"name": "x", "category_id": cat.ID})
	assert.Equal(t, http.StatusNotFound, resp.status)
}

func TestPieces_BecomingAvailableNotifies(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	cat := env.createCategory("Ternos")

	resp := env.json(http.MethodPost, "/api/admin/pieces", map[string]any{"name": "Terno", "category_id": cat.ID, "status": "rented"})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	var piece model.Piece
	resp.decode(t, &piece)

	resp = env.json(http.MethodPost, "/api/admin/pieces/"+piece.ID+"/toggle-status", nil)
	require.Equal(t, http.StatusOK, resp.status)
	resp.decode(t, &piece)
	assert.Equal(t, model.Available, piece.Status)
	assert.Equal(t, []string{piece.ID}, env.notifier.dispatched())

	resp = env.json(http.MethodPost, "/api/admin/pieces/"+piece.ID+"/toggle-status", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Len(t, env.notifier.dispatched(), 1, "available to rented does not notify")

	resp = env.json(http.MethodPut, "/api/admin/pieces/"+piece.ID, map[string]any{"name": "Terno", "category_id": cat.ID, "status": "available"})
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, []string{piece.ID, piece.ID}, env.notifier.dispatched())

	resp = env.json(http.MethodPost, "/api/admin/pieces/missing/toggle-status", nil)
	assert.Equal(t, http.StatusNotFound, resp.status)
}

func TestPieces_RemoveAndReorderImages(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	cat := env.createCategory("Vestidos")

	resp := env.sendPiece(http.MethodPost, "/api/admin/pieces", pieceForm{
		fields: map[string]string{"name": "Vestido", "category_id": cat.ID},
		json:   map[string]any{"manifest": []map[string]string{{"file": "a"}, {"file": "b"}, {"file": "c"}}},
		files:  map[string]string{"a": "a.png", "b": "b.png", "c": "c.png"},
	})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	var piece model.Piece
	resp.decode(t, &piece)
	a, b, c := piece.Images[0].URL, piece.Images[1].URL, piece.Images[2].URL
	base := "/api/admin/pieces/" + piece.ID

	resp = env.json(http.MethodPost, base+"/images/reorder", map[string]int{"from": 2, "to": 0})
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	resp.decode(t, &piece)
	assert.Equal(t, []string{c, a, b}, imageURLs(piece))

	resp = env.do(http.MethodDelete, base+"/images/1", "", nil)
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	resp.decode(t, &piece)
	assert.Equal(t, []string{c, b}, imageURLs(piece))
	assert.Equal(t, 1, piece.Images[1].Order)
	assert.False(t, env.objectExists(a))

	for _, path := range []string{base + "/images/2", base + "/images/-1", base + "/images/x"} {
		resp = env.do(http.MethodDelete, path, "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.status, path)
	}
	resp = env.json(http.MethodPost, base+"/images/reorder", map[string]int{"from": 0, "to": 5})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	resp = env.json(http.MethodPost, base+"/images/reorder", map[string]int{"from": 0})
	assert.Equal(t, http.StatusBadRequest, resp.status)

	stored := env.get("/api/pieces/" + piece.ID)
	var fresh model.Piece
	stored.decode(t, &fresh)
	assert.Equal(t, []string{c, b}, imageURLs(fresh))
}

func TestPieces_DeleteRemovesImages(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	cat := env.createCategory("Vestidos")

	resp := env.sendPiece(http.MethodPost, "/api/admin/pieces", pieceForm{
		fields: map[string]string{"name": "Vestido", "category_id": cat.ID},
		json:   map[string]any{"manifest": []map[string]string{{"file": "a"}}},
		files:  map[string]string{"a": "a.png"},
	})
	require.Equal(t, http.StatusCreated, resp.status)
	var piece model.Piece
	resp.decode(t, &piece)

	resp = env.do(http.MethodDelete, "/api/admin/pieces/"+piece.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.status)
	assert.False(t, env.objectExists(piece.Images[0].URL))
	assert.Equal(t, http.StatusNotFound, env.get("/api/pieces/"+piece.ID).status)

	resp = env.do(http.MethodDelete, "/api/admin/pieces/"+piece.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.status)
}

func TestPieces_ListFiltersAndStats(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	dresses := env.createCategory("Vestidos")
	suits := env.createCategory("Ternos")

	for i, p := range []struct{ name, cat, status string }{
		{"Vestido Azul", dresses.ID, "available"},
		{"Vestido Preto", dresses.ID, "rented"},
		{"Terno Cinza", suits.ID, "available"},
	} {
		resp := env.json(http.MethodPost, "/api/admin/pieces", map[string]any{"name": p.name, "category_id": p.cat, "status": p.status})
		require.Equal(t, http.StatusCreated, resp.status, fmt.Sprint(i))
	}

	var pieces []model.Piece
	env.get("/api/pieces?category=" + dresses.ID).decode(t, &pieces)
	assert.Len(t, pieces, 2)

	env.get("/api/pieces?q=terno").decode(t, &pieces)
	require.Len(t, pieces, 1)
	assert.Equal(t, "Terno Cinza", pieces[0].Name)

	env.get("/api/pieces?status=rented").decode(t, &pieces)
	require.Len(t, pieces, 1)
	assert.Equal(t, "Vestido Preto", pieces[0].Name)

	assert.Equal(t, http.StatusBadRequest, env.get("/api/pieces?status=lost").status)

	var stats map[string]int
	env.get("/api/admin/stats").decode(t, &stats)
	assert.Equal(t, map[string]int{"total": 3, "available": 2, "rented": 1, "occupancy_percent": 33}, stats)
}

func TestPieces_ConcurrentSaveIsRejected(t *testing.T) {
	h := NewHandler(Deps{}, nil)
	require.True(t, h.saving.acquire("p1"))
	assert.False(t, h.saving.acquire("p1"))
	assert.True(t, h.saving.acquire("p2"))
	h.saving.release("p1")
	assert.True(t, h.saving.acquire("p1"))
}

func TestPieces_MultipartBodyLimit(t *testing.T) {
	h := NewHandler(Deps{Pieces: blob.NewImageUploader(nil, "", 16), MaxImages: 1}, nil)
	r := gin.New()
	r.POST("/pieces", h.CreatePiece)

	contentType, body := pieceForm{
		fields: map[string]string{"name": "Vestido", "category_id": "c", "description": strings.Repeat("x", 2<<20)},
	}.encode(t)
	req := httptest.NewRequest(http.MethodPost, "/pieces", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), CodeFileTooLarge)
}
