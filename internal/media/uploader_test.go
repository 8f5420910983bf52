package media

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/storage"
)

// pngPixel is a valid 1x1 PNG.
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	failPut bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeStore) Put(_ context.Context, key, contentType string, body io.Reader, _ int64) (string, error) {
	if f.failPut {
		return "", errors.New("s3 down")
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = b
	f.types[key] = contentType
	return f.PublicURL(key), nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) PresignUpload(_ context.Context, key, _ string) (string, error) {
	return "https://signed.example/" + key + "?sig=1", nil
}

func (f *fakeStore) PublicURL(key string) string { return "https://cdn.learnhub.id/" + key }

func TestUploadDataURI(t *testing.T) {
	store := newFakeStore()
	u := NewUploader(store, 0, nil)
	u.now = func() time.Time { return time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC) }

	data := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngPixel)
	asset, err := u.Upload(context.Background(), storage.FolderPaymentProofs, data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(asset.PublicID, "payment-proofs/2026/05/"))
	assert.True(t, strings.HasSuffix(asset.PublicID, ".png"))
	assert.Equal(t, "https://cdn.learnhub.id/"+asset.PublicID, asset.SecureURL)
	assert.Equal(t, "image/png", store.types[asset.PublicID])
	assert.Equal(t, pngPixel, store.objects[asset.PublicID])

	u.Remove(context.Background(), asset.PublicID)
	assert.Empty(t, store.objects)
}

func TestUploadRejects(t *testing.T) {
	store := newFakeStore()
	u := NewUploader(store, 32, nil)
	ctx := context.Background()

	_, err := u.Upload(ctx, "secrets", base64.StdEncoding.EncodeToString(pngPixel))
	assert.ErrorIs(t, err, ErrUnknownFolder)

	_, err = u.Upload(ctx, storage.FolderAvatars, "%%%not-base64")
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = u.Upload(ctx, storage.FolderAvatars, base64.StdEncoding.EncodeToString(pngPixel))
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = u.Upload(ctx, storage.FolderAvatars, base64.StdEncoding.EncodeToString([]byte("plain text, not an image")))
	assert.ErrorIs(t, err, ErrInvalidImage)

	store.failPut = true
	u = NewUploader(store, 0, nil)
	_, err = u.Upload(ctx, storage.FolderAvatars, base64.StdEncoding.EncodeToString(pngPixel))
	assert.True(t, apperr.IsKind(err, apperr.KindUpstream))
}

func TestPresign(t *testing.T) {
	u := NewUploader(newFakeStore(), 0, nil)
	slot, err := u.Presign(context.Background(), storage.FolderThumbnails, "image/webp")
	require.NoError(t, err)
	assert.Contains(t, slot.UploadURL, slot.PublicID)
	assert.True(t, strings.HasSuffix(slot.PublicID, ".webp"))
	assert.Equal(t, "https://cdn.learnhub.id/"+slot.PublicID, slot.SecureURL)

	_, err = u.Presign(context.Background(), storage.FolderThumbnails, "application/pdf")
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestUploadHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(NewUploader(newFakeStore(), 0, nil), nil)
	r := gin.New()
	h.Routes(r.Group("/admin/uploads"))

	body := `{"folder":"thumbnails","data":"` + base64.StdEncoding.EncodeToString(pngPixel) + `"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/uploads", strings.NewReader(body)))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"secure_url":"https://cdn.learnhub.id/thumbnails/`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/uploads", strings.NewReader(`{"folder":"thumbnails"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
