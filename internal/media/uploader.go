// Package media uploads images (payment proofs, thumbnails, avatars, logos) to
// object storage and returns their public URL and storage identifier.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/storage"
)

var (
	ErrInvalidImage   = apperr.Validation("file must be a JPEG, PNG, WebP or GIF image")
	ErrInvalidPayload = apperr.Validation("file must be base64 encoded")
	ErrTooLarge       = apperr.Validation("file is too large")
	ErrUnknownFolder  = apperr.Validation("unknown upload folder")
	ErrStorage        = apperr.Upstream("media storage unavailable")
)

var folders = map[string]bool{
	storage.FolderPaymentProofs: true,
	storage.FolderThumbnails:    true,
	storage.FolderAvatars:       true,
	storage.FolderLogos:         true,
}

// ObjectStore is the subset of storage.S3 the uploader needs.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
	Delete(ctx context.Context, key string) error
	PresignUpload(ctx context.Context, key, contentType string) (string, error)
	PublicURL(key string) string
}

// Asset is an uploaded object.
type Asset struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

// Uploader validates and stores images.
type Uploader struct {
	store    ObjectStore
	maxBytes int
	logger   *zap.Logger
	now      func() time.Time
}

// NewUploader creates an uploader. maxBytes <= 0 defaults to 5 MiB.
func NewUploader(store ObjectStore, maxBytes int, logger *zap.Logger) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &Uploader{store: store, maxBytes: maxBytes, logger: logger, now: time.Now}
}

// decode accepts raw base64 or a data URI (data:image/png;base64,....).
func (u *Uploader) decode(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if strings.HasPrefix(data, "data:") {
		i := strings.Index(data, ",")
		if i < 0 || !strings.Contains(data[:i], ";base64") {
			return nil, ErrInvalidPayload
		}
		data = data[i+1:]
	}
	if base64.StdEncoding.DecodedLen(len(data)) > u.maxBytes+3 {
		return nil, ErrTooLarge
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, apperr.WithCause(ErrInvalidPayload, err)
	}
	if len(raw) == 0 {
		return nil, ErrInvalidPayload
	}
	if len(raw) > u.maxBytes {
		return nil, ErrTooLarge
	}
	return raw, nil
}

// Upload stores a base64 image under folder.
func (u *Uploader) Upload(ctx context.Context, folder, data string) (*Asset, error) {
	if !folders[folder] {
		return nil, ErrUnknownFolder
	}
	raw, err := u.decode(data)
	if err != nil {
		return nil, err
	}
	return u.put(ctx, folder, raw)
}

func (u *Uploader) put(ctx context.Context, folder string, raw []byte) (*Asset, error) {
	contentType := mimetype.Detect(raw).String()
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	ext, ok := storage.AllowedImageTypes[contentType]
	if !ok {
		return nil, ErrInvalidImage
	}
	key := storage.ObjectKey(folder, uuid.NewString(), ext, u.now())
	url, err := u.store.Put(ctx, key, contentType, bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		u.logger.Error("media upload failed", zap.String("key", key), zap.Error(err))
		return nil, apperr.WithCause(ErrStorage, err)
	}
	return &Asset{SecureURL: url, PublicID: key}, nil
}

// Remove deletes an uploaded object. Failures are logged only.
func (u *Uploader) Remove(ctx context.Context, publicID string) {
	if publicID == "" {
		return
	}
	if err := u.store.Delete(ctx, publicID); err != nil {
		u.logger.Warn("media delete failed", zap.String("key", publicID), zap.Error(err))
	}
}

// PresignedUpload is a direct-to-storage upload slot.
type PresignedUpload struct {
	UploadURL string `json:"upload_url"`
	Asset
}

// Presign reserves a key under folder and returns a signed PUT URL for it.
func (u *Uploader) Presign(ctx context.Context, folder, contentType string) (*PresignedUpload, error) {
	if !folders[folder] {
		return nil, ErrUnknownFolder
	}
	ext, ok := storage.AllowedImageTypes[contentType]
	if !ok {
		return nil, ErrInvalidImage
	}
	key := storage.ObjectKey(folder, uuid.NewString(), ext, u.now())
	signed, err := u.store.PresignUpload(ctx, key, contentType)
	if err != nil {
		return nil, apperr.WithCause(ErrStorage, err)
	}
	return &PresignedUpload{UploadURL: signed, Asset: Asset{SecureURL: u.store.PublicURL(key), PublicID: key}}, nil
}
