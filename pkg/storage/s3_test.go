package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObjectKey(t *testing.T) {
	now := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "payment-proofs/2024/03/abc.png", ObjectKey(FolderPaymentProofs, "abc", ".png", now))
	assert.Equal(t, "thumbnails/2024/03/evil.jpg", ObjectKey(FolderThumbnails, "../../evil", ".jpg", now))
}

func TestPublicURL(t *testing.T) {
	s := &S3{cfg: S3Config{Bucket: "media", Region: "ap-southeast-1"}}
	assert.Equal(t, "https://media.s3.ap-southeast-1.amazonaws.com/a/b.png", s.PublicURL("a/b.png"))

	s.cfg.PublicBaseURL = "https://cdn.example.com/"
	assert.Equal(t, "https://cdn.example.com/a/b.png", s.PublicURL("a/b.png"))
}
