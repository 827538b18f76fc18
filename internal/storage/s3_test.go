package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *BlobStore {
	t.Helper()
	store, err := NewBlobStore(Config{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		AccessKeyID:     "test-access",
		SecretAccessKey: "test-secret",
		Bucket:          "chat-media",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	return store
}

func TestNewBlobStore_Incomplete(t *testing.T) {
	_, err := NewBlobStore(Config{Bucket: "b"})
	assert.Error(t, err)

	_, err = NewBlobStore(Config{AccessKeyID: "a", SecretAccessKey: "s", Bucket: "b"})
	assert.Error(t, err, "needs endpoint or account id")
}

func TestNewBlobStore_R2Endpoint(t *testing.T) {
	store, err := NewBlobStore(Config{AccountID: "acct", AccessKeyID: "a", SecretAccessKey: "s", Bucket: "b"})
	require.NoError(t, err)

	u, err := store.PresignGet(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, u, "acct.r2.cloudflarestorage.com")
}

func TestPresignPut_SignsKeyAndExpiry(t *testing.T) {
	store := testStore(t)

	raw, err := store.PresignPut(context.Background(), "media/a/b/voice.webm", "audio/webm", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/chat-media/media/a/b/voice.webm", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestPresignGet(t *testing.T) {
	store := testStore(t)

	raw, err := store.PresignGet(context.Background(), "media/x.png", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "http://localhost:9000/chat-media/media/x.png?"))
}

func TestObjectKey(t *testing.T) {
	uploader := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	att := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	tests := []struct {
		filename string
		want     string
	}{
		{"voice.webm", "voice.webm"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\photo 1.jpg`, "photo_1.jpg"},
		{"..", "file"},
		{"", "file"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got := ObjectKey(uploader, att, tt.filename)
			assert.Equal(t, "media/"+uploader.String()+"/"+att.String()+"/"+tt.want, got)
		})
	}
}
