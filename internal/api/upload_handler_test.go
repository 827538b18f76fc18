package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observer/chatwave/internal/domain"
	"github.com/observer/chatwave/internal/storage"
)

const testMaxUpload = 1 << 20

type uploadFixture struct {
	handler     *UploadHandler
	attachments *fakeAttachments
	blobs       *fakeBlobs
}

func newUploadFixture() *uploadFixture {
	f := &uploadFixture{attachments: newFakeAttachments(), blobs: newFakeBlobs()}
	f.handler = NewUploadHandler(f.attachments, f.blobs, testMaxUpload, testLogger())
	return f
}

func (f *uploadFixture) init(t *testing.T, userID uuid.UUID, req domain.UploadInitRequest) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.handler.InitUpload(w, newRequest(t, http.MethodPost, "/uploads/init", userID, req))
	return w
}

func (f *uploadFixture) complete(t *testing.T, userID, attachmentID uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.handler.CompleteUpload(w, newRequest(t, http.MethodPost, "/uploads/complete", userID,
		domain.UploadCompleteRequest{AttachmentID: attachmentID.String()}))
	return w
}

func TestUploadHandler_InitAndComplete(t *testing.T) {
	f := newUploadFixture()
	userID := uuid.New()

	w := f.init(t, userID, domain.UploadInitRequest{Filename: "photo.png", MimeType: "image/png", SizeBytes: 512})
	require.Equal(t, http.StatusOK, w.Code)

	var resp domain.UploadInitResponse
	decodeBody(t, w, &resp)
	assert.True(t, strings.HasPrefix(resp.PresignedURL, "https://blobs.test/put/"))
	assert.Contains(t, resp.ObjectKey, userID.String())
	assert.Equal(t, "image/png", resp.RequiredHeaders["Content-Type"])

	// nothing uploaded yet
	w = f.complete(t, userID, resp.AttachmentID)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.blobs.put(resp.ObjectKey, 512)
	w = f.complete(t, userID, resp.AttachmentID)
	require.Equal(t, http.StatusOK, w.Code)

	att, err := f.attachments.GetByID(context.Background(), resp.AttachmentID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttachmentStatusReady, att.Status)

	// completing twice is harmless
	w = f.complete(t, userID, resp.AttachmentID)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUploadHandler_Init_Rejects(t *testing.T) {
	f := newUploadFixture()

	tests := []struct {
		name string
		req  domain.UploadInitRequest
	}{
		{"missing filename", domain.UploadInitRequest{MimeType: "image/png", SizeBytes: 1}},
		{"zero size", domain.UploadInitRequest{Filename: "a", MimeType: "image/png"}},
		{"too large", domain.UploadInitRequest{Filename: "a", MimeType: "image/png", SizeBytes: testMaxUpload + 1}},
		{"bad type", domain.UploadInitRequest{Filename: "a.exe", MimeType: "application/x-msdownload", SizeBytes: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.init(t, uuid.New(), tt.req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestUploadHandler_Complete_OversizeObject(t *testing.T) {
	f := newUploadFixture()
	userID := uuid.New()

	w := f.init(t, userID, domain.UploadInitRequest{Filename: "a.pdf", MimeType: "application/pdf", SizeBytes: 10})
	require.Equal(t, http.StatusOK, w.Code)
	var resp domain.UploadInitResponse
	decodeBody(t, w, &resp)

	f.blobs.put(resp.ObjectKey, testMaxUpload+1)
	w = f.complete(t, userID, resp.AttachmentID)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	att, err := f.attachments.GetByID(context.Background(), resp.AttachmentID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttachmentStatusError, att.Status)

	_, err = f.blobs.Stat(context.Background(), resp.ObjectKey)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestUploadHandler_Complete_OtherUser(t *testing.T) {
	f := newUploadFixture()
	attID := f.attachments.ready(uuid.New(), "image/png")

	w := f.complete(t, uuid.New(), attID)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadHandler_GetAttachmentURL(t *testing.T) {
	f := newUploadFixture()
	owner, peer, stranger := uuid.New(), uuid.New(), uuid.New()
	attID := f.attachments.ready(owner, "image/png")
	f.attachments.grant(attID, peer)

	get := func(userID uuid.UUID) *httptest.ResponseRecorder {
		r := newRequest(t, http.MethodGet, "/attachments/x/url", userID, nil)
		r.SetPathValue("id", attID.String())
		w := httptest.NewRecorder()
		f.handler.GetAttachmentURL(w, r)
		return w
	}

	for _, userID := range []uuid.UUID{owner, peer} {
		w := get(userID)
		require.Equal(t, http.StatusOK, w.Code)
		var resp domain.AttachmentDownloadResponse
		decodeBody(t, w, &resp)
		assert.True(t, strings.HasPrefix(resp.DownloadURL, "https://blobs.test/get/"))
	}

	assert.Equal(t, http.StatusNotFound, get(stranger).Code)
}
