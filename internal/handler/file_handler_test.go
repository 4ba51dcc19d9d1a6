package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrichat/internal/pkg/errs"
)

func TestPresignUpload_Success(t *testing.T) {
	deps, _, conversations, storageSvc := newTestDeps()
	conversations.isParticipant = func(ctx context.Context, conversationID, userID string) (bool, error) {
		assert.Equal(t, "conv-1", conversationID)
		assert.Equal(t, testFarmer.ID, userID)
		return true, nil
	}

	var presignedKey string
	storageSvc.presignUpload = func(ctx context.Context, key, mimeType string, fileSize int64, duration time.Duration) (string, error) {
		presignedKey = key
		assert.Equal(t, "image/png", mimeType)
		return "https://s3.example.com/upload", nil
	}

	rec := doJSON(t, deps, http.MethodPost, "/api/file/presign-upload", tokenFor(t, testFarmer),
		map[string]any{"conversationId": "conv-1", "file_name": "photo.png", "mime_type": "image/png", "file_size": 1024})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(presignedKey, "chat/conv-1/"))
	assert.True(t, strings.HasSuffix(presignedKey, ".png"))
	assert.Contains(t, rec.Body.String(), "https://s3.example.com/upload")
}

func TestPresignUpload_NonParticipantGets404(t *testing.T) {
	deps, _, conversations, _ := newTestDeps()
	conversations.isParticipant = func(ctx context.Context, conversationID, userID string) (bool, error) {
		return false, nil
	}

	rec := doJSON(t, deps, http.MethodPost, "/api/file/presign-upload", tokenFor(t, testBuyer),
		map[string]any{"conversationId": "conv-1", "file_name": "photo.png", "mime_type": "image/png", "file_size": 1024})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errs.ErrNotParticipant, decodeResponse(t, rec).Code)
}

func TestPresignUpload_RejectsOversizedFile(t *testing.T) {
	deps, _, conversations, _ := newTestDeps()
	conversations.isParticipant = func(ctx context.Context, conversationID, userID string) (bool, error) {
		return true, nil
	}

	rec := doJSON(t, deps, http.MethodPost, "/api/file/presign-upload", tokenFor(t, testFarmer),
		map[string]any{"conversationId": "conv-1", "file_name": "big.png", "mime_type": "image/png", "file_size": 50 * 1024 * 1024})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errs.ErrFileSizeTooLarge, decodeResponse(t, rec).Code)
}

func TestPresignUpload_RejectsMimeMismatch(t *testing.T) {
	deps, _, conversations, _ := newTestDeps()
	conversations.isParticipant = func(ctx context.Context, conversationID, userID string) (bool, error) {
		return true, nil
	}

	rec := doJSON(t, deps, http.MethodPost, "/api/file/presign-upload", tokenFor(t, testFarmer),
		map[string]any{"conversationId": "conv-1", "file_name": "photo.png", "mime_type": "image/jpeg", "file_size": 1024})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errs.ErrInvalidParams, decodeResponse(t, rec).Code)
}

func TestPresignDownload_RedirectsParticipant(t *testing.T) {
	deps, _, conversations, storageSvc := newTestDeps()
	conversations.isParticipant = func(ctx context.Context, conversationID, userID string) (bool, error) {
		assert.Equal(t, "conv-1", conversationID)
		return true, nil
	}
	storageSvc.presignDownload = func(ctx context.Context, key string, duration time.Duration) (string, error) {
		assert.Equal(t, "chat/conv-1/abc.png", key)
		return "https://s3.example.com/download", nil
	}

	rec := doJSON(t, deps, http.MethodGet, "/api/file/presign-download?k=chat%2Fconv-1%2Fabc.png", tokenFor(t, testFarmer), nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://s3.example.com/download", rec.Header().Get("Location"))
}

func TestPresignDownload_NonParticipantGets404(t *testing.T) {
	deps, _, conversations, _ := newTestDeps()
	conversations.isParticipant = func(ctx context.Context, conversationID, userID string) (bool, error) {
		return false, nil
	}

	rec := doJSON(t, deps, http.MethodGet, "/api/file/presign-download?k=chat%2Fconv-1%2Fabc.png", tokenFor(t, testBuyer), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPresignDownload_RejectsMalformedKey(t *testing.T) {
	deps, _, _, _ := newTestDeps()

	rec := doJSON(t, deps, http.MethodGet, "/api/file/presign-download?k=other%2Fstuff.png", tokenFor(t, testFarmer), nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errs.ErrAttachmentKeyInvalid, decodeResponse(t, rec).Code)
}
