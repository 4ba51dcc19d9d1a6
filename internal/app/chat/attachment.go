package chat

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"agrichat/internal/pkg/errs"
)

const (
	// MaxAttachmentSizeMB is the maximum allowed file size in megabytes.
	MaxAttachmentSizeMB = 5

	// MaxAttachmentSize is the maximum allowed file size in bytes.
	MaxAttachmentSize = MaxAttachmentSizeMB * 1024 * 1024

	// MaxAttachmentsCount defines the maximum number of attachments allowed per message.
	MaxAttachmentsCount = 3

	// PresignedURLDuration is the fixed duration for which upload/download URLs are valid.
	PresignedURLDuration = 5 * time.Minute
)

// AllowedMIMETypes defines the set of permitted MIME types for file attachments.
var AllowedMIMETypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// ExtToMIME maps file extensions to their corresponding MIME types.
var ExtToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// AttachmentKeyPrefix returns the storage key prefix all of a conversation's
// attachments must live under. Keys outside the prefix are rejected, which
// keeps one conversation's files unreachable from another.
func AttachmentKeyPrefix(conversationID string) string {
	return fmt.Sprintf("chat/%s/", conversationID)
}

// ConversationFromKey extracts the conversation id a storage key belongs to.
// It returns false for keys that do not follow the "chat/<id>/<file>" layout.
func ConversationFromKey(fileKey string) (string, bool) {
	rest, ok := strings.CutPrefix(fileKey, "chat/")
	if !ok {
		return "", false
	}

	id, file, ok := strings.Cut(rest, "/")
	if !ok || id == "" || file == "" {
		return "", false
	}

	return id, true
}

// ValidateFileSize checks if the provided file size is within acceptable limits.
func ValidateFileSize(fileSize int64) *errs.CustomError {
	if fileSize <= 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if fileSize > MaxAttachmentSize {
		return errs.NewError(errs.ErrFileSizeTooLarge)
	}

	return nil
}

// ValidateFileType checks if the provided file name and MIME type are allowed.
// The extension and the declared MIME type must agree.
func ValidateFileType(fileName string, mimeType string) *errs.CustomError {
	lowerMimeType := strings.ToLower(mimeType)

	if _, ok := AllowedMIMETypes[lowerMimeType]; !ok {
		return errs.NewError(errs.ErrInvalidParams)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" || len(ext) < 2 {
		return errs.NewError(errs.ErrInvalidParams)
	}

	expectedMIME, ok := ExtToMIME[ext]
	if !ok {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if expectedMIME != lowerMimeType {
		return errs.NewError(errs.ErrInvalidParams)
	}

	return nil
}
