package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"agrichat/internal/app/chat"
	"agrichat/internal/pkg/auth/jwt"
	"agrichat/internal/pkg/errs"
	"agrichat/internal/pkg/logx"
	"agrichat/internal/pkg/randx"
	"agrichat/internal/pkg/req"
	"agrichat/internal/pkg/resp"
)

// PresignUploadInput defines the JSON input structure for generating an upload URL.
type PresignUploadInput struct {
	ConversationID string `json:"conversationId"`
	FileName       string `json:"file_name"`
	MimeType       string `json:"mime_type"`
	FileSize       int64  `json:"file_size"`
}

// HandlePresignUploadURL creates an HTTP HandlerFunc to generate a time-limited,
// pre-signed URL for file upload, scoped to a conversation the caller
// participates in.
func HandlePresignUploadURL(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input PresignUploadInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		ok, err := deps.Conversations.IsParticipant(r.Context(), input.ConversationID, payload.ID)
		if err != nil {
			logx.Error(err, "presign_upload: membership check failed", "conversation_id", input.ConversationID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotParticipant))
			return
		}

		if err := chat.ValidateFileSize(input.FileSize); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		if err := chat.ValidateFileType(input.FileName, input.MimeType); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		fileExt := strings.ToLower(filepath.Ext(input.FileName))
		fileKey := chat.AttachmentKeyPrefix(input.ConversationID) + randx.AttachmentID() + fileExt

		url, err := deps.StorageService.PresignUpload(
			r.Context(),
			fileKey,
			input.MimeType,
			input.FileSize,
			chat.PresignedURLDuration,
		)

		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		data := map[string]any{
			"presignedUrl": url,
			"fileKey":      fileKey,
			"fileName":     input.FileName,
		}
		resp.RespondSuccess(w, r, data)
	}
}

// HandlePresignDownloadURL creates an HTTP HandlerFunc to generate a time-limited,
// pre-signed URL for file download. The file key encodes the conversation it
// belongs to; the caller must be a participant of that conversation.
func HandlePresignDownloadURL(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		fileKey := r.URL.Query().Get("k")
		if fileKey == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		conversationID, ok := chat.ConversationFromKey(fileKey)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrAttachmentKeyInvalid))
			return
		}

		member, err := deps.Conversations.IsParticipant(r.Context(), conversationID, payload.ID)
		if err != nil {
			logx.Error(err, "presign_download: membership check failed", "conversation_id", conversationID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if !member {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotParticipant))
			return
		}

		url, err := deps.StorageService.PresignDownload(
			r.Context(),
			fileKey,
			chat.PresignedURLDuration,
		)

		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		http.Redirect(w, r, url, http.StatusFound)
	}
}
