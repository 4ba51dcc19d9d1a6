/*
Package handler provides the REST surface of the conversation layer.

These handlers read and write through the same stores as the event channel, so
a conversation looks identical whichever surface a client queries. A POST that
appends a message also fans it out to the conversation's room, exactly like a
send over the socket.
*/
package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"agrichat/internal/app/chat"
	"agrichat/internal/app/store"
	"agrichat/internal/pkg/auth/jwt"
	"agrichat/internal/pkg/errs"
	"agrichat/internal/pkg/logx"
	"agrichat/internal/pkg/req"
	"agrichat/internal/pkg/resp"
)

// HandleListConversations returns the caller's conversations, most recent
// activity first, each with the other party's profile and the latest message.
func HandleListConversations(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		summaries, err := deps.Conversations.ListConversations(r.Context(), identity.ID)
		if err != nil {
			logx.Error(err, "list_conversations: query failed", "user_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if summaries == nil {
			summaries = []store.ConversationSummary{}
		}

		resp.RespondSuccess(w, r, map[string]any{
			"conversations": summaries,
		})
	}
}

// HandleListMessages returns the full message history of one conversation.
// Non-participants receive the same response as for a conversation that does
// not exist.
func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		conversationID := chi.URLParam(r, "id")

		ok, err := deps.Conversations.IsParticipant(r.Context(), conversationID, identity.ID)
		if err != nil {
			logx.Error(err, "list_messages: membership check failed", "conversation_id", conversationID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotParticipant))
			return
		}

		messages, err := deps.Conversations.ListMessages(r.Context(), conversationID)
		if err != nil {
			logx.Error(err, "list_messages: query failed", "conversation_id", conversationID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if messages == nil {
			messages = []store.Message{}
		}

		resp.RespondSuccess(w, r, map[string]any{
			"messages": messages,
		})
	}
}

// CreateMessageInput defines the JSON input for posting a message over REST.
type CreateMessageInput struct {
	Content string `json:"content"`
}

// HandleCreateMessage appends a text message to a conversation and broadcasts
// it to the conversation's room, so connected participants see REST-posted
// messages live.
func HandleCreateMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		conversationID := chi.URLParam(r, "id")

		var input CreateMessageInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		content := strings.TrimSpace(input.Content)
		if content == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrEmptyMessageContent))
			return
		}
		if len(content) > chat.MaxContentBytes {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageContentTooLong))
			return
		}

		message, err := deps.Conversations.AppendMessage(r.Context(), conversationID, identity.ID, content, nil)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				resp.RespondError(w, r, errs.NewError(errs.ErrConversationNotFound))
			case errors.Is(err, store.ErrForbidden):
				resp.RespondError(w, r, errs.NewError(errs.ErrNotParticipant))
			default:
				logx.Error(err, "create_message: append failed", "conversation_id", conversationID)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			}
			return
		}

		if event, err := chat.NewEvent(chat.EventNewMessage, message); err != nil {
			logx.Error(err, "create_message: failed to marshal broadcast event", "message_id", message.ID)
		} else {
			deps.Hub.BroadcastRoom(conversationID, event)
		}

		resp.RespondCreated(w, r, map[string]any{
			"message": message,
		})
	}
}
