package chat

import (
	"context"

	"agrichat/internal/app/store"
	"agrichat/internal/app/user"
)

// Store is the slice of the persistence layer the event handlers consume:
// identity lookups, the conversation directory, and the message ledger.
// *store.Store satisfies it; tests substitute an in-memory implementation.
type Store interface {
	// GetUserByID resolves a user id to its public profile.
	// Returns store.ErrNotFound for unknown or malformed ids.
	GetUserByID(ctx context.Context, id string) (user.User, error)

	// GetOrCreateDirect finds or atomically creates the unique direct
	// conversation between two users.
	GetOrCreateDirect(ctx context.Context, a, b string) (store.Conversation, error)

	// Participants lists the public profiles of a conversation's participants.
	Participants(ctx context.Context, conversationID string) ([]user.User, error)

	// IsParticipant reports conversation membership.
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)

	// AppendMessage persists one message and bumps the conversation's
	// last-activity timestamp. Returns store.ErrForbidden when the sender is
	// not a participant and store.ErrNotFound for a missing conversation.
	AppendMessage(ctx context.Context, conversationID, senderID, content string, attachments []store.Attachment) (store.Message, error)

	// ListRecentMessages returns the newest limit messages in chronological order.
	ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]store.Message, error)

	// MarkReadBulk flips the read flag on others' unread messages, returning the count.
	MarkReadBulk(ctx context.Context, conversationID, exceptSenderID string) (int64, error)
}
