/*
Package store implements the persistence layer over PostgreSQL (pgx).

It owns the conversation directory (find-or-create of unique direct conversations),
the participant relation, and the append-only message ledger, and exposes the
read models the REST surface serves.
*/
package store

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"agrichat/internal/app/user"
)

var (
	// ErrNotFound is returned when a referenced user, conversation, or message does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrForbidden is returned when the acting user is not a participant of the target conversation.
	ErrForbidden = errors.New("store: not a participant")
)

// Store wraps a pgx connection pool with the application's queries.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store on top of an initialized connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Attachment is a reference to an uploaded file carried on a message.
// The JSON shape is shared between the jsonb column, WebSocket events, and REST payloads.
type Attachment struct {
	Key      string `json:"fileKey"`
	Name     string `json:"fileName"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"fileSize"`
}

// Conversation is a persisted thread grouping the set of users who can see its messages.
type Conversation struct {
	ID             string    `json:"id"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Message is one entry of a conversation's ledger, including the sender's public profile.
type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversationId"`
	SenderID       string       `json:"senderId"`
	Content        string       `json:"content"`
	Attachments    []Attachment `json:"attachments"`
	Read           bool         `json:"read"`
	CreatedAt      time.Time    `json:"createdAt"`
	Sender         user.User    `json:"sender"`
}

// ConversationSummary is the list-view projection of a conversation for one user:
// the other party's profile and the most recent message, if any.
type ConversationSummary struct {
	ID             string     `json:"id"`
	LastActivityAt time.Time  `json:"lastActivityAt"`
	OtherParty     *user.User `json:"otherParty,omitempty"`
	LastMessage    *Message   `json:"lastMessage,omitempty"`
}

// parseUUID converts a string id into a pgtype.UUID. A malformed id cannot
// reference any row, so it is reported as ErrNotFound.
func parseUUID(s string) (pgtype.UUID, error) {
	var u pgtype.UUID
	if err := u.Scan(s); err != nil {
		return u, ErrNotFound
	}
	return u, nil
}

// textOrEmpty unwraps a nullable text column.
func textOrEmpty(t pgtype.Text) string {
	if t.Valid {
		return t.String
	}
	return ""
}
