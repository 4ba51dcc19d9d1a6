package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"agrichat/internal/app/user"
)

// AppendMessage appends one message to a conversation's ledger and bumps the
// conversation's last-activity timestamp in the same transaction. The returned
// message is the authoritative persisted copy, including the sender's profile.
//
// Returns ErrNotFound if the conversation does not exist and ErrForbidden if
// the sender is not one of its participants.
func (s *Store) AppendMessage(ctx context.Context, conversationID, senderID, content string, attachments []Attachment) (Message, error) {
	convUUID, err := parseUUID(conversationID)
	if err != nil {
		return Message{}, err
	}
	senderUUID, err := parseUUID(senderID)
	if err != nil {
		return Message{}, ErrForbidden
	}

	if attachments == nil {
		attachments = []Attachment{}
	}
	attachmentsJSON, err := json.Marshal(attachments)
	if err != nil {
		return Message{}, fmt.Errorf("encode attachments: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("begin append message: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists int
	err = tx.QueryRow(ctx, `
		SELECT 1 FROM conversations WHERE id = $1`,
		convUUID,
	).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("check conversation: %w", err)
	}

	var member int
	err = tx.QueryRow(ctx, `
		SELECT 1 FROM conversation_participants
		WHERE conversation_id = $1 AND user_id = $2`,
		convUUID, senderUUID,
	).Scan(&member)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrForbidden
	}
	if err != nil {
		return Message{}, fmt.Errorf("check sender membership: %w", err)
	}

	var (
		msgID     pgtype.UUID
		createdAt pgtype.Timestamptz
	)
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sender_id, content, attachments)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING id, created_at`,
		convUUID, senderUUID, content, attachmentsJSON,
	).Scan(&msgID, &createdAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversations SET last_activity_at = now() WHERE id = $1`,
		convUUID,
	)
	if err != nil {
		return Message{}, fmt.Errorf("bump conversation activity: %w", err)
	}

	var (
		username            string
		displayName, avatar pgtype.Text
		role                string
	)
	err = tx.QueryRow(ctx, `
		SELECT username, display_name, avatar_url, role
		FROM users WHERE id = $1`,
		senderUUID,
	).Scan(&username, &displayName, &avatar, &role)
	if err != nil {
		return Message{}, fmt.Errorf("load sender profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, err
	}

	return Message{
		ID:             msgID.String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Attachments:    attachments,
		Read:           false,
		CreatedAt:      createdAt.Time,
		Sender: user.User{
			ID:          senderID,
			Username:    username,
			DisplayName: textOrEmpty(displayName),
			Avatar:      textOrEmpty(avatar),
			Role:        role,
		},
	}, nil
}

// ListRecentMessages returns the most recent limit messages of a conversation
// in chronological (ascending) display order.
func (s *Store) ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	messages, err := s.queryMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}

	// The query returns newest-first to apply the limit; flip to display order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ListMessages returns the full chronological history of a conversation.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	messages, err := s.queryMessages(ctx, conversationID, 0)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// queryMessages fetches messages newest-first, optionally limited.
func (s *Store) queryMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	convUUID, err := parseUUID(conversationID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT m.id, m.sender_id, m.content, m.attachments, m.read, m.created_at,
			u.username, u.display_name, u.avatar_url, u.role
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at DESC`

	var rows pgx.Rows
	if limit > 0 {
		rows, err = s.pool.Query(ctx, query+` LIMIT $2`, convUUID, limit)
	} else {
		rows, err = s.pool.Query(ctx, query, convUUID)
	}
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			msgID, senderID     pgtype.UUID
			content             string
			attachmentsJSON     []byte
			read                bool
			createdAt           pgtype.Timestamptz
			username            string
			displayName, avatar pgtype.Text
			role                string
		)

		err := rows.Scan(
			&msgID, &senderID, &content, &attachmentsJSON, &read, &createdAt,
			&username, &displayName, &avatar, &role,
		)
		if err != nil {
			return nil, err
		}

		var attachments []Attachment
		if len(attachmentsJSON) > 0 {
			if err := json.Unmarshal(attachmentsJSON, &attachments); err != nil {
				return nil, fmt.Errorf("decode attachments: %w", err)
			}
		}

		messages = append(messages, Message{
			ID:             msgID.String(),
			ConversationID: conversationID,
			SenderID:       senderID.String(),
			Content:        content,
			Attachments:    attachments,
			Read:           read,
			CreatedAt:      createdAt.Time,
			Sender: user.User{
				ID:          senderID.String(),
				Username:    username,
				DisplayName: textOrEmpty(displayName),
				Avatar:      textOrEmpty(avatar),
				Role:        role,
			},
		})
	}
	return messages, rows.Err()
}

// MarkReadBulk flips the read flag on every unread message of the conversation
// that was authored by someone other than exceptSenderID. It returns the number
// of messages updated. A coarse bulk operation; there is no per-message receipt.
func (s *Store) MarkReadBulk(ctx context.Context, conversationID, exceptSenderID string) (int64, error) {
	convUUID, err := parseUUID(conversationID)
	if err != nil {
		return 0, err
	}
	readerUUID, err := parseUUID(exceptSenderID)
	if err != nil {
		return 0, err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE messages
		SET read = true
		WHERE conversation_id = $1 AND sender_id <> $2 AND read = false`,
		convUUID, readerUUID,
	)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return tag.RowsAffected(), nil
}
