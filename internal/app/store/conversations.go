package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"agrichat/internal/app/db"
	"agrichat/internal/app/user"
)

// DirectKey returns the canonical key of the unordered user pair {a, b}:
// the two ids sorted lexicographically and joined with a colon. The unique
// constraint on conversations.direct_key makes the pair's conversation unique.
func DirectKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + ":" + ids[1]
}

// GetOrCreateDirect finds the unique direct conversation between users a and b,
// creating it (with both participant rows, atomically) when it does not exist.
//
// Two simultaneous first-contact attempts may both miss the lookup; the unique
// constraint lets exactly one insert win, and the loser re-fetches the winner's
// row instead of surfacing a conflict.
//
// Returns ErrNotFound if either user id does not resolve to an existing user.
func (s *Store) GetOrCreateDirect(ctx context.Context, a, b string) (Conversation, error) {
	uuidA, err := parseUUID(a)
	if err != nil {
		return Conversation{}, err
	}
	uuidB, err := parseUUID(b)
	if err != nil {
		return Conversation{}, err
	}

	var count int
	err = s.pool.QueryRow(ctx, `
		SELECT count(*) FROM users WHERE id IN ($1, $2)`,
		uuidA, uuidB,
	).Scan(&count)
	if err != nil {
		return Conversation{}, fmt.Errorf("verify participants: %w", err)
	}
	if count < 2 {
		return Conversation{}, ErrNotFound
	}

	key := DirectKey(a, b)

	conv, err := s.getDirectByKey(ctx, key)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Conversation{}, err
	}

	conv, err = s.createDirect(ctx, key, uuidA, uuidB)
	if db.IsUniqueViolation(err) {
		// Lost the creation race. The winner's conversation is authoritative.
		return s.getDirectByKey(ctx, key)
	}
	return conv, err
}

// getDirectByKey looks up a direct conversation by its canonical pair key.
func (s *Store) getDirectByKey(ctx context.Context, key string) (Conversation, error) {
	var (
		id                      pgtype.UUID
		lastActivity, createdAt pgtype.Timestamptz
	)

	err := s.pool.QueryRow(ctx, `
		SELECT id, last_activity_at, created_at
		FROM conversations
		WHERE direct_key = $1`,
		key,
	).Scan(&id, &lastActivity, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("find direct conversation: %w", err)
	}

	return Conversation{
		ID:             id.String(),
		LastActivityAt: lastActivity.Time,
		CreatedAt:      createdAt.Time,
	}, nil
}

// createDirect inserts the conversation row and both participant rows in one
// transaction. A partial conversation (zero or one participant) never becomes
// visible.
func (s *Store) createDirect(ctx context.Context, key string, a, b pgtype.UUID) (Conversation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Conversation{}, fmt.Errorf("begin create conversation: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		id                      pgtype.UUID
		lastActivity, createdAt pgtype.Timestamptz
	)

	err = tx.QueryRow(ctx, `
		INSERT INTO conversations (direct_key)
		VALUES ($1)
		RETURNING id, last_activity_at, created_at`,
		key,
	).Scan(&id, &lastActivity, &createdAt)
	if err != nil {
		return Conversation{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id)
		VALUES ($1, $2), ($1, $3)`,
		id, a, b,
	)
	if err != nil {
		return Conversation{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Conversation{}, err
	}

	return Conversation{
		ID:             id.String(),
		LastActivityAt: lastActivity.Time,
		CreatedAt:      createdAt.Time,
	}, nil
}

// IsParticipant reports whether userID is a participant of the given conversation.
// Malformed ids are treated as non-membership.
func (s *Store) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	convUUID, err := parseUUID(conversationID)
	if err != nil {
		return false, nil
	}
	userUUID, err := parseUUID(userID)
	if err != nil {
		return false, nil
	}

	var one int
	err = s.pool.QueryRow(ctx, `
		SELECT 1 FROM conversation_participants
		WHERE conversation_id = $1 AND user_id = $2`,
		convUUID, userUUID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return true, nil
}

// Participants returns the public profiles of every participant of a conversation.
func (s *Store) Participants(ctx context.Context, conversationID string) ([]user.User, error) {
	convUUID, err := parseUUID(conversationID)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.username, u.display_name, u.avatar_url, u.role
		FROM conversation_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.conversation_id = $1
		ORDER BY p.joined_at`,
		convUUID,
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var participants []user.User
	for rows.Next() {
		var (
			uid                 pgtype.UUID
			username            string
			displayName, avatar pgtype.Text
			role                string
		)
		if err := rows.Scan(&uid, &username, &displayName, &avatar, &role); err != nil {
			return nil, err
		}
		participants = append(participants, user.User{
			ID:          uid.String(),
			Username:    username,
			DisplayName: textOrEmpty(displayName),
			Avatar:      textOrEmpty(avatar),
			Role:        role,
		})
	}
	return participants, rows.Err()
}

// ListConversations returns the caller's conversations ordered by most recent
// activity, each with the other party's profile and the latest message.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	userUUID, err := parseUUID(userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT
			c.id, c.last_activity_at,
			u.id, u.username, u.display_name, u.avatar_url, u.role,
			m.id, m.sender_id, m.content, m.read, m.created_at
		FROM conversations c
		JOIN conversation_participants p
			ON p.conversation_id = c.id AND p.user_id = $1
		LEFT JOIN conversation_participants p2
			ON p2.conversation_id = c.id AND p2.user_id <> $1
		LEFT JOIN users u ON u.id = p2.user_id
		LEFT JOIN LATERAL (
			SELECT id, sender_id, content, read, created_at
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC
			LIMIT 1
		) m ON true
		ORDER BY c.last_activity_at DESC`,
		userUUID,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var summaries []ConversationSummary
	for rows.Next() {
		var (
			convID              pgtype.UUID
			lastActivity        pgtype.Timestamptz
			otherID             pgtype.UUID
			otherUsername       pgtype.Text
			displayName, avatar pgtype.Text
			otherRole           pgtype.Text
			msgID, msgSender    pgtype.UUID
			msgContent          pgtype.Text
			msgRead             pgtype.Bool
			msgCreated          pgtype.Timestamptz
		)

		err := rows.Scan(
			&convID, &lastActivity,
			&otherID, &otherUsername, &displayName, &avatar, &otherRole,
			&msgID, &msgSender, &msgContent, &msgRead, &msgCreated,
		)
		if err != nil {
			return nil, err
		}

		summary := ConversationSummary{
			ID:             convID.String(),
			LastActivityAt: lastActivity.Time,
		}

		if otherID.Valid {
			summary.OtherParty = &user.User{
				ID:          otherID.String(),
				Username:    textOrEmpty(otherUsername),
				DisplayName: textOrEmpty(displayName),
				Avatar:      textOrEmpty(avatar),
				Role:        textOrEmpty(otherRole),
			}
		}

		if msgID.Valid {
			summary.LastMessage = &Message{
				ID:             msgID.String(),
				ConversationID: convID.String(),
				SenderID:       msgSender.String(),
				Content:        textOrEmpty(msgContent),
				Read:           msgRead.Bool,
				CreatedAt:      msgCreated.Time,
			}
		}

		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}
