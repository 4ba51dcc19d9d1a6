package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrichat/internal/app/store"
	"agrichat/internal/app/user"
	"agrichat/internal/pkg/errs"
)

func TestClient_StartConversation(t *testing.T) {
	hub := NewHub()

	st := &mockStore{
		getUserByID: func(ctx context.Context, id string) (user.User, error) {
			require.Equal(t, bob.ID, id)
			return bob, nil
		},
		getOrCreateDirect: func(ctx context.Context, a, b string) (store.Conversation, error) {
			assert.Equal(t, alice.ID, a)
			assert.Equal(t, bob.ID, b)
			return store.Conversation{ID: "conv-1"}, nil
		},
		participants: func(ctx context.Context, conversationID string) ([]user.User, error) {
			return []user.User{alice, bob}, nil
		},
		listRecentMessages: func(ctx context.Context, conversationID string, limit int) ([]store.Message, error) {
			assert.Equal(t, HistoryLimit, limit)
			return nil, nil
		},
	}

	c := newTestClient(hub, st, alice)
	hub.Register(c)
	drainEvents(c)

	c.processInboundEvent([]byte(`{"event":"start_conversation","data":{"recipientId":"u-bob"}}`))

	env := nextEvent(t, c)
	require.Equal(t, EventConversationReady, env.Event)

	var ready ConversationReadyPayload
	require.NoError(t, decodePayload(env, &ready))
	assert.Equal(t, "conv-1", ready.Conversation.ID)
	assert.Len(t, ready.Conversation.Participants, 2)
	assert.NotNil(t, ready.Conversation.Messages)
	assert.Empty(t, ready.Conversation.Messages)

	assert.True(t, hub.InRoom("conv-1", c))
}

func TestClient_StartConversationWithSelf(t *testing.T) {
	hub := NewHub()

	c := newTestClient(hub, &mockStore{}, alice)
	hub.Register(c)
	drainEvents(c)

	c.processInboundEvent([]byte(`{"event":"start_conversation","data":{"recipientId":"u-alice"}}`))

	env := nextEvent(t, c)
	require.Equal(t, EventError, env.Event)

	var errPayload ErrorPayload
	require.NoError(t, decodePayload(env, &errPayload))
	assert.Equal(t, errs.ErrSelfConversation, errPayload.Code)
}

func TestClient_StartConversationUnknownRecipient(t *testing.T) {
	hub := NewHub()

	st := &mockStore{
		getUserByID: func(ctx context.Context, id string) (user.User, error) {
			return user.User{}, store.ErrNotFound
		},
	}

	c := newTestClient(hub, st, alice)
	hub.Register(c)
	drainEvents(c)

	c.processInboundEvent([]byte(`{"event":"start_conversation","data":{"recipientId":"u-ghost"}}`))

	env := nextEvent(t, c)
	require.Equal(t, EventError, env.Event)

	var errPayload ErrorPayload
	require.NoError(t, decodePayload(env, &errPayload))
	assert.Equal(t, errs.ErrRecipientNotFound, errPayload.Code)
}

func TestClient_JoinConversationRejectsNonParticipant(t *testing.T) {
	hub := NewHub()

	st := &mockStore{
		isParticipant: func(ctx context.Context, conversationID, userID string) (bool, error) {
			return false, nil
		},
	}

	c := newTestClient(hub, st, alice)
	hub.Register(c)
	drainEvents(c)

	c.processInboundEvent([]byte(`{"event":"join_conversation","data":{"conversationId":"conv-1"}}`))

	env := nextEvent(t, c)
	require.Equal(t, EventError, env.Event)

	var errPayload ErrorPayload
	require.NoError(t, decodePayload(env, &errPayload))
	assert.Equal(t, errs.ErrNotParticipant, errPayload.Code)

	assert.False(t, hub.InRoom("conv-1", c))
}

func TestClient_JoinConversationAcceptsBareStringRef(t *testing.T) {
	hub := NewHub()

	st := &mockStore{
		isParticipant: func(ctx context.Context, conversationID, userID string) (bool, error) {
			assert.Equal(t, "conv-1", conversationID)
			return true, nil
		},
	}

	c := newTestClient(hub, st, alice)
	hub.Register(c)
	drainEvents(c)

	c.processInboundEvent([]byte(`{"event":"join_conversation","data":"conv-1"}`))

	requireNoEvent(t, c)
	assert.True(t, hub.InRoom("conv-1", c))
}

func TestClient_SendMessageRejectsEmptyContent(t *testing.T) {
	hub := NewHub()

	appendCalled := false
	st := &mockStore{
		appendMessage: func(ctx context.Context, conversationID, senderID, content string, attachments []store.Attachment) (store.Message, error) {
			appendCalled = true
			return store.Message{}, nil
		},
	}

	c := newTestClient(hub, st, alice)
	hub.Register(c)
	hub.Join("conv-1", c)
	drainEvents(c)

	c.processInboundEvent([]byte(`{"event":"send_message","data":{"conversationId":"conv-1","content":"   "}}`))

	env := nextEvent(t, c)
	require.Equal(t, EventError, env.Event)

	var errPayload ErrorPayload
	require.NoError(t, decodePayload(env, &errPayload))
	assert.Equal(t, errs.ErrEmptyMessageContent, errPayload.Code)

	assert.False(t, appendCalled, "blank messages must not reach the ledger")
	requireNoEvent(t, c)
}

func TestClient_SendMessageBroadcastsToRoomIncludingSender(t *testing.T) {
	hub := NewHub()

	now := time.Now()
	st := &mockStore{
		isParticipant: func(ctx context.Context, conversationID, userID string) (bool, error) {
			return true, nil
		},
		appendMessage: func(ctx context.Context, conversationID, senderID, content string, attachments []store.Attachment) (store.Message, error) {
			assert.Equal(t, "conv-1", conversationID)
			assert.Equal(t, alice.ID, senderID)
			assert.Equal(t, "hello", content)
			return store.Message{
				ID:             "msg-1",
				ConversationID: conversationID,
				SenderID:       senderID,
				Content:        content,
				CreatedAt:      now,
				Sender:         alice,
			}, nil
		},
	}

	sender := newTestClient(hub, st, alice)
	other := newTestClient(hub, st, bob)
	hub.Register(sender)
	hub.Register(other)
	hub.Join("conv-1", sender)
	hub.Join("conv-1", other)
	drainEvents(sender)
	drainEvents(other)

	sender.processInboundEvent([]byte(`{"event":"send_message","data":{"conversationId":"conv-1","content":"hello"}}`))

	for _, c := range []*Client{sender, other} {
		env := nextEvent(t, c)
		require.Equal(t, EventNewMessage, env.Event)

		var msg store.Message
		require.NoError(t, decodePayload(env, &msg))
		assert.Equal(t, "msg-1", msg.ID)
		assert.Equal(t, "hello", msg.Content)
		assert.Equal(t, alice.ID, msg.Sender.ID)
	}
}

func TestClient_SendMessageRejectsNonParticipant(t *testing.T) {
	hub := NewHub()

	st := &mockStore{
		isParticipant: func(ctx context.Context, conversationID, userID string) (bool, error) {
			return false, nil
		},
	}

	c := newTestClient(hub, st, alice)
	hub.Register(c)
	drainEvents(c)

	c.processInboundEvent([]byte(`{"event":"send_message","data":{"conversationId":"conv-9","content":"hi"}}`))

	env := nextEvent(t, c)
	require.Equal(t, EventError, env.Event)

	var errPayload ErrorPayload
	require.NoError(t, decodePayload(env, &errPayload))
	assert.Equal(t, errs.ErrNotParticipant, errPayload.Code)
}

func TestClient_SendMessageResolvesRecipient(t *testing.T) {
	hub := NewHub()

	st := &mockStore{
		getOrCreateDirect: func(ctx context.Context, a, b string) (store.Conversation, error) {
			return store.Conversation{ID: "conv-1"}, nil
		},
		isParticipant: func(ctx context.Context, conversationID, userID string) (bool, error) {
			return true, nil
		},
		appendMessage: func(ctx context.Context, conversationID, senderID, content string, attachments []store.Attachment) (store.Message, error) {
			return store.Message{ID: "msg-1", ConversationID: conversationID, SenderID: senderID, Content: content, Sender: alice}, nil
		},
	}

	c := newTestClient(hub, st, alice)
	hub.Register(c)
	drainEvents(c)

	c.processInboundEvent([]byte(`{"event":"send_message","data":{"recipientId":"u-bob","content":"hi"}}`))

	// Resolving by recipient joins the sender to the conversation's room,
	// so the sender receives the broadcast copy.
	assert.True(t, hub.InRoom("conv-1", c))

	env := nextEvent(t, c)
	assert.Equal(t, EventNewMessage, env.Event)
}

func TestClient_SendMessageRejectsForeignAttachmentKey(t *testing.T) {
	hub := NewHub()

	appendCalled := false
	st := &mockStore{
		isParticipant: func(ctx context.Context, conversationID, userID string) (bool, error) {
			return true, nil
		},
		appendMessage: func(ctx context.Context, conversationID, senderID, content string, attachments []store.Attachment) (store.Message, error) {
			appendCalled = true
			return store.Message{}, nil
		},
	}

	c := newTestClient(hub, st, alice)
	hub.Register(c)
	drainEvents(c)

	c.processInboundEvent([]byte(`{"event":"send_message","data":{"conversationId":"conv-1","content":"pic","attachments":[{"fileKey":"chat/conv-2/abc.png","fileName":"abc.png","mimeType":"image/png","fileSize":100}]}}`))

	env := nextEvent(t, c)
	require.Equal(t, EventError, env.Event)

	var errPayload ErrorPayload
	require.NoError(t, decodePayload(env, &errPayload))
	assert.Equal(t, errs.ErrAttachmentKeyInvalid, errPayload.Code)
	assert.False(t, appendCalled)
}

func TestClient_TypingIgnoredOutsideRoom(t *testing.T) {
	hub := NewHub()

	c := newTestClient(hub, &mockStore{}, alice)
	other := newTestClient(hub, &mockStore{}, bob)
	hub.Register(c)
	hub.Register(other)
	hub.Join("conv-1", other)
	drainEvents(c)
	drainEvents(other)

	c.processInboundEvent([]byte(`{"event":"typing","data":{"conversationId":"conv-1"}}`))

	requireNoEvent(t, c)
	requireNoEvent(t, other)
}

func TestClient_TypingBroadcastsToOthersOnly(t *testing.T) {
	hub := NewHub()

	c := newTestClient(hub, &mockStore{}, alice)
	other := newTestClient(hub, &mockStore{}, bob)
	hub.Register(c)
	hub.Register(other)
	hub.Join("conv-1", c)
	hub.Join("conv-1", other)
	drainEvents(c)
	drainEvents(other)

	c.processInboundEvent([]byte(`{"event":"typing","data":{"conversationId":"conv-1"}}`))

	requireNoEvent(t, c)

	env := nextEvent(t, other)
	require.Equal(t, EventUserTyping, env.Event)

	var typing TypingPayload
	require.NoError(t, decodePayload(env, &typing))
	assert.Equal(t, alice.ID, typing.UserID)
	assert.Equal(t, "conv-1", typing.ConversationID)

	c.processInboundEvent([]byte(`{"event":"stop_typing","data":{"conversationId":"conv-1"}}`))

	env = nextEvent(t, other)
	assert.Equal(t, EventUserStoppedTyping, env.Event)
}

func TestClient_MarkAsRead(t *testing.T) {
	hub := NewHub()

	var gotConversation, gotExcept string
	st := &mockStore{
		isParticipant: func(ctx context.Context, conversationID, userID string) (bool, error) {
			return true, nil
		},
		markReadBulk: func(ctx context.Context, conversationID, exceptSenderID string) (int64, error) {
			gotConversation = conversationID
			gotExcept = exceptSenderID
			return 3, nil
		},
	}

	c := newTestClient(hub, st, alice)
	other := newTestClient(hub, st, bob)
	hub.Register(c)
	hub.Register(other)
	hub.Join("conv-1", c)
	hub.Join("conv-1", other)
	drainEvents(c)
	drainEvents(other)

	c.processInboundEvent([]byte(`{"event":"mark_as_read","data":{"conversationId":"conv-1"}}`))

	assert.Equal(t, "conv-1", gotConversation)
	assert.Equal(t, alice.ID, gotExcept)

	requireNoEvent(t, c)

	env := nextEvent(t, other)
	require.Equal(t, EventMessagesRead, env.Event)

	var read MessagesReadPayload
	require.NoError(t, decodePayload(env, &read))
	assert.Equal(t, "conv-1", read.ConversationID)
	assert.Equal(t, alice.ID, read.UserID)
}

func TestClient_InvalidJSONIgnored(t *testing.T) {
	hub := NewHub()

	c := newTestClient(hub, &mockStore{}, alice)
	hub.Register(c)
	drainEvents(c)

	c.processInboundEvent([]byte(`{not json`))
	c.processInboundEvent([]byte(`{"event":"no_such_event","data":{}}`))

	requireNoEvent(t, c)
}
