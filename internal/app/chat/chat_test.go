package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"agrichat/internal/app/store"
	"agrichat/internal/app/user"
)

// mockStore implements Store with per-method function fields. Methods a test
// does not expect to be called are left nil and panic with a clear message.
type mockStore struct {
	getUserByID        func(ctx context.Context, id string) (user.User, error)
	getOrCreateDirect  func(ctx context.Context, a, b string) (store.Conversation, error)
	participants       func(ctx context.Context, conversationID string) ([]user.User, error)
	isParticipant      func(ctx context.Context, conversationID, userID string) (bool, error)
	appendMessage      func(ctx context.Context, conversationID, senderID, content string, attachments []store.Attachment) (store.Message, error)
	listRecentMessages func(ctx context.Context, conversationID string, limit int) ([]store.Message, error)
	markReadBulk       func(ctx context.Context, conversationID, exceptSenderID string) (int64, error)
}

func (m *mockStore) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if m.getUserByID == nil {
		panic("unexpected call: GetUserByID")
	}
	return m.getUserByID(ctx, id)
}

func (m *mockStore) GetOrCreateDirect(ctx context.Context, a, b string) (store.Conversation, error) {
	if m.getOrCreateDirect == nil {
		panic("unexpected call: GetOrCreateDirect")
	}
	return m.getOrCreateDirect(ctx, a, b)
}

func (m *mockStore) Participants(ctx context.Context, conversationID string) ([]user.User, error) {
	if m.participants == nil {
		panic("unexpected call: Participants")
	}
	return m.participants(ctx, conversationID)
}

func (m *mockStore) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	if m.isParticipant == nil {
		panic("unexpected call: IsParticipant")
	}
	return m.isParticipant(ctx, conversationID, userID)
}

func (m *mockStore) AppendMessage(ctx context.Context, conversationID, senderID, content string, attachments []store.Attachment) (store.Message, error) {
	if m.appendMessage == nil {
		panic("unexpected call: AppendMessage")
	}
	return m.appendMessage(ctx, conversationID, senderID, content, attachments)
}

func (m *mockStore) ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]store.Message, error) {
	if m.listRecentMessages == nil {
		panic("unexpected call: ListRecentMessages")
	}
	return m.listRecentMessages(ctx, conversationID, limit)
}

func (m *mockStore) MarkReadBulk(ctx context.Context, conversationID, exceptSenderID string) (int64, error) {
	if m.markReadBulk == nil {
		panic("unexpected call: MarkReadBulk")
	}
	return m.markReadBulk(ctx, conversationID, exceptSenderID)
}

// newTestClient builds a Client without a live socket. Handlers only touch the
// send queue, so tests read their output straight from c.send.
func newTestClient(hub *Hub, st Store, u user.User) *Client {
	return NewClient(hub, st, nil, u)
}

// wsPair returns the server and client halves of a real WebSocket connection,
// for tests that exercise close frames.
func wsPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverConns := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { clientConn.Close() })

	serverConn := <-serverConns
	t.Cleanup(func() { serverConn.Close() })

	return serverConn, clientConn
}

// nextEvent pops one queued frame from the client's send channel.
func nextEvent(t *testing.T, c *Client) Envelope {
	t.Helper()

	select {
	case raw := <-c.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	default:
		t.Fatal("expected a queued event, send channel is empty")
		return Envelope{}
	}
}

// decodePayload unmarshals an envelope's data into the given payload struct.
func decodePayload(env Envelope, v any) error {
	return json.Unmarshal(env.Data, v)
}

// requireNoEvent asserts that nothing is queued for the client.
func requireNoEvent(t *testing.T, c *Client) {
	t.Helper()

	select {
	case raw := <-c.send:
		t.Fatalf("expected no queued event, got: %s", raw)
	default:
	}
}

// drainEvents discards everything currently queued for the client.
func drainEvents(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}
