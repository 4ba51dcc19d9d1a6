/*
Package chat contains the core logic for the real-time conversation layer.

This file defines the Client struct, representing an active WebSocket connection
with a verified identity. It manages the connection's lifecycle, the message
communication loops (ReadPump and WritePump), and dispatches inbound events to
their handlers. A failure inside one handler is contained to that handler's
response path; it never affects other connections.
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"agrichat/internal/app/store"
	"agrichat/internal/app/user"
	"agrichat/internal/pkg/errs"
	"agrichat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 8192

	// maximum allowed size (in bytes) for text message content.
	MaxContentBytes = 5000

	// HistoryLimit is the number of most recent messages delivered with conversation_ready.
	HistoryLimit = 50

	// WsCloseCodeSessionReplaced is a custom WebSocket Close Code (4000-4999 range)
	// used to signal the client that the session was replaced by a new connection.
	WsCloseCodeSessionReplaced = 4001
)

// Client represents an active WebSocket connection and its associated user.
type Client struct {
	// the hub tracking this connection's presence and room memberships.
	hub *Hub

	// persistence layer (conversation directory + message ledger).
	store Store

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// verified identity of the connected user.
	user user.User

	// a buffered channel used to queue messages waiting to be sent to the client.
	send chan []byte

	// done guards send against queue-after-close.
	done chan struct{}

	// closeMu guards closeMsg, the close frame the WritePump delivers on exit.
	closeMu  sync.Mutex
	closeMsg []byte

	// structured logger with client context.
	logger zerolog.Logger
}

// NewClient constructs and returns a new Client instance.
func NewClient(hub *Hub, st Store, wsConn *websocket.Conn, u user.User) *Client {
	clientLogger := logx.Logger().With().
		Str("user_id", u.ID).
		Str("username", u.Username).
		Logger()

	return &Client{
		hub:    hub,
		store:  st,
		conn:   wsConn,
		user:   u,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		logger: clientLogger,
	}
}

// User returns the verified identity bound to this connection.
func (c *Client) User() user.User {
	return c.user
}

// queue attempts a non-blocking enqueue of an outbound frame.
// Frames queued after the connection is closed are dropped.
func (c *Client) queue(message []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- message:
	case <-c.done:
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping event")
	}
}

// closeSend marks the connection closed for writers and wakes the WritePump,
// which sends a plain close frame on its way out.
func (c *Client) closeSend() {
	c.closeSendWith(nil)
}

// closeSendWith stores the close frame for the WritePump to deliver and then
// marks the connection closed. The WritePump is the connection's only writer,
// so the frame is never written concurrently with a queued message or ping.
func (c *Client) closeSendWith(message []byte) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	select {
	case <-c.done:
	default:
		c.closeMsg = message
		close(c.done)
	}
}

// ReadPump handles reading events from the WebSocket connection.
// It handles heartbeats (Pong), event parsing and dispatch, and performs
// cleanup upon connection closure.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.processInboundEvent(messageBytes)
	}
}

// cleanupOnDisconnect handles the necessary cleanup steps when the client's ReadPump terminates.
// Unregistering removes the connection from all rooms and, when it was the user's
// active connection, broadcasts the offline transition.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.hub.Unregister(c)

	if err := c.conn.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Client connection close error")
	}
}

// processInboundEvent parses one inbound frame and dispatches it to its handler.
func (c *Client) processInboundEvent(messageBytes []byte) {
	var envelope Envelope

	if err := json.Unmarshal(messageBytes, &envelope); err != nil {
		c.logger.Warn().Err(err).
			Bytes("message_bytes", messageBytes).
			Msg("Client sent invalid JSON")
		return
	}

	ctx := context.Background()

	switch envelope.Event {
	case EventStartConversation:
		c.handleStartConversation(ctx, envelope.Data)

	case EventJoinConversation:
		c.handleJoinConversation(ctx, envelope.Data)

	case EventLeaveConversation:
		c.handleLeaveConversation(envelope.Data)

	case EventSendMessage:
		c.handleSendMessage(ctx, envelope.Data)

	case EventTyping:
		c.handleTyping(envelope.Data, EventUserTyping)

	case EventStopTyping:
		c.handleTyping(envelope.Data, EventUserStoppedTyping)

	case EventMarkAsRead:
		c.handleMarkAsRead(ctx, envelope.Data)

	default:
		c.logger.Warn().Str("event", envelope.Event).Msg("Client sent unsupported event")
	}
}

// handleStartConversation resolves (or lazily creates) the direct conversation
// with the recipient, joins this connection to its room, and answers the caller
// with the participant list and recent history.
func (c *Client) handleStartConversation(ctx context.Context, data json.RawMessage) {
	var payload StartConversationPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.RecipientID == "" {
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	if payload.RecipientID == c.user.ID {
		c.SendError(errs.NewError(errs.ErrSelfConversation))
		return
	}

	if _, err := c.store.GetUserByID(ctx, payload.RecipientID); err != nil {
		c.SendError(c.mapStoreError(err, errs.ErrRecipientNotFound))
		return
	}

	conversation, err := c.store.GetOrCreateDirect(ctx, c.user.ID, payload.RecipientID)
	if err != nil {
		c.SendError(c.mapStoreError(err, errs.ErrRecipientNotFound))
		return
	}

	c.hub.Join(conversation.ID, c)

	participants, err := c.store.Participants(ctx, conversation.ID)
	if err != nil {
		c.SendError(c.mapStoreError(err, errs.ErrConversationNotFound))
		return
	}

	messages, err := c.store.ListRecentMessages(ctx, conversation.ID, HistoryLimit)
	if err != nil {
		c.SendError(c.mapStoreError(err, errs.ErrConversationNotFound))
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}

	ready := ConversationReadyPayload{
		Conversation: ConversationDetail{
			ID:           conversation.ID,
			Participants: participants,
			Messages:     messages,
		},
	}

	if err := c.sendEvent(EventConversationReady, ready); err != nil {
		c.logger.Error().Err(err).Msg("Failed to send conversation_ready")
	}
}

// handleJoinConversation adds the connection to an existing conversation's room
// after verifying the caller is one of its participants.
func (c *Client) handleJoinConversation(ctx context.Context, data json.RawMessage) {
	ref, err := DecodeConversationRef(data)
	if err != nil || ref.ConversationID == "" {
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	member, err := c.store.IsParticipant(ctx, ref.ConversationID, c.user.ID)
	if err != nil {
		c.SendError(c.mapStoreError(err, errs.ErrConversationNotFound))
		return
	}
	if !member {
		c.logger.Warn().
			Str("conversation_id", ref.ConversationID).
			Msg("Join rejected: caller is not a participant.")
		c.SendError(errs.NewError(errs.ErrNotParticipant))
		return
	}

	c.hub.Join(ref.ConversationID, c)
}

// handleLeaveConversation removes the connection from the room. No persistence effect.
func (c *Client) handleLeaveConversation(data json.RawMessage) {
	ref, err := DecodeConversationRef(data)
	if err != nil || ref.ConversationID == "" {
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	c.hub.Leave(ref.ConversationID, c)
}

// handleSendMessage validates, persists, and fans out one message. The ledger
// append is the serialization point: members observe messages in the order the
// ledger accepted them.
func (c *Client) handleSendMessage(ctx context.Context, data json.RawMessage) {
	var payload SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	content := strings.TrimSpace(payload.Content)
	if content == "" && len(payload.Attachments) == 0 {
		c.SendError(errs.NewError(errs.ErrEmptyMessageContent))
		return
	}
	if len(content) > MaxContentBytes {
		c.SendError(errs.NewError(errs.ErrMessageContentTooLong))
		return
	}
	if len(payload.Attachments) > MaxAttachmentsCount {
		c.SendError(errs.NewError(errs.ErrAttachmentCountInvalid, MaxAttachmentsCount))
		return
	}

	conversationID := payload.ConversationID
	if conversationID == "" {
		if payload.RecipientID == "" {
			c.SendError(errs.NewError(errs.ErrInvalidParams))
			return
		}
		if payload.RecipientID == c.user.ID {
			c.SendError(errs.NewError(errs.ErrSelfConversation))
			return
		}

		conversation, err := c.store.GetOrCreateDirect(ctx, c.user.ID, payload.RecipientID)
		if err != nil {
			c.SendError(c.mapStoreError(err, errs.ErrRecipientNotFound))
			return
		}
		conversationID = conversation.ID
		c.hub.Join(conversationID, c)
	}

	// The conversation id may have been supplied directly by the client, so
	// membership is re-checked regardless of how it was resolved.
	member, err := c.store.IsParticipant(ctx, conversationID, c.user.ID)
	if err != nil {
		c.SendError(c.mapStoreError(err, errs.ErrConversationNotFound))
		return
	}
	if !member {
		c.SendError(errs.NewError(errs.ErrNotParticipant))
		return
	}

	keyPrefix := AttachmentKeyPrefix(conversationID)
	for _, attachment := range payload.Attachments {
		if !strings.HasPrefix(attachment.Key, keyPrefix) {
			c.SendError(errs.NewError(errs.ErrAttachmentKeyInvalid))
			return
		}
		if err := ValidateFileType(attachment.Name, attachment.MimeType); err != nil {
			c.SendError(err)
			return
		}
	}

	message, err := c.store.AppendMessage(ctx, conversationID, c.user.ID, content, payload.Attachments)
	if err != nil {
		c.SendError(c.mapStoreError(err, errs.ErrConversationNotFound))
		return
	}

	event, err := NewEvent(EventNewMessage, message)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build new_message event")
		c.SendError(errs.NewError(errs.ErrUnknown))
		return
	}

	// Every room member receives the persisted copy, the sender included, so
	// the sender's UI reflects the authoritative message rather than a local echo.
	c.hub.BroadcastRoom(conversationID, event)
}

// handleTyping broadcasts an ephemeral typing indicator to the other room
// members. Nothing is persisted and membership of the room is trusted from the
// prior join; a connection outside the room is silently ignored.
func (c *Client) handleTyping(data json.RawMessage, outEvent string) {
	ref, err := DecodeConversationRef(data)
	if err != nil || ref.ConversationID == "" {
		return
	}

	if !c.hub.InRoom(ref.ConversationID, c) {
		return
	}

	event, err := NewEvent(outEvent, TypingPayload{
		UserID:         c.user.ID,
		ConversationID: ref.ConversationID,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build typing event")
		return
	}

	c.hub.BroadcastRoomExcept(ref.ConversationID, c, event)
}

// handleMarkAsRead bulk-flips the read flag on every message in the
// conversation authored by someone else, then notifies the other room members.
func (c *Client) handleMarkAsRead(ctx context.Context, data json.RawMessage) {
	ref, err := DecodeConversationRef(data)
	if err != nil || ref.ConversationID == "" {
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	member, err := c.store.IsParticipant(ctx, ref.ConversationID, c.user.ID)
	if err != nil {
		c.SendError(c.mapStoreError(err, errs.ErrConversationNotFound))
		return
	}
	if !member {
		c.SendError(errs.NewError(errs.ErrNotParticipant))
		return
	}

	if _, err := c.store.MarkReadBulk(ctx, ref.ConversationID, c.user.ID); err != nil {
		c.SendError(c.mapStoreError(err, errs.ErrConversationNotFound))
		return
	}

	event, err := NewEvent(EventMessagesRead, MessagesReadPayload{
		ConversationID: ref.ConversationID,
		UserID:         c.user.ID,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build messages_read event")
		return
	}

	c.hub.BroadcastRoomExcept(ref.ConversationID, c, event)
}

// mapStoreError translates persistence errors into client-facing coded errors.
// Unexpected failures are logged and surfaced as a generic internal error
// without leaking internals.
func (c *Client) mapStoreError(err error, notFoundCode int) *errs.CustomError {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return errs.NewError(notFoundCode)
	case errors.Is(err, store.ErrForbidden):
		return errs.NewError(errs.ErrNotParticipant)
	default:
		c.logger.Error().Err(err).Msg("Unexpected store failure in event handler")
		return errs.NewError(errs.ErrUnknown)
	}
}

// WritePump handles writing messages from the Client.send channel to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message := <-c.send:
			if !c.writeQueuedMessage(message) {
				return
			}

		case <-c.done:
			c.closeMu.Lock()
			closeMsg := c.closeMsg
			c.closeMu.Unlock()

			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err == nil {
				if err := c.conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
					c.logger.Error().Err(err).Msg("Error writing close message")
				}
			}
			return

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage handles messages pulled from the send channel, writing them to the WebSocket.
// Returns true if the WritePump loop should continue, false if it should terminate.
func (c *Client) writeQueuedMessage(message []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// sendEvent marshals an event envelope and queues it for this connection only.
func (c *Client) sendEvent(event string, data any) error {
	message, err := NewEvent(event, data)
	if err != nil {
		c.logger.Error().Err(err).Str("event", event).Msg("Error marshaling event for client")
		return err
	}

	c.queue(message)
	return nil
}

// SendError constructs and sends an error event to this connection only.
func (c *Client) SendError(err error) {
	var code int
	var message string

	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		code = customErr.Code
		message = customErr.Message
	} else {
		code = errs.ErrUnknown
		message = "Something went wrong. Please try again."
	}

	if sendErr := c.sendEvent(EventError, ErrorPayload{Code: code, Message: message}); sendErr != nil {
		c.logger.Error().Err(sendErr).Msg("Failed to queue error event")
	}
}

// Kick closes the client's connection with a custom WebSocket Close Frame
// (Code 4001) indicating that the session was replaced. The frame travels
// through the WritePump so the connection keeps a single writer.
func (c *Client) Kick() {
	replaced := errs.NewError(errs.ErrSessionReplaced)

	c.logger.Warn().
		Int("close_code", WsCloseCodeSessionReplaced).
		Int("error_code", replaced.Code).
		Msg("Kicking replaced connection.")

	c.closeSendWith(websocket.FormatCloseMessage(WsCloseCodeSessionReplaced, replaced.Message))
}
