/*
Package chat contains the core logic for the real-time conversation layer:
connection lifecycle, presence tracking, room membership, and event fan-out.

This file defines the event channel protocol: named events exchanged between
client and server, with one tagged payload struct per event, validated on
receipt. Arbitrary untyped payloads are rejected at this boundary.
*/
package chat

import (
	"encoding/json"
	"strings"

	"agrichat/internal/app/store"
	"agrichat/internal/app/user"
)

// Client→Server events.
const (
	EventStartConversation = "start_conversation"
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventSendMessage       = "send_message"
	EventTyping            = "typing"
	EventStopTyping        = "stop_typing"
	EventMarkAsRead        = "mark_as_read"
)

// Server→Client events.
const (
	EventConversationReady = "conversation_ready"
	EventNewMessage        = "new_message"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
	EventMessagesRead      = "messages_read"
	EventUserOnline        = "user_online"
	EventUserOffline       = "user_offline"
	EventError             = "error"
)

// Envelope is the wire frame of every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals an outbound event envelope with the given payload.
func NewEvent(event string, data any) ([]byte, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: dataBytes})
}

// StartConversationPayload opens (or resumes) the direct conversation with a recipient.
type StartConversationPayload struct {
	RecipientID string `json:"recipientId"`
}

// ConversationRef targets an existing conversation.
type ConversationRef struct {
	ConversationID string `json:"conversationId"`
}

// DecodeConversationRef accepts either a {"conversationId": "..."} object or a
// bare JSON string carrying the conversation id, which older clients send for
// join/leave events.
func DecodeConversationRef(data json.RawMessage) (ConversationRef, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return ConversationRef{}, err
		}
		return ConversationRef{ConversationID: id}, nil
	}

	var ref ConversationRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return ConversationRef{}, err
	}
	return ref, nil
}

// SendMessagePayload carries an outbound message. Exactly one of ConversationID
// or RecipientID must identify the target: when only RecipientID is present the
// direct conversation is resolved (or created) first.
type SendMessagePayload struct {
	ConversationID string             `json:"conversationId,omitempty"`
	RecipientID    string             `json:"recipientId,omitempty"`
	Content        string             `json:"content"`
	Attachments    []store.Attachment `json:"attachments,omitempty"`
}

// ConversationReadyPayload answers start_conversation with the resolved
// conversation, its participants, and the most recent message history.
type ConversationReadyPayload struct {
	Conversation ConversationDetail `json:"conversation"`
}

// ConversationDetail is the client view of a conversation.
type ConversationDetail struct {
	ID           string          `json:"id"`
	Participants []user.User     `json:"participants"`
	Messages     []store.Message `json:"messages"`
}

// TypingPayload is the ephemeral typing indicator broadcast to other room members.
type TypingPayload struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

// MessagesReadPayload notifies room members that a user read the conversation.
type MessagesReadPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// PresencePayload is the global online/offline notification.
type PresencePayload struct {
	UserID string `json:"userId"`
}

// ErrorPayload is the unicast error event.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
