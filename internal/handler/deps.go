package handler

import (
	"context"

	"agrichat/internal/app/chat"
	"agrichat/internal/app/storage"
	"agrichat/internal/app/store"
	"agrichat/internal/app/user"
	"agrichat/internal/configs"
)

// UserStore is the slice of the persistence layer the auth handlers consume.
type UserStore interface {
	CreateUser(ctx context.Context, p store.NewUserParams) (user.User, error)
	GetUserByID(ctx context.Context, id string) (user.User, error)
	GetAccountByUsername(ctx context.Context, username string) (store.Account, error)
	GetAccountByID(ctx context.Context, id string) (store.Account, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id string) error
}

// ConversationStore is the slice of the persistence layer the REST
// conversation handlers consume. It reflects the same ledger the event
// channel writes through, so the two surfaces stay behaviorally consistent.
type ConversationStore interface {
	ListConversations(ctx context.Context, userID string) ([]store.ConversationSummary, error)
	ListMessages(ctx context.Context, conversationID string) ([]store.Message, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	AppendMessage(ctx context.Context, conversationID, senderID, content string, attachments []store.Attachment) (store.Message, error)
}

// AppDeps bundles the dependencies shared by all HTTP handlers.
type AppDeps struct {
	Hub            *chat.Hub
	Config         *configs.AppConfig
	Users          UserStore
	Conversations  ConversationStore
	ChatStore      chat.Store
	StorageService storage.StorageService
}
