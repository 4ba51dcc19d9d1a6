/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients, over REST
responses and WebSocket error events alike.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1005

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1006
)

// 2xxx: Conversation and Message Business Logic Errors
const (
	// ErrConversationNotFound indicates that the target conversation does not exist.
	ErrConversationNotFound = 2101

	// ErrRecipientNotFound indicates that the recipient user id does not resolve to an existing user.
	ErrRecipientNotFound = 2102

	// ErrNotParticipant indicates the caller is not a participant of the target conversation.
	// Surfaced over REST as 404 so conversation existence is not leaked to non-participants.
	ErrNotParticipant = 2103

	// ErrSelfConversation indicates an attempt to start a direct conversation with oneself.
	ErrSelfConversation = 2104

	// ErrEmptyMessageContent indicates the message content was empty or all-whitespace.
	ErrEmptyMessageContent = 2201

	// ErrMessageContentTooLong indicates that the message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 2202

	// ErrAttachmentCountInvalid indicates an invalid number of attachments on a message.
	ErrAttachmentCountInvalid = 2203

	// ErrAttachmentKeyInvalid indicates an attachment key outside the conversation's storage prefix.
	ErrAttachmentKeyInvalid = 2204

	// ErrFileSizeTooLarge indicates an attachment exceeding the size limit.
	ErrFileSizeTooLarge = 2205
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates a missing or unverifiable identity.
	ErrUnauthorized = 3001

	// ErrSessionReplaced indicates that the current connection was terminated
	// because the same user opened a newer connection.
	ErrSessionReplaced = 3002

	// ErrAlreadyLoggedIn indicates an authenticated caller hit a guest-only endpoint.
	ErrAlreadyLoggedIn = 3003

	// ErrInvalidUsername indicates a username failing format validation.
	ErrInvalidUsername = 3004

	// ErrInvalidPassword indicates a password failing length validation.
	ErrInvalidPassword = 3005

	// ErrInvalidRole indicates a role outside the fixed marketplace set.
	ErrInvalidRole = 3006

	// ErrUserAlreadyExists indicates a registration conflict on username.
	ErrUserAlreadyExists = 3007

	// ErrInvalidCredentials indicates a failed login attempt.
	ErrInvalidCredentials = 3008

	// ErrUserNotFound indicates the referenced account does not exist.
	ErrUserNotFound = 3009

	// ErrOldPasswordInvalid indicates the current password check failed on password change.
	ErrOldPasswordInvalid = 3010
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrFileStorageFailed indicates a failure talking to the attachment storage backend.
	ErrFileStorageFailed = 5001
)
