/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Conversation and Message Business Logic Errors
	// ErrNotParticipant deliberately maps to 404: non-participants must not be able
	// to distinguish "conversation exists" from "conversation does not exist".
	ErrConversationNotFound:   {Code: ErrConversationNotFound, Message: "Conversation not found.", Status: http.StatusNotFound},
	ErrRecipientNotFound:      {Code: ErrRecipientNotFound, Message: "Recipient not found.", Status: http.StatusNotFound},
	ErrNotParticipant:         {Code: ErrNotParticipant, Message: "Conversation not found.", Status: http.StatusNotFound},
	ErrSelfConversation:       {Code: ErrSelfConversation, Message: "You cannot start a conversation with yourself.", Status: http.StatusBadRequest},
	ErrEmptyMessageContent:    {Code: ErrEmptyMessageContent, Message: "Message content cannot be empty.", Status: http.StatusBadRequest},
	ErrMessageContentTooLong:  {Code: ErrMessageContentTooLong, Message: "Message is too long.", Status: http.StatusBadRequest},
	ErrAttachmentCountInvalid: {Code: ErrAttachmentCountInvalid, Message: "A message can carry at most %d attachments.", Status: http.StatusBadRequest},
	ErrAttachmentKeyInvalid:   {Code: ErrAttachmentKeyInvalid, Message: "Invalid attachment.", Status: http.StatusBadRequest},
	ErrFileSizeTooLarge:       {Code: ErrFileSizeTooLarge, Message: "File is too large.", Status: http.StatusBadRequest},

	// 3xxx: User, Session, and Security Errors
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrSessionReplaced:    {Code: ErrSessionReplaced, Message: "You were signed in on another device.", Status: http.StatusConflict},
	ErrAlreadyLoggedIn:    {Code: ErrAlreadyLoggedIn, Message: "You are already signed in.", Status: http.StatusBadRequest},
	ErrInvalidUsername:    {Code: ErrInvalidUsername, Message: "Invalid username.", Status: http.StatusBadRequest},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Message: "Invalid password.", Status: http.StatusBadRequest},
	ErrInvalidRole:        {Code: ErrInvalidRole, Message: "Invalid account role.", Status: http.StatusBadRequest},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Message: "Username is already taken.", Status: http.StatusConflict},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Incorrect username or password.", Status: http.StatusUnauthorized},
	ErrUserNotFound:       {Code: ErrUserNotFound, Message: "Account not found.", Status: http.StatusNotFound},
	ErrOldPasswordInvalid: {Code: ErrOldPasswordInvalid, Message: "Current password is incorrect.", Status: http.StatusBadRequest},

	// 5xxx: Internal System Errors
	ErrUnknown:           {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again.", Status: http.StatusInternalServerError},
}
