package domain

import "errors"

// Domain errors - use these for consistent error handling
var (
	// Auth errors
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrTokenInvalid       = errors.New("invalid token")

	// Group errors
	ErrGroupNotFound  = errors.New("group not found")
	ErrNotMember      = errors.New("user is not a member of this group")
	ErrAlreadyMember  = errors.New("user is already a member")
	ErrNotGroupAdmin  = errors.New("only group admins can do that")
	ErrCannotRemoveMe = errors.New("cannot remove the last admin")
	ErrGroupFull      = errors.New("group has reached its member limit")

	// Message errors
	ErrMessageNotFound = errors.New("message not found")
	ErrEmptyMessage    = errors.New("message cannot be empty")
	ErrMessageTooLong  = errors.New("message exceeds 10000 characters")
	ErrNotSender       = errors.New("only the sender can do that")

	// Attachment errors
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrAttachmentNotReady = errors.New("attachment upload not complete")
)

// MaxMessageLength bounds body_text for direct and group messages.
const MaxMessageLength = 10000
