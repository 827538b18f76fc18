package api

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/observer/chatwave/internal/domain"
	"github.com/observer/chatwave/internal/storage"
)

// The handlers depend on these narrow interfaces. The database
// repositories satisfy them in production and tests use in-memory fakes.

// UserStore reads and updates user profiles
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Search(ctx context.Context, query string, limit int) ([]domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

// MessageStore persists direct messages
type MessageStore interface {
	Create(ctx context.Context, msg *domain.DirectMessage) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DirectMessage, error)
	Conversation(ctx context.Context, userID, peerID uuid.UUID, before *time.Time, limit int) ([]domain.DirectMessage, error)
	DeleteForUser(ctx context.Context, messageID, userID uuid.UUID) error
	DeleteForEveryone(ctx context.Context, messageID uuid.UUID) error
}

// GroupStore persists groups, memberships and group messages
type GroupStore interface {
	Create(ctx context.Context, group *domain.Group, memberIDs []uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Group, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Group, error)
	GetMemberRole(ctx context.Context, groupID, userID uuid.UUID) (domain.MemberRole, error)
	AddMember(ctx context.Context, groupID, userID uuid.UUID, role domain.MemberRole) error
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error
	CountMembers(ctx context.Context, groupID uuid.UUID) (total, admins int, err error)
	CreateMessage(ctx context.Context, msg *domain.GroupMessage) error
	Messages(ctx context.Context, groupID uuid.UUID, before *time.Time, limit int) ([]domain.GroupMessage, error)
}

// AttachmentStore tracks uploaded files
type AttachmentStore interface {
	Create(ctx context.Context, att *domain.Attachment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Attachment, error)
	MarkReady(ctx context.Context, id uuid.UUID, sha256 string) error
	MarkError(ctx context.Context, id uuid.UUID) error
	CanAccess(ctx context.Context, attachmentID, userID uuid.UUID) (bool, error)
}

// BlobStore is the object storage used for uploads
type BlobStore interface {
	Bucket() string
	PresignPut(ctx context.Context, objectKey, contentType string, expiry time.Duration) (string, error)
	PresignGet(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	Stat(ctx context.Context, objectKey string) (*storage.ObjectInfo, error)
	Delete(ctx context.Context, objectKey string) error
}

// Presence reports whether a user currently holds a live connection
type Presence interface {
	IsOnline(userID uuid.UUID) bool
}
