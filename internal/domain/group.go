package domain

import (
	"time"

	"github.com/google/uuid"
)

type MemberRole string

const (
	MemberRoleMember MemberRole = "member"
	MemberRoleAdmin  MemberRole = "admin"
)

// MaxGroupMembers caps membership at creation and on add
const MaxGroupMembers = 100

// Group is a named set of users that share a message stream
type Group struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	// Populated on fetch
	Members []GroupMember `json:"members,omitempty"`
}

// GroupMember represents a user's membership in a group
type GroupMember struct {
	GroupID  uuid.UUID  `json:"group_id"`
	UserID   uuid.UUID  `json:"user_id"`
	Role     MemberRole `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`

	// Populated on fetch
	User *PublicUser `json:"user,omitempty"`
}

// GroupMessage is a message posted to a group
type GroupMessage struct {
	ID           uuid.UUID  `json:"id"`
	GroupID      uuid.UUID  `json:"group_id"`
	SenderID     *uuid.UUID `json:"sender_id,omitempty"` // nil if sender deleted
	BodyText     string     `json:"body_text"`
	AttachmentID *uuid.UUID `json:"attachment_id,omitempty"`
	MediaKind    MediaKind  `json:"media_kind,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`

	// Populated on fetch
	Sender *PublicUser `json:"sender,omitempty"`
}
