package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// User.ToPublic Tests
// =============================================================================

func TestUser_ToPublic_CopiesProfileFields(t *testing.T) {
	user := &User{
		ID:          uuid.New(),
		Username:    "alice",
		Email:       "alice@example.com",
		FirstName:   "Alice",
		LastName:    "Walker",
		DisplayName: "Alice W",
		AvatarURL:   "https://example.com/alice.png",
	}

	pub := user.ToPublic()

	assert.Equal(t, user.ID, pub.ID)
	assert.Equal(t, "alice", pub.Username)
	assert.Equal(t, "Alice", pub.FirstName)
	assert.Equal(t, "Walker", pub.LastName)
	assert.Equal(t, "Alice W", pub.DisplayName)
	assert.Equal(t, "https://example.com/alice.png", pub.AvatarURL)
	assert.False(t, pub.IsOnline)
}

func TestUser_ToPublic_NeverExposesEmail(t *testing.T) {
	data, err := json.Marshal((&User{ID: uuid.New(), Username: "carol", Email: "carol@hidden.example"}).ToPublic())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden.example")
}

// =============================================================================
// RefreshToken.IsValid Tests
// =============================================================================

func TestRefreshToken_IsValid(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(24 * time.Hour)

	tests := []struct {
		name    string
		expires time.Time
		revoked *time.Time
		want    bool
	}{
		{"live", future, nil, true},
		{"expired", past, nil, false},
		{"revoked", future, &past, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &RefreshToken{ID: uuid.New(), UserID: uuid.New(), ExpiresAt: tt.expires, RevokedAt: tt.revoked}
			assert.Equal(t, tt.want, rt.IsValid())
		})
	}
}

// =============================================================================
// DirectMessage Tests
// =============================================================================

func TestDirectMessage_Redact_DeletedForEveryone(t *testing.T) {
	attID := uuid.New()
	msg := &DirectMessage{
		BodyText:           "secret",
		AttachmentID:       &attID,
		MediaKind:          MediaKindVoice,
		DeletedForEveryone: true,
	}

	msg.Redact()

	assert.Empty(t, msg.BodyText)
	assert.Nil(t, msg.AttachmentID)
	assert.Equal(t, MediaKindNone, msg.MediaKind)
}

func TestDirectMessage_Redact_KeepsLiveMessage(t *testing.T) {
	msg := &DirectMessage{BodyText: "hello"}
	msg.Redact()
	assert.Equal(t, "hello", msg.BodyText)
}

func TestDirectMessage_PeerAndParticipant(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	msg := &DirectMessage{SenderID: a, RecipientID: b}

	assert.Equal(t, b, msg.Peer(a))
	assert.Equal(t, a, msg.Peer(b))
	assert.True(t, msg.IsParticipant(a))
	assert.True(t, msg.IsParticipant(b))
	assert.False(t, msg.IsParticipant(c))
}

// =============================================================================
// Attachment Tests
// =============================================================================

func TestAttachment_MediaKind(t *testing.T) {
	tests := []struct {
		mime string
		want MediaKind
	}{
		{"audio/webm", MediaKindVoice},
		{"audio/mpeg", MediaKindVoice},
		{"image/png", MediaKindImage},
		{"application/pdf", MediaKindFile},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			att := &Attachment{MimeType: tt.mime}
			assert.Equal(t, tt.want, att.MediaKind())
		})
	}
}

func TestMemberRole_Values(t *testing.T) {
	assert.Equal(t, MemberRole("member"), MemberRoleMember)
	assert.Equal(t, MemberRole("admin"), MemberRoleAdmin)
}
