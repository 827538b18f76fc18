package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/observer/chatwave/internal/auth"
	"github.com/observer/chatwave/internal/domain"
	"github.com/observer/chatwave/internal/realtime"
	"github.com/observer/chatwave/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newRequest builds a request authenticated as userID (uuid.Nil for none)
func newRequest(t *testing.T, method, target string, userID uuid.UUID, body interface{}) *http.Request {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	r := httptest.NewRequest(method, target, rd)
	if userID != uuid.Nil {
		r = r.WithContext(auth.WithPrincipal(r.Context(), &auth.Principal{UserID: userID, Username: "tester"}))
	}
	return r
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

// =============================================================================
// Users
// =============================================================================

type fakeUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newFakeUsers(users ...*domain.User) *fakeUsers {
	f := &fakeUsers{users: make(map[uuid.UUID]*domain.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Search(_ context.Context, query string, limit int) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.User
	for _, u := range f.users {
		if len(out) < limit && len(u.Username) >= len(query) && u.Username[:len(query)] == query {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeUsers) Update(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func newUser(name string) *domain.User {
	return &domain.User{ID: uuid.New(), Username: name, Email: name + "@example.com"}
}

// =============================================================================
// Direct messages
// =============================================================================

type fakeMessages struct {
	mu       sync.Mutex
	messages map[uuid.UUID]*domain.DirectMessage
	hidden   map[uuid.UUID]map[uuid.UUID]bool // message -> user
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{
		messages: make(map[uuid.UUID]*domain.DirectMessage),
		hidden:   make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (f *fakeMessages) Create(_ context.Context, msg *domain.DirectMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *msg
	f.messages[msg.ID] = &cp
	return nil
}

func (f *fakeMessages) GetByID(_ context.Context, id uuid.UUID) (*domain.DirectMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	cp := *m
	cp.Redact()
	return &cp, nil
}

func (f *fakeMessages) Conversation(_ context.Context, userID, peerID uuid.UUID, _ *time.Time, limit int) ([]domain.DirectMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DirectMessage
	for _, m := range f.messages {
		if !m.IsParticipant(userID) || m.Peer(userID) != peerID || f.hidden[m.ID][userID] {
			continue
		}
		cp := *m
		cp.Redact()
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMessages) DeleteForUser(_ context.Context, messageID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hidden[messageID] == nil {
		f.hidden[messageID] = make(map[uuid.UUID]bool)
	}
	f.hidden[messageID][userID] = true
	return nil
}

func (f *fakeMessages) DeleteForEveryone(_ context.Context, messageID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[messageID]
	if !ok {
		return domain.ErrMessageNotFound
	}
	m.DeletedForEveryone = true
	m.Redact()
	return nil
}

// =============================================================================
// Groups
// =============================================================================

type fakeGroups struct {
	mu       sync.Mutex
	groups   map[uuid.UUID]*domain.Group
	members  map[uuid.UUID][]domain.GroupMember
	messages map[uuid.UUID][]domain.GroupMessage
}

func newFakeGroups() *fakeGroups {
	return &fakeGroups{
		groups:   make(map[uuid.UUID]*domain.Group),
		members:  make(map[uuid.UUID][]domain.GroupMember),
		messages: make(map[uuid.UUID][]domain.GroupMessage),
	}
}

func (f *fakeGroups) Create(_ context.Context, group *domain.Group, memberIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *group
	f.groups[group.ID] = &cp
	for _, id := range memberIDs {
		role := domain.MemberRoleMember
		if group.CreatedBy != nil && *group.CreatedBy == id {
			role = domain.MemberRoleAdmin
		}
		f.members[group.ID] = append(f.members[group.ID], domain.GroupMember{GroupID: group.ID, UserID: id, Role: role})
	}
	return nil
}

func (f *fakeGroups) GetByID(_ context.Context, id uuid.UUID) (*domain.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	if !ok {
		return nil, domain.ErrGroupNotFound
	}
	cp := *g
	cp.Members = append([]domain.GroupMember(nil), f.members[id]...)
	return &cp, nil
}

func (f *fakeGroups) ListForUser(_ context.Context, userID uuid.UUID) ([]domain.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Group
	for id, members := range f.members {
		for _, m := range members {
			if m.UserID == userID {
				out = append(out, *f.groups[id])
			}
		}
	}
	return out, nil
}

func (f *fakeGroups) GetMemberRole(_ context.Context, groupID, userID uuid.UUID) (domain.MemberRole, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members[groupID] {
		if m.UserID == userID {
			return m.Role, nil
		}
	}
	return "", domain.ErrNotMember
}

func (f *fakeGroups) AddMember(_ context.Context, groupID, userID uuid.UUID, role domain.MemberRole) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members[groupID] {
		if m.UserID == userID {
			return domain.ErrAlreadyMember
		}
	}
	if len(f.members[groupID]) >= domain.MaxGroupMembers {
		return domain.ErrGroupFull
	}
	f.members[groupID] = append(f.members[groupID], domain.GroupMember{GroupID: groupID, UserID: userID, Role: role})
	return nil
}

func (f *fakeGroups) RemoveMember(_ context.Context, groupID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := f.members[groupID]
	for i, m := range members {
		if m.UserID == userID {
			f.members[groupID] = append(members[:i:i], members[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotMember
}

// MembersOf lets the fake back a realtime.Router
func (f *fakeGroups) MembersOf(_ context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(f.members[groupID]))
	for _, m := range f.members[groupID] {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

func (f *fakeGroups) CountMembers(_ context.Context, groupID uuid.UUID) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	admins := 0
	for _, m := range f.members[groupID] {
		if m.Role == domain.MemberRoleAdmin {
			admins++
		}
	}
	return len(f.members[groupID]), admins, nil
}

func (f *fakeGroups) CreateMessage(_ context.Context, msg *domain.GroupMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[msg.GroupID] = append(f.messages[msg.GroupID], *msg)
	return nil
}

func (f *fakeGroups) Messages(_ context.Context, groupID uuid.UUID, _ *time.Time, limit int) ([]domain.GroupMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages[groupID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]domain.GroupMessage(nil), msgs...), nil
}

// =============================================================================
// Attachments and blobs
// =============================================================================

type fakeAttachments struct {
	mu          sync.Mutex
	attachments map[uuid.UUID]*domain.Attachment
	access      map[uuid.UUID]map[uuid.UUID]bool
}

func newFakeAttachments() *fakeAttachments {
	return &fakeAttachments{
		attachments: make(map[uuid.UUID]*domain.Attachment),
		access:      make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (f *fakeAttachments) Create(_ context.Context, att *domain.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *att
	f.attachments[att.ID] = &cp
	return nil
}

func (f *fakeAttachments) GetByID(_ context.Context, id uuid.UUID) (*domain.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attachments[id]
	if !ok {
		return nil, domain.ErrAttachmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAttachments) MarkReady(_ context.Context, id uuid.UUID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attachments[id].Status = domain.AttachmentStatusReady
	return nil
}

func (f *fakeAttachments) MarkError(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attachments[id].Status = domain.AttachmentStatusError
	return nil
}

func (f *fakeAttachments) CanAccess(_ context.Context, attachmentID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.attachments[attachmentID]; ok && a.UploaderID == userID {
		return true, nil
	}
	return f.access[attachmentID][userID], nil
}

func (f *fakeAttachments) grant(attachmentID, userID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.access[attachmentID] == nil {
		f.access[attachmentID] = make(map[uuid.UUID]bool)
	}
	f.access[attachmentID][userID] = true
}

// ready stores a completed attachment owned by uploader
func (f *fakeAttachments) ready(uploader uuid.UUID, mime string) uuid.UUID {
	id := uuid.New()
	_ = f.Create(context.Background(), &domain.Attachment{
		ID:         id,
		UploaderID: uploader,
		ObjectKey:  storage.ObjectKey(uploader, id, "file"),
		Filename:   "file",
		MimeType:   mime,
		SizeBytes:  10,
		Status:     domain.AttachmentStatusReady,
	})
	return id
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string]int64
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string]int64)}
}

func (f *fakeBlobs) Bucket() string { return "test-bucket" }

func (f *fakeBlobs) PresignPut(_ context.Context, objectKey, _ string, _ time.Duration) (string, error) {
	return "https://blobs.test/put/" + objectKey, nil
}

func (f *fakeBlobs) PresignGet(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://blobs.test/get/" + objectKey, nil
}

func (f *fakeBlobs) Stat(_ context.Context, objectKey string) (*storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	size, ok := f.objects[objectKey]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return &storage.ObjectInfo{Size: size}, nil
}

func (f *fakeBlobs) Delete(_ context.Context, objectKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, objectKey)
	return nil
}

func (f *fakeBlobs) put(objectKey string, size int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[objectKey] = size
}

// =============================================================================
// Notifier
// =============================================================================

type notification struct {
	Kind    realtime.Kind
	Sender  uuid.UUID
	Target  uuid.UUID
	GroupID uuid.UUID
	Opts    realtime.GroupOptions
	Body    interface{}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) NotifyDirect(_ context.Context, kind realtime.Kind, sender, target uuid.UUID, body interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{Kind: kind, Sender: sender, Target: target, Body: body})
	return nil
}

func (n *recordingNotifier) NotifyGroup(_ context.Context, kind realtime.Kind, sender, groupID uuid.UUID, body interface{}, opts realtime.GroupOptions) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{Kind: kind, Sender: sender, GroupID: groupID, Opts: opts, Body: body})
	return nil
}

func (n *recordingNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

type fakePresence map[uuid.UUID]bool

func (p fakePresence) IsOnline(userID uuid.UUID) bool { return p[userID] }

// =============================================================================
// Live connection
// =============================================================================

// liveConn is a realtime.Conn that keeps the event types it receives
type liveConn struct {
	id, userID uuid.UUID

	mu    sync.Mutex
	types []string
}

func newLiveConn(userID uuid.UUID) *liveConn {
	return &liveConn{id: uuid.New(), userID: userID}
}

func (c *liveConn) ID() uuid.UUID     { return c.id }
func (c *liveConn) UserID() uuid.UUID { return c.userID }

func (c *liveConn) Deliver(frame []byte) bool {
	var env realtime.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = append(c.types, env.Type)
	return true
}

func (c *liveConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.types...)
}
