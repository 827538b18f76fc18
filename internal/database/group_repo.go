package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/observer/chatwave/internal/domain"
)

// GroupRepository stores groups, their members and their messages
type GroupRepository struct {
	db *DB
}

func NewGroupRepository(db *DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// Create inserts a group with its creator as admin and the rest as members
func (r *GroupRepository) Create(ctx context.Context, group *domain.Group, memberIDs []uuid.UUID) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO groups (id, title, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
		`, group.ID, group.Title, group.CreatedBy, group.CreatedAt)
		if err != nil {
			return err
		}

		for _, userID := range memberIDs {
			role := domain.MemberRoleMember
			if group.CreatedBy != nil && userID == *group.CreatedBy {
				role = domain.MemberRoleAdmin
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO group_members (group_id, user_id, role)
				VALUES ($1, $2, $3)
				ON CONFLICT DO NOTHING
			`, group.ID, userID, role)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByID returns a group with its members
func (r *GroupRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Group, error) {
	g := &domain.Group{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, title, created_by, created_at, updated_at
		FROM groups WHERE id = $1
	`, id).Scan(&g.ID, &g.Title, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT gm.user_id, gm.role, gm.joined_at, u.username, u.display_name, u.avatar_url
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1
		ORDER BY gm.joined_at, gm.user_id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.GroupMember
		var role string
		var u domain.PublicUser
		if err := rows.Scan(&m.UserID, &role, &m.JoinedAt, &u.Username, &u.DisplayName, &u.AvatarURL); err != nil {
			return nil, err
		}
		m.GroupID = id
		m.Role = domain.MemberRole(role)
		u.ID = m.UserID
		m.User = &u
		g.Members = append(g.Members, m)
	}
	return g, rows.Err()
}

// ListForUser returns the groups userID belongs to, most recently active first
func (r *GroupRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Group, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT g.id, g.title, g.created_by, g.created_at, g.updated_at
		FROM groups g
		JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.user_id = $1
		ORDER BY g.updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.Title, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// MembersOf returns member ids in join order
func (r *GroupRepository) MembersOf(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT user_id FROM group_members
		WHERE group_id = $1
		ORDER BY joined_at, user_id
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetMemberRole returns userID's role, or ErrNotMember
func (r *GroupRepository) GetMemberRole(ctx context.Context, groupID, userID uuid.UUID) (domain.MemberRole, error) {
	var role string
	err := r.db.Pool.QueryRow(ctx, `
		SELECT role FROM group_members WHERE group_id = $1 AND user_id = $2
	`, groupID, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNotMember
	}
	return domain.MemberRole(role), err
}

// AddMember adds userID to the group. The group row is locked while the
// member count is checked, so concurrent adds cannot pass MaxGroupMembers.
func (r *GroupRepository) AddMember(ctx context.Context, groupID, userID uuid.UUID, role domain.MemberRole) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		var total int
		err := tx.QueryRow(ctx, `
			SELECT (SELECT COUNT(*) FROM group_members WHERE group_id = g.id)
			FROM groups g WHERE g.id = $1
			FOR UPDATE
		`, groupID).Scan(&total)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrGroupNotFound
		}
		if err != nil {
			return err
		}
		if total >= domain.MaxGroupMembers {
			return domain.ErrGroupFull
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO group_members (group_id, user_id, role)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, groupID, userID, role)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrAlreadyMember
		}
		return nil
	})
}

// RemoveMember removes userID from the group
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `
		DELETE FROM group_members WHERE group_id = $1 AND user_id = $2
	`, groupID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotMember
	}
	return nil
}

// CountMembers returns total members and how many are admins
func (r *GroupRepository) CountMembers(ctx context.Context, groupID uuid.UUID) (total, admins int, err error) {
	err = r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE role = 'admin')
		FROM group_members WHERE group_id = $1
	`, groupID).Scan(&total, &admins)
	return total, admins, err
}

// CreateMessage persists a group message and bumps the group's activity time
func (r *GroupRepository) CreateMessage(ctx context.Context, msg *domain.GroupMessage) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO group_messages (id, group_id, sender_id, body_text, attachment_id, media_kind, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, msg.ID, msg.GroupID, msg.SenderID, msg.BodyText, msg.AttachmentID, string(msg.MediaKind), msg.CreatedAt)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `UPDATE groups SET updated_at = $2 WHERE id = $1`, msg.GroupID, msg.CreatedAt)
		return err
	})
}

// Messages returns group messages newest first with cursor pagination
func (r *GroupRepository) Messages(ctx context.Context, groupID uuid.UUID, before *time.Time, limit int) ([]domain.GroupMessage, error) {
	if before == nil {
		far := time.Now().Add(time.Hour)
		before = &far
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT m.id, m.group_id, m.sender_id, m.body_text, m.attachment_id, m.media_kind, m.created_at,
		       u.id, u.username, u.display_name, u.avatar_url
		FROM group_messages m
		LEFT JOIN users u ON u.id = m.sender_id
		WHERE m.group_id = $1 AND m.created_at < $2
		ORDER BY m.created_at DESC
		LIMIT $3
	`, groupID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.GroupMessage
	for rows.Next() {
		var m domain.GroupMessage
		var kind string
		var userID *uuid.UUID
		var username, displayName, avatarURL *string

		err := rows.Scan(
			&m.ID, &m.GroupID, &m.SenderID, &m.BodyText, &m.AttachmentID, &kind, &m.CreatedAt,
			&userID, &username, &displayName, &avatarURL,
		)
		if err != nil {
			return nil, err
		}
		m.MediaKind = domain.MediaKind(kind)
		if userID != nil {
			m.Sender = &domain.PublicUser{
				ID:          *userID,
				Username:    stringValue(username),
				DisplayName: stringValue(displayName),
				AvatarURL:   stringValue(avatarURL),
			}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
