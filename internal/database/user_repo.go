package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/observer/chatwave/internal/domain"
)

// userColumns lists users columns in domain.User field order, so rows can be
// collected with pgx.RowToStructByPos.
const userColumns = `id, username, email, first_name, last_name, display_name, avatar_url, created_at, updated_at`

// UserRepository stores accounts, their password hashes and refresh tokens
type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) one(ctx context.Context, where string, arg any) (*domain.User, error) {
	rows, _ := r.db.Pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE `+where+` = $1`, arg)
	user, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByPos[domain.User])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	return user, err
}

func (r *UserRepository) exists(ctx context.Context, column, value string) (bool, error) {
	var found bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE `+column+` = $1)`, value).Scan(&found)
	return found, err
}

// Create inserts the user and its credential row in one transaction
func (r *UserRepository) Create(ctx context.Context, user *domain.User, passwordHash string) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO users (id, username, email, first_name, last_name, display_name, avatar_url)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			user.ID, user.Username, user.Email, user.FirstName, user.LastName, user.DisplayName, user.AvatarURL,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO credentials (user_id, password_hash) VALUES ($1, $2)`, user.ID, passwordHash)
		return err
	})
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.one(ctx, "id", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.one(ctx, "email", email)
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", email)
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", username)
}

// GetPasswordHash returns the bcrypt hash stored for userID
func (r *UserRepository) GetPasswordHash(ctx context.Context, userID uuid.UUID) (string, error) {
	var hash string
	err := r.db.Pool.QueryRow(ctx,
		`SELECT password_hash FROM credentials WHERE user_id = $1`, userID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrUserNotFound
	}
	return hash, err
}

// Search matches a prefix of the username, first name or last name
func (r *UserRepository) Search(ctx context.Context, query string, limit int) ([]domain.User, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username ILIKE $1 || '%'
		   OR first_name ILIKE $1 || '%'
		   OR last_name ILIKE $1 || '%'
		ORDER BY username
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[domain.User])
}

// Update writes the editable profile fields
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE users
		SET first_name = $2, last_name = $3, display_name = $4, avatar_url = $5, updated_at = NOW()
		WHERE id = $1
	`, user.ID, user.FirstName, user.LastName, user.DisplayName, user.AvatarURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Refresh tokens are stored as SHA-256 digests; the raw value only ever
// lives in the client's cookie.

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (r *UserRepository) CreateRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at) VALUES ($1, $2, $3, $4)`,
		id, userID, digest(token), expiresAt)
	return id, err
}

// GetRefreshToken looks a token up by its raw value, revoked or not
func (r *UserRepository) GetRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	rows, _ := r.db.Pool.Query(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at, revoked_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`, digest(token))
	rt, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByPos[domain.RefreshToken])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTokenInvalid
	}
	return rt, err
}

func (r *UserRepository) RevokeRefreshToken(ctx context.Context, tokenID uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, tokenID)
	return err
}

// RevokeAllUserTokens ends every session userID holds
func (r *UserRepository) RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`, userID)
	return err
}
