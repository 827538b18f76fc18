package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/observer/chatwave/internal/domain"
)

// UserRepository interface for auth operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetPasswordHash(ctx context.Context, userID uuid.UUID) (string, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)

	CreateRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) (uuid.UUID, error)
	GetRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenID uuid.UUID) error
	RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error
}

// Service handles authentication logic
type Service struct {
	users  UserRepository
	tokens *TokenService
	cost   int // bcrypt cost

	// dummyHash is compared against on unknown emails so a miss costs
	// the same as a wrong password
	dummyHash []byte
}

// NewService creates an auth service
func NewService(users UserRepository, tokens *TokenService) *Service {
	return newService(users, tokens, bcrypt.DefaultCost)
}

func newService(users UserRepository, tokens *TokenService, cost int) *Service {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("chatwave-timing-guard"), cost)
	return &Service{
		users:     users,
		tokens:    tokens,
		cost:      cost,
		dummyHash: dummy,
	}
}

// TokenPair holds both access and refresh tokens
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"-"` // Never in JSON body, goes to cookie
	ExpiresAt    time.Time `json:"expires_at"`
}

// RegisterInput for user registration
type RegisterInput struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (in *RegisterInput) normalize() {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
}

func (in *RegisterInput) validate() error {
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if err := validateUsername(in.Username); err != nil {
		return err
	}
	if len(in.FirstName) > 100 || len(in.LastName) > 100 {
		return &InputError{Message: "names must be at most 100 characters"}
	}
	return validatePassword(in.Password)
}

// Register creates a new user account and opens a session for it
func (s *Service) Register(ctx context.Context, input RegisterInput) (*domain.User, *TokenPair, error) {
	input.normalize()
	if err := input.validate(); err != nil {
		return nil, nil, err
	}
	if err := s.checkAvailable(ctx, input.Email, input.Username); err != nil {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:          uuid.New(),
		Email:       input.Email,
		Username:    input.Username,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		DisplayName: strings.TrimSpace(input.FirstName + " " + input.LastName),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.users.Create(ctx, user, string(hash)); err != nil {
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	return s.openSession(ctx, user)
}

// checkAvailable reports the first of email or username already in use
func (s *Service) checkAvailable(ctx context.Context, email, username string) error {
	taken, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if taken {
		return domain.ErrEmailTaken
	}

	taken, err = s.users.UsernameExists(ctx, username)
	if err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if taken {
		return domain.ErrUsernameTaken
	}
	return nil
}

// LoginInput for user login
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks email and password and opens a session
func (s *Service) Login(ctx context.Context, input LoginInput) (*domain.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
	if errors.Is(err, domain.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(input.Password))
		return nil, nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find user: %w", err)
	}

	hash, err := s.users.GetPasswordHash(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("get password: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(input.Password)); err != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	return s.openSession(ctx, user)
}

// Refresh rotates a refresh token. Presenting an already revoked token
// revokes every session of its owner, since the token must have leaked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*domain.User, *TokenPair, error) {
	stored, err := s.users.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, nil, domain.ErrTokenInvalid
	}

	switch {
	case stored.RevokedAt != nil:
		if err := s.users.RevokeAllUserTokens(ctx, stored.UserID); err != nil {
			return nil, nil, fmt.Errorf("revoke sessions: %w", err)
		}
		return nil, nil, domain.ErrTokenRevoked
	case !stored.IsValid():
		return nil, nil, domain.ErrTokenExpired
	}

	if err := s.users.RevokeRefreshToken(ctx, stored.ID); err != nil {
		return nil, nil, fmt.Errorf("revoke old token: %w", err)
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("get user: %w", err)
	}

	return s.openSession(ctx, user)
}

// Logout revokes a refresh token. Unknown tokens are already logged out.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	stored, err := s.users.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil
	}
	return s.users.RevokeRefreshToken(ctx, stored.ID)
}

// LogoutAll revokes all refresh tokens for a user
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	return s.users.RevokeAllUserTokens(ctx, userID)
}

// Authenticate resolves a presented access token to a Principal.
// It is checked once, when a connection is accepted.
func (s *Service) Authenticate(tokenString string) (*Principal, error) {
	return s.tokens.Authenticate(tokenString)
}

// Me returns the user behind an authenticated identity
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// openSession issues an access token and stores a new refresh token
func (s *Service) openSession(ctx context.Context, user *domain.User) (*domain.User, *TokenPair, error) {
	accessToken, expiresAt, err := s.tokens.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, refreshExpiresAt, err := s.tokens.GenerateRefreshToken()
	if err != nil {
		return nil, nil, fmt.Errorf("generate refresh token: %w", err)
	}
	if _, err := s.users.CreateRefreshToken(ctx, user.ID, refreshToken, refreshExpiresAt); err != nil {
		return nil, nil, fmt.Errorf("store refresh token: %w", err)
	}

	return user, &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

// RefreshTokenTTL returns refresh token duration for cookie
func (s *Service) RefreshTokenTTL() time.Duration {
	return s.tokens.RefreshTokenTTL()
}

// AccessTokenTTL returns access token duration for cookie
func (s *Service) AccessTokenTTL() time.Duration {
	return s.tokens.AccessTokenTTL()
}

// InputError reports a rejected registration field
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{2,31}$`)
)

const minPasswordLen = 8

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return &InputError{Message: "invalid email format"}
	}
	return nil
}

// validateUsername expects an already lowercased name
func validateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return &InputError{Message: "username must be 3-32 characters of letters, digits or underscore, starting with a letter"}
	}
	return nil
}

// validatePassword wants minPasswordLen runes with at least one upper case
// letter, one lower case letter and one digit
func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return &InputError{Message: fmt.Sprintf("password must be at least %d characters", minPasswordLen)}
	}
	classes := []func(rune) bool{unicode.IsUpper, unicode.IsLower, unicode.IsDigit}
	for _, class := range classes {
		if strings.IndexFunc(password, class) < 0 {
			return &InputError{Message: "password needs an upper case letter, a lower case letter and a digit"}
		}
	}
	return nil
}
