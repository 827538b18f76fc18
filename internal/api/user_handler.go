package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/observer/chatwave/internal/auth"
	"github.com/observer/chatwave/internal/domain"
)

// UserHandler handles user-related endpoints
type UserHandler struct {
	users    UserStore
	presence Presence
	logger   *slog.Logger
}

func NewUserHandler(users UserStore, presence Presence, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:    users,
		presence: presence,
		logger:   logger.With("component", "user_handler"),
	}
}

func (h *UserHandler) public(u *domain.User) domain.PublicUser {
	pub := u.ToPublic()
	if h.presence != nil {
		pub.IsOnline = h.presence.IsOnline(u.ID)
	}
	return pub
}

// Search godoc
//
//	@Summary		Search users
//	@Description	Match a username, first name or last name prefix
//	@Tags			users
//	@Produce		json
//	@Security		BearerAuth
//	@Param			q		query		string	true	"Search prefix (min 2 chars)"
//	@Param			limit	query		int		false	"Max results (default 20)"
//	@Success		200		{object}	map[string]interface{}
//	@Failure		400		{object}	map[string]string
//	@Router			/users/search [get]
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if len(query) < 2 {
		writeError(w, http.StatusBadRequest, "query must be at least 2 characters")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 50 {
			limit = l
		}
	}

	users, err := h.users.Search(r.Context(), query, limit)
	if err != nil {
		h.logger.Error("search users failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to search users")
		return
	}

	publicUsers := make([]domain.PublicUser, len(users))
	for i := range users {
		publicUsers[i] = h.public(&users[i])
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": publicUsers,
		"count": len(users),
	})
}

// GetByID godoc
//
//	@Summary		Get a user profile
//	@Tags			users
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	domain.PublicUser
//	@Failure		404	{object}	map[string]string
//	@Router			/users/{id} [get]
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, h.public(user))
}

// UpdateProfile godoc
//
//	@Summary		Update my profile
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		object{first_name=string,last_name=string,display_name=string,avatar_url=string}	true	"Profile fields"
//	@Success		200		{object}	domain.PublicUser
//	@Failure		400		{object}	map[string]string
//	@Router			/users/me [put]
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var input struct {
		FirstName   *string `json:"first_name"`
		LastName    *string `json:"last_name"`
		DisplayName *string `json:"display_name"`
		AvatarURL   *string `json:"avatar_url"`
	}
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	for _, f := range []*string{input.FirstName, input.LastName, input.DisplayName} {
		if f != nil && len(*f) > 100 {
			writeError(w, http.StatusBadRequest, "name too long (max 100)")
			return
		}
	}
	if input.AvatarURL != nil && len(*input.AvatarURL) > 500 {
		writeError(w, http.StatusBadRequest, "avatar URL too long")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, "failed to load user")
		return
	}

	// Only fields present in the body change
	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if input.DisplayName != nil {
		user.DisplayName = *input.DisplayName
	}
	if input.AvatarURL != nil {
		user.AvatarURL = *input.AvatarURL
	}

	if err := h.users.Update(r.Context(), user); err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			h.logger.Error("update user failed", "error", err, "user_id", userID)
		}
		writeDomainError(w, err, "failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, h.public(user))
}
