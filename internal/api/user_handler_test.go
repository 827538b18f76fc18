package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observer/chatwave/internal/domain"
)

func TestUserHandler_Search(t *testing.T) {
	alice, alex, bob := newUser("alice"), newUser("alex"), newUser("bob")
	h := NewUserHandler(newFakeUsers(alice, alex, bob), fakePresence{alice.ID: true}, testLogger())

	w := httptest.NewRecorder()
	h.Search(w, newRequest(t, http.MethodGet, "/users/search?q=al", bob.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Users []domain.PublicUser `json:"users"`
		Count int                 `json:"count"`
	}
	decodeBody(t, w, &resp)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "alex", resp.Users[0].Username)
	assert.False(t, resp.Users[0].IsOnline)
	assert.Equal(t, "alice", resp.Users[1].Username)
	assert.True(t, resp.Users[1].IsOnline)
	assert.NotContains(t, w.Body.String(), "@example.com")
}

func TestUserHandler_Search_ShortQuery(t *testing.T) {
	h := NewUserHandler(newFakeUsers(), nil, testLogger())

	w := httptest.NewRecorder()
	h.Search(w, newRequest(t, http.MethodGet, "/users/search?q=a", uuid.New(), nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandler_GetByID(t *testing.T) {
	alice := newUser("alice")
	h := NewUserHandler(newFakeUsers(alice), fakePresence{}, testLogger())

	get := func(id string) *httptest.ResponseRecorder {
		r := newRequest(t, http.MethodGet, "/users/x", uuid.New(), nil)
		r.SetPathValue("id", id)
		w := httptest.NewRecorder()
		h.GetByID(w, r)
		return w
	}

	assert.Equal(t, http.StatusOK, get(alice.ID.String()).Code)
	assert.Equal(t, http.StatusNotFound, get(uuid.NewString()).Code)
	assert.Equal(t, http.StatusBadRequest, get("nope").Code)
}

func TestUserHandler_UpdateProfile(t *testing.T) {
	alice := newUser("alice")
	alice.FirstName = "Alice"
	users := newFakeUsers(alice)
	h := NewUserHandler(users, nil, testLogger())

	w := httptest.NewRecorder()
	h.UpdateProfile(w, newRequest(t, http.MethodPut, "/users/me", alice.ID,
		map[string]string{"display_name": "Al"}))
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := users.GetByID(t.Context(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Al", stored.DisplayName)
	assert.Equal(t, "Alice", stored.FirstName)
}
