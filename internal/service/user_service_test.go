package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teamshare/teamshare-api/internal/dto"
	"github.com/teamshare/teamshare-api/internal/models"
	"github.com/teamshare/teamshare-api/internal/repository"
	"github.com/teamshare/teamshare-api/pkg/config"
	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
)

type userStoreStub struct {
	users       map[int64]*models.User
	nextID      int64
	teamQueries int
}

func newUserStoreStub(users ...*models.User) *userStoreStub {
	stub := &userStoreStub{users: make(map[int64]*models.User)}
	for _, u := range users {
		copy := *u
		stub.users[u.ID] = &copy
		if u.ID > stub.nextID {
			stub.nextID = u.ID
		}
	}
	return stub
}

func (s *userStoreStub) Create(ctx context.Context, user *models.User) error {
	s.nextID++
	user.ID = s.nextID
	copy := *user
	s.users[user.ID] = &copy
	return nil
}

func (s *userStoreStub) Update(ctx context.Context, user *models.User) error {
	if _, ok := s.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *user
	s.users[user.ID] = &copy
	return nil
}

func (s *userStoreStub) Delete(ctx context.Context, id int64) error {
	u, ok := s.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.IsActive = false
	return nil
}

func (s *userStoreStub) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *userStoreStub) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *userStoreStub) FindTeamLeader(ctx context.Context, team string) (*models.User, error) {
	for _, u := range s.users {
		if u.Team == team && u.Role == models.RoleTeamLeader && u.IsActive {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *userStoreStub) List(ctx context.Context, filter repository.UserFilter) ([]models.User, int64, error) {
	var out []models.User
	for _, u := range s.users {
		if filter.Team != "" && u.Team != filter.Team {
			continue
		}
		out = append(out, *u)
	}
	return out, int64(len(out)), nil
}

func (s *userStoreStub) ListByTeam(ctx context.Context, team string) ([]models.User, error) {
	s.teamQueries++
	var out []models.User
	for _, u := range s.users {
		if u.Team == team && u.IsActive {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *userStoreStub) ListAdmins(ctx context.Context) ([]models.User, error) {
	var out []models.User
	for _, u := range s.users {
		if u.Role == models.RoleAdmin && u.IsActive {
			out = append(out, *u)
		}
	}
	return out, nil
}

type memoryCacheRepo struct {
	entries map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: make(map[string][]byte)}
}

func (r *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := r.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.entries[key] = raw
	return nil
}

func (r *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	delete(r.entries, pattern)
	return nil
}

func newUserService(store *userStoreStub, cacheRepo CacheRepository) *UserService {
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, cacheRepo != nil)
	return NewUserService(store, cache, config.CacheConfig{UsersTTL: time.Minute}, &activityStub{}, nil)
}

func validCreateRequest() dto.CreateUserRequest {
	return dto.CreateUserRequest{
		Username: "frank",
		Email:    "frank@example.com",
		Password: "strong-password",
		FullName: "Frank",
		Role:     models.RoleUser,
		Team:     "alpha",
	}
}

func TestUserCreateHashesPassword(t *testing.T) {
	store := newUserStoreStub()
	svc := newUserService(store, nil)

	user, err := svc.Create(context.Background(), carol, validCreateRequest())
	require.NoError(t, err)
	require.NotZero(t, user.ID)
	require.True(t, user.IsActive)
	require.NotEqual(t, "strong-password", user.PasswordHash)
	require.NotEmpty(t, user.PasswordHash)
}

func TestUserCreateDuplicateUsername(t *testing.T) {
	store := newUserStoreStub(alice)
	svc := newUserService(store, nil)

	req := validCreateRequest()
	req.Username = alice.Username
	_, err := svc.Create(context.Background(), carol, req)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserCreateSecondTeamLeader(t *testing.T) {
	store := newUserStoreStub(bob)
	svc := newUserService(store, nil)

	req := validCreateRequest()
	req.Role = models.RoleTeamLeader
	_, err := svc.Create(context.Background(), carol, req)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	// Another team is fine.
	req.Team = "beta"
	_, err = svc.Create(context.Background(), carol, req)
	require.NoError(t, err)
}

func TestUserUpdatePromotionChecksLeader(t *testing.T) {
	store := newUserStoreStub(alice, bob)
	svc := newUserService(store, nil)

	role := models.RoleTeamLeader
	_, err := svc.Update(context.Background(), carol, alice.ID, dto.UpdateUserRequest{Role: &role})
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserDeleteRules(t *testing.T) {
	store := newUserStoreStub(alice, carol)
	svc := newUserService(store, nil)

	err := svc.Delete(context.Background(), carol, carol.ID)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), carol, alice.ID))
	stored, err := store.FindByID(context.Background(), alice.ID)
	require.NoError(t, err)
	require.False(t, stored.IsActive)
}

func TestTeamRosterCachedAndInvalidated(t *testing.T) {
	store := newUserStoreStub(alice, bob, dave)
	cacheRepo := newMemoryCacheRepo()
	svc := newUserService(store, cacheRepo)

	roster, err := svc.ListByTeam(context.Background(), "alpha")
	require.NoError(t, err)
	require.Len(t, roster, 3)
	require.Equal(t, 1, store.teamQueries)

	// Second read is served from cache.
	roster, err = svc.ListByTeam(context.Background(), "alpha")
	require.NoError(t, err)
	require.Len(t, roster, 3)
	require.Equal(t, 1, store.teamQueries)

	// A roster write drops the cached entry.
	_, err = svc.Create(context.Background(), carol, validCreateRequest())
	require.NoError(t, err)
	roster, err = svc.ListByTeam(context.Background(), "alpha")
	require.NoError(t, err)
	require.Len(t, roster, 4)
	require.Equal(t, 2, store.teamQueries)
}
