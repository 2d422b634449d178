package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/teamshare/teamshare-api/internal/dto"
	"github.com/teamshare/teamshare-api/internal/models"
	"github.com/teamshare/teamshare-api/internal/repository"
	"github.com/teamshare/teamshare-api/pkg/config"
	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
)

type userStore interface {
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindTeamLeader(ctx context.Context, team string) (*models.User, error)
	List(ctx context.Context, filter repository.UserFilter) ([]models.User, int64, error)
	ListByTeam(ctx context.Context, team string) ([]models.User, error)
	ListAdmins(ctx context.Context) ([]models.User, error)
}

const teamRosterKeyPrefix = "users:team:"

// UserService manages accounts and the cached team rosters the rest of the
// workflow reads on every fan-out.
type UserService struct {
	repo     userStore
	cache    *CacheService
	cacheCfg config.CacheConfig
	activity activityStore
	validate *validator.Validate
	logger   *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(repo userStore, cache *CacheService, cacheCfg config.CacheConfig, activity activityStore, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		repo:     repo,
		cache:    cache,
		cacheCfg: cacheCfg,
		activity: activity,
		validate: validator.New(),
		logger:   logger,
	}
}

// Create registers a new account. Usernames are unique and a team carries at
// most one team leader.
func (s *UserService) Create(ctx context.Context, actor *models.User, req dto.CreateUserRequest) (*models.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if _, err := s.repo.FindByUsername(ctx, req.Username); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "username is already taken")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username")
	}
	if req.Role == models.RoleTeamLeader {
		if _, err := s.repo.FindTeamLeader(ctx, req.Team); err == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "the team already has a leader")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check team leader")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         req.Role,
		Team:         req.Team,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.invalidateRoster(ctx, user.Team)
	s.emitActivity(ctx, actor, models.ActionCreateUser, user.ID, user.Username)
	return user, nil
}

// Update patches mutable account fields.
func (s *UserService) Update(ctx context.Context, actor *models.User, id int64, req dto.UpdateUserRequest) (*models.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	oldTeam := user.Team

	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Team != nil {
		user.Team = *req.Team
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if user.Role == models.RoleTeamLeader {
		if leader, err := s.repo.FindTeamLeader(ctx, user.Team); err == nil && leader.ID != user.ID {
			return nil, appErrors.Clone(appErrors.ErrConflict, "the team already has a leader")
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check team leader")
		}
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	s.invalidateRoster(ctx, oldTeam)
	if user.Team != oldTeam {
		s.invalidateRoster(ctx, user.Team)
	}
	s.emitActivity(ctx, actor, models.ActionUpdateUser, user.ID, user.Username)
	return user, nil
}

// Delete deactivates an account. Self-deletion is refused.
func (s *UserService) Delete(ctx context.Context, actor *models.User, id int64) error {
	if actor.ID == id {
		return appErrors.Clone(appErrors.ErrValidation, "you cannot delete your own account")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	s.invalidateRoster(ctx, user.Team)
	s.emitActivity(ctx, actor, models.ActionDeleteUser, id, user.Username)
	return nil
}

// Get returns one account.
func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// List returns accounts matching the query.
func (s *UserService) List(ctx context.Context, query dto.UserListQuery) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, repository.UserFilter{
		Team:     query.Team,
		Role:     query.Role,
		Search:   query.Search,
		Page:     query.Page,
		PageSize: query.PageSize,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, models.NewPagination(query.Page, query.PageSize, total), nil
}

// ListByTeam returns the active roster of a team, served from cache when
// possible.
func (s *UserService) ListByTeam(ctx context.Context, team string) ([]models.User, error) {
	key := teamRosterKeyPrefix + team
	var cached []models.User
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	users, err := s.repo.ListByTeam(ctx, team)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team roster")
	}
	if err := s.cache.Set(ctx, key, users, s.cacheCfg.UsersTTL); err != nil {
		s.logger.Sugar().Warnw("failed to cache team roster", "team", team, "error", err)
	}
	return users, nil
}

// FindByID proxies account lookup for collaborating services.
func (s *UserService) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *UserService) invalidateRoster(ctx context.Context, team string) {
	if team == "" {
		return
	}
	if err := s.cache.Invalidate(ctx, teamRosterKeyPrefix+team); err != nil {
		s.logger.Sugar().Warnw("failed to invalidate roster cache", "team", team, "error", err)
	}
}

func (s *UserService) emitActivity(ctx context.Context, actor *models.User, action string, userID int64, detail string) {
	if s.activity == nil || actor == nil {
		return
	}
	entry := &models.ActivityLog{
		UserID:   actor.ID,
		Action:   action,
		Entity:   "user",
		EntityID: fmt.Sprintf("%d", userID),
		Detail:   detail,
	}
	if err := s.activity.Create(ctx, entry); err != nil {
		s.logger.Sugar().Warnw("failed to record user activity", "action", action, "error", err)
	}
}
