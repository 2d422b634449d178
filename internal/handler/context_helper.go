package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/teamshare/teamshare-api/internal/middleware"
	"github.com/teamshare/teamshare-api/internal/models"
	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
)

type userLoader interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext resolves the authenticated account. The lookup goes back
// to the store so role or team changes take effect before the token expires.
func actorFromContext(c *gin.Context, users userLoader) (*models.User, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	actor, err := users.FindByID(c.Request.Context(), claims.UserID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
	}
	if !actor.IsActive {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	return actor, nil
}

func idParam(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid "+name)
	}
	return id, nil
}
