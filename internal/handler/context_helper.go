package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/edustack/institute-api/internal/middleware"
	"github.com/edustack/institute-api/internal/models"
	appErrors "github.com/edustack/institute-api/pkg/errors"
	"github.com/edustack/institute-api/pkg/response"
)

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

// requireLocation resolves the caller's branch scope from claims, replying
// 401 when absent. Every branch-scoped handler goes through it so the scope
// is always passed explicitly into services.
func requireLocation(c *gin.Context) (string, *models.JWTClaims, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.LocationID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing branch scope"))
		return "", nil, false
	}
	return claims.LocationID, claims, true
}
