package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/openshelf/library-service/internal/errs"
	"github.com/openshelf/library-service/internal/model"
	"github.com/openshelf/library-service/pkg/auth"
)

// adminRequired gates catalog mutations. The caller identity is whatever the
// resolver says it is; the only check on top is the ADMIN role.
func (h *Handler) adminRequired(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()

		userID, ok := h.resolver.Resolve(req)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, errs.ErrNoAuth.Error())
		}

		user, err := h.librarySvc.GetUser(req.Context(), userID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return echo.NewHTTPError(http.StatusForbidden, errs.ErrForbidden.Error())
			}
			return statusOf(err)
		}
		if user.Role != model.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, errs.ErrForbidden.Error())
		}

		ctx := auth.SetAuthContext(req.Context(), auth.Caller{
			UserID: user.ID,
			Role:   string(user.Role),
		})
		c.SetRequest(req.WithContext(ctx))

		return next(c)
	}
}
