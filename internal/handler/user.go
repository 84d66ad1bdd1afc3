package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/openshelf/library-service/internal/errs"
	"github.com/openshelf/library-service/internal/model"
)

func (h *Handler) ListUsers(c echo.Context) error {
	users, err := h.librarySvc.ListUsers(c.Request().Context())
	if err != nil {
		return statusOf(err)
	}
	return dataResponse(c, http.StatusOK, users)
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req model.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errs.ErrNoData.Error())
	}
	if req.Name == nil || req.Email == nil || req.Username == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "You need to provide name, email, and username")
	}

	user, err := h.librarySvc.CreateUser(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, errs.ErrConflict) {
			return echo.NewHTTPError(http.StatusBadRequest, "email or username already exists")
		}
		return statusOf(err)
	}
	h.logEvent("user", "created", user.ID, user.ID, "")
	return dataResponse(c, http.StatusCreated, user)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is invalid")
	}

	user, err := h.librarySvc.GetUser(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return statusOf(err)
	}
	return dataResponse(c, http.StatusOK, user)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is invalid")
	}
	var req model.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errs.ErrNoData.Error())
	}

	user, err := h.librarySvc.UpdateUser(c.Request().Context(), id, req)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		if errors.Is(err, errs.ErrConflict) {
			return echo.NewHTTPError(http.StatusBadRequest, "email or username already exists")
		}
		return statusOf(err)
	}
	h.logEvent("user", "updated", user.ID, user.ID, "")
	return dataResponse(c, http.StatusOK, user)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is invalid")
	}

	if err := h.librarySvc.DeleteUser(c.Request().Context(), id); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		if errors.Is(err, errs.ErrReferenced) {
			return echo.NewHTTPError(http.StatusBadRequest, "Cannot delete user that added books")
		}
		return statusOf(err)
	}
	h.logEvent("user", "deleted", id, id, "")
	return messageResponse(c, "User deleted")
}
