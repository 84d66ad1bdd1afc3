package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/openshelf/library-service/internal/errs"
	"github.com/openshelf/library-service/internal/model"
)

func (h *Handler) ListRequests(c echo.Context) error {
	reqs, err := h.librarySvc.ListRequests(c.Request().Context())
	if err != nil {
		return statusOf(err)
	}
	return dataResponse(c, http.StatusOK, reqs)
}

func (h *Handler) CreateRequest(c echo.Context) error {
	var req model.CreateRequestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errs.ErrNoData.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	created, err := h.librarySvc.CreateRequest(c.Request().Context(), req.UserID, req.BookID)
	if err != nil {
		return statusOf(err)
	}
	h.logEvent("request", "created", created.ID, req.UserID, string(created.Status))
	return dataResponse(c, http.StatusCreated, created)
}

func (h *Handler) RequestsByUser(c echo.Context) error {
	userID, err := strconv.Atoi(c.Param("userId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "userId is invalid")
	}

	reqs, err := h.librarySvc.RequestsByUser(c.Request().Context(), userID)
	if err != nil {
		return statusOf(err)
	}
	return dataResponse(c, http.StatusOK, reqs)
}

func (h *Handler) RequestsByBook(c echo.Context) error {
	bookID, err := strconv.Atoi(c.Param("bookId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "bookId is invalid")
	}

	reqs, err := h.librarySvc.RequestsByBook(c.Request().Context(), bookID)
	if err != nil {
		return statusOf(err)
	}
	return dataResponse(c, http.StatusOK, reqs)
}

func (h *Handler) GetRequest(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is invalid")
	}

	req, err := h.librarySvc.GetRequest(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Request not found")
		}
		return statusOf(err)
	}
	return dataResponse(c, http.StatusOK, req)
}

func (h *Handler) UpdateRequestStatus(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is invalid")
	}
	var req model.UpdateRequestStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errs.ErrNoData.Error())
	}

	updated, err := h.librarySvc.UpdateRequestStatus(c.Request().Context(), id, req.Action)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Request not found")
		}
		return statusOf(err)
	}
	h.logEvent("request", "status", updated.ID, updated.UserID, string(updated.Status))
	return dataResponse(c, http.StatusOK, updated)
}
