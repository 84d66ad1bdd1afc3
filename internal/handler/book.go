package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/openshelf/library-service/internal/errs"
	"github.com/openshelf/library-service/internal/model"
	"github.com/openshelf/library-service/pkg/auth"
)

func (h *Handler) ListBooks(c echo.Context) error {
	filter := model.BookFilter{
		Status: c.QueryParam("status"),
		Genre:  c.QueryParam("genre"),
		Search: c.QueryParam("search"),
	}

	books, err := h.librarySvc.ListBooks(c.Request().Context(), filter)
	if err != nil {
		return statusOf(err)
	}
	return dataResponse(c, http.StatusOK, books)
}

func (h *Handler) CreateBook(c echo.Context) error {
	var req model.CreateBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errs.ErrNoData.Error())
	}
	if field, ok := missingBookField(req); !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing required field: "+field)
	}

	caller, _ := auth.FromContext(c.Request().Context())
	book, err := h.librarySvc.CreateBook(c.Request().Context(), req, caller.UserID)
	if err != nil {
		if errors.Is(err, errs.ErrConflict) {
			return echo.NewHTTPError(http.StatusBadRequest, "Book number already exists")
		}
		return statusOf(err)
	}
	h.logEvent("book", "created", book.ID, caller.UserID, string(book.Status))
	return dataResponse(c, http.StatusCreated, book)
}

func missingBookField(req model.CreateBookRequest) (string, bool) {
	switch {
	case req.Title == nil:
		return "title", false
	case req.Author == nil:
		return "author", false
	case req.BookNumber == nil:
		return "bookNumber", false
	case req.PublishYear == nil:
		return "publishYear", false
	case req.Genre == nil:
		return "genre", false
	}
	return "", true
}

func (h *Handler) GetBook(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is invalid")
	}

	book, err := h.librarySvc.GetBook(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Book not found")
		}
		return statusOf(err)
	}
	return dataResponse(c, http.StatusOK, book)
}

func (h *Handler) UpdateBook(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is invalid")
	}
	var req model.UpdateBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errs.ErrNoData.Error())
	}

	caller, _ := auth.FromContext(c.Request().Context())
	book, err := h.librarySvc.UpdateBook(c.Request().Context(), id, req)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Book not found")
		}
		if errors.Is(err, errs.ErrConflict) {
			return echo.NewHTTPError(http.StatusBadRequest, "Book number already exists")
		}
		return statusOf(err)
	}
	h.logEvent("book", "updated", book.ID, caller.UserID, string(book.Status))
	return dataResponse(c, http.StatusOK, book)
}

func (h *Handler) DeleteBook(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is invalid")
	}

	caller, _ := auth.FromContext(c.Request().Context())
	if err := h.librarySvc.DeleteBook(c.Request().Context(), id); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Book not found")
		}
		if errors.Is(err, errs.ErrReferenced) {
			return echo.NewHTTPError(http.StatusBadRequest, "Cannot delete book with active requests")
		}
		return statusOf(err)
	}
	h.logEvent("book", "deleted", id, caller.UserID, "")
	return messageResponse(c, "Book deleted successfully")
}

func (h *Handler) BookStats(c echo.Context) error {
	stats, err := h.librarySvc.BookStats(c.Request().Context())
	if err != nil {
		return statusOf(err)
	}
	return dataResponse(c, http.StatusOK, stats)
}
