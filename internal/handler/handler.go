package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	md "github.com/openshelf/library-service/pkg/middleware"

	"github.com/openshelf/library-service/internal/errs"
	"github.com/openshelf/library-service/pkg/auth"
	"github.com/openshelf/library-service/pkg/validate"
)

type Handler struct {
	librarySvc LibraryService
	resolver   auth.Resolver
	stats      StatsLog
	log        *zap.Logger
}

func New(librarySvc LibraryService, resolver auth.Resolver, stats StatsLog, log *zap.Logger) *Handler {
	h := &Handler{
		librarySvc: librarySvc,
		resolver:   resolver,
		stats:      stats,
		log:        log,
	}
	return h
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))
	e.HTTPErrorHandler = errorHandler

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)
	e.GET("/", h.Ping)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig()),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
	)

	user := api.Group("/user")
	user.GET("", h.ListUsers)
	user.POST("", h.CreateUser)
	user.GET("/:id", h.GetUser)
	user.PUT("/:id", h.UpdateUser)
	user.DELETE("/:id", h.DeleteUser)

	book := api.Group("/book")
	book.GET("", h.ListBooks)
	book.GET("/stats", h.BookStats, h.adminRequired)
	book.POST("", h.CreateBook, h.adminRequired)
	book.GET("/:id", h.GetBook)
	book.PUT("/:id", h.UpdateBook, h.adminRequired)
	book.DELETE("/:id", h.DeleteBook, h.adminRequired)

	req := api.Group("/request")
	req.GET("", h.ListRequests)
	req.POST("", h.CreateRequest)
	req.GET("/user/:userId", h.RequestsByUser)
	req.GET("/book/:bookId", h.RequestsByBook)
	req.GET("/:id", h.GetRequest)
	req.PUT("/:id", h.UpdateRequestStatus)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"ping": "pong"})
}

// errorHandler renders every failure as {"error": "..."}; internal detail
// stays in the logs.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := "internal error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprintf("%v", he.Message)
	}
	_ = c.JSON(code, echo.Map{"error": msg})
}

func dataResponse(c echo.Context, code int, v interface{}) error {
	return c.JSON(code, echo.Map{"data": v})
}

func messageResponse(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, echo.Map{"message": msg})
}

// statusOf maps the error taxonomy to HTTP codes; anything unrecognized is a
// 500 with its detail withheld from the body.
func statusOf(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrBookUnavailable),
		errors.Is(err, errs.ErrInvalidAction),
		errors.Is(err, errs.ErrConflict),
		errors.Is(err, errs.ErrReferenced),
		errors.Is(err, errs.ErrNoData):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrNoAuth):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, errs.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
