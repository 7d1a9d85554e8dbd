// Package v1 serves the library REST API under /api/v1.
package v1

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/libris/internal/profile"
	apierrors "github.com/hrygo/libris/server/internal/errors"
	"github.com/hrygo/libris/server/internal/observability"
	"github.com/hrygo/libris/server/service/library"
)

type APIV1Service struct {
	Profile *profile.Profile
	Library *library.Service
	Metrics *observability.Metrics
}

func NewAPIV1Service(profile *profile.Profile, library *library.Service, metrics *observability.Metrics) *APIV1Service {
	return &APIV1Service{
		Profile: profile,
		Library: library,
		Metrics: metrics,
	}
}

// RegisterRoutes registers the REST handlers with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", s.Health)

	api := e.Group("/api/v1")

	books := api.Group("/books")
	books.GET("", s.ListBooks)
	books.GET("/search", s.SearchBooks)
	books.GET("/stats/summary", s.GetBookStats)
	books.GET("/category/:category", s.ListBooksByCategory)
	books.GET("/author/:author", s.ListBooksByAuthor)
	books.GET("/:id", s.GetBook)
	books.GET("/:id/availability", s.GetBookAvailability)
	books.POST("", s.CreateBook)
	books.PUT("/:id", s.UpdateBook)

	students := api.Group("/students")
	students.GET("", s.ListStudents)
	students.GET("/stats/summary", s.GetStudentStats)
	students.GET("/search/by-name", s.SearchStudentsByName)
	students.GET("/:id", s.GetStudent)
	students.POST("", s.CreateStudent)
	students.PUT("/:id", s.UpdateStudent)
	students.GET("/:id/borrowed-books", s.GetStudentBorrowedBooks)
	students.GET("/:id/borrow-history", s.GetStudentBorrowHistory)
	students.GET("/:id/fines", s.GetStudentFines)
	students.POST("/:id/send-notification", s.SendStudentNotification)

	borrow := api.Group("/borrow")
	borrow.GET("", s.ListBorrows)
	borrow.POST("", s.BorrowBook)
	borrow.GET("/active", s.ListActiveBorrows)
	borrow.GET("/overdue", s.ListOverdueBorrows)
	borrow.GET("/stats/summary", s.GetBorrowStats)
	borrow.GET("/fines/calculate", s.CalculateFines)
	borrow.POST("/fines/send-notices", s.SendOverdueNotices)
	borrow.GET("/:id", s.GetBorrow)
	borrow.PUT("/:id/return", s.ReturnBook)
	borrow.PUT("/:id/extend", s.ExtendBorrow)

	cache := api.Group("/cache")
	cache.GET("/stats", s.GetCacheStats)
	cache.POST("/sweep", s.SweepCache)
	cache.POST("/clear", s.ClearCache)
}

// Health reports liveness.
func (s *APIV1Service) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": s.Profile.Version,
	})
}

// HTTPErrorHandler renders errors as {"code", "message"} JSON.
// Internal causes are logged, never returned to the client.
func HTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			status int
			body   apierrors.Body
		)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			body = apierrors.Body{Code: codeForStatus(he.Code), Message: http.StatusText(he.Code)}
			if msg, ok := he.Message.(string); ok {
				body.Message = msg
			}
		} else {
			apiErr := apierrors.From(err)
			status = apiErr.HTTPStatus()
			body = apiErr.Body()
			if status >= http.StatusInternalServerError {
				if reqCtx, ok := observability.FromContext(c.Request().Context()); ok {
					reqCtx.Error("request error", err, slog.String(observability.LogFieldErrorCode, string(apiErr.Code)))
				} else {
					logger.Error("request error", slog.String("error", err.Error()))
				}
			}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error("failed to write error response", slog.String("error", err.Error()))
		}
	}
}

func codeForStatus(status int) apierrors.ErrorCode {
	switch status {
	case http.StatusBadRequest:
		return apierrors.ErrCodeInvalidArgument
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apierrors.ErrCodeNotFound
	case http.StatusTooManyRequests:
		return apierrors.ErrCodeRateLimitExceeded
	default:
		if status < http.StatusInternalServerError {
			return apierrors.ErrCodeInvalidArgument
		}
		return apierrors.ErrCodeInternal
	}
}

func parseID(c echo.Context) (int32, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || id <= 0 {
		return 0, apierrors.InvalidArgument("invalid id %q", c.Param("id"))
	}
	return int32(id), nil
}

func parseFinePerDay(c echo.Context) (float64, error) {
	v := c.QueryParam("fine_per_day")
	if v == "" {
		return library.DefaultFinePerDay, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, apierrors.InvalidArgument("invalid fine_per_day %q", v)
	}
	return f, nil
}

func invalidQuery(err error) error {
	var bindErr *echo.BindingError
	if errors.As(err, &bindErr) {
		return apierrors.InvalidArgument("invalid query parameter %s", bindErr.Field)
	}
	return apierrors.InvalidArgument("invalid query parameters")
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return apierrors.InvalidArgument("invalid request body")
	}
	return nil
}
