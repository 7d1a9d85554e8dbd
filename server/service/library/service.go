// Package library implements the school library use cases: catalog, members and loans.
// Reads go through the response cache; every write invalidates the entries it can affect.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/libris/plugin/notify"
	apierrors "github.com/hrygo/libris/server/internal/errors"
	"github.com/hrygo/libris/store"
)

// RecordStore is the subset of store.Store the library needs.
type RecordStore interface {
	ListBooks(ctx context.Context, find *store.FindBook) ([]*store.Book, error)
	GetBook(ctx context.Context, find *store.FindBook) (*store.Book, error)
	CreateBook(ctx context.Context, create *store.Book) (*store.Book, error)
	UpdateBook(ctx context.Context, update *store.UpdateBook) (*store.Book, error)

	ListStudents(ctx context.Context, find *store.FindStudent) ([]*store.Student, error)
	GetStudent(ctx context.Context, find *store.FindStudent) (*store.Student, error)
	CreateStudent(ctx context.Context, create *store.Student) (*store.Student, error)
	UpdateStudent(ctx context.Context, update *store.UpdateStudent) (*store.Student, error)

	ListBorrows(ctx context.Context, find *store.FindBorrow) ([]*store.Borrow, error)
	GetBorrow(ctx context.Context, find *store.FindBorrow) (*store.Borrow, error)
	UpdateBorrow(ctx context.Context, update *store.UpdateBorrow) (*store.Borrow, error)
	OpenBorrow(ctx context.Context, create *store.Borrow) (*store.Borrow, error)
	CloseBorrow(ctx context.Context, update *store.UpdateBorrow) (*store.Borrow, error)
}

var _ RecordStore = (*store.Store)(nil)

// Service implements the library use cases.
type Service struct {
	store    RecordStore
	cache    *Cache
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides time.Now for due dates and fines.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a library service.
func NewService(st RecordStore, c *Cache, n notify.Notifier, opts ...Option) *Service {
	s := &Service{
		store:    st,
		cache:    c,
		notifier: n,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache returns the service's cache policy.
func (s *Service) Cache() *Cache {
	return s.cache
}

func (s *Service) today() string {
	return s.now().Format(store.DateLayout)
}

// send renders and sends a message. Delivery failures are logged and never fail the
// calling operation.
func (s *Service) send(ctx context.Context, kind notify.Kind, to, subject string, data notify.Data) *notify.Receipt {
	msg, err := notify.Render(kind, to, subject, data)
	if err != nil {
		s.logger.Error("failed to render notification", slog.String("kind", string(kind)), slog.String("error", err.Error()))
		return nil
	}
	receipt, err := s.notifier.Send(ctx, msg)
	if err != nil {
		s.logger.Warn("failed to send notification",
			slog.String("kind", string(kind)),
			slog.String("to", to),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return receipt
}

// notFoundOr turns a store miss into a NOT_FOUND API error and passes anything else through.
func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		return apierrors.NotFound(format, args...)
	}
	return err
}

// conflictOr turns a uniqueness violation into an ALREADY_EXISTS API error.
func conflictOr(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrConflict) {
		return apierrors.Wrap(err, apierrors.ErrCodeAlreadyExists, fmt.Sprintf(format, args...))
	}
	return err
}

func ptr[T any](v T) *T { return &v }
