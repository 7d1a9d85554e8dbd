package library

import (
	"context"
	"log/slog"
	"time"

	"github.com/hrygo/libris/store"
	"github.com/hrygo/libris/store/cache"
)

// Cache namespaces and lifetimes. Each helper below is a namespace, a parameter
// set and a TTL over the generic engine.
const (
	nsBookSearch   = "book_search"
	nsBook         = "book"
	nsStudent      = "student"
	nsStudentList  = "student_list"
	nsFines        = "fine_calculation"
	nsBookCategory = "book_category"

	// keyAllBooks caches the unfiltered catalog listing.
	keyAllBooks = "all_books"

	ttlBookSearch   = 180 * time.Second
	ttlBook         = 300 * time.Second
	ttlStudent      = 600 * time.Second
	ttlStudentList  = 300 * time.Second
	ttlFines        = time.Hour
	ttlBookCategory = 600 * time.Second
	ttlAllBooks     = 300 * time.Second
)

// BookQuery is a catalog search. Empty fields do not filter.
type BookQuery struct {
	Query    string `query:"query"`
	Category string `query:"category"`
	Author   string `query:"author"`
	Status   string `query:"status"`
}

// Cache applies the library's caching policy on top of a shared engine.
type Cache struct {
	engine *cache.Cache[any]
	logger *slog.Logger
}

// NewCache wraps engine with the library caching policy.
func NewCache(engine *cache.Cache[any], logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{engine: engine, logger: logger}
}

// Engine returns the underlying cache engine.
func (c *Cache) Engine() *cache.Cache[any] {
	return c.engine
}

// BookSearch caches a search by its four filters.
func (c *Cache) BookSearch(ctx context.Context, q BookQuery, fetch func(context.Context) ([]*store.Book, error)) ([]*store.Book, error) {
	key := cache.Key(nsBookSearch, cache.Params{
		"query":    q.Query,
		"category": q.Category,
		"author":   q.Author,
		"status":   q.Status,
	})
	return remember(ctx, c.engine, key, ttlBookSearch, fetch)
}

// Book caches a single book lookup.
func (c *Cache) Book(ctx context.Context, id int32, fetch func(context.Context) (*store.Book, error)) (*store.Book, error) {
	return remember(ctx, c.engine, bookKey(id), ttlBook, fetch)
}

// Student caches a single student lookup.
func (c *Cache) Student(ctx context.Context, id int32, fetch func(context.Context) (*store.Student, error)) (*store.Student, error) {
	return remember(ctx, c.engine, studentKey(id), ttlStudent, fetch)
}

// Students caches the student listing.
func (c *Cache) Students(ctx context.Context, activeOnly bool, fetch func(context.Context) ([]*store.Student, error)) ([]*store.Student, error) {
	key := cache.Key(nsStudentList, cache.Params{"active_only": activeOnly})
	return remember(ctx, c.engine, key, ttlStudentList, fetch)
}

// FineCalculation caches the overdue fines computed for a day at a given rate.
func (c *Cache) FineCalculation(ctx context.Context, date string, finePerDay float64, fetch func(context.Context) ([]*FineCalculation, error)) ([]*FineCalculation, error) {
	key := cache.Key(nsFines, cache.Params{"date": date, "fine_per_day": finePerDay})
	return remember(ctx, c.engine, key, ttlFines, fetch)
}

// BooksByCategory caches the listing of one category.
func (c *Cache) BooksByCategory(ctx context.Context, category store.BookCategory, fetch func(context.Context) ([]*store.Book, error)) ([]*store.Book, error) {
	key := cache.Key(nsBookCategory, cache.Params{"category": string(category)})
	return remember(ctx, c.engine, key, ttlBookCategory, fetch)
}

// AllBooks caches the unfiltered catalog.
func (c *Cache) AllBooks(ctx context.Context, fetch func(context.Context) ([]*store.Book, error)) ([]*store.Book, error) {
	return remember(ctx, c.engine, keyAllBooks, ttlAllBooks, fetch)
}

// InvalidateBook drops everything that may contain the book: its own entry, every
// cached search and category listing, the full catalog and the fine reports that
// carry its title. Working out which searches actually matched the book is not
// attempted.
func (c *Cache) InvalidateBook(id int32) {
	c.engine.Delete(bookKey(id))
	c.InvalidateCatalog()
	c.InvalidateFines()
}

// InvalidateCatalog drops all catalog listings and searches.
func (c *Cache) InvalidateCatalog() {
	searches := c.engine.InvalidatePrefix(nsBookSearch)
	categories := c.engine.InvalidatePrefix(nsBookCategory)
	c.InvalidateAllBooks()
	c.logger.Debug("invalidated catalog cache",
		slog.Int("searches", searches),
		slog.Int("categories", categories),
	)
}

// InvalidateAllBooks drops the full catalog listing.
func (c *Cache) InvalidateAllBooks() {
	c.engine.Delete(keyAllBooks)
}

// InvalidateStudent drops the student's entry, every student listing and the fine
// reports that carry the student's name.
func (c *Cache) InvalidateStudent(id int32) {
	c.engine.Delete(studentKey(id))
	c.engine.InvalidatePrefix(nsStudentList)
	c.InvalidateFines()
}

// InvalidateFines drops cached fine calculations.
func (c *Cache) InvalidateFines() {
	c.engine.InvalidatePrefix(nsFines)
}

func bookKey(id int32) string {
	return cache.Key(nsBook, cache.Params{"id": id})
}

func studentKey(id int32) string {
	return cache.Key(nsStudent, cache.Params{"id": id})
}

// remember is a typed GetOrSet over an engine holding heterogeneous values.
// An entry of the wrong type is replaced with a fresh result.
func remember[T any](ctx context.Context, engine *cache.Cache[any], key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	value, err := engine.GetOrSet(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}, ttl)
	if err != nil {
		return zero, err
	}
	if typed, ok := value.(T); ok {
		return typed, nil
	}

	engine.Delete(key)
	typed, err := fetch(ctx)
	if err != nil {
		return zero, err
	}
	if err := engine.Set(key, typed, ttl); err != nil {
		return zero, err
	}
	return typed, nil
}
