package library

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	apierrors "github.com/hrygo/libris/server/internal/errors"
	"github.com/hrygo/libris/store"
)

// SearchResult is a catalog search response.
type SearchResult struct {
	Books        []*store.Book `json:"books"`
	TotalCount   int           `json:"total_count"`
	SearchTimeMs float64       `json:"search_time_ms"`
}

// BookPatch holds optional book field updates.
type BookPatch struct {
	Title           *string `json:"title"`
	Author          *string `json:"author"`
	Category        *string `json:"category"`
	PublicationYear *int32  `json:"publication_year"`
}

// Availability reports whether a book can be borrowed.
type Availability struct {
	BookID    int32            `json:"book_id"`
	Title     string           `json:"title"`
	Available bool             `json:"available"`
	Status    store.BookStatus `json:"status"`
}

// BookStats summarizes the catalog.
type BookStats struct {
	TotalBooks int            `json:"total_books"`
	Available  int            `json:"available"`
	Borrowed   int            `json:"borrowed"`
	Reserved   int            `json:"reserved"`
	ByCategory map[string]int `json:"by_category"`
}

// ListBooks returns the whole catalog.
func (s *Service) ListBooks(ctx context.Context) ([]*store.Book, error) {
	return s.cache.AllBooks(ctx, func(ctx context.Context) ([]*store.Book, error) {
		return s.store.ListBooks(ctx, &store.FindBook{})
	})
}

// SearchBooks searches the catalog. Without a category filter every category is
// searched concurrently and the results merged.
func (s *Service) SearchBooks(ctx context.Context, q BookQuery) (*SearchResult, error) {
	start := time.Now()

	find := &store.FindBook{}
	if q.Query != "" {
		find.Query = ptr(q.Query)
	}
	if q.Author != "" {
		find.Author = ptr(q.Author)
	}
	if q.Status != "" {
		status := store.BookStatus(q.Status)
		if !status.Valid() {
			return nil, apierrors.InvalidArgument("invalid status %q", q.Status)
		}
		find.Status = &status
	}
	var categories []store.BookCategory
	if q.Category != "" {
		category := store.BookCategory(q.Category)
		if !category.Valid() {
			return nil, apierrors.InvalidArgument("invalid category %q", q.Category)
		}
		categories = []store.BookCategory{category}
	} else {
		categories = store.BookCategories
	}

	books, err := s.cache.BookSearch(ctx, q, func(ctx context.Context) ([]*store.Book, error) {
		return s.searchCategories(ctx, find, categories)
	})
	if err != nil {
		return nil, err
	}

	return &SearchResult{
		Books:        books,
		TotalCount:   len(books),
		SearchTimeMs: float64(time.Since(start).Microseconds()) / 1000,
	}, nil
}

func (s *Service) searchCategories(ctx context.Context, base *store.FindBook, categories []store.BookCategory) ([]*store.Book, error) {
	results := make([][]*store.Book, len(categories))
	g, ctx := errgroup.WithContext(ctx)
	for i, category := range categories {
		i := i
		find := *base
		find.Category = ptr(category)
		g.Go(func() error {
			books, err := s.store.ListBooks(ctx, &find)
			if err != nil {
				return err
			}
			results[i] = books
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[int32]bool)
	merged := make([]*store.Book, 0)
	for _, books := range results {
		for _, book := range books {
			if !seen[book.ID] {
				seen[book.ID] = true
				merged = append(merged, book)
			}
		}
	}
	return merged, nil
}

// GetBook returns a book by id.
func (s *Service) GetBook(ctx context.Context, id int32) (*store.Book, error) {
	return s.cache.Book(ctx, id, func(ctx context.Context) (*store.Book, error) {
		book, err := s.store.GetBook(ctx, &store.FindBook{ID: &id})
		if err != nil {
			return nil, notFoundOr(err, "book %d not found", id)
		}
		return book, nil
	})
}

// CreateBook adds a book to the catalog.
func (s *Service) CreateBook(ctx context.Context, create *store.Book) (*store.Book, error) {
	if err := s.validateBook(create); err != nil {
		return nil, err
	}
	create.Status = store.BookAvailable

	book, err := s.store.CreateBook(ctx, create)
	if err != nil {
		return nil, conflictOr(err, "book with ISBN %s already exists", create.ISBN)
	}
	s.cache.InvalidateCatalog()
	return book, nil
}

// UpdateBook applies patch to the book.
func (s *Service) UpdateBook(ctx context.Context, id int32, patch *BookPatch) (*store.Book, error) {
	update := &store.UpdateBook{ID: id}
	if v := patch.Title; v != nil {
		if strings.TrimSpace(*v) == "" || len(*v) > 200 {
			return nil, apierrors.InvalidArgument("title must be 1-200 characters")
		}
		update.Title = v
	}
	if v := patch.Author; v != nil {
		if strings.TrimSpace(*v) == "" || len(*v) > 100 {
			return nil, apierrors.InvalidArgument("author must be 1-100 characters")
		}
		update.Author = v
	}
	if v := patch.Category; v != nil {
		category := store.BookCategory(*v)
		if !category.Valid() {
			return nil, apierrors.InvalidArgument("invalid category %q", *v)
		}
		update.Category = &category
	}
	if v := patch.PublicationYear; v != nil {
		if err := s.validateYear(*v); err != nil {
			return nil, err
		}
		update.PublicationYear = v
	}

	book, err := s.store.UpdateBook(ctx, update)
	if err != nil {
		return nil, notFoundOr(err, "book %d not found", id)
	}
	s.cache.InvalidateBook(id)
	return book, nil
}

// BooksByCategory lists one category.
func (s *Service) BooksByCategory(ctx context.Context, category string) ([]*store.Book, error) {
	c := store.BookCategory(category)
	if !c.Valid() {
		return nil, apierrors.InvalidArgument("invalid category %q", category)
	}
	return s.cache.BooksByCategory(ctx, c, func(ctx context.Context) ([]*store.Book, error) {
		return s.store.ListBooks(ctx, &store.FindBook{Category: &c})
	})
}

// BooksByAuthor lists books whose author matches. Not cached.
func (s *Service) BooksByAuthor(ctx context.Context, author string) ([]*store.Book, error) {
	return s.store.ListBooks(ctx, &store.FindBook{Author: &author})
}

// BookAvailability reads the book's live status, bypassing the cache.
func (s *Service) BookAvailability(ctx context.Context, id int32) (*Availability, error) {
	book, err := s.store.GetBook(ctx, &store.FindBook{ID: &id})
	if err != nil {
		return nil, notFoundOr(err, "book %d not found", id)
	}
	return &Availability{
		BookID:    book.ID,
		Title:     book.Title,
		Available: book.Status == store.BookAvailable,
		Status:    book.Status,
	}, nil
}

// BookStats counts books by status and category.
func (s *Service) BookStats(ctx context.Context) (*BookStats, error) {
	books, err := s.ListBooks(ctx)
	if err != nil {
		return nil, err
	}

	stats := &BookStats{TotalBooks: len(books), ByCategory: make(map[string]int)}
	for _, book := range books {
		switch book.Status {
		case store.BookAvailable:
			stats.Available++
		case store.BookBorrowed:
			stats.Borrowed++
		case store.BookReserved:
			stats.Reserved++
		}
		stats.ByCategory[string(book.Category)]++
	}
	return stats, nil
}

func (s *Service) validateBook(b *store.Book) error {
	switch {
	case strings.TrimSpace(b.Title) == "" || len(b.Title) > 200:
		return apierrors.InvalidArgument("title must be 1-200 characters")
	case strings.TrimSpace(b.Author) == "" || len(b.Author) > 100:
		return apierrors.InvalidArgument("author must be 1-100 characters")
	case len(b.ISBN) < 10 || len(b.ISBN) > 13:
		return apierrors.InvalidArgument("isbn must be 10-13 characters")
	case !b.Category.Valid():
		return apierrors.InvalidArgument("invalid category %q", b.Category)
	}
	return s.validateYear(b.PublicationYear)
}

func (s *Service) validateYear(year int32) error {
	if year < 1000 || int(year) > s.now().Year() {
		return apierrors.InvalidArgument("publication year must be between 1000 and %d", s.now().Year())
	}
	return nil
}
