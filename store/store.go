package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hrygo/libris/internal/profile"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("record already exists")
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// GetBook returns the book matching find, or ErrNotFound.
func (s *Store) GetBook(ctx context.Context, find *FindBook) (*Book, error) {
	list, err := s.driver.ListBooks(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Wrap(ErrNotFound, "book")
	}
	return list[0], nil
}

// GetStudent returns the student matching find, or ErrNotFound.
func (s *Store) GetStudent(ctx context.Context, find *FindStudent) (*Student, error) {
	list, err := s.driver.ListStudents(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Wrap(ErrNotFound, "student")
	}
	return list[0], nil
}

// GetBorrow returns the borrow matching find, or ErrNotFound.
func (s *Store) GetBorrow(ctx context.Context, find *FindBorrow) (*Borrow, error) {
	list, err := s.driver.ListBorrows(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Wrap(ErrNotFound, "borrow")
	}
	return list[0], nil
}
