package store

import (
	"context"
)

// BookCategory is the shelf a book belongs to.
type BookCategory string

const (
	CategoryFiction    BookCategory = "fiction"
	CategoryNonFiction BookCategory = "non_fiction"
	CategoryScience    BookCategory = "science"
	CategoryHistory    BookCategory = "history"
	CategoryBiography  BookCategory = "biography"
	CategoryTechnology BookCategory = "technology"
)

// BookCategories lists every known category in display order.
var BookCategories = []BookCategory{
	CategoryFiction,
	CategoryNonFiction,
	CategoryScience,
	CategoryHistory,
	CategoryBiography,
	CategoryTechnology,
}

// Valid reports whether c is a known category.
func (c BookCategory) Valid() bool {
	for _, known := range BookCategories {
		if c == known {
			return true
		}
	}
	return false
}

// BookStatus is the circulation state of a book.
type BookStatus string

const (
	BookAvailable BookStatus = "available"
	BookBorrowed  BookStatus = "borrowed"
	BookReserved  BookStatus = "reserved"
)

// Valid reports whether s is a known status.
func (s BookStatus) Valid() bool {
	return s == BookAvailable || s == BookBorrowed || s == BookReserved
}

// Book is the object representing a book.
type Book struct {
	ID              int32        `json:"id"`
	Title           string       `json:"title"`
	Author          string       `json:"author"`
	ISBN            string       `json:"isbn"`
	Category        BookCategory `json:"category"`
	PublicationYear int32        `json:"publication_year"`
	Status          BookStatus   `json:"status"`
	CreatedTs       int64        `json:"created_ts"`
	UpdatedTs       int64        `json:"updated_ts"`
}

// FindBook is the find condition for book.
type FindBook struct {
	ID *int32

	// Query matches title or author as a substring.
	Query    *string
	Category *BookCategory
	Author   *string
	Status   *BookStatus

	Limit *int
}

// UpdateBook is the update request for book.
type UpdateBook struct {
	ID              int32
	UpdatedTs       *int64
	Title           *string
	Author          *string
	Category        *BookCategory
	PublicationYear *int32
	Status          *BookStatus
}

// DeleteBook is the delete request for book.
type DeleteBook struct {
	ID int32
}

// CreateBook creates a new book.
func (s *Store) CreateBook(ctx context.Context, create *Book) (*Book, error) {
	return s.driver.CreateBook(ctx, create)
}

// ListBooks lists books with filter.
func (s *Store) ListBooks(ctx context.Context, find *FindBook) ([]*Book, error) {
	return s.driver.ListBooks(ctx, find)
}

// UpdateBook updates a book.
func (s *Store) UpdateBook(ctx context.Context, update *UpdateBook) (*Book, error) {
	return s.driver.UpdateBook(ctx, update)
}

// DeleteBook deletes a book.
func (s *Store) DeleteBook(ctx context.Context, delete *DeleteBook) error {
	return s.driver.DeleteBook(ctx, delete)
}
