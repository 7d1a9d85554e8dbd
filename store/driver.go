package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Book model related methods.
	CreateBook(ctx context.Context, create *Book) (*Book, error)
	ListBooks(ctx context.Context, find *FindBook) ([]*Book, error)
	UpdateBook(ctx context.Context, update *UpdateBook) (*Book, error)
	DeleteBook(ctx context.Context, delete *DeleteBook) error

	// Student model related methods.
	CreateStudent(ctx context.Context, create *Student) (*Student, error)
	ListStudents(ctx context.Context, find *FindStudent) ([]*Student, error)
	UpdateStudent(ctx context.Context, update *UpdateStudent) (*Student, error)

	// Borrow model related methods.
	CreateBorrow(ctx context.Context, create *Borrow) (*Borrow, error)
	ListBorrows(ctx context.Context, find *FindBorrow) ([]*Borrow, error)
	UpdateBorrow(ctx context.Context, update *UpdateBorrow) (*Borrow, error)
	// OpenBorrow and CloseBorrow write the loan and its book's status atomically.
	OpenBorrow(ctx context.Context, create *Borrow) (*Borrow, error)
	CloseBorrow(ctx context.Context, update *UpdateBorrow) (*Borrow, error)
}
