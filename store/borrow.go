package store

import (
	"context"
)

// BorrowStatus is the state of a loan.
type BorrowStatus string

const (
	BorrowActive   BorrowStatus = "active"
	BorrowReturned BorrowStatus = "returned"
	BorrowOverdue  BorrowStatus = "overdue"
)

// DateLayout is the layout used for borrow, due and return dates.
const DateLayout = "2006-01-02"

// Borrow is the object representing a book loan.
type Borrow struct {
	ID           int32        `json:"id"`
	UID          string       `json:"uid"`
	StudentID    int32        `json:"student_id"`
	BookID       int32        `json:"book_id"`
	BorrowDate   string       `json:"borrow_date"`
	DueDate      string       `json:"due_date"`
	ReturnedDate *string      `json:"returned_date,omitempty"`
	Status       BorrowStatus `json:"status"`
	FineAmount   float64      `json:"fine_amount"`
	CreatedTs    int64        `json:"created_ts"`
	UpdatedTs    int64        `json:"updated_ts"`
}

// FindBorrow is the find condition for borrow.
type FindBorrow struct {
	ID        *int32
	UID       *string
	StudentID *int32
	BookID    *int32
	Status    *BorrowStatus

	// DueBefore matches unreturned loans whose due date is strictly before the given date.
	DueBefore *string
}

// UpdateBorrow is the update request for borrow.
type UpdateBorrow struct {
	ID           int32
	UpdatedTs    *int64
	DueDate      *string
	ReturnedDate *string
	Status       *BorrowStatus
	FineAmount   *float64
}

// CreateBorrow creates a new borrow.
func (s *Store) CreateBorrow(ctx context.Context, create *Borrow) (*Borrow, error) {
	return s.driver.CreateBorrow(ctx, create)
}

// ListBorrows lists borrows with filter.
func (s *Store) ListBorrows(ctx context.Context, find *FindBorrow) ([]*Borrow, error) {
	return s.driver.ListBorrows(ctx, find)
}

// UpdateBorrow updates a borrow.
func (s *Store) UpdateBorrow(ctx context.Context, update *UpdateBorrow) (*Borrow, error) {
	return s.driver.UpdateBorrow(ctx, update)
}

// OpenBorrow creates a borrow and marks its book borrowed in one transaction.
// It fails with ErrConflict if the book is no longer available.
func (s *Store) OpenBorrow(ctx context.Context, create *Borrow) (*Borrow, error) {
	return s.driver.OpenBorrow(ctx, create)
}

// CloseBorrow updates a borrow and marks its book available in one transaction.
func (s *Store) CloseBorrow(ctx context.Context, update *UpdateBorrow) (*Borrow, error) {
	return s.driver.CloseBorrow(ctx, update)
}
