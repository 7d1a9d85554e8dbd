package library

import (
	"context"
	"log/slog"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/libris/plugin/notify"
	apierrors "github.com/hrygo/libris/server/internal/errors"
	"github.com/hrygo/libris/store"
)

const (
	// DefaultFinePerDay is charged for each day a book is returned late.
	DefaultFinePerDay = 1.0
	// DefaultLoanDays is the loan period used when no due date is given.
	DefaultLoanDays = 14

	minFinePerDay = 0.1
	maxFinePerDay = 10.0
)

// BorrowRequest asks to lend a book to a student.
type BorrowRequest struct {
	StudentID int32  `json:"student_id"`
	BookID    int32  `json:"book_id"`
	DueDate   string `json:"due_date"`
}

// ReturnResult describes a completed return.
type ReturnResult struct {
	BorrowID   int32   `json:"borrow_id"`
	Returned   bool    `json:"returned"`
	ReturnDate string  `json:"return_date"`
	FineAmount float64 `json:"fine_amount"`
	Message    string  `json:"message"`
}

// FineCalculation is the fine owed on one overdue loan.
type FineCalculation struct {
	BorrowID    int32   `json:"borrow_id"`
	DaysOverdue int     `json:"days_overdue"`
	FinePerDay  float64 `json:"fine_per_day"`
	TotalFine   float64 `json:"total_fine"`
	StudentName string  `json:"student_name"`
	BookTitle   string  `json:"book_title"`
}

// FineReport is the result of a fine calculation run.
type FineReport struct {
	Fines             []*FineCalculation `json:"fines"`
	TotalFines        float64            `json:"total_fines"`
	CalculationTimeMs float64            `json:"calculation_time_ms"`
}

// OverdueReport is the result of sending overdue notices.
type OverdueReport struct {
	Message           string             `json:"message"`
	TotalOverdueBooks int                `json:"total_overdue_books"`
	NoticesSent       int                `json:"notices_sent"`
	NoticesFailed     int                `json:"notices_failed"`
	Details           *notify.BulkResult `json:"details,omitempty"`
}

// Extension describes a moved due date.
type Extension struct {
	BorrowID   int32  `json:"borrow_id"`
	OldDueDate string `json:"old_due_date"`
	NewDueDate string `json:"new_due_date"`
	Message    string `json:"message"`
}

// ActiveList is the set of open loans.
type ActiveList struct {
	ActiveBorrows []*store.Borrow `json:"active_borrows"`
	Count         int             `json:"count"`
}

// OverdueList is the set of loans past due.
type OverdueList struct {
	OverdueBorrows        []*store.Borrow `json:"overdue_borrows"`
	Count                 int             `json:"count"`
	TotalStudentsAffected int             `json:"total_students_affected"`
}

// BorrowStats summarizes loans.
type BorrowStats struct {
	TotalBorrows        int `json:"total_borrows"`
	ActiveBorrows       int `json:"active_borrows"`
	ReturnedBorrows     int `json:"returned_borrows"`
	OverdueBooks        int `json:"overdue_books"`
	StudentsWithOverdue int `json:"students_with_overdue"`
}

// BorrowBook lends an available book to a student.
func (s *Service) BorrowBook(ctx context.Context, req *BorrowRequest) (*store.Borrow, error) {
	today := s.today()
	dueDate := req.DueDate
	if dueDate == "" {
		dueDate = s.now().AddDate(0, 0, DefaultLoanDays).Format(store.DateLayout)
	}
	if _, err := time.Parse(store.DateLayout, dueDate); err != nil {
		return nil, apierrors.InvalidArgument("due_date must be formatted as %s", store.DateLayout)
	}
	if dueDate < today {
		return nil, apierrors.InvalidArgument("due_date must not be in the past")
	}

	student, err := s.store.GetStudent(ctx, &store.FindStudent{ID: &req.StudentID})
	if err != nil {
		return nil, notFoundOr(err, "student %d not found", req.StudentID)
	}
	if !student.Active {
		return nil, apierrors.FailedPrecondition("student %d is not active", student.ID)
	}
	book, err := s.store.GetBook(ctx, &store.FindBook{ID: &req.BookID})
	if err != nil {
		return nil, notFoundOr(err, "book %d not found", req.BookID)
	}
	if book.Status != store.BookAvailable {
		return nil, apierrors.FailedPrecondition("book is not available (status: %s)", book.Status)
	}

	borrow, err := s.store.OpenBorrow(ctx, &store.Borrow{
		UID:        shortuuid.New(),
		StudentID:  student.ID,
		BookID:     book.ID,
		BorrowDate: today,
		DueDate:    dueDate,
		Status:     store.BorrowActive,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apierrors.FailedPrecondition("book %d is no longer available", book.ID)
		}
		return nil, err
	}
	s.cache.InvalidateBook(book.ID)

	s.send(ctx, notify.KindBorrowConfirmation, student.Email, "", notify.Data{
		StudentName: student.Name,
		BookTitle:   book.Title,
		Author:      book.Author,
		BorrowDate:  borrow.BorrowDate,
		DueDate:     borrow.DueDate,
	})
	return borrow, nil
}

// ReturnBook closes a loan, charging DefaultFinePerDay for each day past due.
// An empty returnDate means today.
func (s *Service) ReturnBook(ctx context.Context, id int32, returnDate string) (*ReturnResult, error) {
	borrow, err := s.GetBorrow(ctx, id)
	if err != nil {
		return nil, err
	}
	if borrow.Status == store.BorrowReturned {
		return nil, apierrors.FailedPrecondition("book is already returned")
	}

	if returnDate == "" {
		returnDate = s.today()
	}
	returned, err := time.Parse(store.DateLayout, returnDate)
	if err != nil {
		return nil, apierrors.InvalidArgument("return_date must be formatted as %s", store.DateLayout)
	}
	fine := DefaultFinePerDay * float64(daysOverdue(borrow.DueDate, returned))

	if _, err := s.store.CloseBorrow(ctx, &store.UpdateBorrow{
		ID:           borrow.ID,
		ReturnedDate: &returnDate,
		Status:       ptr(store.BorrowReturned),
		FineAmount:   &fine,
	}); err != nil {
		return nil, notFoundOr(err, "borrow record %d not found", id)
	}
	s.cache.InvalidateBook(borrow.BookID)

	if student, err := s.GetStudent(ctx, borrow.StudentID); err == nil {
		if book, err := s.GetBook(ctx, borrow.BookID); err == nil {
			s.send(ctx, notify.KindReturnConfirmation, student.Email, "", notify.Data{
				StudentName: student.Name,
				BookTitle:   book.Title,
				ReturnDate:  returnDate,
				FineAmount:  fine,
			})
		}
	}

	return &ReturnResult{
		BorrowID:   borrow.ID,
		Returned:   true,
		ReturnDate: returnDate,
		FineAmount: fine,
		Message:    "Book returned successfully",
	}, nil
}

// GetBorrow returns a loan by id.
func (s *Service) GetBorrow(ctx context.Context, id int32) (*store.Borrow, error) {
	borrow, err := s.store.GetBorrow(ctx, &store.FindBorrow{ID: &id})
	if err != nil {
		return nil, notFoundOr(err, "borrow record %d not found", id)
	}
	return borrow, nil
}

// ListBorrows lists loans, optionally filtered by student and status.
func (s *Service) ListBorrows(ctx context.Context, find *store.FindBorrow) ([]*store.Borrow, error) {
	if find.Status != nil {
		switch *find.Status {
		case store.BorrowActive, store.BorrowReturned, store.BorrowOverdue:
		default:
			return nil, apierrors.InvalidArgument("invalid status %q", *find.Status)
		}
	}
	return s.store.ListBorrows(ctx, find)
}

// ExtendBorrow moves the due date of an open loan to newDueDate, which must be after today.
func (s *Service) ExtendBorrow(ctx context.Context, id int32, newDueDate string) (*Extension, error) {
	borrow, err := s.GetBorrow(ctx, id)
	if err != nil {
		return nil, err
	}
	if borrow.Status == store.BorrowReturned || borrow.ReturnedDate != nil {
		return nil, apierrors.FailedPrecondition("cannot extend due date for returned book")
	}
	if _, err := time.Parse(store.DateLayout, newDueDate); err != nil {
		return nil, apierrors.InvalidArgument("new_due_date must be formatted as %s", store.DateLayout)
	}
	if newDueDate <= s.today() {
		return nil, apierrors.InvalidArgument("new due date must be in the future")
	}

	updated, err := s.store.UpdateBorrow(ctx, &store.UpdateBorrow{ID: borrow.ID, DueDate: &newDueDate})
	if err != nil {
		return nil, notFoundOr(err, "borrow record %d not found", id)
	}
	s.cache.InvalidateFines()

	return &Extension{
		BorrowID:   updated.ID,
		OldDueDate: borrow.DueDate,
		NewDueDate: updated.DueDate,
		Message:    "Due date extended successfully",
	}, nil
}

// ActiveBorrows lists open loans, optionally for one student or one book.
func (s *Service) ActiveBorrows(ctx context.Context, studentID, bookID *int32) (*ActiveList, error) {
	borrows, err := s.store.ListBorrows(ctx, &store.FindBorrow{
		StudentID: studentID,
		BookID:    bookID,
		Status:    ptr(store.BorrowActive),
	})
	if err != nil {
		return nil, err
	}
	return &ActiveList{ActiveBorrows: borrows, Count: len(borrows)}, nil
}

// OverdueBorrows lists the loans past due today.
func (s *Service) OverdueBorrows(ctx context.Context) (*OverdueList, error) {
	overdue, err := s.overdueBorrows(ctx)
	if err != nil {
		return nil, err
	}
	return &OverdueList{
		OverdueBorrows:        overdue,
		Count:                 len(overdue),
		TotalStudentsAffected: distinctStudents(overdue),
	}, nil
}

// BorrowStats summarizes the loan book.
func (s *Service) BorrowStats(ctx context.Context) (*BorrowStats, error) {
	borrows, err := s.store.ListBorrows(ctx, &store.FindBorrow{})
	if err != nil {
		return nil, err
	}
	overdue, err := s.overdueBorrows(ctx)
	if err != nil {
		return nil, err
	}

	stats := &BorrowStats{
		TotalBorrows:        len(borrows),
		OverdueBooks:        len(overdue),
		StudentsWithOverdue: distinctStudents(overdue),
	}
	for _, borrow := range borrows {
		if borrow.ReturnedDate != nil {
			stats.ReturnedBorrows++
		} else {
			stats.ActiveBorrows++
		}
	}
	return stats, nil
}

// CalculateFines computes the fines owed today on every overdue loan. Results are
// cached per day and rate and dropped whenever a loan, student or book changes.
func (s *Service) CalculateFines(ctx context.Context, finePerDay float64) (*FineReport, error) {
	if finePerDay < minFinePerDay || finePerDay > maxFinePerDay {
		return nil, apierrors.InvalidArgument("fine_per_day must be between %.1f and %.1f", minFinePerDay, maxFinePerDay)
	}
	start := time.Now()

	fines, err := s.cache.FineCalculation(ctx, s.today(), finePerDay, func(ctx context.Context) ([]*FineCalculation, error) {
		return s.computeFines(ctx, finePerDay)
	})
	if err != nil {
		return nil, err
	}

	report := &FineReport{Fines: fines}
	for _, fine := range fines {
		report.TotalFines += fine.TotalFine
	}
	report.CalculationTimeMs = float64(time.Since(start).Microseconds()) / 1000
	return report, nil
}

func (s *Service) computeFines(ctx context.Context, finePerDay float64) ([]*FineCalculation, error) {
	overdue, err := s.overdueBorrows(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	fines := make([]*FineCalculation, len(overdue))
	g, ctx := errgroup.WithContext(ctx)
	for i, borrow := range overdue {
		i, borrow := i, borrow
		g.Go(func() error {
			student, err := s.GetStudent(ctx, borrow.StudentID)
			if err != nil {
				return err
			}
			book, err := s.GetBook(ctx, borrow.BookID)
			if err != nil {
				return err
			}
			days := daysOverdue(borrow.DueDate, now)
			fines[i] = &FineCalculation{
				BorrowID:    borrow.ID,
				DaysOverdue: days,
				FinePerDay:  finePerDay,
				TotalFine:   float64(days) * finePerDay,
				StudentName: student.Name,
				BookTitle:   book.Title,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fines, nil
}

// SendOverdueNotices emails every student holding an overdue book.
func (s *Service) SendOverdueNotices(ctx context.Context, finePerDay float64) (*OverdueReport, error) {
	if finePerDay < minFinePerDay || finePerDay > maxFinePerDay {
		return nil, apierrors.InvalidArgument("fine_per_day must be between %.1f and %.1f", minFinePerDay, maxFinePerDay)
	}
	overdue, err := s.overdueBorrows(ctx)
	if err != nil {
		return nil, err
	}
	if len(overdue) == 0 {
		return &OverdueReport{Message: "No overdue books found"}, nil
	}

	now := s.now()
	msgs := make([]notify.Message, 0, len(overdue))
	for _, borrow := range overdue {
		student, err := s.GetStudent(ctx, borrow.StudentID)
		if err != nil {
			return nil, err
		}
		book, err := s.GetBook(ctx, borrow.BookID)
		if err != nil {
			return nil, err
		}
		days := daysOverdue(borrow.DueDate, now)
		msg, err := notify.Render(notify.KindOverdueNotice, student.Email, "", notify.Data{
			StudentName: student.Name,
			BookTitle:   book.Title,
			DueDate:     borrow.DueDate,
			DaysOverdue: days,
			FineAmount:  float64(days) * finePerDay,
		})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	result, err := notify.SendAll(ctx, s.notifier, msgs)
	if err != nil {
		return nil, err
	}
	s.logger.Info("sent overdue notices",
		slog.Int("overdue", len(overdue)),
		slog.Int("sent", result.Sent),
		slog.Int("failed", result.Failed),
	)
	return &OverdueReport{
		Message:           "Overdue notices processing completed",
		TotalOverdueBooks: len(overdue),
		NoticesSent:       result.Sent,
		NoticesFailed:     result.Failed,
		Details:           result,
	}, nil
}

func distinctStudents(borrows []*store.Borrow) int {
	seen := make(map[int32]struct{}, len(borrows))
	for _, borrow := range borrows {
		seen[borrow.StudentID] = struct{}{}
	}
	return len(seen)
}

func (s *Service) overdueBorrows(ctx context.Context) ([]*store.Borrow, error) {
	return s.store.ListBorrows(ctx, &store.FindBorrow{DueBefore: ptr(s.today())})
}

// daysOverdue returns the whole days between dueDate and at, or 0 if not late.
func daysOverdue(dueDate string, at time.Time) int {
	due, err := time.Parse(store.DateLayout, dueDate)
	if err != nil {
		return 0
	}
	at, _ = time.Parse(store.DateLayout, at.Format(store.DateLayout))
	days := int(at.Sub(due).Hours() / 24)
	return max(days, 0)
}
