package library

import (
	"cmp"
	"context"
	"net/mail"
	"slices"
	"strings"

	"github.com/hrygo/libris/plugin/notify"
	apierrors "github.com/hrygo/libris/server/internal/errors"
	"github.com/hrygo/libris/store"
)

// StudentPatch holds optional student field updates.
type StudentPatch struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	Grade  *string `json:"grade"`
	Active *bool   `json:"active"`
}

// Notification is a free-form message to one student.
type Notification struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// NotificationResult reports a message sent to one student.
type NotificationResult struct {
	StudentID   int32  `json:"student_id"`
	StudentName string `json:"student_name"`
	EmailSent   bool   `json:"email_sent"`
	EmailID     string `json:"email_id"`
	Message     string `json:"message"`
}

// BorrowedBooks lists a student's open loans.
type BorrowedBooks struct {
	StudentID     int32           `json:"student_id"`
	StudentName   string          `json:"student_name"`
	BorrowedBooks []*store.Borrow `json:"borrowed_books"`
	TotalBorrowed int             `json:"total_borrowed"`
}

// BorrowHistory lists a student's most recent loans, newest first.
type BorrowHistory struct {
	StudentID     int32           `json:"student_id"`
	StudentName   string          `json:"student_name"`
	BorrowHistory []*store.Borrow `json:"borrow_history"`
	TotalRecords  int             `json:"total_records"`
}

// FineStatement is the fine a student is accruing on overdue loans.
type FineStatement struct {
	StudentID        int32              `json:"student_id"`
	StudentName      string             `json:"student_name"`
	OutstandingFines float64            `json:"outstanding_fines"`
	FineDetails      []*FineCalculation `json:"fine_details"`
}

// StudentStats summarizes the membership.
type StudentStats struct {
	TotalStudents  int            `json:"total_students"`
	ActiveStudents int            `json:"active_students"`
	ByGrade        map[string]int `json:"by_grade"`
}

// StudentSearch is the result of a name search.
type StudentSearch struct {
	SearchQuery string           `json:"search_query"`
	Students    []*store.Student `json:"students"`
	Count       int              `json:"count"`
}

const (
	// DefaultHistoryLimit is the number of loans returned by StudentBorrowHistory.
	DefaultHistoryLimit = 10
	maxHistoryLimit     = 100
	minNameQuery        = 2
)

// ListStudents returns all students, or only active ones.
func (s *Service) ListStudents(ctx context.Context, activeOnly bool) ([]*store.Student, error) {
	return s.cache.Students(ctx, activeOnly, func(ctx context.Context) ([]*store.Student, error) {
		find := &store.FindStudent{}
		if activeOnly {
			find.Active = ptr(true)
		}
		return s.store.ListStudents(ctx, find)
	})
}

// GetStudent returns a student by id.
func (s *Service) GetStudent(ctx context.Context, id int32) (*store.Student, error) {
	return s.cache.Student(ctx, id, func(ctx context.Context) (*store.Student, error) {
		student, err := s.store.GetStudent(ctx, &store.FindStudent{ID: &id})
		if err != nil {
			return nil, notFoundOr(err, "student %d not found", id)
		}
		return student, nil
	})
}

// CreateStudent registers a student and sends a welcome email.
func (s *Service) CreateStudent(ctx context.Context, create *store.Student) (*store.Student, error) {
	if strings.TrimSpace(create.Name) == "" || len(create.Name) > 100 {
		return nil, apierrors.InvalidArgument("name must be 1-100 characters")
	}
	if err := validateEmail(create.Email); err != nil {
		return nil, err
	}
	if strings.TrimSpace(create.StudentNumber) == "" || len(create.StudentNumber) > 20 {
		return nil, apierrors.InvalidArgument("student_id must be 1-20 characters")
	}
	if strings.TrimSpace(create.Grade) == "" || len(create.Grade) > 10 {
		return nil, apierrors.InvalidArgument("grade must be 1-10 characters")
	}
	create.Active = true

	student, err := s.store.CreateStudent(ctx, create)
	if err != nil {
		return nil, conflictOr(err, "student with email %s or student id %s already exists", create.Email, create.StudentNumber)
	}
	s.cache.InvalidateStudent(student.ID)

	s.send(ctx, notify.KindWelcome, student.Email, "", notify.Data{
		StudentName:   student.Name,
		StudentNumber: student.StudentNumber,
		Grade:         student.Grade,
		Email:         student.Email,
	})
	return student, nil
}

// UpdateStudent applies patch to the student.
func (s *Service) UpdateStudent(ctx context.Context, id int32, patch *StudentPatch) (*store.Student, error) {
	update := &store.UpdateStudent{ID: id, Active: patch.Active}
	if v := patch.Name; v != nil {
		if strings.TrimSpace(*v) == "" || len(*v) > 100 {
			return nil, apierrors.InvalidArgument("name must be 1-100 characters")
		}
		update.Name = v
	}
	if v := patch.Email; v != nil {
		if err := validateEmail(*v); err != nil {
			return nil, err
		}
		update.Email = v
	}
	if v := patch.Grade; v != nil {
		if strings.TrimSpace(*v) == "" || len(*v) > 10 {
			return nil, apierrors.InvalidArgument("grade must be 1-10 characters")
		}
		update.Grade = v
	}

	student, err := s.store.UpdateStudent(ctx, update)
	if err != nil {
		if err = notFoundOr(err, "student %d not found", id); apierrors.IsCode(err, apierrors.ErrCodeNotFound) {
			return nil, err
		}
		return nil, conflictOr(err, "email %s is already registered", deref(patch.Email))
	}
	s.cache.InvalidateStudent(id)
	return student, nil
}

// NotifyStudent sends a free-form message to a student.
func (s *Service) NotifyStudent(ctx context.Context, id int32, n *Notification) (*NotificationResult, error) {
	if strings.TrimSpace(n.Message) == "" {
		return nil, apierrors.InvalidArgument("message is required")
	}
	student, err := s.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}

	msg, err := notify.Render(notify.KindGeneral, student.Email, n.Subject, notify.Data{
		StudentName: student.Name,
		Message:     n.Message,
	})
	if err != nil {
		return nil, err
	}
	if msg.Subject == "" {
		msg.Subject = "Library Notification"
	}
	receipt, err := s.notifier.Send(ctx, msg)
	if err != nil {
		return nil, err
	}
	return &NotificationResult{
		StudentID:   student.ID,
		StudentName: student.Name,
		EmailSent:   true,
		EmailID:     receipt.ID,
		Message:     "Notification sent successfully",
	}, nil
}

// StudentBorrowedBooks lists the loans a student has not returned yet.
func (s *Service) StudentBorrowedBooks(ctx context.Context, id int32) (*BorrowedBooks, error) {
	student, err := s.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	borrows, err := s.store.ListBorrows(ctx, &store.FindBorrow{StudentID: &student.ID, Status: ptr(store.BorrowActive)})
	if err != nil {
		return nil, err
	}
	return &BorrowedBooks{
		StudentID:     student.ID,
		StudentName:   student.Name,
		BorrowedBooks: borrows,
		TotalBorrowed: len(borrows),
	}, nil
}

// StudentBorrowHistory returns up to limit of a student's loans, newest first.
func (s *Service) StudentBorrowHistory(ctx context.Context, id int32, limit int) (*BorrowHistory, error) {
	if limit < 1 || limit > maxHistoryLimit {
		return nil, apierrors.InvalidArgument("limit must be between 1 and %d", maxHistoryLimit)
	}
	student, err := s.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	borrows, err := s.store.ListBorrows(ctx, &store.FindBorrow{StudentID: &student.ID})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(borrows, func(a, b *store.Borrow) int {
		if c := cmp.Compare(b.BorrowDate, a.BorrowDate); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	total := len(borrows)
	if len(borrows) > limit {
		borrows = borrows[:limit]
	}
	return &BorrowHistory{
		StudentID:     student.ID,
		StudentName:   student.Name,
		BorrowHistory: borrows,
		TotalRecords:  total,
	}, nil
}

// StudentFines reports the fine accruing today on each of a student's overdue
// loans at DefaultFinePerDay.
func (s *Service) StudentFines(ctx context.Context, id int32) (*FineStatement, error) {
	student, err := s.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	overdue, err := s.store.ListBorrows(ctx, &store.FindBorrow{StudentID: &student.ID, DueBefore: ptr(s.today())})
	if err != nil {
		return nil, err
	}

	statement := &FineStatement{
		StudentID:   student.ID,
		StudentName: student.Name,
		FineDetails: make([]*FineCalculation, 0, len(overdue)),
	}
	now := s.now()
	for _, borrow := range overdue {
		book, err := s.GetBook(ctx, borrow.BookID)
		if err != nil {
			return nil, err
		}
		days := daysOverdue(borrow.DueDate, now)
		fine := &FineCalculation{
			BorrowID:    borrow.ID,
			DaysOverdue: days,
			FinePerDay:  DefaultFinePerDay,
			TotalFine:   float64(days) * DefaultFinePerDay,
			StudentName: student.Name,
			BookTitle:   book.Title,
		}
		statement.FineDetails = append(statement.FineDetails, fine)
		statement.OutstandingFines += fine.TotalFine
	}
	return statement, nil
}

// StudentStats counts students overall, active, and per grade.
func (s *Service) StudentStats(ctx context.Context) (*StudentStats, error) {
	students, err := s.ListStudents(ctx, false)
	if err != nil {
		return nil, err
	}
	stats := &StudentStats{TotalStudents: len(students), ByGrade: map[string]int{}}
	for _, student := range students {
		if student.Active {
			stats.ActiveStudents++
		}
		stats.ByGrade[student.Grade]++
	}
	return stats, nil
}

// SearchStudentsByName matches name as a case-insensitive substring of student names.
func (s *Service) SearchStudentsByName(ctx context.Context, name string) (*StudentSearch, error) {
	if len(strings.TrimSpace(name)) < minNameQuery {
		return nil, apierrors.InvalidArgument("name must be at least %d characters", minNameQuery)
	}
	students, err := s.store.ListStudents(ctx, &store.FindStudent{NameQuery: &name})
	if err != nil {
		return nil, err
	}
	return &StudentSearch{SearchQuery: name, Students: students, Count: len(students)}, nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apierrors.InvalidArgument("invalid email %q", email)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
