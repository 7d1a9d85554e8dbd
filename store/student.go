package store

import (
	"context"
)

// Student is the object representing a library member.
type Student struct {
	ID            int32  `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	StudentNumber string `json:"student_id"`
	Grade         string `json:"grade"`
	Active        bool   `json:"active"`
	CreatedTs     int64  `json:"created_ts"`
	UpdatedTs     int64  `json:"updated_ts"`
}

// FindStudent is the find condition for student.
type FindStudent struct {
	ID     *int32
	Email  *string
	Active *bool

	// NameQuery matches the name as a case-insensitive substring.
	NameQuery *string
}

// UpdateStudent is the update request for student.
type UpdateStudent struct {
	ID        int32
	UpdatedTs *int64
	Name      *string
	Email     *string
	Grade     *string
	Active    *bool
}

// CreateStudent creates a new student.
func (s *Store) CreateStudent(ctx context.Context, create *Student) (*Student, error) {
	return s.driver.CreateStudent(ctx, create)
}

// ListStudents lists students with filter.
func (s *Store) ListStudents(ctx context.Context, find *FindStudent) ([]*Student, error) {
	return s.driver.ListStudents(ctx, find)
}

// UpdateStudent updates a student.
func (s *Store) UpdateStudent(ctx context.Context, update *UpdateStudent) (*Student, error) {
	return s.driver.UpdateStudent(ctx, update)
}
