package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/libris/store"
)

const studentColumns = "id, name, email, student_number, grade, active, created_ts, updated_ts"

func (d *DB) CreateStudent(ctx context.Context, create *store.Student) (*store.Student, error) {
	stmt := `INSERT INTO student (name, email, student_number, grade, active)
		VALUES (` + placeholders(5) + `)
		RETURNING ` + studentColumns
	student, err := scanStudent(d.db.QueryRowContext(ctx, stmt, create.Name, create.Email, create.StudentNumber, create.Grade, create.Active))
	if err != nil {
		return nil, classify(err, "failed to create student")
	}
	return student, nil
}

func (d *DB) ListStudents(ctx context.Context, find *store.FindStudent) ([]*store.Student, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Email; v != nil {
		where, args = append(where, "email = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Active; v != nil {
		where, args = append(where, "active = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.NameQuery; v != nil && *v != "" {
		where, args = append(where, "name LIKE "+placeholder(len(args)+1)), append(args, "%"+*v+"%")
	}

	rows, err := d.db.QueryContext(ctx, `SELECT `+studentColumns+` FROM student WHERE `+strings.Join(where, " AND ")+` ORDER BY name ASC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query students")
	}
	defer rows.Close()

	list := make([]*store.Student, 0)
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan student")
		}
		list = append(list, student)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate students")
	}
	return list, nil
}

func (d *DB) UpdateStudent(ctx context.Context, update *store.UpdateStudent) (*store.Student, error) {
	set, args := []string{}, []any{}
	if v := update.Name; v != nil {
		set, args = append(set, "name = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Email; v != nil {
		set, args = append(set, "email = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Grade; v != nil {
		set, args = append(set, "grade = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Active; v != nil {
		set, args = append(set, "active = "+placeholder(len(args)+1)), append(args, *v)
	}
	set, args = touch(set, args, update.UpdatedTs)
	args = append(args, update.ID)

	stmt := `UPDATE student SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + ` RETURNING ` + studentColumns
	student, err := scanStudent(d.db.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(store.ErrNotFound, "student %d", update.ID)
		}
		return nil, classify(err, "failed to update student")
	}
	return student, nil
}

func scanStudent(row rowScanner) (*store.Student, error) {
	var student store.Student
	if err := row.Scan(
		&student.ID,
		&student.Name,
		&student.Email,
		&student.StudentNumber,
		&student.Grade,
		&student.Active,
		&student.CreatedTs,
		&student.UpdatedTs,
	); err != nil {
		return nil, err
	}
	return &student, nil
}
