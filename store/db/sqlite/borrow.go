package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/libris/store"
)

const borrowColumns = "id, uid, student_id, book_id, borrow_date, due_date, returned_date, status, fine_amount, created_ts, updated_ts"

func (d *DB) CreateBorrow(ctx context.Context, create *store.Borrow) (*store.Borrow, error) {
	return createBorrow(ctx, d.db, create)
}

func createBorrow(ctx context.Context, q queryer, create *store.Borrow) (*store.Borrow, error) {
	status := create.Status
	if status == "" {
		status = store.BorrowActive
	}
	stmt := `INSERT INTO borrow (uid, student_id, book_id, borrow_date, due_date, status)
		VALUES (` + placeholders(6) + `)
		RETURNING ` + borrowColumns
	borrow, err := scanBorrow(q.QueryRowContext(ctx, stmt,
		create.UID, create.StudentID, create.BookID, create.BorrowDate, create.DueDate, status,
	))
	if err != nil {
		return nil, classify(err, "failed to create borrow")
	}
	return borrow, nil
}

func (d *DB) ListBorrows(ctx context.Context, find *store.FindBorrow) ([]*store.Borrow, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.StudentID; v != nil {
		where, args = append(where, "student_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.BookID; v != nil {
		where, args = append(where, "book_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Status; v != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.DueBefore; v != nil {
		where, args = append(where, "returned_date IS NULL AND due_date < "+placeholder(len(args)+1)), append(args, *v)
	}

	rows, err := d.db.QueryContext(ctx, `SELECT `+borrowColumns+` FROM borrow WHERE `+strings.Join(where, " AND ")+` ORDER BY due_date ASC, id ASC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query borrows")
	}
	defer rows.Close()

	list := make([]*store.Borrow, 0)
	for rows.Next() {
		borrow, err := scanBorrow(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan borrow")
		}
		list = append(list, borrow)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate borrows")
	}
	return list, nil
}

func (d *DB) UpdateBorrow(ctx context.Context, update *store.UpdateBorrow) (*store.Borrow, error) {
	return updateBorrow(ctx, d.db, update)
}

func updateBorrow(ctx context.Context, q queryer, update *store.UpdateBorrow) (*store.Borrow, error) {
	set, args := []string{}, []any{}
	if v := update.DueDate; v != nil {
		set, args = append(set, "due_date = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.ReturnedDate; v != nil {
		set, args = append(set, "returned_date = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Status; v != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.FineAmount; v != nil {
		set, args = append(set, "fine_amount = "+placeholder(len(args)+1)), append(args, *v)
	}
	set, args = touch(set, args, update.UpdatedTs)
	args = append(args, update.ID)

	stmt := `UPDATE borrow SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + ` RETURNING ` + borrowColumns
	borrow, err := scanBorrow(q.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(store.ErrNotFound, "borrow %d", update.ID)
		}
		return nil, classify(err, "failed to update borrow")
	}
	return borrow, nil
}

// OpenBorrow inserts the loan and marks its book borrowed in one transaction.
// A book that is no longer available fails with store.ErrConflict and nothing is written.
func (d *DB) OpenBorrow(ctx context.Context, create *store.Borrow) (*store.Borrow, error) {
	var borrow *store.Borrow
	err := d.runInTx(ctx, func(tx *sql.Tx) error {
		var err error
		if borrow, err = createBorrow(ctx, tx, create); err != nil {
			return err
		}

		var id int32
		stmt := `UPDATE book SET status = ?, updated_ts = strftime('%s', 'now') WHERE id = ? AND status = ? RETURNING id`
		if err := tx.QueryRowContext(ctx, stmt, string(store.BookBorrowed), create.BookID, string(store.BookAvailable)).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errors.Wrapf(store.ErrConflict, "book %d is not available", create.BookID)
			}
			return errors.Wrap(err, "failed to lend book")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return borrow, nil
}

// CloseBorrow applies update to the loan and marks its book available in one transaction.
func (d *DB) CloseBorrow(ctx context.Context, update *store.UpdateBorrow) (*store.Borrow, error) {
	var borrow *store.Borrow
	err := d.runInTx(ctx, func(tx *sql.Tx) error {
		var err error
		if borrow, err = updateBorrow(ctx, tx, update); err != nil {
			return err
		}
		available := store.BookAvailable
		_, err = updateBook(ctx, tx, &store.UpdateBook{ID: borrow.BookID, Status: &available})
		return err
	})
	if err != nil {
		return nil, err
	}
	return borrow, nil
}

func scanBorrow(row rowScanner) (*store.Borrow, error) {
	var borrow store.Borrow
	var returnedDate sql.NullString
	if err := row.Scan(
		&borrow.ID,
		&borrow.UID,
		&borrow.StudentID,
		&borrow.BookID,
		&borrow.BorrowDate,
		&borrow.DueDate,
		&returnedDate,
		&borrow.Status,
		&borrow.FineAmount,
		&borrow.CreatedTs,
		&borrow.UpdatedTs,
	); err != nil {
		return nil, err
	}
	if returnedDate.Valid {
		borrow.ReturnedDate = &returnedDate.String
	}
	return &borrow, nil
}
