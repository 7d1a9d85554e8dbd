package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/libris/store"
)

const bookColumns = "id, title, author, isbn, category, publication_year, status, created_ts, updated_ts"

func (d *DB) CreateBook(ctx context.Context, create *store.Book) (*store.Book, error) {
	fields := []string{"title", "author", "isbn", "category", "publication_year"}
	args := []any{create.Title, create.Author, create.ISBN, create.Category, create.PublicationYear}
	if create.Status != "" {
		fields, args = append(fields, "status"), append(args, create.Status)
	}

	stmt := `INSERT INTO book (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING ` + bookColumns
	book, err := scanBook(d.db.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		return nil, classify(err, "failed to create book")
	}
	return book, nil
}

func (d *DB) ListBooks(ctx context.Context, find *store.FindBook) ([]*store.Book, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Query; v != nil && *v != "" {
		pattern := "%" + *v + "%"
		where = append(where, "(title LIKE "+placeholder(len(args)+1)+" OR author LIKE "+placeholder(len(args)+2)+")")
		args = append(args, pattern, pattern)
	}
	if v := find.Category; v != nil {
		where, args = append(where, "category = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Author; v != nil && *v != "" {
		where, args = append(where, "author LIKE "+placeholder(len(args)+1)), append(args, "%"+*v+"%")
	}
	if v := find.Status; v != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `SELECT ` + bookColumns + ` FROM book WHERE ` + strings.Join(where, " AND ") + ` ORDER BY title ASC`
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query books")
	}
	defer rows.Close()

	list := make([]*store.Book, 0)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan book")
		}
		list = append(list, book)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate books")
	}
	return list, nil
}

func (d *DB) UpdateBook(ctx context.Context, update *store.UpdateBook) (*store.Book, error) {
	return updateBook(ctx, d.db, update)
}

func updateBook(ctx context.Context, q queryer, update *store.UpdateBook) (*store.Book, error) {
	set, args := []string{}, []any{}
	if v := update.Title; v != nil {
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Author; v != nil {
		set, args = append(set, "author = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Category; v != nil {
		set, args = append(set, "category = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.PublicationYear; v != nil {
		set, args = append(set, "publication_year = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Status; v != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, *v)
	}
	set, args = touch(set, args, update.UpdatedTs)
	args = append(args, update.ID)

	stmt := `UPDATE book SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + ` RETURNING ` + bookColumns
	book, err := scanBook(q.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(store.ErrNotFound, "book %d", update.ID)
		}
		return nil, classify(err, "failed to update book")
	}
	return book, nil
}

func (d *DB) DeleteBook(ctx context.Context, delete *store.DeleteBook) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM book WHERE id = ?`, delete.ID)
	if err != nil {
		return errors.Wrap(err, "failed to delete book")
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(store.ErrNotFound, "book %d", delete.ID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*store.Book, error) {
	var book store.Book
	if err := row.Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.ISBN,
		&book.Category,
		&book.PublicationYear,
		&book.Status,
		&book.CreatedTs,
		&book.UpdatedTs,
	); err != nil {
		return nil, err
	}
	return &book, nil
}
