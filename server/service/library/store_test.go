package library

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/hrygo/libris/store"
)

// memStore is an in-memory RecordStore that counts list and get calls.
type memStore struct {
	mu       sync.Mutex
	books    map[int32]*store.Book
	students map[int32]*store.Student
	borrows  map[int32]*store.Borrow
	nextID   int32

	bookReads    atomic.Int32
	studentReads atomic.Int32
	listErr      error
	// bookWriteErr fails the book half of OpenBorrow and CloseBorrow.
	bookWriteErr error
}

func newMemStore() *memStore {
	return &memStore{
		books:    make(map[int32]*store.Book),
		students: make(map[int32]*store.Student),
		borrows:  make(map[int32]*store.Borrow),
	}
}

func (m *memStore) id() int32 {
	m.nextID++
	return m.nextID
}

func (m *memStore) ListBooks(_ context.Context, find *store.FindBook) ([]*store.Book, error) {
	m.bookReads.Add(1)
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	list := []*store.Book{}
	for id := int32(1); id <= m.nextID; id++ {
		b, ok := m.books[id]
		if !ok {
			continue
		}
		if find.ID != nil && b.ID != *find.ID {
			continue
		}
		if find.Query != nil {
			q := strings.ToLower(*find.Query)
			if !strings.Contains(strings.ToLower(b.Title), q) && !strings.Contains(strings.ToLower(b.Author), q) {
				continue
			}
		}
		if find.Category != nil && b.Category != *find.Category {
			continue
		}
		if find.Author != nil && !strings.Contains(strings.ToLower(b.Author), strings.ToLower(*find.Author)) {
			continue
		}
		if find.Status != nil && b.Status != *find.Status {
			continue
		}
		clone := *b
		list = append(list, &clone)
	}
	return list, nil
}

func (m *memStore) GetBook(ctx context.Context, find *store.FindBook) (*store.Book, error) {
	list, err := m.ListBooks(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Wrap(store.ErrNotFound, "book")
	}
	return list[0], nil
}

func (m *memStore) CreateBook(_ context.Context, create *store.Book) (*store.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.books {
		if b.ISBN == create.ISBN {
			return nil, errors.Wrap(store.ErrConflict, "isbn")
		}
	}
	b := *create
	b.ID = m.id()
	m.books[b.ID] = &b
	clone := b
	return &clone, nil
}

func (m *memStore) UpdateBook(_ context.Context, update *store.UpdateBook) (*store.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[update.ID]
	if !ok {
		return nil, errors.Wrap(store.ErrNotFound, "book")
	}
	if update.Title != nil {
		b.Title = *update.Title
	}
	if update.Author != nil {
		b.Author = *update.Author
	}
	if update.Category != nil {
		b.Category = *update.Category
	}
	if update.PublicationYear != nil {
		b.PublicationYear = *update.PublicationYear
	}
	if update.Status != nil {
		b.Status = *update.Status
	}
	clone := *b
	return &clone, nil
}

func (m *memStore) ListStudents(_ context.Context, find *store.FindStudent) ([]*store.Student, error) {
	m.studentReads.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()

	list := []*store.Student{}
	for id := int32(1); id <= m.nextID; id++ {
		st, ok := m.students[id]
		if !ok {
			continue
		}
		if find.ID != nil && st.ID != *find.ID {
			continue
		}
		if find.Email != nil && st.Email != *find.Email {
			continue
		}
		if find.Active != nil && st.Active != *find.Active {
			continue
		}
		if find.NameQuery != nil && !strings.Contains(strings.ToLower(st.Name), strings.ToLower(*find.NameQuery)) {
			continue
		}
		clone := *st
		list = append(list, &clone)
	}
	return list, nil
}

func (m *memStore) GetStudent(ctx context.Context, find *store.FindStudent) (*store.Student, error) {
	list, err := m.ListStudents(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Wrap(store.ErrNotFound, "student")
	}
	return list[0], nil
}

func (m *memStore) CreateStudent(_ context.Context, create *store.Student) (*store.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.students {
		if st.Email == create.Email || st.StudentNumber == create.StudentNumber {
			return nil, errors.Wrap(store.ErrConflict, "student")
		}
	}
	st := *create
	st.ID = m.id()
	m.students[st.ID] = &st
	clone := st
	return &clone, nil
}

func (m *memStore) UpdateStudent(_ context.Context, update *store.UpdateStudent) (*store.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.students[update.ID]
	if !ok {
		return nil, errors.Wrap(store.ErrNotFound, "student")
	}
	if update.Name != nil {
		st.Name = *update.Name
	}
	if update.Email != nil {
		st.Email = *update.Email
	}
	if update.Grade != nil {
		st.Grade = *update.Grade
	}
	if update.Active != nil {
		st.Active = *update.Active
	}
	clone := *st
	return &clone, nil
}

func (m *memStore) ListBorrows(_ context.Context, find *store.FindBorrow) ([]*store.Borrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := []*store.Borrow{}
	for id := int32(1); id <= m.nextID; id++ {
		br, ok := m.borrows[id]
		if !ok {
			continue
		}
		if find.ID != nil && br.ID != *find.ID {
			continue
		}
		if find.StudentID != nil && br.StudentID != *find.StudentID {
			continue
		}
		if find.BookID != nil && br.BookID != *find.BookID {
			continue
		}
		if find.Status != nil && br.Status != *find.Status {
			continue
		}
		if find.DueBefore != nil && (br.ReturnedDate != nil || br.DueDate >= *find.DueBefore) {
			continue
		}
		clone := *br
		list = append(list, &clone)
	}
	return list, nil
}

func (m *memStore) GetBorrow(ctx context.Context, find *store.FindBorrow) (*store.Borrow, error) {
	list, err := m.ListBorrows(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Wrap(store.ErrNotFound, "borrow")
	}
	return list[0], nil
}

func (m *memStore) CreateBorrow(_ context.Context, create *store.Borrow) (*store.Borrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	br := *create
	br.ID = m.id()
	m.borrows[br.ID] = &br
	clone := br
	return &clone, nil
}

func (m *memStore) UpdateBorrow(_ context.Context, update *store.UpdateBorrow) (*store.Borrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	br, ok := m.borrows[update.ID]
	if !ok {
		return nil, errors.Wrap(store.ErrNotFound, "borrow")
	}
	applyBorrowUpdate(br, update)
	clone := *br
	return &clone, nil
}

func applyBorrowUpdate(br *store.Borrow, update *store.UpdateBorrow) {
	if update.DueDate != nil {
		br.DueDate = *update.DueDate
	}
	if update.ReturnedDate != nil {
		br.ReturnedDate = update.ReturnedDate
	}
	if update.Status != nil {
		br.Status = *update.Status
	}
	if update.FineAmount != nil {
		br.FineAmount = *update.FineAmount
	}
}

func (m *memStore) OpenBorrow(_ context.Context, create *store.Borrow) (*store.Borrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[create.BookID]
	if !ok {
		return nil, errors.Wrap(store.ErrNotFound, "book")
	}
	if m.bookWriteErr != nil {
		return nil, m.bookWriteErr
	}
	if b.Status != store.BookAvailable {
		return nil, errors.Wrap(store.ErrConflict, "book is not available")
	}
	b.Status = store.BookBorrowed
	br := *create
	br.ID = m.id()
	m.borrows[br.ID] = &br
	clone := br
	return &clone, nil
}

func (m *memStore) CloseBorrow(_ context.Context, update *store.UpdateBorrow) (*store.Borrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	br, ok := m.borrows[update.ID]
	if !ok {
		return nil, errors.Wrap(store.ErrNotFound, "borrow")
	}
	if m.bookWriteErr != nil {
		return nil, m.bookWriteErr
	}
	if b, ok := m.books[br.BookID]; ok {
		b.Status = store.BookAvailable
	}
	applyBorrowUpdate(br, update)
	clone := *br
	return &clone, nil
}
