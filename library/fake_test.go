package library

import (
	"context"
	"errors"
	"sync"
)

var errBackend = errors.New("backend down")

// fakeAPI is an in-memory backend that counts calls and can be told to fail.
type fakeAPI struct {
	mu     sync.Mutex
	books  []Book
	nextID int64
	calls  map[string]int
	fail   map[string]bool
	tokens []string

	// block, when set for an op, is waited on before the op answers.
	block map[string]chan struct{}

	loginResp *LoginResponse
}

func newFakeAPI(books ...Book) *fakeAPI {
	f := &fakeAPI{
		calls:  make(map[string]int),
		fail:   make(map[string]bool),
		block:  make(map[string]chan struct{}),
		nextID: 100,
	}
	f.books = append(f.books, books...)
	return f
}

func (f *fakeAPI) enter(ctx context.Context, op, token string) error {
	f.mu.Lock()
	f.calls[op]++
	if token != "" {
		f.tokens = append(f.tokens, token)
	}
	ch := f.block[op]
	failing := f.fail[op]
	f.mu.Unlock()

	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if failing {
		return errBackend
	}
	return nil
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) reloads() int { return f.count("list") + f.count("available") }

func (f *fakeAPI) setFail(op string, v bool) {
	f.mu.Lock()
	f.fail[op] = v
	f.mu.Unlock()
}

func (f *fakeAPI) setBlock(op string, ch chan struct{}) {
	f.mu.Lock()
	f.block[op] = ch
	f.mu.Unlock()
}

func (f *fakeAPI) snapshot(pred func(Book) bool) []Book {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Book{}
	for _, b := range f.books {
		if pred == nil || pred(b) {
			out = append(out, b)
		}
	}
	return out
}

func (f *fakeAPI) find(id int64) (int, bool) {
	for i, b := range f.books {
		if b.ID == id {
			return i, true
		}
	}
	return 0, false
}

func (f *fakeAPI) Login(ctx context.Context, creds Credentials) (*LoginResponse, error) {
	if err := f.enter(ctx, "login", ""); err != nil {
		return nil, err
	}
	if f.loginResp == nil {
		return &LoginResponse{Username: creds.Username, Role: RoleMember, Token: "tok-" + creds.Username}, nil
	}
	r := *f.loginResp
	return &r, nil
}

func (f *fakeAPI) Register(ctx context.Context, _ Registration) (string, error) {
	if err := f.enter(ctx, "register", ""); err != nil {
		return "", err
	}
	return "User registered successfully", nil
}

func (f *fakeAPI) ListBooks(ctx context.Context) ([]Book, error) {
	if err := f.enter(ctx, "list", ""); err != nil {
		return nil, err
	}
	return f.snapshot(nil), nil
}

func (f *fakeAPI) ListAvailableBooks(ctx context.Context) ([]Book, error) {
	if err := f.enter(ctx, "available", ""); err != nil {
		return nil, err
	}
	return f.snapshot(func(b Book) bool { return b.Available }), nil
}

func (f *fakeAPI) SearchBooks(ctx context.Context, keyword string) ([]Book, error) {
	if err := f.enter(ctx, "search", ""); err != nil {
		return nil, err
	}
	return f.snapshot(func(b Book) bool { return MatchesTerm(b, keyword) }), nil
}

func (f *fakeAPI) AddBook(ctx context.Context, in BookInput, token string) (*Book, error) {
	if err := f.enter(ctx, "add", token); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	b := Book{ID: f.nextID, Title: in.Title, Author: in.Author, ISBN: in.ISBN, Available: true}
	f.books = append(f.books, b)
	return &b, nil
}

func (f *fakeAPI) UpdateBook(ctx context.Context, id int64, in BookInput, token string) (*Book, error) {
	if err := f.enter(ctx, "update", token); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.find(id)
	if !ok {
		return nil, errBackend
	}
	f.books[i].Title, f.books[i].Author, f.books[i].ISBN = in.Title, in.Author, in.ISBN
	b := f.books[i]
	return &b, nil
}

func (f *fakeAPI) DeleteBook(ctx context.Context, id int64, token string) (string, error) {
	if err := f.enter(ctx, "delete", token); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.find(id)
	if !ok {
		return "", errBackend
	}
	f.books = append(f.books[:i], f.books[i+1:]...)
	return "Book deleted successfully", nil
}

func (f *fakeAPI) BorrowBook(ctx context.Context, id int64, token string) (*Book, error) {
	return f.setAvailable(ctx, "borrow", id, token, false)
}

func (f *fakeAPI) ReturnBook(ctx context.Context, id int64, token string) (*Book, error) {
	return f.setAvailable(ctx, "return", id, token, true)
}

func (f *fakeAPI) setAvailable(ctx context.Context, op string, id int64, token string, v bool) (*Book, error) {
	if err := f.enter(ctx, op, token); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.find(id)
	if !ok {
		return nil, errBackend
	}
	f.books[i].Available = v
	b := f.books[i]
	return &b, nil
}
