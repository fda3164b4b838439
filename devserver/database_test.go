package devserver

import (
	"errors"
	"path/filepath"
	"testing"

	"library-client/library"
)

func tempDB(t *testing.T) *Database {
	t.Helper()
	dir := t.TempDir()
	db, err := NewDatabase(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func addUser(t *testing.T, db *Database, name string, role library.Role) int64 {
	t.Helper()
	id, err := db.AddUser(name, name+"@example.com", "hash", role)
	if err != nil {
		t.Fatalf("add user %s: %v", name, err)
	}
	return id
}

func TestAddBookRejectsDuplicateISBN(t *testing.T) {
	db := tempDB(t)
	if _, err := db.AddBook(library.BookInput{Title: "Dune", Author: "Herbert", ISBN: "1"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := db.AddBook(library.BookInput{Title: "Dune 2", Author: "Herbert", ISBN: "1"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
}

func TestAddUserRejectsDuplicates(t *testing.T) {
	db := tempDB(t)
	addUser(t, db, "alice", library.RoleMember)

	if _, err := db.AddUser("alice", "other@example.com", "h", library.RoleMember); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate username: want ErrDuplicate, got %v", err)
	}
	if _, err := db.AddUser("bob", "alice@example.com", "h", library.RoleMember); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate email: want ErrDuplicate, got %v", err)
	}

	u, err := db.GetUserByUsername("alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Role != library.RoleMember {
		t.Fatalf("role = %s", u.Role)
	}
	if _, err := db.GetUserByUsername("nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestSearchIsCaseInsensitiveOnTitleAndAuthor(t *testing.T) {
	db := tempDB(t)
	db.AddBook(library.BookInput{Title: "Dune", Author: "Frank Herbert", ISBN: "1"})
	db.AddBook(library.BookInput{Title: "Emma", Author: "Jane Austen", ISBN: "2"})

	cases := map[string]int{"dune": 1, "HERB": 1, "austen": 1, "e": 2, "zzz": 0}
	for term, want := range cases {
		res, err := db.SearchBooks(term)
		if err != nil {
			t.Fatalf("search %q: %v", term, err)
		}
		if len(res) != want {
			t.Fatalf("search %q: want %d results, got %d", term, want, len(res))
		}
	}
}

func TestSearchTreatsWildcardsLiterally(t *testing.T) {
	db := tempDB(t)
	db.AddBook(library.BookInput{Title: "100% Natural", Author: "Ann Smith", ISBN: "1"})
	db.AddBook(library.BookInput{Title: "snake_case Handbook", Author: "Bo Li", ISBN: "2"})
	db.AddBook(library.BookInput{Title: "Dune", Author: "Frank Herbert", ISBN: "3"})

	cases := map[string]int{"%": 1, "_": 1, "e_c": 1, "0%": 1, `\`: 0, "d_ne": 0}
	for term, want := range cases {
		res, err := db.SearchBooks(term)
		if err != nil {
			t.Fatalf("search %q: %v", term, err)
		}
		if len(res) != want {
			t.Fatalf("search %q: want %d results, got %d", term, want, len(res))
		}
	}
}

func TestBorrowReturnFlow(t *testing.T) {
	db := tempDB(t)
	b, _ := db.AddBook(library.BookInput{Title: "Book", Author: "Author", ISBN: "1"})
	alice := addUser(t, db, "alice", library.RoleMember)
	bob := addUser(t, db, "bob", library.RoleMember)

	got, err := db.BorrowBook(b.ID, alice)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if got.Available {
		t.Fatalf("book still available after borrow")
	}

	if _, err := db.BorrowBook(b.ID, bob); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("second borrow: want ErrUnavailable, got %v", err)
	}
	if avail, _ := db.GetAvailableBooks(); len(avail) != 0 {
		t.Fatalf("want no available books, got %d", len(avail))
	}

	if _, err := db.ReturnBook(b.ID, bob); !errors.Is(err, ErrNotBorrower) {
		t.Fatalf("return by other member: want ErrNotBorrower, got %v", err)
	}
	got, err = db.ReturnBook(b.ID, alice)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if !got.Available {
		t.Fatalf("book not available after return")
	}
	if _, err := db.ReturnBook(b.ID, alice); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double return: want ErrNotFound, got %v", err)
	}
}

func TestDeleteRejectsBorrowedBook(t *testing.T) {
	db := tempDB(t)
	b, _ := db.AddBook(library.BookInput{Title: "Book", Author: "Author", ISBN: "1"})
	alice := addUser(t, db, "alice", library.RoleMember)
	db.BorrowBook(b.ID, alice)

	if err := db.DeleteBook(b.ID); !errors.Is(err, ErrBorrowed) {
		t.Fatalf("want ErrBorrowed, got %v", err)
	}
	db.ReturnBook(b.ID, alice)
	if err := db.DeleteBook(b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.GetBook(b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}
}

func TestUpdateBook(t *testing.T) {
	db := tempDB(t)
	b, _ := db.AddBook(library.BookInput{Title: "Old", Author: "A", ISBN: "1"})

	got, err := db.UpdateBook(b.ID, library.BookInput{Title: "New", Author: "B", ISBN: "2"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != "New" || got.Author != "B" || got.ISBN != "2" || !got.Available {
		t.Fatalf("unexpected book after update: %+v", got)
	}
	if _, err := db.UpdateBook(999, library.BookInput{Title: "x", Author: "y", ISBN: "z"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.db")
	db, err := NewDatabase(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.AddBook(library.BookInput{Title: "Kept", Author: "A", ISBN: "1"})
	db.Close()

	db, err = NewDatabase(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	books, err := db.GetAllBooks()
	if err != nil || len(books) != 1 {
		t.Fatalf("want 1 book after reopen, got %d (%v)", len(books), err)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	db := tempDB(t)
	first, err := Seed(db, "admin", "secret")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if first.Books != len(starterCatalog) || !first.Admin {
		t.Fatalf("unexpected first seed: %+v", first)
	}
	second, err := Seed(db, "admin", "secret")
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if second.Books != 0 || second.Skipped != len(starterCatalog) || second.Admin {
		t.Fatalf("unexpected second seed: %+v", second)
	}
}
