package devserver

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"library-client/library"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicate   = errors.New("already exists")
	ErrUnavailable = errors.New("book is not available for borrowing")
	ErrNotBorrower = errors.New("you can only return books that you have borrowed")
	ErrBorrowed    = errors.New("cannot delete a borrowed book")
)

// UserRecord is a stored account.
type UserRecord struct {
	ID           int64        `db:"id"`
	Username     string       `db:"username"`
	Email        string       `db:"email"`
	PasswordHash string       `db:"password_hash"`
	Role         library.Role `db:"role"`
}

type bookRow struct {
	ID        int64  `db:"id"`
	Title     string `db:"title"`
	Author    string `db:"author"`
	ISBN      string `db:"isbn"`
	Available bool   `db:"available"`
}

func (r bookRow) book() library.Book {
	return library.Book{ID: r.ID, Title: r.Title, Author: r.Author, ISBN: r.ISBN, Available: r.Available}
}

func toBooks(rows []bookRow) []library.Book {
	books := make([]library.Book, 0, len(rows))
	for _, r := range rows {
		books = append(books, r.book())
	}
	return books
}

// Database provides high-level helpers around a SQLite connection.
type Database struct {
	db *sqlx.DB
}

// NewDatabase opens (or creates) the SQLite database at dbPath and applies
// schema migrations.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps borrow/return transactions serialized.
	db.SetMaxOpenConns(1)

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Database{db: db}, nil
}

func (d *Database) Close() error { return d.db.Close() }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sqlx.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.Get(&current, `SELECT value FROM meta WHERE key='schema_version';`)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL UNIQUE,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            role TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            isbn TEXT NOT NULL UNIQUE,
            available BOOLEAN NOT NULL DEFAULT 1
        );`,
		`CREATE TABLE IF NOT EXISTS borrow_records (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            book_id INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
            user_id INTEGER NOT NULL REFERENCES users(id),
            borrowed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            returned_at DATETIME
        );`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// AddUser stores an account; passwordHash must already be hashed.
func (d *Database) AddUser(username, email, passwordHash string, role library.Role) (int64, error) {
	res, err := d.db.Exec(`INSERT INTO users(username,email,password_hash,role) VALUES(?,?,?,?)`,
		username, email, passwordHash, string(role))
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "users.email") {
				return 0, fmt.Errorf("email %w", ErrDuplicate)
			}
			return 0, fmt.Errorf("username %w", ErrDuplicate)
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (d *Database) GetUserByUsername(username string) (*UserRecord, error) {
	var u UserRecord
	err := d.db.Get(&u, `SELECT id,username,email,password_hash,role FROM users WHERE username=?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ---------------------------------------------------------------------------
// Books
// ---------------------------------------------------------------------------

func (d *Database) AddBook(in library.BookInput) (*library.Book, error) {
	res, err := d.db.Exec(`INSERT INTO books(title,author,isbn) VALUES(?,?,?)`, in.Title, in.Author, in.ISBN)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("book with ISBN %s %w", in.ISBN, ErrDuplicate)
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return d.GetBook(id)
}

func (d *Database) GetBook(id int64) (*library.Book, error) {
	var r bookRow
	err := d.db.Get(&r, `SELECT id,title,author,isbn,available FROM books WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	b := r.book()
	return &b, nil
}

func (d *Database) GetAllBooks() ([]library.Book, error) {
	var rows []bookRow
	if err := d.db.Select(&rows, `SELECT id,title,author,isbn,available FROM books ORDER BY id`); err != nil {
		return nil, err
	}
	return toBooks(rows), nil
}

func (d *Database) GetAvailableBooks() ([]library.Book, error) {
	var rows []bookRow
	if err := d.db.Select(&rows, `SELECT id,title,author,isbn,available FROM books WHERE available=1 ORDER BY id`); err != nil {
		return nil, err
	}
	return toBooks(rows), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchBooks matches keyword case-insensitively against title or author.
// The keyword is matched literally; % and _ are not wildcards.
func (d *Database) SearchBooks(keyword string) ([]library.Book, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(keyword)) + "%"
	var rows []bookRow
	err := d.db.Select(&rows, `
        SELECT id,title,author,isbn,available FROM books
        WHERE lower(title) LIKE ? ESCAPE '\' OR lower(author) LIKE ? ESCAPE '\'
        ORDER BY id`, pattern, pattern)
	if err != nil {
		return nil, err
	}
	return toBooks(rows), nil
}

// UpdateBook replaces title, author and isbn.
func (d *Database) UpdateBook(id int64, in library.BookInput) (*library.Book, error) {
	res, err := d.db.Exec(`UPDATE books SET title=?, author=?, isbn=? WHERE id=?`, in.Title, in.Author, in.ISBN, id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("book with ISBN %s %w", in.ISBN, ErrDuplicate)
		}
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("book %w", ErrNotFound)
	}
	return d.GetBook(id)
}

// DeleteBook removes an available book.
func (d *Database) DeleteBook(id int64) error {
	b, err := d.GetBook(id)
	if err != nil {
		return err
	}
	if !b.Available {
		return ErrBorrowed
	}
	_, err = d.db.Exec(`DELETE FROM books WHERE id=?`, id)
	return err
}

// ---------------------------------------------------------------------------
// Circulation
// ---------------------------------------------------------------------------

// BorrowBook records the borrow and updates availability in one transaction.
func (d *Database) BorrowBook(bookID, userID int64) (*library.Book, error) {
	tx, err := d.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var avail bool
	if err := tx.Get(&avail, `SELECT available FROM books WHERE id=?`, bookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("book %w", ErrNotFound)
		}
		return nil, err
	}
	if !avail {
		return nil, ErrUnavailable
	}
	if _, err := tx.Exec(`INSERT INTO borrow_records(book_id,user_id) VALUES(?,?)`, bookID, userID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(`UPDATE books SET available=0 WHERE id=?`, bookID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return d.GetBook(bookID)
}

// ReturnBook closes the caller's active borrow record and frees the book.
func (d *Database) ReturnBook(bookID, userID int64) (*library.Book, error) {
	tx, err := d.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var rec struct {
		ID     int64 `db:"id"`
		UserID int64 `db:"user_id"`
	}
	err = tx.Get(&rec, `SELECT id,user_id FROM borrow_records
        WHERE book_id=? AND returned_at IS NULL ORDER BY borrowed_at DESC LIMIT 1`, bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("active borrow record %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, ErrNotBorrower
	}
	if _, err := tx.Exec(`UPDATE borrow_records SET returned_at=CURRENT_TIMESTAMP WHERE id=?`, rec.ID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(`UPDATE books SET available=1 WHERE id=?`, bookID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return d.GetBook(bookID)
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
