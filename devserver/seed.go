package devserver

import (
	"errors"
	"fmt"

	"library-client/library"
)

// starterCatalog is loaded into an empty database (title, author).
var starterCatalog = [][2]string{
	{"1984", "George Orwell"},
	{"Animal Farm", "George Orwell"},
	{"The Diary of a Young Girl", "Anne Frank"},
	{"The Art of War", "Sun Tzu"},
	{"The Fellowship of the Ring", "J.R.R. Tolkien"},
	{"The Two Towers", "J.R.R. Tolkien"},
	{"The Return of the King", "J.R.R. Tolkien"},
	{"Harry Potter and the Philosopher's Stone", "J.K. Rowling"},
	{"Harry Potter and the Chamber of Secrets", "J.K. Rowling"},
	{"Romeo and Juliet", "William Shakespeare"},
	{"The Three Musketeers", "Alexandre Dumas"},
	{"Dune", "Frank Herbert"},
}

// SeedResult reports what Seed inserted.
type SeedResult struct {
	Books   int
	Skipped int
	Admin   bool
}

// Seed inserts the starter catalog, skipping ISBNs that already exist, and
// creates the admin account when adminUser is non-empty and absent.
func Seed(db *Database, adminUser, adminPassword string) (SeedResult, error) {
	var res SeedResult
	for i, entry := range starterCatalog {
		in := library.BookInput{Title: entry[0], Author: entry[1], ISBN: fmt.Sprintf("DEV-%04d", i+1)}
		if _, err := db.AddBook(in); err != nil {
			if errors.Is(err, ErrDuplicate) {
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("seed %q: %w", in.Title, err)
		}
		res.Books++
	}

	if adminUser == "" {
		return res, nil
	}
	if _, err := db.GetUserByUsername(adminUser); err == nil {
		return res, nil
	} else if !errors.Is(err, ErrNotFound) {
		return res, err
	}
	hash, err := HashPassword(adminPassword)
	if err != nil {
		return res, err
	}
	if _, err := db.AddUser(adminUser, adminUser+"@library.local", hash, library.RoleAdmin); err != nil {
		return res, fmt.Errorf("seed admin: %w", err)
	}
	res.Admin = true
	return res, nil
}
