package library

import (
	"fmt"
	"strings"
)

// Role is the access level the backend assigns to an account.
type Role string

const (
	RoleMember Role = "MEMBER"
	RoleAdmin  Role = "ADMIN"
)

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleMember, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// User is the identity held by a Session.
type User struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// IsAdmin reports whether the user may see catalog management controls.
// The check is cosmetic; the backend enforces the real boundary.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Book is the client's transient copy of a catalog entry owned by the backend.
type Book struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	ISBN      string `json:"isbn"`
	Available bool   `json:"available"`
}

// BookInput carries the editable fields of a book (the add/edit modal).
type BookInput struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

// InputFrom pre-fills an edit form from an existing book.
func InputFrom(b Book) BookInput {
	return BookInput{Title: b.Title, Author: b.Author, ISBN: b.ISBN}
}

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is what the backend returns on a successful login.
type LoginResponse struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Token    string `json:"token"`
}

// Registration is the register request body.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}
