// Package devserver is a local implementation of the library REST API, backed
// by SQLite. It exists so the client can be developed and tested end to end
// without the production backend.
package devserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"library-client/library"
)

// Server wires the REST routes to the database.
type Server struct {
	db   *Database
	auth *Auth
	log  *slog.Logger
}

func New(db *Database, auth *Auth, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{db: db, auth: auth, log: log}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

type bookRequest struct {
	Title  string `json:"title" binding:"required"`
	Author string `json:"author" binding:"required"`
	ISBN   string `json:"isbn" binding:"required"`
}

func (r bookRequest) input() library.BookInput {
	return library.BookInput{Title: r.Title, Author: r.Author, ISBN: r.ISBN}
}

// Handler builds the gin engine serving everything under /api.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	api := r.Group("/api")
	{
		api.POST("/auth/login", s.login)
		api.POST("/auth/register", s.register)

		api.GET("/books", s.listBooks)
		api.GET("/books/available", s.listAvailable)
		api.GET("/books/search", s.searchBooks)

		authed := api.Group("/books", s.auth.RequireToken())
		authed.POST("/:id/borrow", s.borrowBook)
		authed.POST("/:id/return", s.returnBook)

		admin := authed.Group("", RequireRole(library.RoleAdmin))
		admin.POST("", s.addBook)
		admin.PUT("/:id", s.updateBook)
		admin.DELETE("/:id", s.deleteBook)
	}
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.log.Debug("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.String("request_id", c.GetHeader("X-Request-ID")),
		)
	}
}

// fail writes the backend's plain-text error convention.
func fail(c *gin.Context, status int, err error) {
	c.String(status, "Error: "+err.Error())
}

func (s *Server) fault(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDuplicate), errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrNotBorrower), errors.Is(err, ErrBorrowed):
		fail(c, http.StatusBadRequest, err)
	default:
		s.log.Error(op+" failed", slog.String("err", err.Error()))
		fail(c, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func bookID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, errors.New("invalid book id"))
		return 0, false
	}
	return id, true
}

// ============== Auth Handlers ==============

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, errors.New("invalid request"))
		return
	}
	u, err := s.db.GetUserByUsername(req.Username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			fail(c, http.StatusBadRequest, ErrInvalidCredentials)
			return
		}
		s.fault(c, "login", err)
		return
	}
	if err := CheckPassword(u.PasswordHash, req.Password); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	token, err := s.auth.GenerateToken(u.Username, u.Role)
	if err != nil {
		s.fault(c, "generate token", err)
		return
	}
	c.JSON(http.StatusOK, library.LoginResponse{Username: u.Username, Role: u.Role, Token: token})
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, errors.New("invalid request"))
		return
	}
	roleName := req.Role
	if strings.TrimSpace(roleName) == "" {
		roleName = string(library.RoleMember)
	}
	role, err := library.ParseRole(roleName)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		s.fault(c, "hash password", err)
		return
	}
	if _, err := s.db.AddUser(req.Username, req.Email, hash, role); err != nil {
		s.fault(c, "register", err)
		return
	}
	s.log.Info("user registered", slog.String("username", req.Username), slog.String("role", string(role)))
	c.String(http.StatusOK, "User registered successfully")
}

// ============== Book Handlers ==============

func (s *Server) listBooks(c *gin.Context) {
	books, err := s.db.GetAllBooks()
	if err != nil {
		s.fault(c, "list books", err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (s *Server) listAvailable(c *gin.Context) {
	books, err := s.db.GetAvailableBooks()
	if err != nil {
		s.fault(c, "list available books", err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (s *Server) searchBooks(c *gin.Context) {
	keyword, ok := c.GetQuery("keyword")
	if !ok {
		fail(c, http.StatusBadRequest, errors.New("keyword is required"))
		return
	}
	books, err := s.db.SearchBooks(keyword)
	if err != nil {
		s.fault(c, "search books", err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (s *Server) addBook(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, errors.New("invalid request"))
		return
	}
	b, err := s.db.AddBook(req.input())
	if err != nil {
		s.fault(c, "add book", err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) updateBook(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, errors.New("invalid request"))
		return
	}
	b, err := s.db.UpdateBook(id, req.input())
	if err != nil {
		s.fault(c, "update book", err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) deleteBook(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	if err := s.db.DeleteBook(id); err != nil {
		s.fault(c, "delete book", err)
		return
	}
	c.String(http.StatusOK, "Book deleted successfully")
}

func (s *Server) borrowBook(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	u, ok := s.caller(c)
	if !ok {
		return
	}
	b, err := s.db.BorrowBook(id, u.ID)
	if err != nil {
		s.fault(c, "borrow book", err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) returnBook(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	u, ok := s.caller(c)
	if !ok {
		return
	}
	b, err := s.db.ReturnBook(id, u.ID)
	if err != nil {
		s.fault(c, "return book", err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// caller loads the account named by the validated token.
func (s *Server) caller(c *gin.Context) (*UserRecord, bool) {
	u, err := s.db.GetUserByUsername(c.GetString(ctxUsername))
	if err != nil {
		s.fault(c, "load caller", err)
		return nil, false
	}
	return u, true
}
