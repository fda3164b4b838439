package library

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// ErrRequestFailed is returned for any non-2xx response or transport error.
// Status codes are deliberately not distinguished.
var ErrRequestFailed = errors.New("request failed")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AuthAPI is the subset of the backend used by the login and register forms.
type AuthAPI interface {
	Login(ctx context.Context, creds Credentials) (*LoginResponse, error)
	Register(ctx context.Context, reg Registration) (string, error)
}

// BookAPI is the subset of the backend used by the dashboard.
type BookAPI interface {
	ListBooks(ctx context.Context) ([]Book, error)
	ListAvailableBooks(ctx context.Context) ([]Book, error)
	SearchBooks(ctx context.Context, keyword string) ([]Book, error)
	AddBook(ctx context.Context, in BookInput, token string) (*Book, error)
	UpdateBook(ctx context.Context, id int64, in BookInput, token string) (*Book, error)
	DeleteBook(ctx context.Context, id int64, token string) (string, error)
	BorrowBook(ctx context.Context, id int64, token string) (*Book, error)
	ReturnBook(ctx context.Context, id int64, token string) (*Book, error)
}

// Client talks to the library REST API. It issues exactly one request per
// call: no retries, no caching, and no timeout beyond the caller's context.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithClientLogger sets the logger used for request tracing.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient returns a client for the API rooted at baseURL (e.g. http://localhost:8080/api).
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ AuthAPI = (*Client)(nil)
	_ BookAPI = (*Client)(nil)
)

// ------------------ Auth ------------------

func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.doJSON(ctx, "login", http.MethodPost, "/auth/login", nil, creds, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Register(ctx context.Context, reg Registration) (string, error) {
	body, err := c.do(ctx, "register", http.MethodPost, "/auth/register", nil, reg, "")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ------------------ Books ------------------

func (c *Client) ListBooks(ctx context.Context) ([]Book, error) {
	var books []Book
	if err := c.doJSON(ctx, "list books", http.MethodGet, "/books", nil, nil, "", &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (c *Client) ListAvailableBooks(ctx context.Context) ([]Book, error) {
	var books []Book
	if err := c.doJSON(ctx, "list available books", http.MethodGet, "/books/available", nil, nil, "", &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (c *Client) SearchBooks(ctx context.Context, keyword string) ([]Book, error) {
	var books []Book
	q := url.Values{"keyword": {keyword}}
	if err := c.doJSON(ctx, "search books", http.MethodGet, "/books/search", q, nil, "", &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (c *Client) AddBook(ctx context.Context, in BookInput, token string) (*Book, error) {
	var b Book
	if err := c.doJSON(ctx, "add book", http.MethodPost, "/books", nil, in, token, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) UpdateBook(ctx context.Context, id int64, in BookInput, token string) (*Book, error) {
	var b Book
	if err := c.doJSON(ctx, "update book", http.MethodPut, bookPath(id, ""), nil, in, token, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) DeleteBook(ctx context.Context, id int64, token string) (string, error) {
	body, err := c.do(ctx, "delete book", http.MethodDelete, bookPath(id, ""), nil, nil, token)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) BorrowBook(ctx context.Context, id int64, token string) (*Book, error) {
	var b Book
	if err := c.doJSON(ctx, "borrow book", http.MethodPost, bookPath(id, "borrow"), nil, nil, token, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) ReturnBook(ctx context.Context, id int64, token string) (*Book, error) {
	var b Book
	if err := c.doJSON(ctx, "return book", http.MethodPost, bookPath(id, "return"), nil, nil, token, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func bookPath(id int64, action string) string {
	p := "/books/" + strconv.FormatInt(id, 10)
	if action != "" {
		p += "/" + action
	}
	return p
}

// ------------------ Transport ------------------

func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, in any, token string, out any) error {
	body, err := c.do(ctx, op, method, path, query, in, token)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w: %w", op, ErrRequestFailed, err)
	}
	return nil
}

// do sends one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in any, token string) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	c.log.Debug("api request", slog.String("op", op), slog.String("method", method),
		slog.String("url", u), slog.String("request_id", reqID))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w: %w", op, ErrRequestFailed, err)
	}

	c.log.Debug("api response", slog.String("op", op), slog.Int("status", resp.StatusCode),
		slog.String("request_id", reqID))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: %w", op, ErrRequestFailed)
	}
	return body, nil
}
