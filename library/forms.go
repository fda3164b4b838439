package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"
)

var (
	// ErrMissingField is returned before any call when a required field is empty.
	ErrMissingField = errors.New("required field is empty")
	// ErrInvalidEmail is returned for anything but a bare address like a@b.c.
	ErrInvalidEmail = errors.New("invalid email address")
)

// DefaultRegisterRedirect is the pause between a successful registration and
// the switch back to the login view.
const DefaultRegisterRedirect = 2 * time.Second

const (
	msgLoginFailed      = "Invalid username or password"
	msgRegisterFailed   = "Registration failed. Please try again."
	msgRegisterComplete = "Registration successful! Please login."
)

func required(fields ...[2]string) error {
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			return fmt.Errorf("%s: %w", f[0], ErrMissingField)
		}
	}
	return nil
}

func (in BookInput) validate() error {
	return required(
		[2]string{"title", in.Title},
		[2]string{"author", in.Author},
		[2]string{"isbn", in.ISBN},
	)
}

// bareAddress accepts only a plain addr-spec; display names and angle
// brackets are rejected.
func bareAddress(s string) (string, error) {
	in := strings.TrimSpace(s)
	addr, err := mail.ParseAddress(in)
	if err != nil || addr.Name != "" || addr.Address != in {
		return "", fmt.Errorf("email %q: %w", s, ErrInvalidEmail)
	}
	return addr.Address, nil
}

// LoginForm submits credentials and opens the session on success.
type LoginForm struct {
	api     AuthAPI
	session *Session
	log     *slog.Logger

	mu      sync.Mutex
	loading bool
	errText string
}

func NewLoginForm(api AuthAPI, session *Session, log *slog.Logger) *LoginForm {
	if log == nil {
		log = slog.Default()
	}
	return &LoginForm{api: api, session: session, log: log}
}

// Submit performs exactly one login call. On failure the session is left
// untouched and Error returns a generic message.
func (f *LoginForm) Submit(ctx context.Context, creds Credentials) error {
	if err := required(
		[2]string{"username", creds.Username},
		[2]string{"password", creds.Password},
	); err != nil {
		return err
	}

	f.mu.Lock()
	f.loading = true
	f.errText = ""
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.loading = false
		f.mu.Unlock()
	}()

	resp, err := f.api.Login(ctx, creds)
	if err != nil {
		f.log.Info("login failed", slog.String("username", creds.Username), slog.String("err", err.Error()))
		f.mu.Lock()
		f.errText = msgLoginFailed
		f.mu.Unlock()
		return fmt.Errorf("login: %w", err)
	}

	f.session.Login(User{Username: resp.Username, Role: resp.Role}, resp.Token)
	f.log.Info("logged in", slog.String("username", resp.Username), slog.String("role", string(resp.Role)))
	return nil
}

func (f *LoginForm) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

// Error is the message to show under the form, empty when there is none.
func (f *LoginForm) Error() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errText
}

// RegisterForm creates an account and, on success, schedules a switch back
// to the login view.
type RegisterForm struct {
	api      AuthAPI
	onSwitch func()
	delay    time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	loading bool
	errText string
	success string
	timer   *time.Timer
}

func NewRegisterForm(api AuthAPI, onSwitchToLogin func(), delay time.Duration, log *slog.Logger) *RegisterForm {
	if delay <= 0 {
		delay = DefaultRegisterRedirect
	}
	if log == nil {
		log = slog.Default()
	}
	return &RegisterForm{api: api, onSwitch: onSwitchToLogin, delay: delay, log: log}
}

// Submit performs exactly one register call. An empty role registers a member.
func (f *RegisterForm) Submit(ctx context.Context, reg Registration) error {
	if err := required(
		[2]string{"username", reg.Username},
		[2]string{"email", reg.Email},
		[2]string{"password", reg.Password},
	); err != nil {
		return err
	}
	email, err := bareAddress(reg.Email)
	if err != nil {
		return err
	}
	reg.Email = email
	if reg.Role == "" {
		reg.Role = RoleMember
	}

	f.mu.Lock()
	f.loading = true
	f.errText = ""
	f.success = ""
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.loading = false
		f.mu.Unlock()
	}()

	if _, err := f.api.Register(ctx, reg); err != nil {
		f.log.Info("register failed", slog.String("username", reg.Username), slog.String("err", err.Error()))
		f.mu.Lock()
		f.errText = msgRegisterFailed
		f.mu.Unlock()
		return fmt.Errorf("register: %w", err)
	}

	f.mu.Lock()
	f.success = msgRegisterComplete
	if f.timer != nil {
		f.timer.Stop()
	}
	if f.onSwitch != nil {
		f.timer = time.AfterFunc(f.delay, f.onSwitch)
	}
	f.mu.Unlock()
	return nil
}

// Cancel stops a pending switch to the login view.
func (f *RegisterForm) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *RegisterForm) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

func (f *RegisterForm) Error() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errText
}

func (f *RegisterForm) Success() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.success
}
