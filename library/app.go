package library

import (
	"log/slog"
	"sync"
	"time"
)

// View is the top-level screen the App shows.
type View int

const (
	ViewLogin View = iota
	ViewRegister
	ViewDashboard
)

func (v View) String() string {
	switch v {
	case ViewRegister:
		return "register"
	case ViewDashboard:
		return "dashboard"
	default:
		return "login"
	}
}

// API is everything the App needs from the backend.
type API interface {
	AuthAPI
	BookAPI
}

// AppOptions configures the views an App builds.
type AppOptions struct {
	ToastDuration    time.Duration
	RegisterRedirect time.Duration
	Confirmer        Confirmer
	Logger           *slog.Logger
}

// App shows the login or register form until a session exists, then a
// dashboard. A fresh Dashboard is built for every login so no state leaks
// between sessions.
type App struct {
	api     API
	session *Session
	opts    AppOptions

	Login    *LoginForm
	Register *RegisterForm

	mu           sync.Mutex
	showRegister bool
	dashboard    *Dashboard
	onView       func(View)
	unsubscribe  func()
}

func NewApp(api API, session *Session, opts AppOptions) *App {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	a := &App{api: api, session: session, opts: opts}
	a.Login = NewLoginForm(api, session, opts.Logger)
	a.Register = NewRegisterForm(api, a.SwitchToLogin, opts.RegisterRedirect, opts.Logger)
	a.unsubscribe = session.Subscribe(a.onSession)
	if session.Authenticated() {
		a.dashboard = a.newDashboard()
	}
	return a
}

// OnViewChange registers the single callback fired when the view changes.
func (a *App) OnViewChange(fn func(View)) {
	a.mu.Lock()
	a.onView = fn
	a.mu.Unlock()
}

// View is the screen that should currently be rendered.
func (a *App) View() View {
	if a.session.Authenticated() {
		return ViewDashboard
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.showRegister {
		return ViewRegister
	}
	return ViewLogin
}

// Dashboard returns the dashboard of the current session, or nil when
// logged out.
func (a *App) Dashboard() *Dashboard {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dashboard
}

func (a *App) SwitchToRegister() { a.setShowRegister(true) }
func (a *App) SwitchToLogin()    { a.setShowRegister(false) }

func (a *App) setShowRegister(v bool) {
	a.mu.Lock()
	changed := a.showRegister != v
	a.showRegister = v
	a.mu.Unlock()
	if changed {
		a.fireView()
	}
}

// Close detaches the App from the session.
func (a *App) Close() {
	a.Register.Cancel()
	a.unsubscribe()
}

func (a *App) onSession(st SessionState) {
	a.mu.Lock()
	switch {
	case st.Authenticated() && a.dashboard == nil:
		a.dashboard = a.newDashboard()
	case !st.Authenticated():
		a.dashboard = nil
	}
	a.mu.Unlock()
	a.fireView()
}

func (a *App) fireView() {
	a.mu.Lock()
	fn := a.onView
	a.mu.Unlock()
	if fn != nil {
		fn(a.View())
	}
}

func (a *App) newDashboard() *Dashboard {
	opts := []DashboardOption{
		WithDashboardLogger(a.opts.Logger),
		WithToastDuration(a.opts.ToastDuration),
	}
	if a.opts.Confirmer != nil {
		opts = append(opts, WithConfirmer(a.opts.Confirmer))
	}
	return NewDashboard(a.api, a.session, opts...)
}
