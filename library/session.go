package library

import "sync"

// SessionState is a point-in-time copy of a Session.
type SessionState struct {
	User  *User
	Token string
}

// Authenticated reports whether the state carries an identity.
func (s SessionState) Authenticated() bool { return s.User != nil }

// Session holds the logged-in identity and bearer token for the lifetime of
// the process. Nothing is persisted; a restart always starts logged out.
// Subscribers are notified synchronously after every change.
type Session struct {
	mu     sync.RWMutex
	user   *User
	token  string
	nextID int
	subs   map[int]func(SessionState)
}

func NewSession() *Session {
	return &Session{subs: make(map[int]func(SessionState))}
}

// Login replaces the current identity and token.
func (s *Session) Login(user User, token string) {
	s.mu.Lock()
	u := user
	s.user = &u
	s.token = token
	s.mu.Unlock()
	s.notify()
}

// Logout clears the identity and token.
func (s *Session) Logout() {
	s.mu.Lock()
	s.user = nil
	s.token = ""
	s.mu.Unlock()
	s.notify()
}

// State returns a copy of the current session.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() SessionState {
	st := SessionState{Token: s.token}
	if s.user != nil {
		u := *s.user
		st.User = &u
	}
	return st
}

// User returns the current user, if any.
func (s *Session) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Session) Subscribe(fn func(SessionState)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) notify() {
	s.mu.RLock()
	st := s.stateLocked()
	subs := make([]func(SessionState), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(st)
	}
}
