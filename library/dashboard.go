package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	// ErrSuperseded is returned by a reload or filter pass whose result was
	// discarded because a newer one started.
	ErrSuperseded = errors.New("superseded by a newer request")
	// ErrDeleteCancelled is returned when the user declines the delete prompt.
	ErrDeleteCancelled = errors.New("delete cancelled")
)

const (
	DeleteConfirmPrompt = "Are you sure you want to delete this book?"
	msgLoadFailed       = "Failed to load books"
)

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// DashboardState is what a view needs to render the dashboard.
type DashboardState struct {
	User          User
	Books         []Book
	SearchTerm    string
	AvailableOnly bool
	Loading       bool
	Message       *Message
	ModalOpen     bool
	Editing       *Book
}

// EmptyHint is the explanation shown when no books are visible.
func (s DashboardState) EmptyHint() string {
	if s.SearchTerm != "" {
		return "Try adjusting your search criteria"
	}
	return "No books available in the library"
}

// Dashboard owns the book snapshot and orchestrates loading, filtering and
// mutations. Every mutation is followed by an unconditional full reload; the
// snapshot is never patched locally.
type Dashboard struct {
	api     BookAPI
	session *Session
	search  Searcher
	notes   *Notifier
	confirm Confirmer
	log     *slog.Logger

	mu            sync.Mutex
	books         []Book
	visible       []Book
	term          string
	availableOnly bool
	inFlight      int
	modalOpen     bool
	editing       *Book

	reloadSeq    uint64
	cancelReload context.CancelFunc
	filterSeq    uint64
	cancelFilter context.CancelFunc

	subMu sync.Mutex
	subID int
	subs  map[int]func(DashboardState)
}

// DashboardOption customises a Dashboard.
type DashboardOption func(*Dashboard)

// WithSearcher replaces the default remote-then-local search strategy.
func WithSearcher(s Searcher) DashboardOption {
	return func(d *Dashboard) { d.search = s }
}

// WithConfirmer sets the delete confirmation prompt. Without one every
// delete is declined.
func WithConfirmer(c Confirmer) DashboardOption {
	return func(d *Dashboard) { d.confirm = c }
}

// WithToastDuration sets how long success and error messages stay visible.
func WithToastDuration(ttl time.Duration) DashboardOption {
	return func(d *Dashboard) { d.notes = NewNotifier(ttl, d.onMessage) }
}

func WithDashboardLogger(l *slog.Logger) DashboardOption {
	return func(d *Dashboard) { d.log = l }
}

func NewDashboard(api BookAPI, session *Session, opts ...DashboardOption) *Dashboard {
	d := &Dashboard{
		api:     api,
		session: session,
		log:     slog.Default(),
		confirm: ConfirmFunc(func(string) bool { return false }),
		subs:    make(map[int]func(DashboardState)),
	}
	d.notes = NewNotifier(DefaultToastDuration, d.onMessage)
	for _, opt := range opts {
		opt(d)
	}
	if d.search == nil {
		d.search = NewFallbackSearch(api, d.log)
	}
	return d
}

// ------------------ State ------------------

// State returns a copy of what the view should render.
func (d *Dashboard) State() DashboardState {
	user, _ := d.session.User()
	d.mu.Lock()
	st := DashboardState{
		User:          user,
		Books:         cloneBooks(d.visible),
		SearchTerm:    d.term,
		AvailableOnly: d.availableOnly,
		Loading:       d.inFlight > 0,
		ModalOpen:     d.modalOpen,
	}
	if d.editing != nil {
		b := *d.editing
		st.Editing = &b
	}
	d.mu.Unlock()
	if msg, ok := d.notes.Current(); ok {
		st.Message = &msg
	}
	return st
}

// Loading reports whether any action is in flight. It is advisory: callers
// are not prevented from starting another action.
func (d *Dashboard) Loading() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight > 0
}

// CanManage reports whether admin controls should be shown.
func (d *Dashboard) CanManage() bool {
	u, ok := d.session.User()
	return ok && u.IsAdmin()
}

// Subscribe registers fn to receive the state after every change.
func (d *Dashboard) Subscribe(fn func(DashboardState)) (unsubscribe func()) {
	d.subMu.Lock()
	id := d.subID
	d.subID++
	d.subs[id] = fn
	d.subMu.Unlock()
	return func() {
		d.subMu.Lock()
		delete(d.subs, id)
		d.subMu.Unlock()
	}
}

func (d *Dashboard) emit() {
	d.subMu.Lock()
	if len(d.subs) == 0 {
		d.subMu.Unlock()
		return
	}
	subs := make([]func(DashboardState), 0, len(d.subs))
	for _, fn := range d.subs {
		subs = append(subs, fn)
	}
	d.subMu.Unlock()

	st := d.State()
	for _, fn := range subs {
		fn(st)
	}
}

func (d *Dashboard) onMessage(Message, bool) { d.emit() }

// ------------------ Load & filter ------------------

// Mount performs the initial load.
func (d *Dashboard) Mount(ctx context.Context) error {
	return d.Reload(ctx)
}

// Reload fetches the full or available-only list, replaces the snapshot and
// recomputes the visible set. A newer Reload cancels this one, in which case
// ErrSuperseded is returned and the snapshot is left to the newer call.
func (d *Dashboard) Reload(ctx context.Context) error {
	d.mu.Lock()
	if d.cancelReload != nil {
		d.cancelReload()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	d.reloadSeq++
	seq := d.reloadSeq
	d.cancelReload = cancel
	availableOnly := d.availableOnly
	d.mu.Unlock()
	defer cancel()

	var (
		books []Book
		err   error
	)
	if availableOnly {
		books, err = d.api.ListAvailableBooks(reqCtx)
	} else {
		books, err = d.api.ListBooks(reqCtx)
	}

	d.mu.Lock()
	if seq != d.reloadSeq {
		d.mu.Unlock()
		return ErrSuperseded
	}
	d.cancelReload = nil
	if err != nil {
		d.mu.Unlock()
		d.log.Warn("load books failed", slog.String("err", err.Error()))
		d.notes.Error(msgLoadFailed)
		return fmt.Errorf("load books: %w", err)
	}
	d.books = books
	d.mu.Unlock()

	return d.refilter(ctx)
}

// SetSearchTerm updates the search box and recomputes the visible set.
func (d *Dashboard) SetSearchTerm(ctx context.Context, term string) error {
	d.mu.Lock()
	d.term = term
	d.mu.Unlock()
	return d.refilter(ctx)
}

// SetAvailableOnly toggles the available-only filter and refetches.
func (d *Dashboard) SetAvailableOnly(ctx context.Context, on bool) error {
	d.mu.Lock()
	if d.availableOnly == on {
		d.mu.Unlock()
		return nil
	}
	d.availableOnly = on
	d.mu.Unlock()
	return d.Reload(ctx)
}

// refilter recomputes the visible set from the latest snapshot.
func (d *Dashboard) refilter(ctx context.Context) error {
	d.mu.Lock()
	if d.cancelFilter != nil {
		d.cancelFilter()
	}
	fctx, cancel := context.WithCancel(ctx)
	d.filterSeq++
	seq := d.filterSeq
	d.cancelFilter = cancel
	snapshot := cloneBooks(d.books)
	term := d.term
	availableOnly := d.availableOnly
	d.mu.Unlock()
	defer cancel()

	filtered := snapshot
	if strings.TrimSpace(term) != "" {
		res, err := d.search.Search(fctx, term, snapshot)
		if err != nil {
			d.mu.Lock()
			current := seq == d.filterSeq
			d.mu.Unlock()
			if !current {
				return ErrSuperseded
			}
			return fmt.Errorf("search books: %w", err)
		}
		filtered = res
	}
	if availableOnly {
		filtered = OnlyAvailable(filtered)
	}

	d.mu.Lock()
	if seq != d.filterSeq {
		d.mu.Unlock()
		return ErrSuperseded
	}
	d.cancelFilter = nil
	d.visible = filtered
	d.mu.Unlock()

	d.emit()
	return nil
}

// ------------------ Modal ------------------

// OpenAdd opens the book form in add mode.
func (d *Dashboard) OpenAdd() {
	d.mu.Lock()
	d.modalOpen = true
	d.editing = nil
	d.mu.Unlock()
	d.emit()
}

// OpenEdit opens the book form pre-filled from b.
func (d *Dashboard) OpenEdit(b Book) {
	d.mu.Lock()
	d.modalOpen = true
	d.editing = &b
	d.mu.Unlock()
	d.emit()
}

// CloseModal discards the form without any call.
func (d *Dashboard) CloseModal() {
	d.mu.Lock()
	d.modalOpen = false
	d.editing = nil
	d.mu.Unlock()
	d.emit()
}

// ------------------ Mutations ------------------

type mutation struct {
	op      string
	success string
	failure string
	call    func(ctx context.Context, token string) error
}

func (d *Dashboard) Borrow(ctx context.Context, id int64) error {
	return d.mutate(ctx, mutation{
		op:      "borrow book",
		success: "Book borrowed successfully!",
		failure: "Failed to borrow book",
		call: func(ctx context.Context, token string) error {
			_, err := d.api.BorrowBook(ctx, id, token)
			return err
		},
	})
}

func (d *Dashboard) Return(ctx context.Context, id int64) error {
	return d.mutate(ctx, mutation{
		op:      "return book",
		success: "Book returned successfully!",
		failure: "Failed to return book",
		call: func(ctx context.Context, token string) error {
			_, err := d.api.ReturnBook(ctx, id, token)
			return err
		},
	})
}

// Save adds a book, or updates the one being edited. The form closes only
// when the call succeeds.
func (d *Dashboard) Save(ctx context.Context, in BookInput) error {
	if err := in.validate(); err != nil {
		return err
	}

	d.mu.Lock()
	var editing *Book
	if d.editing != nil {
		b := *d.editing
		editing = &b
	}
	d.mu.Unlock()

	m := mutation{
		op:      "add book",
		success: "Book added successfully!",
		failure: "Failed to add book",
		call: func(ctx context.Context, token string) error {
			_, err := d.api.AddBook(ctx, in, token)
			return err
		},
	}
	if editing != nil {
		m = mutation{
			op:      "update book",
			success: "Book updated successfully!",
			failure: "Failed to update book",
			call: func(ctx context.Context, token string) error {
				_, err := d.api.UpdateBook(ctx, editing.ID, in, token)
				return err
			},
		}
	}

	if err := d.mutate(ctx, m); err != nil {
		return err
	}
	d.CloseModal()
	return nil
}

// Delete asks for confirmation and removes the book.
func (d *Dashboard) Delete(ctx context.Context, id int64) error {
	if !d.confirm.Confirm(DeleteConfirmPrompt) {
		return ErrDeleteCancelled
	}
	return d.mutate(ctx, mutation{
		op:      "delete book",
		success: "Book deleted successfully!",
		failure: "Failed to delete book",
		call: func(ctx context.Context, token string) error {
			_, err := d.api.DeleteBook(ctx, id, token)
			return err
		},
	})
}

// Logout ends the session.
func (d *Dashboard) Logout() {
	d.session.Logout()
}

// mutate runs exactly one API call with loading set, then reloads on success.
// The loading flag is released on every exit path, panics included.
func (d *Dashboard) mutate(ctx context.Context, m mutation) error {
	d.beginLoading()
	defer d.endLoading()

	if err := m.call(ctx, d.session.Token()); err != nil {
		d.log.Warn(m.op+" failed", slog.String("err", err.Error()))
		d.notes.Error(m.failure)
		return fmt.Errorf("%s: %w", m.op, err)
	}
	d.notes.Success(m.success)

	// The reload reports its own failure to the user.
	if err := d.Reload(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		d.log.Warn("reload after "+m.op+" failed", slog.String("err", err.Error()))
	}
	return nil
}

func (d *Dashboard) beginLoading() {
	d.mu.Lock()
	d.inFlight++
	d.mu.Unlock()
	d.emit()
}

func (d *Dashboard) endLoading() {
	d.mu.Lock()
	d.inFlight--
	d.mu.Unlock()
	d.emit()
}

func cloneBooks(books []Book) []Book {
	if books == nil {
		return nil
	}
	out := make([]Book, len(books))
	copy(out, books)
	return out
}
