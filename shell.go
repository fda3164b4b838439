package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"library-client/library"
)

const unknownCommand = "Unknown command. Type one of the available commands listed above."

// shell renders the App on a line-oriented terminal.
type shell struct {
	sc  *bufio.Scanner
	mu  sync.Mutex
	out io.Writer

	// readPassword defaults to an unmasked line read; main swaps in
	// term.ReadPassword when stdin is a terminal.
	readPassword func(prompt string) (string, error)
}

func newShell(in io.Reader, out io.Writer) *shell {
	s := &shell{sc: bufio.NewScanner(in), out: out}
	s.readPassword = s.readLinePassword
	return s
}

func (s *shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *shell) println(args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, args...)
}

// prompt prints label and returns the trimmed next line; ok is false at EOF.
func (s *shell) prompt(label string) (string, bool) {
	s.printf("%s", label)
	if !s.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.sc.Text()), true
}

func (s *shell) readLinePassword(label string) (string, error) {
	v, ok := s.prompt(label)
	if !ok {
		return "", io.EOF
	}
	return v, nil
}

func (s *shell) confirm(question string) bool {
	answer, ok := s.prompt(question + " [y/N]: ")
	if !ok {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func (s *shell) run(ctx context.Context, app *library.App) error {
	app.OnViewChange(func(v library.View) {
		if v == library.ViewLogin {
			s.println("\nSign in to your account.")
		}
	})

	s.println("Library Management")
	var mounted *library.Dashboard

	for {
		view := app.View()
		if view == library.ViewDashboard {
			if d := app.Dashboard(); d != nil && d != mounted {
				mounted = d
				if err := d.Mount(ctx); err == nil {
					s.renderDashboard(d)
				} else {
					s.renderMessage(d.State())
				}
			}
		} else {
			mounted = nil
		}

		s.printHelp(app, view)
		cmd, ok := s.prompt(fmt.Sprintf("\n[%s]> ", view))
		if !ok {
			return nil
		}
		if cmd == "exit" {
			s.println("Goodbye!")
			return nil
		}
		s.dispatch(ctx, app, view, cmd)
	}
}

// dispatch runs cmd against the view it was typed in. The view can change
// while the prompt is waiting (the post-registration redirect fires on a
// timer), in which case the command is dropped.
func (s *shell) dispatch(ctx context.Context, app *library.App, view library.View, cmd string) {
	if current := app.View(); current != view {
		s.printf("The %s view is now active; %q was not run.\n", current, cmd)
		return
	}
	switch view {
	case library.ViewLogin:
		s.handleLoginView(ctx, app, cmd)
	case library.ViewRegister:
		s.handleRegisterView(ctx, app, cmd)
	case library.ViewDashboard:
		s.handleDashboard(ctx, app.Dashboard(), cmd)
	}
}

func (s *shell) printHelp(app *library.App, view library.View) {
	switch view {
	case library.ViewLogin:
		s.println("Commands: login, register, exit")
	case library.ViewRegister:
		s.println("Commands: sign up, login, exit")
	case library.ViewDashboard:
		cmds := "list, search, available, borrow, return, refresh, logout, exit"
		if d := app.Dashboard(); d != nil && d.CanManage() {
			cmds = "list, search, available, borrow, return, add, edit, delete, refresh, logout, exit"
		}
		s.println("Commands: " + cmds)
	}
}

// ------------------ Login / Register ------------------

func (s *shell) handleLoginView(ctx context.Context, app *library.App, cmd string) {
	switch cmd {
	case "login":
		username, ok := s.prompt("Username: ")
		if !ok {
			return
		}
		password, err := s.readPassword("Password: ")
		if err != nil {
			s.printf("Error reading password: %v\n", err)
			return
		}
		if err := app.Login.Submit(ctx, library.Credentials{Username: username, Password: password}); err != nil {
			if errors.Is(err, library.ErrMissingField) {
				s.printf("Error: %v\n", err)
				return
			}
			s.printf("✖ %s\n", app.Login.Error())
			return
		}
		if u, ok := appUser(app); ok {
			s.printf("Signed in as %s (%s)\n", u.Username, u.Role)
		}
	case "register":
		app.SwitchToRegister()
		s.println("Create Account: type 'sign up' to fill in the form.")
	default:
		s.println(unknownCommand)
	}
}

func (s *shell) handleRegisterView(ctx context.Context, app *library.App, cmd string) {
	switch cmd {
	case "sign up":
		var reg library.Registration
		var ok bool
		if reg.Username, ok = s.prompt("Username: "); !ok {
			return
		}
		if reg.Email, ok = s.prompt("Email: "); !ok {
			return
		}
		password, err := s.readPassword("Password: ")
		if err != nil {
			s.printf("Error reading password: %v\n", err)
			return
		}
		reg.Password = password
		roleInput, ok := s.prompt("Role [MEMBER/ADMIN] (default MEMBER): ")
		if !ok {
			return
		}
		if roleInput != "" {
			role, err := library.ParseRole(roleInput)
			if err != nil {
				s.printf("Error: %v\n", err)
				return
			}
			reg.Role = role
		}

		if err := app.Register.Submit(ctx, reg); err != nil {
			if errors.Is(err, library.ErrMissingField) || errors.Is(err, library.ErrInvalidEmail) {
				s.printf("Error: %v\n", err)
				return
			}
			s.printf("✖ %s\n", app.Register.Error())
			return
		}
		s.printf("✔ %s\n", app.Register.Success())
	case "login":
		app.Register.Cancel()
		app.SwitchToLogin()
	default:
		s.println(unknownCommand)
	}
}

func appUser(app *library.App) (library.User, bool) {
	d := app.Dashboard()
	if d == nil {
		return library.User{}, false
	}
	st := d.State()
	return st.User, st.User.Username != ""
}

// ------------------ Dashboard ------------------

func (s *shell) handleDashboard(ctx context.Context, d *library.Dashboard, cmd string) {
	if d == nil {
		return
	}
	var err error
	switch cmd {
	case "list":
		s.renderDashboard(d)
		return
	case "refresh":
		err = d.Reload(ctx)
	case "search":
		term, ok := s.prompt("Search books by title or author (empty to clear): ")
		if !ok {
			return
		}
		err = d.SetSearchTerm(ctx, term)
	case "available":
		err = d.SetAvailableOnly(ctx, !d.State().AvailableOnly)
	case "borrow":
		id, ok := s.promptID()
		if !ok {
			return
		}
		err = d.Borrow(ctx, id)
	case "return":
		id, ok := s.promptID()
		if !ok {
			return
		}
		err = d.Return(ctx, id)
	case "add":
		if !d.CanManage() {
			s.println(unknownCommand)
			return
		}
		d.OpenAdd()
		err = s.fillBookForm(ctx, d, library.BookInput{})
	case "edit":
		if !d.CanManage() {
			s.println(unknownCommand)
			return
		}
		id, ok := s.promptID()
		if !ok {
			return
		}
		b, found := findBook(d.State().Books, id)
		if !found {
			s.printf("No book with ID %d in the current list.\n", id)
			return
		}
		d.OpenEdit(b)
		err = s.fillBookForm(ctx, d, library.InputFrom(b))
	case "delete":
		if !d.CanManage() {
			s.println(unknownCommand)
			return
		}
		id, ok := s.promptID()
		if !ok {
			return
		}
		err = d.Delete(ctx, id)
		if errors.Is(err, library.ErrDeleteCancelled) {
			return
		}
	case "logout":
		d.Logout()
		s.println("Signed out.")
		return
	default:
		s.println(unknownCommand)
		return
	}

	if errors.Is(err, library.ErrMissingField) {
		s.printf("Error: %v\n", err)
		return
	}
	s.renderDashboard(d)
}

func (s *shell) promptID() (int64, bool) {
	raw, ok := s.prompt("Book ID: ")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.printf("Invalid book ID: %s\n", raw)
		return 0, false
	}
	return id, true
}

// fillBookForm prompts for each field; an empty answer keeps the current
// value. Entering "cancel" as the title closes the form.
func (s *shell) fillBookForm(ctx context.Context, d *library.Dashboard, in library.BookInput) error {
	title := "Add New Book"
	if d.State().Editing != nil {
		title = "Edit Book"
	}
	s.println(title + " (type 'cancel' to close)")

	fields := []struct {
		label string
		dst   *string
	}{
		{"Title", &in.Title},
		{"Author", &in.Author},
		{"ISBN", &in.ISBN},
	}
	for _, f := range fields {
		label := f.label + ": "
		if *f.dst != "" {
			label = fmt.Sprintf("%s [%s]: ", f.label, *f.dst)
		}
		v, ok := s.prompt(label)
		if !ok || v == "cancel" {
			d.CloseModal()
			return nil
		}
		if v != "" {
			*f.dst = v
		}
	}
	err := d.Save(ctx, in)
	if errors.Is(err, library.ErrMissingField) {
		d.CloseModal()
	}
	return err
}

func findBook(books []library.Book, id int64) (library.Book, bool) {
	for _, b := range books {
		if b.ID == id {
			return b, true
		}
	}
	return library.Book{}, false
}

func (s *shell) renderMessage(st library.DashboardState) {
	if st.Message == nil {
		return
	}
	mark := "✔"
	if st.Message.Kind == library.MessageError {
		mark = "✖"
	}
	s.printf("%s %s\n", mark, st.Message.Text)
}

func (s *shell) renderDashboard(d *library.Dashboard) {
	st := d.State()
	s.renderMessage(st)

	filter := "all books"
	if st.AvailableOnly {
		filter = "available only"
	}
	header := fmt.Sprintf("\n%s (%s) | %s", st.User.Username, st.User.Role, filter)
	if st.SearchTerm != "" {
		header += fmt.Sprintf(" | search: %q", st.SearchTerm)
	}
	s.println(header)

	if len(st.Books) == 0 {
		s.println("No books found")
		s.println(st.EmptyHint())
		return
	}

	s.printf("%-5s %-30s %-25s %-15s %-10s %s\n", "ID", "Title", "Author", "ISBN", "Status", "Actions")
	s.println(strings.Repeat("-", 110))
	for _, b := range st.Books {
		s.printf("%-5d %-30s %-25s %-15s %-10s %s\n",
			b.ID,
			truncateString(b.Title, 30),
			truncateString(b.Author, 25),
			truncateString(b.ISBN, 15),
			b.Status(),
			actionList(library.ActionsFor(b, st.User.Role, st.Loading)))
	}
}

func actionList(a library.CardActions) string {
	var names []string
	if a.Borrow {
		names = append(names, "borrow")
	}
	if a.Return {
		names = append(names, "return")
	}
	if a.Edit {
		names = append(names, "edit")
	}
	if a.Delete {
		names = append(names, "delete")
	}
	return strings.Join(names, ", ")
}

// truncateString cuts on rune boundaries so multi-byte titles stay valid UTF-8.
func truncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	return string(r[:maxLength-3]) + "..."
}
