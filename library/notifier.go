package library

import (
	"sync"
	"time"
)

// DefaultToastDuration is how long a message stays visible.
const DefaultToastDuration = 3 * time.Second

type MessageKind int

const (
	MessageSuccess MessageKind = iota
	MessageError
)

func (k MessageKind) String() string {
	if k == MessageError {
		return "error"
	}
	return "success"
}

// Message is a transient user-facing notification.
type Message struct {
	Text string
	Kind MessageKind
}

// Notifier shows one message at a time and dismisses it after ttl.
// A newer message resets the clock; an older timer never clears it.
type Notifier struct {
	mu       sync.Mutex
	ttl      time.Duration
	current  *Message
	gen      uint64
	timer    *time.Timer
	onChange func(msg Message, visible bool)
}

// NewNotifier returns a notifier; onChange may be nil.
func NewNotifier(ttl time.Duration, onChange func(msg Message, visible bool)) *Notifier {
	if ttl <= 0 {
		ttl = DefaultToastDuration
	}
	return &Notifier{ttl: ttl, onChange: onChange}
}

func (n *Notifier) Success(text string) { n.Show(Message{Text: text, Kind: MessageSuccess}) }
func (n *Notifier) Error(text string)   { n.Show(Message{Text: text, Kind: MessageError}) }

func (n *Notifier) Show(msg Message) {
	n.mu.Lock()
	n.gen++
	gen := n.gen
	m := msg
	n.current = &m
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.ttl, func() { n.expire(gen) })
	cb := n.onChange
	n.mu.Unlock()

	if cb != nil {
		cb(msg, true)
	}
}

// Current returns the visible message, if any.
func (n *Notifier) Current() (Message, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Message{}, false
	}
	return *n.current, true
}

// Dismiss hides the current message immediately.
func (n *Notifier) Dismiss() {
	n.mu.Lock()
	n.gen++
	n.expireLocked()
}

func (n *Notifier) expire(gen uint64) {
	n.mu.Lock()
	if gen != n.gen {
		n.mu.Unlock()
		return
	}
	n.expireLocked()
}

// expireLocked clears the message and releases n.mu.
func (n *Notifier) expireLocked() {
	prev := n.current
	n.current = nil
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	cb := n.onChange
	n.mu.Unlock()

	if cb != nil && prev != nil {
		cb(*prev, false)
	}
}
