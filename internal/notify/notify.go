// Package notify delivers short user-facing messages about shrink outcomes.
// Delivery is fire-and-forget: sinks never block the caller on the user and
// never report failure back.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sink receives one notification per shrink attempt.
type Sink interface {
	Notify(title, body string)
}

// Log writes notifications to slog.
type Log struct{}

func (Log) Notify(title, body string) {
	slog.Info("notification", "id", uuid.NewString(), "title", title, "body", body)
}

// Multi fans a notification out to every sink.
type Multi []Sink

func (m Multi) Notify(title, body string) {
	for _, s := range m {
		s.Notify(title, body)
	}
}

// Flush flushes every member that delivers asynchronously, sharing one
// timeout between them.
func (m Multi) Flush(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ok := true
	for _, s := range m {
		if f, is := s.(Flusher); is {
			ok = f.Flush(time.Until(deadline)) && ok
		}
	}
	return ok
}

// Flusher is a Sink that delivers in the background.
type Flusher interface {
	Flush(timeout time.Duration) bool
}

// Note is one recorded notification.
type Note struct {
	Title string
	Body  string
}

// Recorder keeps notifications in memory. The daemon uses one to report the
// last outcome in its status.
type Recorder struct {
	// Limit caps how many notes are kept; zero keeps all.
	Limit int

	mu    sync.Mutex
	notes []Note
}

func (r *Recorder) Notify(title, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, Note{Title: title, Body: body})
	if r.Limit > 0 && len(r.notes) > r.Limit {
		r.notes = append(r.notes[:0:0], r.notes[len(r.notes)-r.Limit:]...)
	}
}

// Notes returns a copy of everything recorded so far.
func (r *Recorder) Notes() []Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Note(nil), r.notes...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Note, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notes) == 0 {
		return Note{}, false
	}
	return r.notes[len(r.notes)-1], true
}
