// Package verify drives a disposable browser session against a served
// build and reduces everything the page reports into one Verdict.
package verify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"ascbridge/internal/logging"
)

// EventKind is the kind of signal a page can raise.
type EventKind int

const (
	EventScriptError EventKind = iota + 1
	EventRequestFailed
	EventCrash
	EventConsoleError
	EventConsoleLog
)

func (k EventKind) String() string {
	switch k {
	case EventScriptError:
		return "script_error"
	case EventRequestFailed:
		return "request_failed"
	case EventCrash:
		return "crash"
	case EventConsoleError:
		return "console_error"
	case EventConsoleLog:
		return "console_log"
	}
	return "unknown"
}

// Event is one signal from the page.
type Event struct {
	Kind EventKind
	Text string
}

// Target is what a session loads.
type Target struct {
	URL    string
	Modern bool // false emulates a browser without ES module support
}

// Driver opens an isolated browser context, subscribes to every event kind
// and only then navigates to the target. emit may be called from any
// goroutine until the returned Closer is closed.
type Driver interface {
	Open(ctx context.Context, target Target, emit func(Event)) (io.Closer, error)
}

// Session runs verifications through a Driver.
type Session struct {
	Driver Driver
}

// NewSession returns a session using d.
func NewSession(d Driver) *Session {
	return &Session{Driver: d}
}

// Verify loads url and waits for the first decisive signal. There is no
// timeout here; cancel ctx to end the wait with CauseTimeout. The error is
// non-nil only when the browser could not be driven at all.
func (s *Session) Verify(ctx context.Context, url string, modern bool) (Verdict, error) {
	id := uuid.NewString()
	log := logging.Get(logging.CategoryVerify).With("session", id)
	log.Info("Verifying %s (modern=%t)", url, modern)
	logging.Audit(logging.AuditEvent{Type: logging.AuditVerifyStart, Target: url, Success: true,
		Fields: map[string]interface{}{"session": id, "modern": modern}})

	r := newRace()
	handle, err := s.Driver.Open(ctx, Target{URL: url, Modern: modern}, func(ev Event) {
		logging.BrowserDebug("[%s] %s: %s", id, ev.Kind, ev.Text)
		if v, decisive := Classify(ev, modern); decisive {
			r.offer(v)
		}
	})
	if err != nil {
		log.Warn("Browser unavailable: %v", err)
		return Verdict{SessionID: id}, &TransportError{Op: "open", Err: err}
	}
	defer func() {
		if cerr := handle.Close(); cerr != nil {
			log.Warn("Closing browser: %v", cerr)
		}
	}()

	select {
	case <-r.done:
	case <-ctx.Done():
		r.offer(Failure(CauseTimeout, fmt.Sprintf("no verdict before the session ended: %v", ctx.Err())))
		<-r.done
	}

	v := r.verdict
	v.SessionID = id
	log.Info("Verdict: %s", v)
	logging.Audit(logging.AuditEvent{Type: logging.AuditVerifyVerdict, Target: url, Success: v.Passed,
		Error: v.Message, Fields: map[string]interface{}{"session": id, "cause": string(v.Cause)}})
	return v, nil
}

// Classify maps an event to a verdict. Console logs that do not start with
// PassPrefix are not decisive.
func Classify(ev Event, modern bool) (Verdict, bool) {
	switch ev.Kind {
	case EventScriptError:
		return Failure(CauseScriptError, ev.Text), true
	case EventRequestFailed:
		return Failure(CauseRequestFailed, ev.Text), true
	case EventCrash:
		return Failure(CauseCrash, "page crashed"), true
	case EventConsoleError:
		return Failure(CauseConsoleError, "Error message from browser console: "+ev.Text), true
	case EventConsoleLog:
		if !strings.HasPrefix(ev.Text, PassPrefix) {
			return Verdict{}, false
		}
		if want := OracleLine(modern); ev.Text != want {
			return Failure(CauseUnexpectedLog, fmt.Sprintf("expected %q, got %q", want, ev.Text)), true
		}
		return Success(ev.Text), true
	}
	return Verdict{}, false
}

// race holds the first verdict offered; later offers are dropped.
type race struct {
	once    sync.Once
	done    chan struct{}
	verdict Verdict
}

func newRace() *race {
	return &race{done: make(chan struct{})}
}

func (r *race) offer(v Verdict) bool {
	won := false
	r.once.Do(func() {
		r.verdict = v
		won = true
		close(r.done)
	})
	return won
}
