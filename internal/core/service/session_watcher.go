package service

import (
	"sync"

	"github.com/vlima/comanda/internal/core/domain"
)

type SessionState string

const (
	SessionStateOpen      SessionState = "OPEN"
	SessionStateClosing   SessionState = "CLOSING_REQUESTED"
	SessionStateConfirmed SessionState = "CONFIRMED"
)

// SessionWatcher infers when staff have confirmed a table's payment. There is
// no explicit "paid" record: the signal is the session document disappearing
// while the last observed status was CLOSING_REQUESTED. A missing record
// while the table was merely open means "no session yet" and must not be read
// as confirmation, so the watcher is edge-triggered on the transition, not on
// absence alone. Once confirmed it stays confirmed.
type SessionWatcher struct {
	mu      sync.Mutex
	tableID int
	last    SessionState
}

func NewSessionWatcher(tableID int) *SessionWatcher {
	return &SessionWatcher{tableID: tableID, last: SessionStateOpen}
}

// Observe feeds one full session snapshot to the watcher and returns the
// table's state as the customer view should render it.
func (w *SessionWatcher) Observe(sessions map[int]domain.TableSession) SessionState {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.last == SessionStateConfirmed {
		return SessionStateConfirmed
	}

	sess, ok := sessions[w.tableID]
	switch {
	case ok && sess.Status == domain.SessionClosingRequested:
		w.last = SessionStateClosing
	case !ok && w.last == SessionStateClosing:
		w.last = SessionStateConfirmed
	default:
		w.last = SessionStateOpen
	}
	return w.last
}

// State returns the last computed state without consuming a snapshot.
func (w *SessionWatcher) State() SessionState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}
