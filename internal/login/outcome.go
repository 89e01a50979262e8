package login

import (
	"errors"
	"fmt"
	"sync"
)

// Outcome is the state of a single login attempt.
type Outcome int

const (
	Pending Outcome = iota
	Success
	InvalidPassword
	AccountBlocked
	ChangePassword
	UnknownFailure
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Success:
		return "success"
	case InvalidPassword:
		return "invalid-password"
	case AccountBlocked:
		return "account-blocked"
	case ChangePassword:
		return "change-password"
	case UnknownFailure:
		return "unknown-failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Terminal reports whether no transition can leave o.
func (o Outcome) Terminal() bool {
	return o != Pending
}

var ErrTerminalState = errors.New("login attempt already resolved")

// Attempt tracks one login attempt from Pending to exactly one terminal outcome.
type Attempt struct {
	mu    sync.Mutex
	state Outcome
}

func NewAttempt() *Attempt {
	return &Attempt{state: Pending}
}

func (a *Attempt) State() Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Resolve moves the attempt to outcome. It fails if the attempt is already
// terminal or if outcome is not terminal.
func (a *Attempt) Resolve(outcome Outcome) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrTerminalState, a.state, outcome)
	}
	if !outcome.Terminal() {
		return fmt.Errorf("cannot resolve login attempt to %s", outcome)
	}
	a.state = outcome
	return nil
}
