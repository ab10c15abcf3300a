package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// State is the position in the sign-in conversation.
type State string

const (
	StateUnauthenticated  State = "unauthenticated"
	StateCodeRequested    State = "code_requested"
	StatePasswordRequired State = "password_required"
	StateAuthenticated    State = "authenticated"
)

// Authenticator sequences the phone → code → optional password sign-in flow.
// Every transition runs as a bridge operation, so two racing inputs can never
// both observe the same state and advance it twice; the mutex below only
// makes the cached fields safe to read from other goroutines.
type Authenticator struct {
	bridge *Bridge

	mu              sync.RWMutex
	state           State
	pendingPhone    string
	pendingCodeHash string
}

func NewAuthenticator(bridge *Bridge) *Authenticator {
	return &Authenticator{bridge: bridge, state: StateUnauthenticated}
}

// State returns the cached conversation state. It may lag the live session;
// use IsAuthenticated for an authoritative answer.
func (a *Authenticator) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *Authenticator) setState(state State, phone, codeHash string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = state
	a.pendingPhone = phone
	a.pendingCodeHash = codeHash
}

func (a *Authenticator) pending() (State, string, string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state, a.pendingPhone, a.pendingCodeHash
}

// RequestCode asks Telegram to send a one-time code to phone. Valid only
// before a code request is outstanding; on failure the state is unchanged.
func (a *Authenticator) RequestCode(ctx context.Context, phone string) error {
	return a.bridge.Submit(ctx, func(ctx context.Context, conn Conn) error {
		if state, _, _ := a.pending(); state != StateUnauthenticated {
			return fmt.Errorf("cannot request a code while %s", state)
		}

		sent, err := conn.Auth.SendCode(ctx, phone, auth.SendCodeOptions{})
		if err != nil {
			return &AuthError{Kind: AuthNetworkFailure, Err: err}
		}
		code, ok := sent.(*tg.AuthSentCode)
		if !ok {
			return &AuthError{Kind: AuthNetworkFailure, Err: fmt.Errorf("unexpected sent code %T", sent)}
		}

		a.setState(StateCodeRequested, phone, code.PhoneCodeHash)
		return nil
	})
}

// SubmitCode completes sign-in with the one-time code. Outcomes: success,
// second factor required, or invalid code (state stays CodeRequested so the
// user can retry). Submitting without an outstanding request resets the
// conversation.
func (a *Authenticator) SubmitCode(ctx context.Context, code string) error {
	return a.bridge.Submit(ctx, func(ctx context.Context, conn Conn) error {
		state, phone, codeHash := a.pending()
		if state != StateCodeRequested || phone == "" || codeHash == "" {
			a.setState(StateUnauthenticated, "", "")
			return &AuthError{Kind: AuthNoPendingRequest}
		}

		_, err := conn.Auth.SignIn(ctx, phone, code, codeHash)
		switch {
		case err == nil:
			a.setState(StateAuthenticated, "", "")
			return nil
		case errors.Is(err, auth.ErrPasswordAuthNeeded):
			a.setState(StatePasswordRequired, phone, codeHash)
			return nil
		case tgerr.Is(err, "PHONE_CODE_INVALID", "PHONE_CODE_EXPIRED"):
			return &AuthError{Kind: AuthInvalidCode, Err: err}
		default:
			return &AuthError{Kind: AuthNetworkFailure, Err: err}
		}
	})
}

// SubmitPassword completes sign-in with the two-factor password. On a wrong
// password the state is unchanged and the caller may retry.
func (a *Authenticator) SubmitPassword(ctx context.Context, password string) error {
	return a.bridge.Submit(ctx, func(ctx context.Context, conn Conn) error {
		if state, _, _ := a.pending(); state != StatePasswordRequired {
			return fmt.Errorf("no password expected while %s", state)
		}

		_, err := conn.Auth.Password(ctx, password)
		switch {
		case err == nil:
			a.setState(StateAuthenticated, "", "")
			return nil
		case tgerr.Is(err, "PASSWORD_HASH_INVALID"):
			return &AuthError{Kind: AuthInvalidPassword, Err: err}
		default:
			return &AuthError{Kind: AuthNetworkFailure, Err: err}
		}
	})
}

// Reset abandons the conversation from any state and clears pending fields.
func (a *Authenticator) Reset(ctx context.Context) error {
	return a.bridge.Submit(ctx, func(ctx context.Context, conn Conn) error {
		a.setState(StateUnauthenticated, "", "")
		return nil
	})
}

// IsAuthenticated re-verifies against the live session rather than trusting
// the cached state; the session can be invalidated externally (remote
// logout) without the process noticing.
func (a *Authenticator) IsAuthenticated(ctx context.Context) (bool, error) {
	var authorized bool
	err := a.bridge.Submit(ctx, func(ctx context.Context, conn Conn) error {
		status, err := conn.Auth.Status(ctx)
		if err != nil {
			return &AuthError{Kind: AuthNetworkFailure, Err: err}
		}
		authorized = status.Authorized

		state, _, _ := a.pending()
		if authorized {
			a.setState(StateAuthenticated, "", "")
		} else if state == StateAuthenticated {
			a.setState(StateUnauthenticated, "", "")
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return authorized, nil
}
