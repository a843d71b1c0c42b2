package session

import (
	"context"
	"time"
)

// Draft is the appointment under construction in the recording flow.
type Draft struct {
	Date     string `json:"date,omitempty"`
	Time     string `json:"time,omitempty"`
	Customer string `json:"customer,omitempty"`
	Note     string `json:"note,omitempty"`
}

// Session is the ephemeral dialogue state of one user.
type Session struct {
	State     State     `json:"state"`
	Draft     Draft     `json:"draft"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns the default session: idle with an empty draft.
func New(now time.Time) *Session {
	return &Session{State: Idle(), UpdatedAt: now}
}

// Clone returns a copy that shares nothing with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Patch lists the fields to merge into a session. Nil fields are left untouched.
type Patch struct {
	State    *State
	Date     *string
	Time     *string
	Customer *string
	Note     *string
}

// To starts a patch that moves the session to state.
func To(state State) Patch {
	return Patch{State: &state}
}

func (p Patch) WithDate(v string) Patch {
	p.Date = &v
	return p
}

func (p Patch) WithTime(v string) Patch {
	p.Time = &v
	return p
}

func (p Patch) WithCustomer(v string) Patch {
	p.Customer = &v
	return p
}

func (p Patch) WithNote(v string) Patch {
	p.Note = &v
	return p
}

// Apply merges the patch into s.
func (p Patch) Apply(s *Session) {
	if p.State != nil {
		s.State = *p.State
	}
	if p.Date != nil {
		s.Draft.Date = *p.Date
	}
	if p.Time != nil {
		s.Draft.Time = *p.Time
	}
	if p.Customer != nil {
		s.Draft.Customer = *p.Customer
	}
	if p.Note != nil {
		s.Draft.Note = *p.Note
	}
}

// Store holds per-user sessions. Implementations are safe for concurrent use
// across distinct user ids.
type Store interface {
	// Get returns the user's session, creating the default one if absent.
	Get(ctx context.Context, userID string) (*Session, error)
	// Update merges patch into the user's session and returns the result.
	Update(ctx context.Context, userID string, patch Patch) (*Session, error)
	// Reset replaces the user's session with the default one.
	Reset(ctx context.Context, userID string) error
}
