package dialogue

import "errors"

var (
	// ErrInvalidInput marks turns rejected for their format (non-numeric id, unknown menu choice).
	ErrInvalidInput = errors.New("dialogue: invalid input")

	// ErrNotFound marks turns that referenced an unknown customer.
	ErrNotFound = errors.New("dialogue: not found")

	// ErrCollaborator marks turns where the session store, record store or advisor failed.
	ErrCollaborator = errors.New("dialogue: collaborator failure")
)

// Outcome classifies a turn independently of its reply text.
type Outcome string

const (
	OutcomeOK                  Outcome = "ok"
	OutcomeHelp                Outcome = "help"
	OutcomeInvalidInput        Outcome = "invalid_input"
	OutcomeNotFound            Outcome = "not_found"
	OutcomeCollaboratorFailure Outcome = "collaborator_failure"
)
