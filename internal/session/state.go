package session

import (
	"encoding/json"
	"fmt"
)

// Mode names the flow a user is currently in.
type Mode string

const (
	ModeIdle          Mode = "idle"
	ModeRecording     Mode = "recording"
	ModeHistoryLookup Mode = "history_lookup"
)

// RecordingStep is the position inside the recording flow.
type RecordingStep string

const (
	StepDate     RecordingStep = "date"
	StepTime     RecordingStep = "time"
	StepCustomer RecordingStep = "customer"
	StepNote     RecordingStep = "note"
	StepConfirm  RecordingStep = "confirm"
)

func (s RecordingStep) valid() bool {
	switch s {
	case StepDate, StepTime, StepCustomer, StepNote, StepConfirm:
		return true
	}
	return false
}

// State is the dialogue position of a session. Only the constructors below
// produce values, so a step can exist only inside the recording flow and the
// history flow has exactly one waiting position (customer id selection).
// The zero value is Idle.
type State struct {
	mode Mode
	step RecordingStep
}

// Idle is the awaiting-command state.
func Idle() State { return State{mode: ModeIdle} }

// HistoryLookup waits for the user to pick a customer id.
func HistoryLookup() State { return State{mode: ModeHistoryLookup} }

// Recording positions the user at the given step of the recording flow.
func Recording(step RecordingStep) State {
	if !step.valid() {
		panic(fmt.Sprintf("session: invalid recording step %q", step))
	}
	return State{mode: ModeRecording, step: step}
}

// Mode reports the active flow.
func (s State) Mode() Mode {
	if s.mode == "" {
		return ModeIdle
	}
	return s.mode
}

// Step reports the recording step; empty outside the recording flow.
func (s State) Step() RecordingStep {
	if s.Mode() != ModeRecording {
		return ""
	}
	return s.step
}

// Is reports whether s equals other.
func (s State) Is(other State) bool {
	return s.Mode() == other.Mode() && s.Step() == other.Step()
}

func (s State) String() string {
	if s.Mode() == ModeRecording {
		return string(ModeRecording) + ":" + string(s.step)
	}
	return string(s.Mode())
}

type stateJSON struct {
	Mode Mode          `json:"mode"`
	Step RecordingStep `json:"step,omitempty"`
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{Mode: s.Mode(), Step: s.Step()})
}

func (s *State) UnmarshalJSON(data []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Mode {
	case ModeIdle, "":
		*s = Idle()
	case ModeHistoryLookup:
		*s = HistoryLookup()
	case ModeRecording:
		if !raw.Step.valid() {
			return fmt.Errorf("%w: recording step %q", ErrInvalidState, raw.Step)
		}
		*s = Recording(raw.Step)
	default:
		return fmt.Errorf("%w: mode %q", ErrInvalidState, raw.Mode)
	}
	return nil
}
