package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/wolfman30/salesbot/internal/advice"
	"github.com/wolfman30/salesbot/internal/records"
	"github.com/wolfman30/salesbot/internal/session"
)

func TestHandle_IdleWithoutKeywordRepliesHelp(t *testing.T) {
	h := newHarness(t, Config{})

	for _, msg := range []string{"hello", "", "1", "what can you do?"} {
		reply := h.send(t, msg)
		if reply.Outcome != OutcomeHelp {
			t.Fatalf("%q: expected help outcome, got %s", msg, reply.Outcome)
		}
		if reply.Text != h.machine.replies.help() {
			t.Fatalf("%q: expected help text, got %q", msg, reply.Text)
		}
		h.requireState(t, session.Idle())
	}
}

func TestHandle_FullRecordingFlowSavesOneAppointment(t *testing.T) {
	h := newHarness(t, Config{})

	h.reachConfirmation(t)
	reply := h.send(t, "1")
	if reply.Outcome != OutcomeOK || reply.Text != msgSaved {
		t.Fatalf("expected save success, got %s %q (%v)", reply.Outcome, reply.Text, reply.Err)
	}
	h.requireState(t, session.Idle())
	if draft := h.session(t).Draft; draft != (session.Draft{}) {
		t.Fatalf("expected draft cleared, got %#v", draft)
	}

	appts, err := h.repo.ListAppointments(context.Background(), testUser, "")
	if err != nil {
		t.Fatalf("list appointments: %v", err)
	}
	if len(appts) != 1 {
		t.Fatalf("expected exactly one appointment, got %d", len(appts))
	}
	got := appts[0]
	if got.Date != "2025/11/17" || got.Time != "14:30" || got.Customer != "Acme" || got.Detail != "discussed pricing" {
		t.Fatalf("unexpected appointment %#v", got)
	}
	if got.UserID != testUser || got.ConversationID != testUser {
		t.Fatalf("expected ownership by %s, got %#v", testUser, got)
	}
	exists, _ := h.repo.CustomerExists(context.Background(), "Acme", testUser)
	if !exists {
		t.Fatal("expected customer to be created")
	}
}

func TestHandle_PromptsFollowStepOrder(t *testing.T) {
	h := newHarness(t, Config{})

	steps := []struct {
		msg    string
		prompt string
		state  session.State
	}{
		{"record", msgPromptDate, session.Recording(session.StepDate)},
		{"2025/11/17", msgPromptTime, session.Recording(session.StepTime)},
		{"14:30", msgPromptCustomer, session.Recording(session.StepCustomer)},
		{"Acme", msgPromptNote, session.Recording(session.StepNote)},
	}
	for _, s := range steps {
		if reply := h.send(t, s.msg); reply.Text != s.prompt {
			t.Fatalf("%q: expected prompt %q, got %q", s.msg, s.prompt, reply.Text)
		}
		h.requireState(t, s.state)
	}

	reply := h.send(t, "discussed pricing")
	for _, want := range []string{"2025/11/17", "14:30", "Acme", "discussed pricing", "1️⃣", "5️⃣"} {
		if !strings.Contains(reply.Text, want) {
			t.Fatalf("confirmation missing %q:\n%s", want, reply.Text)
		}
	}
	if !strings.Contains(msgPromptNote, NoteSkipSentinel) {
		t.Fatal("note prompt should mention the skip sentinel")
	}
}

func TestHandle_EditTimeKeepsSiblingFields(t *testing.T) {
	h := newHarness(t, Config{})
	h.reachConfirmation(t)

	if reply := h.send(t, "3"); reply.Text != msgEditTime {
		t.Fatalf("expected time re-prompt, got %q", reply.Text)
	}
	h.requireState(t, session.Recording(session.StepTime))
	draft := h.session(t).Draft
	if draft.Date != "2025/11/17" || draft.Customer != "Acme" || draft.Note != "discussed pricing" {
		t.Fatalf("edit lost sibling fields: %#v", draft)
	}

	// Re-entering the time walks forward through the remaining steps.
	h.send(t, "16:00")
	h.requireState(t, session.Recording(session.StepCustomer))
	h.send(t, "Acme")
	h.send(t, "discussed pricing")
	h.send(t, "1")

	appts, _ := h.repo.ListAppointments(context.Background(), testUser, "Acme")
	if len(appts) != 1 || appts[0].Time != "16:00" || appts[0].Date != "2025/11/17" {
		t.Fatalf("unexpected appointments after edit: %#v", appts)
	}
}

func TestHandle_EditChoicesReturnToStep(t *testing.T) {
	cases := []struct {
		choice string
		prompt string
		step   session.RecordingStep
	}{
		{"2", msgEditDate, session.StepDate},
		{"3", msgEditTime, session.StepTime},
		{"4", msgEditCustomer, session.StepCustomer},
		{"5", msgEditNote, session.StepNote},
	}
	for _, tc := range cases {
		t.Run(tc.choice, func(t *testing.T) {
			h := newHarness(t, Config{})
			h.reachConfirmation(t)
			before := h.session(t).Draft

			reply := h.send(t, tc.choice)
			if reply.Text != tc.prompt || reply.Outcome != OutcomeOK {
				t.Fatalf("expected %q, got %s %q", tc.prompt, reply.Outcome, reply.Text)
			}
			h.requireState(t, session.Recording(tc.step))
			if after := h.session(t).Draft; after != before {
				t.Fatalf("draft changed: %#v -> %#v", before, after)
			}
		})
	}
}

func TestHandle_NumericCustomerResolvesStoredName(t *testing.T) {
	h := newHarness(t, Config{})
	acme := h.seedCustomer(t, "Acme Corp")

	h.send(t, "record")
	h.send(t, "2025/11/17")
	h.send(t, "14:30")
	reply := h.send(t, fmt.Sprint(acme.ID))
	if reply.Outcome != OutcomeOK || !strings.Contains(reply.Text, "Acme Corp") {
		t.Fatalf("expected resolved customer echo, got %s %q", reply.Outcome, reply.Text)
	}
	if got := h.session(t).Draft.Customer; got != "Acme Corp" {
		t.Fatalf("expected draft customer Acme Corp, got %q", got)
	}
	h.requireState(t, session.Recording(session.StepNote))

	h.send(t, "demo")
	h.send(t, "1")
	if n := h.repo.createCustomerCalls.Load(); n != 0 {
		t.Fatalf("existing customer should not be recreated, got %d creates", n)
	}
}

func TestHandle_FullWidthCustomerIDResolvesStoredName(t *testing.T) {
	h := newHarness(t, Config{})
	h.seedCustomer(t, "Acme")

	h.send(t, "record")
	h.send(t, "2025/11/17")
	h.send(t, "14:30")
	reply := h.send(t, "１")
	if reply.Outcome != OutcomeOK || reply.Text != customerResolved("Acme") {
		t.Fatalf("expected resolved customer echo, got %s %q", reply.Outcome, reply.Text)
	}
	if got := h.session(t).Draft.Customer; got != "Acme" {
		t.Fatalf("expected draft customer Acme, got %q", got)
	}
	h.requireState(t, session.Recording(session.StepNote))
}

func TestHandle_UnknownCustomerIDStaysOnStep(t *testing.T) {
	h := newHarness(t, Config{})
	h.send(t, "record")
	h.send(t, "2025/11/17")
	h.send(t, "14:30")

	reply := h.send(t, "999")
	if reply.Outcome != OutcomeNotFound || !errors.Is(reply.Err, ErrNotFound) {
		t.Fatalf("expected not found, got %s (%v)", reply.Outcome, reply.Err)
	}
	if reply.Text != msgCustomerMissing {
		t.Fatalf("unexpected text %q", reply.Text)
	}
	h.requireState(t, session.Recording(session.StepCustomer))
	if got := h.session(t).Draft.Customer; got != "" {
		t.Fatalf("expected no customer set, got %q", got)
	}

	// Out-of-range digits are reported the same way.
	if reply := h.send(t, "99999999999999999999999"); reply.Outcome != OutcomeNotFound {
		t.Fatalf("expected not found for overflowing id, got %s", reply.Outcome)
	}
}

func TestHandle_CustomerLookupFailureStaysOnStep(t *testing.T) {
	h := newHarness(t, Config{})
	h.send(t, "record")
	h.send(t, "2025/11/17")
	h.send(t, "14:30")
	h.repo.findCustomerErr = errors.New("db down")

	reply := h.send(t, "7")
	if reply.Outcome != OutcomeCollaboratorFailure || !errors.Is(reply.Err, ErrCollaborator) {
		t.Fatalf("expected collaborator failure, got %s (%v)", reply.Outcome, reply.Err)
	}
	h.requireState(t, session.Recording(session.StepCustomer))
}

func TestHandle_InvalidConfirmationChoiceChangesNothing(t *testing.T) {
	h := newHarness(t, Config{})
	h.reachConfirmation(t)
	before := h.session(t)

	for _, msg := range []string{"6", "0", "yes", "12", "１", ""} {
		reply := h.send(t, msg)
		if reply.Text != msgChooseOption || reply.Outcome != OutcomeInvalidInput {
			t.Fatalf("%q: expected retry prompt, got %s %q", msg, reply.Outcome, reply.Text)
		}
		if !errors.Is(reply.Err, ErrInvalidInput) {
			t.Fatalf("%q: expected ErrInvalidInput, got %v", msg, reply.Err)
		}
		after := h.session(t)
		if !after.State.Is(before.State) || after.Draft != before.Draft {
			t.Fatalf("%q: session changed from %#v to %#v", msg, before, after)
		}
	}
}

func TestHandle_ConfirmationChoiceIsTrimmed(t *testing.T) {
	h := newHarness(t, Config{})
	h.reachConfirmation(t)

	if reply := h.send(t, "  1 \n"); reply.Text != msgSaved {
		t.Fatalf("expected save, got %q", reply.Text)
	}
}

func TestHandle_SaveFailureStaysAtConfirmation(t *testing.T) {
	cases := map[string]func(*faultyRepository){
		"exists":      func(r *faultyRepository) { r.customerExistsErr = errors.New("timeout") },
		"customer":    func(r *faultyRepository) { r.createCustomerErr = errors.New("constraint") },
		"appointment": func(r *faultyRepository) { r.createAppointmentErr = errors.New("disk full") },
	}
	for name, inject := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, Config{})
			h.reachConfirmation(t)
			draft := h.session(t).Draft
			inject(h.repo)

			reply := h.send(t, "1")
			if reply.Text != msgSaveFailed || reply.Outcome != OutcomeCollaboratorFailure {
				t.Fatalf("expected save failure, got %s %q", reply.Outcome, reply.Text)
			}
			h.requireState(t, session.Recording(session.StepConfirm))
			if got := h.session(t).Draft; got != draft {
				t.Fatalf("draft changed after failed save: %#v", got)
			}
		})
	}
}

func TestHandle_SaveRetryAfterFailure(t *testing.T) {
	h := newHarness(t, Config{})
	h.reachConfirmation(t)
	h.repo.createAppointmentErr = errors.New("disk full")
	h.send(t, "1")

	h.repo.createAppointmentErr = nil
	if reply := h.send(t, "1"); reply.Text != msgSaved {
		t.Fatalf("expected retry to save, got %q", reply.Text)
	}
	appts, _ := h.repo.ListAppointments(context.Background(), testUser, "")
	if len(appts) != 1 {
		t.Fatalf("expected one appointment after retry, got %d", len(appts))
	}
}

func TestHandle_HistoryListsCustomers(t *testing.T) {
	h := newHarness(t, Config{})
	a := h.seedCustomer(t, "Acme")
	b := h.seedCustomer(t, "Globex")

	reply := h.send(t, "show me my history please")
	if reply.Outcome != OutcomeOK {
		t.Fatalf("unexpected outcome %s (%v)", reply.Outcome, reply.Err)
	}
	for _, want := range []string{
		fmt.Sprintf("ID %d: Acme", a.ID),
		fmt.Sprintf("ID %d: Globex", b.ID),
		"Total: 2 customers",
	} {
		if !strings.Contains(reply.Text, want) {
			t.Fatalf("customer list missing %q:\n%s", want, reply.Text)
		}
	}
	h.requireState(t, session.HistoryLookup())
}

func TestHandle_HistoryWithoutCustomersResetsToIdle(t *testing.T) {
	h := newHarness(t, Config{})

	reply := h.send(t, "history")
	if reply.Text != h.machine.replies.noCustomers() {
		t.Fatalf("unexpected text %q", reply.Text)
	}
	h.requireState(t, session.Idle())
}

func TestHandle_HistoryKeywordRepeatedRelists(t *testing.T) {
	h := newHarness(t, Config{})
	h.seedCustomer(t, "Acme")

	first := h.send(t, "history")
	second := h.send(t, "history")
	if first.Text != second.Text {
		t.Fatalf("expected identical listings, got:\n%s\n---\n%s", first.Text, second.Text)
	}
	h.requireState(t, session.HistoryLookup())
	if h.advisor.callCount() != 0 {
		t.Fatal("advisor should not run on a re-list")
	}
}

func TestHandle_HistoryRejectsNonNumericID(t *testing.T) {
	h := newHarness(t, Config{})
	h.seedCustomer(t, "Acme")
	h.send(t, "history")

	for _, msg := range []string{"Acme", "1a", "-1", "1.5"} {
		reply := h.send(t, msg)
		if reply.Text != msgHistoryFormat || !errors.Is(reply.Err, ErrInvalidInput) {
			t.Fatalf("%q: expected format error, got %q (%v)", msg, reply.Text, reply.Err)
		}
		h.requireState(t, session.HistoryLookup())
	}
}

func TestHandle_HistoryUnknownIDAllowsRetry(t *testing.T) {
	h := newHarness(t, Config{})
	acme := h.seedCustomer(t, "Acme")
	h.seedAppointment(t, "Acme", "intro call")
	h.send(t, "history")

	reply := h.send(t, "404")
	if reply.Text != msgHistoryMissing || reply.Outcome != OutcomeNotFound {
		t.Fatalf("expected not found, got %s %q", reply.Outcome, reply.Text)
	}
	h.requireState(t, session.HistoryLookup())

	reply = h.send(t, fmt.Sprint(acme.ID))
	if !strings.HasPrefix(reply.Text, "📊 Sales analysis for Acme\n\n") {
		t.Fatalf("expected analysis after retry, got %q", reply.Text)
	}
}

func TestHandle_HistoryAcceptsFullWidthID(t *testing.T) {
	h := newHarness(t, Config{})
	h.seedCustomer(t, "Acme")
	h.seedAppointment(t, "Acme", "intro call")
	h.send(t, "履歴")
	h.requireState(t, session.HistoryLookup())

	reply := h.send(t, "１")
	if reply.Outcome != OutcomeOK || !strings.HasPrefix(reply.Text, "📊 Sales analysis for Acme\n\n") {
		t.Fatalf("expected analysis for full-width id, got %s %q", reply.Outcome, reply.Text)
	}
	if h.advisor.callCount() != 1 {
		t.Fatalf("expected one advisor call, got %d", h.advisor.callCount())
	}
	h.requireState(t, session.Idle())
}

func TestHandle_HistoryIsScopedToConversation(t *testing.T) {
	h := newHarness(t, Config{})
	other, err := h.repo.InMemoryRepository.CreateCustomer(context.Background(), "Initech", "U-other", "U-other")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	h.seedCustomer(t, "Acme")
	h.send(t, "history")

	if reply := h.send(t, fmt.Sprint(other.ID)); reply.Outcome != OutcomeNotFound {
		t.Fatalf("expected another user's customer to be invisible, got %s", reply.Outcome)
	}
}

func TestHandle_HistoryWithoutAppointmentsSkipsAdvisor(t *testing.T) {
	h := newHarness(t, Config{})
	acme := h.seedCustomer(t, "Acme")
	h.send(t, "history")

	reply := h.send(t, fmt.Sprint(acme.ID))
	if reply.Text != noHistory("Acme") {
		t.Fatalf("unexpected text %q", reply.Text)
	}
	h.requireState(t, session.Idle())
	if h.advisor.callCount() != 0 {
		t.Fatalf("advisor called %d times", h.advisor.callCount())
	}
}

func TestHandle_AdvisorGetsTenNewestAppointments(t *testing.T) {
	h := newHarness(t, Config{})
	acme := h.seedCustomer(t, "Acme")
	for i := 1; i <= 14; i++ {
		h.seedAppointment(t, "Acme", fmt.Sprintf("meeting %d", i))
	}
	h.seedAppointment(t, "Globex", "other customer")
	h.send(t, "history")

	reply := h.send(t, fmt.Sprint(acme.ID))
	if reply.Text != salesAnalysis("Acme", "Keep following up.") {
		t.Fatalf("unexpected reply %q", reply.Text)
	}
	h.requireState(t, session.Idle())

	if h.advisor.callCount() != 1 {
		t.Fatalf("expected one advisor call, got %d", h.advisor.callCount())
	}
	got := h.advisor.calls[0]
	if len(got) != advice.MaxAdviceAppointments {
		t.Fatalf("expected %d appointments, got %d", advice.MaxAdviceAppointments, len(got))
	}
	for i, appt := range got {
		want := fmt.Sprintf("meeting %d", 14-i)
		if appt.Detail != want || appt.Customer != "Acme" {
			t.Fatalf("position %d: expected %q for Acme, got %#v", i, want, appt)
		}
	}
}

func TestHandle_AdvisorApologyIsClassified(t *testing.T) {
	h := newHarness(t, Config{})
	h.advisor.text = advice.ApologyMessage
	acme := h.seedCustomer(t, "Acme")
	h.seedAppointment(t, "Acme", "intro")
	h.send(t, "history")

	reply := h.send(t, fmt.Sprint(acme.ID))
	if reply.Outcome != OutcomeCollaboratorFailure || !errors.Is(reply.Err, ErrCollaborator) {
		t.Fatalf("expected collaborator failure, got %s (%v)", reply.Outcome, reply.Err)
	}
	if !strings.Contains(reply.Text, advice.ApologyMessage) {
		t.Fatalf("expected apology in reply, got %q", reply.Text)
	}
	h.requireState(t, session.Idle())
}

func TestHandle_HistoryStoreFailuresResetToIdle(t *testing.T) {
	t.Run("list customers", func(t *testing.T) {
		h := newHarness(t, Config{})
		h.repo.listCustomersErr = errors.New("db down")

		reply := h.send(t, "history")
		if reply.Text != h.machine.replies.historyFailed() || reply.Outcome != OutcomeCollaboratorFailure {
			t.Fatalf("unexpected reply %s %q", reply.Outcome, reply.Text)
		}
		h.requireState(t, session.Idle())
	})

	t.Run("find customer", func(t *testing.T) {
		h := newHarness(t, Config{})
		h.seedCustomer(t, "Acme")
		h.send(t, "history")
		h.repo.findCustomerErr = errors.New("db down")

		if reply := h.send(t, "1"); reply.Outcome != OutcomeCollaboratorFailure {
			t.Fatalf("expected collaborator failure, got %s", reply.Outcome)
		}
		h.requireState(t, session.Idle())
	})

	t.Run("list appointments", func(t *testing.T) {
		h := newHarness(t, Config{})
		acme := h.seedCustomer(t, "Acme")
		h.send(t, "history")
		h.repo.listAppointmentsErr = errors.New("db down")

		if reply := h.send(t, fmt.Sprint(acme.ID)); reply.Outcome != OutcomeCollaboratorFailure {
			t.Fatalf("expected collaborator failure, got %s", reply.Outcome)
		}
		h.requireState(t, session.Idle())
		if h.advisor.callCount() != 0 {
			t.Fatal("advisor should not run after a store failure")
		}
	})
}

func TestHandle_KeywordsAreGlobalAndSubstring(t *testing.T) {
	h := newHarness(t, Config{})
	h.reachConfirmation(t)

	// A keyword mid-sentence restarts the flow and drops the draft.
	reply := h.send(t, "let me RECORD that again")
	if reply.Text != msgPromptDate {
		t.Fatalf("expected date prompt, got %q", reply.Text)
	}
	h.requireState(t, session.Recording(session.StepDate))
	if draft := h.session(t).Draft; draft != (session.Draft{}) {
		t.Fatalf("expected draft reset, got %#v", draft)
	}

	h.send(t, "商談の記録")
	h.requireState(t, session.Recording(session.StepDate))

	h.send(t, "履歴")
	h.requireState(t, session.Idle())
}

func TestHandle_RecordWinsOverHistory(t *testing.T) {
	h := newHarness(t, Config{})
	h.seedCustomer(t, "Acme")

	if reply := h.send(t, "record or history?"); reply.Text != msgPromptDate {
		t.Fatalf("expected record flow, got %q", reply.Text)
	}
	h.requireState(t, session.Recording(session.StepDate))
}

func TestHandle_CustomKeywords(t *testing.T) {
	h := newHarness(t, Config{Keywords: Keywords{Record: []string{"log"}, History: []string{"past"}}})

	if reply := h.send(t, "record"); reply.Outcome != OutcomeHelp {
		t.Fatalf("default keyword should be inactive, got %s", reply.Outcome)
	}
	if !strings.Contains(h.machine.replies.help(), `"log"`) {
		t.Fatalf("help should mention custom keyword: %q", h.machine.replies.help())
	}
	h.send(t, "log")
	h.requireState(t, session.Recording(session.StepDate))
}

func TestHandle_LenientDateTimeByDefault(t *testing.T) {
	h := newHarness(t, Config{})
	h.send(t, "record")
	h.send(t, "next tuesday")
	h.send(t, "after lunch")
	h.requireState(t, session.Recording(session.StepCustomer))

	draft := h.session(t).Draft
	if draft.Date != "next tuesday" || draft.Time != "after lunch" {
		t.Fatalf("expected verbatim values, got %#v", draft)
	}
}

func TestHandle_StrictDateTime(t *testing.T) {
	h := newHarness(t, Config{StrictDateTime: true})
	h.send(t, "record")

	reply := h.send(t, "next tuesday")
	if reply.Text != msgInvalidDate || !errors.Is(reply.Err, ErrInvalidInput) {
		t.Fatalf("expected date format error, got %q (%v)", reply.Text, reply.Err)
	}
	h.requireState(t, session.Recording(session.StepDate))

	h.send(t, "11月17日")
	h.requireState(t, session.Recording(session.StepTime))

	if reply := h.send(t, "after lunch"); reply.Text != msgInvalidTime {
		t.Fatalf("expected time format error, got %q", reply.Text)
	}
	h.send(t, "14時")
	h.requireState(t, session.Recording(session.StepCustomer))
}

func TestHandle_BlankInputStoredExceptCustomer(t *testing.T) {
	h := newHarness(t, Config{})
	h.send(t, "record")

	if reply := h.send(t, "   "); reply.Text != msgPromptTime || reply.Outcome != OutcomeOK {
		t.Fatalf("expected blank date to advance, got %s %q", reply.Outcome, reply.Text)
	}
	h.send(t, "")
	h.requireState(t, session.Recording(session.StepCustomer))

	reply := h.send(t, " ")
	if reply.Text != msgPromptCustomer || !errors.Is(reply.Err, ErrInvalidInput) {
		t.Fatalf("expected customer re-prompt, got %s %q", reply.Outcome, reply.Text)
	}
	h.requireState(t, session.Recording(session.StepCustomer))

	h.send(t, "Acme")
	h.send(t, "")
	h.requireState(t, session.Recording(session.StepConfirm))
	if reply := h.send(t, "1"); reply.Text != msgSaved {
		t.Fatalf("expected save with blank fields, got %q", reply.Text)
	}
	appts, err := h.repo.InMemoryRepository.ListAppointments(context.Background(), testUser, "Acme")
	if err != nil || len(appts) != 1 {
		t.Fatalf("expected one appointment, got %d (%v)", len(appts), err)
	}
	if appts[0].Date != "" || appts[0].Time != "" || appts[0].Detail != "" {
		t.Fatalf("expected blank fields stored as typed, got %#v", appts[0])
	}
}

func TestHandle_StrictRejectsBlankDate(t *testing.T) {
	h := newHarness(t, Config{StrictDateTime: true})
	h.send(t, "record")

	if reply := h.send(t, ""); reply.Text != msgInvalidDate {
		t.Fatalf("expected date format error, got %q", reply.Text)
	}
	h.requireState(t, session.Recording(session.StepDate))
}

type failingStore struct {
	session.Store
	err error
}

func (s failingStore) Get(context.Context, string) (*session.Session, error) {
	return nil, s.err
}

func TestHandle_SessionStoreFailure(t *testing.T) {
	m := NewMachine(failingStore{err: errors.New("redis down")}, records.NewInMemoryRepository(), &stubAdvisor{}, Config{})

	reply := m.Handle(context.Background(), testUser, "record")
	if reply.Text != msgSessionFailed || reply.Outcome != OutcomeCollaboratorFailure {
		t.Fatalf("unexpected reply %s %q", reply.Outcome, reply.Text)
	}
}

func TestHandle_UsersAreIndependent(t *testing.T) {
	h := newHarness(t, Config{})
	users := []string{"U-a", "U-b", "U-c", "U-d"}

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			for _, msg := range []string{"record", "2025/1/2", "09:00", user + " Inc", "note", "1"} {
				h.machine.Handle(context.Background(), user, msg)
			}
		}(u)
	}
	wg.Wait()

	for _, u := range users {
		appts, err := h.repo.ListAppointments(context.Background(), u, "")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(appts) != 1 || appts[0].Customer != u+" Inc" {
			t.Fatalf("user %s: unexpected appointments %#v", u, appts)
		}
	}
}

func TestHandle_SameUserTurnsAreSerialized(t *testing.T) {
	h := newHarness(t, Config{})
	h.send(t, "record")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.machine.Handle(context.Background(), testUser, "2025/11/17")
		}()
	}
	wg.Wait()

	// Four turns fill date, time, customer and note in order; the rest are
	// rejected menu choices.
	h.requireState(t, session.Recording(session.StepConfirm))
	want := session.Draft{Date: "2025/11/17", Time: "2025/11/17", Customer: "2025/11/17", Note: "2025/11/17"}
	if got := h.session(t).Draft; got != want {
		t.Fatalf("expected every field filled once, got %#v", got)
	}
}

func TestNewMachine_PanicsOnMissingDeps(t *testing.T) {
	cases := map[string]func(){
		"sessions": func() { NewMachine(nil, records.NewInMemoryRepository(), &stubAdvisor{}, Config{}) },
		"records":  func() { NewMachine(session.NewMemoryStore(), nil, &stubAdvisor{}, Config{}) },
		"advisor":  func() { NewMachine(session.NewMemoryStore(), records.NewInMemoryRepository(), nil, Config{}) },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatal("expected panic")
				}
			}()
			fn()
		})
	}
}
