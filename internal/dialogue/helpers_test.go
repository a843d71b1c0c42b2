package dialogue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/wolfman30/salesbot/internal/advice"
	"github.com/wolfman30/salesbot/internal/records"
	"github.com/wolfman30/salesbot/internal/session"
)

const testUser = "U1234567890"

type stubAdvisor struct {
	mu    sync.Mutex
	text  string
	calls [][]records.Appointment
}

func (a *stubAdvisor) GenerateAdvice(_ context.Context, appointments []records.Appointment) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, appointments)
	if a.text == "" {
		return "Keep following up."
	}
	return a.text
}

func (a *stubAdvisor) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

// faultyRepository injects errors in front of an in-memory repository.
type faultyRepository struct {
	*records.InMemoryRepository
	listCustomersErr     error
	findCustomerErr      error
	customerExistsErr    error
	createCustomerErr    error
	listAppointmentsErr  error
	createAppointmentErr error
	createCustomerCalls  atomic.Int32
}

func newFaultyRepository() *faultyRepository {
	return &faultyRepository{InMemoryRepository: records.NewInMemoryRepository()}
}

func (r *faultyRepository) ListCustomers(ctx context.Context, conversationID string) ([]records.Customer, error) {
	if r.listCustomersErr != nil {
		return nil, r.listCustomersErr
	}
	return r.InMemoryRepository.ListCustomers(ctx, conversationID)
}

func (r *faultyRepository) FindCustomerByID(ctx context.Context, id int64, conversationID string) (*records.Customer, error) {
	if r.findCustomerErr != nil {
		return nil, r.findCustomerErr
	}
	return r.InMemoryRepository.FindCustomerByID(ctx, id, conversationID)
}

func (r *faultyRepository) CustomerExists(ctx context.Context, name, conversationID string) (bool, error) {
	if r.customerExistsErr != nil {
		return false, r.customerExistsErr
	}
	return r.InMemoryRepository.CustomerExists(ctx, name, conversationID)
}

func (r *faultyRepository) CreateCustomer(ctx context.Context, name, userID, conversationID string) (*records.Customer, error) {
	r.createCustomerCalls.Add(1)
	if r.createCustomerErr != nil {
		return nil, r.createCustomerErr
	}
	return r.InMemoryRepository.CreateCustomer(ctx, name, userID, conversationID)
}

func (r *faultyRepository) ListAppointments(ctx context.Context, conversationID, customerName string) ([]records.Appointment, error) {
	if r.listAppointmentsErr != nil {
		return nil, r.listAppointmentsErr
	}
	return r.InMemoryRepository.ListAppointments(ctx, conversationID, customerName)
}

func (r *faultyRepository) CreateAppointment(ctx context.Context, appt records.NewAppointment) (*records.Appointment, error) {
	if r.createAppointmentErr != nil {
		return nil, r.createAppointmentErr
	}
	return r.InMemoryRepository.CreateAppointment(ctx, appt)
}

type harness struct {
	machine *Machine
	store   *session.MemoryStore
	repo    *faultyRepository
	advisor *stubAdvisor
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		store:   session.NewMemoryStore(),
		repo:    newFaultyRepository(),
		advisor: &stubAdvisor{},
	}
	h.machine = NewMachine(h.store, h.repo, h.advisor, cfg)
	return h
}

func (h *harness) send(t *testing.T, text string) Reply {
	t.Helper()
	reply := h.machine.Handle(context.Background(), testUser, text)
	if reply.Text == "" {
		t.Fatalf("reply to %q has no text", text)
	}
	return reply
}

func (h *harness) session(t *testing.T) *session.Session {
	t.Helper()
	sess, err := h.store.Get(context.Background(), testUser)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	return sess
}

func (h *harness) requireState(t *testing.T, want session.State) {
	t.Helper()
	if got := h.session(t).State; !got.Is(want) {
		t.Fatalf("expected state %s, got %s", want, got)
	}
}

func (h *harness) seedCustomer(t *testing.T, name string) *records.Customer {
	t.Helper()
	c, err := h.repo.InMemoryRepository.CreateCustomer(context.Background(), name, testUser, testUser)
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return c
}

func (h *harness) seedAppointment(t *testing.T, customer, detail string) {
	t.Helper()
	_, err := h.repo.InMemoryRepository.CreateAppointment(context.Background(), records.NewAppointment{
		Date:           "2025/11/17",
		Time:           "10:00",
		Customer:       customer,
		Detail:         detail,
		UserID:         testUser,
		ConversationID: testUser,
	})
	if err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
}

// reachConfirmation walks a fresh session to the confirmation step.
func (h *harness) reachConfirmation(t *testing.T) {
	t.Helper()
	for _, msg := range []string{"record", "2025/11/17", "14:30", "Acme", "discussed pricing"} {
		if r := h.send(t, msg); r.Outcome != OutcomeOK {
			t.Fatalf("step %q: unexpected outcome %s (%v)", msg, r.Outcome, r.Err)
		}
	}
	h.requireState(t, session.Recording(session.StepConfirm))
}

var _ Advisor = (*advice.Generator)(nil)
