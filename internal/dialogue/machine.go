package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/wolfman30/salesbot/internal/advice"
	"github.com/wolfman30/salesbot/internal/observability/metrics"
	"github.com/wolfman30/salesbot/internal/records"
	"github.com/wolfman30/salesbot/internal/session"
	"github.com/wolfman30/salesbot/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultRecordsTimeout = 5 * time.Second
	defaultAdviceTimeout  = 45 * time.Second
)

// Advisor turns a customer's appointment history into advice text. It never
// fails; errors are reported through the returned text.
type Advisor interface {
	GenerateAdvice(ctx context.Context, appointments []records.Appointment) string
}

// Keywords are the command words recognized anywhere in a message.
type Keywords struct {
	Record  []string
	History []string
}

// DefaultKeywords returns the English and Japanese command words.
func DefaultKeywords() Keywords {
	return Keywords{
		Record:  []string{"record", "記録"},
		History: []string{"history", "履歴"},
	}
}

type Config struct {
	Keywords       Keywords
	StrictDateTime bool
	RecordsTimeout time.Duration
	AdviceTimeout  time.Duration
	Logger         *logging.Logger
	Metrics        *metrics.BotMetrics
}

// Reply is the single response to one inbound message. Text is always set.
type Reply struct {
	Text    string
	Outcome Outcome
	Err     error
}

// Machine drives the per-user recording and history dialogues.
type Machine struct {
	sessions       session.Store
	records        records.Repository
	advisor        Advisor
	keywords       Keywords
	replies        replies
	strict         bool
	recordsTimeout time.Duration
	adviceTimeout  time.Duration
	locks          *session.KeyedMutex
	logger         *logging.Logger
	metrics        *metrics.BotMetrics
	tracer         trace.Tracer
}

func NewMachine(sessions session.Store, repo records.Repository, advisor Advisor, cfg Config) *Machine {
	if sessions == nil {
		panic("dialogue: session store cannot be nil")
	}
	if repo == nil {
		panic("dialogue: records repository cannot be nil")
	}
	if advisor == nil {
		panic("dialogue: advisor cannot be nil")
	}
	if len(cfg.Keywords.Record) == 0 && len(cfg.Keywords.History) == 0 {
		cfg.Keywords = DefaultKeywords()
	}
	if cfg.RecordsTimeout <= 0 {
		cfg.RecordsTimeout = defaultRecordsTimeout
	}
	if cfg.AdviceTimeout <= 0 {
		cfg.AdviceTimeout = defaultAdviceTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Machine{
		sessions:       sessions,
		records:        repo,
		advisor:        advisor,
		keywords:       cfg.Keywords,
		replies:        newReplies(cfg.Keywords),
		strict:         cfg.StrictDateTime,
		recordsTimeout: cfg.RecordsTimeout,
		adviceTimeout:  cfg.AdviceTimeout,
		locks:          session.NewKeyedMutex(),
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		tracer:         otel.Tracer("salesbot.internal.dialogue"),
	}
}

// Handle processes one inbound message for userID and returns exactly one
// reply. Turns for the same user are serialized. The user id doubles as the
// conversation id that scopes all records.
func (m *Machine) Handle(ctx context.Context, userID, text string) Reply {
	unlock := m.locks.Lock(userID)
	defer unlock()

	ctx, span := m.tracer.Start(ctx, "dialogue.handle")
	defer span.End()

	text = SanitizeInput(text)
	sess, err := m.sessions.Get(ctx, userID)
	if err != nil {
		reply := failure(msgSessionFailed, fmt.Errorf("load session: %w", err))
		m.finish(span, userID, "unknown", sess, reply)
		return reply
	}

	reply := m.dispatch(ctx, userID, sess, text)
	m.finish(span, userID, string(sess.State.Mode()), sess, reply)
	return reply
}

func (m *Machine) dispatch(ctx context.Context, userID string, sess *session.Session, text string) Reply {
	// Commands win over whatever step the user is on.
	switch {
	case ContainsKeyword(text, m.keywords.Record):
		return m.startRecording(ctx, userID)
	case ContainsKeyword(text, m.keywords.History):
		return m.startHistory(ctx, userID)
	}

	switch sess.State.Mode() {
	case session.ModeHistoryLookup:
		return m.selectHistoryCustomer(ctx, userID, text)
	case session.ModeRecording:
		return m.record(ctx, userID, sess, text)
	default:
		return Reply{Text: m.replies.help(), Outcome: OutcomeHelp}
	}
}

func (m *Machine) startRecording(ctx context.Context, userID string) Reply {
	if err := m.sessions.Reset(ctx, userID); err != nil {
		return failure(msgSessionFailed, fmt.Errorf("reset session: %w", err))
	}
	if err := m.transition(ctx, userID, session.To(session.Recording(session.StepDate))); err != nil {
		return failure(msgSessionFailed, err)
	}
	return ok(msgPromptDate)
}

func (m *Machine) startHistory(ctx context.Context, userID string) Reply {
	if err := m.sessions.Reset(ctx, userID); err != nil {
		return failure(msgSessionFailed, fmt.Errorf("reset session: %w", err))
	}

	rctx, cancel := context.WithTimeout(ctx, m.recordsTimeout)
	customers, err := m.records.ListCustomers(rctx, userID)
	cancel()
	if err != nil {
		return failure(m.replies.historyFailed(), fmt.Errorf("list customers: %w", err))
	}
	if len(customers) == 0 {
		return ok(m.replies.noCustomers())
	}

	if err := m.transition(ctx, userID, session.To(session.HistoryLookup())); err != nil {
		return failure(msgSessionFailed, err)
	}
	return ok(customerListPrompt(customers))
}

func (m *Machine) selectHistoryCustomer(ctx context.Context, userID, text string) Reply {
	if !IsNumericID(text) {
		return invalid(msgHistoryFormat, fmt.Errorf("customer id %q", text))
	}

	customer, err := m.findCustomer(ctx, userID, text)
	if errors.Is(err, records.ErrCustomerNotFound) {
		return notFound(msgHistoryMissing, err)
	}
	if err != nil {
		return m.abandonHistory(ctx, userID, err)
	}

	rctx, cancel := context.WithTimeout(ctx, m.recordsTimeout)
	appointments, err := m.records.ListAppointments(rctx, userID, customer.Name)
	cancel()
	if err != nil {
		return m.abandonHistory(ctx, userID, fmt.Errorf("list appointments: %w", err))
	}

	if err := m.sessions.Reset(ctx, userID); err != nil {
		return failure(m.replies.historyFailed(), fmt.Errorf("reset session: %w", err))
	}
	if len(appointments) == 0 {
		return ok(noHistory(customer.Name))
	}
	if len(appointments) > advice.MaxAdviceAppointments {
		appointments = appointments[:advice.MaxAdviceAppointments]
	}

	actx, cancel := context.WithTimeout(ctx, m.adviceTimeout)
	adviceText := m.advisor.GenerateAdvice(actx, appointments)
	cancel()

	reply := ok(salesAnalysis(customer.Name, adviceText))
	if adviceText == advice.ApologyMessage {
		reply.Outcome = OutcomeCollaboratorFailure
		reply.Err = fmt.Errorf("%w: advice generation failed", ErrCollaborator)
	}
	return reply
}

// abandonHistory resets a history lookup after a record store failure.
func (m *Machine) abandonHistory(ctx context.Context, userID string, cause error) Reply {
	if err := m.sessions.Reset(ctx, userID); err != nil {
		m.logger.Error("failed to reset session after history failure", "user_id", userID, "error", err)
	}
	return failure(m.replies.historyFailed(), cause)
}

func (m *Machine) record(ctx context.Context, userID string, sess *session.Session, text string) Reply {
	step := sess.State.Step()
	// Blank date, time and note are stored as typed. A customer needs a name
	// for the save to succeed.
	if text == "" && step == session.StepCustomer {
		return invalid(msgPromptCustomer, errors.New("empty customer"))
	}

	switch step {
	case session.StepDate:
		if m.strict && !IsValidDate(text) {
			return invalid(msgInvalidDate, fmt.Errorf("date %q", text))
		}
		return m.advance(ctx, userID, session.To(session.Recording(session.StepTime)).WithDate(text), msgPromptTime)
	case session.StepTime:
		if m.strict && !IsValidTime(text) {
			return invalid(msgInvalidTime, fmt.Errorf("time %q", text))
		}
		return m.advance(ctx, userID, session.To(session.Recording(session.StepCustomer)).WithTime(text), msgPromptCustomer)
	case session.StepCustomer:
		return m.recordCustomer(ctx, userID, text)
	case session.StepNote:
		updated, err := m.sessions.Update(ctx, userID, session.To(session.Recording(session.StepConfirm)).WithNote(text))
		if err != nil {
			return failure(msgSessionFailed, fmt.Errorf("update session: %w", err))
		}
		return ok(FormatConfirmation(updated.Draft))
	case session.StepConfirm:
		return m.confirm(ctx, userID, sess.Draft, text)
	default:
		return Reply{Text: m.replies.help(), Outcome: OutcomeHelp}
	}
}

func (m *Machine) recordCustomer(ctx context.Context, userID, text string) Reply {
	if !IsNumericID(text) {
		return m.advance(ctx, userID, session.To(session.Recording(session.StepNote)).WithCustomer(text), msgPromptNote)
	}

	customer, err := m.findCustomer(ctx, userID, text)
	if errors.Is(err, records.ErrCustomerNotFound) {
		return notFound(msgCustomerMissing, err)
	}
	if err != nil {
		return failure(msgLookupFailed, err)
	}
	return m.advance(ctx, userID, session.To(session.Recording(session.StepNote)).WithCustomer(customer.Name), customerResolved(customer.Name))
}

func (m *Machine) confirm(ctx context.Context, userID string, draft session.Draft, choice string) Reply {
	switch choice {
	case "1":
		return m.save(ctx, userID, draft)
	case "2":
		return m.advance(ctx, userID, session.To(session.Recording(session.StepDate)), msgEditDate)
	case "3":
		return m.advance(ctx, userID, session.To(session.Recording(session.StepTime)), msgEditTime)
	case "4":
		return m.advance(ctx, userID, session.To(session.Recording(session.StepCustomer)), msgEditCustomer)
	case "5":
		return m.advance(ctx, userID, session.To(session.Recording(session.StepNote)), msgEditNote)
	default:
		return invalid(msgChooseOption, fmt.Errorf("confirmation choice %q", choice))
	}
}

// save creates the customer when missing, then the appointment. The two
// writes are not transactional; a failed appointment insert can leave an
// orphan customer behind.
func (m *Machine) save(ctx context.Context, userID string, draft session.Draft) Reply {
	rctx, cancel := context.WithTimeout(ctx, m.recordsTimeout)
	defer cancel()

	exists, err := m.records.CustomerExists(rctx, draft.Customer, userID)
	if err != nil {
		return failure(msgSaveFailed, fmt.Errorf("check customer: %w", err))
	}
	if !exists {
		if _, err := m.records.CreateCustomer(rctx, draft.Customer, userID, userID); err != nil {
			return failure(msgSaveFailed, fmt.Errorf("create customer: %w", err))
		}
		m.logger.Info("customer created", "user_id", userID, "customer", draft.Customer)
	}

	appt, err := m.records.CreateAppointment(rctx, records.NewAppointment{
		Date:           draft.Date,
		Time:           draft.Time,
		Customer:       draft.Customer,
		Detail:         draft.Note,
		UserID:         userID,
		ConversationID: userID,
	})
	if err != nil {
		return failure(msgSaveFailed, fmt.Errorf("create appointment: %w", err))
	}
	m.logger.Info("appointment recorded", "user_id", userID, "appointment_id", appt.ID)

	if err := m.sessions.Reset(ctx, userID); err != nil {
		// The row exists; report the failure without asking for a retry.
		return failure(msgSaved, fmt.Errorf("reset session: %w", err))
	}
	return ok(msgSaved)
}

func (m *Machine) findCustomer(ctx context.Context, userID, text string) (*records.Customer, error) {
	id, err := strconv.ParseInt(NarrowDigits(text), 10, 64)
	if err != nil {
		// Digits only but out of range; no such id can exist.
		return nil, fmt.Errorf("%w: id %s", records.ErrCustomerNotFound, text)
	}
	rctx, cancel := context.WithTimeout(ctx, m.recordsTimeout)
	defer cancel()
	return m.records.FindCustomerByID(rctx, id, userID)
}

func (m *Machine) advance(ctx context.Context, userID string, patch session.Patch, prompt string) Reply {
	if err := m.transition(ctx, userID, patch); err != nil {
		return failure(msgSessionFailed, err)
	}
	return ok(prompt)
}

func (m *Machine) transition(ctx context.Context, userID string, patch session.Patch) error {
	if _, err := m.sessions.Update(ctx, userID, patch); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (m *Machine) finish(span trace.Span, userID, mode string, before *session.Session, reply Reply) {
	span.SetAttributes(
		attribute.String("dialogue.mode", mode),
		attribute.String("dialogue.outcome", string(reply.Outcome)),
	)
	if before != nil {
		span.SetAttributes(attribute.String("dialogue.state", before.State.String()))
	}
	m.metrics.ObserveTurn(mode, string(reply.Outcome))

	switch reply.Outcome {
	case OutcomeCollaboratorFailure:
		span.RecordError(reply.Err)
		span.SetStatus(codes.Error, "collaborator failure")
		m.logger.Error("dialogue turn failed", "user_id", userID, "mode", mode, "error", reply.Err)
	case OutcomeInvalidInput, OutcomeNotFound:
		m.logger.Info("dialogue turn rejected", "user_id", userID, "mode", mode, "outcome", reply.Outcome, "reason", reply.Err)
	default:
		m.logger.Debug("dialogue turn handled", "user_id", userID, "mode", mode, "outcome", reply.Outcome)
	}
}

func ok(text string) Reply {
	return Reply{Text: text, Outcome: OutcomeOK}
}

func invalid(text string, cause error) Reply {
	return Reply{Text: text, Outcome: OutcomeInvalidInput, Err: fmt.Errorf("%w: %w", ErrInvalidInput, cause)}
}

func notFound(text string, cause error) Reply {
	return Reply{Text: text, Outcome: OutcomeNotFound, Err: fmt.Errorf("%w: %w", ErrNotFound, cause)}
}

func failure(text string, cause error) Reply {
	return Reply{Text: text, Outcome: OutcomeCollaboratorFailure, Err: fmt.Errorf("%w: %w", ErrCollaborator, cause)}
}
