package records

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository is the record store the dialogue reads and writes. Every call is
// scoped by the owning conversation id.
type Repository interface {
	// ListCustomers returns the conversation's customers, newest first.
	ListCustomers(ctx context.Context, conversationID string) ([]Customer, error)
	// FindCustomerByID returns ErrCustomerNotFound when the id is unknown in the conversation.
	FindCustomerByID(ctx context.Context, id int64, conversationID string) (*Customer, error)
	CustomerExists(ctx context.Context, name, conversationID string) (bool, error)
	CreateCustomer(ctx context.Context, name, userID, conversationID string) (*Customer, error)
	// ListAppointments returns appointments newest first. An empty customerName lists all of them.
	ListAppointments(ctx context.Context, conversationID, customerName string) ([]Appointment, error)
	CreateAppointment(ctx context.Context, appt NewAppointment) (*Appointment, error)
}

// InMemoryRepository is a Repository backed by process memory. Used when no
// DATABASE_URL is configured and in tests.
type InMemoryRepository struct {
	mu           sync.RWMutex
	nextCustomer int64
	nextAppt     int64
	customers    []Customer
	appointments []Appointment
	now          func() time.Time
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{now: func() time.Time { return time.Now().UTC() }}
}

func (r *InMemoryRepository) ListCustomers(ctx context.Context, conversationID string) ([]Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Customer
	for _, c := range r.customers {
		if c.ConversationID == conversationID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return out, nil
}

func (r *InMemoryRepository) FindCustomerByID(ctx context.Context, id int64, conversationID string) (*Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.customers {
		if c.ID == id && c.ConversationID == conversationID {
			found := c
			return &found, nil
		}
	}
	return nil, ErrCustomerNotFound
}

func (r *InMemoryRepository) CustomerExists(ctx context.Context, name, conversationID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.customers {
		if c.Name == name && c.ConversationID == conversationID {
			return true, nil
		}
	}
	return false, nil
}

func (r *InMemoryRepository) CreateCustomer(ctx context.Context, name, userID, conversationID string) (*Customer, error) {
	if err := validateCustomer(name, conversationID); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextCustomer++
	c := Customer{
		ID:             r.nextCustomer,
		Name:           name,
		UserID:         userID,
		ConversationID: conversationID,
		CreatedAt:      r.now(),
	}
	r.customers = append(r.customers, c)
	return &c, nil
}

func (r *InMemoryRepository) ListAppointments(ctx context.Context, conversationID, customerName string) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.ConversationID != conversationID {
			continue
		}
		if customerName != "" && a.Customer != customerName {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return out, nil
}

func (r *InMemoryRepository) CreateAppointment(ctx context.Context, appt NewAppointment) (*Appointment, error) {
	if err := appt.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextAppt++
	a := Appointment{
		ID:             r.nextAppt,
		Date:           appt.Date,
		Time:           appt.Time,
		Customer:       appt.Customer,
		Detail:         appt.Detail,
		UserID:         appt.UserID,
		ConversationID: appt.ConversationID,
		CreatedAt:      r.now(),
	}
	r.appointments = append(r.appointments, a)
	return &a, nil
}

// newer orders by created_at then id, both descending, matching the SQL ORDER BY.
func newer(aAt time.Time, aID int64, bAt time.Time, bID int64) bool {
	if !aAt.Equal(bAt) {
		return aAt.After(bAt)
	}
	return aID > bID
}
