package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var recordsTracer = otel.Tracer("salesbot.internal.records")

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores customers and appointments in Postgres.
type PostgresRepository struct {
	db pgQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("records: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithQuerier(q pgQuerier) *PostgresRepository {
	if q == nil {
		panic("records: querier required")
	}
	return &PostgresRepository{db: q}
}

const customerColumns = `id, client, sys_user_id, sys_conversation_id, created_at`

const appointmentColumns = `id, date, time, client, appointment_detail, sys_user_id, sys_conversation_id, created_at`

func (r *PostgresRepository) ListCustomers(ctx context.Context, conversationID string) ([]Customer, error) {
	ctx, span := recordsTracer.Start(ctx, "records.list_customers")
	defer span.End()

	query := `
		SELECT ` + customerColumns + `
		FROM clients
		WHERE sys_conversation_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("records: list customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.UserID, &c.ConversationID, &c.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("records: scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("records: list customers: %w", err)
	}
	span.SetAttributes(attribute.Int("salesbot.customers", len(customers)))
	return customers, nil
}

func (r *PostgresRepository) FindCustomerByID(ctx context.Context, id int64, conversationID string) (*Customer, error) {
	ctx, span := recordsTracer.Start(ctx, "records.find_customer")
	defer span.End()
	span.SetAttributes(attribute.Int64("salesbot.customer_id", id))

	query := `
		SELECT ` + customerColumns + `
		FROM clients
		WHERE id = $1 AND sys_conversation_id = $2
		LIMIT 1
	`
	var c Customer
	if err := r.db.QueryRow(ctx, query, id, conversationID).Scan(
		&c.ID,
		&c.Name,
		&c.UserID,
		&c.ConversationID,
		&c.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("records: find customer: %w", err)
	}
	return &c, nil
}

func (r *PostgresRepository) CustomerExists(ctx context.Context, name, conversationID string) (bool, error) {
	ctx, span := recordsTracer.Start(ctx, "records.customer_exists")
	defer span.End()

	query := `SELECT id FROM clients WHERE client = $1 AND sys_conversation_id = $2 LIMIT 1`
	var id int64
	if err := r.db.QueryRow(ctx, query, name, conversationID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		span.RecordError(err)
		return false, fmt.Errorf("records: check customer: %w", err)
	}
	return true, nil
}

func (r *PostgresRepository) CreateCustomer(ctx context.Context, name, userID, conversationID string) (*Customer, error) {
	if err := validateCustomer(name, conversationID); err != nil {
		return nil, err
	}
	ctx, span := recordsTracer.Start(ctx, "records.create_customer")
	defer span.End()

	query := `
		INSERT INTO clients (client, sys_user_id, sys_conversation_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	c := Customer{Name: name, UserID: userID, ConversationID: conversationID}
	if err := r.db.QueryRow(ctx, query, name, userID, conversationID).Scan(&c.ID, &c.CreatedAt); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("records: insert customer: %w", err)
	}
	return &c, nil
}

func (r *PostgresRepository) ListAppointments(ctx context.Context, conversationID, customerName string) ([]Appointment, error) {
	ctx, span := recordsTracer.Start(ctx, "records.list_appointments")
	defer span.End()

	var (
		rows pgx.Rows
		err  error
	)
	if customerName != "" {
		query := `
			SELECT ` + appointmentColumns + `
			FROM appointments
			WHERE sys_conversation_id = $1 AND client = $2
			ORDER BY created_at DESC, id DESC
		`
		rows, err = r.db.Query(ctx, query, conversationID, customerName)
	} else {
		query := `
			SELECT ` + appointmentColumns + `
			FROM appointments
			WHERE sys_conversation_id = $1
			ORDER BY created_at DESC, id DESC
		`
		rows, err = r.db.Query(ctx, query, conversationID)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("records: list appointments: %w", err)
	}
	defer rows.Close()

	var appts []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(
			&a.ID,
			&a.Date,
			&a.Time,
			&a.Customer,
			&a.Detail,
			&a.UserID,
			&a.ConversationID,
			&a.CreatedAt,
		); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("records: scan appointment: %w", err)
		}
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("records: list appointments: %w", err)
	}
	span.SetAttributes(attribute.Int("salesbot.appointments", len(appts)))
	return appts, nil
}

func (r *PostgresRepository) CreateAppointment(ctx context.Context, appt NewAppointment) (*Appointment, error) {
	if err := appt.Validate(); err != nil {
		return nil, err
	}
	ctx, span := recordsTracer.Start(ctx, "records.create_appointment")
	defer span.End()

	query := `
		INSERT INTO appointments
			(date, time, client, appointment_detail, sys_user_id, sys_conversation_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	a := Appointment{
		Date:           appt.Date,
		Time:           appt.Time,
		Customer:       appt.Customer,
		Detail:         appt.Detail,
		UserID:         appt.UserID,
		ConversationID: appt.ConversationID,
	}
	if err := r.db.QueryRow(ctx, query,
		appt.Date,
		appt.Time,
		appt.Customer,
		appt.Detail,
		appt.UserID,
		appt.ConversationID,
	).Scan(&a.ID, &a.CreatedAt); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("records: insert appointment: %w", err)
	}
	return &a, nil
}
