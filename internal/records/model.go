package records

import (
	"fmt"
	"strings"
	"time"
)

// Customer is a prospect the user has met, scoped to one conversation.
type Customer struct {
	ID             int64     `json:"id"`
	Name           string    `json:"client"`
	UserID         string    `json:"sys_user_id"`
	ConversationID string    `json:"sys_conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Appointment is one recorded sales meeting.
type Appointment struct {
	ID             int64     `json:"id"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	Customer       string    `json:"client"`
	Detail         string    `json:"appointment_detail"`
	UserID         string    `json:"sys_user_id"`
	ConversationID string    `json:"sys_conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewAppointment carries the fields needed to insert an appointment.
type NewAppointment struct {
	Date           string
	Time           string
	Customer       string
	Detail         string
	UserID         string
	ConversationID string
}

// Validate checks the ownership and customer fields. Date, time and detail
// are free text and may be anything the user typed.
func (a NewAppointment) Validate() error {
	if strings.TrimSpace(a.Customer) == "" {
		return fmt.Errorf("%w: customer is required", ErrInvalidInput)
	}
	if strings.TrimSpace(a.ConversationID) == "" {
		return fmt.Errorf("%w: conversation id is required", ErrInvalidInput)
	}
	return nil
}

func validateCustomer(name, conversationID string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(conversationID) == "" {
		return fmt.Errorf("%w: conversation id is required", ErrInvalidInput)
	}
	return nil
}
