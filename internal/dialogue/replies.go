package dialogue

import (
	"fmt"
	"strings"

	"github.com/wolfman30/salesbot/internal/records"
	"github.com/wolfman30/salesbot/internal/session"
)

// NoteSkipSentinel is what users send when the meeting did not take place.
const NoteSkipSentinel = "none"

const (
	msgPromptDate      = "📅 Please enter the date.\nExample: 2025/11/17"
	msgPromptTime      = "🕐 Please enter the time.\nExample: 14:30"
	msgPromptCustomer  = "👤 Please enter the customer name.\n\nFor a customer you recorded before, you can also enter the customer ID."
	msgPromptNote      = "📝 Please enter the meeting notes.\n※ If the meeting did not happen, send \"" + NoteSkipSentinel + "\"."
	msgEditDate        = "📅 Please enter the date."
	msgEditTime        = "🕐 Please enter the time."
	msgEditCustomer    = "👤 Please enter the customer name."
	msgEditNote        = "📝 Please enter the meeting notes."
	msgInvalidDate     = "❌ The date format is not valid.\nExample: 2025/11/17"
	msgInvalidTime     = "❌ The time format is not valid.\nExample: 14:30"
	msgCustomerMissing = "❌ No matching customer was found.\n\nEnter the customer name directly, or a valid customer ID."
	msgLookupFailed    = "❌ The customer could not be looked up right now. Please try again."
	msgChooseOption    = "Please enter a number from 1 to 5."
	msgSaved           = "✅ Recorded!\n\nGreat work out there! 💪"
	msgSaveFailed      = "❌ Something went wrong while saving. Please try again."
	msgHistoryFormat   = "❌ Please enter the customer ID as a number."
	msgHistoryMissing  = "❌ No matching customer was found.\n\nPlease enter a valid ID."
	msgSessionFailed   = "Something went wrong. Please try again."
)

// replies renders the texts that mention the configured keywords.
type replies struct {
	record  string
	history string
}

func newReplies(k Keywords) replies {
	return replies{record: firstOr(k.Record, "record"), history: firstOr(k.History, "history")}
}

func (r replies) help() string {
	return fmt.Sprintf("Send \"%s\" to log an appointment, or \"%s\" to get advice on a customer.", r.record, r.history)
}

func (r replies) noCustomers() string {
	return fmt.Sprintf("📋 There is no customer data yet.\n\nStart by sending \"%s\" to log an appointment.", r.record)
}

func (r replies) historyFailed() string {
	return fmt.Sprintf("Something went wrong. Please start again from \"%s\".", r.history)
}

func customerResolved(name string) string {
	return fmt.Sprintf("✅ Customer: %s\n\n%s", name, msgPromptNote)
}

func noHistory(name string) string {
	return fmt.Sprintf("📋 There is no appointment history for %s.", name)
}

func salesAnalysis(name, advice string) string {
	return fmt.Sprintf("📊 Sales analysis for %s\n\n%s", name, advice)
}

// FormatCustomerList renders one "ID <id>: <name>" line per customer and a total.
func FormatCustomerList(customers []records.Customer) string {
	var b strings.Builder
	b.WriteString("📋 Customer list\n\n")
	for _, c := range customers {
		fmt.Fprintf(&b, "ID %d: %s\n", c.ID, c.Name)
	}
	fmt.Fprintf(&b, "\nTotal: %d customers", len(customers))
	return b.String()
}

func customerListPrompt(customers []records.Customer) string {
	return FormatCustomerList(customers) + "\n\nEnter the ID of the customer whose history you want to see."
}

// FormatConfirmation summarizes the draft and lists the five confirmation choices.
func FormatConfirmation(d session.Draft) string {
	var b strings.Builder
	b.WriteString("✅ This is what will be recorded:\n\n")
	fmt.Fprintf(&b, "📅 Date: %s\n", d.Date)
	fmt.Fprintf(&b, "🕐 Time: %s\n", d.Time)
	fmt.Fprintf(&b, "👤 Customer: %s\n", d.Customer)
	fmt.Fprintf(&b, "📝 Notes: %s\n\n", d.Note)
	b.WriteString("Is this correct?\n\n")
	b.WriteString("1️⃣ Save\n")
	b.WriteString("2️⃣ Edit date\n")
	b.WriteString("3️⃣ Edit time\n")
	b.WriteString("4️⃣ Edit customer\n")
	b.WriteString("5️⃣ Edit notes")
	return b.String()
}

func firstOr(values []string, fallback string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return fallback
}
