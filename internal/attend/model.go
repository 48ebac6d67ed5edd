package attend

import "time"

// Profile is a person's identity record.
type Profile struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Age      int       `json:"age"`
	Birthday string    `json:"birthday"` // YYYY-MM-DD
	Email    string    `json:"email"`
	Created  time.Time `json:"created_at"`
}

// Card is an RFID credential linked to one profile. A profile may own
// multiple cards; card numbers are globally unique.
type Card struct {
	ID         string    `json:"id"`
	CardNumber string    `json:"card_number"`
	ProfileID  string    `json:"profile_id"`
	Created    time.Time `json:"created_at"`
}

// SessionState is the lifecycle position of a session. Transitions only
// move forward: Upcoming -> Active -> Completed.
type SessionState string

const (
	StateUpcoming  SessionState = "upcoming"
	StateActive    SessionState = "active"
	StateCompleted SessionState = "completed"
)

// Session is a scheduled attendance-collection window.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Active    bool      `json:"active"`
	Completed bool      `json:"completed"`
	Created   time.Time `json:"created_at"`
}

// State derives the lifecycle state from the two flags.
func (s Session) State() SessionState {
	switch {
	case s.Completed:
		return StateCompleted
	case s.Active:
		return StateActive
	default:
		return StateUpcoming
	}
}

// SessionParticipant is one allowlist entry. Any rows for a session put it
// in restricted mode; zero rows mean every registered card may scan.
type SessionParticipant struct {
	SessionID string `json:"session_id"`
	CardID    string `json:"card_id"`
}

// Attendance is an immutable record of one accepted scan. CardNumber is a
// denormalized copy captured at scan time so exports stay stable even if
// the card record is later reassigned or deleted.
type Attendance struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	CardID     string    `json:"card_id"`
	CardNumber string    `json:"card_number"`
	ScanTime   time.Time `json:"scan_time"`
}

// AttendanceEntry joins an attendance row with the profile that owned the
// card, as needed by the export report.
type AttendanceEntry struct {
	Attendance
	ProfileName  string `json:"profile_name"`
	ProfileEmail string `json:"profile_email"`
}

// CardWithProfile pairs a card with its owning profile for roster listings.
type CardWithProfile struct {
	Card    Card    `json:"card"`
	Profile Profile `json:"profile"`
}
