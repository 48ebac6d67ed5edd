package attend

import "context"

// Store is the persistence boundary for the attendance core. Implementations
// must make the listed uniqueness guarantees authoritative: card numbers are
// unique across cards, and at most one attendance row exists per
// (session, card) pair, rejected with ErrDuplicateCardNumber and
// ErrDuplicateAttendance respectively regardless of any check the caller
// performed first. Deleting a profile cascades to its cards; deleting a
// session cascades to its attendance and participant rows.
type Store interface {
	ProfileStore
	CardStore
	SessionStore
	ParticipantStore
	AttendanceStore
}

// ProfileStore persists identity records.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (Profile, error)
	UpdateProfile(ctx context.Context, profile Profile) error
	DeleteProfile(ctx context.Context, id string) error
	ListProfiles(ctx context.Context) ([]Profile, error)
}

// CardStore persists RFID credentials. CreateCardWithProfile writes the
// profile and the card referencing it atomically: neither is visible unless
// both succeed.
type CardStore interface {
	CreateCardWithProfile(ctx context.Context, profile Profile, card Card) error
	GetCard(ctx context.Context, id string) (Card, error)
	GetCardByNumber(ctx context.Context, cardNumber string) (Card, error)
	ListCards(ctx context.Context) ([]CardWithProfile, error)
	DeleteCard(ctx context.Context, id string) error
}

// SessionStore persists sessions. ActiveSession returns ErrNotFound when no
// session is currently active.
type SessionStore interface {
	InsertSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	UpdateSession(ctx context.Context, session Session) error
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context) ([]Session, error)
	UpcomingSessions(ctx context.Context) ([]Session, error)
	CompletedSessions(ctx context.Context) ([]Session, error)
	ActiveSession(ctx context.Context) (Session, error)
}

// ParticipantStore persists session allowlists. AddParticipants is
// idempotent per (session, card) pair.
type ParticipantStore interface {
	AddParticipants(ctx context.Context, sessionID string, cardIDs []string) error
	ClearParticipants(ctx context.Context, sessionID string) error
	Participants(ctx context.Context, sessionID string) ([]SessionParticipant, error)
	IsParticipant(ctx context.Context, sessionID, cardID string) (bool, error)
	ParticipantCount(ctx context.Context, sessionID string) (int, error)
}

// AttendanceStore persists accepted scans. AttendanceBySession returns
// entries joined with their profiles, newest scan first.
type AttendanceStore interface {
	InsertAttendance(ctx context.Context, attendance Attendance) error
	HasAttendance(ctx context.Context, sessionID, cardID string) (bool, error)
	AttendanceBySession(ctx context.Context, sessionID string) ([]AttendanceEntry, error)
	AttendanceCount(ctx context.Context, sessionID string) (int, error)
}
