package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"rfidtrack/internal/attend"
)

// Postgres persists the attendance domain in Postgres. The uniqueness and
// cascade rules live in the schema (see EnsureSchema); this type translates
// constraint violations into the core's sentinel errors so callers never
// see raw driver errors for expected conflicts.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a store over an open connection.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

var _ attend.Store = (*Postgres)(nil)

const pgUniqueViolation = "23505"

// translateConflict maps a unique-constraint violation to the matching
// domain error, or returns the input unchanged.
func translateConflict(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case "cards_card_number_unique":
		return attend.ErrDuplicateCardNumber
	case "attendance_session_card_unique":
		return attend.ErrDuplicateAttendance
	}
	return err
}

// GetProfile implements attend.ProfileStore.
func (p *Postgres) GetProfile(ctx context.Context, id string) (attend.Profile, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, age, birthday, email, created_at
		FROM profiles WHERE id = $1
	`, id)
	var profile attend.Profile
	if err := row.Scan(&profile.ID, &profile.Name, &profile.Age, &profile.Birthday, &profile.Email, &profile.Created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attend.Profile{}, attend.ErrNotFound
		}
		return attend.Profile{}, err
	}
	return profile, nil
}

// UpdateProfile implements attend.ProfileStore.
func (p *Postgres) UpdateProfile(ctx context.Context, profile attend.Profile) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE profiles SET name = $2, age = $3, birthday = $4, email = $5
		WHERE id = $1
	`, profile.ID, profile.Name, profile.Age, profile.Birthday, profile.Email)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteProfile removes a profile; the schema cascades to its cards and on
// to their attendance and participant rows.
func (p *Postgres) DeleteProfile(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListProfiles implements attend.ProfileStore.
func (p *Postgres) ListProfiles(ctx context.Context) ([]attend.Profile, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, age, birthday, email, created_at
		FROM profiles ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []attend.Profile
	for rows.Next() {
		var profile attend.Profile
		if err := rows.Scan(&profile.ID, &profile.Name, &profile.Age, &profile.Birthday, &profile.Email, &profile.Created); err != nil {
			return nil, err
		}
		out = append(out, profile)
	}
	return out, rows.Err()
}

// CreateCardWithProfile inserts the profile and card in one transaction so
// a duplicate card number leaves no orphan profile behind.
func (p *Postgres) CreateCardWithProfile(ctx context.Context, profile attend.Profile, card attend.Card) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (id, name, age, birthday, email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, profile.ID, profile.Name, profile.Age, profile.Birthday, profile.Email, profile.Created); err != nil {
		return translateConflict(err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cards (id, card_number, profile_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, card.ID, card.CardNumber, card.ProfileID, card.Created); err != nil {
		return translateConflict(err)
	}
	return tx.Commit()
}

// GetCard implements attend.CardStore.
func (p *Postgres) GetCard(ctx context.Context, id string) (attend.Card, error) {
	return p.scanCard(p.db.QueryRowContext(ctx, `
		SELECT id, card_number, profile_id, created_at FROM cards WHERE id = $1
	`, id))
}

// GetCardByNumber implements attend.CardStore.
func (p *Postgres) GetCardByNumber(ctx context.Context, cardNumber string) (attend.Card, error) {
	return p.scanCard(p.db.QueryRowContext(ctx, `
		SELECT id, card_number, profile_id, created_at FROM cards WHERE card_number = $1
	`, cardNumber))
}

func (p *Postgres) scanCard(row *sql.Row) (attend.Card, error) {
	var card attend.Card
	if err := row.Scan(&card.ID, &card.CardNumber, &card.ProfileID, &card.Created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attend.Card{}, attend.ErrNotFound
		}
		return attend.Card{}, err
	}
	return card, nil
}

// ListCards implements attend.CardStore.
func (p *Postgres) ListCards(ctx context.Context) ([]attend.CardWithProfile, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT c.id, c.card_number, c.profile_id, c.created_at,
		       p.id, p.name, p.age, p.birthday, p.email, p.created_at
		FROM cards c
		INNER JOIN profiles p ON c.profile_id = p.id
		ORDER BY c.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []attend.CardWithProfile
	for rows.Next() {
		var entry attend.CardWithProfile
		if err := rows.Scan(
			&entry.Card.ID, &entry.Card.CardNumber, &entry.Card.ProfileID, &entry.Card.Created,
			&entry.Profile.ID, &entry.Profile.Name, &entry.Profile.Age, &entry.Profile.Birthday, &entry.Profile.Email, &entry.Profile.Created,
		); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// DeleteCard implements attend.CardStore.
func (p *Postgres) DeleteCard(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// InsertSession implements attend.SessionStore.
func (p *Postgres) InsertSession(ctx context.Context, session attend.Session) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, start_time, end_time, active, completed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, session.ID, session.Name, session.StartTime, session.EndTime, session.Active, session.Completed, session.Created)
	return err
}

// GetSession implements attend.SessionStore.
func (p *Postgres) GetSession(ctx context.Context, id string) (attend.Session, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, start_time, end_time, active, completed, created_at
		FROM sessions WHERE id = $1
	`, id)
	return scanSession(row)
}

// UpdateSession implements attend.SessionStore.
func (p *Postgres) UpdateSession(ctx context.Context, session attend.Session) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE sessions SET name = $2, start_time = $3, end_time = $4, active = $5, completed = $6
		WHERE id = $1
	`, session.ID, session.Name, session.StartTime, session.EndTime, session.Active, session.Completed)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteSession removes a session; the schema cascades to attendance and
// participant rows.
func (p *Postgres) DeleteSession(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListSessions implements attend.SessionStore.
func (p *Postgres) ListSessions(ctx context.Context) ([]attend.Session, error) {
	return p.querySessions(ctx, `
		SELECT id, name, start_time, end_time, active, completed, created_at
		FROM sessions ORDER BY created_at DESC
	`)
}

// UpcomingSessions implements attend.SessionStore.
func (p *Postgres) UpcomingSessions(ctx context.Context) ([]attend.Session, error) {
	return p.querySessions(ctx, `
		SELECT id, name, start_time, end_time, active, completed, created_at
		FROM sessions WHERE completed = FALSE ORDER BY start_time ASC
	`)
}

// CompletedSessions implements attend.SessionStore.
func (p *Postgres) CompletedSessions(ctx context.Context) ([]attend.Session, error) {
	return p.querySessions(ctx, `
		SELECT id, name, start_time, end_time, active, completed, created_at
		FROM sessions WHERE completed = TRUE ORDER BY end_time DESC
	`)
}

// ActiveSession implements attend.SessionStore.
func (p *Postgres) ActiveSession(ctx context.Context) (attend.Session, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, start_time, end_time, active, completed, created_at
		FROM sessions WHERE active = TRUE LIMIT 1
	`)
	return scanSession(row)
}

func (p *Postgres) querySessions(ctx context.Context, query string) ([]attend.Session, error) {
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []attend.Session
	for rows.Next() {
		var session attend.Session
		if err := rows.Scan(&session.ID, &session.Name, &session.StartTime, &session.EndTime, &session.Active, &session.Completed, &session.Created); err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

func scanSession(row *sql.Row) (attend.Session, error) {
	var session attend.Session
	if err := row.Scan(&session.ID, &session.Name, &session.StartTime, &session.EndTime, &session.Active, &session.Completed, &session.Created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attend.Session{}, attend.ErrNotFound
		}
		return attend.Session{}, err
	}
	return session, nil
}

// AddParticipants inserts allowlist rows, ignoring pairs already present.
func (p *Postgres) AddParticipants(ctx context.Context, sessionID string, cardIDs []string) error {
	for _, cardID := range cardIDs {
		if _, err := p.db.ExecContext(ctx, `
			INSERT INTO session_participants (session_id, card_id)
			VALUES ($1, $2)
			ON CONFLICT (session_id, card_id) DO NOTHING
		`, sessionID, cardID); err != nil {
			return err
		}
	}
	return nil
}

// ClearParticipants implements attend.ParticipantStore.
func (p *Postgres) ClearParticipants(ctx context.Context, sessionID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM session_participants WHERE session_id = $1`, sessionID)
	return err
}

// Participants implements attend.ParticipantStore.
func (p *Postgres) Participants(ctx context.Context, sessionID string) ([]attend.SessionParticipant, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT session_id, card_id FROM session_participants
		WHERE session_id = $1 ORDER BY card_id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []attend.SessionParticipant
	for rows.Next() {
		var participant attend.SessionParticipant
		if err := rows.Scan(&participant.SessionID, &participant.CardID); err != nil {
			return nil, err
		}
		out = append(out, participant)
	}
	return out, rows.Err()
}

// IsParticipant implements attend.ParticipantStore.
func (p *Postgres) IsParticipant(ctx context.Context, sessionID, cardID string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM session_participants WHERE session_id = $1 AND card_id = $2
		)
	`, sessionID, cardID).Scan(&exists)
	return exists, err
}

// ParticipantCount implements attend.ParticipantStore.
func (p *Postgres) ParticipantCount(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM session_participants WHERE session_id = $1
	`, sessionID).Scan(&count)
	return count, err
}

// InsertAttendance writes one accepted scan. The unique pair constraint
// rejects a concurrent duplicate, surfaced as ErrDuplicateAttendance.
func (p *Postgres) InsertAttendance(ctx context.Context, attendance attend.Attendance) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO attendance (id, session_id, card_id, card_number, scan_time)
		VALUES ($1, $2, $3, $4, $5)
	`, attendance.ID, attendance.SessionID, attendance.CardID, attendance.CardNumber, attendance.ScanTime)
	return translateConflict(err)
}

// HasAttendance implements attend.AttendanceStore.
func (p *Postgres) HasAttendance(ctx context.Context, sessionID, cardID string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM attendance WHERE session_id = $1 AND card_id = $2
		)
	`, sessionID, cardID).Scan(&exists)
	return exists, err
}

// AttendanceBySession returns scans joined with profile details, newest
// first, as the export report consumes them.
func (p *Postgres) AttendanceBySession(ctx context.Context, sessionID string) ([]attend.AttendanceEntry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT a.id, a.session_id, a.card_id, a.card_number, a.scan_time,
		       p.name, p.email
		FROM attendance a
		INNER JOIN cards c ON a.card_id = c.id
		INNER JOIN profiles p ON c.profile_id = p.id
		WHERE a.session_id = $1
		ORDER BY a.scan_time DESC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []attend.AttendanceEntry
	for rows.Next() {
		var entry attend.AttendanceEntry
		if err := rows.Scan(&entry.ID, &entry.SessionID, &entry.CardID, &entry.CardNumber, &entry.ScanTime, &entry.ProfileName, &entry.ProfileEmail); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// AttendanceCount implements attend.AttendanceStore.
func (p *Postgres) AttendanceCount(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance WHERE session_id = $1
	`, sessionID).Scan(&count)
	return count, err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return attend.ErrNotFound
	}
	return nil
}
