package store

import (
	"context"
	"sort"
	"sync"

	"rfidtrack/internal/attend"
)

// Memory is an in-process attend.Store for development and tests. A single
// mutex serializes every operation, which makes the check-then-insert paths
// atomic the same way the Postgres constraints do.
type Memory struct {
	mu           sync.Mutex
	profiles     map[string]attend.Profile
	cards        map[string]attend.Card
	sessions     map[string]attend.Session
	participants map[string]map[string]bool // sessionID -> cardID set
	attendance   []attend.Attendance
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		profiles:     make(map[string]attend.Profile),
		cards:        make(map[string]attend.Card),
		sessions:     make(map[string]attend.Session),
		participants: make(map[string]map[string]bool),
	}
}

var _ attend.Store = (*Memory)(nil)

// GetProfile implements attend.ProfileStore.
func (m *Memory) GetProfile(ctx context.Context, id string) (attend.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.profiles[id]
	if !ok {
		return attend.Profile{}, attend.ErrNotFound
	}
	return profile, nil
}

// UpdateProfile implements attend.ProfileStore.
func (m *Memory) UpdateProfile(ctx context.Context, profile attend.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.profiles[profile.ID]
	if !ok {
		return attend.ErrNotFound
	}
	profile.Created = current.Created
	m.profiles[profile.ID] = profile
	return nil
}

// DeleteProfile removes a profile and cascades to its cards.
func (m *Memory) DeleteProfile(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[id]; !ok {
		return attend.ErrNotFound
	}
	delete(m.profiles, id)
	for cardID, card := range m.cards {
		if card.ProfileID == id {
			m.removeCardLocked(cardID)
		}
	}
	return nil
}

// ListProfiles implements attend.ProfileStore.
func (m *Memory) ListProfiles(ctx context.Context) ([]attend.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]attend.Profile, 0, len(m.profiles))
	for _, profile := range m.profiles {
		out = append(out, profile)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	return out, nil
}

// CreateCardWithProfile writes both records under the lock; a duplicate
// number leaves neither visible.
func (m *Memory) CreateCardWithProfile(ctx context.Context, profile attend.Profile, card attend.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.cards {
		if existing.CardNumber == card.CardNumber {
			return attend.ErrDuplicateCardNumber
		}
	}
	m.profiles[profile.ID] = profile
	m.cards[card.ID] = card
	return nil
}

// GetCard implements attend.CardStore.
func (m *Memory) GetCard(ctx context.Context, id string) (attend.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[id]
	if !ok {
		return attend.Card{}, attend.ErrNotFound
	}
	return card, nil
}

// GetCardByNumber implements attend.CardStore.
func (m *Memory) GetCardByNumber(ctx context.Context, cardNumber string) (attend.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, card := range m.cards {
		if card.CardNumber == cardNumber {
			return card, nil
		}
	}
	return attend.Card{}, attend.ErrNotFound
}

// ListCards implements attend.CardStore.
func (m *Memory) ListCards(ctx context.Context) ([]attend.CardWithProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]attend.CardWithProfile, 0, len(m.cards))
	for _, card := range m.cards {
		profile, ok := m.profiles[card.ProfileID]
		if !ok {
			continue
		}
		out = append(out, attend.CardWithProfile{Card: card, Profile: profile})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Card.Created.After(out[j].Card.Created) })
	return out, nil
}

// DeleteCard removes one card and cascades to its attendance and
// participant rows. The owning profile stays.
func (m *Memory) DeleteCard(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[id]; !ok {
		return attend.ErrNotFound
	}
	m.removeCardLocked(id)
	return nil
}

func (m *Memory) removeCardLocked(cardID string) {
	delete(m.cards, cardID)
	for _, set := range m.participants {
		delete(set, cardID)
	}
	kept := m.attendance[:0]
	for _, row := range m.attendance {
		if row.CardID != cardID {
			kept = append(kept, row)
		}
	}
	m.attendance = kept
}

// InsertSession implements attend.SessionStore.
func (m *Memory) InsertSession(ctx context.Context, session attend.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

// GetSession implements attend.SessionStore.
func (m *Memory) GetSession(ctx context.Context, id string) (attend.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return attend.Session{}, attend.ErrNotFound
	}
	return session, nil
}

// UpdateSession implements attend.SessionStore.
func (m *Memory) UpdateSession(ctx context.Context, session attend.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return attend.ErrNotFound
	}
	m.sessions[session.ID] = session
	return nil
}

// DeleteSession removes a session and cascades to its attendance and
// participant rows.
func (m *Memory) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return attend.ErrNotFound
	}
	delete(m.sessions, id)
	delete(m.participants, id)
	kept := m.attendance[:0]
	for _, row := range m.attendance {
		if row.SessionID != id {
			kept = append(kept, row)
		}
	}
	m.attendance = kept
	return nil
}

// ListSessions implements attend.SessionStore.
func (m *Memory) ListSessions(ctx context.Context) ([]attend.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]attend.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	return out, nil
}

// UpcomingSessions implements attend.SessionStore.
func (m *Memory) UpcomingSessions(ctx context.Context) ([]attend.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []attend.Session
	for _, session := range m.sessions {
		if !session.Completed {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// CompletedSessions implements attend.SessionStore.
func (m *Memory) CompletedSessions(ctx context.Context) ([]attend.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []attend.Session
	for _, session := range m.sessions {
		if session.Completed {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.After(out[j].EndTime) })
	return out, nil
}

// ActiveSession implements attend.SessionStore.
func (m *Memory) ActiveSession(ctx context.Context) (attend.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, session := range m.sessions {
		if session.Active {
			return session, nil
		}
	}
	return attend.Session{}, attend.ErrNotFound
}

// AddParticipants implements attend.ParticipantStore.
func (m *Memory) AddParticipants(ctx context.Context, sessionID string, cardIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.participants[sessionID]
	if set == nil {
		set = make(map[string]bool)
		m.participants[sessionID] = set
	}
	for _, cardID := range cardIDs {
		set[cardID] = true
	}
	return nil
}

// ClearParticipants implements attend.ParticipantStore.
func (m *Memory) ClearParticipants(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.participants, sessionID)
	return nil
}

// Participants implements attend.ParticipantStore.
func (m *Memory) Participants(ctx context.Context, sessionID string) ([]attend.SessionParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.participants[sessionID]
	out := make([]attend.SessionParticipant, 0, len(set))
	for cardID := range set {
		out = append(out, attend.SessionParticipant{SessionID: sessionID, CardID: cardID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CardID < out[j].CardID })
	return out, nil
}

// IsParticipant implements attend.ParticipantStore.
func (m *Memory) IsParticipant(ctx context.Context, sessionID, cardID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.participants[sessionID][cardID], nil
}

// ParticipantCount implements attend.ParticipantStore.
func (m *Memory) ParticipantCount(ctx context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.participants[sessionID]), nil
}

// InsertAttendance implements attend.AttendanceStore, rejecting a second
// row for the same (session, card) pair.
func (m *Memory) InsertAttendance(ctx context.Context, attendance attend.Attendance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.attendance {
		if row.SessionID == attendance.SessionID && row.CardID == attendance.CardID {
			return attend.ErrDuplicateAttendance
		}
	}
	m.attendance = append(m.attendance, attendance)
	return nil
}

// HasAttendance implements attend.AttendanceStore.
func (m *Memory) HasAttendance(ctx context.Context, sessionID, cardID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.attendance {
		if row.SessionID == sessionID && row.CardID == cardID {
			return true, nil
		}
	}
	return false, nil
}

// AttendanceBySession returns attendance joined with profiles, newest scan
// first. Rows whose card or profile has since been removed are skipped,
// matching the inner-join shape of the SQL store.
func (m *Memory) AttendanceBySession(ctx context.Context, sessionID string) ([]attend.AttendanceEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []attend.AttendanceEntry
	for _, row := range m.attendance {
		if row.SessionID != sessionID {
			continue
		}
		card, ok := m.cards[row.CardID]
		if !ok {
			continue
		}
		profile, ok := m.profiles[card.ProfileID]
		if !ok {
			continue
		}
		out = append(out, attend.AttendanceEntry{
			Attendance:   row,
			ProfileName:  profile.Name,
			ProfileEmail: profile.Email,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScanTime.After(out[j].ScanTime) })
	return out, nil
}

// AttendanceCount implements attend.AttendanceStore.
func (m *Memory) AttendanceCount(ctx context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, row := range m.attendance {
		if row.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}
