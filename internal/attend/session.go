package attend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Lifecycle manages session state transitions and participant allowlists.
// Sessions move strictly forward: Upcoming -> Active -> Completed.
type Lifecycle struct {
	store Store
	clock Clock
}

// NewLifecycle creates a lifecycle manager over the given store.
func NewLifecycle(store Store, clock Clock) *Lifecycle {
	if clock == nil {
		clock = SystemClock()
	}
	return &Lifecycle{store: store, clock: clock}
}

// CreateSession creates an upcoming session. The window must be non-empty
// (ErrInvalidWindow) and every participant card id must exist
// (ErrUnknownCard). Duplicate participant ids collapse silently.
func (l *Lifecycle) CreateSession(ctx context.Context, name string, start, end time.Time, participantCardIDs []string) (Session, error) {
	if name == "" {
		return Session{}, fmt.Errorf("session name required")
	}
	if !end.After(start) {
		return Session{}, ErrInvalidWindow
	}
	for _, cardID := range participantCardIDs {
		if _, err := l.store.GetCard(ctx, cardID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return Session{}, fmt.Errorf("%w: %s", ErrUnknownCard, cardID)
			}
			return Session{}, fmt.Errorf("lookup card %s: %w", cardID, err)
		}
	}

	session := Session{
		ID:        uuid.NewString(),
		Name:      name,
		StartTime: start,
		EndTime:   end,
		Created:   l.clock.Now(),
	}
	if err := l.store.InsertSession(ctx, session); err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	if len(participantCardIDs) > 0 {
		if err := l.store.AddParticipants(ctx, session.ID, participantCardIDs); err != nil {
			return Session{}, fmt.Errorf("add participants: %w", err)
		}
	}
	return session, nil
}

// StartSession activates an upcoming session. It refuses to reactivate a
// completed session (ErrSessionCompleted) and refuses to start while any
// other session is active (ErrSessionActiveConflict). Starting an already
// active session is a no-op.
func (l *Lifecycle) StartSession(ctx context.Context, sessionID string) (Session, error) {
	session, err := l.store.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if session.Completed {
		return Session{}, ErrSessionCompleted
	}
	if session.Active {
		return session, nil
	}
	if active, err := l.store.ActiveSession(ctx); err == nil && active.ID != sessionID {
		return Session{}, ErrSessionActiveConflict
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return Session{}, fmt.Errorf("lookup active session: %w", err)
	}

	session.Active = true
	if err := l.store.UpdateSession(ctx, session); err != nil {
		return Session{}, fmt.Errorf("update session: %w", err)
	}
	return session, nil
}

// StopSession completes an active session. Stopping an already completed
// session is a no-op.
func (l *Lifecycle) StopSession(ctx context.Context, sessionID string) (Session, error) {
	session, err := l.store.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if session.Completed {
		return session, nil
	}

	session.Active = false
	session.Completed = true
	if err := l.store.UpdateSession(ctx, session); err != nil {
		return Session{}, fmt.Errorf("update session: %w", err)
	}
	return session, nil
}

// DeleteSession removes a session together with its attendance and
// participant rows.
func (l *Lifecycle) DeleteSession(ctx context.Context, sessionID string) error {
	return l.store.DeleteSession(ctx, sessionID)
}

// AddParticipants appends cards to a session's allowlist, switching the
// session to restricted mode if it was open. Unknown card ids are rejected
// with ErrUnknownCard; pairs already present are kept as-is.
func (l *Lifecycle) AddParticipants(ctx context.Context, sessionID string, cardIDs []string) error {
	if _, err := l.store.GetSession(ctx, sessionID); err != nil {
		return err
	}
	for _, cardID := range cardIDs {
		if _, err := l.store.GetCard(ctx, cardID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrUnknownCard, cardID)
			}
			return fmt.Errorf("lookup card %s: %w", cardID, err)
		}
	}
	return l.store.AddParticipants(ctx, sessionID, cardIDs)
}

// ClearParticipants empties the allowlist. The session reopens to every
// registered card; callers emptying the list on purpose should mean it.
func (l *Lifecycle) ClearParticipants(ctx context.Context, sessionID string) error {
	if _, err := l.store.GetSession(ctx, sessionID); err != nil {
		return err
	}
	return l.store.ClearParticipants(ctx, sessionID)
}

// Restricted reports whether a session has a non-empty allowlist.
func (l *Lifecycle) Restricted(ctx context.Context, sessionID string) (bool, error) {
	count, err := l.store.ParticipantCount(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Authorized reports whether a card may scan in a session: always true for
// an open session, otherwise true only for listed cards.
func (l *Lifecycle) Authorized(ctx context.Context, sessionID, cardID string) (bool, error) {
	restricted, err := l.Restricted(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if !restricted {
		return true, nil
	}
	return l.store.IsParticipant(ctx, sessionID, cardID)
}

// GetSession resolves one session by id.
func (l *Lifecycle) GetSession(ctx context.Context, sessionID string) (Session, error) {
	return l.store.GetSession(ctx, sessionID)
}

// ActiveSession returns the currently active session, or ErrNotFound.
func (l *Lifecycle) ActiveSession(ctx context.Context) (Session, error) {
	return l.store.ActiveSession(ctx)
}

// ListSessions returns all sessions, newest created first.
func (l *Lifecycle) ListSessions(ctx context.Context) ([]Session, error) {
	return l.store.ListSessions(ctx)
}

// UpcomingSessions returns sessions not yet completed, by start time.
func (l *Lifecycle) UpcomingSessions(ctx context.Context) ([]Session, error) {
	return l.store.UpcomingSessions(ctx)
}

// CompletedSessions returns completed sessions, most recently ended first.
func (l *Lifecycle) CompletedSessions(ctx context.Context) ([]Session, error) {
	return l.store.CompletedSessions(ctx)
}
