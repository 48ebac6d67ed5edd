package attend

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ScanStatus tags the outcome of one scan attempt. Every status including
// the rejections is a normal result, not an error.
type ScanStatus string

const (
	ScanAccepted          ScanStatus = "accepted"
	ScanNoActiveSession   ScanStatus = "no_active_session"
	ScanCardNotRegistered ScanStatus = "card_not_registered"
	ScanCardNotAuthorized ScanStatus = "card_not_authorized"
	ScanDuplicate         ScanStatus = "duplicate_scan"
	ScanProfileNotFound   ScanStatus = "profile_not_found"
)

// Reason renders the user-facing explanation for a status.
func (s ScanStatus) Reason() string {
	switch s {
	case ScanAccepted:
		return "Attendance recorded"
	case ScanNoActiveSession:
		return "No active session"
	case ScanCardNotRegistered:
		return "Card not registered"
	case ScanCardNotAuthorized:
		return "Card not authorized for this session"
	case ScanDuplicate:
		return "Already scanned in this session"
	case ScanProfileNotFound:
		return "Profile not found"
	}
	return string(s)
}

// ScanResult is the tagged outcome of a scan attempt. ProfileName and
// Attendance are populated only when Status is ScanAccepted; SessionID is
// populated whenever an active session existed.
type ScanResult struct {
	Status      ScanStatus `json:"status"`
	SessionID   string     `json:"session_id,omitempty"`
	CardNumber  string     `json:"card_number"`
	ProfileName string     `json:"profile_name,omitempty"`
	Attendance  Attendance `json:"attendance"`
}

// Accepted reports whether the scan was recorded.
func (r ScanResult) Accepted() bool { return r.Status == ScanAccepted }

// Scanner validates scan attempts against the active session and records
// accepted ones. Checks run in a fixed order so the first failing one
// determines the reported reason.
type Scanner struct {
	store    Store
	sessions *Lifecycle
	clock    Clock
}

// NewScanner creates a scanner over the given store and lifecycle manager.
func NewScanner(store Store, sessions *Lifecycle, clock Clock) *Scanner {
	if clock == nil {
		clock = SystemClock()
	}
	return &Scanner{store: store, sessions: sessions, clock: clock}
}

// Scan runs the validation pipeline for one card number against the current
// active session. The returned error is reserved for storage failures; all
// validation rejections arrive as a tagged result. On success exactly one
// attendance row is written, carrying the scanned number verbatim; no
// failure path writes anything. The store's (session, card) uniqueness
// constraint backs the duplicate check, so two concurrent scans of the same
// card cannot both be accepted.
func (s *Scanner) Scan(ctx context.Context, cardNumber string) (ScanResult, error) {
	result := ScanResult{CardNumber: cardNumber}

	session, err := s.sessions.ActiveSession(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			result.Status = ScanNoActiveSession
			return result, nil
		}
		return ScanResult{}, fmt.Errorf("lookup active session: %w", err)
	}
	result.SessionID = session.ID

	card, err := s.store.GetCardByNumber(ctx, cardNumber)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			result.Status = ScanCardNotRegistered
			return result, nil
		}
		return ScanResult{}, fmt.Errorf("lookup card: %w", err)
	}

	allowed, err := s.sessions.Authorized(ctx, session.ID, card.ID)
	if err != nil {
		return ScanResult{}, fmt.Errorf("check authorization: %w", err)
	}
	if !allowed {
		result.Status = ScanCardNotAuthorized
		return result, nil
	}

	scanned, err := s.store.HasAttendance(ctx, session.ID, card.ID)
	if err != nil {
		return ScanResult{}, fmt.Errorf("check attendance: %w", err)
	}
	if scanned {
		result.Status = ScanDuplicate
		return result, nil
	}

	profile, err := s.store.GetProfile(ctx, card.ProfileID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Unreachable under referential integrity; kept so a broken
			// store surfaces as a scan rejection instead of a recorded row.
			result.Status = ScanProfileNotFound
			return result, nil
		}
		return ScanResult{}, fmt.Errorf("lookup profile: %w", err)
	}

	attendance := Attendance{
		ID:         uuid.NewString(),
		SessionID:  session.ID,
		CardID:     card.ID,
		CardNumber: cardNumber,
		ScanTime:   s.clock.Now(),
	}
	if err := s.store.InsertAttendance(ctx, attendance); err != nil {
		if errors.Is(err, ErrDuplicateAttendance) {
			// Lost the race against another scan of the same card.
			result.Status = ScanDuplicate
			return result, nil
		}
		return ScanResult{}, fmt.Errorf("insert attendance: %w", err)
	}

	result.Status = ScanAccepted
	result.ProfileName = profile.Name
	result.Attendance = attendance
	return result, nil
}
