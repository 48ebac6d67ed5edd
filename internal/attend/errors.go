package attend

import "errors"

// Management-boundary failures. All are expected, recoverable conditions
// surfaced to the caller as a declined operation.
var (
	// ErrNotFound reports a lookup by id that matched nothing.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateCardNumber reports a registration against a card number
	// that is already taken.
	ErrDuplicateCardNumber = errors.New("card number already registered")

	// ErrUnknownCard reports a participant card id with no matching card.
	ErrUnknownCard = errors.New("unknown card id")

	// ErrInvalidWindow reports a session whose end does not follow its start.
	ErrInvalidWindow = errors.New("session end must be after start")

	// ErrSessionActiveConflict reports a start attempt while another
	// session is already active.
	ErrSessionActiveConflict = errors.New("another session is active")

	// ErrSessionCompleted reports a start attempt on a completed session.
	ErrSessionCompleted = errors.New("session already completed")

	// ErrDuplicateAttendance is returned by stores when an insert collides
	// with an existing (session, card) attendance row. The scan pipeline
	// translates it to ScanDuplicate.
	ErrDuplicateAttendance = errors.New("attendance already recorded")
)
