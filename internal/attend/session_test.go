package attend_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"rfidtrack/internal/attend"
)

func TestCreateSessionRejectsEmptyWindow(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	_, err := e.sessions.CreateSession(context.Background(), "Standup", testNow, testNow, nil)
	if !errors.Is(err, attend.ErrInvalidWindow) {
		t.Fatalf("create error = %v, want %v", err, attend.ErrInvalidWindow)
	}
	_, err = e.sessions.CreateSession(context.Background(), "Standup", testNow, testNow.Add(-time.Minute), nil)
	if !errors.Is(err, attend.ErrInvalidWindow) {
		t.Fatalf("create error = %v, want %v", err, attend.ErrInvalidWindow)
	}
}

func TestCreateSessionRejectsUnknownParticipant(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	_, err := e.sessions.CreateSession(context.Background(), "Standup", testNow, testNow.Add(time.Hour), []string{"no-such-card"})
	if !errors.Is(err, attend.ErrUnknownCard) {
		t.Fatalf("create error = %v, want %v", err, attend.ErrUnknownCard)
	}
}

func TestCreateSessionStartsUpcoming(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	session := e.createSession(t, "Standup")
	if got := session.State(); got != attend.StateUpcoming {
		t.Fatalf("state = %v, want %v", got, attend.StateUpcoming)
	}
}

func TestSessionTransitionsOnlyForward(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	session := e.createSession(t, "Standup")

	started := e.startSession(t, session.ID)
	if got := started.State(); got != attend.StateActive {
		t.Fatalf("state after start = %v, want %v", got, attend.StateActive)
	}

	stopped, err := e.sessions.StopSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("stop session: %v", err)
	}
	if got := stopped.State(); got != attend.StateCompleted {
		t.Fatalf("state after stop = %v, want %v", got, attend.StateCompleted)
	}

	// No way back: a completed session cannot be reactivated.
	if _, err := e.sessions.StartSession(context.Background(), session.ID); !errors.Is(err, attend.ErrSessionCompleted) {
		t.Fatalf("restart error = %v, want %v", err, attend.ErrSessionCompleted)
	}
	current, err := e.sessions.GetSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got := current.State(); got != attend.StateCompleted {
		t.Fatalf("state after rejected restart = %v, want %v", got, attend.StateCompleted)
	}
}

func TestStartSessionEnforcesSingleActive(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	first := e.createSession(t, "First")
	second := e.createSession(t, "Second")

	e.startSession(t, first.ID)
	if _, err := e.sessions.StartSession(context.Background(), second.ID); !errors.Is(err, attend.ErrSessionActiveConflict) {
		t.Fatalf("second start error = %v, want %v", err, attend.ErrSessionActiveConflict)
	}

	// Starting the already-active session again is a no-op.
	again := e.startSession(t, first.ID)
	if got := again.State(); got != attend.StateActive {
		t.Fatalf("state = %v, want %v", got, attend.StateActive)
	}

	// Stopping the first frees the slot for the second.
	if _, err := e.sessions.StopSession(context.Background(), first.ID); err != nil {
		t.Fatalf("stop first: %v", err)
	}
	e.startSession(t, second.ID)
}

func TestStopSessionIdempotent(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	session := e.createSession(t, "Standup")
	e.startSession(t, session.ID)

	if _, err := e.sessions.StopSession(context.Background(), session.ID); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	stopped, err := e.sessions.StopSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if got := stopped.State(); got != attend.StateCompleted {
		t.Fatalf("state = %v, want %v", got, attend.StateCompleted)
	}
}

func TestStartSessionUnknownID(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	if _, err := e.sessions.StartSession(context.Background(), "missing"); !errors.Is(err, attend.ErrNotFound) {
		t.Fatalf("start error = %v, want %v", err, attend.ErrNotFound)
	}
}

func TestAuthorizedOpenSessionAllowsEveryCard(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	alice := e.registerCard(t, "A100", "Alice")
	session := e.createSession(t, "Open House")

	restricted, err := e.sessions.Restricted(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("restricted: %v", err)
	}
	if restricted {
		t.Fatal("session with no participants should be open")
	}

	for _, cardID := range []string{alice.ID, "never-registered"} {
		ok, err := e.sessions.Authorized(context.Background(), session.ID, cardID)
		if err != nil {
			t.Fatalf("authorized(%s): %v", cardID, err)
		}
		if !ok {
			t.Fatalf("authorized(%s) = false, want true for open session", cardID)
		}
	}
}

func TestAuthorizedRestrictedSessionAllowsOnlyListed(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	alice := e.registerCard(t, "A100", "Alice")
	bob := e.registerCard(t, "B200", "Bob")
	session := e.createSession(t, "Board Meeting", alice.ID)

	restricted, err := e.sessions.Restricted(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("restricted: %v", err)
	}
	if !restricted {
		t.Fatal("session with participants should be restricted")
	}

	if ok, _ := e.sessions.Authorized(context.Background(), session.ID, alice.ID); !ok {
		t.Fatal("listed card should be authorized")
	}
	if ok, _ := e.sessions.Authorized(context.Background(), session.ID, bob.ID); ok {
		t.Fatal("unlisted card should not be authorized")
	}
}

func TestAddParticipantsIdempotent(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	alice := e.registerCard(t, "A100", "Alice")
	session := e.createSession(t, "Board Meeting", alice.ID)

	if err := e.sessions.AddParticipants(context.Background(), session.ID, []string{alice.ID, alice.ID}); err != nil {
		t.Fatalf("re-add participant: %v", err)
	}
	participants, err := e.store.Participants(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if len(participants) != 1 {
		t.Fatalf("participant rows = %d, want 1", len(participants))
	}
}

func TestAddParticipantsRejectsUnknownCard(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	session := e.createSession(t, "Board Meeting")
	err := e.sessions.AddParticipants(context.Background(), session.ID, []string{"ghost"})
	if !errors.Is(err, attend.ErrUnknownCard) {
		t.Fatalf("add error = %v, want %v", err, attend.ErrUnknownCard)
	}
}

func TestClearParticipantsReopensSession(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	alice := e.registerCard(t, "A100", "Alice")
	bob := e.registerCard(t, "B200", "Bob")
	session := e.createSession(t, "Board Meeting", alice.ID)

	if err := e.sessions.ClearParticipants(context.Background(), session.ID); err != nil {
		t.Fatalf("clear participants: %v", err)
	}
	if ok, _ := e.sessions.Authorized(context.Background(), session.ID, bob.ID); !ok {
		t.Fatal("cleared session should be open to every card")
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	alice := e.registerCard(t, "A100", "Alice")
	session := e.createSession(t, "Standup", alice.ID)
	e.startSession(t, session.ID)

	if _, err := e.scanner.Scan(context.Background(), "A100"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if err := e.sessions.DeleteSession(context.Background(), session.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}

	if _, err := e.sessions.GetSession(context.Background(), session.ID); !errors.Is(err, attend.ErrNotFound) {
		t.Fatalf("get deleted session error = %v, want %v", err, attend.ErrNotFound)
	}
	count, err := e.store.AttendanceCount(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("attendance count: %v", err)
	}
	if count != 0 {
		t.Fatalf("attendance rows after delete = %d, want 0", count)
	}
	participants, err := e.store.Participants(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if len(participants) != 0 {
		t.Fatalf("participant rows after delete = %d, want 0", len(participants))
	}
}

func TestSessionListings(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	first := e.createSession(t, "First")
	second, err := e.sessions.CreateSession(context.Background(), "Second", testNow.Add(2*time.Hour), testNow.Add(3*time.Hour), nil)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	e.startSession(t, first.ID)
	if _, err := e.sessions.StopSession(context.Background(), first.ID); err != nil {
		t.Fatalf("stop first: %v", err)
	}

	upcoming, err := e.sessions.UpcomingSessions(context.Background())
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].ID != second.ID {
		t.Fatalf("upcoming = %+v, want only %s", upcoming, second.ID)
	}

	completed, err := e.sessions.CompletedSessions(context.Background())
	if err != nil {
		t.Fatalf("completed: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != first.ID {
		t.Fatalf("completed = %+v, want only %s", completed, first.ID)
	}
}
