package attend_test

import (
	"context"
	"testing"
	"time"

	"rfidtrack/internal/attend"
	"rfidtrack/internal/store"
)

var testNow = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

type env struct {
	store     *store.Memory
	directory *attend.Directory
	sessions  *attend.Lifecycle
	scanner   *attend.Scanner
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clock := attend.ClockFunc(func() time.Time { return testNow })
	backing := store.NewMemory()
	sessions := attend.NewLifecycle(backing, clock)
	return &env{
		store:     backing,
		directory: attend.NewDirectory(backing, clock),
		sessions:  sessions,
		scanner:   attend.NewScanner(backing, sessions, clock),
	}
}

func (e *env) registerCard(t *testing.T, number, name string) attend.Card {
	t.Helper()
	card, _, err := e.directory.RegisterCard(context.Background(), number, attend.Profile{
		Name:     name,
		Age:      30,
		Birthday: "1994-01-01",
		Email:    name + "@x.com",
	})
	if err != nil {
		t.Fatalf("register card %s: %v", number, err)
	}
	return card
}

func (e *env) createSession(t *testing.T, name string, participants ...string) attend.Session {
	t.Helper()
	session, err := e.sessions.CreateSession(context.Background(), name, testNow, testNow.Add(time.Hour), participants)
	if err != nil {
		t.Fatalf("create session %s: %v", name, err)
	}
	return session
}

func (e *env) startSession(t *testing.T, id string) attend.Session {
	t.Helper()
	session, err := e.sessions.StartSession(context.Background(), id)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	return session
}
