package attend_test

import (
	"context"
	"errors"
	"testing"

	"rfidtrack/internal/attend"
)

func TestRegisterCardCreatesBothRecords(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	card, profile, err := e.directory.RegisterCard(context.Background(), "A100", attend.Profile{
		Name: "Alice", Age: 30, Birthday: "1994-01-01", Email: "a@x.com",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if card.ProfileID != profile.ID {
		t.Fatalf("card profile id = %q, want %q", card.ProfileID, profile.ID)
	}

	found, err := e.directory.FindCardByNumber(context.Background(), "A100")
	if err != nil {
		t.Fatalf("find card: %v", err)
	}
	if found.ID != card.ID {
		t.Fatalf("found card = %q, want %q", found.ID, card.ID)
	}
	owner, err := e.directory.FindProfile(context.Background(), profile.ID)
	if err != nil {
		t.Fatalf("find profile: %v", err)
	}
	if owner.Name != "Alice" {
		t.Fatalf("profile name = %q, want %q", owner.Name, "Alice")
	}
}

func TestRegisterCardRejectsDuplicateNumber(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.registerCard(t, "A100", "Alice")

	_, _, err := e.directory.RegisterCard(context.Background(), "A100", attend.Profile{Name: "Mallory"})
	if !errors.Is(err, attend.ErrDuplicateCardNumber) {
		t.Fatalf("register error = %v, want %v", err, attend.ErrDuplicateCardNumber)
	}

	// The failed registration must not leave an orphan profile behind.
	profiles, err := e.store.ListProfiles(context.Background())
	if err != nil {
		t.Fatalf("list profiles: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("profiles = %d, want 1", len(profiles))
	}
}

func TestUpdateProfileKeepsCardLinkage(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	card, profile, err := e.directory.RegisterCard(context.Background(), "A100", attend.Profile{
		Name: "Alice", Age: 30, Birthday: "1994-01-01", Email: "a@x.com",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	profile.Name = "Alice Cooper"
	profile.Email = "alice@x.com"
	if err := e.directory.UpdateProfile(context.Background(), profile); err != nil {
		t.Fatalf("update profile: %v", err)
	}

	updated, err := e.directory.FindProfile(context.Background(), profile.ID)
	if err != nil {
		t.Fatalf("find profile: %v", err)
	}
	if updated.Name != "Alice Cooper" {
		t.Fatalf("name = %q, want %q", updated.Name, "Alice Cooper")
	}
	still, err := e.directory.FindCardByNumber(context.Background(), "A100")
	if err != nil {
		t.Fatalf("find card: %v", err)
	}
	if still.ID != card.ID || still.ProfileID != profile.ID {
		t.Fatalf("card linkage changed: %+v", still)
	}
}

func TestDeleteProfileCascadesToCards(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	_, profile, err := e.directory.RegisterCard(context.Background(), "A100", attend.Profile{Name: "Alice"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := e.directory.DeleteProfile(context.Background(), profile.ID); err != nil {
		t.Fatalf("delete profile: %v", err)
	}
	if _, err := e.directory.FindCardByNumber(context.Background(), "A100"); !errors.Is(err, attend.ErrNotFound) {
		t.Fatalf("find card after cascade = %v, want %v", err, attend.ErrNotFound)
	}
}

func TestDeleteCardKeepsProfile(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	card, profile, err := e.directory.RegisterCard(context.Background(), "A100", attend.Profile{Name: "Alice"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := e.directory.DeleteCard(context.Background(), card.ID); err != nil {
		t.Fatalf("delete card: %v", err)
	}
	if _, err := e.directory.FindCardByNumber(context.Background(), "A100"); !errors.Is(err, attend.ErrNotFound) {
		t.Fatalf("find deleted card = %v, want %v", err, attend.ErrNotFound)
	}
	if _, err := e.directory.FindProfile(context.Background(), profile.ID); err != nil {
		t.Fatalf("profile should survive card deletion: %v", err)
	}
}

func TestListCardsIncludesProfiles(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.registerCard(t, "A100", "Alice")
	e.registerCard(t, "B200", "Bob")

	cards, err := e.directory.ListCards(context.Background())
	if err != nil {
		t.Fatalf("list cards: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("cards = %d, want 2", len(cards))
	}
	for _, entry := range cards {
		if entry.Profile.ID != entry.Card.ProfileID {
			t.Fatalf("mismatched pair: %+v", entry)
		}
	}
}
