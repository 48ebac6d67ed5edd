package attend

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Directory manages the card/profile roster: registration, lookups, and
// cascading removal.
type Directory struct {
	store Store
	clock Clock
}

// NewDirectory creates a directory over the given store.
func NewDirectory(store Store, clock Clock) *Directory {
	if clock == nil {
		clock = SystemClock()
	}
	return &Directory{store: store, clock: clock}
}

// RegisterCard creates a profile and a card pointing at it in one atomic
// step. Fails with ErrDuplicateCardNumber when the number is taken.
func (d *Directory) RegisterCard(ctx context.Context, cardNumber string, fields Profile) (Card, Profile, error) {
	if cardNumber == "" {
		return Card{}, Profile{}, fmt.Errorf("card number required")
	}
	if fields.Name == "" {
		return Card{}, Profile{}, fmt.Errorf("profile name required")
	}

	// Advisory pre-check for a friendlier failure; the store's uniqueness
	// constraint remains the authoritative guard.
	if _, err := d.store.GetCardByNumber(ctx, cardNumber); err == nil {
		return Card{}, Profile{}, ErrDuplicateCardNumber
	} else if !errors.Is(err, ErrNotFound) {
		return Card{}, Profile{}, fmt.Errorf("lookup card number: %w", err)
	}

	now := d.clock.Now()
	profile := Profile{
		ID:       uuid.NewString(),
		Name:     fields.Name,
		Age:      fields.Age,
		Birthday: fields.Birthday,
		Email:    fields.Email,
		Created:  now,
	}
	card := Card{
		ID:         uuid.NewString(),
		CardNumber: cardNumber,
		ProfileID:  profile.ID,
		Created:    now,
	}
	if err := d.store.CreateCardWithProfile(ctx, profile, card); err != nil {
		if errors.Is(err, ErrDuplicateCardNumber) {
			return Card{}, Profile{}, ErrDuplicateCardNumber
		}
		return Card{}, Profile{}, fmt.Errorf("create card with profile: %w", err)
	}
	return card, profile, nil
}

// FindCardByNumber resolves a card by its exact number.
func (d *Directory) FindCardByNumber(ctx context.Context, cardNumber string) (Card, error) {
	return d.store.GetCardByNumber(ctx, cardNumber)
}

// FindProfile resolves a profile by id.
func (d *Directory) FindProfile(ctx context.Context, profileID string) (Profile, error) {
	return d.store.GetProfile(ctx, profileID)
}

// UpdateProfile replaces the mutable fields of a profile. Card linkage is
// untouched.
func (d *Directory) UpdateProfile(ctx context.Context, profile Profile) error {
	if profile.ID == "" {
		return fmt.Errorf("profile id required")
	}
	if profile.Name == "" {
		return fmt.Errorf("profile name required")
	}
	return d.store.UpdateProfile(ctx, profile)
}

// ListCards returns every card with its owning profile.
func (d *Directory) ListCards(ctx context.Context) ([]CardWithProfile, error) {
	return d.store.ListCards(ctx)
}

// DeleteCard removes one card. The owning profile stays.
func (d *Directory) DeleteCard(ctx context.Context, cardID string) error {
	return d.store.DeleteCard(ctx, cardID)
}

// DeleteProfile removes a profile and, by cascade, every card it owns.
func (d *Directory) DeleteProfile(ctx context.Context, profileID string) error {
	return d.store.DeleteProfile(ctx, profileID)
}
