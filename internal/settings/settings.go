// Package settings writes voice preferences and dictionary rules and
// announces each change on the update bus.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/keshon/yomiage/internal/events"
	"github.com/keshon/yomiage/internal/storage"
	st "github.com/keshon/yomiage/internal/storagetypes"
)

// Accepted voice parameter ranges.
const (
	MinSpeed, MaxSpeed           = 0.5, 2.0
	MinTone, MaxTone             = -12.0, 12.0
	MinIntonation, MaxIntonation = 0.0, 4.0
	MinVolume, MaxVolume         = -20.0, 20.0
)

var (
	ErrOutOfRange = errors.New("value out of range")
	ErrEmptyWord  = errors.New("dictionary word is empty")
)

type Service struct {
	store storage.Store
	bus   *events.Bus
}

// New returns a Service. bus may be nil, in which case changes are only
// persisted.
func New(store storage.Store, bus *events.Bus) *Service {
	return &Service{store: store, bus: bus}
}

func (s *Service) publish(ctx context.Context, ev events.Event) error {
	if s.bus == nil {
		return nil
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Kind, err)
	}
	return nil
}

func (s *Service) User(ctx context.Context, userID string) (st.UserVoicePreference, error) {
	return s.store.FetchOrCreateUser(ctx, userID)
}

// UpdateUser applies fn to the stored preference, validates, saves and
// publishes the result.
func (s *Service) UpdateUser(ctx context.Context, userID string, fn func(*st.UserVoicePreference)) (st.UserVoicePreference, error) {
	pref, err := s.store.FetchOrCreateUser(ctx, userID)
	if err != nil {
		return st.UserVoicePreference{}, err
	}
	fn(&pref)
	if err := ValidateUser(pref); err != nil {
		return st.UserVoicePreference{}, err
	}
	if err := s.store.SaveUser(ctx, pref); err != nil {
		return st.UserVoicePreference{}, err
	}
	pref.UpdatedAt = time.Now()
	return pref, s.publish(ctx, events.UserUpdated(pref))
}

func ValidateUser(p st.UserVoicePreference) error {
	check := func(name string, v, lo, hi float64) error {
		if v < lo || v > hi {
			return fmt.Errorf("%w: %s must be between %g and %g, got %g", ErrOutOfRange, name, lo, hi, v)
		}
		return nil
	}
	return errors.Join(
		check("speed", p.Speed, MinSpeed, MaxSpeed),
		check("tone", p.Tone, MinTone, MaxTone),
		check("intonation", p.Intonation, MinIntonation, MaxIntonation),
		check("volume", p.Volume, MinVolume, MaxVolume),
	)
}

func (s *Service) Guild(ctx context.Context, guildID string) (st.GuildVoicePreference, error) {
	return s.store.FetchOrCreateGuild(ctx, guildID)
}

func (s *Service) UpdateGuild(ctx context.Context, guildID string, fn func(*st.GuildVoicePreference)) (st.GuildVoicePreference, error) {
	pref, err := s.store.FetchOrCreateGuild(ctx, guildID)
	if err != nil {
		return st.GuildVoicePreference{}, err
	}
	fn(&pref)
	if err := s.store.SaveGuild(ctx, pref); err != nil {
		return st.GuildVoicePreference{}, err
	}
	pref.UpdatedAt = time.Now()
	return pref, s.publish(ctx, events.GuildUpdated(pref))
}

func (s *Service) Words(ctx context.Context, guildID string) ([]st.DictionaryEntry, error) {
	return s.store.ListDictionary(ctx, guildID)
}

// PutWord adds or replaces a rule and reports which of the two happened.
func (s *Service) PutWord(ctx context.Context, entry st.DictionaryEntry) (st.DictionaryOp, error) {
	if strings.TrimSpace(entry.Before) == "" {
		return "", ErrEmptyWord
	}
	created, err := s.store.PutDictionary(ctx, entry)
	if err != nil {
		return "", err
	}
	op := st.DictionaryUpdate
	if created {
		op = st.DictionaryAdd
	}
	return op, s.publish(ctx, events.DictionaryChanged(op, entry))
}

// RemoveWord deletes a rule. It reports false, and publishes nothing, when
// the rule did not exist.
func (s *Service) RemoveWord(ctx context.Context, guildID, before string) (bool, error) {
	removed, err := s.store.RemoveDictionary(ctx, guildID, before)
	if err != nil || !removed {
		return false, err
	}
	entry := st.DictionaryEntry{GuildID: guildID, Before: before}
	return true, s.publish(ctx, events.DictionaryChanged(st.DictionaryRemove, entry))
}
