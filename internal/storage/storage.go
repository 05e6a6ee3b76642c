// /internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/keshon/yomiage/datastore"
	st "github.com/keshon/yomiage/internal/storagetypes"
)

// ErrUnavailable marks failures of the backing store itself. Callers test
// for it with errors.Is.
var ErrUnavailable = errors.New("storage unavailable")

// Store is the persistent preference and dictionary collaborator. Fetch
// operations create and persist a default record on first lookup; the
// returned value is a copy owned by the caller.
type Store interface {
	FetchOrCreateUser(ctx context.Context, userID string) (st.UserVoicePreference, error)
	FetchOrCreateGuild(ctx context.Context, guildID string) (st.GuildVoicePreference, error)
	ListDictionary(ctx context.Context, guildID string) ([]st.DictionaryEntry, error)

	SaveUser(ctx context.Context, pref st.UserVoicePreference) error
	SaveGuild(ctx context.Context, pref st.GuildVoicePreference) error
	// PutDictionary upserts an entry and reports whether it was new.
	PutDictionary(ctx context.Context, entry st.DictionaryEntry) (bool, error)
	// RemoveDictionary deletes an entry and reports whether it existed.
	RemoveDictionary(ctx context.Context, guildID, before string) (bool, error)

	Close() error
}

// Unavailable wraps err as a store failure for op.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// Storage is the JSON file implementation of Store.
type Storage struct {
	ds *datastore.DataStore
	mu sync.Mutex // serializes read-modify-write of records
}

var _ Store = (*Storage)(nil)

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

// NewWithDataStore wraps an already opened datastore.
func NewWithDataStore(ds *datastore.DataStore) *Storage {
	return &Storage{ds: ds}
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

func userKey(userID string) string   { return "user:" + userID }
func guildKey(guildID string) string { return "guild:" + guildID }

func (s *Storage) FetchOrCreateUser(ctx context.Context, userID string) (st.UserVoicePreference, error) {
	if err := ctx.Err(); err != nil {
		return st.UserVoicePreference{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var pref st.UserVoicePreference
	ok, err := s.ds.Get(userKey(userID), &pref)
	if err != nil {
		return st.UserVoicePreference{}, Unavailable("fetch user preference", err)
	}
	if ok {
		return pref, nil
	}

	pref = st.NewUserVoicePreference(userID)
	if err := s.ds.Put(userKey(userID), pref); err != nil {
		return st.UserVoicePreference{}, Unavailable("create user preference", err)
	}
	return pref, nil
}

func (s *Storage) SaveUser(ctx context.Context, pref st.UserVoicePreference) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pref.UpdatedAt = time.Now()
	if err := s.ds.Put(userKey(pref.UserID), pref); err != nil {
		return Unavailable("save user preference", err)
	}
	return nil
}

// getOrCreateGuildRecord must be called with s.mu held.
func (s *Storage) getOrCreateGuildRecord(guildID string) (*st.GuildRecord, error) {
	var record st.GuildRecord
	ok, err := s.ds.Get(guildKey(guildID), &record)
	if err != nil {
		return nil, Unavailable("fetch guild record", err)
	}
	if !ok {
		record = st.GuildRecord{
			Preference: st.NewGuildVoicePreference(guildID),
			Dictionary: map[string]string{},
		}
		if err := s.ds.Put(guildKey(guildID), record); err != nil {
			return nil, Unavailable("create guild record", err)
		}
	}
	if record.Dictionary == nil {
		record.Dictionary = map[string]string{}
	}
	return &record, nil
}

func (s *Storage) putGuildRecord(guildID string, record *st.GuildRecord) error {
	if err := s.ds.Put(guildKey(guildID), record); err != nil {
		return Unavailable("save guild record", err)
	}
	return nil
}

func (s *Storage) FetchOrCreateGuild(ctx context.Context, guildID string) (st.GuildVoicePreference, error) {
	if err := ctx.Err(); err != nil {
		return st.GuildVoicePreference{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return st.GuildVoicePreference{}, err
	}
	return record.Preference, nil
}

func (s *Storage) SaveGuild(ctx context.Context, pref st.GuildVoicePreference) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(pref.GuildID)
	if err != nil {
		return err
	}
	pref.UpdatedAt = time.Now()
	record.Preference = pref
	return s.putGuildRecord(pref.GuildID, record)
}

func (s *Storage) ListDictionary(ctx context.Context, guildID string) ([]st.DictionaryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	var record st.GuildRecord
	ok, err := s.ds.Get(guildKey(guildID), &record)
	s.mu.Unlock()
	if err != nil {
		return nil, Unavailable("list dictionary", err)
	}
	if !ok {
		return nil, nil
	}

	entries := make([]st.DictionaryEntry, 0, len(record.Dictionary))
	for before, after := range record.Dictionary {
		entries = append(entries, st.DictionaryEntry{GuildID: guildID, Before: before, After: after})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Before < entries[j].Before })
	return entries, nil
}

func (s *Storage) PutDictionary(ctx context.Context, entry st.DictionaryEntry) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(entry.GuildID)
	if err != nil {
		return false, err
	}
	_, existed := record.Dictionary[entry.Before]
	record.Dictionary[entry.Before] = entry.After
	if err := s.putGuildRecord(entry.GuildID, record); err != nil {
		return false, err
	}
	return !existed, nil
}

func (s *Storage) RemoveDictionary(ctx context.Context, guildID, before string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return false, err
	}
	if _, ok := record.Dictionary[before]; !ok {
		return false, nil
	}
	delete(record.Dictionary, before)
	return true, s.putGuildRecord(guildID, record)
}
