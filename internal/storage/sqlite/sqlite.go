// Package sqlite implements storage.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/keshon/yomiage/internal/storage"
	st "github.com/keshon/yomiage/internal/storagetypes"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_voice_preferences (
	user_id    TEXT PRIMARY KEY,
	speed      REAL NOT NULL,
	tone       REAL NOT NULL,
	intonation REAL NOT NULL,
	volume     REAL NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS guild_voice_preferences (
	guild_id   TEXT PRIMARY KEY,
	read_name  INTEGER NOT NULL,
	read_nick  INTEGER NOT NULL,
	read_bot   INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS voice_dictionaries (
	guild_id    TEXT NOT NULL,
	before_text TEXT NOT NULL,
	after_text  TEXT NOT NULL,
	PRIMARY KEY (guild_id, before_text)
);`

type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer keeps fetch-or-create inserts from racing each other.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) FetchOrCreateUser(ctx context.Context, userID string) (st.UserVoicePreference, error) {
	def := st.NewUserVoicePreference(userID)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_voice_preferences (user_id, speed, tone, intonation, volume, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(user_id) DO NOTHING`,
		def.UserID, def.Speed, def.Tone, def.Intonation, def.Volume, def.UpdatedAt.UnixMilli())
	if err != nil {
		return st.UserVoicePreference{}, storage.Unavailable("create user preference", err)
	}

	var (
		pref    st.UserVoicePreference
		updated int64
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT user_id, speed, tone, intonation, volume, updated_at
		 FROM user_voice_preferences WHERE user_id = ?`, userID).
		Scan(&pref.UserID, &pref.Speed, &pref.Tone, &pref.Intonation, &pref.Volume, &updated)
	if err != nil {
		return st.UserVoicePreference{}, storage.Unavailable("fetch user preference", err)
	}
	pref.UpdatedAt = time.UnixMilli(updated)
	return pref, nil
}

func (s *Store) SaveUser(ctx context.Context, pref st.UserVoicePreference) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_voice_preferences (user_id, speed, tone, intonation, volume, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   speed = excluded.speed, tone = excluded.tone, intonation = excluded.intonation,
		   volume = excluded.volume, updated_at = excluded.updated_at`,
		pref.UserID, pref.Speed, pref.Tone, pref.Intonation, pref.Volume, time.Now().UnixMilli())
	if err != nil {
		return storage.Unavailable("save user preference", err)
	}
	return nil
}

func (s *Store) FetchOrCreateGuild(ctx context.Context, guildID string) (st.GuildVoicePreference, error) {
	def := st.NewGuildVoicePreference(guildID)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guild_voice_preferences (guild_id, read_name, read_nick, read_bot, updated_at)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT(guild_id) DO NOTHING`,
		def.GuildID, def.ReadName, def.ReadNick, def.ReadBot, def.UpdatedAt.UnixMilli())
	if err != nil {
		return st.GuildVoicePreference{}, storage.Unavailable("create guild preference", err)
	}

	var (
		pref    st.GuildVoicePreference
		updated int64
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT guild_id, read_name, read_nick, read_bot, updated_at
		 FROM guild_voice_preferences WHERE guild_id = ?`, guildID).
		Scan(&pref.GuildID, &pref.ReadName, &pref.ReadNick, &pref.ReadBot, &updated)
	if err != nil {
		return st.GuildVoicePreference{}, storage.Unavailable("fetch guild preference", err)
	}
	pref.UpdatedAt = time.UnixMilli(updated)
	return pref, nil
}

func (s *Store) SaveGuild(ctx context.Context, pref st.GuildVoicePreference) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guild_voice_preferences (guild_id, read_name, read_nick, read_bot, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(guild_id) DO UPDATE SET
		   read_name = excluded.read_name, read_nick = excluded.read_nick,
		   read_bot = excluded.read_bot, updated_at = excluded.updated_at`,
		pref.GuildID, pref.ReadName, pref.ReadNick, pref.ReadBot, time.Now().UnixMilli())
	if err != nil {
		return storage.Unavailable("save guild preference", err)
	}
	return nil
}

func (s *Store) ListDictionary(ctx context.Context, guildID string) ([]st.DictionaryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guild_id, before_text, after_text FROM voice_dictionaries
		 WHERE guild_id = ? ORDER BY before_text`, guildID)
	if err != nil {
		return nil, storage.Unavailable("list dictionary", err)
	}
	defer rows.Close()

	var entries []st.DictionaryEntry
	for rows.Next() {
		var e st.DictionaryEntry
		if err := rows.Scan(&e.GuildID, &e.Before, &e.After); err != nil {
			return nil, storage.Unavailable("scan dictionary", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("list dictionary", err)
	}
	return entries, nil
}

func (s *Store) PutDictionary(ctx context.Context, entry st.DictionaryEntry) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, storage.Unavailable("put dictionary", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM voice_dictionaries WHERE guild_id = ? AND before_text = ?`,
		entry.GuildID, entry.Before).Scan(&exists)
	if err != nil {
		return false, storage.Unavailable("put dictionary", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO voice_dictionaries (guild_id, before_text, after_text) VALUES (?, ?, ?)
		 ON CONFLICT(guild_id, before_text) DO UPDATE SET after_text = excluded.after_text`,
		entry.GuildID, entry.Before, entry.After)
	if err != nil {
		return false, storage.Unavailable("put dictionary", err)
	}
	if err := tx.Commit(); err != nil {
		return false, storage.Unavailable("put dictionary", err)
	}
	return exists == 0, nil
}

func (s *Store) RemoveDictionary(ctx context.Context, guildID, before string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM voice_dictionaries WHERE guild_id = ? AND before_text = ?`, guildID, before)
	if err != nil {
		return false, storage.Unavailable("remove dictionary", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storage.Unavailable("remove dictionary", err)
	}
	return n > 0, nil
}
