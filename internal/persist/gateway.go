// Package persist implements the session persistence gateway: throttled,
// best-effort snapshotting of the transcript and accumulated audio into a
// local SQLite database, and restoration of that snapshot on startup.
package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scribelab/transcribe-client/internal/transcript"
)

// Snapshot is the durable shape of a session: the transcript lines, the
// concatenated audio captured so far, and the (currently unused) translation
// list. Saved whole; there are no partial-field updates.
type Snapshot struct {
	SessionID    string            `json:"sessionId"`
	Timestamp    time.Time         `json:"timestamp"`
	Lines        []transcript.Line `json:"lines"`
	AudioBlob    []byte            `json:"audioBlob,omitempty"`
	Translations []string          `json:"translations"`
}

// Gateway stores session snapshots in a local SQLite database keyed by
// session id. All operations are best-effort from the caller's point of
// view: the live transcription path never depends on them succeeding.
type Gateway struct {
	db *sql.DB
}

// Open opens (creating if needed) the snapshot database at path
func Open(path string) (*Gateway, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id           TEXT PRIMARY KEY,
			savedAt      REAL NOT NULL,
			lines        TEXT NOT NULL,
			audio        BLOB,
			translations TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}

	return &Gateway{db: db}, nil
}

// Close closes the database connection
func (g *Gateway) Close() error {
	return g.db.Close()
}

// Ping verifies the database is reachable
func (g *Gateway) Ping(ctx context.Context) error {
	return g.db.PingContext(ctx)
}

// Save writes the snapshot, replacing any previous snapshot for the same
// session id.
func (g *Gateway) Save(snap Snapshot) error {
	linesJSON, err := json.Marshal(snap.Lines)
	if err != nil {
		return fmt.Errorf("marshal transcript lines: %w", err)
	}
	translations := snap.Translations
	if translations == nil {
		translations = []string{}
	}
	translationsJSON, err := json.Marshal(translations)
	if err != nil {
		return fmt.Errorf("marshal translations: %w", err)
	}

	savedAt := snap.Timestamp
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	_, err = g.db.Exec(`
		INSERT INTO sessions (id, savedAt, lines, audio, translations)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			savedAt = excluded.savedAt,
			lines = excluded.lines,
			audio = excluded.audio,
			translations = excluded.translations
	`, snap.SessionID, float64(savedAt.UnixNano())/1e9, string(linesJSON), snap.AudioBlob, string(translationsJSON))
	if err != nil {
		return fmt.Errorf("save session %s: %w", snap.SessionID, err)
	}
	return nil
}

// Load reads the snapshot for a session id. A missing snapshot returns
// (nil, nil): cold start is the normal case, not an error.
func (g *Gateway) Load(sessionID string) (*Snapshot, error) {
	row := g.db.QueryRow(`
		SELECT savedAt, lines, audio, translations
		FROM sessions
		WHERE id = ?
	`, sessionID)

	var savedAt float64
	var linesJSON, translationsJSON string
	var audio []byte
	if err := row.Scan(&savedAt, &linesJSON, &audio, &translationsJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	snap := Snapshot{
		SessionID: sessionID,
		Timestamp: timeFromUnix(savedAt),
		AudioBlob: audio,
	}
	if err := json.Unmarshal([]byte(linesJSON), &snap.Lines); err != nil {
		return nil, fmt.Errorf("decode transcript lines for %s: %w", sessionID, err)
	}
	if err := json.Unmarshal([]byte(translationsJSON), &snap.Translations); err != nil {
		return nil, fmt.Errorf("decode translations for %s: %w", sessionID, err)
	}
	return &snap, nil
}

// Clear removes the durable entry entirely so a subsequent Load returns nil
func (g *Gateway) Clear(sessionID string) error {
	if _, err := g.db.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear session %s: %w", sessionID, err)
	}
	return nil
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
