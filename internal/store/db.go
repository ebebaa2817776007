// Package store provides SQLite-backed persistence for worlds, sessions,
// agents, and the event journal. The engine checkpoints through it; it is
// not written on every tick.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/mirelet/veldt/internal/behavior"
	"github.com/mirelet/veldt/internal/catalog"
)

// ErrNotFound reports a missing world, session, or agent row.
var ErrNotFound = errors.New("store: not found")

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS worlds (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		world_time REAL NOT NULL DEFAULT 0,
		catalog_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		world_id TEXT NOT NULL,
		flags_json TEXT NOT NULL,
		stats_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS npcs (
		id TEXT PRIMARY KEY,
		world_id TEXT NOT NULL,
		name TEXT NOT NULL,
		routine_id TEXT NOT NULL,
		archetype TEXT,
		location_type TEXT,
		personality_json TEXT NOT NULL,
		prefs_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		world_id TEXT NOT NULL,
		world_time REAL NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_world ON sessions(world_id);
	CREATE INDEX IF NOT EXISTS idx_npcs_world ON npcs(world_id);
	CREATE INDEX IF NOT EXISTS idx_events_world ON events(world_id, id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Session is one player's live instance of a world.
type Session struct {
	ID      string
	WorldID string
	Flags   behavior.SessionFlags
	Stats   map[string]float64
}

// NPC is an agent's immutable behavior profile. Runtime state lives in
// session flags, not here.
type NPC struct {
	ID           string
	WorldID      string
	Name         string
	RoutineID    string
	Archetype    string
	LocationType string
	Personality  map[string]float64
	Preferences  map[string]any
}

// Event is one journal entry.
type Event struct {
	WorldID     string  `db:"world_id" json:"world_id"`
	WorldTime   float64 `db:"world_time" json:"world_time"`
	Category    string  `db:"category" json:"category"`
	Description string  `db:"description" json:"description"`
}

// UpsertWorld imports a catalog world, preserving any checkpointed world
// time from a previous run.
func (db *DB) UpsertWorld(w *catalog.World) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal world %s: %w", w.ID, err)
	}
	_, err = db.conn.Exec(`INSERT INTO worlds (id, name, world_time, catalog_json)
		VALUES (?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, catalog_json = excluded.catalog_json`,
		w.ID, w.Name, string(raw))
	return err
}

// World fetches a world's catalog by id.
func (db *DB) World(id string) (*catalog.World, error) {
	var raw string
	err := db.conn.Get(&raw, "SELECT catalog_json FROM worlds WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("world %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var w catalog.World
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("decode world %s: %w", id, err)
	}
	return &w, nil
}

// WorldIDs lists every imported world id.
func (db *DB) WorldIDs() ([]string, error) {
	var ids []string
	err := db.conn.Select(&ids, "SELECT id FROM worlds ORDER BY id")
	return ids, err
}

// WorldTime reads a world's checkpointed time.
func (db *DB) WorldTime(id string) (float64, error) {
	var t float64
	err := db.conn.Get(&t, "SELECT world_time FROM worlds WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("world %s: %w", id, ErrNotFound)
	}
	return t, err
}

// SetWorldTime checkpoints a world's current time.
func (db *DB) SetWorldTime(id string, worldTime float64) error {
	res, err := db.conn.Exec("UPDATE worlds SET world_time = ? WHERE id = ?", worldTime, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("world %s: %w", id, ErrNotFound)
	}
	return nil
}

// CreateSession starts a new session for a world.
func (db *DB) CreateSession(worldID string) (*Session, error) {
	s := &Session{
		ID:      uuid.NewString(),
		WorldID: worldID,
		Stats:   make(map[string]float64),
	}
	if err := db.SaveSession(s); err != nil {
		return nil, err
	}
	return s, nil
}

// SaveSession persists a session's mutable state, including the behavior
// sub-state under its flags.
func (db *DB) SaveSession(s *Session) error {
	flagsJSON, err := json.Marshal(s.Flags)
	if err != nil {
		return fmt.Errorf("marshal session %s flags: %w", s.ID, err)
	}
	statsJSON, err := json.Marshal(s.Stats)
	if err != nil {
		return fmt.Errorf("marshal session %s stats: %w", s.ID, err)
	}
	_, err = db.conn.Exec(`INSERT INTO sessions (id, world_id, flags_json, stats_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET flags_json = excluded.flags_json, stats_json = excluded.stats_json`,
		s.ID, s.WorldID, string(flagsJSON), string(statsJSON))
	return err
}

type sessionRow struct {
	ID        string `db:"id"`
	WorldID   string `db:"world_id"`
	FlagsJSON string `db:"flags_json"`
	StatsJSON string `db:"stats_json"`
}

func (r sessionRow) decode() (*Session, error) {
	s := &Session{ID: r.ID, WorldID: r.WorldID}
	if err := json.Unmarshal([]byte(r.FlagsJSON), &s.Flags); err != nil {
		return nil, fmt.Errorf("decode session %s flags: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.StatsJSON), &s.Stats); err != nil {
		return nil, fmt.Errorf("decode session %s stats: %w", r.ID, err)
	}
	return s, nil
}

// Session fetches one session by id.
func (db *DB) Session(id string) (*Session, error) {
	var row sessionRow
	err := db.conn.Get(&row, "SELECT id, world_id, flags_json, stats_json FROM sessions WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.decode()
}

// SessionsByWorld fetches every session of a world. A session whose flags
// fail to decode is skipped with a warning rather than failing the batch.
func (db *DB) SessionsByWorld(worldID string) ([]*Session, error) {
	var rows []sessionRow
	err := db.conn.Select(&rows,
		"SELECT id, world_id, flags_json, stats_json FROM sessions WHERE world_id = ? ORDER BY id", worldID)
	if err != nil {
		return nil, err
	}
	out := make([]*Session, 0, len(rows))
	for _, r := range rows {
		s, err := r.decode()
		if err != nil {
			slog.Warn("skipping undecodable session", "session", r.ID, "error", err)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// UpsertNPC writes an agent's behavior profile.
func (db *DB) UpsertNPC(n *NPC) error {
	persJSON, err := json.Marshal(n.Personality)
	if err != nil {
		return fmt.Errorf("marshal npc %s personality: %w", n.ID, err)
	}
	prefsJSON, err := json.Marshal(n.Preferences)
	if err != nil {
		return fmt.Errorf("marshal npc %s prefs: %w", n.ID, err)
	}
	_, err = db.conn.Exec(`INSERT INTO npcs
		(id, world_id, name, routine_id, archetype, location_type, personality_json, prefs_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, routine_id = excluded.routine_id,
			archetype = excluded.archetype, location_type = excluded.location_type,
			personality_json = excluded.personality_json, prefs_json = excluded.prefs_json`,
		n.ID, n.WorldID, n.Name, n.RoutineID, n.Archetype, n.LocationType,
		string(persJSON), string(prefsJSON))
	return err
}

type npcRow struct {
	ID              string `db:"id"`
	WorldID         string `db:"world_id"`
	Name            string `db:"name"`
	RoutineID       string `db:"routine_id"`
	Archetype       string `db:"archetype"`
	LocationType    string `db:"location_type"`
	PersonalityJSON string `db:"personality_json"`
	PrefsJSON       string `db:"prefs_json"`
}

func (r npcRow) decode() (*NPC, error) {
	n := &NPC{
		ID: r.ID, WorldID: r.WorldID, Name: r.Name,
		RoutineID: r.RoutineID, Archetype: r.Archetype, LocationType: r.LocationType,
	}
	if err := json.Unmarshal([]byte(r.PersonalityJSON), &n.Personality); err != nil {
		return nil, fmt.Errorf("decode npc %s personality: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.PrefsJSON), &n.Preferences); err != nil {
		return nil, fmt.Errorf("decode npc %s prefs: %w", r.ID, err)
	}
	return n, nil
}

const npcColumns = "id, world_id, name, routine_id, archetype, location_type, personality_json, prefs_json"

// NPCByID fetches one agent.
func (db *DB) NPCByID(id string) (*NPC, error) {
	var row npcRow
	err := db.conn.Get(&row, "SELECT "+npcColumns+" FROM npcs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("npc %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.decode()
}

// NPCsByWorld fetches a world's agents in id order.
func (db *DB) NPCsByWorld(worldID string) ([]*NPC, error) {
	var rows []npcRow
	err := db.conn.Select(&rows, "SELECT "+npcColumns+" FROM npcs WHERE world_id = ? ORDER BY id", worldID)
	if err != nil {
		return nil, err
	}
	out := make([]*NPC, 0, len(rows))
	for _, r := range rows {
		n, err := r.decode()
		if err != nil {
			slog.Warn("skipping undecodable npc", "npc", r.ID, "error", err)
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// AppendEvents flushes journal entries to durable storage.
func (db *DB) AppendEvents(events []Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(
		"INSERT INTO events (world_id, world_time, category, description) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(e.WorldID, e.WorldTime, e.Category, e.Description); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecentEvents returns the most recent N events for a world, newest first.
func (db *DB) RecentEvents(worldID string, limit int) ([]Event, error) {
	var events []Event
	err := db.conn.Select(&events,
		"SELECT world_id, world_time, category, description FROM events WHERE world_id = ? ORDER BY id DESC LIMIT ?",
		worldID, limit)
	return events, err
}
