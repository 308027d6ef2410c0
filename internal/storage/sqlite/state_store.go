// Package sqlite persists scene state in a SQLite database. Events and
// world-state entities live in separate tables; participants and metadata are
// stored as JSON columns since their shape is an open schema.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/sceneline/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS scene_events (
	id          TEXT PRIMARY KEY,
	timestamp   TEXT NOT NULL,
	action      TEXT NOT NULL,
	summary     TEXT NOT NULL DEFAULT '',
	actor       TEXT,
	target      TEXT,
	metadata    TEXT
);

CREATE INDEX IF NOT EXISTS idx_scene_events_timestamp ON scene_events(timestamp);

CREATE TABLE IF NOT EXISTS scene_entities (
	entity_id     TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	type          TEXT NOT NULL DEFAULT 'unknown',
	appearance    TEXT,
	attributes    TEXT,
	last_event_id TEXT NOT NULL DEFAULT '',
	last_updated  TEXT NOT NULL
);
`

// StateStore implements storage.StateStore on SQLite.
type StateStore struct {
	db *sql.DB
}

// NewStateStore opens (creating if necessary) a SQLite-backed state store.
func NewStateStore(dsn string) (*StateStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY under load; WAL mode lets
	// readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &StateStore{db: db}, nil
}

// Load reads the full scene state. Query failures and undecodable rows are
// logged and skipped rather than surfaced; the worst case is an empty state.
func (s *StateStore) Load(ctx context.Context) *types.SceneState {
	state := types.NewSceneState()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, action, summary, actor, target, metadata
		 FROM scene_events ORDER BY rowid`)
	if err != nil {
		log.Printf("sqlite: failed to load timeline, starting empty: %v", err)
		return types.NewSceneState()
	}
	defer rows.Close()

	for rows.Next() {
		var (
			evt                 types.Event
			ts                  string
			actor, target, meta sql.NullString
		)
		if err := rows.Scan(&evt.ID, &ts, &evt.Action, &evt.Summary, &actor, &target, &meta); err != nil {
			log.Printf("sqlite: skipping unreadable event row: %v", err)
			continue
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			log.Printf("sqlite: skipping event %s with bad timestamp %q: %v", evt.ID, ts, err)
			continue
		}
		evt.Timestamp = parsed
		evt.Actor = decodeParticipant(evt.ID, "actor", actor)
		evt.Target = decodeParticipant(evt.ID, "target", target)
		evt.Metadata = decodeBag(evt.ID, "metadata", meta)
		state.Timeline = append(state.Timeline, &evt)
	}
	if err := rows.Err(); err != nil {
		log.Printf("sqlite: failed reading timeline, starting empty: %v", err)
		return types.NewSceneState()
	}

	entityRows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, name, type, appearance, attributes, last_event_id, last_updated
		 FROM scene_entities`)
	if err != nil {
		log.Printf("sqlite: failed to load world state, starting empty: %v", err)
		return types.NewSceneState()
	}
	defer entityRows.Close()

	for entityRows.Next() {
		var (
			ent                    types.EntityState
			updated                string
			appearance, attributes sql.NullString
		)
		if err := entityRows.Scan(&ent.EntityID, &ent.Name, &ent.Type,
			&appearance, &attributes, &ent.LastEventID, &updated); err != nil {
			log.Printf("sqlite: skipping unreadable entity row: %v", err)
			continue
		}
		parsed, err := time.Parse(time.RFC3339Nano, updated)
		if err != nil {
			log.Printf("sqlite: skipping entity %s with bad last_updated %q: %v", ent.EntityID, updated, err)
			continue
		}
		ent.LastUpdated = parsed
		ent.Appearance = decodeBag(ent.EntityID, "appearance", appearance)
		ent.Attributes = decodeBag(ent.EntityID, "attributes", attributes)
		state.WorldState[ent.EntityID] = &ent
	}
	if err := entityRows.Err(); err != nil {
		log.Printf("sqlite: failed reading world state, starting empty: %v", err)
		return types.NewSceneState()
	}

	// Insertion order is the tie-break for equal timestamps, so the stable
	// sort here reproduces exactly the order the engine persisted.
	state.SortTimeline()
	return state
}

// Save upserts every event and world-state entity in one transaction. The
// timeline is append-only and world-state merges are monotonic, so replaying
// the full state is idempotent.
func (s *StateStore) Save(ctx context.Context, state *types.SceneState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	eventStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scene_events (id, timestamp, action, summary, actor, target, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timestamp = excluded.timestamp,
			action    = excluded.action,
			summary   = excluded.summary,
			actor     = excluded.actor,
			target    = excluded.target,
			metadata  = excluded.metadata`)
	if err != nil {
		return fmt.Errorf("sqlite: failed to prepare event upsert: %w", err)
	}
	defer eventStmt.Close()

	for _, evt := range state.Timeline {
		actor, err := encodeParticipant(evt.Actor)
		if err != nil {
			return fmt.Errorf("sqlite: failed to encode actor for event %s: %w", evt.ID, err)
		}
		target, err := encodeParticipant(evt.Target)
		if err != nil {
			return fmt.Errorf("sqlite: failed to encode target for event %s: %w", evt.ID, err)
		}
		meta, err := encodeBag(evt.Metadata)
		if err != nil {
			return fmt.Errorf("sqlite: failed to encode metadata for event %s: %w", evt.ID, err)
		}
		if _, err := eventStmt.ExecContext(ctx, evt.ID, evt.Timestamp.UTC().Format(time.RFC3339Nano),
			evt.Action, evt.Summary, actor, target, meta); err != nil {
			return fmt.Errorf("sqlite: failed to save event %s: %w", evt.ID, err)
		}
	}

	entityStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scene_entities (entity_id, name, type, appearance, attributes, last_event_id, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			name          = excluded.name,
			type          = excluded.type,
			appearance    = excluded.appearance,
			attributes    = excluded.attributes,
			last_event_id = excluded.last_event_id,
			last_updated  = excluded.last_updated`)
	if err != nil {
		return fmt.Errorf("sqlite: failed to prepare entity upsert: %w", err)
	}
	defer entityStmt.Close()

	for _, ent := range state.WorldState {
		appearance, err := encodeBag(ent.Appearance)
		if err != nil {
			return fmt.Errorf("sqlite: failed to encode appearance for entity %s: %w", ent.EntityID, err)
		}
		attributes, err := encodeBag(ent.Attributes)
		if err != nil {
			return fmt.Errorf("sqlite: failed to encode attributes for entity %s: %w", ent.EntityID, err)
		}
		if _, err := entityStmt.ExecContext(ctx, ent.EntityID, ent.Name, ent.Type,
			appearance, attributes, ent.LastEventID, ent.LastUpdated.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("sqlite: failed to save entity %s: %w", ent.EntityID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit state: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *StateStore) Close() error {
	return s.db.Close()
}

func encodeParticipant(p *types.Participant) (any, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func encodeBag(bag map[string]any) (any, error) {
	if len(bag) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(bag)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeParticipant(owner, column string, value sql.NullString) *types.Participant {
	if !value.Valid || value.String == "" {
		return nil
	}
	var p types.Participant
	if err := json.Unmarshal([]byte(value.String), &p); err != nil {
		log.Printf("sqlite: dropping corrupt %s column on %s: %v", column, owner, err)
		return nil
	}
	return &p
}

func decodeBag(owner, column string, value sql.NullString) map[string]any {
	if !value.Valid || value.String == "" {
		return map[string]any{}
	}
	bag := map[string]any{}
	if err := json.Unmarshal([]byte(value.String), &bag); err != nil {
		log.Printf("sqlite: dropping corrupt %s column on %s: %v", column, owner, err)
		return map[string]any{}
	}
	return bag
}
