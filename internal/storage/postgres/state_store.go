// Package postgres persists scene state in PostgreSQL, for deployments where
// several readers share one scene store. Participants and metadata are JSONB
// columns; a sequence column preserves append order for equal timestamps.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/scrypster/sceneline/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS scene_events (
	seq        BIGSERIAL,
	id         TEXT PRIMARY KEY,
	ts         TIMESTAMPTZ NOT NULL,
	action     TEXT NOT NULL,
	summary    TEXT NOT NULL DEFAULT '',
	actor      JSONB,
	target     JSONB,
	metadata   JSONB
);

CREATE INDEX IF NOT EXISTS idx_scene_events_ts ON scene_events(ts);

CREATE TABLE IF NOT EXISTS scene_entities (
	entity_id     TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	type          TEXT NOT NULL DEFAULT 'unknown',
	appearance    JSONB,
	attributes    JSONB,
	last_event_id TEXT NOT NULL DEFAULT '',
	last_updated  TIMESTAMPTZ NOT NULL
);
`

// StateStore implements storage.StateStore on PostgreSQL.
type StateStore struct {
	db *sql.DB
}

// NewStateStore connects to PostgreSQL with the given DSN and ensures the
// schema exists.
func NewStateStore(dsn string) (*StateStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to connect: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to create schema: %w", err)
	}
	return &StateStore{db: db}, nil
}

// Load reads the full scene state. Failures degrade to an empty state with a
// logged warning; undecodable rows are skipped individually.
func (s *StateStore) Load(ctx context.Context) *types.SceneState {
	state := types.NewSceneState()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, action, summary, actor, target, metadata
		 FROM scene_events ORDER BY seq`)
	if err != nil {
		log.Printf("postgres: failed to load timeline, starting empty: %v", err)
		return types.NewSceneState()
	}
	defer rows.Close()

	for rows.Next() {
		var (
			evt                 types.Event
			actor, target, meta []byte
		)
		if err := rows.Scan(&evt.ID, &evt.Timestamp, &evt.Action, &evt.Summary, &actor, &target, &meta); err != nil {
			log.Printf("postgres: skipping unreadable event row: %v", err)
			continue
		}
		evt.Actor = decodeParticipant(evt.ID, "actor", actor)
		evt.Target = decodeParticipant(evt.ID, "target", target)
		evt.Metadata = decodeBag(evt.ID, "metadata", meta)
		state.Timeline = append(state.Timeline, &evt)
	}
	if err := rows.Err(); err != nil {
		log.Printf("postgres: failed reading timeline, starting empty: %v", err)
		return types.NewSceneState()
	}

	entityRows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, name, type, appearance, attributes, last_event_id, last_updated
		 FROM scene_entities`)
	if err != nil {
		log.Printf("postgres: failed to load world state, starting empty: %v", err)
		return types.NewSceneState()
	}
	defer entityRows.Close()

	for entityRows.Next() {
		var (
			ent                    types.EntityState
			appearance, attributes []byte
		)
		if err := entityRows.Scan(&ent.EntityID, &ent.Name, &ent.Type,
			&appearance, &attributes, &ent.LastEventID, &ent.LastUpdated); err != nil {
			log.Printf("postgres: skipping unreadable entity row: %v", err)
			continue
		}
		ent.Appearance = decodeBag(ent.EntityID, "appearance", appearance)
		ent.Attributes = decodeBag(ent.EntityID, "attributes", attributes)
		state.WorldState[ent.EntityID] = &ent
	}
	if err := entityRows.Err(); err != nil {
		log.Printf("postgres: failed reading world state, starting empty: %v", err)
		return types.NewSceneState()
	}

	state.SortTimeline()
	return state
}

// Save upserts the full state in one transaction; see the sqlite backend for
// why replaying an append-only timeline is idempotent.
func (s *StateStore) Save(ctx context.Context, state *types.SceneState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	eventStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scene_events (id, ts, action, summary, actor, target, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			ts       = EXCLUDED.ts,
			action   = EXCLUDED.action,
			summary  = EXCLUDED.summary,
			actor    = EXCLUDED.actor,
			target   = EXCLUDED.target,
			metadata = EXCLUDED.metadata`)
	if err != nil {
		return fmt.Errorf("postgres: failed to prepare event upsert: %w", err)
	}
	defer eventStmt.Close()

	for _, evt := range state.Timeline {
		actor, err := encodeJSON(evt.Actor)
		if err != nil {
			return fmt.Errorf("postgres: failed to encode actor for event %s: %w", evt.ID, err)
		}
		target, err := encodeJSON(evt.Target)
		if err != nil {
			return fmt.Errorf("postgres: failed to encode target for event %s: %w", evt.ID, err)
		}
		meta, err := encodeBagJSON(evt.Metadata)
		if err != nil {
			return fmt.Errorf("postgres: failed to encode metadata for event %s: %w", evt.ID, err)
		}
		if _, err := eventStmt.ExecContext(ctx, evt.ID, evt.Timestamp.UTC(),
			evt.Action, evt.Summary, actor, target, meta); err != nil {
			return fmt.Errorf("postgres: failed to save event %s: %w", evt.ID, err)
		}
	}

	entityStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scene_entities (entity_id, name, type, appearance, attributes, last_event_id, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (entity_id) DO UPDATE SET
			name          = EXCLUDED.name,
			type          = EXCLUDED.type,
			appearance    = EXCLUDED.appearance,
			attributes    = EXCLUDED.attributes,
			last_event_id = EXCLUDED.last_event_id,
			last_updated  = EXCLUDED.last_updated`)
	if err != nil {
		return fmt.Errorf("postgres: failed to prepare entity upsert: %w", err)
	}
	defer entityStmt.Close()

	for _, ent := range state.WorldState {
		appearance, err := encodeBagJSON(ent.Appearance)
		if err != nil {
			return fmt.Errorf("postgres: failed to encode appearance for entity %s: %w", ent.EntityID, err)
		}
		attributes, err := encodeBagJSON(ent.Attributes)
		if err != nil {
			return fmt.Errorf("postgres: failed to encode attributes for entity %s: %w", ent.EntityID, err)
		}
		if _, err := entityStmt.ExecContext(ctx, ent.EntityID, ent.Name, ent.Type,
			appearance, attributes, ent.LastEventID, ent.LastUpdated.UTC()); err != nil {
			return fmt.Errorf("postgres: failed to save entity %s: %w", ent.EntityID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: failed to commit state: %w", err)
	}
	return nil
}

// Close closes the underlying database pool.
func (s *StateStore) Close() error {
	return s.db.Close()
}

func encodeJSON(v *types.Participant) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func encodeBagJSON(bag map[string]any) (any, error) {
	if len(bag) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(bag)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func decodeParticipant(owner, column string, data []byte) *types.Participant {
	if len(data) == 0 {
		return nil
	}
	var p types.Participant
	if err := json.Unmarshal(data, &p); err != nil {
		log.Printf("postgres: dropping corrupt %s column on %s: %v", column, owner, err)
		return nil
	}
	return &p
}

func decodeBag(owner, column string, data []byte) map[string]any {
	if len(data) == 0 {
		return map[string]any{}
	}
	bag := map[string]any{}
	if err := json.Unmarshal(data, &bag); err != nil {
		log.Printf("postgres: dropping corrupt %s column on %s: %v", column, owner, err)
		return map[string]any{}
	}
	return bag
}
