package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Store persists catalog entries across restarts. The registry writes
// through to it on dynamic changes; it is never consulted on the hot
// execution path.
type Store interface {
	UpsertTool(ctx context.Context, tc ToolConfig) error
	SetEnabled(ctx context.Context, name string, enabled bool) error
	LoadAll(ctx context.Context) ([]ToolConfig, error)
	Close() error
}

// SQLiteStore is the default Store backed by a local sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the tool store at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tool store: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS tools (
		name            TEXT PRIMARY KEY,
		display_name    TEXT NOT NULL DEFAULT '',
		command         TEXT NOT NULL,
		args            TEXT NOT NULL DEFAULT '[]',
		capabilities    TEXT NOT NULL DEFAULT '[]',
		enabled         INTEGER NOT NULL DEFAULT 1,
		prompt_patterns TEXT NOT NULL DEFAULT '[]',
		init_timeout    INTEGER NOT NULL DEFAULT 0,
		command_timeout INTEGER NOT NULL DEFAULT 0,
		updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize tool store schema: %w", err)
	}

	log.Debug().Str("path", path).Msg("Tool store opened")
	return &SQLiteStore{db: db}, nil
}

// UpsertTool inserts or replaces a tool row.
func (s *SQLiteStore) UpsertTool(ctx context.Context, tc ToolConfig) error {
	args, err := json.Marshal(tc.Args)
	if err != nil {
		return fmt.Errorf("failed to encode args: %w", err)
	}
	caps, err := json.Marshal(tc.Capabilities)
	if err != nil {
		return fmt.Errorf("failed to encode capabilities: %w", err)
	}
	patterns, err := json.Marshal(tc.Config.PromptPatterns)
	if err != nil {
		return fmt.Errorf("failed to encode prompt patterns: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tools (name, display_name, command, args, capabilities, enabled,
		                   prompt_patterns, init_timeout, command_timeout, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(name) DO UPDATE SET
			display_name = excluded.display_name,
			command = excluded.command,
			args = excluded.args,
			capabilities = excluded.capabilities,
			enabled = excluded.enabled,
			prompt_patterns = excluded.prompt_patterns,
			init_timeout = excluded.init_timeout,
			command_timeout = excluded.command_timeout,
			updated_at = excluded.updated_at`,
		tc.Name, tc.DisplayName, tc.Command, string(args), string(caps), boolToInt(tc.Enabled),
		string(patterns), tc.Config.InitTimeoutMS, tc.Config.CommandTimeoutMS,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert tool %s: %w", tc.Name, err)
	}
	return nil
}

// SetEnabled flips the enabled flag without touching the rest of the
// row, so a disabled tool keeps its full configuration in storage.
func (s *SQLiteStore) SetEnabled(ctx context.Context, name string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tools SET enabled = ?, updated_at = datetime('now') WHERE name = ?`,
		boolToInt(enabled), name,
	)
	if err != nil {
		return fmt.Errorf("failed to update tool %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("tool %s not found in store", name)
	}
	return nil
}

// LoadAll returns every stored tool, enabled or not.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]ToolConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, display_name, command, args, capabilities, enabled,
		       prompt_patterns, init_timeout, command_timeout
		FROM tools ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tools: %w", err)
	}
	defer rows.Close()

	var tools []ToolConfig
	for rows.Next() {
		var (
			tc                          ToolConfig
			argsJSON, capsJSON, patJSON string
			enabled                     int
		)
		if err := rows.Scan(&tc.Name, &tc.DisplayName, &tc.Command, &argsJSON, &capsJSON,
			&enabled, &patJSON, &tc.Config.InitTimeoutMS, &tc.Config.CommandTimeoutMS); err != nil {
			return nil, fmt.Errorf("failed to scan tool row: %w", err)
		}
		if err := json.Unmarshal([]byte(argsJSON), &tc.Args); err != nil {
			log.Warn().Str("tool", tc.Name).Err(err).Msg("Skipping tool with corrupt args")
			continue
		}
		if err := json.Unmarshal([]byte(capsJSON), &tc.Capabilities); err != nil {
			log.Warn().Str("tool", tc.Name).Err(err).Msg("Skipping tool with corrupt capabilities")
			continue
		}
		if err := json.Unmarshal([]byte(patJSON), &tc.Config.PromptPatterns); err != nil {
			log.Warn().Str("tool", tc.Name).Err(err).Msg("Skipping tool with corrupt prompt patterns")
			continue
		}
		tc.Enabled = enabled != 0
		tools = append(tools, tc)
	}
	return tools, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
