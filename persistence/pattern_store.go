// Package persistence stores translation patterns and session state between
// runs. Patterns live in SQLite; sessions are JSON files.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lexcodex/transmute/pattern"
)

// ErrPatternNotFound reports a lookup miss in the pattern store.
var ErrPatternNotFound = errors.New("pattern not found in store")

// PatternStore persists the pattern library in a SQLite database so learned
// patterns accumulate across sessions and processes.
type PatternStore struct {
	db *sql.DB
}

// NewPatternStore opens/creates the database at dbPath.
func NewPatternStore(dbPath string) (*PatternStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, err
	}
	store := &PatternStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *PatternStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS patterns (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		source_language TEXT NOT NULL,
		target_language TEXT NOT NULL,
		source_pattern TEXT NOT NULL,
		target_pattern TEXT NOT NULL,
		confidence REAL,
		usage_count INTEGER,
		success_rate REAL,
		metadata TEXT,
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_patterns_language_pair
		ON patterns(source_language, target_language);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *PatternStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SavePattern upserts one pattern, statistics included.
func (s *PatternStore) SavePattern(p *pattern.TranslationPattern) error {
	if p == nil {
		return errors.New("pattern required")
	}
	srcJSON, err := json.Marshal(p.SourcePattern)
	if err != nil {
		return fmt.Errorf("marshal source pattern: %w", err)
	}
	tgtJSON, err := json.Marshal(p.TargetPattern)
	if err != nil {
		return fmt.Errorf("marshal target pattern: %w", err)
	}
	metaJSON, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("marshal pattern metadata: %w", err)
	}
	createdAt := p.Metadata.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	query := `
	INSERT INTO patterns (
		id, name, description, source_language, target_language,
		source_pattern, target_pattern, confidence, usage_count,
		success_rate, metadata, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name=excluded.name,
		description=excluded.description,
		source_language=excluded.source_language,
		target_language=excluded.target_language,
		source_pattern=excluded.source_pattern,
		target_pattern=excluded.target_pattern,
		confidence=excluded.confidence,
		usage_count=excluded.usage_count,
		success_rate=excluded.success_rate,
		metadata=excluded.metadata,
		updated_at=excluded.updated_at
	`
	_, err = s.db.Exec(query,
		p.ID,
		p.Name,
		p.Description,
		p.SourceLanguage,
		p.TargetLanguage,
		string(srcJSON),
		string(tgtJSON),
		p.Confidence,
		p.UsageCount,
		p.SuccessRate,
		string(metaJSON),
		createdAt,
		time.Now().UTC(),
	)
	return err
}

// SavePatterns writes a batch in one transaction.
func (s *PatternStore) SavePatterns(patterns []*pattern.TranslationPattern) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, p := range patterns {
		if p == nil {
			continue
		}
		if err := savePatternTx(tx, p); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func savePatternTx(tx *sql.Tx, p *pattern.TranslationPattern) error {
	srcJSON, err := json.Marshal(p.SourcePattern)
	if err != nil {
		return err
	}
	tgtJSON, err := json.Marshal(p.TargetPattern)
	if err != nil {
		return err
	}
	metaJSON, err := json.Marshal(p.Metadata)
	if err != nil {
		return err
	}
	createdAt := p.Metadata.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = tx.Exec(`INSERT OR REPLACE INTO patterns (
		id, name, description, source_language, target_language,
		source_pattern, target_pattern, confidence, usage_count,
		success_rate, metadata, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.SourceLanguage, p.TargetLanguage,
		string(srcJSON), string(tgtJSON), p.Confidence, p.UsageCount,
		p.SuccessRate, string(metaJSON), createdAt, time.Now().UTC())
	return err
}

// GetPattern loads one pattern by id.
func (s *PatternStore) GetPattern(id string) (*pattern.TranslationPattern, error) {
	row := s.db.QueryRow(`SELECT id, name, description, source_language, target_language,
		source_pattern, target_pattern, confidence, usage_count, success_rate, metadata
		FROM patterns WHERE id = ?`, id)
	p, err := scanPattern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPatternNotFound
	}
	return p, err
}

// ListPatterns loads all patterns, optionally filtered by language pair.
// Empty languages match everything.
func (s *PatternStore) ListPatterns(sourceLang, targetLang string) ([]*pattern.TranslationPattern, error) {
	query := `SELECT id, name, description, source_language, target_language,
		source_pattern, target_pattern, confidence, usage_count, success_rate, metadata
		FROM patterns`
	var args []interface{}
	if sourceLang != "" && targetLang != "" {
		query += ` WHERE source_language = ? AND target_language = ?`
		args = append(args, sourceLang, targetLang)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []*pattern.TranslationPattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// DeletePattern removes one pattern; deleting a missing id is not an error.
func (s *PatternStore) DeletePattern(id string) error {
	_, err := s.db.Exec(`DELETE FROM patterns WHERE id = ?`, id)
	return err
}

// LoadLibrary hydrates a library from the store.
func (s *PatternStore) LoadLibrary(lib *pattern.Library) error {
	patterns, err := s.ListPatterns("", "")
	if err != nil {
		return err
	}
	lib.Load(patterns)
	return nil
}

// SyncLibrary writes the library's current contents back, so learning
// updates accumulated in memory survive the process.
func (s *PatternStore) SyncLibrary(lib *pattern.Library) error {
	return s.SavePatterns(lib.All())
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPattern(row rowScanner) (*pattern.TranslationPattern, error) {
	var p pattern.TranslationPattern
	var srcJSON, tgtJSON, metaJSON string
	if err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.SourceLanguage, &p.TargetLanguage,
		&srcJSON, &tgtJSON, &p.Confidence, &p.UsageCount, &p.SuccessRate, &metaJSON,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(srcJSON), &p.SourcePattern); err != nil {
		return nil, fmt.Errorf("decode source pattern %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(tgtJSON), &p.TargetPattern); err != nil {
		return nil, fmt.Errorf("decode target pattern %s: %w", p.ID, err)
	}
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &p.Metadata); err != nil {
			return nil, fmt.Errorf("decode pattern metadata %s: %w", p.ID, err)
		}
	}
	return &p, nil
}
