// Package knowledge provides the shared SQLite-backed knowledge base.
//
// One store is shared by every agent in the process. Access is guarded
// by a reader-writer lock: queries run concurrently, writes are
// exclusive. Goals and step experiences are persisted as weighted
// entries so later planning can recall what worked and what failed.
package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/types"
)

// Entry is one record in the knowledge base.
type Entry struct {
	ID         string            `json:"id"`
	Category   string            `json:"category"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Importance float64           `json:"importance"`
}

// Config holds store configuration options.
type Config struct {
	Path         string        // Database file path
	MaxOpenConns int           // Maximum number of open connections
	MaxIdleConns int           // Maximum number of idle connections
	BusyTimeout  time.Duration // SQLite busy timeout
	MaxEntries   int           // Count cap enforced after inserts
}

// DefaultConfig returns sensible defaults for the store.
func DefaultConfig(path string) Config {
	return Config{
		Path:         path,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		BusyTimeout:  5 * time.Second,
		MaxEntries:   10000,
	}
}

// Store is the SQLite-backed knowledge base.
type Store struct {
	mu         sync.RWMutex
	db         *sql.DB
	path       string
	maxEntries int
	logger     *slog.Logger
}

// Open creates a store with WAL journaling and a verified connection.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=%d",
		cfg.Path,
		int(cfg.BusyTimeout.Milliseconds()),
	)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, types.WrapError(types.KNOWLEDGE_OPEN_FAILED, "failed to open knowledge base", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, types.WrapError(types.KNOWLEDGE_OPEN_FAILED, "failed to ping knowledge base", err)
	}

	s := &Store{
		db:         db,
		path:       cfg.Path,
		maxEntries: cfg.MaxEntries,
		logger:     logger,
	}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS knowledge (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT,
			timestamp INTEGER NOT NULL,
			importance REAL NOT NULL,
			access_count INTEGER DEFAULT 0,
			last_accessed INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_category ON knowledge(category)`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_importance ON knowledge(importance DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_timestamp ON knowledge(timestamp DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return types.WrapError(types.KNOWLEDGE_OPEN_FAILED, "failed to initialize schema", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// AddGoal persists a submitted goal. Importance scales with priority so
// critical goals outlive pruning longer.
func (s *Store) AddGoal(ctx context.Context, goal types.Goal) error {
	return s.AddEntry(ctx, Entry{
		ID:       goal.ID.String(),
		Category: "goal",
		Content:  goal.Description,
		Metadata: map[string]string{
			"priority": goal.Priority.String(),
		},
		Timestamp:  time.Now(),
		Importance: importanceForPriority(goal.Priority),
	})
}

// AddExperience persists one step outcome for a goal. Failures carry
// higher importance than successes; they are more valuable to recall.
func (s *Store) AddExperience(ctx context.Context, goal types.Goal, result types.ToolExecutionResult) error {
	importance := 0.7
	if !result.Success {
		importance = 0.9
	}
	return s.AddEntry(ctx, Entry{
		ID:       "exp_" + types.NewID().Short(),
		Category: "experience",
		Content: fmt.Sprintf("Tool %s executed with success=%t for goal: %s",
			result.ToolID, result.Success, goal.Description),
		Metadata: map[string]string{
			"goal_id":           goal.ID.String(),
			"tool_id":           result.ToolID,
			"success":           fmt.Sprintf("%t", result.Success),
			"execution_time_ms": fmt.Sprintf("%d", result.ExecutionTime.Milliseconds()),
		},
		Timestamp:  time.Now(),
		Importance: importance,
	})
}

// AddEntry upserts an entry and enforces the count cap.
func (s *Store) AddEntry(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return types.WrapError(types.KNOWLEDGE_WRITE_FAILED, "failed to encode metadata", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO knowledge (id, category, content, metadata, timestamp, importance)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Category, entry.Content, string(metadata),
		entry.Timestamp.Unix(), entry.Importance,
	)
	if err != nil {
		return types.WrapError(types.KNOWLEDGE_WRITE_FAILED, "failed to insert entry", err)
	}

	return s.pruneLocked(ctx)
}

// pruneLocked keeps the store bounded by removing the least important,
// oldest entries past the cap. Caller holds the write lock.
func (s *Store) pruneLocked(ctx context.Context) error {
	if s.maxEntries <= 0 {
		return nil
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge`).Scan(&count); err != nil {
		return types.WrapError(types.KNOWLEDGE_QUERY_FAILED, "failed to count entries", err)
	}
	if count <= s.maxEntries {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM knowledge
		 WHERE id NOT IN (
			 SELECT id FROM knowledge
			 ORDER BY importance DESC, timestamp DESC
			 LIMIT ?
		 )`, s.maxEntries)
	if err != nil {
		return types.WrapError(types.KNOWLEDGE_WRITE_FAILED, "failed to prune entries", err)
	}
	s.logger.Info("knowledge base pruned", "kept", s.maxEntries, "had", count)
	return nil
}

// Query returns entries whose content or category matches the search
// term, most important first.
func (s *Store) Query(ctx context.Context, query string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryLocked(ctx, query, limit)
}

func (s *Store) queryLocked(ctx context.Context, query string, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, content, metadata, timestamp, importance
		 FROM knowledge
		 WHERE content LIKE ? OR category LIKE ?
		 ORDER BY importance DESC, timestamp DESC
		 LIMIT ?`,
		"%"+query+"%", "%"+query+"%", limit,
	)
	if err != nil {
		return nil, types.WrapError(types.KNOWLEDGE_QUERY_FAILED, "query failed", err)
	}
	defer rows.Close()

	var results []Entry
	for rows.Next() {
		var e Entry
		var metadata sql.NullString
		var ts int64
		if err := rows.Scan(&e.ID, &e.Category, &e.Content, &metadata, &ts, &e.Importance); err != nil {
			return nil, types.WrapError(types.KNOWLEDGE_QUERY_FAILED, "scan failed", err)
		}
		e.Timestamp = time.Unix(ts, 0)
		if metadata.Valid && metadata.String != "" {
			_ = json.Unmarshal([]byte(metadata.String), &e.Metadata)
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// RelevantKnowledge searches the store with the goal's description
// keywords and returns the most important matches, deduplicated.
func (s *Store) RelevantKnowledge(ctx context.Context, goal types.Goal, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []Entry
	for _, keyword := range strings.Fields(goal.Description) {
		if len(keyword) <= 3 {
			continue
		}
		results, err := s.queryLocked(ctx, keyword, limit)
		if err != nil {
			return nil, err
		}
		all = append(all, results...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Importance > all[j].Importance
	})

	seen := make(map[string]bool, len(all))
	deduped := all[:0]
	for _, e := range all {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		deduped = append(deduped, e)
	}

	if len(deduped) > limit {
		deduped = deduped[:limit]
	}
	return deduped, nil
}

func importanceForPriority(p types.Priority) float64 {
	switch p {
	case types.PriorityLow:
		return 0.25
	case types.PriorityMedium:
		return 0.5
	case types.PriorityHigh:
		return 0.75
	case types.PriorityCritical:
		return 1.0
	default:
		return 0.5
	}
}
