// Package memory implements the persistent reflection store of the mapping
// engine. Every mapping outcome is folded into per-pattern records with
// success and failure counters; future lookups consult those records before
// spending an oracle call. Records are keyed by canonical pattern so sibling
// device instances share what was learned.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/c360/pointmap/errors"
	"github.com/c360/pointmap/pattern"
)

// DefaultExampleCap bounds the examples retained per record.
const DefaultExampleCap = 5

const stripeCount = 64

// defaultRecordsLimit pages Records queries when the caller passes zero.
const defaultRecordsLimit = 100

// Record is a learned point-to-identifier mapping with outcome counters.
// Records are owned exclusively by the Store and mutated only through
// RecordOutcome. Invariant: Confidence == SuccessCount/(SuccessCount+FailureCount).
type Record struct {
	ID            string    `json:"id"`
	PatternID     string    `json:"pattern_id"`
	SourcePattern string    `json:"source_pattern"`
	TargetPattern string    `json:"target_pattern"`
	DeviceType    string    `json:"device_type"`
	Confidence    float64   `json:"confidence"`
	SuccessCount  int       `json:"success_count"`
	FailureCount  int       `json:"failure_count"`
	LastUpdated   time.Time `json:"last_updated"`
	Examples      []Example `json:"examples"`
}

// Example is one observed outcome retained for context building.
type Example struct {
	PointName  string    `json:"point_name"`
	Identifier string    `json:"identifier"`
	Succeeded  bool      `json:"succeeded"`
	At         time.Time `json:"at"`
}

// Match is a memory lookup result.
type Match struct {
	Identifier string
	Confidence float64
	Reason     string
}

// Store is the sqlite-backed memory store. Reads are concurrent; writes are
// serialized per pattern through mutex striping so concurrent batches cannot
// interleave read-modify-write cycles on the same record.
type Store struct {
	db         *sql.DB
	logger     *slog.Logger
	exampleCap int
	stripes    [stripeCount]sync.Mutex
	closed     atomic.Bool
}

// Option configures the store.
type Option func(*Store)

// WithExampleCap overrides the per-record example retention bound.
func WithExampleCap(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.exampleCap = n
		}
	}
}

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore opens or creates the memory store at the given path. Use
// ":memory:" for an ephemeral store.
func NewStore(dbPath string, opts ...Option) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, errors.WrapFatal(err, "memory", "NewStore", "create db dir")
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.WrapFatal(err, "memory", "NewStore", "open db")
	}

	s := &Store{
		db:         db,
		logger:     slog.Default(),
		exampleCap: DefaultExampleCap,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, errors.WrapFatal(err, "memory", "NewStore", "migrate")
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS mapping_records (
		pattern_id     TEXT PRIMARY KEY,
		id             TEXT NOT NULL,
		source_pattern TEXT NOT NULL,
		target_pattern TEXT NOT NULL,
		device_type    TEXT NOT NULL,
		confidence     REAL NOT NULL DEFAULT 0,
		success_count  INTEGER NOT NULL DEFAULT 0,
		failure_count  INTEGER NOT NULL DEFAULT 0,
		last_updated   TEXT NOT NULL,
		examples       TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_records_device ON mapping_records(device_type, confidence DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// PatternID derives the stable record key for a point. Device instance
// numbers are stripped so CH-SYS-1 and CH-SYS-2 share a pattern.
func PatternID(pointName, deviceType string) string {
	return strings.ToUpper(strings.TrimSpace(deviceType)) + "|" + pattern.Key(pointName)
}

func (s *Store) stripe(patternID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(patternID))
	return &s.stripes[h.Sum32()%stripeCount]
}

// BestMapping returns the highest-confidence prior mapping for the point's
// canonical pattern, or nil when nothing clears the threshold. An exact
// pattern match is preferred; otherwise records of the same device type are
// scored by token overlap.
func (s *Store) BestMapping(ctx context.Context, pointName, deviceType string, threshold float64) (*Match, error) {
	if s.closed.Load() {
		return nil, errors.WrapFatal(errors.ErrStoreClosed, "memory", "BestMapping", "lookup")
	}

	patternID := PatternID(pointName, deviceType)

	var target string
	var confidence float64
	err := s.db.QueryRowContext(ctx,
		`SELECT target_pattern, confidence FROM mapping_records
		 WHERE pattern_id = ? AND success_count > 0`, patternID).Scan(&target, &confidence)
	switch {
	case err == nil:
		if confidence >= threshold && target != "" {
			return &Match{
				Identifier: target,
				Confidence: confidence,
				Reason:     "exact pattern match",
			}, nil
		}
	case err != sql.ErrNoRows:
		return nil, errors.WrapTransient(err, "memory", "BestMapping", "exact lookup")
	}

	// Similar-pattern search within the device type
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_pattern, target_pattern, confidence FROM mapping_records
		 WHERE device_type = ? AND success_count > 0 AND confidence >= ?
		 ORDER BY confidence DESC LIMIT 50`,
		strings.ToUpper(strings.TrimSpace(deviceType)), threshold)
	if err != nil {
		return nil, errors.WrapTransient(err, "memory", "BestMapping", "similar lookup")
	}
	defer rows.Close()

	pointWords := strings.Split(pattern.Key(pointName), "_")
	var best *Match
	var bestOverlap float64
	for rows.Next() {
		var source, target string
		var confidence float64
		if err := rows.Scan(&source, &target, &confidence); err != nil {
			return nil, errors.WrapTransient(err, "memory", "BestMapping", "row scan")
		}
		overlap := tokenOverlap(pointWords, strings.Split(source, "_"))
		if overlap < 0.5 {
			continue
		}
		if best == nil || overlap > bestOverlap ||
			(overlap == bestOverlap && confidence > best.Confidence) {
			best = &Match{
				Identifier: target,
				Confidence: confidence,
				Reason:     "similar pattern match",
			}
			bestOverlap = overlap
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapTransient(err, "memory", "BestMapping", "row iteration")
	}

	return best, nil
}

// tokenOverlap computes the fraction of a's tokens present in b.
func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 {
		return 0
	}
	set := make(map[string]bool, len(b))
	for _, t := range b {
		set[t] = true
	}
	hits := 0
	for _, t := range a {
		if set[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(a))
}

// RecordOutcome upserts the mapping record for the point's pattern,
// incrementing the success or failure counter and recomputing confidence.
// The update is atomic per pattern: a striped mutex serializes the
// read-modify-write and the sqlite transaction makes it durable.
func (s *Store) RecordOutcome(ctx context.Context, pointName, deviceType, identifier string, succeeded bool) error {
	if s.closed.Load() {
		return errors.WrapFatal(errors.ErrStoreClosed, "memory", "RecordOutcome", "update")
	}

	patternID := PatternID(pointName, deviceType)
	mu := s.stripe(patternID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapTransient(err, "memory", "RecordOutcome", "begin tx")
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	var rec Record
	var examplesJSON sql.NullString
	var lastUpdated string
	err = tx.QueryRowContext(ctx,
		`SELECT id, target_pattern, success_count, failure_count, examples, last_updated
		 FROM mapping_records WHERE pattern_id = ?`, patternID).
		Scan(&rec.ID, &rec.TargetPattern, &rec.SuccessCount, &rec.FailureCount, &examplesJSON, &lastUpdated)

	switch {
	case err == sql.ErrNoRows:
		rec = Record{
			ID:            ulid.Make().String(),
			PatternID:     patternID,
			SourcePattern: pattern.Key(pointName),
			TargetPattern: identifier,
			DeviceType:    strings.ToUpper(strings.TrimSpace(deviceType)),
		}
	case err != nil:
		return errors.WrapTransient(err, "memory", "RecordOutcome", "select record")
	default:
		if examplesJSON.Valid {
			// A damaged examples blob loses history, not counters
			if err := json.Unmarshal([]byte(examplesJSON.String), &rec.Examples); err != nil {
				s.logger.Warn("discarding corrupt examples blob", "pattern_id", patternID, "error", err)
				rec.Examples = nil
			}
		}
	}

	if succeeded {
		rec.SuccessCount++
		// Last successful identifier wins the target slot
		rec.TargetPattern = identifier
	} else {
		rec.FailureCount++
	}
	rec.Confidence = float64(rec.SuccessCount) / float64(rec.SuccessCount+rec.FailureCount)
	rec.LastUpdated = now

	rec.Examples = append(rec.Examples, Example{
		PointName:  pointName,
		Identifier: identifier,
		Succeeded:  succeeded,
		At:         now,
	})
	if len(rec.Examples) > s.exampleCap {
		// Oldest evicted first, insertion order
		rec.Examples = rec.Examples[len(rec.Examples)-s.exampleCap:]
	}

	blob, err := json.Marshal(rec.Examples)
	if err != nil {
		return errors.WrapInvalid(err, "memory", "RecordOutcome", "marshal examples")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO mapping_records
		 (pattern_id, id, source_pattern, target_pattern, device_type,
		  confidence, success_count, failure_count, last_updated, examples)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(pattern_id) DO UPDATE SET
		  target_pattern = excluded.target_pattern,
		  confidence = excluded.confidence,
		  success_count = excluded.success_count,
		  failure_count = excluded.failure_count,
		  last_updated = excluded.last_updated,
		  examples = excluded.examples`,
		patternID, rec.ID, pattern.Key(pointName), rec.TargetPattern,
		strings.ToUpper(strings.TrimSpace(deviceType)),
		rec.Confidence, rec.SuccessCount, rec.FailureCount,
		now.Format(time.RFC3339Nano), string(blob))
	if err != nil {
		return errors.WrapTransient(err, "memory", "RecordOutcome", "upsert record")
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapTransient(err, "memory", "RecordOutcome", "commit")
	}
	return nil
}

// Get returns the record for a point's pattern, or ErrRecordNotFound.
func (s *Store) Get(ctx context.Context, pointName, deviceType string) (*Record, error) {
	patternID := PatternID(pointName, deviceType)
	rows, err := s.db.QueryContext(ctx,
		`SELECT pattern_id, id, source_pattern, target_pattern, device_type,
		        confidence, success_count, failure_count, last_updated, examples
		 FROM mapping_records WHERE pattern_id = ?`, patternID)
	if err != nil {
		return nil, errors.WrapTransient(err, "memory", "Get", "query")
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.ErrRecordNotFound
	}
	return &records[0], nil
}

// Records returns up to limit records, highest confidence first, optionally
// filtered by device type. A limit of zero applies the default page size; a
// negative limit returns every record.
func (s *Store) Records(ctx context.Context, deviceType string, limit int) ([]Record, error) {
	if limit == 0 {
		limit = defaultRecordsLimit
	}
	if limit < 0 {
		// sqlite treats a negative LIMIT as unbounded
		limit = -1
	}

	query := `SELECT pattern_id, id, source_pattern, target_pattern, device_type,
	                 confidence, success_count, failure_count, last_updated, examples
	          FROM mapping_records`
	args := []any{}
	if deviceType != "" {
		query += ` WHERE device_type = ?`
		args = append(args, strings.ToUpper(strings.TrimSpace(deviceType)))
	}
	query += ` ORDER BY confidence DESC, pattern_id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapTransient(err, "memory", "Records", "query")
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var rec Record
		var examplesJSON sql.NullString
		var lastUpdated string
		if err := rows.Scan(&rec.PatternID, &rec.ID, &rec.SourcePattern, &rec.TargetPattern,
			&rec.DeviceType, &rec.Confidence, &rec.SuccessCount, &rec.FailureCount,
			&lastUpdated, &examplesJSON); err != nil {
			return nil, errors.WrapTransient(err, "memory", "scanRecords", "row scan")
		}
		rec.LastUpdated, _ = time.Parse(time.RFC3339Nano, lastUpdated)
		if examplesJSON.Valid && examplesJSON.String != "" {
			_ = json.Unmarshal([]byte(examplesJSON.String), &rec.Examples)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close flushes and closes the store. Further operations fail with
// ErrStoreClosed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
