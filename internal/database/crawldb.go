package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/redfishscan/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "redfishscan.db"

var (
	// ErrRunNotFound is returned when a run ID does not exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrDatabaseNotFound is returned by Open when the database file is
	// missing and CreateIfNotExists is false.
	ErrDatabaseNotFound = errors.New("database not found")
)

// timeLayout is a fixed-width UTC layout so that stored timestamps sort
// lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// CrawlDB provides SQLite-based storage for runs, snapshots and reports.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging, which lets the compare command
	// read while another process is recording a run.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist,
// ErrDatabaseNotFound is returned and nothing is created.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports one writer. Concurrent crawl workers serialize here.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per command run against one target
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		base_uri TEXT NOT NULL,
		command TEXT NOT NULL,
		root TEXT NOT NULL,
		pattern TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		visited INTEGER DEFAULT 0,
		failures INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Every resource visited by a run
	CREATE TABLE IF NOT EXISTS snapshots (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		path TEXT NOT NULL,
		url TEXT NOT NULL,
		status_code INTEGER,
		odata_type TEXT,
		methods TEXT,
		body TEXT,
		hash TEXT,
		error TEXT,
		fetched_at TEXT NOT NULL,
		PRIMARY KEY(run_id, path)
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_type ON snapshots(odata_type);

	-- Final report of each run
	CREATE TABLE IF NOT EXISTS reports (
		run_id TEXT PRIMARY KEY REFERENCES runs(id) ON DELETE CASCADE,
		report_json TEXT NOT NULL,
		summary_json TEXT
	);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// Run is the metadata of one recorded run.
type Run struct {
	ID         string
	Target     string
	BaseURI    string
	Command    string
	Root       string
	Pattern    string
	StartedAt  time.Time
	FinishedAt time.Time
	Visited    int
	Failures   int
}

// BeginRun inserts a new run with a fresh UUID and returns a RunStore that
// writes snapshots into it.
func (cdb *CrawlDB) BeginRun(ctx context.Context, target, baseURI, command, root, pattern string) (*RunStore, error) {
	run := Run{
		ID:        uuid.NewString(),
		Target:    target,
		BaseURI:   baseURI,
		Command:   command,
		Root:      root,
		Pattern:   pattern,
		StartedAt: time.Now().UTC(),
	}

	query := `
	INSERT INTO runs (id, target, base_uri, command, root, pattern, started_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := cdb.db.ExecContext(ctx, query,
		run.ID,
		run.Target,
		run.BaseURI,
		run.Command,
		run.Root,
		run.Pattern,
		formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	return &RunStore{db: cdb, run: run}, nil
}

// FinishRun records the end of a run with its visit and failure counts.
func (cdb *CrawlDB) FinishRun(ctx context.Context, runID string, finished time.Time, visited, failures int) error {
	result, err := cdb.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, visited = ?, failures = ? WHERE id = ?`,
		formatTime(finished), visited, failures, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun returns one run by ID.
func (cdb *CrawlDB) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := cdb.db.QueryRowContext(ctx, `
	SELECT id, target, base_uri, command, root, pattern, started_at, finished_at, visited, failures
	FROM runs WHERE id = ?
	`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the runs for target, newest first. An empty target lists
// every run. limit <= 0 means no limit.
func (cdb *CrawlDB) ListRuns(ctx context.Context, target string, limit int) ([]Run, error) {
	query := `
	SELECT id, target, base_uri, command, root, pattern, started_at, finished_at, visited, failures
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0)

	if target != "" {
		query += " AND target = ?"
		args = append(args, target)
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListTargets returns every target that has at least one run.
func (cdb *CrawlDB) ListTargets(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT target FROM runs ORDER BY target`)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

// DeleteRun removes a run with its snapshots and report.
func (cdb *CrawlDB) DeleteRun(ctx context.Context, runID string) error {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM snapshots WHERE run_id = ?`,
		`DELETE FROM reports WHERE run_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, runID); err != nil {
			return fmt.Errorf("failed to delete run data: %w", err)
		}
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return tx.Commit()
}

// SnapshotRecord is one stored snapshot.
type SnapshotRecord struct {
	RunID      string
	Path       string
	URL        string
	StatusCode int
	ODataType  string
	Methods    []string
	Body       string
	Hash       string
	Error      string
	FetchedAt  time.Time
}

// InsertSnapshot inserts or replaces the snapshot of path in a run.
func (cdb *CrawlDB) InsertSnapshot(ctx context.Context, runID string, snap *model.Snapshot) error {
	methodsJSON, err := json.Marshal(snap.Methods)
	if err != nil {
		return fmt.Errorf("failed to serialize methods: %w", err)
	}

	query := `
	INSERT INTO snapshots (run_id, path, url, status_code, odata_type, methods, body, hash, error, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, path) DO UPDATE SET
		url = excluded.url,
		status_code = excluded.status_code,
		odata_type = excluded.odata_type,
		methods = excluded.methods,
		body = excluded.body,
		hash = excluded.hash,
		error = excluded.error,
		fetched_at = excluded.fetched_at
	`

	hash := ""
	if !snap.Failed() {
		hash = snap.Hash()
	}

	_, err = cdb.db.ExecContext(ctx, query,
		runID,
		snap.Path,
		snap.URL,
		snap.StatusCode,
		snap.ODataType(),
		string(methodsJSON),
		string(snap.Body()),
		hash,
		snap.Error,
		formatTime(snap.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot %s: %w", snap.Path, err)
	}
	return nil
}

// GetSnapshot returns the snapshot of path in a run, or nil when the run
// did not visit path.
func (cdb *CrawlDB) GetSnapshot(ctx context.Context, runID, path string) (*SnapshotRecord, error) {
	row := cdb.db.QueryRowContext(ctx, `
	SELECT run_id, path, url, status_code, odata_type, methods, body, hash, error, fetched_at
	FROM snapshots WHERE run_id = ? AND path = ?
	`, runID, path)

	rec, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return rec, nil
}

// ListSnapshots returns every snapshot of a run ordered by path.
func (cdb *CrawlDB) ListSnapshots(ctx context.Context, runID string) ([]SnapshotRecord, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT run_id, path, url, status_code, odata_type, methods, body, hash, error, fetched_at
	FROM snapshots WHERE run_id = ?
	ORDER BY path
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var records []SnapshotRecord
	for rows.Next() {
		rec, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// SaveReport stores the final report of a run, replacing any earlier one.
func (cdb *CrawlDB) SaveReport(ctx context.Context, runID string, report *model.TargetReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}
	summaryJSON, err := json.Marshal(model.NewSummary(report))
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}

	query := `
	INSERT INTO reports (run_id, report_json, summary_json)
	VALUES (?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		report_json = excluded.report_json,
		summary_json = excluded.summary_json
	`
	if _, err := cdb.db.ExecContext(ctx, query, runID, string(reportJSON), string(summaryJSON)); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// GetReport returns the stored report of a run.
func (cdb *CrawlDB) GetReport(ctx context.Context, runID string) (*model.TargetReport, error) {
	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, `SELECT report_json FROM reports WHERE run_id = ?`, runID).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report model.TargetReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var started string
	var finished sql.NullString

	err := row.Scan(
		&run.ID,
		&run.Target,
		&run.BaseURI,
		&run.Command,
		&run.Root,
		&run.Pattern,
		&started,
		&finished,
		&run.Visited,
		&run.Failures,
	)
	if err != nil {
		return nil, err
	}
	run.StartedAt = parseTimestamp(started)
	if finished.Valid {
		run.FinishedAt = parseTimestamp(finished.String)
	}
	return &run, nil
}

func scanSnapshot(row rowScanner) (*SnapshotRecord, error) {
	var rec SnapshotRecord
	var odataType, methods, body, hash, errMsg sql.NullString
	var fetched string

	err := row.Scan(
		&rec.RunID,
		&rec.Path,
		&rec.URL,
		&rec.StatusCode,
		&odataType,
		&methods,
		&body,
		&hash,
		&errMsg,
		&fetched,
	)
	if err != nil {
		return nil, err
	}
	rec.ODataType = odataType.String
	rec.Body = body.String
	rec.Hash = hash.String
	rec.Error = errMsg.String
	rec.FetchedAt = parseTimestamp(fetched)
	rec.Methods = []string{}
	if methods.String != "" {
		if err := json.Unmarshal([]byte(methods.String), &rec.Methods); err != nil {
			return nil, fmt.Errorf("failed to parse methods: %w", err)
		}
	}
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timestampFormats contains the timestamp formats the database may hold.
// Rows written by this package use timeLayout; the others cover rows
// written by hand or by SQLite's own datetime functions.
var timestampFormats = []string{
	timeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each known format and returns the zero time when none
// matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
