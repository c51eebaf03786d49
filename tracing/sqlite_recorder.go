// Package tracing records the commit trace of a simulation run into a SQLite
// database. The recorder is an akita hook attached to the pipeline.
package tracing

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

// DefaultBatchSize is the number of buffered commits that triggers a flush.
const DefaultBatchSize = 10000

var regColumns = func() []string {
	cols := make([]string, emu.NumRegs)
	for i := range cols {
		cols[i] = fmt.Sprintf("x%d", i)
	}
	return cols
}()

type commitRow struct {
	seq   uint64
	cycle uint64
	rec   emu.CommitRecord
}

// SQLiteRecorder buffers commit records and writes them to the commits
// table. Every recorder has its own run id so several runs can share a file.
type SQLiteRecorder struct {
	db        *sql.DB
	path      string
	runID     string
	batchSize int

	pending []commitRow
	seq     uint64
	err     error
}

// NewSQLiteRecorder creates a recorder writing to a new database file. An
// empty path picks tomasim_trace_<id>.sqlite3 in the working directory. The
// buffered records are flushed when the program exits through atexit.
func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	runID := xid.New().String()
	if path == "" {
		path = "tomasim_trace_" + runID + ".sqlite3"
	}

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("file %s already exists", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace database: %w", err)
	}

	r, err := newRecorder(db, runID)
	if err != nil {
		db.Close()
		return nil, err
	}
	r.path = path

	atexit.Register(func() { _ = r.Close() })

	return r, nil
}

// NewSQLiteRecorderWithDB creates a recorder on an open database. The
// caller owns db.
func NewSQLiteRecorderWithDB(db *sql.DB) (*SQLiteRecorder, error) {
	return newRecorder(db, xid.New().String())
}

func newRecorder(db *sql.DB, runID string) (*SQLiteRecorder, error) {
	r := &SQLiteRecorder{
		db:        db,
		runID:     runID,
		batchSize: DefaultBatchSize,
	}

	if err := r.createTable(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *SQLiteRecorder) createTable() error {
	cols := make([]string, 0, len(regColumns)+5)
	cols = append(cols,
		"run_id TEXT NOT NULL",
		"seq INTEGER NOT NULL",
		"cycle INTEGER NOT NULL",
		"pc INTEGER NOT NULL",
		"word INTEGER NOT NULL",
	)
	for _, c := range regColumns {
		cols = append(cols, c+" INTEGER NOT NULL")
	}

	stmt := "CREATE TABLE IF NOT EXISTS commits (\n\t" +
		strings.Join(cols, ",\n\t") + "\n);"
	if _, err := r.db.Exec(stmt); err != nil {
		return fmt.Errorf("failed to create commits table: %w", err)
	}

	return nil
}

// SetBatchSize changes the flush threshold.
func (r *SQLiteRecorder) SetBatchSize(n int) {
	r.batchSize = n
}

// RunID returns the id stored with every row of this recorder.
func (r *SQLiteRecorder) RunID() string {
	return r.runID
}

// Path returns the database file, empty for recorders on a caller's db.
func (r *SQLiteRecorder) Path() string {
	return r.path
}

// Func records commit hook invocations and ignores every other position.
func (r *SQLiteRecorder) Func(ctx sim.HookCtx) {
	if ctx.Pos != pipeline.HookPosCommit {
		return
	}

	rec, ok := ctx.Item.(emu.CommitRecord)
	if !ok {
		return
	}
	cycle, _ := ctx.Detail.(uint64)

	r.Record(cycle, rec)
}

// Record buffers one commit.
func (r *SQLiteRecorder) Record(cycle uint64, rec emu.CommitRecord) {
	r.pending = append(r.pending, commitRow{seq: r.seq, cycle: cycle, rec: rec})
	r.seq++

	if len(r.pending) >= r.batchSize {
		if err := r.Flush(); err != nil && r.err == nil {
			r.err = err
		}
	}
}

// Count returns the number of commits recorded so far.
func (r *SQLiteRecorder) Count() uint64 {
	return r.seq
}

// Err returns the first error hit by a flush triggered from the hook.
func (r *SQLiteRecorder) Err() error {
	return r.err
}

// Flush writes the buffered commits in one transaction.
func (r *SQLiteRecorder) Flush() error {
	if len(r.pending) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin trace transaction: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", 5+emu.NumRegs), ", ")
	stmt, err := tx.Prepare("INSERT INTO commits (run_id, seq, cycle, pc, word, " +
		strings.Join(regColumns, ", ") + ") VALUES (" + placeholders + ")")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare trace insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, 0, 5+emu.NumRegs)
	for _, row := range r.pending {
		args = append(args[:0], r.runID, row.seq, row.cycle, row.rec.PC, row.rec.Word)
		for _, v := range row.rec.Regs {
			args = append(args, v)
		}

		if _, err := stmt.Exec(args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert commit %d: %w", row.seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trace transaction: %w", err)
	}

	r.pending = r.pending[:0]

	return nil
}

// Close flushes and, for recorders that opened their own file, closes the
// database.
func (r *SQLiteRecorder) Close() error {
	if r.db == nil {
		return nil
	}

	err := r.Flush()

	if r.path != "" {
		if cerr := r.db.Close(); err == nil {
			err = cerr
		}
		r.db = nil
	}

	return err
}

// ReadTrace loads the commits of one run in commit order.
func ReadTrace(db *sql.DB, runID string) ([]emu.CommitRecord, error) {
	rows, err := db.Query("SELECT pc, word, "+strings.Join(regColumns, ", ")+
		" FROM commits WHERE run_id = ? ORDER BY seq", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trace: %w", err)
	}
	defer rows.Close()

	var trace []emu.CommitRecord
	for rows.Next() {
		var rec emu.CommitRecord

		dest := make([]any, 0, 2+emu.NumRegs)
		dest = append(dest, &rec.PC, &rec.Word)
		for i := range rec.Regs {
			dest = append(dest, &rec.Regs[i])
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan commit: %w", err)
		}
		trace = append(trace, rec)
	}

	return trace, rows.Err()
}
