// Package ingest sequences create-table, load, and optimize steps against
// the destination store. Idempotency across reruns comes from the SQL
// itself (CREATE TABLE IF NOT EXISTS, ReplacingMergeTree dedup keys), not
// from the orchestrator.
package ingest

import (
	"context"
	"fmt"

	"github.com/gnosischain/click-runner/internal/clickhouse"
	"github.com/gnosischain/click-runner/internal/logger"
	"github.com/gnosischain/click-runner/internal/sqltemplate"
)

// Phase names one step of an ingestion run.
type Phase string

const (
	PhaseEnsureTable Phase = "ensure_table"
	PhaseLoad        Phase = "load"
	PhaseOptimize    Phase = "optimize"
)

// PhaseError reports which phase and which file or object failed. Any
// phase failure aborts the remaining phases of the run.
type PhaseError struct {
	Phase  Phase
	Target string // SQL file path or object key
	Err    error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s failed on %s: %v", e.Phase, e.Target, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Ingestor is one ingestion variant. Each variant runs its own
// ensure-table / load / optimize sequence; a failed phase moves the run
// to a failed state and skips the rest.
type Ingestor interface {
	Ingest(ctx context.Context) error
}

// runSQLFile resolves a template file and executes its statements, wrapping
// any failure with the phase and file that caused it.
func runSQLFile(ctx context.Context, conn clickhouse.Conn, vars map[string]string, path string, phase Phase) error {
	script, err := sqltemplate.ResolveFile(path, vars)
	if err != nil {
		return &PhaseError{Phase: phase, Target: path, Err: err}
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldPhase: string(phase),
		"file":            path,
	}).Info("Executing SQL file")

	if err := clickhouse.ExecuteScript(ctx, conn, script); err != nil {
		return &PhaseError{Phase: phase, Target: path, Err: err}
	}

	return nil
}

// logRowCount logs the current row count of a table, tolerating count
// failures (the count is informational only).
func logRowCount(ctx context.Context, conn clickhouse.Conn, table, when string) (uint64, bool) {
	if table == "" {
		return 0, false
	}

	count, err := conn.RowCount(ctx, table)
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField(logger.FieldTable, table).
			Warn("Failed to read row count")
		return 0, false
	}

	logger.With(logger.Fields{logger.FieldTable: table, logger.FieldRows: count}).
		Info(ctx, "Row count %s load", when)
	return count, true
}
