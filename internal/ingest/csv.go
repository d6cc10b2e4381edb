package ingest

import (
	"context"

	"github.com/gnosischain/click-runner/internal/clickhouse"
	"github.com/gnosischain/click-runner/internal/logger"
	"github.com/gnosischain/click-runner/internal/sqltemplate"
)

// CSVIngestor loads CSV data through the destination store's url() table
// function. The insert SQL references the CSV URL via a template variable;
// the store performs the fetch itself.
type CSVIngestor struct {
	Conn      clickhouse.Conn
	Variables map[string]string

	CreateTableSQL string
	InsertSQL      string
	OptimizeSQL    string // optional

	SkipTableCreation bool
}

// Ingest runs create-table (unless skipped), insert, then optional optimize.
func (in *CSVIngestor) Ingest(ctx context.Context) error {
	ctx = logger.SetIngestor(ctx, "csv")

	if !in.SkipTableCreation {
		if err := runSQLFile(ctx, in.Conn, in.Variables, in.CreateTableSQL, PhaseEnsureTable); err != nil {
			return err
		}
	}

	insertScript, err := sqltemplate.ResolveFile(in.InsertSQL, in.Variables)
	if err != nil {
		return &PhaseError{Phase: PhaseLoad, Target: in.InsertSQL, Err: err}
	}

	table := clickhouse.TableFromInsert(insertScript)
	before, haveBefore := logRowCount(ctx, in.Conn, table, "before")

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldPhase: string(PhaseLoad),
		"file":            in.InsertSQL,
	}).Info("Inserting data")

	if err := clickhouse.ExecuteScript(ctx, in.Conn, insertScript); err != nil {
		return &PhaseError{Phase: PhaseLoad, Target: in.InsertSQL, Err: err}
	}

	if after, ok := logRowCount(ctx, in.Conn, table, "after"); ok && haveBefore {
		logger.With(logger.Fields{logger.FieldTable: table, logger.FieldRows: after - before}).
			Info(ctx, "Rows inserted")
	}

	if in.OptimizeSQL != "" {
		if err := runSQLFile(ctx, in.Conn, in.Variables, in.OptimizeSQL, PhaseOptimize); err != nil {
			return err
		}
	}

	return nil
}
