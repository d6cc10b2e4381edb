package ingest

import (
	"context"

	"github.com/gnosischain/click-runner/internal/clickhouse"
	"github.com/gnosischain/click-runner/internal/logger"
)

// QueryRunner executes a list of SQL script files in the given order.
// Each file may hold multiple semicolon-terminated statements.
type QueryRunner struct {
	Conn      clickhouse.Conn
	Variables map[string]string
	Files     []string
}

// Ingest resolves and executes every file sequentially; the first failure
// aborts the remaining files.
func (r *QueryRunner) Ingest(ctx context.Context) error {
	ctx = logger.SetIngestor(ctx, "query")

	for _, file := range r.Files {
		if err := runSQLFile(ctx, r.Conn, r.Variables, file, PhaseLoad); err != nil {
			return err
		}
	}

	return nil
}
