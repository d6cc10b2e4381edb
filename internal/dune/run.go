package dune

import (
	"context"
	"time"

	"github.com/gnosischain/click-runner/internal/clickhouse"
	"github.com/gnosischain/click-runner/internal/ingest"
	"github.com/gnosischain/click-runner/internal/logger"
)

// RunOptions holds parameters for one execute-and-ingest run.
type RunOptions struct {
	DatasetDir string
	Start      string // start parameter value, sent as-is
	End        string // end parameter value, sent as-is

	Timeout time.Duration
	Poll    time.Duration

	SkipTableCreation bool
}

// Run executes the dataset's Dune query, waits for completion, then runs
// the CSV ingestion sequence with the execution ID and results URL exposed
// as template variables (DUNE_EXECUTION_ID, DUNE_RESULT_CSV_URL).
func Run(ctx context.Context, conn clickhouse.Conn, client *Client, vars map[string]string, opts *RunOptions) error {
	ctx = logger.SetIngestor(ctx, "dune")

	ds, err := LoadDataset(opts.DatasetDir)
	if err != nil {
		return err
	}

	params := map[string]string{
		ds.ParamStartKey: opts.Start,
		ds.ParamEndKey:   opts.End,
	}

	execID, err := client.Execute(ctx, ds.QueryID, params)
	if err != nil {
		return err
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Minute
	}
	poll := opts.Poll
	if poll == 0 {
		poll = 2 * time.Second
	}

	if err := client.Wait(ctx, execID, timeout, poll); err != nil {
		return err
	}

	// Expose the execution to the SQL templates without mutating the
	// caller's variable mapping.
	runVars := make(map[string]string, len(vars)+2)
	for k, v := range vars {
		runVars[k] = v
	}
	runVars["DUNE_EXECUTION_ID"] = execID
	runVars["DUNE_RESULT_CSV_URL"] = client.ResultCSVURL(execID)

	csv := &ingest.CSVIngestor{
		Conn:              conn,
		Variables:         runVars,
		CreateTableSQL:    ds.CreateTableSQL,
		InsertSQL:         ds.InsertSQL,
		SkipTableCreation: opts.SkipTableCreation,
	}

	return csv.Ingest(ctx)
}
