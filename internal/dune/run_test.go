package dune

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeConn records executed statements.
type fakeConn struct {
	executed []string
}

func (f *fakeConn) Exec(ctx context.Context, query string) error {
	f.executed = append(f.executed, query)
	return nil
}

func (f *fakeConn) RowCount(ctx context.Context, table string) (uint64, error) {
	return 0, nil
}

func (f *fakeConn) Close() error { return nil }

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newDatasetDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "config.yml", "dune_query_id_param: \"42\"\n")
	writeFile(t, dir, "create_table.sql",
		"CREATE TABLE IF NOT EXISTS dune_prices (d Date, p Float64, ingested_at DateTime DEFAULT now()) ENGINE = ReplacingMergeTree(ingested_at) ORDER BY d;")
	writeFile(t, dir, "insert_from_execution.sql",
		"INSERT INTO dune_prices SELECT toDate(day), toFloat64(price) FROM url('{{DUNE_RESULT_CSV_URL}}?api_key={{DUNE_API_KEY}}', 'CSVWithNames');")
	return dir
}

func TestLoadDataset(t *testing.T) {
	dir := newDatasetDir(t)

	ds, err := LoadDataset(dir)
	if err != nil {
		t.Fatalf("LoadDataset returned error: %v", err)
	}

	if ds.QueryID != "42" {
		t.Errorf("query ID = %q", ds.QueryID)
	}
	if ds.ParamStartKey != "start_date" || ds.ParamEndKey != "end_date" {
		t.Errorf("default param keys = %s/%s", ds.ParamStartKey, ds.ParamEndKey)
	}
	if ds.CreateTableSQL != filepath.Join(dir, "create_table.sql") {
		t.Errorf("create SQL path = %q", ds.CreateTableSQL)
	}
	if ds.InsertSQL != filepath.Join(dir, "insert_from_execution.sql") {
		t.Errorf("insert SQL path = %q", ds.InsertSQL)
	}
}

func TestLoadDatasetMissingQueryID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yml", "param_start_key: from\n")

	if _, err := LoadDataset(dir); err == nil {
		t.Error("expected error for missing query ID")
	}
}

func TestLoadDatasetMissingConfig(t *testing.T) {
	if _, err := LoadDataset(t.TempDir()); err == nil {
		t.Error("expected error for missing config.yml")
	}
}

func TestRunExecutesAndIngests(t *testing.T) {
	srv := newDuneServer(t, "QUERY_STATE_COMPLETED", 1)
	client := NewClient("test-key", srv.URL)
	conn := &fakeConn{}

	err := Run(context.Background(), conn, client,
		map[string]string{"DUNE_API_KEY": "test-key"},
		&RunOptions{
			DatasetDir: newDatasetDir(t),
			Start:      "2025-04-01",
			End:        "2025-04-30",
			Poll:       time.Millisecond,
		})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(conn.executed) != 2 {
		t.Fatalf("executed %d statements, want create + insert", len(conn.executed))
	}
	if !strings.HasPrefix(conn.executed[0], "CREATE TABLE IF NOT EXISTS") {
		t.Errorf("first statement = %q", conn.executed[0])
	}

	insert := conn.executed[1]
	if !strings.Contains(insert, "/execution/01HXEXEC/results/csv") {
		t.Errorf("insert does not reference the execution results: %q", insert)
	}
	if strings.Contains(insert, "{{") {
		t.Errorf("insert still contains unresolved placeholders: %q", insert)
	}
}

func TestRunFailedExecutionSkipsIngest(t *testing.T) {
	srv := newDuneServer(t, "QUERY_STATE_FAILED", 0)
	client := NewClient("test-key", srv.URL)
	conn := &fakeConn{}

	err := Run(context.Background(), conn, client, nil, &RunOptions{
		DatasetDir: newDatasetDir(t),
		Start:      "2025-04-01",
		End:        "2025-04-30",
		Poll:       time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(conn.executed) != 0 {
		t.Errorf("statements executed despite failed Dune run: %v", conn.executed)
	}
}
