package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gnosischain/click-runner/internal/selector"
	"github.com/gnosischain/click-runner/internal/storage"
)

// fakeStore serves a fixed key listing.
type fakeStore struct {
	keys    []string
	listErr error
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var objects []storage.ObjectInfo
	for _, k := range f.keys {
		objects = append(objects, storage.ObjectInfo{Key: k})
	}
	return objects, nil
}

func (f *fakeStore) ObjectURI(key string) string {
	return "s3://bucket/" + key
}

func newParquetFixture(t *testing.T, conn *fakeConn, store storage.ObjectStore) *ParquetIngestor {
	t.Helper()
	dir := t.TempDir()

	return &ParquetIngestor{
		Conn:      conn,
		Store:     store,
		Variables: map[string]string{},
		CreateTableSQL: writeSQL(t, dir, "create.sql",
			"CREATE TABLE IF NOT EXISTS metrics (d Date, v UInt64, ingested_at DateTime DEFAULT now()) ENGINE = ReplacingMergeTree(ingested_at) ORDER BY d;"),
		PathPattern: "assets/data/{{DATE}}.parquet",
		TableName:   "metrics",
		Policy:      selector.PolicyLatest,
		AccessKey:   "ak",
		SecretKey:   "sk",
	}
}

func scenarioKeys() []string {
	return []string{
		"assets/data/2025-04-10.parquet",
		"assets/data/2025-04-11.parquet",
		"assets/data/2025-04-13.parquet",
	}
}

func insertsOf(statements []string) []string {
	var inserts []string
	for _, s := range statements {
		if strings.HasPrefix(s, "INSERT") {
			inserts = append(inserts, s)
		}
	}
	return inserts
}

func TestParquetIngestLatest(t *testing.T) {
	conn := &fakeConn{}
	p := newParquetFixture(t, conn, &fakeStore{keys: scenarioKeys()})

	if err := p.Ingest(context.Background()); err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}

	inserts := insertsOf(conn.executed)
	if len(inserts) != 1 {
		t.Fatalf("latest issued %d inserts, want 1", len(inserts))
	}
	if !strings.Contains(inserts[0], "s3://bucket/assets/data/2025-04-13.parquet") {
		t.Errorf("insert targets wrong object: %q", inserts[0])
	}
	if !strings.Contains(inserts[0], "'ak', 'sk', 'Parquet'") {
		t.Errorf("insert missing credentials/format: %q", inserts[0])
	}
}

func TestParquetIngestAllAscending(t *testing.T) {
	conn := &fakeConn{}
	p := newParquetFixture(t, conn, &fakeStore{keys: scenarioKeys()})
	p.Policy = selector.PolicyAll

	if err := p.Ingest(context.Background()); err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}

	inserts := insertsOf(conn.executed)
	if len(inserts) != 3 {
		t.Fatalf("all issued %d inserts, want 3", len(inserts))
	}
	for i, want := range []string{"2025-04-10", "2025-04-11", "2025-04-13"} {
		if !strings.Contains(inserts[i], want) {
			t.Errorf("insert %d = %q, want date %s", i, inserts[i], want)
		}
	}
}

func TestParquetIngestDate(t *testing.T) {
	conn := &fakeConn{}
	p := newParquetFixture(t, conn, &fakeStore{keys: scenarioKeys()})
	p.Policy = selector.PolicyDate
	p.Date, _ = time.Parse(selector.DateLayout, "2025-04-11")

	if err := p.Ingest(context.Background()); err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}

	inserts := insertsOf(conn.executed)
	if len(inserts) != 1 || !strings.Contains(inserts[0], "2025-04-11") {
		t.Errorf("date policy inserts = %v, want exactly 2025-04-11", inserts)
	}
}

func TestParquetIngestDateNotFound(t *testing.T) {
	conn := &fakeConn{}
	p := newParquetFixture(t, conn, &fakeStore{keys: scenarioKeys()})
	p.Policy = selector.PolicyDate
	p.Date, _ = time.Parse(selector.DateLayout, "2025-04-12")

	err := p.Ingest(context.Background())
	if !errors.Is(err, selector.ErrNotFound) {
		t.Fatalf("expected wrapped ErrNotFound, got %v", err)
	}

	var phaseErr *PhaseError
	if !errors.As(err, &phaseErr) || phaseErr.Phase != PhaseLoad {
		t.Errorf("expected load PhaseError, got %v", err)
	}
	if len(insertsOf(conn.executed)) != 0 {
		t.Errorf("inserts ran despite missing date: %v", conn.executed)
	}
}

func TestParquetIngestEmptyListing(t *testing.T) {
	conn := &fakeConn{}
	p := newParquetFixture(t, conn, &fakeStore{})

	err := p.Ingest(context.Background())
	if err == nil {
		t.Fatal("expected error when nothing matches")
	}
	if len(insertsOf(conn.executed)) != 0 {
		t.Errorf("inserts ran on empty selection: %v", conn.executed)
	}
}

func TestParquetIngestInsertFailureAborts(t *testing.T) {
	conn := &fakeConn{failOn: "2025-04-11"}
	p := newParquetFixture(t, conn, &fakeStore{keys: scenarioKeys()})
	p.Policy = selector.PolicyAll

	err := p.Ingest(context.Background())

	var phaseErr *PhaseError
	if !errors.As(err, &phaseErr) {
		t.Fatalf("expected *PhaseError, got %v", err)
	}
	if phaseErr.Target != "assets/data/2025-04-11.parquet" {
		t.Errorf("failed target = %q, want the 2025-04-11 object", phaseErr.Target)
	}

	inserts := insertsOf(conn.executed)
	if len(inserts) != 1 || !strings.Contains(inserts[0], "2025-04-10") {
		t.Errorf("expected only the 2025-04-10 insert before the abort, got %v", inserts)
	}
}

func TestParquetIngestSkipTableCreation(t *testing.T) {
	conn := &fakeConn{}
	p := newParquetFixture(t, conn, &fakeStore{keys: scenarioKeys()})
	p.SkipTableCreation = true

	if err := p.Ingest(context.Background()); err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	for _, stmt := range conn.executed {
		if strings.HasPrefix(stmt, "CREATE TABLE") {
			t.Errorf("create table executed despite skip flag: %q", stmt)
		}
	}
}
