package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldJobID is the unique ID of one runner invocation
	FieldJobID = "job_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldIngestor is the ingestor kind (query, csv, parquet, dune)
	FieldIngestor = "ingestor"

	// FieldPhase is the orchestration phase (ensure_table, load, optimize)
	FieldPhase = "phase"

	// FieldTable is the destination table name
	FieldTable = "table"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldRows is a row count (inserted or total)
	FieldRows = "rows"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
