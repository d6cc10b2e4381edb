package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/gnosischain/click-runner/internal/clickhouse"
	"github.com/gnosischain/click-runner/internal/config"
	"github.com/gnosischain/click-runner/internal/dune"
	"github.com/gnosischain/click-runner/internal/ingest"
	"github.com/gnosischain/click-runner/internal/logger"
	"github.com/gnosischain/click-runner/internal/selector"
	"github.com/gnosischain/click-runner/internal/storage"
)

func main() {
	appLogger := logger.New(nil)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Mode selection
	ingestorKind := flag.String("ingestor", "query", "Ingestor to run (query, csv, parquet, dune)")

	// Generic query parameters
	queries := flag.String("queries", "", "Comma-separated list of SQL files to execute")

	// CSV ingestor parameters
	createTableSQL := flag.String("create-table-sql", "", "Path to SQL file for table creation")
	insertSQL := flag.String("insert-sql", "", "Path to SQL file for data insertion")
	optimizeSQL := flag.String("optimize-sql", "", "Path to SQL file for table optimization")

	// Parquet ingestor parameters
	tableName := flag.String("table-name", "", "Target table name for Parquet ingestion")
	s3Path := flag.String("s3-path", "", "Object key pattern with a {{DATE}} placeholder")
	mode := flag.String("mode", "latest", "Selection policy for Parquet files (latest, date, all)")
	date := flag.String("date", "", "Specific date for the 'date' policy (YYYY-MM-DD)")

	// Dune parameters
	datasetDir := flag.String("dataset-dir", "", "Dataset directory with config.yml and SQL templates")
	duneStart := flag.String("start", "", "Start parameter value for the Dune query")
	duneEnd := flag.String("end", "", "End parameter value for the Dune query")
	duneTimeout := flag.Duration("dune-timeout", 15*time.Minute, "Max wait for Dune execution")

	skipTableCreation := flag.Bool("skip-table-creation", false, "Skip the table creation step")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		appLogger.WithError(err).Fatal("Invalid configuration")
	}

	for name, value := range cfg.Variables {
		appLogger.WithField(name, config.RedactedValue(name, value)).Debug("Loaded query variable")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	jobID := uuid.New().String()
	ctx = logger.SetJobID(appLogger.WithContext(ctx), jobID)

	appLogger.WithFields(logger.Fields{
		logger.FieldJobID:    jobID,
		logger.FieldIngestor: *ingestorKind,
		"host":               cfg.ClickHouse.Host,
		"port":               cfg.ClickHouse.Port,
		"secure":             cfg.ClickHouse.Secure,
	}).Info("Connecting to ClickHouse")

	conn, err := clickhouse.Connect(ctx, &clickhouse.Config{
		Host:     cfg.ClickHouse.Host,
		Port:     cfg.ClickHouse.Port,
		User:     cfg.ClickHouse.User,
		Password: cfg.ClickHouse.Password,
		Database: cfg.ClickHouse.Database,
		Secure:   cfg.ClickHouse.Secure,
		Verify:   cfg.ClickHouse.Verify,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer conn.Close()

	var runErr error
	switch *ingestorKind {
	case "csv":
		runErr = runCSV(ctx, conn, cfg, *createTableSQL, *insertSQL, *optimizeSQL, *skipTableCreation)
	case "parquet":
		runErr = runParquet(ctx, conn, cfg, *createTableSQL, *s3Path, *tableName, *mode, *date, *skipTableCreation)
	case "dune":
		runErr = runDune(ctx, conn, cfg, *datasetDir, *duneStart, *duneEnd, *duneTimeout, *skipTableCreation)
	case "query":
		runErr = runQueries(ctx, conn, cfg, *queries)
	default:
		appLogger.Fatalf("Unknown ingestor %q (want query, csv, parquet, or dune)", *ingestorKind)
	}

	if runErr != nil {
		appLogger.WithError(runErr).Error("Operation failed")
		logger.Sync()
		os.Exit(1)
	}

	appLogger.Info("All operations completed successfully")
}

// queryFiles resolves the file list from the flag or the CH_QUERIES
// environment variable (comma-separated, as the scheduler sets it).
func queryFiles(flagValue string) []string {
	raw := flagValue
	if raw == "" {
		raw = os.Getenv("CH_QUERIES")
	}

	var files []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	return files
}

func runQueries(ctx context.Context, conn clickhouse.Conn, cfg *config.Config, queries string) error {
	files := queryFiles(queries)
	if len(files) == 0 {
		logger.FromContext(ctx).Fatal("No queries specified (use -queries or CH_QUERIES)")
	}

	runner := &ingest.QueryRunner{
		Conn:      conn,
		Variables: cfg.Variables,
		Files:     files,
	}
	return runner.Ingest(ctx)
}

func runCSV(ctx context.Context, conn clickhouse.Conn, cfg *config.Config, createSQL, insertSQL, optimizeSQL string, skipCreate bool) error {
	// Fall back to CH_QUERIES positions: create, insert, optional optimize
	if createSQL == "" || insertSQL == "" {
		files := queryFiles("")
		if len(files) >= 2 {
			if createSQL == "" {
				createSQL = files[0]
			}
			if insertSQL == "" {
				insertSQL = files[1]
			}
			if optimizeSQL == "" && len(files) >= 3 {
				optimizeSQL = files[2]
			}
		}
	}

	if (createSQL == "" && !skipCreate) || insertSQL == "" {
		logger.FromContext(ctx).Fatal("CSV ingestor requires -create-table-sql and -insert-sql")
	}

	csv := &ingest.CSVIngestor{
		Conn:              conn,
		Variables:         cfg.Variables,
		CreateTableSQL:    createSQL,
		InsertSQL:         insertSQL,
		OptimizeSQL:       optimizeSQL,
		SkipTableCreation: skipCreate,
	}
	return csv.Ingest(ctx)
}

func runParquet(ctx context.Context, conn clickhouse.Conn, cfg *config.Config, createSQL, s3Path, tableName, mode, date string, skipCreate bool) error {
	log := logger.FromContext(ctx)

	if createSQL == "" {
		if files := queryFiles(""); len(files) >= 1 {
			createSQL = files[0]
		}
	}
	if (createSQL == "" && !skipCreate) || s3Path == "" || tableName == "" {
		log.Fatal("Parquet ingestor requires -create-table-sql, -s3-path, and -table-name")
	}

	policy, err := selector.ParsePolicy(mode)
	if err != nil {
		log.WithError(err).Fatal("Invalid selection policy")
	}

	var refDate time.Time
	if policy == selector.PolicyDate {
		if date == "" {
			log.Fatal("The 'date' policy requires -date (YYYY-MM-DD)")
		}
		refDate, err = time.Parse(selector.DateLayout, date)
		if err != nil {
			log.WithError(err).Fatal("Invalid -date value")
		}
	}

	s3cfg := cfg.S3()
	if s3cfg.Bucket == "" {
		log.Fatal("Parquet ingestor requires the S3_BUCKET template variable")
	}

	store, err := storage.NewStore(&storage.S3Config{
		Backend:   storage.Backend(s3cfg.Backend),
		Endpoint:  s3cfg.Endpoint,
		AccessKey: s3cfg.AccessKey,
		SecretKey: s3cfg.SecretKey,
		UseSSL:    true,
		Bucket:    s3cfg.Bucket,
		Region:    s3cfg.Region,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize object storage")
	}

	parquet := &ingest.ParquetIngestor{
		Conn:              conn,
		Store:             store,
		Variables:         cfg.Variables,
		CreateTableSQL:    createSQL,
		PathPattern:       s3Path,
		TableName:         tableName,
		Policy:            policy,
		Date:              refDate,
		AccessKey:         s3cfg.AccessKey,
		SecretKey:         s3cfg.SecretKey,
		SkipTableCreation: skipCreate,
	}
	return parquet.Ingest(ctx)
}

func runDune(ctx context.Context, conn clickhouse.Conn, cfg *config.Config, datasetDir, start, end string, timeout time.Duration, skipCreate bool) error {
	log := logger.FromContext(ctx)

	if datasetDir == "" || start == "" || end == "" {
		log.Fatal("Dune ingestor requires -dataset-dir, -start, and -end")
	}

	apiKey := cfg.Variables["DUNE_API_KEY"]
	if apiKey == "" {
		apiKey = os.Getenv("DUNE_API_KEY")
	}
	if apiKey == "" {
		log.Fatal("Missing Dune API key (set CH_QUERY_VAR_DUNE_API_KEY or DUNE_API_KEY)")
	}

	client := dune.NewClient(apiKey, "")

	return dune.Run(ctx, conn, client, cfg.Variables, &dune.RunOptions{
		DatasetDir:        datasetDir,
		Start:             start,
		End:               end,
		Timeout:           timeout,
		SkipTableCreation: skipCreate,
	})
}
