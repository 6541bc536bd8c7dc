package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/batch"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/models"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/setup"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/setup/logger"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/store"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/tlm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	startTime := time.Now()

	input := flag.String("input", "", "Input JSONL file path, '-' for stdin")
	output := flag.String("output", "", "Output file path, stdout when empty")
	format := flag.String("format", batch.FormatJSONL, "Output format. Supported formats: 'jsonl', 'summary'")
	batchSize := flag.Int("batch-size", batch.DefaultBatchSize, "Prompts sent to the dispatcher per call")
	timeout := flag.Duration("timeout", 0, "Per-prompt timeout, dispatcher default when 0")
	storeKind := flag.String("store", "", "Persist results. Supported stores: 'postgres'")
	runID := flag.String("run-id", "", "Run id used by -store, generated when empty")
	continueOnError := flag.Bool("continue-on-error", true, "Continue on write failures")
	dryRun := flag.Bool("dry-run", false, "Validate input without prompting")

	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg := setup.LoadConfig()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = logger.NewConsole(cfg.LogLevel)
	appLogger := log.Logger

	if *input == "" {
		log.Fatal().Msg("required flag -input not provided")
	}
	if *format != batch.FormatJSONL && *format != batch.FormatSummary {
		log.Fatal().Str("format", *format).Msg("Invalid format. Supported: jsonl, summary")
	}
	if *storeKind != "" && *storeKind != "postgres" {
		log.Fatal().Str("store", *storeKind).Msg("Invalid store. Supported: postgres")
	}

	ctx, cancel := setupGracefulShutdown()
	defer cancel()

	// Open input file
	var inputFile io.Reader
	if *input == "-" {
		inputFile = os.Stdin
		log.Info().Msg("Reading from stdin")
	} else {
		f, err := os.Open(*input)
		if err != nil {
			log.Fatal().Err(err).Str("file", *input).Msg("Failed to open input file")
		}
		defer f.Close()
		inputFile = f
		log.Info().Str("file", *input).Msg("Reading input file")
	}

	// Read records
	reader := batch.NewReader(inputFile, &appLogger)
	var records []batch.InputRecord
	for record := range reader.ReadAll(ctx) {
		records = append(records, record)
	}

	log.Info().Int("total", len(records)).Msg("Input file parsed")

	if *dryRun {
		dryRunAndExit(records)
	}

	deps, err := setup.Wire(ctx, cfg, &appLogger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer deps.Close()

	var db *store.DB
	if *storeKind == "postgres" {
		db = openStore(ctx, cfg.DatabaseURL)
		defer db.Close()
		if *runID == "" {
			*runID = uuid.NewString()
		}
	}

	// Open output file
	var outputFile io.Writer
	if *output == "" {
		outputFile = os.Stdout
		log.Info().Msg("Writing to stdout")
	} else {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatal().Err(err).Str("file", *output).Msg("Failed to create output file")
		}
		defer f.Close()
		outputFile = f
		log.Info().Str("file", *output).Msg("Writing to output file")
	}

	writer, err := batch.NewWriter(outputFile, *format, &appLogger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create writer")
	}

	var opts []tlm.CallOption
	if *timeout > 0 {
		opts = append(opts, tlm.WithTimeout(*timeout))
	}
	processor := batch.NewProcessor(deps.TLM, *batchSize, &appLogger, opts...)

	var outputs []models.OutputRecord
	errorCount := 0
	for result := range processor.Process(ctx, records) {
		if db != nil {
			outputs = append(outputs, result)
		}
		if err := writer.Write(result); err != nil {
			log.Error().Err(err).Str("id", result.ID).Msg("Failed to write result")
			errorCount++

			if !*continueOnError {
				log.Fatal().Msg("Stopping due to write error")
			}
		}
	}

	if err := writer.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close writer")
	}

	if db != nil {
		if err := db.SaveResults(ctx, *runID, outputs); err != nil {
			log.Fatal().Err(err).Str("run_id", *runID).Msg("Failed to store results")
		}
		log.Info().Str("run_id", *runID).Int("records", len(outputs)).Msg("Results stored")
	}

	summary := writer.Summary()
	log.Info().
		Int("total", summary.Total).
		Int("answered", summary.Answered).
		Int("absent", summary.Absent).
		Int("write_errors", errorCount).
		Dur("duration", time.Since(startTime)).
		Msg("Batch processing complete")
}

func openStore(ctx context.Context, url string) *store.DB {
	if url == "" {
		log.Fatal().Msg("-store postgres requires DATABASE_URL or DB_HOST")
	}

	db, err := store.New(ctx, url)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to reach database")
	}
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare schema")
	}
	return db
}

func setupGracefulShutdown() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Warn().Msg("Received interrupt signal, finishing current work...")
		cancel()
	}()

	return ctx, cancel
}

func dryRunAndExit(records []batch.InputRecord) {
	errorCount := 0
	for _, record := range records {
		if record.Error != nil {
			log.Error().
				Int("line", record.LineNumber).
				Err(record.Error).
				Msg("Validation error")
			errorCount++
		}
	}

	if errorCount > 0 {
		log.Fatal().Int("errors", errorCount).Msg("Validation failed")
	}

	log.Info().Msg("Validation successful")
	os.Exit(0)
}
