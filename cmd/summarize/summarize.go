package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/emotrack/pkg/emotion"
	"github.com/cyclopcam/emotrack/pkg/rundb"
	"github.com/cyclopcam/emotrack/pkg/storage"
	"github.com/cyclopcam/logs"
	"github.com/joho/godotenv"
)

// errUsage is returned after the usage message has been printed
var errUsage = errors.New("invalid arguments")

func main() {
	if err := run(os.Args); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Printf("Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// argparse doesn't enforce Required on positionals
func missing(positionals ...*string) bool {
	for _, p := range positionals {
		if p == nil || *p == "" {
			return true
		}
	}
	return false
}

func run(args []string) error {
	parser := argparse.NewParser("summarize", "Summarize the per-second results of an emotion analysis")
	input := parser.StringPositional(&argparse.Options{Help: "Results JSON", Required: true})
	outputDir := parser.StringPositional(&argparse.Options{Help: "Output directory, or gs://bucket/prefix", Required: true})
	dbFile := parser.String("", "db", &argparse.Options{Help: "Run DB (sqlite) holding the run to attach the summary to", Default: ""})
	runID := parser.Int("", "run", &argparse.Options{Help: "ID of the run in --db that the results belong to", Default: 0})
	err := parser.Parse(args)
	if err == nil && missing(input, outputDir) {
		err = errors.New("input and outputDir are required")
	}
	if err == nil && (*dbFile == "") != (*runID == 0) {
		err = errors.New("--db and --run must be used together")
	}
	if err != nil {
		fmt.Print(parser.Usage(err))
		return errUsage
	}

	godotenv.Load()
	logger, _ := logs.NewLog()

	raw, err := os.ReadFile(*input)
	if err != nil {
		return err
	}
	agg, err := emotion.DecodeAggregation(raw)
	if err != nil {
		return err
	}
	summary, err := emotion.Summarize(agg)
	if err != nil {
		return err
	}

	store, err := storage.Open(logger, *outputDir)
	if err != nil {
		return err
	}
	name, err := emotion.SaveSummary(store, summary)
	if err != nil {
		return err
	}
	fmt.Printf("Summary saved to %v\n", outputPath(*outputDir, name))

	if *dbFile != "" {
		db, err := rundb.OpenSqlite(logger, *dbFile)
		if err != nil {
			return err
		}
		r, err := db.Get(int64(*runID))
		if err != nil {
			return fmt.Errorf("Run %v: %w", *runID, err)
		}
		r.SummaryArtifact = name
		r.SetSummary(summary)
		if err := db.Update(r); err != nil {
			return err
		}
		logger.Infof("Attached summary to run %v", r.ID)
	}

	return emotion.EncodeSummary(os.Stdout, summary)
}

// Works for both directories and gs:// locations
func outputPath(outputDir, name string) string {
	return strings.TrimSuffix(outputDir, "/") + "/" + name
}
