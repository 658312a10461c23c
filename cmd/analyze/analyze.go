package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/emotrack/pkg/emotion"
	"github.com/cyclopcam/emotrack/pkg/nnload"
	"github.com/cyclopcam/emotrack/pkg/rundb"
	"github.com/cyclopcam/emotrack/pkg/storage"
	"github.com/cyclopcam/emotrack/pkg/videox"
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

func run(args []string) error {
	parser := argparse.NewParser("analyze", "Analyze the emotions of the face in a video, second by second")
	video := parser.StringPositional(&argparse.Options{Help: "Input video file", Required: true})
	outputDir := parser.StringPositional(&argparse.Options{Help: "Output directory, or gs://bucket/prefix", Required: true})
	rate := parser.Int("", "fps", &argparse.Options{Help: "Frames to analyze per second of video", Default: 10})
	start := parser.Float("", "start", &argparse.Options{Help: "Start of the analyzed window, in seconds", Default: 0.0})
	end := parser.String("", "end", &argparse.Options{Help: "End of the analyzed window, in seconds (default end of video)", Default: ""})
	modelDir := parser.String("", "modeldir", &argparse.Options{Help: "Path to NN model dir", Default: "models"})
	modelName := parser.String("n", "model", &argparse.Options{Help: "NN model name", Default: "ferplus"})
	remoteURL := parser.String("", "remote", &argparse.Options{Help: "Use a remote emotion service at this URL instead of a local model", Default: ""})
	downloadURL := parser.String("", "download", &argparse.Options{Help: "Download missing model files from this URL", Default: ""})
	dbFile := parser.String("", "db", &argparse.Options{Help: "Record the run in this sqlite DB", Default: ""})
	withSummary := parser.Flag("", "summary", &argparse.Options{Help: "Also write a summary JSON", Default: false})
	withCSV := parser.Flag("", "csv", &argparse.Options{Help: "Also write a CSV table", Default: false})
	quiet := parser.Flag("q", "quiet", &argparse.Options{Help: "Don't print per-frame progress", Default: false})
	runs := parser.Int("", "runs", &argparse.Options{Help: "Repeat the analysis this many times, each into new artifacts", Default: 1})
	err := parser.Parse(args)
	// argparse doesn't enforce Required on positionals
	if err == nil && (video == nil || *video == "" || outputDir == nil || *outputDir == "") {
		err = errors.New("video and outputDir are required")
	}
	if err != nil {
		fmt.Print(parser.Usage(err))
		return errUsage
	}

	// Load .env before the logger reads its settings
	envErr := godotenv.Load()
	logger, _ := logs.NewLog()
	if envErr == nil {
		logger.Infof("Loaded environment from .env")
	}

	sampling := videox.SampleOptions{
		RatePerSecond: *rate,
		StartSecond:   *start,
	}
	if *end != "" {
		endSecond, err := strconv.ParseFloat(*end, 64)
		if err != nil {
			return fmt.Errorf("Invalid end '%v'", *end)
		}
		sampling.EndSecond = &endSecond
	}

	store, err := storage.Open(logger, *outputDir)
	if err != nil {
		return err
	}

	classifier, err := nnload.LoadClassifier(logger, nnload.Options{
		ModelDir:    *modelDir,
		ModelName:   *modelName,
		RemoteURL:   *remoteURL,
		DownloadURL: *downloadURL,
	})
	if err != nil {
		return err
	}
	defer classifier.Close()

	var db *rundb.RunDB
	if *dbFile != "" {
		db, err = rundb.OpenSqlite(logger, *dbFile)
		if err != nil {
			return err
		}
	}

	for i := 0; i < max(*runs, 1); i++ {
		if *runs > 1 {
			logger.Infof("Run %v of %v", i+1, *runs)
		}
		result, err := emotion.RunOnVideoFile(logger, classifier, *video, emotion.Options{
			Sampling:       sampling,
			StdOutProgress: !*quiet,
		})
		if err != nil {
			return err
		}

		artifacts, err := emotion.SaveArtifacts(store, result.Aggregation, *withSummary, *withCSV)
		if err != nil {
			return err
		}
		fmt.Printf("Analysis complete. Results saved to %v\n", outputPath(*outputDir, artifacts.Results))
		if artifacts.Summary != "" {
			fmt.Printf("Summary saved to %v\n", outputPath(*outputDir, artifacts.Summary))
		}
		if artifacts.Table != "" {
			fmt.Printf("Table saved to %v\n", outputPath(*outputDir, artifacts.Table))
		}

		if db != nil {
			record := &rundb.Run{
				Video:           filepath.Base(*video),
				RatePerSecond:   sampling.RatePerSecond,
				StartSecond:     result.Plan.StartSecond,
				EndSecond:       sampling.EndSecond,
				FramesSampled:   result.FramesSampled,
				FramesFailed:    result.FramesFailed,
				SecondsAnalyzed: len(result.Aggregation),
				ResultsArtifact: artifacts.Results,
				SummaryArtifact: artifacts.Summary,
				TableArtifact:   artifacts.Table,
			}
			if artifacts.Stats != nil {
				record.SetSummary(artifacts.Stats)
			}
			if err := db.Record(record); err != nil {
				return err
			}
			logger.Infof("Recorded run %v in %v", record.ID, *dbFile)
		}
	}
	return nil
}

// Works for both directories and gs:// locations
func outputPath(outputDir, name string) string {
	return strings.TrimSuffix(outputDir, "/") + "/" + name
}
