package rundb

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/emotrack/pkg/emotion"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

// Run is one analysis of one video
type Run struct {
	ID                    int64       `gorm:"primaryKey" json:"id"`
	CreatedAt             dbh.IntTime `gorm:"autoCreateTime:false" json:"createdAt"`
	Video                 string      `json:"video"` // Name of the video, as given by the user
	RatePerSecond         int         `json:"ratePerSecond"`
	StartSecond           float64     `json:"startSecond"`
	EndSecond             *float64    `json:"endSecond"` // nil = end of video
	FramesSampled         int         `json:"framesSampled"`
	FramesFailed          int         `json:"framesFailed"`
	SecondsAnalyzed       int         `json:"secondsAnalyzed"`
	ResultsArtifact       string      `json:"resultsArtifact"`       // Name of the aggregation JSON in artifact storage
	SummaryArtifact       string      `json:"summaryArtifact"`       // Empty if no summary was written
	TableArtifact         string      `json:"tableArtifact"`         // Empty if no CSV was written
	AverageFaceConfidence float64     `json:"averageFaceConfidence"` // Copied from the summary
	MostCommonEmotion     string      `json:"mostCommonEmotion"`     // Copied from the summary
}

// SetSummary copies the headline numbers of the summary into the run
func (r *Run) SetSummary(s *emotion.RunSummary) {
	r.AverageFaceConfidence = s.AverageFaceConfidence
	r.MostCommonEmotion = s.MostCommonEmotion
}

// RunDB records the history of analysis runs
type RunDB struct {
	Log logs.Log
	DB  *gorm.DB
}

// Open or create the run DB
func Open(log logs.Log, config dbh.DBConfig) (*RunDB, error) {
	log.Infof("Opening run DB (%v)", config.LogSafeDescription())
	db, err := dbh.OpenDB(log, config, Migrations(log), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open run database: %w", err)
	}
	return &RunDB{
		Log: log,
		DB:  db,
	}, nil
}

// OpenSqlite opens or creates an sqlite run DB
func OpenSqlite(log logs.Log, dbFilename string) (*RunDB, error) {
	os.MkdirAll(filepath.Dir(dbFilename), 0777)
	return Open(log, dbh.MakeSqliteConfig(dbFilename))
}

// Record inserts a new run, and sets its ID
func (r *RunDB) Record(run *Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = dbh.MakeIntTime(time.Now())
	}
	return r.DB.Create(run).Error
}

// Update the artifact names and summary of an existing run
func (r *RunDB) Update(run *Run) error {
	return r.DB.Save(run).Error
}

func (r *RunDB) Get(id int64) (*Run, error) {
	run := Run{}
	if err := r.DB.First(&run, id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns the most recent runs, newest first
func (r *RunDB) List(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	runs := []Run{}
	if err := r.DB.Order("created_at DESC, id DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// Latest returns the most recent run
func (r *RunDB) Latest() (*Run, error) {
	runs, err := r.List(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &runs[0], nil
}
