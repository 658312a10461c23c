package rundb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE run(
			id INTEGER PRIMARY KEY,
			created_at INT NOT NULL,
			video TEXT NOT NULL,
			rate_per_second INT NOT NULL,
			start_second REAL NOT NULL,
			end_second REAL,
			frames_sampled INT NOT NULL,
			frames_failed INT NOT NULL,
			seconds_analyzed INT NOT NULL,
			results_artifact TEXT NOT NULL,
			summary_artifact TEXT,
			table_artifact TEXT
		);

		CREATE INDEX idx_run_created_at ON run (created_at);
	`))

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		ALTER TABLE run ADD COLUMN average_face_confidence REAL;
		ALTER TABLE run ADD COLUMN most_common_emotion TEXT;
	`))

	return migs
}
