package report

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sw965/kaithy/deepq"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	variant TEXT NOT NULL,
	estimator TEXT NOT NULL,
	started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	finished_at TIMESTAMP,
	steps INTEGER,
	best_wins INTEGER,
	best_step INTEGER
);

CREATE TABLE IF NOT EXISTS progress (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	steps INTEGER NOT NULL,
	episodes INTEGER NOT NULL,
	mean_reward REAL NOT NULL,
	exploring INTEGER NOT NULL,
	loss REAL NOT NULL,
	elapsed_ms INTEGER NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS validations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	step INTEGER NOT NULL,
	episodes INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	draws INTEGER NOT NULL,
	saved BOOLEAN NOT NULL,
	elapsed_ms INTEGER NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(id)
);

CREATE INDEX IF NOT EXISTS idx_progress_run ON progress(run_id);
CREATE INDEX IF NOT EXISTS idx_validations_run ON validations(run_id);
`

// SQLiteStore は訓練の記録を SQLite に残します。行は Progress.RunID で run に紐付きます。
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// BeginRun は run の行を作ります。Progress や Validation より前に呼びます。
func (s *SQLiteStore) BeginRun(runID, variant, estimatorKind string) error {
	_, err := s.db.Exec(`INSERT INTO runs (id, variant, estimator) VALUES (?, ?, ?)`, runID, variant, estimatorKind)
	return err
}

func (s *SQLiteStore) FinishRun(result deepq.Result) error {
	_, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, steps = ?, best_wins = ?, best_step = ? WHERE id = ?`,
		time.Now(), result.Steps, result.Best.Wins, result.Best.Step, result.RunID,
	)
	return err
}

func (s *SQLiteStore) Progress(p deepq.Progress) error {
	_, err := s.db.Exec(
		`INSERT INTO progress (run_id, steps, episodes, mean_reward, exploring, loss, elapsed_ms) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.RunID, p.Steps, p.Episodes, p.MeanReward, p.Exploring, p.Loss, p.Elapsed.Milliseconds(),
	)
	return err
}

func (s *SQLiteStore) Validation(v deepq.ValidationReport) error {
	_, err := s.db.Exec(
		`INSERT INTO validations (run_id, step, episodes, wins, losses, draws, saved, elapsed_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.RunID, v.Step, v.Episodes, v.Result.Wins, v.Result.Losses, v.Result.Draws, v.Saved, v.Elapsed.Milliseconds(),
	)
	return err
}

type RunSummary struct {
	ID          string
	Variant     string
	Estimator   string
	Finished    bool
	Steps       int
	BestWins    int
	BestStep    int
	Progress    int
	Validations []deepq.ValidationResult
}

// Run は1つの run の記録を集計します。
func (s *SQLiteStore) Run(runID string) (RunSummary, error) {
	var (
		summary  RunSummary
		finished sql.NullTime
		steps    sql.NullInt64
		bestWins sql.NullInt64
		bestStep sql.NullInt64
	)
	err := s.db.QueryRow(
		`SELECT id, variant, estimator, finished_at, steps, best_wins, best_step FROM runs WHERE id = ?`, runID,
	).Scan(&summary.ID, &summary.Variant, &summary.Estimator, &finished, &steps, &bestWins, &bestStep)
	if err != nil {
		return RunSummary{}, fmt.Errorf("run %s: %w", runID, err)
	}
	summary.Finished = finished.Valid
	summary.Steps = int(steps.Int64)
	summary.BestWins = int(bestWins.Int64)
	summary.BestStep = int(bestStep.Int64)

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM progress WHERE run_id = ?`, runID).Scan(&summary.Progress); err != nil {
		return RunSummary{}, err
	}

	rows, err := s.db.Query(`SELECT wins, losses, draws FROM validations WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return RunSummary{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var r deepq.ValidationResult
		if err := rows.Scan(&r.Wins, &r.Losses, &r.Draws); err != nil {
			return RunSummary{}, err
		}
		summary.Validations = append(summary.Validations, r)
	}
	return summary, rows.Err()
}
