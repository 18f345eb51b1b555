package internal

import (
	"database/sql"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	workload    TEXT NOT NULL,
	timer       TEXT NOT NULL,
	iteration   INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL,
	start       TEXT NOT NULL,
	elapsed_ns  INTEGER NOT NULL,
	final_count INTEGER NOT NULL,
	rate        REAL NOT NULL,
	unit        TEXT NOT NULL,
	error       TEXT NOT NULL,
	go_version  TEXT NOT NULL,
	kernel      TEXT NOT NULL
)`

// Store keeps run results in a SQLite database so results of several
// benchmark sessions can be compared.
type Store struct {
	db *sql.DB
}

func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Insert records meta. Inserting the same run twice replaces the row.
func (s *Store) Insert(meta *RunMeta) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID,
		meta.Name,
		meta.Workload,
		meta.Timer,
		meta.Iteration,
		int64(meta.RunConfig.Duration),
		meta.Start.Format(time.RFC3339Nano),
		int64(meta.RunResult.Duration),
		int64(meta.FinalCount),
		meta.Rate,
		meta.Unit,
		meta.Error,
		meta.Env.GoVersion,
		meta.Env.KernelVersion,
	)
	return err
}

// StoredRun is a row of the runs table.
type StoredRun struct {
	ID         string
	Name       string
	Workload   string
	Timer      string
	FinalCount uint64
	Rate       float64
	Unit       string
}

// Runs returns all stored runs ordered by start time.
func (s *Store) Runs() ([]StoredRun, error) {
	rows, err := s.db.Query(`SELECT id, name, workload, timer, final_count, rate, unit FROM runs ORDER BY start`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []StoredRun
	for rows.Next() {
		var r StoredRun
		var count int64
		if err := rows.Scan(&r.ID, &r.Name, &r.Workload, &r.Timer, &count, &r.Rate, &r.Unit); err != nil {
			return nil, err
		}
		r.FinalCount = uint64(count)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
