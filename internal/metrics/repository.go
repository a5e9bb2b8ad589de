package metrics

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"codeberg.org/mutker/gpuburn/internal/errors"
	"codeberg.org/mutker/gpuburn/internal/logger"

	_ "github.com/mattn/go-sqlite3"
)

type sqliteRepository struct {
	db *sql.DB
	mu sync.Mutex
}

func NewRepository(cfg Config) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(errors.ErrInvalidDBPath)
	}

	logger.Debug().Msgf("Initializing metrics repository at: %s", cfg.DBPath)

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(errors.ErrStorageInit, err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal=WAL")
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrStorageInit, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, errFactory.Wrap(errors.ErrStorageInit, err)
	}

	return &sqliteRepository{
		db: db,
	}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS burn_samples (
            timestamp INTEGER NOT NULL,
            device INTEGER NOT NULL,
            completed INTEGER,
            gflops REAL,
            window_errors INTEGER,
            temperature INTEGER,
            PRIMARY KEY (timestamp, device)
        )
    `)

	return err
}

func (r *sqliteRepository) Store(sample *Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
        INSERT INTO burn_samples (
            timestamp, device, completed, gflops, window_errors, temperature
        ) VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(timestamp, device) DO UPDATE SET
            completed = excluded.completed,
            gflops = excluded.gflops,
            window_errors = excluded.window_errors,
            temperature = excluded.temperature
    `,
		sample.Timestamp.UnixNano(),
		sample.Device,
		sample.Completed,
		sample.Gflops,
		sample.WindowErrors,
		sample.Temperature,
	)
	if err != nil {
		return errors.New().Wrap(errors.ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.Close(); err != nil {
		return errors.New().Wrap(errors.ErrStorageClose, err)
	}
	return nil
}
