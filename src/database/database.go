package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jotbill/jotbill-server/src/logger"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB is the live database handle. It is swapped atomically only by
// RebuildEmpty; everything else treats it as read-only.
var DB *sql.DB

var (
	mu         sync.Mutex
	activePath string
)

// InitDB opens (creating if absent) the database at path and runs all
// pending migrations and backfills. Repeated calls return the already
// open handle; concurrent callers never race-create duplicate handles.
func InitDB(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if DB != nil {
		return nil
	}
	db, err := open(path)
	if err != nil {
		return err
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return err
	}
	Backfill(db)
	DB = db
	activePath = path
	logger.L.Info("Database opened with WAL mode, busy_timeout and foreign_keys enabled", "path", path)
	return nil
}

func open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}
	// Limit open connections to 1 for SQLite to avoid locking issues.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Migrate applies all pending schema migrations, embedded in the binary.
func Migrate(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create sqlite migration driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not read embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migration instance creation failed: %w", err)
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.L.Info("No new database migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	logger.L.Info("Database migrations applied successfully")
	return nil
}

// backfillStep is one named, idempotent data repair run after schema
// migrations. A step fixes records one by one and skips rows it cannot
// read or write; it must never prevent the store from opening.
type backfillStep struct {
	name string
	run  func(db *sql.DB) (fixed int, err error)
}

var backfillSteps = []backfillStep{
	{name: "default-mood", run: backfillMood},
	{name: "default-original-currency", run: backfillOriginalCurrency},
}

// Backfill runs every data backfill step in order, best effort.
func Backfill(db *sql.DB) {
	for _, step := range backfillSteps {
		fixed, err := step.run(db)
		if err != nil {
			logger.L.Warn("Data backfill step failed, continuing", "step", step.name, "error", err)
			continue
		}
		if fixed > 0 {
			logger.L.Info("Data backfill step applied", "step", step.name, "records", fixed)
		}
	}
}

func backfillMood(db *sql.DB) (int, error) {
	rows, err := db.Query(`SELECT id FROM transactions WHERE mood IS NULL OR mood = ''`)
	if err != nil {
		return 0, err
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return 0, err
	}
	fixed := 0
	for _, id := range ids {
		if _, err := db.Exec(`UPDATE transactions SET mood = 'neutral' WHERE id = ?`, id); err != nil {
			logger.L.Warn("Skipping un-migratable transaction", "step", "default-mood", "id", id, "error", err)
			continue
		}
		fixed++
	}
	return fixed, nil
}

func backfillOriginalCurrency(db *sql.DB) (int, error) {
	rows, err := db.Query(`SELECT id FROM transactions WHERE original_currency IS NULL OR original_currency = ''`)
	if err != nil {
		return 0, err
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return 0, err
	}
	fixed := 0
	for _, id := range ids {
		_, err := db.Exec(`UPDATE transactions
			SET original_currency = 'CNY', original_amount = amount, exchange_rate = '1'
			WHERE id = ?`, id)
		if err != nil {
			logger.L.Warn("Skipping un-migratable transaction", "step", "default-original-currency", "id", id, "error", err)
			continue
		}
		fixed++
	}
	return fixed, nil
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			logger.L.Warn("Skipping unreadable row during backfill", "error", err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RebuildEmpty discards the entire store and reinitializes it empty.
// A fresh database file is prepared and migrated first; only on success
// is the live handle swapped, so a failure leaves the old data intact.
// When the old file cannot be removed the store switches to a fresh
// namespace instead, mirroring a blocked delete on the old one.
func RebuildEmpty() error {
	mu.Lock()
	defer mu.Unlock()
	if DB == nil {
		return errors.New("database is not initialized")
	}

	newPath := activePath
	if err := DB.Close(); err != nil {
		logger.L.Warn("Error closing database before rebuild", "error", err)
	}
	DB = nil

	if err := removeDatabaseFiles(activePath); err != nil {
		// Old namespace cannot be dropped cleanly; switch to a new one.
		newPath = fmt.Sprintf("%s.%d", activePath, time.Now().UnixMilli())
		logger.L.Warn("Could not remove old database, switching namespace", "old", activePath, "new", newPath, "error", err)
	}

	db, err := open(newPath)
	if err != nil {
		return fmt.Errorf("rebuild failed to open fresh database: %w", err)
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return fmt.Errorf("rebuild failed to migrate fresh database: %w", err)
	}
	DB = db
	activePath = newPath
	logger.L.Info("Database rebuilt empty", "path", newPath)
	return nil
}

func removeDatabaseFiles(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			logger.L.Debug("Could not remove sqlite sidecar file", "file", path+suffix, "error", err)
		}
	}
	return nil
}
