// Package db is the local SQLite store: the persisted session row and the project cache.
package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Memory is the path of a private in-memory database.
const Memory = ":memory:"

var (
	Db   *gorm.DB // shared handle opened by InitDB
	Path string   // database file, resolved by ConfigurePath when empty
)

// ConfigurePath resolves the database file location.
// Precedence: QOE_HOME, then XDG_DATA_HOME/qoe, then $HOME/.qoe.
func ConfigurePath() error {
	if dir := os.Getenv("QOE_HOME"); dir != "" {
		Path = filepath.Join(dir, "qoe.db")
		return nil
	}
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		Path = filepath.Join(dir, "qoe", "qoe.db")
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to resolve home directory: %w", err)
	}
	Path = filepath.Join(home, ".qoe", "qoe.db")
	return nil
}

// InitDB opens the database at Path into Db.
func InitDB() error {
	if Path == "" {
		if err := ConfigurePath(); err != nil {
			return err
		}
	}
	gdb, err := Open(Path)
	if err != nil {
		return err
	}
	Db = gdb
	log.Info().Str("path", Path).Msg("Database initialized successfully")
	return nil
}

// GetDB returns the shared database handle.
func GetDB() *gorm.DB { return Db }

// Open opens (creating if needed) and migrates the database at path.
// Memory gives a database private to the returned handle.
func Open(path string) (*gorm.DB, error) {
	dsn := path
	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to create database directory")
			return nil, err
		}
		// Several qoe processes may share the file.
		dsn = path + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(gormLogLevel())})
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to open database")
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if path == Memory {
		// Every connection to ":memory:" is a separate database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := Migrate(gdb); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return gdb, nil
}

// Migrate creates or updates every table the client uses on the given handle.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&Setting{}, &Project{}); err != nil {
		log.Error().Err(err).Msg("Failed to auto-migrate database")
		return err
	}
	return nil
}

// gormLogLevel keeps GORM quiet unless zerolog debugging is enabled.
func gormLogLevel() logger.LogLevel {
	if level := zerolog.GlobalLevel(); level == zerolog.Disabled || level > zerolog.DebugLevel {
		return logger.Silent
	}
	return logger.Info
}

// Close closes the handle's connection pool.
func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Error().Err(err).Msg("Failed to get raw database connection")
		return err
	}
	return sqlDB.Close()
}

// CloseDB closes the shared handle.
func CloseDB() error {
	err := Close(Db)
	Db = nil
	return err
}
