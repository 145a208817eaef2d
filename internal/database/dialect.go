package database

import (
	"database/sql"
	"regexp"
	"strconv"

	migratedb "github.com/golang-migrate/migrate/v4/database"
)

// Dialect defines the interface for database-specific operations
type Dialect interface {
	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN returns the data source name for the connection
	DSN(config DialectConfig) (string, error)

	// RewriteQuery converts placeholder syntax if needed (e.g., ? to $1 for postgres)
	RewriteQuery(query string) string

	// ConfigureConnection applies any database-specific connection settings
	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir returns the subdirectory name for migrations (e.g., "sqlite", "postgres")
	MigrationsSubdir() string

	// MigrateDriver wraps db for golang-migrate
	MigrateDriver(db *sql.DB) (migratedb.Driver, error)

	// IsUniqueViolation reports whether err is a unique or primary key violation
	IsUniqueViolation(err error) bool

	// ForUpdate returns the row locking suffix for SELECT, empty where the
	// database serializes writers on its own
	ForUpdate() string
}

// DialectConfig holds configuration for database connection
type DialectConfig struct {
	// For SQLite
	Path string

	// For PostgreSQL/MySQL
	URL string
}

var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}
