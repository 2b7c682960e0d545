package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"

	"pbjrag/internal/logging"
)

// Schema versions:
// v1: fragments (id, file, kind, tier, phase, epc, content, payload, embedding)
// v2: added start_line, end_line and content_hash
const CurrentSchemaVersion = 2

// Migration adds one column to an existing table.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations upgrade tables created by older versions in place.
var pendingMigrations = []Migration{
	{"fragments", "start_line", "INTEGER NOT NULL DEFAULT 0"},
	{"fragments", "end_line", "INTEGER NOT NULL DEFAULT 0"},
	{"fragments", "content_hash", "TEXT NOT NULL DEFAULT ''"},
}

// RunMigrations applies the pending column migrations and records the
// schema version in store_meta.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	applied := 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			logging.StoreDebug("Table missing, skipping migration: %s.%s", m.Table, m.Column)
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("migration %s.%s failed: %w", m.Table, m.Column, err)
		}
		logging.Store("Migration applied: added %s.%s", m.Table, m.Column)
		applied++
	}

	if applied > 0 {
		if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_fragments_hash ON fragments(content_hash)`); err != nil {
			return fmt.Errorf("failed to index content hashes: %w", err)
		}
	}
	if err := SetSchemaVersion(db, CurrentSchemaVersion); err != nil {
		return err
	}
	logging.StoreDebug("Schema migrations complete: applied=%d", applied)
	return nil
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		logging.StoreDebug("PRAGMA table_info(%s) failed: %v", table, err)
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

func tableExists(db *sql.DB, table string) bool {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
	if err != nil {
		logging.StoreDebug("Table existence check failed for %s: %v", table, err)
		return false
	}
	return count > 0
}

// GetSchemaVersion returns the recorded schema version, inferring it from
// the table layout for stores that predate version tracking.
func GetSchemaVersion(db *sql.DB) int {
	var v string
	if err := db.QueryRow(`SELECT value FROM store_meta WHERE key = 'schema_version'`).Scan(&v); err == nil {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	switch {
	case !tableExists(db, "fragments"):
		return 0
	case columnExists(db, "fragments", "content_hash"):
		return 2
	}
	return 1
}

// SetSchemaVersion records version in store_meta.
func SetSchemaVersion(db *sql.DB, version int) error {
	_, err := db.Exec(`INSERT OR REPLACE INTO store_meta (key, value) VALUES ('schema_version', ?)`, strconv.Itoa(version))
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// ComputeContentHash returns the hex SHA-256 of a fragment's content.
func ComputeContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
