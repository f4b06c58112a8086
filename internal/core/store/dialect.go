package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between the supported drivers.
// Queries are written with ? placeholders and rebound per dialect.
type Dialect struct {
	Name string
}

func dialectFor(driver string) (Dialect, error) {
	switch driver {
	case driverLibsql, driverMySQL, driverPostgres:
		return Dialect{Name: driver}, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported store driver: %s", driver)
	}
}

// Rebind rewrites ? placeholders to $1..$n for postgres. Placeholders inside
// single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d.Name != driverPostgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for _, r := range query {
		switch {
		case r == '\'':
			quoted = !quoted
			b.WriteRune(r)
		case r == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Upsert returns the conflict clause appended to an INSERT so existing rows
// identified by keys get the update columns overwritten.
func (d Dialect) Upsert(keys []string, update []string) string {
	sets := make([]string, 0, len(update))
	if d.Name == driverMySQL {
		for _, col := range update {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", col, col))
		}
		return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}

	for _, col := range update {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	return fmt.Sprintf("ON CONFLICT(%s) DO UPDATE SET %s", strings.Join(keys, ", "), strings.Join(sets, ", "))
}

// autoIncrementPK is the column definition of a surrogate integer key.
func (d Dialect) autoIncrementPK() string {
	switch d.Name {
	case driverMySQL:
		return "BIGINT AUTO_INCREMENT PRIMARY KEY"
	case driverPostgres:
		return "BIGSERIAL PRIMARY KEY"
	default:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

// keyType is a string column usable in keys and indexes. MySQL cannot index
// unbounded TEXT.
func (d Dialect) keyType() string {
	if d.Name == driverMySQL {
		return "VARCHAR(191)"
	}
	return "TEXT"
}

// docType holds raw JSON documents.
func (d Dialect) docType() string {
	if d.Name == driverMySQL {
		return "LONGTEXT"
	}
	return "TEXT"
}

func (d Dialect) int64Type() string {
	if d.Name == driverLibsql {
		return "INTEGER"
	}
	return "BIGINT"
}

// indexes returns CREATE INDEX statements. MySQL has no IF NOT EXISTS for
// indexes so its indexes are declared inline in CREATE TABLE instead.
func (d Dialect) indexes(stmts ...string) []string {
	if d.Name == driverMySQL {
		return nil
	}
	return stmts
}

func (d Dialect) inlineIndex(def string) string {
	if d.Name != driverMySQL {
		return ""
	}
	return ",\n\t\t" + def
}
