package sqlstore

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/jacl-coder/ForBattle-Server/pkg/db"
)

// dialect 处理 PostgreSQL 与 SQLite 之间的语法差异
// 语句统一按 PostgreSQL 书写，SQLite 下改写占位符、GREATEST 与行锁
type dialect struct {
	driver string
}

func (d dialect) rewrite(query string) string {
	if d.driver != db.DriverSQLite {
		return query
	}
	query = strings.ReplaceAll(query, "GREATEST(", "max(")
	query = strings.ReplaceAll(query, " FOR UPDATE", "")

	// $N -> ?N
	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			b.WriteByte('?')
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// isUniqueViolation 判断唯一约束冲突
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}
