package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/krewdev/SealevelStudio4-sub007/internal/storage/clickhouse"
)

// RunClickhouseMigrations applies all embedded SQL files in lexical
// order. ClickHouse rejects multi-statement execs, so each file holds a
// single statement.
func RunClickhouseMigrations(ctx context.Context, conn *clickhouse.Conn) error {
	files, err := listSQL(ClickhouseFS, "clickhouse")
	if err != nil {
		return fmt.Errorf("read embedded clickhouse migrations: %w", err)
	}

	for _, file := range files {
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		stmt := stripSQLComments(string(data))
		if stmt == "" {
			continue
		}
		if err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}

	return nil
}

// stripSQLComments removes line comments so a file reduces to its one
// statement.
func stripSQLComments(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
