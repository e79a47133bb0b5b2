package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// Execer runs one statement
type Execer interface {
	Exec(ctx context.Context, stmt string) error
}

// ExecFunc adapts a plain function to Execer
type ExecFunc func(ctx context.Context, stmt string) error

func (f ExecFunc) Exec(ctx context.Context, stmt string) error { return f(ctx, stmt) }

// Run applies every embedded .sql file of dir in lexical order, one statement at a time.
// Statements must be idempotent and must not carry semicolons inside literals
func Run(ctx context.Context, fsys fs.FS, dir string, db Execer) error {
	files, err := Files(fsys, dir)
	if err != nil {
		return err
	}

	for _, file := range files {
		data, err := fs.ReadFile(fsys, dir+"/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		for _, stmt := range Split(string(data)) {
			if err = db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", file, err)
			}
		}
	}
	return nil
}

func Files(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// Split drops -- comment lines and splits on semicolons
func Split(input string) []string {
	var filtered []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		filtered = append(filtered, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(filtered, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
