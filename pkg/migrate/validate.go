package migrate

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"go.uber.org/multierr"
)

const versionLayout = "20060102150405"

var fileNameRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir runs ValidateFS against a directory on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS checks every top-level .sql file: the name must be
// <YYYYMMDDHHMMSS>_<slug>.sql with a unique version, the Up section must come
// before the Down section, and StatementBegin/StatementEnd must pair up inside
// a section. All problems are reported together.
func ValidateFS(fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	if len(names) == 0 {
		return errors.New("no migrations found")
	}

	var errs error
	seen := make(map[string]string, len(names))
	for _, name := range names {
		m := fileNameRe.FindStringSubmatch(name)
		if m == nil {
			errs = multierr.Append(errs, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name))
			continue
		}
		version := m[1]
		if _, err := time.Parse(versionLayout, version); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("migration %q: version is not a timestamp", name))
		}
		if prev, ok := seen[version]; ok {
			errs = multierr.Append(errs, fmt.Errorf("duplicate migration version %s in %q and %q", version, prev, name))
		}
		seen[version] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("read %q: %w", name, err))
			continue
		}
		if err := checkAnnotations(string(body)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("migration %q: %w", name, err))
		}
	}
	return errs
}

func checkAnnotations(body string) error {
	var (
		up, down bool
		open     int
	)
	scanner := bufio.NewScanner(strings.NewReader(body))
	for line := 1; scanner.Scan(); line++ {
		directive, ok := strings.CutPrefix(strings.TrimSpace(scanner.Text()), "-- +goose ")
		if !ok {
			continue
		}
		switch strings.TrimSpace(directive) {
		case "Up":
			if up || down {
				return fmt.Errorf("line %d: unexpected Up section", line)
			}
			up = true
		case "Down":
			if !up || down {
				return fmt.Errorf("line %d: Down section must follow a single Up section", line)
			}
			if open > 0 {
				return fmt.Errorf("line %d: StatementBegin left open in Up section", line)
			}
			down = true
		case "StatementBegin":
			if open > 0 {
				return fmt.Errorf("line %d: nested StatementBegin", line)
			}
			open++
		case "StatementEnd":
			if open == 0 {
				return fmt.Errorf("line %d: StatementEnd without StatementBegin", line)
			}
			open--
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	switch {
	case !up:
		return errors.New(`missing "-- +goose Up"`)
	case !down:
		return errors.New(`missing "-- +goose Down"`)
	case open > 0:
		return errors.New("StatementBegin left open in Down section")
	}
	return nil
}
