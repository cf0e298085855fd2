package migrate

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pressly/goose/v3"
)

var sqlFileName = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const (
	annotationUp    = "-- +goose Up"
	annotationDown  = "-- +goose Down"
	annotationBegin = "-- +goose StatementBegin"
	annotationEnd   = "-- +goose StatementEnd"
)

// ValidateDir checks file naming and annotations for every .sql file in dir,
// then has goose collect them so ordering problems surface before a deploy.
// An empty directory is valid.
func ValidateDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	versions := map[string]string{}
	found := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".sql" {
			continue
		}
		found++

		m := sqlFileName.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("%s: expected YYYYMMDDHHMMSS_name.sql", name)
		}
		if prev, dup := versions[m[1]]; dup {
			return fmt.Errorf("version %s used by both %s and %s", m[1], prev, name)
		}
		versions[m[1]] = name

		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := checkAnnotations(body); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if found == 0 {
		return nil
	}

	if _, err := goose.CollectMigrations(dir, 0, goose.MaxVersion); err != nil {
		return fmt.Errorf("collect migrations: %w", err)
	}
	return nil
}

// checkAnnotations requires an Up section before a Down section, with
// statement blocks opened and closed inside each.
func checkAnnotations(body []byte) error {
	var sawUp, sawDown, inBlock bool
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for line := 1; scanner.Scan(); line++ {
		switch strings.TrimSpace(scanner.Text()) {
		case annotationUp:
			if sawUp || sawDown {
				return fmt.Errorf("line %d: unexpected %q", line, annotationUp)
			}
			sawUp = true
		case annotationDown:
			if !sawUp {
				return fmt.Errorf("line %d: %q before %q", line, annotationDown, annotationUp)
			}
			if inBlock {
				return fmt.Errorf("line %d: statement block still open", line)
			}
			sawDown = true
		case annotationBegin:
			if inBlock {
				return fmt.Errorf("line %d: nested statement block", line)
			}
			inBlock = true
		case annotationEnd:
			if !inBlock {
				return fmt.Errorf("line %d: statement block closed without opening", line)
			}
			inBlock = false
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	switch {
	case !sawUp:
		return fmt.Errorf("missing %q", annotationUp)
	case !sawDown:
		return fmt.Errorf("missing %q", annotationDown)
	case inBlock:
		return errors.New("statement block never closed")
	}
	return nil
}
