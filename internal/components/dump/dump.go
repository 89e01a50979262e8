// Package dump keeps copies of page html around so broken selectors can be
// debugged after the fact.
package dump

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"finscrape/internal/components/telemetry"
)

const report_dump_write = "dump.write"

// Output receives named snapshots.
type Output interface {
	Write(id string, contents string)
}

// Discard drops every snapshot.
type Discard struct{}

func (Discard) Write(string, string) {}

type FilesystemOutput struct {
	directory string
	tel       telemetry.API
}

// NewFilesystemOutput writes snapshots into dir, creating it if needed. Existing
// snapshots are kept so consecutive runs of a watcher can be compared.
func NewFilesystemOutput(dir string, tel telemetry.API) (FilesystemOutput, error) {
	err := os.MkdirAll(dir, 0o700)
	if err != nil {
		return FilesystemOutput{}, fmt.Errorf("create dump directory: %w", err)
	}
	return FilesystemOutput{directory: dir, tel: tel}, nil
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, id)
}

func (o FilesystemOutput) Write(id string, contents string) {
	path := filepath.Join(o.directory, sanitize(id))
	err := os.WriteFile(path, []byte(contents), 0o600)
	if err != nil {
		o.tel.ReportWarning(report_dump_write, err, id)
	}
}
