// Package reporting persists QA run artifacts as JSON files.
package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/droidmind/droidpilot/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FileReporter writes one JSON file per QA run into a directory.
type FileReporter struct {
	dir    string
	logger *zap.Logger
}

// NewFileReporter builds a reporter targeting dir, creating it if needed.
func NewFileReporter(dir string, logger *zap.Logger) (*FileReporter, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}
	return &FileReporter{dir: dir, logger: logger.Named("reporting")}, nil
}

// Write serializes the run and returns the path it was written to.
func (r *FileReporter) Write(run schemas.TestRun) (string, error) {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize QA report: %w", err)
	}
	path := filepath.Join(r.dir, fmt.Sprintf("qa-report-%s.json", run.RunID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write QA report: %w", err)
	}
	r.logger.Info("QA report written",
		zap.String("path", path),
		zap.Bool("overall_passed", run.OverallPassed))
	return path, nil
}
