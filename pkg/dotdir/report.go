package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	reportFile = "last_report.json"
)

// SaveLastReport persists a report as .splice/last_report.json, replacing
// any earlier one.
func (m *Manager) SaveLastReport(report any, overrideDir string) error {
	if report == nil {
		return errors.New("cannot save nil report")
	}

	dir, err := m.Ensure(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	path := filepath.Join(dir, reportFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	return nil
}

// LoadLastReport decodes the saved report into out. It returns false, nil
// when no report has been saved.
func (m *Manager) LoadLastReport(out any, overrideDir string) (bool, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return false, err
	}
	if dir == "" {
		return false, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, reportFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("reading report: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("parsing report: %w", err)
	}

	return true, nil
}

// ClearLastReport removes the saved report. Returns nil if there is none.
func (m *Manager) ClearLastReport(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return err
	}

	if err := os.Remove(filepath.Join(dir, reportFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing report: %w", err)
	}

	return nil
}
