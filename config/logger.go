package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"payverify/helper"
)

// SetupLogfile tees log output to stdout and a weekly file under dir. The
// returned file should be closed on shutdown.
func SetupLogfile(dir, level string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	now := time.Now()
	year, month, _ := now.Date()
	_, week := now.ISOWeek()

	name := filepath.Join(dir, fmt.Sprintf("payverify-%d-%02d-week%d.log", year, month, week))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	helper.SetupLogger(level, io.MultiWriter(os.Stdout, f))
	helper.Info("Logging initialized: %s", name)
	return f, nil
}
