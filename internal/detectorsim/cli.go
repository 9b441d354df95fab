package detectorsim

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/proctorkit/vigil/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "sim_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the detector simulation tool.
func ShowHelp() {
	os.Stdout.WriteString(`Vigil Detector Simulator
========================

Drives simulated proctoring sessions against a running vigil service and
verifies the reported integrity scores.

Usage:
  go run cmd/detector-sim/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -sessions int
        Number of sessions to simulate (default 20)
  -ticks int
        Detector ticks per session (default 300)
  -step duration
        Simulated time between ticks (default 1s)
  -workers int
        Number of concurrent session drivers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -seed int
        Random seed for reproducible runs (default: derived from the clock)
  -log string
        Log file for simulation output (default: sim_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate with default settings
  go run cmd/detector-sim/main.go

  # A longer exam with more concurrent drivers
  go run cmd/detector-sim/main.go -sessions 100 -ticks 3600 -workers 16

  # Reproducible run
  go run cmd/detector-sim/main.go -seed 42
`)
}
