package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/proctorkit/vigil/internal/detectorsim"
)

// Default configuration constants.
const (
	defaultSessions   = 20
	defaultTicks      = 300
	defaultTickStep   = time.Second
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 30 * time.Second
	defaultSimTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		sessions = flag.Int("sessions", defaultSessions, "Number of sessions to simulate")
		ticks    = flag.Int("ticks", defaultTicks, "Detector ticks per session")
		step     = flag.Duration("step", defaultTickStep, "Simulated time between ticks")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent session drivers")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed     = flag.Int64("seed", 0, "Random seed for reproducible runs (0 = derive from clock)")
		logFile  = flag.String("log", "", "Log file for simulation output (default: sim_log_TIMESTAMP.log)")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		detectorsim.ShowHelp()
		return
	}

	if err := detectorsim.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultSimTimeout)
	defer cancel()

	config := &detectorsim.Config{
		BaseURL:  *baseURL,
		Sessions: *sessions,
		Ticks:    *ticks,
		TickStep: *step,
		Workers:  *workers,
		Timeout:  *timeout,
		Seed:     *seed,
		LogFile:  *logFile,
		Verbose:  *verbose,
	}

	if err := detectorsim.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}
