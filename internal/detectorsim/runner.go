package detectorsim

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/proctorkit/vigil/pkg/logger"
)

// sessionResult captures the outcome of one simulated session.
type sessionResult struct {
	sessionID string
	recorded  map[string]int
	report    reportResponse
	err       error
}

// Run executes the complete detector simulation: create sessions, drive the
// simulated detection pipeline against each one, close them, and verify the
// reported scores against the locally predicted ones.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	logger.Get().Info(ctx, "starting detector simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("sessions", config.Sessions),
		logger.Int("ticks", config.Ticks),
		logger.String("tickStep", config.TickStep.String()),
		logger.Int("workers", config.Workers),
		logger.Int64("seed", seed),
	)

	client := newHTTPClient(config.Timeout)

	if err := checkServiceHealth(ctx, client, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	results, err := driveSessions(ctx, client, config, seed, stats)
	if err != nil {
		return fmt.Errorf("session simulation failed: %w", err)
	}

	if err := verifyResults(ctx, results, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *httpClient, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	resp, err := client.get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if err := decodeResponse(resp, nil); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// driveSessions runs the configured number of sessions through a pool of
// concurrent drivers.
func driveSessions(ctx context.Context, client *httpClient, config *Config, seed int64, stats *Stats) ([]sessionResult, error) {
	var (
		submitted  int64
		recorded   int64
		suppressed int64
		failed     int64
	)

	jobs := make(chan int, config.Sessions)
	results := make([]sessionResult, config.Sessions)
	var wg sync.WaitGroup

	workerCount := config.Workers
	if workerCount > config.Sessions {
		workerCount = config.Sessions
	}

	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobs {
				select {
				case <-ctx.Done():
					results[idx] = sessionResult{err: ctx.Err()}
					continue
				default:
				}

				// Each session gets its own deterministic stream.
				rng := rand.New(rand.NewSource(seed + int64(idx)))
				result := runSession(ctx, client, config, rng, idx,
					&submitted, &recorded, &suppressed, &failed)
				results[idx] = result

				if config.Verbose {
					logger.Get().Info(ctx, "session simulated",
						logger.String("sessionID", result.sessionID),
						logger.Int("worker", workerID),
					)
				}
			}
		}(w)
	}

	for i := 0; i < config.Sessions; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		stats.SessionsCreated++
		stats.SessionsClosed++
		stats.ReportsRetrieved++
	}

	stats.EventsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.EventsRecorded = int(atomic.LoadInt64(&recorded))
	stats.EventsSuppressed = int(atomic.LoadInt64(&suppressed))
	stats.EventsFailed = int(atomic.LoadInt64(&failed))

	return results, nil
}

// runSession simulates one full proctoring session against the service.
func runSession(ctx context.Context, client *httpClient, config *Config, rng *rand.Rand, idx int, submitted, recorded, suppressed, failed *int64) sessionResult {
	subject := "sim-candidate-" + strconv.Itoa(idx)

	session, err := client.createSession(ctx, config.BaseURL, subject)
	if err != nil {
		return sessionResult{err: fmt.Errorf("create session for %s: %w", subject, err)}
	}

	det := newDetector(rng)
	counts := make(map[string]int)

	// Simulated clock; detections within a tick share one timestamp, which
	// the service accepts since equal timestamps do not regress.
	ts := time.Now().UTC()
	for tick := 0; tick < config.Ticks; tick++ {
		for _, d := range det.tick(ts) {
			atomic.AddInt64(submitted, 1)

			outcome, err := client.submitDetection(ctx, config.BaseURL, session.SessionID, d)
			switch outcome {
			case "recorded":
				atomic.AddInt64(recorded, 1)
				counts[d.Kind]++
			case "suppressed":
				atomic.AddInt64(suppressed, 1)
			default:
				atomic.AddInt64(failed, 1)
				logger.Get().Warn(ctx, "detection rejected",
					logger.String("sessionID", session.SessionID),
					logger.String("kind", d.Kind),
					logger.Error(err),
				)
			}
		}
		ts = ts.Add(config.TickStep)
	}

	if err := client.closeSession(ctx, config.BaseURL, session.SessionID); err != nil {
		return sessionResult{sessionID: session.SessionID, err: err}
	}

	report, err := client.fetchReport(ctx, config.BaseURL, session.SessionID)
	if err != nil {
		return sessionResult{sessionID: session.SessionID, err: err}
	}

	return sessionResult{
		sessionID: session.SessionID,
		recorded:  counts,
		report:    report,
	}
}

// verifyResults compares each reported score against the locally predicted
// one. Only detections acknowledged as recorded count toward the prediction,
// so the check holds with or without a debounce window configured.
func verifyResults(ctx context.Context, results []sessionResult, stats *Stats) error {
	logger.Get().Info(ctx, "verifying reported scores", logger.Int("sessions", len(results)))

	for _, r := range results {
		want := expectedScore(r.recorded)
		if r.report.Score != want {
			stats.ScoreMismatches++
			logger.Get().Error(ctx, "score mismatch",
				logger.String("sessionID", r.sessionID),
				logger.Int("reported", r.report.Score),
				logger.Int("expected", want),
			)
			continue
		}
		if r.report.Provisional {
			stats.ScoreMismatches++
			logger.Get().Error(ctx, "closed session reported provisional score",
				logger.String("sessionID", r.sessionID))
		}
	}

	if stats.ScoreMismatches > 0 {
		return fmt.Errorf("%d of %d sessions reported unexpected scores", stats.ScoreMismatches, len(results))
	}

	logger.Get().Info(ctx, "all reported scores match expectations")
	return nil
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(stats *Stats) {
	var eventsPerSecond float64
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("sessionsCreated", stats.SessionsCreated),
		logger.Int("sessionsClosed", stats.SessionsClosed),
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("eventsRecorded", stats.EventsRecorded),
		logger.Int("eventsSuppressed", stats.EventsSuppressed),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int("reportsRetrieved", stats.ReportsRetrieved),
		logger.Int("scoreMismatches", stats.ScoreMismatches),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
