package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	repository "github.com/proctorkit/vigil/internal/adapters/repository"
	service "github.com/proctorkit/vigil/internal/app"
	"github.com/proctorkit/vigil/internal/domain/model"
	"github.com/proctorkit/vigil/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

// captureLogger records warn lines so tests can assert on startup warnings.
type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) Debug(ctx context.Context, msg string, fields ...logger.Field) {}
func (l *captureLogger) Info(ctx context.Context, msg string, fields ...logger.Field)  {}
func (l *captureLogger) Error(ctx context.Context, msg string, fields ...logger.Field) {}
func (l *captureLogger) Named(name string) logger.Logger                               { return l }

func (l *captureLogger) Warn(ctx context.Context, msg string, fields ...logger.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := msg
	for _, f := range fields {
		line += fmt.Sprintf(" %s=%v", f.Key, f.Value)
	}
	l.lines = append(l.lines, line)
}

func (l *captureLogger) warned() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

// startService builds a started service over an in-memory store with a fixed
// clock and registers cleanup.
func startService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store := repository.NewMemStore(context.Background(), repository.WithClock(func() time.Time { return base }))

	all := append([]service.Option{
		service.WithStore(store),
		service.WithWorkerCount(2),
		service.WithQueueSize(64),
		service.WithClock(func() time.Time { return base.Add(time.Hour) }),
	}, opts...)

	svc := service.New(all...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

// waitForLiveTotal polls the live summary until the async tally catches up.
func waitForLiveTotal(t *testing.T, svc *service.Service, sessionID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		live, err := svc.Live(context.Background(), sessionID)
		if err == nil && live.TotalEvents >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("live tally for %s never reached %d events", sessionID, want)
}

func TestSessionLifecycle(t *testing.T) {
	Convey("Given a running service", t, func() {
		svc := startService(t)
		ctx := context.Background()

		Convey("When a session is created", func() {
			session, err := svc.CreateSession(ctx, "candidate-7")

			Convey("Then it should be open and retrievable", func() {
				So(err, ShouldBeNil)
				So(session.SessionID, ShouldNotBeEmpty)
				So(session.Subject, ShouldEqual, "candidate-7")
				So(session.Closed, ShouldBeFalse)

				got, err := svc.GetSession(ctx, session.SessionID)
				So(err, ShouldBeNil)
				So(got.SessionID, ShouldEqual, session.SessionID)
			})

			Convey("And closing it should mark it ended", func() {
				closed, err := svc.CloseSession(ctx, session.SessionID)
				So(err, ShouldBeNil)
				So(closed.Closed, ShouldBeTrue)
				So(closed.EndedAt, ShouldNotBeNil)
			})
		})

		Convey("When looking up an unknown session", func() {
			_, err := svc.GetSession(ctx, "nope")

			Convey("Then it should report not found", func() {
				So(errors.Is(err, repository.ErrSessionNotFound), ShouldBeTrue)
			})
		})

		Convey("When several sessions exist", func() {
			for _, subject := range []string{"a", "b", "c"} {
				_, err := svc.CreateSession(ctx, subject)
				So(err, ShouldBeNil)
			}

			Convey("Then listing should return all of them", func() {
				sessions, err := svc.ListSessions(ctx)
				So(err, ShouldBeNil)
				So(len(sessions), ShouldEqual, 3)
			})
		})
	})
}

func TestRecord(t *testing.T) {
	Convey("Given a running service with an open session", t, func() {
		svc := startService(t)
		ctx := context.Background()
		session, err := svc.CreateSession(ctx, "candidate-1")
		So(err, ShouldBeNil)
		ts := time.Date(2026, 3, 14, 9, 5, 0, 0, time.UTC)

		Convey("When recording a valid detection", func() {
			eventID, suppressed, err := svc.Record(ctx, session.SessionID, "FOCUS_LOST", 0.9, ts)

			Convey("Then it should be logged with a fresh event id", func() {
				So(err, ShouldBeNil)
				So(suppressed, ShouldBeFalse)
				So(eventID, ShouldNotBeEmpty)
			})
		})

		Convey("When the kind is unknown", func() {
			_, _, err := svc.Record(ctx, session.SessionID, "TELEPATHY", 0.9, ts)

			Convey("Then it should be rejected", func() {
				So(errors.Is(err, model.ErrInvalidEventKind), ShouldBeTrue)
			})
		})

		Convey("When the confidence is out of range", func() {
			_, _, err := svc.Record(ctx, session.SessionID, "FOCUS_LOST", 1.5, ts)

			Convey("Then it should be rejected", func() {
				So(errors.Is(err, model.ErrInvalidConfidence), ShouldBeTrue)
			})
		})

		Convey("When the session does not exist", func() {
			_, _, err := svc.Record(ctx, "missing", "FOCUS_LOST", 0.9, ts)

			Convey("Then it should report not found", func() {
				So(errors.Is(err, repository.ErrSessionNotFound), ShouldBeTrue)
			})
		})

		Convey("When the session is closed", func() {
			_, err := svc.CloseSession(ctx, session.SessionID)
			So(err, ShouldBeNil)

			_, _, err = svc.Record(ctx, session.SessionID, "FOCUS_LOST", 0.9, ts)

			Convey("Then the append should be refused", func() {
				So(errors.Is(err, repository.ErrSessionClosed), ShouldBeTrue)
			})
		})

		Convey("When a strictly older timestamp arrives", func() {
			_, _, err := svc.Record(ctx, session.SessionID, "FOCUS_LOST", 0.9, ts)
			So(err, ShouldBeNil)

			_, _, err = svc.Record(ctx, session.SessionID, "NO_FACE", 0.9, ts.Add(-time.Second))

			Convey("Then the log order should be protected", func() {
				So(errors.Is(err, repository.ErrTimestampOrder), ShouldBeTrue)
			})
		})
	})
}

func TestRecordDebounce(t *testing.T) {
	Convey("Given a service with a debounce window", t, func() {
		svc := startService(t, service.WithDebounceWindow(5*time.Second))
		ctx := context.Background()
		session, err := svc.CreateSession(ctx, "candidate-2")
		So(err, ShouldBeNil)
		ts := time.Date(2026, 3, 14, 9, 5, 0, 0, time.UTC)

		Convey("When the same kind repeats inside the window", func() {
			_, suppressed, err := svc.Record(ctx, session.SessionID, "FOCUS_LOST", 0.9, ts)
			So(err, ShouldBeNil)
			So(suppressed, ShouldBeFalse)

			_, suppressed, err = svc.Record(ctx, session.SessionID, "FOCUS_LOST", 0.9, ts.Add(time.Second))

			Convey("Then the repeat should be suppressed without error", func() {
				So(err, ShouldBeNil)
				So(suppressed, ShouldBeTrue)
			})

			Convey("And a different kind inside the window should pass", func() {
				_, suppressed, err := svc.Record(ctx, session.SessionID, "NO_FACE", 0.9, ts.Add(2*time.Second))
				So(err, ShouldBeNil)
				So(suppressed, ShouldBeFalse)
			})

			Convey("And the same kind after the window should pass", func() {
				_, suppressed, err := svc.Record(ctx, session.SessionID, "FOCUS_LOST", 0.9, ts.Add(6*time.Second))
				So(err, ShouldBeNil)
				So(suppressed, ShouldBeFalse)
			})
		})
	})
}

func TestReport(t *testing.T) {
	Convey("Given a session with a handful of detections", t, func() {
		svc := startService(t)
		ctx := context.Background()
		session, err := svc.CreateSession(ctx, "candidate-3")
		So(err, ShouldBeNil)

		ts := time.Date(2026, 3, 14, 9, 5, 0, 0, time.UTC)
		for i, kind := range []string{"NO_FACE", "FOCUS_LOST", "FOCUS_LOST", "PHONE_DETECTED"} {
			_, _, err := svc.Record(ctx, session.SessionID, kind, 0.9, ts.Add(time.Duration(i)*time.Second))
			So(err, ShouldBeNil)
		}

		Convey("When computing the report on the open session", func() {
			report, err := svc.Report(ctx, session.SessionID)

			Convey("Then deductions should sum against the ceiling", func() {
				So(err, ShouldBeNil)
				So(report.Score, ShouldEqual, 76) // 100 - 5 - 2*2 - 15
				So(report.Provisional, ShouldBeTrue)
				So(report.TotalEvents, ShouldEqual, 4)
				So(report.Counts["FOCUS_LOST"], ShouldEqual, 2)
				So(len(report.Events), ShouldEqual, 4)
			})
		})

		Convey("When the session is closed first", func() {
			_, err := svc.CloseSession(ctx, session.SessionID)
			So(err, ShouldBeNil)

			report, err := svc.Report(ctx, session.SessionID)

			Convey("Then the report should be final", func() {
				So(err, ShouldBeNil)
				So(report.Provisional, ShouldBeFalse)
				So(report.Score, ShouldEqual, 76)
			})
		})
	})

	Convey("Given a session with no events", t, func() {
		svc := startService(t)
		ctx := context.Background()
		session, err := svc.CreateSession(ctx, "candidate-4")
		So(err, ShouldBeNil)

		Convey("When computing the report", func() {
			report, err := svc.Report(ctx, session.SessionID)

			Convey("Then the score should be the ceiling", func() {
				So(err, ShouldBeNil)
				So(report.Score, ShouldEqual, 100)
				So(report.TotalEvents, ShouldEqual, 0)
			})
		})
	})
}

func TestLive(t *testing.T) {
	Convey("Given a session receiving detections", t, func() {
		svc := startService(t)
		ctx := context.Background()
		session, err := svc.CreateSession(ctx, "candidate-5")
		So(err, ShouldBeNil)

		ts := time.Date(2026, 3, 14, 9, 5, 0, 0, time.UTC)
		for i, kind := range []string{"MULTIPLE_FACES", "FOCUS_LOST"} {
			_, _, err := svc.Record(ctx, session.SessionID, kind, 0.8, ts.Add(time.Duration(i)*time.Second))
			So(err, ShouldBeNil)
		}

		Convey("When the workers have caught up", func() {
			waitForLiveTotal(t, svc, session.SessionID, 2)
			live, err := svc.Live(ctx, session.SessionID)

			Convey("Then the summary should carry counts and a provisional score", func() {
				So(err, ShouldBeNil)
				So(live.TotalEvents, ShouldEqual, 2)
				So(live.Counts["MULTIPLE_FACES"], ShouldEqual, 1)
				So(live.ProvisionalScore, ShouldEqual, 88) // 100 - 10 - 2
			})
		})

		Convey("When the session is unknown", func() {
			_, err := svc.Live(ctx, "missing")

			Convey("Then it should report not found", func() {
				So(errors.Is(err, repository.ErrSessionNotFound), ShouldBeTrue)
			})
		})

		Convey("When the session closes", func() {
			waitForLiveTotal(t, svc, session.SessionID, 2)
			_, err := svc.CloseSession(ctx, session.SessionID)
			So(err, ShouldBeNil)

			Convey("Then its live counters should be released", func() {
				live, err := svc.Live(ctx, session.SessionID)
				So(err, ShouldBeNil)
				So(live.TotalEvents, ShouldEqual, 0)
			})
		})

		Convey("When the session closes before the workers catch up", func() {
			_, err := svc.CloseSession(ctx, session.SessionID)
			So(err, ShouldBeNil)

			// Let the workers drain whatever was still queued at close time.
			deadline := time.Now().Add(time.Second)
			for time.Now().Before(deadline) {
				if length, _ := svc.GetStats()["queueLength"].(int); length == 0 {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}

			Convey("Then stragglers should not revive its counters", func() {
				live, err := svc.Live(ctx, session.SessionID)
				So(err, ShouldBeNil)
				So(live.TotalEvents, ShouldEqual, 0)
				So(svc.GetStats()["liveSessions"], ShouldEqual, 0)
			})
		})
	})
}

func TestCustomWeights(t *testing.T) {
	Convey("Given a service with overridden weights", t, func() {
		svc := startService(t, service.WithWeights(map[string]int{"FOCUS_LOST": 7, "NOT_A_KIND": 50}))
		ctx := context.Background()
		session, err := svc.CreateSession(ctx, "candidate-6")
		So(err, ShouldBeNil)

		ts := time.Date(2026, 3, 14, 9, 5, 0, 0, time.UTC)
		_, _, err = svc.Record(ctx, session.SessionID, "FOCUS_LOST", 0.9, ts)
		So(err, ShouldBeNil)

		Convey("When computing the report", func() {
			report, err := svc.Report(ctx, session.SessionID)

			Convey("Then the override should apply and unknown keys be ignored", func() {
				So(err, ShouldBeNil)
				So(report.Score, ShouldEqual, 93)
			})
		})
	})

	Convey("Given weight overrides with an unknown key", t, func() {
		logs := &captureLogger{}
		startService(t,
			service.WithLogger(logs),
			service.WithWeights(map[string]int{"NOT_A_KIND": 50}),
		)

		Convey("Then the dropped key should be warned about at start", func() {
			So(logs.warned(), ShouldContainSubstring, "unknown event kind")
			So(logs.warned(), ShouldContainSubstring, "NOT_A_KIND")
		})
	})
}

func TestGetStats(t *testing.T) {
	Convey("Given a running service", t, func() {
		svc := startService(t)
		ctx := context.Background()
		_, err := svc.CreateSession(ctx, "candidate-8")
		So(err, ShouldBeNil)

		Convey("When fetching stats", func() {
			stats := svc.GetStats()

			Convey("Then they should describe the running components", func() {
				So(stats["started"], ShouldBeTrue)
				So(stats["sessions"], ShouldEqual, 1)
			})
		})
	})
}
