package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	api "github.com/proctorkit/vigil/internal/adapters/http/api"
	repository "github.com/proctorkit/vigil/internal/adapters/repository"
	"github.com/proctorkit/vigil/internal/domain/model"
	"github.com/proctorkit/vigil/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeDeps implements api.Dependencies with canned data and call recording.
type fakeDeps struct {
	sessions map[string]types.Session
	report   types.Report
	live     types.LiveSummary

	recordErr   error
	suppress    bool
	lastKind    string
	lastConf    float64
	lastTS      time.Time
	lastSession string
}

func newFakeDeps() *fakeDeps {
	return &fakeDeps{sessions: make(map[string]types.Session)}
}

func (f *fakeDeps) CreateSession(ctx context.Context, subject string) (types.Session, error) {
	s := types.Session{SessionID: "sess-1", Subject: subject, StartedAt: time.Now().UTC()}
	f.sessions[s.SessionID] = s
	return s, nil
}

func (f *fakeDeps) CloseSession(ctx context.Context, sessionID string) (types.Session, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return types.Session{}, repository.ErrSessionNotFound
	}
	if s.Closed {
		return types.Session{}, repository.ErrSessionClosed
	}
	now := time.Now().UTC()
	s.EndedAt = &now
	s.Closed = true
	f.sessions[sessionID] = s
	return s, nil
}

func (f *fakeDeps) GetSession(ctx context.Context, sessionID string) (types.Session, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return types.Session{}, repository.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeDeps) ListSessions(ctx context.Context) ([]types.Session, error) {
	out := make([]types.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeDeps) Record(ctx context.Context, sessionID, kind string, confidence float64, ts time.Time) (string, bool, error) {
	f.lastSession, f.lastKind, f.lastConf, f.lastTS = sessionID, kind, confidence, ts
	if f.recordErr != nil {
		return "", false, f.recordErr
	}
	if f.suppress {
		return "", true, nil
	}
	return "evt-1", false, nil
}

func (f *fakeDeps) Report(ctx context.Context, sessionID string) (types.Report, error) {
	if _, ok := f.sessions[sessionID]; !ok {
		return types.Report{}, repository.ErrSessionNotFound
	}
	return f.report, nil
}

func (f *fakeDeps) Live(ctx context.Context, sessionID string) (types.LiveSummary, error) {
	if _, ok := f.sessions[sessionID]; !ok {
		return types.LiveSummary{}, repository.ErrSessionNotFound
	}
	return f.live, nil
}

type fakeStats struct{}

func (fakeStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newTestMux(deps *fakeDeps) *http.ServeMux {
	mux := http.NewServeMux()
	server := api.NewServer(deps, fakeStats{})
	server.Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return m
}

func TestSessionEndpoints(t *testing.T) {
	Convey("Given the API routes", t, func() {
		deps := newFakeDeps()
		mux := newTestMux(deps)

		Convey("When posting a new session", func() {
			rec := do(mux, http.MethodPost, "/sessions", `{"subject":"candidate-9"}`)

			Convey("Then it should return 201 with the session", func() {
				So(rec.Code, ShouldEqual, http.StatusCreated)
				body := decodeMap(t, rec)
				So(body["session_id"], ShouldEqual, "sess-1")
				So(body["subject"], ShouldEqual, "candidate-9")
			})
		})

		Convey("When posting a session without a subject", func() {
			rec := do(mux, http.MethodPost, "/sessions", `{}`)

			Convey("Then it should return 400 bad_request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeMap(t, rec)["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When listing sessions with none created", func() {
			rec := do(mux, http.MethodGet, "/sessions", "")

			Convey("Then it should return an empty JSON array", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(rec.Body.String()), ShouldEqual, "[]")
			})
		})

		Convey("When fetching an existing session", func() {
			_, err := deps.CreateSession(context.Background(), "candidate-9")
			So(err, ShouldBeNil)
			rec := do(mux, http.MethodGet, "/sessions/sess-1", "")

			Convey("Then it should return 200", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(decodeMap(t, rec)["session_id"], ShouldEqual, "sess-1")
			})
		})

		Convey("When fetching a missing session", func() {
			rec := do(mux, http.MethodGet, "/sessions/ghost", "")

			Convey("Then it should return 404 session_not_found", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
				So(decodeMap(t, rec)["code"], ShouldEqual, "session_not_found")
			})
		})

		Convey("When closing a session twice", func() {
			_, err := deps.CreateSession(context.Background(), "candidate-9")
			So(err, ShouldBeNil)

			first := do(mux, http.MethodPost, "/sessions/sess-1/close", "")
			second := do(mux, http.MethodPost, "/sessions/sess-1/close", "")

			Convey("Then the second close should conflict", func() {
				So(first.Code, ShouldEqual, http.StatusOK)
				So(second.Code, ShouldEqual, http.StatusConflict)
				So(decodeMap(t, second)["code"], ShouldEqual, "invalid_session")
			})
		})

		Convey("When using an unsupported method", func() {
			rec := do(mux, http.MethodDelete, "/sessions", "")

			Convey("Then it should 404", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the subpath is nested too deep", func() {
			rec := do(mux, http.MethodGet, "/sessions/sess-1/report/extra", "")

			Convey("Then it should 400", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestEventEndpoint(t *testing.T) {
	Convey("Given the API routes with an open session", t, func() {
		deps := newFakeDeps()
		_, err := deps.CreateSession(context.Background(), "candidate-9")
		So(err, ShouldBeNil)
		mux := newTestMux(deps)

		Convey("When posting a valid event", func() {
			body := `{"kind":"FOCUS_LOST","confidence":0.93,"ts":"2026-03-14T09:05:00Z"}`
			rec := do(mux, http.MethodPost, "/sessions/sess-1/events", body)

			Convey("Then it should return 201 recorded", func() {
				So(rec.Code, ShouldEqual, http.StatusCreated)
				resp := decodeMap(t, rec)
				So(resp["status"], ShouldEqual, "recorded")
				So(resp["event_id"], ShouldEqual, "evt-1")
				So(deps.lastKind, ShouldEqual, "FOCUS_LOST")
				So(deps.lastConf, ShouldEqual, 0.93)
			})
		})

		Convey("When the debouncer suppresses the event", func() {
			deps.suppress = true
			body := `{"kind":"FOCUS_LOST","confidence":0.93,"ts":"2026-03-14T09:05:00Z"}`
			rec := do(mux, http.MethodPost, "/sessions/sess-1/events", body)

			Convey("Then it should return 200 suppressed", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				resp := decodeMap(t, rec)
				So(resp["status"], ShouldEqual, "suppressed")
				So(resp["suppressed"], ShouldEqual, true)
			})
		})

		Convey("When the body is not JSON", func() {
			rec := do(mux, http.MethodPost, "/sessions/sess-1/events", "not-json")

			Convey("Then it should return 400 bad_request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeMap(t, rec)["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When the timestamp is malformed", func() {
			body := `{"kind":"FOCUS_LOST","confidence":0.93,"ts":"yesterday"}`
			rec := do(mux, http.MethodPost, "/sessions/sess-1/events", body)

			Convey("Then it should return 400 bad_request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the service rejects the kind", func() {
			deps.recordErr = model.ErrInvalidEventKind
			body := `{"kind":"TELEPATHY","confidence":0.93,"ts":"2026-03-14T09:05:00Z"}`
			rec := do(mux, http.MethodPost, "/sessions/sess-1/events", body)

			Convey("Then it should return 400 invalid_event_kind", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeMap(t, rec)["code"], ShouldEqual, "invalid_event_kind")
			})
		})

		Convey("When the service rejects the confidence", func() {
			deps.recordErr = model.ErrInvalidConfidence
			body := `{"kind":"FOCUS_LOST","confidence":7,"ts":"2026-03-14T09:05:00Z"}`
			rec := do(mux, http.MethodPost, "/sessions/sess-1/events", body)

			Convey("Then it should return 400 invalid_confidence", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeMap(t, rec)["code"], ShouldEqual, "invalid_confidence")
			})
		})

		Convey("When the timestamp regresses", func() {
			deps.recordErr = repository.ErrTimestampOrder
			body := `{"kind":"FOCUS_LOST","confidence":0.9,"ts":"2026-03-14T09:05:00Z"}`
			rec := do(mux, http.MethodPost, "/sessions/sess-1/events", body)

			Convey("Then it should return 409 timestamp_order", func() {
				So(rec.Code, ShouldEqual, http.StatusConflict)
				So(decodeMap(t, rec)["code"], ShouldEqual, "timestamp_order")
			})
		})

		Convey("When the session is closed", func() {
			deps.recordErr = repository.ErrSessionClosed
			body := `{"kind":"FOCUS_LOST","confidence":0.9,"ts":"2026-03-14T09:05:00Z"}`
			rec := do(mux, http.MethodPost, "/sessions/sess-1/events", body)

			Convey("Then it should return 409 invalid_session", func() {
				So(rec.Code, ShouldEqual, http.StatusConflict)
				So(decodeMap(t, rec)["code"], ShouldEqual, "invalid_session")
			})
		})
	})
}

func TestReportAndLiveEndpoints(t *testing.T) {
	Convey("Given the API routes with a scored session", t, func() {
		deps := newFakeDeps()
		_, err := deps.CreateSession(context.Background(), "candidate-9")
		So(err, ShouldBeNil)
		deps.report = types.Report{
			SessionID:   "sess-1",
			Subject:     "candidate-9",
			Score:       76,
			TotalEvents: 4,
			Counts:      map[string]int{"FOCUS_LOST": 2},
		}
		deps.live = types.LiveSummary{
			SessionID:        "sess-1",
			TotalEvents:      4,
			Counts:           map[string]int{"FOCUS_LOST": 2},
			ProvisionalScore: 76,
		}
		mux := newTestMux(deps)

		Convey("When fetching the report", func() {
			rec := do(mux, http.MethodGet, "/sessions/sess-1/report", "")

			Convey("Then it should return the computed score", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				body := decodeMap(t, rec)
				So(body["score"], ShouldEqual, 76)
				So(body["total_events"], ShouldEqual, 4)
			})
		})

		Convey("When fetching the live summary", func() {
			rec := do(mux, http.MethodGet, "/sessions/sess-1/live", "")

			Convey("Then it should return the provisional view", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(decodeMap(t, rec)["provisional_score"], ShouldEqual, 76)
			})
		})

		Convey("When the session is unknown", func() {
			report := do(mux, http.MethodGet, "/sessions/ghost/report", "")
			live := do(mux, http.MethodGet, "/sessions/ghost/live", "")

			Convey("Then both should 404", func() {
				So(report.Code, ShouldEqual, http.StatusNotFound)
				So(live.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When using POST on a read endpoint", func() {
			rec := do(mux, http.MethodPost, "/sessions/sess-1/report", "")

			Convey("Then it should 404", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestStatsEndpoint(t *testing.T) {
	Convey("Given the API routes", t, func() {
		mux := newTestMux(newFakeDeps())

		Convey("When fetching stats", func() {
			rec := do(mux, http.MethodGet, "/stats", "")

			Convey("Then it should return the provider payload", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(decodeMap(t, rec)["started"], ShouldEqual, true)
			})
		})
	})
}
