package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LucadeVeintemilla/emotionTracking/core"
	"github.com/LucadeVeintemilla/emotionTracking/core/emotion"
	"github.com/LucadeVeintemilla/emotionTracking/core/live"
	"github.com/LucadeVeintemilla/emotionTracking/core/student"
	emailsvc "github.com/LucadeVeintemilla/emotionTracking/services/email"
	logsvc "github.com/LucadeVeintemilla/emotionTracking/services/logger"
	wshub "github.com/LucadeVeintemilla/emotionTracking/services/websocket"
	inmemdb "github.com/LucadeVeintemilla/emotionTracking/storage/database/inmem"
	"github.com/LucadeVeintemilla/emotionTracking/tests"
)

const okImage = `{"image": "data:image/jpeg;base64,aGVsbG8="}` // "hello"

type testApp struct {
	server   *Server
	conf     *core.Config
	registry *live.Registry
	cycles   live.CycleRecorder
	mailSvc  *emailsvc.ConsoleServiceMock
	token    string
}

func setup(t *testing.T) *testApp {
	conf := testutil.NewConfig()
	logger := logsvc.NewRecordingLogger()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	ctx, cancel := context.WithCancel(context.Background())
	hub := wshub.NewHub(logger)
	go hub.Run(ctx)

	studentSvc := student.NewService(inmemdb.NewStudentRepository(testutil.Roster...), logger)
	tallies := testutil.FakeTallies{
		"s1": {
			{SubjectID: "a1", After: emotion.Counts{emotion.Happy: 3, emotion.Sad: 1}, TotalFrames: 4},
			{SubjectID: "b2", After: emotion.Counts{emotion.Happy: 1}, TotalFrames: 1},
		},
	}
	cycles := inmemdb.NewCycleRepository()
	registry := live.NewRegistry(live.Deps{
		Source:       &testutil.FakeCamera{Frame: []byte("raw-frame")},
		Preprocessor: testutil.Passthrough{},
		Transport:    &testutil.StaticTransport{Resp: live.Response{Status: http.StatusOK, Body: []byte(okImage)}},
		Recorder:     cycles,
		Logger:       logger,
		Listeners:    []live.Listener{hub},
		Interval:     time.Hour,
	})
	t.Cleanup(func() {
		registry.CloseAll()
		cancel()
	})

	app := &testApp{
		conf:     conf,
		registry: registry,
		cycles:   cycles,
		mailSvc:  emailsvc.NewConsoleServiceMock(conf, logger),
	}
	app.server = NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Registry:   registry,
		Cycles:     cycles,
		StudentSvc: studentSvc,
		EmotionSvc: emotion.NewService(tallies, studentSvc, nil, logger),
		MailSvc:    app.mailSvc,
		Hub:        hub,
		Validate:   validate,
		Translator: translator,
	})

	token, err := GenerateToken(NewClaims(conf, core.Person{ID: "t1", Username: "instructor"}, time.Hour), conf.SecretKey)
	require.NoError(t, err)
	app.token = token
	return app
}

func (app *testApp) do(method, path, token string, body ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if len(body) > 0 {
		buf.WriteString(body[0])
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.server.ServeHTTP(rec, req)
	return rec
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     string
	noAuth   bool
	wantCode int
	wantData string // JSON, compared structurally when set
	check    func(t *testing.T, rec *httptest.ResponseRecorder)
}

func runSteps(t *testing.T, app *testApp, steps []httpTest) {
	for _, tt := range steps {
		ok := t.Run(tt.name, func(t *testing.T) {
			token := app.token
			if tt.noAuth {
				token = ""
			}
			rec := app.do(tt.method, tt.path, token, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantData != "" {
				assert.JSONEq(t, tt.wantData, rec.Body.String())
			}
			if tt.check != nil {
				tt.check(t, rec)
			}
		})
		if !ok {
			t.FailNow() // later steps depend on this one
		}
	}
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) LiveStatusResponse {
	var st LiveStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	return st
}

func wantPhase(phase live.Phase) func(t *testing.T, rec *httptest.ResponseRecorder) {
	return func(t *testing.T, rec *httptest.ResponseRecorder) {
		assert.Equal(t, phase, decodeStatus(t, rec).Phase)
	}
}

func TestServer_home(t *testing.T) {
	app := setup(t)
	rec := app.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to EmotionTracking API!", rec.Body.String())
}

func TestLiveAPI_open(t *testing.T) {
	app := setup(t)

	registered := func(want bool) func(t *testing.T, rec *httptest.ResponseRecorder) {
		return func(t *testing.T, rec *httptest.ResponseRecorder) {
			_, err := app.registry.Get("s9")
			assert.Equal(t, want, err == nil)
		}
	}

	runSteps(t, app, []httpTest{
		{name: "open", method: http.MethodPost, path: "/v1/sessions/s9/live", wantCode: http.StatusCreated, check: registered(true)},
		{name: "status", method: http.MethodGet, path: "/v1/sessions/s9/live", wantCode: http.StatusOK, check: wantPhase(live.PhaseIdle)},
		{name: "close", method: http.MethodDelete, path: "/v1/sessions/s9/live", wantCode: http.StatusNoContent, check: registered(false)},
		{name: "reopen", method: http.MethodPost, path: "/v1/sessions/s9/live", wantCode: http.StatusCreated, check: registered(true)},
	})
}

func TestLiveAPI_flow(t *testing.T) {
	app := setup(t)

	tick := func(t *testing.T, rec *httptest.ResponseRecorder) {
		sched, err := app.registry.Get("s1")
		require.NoError(t, err)
		require.True(t, sched.Tick())
		sched.Wait()
	}

	runSteps(t, app, []httpTest{
		{
			name:     "missing token",
			method:   http.MethodPost,
			path:     "/v1/sessions/s1/live",
			noAuth:   true,
			wantCode: http.StatusUnauthorized,
			wantData: `{"error": "missing or malformed jwt"}`,
		},
		{
			name:     "status of unopened session",
			method:   http.MethodGet,
			path:     "/v1/sessions/s1/live",
			wantCode: http.StatusNotFound,
			wantData: `{"error": "live session not found"}`,
		},
		{name: "open", method: http.MethodPost, path: "/v1/sessions/s1/live", wantCode: http.StatusCreated, check: wantPhase(live.PhaseIdle)},
		{name: "open again", method: http.MethodPost, path: "/v1/sessions/s1/live", wantCode: http.StatusOK, check: wantPhase(live.PhaseIdle)},
		{
			name:     "start without subject",
			method:   http.MethodPost,
			path:     "/v1/sessions/s1/live/start",
			wantCode: http.StatusConflict,
			wantData: `{"error": "no subject selected"}`,
		},
		{
			name:     "tag blank subject",
			method:   http.MethodPut,
			path:     "/v1/sessions/s1/live/subject",
			body:     `{"student_id": "  "}`,
			wantCode: http.StatusBadRequest,
			wantData: `{"student_id": "this field cannot be blank"}`,
		},
		{
			name:     "tag",
			method:   http.MethodPut,
			path:     "/v1/sessions/s1/live/subject",
			body:     `{"student_id": "a1"}`,
			wantCode: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				st := decodeStatus(t, rec)
				assert.Equal(t, live.PhaseArmed, st.Phase)
				require.NotNil(t, st.Subject)
				assert.Equal(t, live.Subject{ID: "a1", Name: "Ana Ruiz"}, *st.Subject)
			},
		},
		{name: "no preview yet", method: http.MethodGet, path: "/v1/sessions/s1/live/preview", wantCode: http.StatusNoContent},
		{name: "start", method: http.MethodPost, path: "/v1/sessions/s1/live/start", wantCode: http.StatusOK, check: wantPhase(live.PhaseRecording)},
		{name: "start again", method: http.MethodPost, path: "/v1/sessions/s1/live/start", wantCode: http.StatusOK, check: wantPhase(live.PhaseRecording)},
		{name: "tick", method: http.MethodGet, path: "/v1/sessions/s1/live", wantCode: http.StatusOK, check: tick},
		{
			name:     "preview image",
			method:   http.MethodGet,
			path:     "/v1/sessions/s1/live/preview",
			wantCode: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, "hello", rec.Body.String())
				assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
				assert.Equal(t, "false", rec.Header().Get(previewErrorHeader))
			},
		},
		{
			name:     "preview json",
			method:   http.MethodGet,
			path:     "/v1/sessions/s1/live/preview?format=json",
			wantCode: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var prev wshub.PreviewEvent
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prev))
				assert.Equal(t, "a1", prev.SubjectID)
				assert.Equal(t, "data:image/jpeg;base64,aGVsbG8=", prev.Image)
				assert.False(t, prev.HasError)
			},
		},
		{
			name:     "live stats",
			method:   http.MethodGet,
			path:     "/v1/sessions/s1/live/stats",
			wantCode: http.StatusOK,
			wantData: `{"started": 1, "skipped": 0, "accepted": 1, "failed": 0, "stale": 0, "discarded": 0}`,
		},
		{
			name:     "cycle recorded",
			method:   http.MethodGet,
			path:     "/v1/sessions/s1/cycles",
			wantCode: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var recs []live.CycleRecord
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
				require.Len(t, recs, 1)
				assert.Equal(t, live.OutcomeAccepted, recs[0].Outcome)
				assert.Equal(t, "a1", recs[0].SubjectID)
			},
		},
		{name: "stop", method: http.MethodPost, path: "/v1/sessions/s1/live/stop", wantCode: http.StatusOK, check: wantPhase(live.PhaseStopped)},
		{
			name:     "untag",
			method:   http.MethodDelete,
			path:     "/v1/sessions/s1/live/subject",
			wantCode: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				st := decodeStatus(t, rec)
				assert.Equal(t, live.PhaseIdle, st.Phase)
				assert.Nil(t, st.Subject)
				assert.Empty(t, st.Preview.Image)
			},
		},
		{name: "close", method: http.MethodDelete, path: "/v1/sessions/s1/live", wantCode: http.StatusNoContent},
		{name: "closed session is gone", method: http.MethodGet, path: "/v1/sessions/s1/live", wantCode: http.StatusNotFound},
	})
}

func TestLiveAPI_queryCycles(t *testing.T) {
	app := setup(t)

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, outcome := range []live.Outcome{live.OutcomeAccepted, live.OutcomeFailed} {
		require.NoError(t, app.cycles.RecordCycle(context.Background(), live.CycleRecord{
			ID:        string(rune('a' + i)),
			SessionID: "s1",
			SubjectID: "a1",
			Outcome:   outcome,
			StartedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	ids := func(want ...string) func(t *testing.T, rec *httptest.ResponseRecorder) {
		return func(t *testing.T, rec *httptest.ResponseRecorder) {
			var recs []live.CycleRecord
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
			got := make([]string, 0, len(recs))
			for _, r := range recs {
				got = append(got, r.ID)
			}
			assert.Equal(t, want, got)
		}
	}

	runSteps(t, app, []httpTest{
		{name: "default ordering", method: http.MethodGet, path: "/v1/sessions/s1/cycles", wantCode: http.StatusOK, check: ids("a", "b")},
		{name: "latest first", method: http.MethodGet, path: "/v1/sessions/s1/cycles?ordering=-started_at", wantCode: http.StatusOK, check: ids("b", "a")},
		{name: "unknown session", method: http.MethodGet, path: "/v1/sessions/zz/cycles", wantCode: http.StatusOK, wantData: `[]`},
		{
			name:     "bad ordering",
			method:   http.MethodGet,
			path:     "/v1/sessions/s1/cycles?ordering=password",
			wantCode: http.StatusBadRequest,
			wantData: `{"ordering": "invalid ordering field: password"}`,
		},
	})
}

func TestStatsAPI(t *testing.T) {
	app := setup(t)

	runSteps(t, app, []httpTest{
		{
			name:     "statistics",
			method:   http.MethodGet,
			path:     "/v1/sessions/s1/stats",
			wantCode: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var stats emotion.Statistics
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
				assert.Equal(t, "s1", stats.SessionID)
				assert.True(t, stats.HasDominant)
				assert.Equal(t, emotion.Happy, stats.Dominant)
				assert.Equal(t, 4, stats.TotalAfter.Get(emotion.Happy))
				require.Len(t, stats.Rows, 2)
				assert.Equal(t, "Ana Ruiz", stats.Rows[0].Name)
			},
		},
		{
			name:     "empty session",
			method:   http.MethodGet,
			path:     "/v1/sessions/nothing/stats",
			wantCode: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var stats emotion.Statistics
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
				assert.False(t, stats.HasDominant)
				assert.Empty(t, stats.Message)
			},
		},
		{
			name:     "summary",
			method:   http.MethodGet,
			path:     "/v1/sessions/s1/stats/summary",
			wantCode: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Contains(t, rec.Body.String(), "Emotion summary for session s1")
				assert.Contains(t, rec.Body.String(), "Dominant emotion: Happy")
			},
		},
		{
			name:     "mail without recipients",
			method:   http.MethodPost,
			path:     "/v1/sessions/s1/stats/mail",
			body:     `{"to": []}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "mail to invalid address",
			method:   http.MethodPost,
			path:     "/v1/sessions/s1/stats/mail",
			body:     `{"to": ["nope"]}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "mail",
			method:   http.MethodPost,
			path:     "/v1/sessions/s1/stats/mail",
			body:     `{"to": [" head@school.test "]}`,
			wantCode: http.StatusAccepted,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				sent := app.mailSvc.Sent()
				require.Len(t, sent, 1)
				assert.Equal(t, "head@school.test", sent[0].To[0].Address)
				assert.Equal(t, "Emotion summary for session s1", sent[0].Subject)
				assert.Contains(t, sent[0].TextContent, "Ana Ruiz")
			},
		},
	})
}

func TestStudentAPI(t *testing.T) {
	app := setup(t)

	runSteps(t, app, []httpTest{
		{
			name:     "query all",
			method:   http.MethodGet,
			path:     "/v1/students",
			wantCode: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var students []student.Student
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &students))
				assert.Len(t, students, len(testutil.Roster))
			},
		},
		{
			name:     "query search",
			method:   http.MethodGet,
			path:     "/v1/students?search=vega",
			wantCode: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var students []student.Student
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &students))
				require.Len(t, students, 1)
				assert.Equal(t, "c3", students[0].ID)
			},
		},
		{
			name:     "lookup",
			method:   http.MethodGet,
			path:     "/v1/students/lookup?q=bruno%20pas",
			wantCode: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Contains(t, rec.Body.String(), `"id":"b2"`)
			},
		},
		{name: "retrieve", method: http.MethodGet, path: "/v1/students/a1", wantCode: http.StatusOK},
		{
			name:     "retrieve unknown",
			method:   http.MethodGet,
			path:     "/v1/students/zz",
			wantCode: http.StatusNotFound,
			wantData: `{"error": "student not found"}`,
		},
	})
}

func TestLiveAPI_watch(t *testing.T) {
	app := setup(t)
	_, _, err := app.registry.Open("s1")
	require.NoError(t, err)

	srv := httptest.NewServer(app.server)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/s1/live/ws"

	t.Run("missing token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("receives updates", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+app.token, nil)
		require.NoError(t, err)
		defer conn.Close()

		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var ev wshub.Event
		require.NoError(t, conn.ReadJSON(&ev)) // current status on connect
		assert.Equal(t, live.PhaseIdle, ev.Phase)

		sched, err := app.registry.Get("s1")
		require.NoError(t, err)
		require.NoError(t, sched.Tag(live.Subject{ID: "b2", Name: "Bruno Paz"}))

		require.NoError(t, conn.ReadJSON(&ev))
		assert.Equal(t, live.PhaseArmed, ev.Phase)
		require.NotNil(t, ev.Subject)
		assert.Equal(t, "b2", ev.Subject.ID)
	})
}
