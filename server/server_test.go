package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	apperrors "github.com/kbukum/voicekit/errors"
	"github.com/kbukum/voicekit/hostbridge"
	"github.com/kbukum/voicekit/logger"
	"github.com/kbukum/voicekit/server/endpoint"
	"github.com/kbukum/voicekit/server/middleware"
	"github.com/kbukum/voicekit/sse"
	"github.com/kbukum/voicekit/testutil"
	"github.com/kbukum/voicekit/transcript"
	"github.com/kbukum/voicekit/voice"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSpeaker struct {
	mu      sync.Mutex
	spoken  []string
	stops   int
	outcome voice.Outcome
}

func (f *fakeSpeaker) Speak(_ context.Context, text string) voice.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	return f.outcome
}

func (f *fakeSpeaker) StopSpeaking(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeSpeaker) Active(context.Context) string { return "espeak" }

func (f *fakeSpeaker) Describe(context.Context) []voice.Descriptor {
	return []voice.Descriptor{
		{Name: "espeak", Kind: voice.KindTTS, IsAvailable: true},
		{Name: "noop", Kind: voice.KindTTS},
	}
}

type fakeListener struct {
	startErr error
	stopErr  error
	starts   int
	stops    int
}

func (f *fakeListener) Start(context.Context) error { f.starts++; return f.startErr }
func (f *fakeListener) Stop(context.Context) error  { f.stops++; return f.stopErr }
func (f *fakeListener) Active(context.Context) string {
	return "webspeech"
}

func (f *fakeListener) Describe(context.Context) []voice.Descriptor {
	return []voice.Descriptor{{Name: "webspeech", Kind: voice.KindSTT, IsAvailable: true}}
}

func testLogger() *logger.Logger {
	_, log := testutil.NewLogCapture("server")
	return log
}

func newTestServer(t *testing.T, routes VoiceRoutes) *Server {
	t.Helper()
	cfg := Config{Host: "127.0.0.1"}
	cfg.ApplyDefaults()
	cfg.Port = 0
	s := New(cfg, testLogger())
	s.ApplyMiddleware("voiced", nil)
	s.RegisterDefaultEndpoints("voiced", "test")
	s.RegisterVoiceRoutes(routes)
	return s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) apperrors.ErrorCode {
	t.Helper()
	var resp apperrors.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body is not JSON: %v (%s)", err, rr.Body.String())
	}
	return resp.Error.Code
}

func TestProviders(t *testing.T) {
	s := newTestServer(t, VoiceRoutes{Speaker: &fakeSpeaker{}, Listener: &fakeListener{}})

	rr := do(t, s.Handler(), "GET", "/v1/providers", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Data ProvidersResponse `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data.TTS.Active != "espeak" || len(body.Data.TTS.Providers) != 2 {
		t.Errorf("unexpected tts view: %+v", body.Data.TTS)
	}
	if body.Data.STT.Active != "webspeech" || !body.Data.STT.Providers[0].IsAvailable {
		t.Errorf("unexpected stt view: %+v", body.Data.STT)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Error("expected a request id on the response")
	}
}

func TestSpeak(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  apperrors.ErrorCode
		wantText string
	}{
		{"speaks text", `{"text":"Guten Tag"}`, http.StatusOK, "", "Guten Tag"},
		{"missing text", `{}`, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, ""},
		{"blank text", `{"text":"   "}`, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, ""},
		{"malformed json", `{"text":`, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, ""},
		{"too long", `{"text":"` + strings.Repeat("a", 5000) + `"}`, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sp := &fakeSpeaker{outcome: voice.OutcomeCompleted}
			s := newTestServer(t, VoiceRoutes{Speaker: sp, Listener: &fakeListener{}})

			rr := do(t, s.Handler(), "POST", "/v1/speak", tc.body)
			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, rr.Code, rr.Body.String())
			}
			if tc.wantErr != "" {
				if code := errorCode(t, rr); code != tc.wantErr {
					t.Fatalf("expected %s, got %s", tc.wantErr, code)
				}
				if len(sp.spoken) != 0 {
					t.Fatal("rejected requests must not reach the speaker")
				}
				return
			}
			var body struct {
				Data struct {
					Outcome string `json:"outcome"`
					Spoke   bool   `json:"spoke"`
				} `json:"data"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Data.Outcome != "completed" || !body.Data.Spoke {
				t.Errorf("unexpected response: %+v", body.Data)
			}
			if len(sp.spoken) != 1 || sp.spoken[0] != tc.wantText {
				t.Errorf("speaker got %v", sp.spoken)
			}
		})
	}
}

func TestErrorCarriesRequestID(t *testing.T) {
	s := newTestServer(t, VoiceRoutes{Speaker: &fakeSpeaker{}, Listener: &fakeListener{}})
	req := httptest.NewRequest(http.MethodPost, "/v1/speak", strings.NewReader(`{"text":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", "kiosk-42")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	var resp apperrors.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error.RequestID != "kiosk-42" {
		t.Errorf("request_id = %q, want kiosk-42", resp.Error.RequestID)
	}
}

func TestSpeakSkipped(t *testing.T) {
	sp := &fakeSpeaker{outcome: voice.OutcomeSkipped}
	s := newTestServer(t, VoiceRoutes{Speaker: sp, Listener: &fakeListener{}})

	rr := do(t, s.Handler(), "POST", "/v1/speak", `{"text":"hallo"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"outcome":"skipped"`) || !strings.Contains(rr.Body.String(), `"spoke":false`) {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}

func TestStopSpeaking(t *testing.T) {
	sp := &fakeSpeaker{}
	s := newTestServer(t, VoiceRoutes{Speaker: sp, Listener: &fakeListener{}})

	rr := do(t, s.Handler(), "POST", "/v1/speak/stop", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if sp.stops != 1 {
		t.Errorf("expected one stop, got %d", sp.stops)
	}
}

func TestListen(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		listener *fakeListener
		wantCode int
		wantErr  apperrors.ErrorCode
	}{
		{"start", "/v1/listen/start", &fakeListener{}, http.StatusOK, ""},
		{"start without recognizer", "/v1/listen/start", &fakeListener{startErr: apperrors.Unavailable("auto")}, http.StatusServiceUnavailable, apperrors.ErrCodeUnavailable},
		{"start failure", "/v1/listen/start", &fakeListener{startErr: apperrors.RecognitionFailed("webspeech", "start", context.DeadlineExceeded)}, http.StatusBadGateway, apperrors.ErrCodeRecognition},
		{"stop", "/v1/listen/stop", &fakeListener{}, http.StatusNoContent, ""},
		{"stop failure", "/v1/listen/stop", &fakeListener{stopErr: apperrors.RecognitionFailed("webspeech", "stop", context.Canceled)}, http.StatusBadGateway, apperrors.ErrCodeRecognition},
		{"plain error", "/v1/listen/stop", &fakeListener{stopErr: context.Canceled}, http.StatusInternalServerError, apperrors.ErrCodeInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, VoiceRoutes{Speaker: &fakeSpeaker{}, Listener: tc.listener})

			rr := do(t, s.Handler(), "POST", tc.path, "")
			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, rr.Code, rr.Body.String())
			}
			if tc.wantErr != "" {
				if code := errorCode(t, rr); code != tc.wantErr {
					t.Fatalf("expected %s, got %s", tc.wantErr, code)
				}
			}
			if tc.wantCode == http.StatusOK && !strings.Contains(rr.Body.String(), `"active":"webspeech"`) {
				t.Errorf("unexpected body %s", rr.Body.String())
			}
		})
	}
}

func TestTranscripts(t *testing.T) {
	_, log := testutil.NewLogCapture("transcript")
	ring := transcript.NewLog(10, log)
	ring.OnSpeechResult("hal", false)
	ring.OnSpeechResult("hallo", true)
	ring.OnSpeechEnd()
	s := newTestServer(t, VoiceRoutes{Speaker: &fakeSpeaker{}, Listener: &fakeListener{}, Transcripts: ring})

	tests := []struct {
		path string
		want []string
	}{
		{"/v1/transcripts", []string{"hal", "hallo", ""}},
		{"/v1/transcripts?kind=final", []string{"hallo"}},
		{"/v1/transcripts?kind=error", []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			rr := do(t, s.Handler(), "GET", tc.path, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			var body struct {
				Data []transcript.Entry `json:"data"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Data == nil {
				t.Fatal("expected an array, got null")
			}
			if len(body.Data) != len(tc.want) {
				t.Fatalf("expected %d entries, got %d", len(tc.want), len(body.Data))
			}
			for i, text := range tc.want {
				if body.Data[i].Text != text {
					t.Errorf("entry %d = %q, want %q", i, body.Data[i].Text, text)
				}
			}
		})
	}
}

func TestHealthAndVersion(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	s := New(cfg, testLogger())
	s.ApplyMiddleware("voiced", nil)
	s.RegisterDefaultEndpoints("voiced", "1.2.3", endpoint.Bridge(hostbridge.NewHub(hostbridge.Options{Logger: testLogger()})))

	rr := do(t, s.Handler(), "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"degraded"`) || !strings.Contains(rr.Body.String(), `"version":"1.2.3"`) {
		t.Errorf("unexpected health body %s", rr.Body.String())
	}

	rr = do(t, s.Handler(), "GET", "/version", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"uptime"`) {
		t.Errorf("unexpected version response %d %s", rr.Code, rr.Body.String())
	}
}

func TestBridgeScript(t *testing.T) {
	s := newTestServer(t, VoiceRoutes{Speaker: &fakeSpeaker{}, Listener: &fakeListener{}})

	req := httptest.NewRequest("GET", "/bridge.js", http.NoBody)
	req.Header.Set("Origin", "http://kiosk.local")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/javascript") {
		t.Errorf("unexpected content type %q", ct)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "http://kiosk.local" {
		t.Error("bridge.js must be loadable cross-origin")
	}
}

func TestBridgeUpgradeThroughMiddleware(t *testing.T) {
	hub := hostbridge.NewHub(hostbridge.Options{Logger: testLogger()})
	s := newTestServer(t, VoiceRoutes{Speaker: &fakeSpeaker{}, Listener: &fakeListener{}, Bridge: hub})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		_ = hub.Close()
		srv.Close()
	})

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/bridge", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	if err := ws.WriteJSON(hostbridge.Frame{Op: hostbridge.OpHello, Page: "http://kiosk.local/"}); err != nil {
		t.Fatal(err)
	}

	testutil.Eventually(t, time.Second, hub.Connected, "page never attached")
	testutil.Eventually(t, time.Second, func() bool { return hub.Current().Page() == "http://kiosk.local/" }, "hello not processed")
}

func TestTranscriptStream(t *testing.T) {
	events := sse.NewHub(testLogger())
	go events.Run()
	ring := transcript.NewLog(10, testLogger())
	ring.Subscribe(func(e transcript.Entry) {
		_ = events.Publish(sse.TopicTranscripts, sse.EventTranscript, e)
	})

	s := newTestServer(t, VoiceRoutes{Speaker: &fakeSpeaker{}, Listener: &fakeListener{}, Transcripts: ring, Events: events})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		events.Stop()
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/transcripts/stream", http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("Content-Type = %q", got)
	}

	r := bufio.NewReader(resp.Body)
	if line, _ := r.ReadString('\n'); line != "event: connected\n" {
		t.Fatalf("first line = %q", line)
	}
	testutil.Eventually(t, time.Second, func() bool { return events.ClientCount() == 1 }, "stream client never registered")

	ring.OnSpeechResult("hallo", true)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !strings.HasPrefix(line, "data: ") || !strings.Contains(line, `"kind":"final"`) {
			continue
		}
		var e transcript.Entry
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e); err != nil {
			t.Fatal(err)
		}
		if e.Text != "hallo" || e.ID == "" {
			t.Fatalf("streamed entry = %+v", e)
		}
		return
	}
}

func TestRecoveryReturnsJSON(t *testing.T) {
	s := newTestServer(t, VoiceRoutes{Speaker: &fakeSpeaker{}, Listener: &fakeListener{}})
	s.GinEngine().GET("/boom", func(*gin.Context) { panic("boom") })

	rr := do(t, s.Handler(), "GET", "/boom", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Internal server error") {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}

func TestStartStop(t *testing.T) {
	s := newTestServer(t, VoiceRoutes{Speaker: &fakeSpeaker{}, Listener: &fakeListener{}})
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get("http://" + s.Addr() + "/v1/providers")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if err := s.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := http.Get("http://" + s.Addr() + "/v1/providers"); err == nil {
		t.Fatal("expected the server to be stopped")
	}
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t, VoiceRoutes{Speaker: &fakeSpeaker{}, Listener: &fakeListener{}, Bridge: http.NotFoundHandler()})

	routes := s.Routes()
	if len(routes) != 10 {
		t.Fatalf("expected 10 routes, got %d: %+v", len(routes), routes)
	}
	if routes[0].Path != "/v1/listen/start" || routes[0].System {
		t.Errorf("API routes should come first, got %+v", routes[0])
	}
	if last := routes[len(routes)-1]; !last.System {
		t.Errorf("system routes should come last, got %+v", last)
	}
	for _, r := range routes {
		if r.Path == "/v1/speak" && r.Handler != "VoiceRoutes.speak" {
			t.Errorf("unexpected handler name %q", r.Handler)
		}
	}
}

func TestFormatHandlerName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"github.com/kbukum/voicekit/server.VoiceRoutes.speak-fm", "VoiceRoutes.speak"},
		{"github.com/kbukum/voicekit/server.(*Server).handle-fm", "Server.handle"},
		{"github.com/kbukum/voicekit/server/endpoint.Health.func1", "health"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			if got := formatHandlerName(tc.in); got != tc.want {
				t.Errorf("formatHandlerName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"bad port", Config{Port: 70000}, true},
		{"write shorter than read", Config{ReadTimeout: 30, WriteTimeout: 10}, true},
		{"origin pattern", Config{CORS: middleware.CORSConfig{AllowedOrigins: []string{"http://localhost:*"}}}, false},
		{"bad origin pattern", Config{CORS: middleware.CORSConfig{AllowedOrigins: []string{"http://[kiosk"}}}, true},
		{"bad bridge origin", Config{BridgeOrigins: []string{"http://[kiosk"}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			cfg.ApplyDefaults()
			if err := cfg.Validate(); (err != nil) != tc.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
