package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/plantnode/internal/infrastructure/config"
	"github.com/nerrad567/plantnode/internal/infrastructure/database"
	"github.com/nerrad567/plantnode/internal/infrastructure/logging"
	"github.com/nerrad567/plantnode/internal/infrastructure/metrics"
	"github.com/nerrad567/plantnode/internal/journal"
	"github.com/nerrad567/plantnode/internal/sensor"
	"github.com/nerrad567/plantnode/migrations"
)

func testStatus() NodeStatus {
	return NodeStatus{
		DeviceID:      "esp32_breadboard",
		CycleID:       "cycle-1",
		Phase:         "Operating",
		BootCount:     4,
		DiscoverySent: true,
		Connected:     true,
	}
}

// testServer creates a Server backed by a migrated on-disk journal.
func testServer(t *testing.T) (*Server, *journal.Journal) {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "plantnode.db"),
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	j := journal.New(db.DB)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.SetBootCount(4)

	srv, err := New(Deps{
		Config:  config.StatusConfig{Host: "127.0.0.1", Port: 0},
		Logger:  logging.Discard(),
		Status:  StatusFunc(testStatus),
		Journal: j,
		Metrics: reg,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv, j
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{Status: StatusFunc(testStatus)}); err == nil {
		t.Error("New() without logger succeeded")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without status source succeeded")
	}
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	w := get(t, srv.buildRouter(), "/api/v1/health")

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Errorf("health = %v", resp)
	}
}

func TestRequestID(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	if w := get(t, router, "/api/v1/health"); w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := testServer(t)
	if w := get(t, srv.buildRouter(), "/api/v1/devices"); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestState(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	var before map[string]any
	if err := json.Unmarshal(get(t, router, "/api/v1/state").Body.Bytes(), &before); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if before["boot_count"] != float64(4) || before["phase"] != "Operating" || before["broker_connected"] != true {
		t.Errorf("state = %v", before)
	}
	if _, ok := before["latest"]; ok {
		t.Error("latest present before any snapshot")
	}

	readings := []sensor.Reading{
		{Kind: sensor.AirTemperature, Value: 19},
		{Kind: sensor.SoilMoisture, Value: int(sensor.Moist)},
	}
	srv.HandleSnapshot(context.Background(), sensor.Snapshot{TakenAt: time.Unix(1760000000, 0), Readings: readings})
	// The cached copy must not alias the caller's slice
	readings[0].Value = 99

	var after struct {
		Latest struct {
			TakenAt  string        `json:"taken_at"`
			Readings []readingView `json:"readings"`
		} `json:"latest"`
	}
	if err := json.Unmarshal(get(t, router, "/api/v1/state").Body.Bytes(), &after); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(after.Latest.Readings) != 2 {
		t.Fatalf("latest readings = %+v", after.Latest.Readings)
	}
	temp := after.Latest.Readings[0]
	if temp.Sensor != "temperature" || temp.Value != 19 || temp.Unit != "°C" {
		t.Errorf("temperature = %+v", temp)
	}
	if after.Latest.Readings[1].Text != "Moist" {
		t.Errorf("moisture text = %q", after.Latest.Readings[1].Text)
	}
	if after.Latest.TakenAt != "2025-10-09T08:53:20Z" {
		t.Errorf("taken_at = %s", after.Latest.TakenAt)
	}
}

func TestReadings(t *testing.T) {
	srv, j := testServer(t)
	router := srv.buildRouter()
	ctx := context.Background()

	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	for i := range 3 {
		snap := sensor.Snapshot{
			TakenAt:  base.Add(time.Duration(i) * time.Minute),
			Readings: []sensor.Reading{{Kind: sensor.AirHumidity, Value: 40 + i}, {Kind: sensor.WaterLevel, Value: int(sensor.Full)}},
		}
		if err := j.Record(ctx, "cycle-1", snap); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCount  int
	}{
		{"all", "/api/v1/readings", http.StatusOK, 6},
		{"limited", "/api/v1/readings?limit=2", http.StatusOK, 2},
		{"by sensor", "/api/v1/readings?sensor=humidity", http.StatusOK, 3},
		{"unknown sensor", "/api/v1/readings?sensor=rain", http.StatusBadRequest, 0},
		{"bad limit", "/api/v1/readings?limit=abc", http.StatusBadRequest, 0},
		{"zero limit", "/api/v1/readings?limit=0", http.StatusBadRequest, 0},
		{"limit too large", "/api/v1/readings?limit=501", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, router, tt.path)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp struct {
				Readings []journal.Entry `json:"readings"`
				Count    int             `json:"count"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.Count != tt.wantCount || len(resp.Readings) != tt.wantCount {
				t.Errorf("count = %d (%d readings), want %d", resp.Count, len(resp.Readings), tt.wantCount)
			}
		})
	}

	// Newest first
	w := get(t, router, "/api/v1/readings?sensor=humidity&limit=1")
	var resp struct {
		Readings []journal.Entry `json:"readings"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp) //nolint:errcheck // checked by length below
	if len(resp.Readings) != 1 || resp.Readings[0].Value != 42 {
		t.Errorf("newest humidity = %+v", resp.Readings)
	}
}

func TestReadings_JournalDisabled(t *testing.T) {
	srv, err := New(Deps{Logger: logging.Discard(), Status: StatusFunc(testStatus)})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	router := srv.buildRouter()

	if w := get(t, router, "/api/v1/readings"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("readings status = %d, want 503", w.Code)
	}
	if w := get(t, router, "/metrics"); w.Code != http.StatusNotFound {
		t.Errorf("metrics status = %d, want 404", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := testServer(t)
	w := get(t, srv.buildRouter(), "/metrics")

	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "plantnode_boot_count 4") {
		t.Errorf("metrics body missing boot count:\n%s", w.Body.String())
	}
}

func TestWebSocket_SnapshotEvents(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	defer ws.Close()

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelSnapshot}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test deadline
	var ack WSMessage
	if err := ws.ReadJSON(&ack); err != nil {
		t.Fatalf("read subscribe response: %v", err)
	}
	if ack.Type != WSTypeResponse || ack.ID != "sub-1" {
		t.Errorf("ack = %+v", ack)
	}
	if srv.hub.ClientCount() != 1 {
		t.Errorf("hub client count = %d, want 1", srv.hub.ClientCount())
	}

	srv.HandleSnapshot(context.Background(), sensor.Snapshot{Readings: []sensor.Reading{
		{Kind: sensor.PumpTrigger, Value: 1},
	}})

	var event struct {
		Type      string       `json:"type"`
		EventType string       `json:"event_type"`
		Payload   snapshotView `json:"payload"`
	}
	if err := ws.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Type != WSTypeEvent || event.EventType != ChannelSnapshot {
		t.Errorf("event = %+v", event)
	}
	if len(event.Payload.Readings) != 1 || event.Payload.Readings[0].Text != "true" {
		t.Errorf("event payload = %+v", event.Payload)
	}

	// Ping round trip
	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	var pong WSMessage
	if err := ws.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong.Type != WSTypePong || pong.ID != "p1" {
		t.Errorf("pong = %+v", pong)
	}
}

func TestWebSocket_UnsubscribedClientGetsNothing(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer ws.Close()

	// An unknown message type proves the connection is registered
	if err := ws.WriteJSON(WSMessage{Type: "bogus", ID: "x"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test deadline
	var reply WSMessage
	if err := ws.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.Type != WSTypeError {
		t.Errorf("reply type = %s, want error", reply.Type)
	}

	srv.HandleSnapshot(context.Background(), sensor.Snapshot{Readings: []sensor.Reading{{Kind: sensor.AirHumidity, Value: 1}}})

	ws.SetReadDeadline(time.Now().Add(100 * time.Millisecond)) //nolint:errcheck // Test deadline
	if err := ws.ReadJSON(&reply); err == nil {
		t.Errorf("received %+v without a subscription", reply)
	}
}

func TestWebSocket_RejectsBadRequests(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer ws.Close()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test deadline

	tests := []struct {
		name  string
		frame string
		want  string
	}{
		{"malformed json", `{"type":}`, "invalid JSON message"},
		{"unknown channel", `{"type":"subscribe","id":"s","payload":{"channels":["devices"]}}`, "unknown channel: devices"},
		{"empty channels", `{"type":"subscribe","id":"s","payload":{"channels":[]}}`, "invalid subscribe payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(tt.frame)); err != nil {
				t.Fatalf("write: %v", err)
			}
			var reply struct {
				Type    string            `json:"type"`
				Payload map[string]string `json:"payload"`
			}
			if err := ws.ReadJSON(&reply); err != nil {
				t.Fatalf("read: %v", err)
			}
			if reply.Type != WSTypeError || reply.Payload["message"] != tt.want {
				t.Errorf("reply = %+v, want error %q", reply, tt.want)
			}
		})
	}
}

func TestStartClose(t *testing.T) {
	srv, _ := testServer(t)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, err := http.Get("http://" + srv.Addr() + "/api/v1/health"); err == nil {
		t.Error("server still answering after Close")
	}
}

func TestStart_PortInUse(t *testing.T) {
	first, _ := testServer(t)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer first.Close()

	_, portStr, err := net.SplitHostPort(first.Addr())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	port, _ := strconv.Atoi(portStr) //nolint:errcheck // Addr came from the listener
	second, _ := testServer(t)
	second.cfg.Port = port
	if err := second.Start(context.Background()); err == nil {
		second.Close()
		t.Fatal("second Start() on a bound port succeeded")
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	srv, _ := testServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestParseReadingsLimit(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", defaultReadingsLimit, false},
		{"10", 10, false},
		{"500", 500, false},
		{"501", 0, true},
		{"-1", 0, true},
		{"x", 0, true},
	}
	for _, tt := range tests {
		got, err := parseReadingsLimit(tt.raw)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseReadingsLimit(%q) = %d, %v", tt.raw, got, err)
		}
	}
}
