package web

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeController struct {
	mu       sync.Mutex
	snap     Snapshot
	outward  []bool
	resets   int
	bezier   []*bool
	style    StyleRequest
	generate error
}

func (f *fakeController) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeController) Generate(outward bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generate != nil {
		return f.generate
	}
	f.outward = append(f.outward, outward)
	return nil
}

func (f *fakeController) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return nil
}

func (f *fakeController) SetBezier(on *bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bezier = append(f.bezier, on)
	return nil
}

func (f *fakeController) Style(palette, stroke, colorMode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.style = StyleRequest{Palette: palette, Stroke: stroke, ColorMode: colorMode}
	return nil
}

func newTestServer(ctrl Controller) *Server {
	return NewServer(ctrl, log.New(io.Discard, "", 0))
}

func sampleSnapshot() Snapshot {
	return Snapshot{
		FPS:      30,
		Shape:    "triangle",
		Axis:     "z",
		Steps:    1,
		Vertices: 13,
		Bands:    make([]float64, 8),
		Points:   [][3]float64{{0, 0, 1}, {1, 0, 0}, {0, 0, 1}},
	}
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStatusOmitsGeometry(t *testing.T) {
	s := newTestServer(&fakeController{snap: sampleSnapshot()})
	rec := do(t, s, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code %d", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["shape"] != "triangle" {
		t.Fatalf("shape = %v", got["shape"])
	}
	if _, present := got["points"]; present {
		t.Fatal("status should not carry points")
	}
}

func TestGenerateDirections(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestServer(ctrl)

	if rec := do(t, s, http.MethodPost, "/api/generate", ""); rec.Code != http.StatusOK {
		t.Fatalf("default generate: %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/generate?dir=in", ""); rec.Code != http.StatusOK {
		t.Fatalf("inward generate: %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/generate?dir=up", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad dir: %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/generate", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET generate: %d", rec.Code)
	}
	if len(ctrl.outward) != 2 || !ctrl.outward[0] || ctrl.outward[1] {
		t.Fatalf("generate calls = %v", ctrl.outward)
	}
}

func TestBusyControllerReturns503(t *testing.T) {
	s := newTestServer(&fakeController{generate: ErrBusy})
	if rec := do(t, s, http.MethodPost, "/api/generate", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestBezierToggleAndSet(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestServer(ctrl)
	do(t, s, http.MethodPost, "/api/bezier", "")
	do(t, s, http.MethodPost, "/api/bezier?on=true", "")
	if rec := do(t, s, http.MethodPost, "/api/bezier?on=maybe", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad bool: %d", rec.Code)
	}
	if len(ctrl.bezier) != 2 || ctrl.bezier[0] != nil || ctrl.bezier[1] == nil || !*ctrl.bezier[1] {
		t.Fatalf("bezier calls = %v", ctrl.bezier)
	}
}

func TestResetAndStyle(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestServer(ctrl)
	do(t, s, http.MethodPost, "/api/reset", "")
	if ctrl.resets != 1 {
		t.Fatalf("resets = %d", ctrl.resets)
	}
	rec := do(t, s, http.MethodPost, "/api/style", `{"palette":"box","colorMode":"fire"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("style: %d", rec.Code)
	}
	if ctrl.style.Palette != "box" || ctrl.style.ColorMode != "fire" || ctrl.style.Stroke != "" {
		t.Fatalf("style = %+v", ctrl.style)
	}
	if rec := do(t, s, http.MethodPost, "/api/style", `{`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad body: %d", rec.Code)
	}
}

func TestListEndpoints(t *testing.T) {
	s := newTestServer(&fakeController{})
	rec := do(t, s, http.MethodGet, "/api/shapes", "")
	var shapes []string
	if err := json.Unmarshal(rec.Body.Bytes(), &shapes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(shapes) != 6 || shapes[0] != "triangle" {
		t.Fatalf("shapes = %v", shapes)
	}
	rec = do(t, s, http.MethodGet, "/api/profiles", "")
	if !strings.Contains(rec.Body.String(), "koch") {
		t.Fatalf("profiles = %s", rec.Body.String())
	}
}

func TestIndexServed(t *testing.T) {
	s := newTestServer(&fakeController{})
	rec := do(t, s, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<canvas") {
		t.Fatalf("index: %d", rec.Code)
	}
}

func TestWebSocketSendsSnapshot(t *testing.T) {
	s := newTestServer(&fakeController{snap: sampleSnapshot()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.broadcastLoop(ctx)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 2; i++ {
		var snap Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if len(snap.Points) != 3 || snap.Vertices != 13 {
			t.Fatalf("snapshot %d = %+v", i, snap)
		}
	}
}
