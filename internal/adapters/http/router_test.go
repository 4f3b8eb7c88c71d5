package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dkeye/Reception/internal/app"
	"github.com/dkeye/Reception/internal/app/dashboard"
	"github.com/dkeye/Reception/internal/app/guest"
	"github.com/dkeye/Reception/internal/config"
	"github.com/dkeye/Reception/internal/core"
	"github.com/dkeye/Reception/internal/core/coretest"
	"github.com/dkeye/Reception/internal/domain"
	"github.com/dkeye/Reception/internal/render"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	engine  http.Handler
	dash    *dashboard.Dashboard
	guests  *app.Registry
	fetcher *coretest.Fetcher
}

func newTestServer(t *testing.T, features core.Features) *testServer {
	t.Helper()
	fetcher := coretest.NewFetcher()
	transport := &coretest.Transport{}
	devices := &coretest.Devices{}

	dash := dashboard.New(dashboard.Options{
		Rooms:           []domain.RoomID{"property-101", "property-102"},
		Identity:        "receptionist",
		DefaultEndpoint: "wss://sfu.example",
		Features:        features,
		Credentials:     fetcher,
		Transport:       transport,
		Devices:         devices,
	})
	guests := app.NewRegistry(func(room domain.RoomID) *guest.Page {
		return guest.New(guest.Options{
			Room:            room,
			DefaultEndpoint: "wss://sfu.example",
			Features:        core.Features{Fallback: true, Mute: true, PublishLocal: true},
			Credentials:     fetcher,
			Transport:       transport,
			Devices:         devices,
		})
	})
	t.Cleanup(func() {
		dash.Close()
		guests.Close()
	})

	cfg := &config.Config{Mode: "test", Secret: "test-secret"}
	engine := SetupRouter(context.Background(), cfg, Deps{
		Dashboard:   dash,
		Guests:      guests,
		Credentials: fetcher,
	})
	return &testServer{engine: engine, dash: dash, guests: guests, fetcher: fetcher}
}

func (s *testServer) do(method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestDashboardTiles(t *testing.T) {
	s := newTestServer(t, core.Features{Fallback: true, Mute: true, Fullscreen: true})

	w := s.do(http.MethodGet, "/api/dashboard/tiles")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var surfaces []render.Surface
	if err := json.Unmarshal(w.Body.Bytes(), &surfaces); err != nil {
		t.Fatal(err)
	}
	if len(surfaces) != 2 || surfaces[0].Room != "property-101" || surfaces[0].Kind != render.KindNone {
		t.Fatalf("surfaces %+v", surfaces)
	}

	if w := s.do(http.MethodGet, "/api/dashboard/tiles/nowhere"); w.Code != http.StatusNotFound {
		t.Fatalf("unknown tile status %d", w.Code)
	}
}

func TestDashboardFullscreen(t *testing.T) {
	s := newTestServer(t, core.Features{Fullscreen: true})

	if w := s.do(http.MethodPost, "/api/dashboard/tiles/property-102/fullscreen"); w.Code != http.StatusOK {
		t.Fatalf("enter status %d", w.Code)
	}
	if room, _ := s.dash.Fullscreen(); room != "property-102" {
		t.Fatalf("fullscreen %q", room)
	}
	if w := s.do(http.MethodPost, "/api/dashboard/tiles/nowhere/fullscreen"); w.Code != http.StatusNotFound {
		t.Fatalf("unknown room status %d", w.Code)
	}
	if w := s.do(http.MethodDelete, "/api/dashboard/fullscreen"); w.Code != http.StatusNoContent {
		t.Fatalf("exit status %d", w.Code)
	}
	if _, ok := s.dash.Fullscreen(); ok {
		t.Fatal("still fullscreen")
	}
}

func TestDashboardFullscreenDisabled(t *testing.T) {
	s := newTestServer(t, core.Features{})
	if w := s.do(http.MethodPost, "/api/dashboard/tiles/property-101/fullscreen"); w.Code != http.StatusConflict {
		t.Fatalf("status %d", w.Code)
	}
}

func TestDashboardMute(t *testing.T) {
	s := newTestServer(t, core.Features{Mute: true})

	w := s.do(http.MethodPost, "/api/dashboard/tiles/property-101/mute")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var body struct {
		Muted bool `json:"muted"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body.Muted {
		t.Fatal("expected muted")
	}
	if f, _ := s.dash.Feed("property-102"); f.AudioMuted {
		t.Fatal("other tile muted")
	}
}

func TestGuestLifecycle(t *testing.T) {
	s := newTestServer(t, core.Features{})

	if w := s.do(http.MethodPost, "/api/guest/property-101"); w.Code != http.StatusAccepted {
		t.Fatalf("first start status %d", w.Code)
	}
	if w := s.do(http.MethodPost, "/api/guest/property-101"); w.Code != http.StatusOK {
		t.Fatalf("second start status %d", w.Code)
	}
	w := s.do(http.MethodGet, "/api/guest/property-101")
	if w.Code != http.StatusOK {
		t.Fatalf("get status %d", w.Code)
	}
	var g render.GuestSurface
	if err := json.Unmarshal(w.Body.Bytes(), &g); err != nil {
		t.Fatal(err)
	}
	if g.Title != "Guest Stream: property-101" {
		t.Fatalf("title %q", g.Title)
	}
	if w := s.do(http.MethodDelete, "/api/guest/property-101"); w.Code != http.StatusNoContent {
		t.Fatalf("delete status %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/api/guest/property-101"); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status %d", w.Code)
	}
}

func TestTokenProxy(t *testing.T) {
	s := newTestServer(t, core.Features{})
	s.fetcher.Results["property-101"] = coretest.FetchResult{Token: "t1", Endpoint: "wss://sfu.example"}
	s.fetcher.Results["broken"] = coretest.FetchResult{Err: errors.New("upstream down")}

	w := s.do(http.MethodGet, "/api/token?identity=guest-property-101&room=property-101")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["token"] != "t1" || body["wsUrl"] != "wss://sfu.example" {
		t.Fatalf("body %v", body)
	}

	if w := s.do(http.MethodGet, "/api/token?room=property-101"); w.Code != http.StatusBadRequest {
		t.Fatalf("missing identity status %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/api/token?identity=x&room=broken"); w.Code != http.StatusBadGateway {
		t.Fatalf("upstream failure status %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, core.Features{})
	if w := s.do(http.MethodGet, "/metrics"); w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
}
