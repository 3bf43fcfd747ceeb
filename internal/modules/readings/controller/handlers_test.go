package controller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/setarcos/birdroom/internal/modules/readings/service"
	"github.com/setarcos/birdroom/internal/modules/readings/types"
)

type mockRepo struct {
	inserted  []types.NewReading
	insertErr error

	filter      types.ReadingFilter
	readings    []types.Reading
	readingsErr error

	rooms    []types.Room
	roomsErr error
}

func (m *mockRepo) InsertReading(_ context.Context, r types.NewReading) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, r)
	return nil
}

func (m *mockRepo) QueryReadings(_ context.Context, f types.ReadingFilter) ([]types.Reading, error) {
	m.filter = f
	return m.readings, m.readingsErr
}

func (m *mockRepo) ListRooms(context.Context) ([]types.Room, error) {
	return m.rooms, m.roomsErr
}

// routeTable is a minimal Mux for exercising RegisterRoutes.
type routeTable map[string]http.Handler

func (rt routeTable) Handle(path string, h http.Handler) { rt[path] = h }

func (rt routeTable) HandleFunc(path string, h func(http.ResponseWriter, *http.Request)) {
	rt[path] = http.HandlerFunc(h)
}

func newTestController(repo *mockRepo) *readingsControllerImpl {
	svc := service.NewService(repo, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewReadingsController(repo, svc).(*readingsControllerImpl)
}

func Test_handleAdd(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		insertErr   error
		wantStatus  int
		wantBody    string
		wantJSON    bool
		wantInserts int
	}{
		{
			name:        "stores reading",
			body:        `{"room_id":1,"temperature":25.5}`,
			wantStatus:  http.StatusOK,
			wantBody:    `{"success":true}`,
			wantJSON:    true,
			wantInserts: 1,
		},
		{
			name:       "missing room_id",
			body:       `{"temperature":25.5}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Bad Request: Missing room_id or temperature",
		},
		{
			name:       "room_id zero counts as missing",
			body:       `{"room_id":0,"temperature":25.5}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Bad Request: Missing room_id or temperature",
		},
		{
			name:       "missing temperature",
			body:       `{"room_id":3}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Bad Request: Missing room_id or temperature",
		},
		{
			name:       "non numeric temperature",
			body:       `{"room_id":3,"temperature":"warm"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Bad Request: invalid temperature",
		},
		{
			name:       "malformed json",
			body:       `{"room_id":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Invalid JSON or Database Error"}`,
			wantJSON:   true,
		},
		{
			name:       "storage rejects",
			body:       `{"room_id":27,"temperature":20}`,
			insertErr:  errors.New("CHECK constraint failed"),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Invalid JSON or Database Error"}`,
			wantJSON:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{insertErr: tt.insertErr}
			ctrl := newTestController(repo)
			req := httptest.NewRequest(http.MethodPost, "/op/add", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			ctrl.handleAdd(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d; want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantJSON {
				if got := strings.TrimSpace(rec.Body.String()); got != tt.wantBody {
					t.Errorf("body = %q; want %q", got, tt.wantBody)
				}
				if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
					t.Errorf("Content-Type = %q; want application/json", ct)
				}
			} else if got := rec.Body.String(); got != tt.wantBody {
				t.Errorf("body = %q; want %q", got, tt.wantBody)
			}
			if len(repo.inserted) != tt.wantInserts {
				t.Errorf("inserted %d readings; want %d", len(repo.inserted), tt.wantInserts)
			}
		})
	}
}

func Test_handleAdd_BodyTooLarge(t *testing.T) {
	repo := &mockRepo{}
	ctrl := newTestController(repo)
	big := `{"room_id":1,"temperature":20,"pad":"` + strings.Repeat("x", maxAddBody) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/op/add", strings.NewReader(big))
	rec := httptest.NewRecorder()

	ctrl.handleAdd(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d; want %d", rec.Code, http.StatusBadRequest)
	}
	if len(repo.inserted) != 0 {
		t.Errorf("inserted %d readings; want 0", len(repo.inserted))
	}
}

func Test_handleTemp(t *testing.T) {
	t.Run("passes query parameters through", func(t *testing.T) {
		h := 40.0
		repo := &mockRepo{readings: []types.Reading{
			{RoomID: 1, Temperature: 24.5, Humidity: &h, RecordedAt: "2025-11-30 12:00:00"},
		}}
		ctrl := newTestController(repo)
		req := httptest.NewRequest(http.MethodGet,
			"/temp?room_id=1&start_time=2025-11-30T00:00:00Z&end_time=2025-11-30T23:59:59Z", nil)
		rec := httptest.NewRecorder()

		ctrl.handleTemp(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		want := types.ReadingFilter{RoomID: "1", StartTime: "2025-11-30T00:00:00Z", EndTime: "2025-11-30T23:59:59Z"}
		if repo.filter != want {
			t.Errorf("filter = %+v; want %+v", repo.filter, want)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Access-Control-Allow-Origin = %q; want *", got)
		}
		var resp struct {
			Success bool             `json:"success"`
			Data    []map[string]any `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if !resp.Success || len(resp.Data) != 1 {
			t.Fatalf("response = %+v; want success with one reading", resp)
		}
		row := resp.Data[0]
		if len(row) != 4 || row["room_id"] != 1.0 || row["temperature"] != 24.5 || row["humidity"] != 40.0 ||
			row["recorded_at"] != "2025-11-30 12:00:00" {
			t.Errorf("row = %v", row)
		}
	})

	t.Run("empty result is an empty array", func(t *testing.T) {
		ctrl := newTestController(&mockRepo{})
		req := httptest.NewRequest(http.MethodGet, "/temp", nil)
		rec := httptest.NewRecorder()

		ctrl.handleTemp(rec, req)

		if got := strings.TrimSpace(rec.Body.String()); got != `{"success":true,"data":[]}` {
			t.Errorf("body = %q", got)
		}
	})

	t.Run("null humidity is serialized", func(t *testing.T) {
		repo := &mockRepo{readings: []types.Reading{{RoomID: 2, Temperature: 20, RecordedAt: "2025-01-01 00:00:00"}}}
		ctrl := newTestController(repo)
		rec := httptest.NewRecorder()

		ctrl.handleTemp(rec, httptest.NewRequest(http.MethodGet, "/temp", nil))

		if !strings.Contains(rec.Body.String(), `"humidity":null`) {
			t.Errorf("body = %q; want humidity null", rec.Body.String())
		}
	})

	t.Run("storage error returns 500 with details", func(t *testing.T) {
		ctrl := newTestController(&mockRepo{readingsErr: errors.New("no such table: temperature")})
		req := httptest.NewRequest(http.MethodGet, "/temp", nil)
		rec := httptest.NewRecorder()

		ctrl.handleTemp(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusInternalServerError)
		}
		want := `{"success":false,"error":"Database error","details":"no such table: temperature"}`
		if got := strings.TrimSpace(rec.Body.String()); got != want {
			t.Errorf("body = %q; want %q", got, want)
		}
	})
}

func Test_handleRooms(t *testing.T) {
	t.Run("returns rooms array", func(t *testing.T) {
		ctrl := newTestController(&mockRepo{rooms: []types.Room{{ID: 1, Name: "Nursery"}}})
		rec := httptest.NewRecorder()

		ctrl.handleRooms(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		if got := strings.TrimSpace(rec.Body.String()); got != `[{"id":1,"name":"Nursery"}]` {
			t.Errorf("body = %q", got)
		}
	})

	t.Run("no rooms", func(t *testing.T) {
		ctrl := newTestController(&mockRepo{})
		rec := httptest.NewRecorder()

		ctrl.handleRooms(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))

		if got := strings.TrimSpace(rec.Body.String()); got != `[]` {
			t.Errorf("body = %q; want []", got)
		}
	})

	t.Run("error message as plain text", func(t *testing.T) {
		ctrl := newTestController(&mockRepo{roomsErr: errors.New("no such table: rooms")})
		rec := httptest.NewRecorder()

		ctrl.handleRooms(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusInternalServerError)
		}
		if got := rec.Body.String(); got != "no such table: rooms" {
			t.Errorf("body = %q", got)
		}
	})
}

func TestRegisterRoutes(t *testing.T) {
	rt := routeTable{}
	newTestController(&mockRepo{}).RegisterRoutes(rt)

	for _, path := range []string{"/op/add", "/temp", "/rooms"} {
		if rt[path] == nil {
			t.Errorf("route %s not registered", path)
		}
	}
	if len(rt) != 3 {
		t.Errorf("registered %d routes; want 3", len(rt))
	}

	t.Run("temp answers CORS preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/temp", nil)
		req.Header.Set("Origin", "https://dashboard.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rec := httptest.NewRecorder()

		rt["/temp"].ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusNoContent)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Access-Control-Allow-Origin = %q; want *", got)
		}
	})

	t.Run("temp cross origin GET", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/temp", nil)
		req.Header.Set("Origin", "https://dashboard.example")
		rec := httptest.NewRecorder()

		rt["/temp"].ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Access-Control-Allow-Origin = %q; want *", got)
		}
	})
}
