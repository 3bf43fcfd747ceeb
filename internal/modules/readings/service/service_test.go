package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setarcos/birdroom/internal/metrics"
	"github.com/setarcos/birdroom/internal/modules/readings/types"
)

type fakeRepository struct {
	inserted  []types.NewReading
	insertErr error
}

func (f *fakeRepository) InsertReading(_ context.Context, r types.NewReading) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, r)
	return nil
}

func (f *fakeRepository) QueryReadings(context.Context, types.ReadingFilter) ([]types.Reading, error) {
	return []types.Reading{}, nil
}

func (f *fakeRepository) ListRooms(context.Context) ([]types.Room, error) {
	return []types.Room{}, nil
}

type fakeSubscriber struct {
	handler func(topic string, payload []byte) error
}

func (f *fakeSubscriber) SetMessageHandler(handler func(topic string, payload []byte) error) {
	f.handler = handler
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDecodeReading(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		want     types.NewReading
		wantHum  *float64
		wantKind ErrorKind
		field    string
	}{
		{name: "room and temperature", payload: `{"room_id":3,"temperature":21.5}`, want: types.NewReading{RoomID: 3, Temperature: 21.5}},
		{name: "with humidity", payload: `{"room_id":3,"temperature":21.5,"humidity":40}`, want: types.NewReading{RoomID: 3, Temperature: 21.5}, wantHum: ptr(40)},
		{name: "null humidity", payload: `{"room_id":3,"temperature":21.5,"humidity":null}`, want: types.NewReading{RoomID: 3, Temperature: 21.5}},
		{name: "numeric strings", payload: `{"room_id":"7","temperature":"-2.25"}`, want: types.NewReading{RoomID: 7, Temperature: -2.25}},
		{name: "integral float room", payload: `{"room_id":2.0,"temperature":0}`, want: types.NewReading{RoomID: 2}},
		{name: "not json", payload: `room=1`, wantKind: KindDecode},
		{name: "array", payload: `[1,2]`, wantKind: KindDecode},
		{name: "null", payload: `null`, wantKind: KindDecode},
		{name: "trailing data", payload: `{"room_id":1,"temperature":2} {}`, wantKind: KindDecode},
		{name: "empty object", payload: `{}`, wantKind: KindMissing},
		{name: "room zero", payload: `{"room_id":0,"temperature":20}`, wantKind: KindMissing},
		{name: "room false", payload: `{"room_id":false,"temperature":20}`, wantKind: KindMissing},
		{name: "room empty string", payload: `{"room_id":"","temperature":20}`, wantKind: KindMissing},
		{name: "temperature absent", payload: `{"room_id":1}`, wantKind: KindMissing},
		{name: "temperature null", payload: `{"room_id":1,"temperature":null}`, wantKind: KindInvalid, field: "temperature"},
		{name: "temperature text", payload: `{"room_id":1,"temperature":"warm"}`, wantKind: KindInvalid, field: "temperature"},
		{name: "fractional room", payload: `{"room_id":1.5,"temperature":20}`, wantKind: KindInvalid, field: "room_id"},
		{name: "room object", payload: `{"room_id":{},"temperature":20}`, wantKind: KindInvalid, field: "room_id"},
		{name: "humidity bool", payload: `{"room_id":1,"temperature":20,"humidity":true}`, wantKind: KindInvalid, field: "humidity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeReading([]byte(tt.payload))
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, KindOf(err))
				var ie *IngestError
				require.ErrorAs(t, err, &ie)
				assert.Equal(t, tt.field, ie.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.RoomID, got.RoomID)
			assert.Equal(t, tt.want.Temperature, got.Temperature)
			assert.Equal(t, tt.wantHum, got.Humidity)
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))

	wrapped := errors.Join(errors.New("context"), &IngestError{Kind: KindPersist, Err: errors.New("boom")})
	assert.Equal(t, KindPersist, KindOf(wrapped))
}

func TestIngestError_Error(t *testing.T) {
	assert.Equal(t, "invalid room_id: bad", (&IngestError{Kind: KindInvalid, Field: "room_id", Err: errors.New("bad")}).Error())
	assert.Equal(t, "persist: boom", (&IngestError{Kind: KindPersist, Err: errors.New("boom")}).Error())
	assert.Equal(t, "missing", (&IngestError{Kind: KindMissing}).Error())
}

func TestService_Add(t *testing.T) {
	repo := &fakeRepository{}
	m := metrics.New()
	svc := NewService(repo, m, discardLogger())

	err := svc.Add(context.Background(), SourceHTTP, []byte(`{"room_id":1,"temperature":24.5,"humidity":55}`))
	require.NoError(t, err)
	require.Len(t, repo.inserted, 1)
	assert.Equal(t, int64(1), repo.inserted[0].RoomID)
	assert.Equal(t, 24.5, repo.inserted[0].Temperature)
	assert.Equal(t, ptr(55), repo.inserted[0].Humidity)

	err = svc.Add(context.Background(), SourceHTTP, []byte(`{"temperature":24.5}`))
	assert.Equal(t, KindMissing, KindOf(err))
	assert.Len(t, repo.inserted, 1)

	body := scrape(t, m)
	assert.Contains(t, body, `birdroom_readings_ingested_total{source="http"} 1`)
	assert.Contains(t, body, `birdroom_ingest_failures_total{kind="missing",source="http"} 1`)
}

func TestService_Add_PersistError(t *testing.T) {
	storeErr := errors.New("CHECK constraint failed")
	repo := &fakeRepository{insertErr: storeErr}
	svc := NewService(repo, nil, discardLogger())

	err := svc.Add(context.Background(), SourceHTTP, []byte(`{"room_id":27,"temperature":20}`))
	require.Error(t, err)
	assert.Equal(t, KindPersist, KindOf(err))
	assert.ErrorIs(t, err, storeErr)
}

func TestService_RegisterMQTT(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo, nil, discardLogger())
	sub := &fakeSubscriber{}

	svc.RegisterMQTT(context.Background(), sub)
	require.NotNil(t, sub.handler)

	require.NoError(t, sub.handler("birdroom/readings", []byte(`{"room_id":5,"temperature":19}`)))
	require.Len(t, repo.inserted, 1)
	assert.Equal(t, int64(5), repo.inserted[0].RoomID)

	err := sub.handler("birdroom/readings", []byte(`not json`))
	assert.Equal(t, KindDecode, KindOf(err))
}

func ptr(v float64) *float64 { return &v }

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
