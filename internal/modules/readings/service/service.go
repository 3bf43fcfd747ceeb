package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/setarcos/birdroom/internal/metrics"
	"github.com/setarcos/birdroom/internal/modules/readings/repository"
	"github.com/setarcos/birdroom/internal/modules/readings/types"
)

// Ingestion sources, used as log and metric labels.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

type ErrorKind string

const (
	// KindDecode: the payload is not a JSON object.
	KindDecode ErrorKind = "decode"
	// KindMissing: room_id is absent or falsy, or temperature is absent.
	KindMissing ErrorKind = "missing"
	// KindInvalid: a field is present but not a usable number.
	KindInvalid ErrorKind = "invalid"
	// KindPersist: the storage rejected the insert.
	KindPersist ErrorKind = "persist"
)

// IngestError tags why a reading was not stored. Field is set for
// KindInvalid.
type IngestError struct {
	Kind  ErrorKind
	Field string
	Err   error
}

func (e *IngestError) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Kind, e.Field, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// KindOf returns the IngestError kind carried by err, or "" if there is none.
func KindOf(err error) ErrorKind {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}

var errMissingFields = errors.New("room_id or temperature missing")

type Service struct {
	repository repository.ReadingsRepository
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewService(repository repository.ReadingsRepository, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repository: repository, metrics: m, logger: logger}
}

// Add decodes one JSON reading, validates it and stores it. Every failure is
// an *IngestError.
func (s *Service) Add(ctx context.Context, source string, payload []byte) error {
	reading, err := DecodeReading(payload)
	if err == nil {
		err = s.store(ctx, reading)
	}
	if err != nil {
		kind := KindOf(err)
		s.metrics.IngestFailed(source, string(kind))
		s.logger.Warn("reading rejected", "source", source, "kind", kind, "error", err)
		return err
	}

	s.metrics.ReadingIngested(source)
	s.logger.Debug("reading stored",
		"source", source,
		"room_id", reading.RoomID,
		"temperature", reading.Temperature,
	)
	return nil
}

func (s *Service) store(ctx context.Context, r types.NewReading) error {
	if err := s.repository.InsertReading(ctx, r); err != nil {
		return &IngestError{Kind: KindPersist, Err: err}
	}
	return nil
}

// DecodeReading turns a JSON payload {room_id, temperature, humidity?} into a
// NewReading. room_id counts as missing when it is absent, null, false, 0 or
// "". temperature counts as missing only when the key is absent. A null or
// absent humidity is stored as NULL.
func DecodeReading(payload []byte) (types.NewReading, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return types.NewReading{}, &IngestError{Kind: KindDecode, Err: err}
	}
	if dec.More() {
		return types.NewReading{}, &IngestError{Kind: KindDecode, Err: errors.New("trailing data after JSON object")}
	}
	if fields == nil {
		return types.NewReading{}, &IngestError{Kind: KindDecode, Err: errors.New("payload is null")}
	}

	rawRoom := fields["room_id"]
	rawTemp, hasTemp := fields["temperature"]
	if isFalsy(rawRoom) || !hasTemp {
		return types.NewReading{}, &IngestError{Kind: KindMissing, Err: errMissingFields}
	}

	roomID, err := toInt64(rawRoom)
	if err != nil {
		return types.NewReading{}, &IngestError{Kind: KindInvalid, Field: "room_id", Err: err}
	}
	temperature, err := toFloat64(rawTemp)
	if err != nil {
		return types.NewReading{}, &IngestError{Kind: KindInvalid, Field: "temperature", Err: err}
	}

	reading := types.NewReading{RoomID: roomID, Temperature: temperature}
	if rawHum := fields["humidity"]; rawHum != nil {
		humidity, err := toFloat64(rawHum)
		if err != nil {
			return types.NewReading{}, &IngestError{Kind: KindInvalid, Field: "humidity", Err: err}
		}
		reading.Humidity = &humidity
	}
	return reading, nil
}

func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == ""
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	default:
		return false
	}
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		f, err := t.Float64()
		if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return 0, fmt.Errorf("%q is not an integer", t.String())
		}
		return int64(f), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func toFloat64(v any) (float64, error) {
	var (
		f   float64
		err error
	)
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
	if err != nil {
		return 0, fmt.Errorf("not a number: %w", err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number: %v", f)
	}
	return f, nil
}
