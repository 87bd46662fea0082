package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"energia-backend/internal/adapters/persistence/repositories"
	"energia-backend/internal/core/domain"
	"energia-backend/internal/pkg/metrics"

	"github.com/rs/zerolog/log"
)

// Reading outcomes
const (
	ReadingStored  = "stored"
	ReadingDropped = "dropped"
	ReadingFailed  = "failed"
)

// ErrNoValue is returned for payloads without a value or y field
var ErrNoValue = errors.New("no value field in payload")

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// IngestService turns broker messages into sensor_data rows
type IngestService struct {
	store   repositories.Store
	metrics *metrics.Metrics
	now     Clock
}

// NewIngestService creates a new ingest service
func NewIngestService(store repositories.Store, m *metrics.Metrics) *IngestService {
	return &IngestService{
		store:   store,
		metrics: m,
		now:     time.Now,
	}
}

// HandleMessage parses and stores one message. Malformed payloads are dropped and logged.
func (s *IngestService) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	reading, err := s.ParsePayload(topic, payload)
	if err != nil {
		s.metrics.RecordReading(ReadingDropped)
		log.Warn().Err(err).Str("topic", topic).Msg("⚠️ Sensor payload dropped")
		return err
	}

	if err := s.store.Repos().Sensors.Insert(ctx, reading); err != nil {
		s.metrics.RecordReading(ReadingFailed)
		log.Error().Err(err).Str("device_id", reading.DeviceID).Msg("❌ Sensor reading not stored")
		return err
	}

	s.metrics.RecordReading(ReadingStored)
	log.Debug().
		Str("device_id", reading.DeviceID).
		Time("ds", reading.DS).
		Float64("value", reading.Value).
		Msg("📈 Sensor reading stored")
	return nil
}

// ParsePayload decodes {device_id|id, ts, value|y}.
// The device falls back to the topic and a missing or unparsable ts to now (UTC).
func (s *IngestService) ParsePayload(topic string, payload []byte) (*domain.SensorReading, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}

	raw, ok := fields["value"]
	if !ok || raw == nil {
		raw = fields["y"]
	}
	if raw == nil {
		return nil, ErrNoValue
	}
	value, err := toFloat(raw)
	if err != nil {
		return nil, err
	}

	deviceID := firstString(fields["device_id"], fields["id"])
	if deviceID == "" {
		deviceID = topic
	}

	return &domain.SensorReading{
		DS:       s.parseTimestamp(fields["ts"]),
		DeviceID: deviceID,
		Value:    value,
	}, nil
}

func (s *IngestService) parseTimestamp(raw interface{}) time.Time {
	str, ok := raw.(string)
	if !ok || strings.TrimSpace(str) == "" {
		return s.now().UTC()
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, strings.TrimSpace(str)); err == nil {
			return ts.UTC()
		}
	}
	return s.now().UTC()
}

func toFloat(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("value has unsupported type %T", raw)
	}
}

func firstString(candidates ...interface{}) string {
	for _, c := range candidates {
		switch v := c.(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}
