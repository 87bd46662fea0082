package services

import (
	"context"
	"testing"
	"time"

	"energia-backend/internal/adapters/persistence/repositories"
	"energia-backend/internal/adapters/persistence/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload(t *testing.T) {
	fixed := time.Date(2025, 12, 6, 8, 0, 0, 0, time.UTC)
	svc := NewIngestService(nil, nil)
	svc.now = func() time.Time { return fixed }

	tests := []struct {
		name       string
		payload    string
		wantDevice string
		wantTS     time.Time
		wantValue  float64
	}{
		{
			name:       "full payload",
			payload:    `{"device_id":"esp32-01","ts":"2025-12-06T12:34:00Z","value":12.34}`,
			wantDevice: "esp32-01",
			wantTS:     time.Date(2025, 12, 6, 12, 34, 0, 0, time.UTC),
			wantValue:  12.34,
		},
		{
			name:       "id and y aliases",
			payload:    `{"id":7,"ts":"2025-12-06T18:04:00+05:30","y":"3.5"}`,
			wantDevice: "7",
			wantTS:     time.Date(2025, 12, 6, 12, 34, 0, 0, time.UTC),
			wantValue:  3.5,
		},
		{
			name:       "naive timestamp is utc",
			payload:    `{"device_id":"m","ts":"2025-12-06T12:34:00","value":1}`,
			wantDevice: "m",
			wantTS:     time.Date(2025, 12, 6, 12, 34, 0, 0, time.UTC),
			wantValue:  1,
		},
		{
			name:       "topic and now fallbacks",
			payload:    `{"ts":"yesterday","value":0}`,
			wantDevice: "energia/sensors/lab1",
			wantTS:     fixed,
			wantValue:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reading, err := svc.ParsePayload("energia/sensors/lab1", []byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.wantDevice, reading.DeviceID)
			assert.True(t, tt.wantTS.Equal(reading.DS), "got %s", reading.DS)
			assert.InDelta(t, tt.wantValue, reading.Value, 1e-9)
		})
	}
}

func TestParsePayloadRejects(t *testing.T) {
	svc := NewIngestService(nil, nil)

	_, err := svc.ParsePayload("t", []byte(`{"device_id":"m"}`))
	assert.ErrorIs(t, err, ErrNoValue)

	_, err = svc.ParsePayload("t", []byte(`not json`))
	assert.Error(t, err)

	_, err = svc.ParsePayload("t", []byte(`{"value":"abc"}`))
	assert.Error(t, err)
}

func TestHandleMessageStoresReading(t *testing.T) {
	db := testdb.Open(t)
	svc := NewIngestService(repositories.NewStore(db), nil)
	ctx := context.Background()

	require.NoError(t, svc.HandleMessage(ctx, "energia/sensors/lab1", []byte(`{"device_id":"m1","value":4.2}`)))
	assert.Error(t, svc.HandleMessage(ctx, "energia/sensors/lab1", []byte(`{"device_id":"m1"}`)))

	var count int64
	require.NoError(t, db.Table("sensor_data").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
