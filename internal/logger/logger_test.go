package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerEnvelope(t *testing.T) {
	var buf bytes.Buffer
	log := New("order-service", "debug", &buf)

	log.Error("order_create_failed", "Failed to create order", "req-1", errors.New("boom"), map[string]interface{}{
		"table_id": "t-1",
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "order-service", entry["service"])
	assert.Equal(t, "order_create_failed", entry["action"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "t-1", entry["table_id"])
	assert.Equal(t, "Failed to create order", entry["msg"])

	errGroup, ok := entry["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "boom", errGroup["msg"])
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New("order-service", "warn", &buf)

	log.Debug("noise", "hidden", "", nil)
	log.Info("noise", "hidden", "", nil)
	assert.Zero(t, buf.Len())

	log.Warn("publish_failed", "shown", "", nil)
	assert.NotZero(t, buf.Len())
}

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
