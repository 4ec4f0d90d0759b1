package timer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartRequest_Defaults(t *testing.T) {
	cfg, err := StartRequest{}.ToConfig()
	require.NoError(t, err)

	assert.Equal(t, DirectionUp, cfg.Direction)
	assert.Equal(t, PrecisionDecisecond, cfg.BroadcastPrecision)
	assert.Equal(t, StopBehaviorAuto, cfg.StopBehavior)
	assert.Nil(t, cfg.MaxDurationMs)
}

func TestStartRequest_FromJSON(t *testing.T) {
	var req StartRequest
	body := `{"direction":"DOWN","broadcast_precision":"s","max_duration_ms":90000,"stop_behavior":"NONE"}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	cfg, err := req.ToConfig()
	require.NoError(t, err)
	assert.Equal(t, DirectionDown, cfg.Direction)
	assert.Equal(t, PrecisionSecond, cfg.BroadcastPrecision)
	assert.Equal(t, StopBehaviorNone, cfg.StopBehavior)
	require.NotNil(t, cfg.MaxDurationMs)
	assert.Equal(t, int64(90_000), *cfg.MaxDurationMs)
}

func TestStartRequest_LegacyFields(t *testing.T) {
	var req StartRequest
	body := `{"measurement_precision":"ms","direction":"down","max_duration":120,"stop_behavior":"continue"}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	cfg, err := req.ToConfig()
	require.NoError(t, err)
	assert.Equal(t, StopBehaviorNone, cfg.StopBehavior)
	require.NotNil(t, cfg.MaxDurationMs)
	assert.Equal(t, int64(120_000), *cfg.MaxDurationMs)
}

func TestStartRequest_Invalid(t *testing.T) {
	zero := int64(0)
	hugeSeconds := int64(18446744073709552)
	hugeMs := MaxDurationLimitMs + 1
	tests := map[string]StartRequest{
		"legacy seconds overflow": {MaxDuration: &hugeSeconds},
		"bound beyond limit":      {MaxDurationMs: &hugeMs},
		"down without bound": {Direction: "down"},
		"zero bound":         {MaxDurationMs: &zero},
		"unknown direction":  {Direction: "sideways"},
		"unknown precision":  {BroadcastPrecision: "us"},
		"unknown stop":       {StopBehavior: "later"},
	}

	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := req.ToConfig()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestStartRequest_LargestLegacyDurationFits(t *testing.T) {
	seconds := MaxDurationLimitMs / 1000
	cfg, err := StartRequest{MaxDuration: &seconds}.ToConfig()
	require.NoError(t, err)
	assert.Equal(t, seconds*1000, *cfg.MaxDurationMs)
}
