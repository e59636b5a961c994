package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	lg := NewWithWriter("board", &buf)

	lg.Info("order_advanced", map[string]any{"order_id": 1})
	lg.WithRequestID("req-1").Error("sync_failed", errors.New("boom"), nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "board", lines[0]["service"])
	assert.Equal(t, "order_advanced", lines[0]["action"])
	assert.Equal(t, float64(1), lines[0]["order_id"])
	assert.Equal(t, "", lines[0]["request_id"])

	assert.Equal(t, "ERROR", lines[1]["level"])
	assert.Equal(t, "req-1", lines[1]["request_id"])
	errField, ok := lines[1]["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "boom", errField["msg"])
}
