package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentKeyAppearsOnce(t *testing.T) {
	var buf bytes.Buffer
	t.Cleanup(Replace(newBase(&buf, "course-ledger", "info")))

	New("ledger").Info("sale credited", "instructor_id", 7)

	line := buf.String()
	assert.Equal(t, 1, strings.Count(line, `"component"`), line)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "ledger", rec["component"])
	assert.Equal(t, "course-ledger", rec["service"])
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := newBase(&buf, "course-ledger", "warn")

	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestFromCtxFallsBackToBase(t *testing.T) {
	var buf bytes.Buffer
	scoped := newBase(&buf, "course-ledger", "info").With("req_id", "r1")

	ctx := WithCtx(context.Background(), scoped)
	FromCtx(ctx).Info("scoped")
	assert.Contains(t, buf.String(), `"req_id":"r1"`)

	assert.NotNil(t, FromCtx(context.Background()))
}
