package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecorder_DrainEmpties(t *testing.T) {
	r := NewRecorder(10, nil)
	r.Notify("added", SeveritySuccess)
	r.Notify("cart is empty", SeverityWarning)

	msgs := r.Drain()
	require.Len(t, msgs, 2)
	assert.Equal(t, "added", msgs[0].Text)
	assert.Equal(t, SeverityWarning, msgs[1].Severity)

	assert.Empty(t, r.Drain())
}

func TestRecorder_KeepsNewestWithinLimit(t *testing.T) {
	r := NewRecorder(2, nil)
	r.Notify("one", SeverityInfo)
	r.Notify("two", SeverityInfo)
	r.Notify("three", SeverityInfo)

	msgs := r.Drain()
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Text)
	assert.Equal(t, "three", msgs[1].Text)
}

func TestRecorder_ForwardsToLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := NewRecorder(0, NewLogNotifier(zap.New(core)))

	r.Notify("payment failed", SeverityError)
	r.Notify("added", SeveritySuccess)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
	assert.Equal(t, "payment failed", entries[0].Message)
	assert.Equal(t, "success", entries[1].ContextMap()["severity"])
}
