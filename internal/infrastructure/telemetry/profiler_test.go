package telemetry

import (
	"context"
	"strings"
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := NewProfiler(ProfilerConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_Validation(t *testing.T) {
	_, err := NewProfiler(ProfilerConfig{Enabled: true, ApplicationName: "ledger"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server address")

	_, err = NewProfiler(ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "application name")
}

func TestProfileTypes(t *testing.T) {
	assert.Equal(t, []pyroscope.ProfileType{pyroscope.ProfileCPU}, profileTypes(ProfilerConfig{}))

	all := profileTypes(ProfilerConfig{Memory: true, Goroutines: true})
	assert.Len(t, all, 6)
	assert.Contains(t, all, pyroscope.ProfileInuseSpace)
	assert.Contains(t, all, pyroscope.ProfileGoroutines)
}

func TestSanitizeLabels(t *testing.T) {
	pairs := sanitizeLabels(map[string]string{
		"Route":         "/documents/:id",
		"document-kind": "invoice",
		"document_id":   "7f1c",
		"empty":         "",
		"!!!":           "dropped",
		"operation":     strings.Repeat("x", MaxLabelValueLength+10),
	})
	require.Len(t, pairs, 6)
	assert.Equal(t, "route", pairs[0])
	assert.Equal(t, "/documents/:id", pairs[1])
	assert.Equal(t, "document_kind", pairs[2])
	assert.Equal(t, "invoice", pairs[3])
	assert.Equal(t, ProfilingLabelOperation, pairs[4])
	assert.Len(t, pairs[5], MaxLabelValueLength)

	assert.Nil(t, sanitizeLabels(nil))
}

func TestWithProfilingLabels(t *testing.T) {
	called := 0
	WithProfilingLabels(context.Background(), nil, func(context.Context) { called++ })
	WithProfilingLabels(context.Background(), OperationLabels("apply_payment", map[string]string{
		ProfilingLabelKind: "invoice",
	}), func(ctx context.Context) {
		called++
		assert.NotNil(t, ctx)
	})
	assert.Equal(t, 2, called)
}
