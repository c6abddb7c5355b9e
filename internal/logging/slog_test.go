package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// recordingExporter keeps the scope, body and attributes of exported records.
type recordingExporter struct {
	mu      sync.Mutex
	records []exported
	flushes int
}

type exported struct {
	scope string
	body  string
	attrs map[string]string
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		rec := exported{
			scope: r.InstrumentationScope().Name,
			body:  r.Body().AsString(),
			attrs: map[string]string{},
		}
		r.WalkAttributes(func(kv otellog.KeyValue) bool {
			rec.attrs[kv.Key] = kv.Value.AsString()
			return true
		})
		e.records = append(e.records, rec)
	}
	return nil
}

func (e *recordingExporter) ForceFlush(context.Context) error {
	e.mu.Lock()
	e.flushes++
	e.mu.Unlock()
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error { return nil }

func (e *recordingExporter) find(body string) (exported, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.records {
		if r.body == body {
			return r, true
		}
	}
	return exported{}, false
}

func newRecordingProvider(t *testing.T) (*sdklog.LoggerProvider, *recordingExporter) {
	t.Helper()
	exp := &recordingExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider, exp
}

func TestSetup_FileOnly_NoStdout(t *testing.T) {
	restore := captureStdout(t)

	var file bytes.Buffer
	m := NewSlogManager()
	m.Setup(&file, "info", nil)
	m.Logger().Info("route created", "id", "r1")

	stdout := restore()
	assert.Contains(t, file.String(), "Logging initialized")
	assert.Contains(t, file.String(), "id=r1")
	assert.Empty(t, stdout)
}

func TestSetup_NoFile_WritesToStdout(t *testing.T) {
	restore := captureStdout(t)

	m := NewSlogManager()
	m.Setup(nil, "info", nil)
	m.Logger().Info("listening", "addr", ":8080")

	assert.Contains(t, restore(), "addr=:8080")
}

func TestSetup_Level(t *testing.T) {
	tests := []struct {
		level   string
		debug   bool
		warning bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"error", false, false},
		{"bogus", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewSlogManager()
			m.Setup(&buf, tt.level, nil)
			m.Logger().Debug("marker parsed")
			m.Logger().Warn("grade unknown")

			assert.Equal(t, tt.debug, bytes.Contains(buf.Bytes(), []byte("marker parsed")))
			assert.Equal(t, tt.warning, bytes.Contains(buf.Bytes(), []byte("grade unknown")))
		})
	}
}

func TestSetup_ServiceNameIsOTelScope(t *testing.T) {
	tests := []struct {
		name    string
		service string
		want    string
	}{
		{"default", DefaultServiceName, "spraywall"},
		{"custom", "spraywall-api", "spraywall-api"},
		{"empty falls back", "", DefaultServiceName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, exp := newRecordingProvider(t)
			m := NewSlogManager()
			m.ServiceName = tt.service
			m.Setup(&bytes.Buffer{}, "info", provider)
			m.Logger().Info("route deleted")

			rec, ok := exp.find("route deleted")
			require.True(t, ok)
			assert.Equal(t, tt.want, rec.scope)
		})
	}
}

func TestSetup_RequestIDReachesEverySink(t *testing.T) {
	provider, exp := newRecordingProvider(t)
	sink := &fakeGELFSink{}
	var file bytes.Buffer

	m := NewSlogManager()
	m.Setup(&file, "info", provider, NewGELFHandler(sink, "info", "spraywall"))

	ctx := WithRequestID(context.Background(), "req-7")
	m.Logger().InfoContext(ctx, "route updated", "id", "r9")

	assert.Contains(t, file.String(), "request_id=req-7")

	rec, ok := exp.find("route updated")
	require.True(t, ok)
	assert.Equal(t, "req-7", rec.attrs["request_id"])
	assert.Equal(t, "r9", rec.attrs["id"])

	require.NotEmpty(t, sink.messages)
	last := sink.messages[len(sink.messages)-1]
	assert.Equal(t, "route updated", last.Short)
	assert.Equal(t, "req-7", last.Extra["request_id"])
}

func TestSetup_FailingExtraHandlerDoesNotSilenceFile(t *testing.T) {
	var file bytes.Buffer
	m := NewSlogManager()
	m.Setup(&file, "info", nil, failingHandler{err: errors.New("graylog down")})

	m.Logger().Info("still logged")
	assert.Contains(t, file.String(), "still logged")
}

func TestSetup_ReplacesLogger(t *testing.T) {
	var first, second bytes.Buffer
	m := NewSlogManager()

	m.Setup(&first, "info", nil)
	m.Setup(&second, "info", nil)
	m.Logger().Info("after reconfigure")

	assert.NotContains(t, first.String(), "after reconfigure")
	assert.Contains(t, second.String(), "after reconfigure")
}

func TestLogger_DefaultBeforeSetup(t *testing.T) {
	assert.Equal(t, slog.Default(), NewSlogManager().Logger())
}

func TestFlush(t *testing.T) {
	m := NewSlogManager()
	assert.NoError(t, m.Flush(context.Background()))

	provider, exp := newRecordingProvider(t)
	m.Setup(&bytes.Buffer{}, "info", provider)
	require.NoError(t, m.Flush(context.Background()))
	assert.Equal(t, 1, exp.flushes)
}

func TestWriteLog(t *testing.T) {
	tests := []struct {
		level string
		want  string
	}{
		{"debug", "level=DEBUG"},
		{"info", "level=INFO"},
		{"WARN", "level=WARN"},
		{"error", "level=ERROR"},
		{"", "level=INFO"},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewSlogManager()
			m.Setup(&buf, "debug", nil)
			buf.Reset()

			m.WriteLog("backup", "snapshot written", tt.level)

			out := buf.String()
			assert.Contains(t, out, tt.want)
			assert.Contains(t, out, "function=backup")
			assert.Contains(t, out, "snapshot written")
		})
	}

	// No logger yet: dropped without panicking.
	NewSlogManager().WriteLog("backup", "dropped", "info")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("Debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

// captureStdout redirects the package's stdout to a pipe and returns a
// function that restores it and returns what was written.
func captureStdout(t *testing.T) func() string {
	t.Helper()

	r, w, err := osPipe()
	require.NoError(t, err)

	orig := osStdout
	osStdout = w

	return func() string {
		w.Close()
		osStdout = orig
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		r.Close()
		return buf.String()
	}
}
