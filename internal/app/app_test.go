package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Felps0156/SDR-Agent/internal/booking"
	"github.com/Felps0156/SDR-Agent/internal/config"
	"github.com/Felps0156/SDR-Agent/internal/handler"
	"github.com/Felps0156/SDR-Agent/internal/logger"
	"github.com/Felps0156/SDR-Agent/internal/models"
	"github.com/Felps0156/SDR-Agent/internal/service"
)

func memoryFeatures(mode string) *service.FeatureConfig {
	features := service.DefaultFeatureConfig()
	features.Confirmation.Mode = mode
	return features
}

func TestNew(t *testing.T) {
	cfg := &config.Config{CalendarBackend: config.BackendMemory}

	t.Run("with all parameters", func(t *testing.T) {
		var buf bytes.Buffer
		log := logger.NewWithWriter(&buf)
		features := memoryFeatures("auto_approve")

		app := New(cfg, features, log)

		require.NotNil(t, app)
		assert.Equal(t, cfg, app.config)
		assert.Equal(t, features, app.features)
		assert.Equal(t, log, app.logger)
		assert.NotNil(t, app.Recorder())
	})

	t.Run("with nil logger and features", func(t *testing.T) {
		app := New(cfg, nil, nil)

		require.NotNil(t, app)
		assert.NotNil(t, app.logger)
		assert.Equal(t, service.DefaultTimeZone, app.features.Booking.TimeZone)
		assert.Nil(t, app.Orchestrator())
	})
}

func TestInitialize_MemoryBackend(t *testing.T) {
	var buf bytes.Buffer
	app := New(&config.Config{CalendarBackend: config.BackendMemory}, memoryFeatures("auto_approve"), logger.NewWithWriter(&buf))

	require.NoError(t, app.Initialize(context.Background()))
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	assert.NoError(t, app.Readiness().Err())
	orch := app.Orchestrator()
	require.NotNil(t, orch)
	assert.Equal(t, 15*time.Minute, orch.Conflicts.Buffer)
	assert.Equal(t, 15*time.Minute, orch.Conflicts.LeadBuffer)
	assert.Equal(t, time.Hour, orch.Normalizer.DefaultDuration)
	assert.True(t, orch.Policy.Requires(booking.OpCreate, booking.GateConfirmation))
	assert.False(t, orch.Policy.Requires(booking.OpDelete, booking.GateConfirmation))
	assert.Contains(t, buf.String(), "STATUS=ready")

	// Next Monday 10:00 in the booking zone.
	loc := orch.Normalizer.Location
	now := time.Now().In(loc)
	monday := now.AddDate(0, 0, (8-int(now.Weekday()))%7+7)
	start := time.Date(monday.Year(), monday.Month(), monday.Day(), 10, 0, 0, 0, loc)

	d := orch.Create(context.Background(), models.BookingRequest{
		Summary: "Ana Souza",
		Start:   start.Format("2006-01-02T15:04:05"),
	})
	require.Equal(t, booking.Committed, d.Outcome, "%+v", d)
	assert.True(t, strings.HasPrefix(d.Link, "memory://events/"))
}

func TestInitialize_SQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.db")
	app := New(&config.Config{CalendarBackend: config.BackendSQLite, SQLitePath: path}, memoryFeatures("auto_deny"), nil)

	require.NoError(t, app.Initialize(context.Background()))
	require.Len(t, app.closers, 1)
	require.NoError(t, app.Close(context.Background()))
	assert.Empty(t, app.closers)
}

func TestInitialize_MemoryBackendIsClosed(t *testing.T) {
	app := New(&config.Config{CalendarBackend: config.BackendMemory}, memoryFeatures("auto_deny"), nil)

	require.NoError(t, app.Initialize(context.Background()))
	require.Len(t, app.closers, 1)
	require.NoError(t, app.Close(context.Background()))
	assert.Empty(t, app.closers)
}

func TestInitialize_StdinConfirmation(t *testing.T) {
	features := memoryFeatures("stdin")
	features.Confirmation.Affirmative = []string{"ok"}
	features.Confirmation.TimeoutSeconds = 5

	var out bytes.Buffer
	app := New(&config.Config{CalendarBackend: config.BackendMemory}, features, nil)
	app.In = strings.NewReader("ok\n")
	app.Out = &out
	require.NoError(t, app.Initialize(context.Background()))

	loc := app.Orchestrator().Normalizer.Location
	now := time.Now().In(loc)
	monday := now.AddDate(0, 0, (8-int(now.Weekday()))%7+7)
	start := time.Date(monday.Year(), monday.Month(), monday.Day(), 11, 0, 0, 0, loc)

	d := app.Orchestrator().Create(context.Background(), models.BookingRequest{
		Summary: "Bruno Lima",
		Start:   start.Format(time.RFC3339),
	})
	assert.Equal(t, booking.Committed, d.Outcome, "%+v", d)
	assert.Contains(t, out.String(), "Bruno Lima")
}

func TestInitialize_Failures(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Config
		mutate  func(f *service.FeatureConfig)
		wantErr string
	}{
		{
			name:    "missing infra config",
			cfg:     nil,
			wantErr: "infrastructure config is missing",
		},
		{
			name:    "bad working day",
			cfg:     &config.Config{CalendarBackend: config.BackendMemory},
			mutate:  func(f *service.FeatureConfig) { f.Booking.WorkingDays = []string{"funday"} },
			wantErr: "invalid booking.working_days",
		},
		{
			name:    "bad gate",
			cfg:     &config.Config{CalendarBackend: config.BackendMemory},
			mutate:  func(f *service.FeatureConfig) { f.Gates.Update = []string{"lunar_phase"} },
			wantErr: "invalid gates.update",
		},
		{
			name:    "unknown backend",
			cfg:     &config.Config{CalendarBackend: "outlook"},
			wantErr: "unsupported calendar backend",
		},
		{
			name:    "google without credentials",
			cfg:     &config.Config{CalendarBackend: config.BackendGoogle},
			wantErr: "failed to initialize calendar service",
		},
		{
			name:    "unreachable redis",
			cfg:     &config.Config{CalendarBackend: config.BackendMemory, RedisAddr: "127.0.0.1:1"},
			wantErr: "failed to connect to redis",
		},
		{
			name:    "unknown confirmation mode",
			cfg:     &config.Config{CalendarBackend: config.BackendMemory},
			mutate:  func(f *service.FeatureConfig) { f.Confirmation.Mode = "carrier_pigeon" },
			wantErr: "unsupported confirmation mode",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SERVICE_ACCOUNT_PATH", "")
			features := memoryFeatures("auto_approve")
			if tt.mutate != nil {
				tt.mutate(features)
			}
			app := New(tt.cfg, features, nil)

			err := app.Initialize(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Nil(t, app.Orchestrator())
			assert.Error(t, app.Readiness().Err())
		})
	}
}

func TestHandler_NotInitialized(t *testing.T) {
	app := New(&config.Config{CalendarBackend: "outlook"}, nil, nil)
	_ = app.Initialize(context.Background())

	// Every tool answers not initialized instead of crashing.
	srv := handler.NewMCPServer(app.Handler(), "test")
	tool, ok := srv.ListTools()["list_upcoming"]
	require.True(t, ok)
	res, err := tool.Handler(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "Error: service not initialized.", res.Content[0].(mcp.TextContent).Text)
}

func TestClose_NotInitialized(t *testing.T) {
	app := New(&config.Config{CalendarBackend: config.BackendMemory}, nil, nil)
	assert.NoError(t, app.Close(context.Background()))
}

func TestClose_JoinsErrors(t *testing.T) {
	app := New(&config.Config{CalendarBackend: config.BackendMemory}, nil, nil)
	var order []string
	app.closers = []func() error{
		func() error { order = append(order, "first"); return assert.AnError },
		func() error { order = append(order, "second"); return nil },
	}
	err := app.Close(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"second", "first"}, order)
}
