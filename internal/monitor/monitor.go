// Package monitor periodically snapshots the route catalogue: it refreshes
// the catalogue gauge, rewrites a status file and records a summary point.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spraywall/spraywall/internal/logging"
	"github.com/spraywall/spraywall/internal/observability"
	"github.com/spraywall/spraywall/internal/storage"
	"github.com/spraywall/spraywall/pkg/core"
)

// DefaultInterval is used when Dependencies.Interval is not positive.
const DefaultInterval = time.Minute

// SummaryRecorder stores catalogue totals as a time series.
type SummaryRecorder interface {
	RecordWallSummary(ctx context.Context, total int, byGrade map[core.Grade]int) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Backend    storage.Backend
	Metrics    *observability.HTTPCollector
	Summary    SummaryRecorder
	LogManager *logging.SlogManager
	StatusFile string
	Interval   time.Duration
}

// Status is one catalogue snapshot.
type Status struct {
	Time          time.Time               `json:"time"`
	Healthy       bool                    `json:"healthy"`
	Error         string                  `json:"error,omitempty"`
	Routes        int                     `json:"routes"`
	ByGrade       map[core.Grade]int      `json:"byGrade,omitempty"`
	ByMarkerType  map[core.MarkerType]int `json:"byMarkerType,omitempty"`
	Setters       int                     `json:"setters"`
	CheckDuration time.Duration           `json:"checkDurationNs"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
	last      Status
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Last returns the most recent snapshot taken by Check.
func (s *Service) Last() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Snapshot lists the whole catalogue and tallies it.
func (s *Service) Snapshot(ctx context.Context) Status {
	start := time.Now()
	st := Status{Time: start}

	routes, err := s.deps.Backend.ListRoutes(ctx, core.ListQuery{})
	st.CheckDuration = time.Since(start)
	if err != nil {
		st.Error = err.Error()
		return st
	}

	st.Healthy = true
	st.Routes = len(routes)
	st.ByGrade = make(map[core.Grade]int)
	st.ByMarkerType = make(map[core.MarkerType]int)
	setters := make(map[string]struct{})
	for _, r := range routes {
		st.ByGrade[r.Grade]++
		for _, m := range r.Markers {
			st.ByMarkerType[m.Type]++
		}
		if r.SetterName != "" {
			setters[r.SetterName] = struct{}{}
		}
	}
	st.Setters = len(setters)
	return st
}

// Check takes a snapshot and publishes it to every configured sink.
func (s *Service) Check(ctx context.Context) Status {
	logger := s.deps.LogManager.Logger()
	st := s.Snapshot(ctx)

	s.mu.Lock()
	s.last = st
	s.mu.Unlock()

	if !st.Healthy {
		logger.Error("Catalogue check failed", "function", "monitor.Check", "error", st.Error)
	} else {
		s.deps.Metrics.SetRouteCount(st.Routes)
		if s.deps.Summary != nil {
			if err := s.deps.Summary.RecordWallSummary(ctx, st.Routes, st.ByGrade); err != nil {
				logger.Warn("Failed to record wall summary", "error", err)
			}
		}
	}

	if s.deps.StatusFile != "" {
		if err := writeStatusFile(s.deps.StatusFile, st); err != nil {
			logger.Error("Error writing status file", "path", s.deps.StatusFile, "error", err)
		}
	}
	return st
}

func writeStatusFile(path string, st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Start starts the status monitor goroutine. The first check runs at once.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if s.deps.Backend == nil {
		s.mu.Unlock()
		return fmt.Errorf("monitor: no storage backend")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "function", "monitor.Start", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			s.Check(ctx)
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	done := s.done
	if s.isRunning {
		close(s.stopChan)
		s.isRunning = false
	}
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}
