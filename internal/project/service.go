package project

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/pinforge-core/internal/pinmap"
)

// Event types emitted after an allocation.
const (
	EventAllocationCompleted = "allocation.completed"
	EventPreviewCompleted    = "allocation.preview"
)

// BroadcastChannel is the channel allocation events are broadcast on.
const BroadcastChannel = "allocations"

// Event summarises one allocation for the notification sinks.
type Event struct {
	Type          string                `json:"type"`
	ProjectID     string                `json:"project_id,omitempty"`
	ProjectName   string                `json:"project_name,omitempty"`
	RunID         string                `json:"run_id,omitempty"`
	MCUID         string                `json:"mcu_id"`
	OK            bool                  `json:"ok"`
	Allocated     int                   `json:"allocated"`
	Conflicts     int                   `json:"conflicts"`
	Warnings      int                   `json:"warnings"`
	PinsUsed      int                   `json:"pins_used"`
	PinsAvailable int                   `json:"pins_available"`
	Reasons       map[pinmap.Reason]int `json:"conflict_reasons,omitempty"`
	Duration      time.Duration         `json:"duration_ns"`
	Timestamp     time.Time             `json:"timestamp"`
}

// NewEvent summarises result.
func NewEvent(eventType, mcuID string, result pinmap.Result, took time.Duration, at time.Time) Event {
	counts := result.CountByStatus()
	ev := Event{
		Type:          eventType,
		MCUID:         mcuID,
		OK:            result.OK(),
		Allocated:     len(result.Allocations),
		Conflicts:     len(result.Conflicts),
		Warnings:      len(result.Warnings),
		PinsUsed:      counts[pinmap.StatusBus] + counts[pinmap.StatusSensor],
		PinsAvailable: counts[pinmap.StatusAvailable],
		Duration:      took,
		Timestamp:     at.UTC(),
	}
	if len(result.Conflicts) > 0 {
		ev.Reasons = make(map[pinmap.Reason]int)
		for _, c := range result.Conflicts {
			ev.Reasons[c.Reason]++
		}
	}
	return ev
}

// ResultPublisher publishes completed project allocations (MQTT).
type ResultPublisher interface {
	PublishAllocation(ctx context.Context, ev Event) error
}

// MetricsRecorder records allocation metrics (InfluxDB, Prometheus).
type MetricsRecorder interface {
	RecordAllocation(ev Event)
}

// Broadcaster pushes events to connected UI clients (WebSocket).
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Service manages projects and runs allocations for them.
//
// Sink failures are logged and never fail the operation that triggered
// them. All methods are safe for concurrent use.
type Service struct {
	repo    Repository
	planner *Planner

	mu          sync.RWMutex
	logger      Logger
	publisher   ResultPublisher
	recorders   []MetricsRecorder
	broadcaster Broadcaster

	now func() time.Time
}

// NewService creates a service over repo, resolving specs with planner.
func NewService(repo Repository, planner *Planner) *Service {
	return &Service{
		repo:    repo,
		planner: planner,
		logger:  noopLogger{},
		now:     time.Now,
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetPublisher sets the sink for completed project allocations.
func (s *Service) SetPublisher(p ResultPublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisher = p
}

// AddRecorder adds a metrics sink. Recorders see project runs and previews.
func (s *Service) AddRecorder(r MetricsRecorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorders = append(s.recorders, r)
}

// SetBroadcaster sets the sink for UI events.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcaster = b
}

// Planner returns the planner the service resolves specs with.
func (s *Service) Planner() *Planner {
	return s.planner
}

// Create validates and stores a new project. A missing ID is generated.
func (s *Service) Create(ctx context.Context, p *Project) (*Project, error) {
	cp := p.DeepCopy()
	if cp == nil {
		return nil, ErrInvalidProject
	}
	cp.Name = strings.TrimSpace(cp.Name)
	if cp.ID == "" {
		cp.ID = GenerateID()
	}
	if err := s.check(cp); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, cp); err != nil {
		return nil, err
	}
	s.log().Info("project created", "project_id", cp.ID, "name", cp.Name, "mcu_id", cp.MCUID)
	return cp, nil
}

// Get returns a project by id.
func (s *Service) Get(ctx context.Context, id string) (*Project, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all projects.
func (s *Service) List(ctx context.Context) ([]Project, error) {
	return s.repo.List(ctx)
}

// Update validates and replaces a stored project.
func (s *Service) Update(ctx context.Context, p *Project) (*Project, error) {
	cp := p.DeepCopy()
	if cp == nil || cp.ID == "" {
		return nil, ErrInvalidProject
	}
	existing, err := s.repo.GetByID(ctx, cp.ID)
	if err != nil {
		return nil, err
	}
	cp.Name = strings.TrimSpace(cp.Name)
	cp.CreatedAt = existing.CreatedAt
	if err := s.check(cp); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, cp); err != nil {
		return nil, err
	}
	s.log().Info("project updated", "project_id", cp.ID)
	return cp, nil
}

// Delete removes a project and its runs.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log().Info("project deleted", "project_id", id)
	return nil
}

// Allocate runs the engine for a stored project, records the run and
// notifies the sinks.
func (s *Service) Allocate(ctx context.Context, id string) (*Run, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	plan, err := s.planner.Plan(p.Spec)
	if err != nil {
		return nil, err
	}

	result, took := s.allocate(plan)
	run := NewRun(p.ID, plan.MCU.ID, result, s.now())
	run.Spec = p.Spec
	if err := s.repo.RecordRun(ctx, run); err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}

	s.log().Info("project allocated",
		"project_id", p.ID,
		"run_id", run.ID,
		"mcu_id", run.MCUID,
		"allocated", run.Allocated,
		"conflicts", run.Conflicts,
		"warnings", run.Warnings,
	)

	ev := NewEvent(EventAllocationCompleted, run.MCUID, result, took, run.CreatedAt)
	ev.ProjectID = p.ID
	ev.ProjectName = p.Name
	ev.RunID = run.ID
	s.notify(ctx, ev, true)
	return run, nil
}

// ExportPlan returns the project's plan together with its latest run. It
// fails with ErrRunStale when the project's spec has changed since that run
// or the catalog no longer resolves it to the sensors the run placed.
func (s *Service) ExportPlan(ctx context.Context, id string) (*Plan, *Run, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	run, err := s.repo.LatestRun(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	same, err := sameSpec(run.Spec, p.Spec)
	if err != nil {
		return nil, nil, err
	}
	if !same {
		return nil, nil, fmt.Errorf("%w: run %s was made before the last edit", ErrRunStale, run.ID)
	}

	plan, err := s.planner.Plan(p.Spec)
	if err != nil {
		return nil, nil, err
	}
	if !placesExactly(run.Result, plan.Sensors) {
		return nil, nil, fmt.Errorf("%w: run %s no longer matches the catalog", ErrRunStale, run.ID)
	}
	return plan, run, nil
}

// placesExactly reports whether result allocates or rejects each of
// sensors once, and nothing else.
func placesExactly(result pinmap.Result, sensors []pinmap.Sensor) bool {
	if len(result.Allocations)+len(result.Conflicts) != len(sensors) {
		return false
	}
	placed := make(map[string]string, len(sensors))
	for _, a := range result.Allocations {
		placed[a.SensorID] = a.SensorName
	}
	for _, c := range result.Conflicts {
		placed[c.SensorID] = c.SensorName
	}
	for _, sensor := range sensors {
		if name, ok := placed[sensor.ID]; !ok || name != sensor.Name {
			return false
		}
	}
	return true
}

func sameSpec(a, b Spec) (bool, error) {
	aj, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("marshalling spec: %w", err)
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false, fmt.Errorf("marshalling spec: %w", err)
	}
	return bytes.Equal(aj, bj), nil
}

// Preview runs an unsaved allocation of spec. Only metrics sinks are notified.
func (s *Service) Preview(ctx context.Context, spec Spec) (pinmap.Result, *Plan, error) {
	plan, err := s.planner.Plan(spec)
	if err != nil {
		return pinmap.Result{}, nil, err
	}
	result, took := s.allocate(plan)
	s.log().Debug("preview allocated",
		"mcu_id", plan.MCU.ID,
		"sensors", len(plan.Sensors),
		"conflicts", len(result.Conflicts),
	)
	s.notify(ctx, NewEvent(EventPreviewCompleted, plan.MCU.ID, result, took, s.now()), false)
	return result, plan, nil
}

// Runs returns the recent runs of a project, newest first.
func (s *Service) Runs(ctx context.Context, projectID string, limit int) ([]Run, error) {
	if _, err := s.repo.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListRuns(ctx, projectID, limit)
}

// LatestRun returns the newest run of a project.
func (s *Service) LatestRun(ctx context.Context, projectID string) (*Run, error) {
	if _, err := s.repo.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.LatestRun(ctx, projectID)
}

// check validates a project, including its catalog references.
func (s *Service) check(p *Project) error {
	if err := ValidateProject(p); err != nil {
		return err
	}
	_, err := s.planner.Plan(p.Spec)
	return err
}

func (s *Service) allocate(plan *Plan) (pinmap.Result, time.Duration) {
	start := time.Now()
	result := plan.Allocate()
	took := time.Since(start)

	if err := result.Validate(plan.MCU, plan.Sensors); err != nil {
		s.log().Error("allocation result failed validation", "mcu_id", plan.MCU.ID, "error", err)
	}
	return result, took
}

// notify fans ev out to the sinks. Publisher and broadcaster only see
// project runs.
func (s *Service) notify(ctx context.Context, ev Event, project bool) {
	s.mu.RLock()
	logger, publisher, broadcaster := s.logger, s.publisher, s.broadcaster
	recorders := append([]MetricsRecorder(nil), s.recorders...)
	s.mu.RUnlock()

	for _, r := range recorders {
		r.RecordAllocation(ev)
	}
	if !project {
		return
	}
	if publisher != nil {
		if err := publisher.PublishAllocation(ctx, ev); err != nil {
			logger.Warn("publishing allocation failed", "project_id", ev.ProjectID, "error", err)
		}
	}
	if broadcaster != nil {
		broadcaster.Broadcast(BroadcastChannel, ev)
	}
}

func (s *Service) log() Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logger
}
