package project

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/pinforge-core/internal/pinmap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) PublishAllocation(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type recordingRecorder struct {
	events []Event
}

func (r *recordingRecorder) RecordAllocation(ev Event) {
	r.events = append(r.events, ev)
}

type recordingBroadcaster struct {
	channels []string
	payloads []any
}

func (b *recordingBroadcaster) Broadcast(channel string, payload any) {
	b.channels = append(b.channels, channel)
	b.payloads = append(b.payloads, payload)
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(NewSQLiteRepository(setupTestDB(t)), newTestPlanner(t))
	svc.now = func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestService_Create(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p := testProject("  Bench rig  ")
	p.ID = ""
	created, err := svc.Create(ctx, p)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" {
		t.Error("Create() should generate an ID")
	}
	if created.Name != "Bench rig" {
		t.Errorf("Name = %q, want %q", created.Name, "Bench rig")
	}
	if p.ID != "" {
		t.Error("Create() should not modify its argument")
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Bench rig" {
		t.Errorf("Get().Name = %q, want %q", got.Name, "Bench rig")
	}
}

func TestService_Create_Invalid(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(p *Project)
		wantErr error
	}{
		{"empty name", func(p *Project) { p.Name = " " }, ErrInvalidName},
		{"bad id", func(p *Project) { p.ID = "not-a-uuid" }, ErrInvalidProject},
		{"unknown mcu", func(p *Project) { p.MCUID = "atmega328p" }, ErrInvalidProject},
		{"unknown sensor", func(p *Project) { p.SensorIDs = []string{"nope"} }, ErrInvalidProject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProject("Valid")
			tt.mutate(p)
			if _, err := svc.Create(ctx, p); !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	projects, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(projects) != 0 {
		t.Errorf("len(List()) = %d, want 0 after rejected creates", len(projects))
	}
}

func TestService_Update(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, testProject("Original"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	change := created.DeepCopy()
	change.Name = "Renamed"
	change.CreatedAt = time.Time{}
	updated, err := svc.Update(ctx, change)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "Renamed" {
		t.Errorf("Name = %q, want Renamed", updated.Name)
	}
	if updated.CreatedAt.IsZero() {
		t.Error("Update() should keep CreatedAt")
	}

	change.MCUID = "nope"
	if _, err := svc.Update(ctx, change); !errors.Is(err, ErrInvalidProject) {
		t.Errorf("Update() unknown mcu error = %v, want ErrInvalidProject", err)
	}

	ghost := testProject("Ghost")
	if _, err := svc.Update(ctx, ghost); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("Update() missing error = %v, want ErrProjectNotFound", err)
	}
}

func TestService_Allocate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	pub := &recordingPublisher{}
	rec := &recordingRecorder{}
	bc := &recordingBroadcaster{}
	svc.SetPublisher(pub)
	svc.AddRecorder(rec)
	svc.SetBroadcaster(bc)

	created, err := svc.Create(ctx, testProject("Allocate"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	run, err := svc.Allocate(ctx, created.ID)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if !run.OK() {
		t.Errorf("run conflicts = %+v", run.Result.Conflicts)
	}
	if run.Allocated != 4 {
		t.Errorf("Allocated = %d, want 4", run.Allocated)
	}
	if run.Warnings != 1 {
		t.Errorf("Warnings = %d, want 1", run.Warnings)
	}

	latest, err := svc.LatestRun(ctx, created.ID)
	if err != nil {
		t.Fatalf("LatestRun() error = %v", err)
	}
	if latest.ID != run.ID {
		t.Errorf("LatestRun().ID = %s, want %s", latest.ID, run.ID)
	}

	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	ev := pub.events[0]
	if ev.Type != EventAllocationCompleted || ev.ProjectID != created.ID || ev.RunID != run.ID {
		t.Errorf("event = %+v, want allocation.completed for the run", ev)
	}
	// I2C1 SCL/SDA, USART1 TX/RX and the relay GPIO.
	if ev.PinsUsed != 5 {
		t.Errorf("PinsUsed = %d, want 5", ev.PinsUsed)
	}
	if len(rec.events) != 1 {
		t.Errorf("recorded %d events, want 1", len(rec.events))
	}
	if len(bc.channels) != 1 || bc.channels[0] != BroadcastChannel {
		t.Errorf("broadcast channels = %v, want [%s]", bc.channels, BroadcastChannel)
	}
}

func TestService_Allocate_SinkErrorDoesNotFail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	svc.SetPublisher(&recordingPublisher{err: errors.New("broker down")})

	created, err := svc.Create(ctx, testProject("Sinks"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Allocate(ctx, created.ID); err != nil {
		t.Errorf("Allocate() error = %v, want nil when the publisher fails", err)
	}
}

func TestService_ExportPlan(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, testProject("Export"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, _, err := svc.ExportPlan(ctx, created.ID); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("ExportPlan() before allocate error = %v, want ErrRunNotFound", err)
	}

	run, err := svc.Allocate(ctx, created.ID)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	plan, got, err := svc.ExportPlan(ctx, created.ID)
	if err != nil {
		t.Fatalf("ExportPlan() error = %v", err)
	}
	if got.ID != run.ID {
		t.Errorf("run = %s, want %s", got.ID, run.ID)
	}
	if len(plan.Sensors) != 4 {
		t.Errorf("len(Sensors) = %d, want 4", len(plan.Sensors))
	}

	// Renaming leaves the spec alone.
	created.Name = "Export renamed"
	if _, err := svc.Update(ctx, created); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, _, err := svc.ExportPlan(ctx, created.ID); err != nil {
		t.Errorf("ExportPlan() after rename error = %v", err)
	}

	created.SensorIDs = []string{"bme280"}
	if _, err := svc.Update(ctx, created); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, _, err := svc.ExportPlan(ctx, created.ID); !errors.Is(err, ErrRunStale) {
		t.Errorf("ExportPlan() after sensor edit error = %v, want ErrRunStale", err)
	}

	if _, err := svc.Allocate(ctx, created.ID); err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	plan, _, err = svc.ExportPlan(ctx, created.ID)
	if err != nil {
		t.Fatalf("ExportPlan() after reallocate error = %v", err)
	}
	if len(plan.Sensors) != 2 {
		t.Errorf("len(Sensors) = %d, want 2 (bme280 and the custom relay)", len(plan.Sensors))
	}
}

func TestPlacesExactly(t *testing.T) {
	sensors := []pinmap.Sensor{{ID: "btn", Name: "Button"}, {ID: "gps", Name: "GPS"}}
	alloc := func(id, name string) pinmap.Allocation { return pinmap.Allocation{SensorID: id, SensorName: name} }
	conflict := func(id, name string) pinmap.Conflict { return pinmap.Conflict{SensorID: id, SensorName: name} }

	tests := []struct {
		name   string
		result pinmap.Result
		want   bool
	}{
		{"allocated and rejected", pinmap.Result{
			Allocations: []pinmap.Allocation{alloc("btn", "Button")},
			Conflicts:   []pinmap.Conflict{conflict("gps", "GPS")},
		}, true},
		{"missing sensor", pinmap.Result{
			Allocations: []pinmap.Allocation{alloc("btn", "Button")},
		}, false},
		{"extra sensor", pinmap.Result{
			Allocations: []pinmap.Allocation{alloc("btn", "Button"), alloc("gps", "GPS"), alloc("led", "LED")},
		}, false},
		{"placed twice", pinmap.Result{
			Allocations: []pinmap.Allocation{alloc("btn", "Button"), alloc("btn", "Button")},
		}, false},
		{"renamed in catalog", pinmap.Result{
			Allocations: []pinmap.Allocation{alloc("btn", "Old Button"), alloc("gps", "GPS")},
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := placesExactly(tt.result, sensors); got != tt.want {
				t.Errorf("placesExactly() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestService_Allocate_NotFound(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Allocate(context.Background(), GenerateID()); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("Allocate() error = %v, want ErrProjectNotFound", err)
	}
	if _, err := svc.Runs(context.Background(), GenerateID(), 10); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("Runs() error = %v, want ErrProjectNotFound", err)
	}
}

func TestService_Preview(t *testing.T) {
	svc := newTestService(t)
	pub := &recordingPublisher{}
	rec := &recordingRecorder{}
	svc.SetPublisher(pub)
	svc.AddRecorder(rec)

	spec := Spec{
		MCUID:                 "stm32f103c8",
		SensorIDs:             []string{"button"},
		Locks:                 pinmap.PinLocks{"button": {pinmap.SignalGPIO: "PA13"}},
		UseDefaultConstraints: true,
	}
	res, plan, err := svc.Preview(context.Background(), spec)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if plan.MCU.ID != "stm32f103c8" {
		t.Errorf("plan MCU = %q, want stm32f103c8", plan.MCU.ID)
	}
	c, ok := res.Conflict("button")
	if !ok || c.Reason != pinmap.ReasonConstraintReserved {
		t.Errorf("Conflict(button) = %+v, %v, want constraint_reserved", c, ok)
	}
	if len(pub.events) != 0 {
		t.Errorf("Preview() published %d events, want 0", len(pub.events))
	}
	if len(rec.events) != 1 || rec.events[0].Type != EventPreviewCompleted {
		t.Errorf("recorded events = %+v, want one preview event", rec.events)
	}
	if rec.events[0].Reasons[pinmap.ReasonConstraintReserved] != 1 {
		t.Errorf("Reasons = %v, want constraint_reserved: 1", rec.events[0].Reasons)
	}

	projects, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(projects) != 0 {
		t.Errorf("Preview() stored %d projects, want 0", len(projects))
	}
}

func TestService_Delete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, testProject("Delete me"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, created.ID); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrProjectNotFound", err)
	}
}
