package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/pinforge-core/internal/pinmap"
	"github.com/nerrad567/pinforge-core/internal/project"
)

// defaultRequestTimeout bounds a single allocation request.
const defaultRequestTimeout = 10 * time.Second

// PublishAllocation publishes ev as the retained summary of its project,
// implementing project.ResultPublisher.
func (c *Client) PublishAllocation(_ context.Context, ev project.Event) error {
	if ev.ProjectID == "" {
		return fmt.Errorf("%w: allocation event has no project id", ErrInvalidTopic)
	}
	return c.PublishJSON(Topics{}.Allocation(ev.ProjectID), ev, true)
}

// AllocateRequest is the payload of Topics.AllocateRequest.
type AllocateRequest struct {
	Spec project.Spec `json:"spec"`
}

// AllocateResponse is the payload of Topics.AllocateResponse. Exactly one
// of Result and Error is set.
type AllocateResponse struct {
	RequestID string         `json:"request_id"`
	OK        bool           `json:"ok"`
	Error     string         `json:"error,omitempty"`
	Result    *pinmap.Result `json:"result,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Previewer runs an unsaved allocation. *project.Service implements it.
type Previewer interface {
	Preview(ctx context.Context, spec project.Spec) (pinmap.Result, *project.Plan, error)
}

// Publisher is the publishing half of Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// AllocationResponder answers allocation requests published on
// pinforge/request/allocate/<request_id>. Each reply goes to the matching
// response topic, so callers pick their own request id and subscribe to
// its response before publishing.
type AllocationResponder struct {
	previewer Previewer
	publisher Publisher
	qos       byte
	timeout   time.Duration
	logger    Logger
	now       func() time.Time
}

// NewAllocationResponder creates a responder that replies with qos.
func NewAllocationResponder(previewer Previewer, publisher Publisher, qos byte) *AllocationResponder {
	return &AllocationResponder{
		previewer: previewer,
		publisher: publisher,
		qos:       qos,
		timeout:   defaultRequestTimeout,
		now:       time.Now,
	}
}

// SetLogger sets the logger used for rejected requests.
func (r *AllocationResponder) SetLogger(logger Logger) {
	r.logger = logger
}

// Start subscribes the responder on c.
func (r *AllocationResponder) Start(c *Client) error {
	return c.Subscribe(Topics{}.AllAllocateRequests(), r.qos, r.Handle)
}

// Handle is the MessageHandler for allocation requests.
//
// A payload that does not decode, or a spec the planner rejects, is
// answered with ok=false and the error text. Only a topic without a usable
// request id goes unanswered, since there is nowhere to reply.
func (r *AllocationResponder) Handle(topic string, payload []byte) error {
	requestID, ok := Topics{}.ParseAllocateRequest(topic)
	if !ok {
		return fmt.Errorf("%w: topic %q", ErrInvalidRequest, topic)
	}

	resp := AllocateResponse{RequestID: requestID}

	var req AllocateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		resp.Error = fmt.Sprintf("%v: %v", ErrInvalidRequest, err)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		result, _, err := r.previewer.Preview(ctx, req.Spec)
		cancel()
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.OK = true
			resp.Result = &result
		}
	}
	resp.Timestamp = r.now().UTC()

	if resp.Error != "" && r.logger != nil {
		r.logger.Warn("allocation request rejected", "request_id", requestID, "error", resp.Error)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	if err := r.publisher.Publish(Topics{}.AllocateResponse(requestID), data, r.qos, false); err != nil {
		return fmt.Errorf("publishing response %s: %w", requestID, err)
	}
	return nil
}
