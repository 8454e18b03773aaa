package fulfillment

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Task event statuses. Anything else is acknowledged without effect.
const (
	StatusOK    = "ok"
	StatusError = "error"
	StatusWarn  = "warn"
)

// Task event states reported alongside StatusOK.
const (
	TaskRunning   = "running"
	TaskCompleted = "completed"
)

// ExposePrefix marks artifact keys the provider intends for external
// exposure. The prefix is stripped on storage; keys without it are
// provider-internal and are dropped.
const ExposePrefix = "expose_to_cloud_redhat_com_"

// TaskEvent is one status update about an external provisioning task.
type TaskEvent struct {
	TaskID  string       `json:"task_id"`
	Status  string       `json:"status"`
	State   string       `json:"state"`
	Context EventContext `json:"context"`
	Output  EventOutput  `json:"output"`
}

// EventContext carries late-arriving details about the service instance
// being provisioned. All fields are optional.
type EventContext struct {
	ServiceInstance *ServiceInstance `json:"service_instance,omitempty"`
}

// ServiceInstance identifies the provisioned instance inside the engine.
type ServiceInstance struct {
	ID  string `json:"id,omitempty"`
	URL string `json:"url,omitempty"`
}

// EventOutput is the terminal payload of a task. All fields are optional;
// providers may omit any of them on any event.
type EventOutput struct {
	ID        string            `json:"id,omitempty"`
	URL       string            `json:"url,omitempty"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
}

// MalformedEventError reports an event that cannot be correlated at all.
// Optional fields never cause it; only a structurally unusable payload does.
type MalformedEventError struct {
	Reason string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed task event: %s", e.Reason)
}

// ParseEvent decodes a raw event payload.
func ParseEvent(raw []byte) (*TaskEvent, error) {
	var ev TaskEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, &MalformedEventError{Reason: err.Error()}
	}
	if ev.TaskID == "" {
		return nil, &MalformedEventError{Reason: "missing task_id"}
	}
	return &ev, nil
}

// FilterArtifacts keeps only keys carrying ExposePrefix, stripped of the
// prefix. Returns an empty map, never nil, so a terminal event with no
// exposable artifacts still overwrites stale state.
func FilterArtifacts(raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if strings.HasPrefix(k, ExposePrefix) {
			out[strings.TrimPrefix(k, ExposePrefix)] = v
		}
	}
	return out
}
