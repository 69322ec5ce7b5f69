package tasks

import "time"

// Task Types
const (
	// Collaboration maintenance tasks
	TaskTypeShareExpirySweep = "collab:share_expiry"
	TaskTypePresenceSweep    = "collab:presence_sweep"

	// Notification fan-out
	TaskTypeNotify = "collab:notify"
)

// Task Queues
const (
	QueueCritical = "critical" // For time-sensitive tasks like notifications
	QueueDefault  = "default"  // For regular tasks
	QueueLow      = "low"      // For background tasks like cleanup
)

// Task Priorities (1-10, higher is more important)
const (
	PriorityCritical = 10
	PriorityHigh     = 8
	PriorityNormal   = 5
	PriorityLow      = 3
	PriorityBG       = 1
)

// Task Timeouts
const (
	TimeoutShort  = 1 * time.Minute
	TimeoutMedium = 5 * time.Minute
	TimeoutLong   = 30 * time.Minute
)

// Task Retry Settings
const (
	RetryMax     = 5
	RetryDefault = 3
	RetryMin     = 1
)

// NotifyPayload describes one notification to fan out: a share granted, an
// access request filed or resolved, a comment posted. Delivery (email, push)
// lives upstream; this service records and forwards.
type NotifyPayload struct {
	Event        string `json:"event"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	ActorID      string `json:"actor_id"`
	TargetUserID string `json:"target_user_id"`
	Detail       string `json:"detail,omitempty"`
}
