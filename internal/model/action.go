package model

// ActionStatus is the outcome of one write issued by the action runner.
type ActionStatus string

const (
	// ActionApplied means the write returned a 2xx status.
	ActionApplied ActionStatus = "applied"

	// ActionFailed means the write failed at transport level or returned non-2xx.
	ActionFailed ActionStatus = "failed"

	// ActionSkipped means the resource does not advertise the method.
	ActionSkipped ActionStatus = "skipped"

	// ActionPlanned means the write would have been issued but dry-run was set.
	ActionPlanned ActionStatus = "planned"
)

// ActionResult records what the action runner did to one resource.
type ActionResult struct {
	// Path is the relative path of the targeted resource.
	Path string `json:"path"`

	// Method is the HTTP method that was (or would have been) issued.
	Method string `json:"method"`

	// Status is the outcome.
	Status ActionStatus `json:"status"`

	// StatusCode is the HTTP status of the write, if one was issued.
	StatusCode int `json:"status_code,omitempty"`

	// Message explains skips and failures.
	Message string `json:"message,omitempty"`
}
