package eventbus

// Status tags the outcome of handling one event. The dispatcher
// branches on the tag to decide acknowledge vs. requeue instead of
// catching errors as control flow.
type Status int

const (
	// StatusOK: handled, state applied.
	StatusOK Status = iota
	// StatusNotFound: the event references an entity that no longer
	// exists locally. Expected under at-least-once delivery and event
	// races; acknowledged as success.
	StatusNotFound
	// StatusConflict: the event was already applied (duplicate
	// delivery). Acknowledged as success to keep handlers idempotent.
	StatusConflict
	// StatusRetry: transient failure (e.g. store unavailable). The
	// message is requeued for redelivery.
	StatusRetry
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusConflict:
		return "conflict"
	case StatusRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// Result carries a handler outcome plus optional error detail for
// logging. Only StatusRetry causes redelivery.
type Result struct {
	Status Status
	Err    error
}

// OK reports a successfully applied event.
func OK() Result { return Result{Status: StatusOK} }

// NotFound reports an expected-absence outcome.
func NotFound(err error) Result { return Result{Status: StatusNotFound, Err: err} }

// Conflict reports a duplicate-delivery outcome.
func Conflict(err error) Result { return Result{Status: StatusConflict, Err: err} }

// Retry reports a transient failure that should be redelivered.
func Retry(err error) Result { return Result{Status: StatusRetry, Err: err} }

// ShouldRequeue reports whether the message must be redelivered.
func (r Result) ShouldRequeue() bool { return r.Status == StatusRetry }
