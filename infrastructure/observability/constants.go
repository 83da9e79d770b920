package observability

// Metric name prefixes
const (
	MetricPrefix = "raffler"
)

// Metric names
const (
	// Allocation metrics
	PurchasesTotal = MetricPrefix + ".tickets.purchases_total"

	// Lifecycle metrics
	RaffleStatusChangesTotal = MetricPrefix + ".raffles.status_changes_total"
	AppDrawsTotal            = MetricPrefix + ".draws.app_draws_total"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"

	// Database metrics
	LockWaitDuration = MetricPrefix + ".database.lock_wait_duration"

	// HTTP metrics
	HTTPRequestsTotal   = MetricPrefix + ".http.requests_total"
	HTTPRequestDuration = MetricPrefix + ".http.request_duration"
)

// Label keys
const (
	LabelOutcome    = "outcome"
	LabelEventType  = "event_type"
	LabelOperation  = "operation"
	LabelFromStatus = "from_status"
	LabelToStatus   = "to_status"
	LabelResult     = "result"
	LabelMethod     = "method"
	LabelRoute      = "route"
	LabelStatusCode = "status_code"
)

// Outcome values
const (
	OutcomeSuccess = "success"
	ResultSuccess  = "success"
	ResultFailure  = "failure"
)
