package outbox

// Event is written to outbox_events in the same transaction as the state change
// it describes. The Kafka topic is the event type.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	AggregateSubmission     = "adoption_submission"
	EventInterviewScheduled = "adoption.interview.scheduled.v1"
)
