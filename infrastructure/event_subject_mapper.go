package infrastructure

import (
	"fmt"

	"raffler/events"
)

// DomainEventStream is the JetStream stream holding every published domain event
const DomainEventStream = "raffle_events"

var subjectsByType = map[events.EventType]string{
	events.EventTypeRaffleCreated:       "raffles.created",
	events.EventTypeRaffleStatusChanged: "raffles.status_changed",
	events.EventTypeDrawSettingsUpdated: "raffles.draw_settings_updated",
	events.EventTypeWinningNumbersSet:   "raffles.winning_numbers_set",
	events.EventTypeTicketPurchased:     "tickets.purchased",
	events.EventTypeTicketStatusChanged: "tickets.status_changed",
}

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	if subject, ok := subjectsByType[event.Type()]; ok {
		return subject
	}
	return fmt.Sprintf("unknown.%s", event.Type())
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	for eventType, s := range subjectsByType {
		if s == subject {
			return eventType
		}
	}
	return events.EventType(subject)
}

// GetAllSubjects returns every subject this service publishes to, in event type order
func (m *EventSubjectMapper) GetAllSubjects() []string {
	subjects := make([]string, 0, len(events.AllEventTypes))
	for _, eventType := range events.AllEventTypes {
		subjects = append(subjects, subjectsByType[eventType])
	}
	return subjects
}
