package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event type names used in the outbox and on the wire.
const (
	EventItemCreated = "item.created"
	EventItemDeleted = "item.deleted"
)

// DomainEvent is a committed change to the catalog. The set of variants is
// closed: ItemCreated and ItemDeleted are the only implementations.
type DomainEvent interface {
	EventType() string
	AggregateID() string
	domainEvent()
}

// ItemCreated is emitted once the insert of Item has committed.
type ItemCreated struct {
	Item CatalogItem `json:"item"`
}

func (ItemCreated) EventType() string     { return EventItemCreated }
func (e ItemCreated) AggregateID() string { return e.Item.ID }
func (ItemCreated) domainEvent()          {}

// ItemDeleted is emitted once the delete of ID has committed.
type ItemDeleted struct {
	ID string `json:"id"`
}

func (ItemDeleted) EventType() string     { return EventItemDeleted }
func (e ItemDeleted) AggregateID() string { return e.ID }
func (ItemDeleted) domainEvent()          {}

// Envelope carries an event together with its outbox sequence number. Seq is
// assigned in the committing transaction and grows monotonically per store.
type Envelope struct {
	Seq        int64
	OccurredAt time.Time
	Event      DomainEvent
}

// MarshalEvent encodes the event payload stored in the outbox.
func MarshalEvent(e DomainEvent) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", e.EventType(), err)
	}
	return data, nil
}

// UnmarshalEvent decodes an outbox payload of the given event type.
func UnmarshalEvent(eventType string, payload []byte) (DomainEvent, error) {
	switch eventType {
	case EventItemCreated:
		var e ItemCreated
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", eventType, err)
		}
		return e, nil
	case EventItemDeleted:
		var e ItemDeleted
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", eventType, err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
}
