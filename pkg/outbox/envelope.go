package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CurrentVersion is the envelope schema version written by Emit.
const CurrentVersion = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported envelope version")
	ErrMissingData        = errors.New("envelope data missing")
)

// ActorRef identifies who caused the change.
type ActorRef struct {
	UserID         uuid.UUID  `json:"userId"`
	OrganisationID *uuid.UUID `json:"organisationId,omitempty"`
}

// PayloadEnvelope wraps every event body stored in outbox_events.payload and
// sent on the wire. Data holds the event-specific payload.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

func newEnvelope(event DomainEvent) (PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("marshal %s data: %w", event.EventType, err)
	}
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	version := event.Version
	if version == 0 {
		version = CurrentVersion
	}
	return PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: occurredAt.UTC(),
		Actor:      event.Actor,
		Data:       data,
	}, nil
}

// ParseEnvelope decodes raw and rejects versions newer than this build
// understands as well as envelopes whose data is absent or null.
func ParseEnvelope(raw []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return envelope, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Version < 1 || envelope.Version > CurrentVersion {
		return envelope, fmt.Errorf("%w: %d", ErrUnsupportedVersion, envelope.Version)
	}
	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return envelope, ErrMissingData
	}
	return envelope, nil
}
