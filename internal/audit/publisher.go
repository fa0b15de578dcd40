package audit

import (
	"context"

	id "fundforge/pkg/domain"
	"fundforge/pkg/requestcontext"
)

// Store is the append-only event sink behind a Publisher.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByCampaign(ctx context.Context, campaignID id.CampaignID) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, base Event) error {
	stamp(ctx, &base)
	return p.store.Append(ctx, base)
}

func (p *Publisher) List(ctx context.Context, campaignID id.CampaignID) ([]Event, error) {
	return p.store.ListByCampaign(ctx, campaignID)
}

// ChannelPublisher hands events to a background Worker instead of writing
// inline. Emit never blocks the caller; when the inbox is full the event is
// dropped rather than stalling a funding operation.
type ChannelPublisher struct {
	inbox chan<- Event
}

func NewChannelPublisher(inbox chan<- Event) *ChannelPublisher {
	return &ChannelPublisher{inbox: inbox}
}

func (p *ChannelPublisher) Emit(ctx context.Context, base Event) error {
	stamp(ctx, &base)
	select {
	case p.inbox <- base:
	default:
	}
	return nil
}

func stamp(ctx context.Context, e *Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = requestcontext.Now(ctx)
	}
	if e.RequestID == "" {
		e.RequestID = requestcontext.RequestID(ctx)
	}
}

// Fanout emits each event to every sink in order, keeping the first error.
type Fanout []interface {
	Emit(ctx context.Context, base Event) error
}

func (f Fanout) Emit(ctx context.Context, base Event) error {
	var first error
	for _, sink := range f {
		if err := sink.Emit(ctx, base); err != nil && first == nil {
			first = err
		}
	}
	return first
}
