// Package event defines the domain events emitted by listing status
// transitions. Events are written to the transactional outbox in the same
// database transaction as the status change; the poller ships them to
// Kafka, so a listener never sees an event for a transition that did not
// commit, and a listener failure never rolls a transition back.
package event

import (
	"encoding/json"
	"time"

	"github.com/hazemadel/carmarket-service/internal/model"
)

// Kind discriminates the listing event union.
type Kind string

const (
	KindListingApproved   Kind = "listing.approved"
	KindListingMarkedSold Kind = "listing.marked_sold"
	KindListingArchived   Kind = "listing.archived"
)

// ListingEvent is the payload carried by every listing status event. It is
// a snapshot of the listing's flags after the transition was applied.
type ListingEvent struct {
	Kind          Kind      `json:"kind"`
	ListingID     uint64    `json:"listing_id"`
	SellerID      uint64    `json:"seller_id"`
	Approved      bool      `json:"approved"`
	Sold          bool      `json:"sold"`
	Archived      bool      `json:"archived"`
	UserActive    bool      `json:"user_active"`
	IsAdminAction bool      `json:"is_admin_action"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ListingApproved records that a listing passed moderation. Approval is
// always a privileged action.
func ListingApproved(l *model.Listing) *model.OutboxEvent {
	return toOutbox(KindListingApproved, l, true)
}

// ListingMarkedSold records that a listing was marked as sold, by the
// seller or by an admin.
func ListingMarkedSold(l *model.Listing, admin bool) *model.OutboxEvent {
	return toOutbox(KindListingMarkedSold, l, admin)
}

// ListingArchived records that a listing was archived, by the seller or by
// an admin. Unarchiving emits no event.
func ListingArchived(l *model.Listing, admin bool) *model.OutboxEvent {
	return toOutbox(KindListingArchived, l, admin)
}

func toOutbox(kind Kind, l *model.Listing, admin bool) *model.OutboxEvent {
	payload, _ := json.Marshal(ListingEvent{
		Kind:          kind,
		ListingID:     l.ID,
		SellerID:      l.SellerID,
		Approved:      l.Approved,
		Sold:          l.Sold,
		Archived:      l.Archived,
		UserActive:    l.UserActive,
		IsAdminAction: admin,
		OccurredAt:    time.Now().UTC(),
	})
	return &model.OutboxEvent{
		Aggregate:   "Listing",
		AggregateID: l.ID,
		EventType:   string(kind),
		Payload:     string(payload),
	}
}
