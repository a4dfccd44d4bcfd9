package service

import (
	"encoding/json"
	"testing"

	"github.com/hazemadel/carmarket-service/internal/event"
	"github.com/hazemadel/carmarket-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEvent(t *testing.T, evt model.OutboxEvent) event.ListingEvent {
	t.Helper()
	var e event.ListingEvent
	require.NoError(t, json.Unmarshal([]byte(evt.Payload), &e))
	return e
}

func TestApprove_SucceedsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	alice := f.seedUser(t, "alice")
	l := f.seedListing(t, alice, nil)

	updated, err := f.status.Approve(f.ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, updated.Approved)
	assert.True(t, f.reload(t, l.ID).Approved)

	_, err = f.status.Approve(f.ctx, l.ID)
	var cf *ConflictError
	require.ErrorAs(t, err, &cf)
	assert.Contains(t, cf.Message, "already approved")

	evts := f.outboxEvents(t)
	require.Len(t, evts, 1)
	assert.Equal(t, string(event.KindListingApproved), evts[0].EventType)
	payload := decodeEvent(t, evts[0])
	assert.Equal(t, l.ID, payload.ListingID)
	assert.True(t, payload.Approved)
	assert.True(t, payload.IsAdminAction)
}

func TestPause_LifecycleByOwner(t *testing.T) {
	f := newFixture(t)
	alice := f.seedUser(t, "alice")
	l := f.seedListing(t, alice, func(l *model.Listing) { l.Approved = true })

	updated, err := f.status.Pause(f.ctx, l.ID, Owner("alice"))
	require.NoError(t, err)
	assert.False(t, updated.UserActive)
	assert.False(t, f.reload(t, l.ID).UserActive)

	_, err = f.status.Pause(f.ctx, l.ID, Owner("alice"))
	var cf *ConflictError
	require.ErrorAs(t, err, &cf)
	assert.Contains(t, cf.Message, "already paused")

	resumed, err := f.status.Resume(f.ctx, l.ID, Owner("alice"))
	require.NoError(t, err)
	assert.True(t, resumed.UserActive)

	// pause/resume never touch the outbox
	assert.Empty(t, f.outboxEvents(t))
}

func TestPause_RequiresApproval(t *testing.T) {
	f := newFixture(t)
	alice := f.seedUser(t, "alice")
	l := f.seedListing(t, alice, nil)

	_, err := f.status.Pause(f.ctx, l.ID, Owner("alice"))
	var cf *ConflictError
	require.ErrorAs(t, err, &cf)
	assert.Contains(t, cf.Message, "not been approved")
	assert.True(t, f.reload(t, l.ID).UserActive)
}

func TestArchived_BlocksPauseResumeAndSold(t *testing.T) {
	f := newFixture(t)
	bob := f.seedUser(t, "bob")
	l := f.seedListing(t, bob, func(l *model.Listing) {
		l.Approved = true
		l.Archived = true
	})

	var cf *ConflictError

	_, err := f.status.Pause(f.ctx, l.ID, Owner("bob"))
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, "Cannot pause a listing that has been archived.", cf.Message)

	_, err = f.status.Resume(f.ctx, l.ID, Owner("bob"))
	require.ErrorAs(t, err, &cf)
	assert.Contains(t, cf.Message, "archived")

	_, err = f.status.MarkSold(f.ctx, l.ID, Owner("bob"))
	require.ErrorAs(t, err, &cf)
	assert.Contains(t, cf.Message, "archived")

	_, err = f.status.MarkSold(f.ctx, l.ID, Admin())
	require.ErrorAs(t, err, &cf)
	assert.Contains(t, cf.Message, "archived")

	after := f.reload(t, l.ID)
	assert.True(t, after.Archived)
	assert.False(t, after.Sold)
	assert.True(t, after.UserActive)
	assert.Empty(t, f.outboxEvents(t))
}

func TestMarkSold_NonOwnerIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	carol := f.seedUser(t, "carol")
	f.seedUser(t, "dave")
	l := f.seedListing(t, carol, func(l *model.Listing) { l.Approved = true })

	_, err := f.status.MarkSold(f.ctx, l.ID, Owner("dave"))
	var ua *UnauthorizedError
	require.ErrorAs(t, err, &ua)

	after := f.reload(t, l.ID)
	assert.False(t, after.Sold)
	assert.Empty(t, f.outboxEvents(t))
}

func TestTransitions_UnknownUserAndListing(t *testing.T) {
	f := newFixture(t)
	alice := f.seedUser(t, "alice")
	l := f.seedListing(t, alice, func(l *model.Listing) { l.Approved = true })

	var nf *NotFoundError

	_, err := f.status.MarkSold(f.ctx, l.ID, Owner("ghost"))
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "user", nf.Entity)

	_, err = f.status.MarkSold(f.ctx, 9999, Owner("alice"))
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "listing", nf.Entity)

	// rejected transitions never mutate the listing
	after := f.reload(t, l.ID)
	assert.False(t, after.Sold)
	assert.Equal(t, uint64(0), after.Version)
}

func TestArchiveUnarchive_RoundTrip(t *testing.T) {
	f := newFixture(t)
	alice := f.seedUser(t, "alice")
	l := f.seedListing(t, alice, func(l *model.Listing) {
		l.Approved = true
		l.Sold = true
	})

	archived, err := f.status.Archive(f.ctx, l.ID, Owner("alice"))
	require.NoError(t, err)
	assert.True(t, archived.Archived)

	_, err = f.status.Archive(f.ctx, l.ID, Owner("alice"))
	var cf *ConflictError
	require.ErrorAs(t, err, &cf)
	assert.Contains(t, cf.Message, "already archived")

	restored, err := f.status.Unarchive(f.ctx, l.ID, Owner("alice"))
	require.NoError(t, err)
	assert.False(t, restored.Archived)

	// sold and user_active survive the round trip
	after := f.reload(t, l.ID)
	assert.True(t, after.Sold)
	assert.True(t, after.UserActive)

	_, err = f.status.Unarchive(f.ctx, l.ID, Owner("alice"))
	require.ErrorAs(t, err, &cf)
	assert.Contains(t, cf.Message, "not archived")

	// archive emits one event, unarchive none
	evts := f.outboxEvents(t)
	require.Len(t, evts, 1)
	assert.Equal(t, string(event.KindListingArchived), evts[0].EventType)
	assert.False(t, decodeEvent(t, evts[0]).IsAdminAction)
}

func TestAdminTransitions_SetAdminFlagOnEvents(t *testing.T) {
	f := newFixture(t)
	alice := f.seedUser(t, "alice")
	l := f.seedListing(t, alice, func(l *model.Listing) { l.Approved = true })

	sold, err := f.status.MarkSold(f.ctx, l.ID, Admin())
	require.NoError(t, err)
	assert.True(t, sold.Sold)

	_, err = f.status.MarkSold(f.ctx, l.ID, Admin())
	var cf *ConflictError
	require.ErrorAs(t, err, &cf)
	assert.Contains(t, cf.Message, "already marked as sold")

	evts := f.outboxEvents(t)
	require.Len(t, evts, 1)
	assert.Equal(t, string(event.KindListingMarkedSold), evts[0].EventType)
	payload := decodeEvent(t, evts[0])
	assert.True(t, payload.IsAdminAction)
	assert.True(t, payload.Sold)
}

func TestTransitions_BumpVersion(t *testing.T) {
	f := newFixture(t)
	alice := f.seedUser(t, "alice")
	l := f.seedListing(t, alice, nil)

	_, err := f.status.Approve(f.ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.reload(t, l.ID).Version)

	_, err = f.status.MarkSold(f.ctx, l.ID, Owner("alice"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f.reload(t, l.ID).Version)
}
