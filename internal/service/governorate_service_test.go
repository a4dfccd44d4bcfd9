package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovernorateCreate_AndDuplicate(t *testing.T) {
	f := newFixture(t)

	g, err := f.governorates.Create(f.ctx, "Port Said")
	require.NoError(t, err)
	assert.Equal(t, "port-said", g.Slug)

	_, err = f.governorates.Create(f.ctx, "Port Said")
	var cf *ConflictError
	require.ErrorAs(t, err, &cf)
	assert.Contains(t, cf.Message, "already exists")
}

func TestGovernorateUpdate(t *testing.T) {
	f := newFixture(t)
	g, err := f.governorates.Create(f.ctx, "Alexandira")
	require.NoError(t, err)

	updated, err := f.governorates.Update(f.ctx, g.ID, "Alexandria")
	require.NoError(t, err)
	assert.Equal(t, "Alexandria", updated.Name)
	assert.Equal(t, "alexandria", updated.Slug)

	// renaming onto an existing governorate conflicts
	_, err = f.governorates.Update(f.ctx, g.ID, "Cairo")
	var cf *ConflictError
	require.ErrorAs(t, err, &cf)
}

func TestGovernorateDelete_BlockedByListings(t *testing.T) {
	f := newFixture(t)
	alice := f.seedUser(t, "alice")
	f.seedListing(t, alice, nil) // references the fixture governorate

	err := f.governorates.Delete(f.ctx, f.gov.ID)
	var cf *ConflictError
	require.ErrorAs(t, err, &cf)
	assert.Contains(t, cf.Message, "still has listings")

	empty, err := f.governorates.Create(f.ctx, "Luxor")
	require.NoError(t, err)
	require.NoError(t, f.governorates.Delete(f.ctx, empty.ID))

	var nf *NotFoundError
	_, err = f.governorates.Get(f.ctx, empty.ID)
	require.ErrorAs(t, err, &nf)
}

func TestGovernorateList(t *testing.T) {
	f := newFixture(t)
	_, err := f.governorates.Create(f.ctx, "Aswan")
	require.NoError(t, err)

	gs, err := f.governorates.List(f.ctx)
	require.NoError(t, err)
	// "Aswan" sorts before the fixture's "Cairo"
	require.Len(t, gs, 2)
	assert.Equal(t, "Aswan", gs[0].Name)
}
