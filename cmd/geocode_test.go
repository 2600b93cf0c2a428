package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/naf-analyzer/internal/proximity"
	"github.com/sells-group/naf-analyzer/internal/refdata"
	"github.com/sells-group/naf-analyzer/pkg/geocode"
)

func TestLocate(t *testing.T) {
	refs, err := refdata.Load(context.Background(), refdata.Paths{}, 0)
	require.NoError(t, err)
	tiers := proximity.DefaultTiers()

	// West Palm Beach sits about 105 km from the Miami academy.
	got := locate("West Palm Beach", "FL", geocode.Resolved(26.7153, -80.0534), refs.Academies, tiers)
	require.NotNil(t, got.DistanceKM)
	assert.Contains(t, got.NearestAcademy, "Miami")
	assert.InDelta(t, 105, *got.DistanceKM, 5)
	assert.Equal(t, 0, got.ProxStrong)
	assert.Equal(t, 1, got.ProxWeak)

	none := locate("Atlantis", "XX", geocode.Unresolved, refs.Academies, tiers)
	assert.Nil(t, none.DistanceKM)
	assert.Empty(t, none.NearestAcademy)
	assert.Equal(t, 0, none.ProxStrong+none.ProxWeak)
}
