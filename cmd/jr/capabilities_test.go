package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jericho/internal/domain"
)

func TestParseChange(t *testing.T) {
	c, err := parseChange("Creation:mixing=+0.25")
	require.NoError(t, err)
	assert.Equal(t, domain.CapabilityChange{Domain: "Creation", Capability: "mixing", Delta: 0.25}, c)

	c, err = parseChange("Body:stamina=-1")
	require.NoError(t, err)
	assert.Equal(t, -1.0, c.Delta)

	for _, bad := range []string{"Creation:mixing", "mixing=1", ":x=1", "Creation:mixing=lots"} {
		_, err := parseChange(bad)
		assert.Error(t, err, bad)
	}
}
