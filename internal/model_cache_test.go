package internal

import (
	"testing"
	"time"

	"github.com/lychee-technology/erpgate"
	"github.com/stretchr/testify/assert"
)

func TestModelCacheSnapshot(t *testing.T) {
	c := NewModelCache(0, 2)
	defer c.Close()

	snap := c.Snapshot(1)
	assert.Nil(t, snap.Descriptors)
	assert.Nil(t, snap.Buttons)
	assert.False(t, snap.HasDefaults)

	c.SetDescriptors(partnerDescriptors())
	c.SetButtons(nil)
	c.SetDefaults(1, erpgate.Defaults{"active": true})

	snap = c.Snapshot(1)
	assert.Len(t, snap.Descriptors, len(partnerDescriptors()))
	assert.NotNil(t, snap.Buttons)
	assert.Empty(t, snap.Buttons)
	assert.True(t, snap.HasDefaults)
	assert.Equal(t, erpgate.Defaults{"active": true}, snap.Defaults)

	other := c.Snapshot(5)
	assert.False(t, other.HasDefaults)
	assert.NotNil(t, other.Descriptors)
}

func TestModelCacheDefaultsAreBounded(t *testing.T) {
	c := NewModelCache(0, 2)
	defer c.Close()

	c.SetDefaults(1, erpgate.Defaults{"a": 1})
	c.SetDefaults(2, erpgate.Defaults{"a": 2})
	c.Snapshot(1)
	c.SetDefaults(3, erpgate.Defaults{"a": 3})

	assert.True(t, c.Snapshot(1).HasDefaults)
	assert.False(t, c.Snapshot(2).HasDefaults)
	assert.True(t, c.Snapshot(3).HasDefaults)
}

func TestModelCacheClear(t *testing.T) {
	c := NewModelCache(0, 0)
	defer c.Close()

	c.SetDescriptors(partnerDescriptors())
	c.SetButtons([]erpgate.WorkflowButton{{Name: "confirm"}})
	c.SetDefaults(1, erpgate.Defaults{})
	c.Clear()

	snap := c.Snapshot(1)
	assert.Nil(t, snap.Descriptors)
	assert.Nil(t, snap.Buttons)
	assert.False(t, snap.HasDefaults)
}

func TestModelCacheExpires(t *testing.T) {
	c := NewModelCache(20*time.Millisecond, 4)
	defer c.Close()

	c.SetDescriptors(partnerDescriptors())
	c.SetDefaults(1, erpgate.Defaults{})

	assert.Eventually(t, func() bool {
		snap := c.Snapshot(1)
		return snap.Descriptors == nil && !snap.HasDefaults
	}, time.Second, 5*time.Millisecond)
}

func TestModelCacheCloseTwice(t *testing.T) {
	c := NewModelCache(time.Minute, 1)
	c.Close()
	assert.NotPanics(t, c.Close)
}
