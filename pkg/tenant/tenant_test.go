package tenant

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_TouchCreatesTenantOnFirstSight(t *testing.T) {
	m := New()
	assert.Equal(t, 0, m.Count())

	tn := m.Touch("acme")
	require.NotNil(t, tn)
	assert.Equal(t, "acme", tn.ID)
	assert.Equal(t, 1, m.Count())

	got, ok := m.Get("acme")
	assert.True(t, ok)
	assert.Same(t, tn, got)
}

func TestManager_TouchOnExistingTenantUpdatesActivityNotIdentity(t *testing.T) {
	m := New()
	first := m.Touch("acme")
	second := m.Touch("acme")

	assert.Same(t, first, second)
	assert.Equal(t, 1, m.Count())
}

func TestManager_GetUnknownTenantReturnsFalse(t *testing.T) {
	m := New()
	_, ok := m.Get("missing")
	assert.False(t, ok)
}

func TestManager_ListReturnsAllDiscoveredTenants(t *testing.T) {
	m := New()
	m.Touch("acme")
	m.Touch("globex")

	ids := map[string]bool{}
	for _, tn := range m.List() {
		ids[tn.ID] = true
	}
	assert.Equal(t, map[string]bool{"acme": true, "globex": true}, ids)
}

func TestManager_ConcurrentTouchCreatesOneTenant(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	results := make([]*Tenant, 10)
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = m.Touch("acme")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, m.Count())
	for _, tn := range results {
		assert.Same(t, results[0], tn)
	}
}
