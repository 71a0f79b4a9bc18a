package clientdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreReplaceAndRemoveIfSame(t *testing.T) {
	s := NewStore()
	c1 := New("conn1", "1.1.1.1")
	c2 := New("conn2", "2.2.2.2")

	_, had := s.Replace(42, c1)
	assert.False(t, had)

	prev, had := s.Replace(42, c2)
	assert.True(t, had)
	assert.Same(t, c1, prev)

	got, ok := s.Upgrade(42)
	assert.True(t, ok)
	assert.Same(t, c2, got)
}

func TestRemoveIfSameRejectsStaleClient(t *testing.T) {
	s := NewStore()
	c1 := New("conn1", "1.1.1.1")
	c2 := New("conn2", "2.2.2.2")
	s.Replace(42, c1)
	s.Replace(42, c2)

	assert.False(t, s.RemoveIfSame(42, c1))
	_, ok := s.Upgrade(42)
	assert.True(t, ok)

	assert.True(t, s.RemoveIfSame(42, c2))
	_, ok = s.Upgrade(42)
	assert.False(t, ok)
}

func TestVacuumRemovesDeauthorized(t *testing.T) {
	s := NewStore()
	c1 := New("conn1", "1.1.1.1")
	c2 := New("conn2", "2.2.2.2")
	s.Replace(1, c1)
	s.Replace(2, c2)
	c1.Deauthorize()

	removed := s.Vacuum()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Len())
}
