package onceref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCellSetGet(t *testing.T) {
	var c Cell[int]
	_, ok := c.Get()
	assert.False(t, ok)

	c.Set(42)
	v, ok := c.Get()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
	assert.True(t, c.IsSet())
}

func TestCellDoubleSetPanics(t *testing.T) {
	var c Cell[string]
	c.Set("a")
	assert.Panics(t, func() { c.Set("b") })
}
