package synchronizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttributesStore(t *testing.T) {
	a := NewAttributesStore()

	a.Set("plan", "premium")
	a.SetAll(map[string]interface{}{"age": 30, "beta": true})

	v, ok := a.Get("plan")
	assert.True(t, ok)
	assert.Equal(t, "premium", v)
	assert.Equal(t, map[string]interface{}{"plan": "premium", "age": 30, "beta": true}, a.GetAll())

	a.Remove("age")
	_, ok = a.Get("age")
	assert.False(t, ok)

	a.Clear()
	assert.Len(t, a.GetAll(), 0)
}
