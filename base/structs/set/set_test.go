package set

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := NewSet(1, 2)
	s.AddItem(3).RemoveItem(1)
	assert.Equal(t, 2, s.Size())
	assert.False(t, s.Contains(1))
	assert.ElementsMatch(t, []int{2, 3}, s.ToArray())

	n := 0
	s.ForEach(func(v int) { n += v })
	assert.Equal(t, 5, n)
}
