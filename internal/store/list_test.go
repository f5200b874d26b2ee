package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListPushPop(t *testing.T) {
	l := newList()

	assert.Equal(t, 1, l.PushRight("a"))
	assert.Equal(t, 2, l.PushRight("b"))
	assert.Equal(t, 3, l.PushLeft("front"))

	val, ok := l.PopLeft()
	assert.True(t, ok)
	assert.Equal(t, "front", val)

	val, ok = l.PopRight()
	assert.True(t, ok)
	assert.Equal(t, "b", val)

	assert.Equal(t, 1, l.Len())
}

func TestListPopEmpty(t *testing.T) {
	l := newList()

	_, ok := l.PopLeft()
	assert.False(t, ok)
	_, ok = l.PopRight()
	assert.False(t, ok)
}

func TestListRange(t *testing.T) {
	l := newList()
	for _, v := range []string{"a", "b", "c", "d", "e"} {
		l.PushRight(v)
	}

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, l.Range(0, -1))
	assert.Equal(t, []string{"b", "c"}, l.Range(1, 2))
	assert.Equal(t, []string{"d", "e"}, l.Range(-2, -1))
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, l.Range(-100, 100))
	assert.Nil(t, l.Range(3, 1))
	assert.Nil(t, l.Range(10, 20))
}

func TestListRangeEmpty(t *testing.T) {
	l := newList()
	assert.Nil(t, l.Range(0, -1))
}

func TestListRangeCopies(t *testing.T) {
	l := newList()
	l.PushRight("original")

	got := l.Range(0, -1)
	got[0] = "mutated"

	val, _ := l.PopLeft()
	assert.Equal(t, "original", val)
}
