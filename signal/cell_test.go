package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellLastWriterWins(t *testing.T) {
	c := NewCell(1.0)
	c.Set(2)
	c.Set(3)
	v, ver := c.Load()
	assert.Equal(t, 3.0, v)
	assert.Equal(t, uint64(2), ver)
}

func TestCellSubscribeAndCancel(t *testing.T) {
	c := NewCell("")
	var got []string
	cancel := c.Subscribe(func(s string) { got = append(got, "a:"+s) })
	c.Subscribe(func(s string) { got = append(got, "b:"+s) })

	c.Set("x")
	require.Equal(t, []string{"a:x", "b:x"}, got)

	cancel()
	cancel()
	c.Set("y")
	assert.Equal(t, []string{"a:x", "b:x", "b:y"}, got)
	assert.Equal(t, 1, c.Subscribers())
}

func TestCellNilPointerUntilReady(t *testing.T) {
	type frame struct{ n int }
	c := NewCell[*frame](nil)
	assert.Nil(t, c.Get())
	c.Set(&frame{n: 1})
	require.NotNil(t, c.Get())
	assert.Equal(t, 1, c.Get().n)
}
