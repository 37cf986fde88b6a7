package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectory(t *testing.T) {
	d := NewDirectory()

	_, ok := d.Get("c1")
	assert.False(t, ok)

	d.Set("c1", Entry{RoomCode: "ABC123", PlayerID: "c1"})
	e, ok := d.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "ABC123", e.RoomCode)
	assert.Equal(t, 1, d.Len())

	removed, ok := d.Remove("c1")
	require.True(t, ok)
	assert.Equal(t, e, removed)

	_, ok = d.Remove("c1")
	assert.False(t, ok, "second remove is a no-op")
	assert.Zero(t, d.Len())
}

func TestDirectoryConcurrentAccess(t *testing.T) {
	d := NewDirectory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			d.Set(id, Entry{RoomCode: "ROOM01", PlayerID: id})
			_, _ = d.Get(id)
			if i%2 == 0 {
				d.Remove(id)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 25, d.Len())
}
