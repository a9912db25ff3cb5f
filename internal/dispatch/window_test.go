package dispatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/mindflex/internal/thinkgear"
)

func attention(v uint8) thinkgear.Record {
	return thinkgear.Record{Present: thinkgear.FieldQuality | thinkgear.FieldAttention, Attention: v}
}

func TestWindow_EvictsOldest(t *testing.T) {
	w := NewWindow(3)
	for _, v := range []uint8{10, 20, 30, 40} {
		assert.NoError(t, w.OnRecord(attention(v)))
	}
	assert.Equal(t, []float64{20, 30, 40}, w.Snapshot())
}

func TestWindow_IgnoresTrivialAndMissingAttention(t *testing.T) {
	w := NewWindow(0)
	w.OnRecord(thinkgear.Record{Present: thinkgear.FieldAttention, Attention: 99})
	w.OnRecord(thinkgear.Record{Present: thinkgear.FieldQuality | thinkgear.FieldMeditation})
	assert.Empty(t, w.Snapshot())
}

func TestWindow_Summary(t *testing.T) {
	w := NewWindow(10)
	assert.Equal(t, WindowSummary{}, w.Summary())

	w.Push(40)
	s := w.Summary()
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, 0.0, s.StdDev)

	w.Push(60)
	s = w.Summary()
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 60.0, s.Latest)
	assert.InDelta(t, 50.0, s.Mean, 1e-9)
	assert.InDelta(t, 14.1421356, s.StdDev, 1e-6)
	assert.Equal(t, 40.0, s.Min)
	assert.Equal(t, 60.0, s.Max)
}

func TestWindow_ConcurrentAccess(t *testing.T) {
	w := NewWindow(DEFAULT_WINDOW_SIZE)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			w.OnRecord(attention(uint8(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = w.Summary()
		}
	}()
	wg.Wait()
	assert.Len(t, w.Snapshot(), DEFAULT_WINDOW_SIZE)
}
