package serialmux

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mindflex/internal/dispatch"
	"github.com/banshee-data/mindflex/internal/thinkgear"
	"github.com/banshee-data/mindflex/internal/timeutil"
)

func TestSyntheticFrame_Decodes(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	for i := 0; i < 50; i++ {
		wire := SyntheticFrame(rng)
		p := thinkgear.NewParser()
		var frame *thinkgear.Frame
		for _, b := range wire {
			if ev := p.Feed(b); ev.Kind == thinkgear.EventFrame {
				frame = &ev.Frame
			}
		}
		require.NotNil(t, frame, "frame %d did not synchronize", i)
		rec, err := thinkgear.Decode(frame.Payload)
		require.NoError(t, err)
		assert.Equal(t, 4, rec.Len())
		assert.LessOrEqual(t, rec.Attention, uint8(100))
	}
}

func TestNewMockSerialMux_HandshakeAndRecords(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	d := dispatch.New(dispatch.Options{Threshold: 255})
	sub := dispatch.NewChannelSubscriber(8, 0)
	d.Subscribe(sub)

	mux := NewMockSerialMux(clock, time.Second, d)
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()

	require.Eventually(t, func() bool {
		return mux.Connection().Handshake().Sent == 1
	}, 2*time.Second, 5*time.Millisecond)

	// the generator registers its ticker after the sentinel is consumed, so
	// keep advancing until records flow
	received := 0
	require.Eventually(t, func() bool {
		clock.Advance(time.Second)
		select {
		case rec := <-sub.Records():
			assert.True(t, rec.Has(thinkgear.FieldEEGBands))
			received++
		case <-time.After(20 * time.Millisecond):
		}
		return received >= 3
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, thinkgear.HandshakeCommand, mux.port.Written())
	require.NoError(t, mux.Close())
	assert.NoError(t, <-done)
}
