package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mindflex/internal/thinkgear"
)

func TestChannelSubscriber_DeliversAndDrops(t *testing.T) {
	c := NewChannelSubscriber(2, 1)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.OnRecord(thinkgear.Record{Present: thinkgear.FieldAttention, Attention: uint8(i)}))
	}
	require.NoError(t, c.OnTrigger(Trigger{Attention: 70}))
	require.NoError(t, c.OnTrigger(Trigger{Attention: 80}))

	assert.EqualValues(t, 2, c.Dropped())
	assert.EqualValues(t, 0, (<-c.Records()).Attention)
	assert.EqualValues(t, 1, (<-c.Records()).Attention)
	assert.EqualValues(t, 70, (<-c.Triggers()).Attention)
}

func TestChannelSubscriber_Close(t *testing.T) {
	c := NewChannelSubscriber(1, 1)
	c.Close()
	c.Close()

	_, ok := <-c.Records()
	assert.False(t, ok, "records channel should be closed")
	_, ok = <-c.Triggers()
	assert.False(t, ok, "triggers channel should be closed")

	assert.NoError(t, c.OnRecord(thinkgear.Record{}))
	assert.NoError(t, c.OnTrigger(Trigger{}))
}

func TestChannelSubscriber_DisabledStream(t *testing.T) {
	c := NewChannelSubscriber(0, 1)
	assert.Nil(t, c.Records())
	assert.NoError(t, c.OnRecord(thinkgear.Record{}))
	assert.EqualValues(t, 0, c.Dropped())
}
