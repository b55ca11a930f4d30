package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeFiltersTopics(t *testing.T) {
	b := New()
	all, unsubAll := b.Subscribe(4)
	jobs, unsubJobs := b.Subscribe(4, JobFinished)
	defer unsubAll()
	defer unsubJobs()

	b.Publish(Event{Type: SenderDown})
	b.Publish(Event{Type: JobFinished, Data: 1})

	require.Len(t, all, 2)
	require.Len(t, jobs, 1)
	e := <-jobs
	assert.Equal(t, JobFinished, e.Type)
	assert.False(t, e.Time.IsZero())
}

func TestPublishDropsWhenFull(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"})

	require.Len(t, ch, 1)
	assert.Equal(t, "a", (<-ch).Type)
}

func TestUnsubscribeClosesAndIsIdempotent(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok)
	assert.NotPanics(t, func() { b.Publish(Event{Type: "x"}) })
}
