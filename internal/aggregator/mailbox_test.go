package aggregator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpalmerr/landingboard/internal/store"
)

func update(c store.Category, doc string) store.Update {
	return store.Update{Category: c, Document: store.Document(doc)}
}

func TestMailbox_FIFO(t *testing.T) {
	m := NewMailbox()
	for i := 0; i < 5; i++ {
		require.True(t, m.Send(update(store.CategoryStatus, fmt.Sprintf(`%d`, i))))
	}
	assert.Equal(t, 5, m.Len())

	for i := 0; i < 5; i++ {
		u, err := m.Receive(context.Background())
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf(`%d`, i), string(u.Document))
	}
	assert.Equal(t, 0, m.Len())
}

// TestMailbox_SendNeverBlocks queues far more messages than any channel
// buffer would hold while nobody is receiving.
func TestMailbox_SendNeverBlocks(t *testing.T) {
	m := NewMailbox()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 100000; i++ {
			m.Send(update(store.CategoryStats, `{}`))
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Send() blocked without a receiver")
	}
	assert.Equal(t, 100000, m.Len())
}

func TestMailbox_ReceiveHonoursContext(t *testing.T) {
	m := NewMailbox()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMailbox_CloseDrainsThenReports(t *testing.T) {
	m := NewMailbox()
	m.Send(update(store.CategoryJobs, `[]`))
	m.Close()
	m.Close()

	assert.False(t, m.Send(update(store.CategoryJobs, `[1]`)), "Send after Close should be rejected")

	u, err := m.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(u.Document))

	_, err = m.Receive(context.Background())
	assert.ErrorIs(t, err, ErrMailboxClosed)
}

func TestMailbox_ReceiveWakesOnSend(t *testing.T) {
	m := NewMailbox()
	got := make(chan store.Update, 1)

	go func() {
		u, err := m.Receive(context.Background())
		if err == nil {
			got <- u
		}
	}()

	time.Sleep(10 * time.Millisecond)
	m.Send(update(store.CategoryCapacities, `{"x":1}`))

	select {
	case u := <-got:
		assert.Equal(t, store.CategoryCapacities, u.Category)
	case <-time.After(time.Second):
		t.Fatal("Receive() did not wake up after Send()")
	}
}

// TestMailbox_PerProducerOrder checks that interleaved producers each see
// their own messages delivered in send order.
func TestMailbox_PerProducerOrder(t *testing.T) {
	m := NewMailbox()
	const perProducer = 1000

	var wg sync.WaitGroup
	for _, c := range store.Categories {
		wg.Add(1)
		go func(c store.Category) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				m.Send(update(c, fmt.Sprintf(`%d`, i)))
			}
		}(c)
	}
	wg.Wait()
	m.Close()

	next := make(map[store.Category]int)
	for {
		u, err := m.Receive(context.Background())
		if err != nil {
			require.ErrorIs(t, err, ErrMailboxClosed)
			break
		}
		assert.Equal(t, fmt.Sprintf(`%d`, next[u.Category]), string(u.Document), "category %s", u.Category)
		next[u.Category]++
	}
	for _, c := range store.Categories {
		assert.Equal(t, perProducer, next[c])
	}
}
