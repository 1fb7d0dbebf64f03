package pairlock

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSorted_DedupAndOrder(t *testing.T) {
	a := Key{ShopID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), ProductID: uuid.MustParse("00000000-0000-0000-0000-000000000002")}
	b := Key{ShopID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), ProductID: uuid.MustParse("00000000-0000-0000-0000-000000000001")}
	c := Key{ShopID: uuid.MustParse("00000000-0000-0000-0000-000000000000"), ProductID: uuid.MustParse("00000000-0000-0000-0000-000000000009")}

	got := Sorted([]Key{a, b, a, c})
	assert.Equal(t, []Key{c, b, a}, got)
}

func TestLock_SerializesSameKey(t *testing.T) {
	l := New()
	k := Key{ShopID: uuid.New(), ProductID: uuid.New()}

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock(k)
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, l.Len(), "entries are released once unused")
}

func TestLock_IndependentKeysDoNotBlock(t *testing.T) {
	l := New()
	k1 := Key{ShopID: uuid.New(), ProductID: uuid.New()}
	k2 := Key{ShopID: uuid.New(), ProductID: uuid.New()}

	unlock1 := l.Lock(k1)
	defer unlock1()

	done := make(chan struct{})
	go func() {
		unlock2 := l.Lock(k2)
		unlock2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on an unrelated key blocked")
	}
}

func TestRLock_WaitsForWriter(t *testing.T) {
	l := New()
	k := Key{ShopID: uuid.New(), ProductID: uuid.New()}

	unlock := l.Lock(k)
	acquired := make(chan struct{})
	go func() {
		runlock := l.RLock(k)
		close(acquired)
		runlock()
	}()

	select {
	case <-acquired:
		t.Fatal("reader acquired a key held by a writer")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("reader never acquired the key")
	}
}

func TestUnlock_Idempotent(t *testing.T) {
	l := New()
	k := Key{ShopID: uuid.New(), ProductID: uuid.New()}
	unlock := l.Lock(k, k)
	unlock()
	require.NotPanics(t, unlock)
	assert.Equal(t, 0, l.Len())
}
