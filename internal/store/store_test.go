package store_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/fire-radar/internal/models"
	"github.com/DeafMist/fire-radar/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func records(ids ...string) []models.NewsRecord {
	out := make([]models.NewsRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.NewsRecord{ID: id, Title: "t" + id})
	}
	return out
}

func TestEmptyStoreReadsEmpty(t *testing.T) {
	s := store.New(time.Minute)
	got := s.Records()
	require.NotNil(t, got)
	require.Empty(t, got)
	require.Nil(t, s.Last())
}

func TestSetReplacesGeneration(t *testing.T) {
	s := store.New(time.Minute)

	g1 := s.Set(records("a", "b"))
	require.Equal(t, uint64(1), g1.Version)
	require.True(t, g1.Contains("a"))

	g2 := s.Set(records("c"))
	require.Equal(t, uint64(2), g2.Version)
	require.False(t, g2.Contains("a"))

	got := s.Records()
	require.Len(t, got, 1)
	require.Equal(t, "c", got[0].ID)
}

func TestSetCopiesInput(t *testing.T) {
	s := store.New(time.Minute)
	in := records("a")
	s.Set(in)
	in[0].ID = "mutated"
	require.Equal(t, "a", s.Records()[0].ID)
}

func TestTTLExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)}
	s := store.New(5*time.Minute, store.WithClock(clock.Now))

	s.Set(records("a"))
	clock.Advance(4 * time.Minute)
	require.Len(t, s.Records(), 1)

	clock.Advance(time.Minute)
	require.Empty(t, s.Records())
	_, ok := s.Snapshot()
	require.False(t, ok)

	last := s.Last()
	require.NotNil(t, last)
	require.True(t, last.Contains("a"))
}

func TestNilGenerationContains(t *testing.T) {
	var g *store.Generation
	require.False(t, g.Contains("x"))
}

func TestConcurrentReadersSeeWholeGenerations(t *testing.T) {
	s := store.New(time.Minute)
	s.Set(records("a", "b"))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got := s.Records()
				if len(got) != 2 && len(got) != 3 {
					t.Errorf("partial generation observed: %d", len(got))
					return
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			s.Set(records("a", "b", "c"))
		} else {
			s.Set(records("a", "b"))
		}
	}
	close(stop)
	wg.Wait()
}
