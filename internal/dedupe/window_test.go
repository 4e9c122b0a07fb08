package dedupe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/fire-radar/internal/dedupe"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestWindowRemembersMarkedIDs(t *testing.T) {
	w := dedupe.NewWindow(10, time.Minute)
	require.False(t, w.Seen("rec-a"))
	w.Mark("rec-a")
	require.True(t, w.Seen("rec-a"))
	require.False(t, w.Seen("rec-b"))
}

func TestWindowExpiresAfterTTL(t *testing.T) {
	c := &clock{t: time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)}
	w := dedupe.NewWindow(10, time.Hour, dedupe.WithClock(c.now))

	w.Mark("rec-a")
	c.advance(59 * time.Minute)
	require.True(t, w.Seen("rec-a"))

	c.advance(2 * time.Minute)
	require.False(t, w.Seen("rec-a"))

	w.Mark("rec-b")
	require.Equal(t, 1, w.Len())
}

func TestWindowEvictsOldestWhenFull(t *testing.T) {
	c := &clock{t: time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)}
	w := dedupe.NewWindow(2, time.Hour, dedupe.WithClock(c.now))

	w.Mark("a")
	c.advance(time.Second)
	w.Mark("b")
	c.advance(time.Second)
	w.Mark("a")
	c.advance(time.Second)
	w.Mark("c")

	require.False(t, w.Seen("b"))
	require.True(t, w.Seen("a"))
	require.True(t, w.Seen("c"))
	require.Equal(t, 2, w.Len())
}
