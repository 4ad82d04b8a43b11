package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC().Add(-time.Second)
	got := New().Now()
	after := time.Now().UTC().Add(time.Second)

	require.Equal(t, time.UTC, got.Location())
	require.True(t, got.After(before) && got.Before(after), "got %v", got)
}

func TestFixedClock(t *testing.T) {
	t.Parallel()

	berlin := time.FixedZone("CEST", 2*60*60)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, berlin)
	clk := Fixed(at)

	require.True(t, clk.Now().Equal(at))
	require.Equal(t, time.UTC, clk.Now().Location())
	require.Equal(t, clk.Now(), clk.Now())

	var unset *Clock
	require.False(t, unset.Now().IsZero())
}
