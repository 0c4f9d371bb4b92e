package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManualFiresOnDeadlines(t *testing.T) {
	m := NewManual(epoch)
	var fast, slow int
	m.Every(100*time.Millisecond, func() { fast++ })
	m.Every(time.Second, func() { slow++ })

	m.Advance(250 * time.Millisecond)
	require.Equal(t, 2, fast)
	require.Zero(t, slow)
	require.Equal(t, epoch.Add(250*time.Millisecond), m.Now())

	m.Advance(750 * time.Millisecond)
	require.Equal(t, 10, fast)
	require.Equal(t, 1, slow)
}

func TestManualNowDuringCallback(t *testing.T) {
	m := NewManual(epoch)
	var seen []time.Time
	m.Every(100*time.Millisecond, func() { seen = append(seen, m.Now()) })

	m.Advance(300 * time.Millisecond)
	require.Equal(t, []time.Time{
		epoch.Add(100 * time.Millisecond),
		epoch.Add(200 * time.Millisecond),
		epoch.Add(300 * time.Millisecond),
	}, seen)
}

func TestManualCancel(t *testing.T) {
	m := NewManual(epoch)
	var n int
	cancel := m.Every(100*time.Millisecond, func() { n++ })
	require.Equal(t, 1, m.Active())

	m.Advance(100 * time.Millisecond)
	cancel()
	cancel()
	m.Advance(time.Second)

	require.Equal(t, 1, n)
	require.Zero(t, m.Active())
}

func TestManualCancelFromCallback(t *testing.T) {
	m := NewManual(epoch)
	var n int
	var cancel func()
	cancel = m.Every(100*time.Millisecond, func() {
		n++
		cancel()
	})

	m.Advance(time.Second)
	require.Equal(t, 1, n)
}

func TestTickerStopsAfterCancel(t *testing.T) {
	var n atomic.Int32
	cancel := Ticker{}.Every(5*time.Millisecond, func() { n.Add(1) })

	require.Eventually(t, func() bool { return n.Load() >= 2 }, time.Second, time.Millisecond)

	cancel()
	after := n.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, after, n.Load())
	cancel()
}
