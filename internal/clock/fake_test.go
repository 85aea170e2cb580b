package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestFakeAfterFuncFiresInOrder(t *testing.T) {
	fc := NewFake(epoch)
	var order []string
	fc.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	fc.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	fc.AfterFunc(5*time.Second, func() { order = append(order, "late") })

	fc.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, epoch.Add(2*time.Second), fc.Now())
	assert.Equal(t, 1, fc.Pending())
}

func TestFakeNestedScheduling(t *testing.T) {
	fc := NewFake(epoch)
	var firedAt time.Time
	fc.AfterFunc(time.Second, func() {
		fc.AfterFunc(time.Second, func() { firedAt = fc.Now() })
	})
	fc.Advance(3 * time.Second)
	assert.Equal(t, epoch.Add(2*time.Second), firedAt)
}

func TestFakeStop(t *testing.T) {
	fc := NewFake(epoch)
	fired := false
	tm := fc.AfterFunc(time.Second, func() { fired = true })
	require.True(t, tm.Stop())
	require.False(t, tm.Stop())
	fc.Advance(time.Minute)
	assert.False(t, fired)
}

func TestFakeTickerAndAfter(t *testing.T) {
	fc := NewFake(epoch)
	tk := fc.NewTicker(10 * time.Second)
	after := fc.After(15 * time.Second)

	fc.Advance(10 * time.Second)
	select {
	case <-tk.C():
	default:
		t.Fatal("expected tick after 10s")
	}
	select {
	case <-after:
		t.Fatal("After fired early")
	default:
	}

	fc.Advance(10 * time.Second)
	<-tk.C()
	<-after
	tk.Stop()
	assert.Equal(t, 0, fc.Pending())
}
