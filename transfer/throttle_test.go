package transfer_test

import (
	"math/rand"
	"testing"
	"time"

	. "github.com/imrenagi/go-drive-relay/transfer"
	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, Percent(0, 100))
	assert.Equal(t, 12, Percent(129, 1000))
	assert.Equal(t, 99, Percent(999, 1000))
	assert.Equal(t, 100, Percent(1000, 1000))
	assert.Equal(t, 100, Percent(1500, 1000), "percent is clamped to 100")
	assert.Equal(t, 0, Percent(-5, 1000), "percent is clamped to 0")
	assert.Equal(t, 0, Percent(500, 0), "an unknown total reports 0 instead of dividing by zero")
}

func TestThrottler(t *testing.T) {
	t.Run("the first sample of a transfer always passes the time gate", func(t *testing.T) {
		th := NewThrottler(30*time.Second, 10)
		assert.True(t, th.ShouldNotify("a", TimeGate, Sample{Done: 1, Total: 100, At: t0}))
	})

	t.Run("the time gate holds until the interval has elapsed", func(t *testing.T) {
		th := NewThrottler(30*time.Second, 10)
		th.RecordNotified("a", Sample{Done: 1, Total: 100, At: t0})

		assert.False(t, th.ShouldNotify("a", TimeGate, Sample{Done: 90, Total: 100, At: t0.Add(29 * time.Second)}))
		assert.True(t, th.ShouldNotify("a", TimeGate, Sample{Done: 90, Total: 100, At: t0.Add(30 * time.Second)}))
	})

	t.Run("the upload gate needs both time and a new ten percent band", func(t *testing.T) {
		th := NewThrottler(30*time.Second, 10)
		th.RecordNotified("a", Sample{Done: 0, Total: 100, At: t0})

		var notified []int
		at := t0
		for _, p := range []int64{0, 12, 15, 21, 35, 38, 99} {
			at = at.Add(31 * time.Second)
			s := Sample{Done: p, Total: 100, At: at}
			if th.ShouldNotify("a", TimeAndPercentGate, s) {
				th.RecordNotified("a", s)
				notified = append(notified, s.Percent())
			}
		}
		assert.Equal(t, []int{12, 21, 35, 99}, notified)
	})

	t.Run("a new band inside the interval is still held back", func(t *testing.T) {
		th := NewThrottler(30*time.Second, 10)
		th.RecordNotified("a", Sample{Done: 10, Total: 100, At: t0})

		assert.False(t, th.ShouldNotify("a", TimeAndPercentGate, Sample{Done: 50, Total: 100, At: t0.Add(10 * time.Second)}))
	})

	t.Run("an unknown total relies on the time gate alone", func(t *testing.T) {
		th := NewThrottler(30*time.Second, 10)
		s := Sample{Done: 1 << 20, Total: 0, At: t0}
		assert.True(t, th.ShouldNotify("a", TimeGate, s))
		th.RecordNotified("a", s)
		assert.True(t, th.ShouldNotify("a", TimeGate, Sample{Done: 2 << 20, At: t0.Add(time.Minute)}))
	})

	t.Run("an unknown total passes the upload gate once the interval has elapsed", func(t *testing.T) {
		th := NewThrottler(30*time.Second, 10)
		th.RecordNotified("z", Sample{Total: 0, At: t0})

		assert.False(t, th.ShouldNotify("z", TimeAndPercentGate, Sample{Done: 1 << 20, Total: 0, At: t0.Add(10 * time.Second)}))
		for h := 1; h <= 5; h++ {
			s := Sample{Done: int64(h) << 20, Total: 0, At: t0.Add(time.Duration(h) * time.Hour)}
			assert.True(t, th.ShouldNotify("z", TimeAndPercentGate, s), "hour %d", h)
			th.RecordNotified("z", s)
			assert.Equal(t, 0, s.Percent())
		}
	})

	t.Run("transfer identities do not interfere and are released", func(t *testing.T) {
		th := NewThrottler(30*time.Second, 10)
		th.RecordNotified("a", Sample{Done: 50, Total: 100, At: t0})

		assert.True(t, th.ShouldNotify("b", TimeAndPercentGate, Sample{Done: 10, Total: 100, At: t0.Add(time.Second)}))
		assert.Equal(t, 1, th.Len())

		th.Release("a")
		assert.Equal(t, 0, th.Len())
		assert.True(t, th.ShouldNotify("a", TimeGate, Sample{Done: 60, Total: 100, At: t0.Add(time.Second)}),
			"a released identity starts without history")
	})
}

func TestThrottlerNotificationsAreOrderedAndSpaced(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 50; run++ {
		th := NewThrottler(30*time.Second, 10)
		total := int64(1 + rng.Intn(1<<20))
		var done int64
		at := t0
		var lastAt time.Time
		lastPercent := -1

		for done < total {
			done += int64(rng.Intn(int(total/20) + 1))
			if done > total {
				done = total
			}
			at = at.Add(time.Duration(rng.Intn(20)) * time.Second)
			s := Sample{Done: done, Total: total, At: at}
			gate := TimeGate
			if run%2 == 0 {
				gate = TimeAndPercentGate
			}
			if !th.ShouldNotify("x", gate, s) {
				continue
			}
			th.RecordNotified("x", s)
			if !lastAt.IsZero() {
				assert.GreaterOrEqual(t, s.At.Sub(lastAt), 30*time.Second)
			}
			assert.GreaterOrEqual(t, s.Percent(), lastPercent)
			lastAt, lastPercent = s.At, s.Percent()
		}
	}
}
