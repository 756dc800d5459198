package execache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/supaconn/supaconn/errors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func countingCompute(value any) (func(context.Context) (any, error), *int) {
	calls := 0
	return func(context.Context) (any, error) {
		calls++
		return value, nil
	}, &calls
}

func TestGetOrComputeCachesWithinTTL(t *testing.T) {
	is := is.New(t)
	clock := newFakeClock()
	c := New(WithClock(clock.Now))

	compute, calls := countingCompute("result")

	v, err := GetOrCompute(context.Background(), c, "k", time.Minute, compute)
	is.NoErr(err)
	is.Equal("result", v)
	is.Equal(1, *calls)

	v, err = GetOrCompute(context.Background(), c, "k", time.Minute, compute)
	is.NoErr(err)
	is.Equal("result", v)
	is.Equal(1, *calls) // second call served from cache
}

func TestGetOrComputeBypass(t *testing.T) {
	is := is.New(t)
	c := New()

	compute, calls := countingCompute(42)

	for i := 0; i < 3; i++ {
		v, err := GetOrCompute(context.Background(), c, "k", Bypass, compute)
		is.NoErr(err)
		is.Equal(42, v)
	}
	is.Equal(3, *calls)
	is.Equal(0, c.Len()) // bypass never stores
}

func TestGetOrComputeNoExpiry(t *testing.T) {
	is := is.New(t)
	clock := newFakeClock()
	c := New(WithClock(clock.Now))

	compute, calls := countingCompute("forever")

	_, err := GetOrCompute(context.Background(), c, "k", NoExpiry, compute)
	is.NoErr(err)

	clock.Advance(1000 * time.Hour)
	for i := 0; i < 10; i++ {
		v, err := GetOrCompute(context.Background(), c, "k", NoExpiry, compute)
		is.NoErr(err)
		is.Equal("forever", v)
		clock.Advance(1000 * time.Hour)
	}
	is.Equal(1, *calls)
}

func TestGetOrComputeRecomputesAfterExpiry(t *testing.T) {
	is := is.New(t)
	clock := newFakeClock()
	c := New(WithClock(clock.Now))

	calls := 0
	compute := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	v, err := GetOrCompute(context.Background(), c, "k", time.Minute, compute)
	is.NoErr(err)
	is.Equal(1, v)

	clock.Advance(30 * time.Second)
	v, err = GetOrCompute(context.Background(), c, "k", time.Minute, compute)
	is.NoErr(err)
	is.Equal(1, v)
	is.Equal(1, calls)

	clock.Advance(31 * time.Second) // past the minute
	v, err = GetOrCompute(context.Background(), c, "k", time.Minute, compute)
	is.NoErr(err)
	is.Equal(2, v)
	is.Equal(2, calls)
}

func TestGetOrComputeFailureIsNotCached(t *testing.T) {
	is := is.New(t)
	c := New()

	boom := errors.New("upstream down")
	calls := 0
	compute := func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", boom
		}
		return "recovered", nil
	}

	_, err := GetOrCompute(context.Background(), c, "k", time.Minute, compute)
	is.True(errors.Is(err, boom))
	is.Equal(0, c.Len())

	v, err := GetOrCompute(context.Background(), c, "k", time.Minute, compute)
	is.NoErr(err)
	is.Equal("recovered", v)
	is.Equal(2, calls)
}

func TestDistinctKeysAreIndependent(t *testing.T) {
	is := is.New(t)
	clock := newFakeClock()
	c := New(WithClock(clock.Now))

	countries, countryCalls := countingCompute([]string{"fr", "de"})
	cities, cityCalls := countingCompute([]string{"paris", "berlin"})

	v1, err := GetOrCompute(context.Background(), c, "countries:*", time.Minute, countries)
	is.NoErr(err)
	v2, err := GetOrCompute(context.Background(), c, "cities:*", time.Minute, cities)
	is.NoErr(err)

	is.Equal([]string{"fr", "de"}, v1.([]string))
	is.Equal([]string{"paris", "berlin"}, v2.([]string))
	is.Equal(1, *countryCalls)
	is.Equal(1, *cityCalls)
	is.Equal(2, c.Len())
}

func TestCountriesScenario(t *testing.T) {
	is := is.New(t)
	clock := newFakeClock()
	c := New(WithClock(clock.Now))

	calls := 0
	queryCountries := func(context.Context) ([]map[string]any, error) {
		calls++
		return []map[string]any{{"id": 1, "name": "France"}}, nil
	}

	// t=0: computed
	v, err := GetOrCompute(context.Background(), c, "countries:*", 60*time.Second, queryCountries)
	is.NoErr(err)
	is.Equal(1, v[0]["id"])
	is.Equal(1, calls)

	// t=30s: served from cache
	clock.Advance(30 * time.Second)
	_, err = GetOrCompute(context.Background(), c, "countries:*", 60*time.Second, queryCountries)
	is.NoErr(err)
	is.Equal(1, calls)

	// t=61s: recomputed
	clock.Advance(31 * time.Second)
	_, err = GetOrCompute(context.Background(), c, "countries:*", 60*time.Second, queryCountries)
	is.NoErr(err)
	is.Equal(2, calls)
}

func TestRememberOverwrites(t *testing.T) {
	is := is.New(t)
	c := New()
	ctx := context.Background()

	is.NoErr(c.Remember(ctx, "k", "old", time.Minute))
	is.NoErr(c.Remember(ctx, "k", "new", time.Minute))

	v, err := c.Get(ctx, "k")
	is.NoErr(err)
	is.Equal("new", v)
	is.Equal(1, c.Len())
}

func TestGetSentinels(t *testing.T) {
	is := is.New(t)
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	is.True(errors.Is(err, ErrNoEntry))

	is.NoErr(c.Remember(ctx, "k", 1, time.Second))
	clock.Advance(2 * time.Second)
	_, err = c.Get(ctx, "k")
	is.True(errors.Is(err, ErrEntryExpired))

	// lazy expiry removed the entry
	_, err = c.Get(ctx, "k")
	is.True(errors.Is(err, ErrNoEntry))
}

func TestConcurrentMissesLastStoreWins(t *testing.T) {
	is := is.New(t)
	c := New()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := GetOrCompute(context.Background(), c, "k", time.Minute, func(context.Context) (string, error) {
				return "value", nil
			})
			is.NoErr(err)
		}()
	}
	wg.Wait()

	v, err := c.Get(context.Background(), "k")
	is.NoErr(err)
	is.Equal("value", v)
	is.Equal(1, c.Len())
}

func TestSweepDropsExpiredEntries(t *testing.T) {
	is := is.New(t)
	clock := newFakeClock()
	c := New(WithClock(clock.Now), WithSweepInterval(5*time.Millisecond))
	defer c.Close()
	ctx := context.Background()

	is.NoErr(c.Remember(ctx, "short", 1, time.Second))
	is.NoErr(c.Remember(ctx, "pinned", 2, NoExpiry))
	clock.Advance(2 * time.Second)

	deadline := time.Now().Add(time.Second)
	for c.Len() > 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	is.Equal(1, c.Len())

	v, err := c.Get(ctx, "pinned")
	is.NoErr(err)
	is.Equal(2, v)
}
