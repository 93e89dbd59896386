package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type vec3 struct{ X, Y, Z float64 }

type boom struct {
	Pos    vec3
	Radius float64
}

var boomKey = NewKey[boom]("Boom")

func newObservedRegistry() (*Registry, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewRegistry(zap.New(core)), logs
}

func TestStopListeningUnknownEventWarns(t *testing.T) {
	r, logs := newObservedRegistry()
	l := NewListener("enemy-1", func(boom) {})

	assert.NotPanics(t, func() {
		assert.False(t, StopListening(r, boomKey, l))
	})

	warns := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warns, 1)
	fields := warns[0].ContextMap()
	assert.Equal(t, "enemy-1", fields["listener"])
	assert.Equal(t, "Boom", fields["event"])
	assert.False(t, r.Has("Boom"), "stop must not create a channel")
}

func TestInvokeCallsListenerOnce(t *testing.T) {
	r := NewRegistry(nil)
	var got []boom
	StartListening(r, boomKey, NewListener("l", func(b boom) { got = append(got, b) }))

	Invoke(r, boomKey, boom{Pos: vec3{X: 2}, Radius: 1})

	require.Len(t, got, 1)
	assert.Equal(t, boom{Pos: vec3{X: 2}, Radius: 1}, got[0])
}

func TestDuplicateRegistrationCalledTwice(t *testing.T) {
	r := NewRegistry(nil)
	calls := 0
	l := NewListener("dup", func(boom) { calls++ })
	StartListening(r, boomKey, l)
	StartListening(r, boomKey, l)

	Invoke(r, boomKey, boom{})
	assert.Equal(t, 2, calls)

	// removes the first registration only
	assert.True(t, StopListening(r, boomKey, l))
	Invoke(r, boomKey, boom{})
	assert.Equal(t, 3, calls)
}

func TestStopListening(t *testing.T) {
	r, logs := newObservedRegistry()
	calls := 0
	l := NewListener("l", func(boom) { calls++ })
	StartListening(r, boomKey, l)

	assert.True(t, StopListening(r, boomKey, l))
	Invoke(r, boomKey, boom{})
	assert.Equal(t, 0, calls)

	t.Run("twice is safe", func(t *testing.T) {
		assert.NotPanics(t, func() {
			assert.False(t, StopListening(r, boomKey, l))
		})
		// the channel exists, so nothing to warn about
		assert.Equal(t, 0, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	})
}

func TestDistinctKeysDoNotShareChannel(t *testing.T) {
	r := NewRegistry(nil)
	other := NewKey[boom]("Fizzle")
	var boomCalls, fizzleCalls int
	StartListening(r, boomKey, NewListener("a", func(boom) { boomCalls++ }))
	StartListening(r, other, NewListener("b", func(boom) { fizzleCalls++ }))

	Invoke(r, other, boom{})

	assert.Equal(t, 0, boomCalls)
	assert.Equal(t, 1, fizzleCalls)
	assert.Equal(t, []string{"Boom", "Fizzle"}, r.Events())
}

func TestSameNameRoutesToSameChannel(t *testing.T) {
	r := NewRegistry(nil)
	calls := 0
	StartListening(r, NewKey[boom]("Boom"), NewListener("l", func(boom) { calls++ }))

	Invoke(r, boomKey, boom{})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, ListenerCount(r, boomKey))
}

func TestBoomScenarioOrder(t *testing.T) {
	r := NewRegistry(nil)
	type call struct {
		who string
		arg boom
	}
	var calls []call
	StartListening(r, boomKey, NewListener("L1", func(b boom) { calls = append(calls, call{"L1", b}) }))
	StartListening(r, boomKey, NewListener("L2", func(b boom) { calls = append(calls, call{"L2", b}) }))

	Invoke(r, boomKey, boom{Pos: vec3{1, 0, 0}, Radius: 5.0})

	want := boom{Pos: vec3{1, 0, 0}, Radius: 5.0}
	assert.Equal(t, []call{{"L1", want}, {"L2", want}}, calls)
}

func TestListenerRemovesItselfDuringInvoke(t *testing.T) {
	r := NewRegistry(nil)
	var order []string
	StartListening(r, boomKey, NewListener("before", func(boom) { order = append(order, "before") }))
	var self *Listener[boom]
	self = NewListener("self", func(boom) {
		order = append(order, "self")
		StopListening(r, boomKey, self)
	})
	StartListening(r, boomKey, self)
	StartListening(r, boomKey, NewListener("after", func(boom) { order = append(order, "after") }))

	assert.NotPanics(t, func() { Invoke(r, boomKey, boom{}) })
	assert.Equal(t, []string{"before", "self", "after"}, order)

	order = nil
	Invoke(r, boomKey, boom{})
	assert.Equal(t, []string{"before", "after"}, order)
}

func TestSnapshotPolicy(t *testing.T) {
	r := NewRegistry(nil)
	var order []string
	late := NewListener("late", func(boom) { order = append(order, "late") })
	victim := NewListener("victim", func(boom) { order = append(order, "victim") })
	StartListening(r, boomKey, NewListener("first", func(boom) {
		order = append(order, "first")
		StopListening(r, boomKey, victim)
		StartListening(r, boomKey, late)
	}))
	StartListening(r, boomKey, victim)

	Invoke(r, boomKey, boom{})
	assert.Equal(t, []string{"first", "victim"}, order, "removed listener still runs, added one waits")

	order = nil
	Invoke(r, boomKey, boom{})
	assert.Equal(t, []string{"first", "late"}, order)
}

func TestInvokeCreatesChannel(t *testing.T) {
	r := NewRegistry(nil)
	assert.False(t, r.Has("Boom"))
	Invoke(r, boomKey, boom{})
	assert.True(t, r.Has("Boom"))
	assert.Equal(t, 0, ListenerCount(r, boomKey))
}

func TestZeroArgEvent(t *testing.T) {
	r := NewRegistry(nil)
	key := NewKey[struct{}]("Tick")
	calls := 0
	StartListening(r, key, NewListener("tick", func(struct{}) { calls++ }))
	Invoke(r, key, struct{}{})
	assert.Equal(t, 1, calls)
}

func TestTypeKey(t *testing.T) {
	r := NewRegistry(nil)
	assert.Equal(t, "event.boom", TypeKey[boom]().Name())

	var got float64
	StartListening(r, TypeKey[boom](), NewListener("l", func(b boom) { got = b.Radius }))
	Invoke(r, TypeKey[boom](), boom{Radius: 3})
	assert.Equal(t, 3.0, got)
}

func TestShapeMismatchPanics(t *testing.T) {
	r := NewRegistry(nil)
	StartListening(r, boomKey, NewListener("l", func(boom) {}))

	wrong := NewKey[int]("Boom")
	defer func() {
		rec := recover()
		require.NotNil(t, rec)
		err, ok := rec.(*ShapeMismatchError)
		require.True(t, ok, "panic value %T", rec)
		assert.Equal(t, "Boom", err.Event)
		assert.Equal(t, "int", err.Want.String())
		assert.Equal(t, "event.boom", err.Got.String())
		assert.Contains(t, err.Error(), `event "Boom"`)
	}()
	Invoke(r, wrong, 1)
	t.Fatal("Invoke with mismatched payload did not panic")
}

func TestListenerString(t *testing.T) {
	assert.Equal(t, "named", NewListener("named", func(int) {}).String())
	assert.Contains(t, NewListener("", func(int) {}).String(), "listener(0x")
}

func TestConcurrentUse(t *testing.T) {
	r := NewRegistry(nil)
	const workers = 16
	var (
		mu    sync.Mutex
		calls int
	)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := NewKey[int]("Counter")
			l := NewListener("c", func(int) {
				mu.Lock()
				calls++
				mu.Unlock()
			})
			StartListening(r, key, l)
			Invoke(r, key, 1)
			StopListening(r, key, l)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, ListenerCount(r, NewKey[int]("Counter")))
	assert.GreaterOrEqual(t, calls, workers, "each worker sees at least its own listener")
}

func TestListenerReentersRegistry(t *testing.T) {
	r := NewRegistry(nil)
	echo := NewKey[string]("Echo")
	var got string
	StartListening(r, echo, NewListener("sink", func(s string) { got = s }))
	StartListening(r, boomKey, NewListener("relay", func(b boom) {
		Invoke(r, echo, "relayed")
	}))

	Invoke(r, boomKey, boom{})
	assert.Equal(t, "relayed", got)
}

func TestNilListenerRejected(t *testing.T) {
	r := NewRegistry(nil)

	assert.PanicsWithValue(t, `event: listener "bad" has a nil callback`, func() {
		NewListener[boom]("bad", nil)
	})
	assert.PanicsWithValue(t, `event "Boom": cannot listen with a nil listener`, func() {
		StartListening(r, boomKey, nil)
	})
	assert.PanicsWithValue(t, `event "Boom": cannot listen with a nil listener`, func() {
		StartListening(r, boomKey, &Listener[boom]{name: "zero"})
	})
	assert.Equal(t, 0, ListenerCount(r, boomKey), "nothing registered")
}
