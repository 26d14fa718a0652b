package monitor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safenet/safenet/internal/geo"
	"github.com/safenet/safenet/internal/monitor"
	"github.com/safenet/safenet/internal/spatial"
	"github.com/safenet/safenet/internal/zone"
)

var (
	zoneACenter   = geo.Point{Lat: 52.37, Lon: 4.89}
	zoneBCenter   = geo.Point{Lat: 52.0, Lon: 4.0}
	outsidePoint  = geo.Point{Lat: 52.6, Lon: 5.2}
	eventsTimeout = 2 * time.Second
)

type recordingSink struct {
	mu     sync.Mutex
	events []monitor.Event
}

func (s *recordingSink) HandleTransition(_ context.Context, ev monitor.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) snapshot() []monitor.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]monitor.Event{}, s.events...)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type fixture struct {
	monitor *monitor.Monitor
	sink    *recordingSink
	zones   *zone.Service
	zoneA   *zone.Zone
	zoneB   *zone.Zone
	seq     uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	zones := zone.NewService(zone.ServiceConfig{
		Repository: zone.NewInMemoryRepository(),
		Index:      spatial.NewIndex(spatial.DefaultCellSizeMeters),
		Logger:     zerolog.Nop(),
	})

	ctx := context.Background()
	zoneA, err := zones.Create(ctx, "", zone.CreateInput{
		Name:           "Zone A",
		Classification: zone.ClassDanger,
		Geometry:       spatial.Circle(zoneACenter, 200),
	})
	require.NoError(t, err)
	// Zone B is district-sized so the settle fixes below stay conclusive
	// for it while saying nothing about the 200 m zone A.
	zoneB, err := zones.Create(ctx, "", zone.CreateInput{
		Name:           "Zone B",
		Classification: zone.ClassSafe,
		Geometry:       spatial.Circle(zoneBCenter, 10000),
	})
	require.NoError(t, err)

	sink := &recordingSink{}
	m := monitor.New(monitor.DefaultConfig(), zones, sink, zerolog.Nop())
	t.Cleanup(m.Close)

	return &fixture{monitor: m, sink: sink, zones: zones, zoneA: zoneA, zoneB: zoneB}
}

func (f *fixture) offer(t *testing.T, subjectID string, p geo.Point) {
	t.Helper()
	f.seq++
	err := f.monitor.Offer(monitor.Fix{
		SubjectID:      subjectID,
		Point:          p,
		AccuracyMeters: 10,
		Timestamp:      time.Now(),
		Sequence:       f.seq,
	})
	require.NoError(t, err)
}

// settle pushes enough fixes into zone B to trigger an enter event there.
// Queues are FIFO, so once that event lands every earlier fix has been
// processed. The accuracy radius swallows zone A, so these fixes are
// inconclusive for it and leave its debounce state untouched.
func (f *fixture) settle(t *testing.T, subjectID string) {
	t.Helper()
	for i := 0; i < monitor.DefaultDebounceCount; i++ {
		f.seq++
		err := f.monitor.Offer(monitor.Fix{
			SubjectID:      subjectID,
			Point:          zoneBCenter,
			AccuracyMeters: 5000,
			Timestamp:      time.Now(),
			Sequence:       f.seq,
		})
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool {
		for _, ev := range f.sink.snapshot() {
			if ev.ZoneID == f.zoneB.ID && ev.Direction == monitor.DirectionEnter {
				return true
			}
		}
		return false
	}, eventsTimeout, 5*time.Millisecond)
}

func (f *fixture) zoneAEvents() []monitor.Event {
	var out []monitor.Event
	for _, ev := range f.sink.snapshot() {
		if ev.ZoneID == f.zoneA.ID {
			out = append(out, ev)
		}
	}
	return out
}

func TestMonitor_TrackUntrack(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.monitor.Track("sub_1"))
	assert.ErrorIs(t, f.monitor.Track("sub_1"), monitor.ErrAlreadyTracked)
	assert.True(t, f.monitor.Tracked("sub_1"))

	require.NoError(t, f.monitor.Untrack("sub_1"))
	assert.False(t, f.monitor.Tracked("sub_1"))
	assert.ErrorIs(t, f.monitor.Untrack("sub_1"), monitor.ErrNotTracked)
}

func TestMonitor_OfferUntracked(t *testing.T) {
	f := newFixture(t)
	err := f.monitor.Offer(monitor.Fix{SubjectID: "sub_ghost", Point: zoneACenter})
	require.ErrorIs(t, err, monitor.ErrNotTracked)
}

func TestMonitor_OfferInvalidCoordinate(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.monitor.Track("sub_1"))

	err := f.monitor.Offer(monitor.Fix{SubjectID: "sub_1", Point: geo.Point{Lat: 200, Lon: 0}})
	require.ErrorIs(t, err, geo.ErrInvalidCoordinate)
}

func TestMonitor_EnterRequiresDebounce(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.monitor.Track("sub_1"))

	// Two fixes inside, then away: never confirmed.
	f.offer(t, "sub_1", zoneACenter)
	f.offer(t, "sub_1", zoneACenter)
	f.offer(t, "sub_1", outsidePoint)

	f.settle(t, "sub_1")
	assert.Empty(t, f.zoneAEvents())
}

func TestMonitor_ExactlyOneEnter(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.monitor.Track("sub_1"))

	for i := 0; i < 5; i++ {
		f.offer(t, "sub_1", zoneACenter)
	}

	f.settle(t, "sub_1")
	events := f.zoneAEvents()
	require.Len(t, events, 1)
	assert.Equal(t, monitor.DirectionEnter, events[0].Direction)
	assert.Equal(t, "sub_1", events[0].SubjectID)
	assert.Equal(t, zone.ClassDanger, events[0].Classification)
	assert.Greater(t, events[0].Confidence, 0.5)
}

func TestMonitor_EnterThenExit(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.monitor.Track("sub_1"))

	for i := 0; i < 3; i++ {
		f.offer(t, "sub_1", zoneACenter)
	}
	for i := 0; i < 3; i++ {
		f.offer(t, "sub_1", outsidePoint)
	}

	f.settle(t, "sub_1")
	events := f.zoneAEvents()
	require.Len(t, events, 2)
	assert.Equal(t, monitor.DirectionEnter, events[0].Direction)
	assert.Equal(t, monitor.DirectionExit, events[1].Direction)
}

func TestMonitor_OscillationSuppressed(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.monitor.Track("sub_1"))

	// A fix bouncing across the boundary never holds still for three in a
	// row, so no transition fires.
	for i := 0; i < 6; i++ {
		if i%2 == 0 {
			f.offer(t, "sub_1", zoneACenter)
		} else {
			f.offer(t, "sub_1", outsidePoint)
		}
	}

	f.settle(t, "sub_1")
	assert.Empty(t, f.zoneAEvents())
}

func TestMonitor_StaleFixDropped(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.monitor.Track("sub_1"))

	// Two fresh fixes inside.
	f.offer(t, "sub_1", zoneACenter)
	f.offer(t, "sub_1", zoneACenter)
	// A replayed old fix must not complete the streak.
	err := f.monitor.Offer(monitor.Fix{
		SubjectID: "sub_1",
		Point:     zoneACenter,
		Sequence:  1,
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	f.settle(t, "sub_1")
	assert.Empty(t, f.zoneAEvents())
}

func TestMonitor_InconclusiveAccuracy(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.monitor.Track("sub_1"))

	// Accuracy radius dwarfs the 200 m zone; fixes say nothing.
	for i := 0; i < 5; i++ {
		f.seq++
		err := f.monitor.Offer(monitor.Fix{
			SubjectID:      "sub_1",
			Point:          zoneACenter,
			AccuracyMeters: 5000,
			Timestamp:      time.Now(),
			Sequence:       f.seq,
		})
		require.NoError(t, err)
	}

	f.settle(t, "sub_1")
	assert.Empty(t, f.zoneAEvents())
}

func TestMonitor_ImpreciseFixesDoNotConfirmExit(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.monitor.Track("sub_1"))

	for i := 0; i < 3; i++ {
		f.offer(t, "sub_1", zoneACenter)
	}

	// Fixes away from the zone whose error circle swallows it say nothing
	// about leaving; the exit counter must hold still.
	for i := 0; i < 5; i++ {
		f.seq++
		err := f.monitor.Offer(monitor.Fix{
			SubjectID:      "sub_1",
			Point:          outsidePoint,
			AccuracyMeters: 5000,
			Timestamp:      time.Now(),
			Sequence:       f.seq,
		})
		require.NoError(t, err)
	}

	f.settle(t, "sub_1")
	events := f.zoneAEvents()
	require.Len(t, events, 1)
	assert.Equal(t, monitor.DirectionEnter, events[0].Direction)

	// Accurate fixes outside still complete the exit.
	for i := 0; i < 3; i++ {
		f.offer(t, "sub_1", outsidePoint)
	}
	require.Eventually(t, func() bool {
		evs := f.zoneAEvents()
		return len(evs) == 2 && evs[1].Direction == monitor.DirectionExit
	}, eventsTimeout, 5*time.Millisecond)
}

func TestMonitor_NoEventsAfterUntrack(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.monitor.Track("sub_1"))

	for i := 0; i < 3; i++ {
		f.offer(t, "sub_1", zoneACenter)
	}
	require.NoError(t, f.monitor.Untrack("sub_1"))

	before := f.sink.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, f.sink.count())

	err := f.monitor.Offer(monitor.Fix{SubjectID: "sub_1", Point: zoneACenter, Sequence: 99})
	require.ErrorIs(t, err, monitor.ErrNotTracked)
}

func TestMonitor_ZoneDeletedClearsState(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.monitor.Track("sub_1"))

	for i := 0; i < 3; i++ {
		f.offer(t, "sub_1", zoneACenter)
	}
	f.settle(t, "sub_1")
	require.Len(t, f.zoneAEvents(), 1)

	// Deleting the zone drops the subject's inside state; leaving the area
	// afterwards must not synthesize an exit.
	require.NoError(t, f.zones.Delete(context.Background(), f.zoneA.ID))
	f.monitor.OnZoneDeleted(f.zoneA.ID)

	for i := 0; i < 3; i++ {
		f.offer(t, "sub_1", outsidePoint)
	}
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, f.zoneAEvents(), 1)
}
