// Package monitor watches streams of location fixes and emits debounced
// zone enter/exit events.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/safenet/safenet/internal/geo"
	"github.com/safenet/safenet/internal/zone"
)

// Monitor errors.
var (
	ErrNotTracked     = errors.New("subject not tracked")
	ErrAlreadyTracked = errors.New("subject already tracked")
)

// Defaults.
const (
	DefaultQueueSize     = 16
	DefaultDebounceCount = 3
)

// Fix is one location report for a tracked subject. Sequence numbers are
// assigned by the sender and must increase; anything at or below the last
// accepted sequence is dropped as stale.
type Fix struct {
	SubjectID      string
	Point          geo.Point
	AccuracyMeters float64
	Timestamp      time.Time
	Sequence       uint64
}

// Direction of a zone transition.
type Direction string

const (
	DirectionEnter Direction = "enter"
	DirectionExit  Direction = "exit"
)

// Event is a confirmed zone transition.
type Event struct {
	SubjectID      string
	ZoneID         string
	ZoneName       string
	Classification zone.Classification
	Direction      Direction
	Fix            Fix

	// Confidence in (0, 1]: how far inside (or outside) the boundary the
	// confirming fix sits relative to its accuracy radius.
	Confidence float64
}

// Sink receives confirmed transitions. Called from the subject's worker
// goroutine; implementations that block slow only that subject down.
type Sink interface {
	HandleTransition(ctx context.Context, ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev Event)

// HandleTransition calls f.
func (f SinkFunc) HandleTransition(ctx context.Context, ev Event) { f(ctx, ev) }

// ZoneSource resolves zones for fixes. Satisfied by the zone service.
type ZoneSource interface {
	Containing(ctx context.Context, p geo.Point) ([]*zone.Zone, error)
	Get(ctx context.Context, id string) (*zone.Zone, error)
}

// Config holds monitor parameters.
type Config struct {
	// QueueSize bounds each subject's fix queue. When full, the oldest
	// queued fix is dropped to make room.
	QueueSize int

	// DebounceCount is how many consecutive fixes must agree before a
	// transition is emitted.
	DebounceCount int
}

// DefaultConfig returns the default monitor configuration.
func DefaultConfig() Config {
	return Config{
		QueueSize:     DefaultQueueSize,
		DebounceCount: DefaultDebounceCount,
	}
}

// zoneState is the debounce state machine for one (subject, zone) pair.
type zoneState struct {
	inside bool
	streak int // consecutive fixes disagreeing with inside
}

type subject struct {
	id    string
	queue chan Fix
	done  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	lastSeq uint64
	hasSeq  bool
	states  map[string]*zoneState
}

// Monitor runs one worker goroutine per tracked subject.
type Monitor struct {
	cfg    Config
	zones  ZoneSource
	sink   Sink
	logger zerolog.Logger

	mu       sync.Mutex
	subjects map[string]*subject
	closed   bool
}

// New creates a monitor delivering transitions to sink.
func New(cfg Config, zones ZoneSource, sink Sink, logger zerolog.Logger) *Monitor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.DebounceCount <= 0 {
		cfg.DebounceCount = DefaultDebounceCount
	}
	return &Monitor{
		cfg:      cfg,
		zones:    zones,
		sink:     sink,
		logger:   logger,
		subjects: make(map[string]*subject),
	}
}

// Track starts watching a subject.
func (m *Monitor) Track(subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.New("monitor closed")
	}
	if _, ok := m.subjects[subjectID]; ok {
		return ErrAlreadyTracked
	}

	s := &subject{
		id:     subjectID,
		queue:  make(chan Fix, m.cfg.QueueSize),
		done:   make(chan struct{}),
		states: make(map[string]*zoneState),
	}
	m.subjects[subjectID] = s

	s.wg.Add(1)
	go m.run(s)

	m.logger.Info().Str("subject_id", subjectID).Msg("subject tracked")
	return nil
}

// Untrack stops watching a subject. When it returns, no further events for
// the subject will be delivered.
func (m *Monitor) Untrack(subjectID string) error {
	m.mu.Lock()
	s, ok := m.subjects[subjectID]
	if ok {
		delete(m.subjects, subjectID)
	}
	m.mu.Unlock()

	if !ok {
		return ErrNotTracked
	}

	close(s.done)
	s.wg.Wait()

	m.logger.Info().Str("subject_id", subjectID).Msg("subject untracked")
	return nil
}

// Tracked reports whether a subject is being watched.
func (m *Monitor) Tracked(subjectID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subjects[subjectID]
	return ok
}

// Offer queues a fix for processing. Never blocks: when the subject's queue
// is full the oldest queued fix is discarded.
func (m *Monitor) Offer(fix Fix) error {
	if err := fix.Point.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	s, ok := m.subjects[fix.SubjectID]
	m.mu.Unlock()
	if !ok {
		return ErrNotTracked
	}

	for {
		select {
		case s.queue <- fix:
			return nil
		default:
		}
		select {
		case <-s.queue:
			m.logger.Debug().Str("subject_id", fix.SubjectID).Msg("fix queue full, dropped oldest")
		default:
		}
	}
}

// OnZoneDeleted discards debounce state referencing the zone for every
// subject, so a deleted zone can never produce another event.
func (m *Monitor) OnZoneDeleted(zoneID string) {
	m.mu.Lock()
	subjects := make([]*subject, 0, len(m.subjects))
	for _, s := range m.subjects {
		subjects = append(subjects, s)
	}
	m.mu.Unlock()

	for _, s := range subjects {
		s.mu.Lock()
		delete(s.states, zoneID)
		s.mu.Unlock()
	}
}

// Close stops every worker.
func (m *Monitor) Close() {
	m.mu.Lock()
	m.closed = true
	subjects := make([]*subject, 0, len(m.subjects))
	for id, s := range m.subjects {
		subjects = append(subjects, s)
		delete(m.subjects, id)
	}
	m.mu.Unlock()

	for _, s := range subjects {
		close(s.done)
		s.wg.Wait()
	}
}

func (m *Monitor) run(s *subject) {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case fix := <-s.queue:
			// Check done again: Untrack must win races against queued fixes.
			select {
			case <-s.done:
				return
			default:
			}
			m.process(s, fix)
		}
	}
}

func (m *Monitor) process(s *subject, fix Fix) {
	s.mu.Lock()
	if s.hasSeq && fix.Sequence <= s.lastSeq {
		s.mu.Unlock()
		m.logger.Debug().
			Str("subject_id", s.id).
			Uint64("sequence", fix.Sequence).
			Msg("dropped stale fix")
		return
	}
	s.lastSeq = fix.Sequence
	s.hasSeq = true
	s.mu.Unlock()

	ctx := context.Background()
	containing, err := m.zones.Containing(ctx, fix.Point)
	if err != nil {
		m.logger.Error().Err(err).Str("subject_id", s.id).Msg("zone lookup failed")
		return
	}

	inside := make(map[string]*zone.Zone, len(containing))
	for _, z := range containing {
		inside[z.ID] = z
	}

	var events []Event

	s.mu.Lock()
	// Zones the fix lands in: advance enter streaks.
	for id, z := range inside {
		st, ok := s.states[id]
		if !ok {
			st = &zoneState{}
			s.states[id] = st
		}
		if st.inside {
			st.streak = 0
			continue
		}
		if inconclusive(fix, z) {
			continue
		}
		st.streak++
		if st.streak >= m.cfg.DebounceCount {
			st.inside = true
			st.streak = 0
			events = append(events, m.event(s.id, z, DirectionEnter, fix))
		}
	}
	// Zones the fix misses: advance exit streaks for zones we are inside.
	for id, st := range s.states {
		if _, still := inside[id]; still {
			continue
		}
		if !st.inside {
			st.streak = 0
			continue
		}
		z, err := m.zones.Get(ctx, id)
		if err != nil {
			// Zone vanished between fixes; state is dropped without an
			// exit event.
			delete(s.states, id)
			continue
		}
		if inconclusive(fix, z) {
			continue
		}
		st.streak++
		if st.streak >= m.cfg.DebounceCount {
			st.inside = false
			st.streak = 0
			events = append(events, m.event(s.id, z, DirectionExit, fix))
		}
	}
	s.mu.Unlock()

	for _, ev := range events {
		m.sink.HandleTransition(ctx, ev)
	}
}

func (m *Monitor) event(subjectID string, z *zone.Zone, dir Direction, fix Fix) Event {
	return Event{
		SubjectID:      subjectID,
		ZoneID:         z.ID,
		ZoneName:       z.Name,
		Classification: z.Classification,
		Direction:      dir,
		Fix:            fix,
		Confidence:     confidence(fix, z),
	}
}

// inconclusive reports whether the fix is too imprecise to say anything
// about membership in z: the accuracy radius swallows the whole zone.
func inconclusive(fix Fix, z *zone.Zone) bool {
	if fix.AccuracyMeters <= 0 {
		return false
	}
	return fix.AccuracyMeters > z.Geometry.Extent()
}

// confidence compares the fix's distance from the zone boundary with its
// accuracy radius. A fix well clear of the boundary scores near 1; one
// whose error circle straddles it scores low.
func confidence(fix Fix, z *zone.Zone) float64 {
	dist := z.Geometry.BoundaryDistance(fix.Point)
	if fix.AccuracyMeters <= 0 {
		return 1
	}
	c := dist / (dist + fix.AccuracyMeters)
	if c < 0.01 {
		c = 0.01
	}
	return c
}
