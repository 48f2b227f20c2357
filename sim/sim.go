// Package sim is a frame-stepped stand-in for a platform anchor subsystem.
// It spawns anchors with configurable latency, drifts their reported
// positions, flickers tracking quality and serves persistence from a
// store.Catalog, all deterministically from a seed.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/milk9111/anchortap/anchor"
	"github.com/milk9111/anchortap/common"
	"github.com/milk9111/anchortap/store"
)

// Config tunes the simulated subsystem. The zero value gives a two-frame
// spawn latency and no drift, flicker or create failures.
type Config struct {
	Seed             int64
	LatencyFrames    int
	RelocalizeFrames int     // frames a loaded anchor stays Limited after arrival
	Drift            float64 // max per-axis jitter distance per frame
	FlickerChance    float64 // per-frame chance tracking degrades one level
	RecoverChance    float64 // per-frame chance tracking recovers one level
	CreateFailChance float64 // per-call chance CreateAnchor is rejected
	StoreDelay       time.Duration
	FailStoreOpen    bool
}

func (c Config) withDefaults() Config {
	if c.LatencyFrames <= 0 {
		c.LatencyFrames = 2
	}
	if c.RelocalizeFrames <= 0 {
		c.RelocalizeFrames = 12
	}
	return c
}

type body struct {
	handle   anchor.Handle
	pos      common.Vec3
	home     common.Vec3
	fwd      common.Vec3
	tracking anchor.TrackingState
	reloc    int
}

type spawn struct {
	body       *body
	framesLeft int
}

type subscriber struct {
	fn       func(anchor.Changes)
	caughtUp bool
}

// World is the simulated subsystem. Step and every other method except
// OpenStore must be called from one goroutine; OpenStore is safe to call
// from the controller's opener goroutine.
type World struct {
	cfg     Config
	catalog store.Catalog
	clock   clockwork.Clock
	rng     *rand.Rand
	log     *zap.Logger

	frame   int
	live    map[anchor.Handle]*body
	order   []anchor.Handle
	pending []*spawn
	removed []anchor.Handle
	subs    map[int]*subscriber
	nextSub int

	failCreates  int
	failPersists int
}

// New builds a World over the given catalog. A nil clock uses the wall
// clock; a nil logger disables logging.
func New(catalog store.Catalog, clock clockwork.Clock, cfg Config, log *zap.Logger) *World {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &World{
		cfg:     cfg,
		catalog: catalog,
		clock:   clock,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		log:     log,
		live:    make(map[anchor.Handle]*body),
		subs:    make(map[int]*subscriber),
	}
}

// Frame reports how many steps have run.
func (w *World) Frame() int {
	return w.frame
}

// CreateAnchor queues a new anchor at the pose's position. It joins the live
// set after the configured latency.
func (w *World) CreateAnchor(pose anchor.Pose) (anchor.Handle, error) {
	if w.failCreates > 0 {
		w.failCreates--
		return anchor.Handle{}, errors.New("sim: anchor creation rejected")
	}
	if w.cfg.CreateFailChance > 0 && w.rng.Float64() < w.cfg.CreateFailChance {
		return anchor.Handle{}, errors.New("sim: anchor creation rejected")
	}
	h := anchor.NewHandle()
	w.spawn(h, pose.Position, pose.Forward)
	w.log.Debug("sim: anchor queued",
		zap.String("handle", h.Short()),
		zap.Int("latency", w.cfg.LatencyFrames))
	return h, nil
}

// OpenStore waits out the configured delay, then hands back a store view over
// the catalog. The returned store must be used from the Step goroutine.
func (w *World) OpenStore(ctx context.Context) (anchor.Store, error) {
	if w.cfg.StoreDelay > 0 {
		select {
		case <-w.clock.After(w.cfg.StoreDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if w.cfg.FailStoreOpen {
		return nil, anchor.ErrUnavailable
	}
	if w.catalog == nil {
		return nil, anchor.ErrUnavailable
	}
	return &catalogStore{w: w}, nil
}

// Subscribe registers fn for change batches. The subscriber is caught up on
// already-live anchors during its first Step.
func (w *World) Subscribe(fn func(anchor.Changes)) func() {
	id := w.nextSub
	w.nextSub++
	w.subs[id] = &subscriber{fn: fn}
	var once sync.Once
	return func() {
		once.Do(func() { delete(w.subs, id) })
	}
}

// Step advances the simulation one frame and delivers the frame's change
// batch to every subscriber.
func (w *World) Step() {
	w.frame++

	catchup := w.catchupBatch()

	var batch anchor.Changes

	keep := w.pending[:0]
	for _, s := range w.pending {
		s.framesLeft--
		if s.framesLeft > 0 {
			keep = append(keep, s)
			continue
		}
		w.live[s.body.handle] = s.body
		w.order = append(w.order, s.body.handle)
		batch.Added = append(batch.Added, w.snapshot(s.body))
	}
	w.pending = keep

	for _, h := range w.order {
		b := w.live[h]
		moved := w.drift(b)
		flipped := w.stepTracking(b)
		if moved || flipped {
			batch.Updated = append(batch.Updated, w.snapshot(b))
		}
	}

	batch.Removed = append(batch.Removed, w.removed...)
	w.removed = nil

	for _, sub := range w.subs {
		if !sub.caughtUp {
			sub.caughtUp = true
			if len(catchup.Added) > 0 {
				sub.fn(catchup)
			}
		}
		if len(batch.Added)+len(batch.Updated)+len(batch.Removed) > 0 {
			sub.fn(batch)
		}
	}
}

// catchupBatch snapshots the live set before this frame's spawns mature, so
// new subscribers never see an anchor twice in one step.
func (w *World) catchupBatch() anchor.Changes {
	var ch anchor.Changes
	for _, h := range w.order {
		ch.Added = append(ch.Added, w.snapshot(w.live[h]))
	}
	return ch
}

func (w *World) snapshot(b *body) anchor.AnchorState {
	return anchor.AnchorState{
		Handle:   b.handle,
		Pose:     anchor.Pose{Position: b.pos, Forward: b.fwd, Up: common.Up},
		Tracking: b.tracking,
	}
}

func (w *World) spawn(h anchor.Handle, pos, fwd common.Vec3) {
	if fwd == (common.Vec3{}) {
		fwd = common.Ahead
	}
	w.pending = append(w.pending, &spawn{
		body:       &body{handle: h, pos: pos, home: pos, fwd: fwd, tracking: anchor.Tracking},
		framesLeft: w.cfg.LatencyFrames,
	})
}

// spawnLoaded queues a relocalizing anchor: it arrives Limited and promotes
// to Tracking once relocalization settles.
func (w *World) spawnLoaded(h anchor.Handle, pos, fwd common.Vec3) {
	w.spawn(h, pos, fwd)
	b := w.pending[len(w.pending)-1].body
	b.tracking = anchor.Limited
	b.reloc = w.cfg.RelocalizeFrames
}

// drift jitters a tracked body and eases it back toward its home position so
// anchors wander without escaping.
func (w *World) drift(b *body) bool {
	if w.cfg.Drift <= 0 || b.tracking == anchor.NotTracking {
		return false
	}
	jitter := common.Vec3{
		X: (w.rng.Float64()*2 - 1) * w.cfg.Drift,
		Y: (w.rng.Float64()*2 - 1) * w.cfg.Drift,
		Z: (w.rng.Float64()*2 - 1) * w.cfg.Drift,
	}
	next := common.Vec3{
		X: common.Lerp(b.pos.X, b.home.X, 0.05),
		Y: common.Lerp(b.pos.Y, b.home.Y, 0.05),
		Z: common.Lerp(b.pos.Z, b.home.Z, 0.05),
	}.Add(jitter)
	if common.Dist(next, b.pos) == 0 {
		return false
	}
	b.pos = next
	return true
}

func (w *World) stepTracking(b *body) bool {
	// A relocalizing anchor holds Limited until it settles.
	if b.reloc > 0 {
		b.reloc--
		if b.reloc == 0 {
			b.tracking = anchor.Tracking
			return true
		}
		return false
	}
	switch b.tracking {
	case anchor.Tracking:
		if w.cfg.FlickerChance > 0 && w.rng.Float64() < w.cfg.FlickerChance {
			b.tracking = anchor.Limited
			return true
		}
	case anchor.Limited:
		if w.cfg.RecoverChance > 0 && w.rng.Float64() < w.cfg.RecoverChance {
			b.tracking = anchor.Tracking
			return true
		}
		if w.cfg.FlickerChance > 0 && w.rng.Float64() < w.cfg.FlickerChance {
			b.tracking = anchor.NotTracking
			return true
		}
	case anchor.NotTracking:
		if w.cfg.RecoverChance > 0 && w.rng.Float64() < w.cfg.RecoverChance {
			b.tracking = anchor.Limited
			return true
		}
	}
	return false
}

// DropAnchor erases a live anchor as if tracking were lost for good. The
// Removed change goes out on the next Step.
func (w *World) DropAnchor(h anchor.Handle) bool {
	if _, ok := w.live[h]; !ok {
		return false
	}
	delete(w.live, h)
	for i, other := range w.order {
		if other == h {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	w.removed = append(w.removed, h)
	w.log.Debug("sim: anchor dropped", zap.String("handle", h.Short()))
	return true
}

// FailNextCreate makes the next n CreateAnchor calls fail.
func (w *World) FailNextCreate(n int) {
	w.failCreates = n
}

// FailNextPersist makes the next n store Persist calls fail.
func (w *World) FailNextPersist(n int) {
	w.failPersists = n
}

// LiveCount reports how many anchors the subsystem currently tracks.
func (w *World) LiveCount() int {
	return len(w.live)
}

// Anchors snapshots the live set in spawn order.
func (w *World) Anchors() []anchor.AnchorState {
	out := make([]anchor.AnchorState, 0, len(w.order))
	for _, h := range w.order {
		out = append(out, w.snapshot(w.live[h]))
	}
	return out
}

// catalogStore adapts the world's catalog to the anchor.Store interface.
// Loads spawn the saved anchor back into the world under a fresh handle.
type catalogStore struct {
	w *World
}

func (s *catalogStore) Names() []string {
	return s.w.catalog.Names()
}

func (s *catalogStore) Load(name string) (anchor.Handle, error) {
	e, ok := s.w.catalog.Get(name)
	if !ok {
		return anchor.Handle{}, fmt.Errorf("sim: load %s: %w", name, anchor.ErrUnknownName)
	}
	h := anchor.NewHandle()
	s.w.spawnLoaded(h, e.Position, e.Forward)
	s.w.log.Debug("sim: persisted anchor queued",
		zap.String("name", name),
		zap.String("handle", h.Short()))
	return h, nil
}

func (s *catalogStore) Persist(h anchor.Handle, name string) error {
	if s.w.failPersists > 0 {
		s.w.failPersists--
		return errors.New("sim: persist rejected")
	}
	b, ok := s.w.live[h]
	if !ok {
		return fmt.Errorf("sim: persist %s: anchor not live", h.Short())
	}
	return s.w.catalog.Put(name, b.pos, b.fwd)
}

func (s *catalogStore) Unpersist(name string) error {
	return s.w.catalog.Delete(name)
}
