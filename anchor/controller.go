package anchor

import (
	"context"
	"math"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/milk9111/anchortap/common"
)

// DefaultProximityThreshold is the activation distance below which a gesture
// toggles the nearest anchor instead of creating a new one.
const DefaultProximityThreshold = 0.1

const defaultNameAttempts = 8

// Config tunes a Controller. The zero value picks the defaults.
type Config struct {
	// ProximityThreshold overrides DefaultProximityThreshold when positive.
	ProximityThreshold float64
	// NameAttempts bounds persisted-name regeneration on collision.
	NameAttempts int
}

func (c Config) withDefaults() Config {
	if c.ProximityThreshold <= 0 {
		c.ProximityThreshold = DefaultProximityThreshold
	}
	if c.NameAttempts <= 0 {
		c.NameAttempts = defaultNameAttempts
	}
	return c
}

// Phase is the controller lifecycle phase.
type Phase int

const (
	Uninitialized Phase = iota
	AwaitingStore
	Ready
	Disabled
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case AwaitingStore:
		return "awaiting-store"
	case Ready:
		return "ready"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

type storeResult struct {
	store Store
	err   error
}

// Controller owns the live-anchor set and drives anchor creation and
// persistence from sampled gestures. It is single-goroutine: Start, Tick,
// ForgetAll and Close must all be called from the same goroutine, and
// subsystem callbacks must be delivered between ticks on that goroutine.
type Controller struct {
	cfg   Config
	sub   Subsystem
	input GestureInput
	host  SceneHost
	log   *zap.Logger

	phase   Phase
	store   Store
	storeCh chan storeResult
	cancel  context.CancelFunc
	unsub   func()

	// records and order together hold the live set; order preserves insertion
	// so nearest-anchor ties resolve deterministically.
	records map[Handle]*Record
	order   []Handle

	// pending maps handles returned by Store.Load to their persisted names
	// until the matching Added change arrives.
	pending map[Handle]string
	names   map[string]struct{}

	wasActive [numSources]bool
}

// New builds a Controller around the given subsystem, gesture input and scene
// host. host may be nil for headless use; log may be nil to disable logging.
func New(sub Subsystem, input GestureInput, host SceneHost, cfg Config, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		cfg:     cfg.withDefaults(),
		sub:     sub,
		input:   input,
		host:    host,
		log:     log,
		records: make(map[Handle]*Record),
		pending: make(map[Handle]string),
		names:   make(map[string]struct{}),
	}
}

// Start begins opening the persisted store. The controller stays in
// AwaitingStore until the open resolves; Tick picks up the result. Calling
// Start in any phase other than Uninitialized is a no-op.
func (c *Controller) Start(ctx context.Context) {
	if c.phase != Uninitialized {
		return
	}
	if c.sub == nil {
		c.log.Warn("anchor subsystem absent, controller disabled")
		c.phase = Disabled
		return
	}

	openCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.storeCh = make(chan storeResult, 1)
	c.phase = AwaitingStore

	ch := c.storeCh
	go func() {
		st, err := c.sub.OpenStore(openCtx)
		ch <- storeResult{store: st, err: err}
	}()
}

// Tick advances the controller one host frame. Call it after the frame's
// subsystem changes have been delivered so activation targets settled state.
func (c *Controller) Tick() {
	switch c.phase {
	case AwaitingStore:
		select {
		case res := <-c.storeCh:
			c.finishStartup(res)
		default:
		}
	case Ready:
		c.sampleGestures()
	}
}

func (c *Controller) finishStartup(res storeResult) {
	if res.err != nil {
		c.log.Warn("persisted store unavailable, controller disabled", zap.Error(res.err))
		c.phase = Disabled
		return
	}

	c.store = res.store
	c.unsub = c.sub.Subscribe(c.applyChanges)

	loaded := 0
	for _, name := range c.store.Names() {
		h, err := c.store.Load(name)
		if err != nil {
			c.log.Warn("load persisted anchor", zap.String("name", name), zap.Error(err))
			continue
		}
		c.pending[h] = name
		c.names[name] = struct{}{}
		loaded++
	}

	c.phase = Ready
	c.log.Info("anchor controller ready", zap.Int("persisted", loaded))
}

func (c *Controller) sampleGestures() {
	if c.input == nil {
		return
	}
	for src := Source(0); src < numSources; src++ {
		active, ok := c.input.SampleActivation(src)
		if !ok {
			active = false
		}
		if active && !c.wasActive[src] {
			if pos, ok := c.input.SamplePosition(src); ok {
				c.onActivate(pos)
			} else {
				c.log.Debug("activation without a source position", zap.Stringer("source", src))
			}
		}
		c.wasActive[src] = active
	}
}

// onActivate handles one rising activation edge at pos: toggle the nearest
// anchor when it is strictly within the proximity threshold, otherwise
// request a new anchor at pos facing away from the viewer.
func (c *Controller) onActivate(pos common.Vec3) {
	if rec, dist, ok := c.nearest(pos); ok && dist < c.cfg.ProximityThreshold {
		c.togglePersistence(rec)
		return
	}

	viewer, ok := c.input.ViewerPosition()
	if !ok {
		viewer = common.Vec3{}
	}
	pose := LookAwayFrom(pos, viewer)
	h, err := c.sub.CreateAnchor(pose)
	if err != nil {
		c.log.Warn("anchor creation rejected", zap.Error(err))
		return
	}
	c.log.Debug("anchor creation requested",
		zap.String("handle", h.Short()),
		zap.Float64("x", pos.X),
		zap.Float64("y", pos.Y),
		zap.Float64("z", pos.Z))
}

// nearest returns the live anchor closest to pos. It walks insertion order
// with a strict comparison, so equal distances keep the earliest anchor.
func (c *Controller) nearest(pos common.Vec3) (*Record, float64, bool) {
	var best *Record
	bestDist := math.MaxFloat64
	for _, h := range c.order {
		rec := c.records[h]
		if rec == nil {
			continue
		}
		if d := common.Dist(pos, rec.Position); d < bestDist {
			best = rec
			bestDist = d
		}
	}
	if best == nil {
		return nil, 0, false
	}
	return best, bestDist, true
}

func (c *Controller) togglePersistence(rec *Record) {
	if rec == nil || c.store == nil {
		return
	}

	if rec.Persisted {
		// Local state clears even when the store rejects the removal; a
		// missed removal reappears on the next startup enumeration instead of
		// wedging the record.
		if err := c.store.Unpersist(rec.PersistedName); err != nil {
			c.log.Warn("unpersist rejected",
				zap.String("name", rec.PersistedName),
				zap.Error(err))
		}
		delete(c.names, rec.PersistedName)
		c.log.Info("anchor forgotten",
			zap.String("handle", rec.Handle.Short()),
			zap.String("name", rec.PersistedName))
		rec.PersistedName = ""
		rec.Persisted = false
		c.refreshHost(rec)
		return
	}

	name, ok := c.newName()
	if !ok {
		c.log.Warn("no free persisted name", zap.String("handle", rec.Handle.Short()))
		return
	}
	if err := c.store.Persist(rec.Handle, name); err != nil {
		c.log.Warn("persist rejected",
			zap.String("handle", rec.Handle.Short()),
			zap.String("name", name),
			zap.Error(err))
		return
	}
	rec.PersistedName = name
	rec.Persisted = true
	c.names[name] = struct{}{}
	c.log.Info("anchor persisted",
		zap.String("handle", rec.Handle.Short()),
		zap.String("name", name))
	c.refreshHost(rec)
}

// newName derives a short name from a fresh UUID, regenerating on collision
// with names the controller already knows.
func (c *Controller) newName() (string, bool) {
	for i := 0; i < c.cfg.NameAttempts; i++ {
		name := uuid.NewString()[:8]
		if _, taken := c.names[name]; !taken {
			return name, true
		}
	}
	return "", false
}

// applyChanges reconciles one subsystem change batch into the live set.
func (c *Controller) applyChanges(ch Changes) {
	if c.phase != Ready {
		return
	}

	for _, a := range ch.Added {
		if _, exists := c.records[a.Handle]; exists {
			continue
		}
		rec := &Record{
			Handle:   a.Handle,
			Position: a.Pose.Position,
			Tracking: a.Tracking,
		}
		if name, ok := c.pending[a.Handle]; ok {
			delete(c.pending, a.Handle)
			rec.PersistedName = name
			rec.Persisted = true
		}
		c.records[a.Handle] = rec
		c.order = append(c.order, a.Handle)
		if c.host != nil {
			c.host.ShowAnchor(*rec)
		}
		c.log.Debug("anchor added",
			zap.String("handle", a.Handle.Short()),
			zap.Bool("persisted", rec.Persisted))
	}

	for _, u := range ch.Updated {
		rec, ok := c.records[u.Handle]
		if !ok {
			continue
		}
		rec.Position = u.Pose.Position
		rec.Tracking = u.Tracking
		c.refreshHost(rec)
	}

	for _, h := range ch.Removed {
		if _, ok := c.records[h]; !ok {
			continue
		}
		delete(c.records, h)
		c.dropFromOrder(h)
		if c.host != nil {
			c.host.HideAnchor(h)
		}
		c.log.Debug("anchor removed", zap.String("handle", h.Short()))
	}
}

func (c *Controller) dropFromOrder(h Handle) {
	for i, other := range c.order {
		if other == h {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Controller) refreshHost(rec *Record) {
	if c.host != nil && rec != nil {
		c.host.RefreshAnchor(*rec)
	}
}

// ForgetAll unpersists every persisted anchor. Live anchors stay tracked.
func (c *Controller) ForgetAll() {
	if c.phase != Ready {
		return
	}
	for _, h := range c.order {
		if rec := c.records[h]; rec != nil && rec.Persisted {
			c.togglePersistence(rec)
		}
	}
}

// Close tears the controller down: cancels a pending store open, unregisters
// from the change stream and discards all local state. The controller returns
// to Uninitialized and may be started again.
func (c *Controller) Close() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
	c.store = nil
	c.storeCh = nil
	c.records = make(map[Handle]*Record)
	c.order = nil
	c.pending = make(map[Handle]string)
	c.names = make(map[string]struct{})
	c.wasActive = [numSources]bool{}
	c.phase = Uninitialized
}

// Phase reports the current lifecycle phase.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Anchors returns copies of the live records in insertion order.
func (c *Controller) Anchors() []Record {
	out := make([]Record, 0, len(c.order))
	for _, h := range c.order {
		if rec := c.records[h]; rec != nil {
			out = append(out, *rec)
		}
	}
	return out
}

// PendingLoads reports how many persisted anchors were requested from the
// store but have not yet arrived as Added changes.
func (c *Controller) PendingLoads() int {
	return len(c.pending)
}

// PersistedNames returns the sorted names the controller believes are
// persisted, pending loads included.
func (c *Controller) PersistedNames() []string {
	out := make([]string, 0, len(c.names))
	for name := range c.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
