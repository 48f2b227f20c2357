package anchor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/milk9111/anchortap/common"
)

type stubStore struct {
	names        []string
	handles      map[string]Handle
	persisted    map[string]Handle
	persistErr   error
	unpersistErr error
	unpersists   []string
}

func newStubStore(names ...string) *stubStore {
	s := &stubStore{
		handles:   make(map[string]Handle),
		persisted: make(map[string]Handle),
	}
	for _, n := range names {
		s.names = append(s.names, n)
		s.handles[n] = NewHandle()
	}
	return s
}

func (s *stubStore) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *stubStore) Load(name string) (Handle, error) {
	h, ok := s.handles[name]
	if !ok {
		return Handle{}, ErrUnknownName
	}
	return h, nil
}

func (s *stubStore) Persist(h Handle, name string) error {
	if s.persistErr != nil {
		return s.persistErr
	}
	if _, taken := s.persisted[name]; taken {
		return ErrNameExists
	}
	s.persisted[name] = h
	return nil
}

func (s *stubStore) Unpersist(name string) error {
	s.unpersists = append(s.unpersists, name)
	if s.unpersistErr != nil {
		return s.unpersistErr
	}
	delete(s.persisted, name)
	return nil
}

type stubSubsystem struct {
	store     Store
	openErr   error
	openGate  chan struct{} // nil resolves OpenStore immediately
	createErr error
	created   []Pose
	subs      map[int]func(Changes)
	nextSub   int
}

func newStubSubsystem(store Store) *stubSubsystem {
	return &stubSubsystem{store: store, subs: make(map[int]func(Changes))}
}

func (s *stubSubsystem) CreateAnchor(pose Pose) (Handle, error) {
	if s.createErr != nil {
		return Handle{}, s.createErr
	}
	s.created = append(s.created, pose)
	return NewHandle(), nil
}

func (s *stubSubsystem) OpenStore(ctx context.Context) (Store, error) {
	if s.openGate != nil {
		select {
		case <-s.openGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.store, nil
}

func (s *stubSubsystem) Subscribe(fn func(Changes)) func() {
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() { delete(s.subs, id) })
	}
}

func (s *stubSubsystem) deliver(ch Changes) {
	for _, fn := range s.subs {
		fn(ch)
	}
}

// addAnchor reports a new live anchor at pos and returns its handle.
func (s *stubSubsystem) addAnchor(pos common.Vec3) Handle {
	h := NewHandle()
	s.deliver(Changes{Added: []AnchorState{{
		Handle:   h,
		Pose:     Pose{Position: pos},
		Tracking: Tracking,
	}}})
	return h
}

type stubInput struct {
	active   [2]bool
	signal   [2]bool
	pos      common.Vec3
	posOK    bool
	viewer   common.Vec3
	viewerOK bool
}

func newStubInput() *stubInput {
	return &stubInput{signal: [2]bool{true, true}, posOK: true, viewerOK: true}
}

func (in *stubInput) SampleActivation(src Source) (bool, bool) {
	return in.active[src], in.signal[src]
}

func (in *stubInput) SamplePosition(Source) (common.Vec3, bool) {
	return in.pos, in.posOK
}

func (in *stubInput) ViewerPosition() (common.Vec3, bool) {
	return in.viewer, in.viewerOK
}

func (in *stubInput) press(src Source, pos common.Vec3) {
	in.active[src] = true
	in.pos = pos
}

func (in *stubInput) release(src Source) {
	in.active[src] = false
}

type stubHost struct {
	shown     int
	refreshed int
	hidden    []Handle
}

func (h *stubHost) ShowAnchor(Record)    { h.shown++ }
func (h *stubHost) RefreshAnchor(Record) { h.refreshed++ }
func (h *stubHost) HideAnchor(hd Handle) { h.hidden = append(h.hidden, hd) }

func waitSettled(t *testing.T, c *Controller) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.Phase() == AwaitingStore {
		if time.Now().After(deadline) {
			t.Fatalf("controller stuck awaiting store")
		}
		c.Tick()
		time.Sleep(time.Millisecond)
	}
}

func newReadyController(t *testing.T, sub *stubSubsystem, in *stubInput, host SceneHost) *Controller {
	t.Helper()
	c := New(sub, in, host, Config{}, nil)
	c.Start(context.Background())
	waitSettled(t, c)
	if c.Phase() != Ready {
		t.Fatalf("expected ready controller, got %v", c.Phase())
	}
	return c
}

// tap runs a full press-release cycle from src at pos.
func tap(c *Controller, in *stubInput, src Source, pos common.Vec3) {
	in.press(src, pos)
	c.Tick()
	in.release(src)
	c.Tick()
}

func TestControllerStartup(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "ready_after_store_opens",
			run: func(t *testing.T) {
				sub := newStubSubsystem(newStubStore())
				c := newReadyController(t, sub, newStubInput(), nil)
				defer c.Close()
				if len(sub.subs) != 1 {
					t.Fatalf("expected one subscription, got %d", len(sub.subs))
				}
			},
		},
		{
			name: "store_error_disables",
			run: func(t *testing.T) {
				sub := newStubSubsystem(nil)
				sub.openErr = ErrUnavailable
				in := newStubInput()
				c := New(sub, in, nil, Config{}, nil)
				c.Start(context.Background())
				waitSettled(t, c)
				if c.Phase() != Disabled {
					t.Fatalf("expected disabled, got %v", c.Phase())
				}
				tap(c, in, RightHand, common.Vec3{X: 1})
				if len(sub.created) != 0 {
					t.Fatalf("disabled controller created %d anchors", len(sub.created))
				}
			},
		},
		{
			name: "nil_subsystem_disables",
			run: func(t *testing.T) {
				c := New(nil, newStubInput(), nil, Config{}, nil)
				c.Start(context.Background())
				if c.Phase() != Disabled {
					t.Fatalf("expected disabled, got %v", c.Phase())
				}
			},
		},
		{
			name: "gestures_wait_for_store",
			run: func(t *testing.T) {
				sub := newStubSubsystem(newStubStore())
				sub.openGate = make(chan struct{})
				in := newStubInput()
				c := New(sub, in, nil, Config{}, nil)
				c.Start(context.Background())
				defer c.Close()

				in.press(RightHand, common.Vec3{X: 1})
				for i := 0; i < 5; i++ {
					c.Tick()
				}
				if c.Phase() != AwaitingStore {
					t.Fatalf("expected awaiting store, got %v", c.Phase())
				}
				if len(sub.created) != 0 {
					t.Fatalf("created %d anchors before store opened", len(sub.created))
				}

				close(sub.openGate)
				waitSettled(t, c)

				// The press was never sampled while waiting, so the first
				// ready tick sees a fresh rising edge.
				c.Tick()
				if len(sub.created) != 1 {
					t.Fatalf("expected one anchor after store opened, got %d", len(sub.created))
				}
				c.Tick()
				if len(sub.created) != 1 {
					t.Fatalf("held gesture re-fired, got %d creates", len(sub.created))
				}
			},
		},
		{
			name: "persisted_names_requested",
			run: func(t *testing.T) {
				sub := newStubSubsystem(newStubStore("kitchen", "desk"))
				c := newReadyController(t, sub, newStubInput(), nil)
				defer c.Close()
				if got := c.PendingLoads(); got != 2 {
					t.Fatalf("expected 2 pending loads, got %d", got)
				}
				names := c.PersistedNames()
				if len(names) != 2 || names[0] != "desk" || names[1] != "kitchen" {
					t.Fatalf("unexpected persisted names %v", names)
				}
				if len(c.Anchors()) != 0 {
					t.Fatalf("anchors live before any added change")
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, tc.run)
	}
}

func TestActivationEdges(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "held_gesture_fires_once",
			run: func(t *testing.T) {
				sub := newStubSubsystem(newStubStore())
				in := newStubInput()
				c := newReadyController(t, sub, in, nil)
				defer c.Close()

				in.press(RightHand, common.Vec3{X: 1})
				for i := 0; i < 10; i++ {
					c.Tick()
				}
				if len(sub.created) != 1 {
					t.Fatalf("expected 1 create for held gesture, got %d", len(sub.created))
				}
			},
		},
		{
			name: "release_rearms_edge",
			run: func(t *testing.T) {
				sub := newStubSubsystem(newStubStore())
				in := newStubInput()
				c := newReadyController(t, sub, in, nil)
				defer c.Close()

				tap(c, in, RightHand, common.Vec3{X: 1})
				tap(c, in, RightHand, common.Vec3{X: 2})
				if len(sub.created) != 2 {
					t.Fatalf("expected 2 creates, got %d", len(sub.created))
				}
			},
		},
		{
			name: "lost_signal_counts_as_inactive",
			run: func(t *testing.T) {
				sub := newStubSubsystem(newStubStore())
				in := newStubInput()
				c := newReadyController(t, sub, in, nil)
				defer c.Close()

				in.press(LeftHand, common.Vec3{X: 1})
				c.Tick()
				in.signal[LeftHand] = false
				c.Tick()
				in.signal[LeftHand] = true
				c.Tick()
				if len(sub.created) != 2 {
					t.Fatalf("signal loss should rearm the edge, got %d creates", len(sub.created))
				}
			},
		},
		{
			name: "sources_fire_independently",
			run: func(t *testing.T) {
				sub := newStubSubsystem(newStubStore())
				in := newStubInput()
				c := newReadyController(t, sub, in, nil)
				defer c.Close()

				in.press(LeftHand, common.Vec3{X: 1})
				in.press(RightHand, common.Vec3{X: 1})
				c.Tick()
				if len(sub.created) != 2 {
					t.Fatalf("expected both sources to fire, got %d creates", len(sub.created))
				}
			},
		},
		{
			name: "missing_position_consumes_edge",
			run: func(t *testing.T) {
				sub := newStubSubsystem(newStubStore())
				in := newStubInput()
				c := newReadyController(t, sub, in, nil)
				defer c.Close()

				in.posOK = false
				in.press(RightHand, common.Vec3{X: 1})
				c.Tick()
				in.posOK = true
				c.Tick()
				if len(sub.created) != 0 {
					t.Fatalf("expected no creates without a position, got %d", len(sub.created))
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, tc.run)
	}
}

func TestActivationPlacement(t *testing.T) {
	cases := []struct {
		name        string
		tapAt       common.Vec3
		viewer      common.Vec3
		viewerOK    bool
		wantForward common.Vec3
	}{
		{
			name:        "faces_away_from_viewer",
			tapAt:       common.Vec3{Z: 2},
			viewer:      common.Vec3{},
			viewerOK:    true,
			wantForward: common.Vec3{Z: 1},
		},
		{
			name:        "missing_viewer_uses_origin",
			tapAt:       common.Vec3{X: 3},
			viewer:      common.Vec3{X: -100},
			viewerOK:    false,
			wantForward: common.Vec3{X: 1},
		},
		{
			name:        "tap_at_viewer_falls_back_ahead",
			tapAt:       common.Vec3{X: 1, Y: 2, Z: 3},
			viewer:      common.Vec3{X: 1, Y: 2, Z: 3},
			viewerOK:    true,
			wantForward: common.Ahead,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := newStubSubsystem(newStubStore())
			in := newStubInput()
			in.viewer = tc.viewer
			in.viewerOK = tc.viewerOK
			c := newReadyController(t, sub, in, nil)
			defer c.Close()

			tap(c, in, RightHand, tc.tapAt)
			if len(sub.created) != 1 {
				t.Fatalf("expected 1 create, got %d", len(sub.created))
			}
			got := sub.created[0]
			if got.Position != tc.tapAt {
				t.Fatalf("anchor position %v, want %v", got.Position, tc.tapAt)
			}
			if common.Dist(got.Forward, tc.wantForward) > 1e-9 {
				t.Fatalf("anchor forward %v, want %v", got.Forward, tc.wantForward)
			}
			if got.Up != common.Up {
				t.Fatalf("anchor up %v, want %v", got.Up, common.Up)
			}
		})
	}
}

func TestNearestSelection(t *testing.T) {
	cases := []struct {
		name      string
		distances []float64
		wantIdx   int // index of toggled anchor, -1 = create instead
	}{
		{"closest_inside_threshold", []float64{0.05, 0.3, 0.02}, 2},
		{"all_outside_threshold", []float64{0.5, 0.8}, -1},
		{"exactly_at_threshold_creates", []float64{0.1}, -1},
		{"tie_keeps_first", []float64{0.05, 0.05}, 0},
		{"empty_scene_creates", nil, -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newStubStore()
			sub := newStubSubsystem(store)
			in := newStubInput()
			c := newReadyController(t, sub, in, nil)
			defer c.Close()

			handles := make([]Handle, 0, len(tc.distances))
			for _, d := range tc.distances {
				handles = append(handles, sub.addAnchor(common.Vec3{X: d}))
			}

			tap(c, in, RightHand, common.Vec3{})

			if tc.wantIdx < 0 {
				if len(sub.created) != 1 {
					t.Fatalf("expected a create, got %d", len(sub.created))
				}
				if len(store.persisted) != 0 {
					t.Fatalf("expected no persists, got %d", len(store.persisted))
				}
				return
			}

			if len(sub.created) != 0 {
				t.Fatalf("expected a toggle, got %d creates", len(sub.created))
			}
			if len(store.persisted) != 1 {
				t.Fatalf("expected 1 persisted anchor, got %d", len(store.persisted))
			}
			for _, h := range store.persisted {
				if h != handles[tc.wantIdx] {
					t.Fatalf("persisted %s, want %s", h.Short(), handles[tc.wantIdx].Short())
				}
			}
		})
	}
}

func TestTogglePersistence(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "toggle_twice_round_trips",
			run: func(t *testing.T) {
				store := newStubStore()
				sub := newStubSubsystem(store)
				in := newStubInput()
				c := newReadyController(t, sub, in, nil)
				defer c.Close()

				sub.addAnchor(common.Vec3{X: 0.05})
				tap(c, in, RightHand, common.Vec3{})

				recs := c.Anchors()
				if len(recs) != 1 || !recs[0].Persisted {
					t.Fatalf("expected persisted record, got %+v", recs)
				}
				name := recs[0].PersistedName
				if len(name) != 8 {
					t.Fatalf("expected 8-char name, got %q", name)
				}
				if got := c.PersistedNames(); len(got) != 1 || got[0] != name {
					t.Fatalf("persisted names %v, want [%s]", got, name)
				}

				tap(c, in, RightHand, common.Vec3{})
				recs = c.Anchors()
				if recs[0].Persisted || recs[0].PersistedName != "" {
					t.Fatalf("expected unpersisted record, got %+v", recs[0])
				}
				if len(store.unpersists) != 1 || store.unpersists[0] != name {
					t.Fatalf("store unpersists %v, want [%s]", store.unpersists, name)
				}
				if len(c.PersistedNames()) != 0 {
					t.Fatalf("names survived unpersist: %v", c.PersistedNames())
				}
			},
		},
		{
			name: "persist_failure_keeps_record_unpersisted",
			run: func(t *testing.T) {
				store := newStubStore()
				store.persistErr = errors.New("capacity")
				sub := newStubSubsystem(store)
				in := newStubInput()
				c := newReadyController(t, sub, in, nil)
				defer c.Close()

				sub.addAnchor(common.Vec3{X: 0.05})
				tap(c, in, RightHand, common.Vec3{})

				recs := c.Anchors()
				if recs[0].Persisted || recs[0].PersistedName != "" {
					t.Fatalf("persist failure mutated record: %+v", recs[0])
				}
				if len(c.PersistedNames()) != 0 {
					t.Fatalf("persist failure left name behind: %v", c.PersistedNames())
				}
			},
		},
		{
			name: "unpersist_failure_still_clears_locally",
			run: func(t *testing.T) {
				store := newStubStore()
				sub := newStubSubsystem(store)
				in := newStubInput()
				c := newReadyController(t, sub, in, nil)
				defer c.Close()

				sub.addAnchor(common.Vec3{X: 0.05})
				tap(c, in, RightHand, common.Vec3{})
				store.unpersistErr = errors.New("io")
				tap(c, in, RightHand, common.Vec3{})

				recs := c.Anchors()
				if recs[0].Persisted || recs[0].PersistedName != "" {
					t.Fatalf("expected local clear despite store error, got %+v", recs[0])
				}
				if len(store.persisted) != 1 {
					t.Fatalf("stub should still hold the rejected removal, got %d", len(store.persisted))
				}
			},
		},
		{
			name: "creation_failure_leaves_state_untouched",
			run: func(t *testing.T) {
				store := newStubStore()
				sub := newStubSubsystem(store)
				sub.createErr = errors.New("tracking lost")
				in := newStubInput()
				c := newReadyController(t, sub, in, nil)
				defer c.Close()

				tap(c, in, RightHand, common.Vec3{X: 1})
				if len(c.Anchors()) != 0 || len(store.persisted) != 0 {
					t.Fatalf("creation failure mutated state")
				}

				sub.createErr = nil
				tap(c, in, RightHand, common.Vec3{X: 1})
				if len(sub.created) != 1 {
					t.Fatalf("next edge should retry create, got %d", len(sub.created))
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, tc.run)
	}
}

func TestChangeReconciliation(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "duplicate_added_ignored",
			run: func(t *testing.T) {
				sub := newStubSubsystem(newStubStore())
				host := &stubHost{}
				c := newReadyController(t, sub, newStubInput(), host)
				defer c.Close()

				h := NewHandle()
				st := AnchorState{Handle: h, Pose: Pose{Position: common.Vec3{X: 1}}, Tracking: Tracking}
				sub.deliver(Changes{Added: []AnchorState{st}})
				sub.deliver(Changes{Added: []AnchorState{st}})

				if len(c.Anchors()) != 1 {
					t.Fatalf("expected 1 record, got %d", len(c.Anchors()))
				}
				if host.shown != 1 {
					t.Fatalf("expected 1 show, got %d", host.shown)
				}
			},
		},
		{
			name: "added_consumes_pending_load",
			run: func(t *testing.T) {
				store := newStubStore("desk")
				sub := newStubSubsystem(store)
				c := newReadyController(t, sub, newStubInput(), nil)
				defer c.Close()

				sub.deliver(Changes{Added: []AnchorState{{
					Handle:   store.handles["desk"],
					Pose:     Pose{Position: common.Vec3{X: 2}},
					Tracking: Tracking,
				}}})

				recs := c.Anchors()
				if len(recs) != 1 {
					t.Fatalf("expected 1 record, got %d", len(recs))
				}
				if !recs[0].Persisted || recs[0].PersistedName != "desk" {
					t.Fatalf("loaded anchor not marked persisted: %+v", recs[0])
				}
				if c.PendingLoads() != 0 {
					t.Fatalf("pending load not consumed, %d left", c.PendingLoads())
				}
			},
		},
		{
			name: "unknown_added_is_unpersisted",
			run: func(t *testing.T) {
				sub := newStubSubsystem(newStubStore("desk"))
				c := newReadyController(t, sub, newStubInput(), nil)
				defer c.Close()

				sub.addAnchor(common.Vec3{X: 5})
				recs := c.Anchors()
				if len(recs) != 1 || recs[0].Persisted {
					t.Fatalf("fresh anchor should be unpersisted: %+v", recs)
				}
				if c.PendingLoads() != 1 {
					t.Fatalf("pending load consumed by wrong handle")
				}
			},
		},
		{
			name: "updated_moves_record",
			run: func(t *testing.T) {
				sub := newStubSubsystem(newStubStore())
				host := &stubHost{}
				c := newReadyController(t, sub, newStubInput(), host)
				defer c.Close()

				h := sub.addAnchor(common.Vec3{X: 1})
				sub.deliver(Changes{Updated: []AnchorState{{
					Handle:   h,
					Pose:     Pose{Position: common.Vec3{X: 2}},
					Tracking: Limited,
				}}})

				rec := c.Anchors()[0]
				if rec.Position.X != 2 || rec.Tracking != Limited {
					t.Fatalf("update not applied: %+v", rec)
				}
				if host.refreshed == 0 {
					t.Fatalf("host never refreshed")
				}
			},
		},
		{
			name: "updated_unknown_handle_ignored",
			run: func(t *testing.T) {
				sub := newStubSubsystem(newStubStore())
				c := newReadyController(t, sub, newStubInput(), nil)
				defer c.Close()

				sub.deliver(Changes{Updated: []AnchorState{{Handle: NewHandle()}}})
				if len(c.Anchors()) != 0 {
					t.Fatalf("update conjured a record")
				}
			},
		},
		{
			name: "removed_erases_record",
			run: func(t *testing.T) {
				sub := newStubSubsystem(newStubStore())
				host := &stubHost{}
				c := newReadyController(t, sub, newStubInput(), host)
				defer c.Close()

				h1 := sub.addAnchor(common.Vec3{X: 1})
				h2 := sub.addAnchor(common.Vec3{X: 2})
				sub.deliver(Changes{Removed: []Handle{h1}})

				recs := c.Anchors()
				if len(recs) != 1 || recs[0].Handle != h2 {
					t.Fatalf("wrong record survived removal: %+v", recs)
				}
				if len(host.hidden) != 1 || host.hidden[0] != h1 {
					t.Fatalf("host hid %v, want [%s]", host.hidden, h1.Short())
				}
			},
		},
		{
			name: "changes_dropped_before_ready",
			run: func(t *testing.T) {
				sub := newStubSubsystem(newStubStore())
				sub.openGate = make(chan struct{})
				c := New(sub, newStubInput(), nil, Config{}, nil)
				c.Start(context.Background())
				defer c.Close()

				c.applyChanges(Changes{Added: []AnchorState{{Handle: NewHandle()}}})
				if len(c.Anchors()) != 0 {
					t.Fatalf("change applied while awaiting store")
				}
				close(sub.openGate)
				waitSettled(t, c)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, tc.run)
	}
}

func TestForgetAll(t *testing.T) {
	store := newStubStore()
	sub := newStubSubsystem(store)
	in := newStubInput()
	c := newReadyController(t, sub, in, nil)
	defer c.Close()

	sub.addAnchor(common.Vec3{X: 0.05})
	sub.addAnchor(common.Vec3{X: 10})
	sub.addAnchor(common.Vec3{X: 20})

	tap(c, in, RightHand, common.Vec3{})
	tap(c, in, RightHand, common.Vec3{X: 10.01})
	if len(c.PersistedNames()) != 2 {
		t.Fatalf("setup expected 2 persisted, got %v", c.PersistedNames())
	}

	c.ForgetAll()

	if len(c.PersistedNames()) != 0 {
		t.Fatalf("names survived forget-all: %v", c.PersistedNames())
	}
	if len(store.persisted) != 0 {
		t.Fatalf("store still holds %d anchors", len(store.persisted))
	}
	recs := c.Anchors()
	if len(recs) != 3 {
		t.Fatalf("forget-all dropped live anchors, %d left", len(recs))
	}
	for _, rec := range recs {
		if rec.Persisted {
			t.Fatalf("record still persisted: %+v", rec)
		}
	}
}

func TestTeardown(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "close_empties_state",
			run: func(t *testing.T) {
				store := newStubStore("desk")
				sub := newStubSubsystem(store)
				in := newStubInput()
				c := newReadyController(t, sub, in, nil)

				sub.addAnchor(common.Vec3{X: 0.05})
				tap(c, in, RightHand, common.Vec3{})

				c.Close()

				if c.Phase() != Uninitialized {
					t.Fatalf("expected uninitialized, got %v", c.Phase())
				}
				if len(c.Anchors()) != 0 || c.PendingLoads() != 0 || len(c.PersistedNames()) != 0 {
					t.Fatalf("state survived close")
				}
			},
		},
		{
			name: "close_unsubscribes",
			run: func(t *testing.T) {
				sub := newStubSubsystem(newStubStore())
				c := newReadyController(t, sub, newStubInput(), nil)
				c.Close()
				if len(sub.subs) != 0 {
					t.Fatalf("subscription survived close")
				}
				sub.deliver(Changes{Added: []AnchorState{{Handle: NewHandle()}}})
				if len(c.Anchors()) != 0 {
					t.Fatalf("closed controller accepted a change")
				}
			},
		},
		{
			name: "restart_reloads_store",
			run: func(t *testing.T) {
				store := newStubStore("desk", "kitchen")
				sub := newStubSubsystem(store)
				c := newReadyController(t, sub, newStubInput(), nil)

				sub.deliver(Changes{Added: []AnchorState{{Handle: store.handles["desk"]}}})
				c.Close()

				c.Start(context.Background())
				waitSettled(t, c)
				if c.Phase() != Ready {
					t.Fatalf("expected ready after restart, got %v", c.Phase())
				}
				if len(c.Anchors()) != 0 {
					t.Fatalf("live set survived restart")
				}
				if c.PendingLoads() != 2 {
					t.Fatalf("expected restart to reload both names, got %d pending", c.PendingLoads())
				}
				c.Close()
			},
		},
		{
			name: "close_cancels_pending_open",
			run: func(t *testing.T) {
				// The open goroutine unblocks on context cancellation and its
				// buffered send never blocks.
				defer goleak.VerifyNone(t)

				sub := newStubSubsystem(newStubStore())
				sub.openGate = make(chan struct{})
				c := New(sub, newStubInput(), nil, Config{}, nil)
				c.Start(context.Background())
				c.Close()
			},
		},
		{
			name: "close_twice_is_safe",
			run: func(t *testing.T) {
				sub := newStubSubsystem(newStubStore())
				c := newReadyController(t, sub, newStubInput(), nil)
				c.Close()
				c.Close()
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, tc.run)
	}
}
