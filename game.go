package main

import (
	"context"
	"fmt"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"go.uber.org/zap"
	"golang.design/x/clipboard"
	"golang.org/x/image/colornames"

	"github.com/milk9111/anchortap/anchor"
	"github.com/milk9111/anchortap/common"
	"github.com/milk9111/anchortap/profiles"
	"github.com/milk9111/anchortap/sim"
	"github.com/milk9111/anchortap/store"
)

const (
	baseWidth  = 1280
	baseHeight = 720
)

type Game struct {
	log         *zap.Logger
	profile     *profiles.Profile
	profileName string
	catalog     *store.File

	room     *Room
	view     *Viewport
	gestures *Gestures
	scene    *Scene
	world    *sim.World
	ctrl     *anchor.Controller
	hud      *HUD

	watcher     *profiles.Watcher
	clipboardOK bool
	frames      int
}

func NewGame(profileName, storePath string, log *zap.Logger) (*Game, error) {
	p, err := profiles.LoadProfile(profileName)
	if err != nil {
		return nil, err
	}
	if storePath == "" {
		storePath = p.Store.Path
	}
	if storePath == "" {
		storePath = "anchors.yaml"
	}
	catalog, err := store.OpenFile(storePath, nil)
	if err != nil {
		return nil, err
	}

	g := &Game{
		log:         log,
		profile:     p,
		profileName: profileName,
		catalog:     catalog,
		view:        &Viewport{},
		scene:       NewScene(),
	}
	g.room = NewRoom(p.Room)
	g.view.fit(g.room)
	g.gestures = NewGestures(g.room, g.view)
	g.hud = NewHUD(g)
	g.startSession()

	if err := clipboard.Init(); err != nil {
		log.Warn("clipboard unavailable", zap.Error(err))
	} else {
		g.clipboardOK = true
	}

	watcher, err := profiles.NewWatcher(log, "profiles")
	if err != nil {
		log.Warn("profile hot-reload disabled", zap.Error(err))
	} else {
		g.watcher = watcher
	}

	return g, nil
}

// startSession brings a fresh subsystem and controller up over the shared
// catalog.
func (g *Game) startSession() {
	g.world = sim.New(g.catalog, nil, g.profile.Sim.Config(), g.log)
	g.ctrl = anchor.New(g.world, g.gestures, g.scene, g.profile.Controller.Config(), g.log)
	g.ctrl.Start(context.Background())
}

// reloadProfile re-reads the active profile and restarts the session with the
// new tuning. Unpersisted anchors belong to the old subsystem and are lost;
// persisted ones come back through the store.
func (g *Game) reloadProfile() {
	p, err := profiles.LoadProfile(g.profileName)
	if err != nil {
		g.log.Warn("profile reload failed", zap.Error(err))
		g.hud.Flash("profile reload failed")
		return
	}
	g.profile = p

	viewer := g.room.ViewerPos()
	g.room = NewRoom(p.Room)
	g.room.MoveViewerTo(viewer.X, viewer.Z)
	g.view.fit(g.room)
	g.gestures.room = g.room

	g.ctrl.Close()
	g.scene.Reset()
	g.startSession()

	g.log.Info("profile reloaded", zap.String("profile", p.Name))
	g.hud.Flash(fmt.Sprintf("profile %s reloaded", p.Name))
}

func (g *Game) Update() error {
	g.frames++

	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		return ebiten.Termination
	}

	if g.watcher != nil {
		select {
		case <-g.watcher.Reloads:
			g.reloadProfile()
		default:
		}
	}

	moveX, moveZ := g.gestures.Move()
	g.room.Step(moveX, moveZ)

	g.world.Step()
	g.scene.Step()

	g.hud.Update(g)
	if g.clipboardOK && inpututil.IsKeyJustPressed(ebiten.KeyC) {
		g.copyAimedName()
	}

	// Gestures sample last so everything above reads as prior state.
	g.ctrl.Tick()
	return nil
}

// copyAimedName puts the persisted name nearest the reticle on the system
// clipboard.
func (g *Game) copyAimedName() {
	aim, ok := g.gestures.AimPoint()
	if !ok {
		return
	}
	best := ""
	bestDist := math.MaxFloat64
	for _, rec := range g.ctrl.Anchors() {
		if !rec.Persisted {
			continue
		}
		if d := common.Dist(rec.Position, aim); d < bestDist {
			best = rec.PersistedName
			bestDist = d
		}
	}
	if best == "" {
		g.hud.Flash("no persisted anchor to copy")
		return
	}
	clipboard.Write(clipboard.FmtText, []byte(best))
	g.hud.Flash(fmt.Sprintf("copied %s", best))
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.drawRoom(screen)
	g.scene.Draw(screen, g.view)
	g.drawViewer(screen)
	g.drawReticle(screen)
	g.hud.Draw(screen)

	ebitenutil.DebugPrint(screen, fmt.Sprintf("Frames: %d    FPS: %.2f", g.frames, ebiten.ActualFPS()))
}

func (g *Game) drawRoom(screen *ebiten.Image) {
	x0, y0 := g.view.toScreen(common.Vec3{X: -g.room.width / 2, Z: -g.room.depth / 2})
	w := float32(g.room.width * g.view.scale)
	h := float32(g.room.depth * g.view.scale)
	vector.FillRect(screen, x0, y0, w, h, color.RGBA{R: 0x18, G: 0x1d, B: 0x26, A: 0xff}, false)
	vector.StrokeRect(screen, x0, y0, w, h, 2, colornames.Slategray, false)
}

func (g *Game) drawViewer(screen *ebiten.Image) {
	x, y := g.view.toScreen(g.room.ViewerPos())
	vector.FillCircle(screen, x, y, float32(viewerRadius*g.view.scale), colornames.Whitesmoke, true)
}

// drawReticle marks the aim point with a crosshair and the proximity ring:
// taps landing on an anchor inside the ring toggle it instead of creating a
// new one.
func (g *Game) drawReticle(screen *ebiten.Image) {
	aim, ok := g.gestures.AimPoint()
	if !ok {
		return
	}
	x, y := g.view.toScreen(aim)
	vector.StrokeLine(screen, x-6, y, x+6, y, 1, colornames.Whitesmoke, true)
	vector.StrokeLine(screen, x, y-6, x, y+6, 1, colornames.Whitesmoke, true)

	threshold := g.profile.Controller.ProximityThreshold
	if threshold <= 0 {
		threshold = anchor.DefaultProximityThreshold
	}
	vector.StrokeCircle(screen, x, y, float32(threshold*g.view.scale), 1, colornames.Slategray, true)
}

// Close tears the session down after RunGame returns.
func (g *Game) Close() {
	if g.ctrl != nil {
		g.ctrl.Close()
	}
	if g.watcher != nil {
		g.watcher.Close()
	}
}

func (g *Game) LayoutF(outsideWidth, outsideHeight float64) (float64, float64) {
	return baseWidth, baseHeight
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	panic("shouldn't use Layout")
}
