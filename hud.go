package main

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/ebitenui/ebitenui"
	imageui "github.com/ebitenui/ebitenui/image"
	"github.com/ebitenui/ebitenui/widget"
	"github.com/hajimehoshi/ebiten/v2"
	ebtext "github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"

	"github.com/milk9111/anchortap/anchor"
)

// HUD is the right-hand status panel: profile and phase readouts, the live
// anchor list and the forget-all button.
type HUD struct {
	ui *ebitenui.UI

	status  *widget.Text
	anchors *widget.Text
	notice  *widget.Text

	noticeLeft int
}

// NewHUD assembles the panel from colored nine-slices and the built-in basic
// font, so no theme fonts need loading.
func NewHUD(g *Game) *HUD {
	panelImg := imageui.NewNineSliceColor(color.NRGBA{R: 0x10, G: 0x14, B: 0x1c, A: 235})
	btnImg := imageui.NewNineSliceColor(color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 255})

	goFace := ebtext.NewGoXFace(basicfont.Face7x13)
	var face ebtext.Face = goFace

	white := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	dim := color.NRGBA{R: 0x9a, G: 0xa4, B: 0xb2, A: 0xff}
	amber := color.NRGBA{R: 0xff, G: 0xc8, B: 0x5e, A: 0xff}
	btnTextColor := &widget.ButtonTextColor{Idle: white}

	title := widget.NewText(
		widget.TextOpts.Text("anchortap", &face, white),
	)
	status := widget.NewText(
		widget.TextOpts.Text("", &face, white),
	)
	anchors := widget.NewText(
		widget.TextOpts.Text("", &face, white),
	)
	notice := widget.NewText(
		widget.TextOpts.Text("", &face, amber),
	)
	help := widget.NewText(
		widget.TextOpts.Text(strings.Join([]string{
			"WASD move viewer",
			"LMB  right-hand tap",
			"E    left-hand tap",
			"Tab  drop hand signal",
			"C    copy aimed name",
			"F12  quit",
		}, "\n"), &face, dim),
	)

	forgetBtn := widget.NewButton(
		widget.ButtonOpts.Image(&widget.ButtonImage{Idle: btnImg, Pressed: btnImg}),
		widget.ButtonOpts.Text("Forget all", &face, btnTextColor),
		widget.ButtonOpts.ClickedHandler(func(args *widget.ButtonClickedEventArgs) {
			g.ctrl.ForgetAll()
		}),
	)

	panel := widget.NewContainer(
		widget.ContainerOpts.BackgroundImage(panelImg),
		widget.ContainerOpts.Layout(widget.NewRowLayout(
			widget.RowLayoutOpts.Direction(widget.DirectionVertical),
			widget.RowLayoutOpts.Spacing(12),
			widget.RowLayoutOpts.Padding(&widget.Insets{Top: 18, Bottom: 18, Left: 14, Right: 14}),
		)),
		widget.ContainerOpts.WidgetOpts(
			widget.WidgetOpts.MinSize(hudPanelWidth, baseHeight),
			widget.WidgetOpts.LayoutData(widget.AnchorLayoutData{
				HorizontalPosition: widget.AnchorLayoutPositionEnd,
				VerticalPosition:   widget.AnchorLayoutPositionCenter,
				StretchVertical:    true,
			}),
		),
	)
	panel.AddChild(title)
	panel.AddChild(status)
	panel.AddChild(forgetBtn)
	panel.AddChild(anchors)
	panel.AddChild(notice)
	panel.AddChild(help)

	root := widget.NewContainer(
		widget.ContainerOpts.Layout(widget.NewAnchorLayout()),
	)
	root.AddChild(panel)

	return &HUD{
		ui:      &ebitenui.UI{Container: root},
		status:  status,
		anchors: anchors,
		notice:  notice,
	}
}

// Flash shows msg in the panel for a few seconds.
func (h *HUD) Flash(msg string) {
	h.notice.Label = msg
	h.noticeLeft = 4 * tickRate
}

// Update refreshes the readouts and runs the UI's own input handling.
func (h *HUD) Update(g *Game) {
	h.status.Label = fmt.Sprintf("profile %s\nphase   %s\nstore   %s", g.profile.Name, g.ctrl.Phase(), g.catalog.Path())
	h.anchors.Label = anchorListing(g.ctrl.Anchors())
	if h.noticeLeft > 0 {
		h.noticeLeft--
		if h.noticeLeft == 0 {
			h.notice.Label = ""
		}
	}
	h.ui.Update()
}

func (h *HUD) Draw(screen *ebiten.Image) {
	h.ui.Draw(screen)
}

func anchorListing(recs []anchor.Record) string {
	if len(recs) == 0 {
		return "no anchors yet"
	}
	var b strings.Builder
	for i, rec := range recs {
		name := "-"
		if rec.Persisted {
			name = rec.PersistedName
		}
		fmt.Fprintf(&b, "%2d %s %-11s %s\n", i+1, rec.Handle.Short(), rec.Tracking, name)
	}
	return strings.TrimRight(b.String(), "\n")
}
