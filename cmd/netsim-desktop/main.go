// netsim-desktop is the graphical front-end of the netlist simulator: input
// wires are toggled from the keyboard, each tick is stepped manually, and
// every input and output port is shown as a row of lamps.
//
// Usage: netsim-desktop <netlist>
package main

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	xdraw "golang.org/x/image/draw"

	"pjulia/pkg/netlist"
)

const (
	cellSize     = 24 // screen pixels per lamp
	screenWidth  = 640
	screenHeight = 480
)

type Game struct {
	ops    *netlist.OpsList
	runner *netlist.Runner

	inputs   [][]bool // current value of each input port
	selected int      // which input bit the cursor is on
	ticks    int

	panel     *image.RGBA // one pixel per lamp
	scaled    *image.RGBA // panel upscaled for the screen
	offscreen *ebiten.Image
}

func newGame(ops *netlist.OpsList) *Game {
	inputs := make([][]bool, len(ops.Inputs))
	for i, port := range ops.Inputs {
		inputs[i] = make([]bool, port.Bits)
	}

	cols := 1
	for _, port := range ops.Inputs {
		if int(port.Bits) > cols {
			cols = int(port.Bits)
		}
	}
	for _, port := range ops.Outputs {
		if int(port.Bits) > cols {
			cols = int(port.Bits)
		}
	}
	rows := len(ops.Inputs) + len(ops.Outputs)
	if rows == 0 {
		rows = 1
	}

	return &Game{
		ops:       ops,
		runner:    netlist.NewRunner(ops),
		inputs:    inputs,
		panel:     image.NewRGBA(image.Rect(0, 0, cols, rows)),
		scaled:    image.NewRGBA(image.Rect(0, 0, cols*cellSize, rows*cellSize)),
		offscreen: ebiten.NewImage(cols*cellSize, rows*cellSize),
	}
}

// bitCount is the total number of input bits across all ports.
func (g *Game) bitCount() int {
	n := 0
	for _, bits := range g.inputs {
		n += len(bits)
	}
	return n
}

// locate maps a flat bit index to (port, bit).
func (g *Game) locate(index int) (int, int) {
	for port, bits := range g.inputs {
		if index < len(bits) {
			return port, index
		}
		index -= len(bits)
	}
	return 0, 0
}

func (g *Game) Update() error {
	if n := g.bitCount(); n > 0 {
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowRight) {
			g.selected = (g.selected + 1) % n
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft) {
			g.selected = (g.selected + n - 1) % n
		}
		if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
			port, bit := g.locate(g.selected)
			g.inputs[port][bit] = !g.inputs[port][bit]
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		for i, port := range g.ops.Inputs {
			if err := g.runner.Write(port, g.inputs[i]); err != nil {
				return err
			}
		}
		g.runner.Tick()
		g.ticks++
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	return nil
}

var (
	colorOff      = color.RGBA{40, 40, 40, 255}
	colorOn       = color.RGBA{90, 220, 90, 255}
	colorInputOff = color.RGBA{60, 60, 100, 255}
	colorInputOn  = color.RGBA{120, 160, 255, 255}
	colorCursor   = color.RGBA{255, 200, 60, 255}
)

func (g *Game) drawPanel(screen *ebiten.Image) {
	bounds := g.panel.Bounds()
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			g.panel.Set(x, y, color.RGBA{0, 0, 0, 255})
		}
	}

	row := 0
	flat := 0
	for i, port := range g.ops.Inputs {
		for bit := 0; bit < int(port.Bits); bit++ {
			c := colorInputOff
			if g.inputs[i][bit] {
				c = colorInputOn
			}
			if flat == g.selected {
				c = colorCursor
			}
			g.panel.Set(bit, row, c)
			flat++
		}
		row++
	}
	for _, port := range g.ops.Outputs {
		bits := g.runner.Read(port)
		for bit, b := range bits {
			c := colorOff
			if b {
				c = colorOn
			}
			g.panel.Set(bit, row, c)
		}
		row++
	}

	// Upscale the one-pixel-per-lamp panel for the screen.
	xdraw.NearestNeighbor.Scale(g.scaled, g.scaled.Bounds(), g.panel, bounds, xdraw.Src, nil)
	g.offscreen.WritePixels(g.scaled.Pix)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(16, 48)
	screen.DrawImage(g.offscreen, op)
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.drawPanel(screen)

	var names []string
	for _, port := range g.ops.Inputs {
		names = append(names, port.Name)
	}
	for _, port := range g.ops.Outputs {
		names = append(names, port.Name)
	}
	hud := fmt.Sprintf(
		"tick %d   arrows: select input bit   space: toggle   enter: tick   esc: quit\nwires: %s",
		g.ticks, strings.Join(names, ", "))
	ebitenutil.DebugPrint(screen, hud)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: netsim-desktop <netlist>")
		os.Exit(1)
	}

	contents, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to read netlist: %v", err)
	}
	parsed, err := netlist.Parse(os.Args[1], string(contents))
	if err != nil {
		log.Fatalf("Parse error: %v", err)
	}
	graph, err := netlist.Build(parsed)
	if err != nil {
		log.Fatalf("Build error: %v", err)
	}
	ops, err := netlist.Sort(graph)
	if err != nil {
		log.Fatalf("Sort error: %v", err)
	}

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("netsim")
	if err := ebiten.RunGame(newGame(ops)); err != nil {
		log.Fatal(err)
	}
}
