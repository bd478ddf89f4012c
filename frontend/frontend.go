// Package frontend is the optional graphical front end: it drives the
// VM's fetch/execute loop from ebiten's own timer callback, renders the
// framebuffer device's VRAM bank to a window, and forwards key presses
// into the keyboard device. Nothing in asm or vm imports this package;
// a headless caller (cr8sim) never pulls in a windowing backend.
package frontend

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"cr8vm/vm"
)

func fixedPoint(x, y int) fixed.Point26_6 {
	return fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
}

// The VRAM bank is 0x4000 bytes (0x8000-0xBFFF); a 128x128 byte-per-pixel
// framebuffer fills it exactly with no spare bytes, so that's the
// resolution this front end assumes.
const (
	ScreenWidth  = 128
	ScreenHeight = 128
)

// hudHeight is the strip below the framebuffer reserved for the
// register readout basicfont draws into.
const hudHeight = 16

// Game implements ebiten.Game over a running CPU.
type Game struct {
	cpu            *vm.CPU
	cyclesPerFrame int
	halted         bool
	showHUD        bool
	err            error

	pixels  [ScreenWidth * ScreenHeight * 4]byte
	img     *ebiten.Image
	hudRGBA *image.RGBA
	hudImg  *ebiten.Image
}

// New wires a Game to cpu. cyclesPerFrame bounds how many instructions
// Update executes before yielding back to ebiten for the next frame;
// spec.md leaves the exact host/core cadence unspecified (§5), so a
// caller that doesn't care passes 0 and gets a default that keeps a
// 60Hz callback comfortably ahead of a simulated kHz-class core.
// showHUD overlays a basicfont register readout below the framebuffer,
// the same state a headless run's debug REPL would print.
func New(cpu *vm.CPU, cyclesPerFrame int, showHUD bool) *Game {
	if cyclesPerFrame <= 0 {
		cyclesPerFrame = 10000
	}
	g := &Game{
		cpu:            cpu,
		cyclesPerFrame: cyclesPerFrame,
		showHUD:        showHUD,
		img:            ebiten.NewImage(ScreenWidth, ScreenHeight),
	}
	if showHUD {
		g.hudRGBA = image.NewRGBA(image.Rect(0, 0, ScreenWidth, hudHeight))
		g.hudImg = ebiten.NewImage(ScreenWidth, hudHeight)
	}
	return g
}

// keymap binds host keys to the single-byte codes PushKey enqueues.
// Codes are arbitrary on this side of the bus; a program reads them
// back with IN on the keyboard's port and assigns them meaning itself.
var keymap = map[ebiten.Key]byte{
	ebiten.KeyArrowUp:    0x01,
	ebiten.KeyArrowDown:  0x02,
	ebiten.KeyArrowLeft:  0x03,
	ebiten.KeyArrowRight: 0x04,
	ebiten.KeySpace:      0x05,
	ebiten.KeyEnter:      0x06,
	ebiten.KeyEscape:     0x07,
}

// Update forwards newly pressed keys to the keyboard device, then runs
// one batch of CPU cycles. A halt or fault stops the batch but not the
// window; Draw keeps showing the last frame so the user can read any
// final output before closing it.
func (g *Game) Update() error {
	if g.halted {
		return nil
	}

	kb := g.cpu.Keyboard()
	for key, code := range keymap {
		if inpututil.IsKeyJustPressed(key) {
			kb.PushKey(code)
		}
	}

	for i := 0; i < g.cyclesPerFrame; i++ {
		if err := g.cpu.Step(); err != nil {
			g.cpu.Flush()
			g.halted = true
			if err != vm.ErrHalted {
				g.err = fmt.Errorf("cr8 core fault: %w", err)
			}
			break
		}
	}
	return nil
}

// Draw blits the VRAM bank to the screen, skipping the decode entirely
// when the framebuffer device reports no write since the last poll,
// then overlays the register HUD if enabled.
func (g *Game) Draw(screen *ebiten.Image) {
	if g.cpu.FramebufferDirty() {
		vram := g.cpu.VRAMSnapshot()
		for i := 0; i < ScreenWidth*ScreenHeight; i++ {
			r, gr, b := rgb332(vram[i])
			o := i * 4
			g.pixels[o] = r
			g.pixels[o+1] = gr
			g.pixels[o+2] = b
			g.pixels[o+3] = 0xFF
		}
		g.img.WritePixels(g.pixels[:])
	}
	screen.DrawImage(g.img, nil)

	if g.showHUD {
		g.drawHUD(screen)
	}
}

// drawHUD renders the CPU's register file with basicfont into a small
// off-screen RGBA buffer, then blits it below the framebuffer.
func (g *Game) drawHUD(screen *ebiten.Image) {
	draw.Draw(g.hudRGBA, g.hudRGBA.Bounds(), image.Black, image.Point{}, draw.Src)

	d := font.Drawer{
		Dst:  g.hudRGBA,
		Src:  image.White,
		Face: basicfont.Face7x13,
		Dot:  fixedPoint(1, 11),
	}
	d.DrawString(fmt.Sprintf(
		"pc=%04x sp=%04x f=%02x", g.cpu.PC(), g.cpu.SP(), g.cpu.Flags(),
	))

	g.hudImg.WritePixels(g.hudRGBA.Pix)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(0, ScreenHeight)
	screen.DrawImage(g.hudImg, op)
}

// Layout reports the fixed logical resolution backing the VRAM bank
// (plus the HUD strip, if enabled); ebiten scales it to the actual
// window per its own letterboxing rules.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	h := ScreenHeight
	if g.showHUD {
		h += hudHeight
	}
	return ScreenWidth, h
}

// Err returns the fault that stopped the core, if Update's batch loop
// ended on anything other than a clean HALT.
func (g *Game) Err() error { return g.err }

// rgb332 decodes one VRAM byte as a packed 3-3-2 bit RGB pixel: the
// top 3 bits are red, the next 3 green, the low 2 blue.
func rgb332(b byte) (r, g, bl byte) {
	r = expandBits(b>>5&0x7, 7)
	g = expandBits(b>>2&0x7, 7)
	bl = expandBits(b&0x3, 3)
	return
}

func expandBits(v, max byte) byte {
	return byte(int(v) * 255 / int(max))
}
