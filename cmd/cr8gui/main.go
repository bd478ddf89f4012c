// Command cr8gui runs a flat ROM image behind the ebiten graphical
// front end instead of the headless tick loop cr8sim uses.
package main

import (
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	cli "github.com/urfave/cli/v2"

	"cr8vm/frontend"
	"cr8vm/vm"
)

func main() {
	app := cli.NewApp()
	app.Name = "cr8gui"
	app.Usage = "run a cr8 ROM image in a window"
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true, Usage: "ROM image path"},
		&cli.IntFlag{Name: "cycles-per-frame", Value: 10000, Usage: "CPU cycles executed per rendered frame"},
		&cli.IntFlag{Name: "scale", Value: 4, Usage: "window scale factor over the 128x128 logical screen"},
		&cli.BoolFlag{Name: "hud", Usage: "overlay a register readout below the framebuffer"},
	}
	app.Action = func(c *cli.Context) error {
		return run(c.String("input"), c.Int("cycles-per-frame"), c.Int("scale"), c.Bool("hud"))
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run(input string, cyclesPerFrame, scale int, hud bool) error {
	rom, err := os.ReadFile(input)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot read %s: %v", input, err), 1)
	}

	mem := vm.NewMemory()
	mem.LoadROM(rom)
	cpu := vm.NewCPU(mem, false)

	game := frontend.New(cpu, cyclesPerFrame, hud)

	if scale <= 0 {
		scale = 1
	}
	_, windowHeight := game.Layout(0, 0)
	ebiten.SetWindowSize(frontend.ScreenWidth*scale, windowHeight*scale)
	ebiten.SetWindowTitle("cr8vm")

	if err := ebiten.RunGame(game); err != nil {
		return cli.Exit(err, 1)
	}
	cpu.Flush()
	if err := game.Err(); err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}
