// Command cr8sim runs a flat ROM image on the VM core, per spec §6.3.
package main

import (
	"fmt"
	"os"

	cli "github.com/urfave/cli/v2"

	"cr8vm/vm"
)

func main() {
	app := cli.NewApp()
	app.Name = "cr8sim"
	app.Usage = "run a cr8 ROM image"
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true, Usage: "ROM image path"},
		&cli.StringFlag{Name: "rate", Aliases: []string{"r"}, Usage: "tick rate, e.g. 1mhz or a millisecond count"},
		&cli.BoolFlag{Name: "dbg", Usage: "enable breakpoint stalls and the step REPL"},
	}
	app.Action = func(c *cli.Context) error {
		return runImage(c.String("input"), c.String("rate"), c.Bool("dbg"))
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runImage(input, rate string, debug bool) error {
	rom, err := os.ReadFile(input)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot read %s: %v", input, err), 1)
	}

	tick, err := vm.ParseTickRate(rate)
	if err != nil {
		return cli.Exit(err, 1)
	}

	mem := vm.NewMemory()
	mem.LoadROM(rom)
	cpu := vm.NewCPU(mem, debug)

	if err := vm.Run(cpu, vm.RunOptions{TickRate: tick, Debug: debug}); err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}
