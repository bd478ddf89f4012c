// Command cr8uasm compiles a microcode DSL source file into the three
// flat 256-byte control-store ROM images, per spec §6.3/§6.6.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	cli "github.com/urfave/cli/v2"

	"cr8vm/micro"
)

func main() {
	app := cli.NewApp()
	app.Name = "cr8uasm"
	app.Usage = "compile a microcode DSL file into three ROM images"
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true, Usage: "microcode source file"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, Usage: "output directory"},
	}
	app.Action = func(c *cli.Context) error {
		return compileFile(c.String("input"), c.String("output"))
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func compileFile(input, outDir string) error {
	src, err := os.ReadFile(input)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot read %s: %v", input, err), 1)
	}

	rom, err := micro.Compile(input, string(src))
	if err != nil {
		return cli.Exit(err, 1)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return cli.Exit(fmt.Sprintf("cannot create %s: %v", outDir, err), 1)
	}

	for i, chip := range rom {
		path := filepath.Join(outDir, fmt.Sprintf("microcode-%d", i))
		if err := os.WriteFile(path, chip[:], 0644); err != nil {
			return cli.Exit(fmt.Sprintf("cannot write %s: %v", path, err), 1)
		}
	}
	return nil
}
