// Command cr8asm assembles a source file into a flat ROM image, per
// spec §6.2.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	cli "github.com/urfave/cli/v2"

	"cr8vm/asm"
)

func main() {
	app := cli.NewApp()
	app.Name = "cr8asm"
	app.Usage = "assemble a cr8 source file into a binary ROM image"
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true, Usage: "source file"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, Usage: "output binary path"},
	}
	app.Action = func(c *cli.Context) error {
		return assembleFile(c.String("input"), c.String("output"))
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func assembleFile(input, output string) error {
	src, err := os.ReadFile(input)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot read %s: %v", input, err), 1)
	}

	resolver := asm.DefaultResolver{BaseDir: filepath.Dir(input)}
	image, err := asm.Assemble(input, string(src), resolver)
	if err != nil {
		return cli.Exit(err, 1)
	}

	if err := os.WriteFile(output, image, 0644); err != nil {
		return cli.Exit(fmt.Sprintf("cannot write %s: %v", output, err), 1)
	}
	return nil
}
