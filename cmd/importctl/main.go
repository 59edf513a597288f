// Command importctl runs statement detection, column mapping and position
// normalization locally, without the HTTP server or the position backend.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	a := &app{out: os.Stdout}
	flag.StringVar(&a.templatesPath, "templates", os.Getenv("TEMPLATES_PATH"), "YAML or JSON file with institution template overrides")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	a.register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
