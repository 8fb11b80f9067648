package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/platinummonkey/alertdesk/pkg/config"
	"github.com/platinummonkey/alertdesk/pkg/observability"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// env is shared by every subcommand of one invocation
type env struct {
	cfg    *config.Config
	out    io.Writer
	logger *observability.Logger
}

// NewRootCommand creates the root command of alertdesk-admin
func NewRootCommand(cfg *config.Config, out io.Writer) *Command {
	e := &env{
		cfg:    cfg,
		out:    out,
		logger: observability.NewLoggerWithFormat(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stderr),
	}

	root := &Command{
		Name:        "alertdesk-admin",
		Description: "alertdesk provisioning and maintenance",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("alertdesk-admin", flag.ContinueOnError),
	}

	root.Flags.SetOutput(out)

	// Add subcommands
	root.Subcommands["migrate"] = newMigrateCommand(e)
	root.Subcommands["seed"] = newSeedCommand(e)
	root.Subcommands["archive-audit"] = newArchiveCommand(e)

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	// Check for help flag
	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		return c.usage()
	}

	// Check for subcommand
	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(ctx, args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	out := c.Flags.Output()
	fmt.Fprintf(out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}
