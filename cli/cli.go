package cli

import (
	"context"
	"errors"
	"fmt"
	flag "github.com/spf13/pflag"
	"regexp"
	"slices"
	"strings"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	HelpPatterns      = []string{"--help", "-h", "help"} // HelpPatterns are arguments that trigger usage output for a [CommandSet].

	keyCleansePattern = regexp.MustCompile(`\s`)
)

// CommandFunc is a function that may be executed within a [Command].
// Flags are already parsed when it's called, and positional arguments are available with [flag.FlagSet.Args].
type CommandFunc = func(ctx context.Context, flags *flag.FlagSet, printer *Printer) error

// Command is an executable function in a CLI, linked to a [CommandSet].
type Command struct {
	flags      *flag.FlagSet
	exec       CommandFunc
	key        string
	parent     string
	shortUsage string
	usage      string
	printer    *Printer
}

func cleanseKey(key string) string {
	return keyCleansePattern.ReplaceAllString(strings.ToLower(key), "")
}

func newCommand(key, parent, shortUsage string, printer *Printer) *Command {
	key = cleanseKey(key)
	fs := flag.NewFlagSet(key, flag.ContinueOnError)
	fs.BoolP("help", "h", false, "Prints this usage information")
	fs.SetInterspersed(false)
	fs.SetOutput(printer)
	cmd := &Command{flags: fs, key: key, parent: parent, shortUsage: shortUsage, printer: printer}
	fs.Usage = cmd.PrintUsage
	return cmd
}

// Does specifies the [CommandFunc] that should be executed by this [Command].
func (c *Command) Does(commandFunc CommandFunc) *Command {
	if commandFunc == nil {
		return c
	}
	c.exec = commandFunc
	return c
}

// CommandPath returns the reference chain for this [Command].
func (c *Command) CommandPath() string {
	if len(c.parent) == 0 {
		return c.key
	}
	return c.parent + " " + c.key
}

// Flags returns the [flag.FlagSet] for this [Command].
func (c *Command) Flags() *flag.FlagSet {
	return c.flags
}

func (c *Command) Printer() *Printer {
	return c.printer
}

// Usage sets the invocation pattern shown when usage is printed.
// The command path is prepended, so "[FLAGS] URL" is shown as "parent command [FLAGS] URL".
func (c *Command) Usage(format string, args ...any) *Command {
	c.usage = fmt.Sprintf(format, args...)
	return c
}

// PrintUsage prints the short description, invocation pattern, and flags of the [Command].
func (c *Command) PrintUsage() {
	var buf strings.Builder
	buf.WriteString(c.shortUsage + "\n\n")
	buf.WriteString("USAGE:\n" + c.CommandPath())
	if len(c.usage) > 0 {
		buf.WriteString(" " + c.usage)
	}
	buf.WriteString("\n\nFLAGS\n")
	buf.WriteString(c.flags.FlagUsages())
	c.printer.Print(buf.String())
}

// Exec parses flags from args and executes the [Command].
// If the [CommandFunc] returns a [UsageError], then the error and usage information are printed before the error is returned.
func (c *Command) Exec(ctx context.Context, args []string) error {
	if err := c.flags.Parse(args); err != nil {
		return NewUsageError("%w", err)
	}
	if help, _ := c.flags.GetBool("help"); help || c.exec == nil {
		c.PrintUsage()
		return nil
	}
	err := c.exec(ctx, c.flags, c.printer)
	if errors.Is(err, &UsageError{}) {
		c.printer.Println(err)
		c.printer.Println()
		c.PrintUsage()
	}
	return err
}

// CommandSet is the root of a CLI's commands.
type CommandSet struct {
	name     string
	commands map[string]*Command
	printer  *Printer
}

// NewCommandSet creates a [CommandSet] for a CLI invoked as name.
// Output is written to printer, or a new [Printer] if it's nil.
func NewCommandSet(name string, printer *Printer) *CommandSet {
	if printer == nil {
		printer = NewPrinter()
	}
	return &CommandSet{name: name, printer: printer}
}

// AddCommand adds a [Command] to this [CommandSet].
// The key will be cleansed to remove spaces, and normalize to lower-case.
func (s *CommandSet) AddCommand(key, shortUsage string) *Command {
	cmd := newCommand(key, s.name, shortUsage, s.printer)
	if s.commands == nil {
		s.commands = map[string]*Command{}
	}
	s.commands[cmd.key] = cmd
	return cmd
}

func (s *CommandSet) Printer() *Printer {
	return s.printer
}

// Exec executes the [Command] named by the first argument.
// Usage information is printed if no arguments are given or the first is one of [HelpPatterns].
func (s *CommandSet) Exec(ctx context.Context, args []string) error {
	if len(args) == 0 || slices.Contains(HelpPatterns, args[0]) {
		s.PrintUsage()
		return nil
	}
	cmd, ok := s.commands[cleanseKey(args[0])]
	if !ok {
		s.PrintUsage()
		return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}
	return cmd.Exec(ctx, args[1:])
}

func (s *CommandSet) PrintUsage() {
	s.printer.Printf("USAGE:\n%s COMMAND [FLAGS...] [ARGS...]\n\nCOMMANDS\n%s", s.name, s.CommandUsages())
}

// CommandUsages returns the short usage of each [Command], sorted by key.
func (s *CommandSet) CommandUsages() string {
	var (
		buf    strings.Builder
		keys   = make([]string, 0, len(s.commands))
		maxLen int
	)
	for key := range s.commands {
		keys = append(keys, key)
		maxLen = max(maxLen, len(key))
	}
	slices.Sort(keys)
	fmtStr := fmt.Sprintf("  %%-%ds\t%%s\n", maxLen)
	for _, key := range keys {
		buf.WriteString(fmt.Sprintf(fmtStr, key, s.commands[key].shortUsage))
	}
	return buf.String()
}
