/*
Package cli provides a small framework for a CLI with sub-commands, built on [pflag].

There are a few policies for how this operates.

  - User-visible output goes to STDERR by default. This is supported with a configurable [Printer].
  - Flags are NOT interspersed. Flags come before positional arguments, which makes parsing consistent and predictable.
  - Flags apply to the command at hand. There are no global flags.
  - Each [Command] receives a [context.Context] so long-running work can be interrupted.

# Invocation

	CLI_NAME COMMAND [FLAGS...] [ARGS...]

Just calling CLI_NAME will print usage information for the tool.
The '-h' and '--help' flags are set up for every [Command].
A [Command] returning a [UsageError] will have the error and its usage printed.

# Output

[Printer.Record] writes human-readable lines when output is a terminal, and JSON lines otherwise.
This lets the same command be read by a person or piped to another tool.

[pflag]: https://github.com/spf13/pflag
*/
package cli
