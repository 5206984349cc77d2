package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// Argument errors of the root command.
var (
	ErrNoArgs      = errors.New("no arguments were given")
	ErrOnlyPattern = errors.New("a pattern was given but not a substitution")
)

// NewRootCommand creates and returns the root cobra command for far
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "far [flag...] pattern replacement [path...]",
		Short: "Recursively find and replace in files",
		Long: `far rewrites every regular file under the given paths (default ".")
by replacing each match of pattern with replacement.

Files are rewritten atomically: the new content is written to a scratch
file beside the original and swapped into place, so an interrupted run
never leaves a file half-written. Files larger than the size ceiling and
files that are not printable text are skipped. Symbolic links inside the
tree are not followed.

Patterns use .NET/Perl regular expression syntax with lookaround and
backreferences. The replacement may refer to groups as $1 or ${name};
use $$ for a literal dollar sign.

Configuration is loaded from .far.yaml in the working directory if present.
CLI flags override configuration file settings.

Examples:
  # Replace in the current directory
  far 'colour' 'color'

  # Line by line, in two trees
  far --lines '^\s+$' '' src/ docs/

  # Swap two words using groups
  far '(\w+)@(\w+)' '$2@$1' contacts/

  # Literal text, ignoring case
  far -F -i 'a.b' 'a_b'`,
		Version:       Version,
		Args:          validateArgs,
		RunE:          runCommand,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addRunFlags(cmd)
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}

// validateArgs requires a pattern and a replacement.
func validateArgs(cmd *cobra.Command, args []string) error {
	switch len(args) {
	case 0:
		return ErrNoArgs
	case 1:
		return ErrOnlyPattern
	}
	return nil
}
