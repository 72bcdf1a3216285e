package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// OptionalSourceDir accepts at most one <source_dir> argument.
// When it is omitted the directory comes from $FILES_PATH or pgbulk.yaml.
func OptionalSourceDir(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf(`accepts at most 1 arg(s), received %d

Usage: %s

Example:
  %s ./export -d warehouse -t staging.events`, len(args), cmd.UseLine(), cmd.CommandPath())
	}
	return nil
}
