package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pgbulk",
	Short: "Bulk-load a directory of compressed files into PostgreSQL",
	Long: `pgbulk streams every file of a directory, in name order, through a
decompressor into COPY ... FROM STDIN. Each file is loaded in its own
transaction. The first file that fails is rolled back and stops the run;
files committed before it stay committed.

Exit Codes:
  0  - Success (every file committed)
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration or parameters
  11 - Database connection failed
  12 - Source directory missing or unreadable
  13 - A file failed to load and was rolled back`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo()
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	// -h is the PostgreSQL host shorthand, so help is long-form only.
	rootCmd.PersistentFlags().Bool("help", false, "Help for pgbulk")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}
