package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/jjenkins/countries/internal/service"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate URL...",
	Short: "Check URLs against the endpoint rules",
	Long: `Validate checks each URL the same way fetch does before making a request:
https scheme and host, no whitespace or backslash in the path, no "..",
and only well-formed percent escapes.

Exits with status 1 if any URL is invalid.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if invalid := validateURLs(os.Stdout, args); invalid > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// validateURLs prints one line per URL and returns how many were invalid
func validateURLs(w io.Writer, urls []string) int {
	invalid := 0
	for _, raw := range urls {
		if _, err := service.ValidateURL(raw); err != nil {
			fmt.Fprintf(w, "invalid  %q\n", raw)
			invalid++
			continue
		}
		fmt.Fprintf(w, "valid    %q\n", raw)
	}
	return invalid
}
