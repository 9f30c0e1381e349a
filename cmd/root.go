package cmd

import (
	"os"

	"github.com/jjenkins/countries/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "countries",
	Short: "Fetch, validate and search the countries feed",
	Long: `countries downloads a JSON list of countries from a configurable HTTPS
endpoint, validates the endpoint URL, decodes the records and lets you
search them by name or capital.

Configuration can come from flags or the environment:
  COUNTRIES_URL   endpoint to fetch (--url)
  DATABASE_URL    PostgreSQL DSN for fetch history (--database-url)
  PORT            port for the serve command (--port)`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("url", service.DefaultEndpoint, "Countries endpoint URL")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL DSN used to record fetch history")

	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
	viper.BindPFlag("database_url", rootCmd.PersistentFlags().Lookup("database-url"))

	viper.BindEnv("url", "COUNTRIES_URL")
	viper.BindEnv("database_url", "DATABASE_URL")
}
