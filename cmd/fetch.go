package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jjenkins/countries/internal/model"
	"github.com/jjenkins/countries/internal/service"
	"github.com/jjenkins/countries/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var fetchQuery string
var fetchFromFile string
var fetchJSON bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the countries feed once and print the records",
	Long: `Fetch validates the endpoint URL, downloads the countries feed, decodes it
and prints the records, optionally filtered by name or capital.

When DATABASE_URL is set the fetch is recorded in the fetch history.

Examples:
  # Fetch the default endpoint
  ./countries fetch

  # Only countries whose name or capital contains "san"
  ./countries fetch --query san

  # Decode a local copy of the feed instead of making a request
  ./countries fetch --from-file internal/service/testdata/countries.json`,
	Run: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVarP(&fetchQuery, "query", "q", "", "Only print countries whose name or capital contains this text")
	fetchCmd.Flags().StringVar(&fetchFromFile, "from-file", "", "Read the feed body from a file instead of the network")
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "Print records as JSON")
}

func runFetch(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	opts := []service.Option{
		service.WithEndpoint(viper.GetString("url")),
		service.WithLogger(log.New(os.Stderr, "", log.LstdFlags), log.New(os.Stderr, "ERROR: ", log.LstdFlags)),
	}
	if fetchFromFile != "" {
		body, err := os.ReadFile(fetchFromFile)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", fetchFromFile, err)
		}
		opts = append(opts, service.WithTransport(service.StaticTransport{Body: body}))
	}
	client := service.NewCountriesClient(opts...)

	started := time.Now()
	countries, err := client.Fetch(ctx)

	if dsn := viper.GetString("database_url"); dsn != "" {
		recordRun(ctx, dsn, client.Endpoint(), started, service.FetchOutcome{Countries: countries, Err: err})
	}

	if err != nil {
		if ctx.Err() != nil {
			log.Println("Fetch cancelled")
		}
		os.Exit(1)
	}

	filtered := service.Filter(countries, fetchQuery)
	if fetchJSON {
		err = printCountriesJSON(os.Stdout, filtered)
	} else {
		err = printCountries(os.Stdout, filtered)
	}
	if err != nil {
		log.Fatalf("Failed to print countries: %v", err)
	}

	log.Printf("%d of %d countries shown", len(filtered), len(countries))
}

// recordRun stores one fetch in the history table. Errors are logged only.
func recordRun(ctx context.Context, dsn, url string, started time.Time, outcome service.FetchOutcome) {
	db, err := store.NewDB(dsn)
	if err != nil {
		log.Printf("Warning: fetch history disabled: %v", err)
		return
	}
	defer db.Close()

	if err := store.Migrate(ctx, db); err != nil {
		log.Printf("Warning: fetch history disabled: %v", err)
		return
	}

	service.NewRecorder(store.NewRunStore(db)).Record(context.WithoutCancel(ctx), url, started, outcome)
}

func printCountries(w io.Writer, countries []model.Country) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tCAPITAL\tREGION\tCURRENCY\tLANGUAGE")
	for _, c := range countries {
		currency := c.Currency.Code
		if c.Currency.Symbol != nil {
			currency = fmt.Sprintf("%s (%s)", c.Currency.Code, *c.Currency.Symbol)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Code, c.Name, c.Capital, c.Region, currency, c.Language.Name)
	}
	return tw.Flush()
}

func printCountriesJSON(w io.Writer, countries []model.Country) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(countries)
}
