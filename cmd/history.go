package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jjenkins/countries/internal/model"
	"github.com/jjenkins/countries/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded fetch runs",
	Long:  `History lists the most recent fetch runs stored in PostgreSQL. Requires DATABASE_URL.`,
	Run: func(cmd *cobra.Command, args []string) {
		dsn := viper.GetString("database_url")
		if dsn == "" {
			log.Fatal("DATABASE_URL environment variable is required")
		}

		db, err := store.NewDB(dsn)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		ctx := context.Background()
		if err := store.Migrate(ctx, db); err != nil {
			log.Fatalf("Failed to prepare database: %v", err)
		}

		runs, err := store.NewRunStore(db).Recent(ctx, historyLimit)
		if err != nil {
			log.Fatalf("Failed to load fetch runs: %v", err)
		}

		if err := printRuns(os.Stdout, runs); err != nil {
			log.Fatalf("Failed to print fetch runs: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
}

func printRuns(w io.Writer, runs []model.FetchRun) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tOUTCOME\tCOUNTRIES\tDURATION\tERROR")
	for _, r := range runs {
		errText := "-"
		if r.ErrorKind.Valid {
			errText = r.ErrorKind.String
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Outcome, r.CountryCount, r.Duration().Round(time.Millisecond), errText)
	}
	return tw.Flush()
}
