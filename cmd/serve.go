package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/jjenkins/countries/internal/handlers"
	"github.com/jjenkins/countries/internal/service"
	"github.com/jjenkins/countries/internal/state"
	"github.com/jjenkins/countries/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var refreshInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the countries API server",
	Long: `Start an HTTP server that keeps the latest countries snapshot in memory
and serves it as JSON.

Routes:
  GET  /countries?q=      current snapshot, filtered by name or capital
  POST /countries/refresh start a background refresh
  GET  /status            snapshot version, size and last error
  GET  /validate?url=     check a URL against the endpoint rules
  GET  /history           recent fetch runs (needs DATABASE_URL)`,
	Run: func(cmd *cobra.Command, args []string) {
		port := viper.GetString("port")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		client := service.NewCountriesClient(service.WithEndpoint(viper.GetString("url")))
		holder := state.NewHolder()
		refresher := state.NewRefresher(client, holder)

		var runs handlers.RunLister
		if dsn := viper.GetString("database_url"); dsn != "" {
			db, err := store.NewDB(dsn)
			if err != nil {
				log.Fatalf("Failed to connect to database: %v", err)
			}
			defer db.Close()

			if err := store.Migrate(ctx, db); err != nil {
				log.Fatalf("Failed to prepare database: %v", err)
			}

			runStore := store.NewRunStore(db)
			refresher.SetRecorder(service.NewRecorder(runStore))
			runs = runStore
		}

		app := fiber.New(fiber.Config{
			AppName: "Countries API",
		})

		app.Use(logger.New())

		app.Get("/countries", handlers.CountriesHandler(holder))
		app.Post("/countries/refresh", handlers.RefreshHandler(refresher))
		app.Get("/status", handlers.StatusHandler(holder))
		app.Get("/validate", handlers.ValidateHandler())
		app.Get("/history", handlers.HistoryHandler(runs))

		go refresher.Run(ctx, refreshInterval)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			log.Println("Received interrupt signal, shutting down...")
			cancel()
			if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
				log.Printf("Server shutdown failed: %v", err)
			}
		}()

		log.Printf("Starting server on :%s", port)
		if err := app.Listen(":" + port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to run the server on")
	serveCmd.Flags().DurationVar(&refreshInterval, "refresh-interval", 0, "Refresh the snapshot periodically (0 refreshes only at startup)")

	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	viper.BindEnv("port", "PORT")
}
