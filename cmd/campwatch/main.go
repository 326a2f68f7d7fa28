// Command campwatch scans recreation-area campsite availability and
// notifies on new weekend openings.
//
// Usage:
//
//	campwatch scan --rotation --batch 4
//	campwatch scan --favorites
//	campwatch scan --areas recgov-111,recgov-222 --start-date 2025-06-01 --end-date 2025-06-30
//	campwatch scan --rotation --dry-run -v
//	campwatch serve
//	campwatch areas list
//	campwatch favorites add recgov-111
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ethanrabb/campwatch/internal/api"
	"github.com/ethanrabb/campwatch/internal/config"
	"github.com/ethanrabb/campwatch/internal/notify"
	"github.com/ethanrabb/campwatch/internal/provider"
	"github.com/ethanrabb/campwatch/internal/provider/recgov"
	"github.com/ethanrabb/campwatch/internal/provider/reserveca"
	"github.com/ethanrabb/campwatch/internal/scan"
	"github.com/ethanrabb/campwatch/internal/store"
)

const dateLayout = "2006-01-02"

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	var verbose bool

	root := &cobra.Command{
		Use:   "campwatch",
		Short: "Campsite availability scanner and notifier",
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Extra logging for debugging")

	root.AddCommand(scanCmd(&verbose))
	root.AddCommand(serveCmd(&verbose))
	root.AddCommand(areasCmd(&verbose))
	root.AddCommand(favoritesCmd(&verbose))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the run logger from the verbosity flag. Verbosity is an
// explicit value threaded through every component, never a process-wide
// variable.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// --------------------------------------------------------------------------
// scan command
// --------------------------------------------------------------------------

func scanCmd(verbose *bool) *cobra.Command {
	var (
		areaIDs   string
		rotation  bool
		favorites bool
		startDate string
		endDate   string
		batchSize int
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one availability scan and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			cfg := config.Load()
			logger := newLogger(*verbose)

			params := scan.Params{BatchSize: batchSize, DryRun: dryRun}
			switch {
			case areaIDs != "":
				params.Mode = scan.ModeExplicit
				for _, id := range strings.Split(areaIDs, ",") {
					if trimmed := strings.TrimSpace(id); trimmed != "" {
						params.ExplicitIDs = append(params.ExplicitIDs, trimmed)
					}
				}
			case rotation:
				params.Mode = scan.ModeRotation
			case favorites:
				params.Mode = scan.ModeFavorites
			default:
				return fmt.Errorf("no scan mode specified: use --areas, --rotation, or --favorites")
			}
			if params.BatchSize == 0 {
				params.BatchSize = cfg.DefaultBatchSize
			}

			window, err := dateOverride(startDate, endDate)
			if err != nil {
				return err
			}
			params.DateRange = window

			coord := buildCoordinator(cfg, logger)
			result, err := coord.Run(ctx, params)
			if err != nil {
				return err
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d of %d scanned areas failed", result.Failed, result.Scanned)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&areaIDs, "areas", "", "Comma-separated list of area IDs to scan")
	cmd.Flags().BoolVar(&rotation, "rotation", false, "Run rotation scan (ignores favorites)")
	cmd.Flags().BoolVar(&favorites, "favorites", false, "Scan only favorites")
	cmd.Flags().StringVar(&startDate, "start-date", "", "Override start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "Override end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&batchSize, "batch", 0, "Rotation batch size (default from env)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run without saving state or sending notifications")
	cmd.MarkFlagsMutuallyExclusive("areas", "rotation", "favorites")
	return cmd
}

// buildCoordinator wires the provider registry, scanner, reconciler, and
// store for one run.
func buildCoordinator(cfg *config.Config, logger *slog.Logger) *scan.Coordinator {
	providers := provider.Registry{}
	providers.Register(recgov.New(cfg.RIDBAPIKey, cfg.RequestsPerMinute, cfg.QueryTimeout, logger))
	providers.Register(reserveca.New(cfg.RequestsPerMinute, cfg.QueryTimeout, logger))

	st := store.New(cfg.DataDir)
	scanner := scan.NewScanner(providers, cfg.QueryTimeout, logger)
	sender := notify.NewWebhookSender(cfg.WebhookURL, logger)
	if sender == nil {
		logger.Info("no webhook configured, notifications will be skipped")
	}
	reconciler := notify.NewReconciler(sender, cfg.PublicURL, logger)
	return scan.NewCoordinator(st, scanner, reconciler, logger)
}

// dateOverride validates the explicit window flags: both or neither.
func dateOverride(startDate, endDate string) (*scan.DateRange, error) {
	if startDate == "" && endDate == "" {
		return nil, nil
	}
	if startDate == "" || endDate == "" {
		return nil, fmt.Errorf("--start-date and --end-date must be given together")
	}
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("parse --start-date: %w", err)
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return nil, fmt.Errorf("parse --end-date: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("--end-date is before --start-date")
	}
	return &scan.DateRange{Start: start, End: end}, nil
}

// --------------------------------------------------------------------------
// serve command
// --------------------------------------------------------------------------

func serveCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only availability API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			cfg := config.Load()
			logger := newLogger(*verbose)
			st := store.New(cfg.DataDir)

			srv := &http.Server{
				Addr:              fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort),
				Handler:           api.NewRouter(st, cfg),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("API server listening", "addr", srv.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				logger.Info("shutting down API server")
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("shutdown: %w", err)
				}
			}
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// areas command
// --------------------------------------------------------------------------

func areasCmd(verbose *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "areas",
		Short: "Inspect the area catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List catalog areas with scan state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			st := store.New(cfg.DataDir)

			areas, err := st.LoadAreas()
			if err != nil {
				return err
			}
			state, err := st.LoadScanState()
			if err != nil {
				return err
			}
			fav, err := st.LoadFavorites()
			if err != nil {
				return err
			}

			for _, a := range areas {
				flags := []string{}
				if fav.IsFavorite(a.ID) {
					flags = append(flags, "favorite")
				}
				if !fav.IsEnabled(a.ID) {
					flags = append(flags, "disabled")
				}
				lastScanned := "never"
				if s, ok := state.Areas[a.ID]; ok && s.LastScannedAt != nil {
					lastScanned = s.LastScannedAt.Format(dateLayout)
				}
				fmt.Printf("%-24s %-14s last_scanned=%s %s  %s\n",
					a.ID, a.Provider, lastScanned, strings.Join(flags, ","), a.Name)
			}
			return nil
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// favorites command
// --------------------------------------------------------------------------

func favoritesCmd(verbose *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "Manage the favorites set",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List favorited area IDs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			fav, err := store.New(cfg.DataDir).LoadFavorites()
			if err != nil {
				return err
			}
			for _, id := range fav.Favorites {
				fmt.Println(id)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <area-id>",
		Short: "Add an area to favorites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			st := store.New(cfg.DataDir)
			fav, err := st.LoadFavorites()
			if err != nil {
				return err
			}
			if !fav.AddFavorite(args[0]) {
				fmt.Printf("%s is already a favorite\n", args[0])
				return nil
			}
			return st.SaveFavorites(fav)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <area-id>",
		Short: "Remove an area from favorites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			st := store.New(cfg.DataDir)
			fav, err := st.LoadFavorites()
			if err != nil {
				return err
			}
			if !fav.RemoveFavorite(args[0]) {
				fmt.Printf("%s is not a favorite\n", args[0])
				return nil
			}
			return st.SaveFavorites(fav)
		},
	})

	return cmd
}
