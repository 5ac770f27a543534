// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

// Command fieldplan is the CLI surface over the field-visit planning
// core: composing visits for a cluster, running the seasonal planner
// over a year, running the weekly assignment solver for one Monday,
// inspecting the capacity-grid artefact, and serving the HTTP surface.
// Persistent root flags, one subcommand per operation, results printed
// as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vwp-nl/fieldplan-core/internal/artefact"
	"github.com/vwp-nl/fieldplan-core/internal/calendar"
	"github.com/vwp-nl/fieldplan-core/internal/export"
	"github.com/vwp-nl/fieldplan-core/internal/httpapi"
	"github.com/vwp-nl/fieldplan-core/internal/model"
	"github.com/vwp-nl/fieldplan-core/internal/sp"
	"github.com/vwp-nl/fieldplan-core/internal/store"
	"github.com/vwp-nl/fieldplan-core/internal/travel"
	"github.com/vwp-nl/fieldplan-core/internal/vcs"
	"github.com/vwp-nl/fieldplan-core/internal/was"
	"github.com/vwp-nl/fieldplan-core/pkg/config"
	"github.com/vwp-nl/fieldplan-core/pkg/logging"
	"github.com/vwp-nl/fieldplan-core/pkg/watch"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = ""
	Commit    = ""
)

var (
	fixturesPath string
	outputFmt    string
	debug        bool
	saveFixtures bool
	logger       logging.Logger
	settings     *config.SolverSettings
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "fieldplan",
	Short:   "CLI for the field-visit planning core",
	Long:    `A command-line interface for the field-visit planning core's three solvers: visit composition, seasonal planning, and weekly assignment.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := logging.DefaultConfig()
		if debug {
			cfg.Level = slog.LevelDebug
		}
		if outputFmt == "json" {
			cfg.Format = logging.FormatJSON
		}
		cfg.Version = Version
		logger = logging.NewLogger(cfg)

		settings = config.Load()
		if err := settings.Validate(); err != nil {
			return fmt.Errorf("invalid solver settings: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&fixturesPath, "fixtures", "", "JSON fixtures file hydrating the in-memory store (env: FIELDPLAN_FIXTURES)")
	rootCmd.PersistentFlags().StringVar(&outputFmt, "output", "json", "log format: json, or text for any other value (results are always JSON)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&saveFixtures, "save", false, "write the mutated store back to the fixtures file after a solver run")

	rootCmd.AddCommand(composeCmd, seasonCmd, weekCmd, capacityGridCmd, exportCmd, serveCmd, waitCmd, versionCmd)
}

func openStore() (*store.MemoryStore, error) {
	path := fixturesPath
	if path == "" {
		path = os.Getenv("FIELDPLAN_FIXTURES")
	}
	return store.LoadFixtures(path)
}

// saveStore writes the store's current contents back to the fixtures
// file when --save is set, so a compose/season/week sequence can feed
// each run's mutations into the next.
func saveStore(ms *store.MemoryStore) error {
	if !saveFixtures {
		return nil
	}
	path := fixturesPath
	if path == "" {
		path = os.Getenv("FIELDPLAN_FIXTURES")
	}
	if path == "" {
		return fmt.Errorf("--save requires --fixtures or FIELDPLAN_FIXTURES")
	}
	data, err := json.MarshalIndent(ms.Dump(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeResult(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("fieldplan version %s (commit %s, built %s)\n", Version, Commit, BuildTime)
		return nil
	},
}

var composeClusterID int64

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Run the Visit Composition Solver for one cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		ms, err := openStore()
		if err != nil {
			return err
		}
		clusters, err := ms.LoadClusters([]model.ID{model.ID(composeClusterID)})
		if err != nil || len(clusters) == 0 {
			return fmt.Errorf("unknown cluster %d", composeClusterID)
		}
		protocols, err := ms.LoadProtocols(nil)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), settings.SeasonPlannerTimeoutQuick)
		defer cancel()
		visits, warnings, err := vcs.Compose(ctx, clusters[0], protocols, ms.Catalogue(), settings, time.Now().Year(), logger)
		if err != nil {
			return err
		}
		if err := ms.PersistVisits(visits); err != nil {
			return err
		}
		if err := saveStore(ms); err != nil {
			return err
		}
		return writeResult(map[string]any{"visits": visits, "warnings": warnings})
	},
}

var seasonYear int

var seasonCmd = &cobra.Command{
	Use:   "season",
	Short: "Run the Seasonal Planner for one calendar year",
	RunE: func(cmd *cobra.Command, args []string) error {
		ms, err := openStore()
		if err != nil {
			return err
		}
		year := seasonYear
		if year == 0 {
			year = time.Now().Year()
		}
		visits, err := ms.LoadEligibleVisits(time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC))
		if err != nil {
			return err
		}
		users, err := ms.LoadUsers()
		if err != nil {
			return err
		}
		avail, err := ms.LoadAvailability(0)
		if err != nil {
			return err
		}
		cat := ms.Catalogue()
		ctx, cancel := context.WithTimeout(cmd.Context(), settings.SeasonPlannerTimeoutThorough)
		defer cancel()
		out, err := sp.Plan(ctx, sp.Input{
			Visits:       visits,
			Users:        users,
			Availability: avail,
			Catalogue:    cat,
			Protocol:     func(id model.ID) (model.Protocol, bool) { p, ok := cat.Protocols[id]; return p, ok },
			ClusterProject: func(clusterID model.ID) (model.ID, bool) {
				cl, err := ms.LoadClusters([]model.ID{clusterID})
				if err != nil || len(cl) == 0 {
					return 0, false
				}
				return cl[0].ProjectID, true
			},
			CurrentYear:  year,
			HorizonStart: time.Now(),
		}, logger)
		if err != nil {
			return err
		}
		if err := ms.PersistVisits(out); err != nil {
			return err
		}
		if err := saveStore(ms); err != nil {
			return err
		}
		return writeResult(map[string]any{"visits": out})
	},
}

var weekMonday string

var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "Run the Weekly Assignment Solver for one Monday (YYYY-MM-DD)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ms, err := openStore()
		if err != nil {
			return err
		}
		monday, err := time.Parse("2006-01-02", weekMonday)
		if err != nil {
			return fmt.Errorf("--monday must be YYYY-MM-DD: %w", err)
		}
		visits, err := ms.LoadEligibleVisits(monday)
		if err != nil {
			return err
		}
		users, err := ms.LoadUsers()
		if err != nil {
			return err
		}
		year, week, _ := calendar.IsoWeek(monday)
		avail, err := ms.LoadAvailability(calendar.WeekOrdinal(year, week))
		if err != nil {
			return err
		}
		cat := ms.Catalogue()

		oracle := travel.New(travel.NewHTTPRouteClient("", logger, settings.FeatureStrictAvailability), ms, func(id model.ID) (string, bool) {
			clusters, err := ms.LoadClusters([]model.ID{id})
			if err != nil || len(clusters) == 0 {
				return "", false
			}
			return clusters[0].Address, true
		}, logger)

		// The CLI has no long-lived run registry, so the frequency
		// lockout history is reconstructed from the already-locked
		// visits in the loaded snapshot.
		history := artefact.NewRunHistory()
		for _, v := range visits {
			if v.PlannedWeek != nil || v.State == model.StateExecuted || v.State == model.StateApproved {
				history.Record(v, time.Now())
			}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 45*time.Second)
		defer cancel()

		// One batched oracle call before the solver runs; the solver
		// closures below only read the prefetched map.
		clusterIDs := map[model.ID]bool{}
		for _, v := range visits {
			clusterIDs[v.ClusterID] = true
		}
		var pairs []travel.Pair
		for _, u := range users {
			for cid := range clusterIDs {
				pairs = append(pairs, travel.Pair{OriginClusterID: u.ID, DestinationClusterID: cid})
			}
		}
		for a := range clusterIDs {
			for b := range clusterIDs {
				if a != b {
					pairs = append(pairs, travel.Pair{OriginClusterID: a, DestinationClusterID: b})
				}
			}
		}
		travelResult := oracle.TravelMinutesBatch(ctx, pairs)

		out, err := was.Plan(ctx, was.Input{
			WeekMonday:  monday,
			CurrentWeek: calendar.WeekOrdinal(year, week),
			Visits:      visits,
			Users:       users,
			Availability: avail,
			Catalogue:   cat,
			Protocol:    func(id model.ID) (model.Protocol, bool) { p, ok := cat.Protocols[id]; return p, ok },
			ClusterProject: func(clusterID model.ID) (model.ID, bool) {
				cl, err := ms.LoadClusters([]model.ID{clusterID})
				if err != nil || len(cl) == 0 {
					return 0, false
				}
				return cl[0].ProjectID, true
			},
			IsQuoteProject: func(projectID model.ID) bool {
				projects, err := ms.LoadProjects([]model.ID{projectID})
				return err == nil && len(projects) == 1 && projects[0].IsQuote
			},
			ChainState: func(pid model.ID) (int, bool) { return history.ChainState(visits, pid) },
			LastLocked: func(pid, cid model.ID) (time.Time, bool) { return history.LastLockedStart(pid, cid, monday) },
			UserTravel: func(userID, clusterID model.ID) (int, bool) {
				m, ok := travelResult[travel.Pair{OriginClusterID: userID, DestinationClusterID: clusterID}]
				return m, ok
			},
			ClusterTravel: func(a, b model.ID) (int, bool) {
				m, ok := travelResult[travel.Pair{OriginClusterID: a, DestinationClusterID: b}]
				return m, ok
			},
			Settings: settings,
		}, logger)
		if err != nil {
			return err
		}
		if err := ms.PersistVisits(out.Visits); err != nil {
			return err
		}
		if err := saveStore(ms); err != nil {
			return err
		}
		return writeResult(map[string]any{
			"visits":            out.Visits,
			"skipped_visit_ids": out.SkippedVisitIDs,
			"qualification_gap": out.QualificationGap,
		})
	},
}

var (
	exportMonday string
	exportUserID int64
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write one researcher's week as an iCalendar document",
	RunE: func(cmd *cobra.Command, args []string) error {
		ms, err := openStore()
		if err != nil {
			return err
		}
		monday, err := time.Parse("2006-01-02", exportMonday)
		if err != nil {
			return fmt.Errorf("--monday must be YYYY-MM-DD: %w", err)
		}
		visits, err := ms.LoadEligibleVisits(monday)
		if err != nil {
			return err
		}
		clusterName := func(id model.ID) (string, bool) {
			clusters, err := ms.LoadClusters([]model.ID{id})
			if err != nil || len(clusters) == 0 {
				return "", false
			}
			return clusters[0].Address, true
		}
		doc, err := export.WeekCalendar(visits, ms.Catalogue(), clusterName, model.ID(exportUserID), time.Now())
		if err != nil {
			return err
		}
		if exportOut == "" {
			fmt.Print(doc)
			return nil
		}
		return os.WriteFile(exportOut, []byte(doc), 0o644)
	},
}

var (
	capacityDryRun bool
	capacityAddr   string
)

var capacityGridCmd = &cobra.Command{
	Use:   "capacity-grid",
	Short: "Print the read-only capacity-grid artefact",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := "http://" + capacityAddr + "/capacity-grid"
		if capacityDryRun {
			addr += "?dry_run=true"
		}
		resp, err := http.Get(addr)
		if err != nil {
			return fmt.Errorf("capacity-grid requires `fieldplan serve` running at %s: %w", capacityAddr, err)
		}
		defer resp.Body.Close()
		var body any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return err
		}
		return writeResult(body)
	},
}

var (
	waitAddr    string
	waitTimeout time.Duration
)

// waitCmd polls a `fieldplan serve` instance's /healthz until it
// answers 200 or the timeout elapses, for deploy scripts that need to
// block until the server is ready to accept requests.
var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Block until a `fieldplan serve` instance is healthy",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), waitTimeout)
		defer cancel()
		url := "http://" + waitAddr + "/healthz"
		err := watch.Until(ctx, watch.DefaultPollInterval, func(ctx context.Context) (bool, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return false, err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return false, nil // not up yet, keep polling
			}
			defer resp.Body.Close()
			return resp.StatusCode == http.StatusOK, nil
		})
		if err != nil {
			return fmt.Errorf("%s did not become healthy within %s: %w", waitAddr, waitTimeout, err)
		}
		fmt.Printf("%s is healthy\n", waitAddr)
		return nil
	},
}

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP surface over the in-memory store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ms, err := openStore()
		if err != nil {
			return err
		}
		oracle := travel.New(travel.NewHTTPRouteClient("", logger, settings.FeatureStrictAvailability), ms, func(id model.ID) (string, bool) {
			clusters, err := ms.LoadClusters([]model.ID{id})
			if err != nil || len(clusters) == 0 {
				return "", false
			}
			return clusters[0].Address, true
		}, logger)
		srv := httpapi.New(ms, oracle, settings, store.SystemClock{}, logger)
		logger.Info("fieldplan serve listening", "addr", serveAddr)
		return http.ListenAndServe(serveAddr, srv.Router())
	},
}

func init() {
	composeCmd.Flags().Int64Var(&composeClusterID, "cluster", 0, "cluster id to compose visits for")
	_ = composeCmd.MarkFlagRequired("cluster")

	seasonCmd.Flags().IntVar(&seasonYear, "year", 0, "calendar year to plan (default: current year)")

	weekCmd.Flags().StringVar(&weekMonday, "monday", "", "ISO Monday to assign, YYYY-MM-DD")
	_ = weekCmd.MarkFlagRequired("monday")

	exportCmd.Flags().StringVar(&exportMonday, "monday", "", "ISO Monday of the week to export, YYYY-MM-DD")
	exportCmd.Flags().Int64Var(&exportUserID, "user", 0, "researcher id to export the week for")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "write the .ics document here instead of stdout")
	_ = exportCmd.MarkFlagRequired("monday")
	_ = exportCmd.MarkFlagRequired("user")

	capacityGridCmd.Flags().BoolVar(&capacityDryRun, "dry-run", false, "project capacity without relying on stored assignments")
	capacityGridCmd.Flags().StringVar(&capacityAddr, "addr", "localhost:8080", "address of a running `fieldplan serve`")

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "address to listen on")

	waitCmd.Flags().StringVar(&waitAddr, "addr", "localhost:8080", "address of a `fieldplan serve` instance")
	waitCmd.Flags().DurationVar(&waitTimeout, "timeout", 30*time.Second, "how long to wait before giving up")
}
