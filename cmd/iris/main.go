package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/iris/pkg/codec"
	"github.com/cuemby/iris/pkg/config"
	"github.com/cuemby/iris/pkg/ident"
	"github.com/cuemby/iris/pkg/log"
	"github.com/cuemby/iris/pkg/metrics"
	"github.com/cuemby/iris/pkg/schema"
	"github.com/cuemby/iris/pkg/snapshot"
	"github.com/cuemby/iris/pkg/store"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	flagConfig   string
	flagDB       string
	flagLogLevel string
	flagLogJSON  bool

	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "iris",
	Short: "Iris - object-graph substrate inspector",
	Long: `Iris stores immutable typed objects linked by named directed edges in an
append-only segment log, with a reflective schema registry whose type
definitions live in the same store.

This tool inspects and maintains an iris database; it is not the
interactive authoring shell.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Iris version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(serveMetricsCmd)
}

func initConfig() {
	var err error
	if flagConfig != "" {
		cfg, err = config.Load(flagConfig)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg = config.Default()
	}
	if flagDB != "" {
		cfg.Store.Path = flagDB
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagLogJSON {
		cfg.Log.JSON = true
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
		Output:     os.Stderr,
	})
}

// withStore opens the configured store, runs fn, and closes the store.
func withStore(fn func(*store.Store) error) error {
	s := store.New(cfg.Store.Path)
	if err := s.Open(); err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Register the built-in type definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *store.Store) error {
			registry := schema.NewRegistry(s)
			result, err := schema.Bootstrap(registry)
			if err != nil {
				return err
			}
			fmt.Printf("bootstrap: %d inserted, %d skipped\n", result.Inserted, result.Skipped)
			return nil
		})
	},
}

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List every registered type",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *store.Store) error {
			registry := schema.NewRegistry(s)
			summaries, err := registry.ListTypes()
			if err != nil {
				return err
			}
			for _, summary := range summaries {
				renderer := summary.PreferredRenderer
				if renderer == "" {
					renderer = "-"
				}
				fmt.Printf("0x%-18x %-32s %-10s %s\n",
					uint64(summary.TypeID), summary.DisplayName(), renderer,
					summary.DefinitionID.Hex())
			}
			return nil
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <hex-object-id>",
	Short: "Show the latest revision of an object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := ident.ParseHex(args[0])
		if err != nil {
			return err
		}
		return withStore(func(s *store.Store) error {
			rec, err := s.GetLatest(id)
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("object %s not found", id.Hex())
			}
			fmt.Printf("object_id:     %s\n", rec.Ref.ID.Hex())
			fmt.Printf("version:       %d\n", uint64(rec.Ref.Ver))
			fmt.Printf("type_id:       0x%x\n", uint64(rec.Type))
			fmt.Printf("definition_id: %s\n", rec.DefinitionID.Hex())
			fmt.Printf("created_ms:    %d\n", rec.CreatedMS)
			if len(rec.Payload) > 0 {
				if text, err := codec.ToJSONText(rec.Payload); err == nil {
					fmt.Printf("payload:       %s\n", text)
				} else {
					fmt.Printf("payload:       %d opaque bytes\n", len(rec.Payload))
				}
			}
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *store.Store) error {
			stats, err := s.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("objects: %d\nedges:   %d\ntypes:   %d\n",
				stats.Objects, stats.Edges, stats.Types)
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <archive>",
	Short: "Export the store into a snapshot archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *store.Store) error {
			return snapshot.Export(s, args[0])
		})
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <archive>",
	Short: "Replay a snapshot archive into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *store.Store) error {
			return snapshot.Restore(args[0], s)
		})
	},
}

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Expose Prometheus metrics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		listen := cfg.Metrics.Listen
		log.Info("serving metrics on " + listen)
		return metrics.Serve(listen)
	},
}
