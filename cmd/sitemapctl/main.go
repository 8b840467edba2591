package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sitemap-backend/application/services"
	domainconfig "sitemap-backend/domain/config"
	"sitemap-backend/domain/core/valueobjects"
	"sitemap-backend/domain/services/layout"
	"sitemap-backend/infrastructure/locking"
	"sitemap-backend/infrastructure/messaging"
	"sitemap-backend/infrastructure/persistence/memory"
	"sitemap-backend/infrastructure/persistence/sqlite"
	"sitemap-backend/pkg/observability"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	dbPath    string
	sitemapID int64
	verbose   bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "sitemapctl",
		Short:         "Inspect and lay out sitemaps stored in SQLite",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "sitemap.db", "SQLite database path")
	root.PersistentFlags().Int64Var(&flags.sitemapID, "sitemap", 1, "sitemap id")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(newSeedCmd(flags))
	root.AddCommand(newLayoutCmd(flags))
	root.AddCommand(newDescendantsCmd(flags))
	return root
}

// app is an editor wired to the SQLite store with in-process sessions
type app struct {
	store  *sqlite.NodeStore
	editor *services.EditorService
	logger *zap.Logger
}

func openApp(flags *globalFlags) (*app, error) {
	logger := zap.NewNop()
	if flags.verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, err
		}
	}

	store, err := sqlite.NewNodeStore(flags.dbPath, logger)
	if err != nil {
		return nil, err
	}
	cfg := domainconfig.DefaultDomainConfig()
	editor := services.NewEditorService(
		store,
		memory.NewSessionStore(cfg.SessionTTL),
		messaging.NewLogPublisher(logger),
		locking.NewLocalGuard(),
		layout.NewEngine(layout.OptionsFromConfig(cfg)),
		cfg,
		observability.NewCollector("sitemapctl"),
		logger,
	)
	return &app{store: store, editor: editor, logger: logger}, nil
}

func (a *app) close() {
	_ = a.store.Close()
	_ = a.logger.Sync()
}

func newSeedCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load a page tree from YAML into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := readSeedFile(args[0])
			if err != nil {
				return err
			}
			nodes, err := file.nodes()
			if err != nil {
				return err
			}

			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			for _, n := range nodes {
				if err := a.store.Upsert(ctx, n); err != nil {
					return fmt.Errorf("page %s: %w", n.ID(), err)
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d pages into sitemap %d\n", len(nodes), file.Sitemap)
			return nil
		},
	}
}

func newLayoutCmd(flags *globalFlags) *cobra.Command {
	var direction string
	var write bool

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Run the automatic layout and print the positions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := layout.ParseDirection(direction)
			if err != nil {
				return err
			}
			sitemapID, err := valueobjects.NewSitemapID(flags.sitemapID)
			if err != nil {
				return err
			}

			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			view, err := a.editor.Open(ctx, services.OpenParams{SitemapID: sitemapID, UserID: "sitemapctl", Direction: dir})
			if err != nil {
				return err
			}
			if view, err = a.editor.AutoLayout(ctx, view.SessionID, dir); err != nil {
				return err
			}
			if write {
				outcome, err := a.editor.Save(ctx, view.SessionID)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "saved %d positions\n", outcome.Persisted)
			}

			out, err := json.MarshalIndent(struct {
				Direction layout.Direction `json:"direction"`
				Nodes     interface{}      `json:"nodes"`
				Edges     interface{}      `json:"edges"`
			}{view.Direction, view.Nodes, view.Edges}, "", "  ")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&direction, "direction", string(layout.LeftToRight), "layout direction: LR|TB")
	cmd.Flags().BoolVar(&write, "write", false, "persist the computed positions")
	return cmd
}

func newDescendantsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "descendants <node-id>",
		Short: "List a page and every page beneath it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid node id %q", args[0])
			}
			nodeID, err := valueobjects.NewNodeID(raw)
			if err != nil {
				return err
			}
			sitemapID, err := valueobjects.NewSitemapID(flags.sitemapID)
			if err != nil {
				return err
			}

			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			view, err := a.editor.Open(ctx, services.OpenParams{SitemapID: sitemapID, UserID: "sitemapctl"})
			if err != nil {
				return err
			}
			ids, err := a.editor.Descendants(ctx, view.SessionID, nodeID)
			if err != nil {
				return err
			}
			for _, id := range ids {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), id.String())
			}
			return nil
		},
	}
}
