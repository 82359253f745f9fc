package cli

import (
	"fmt"
	"strings"

	"github.com/cfmlabs/freshness-monitor/internal/content"
	"github.com/cfmlabs/freshness-monitor/internal/mcp"
	"github.com/cfmlabs/freshness-monitor/internal/output"
	"github.com/cfmlabs/freshness-monitor/internal/settings"
	"github.com/cfmlabs/freshness-monitor/internal/sources"
	"github.com/spf13/cobra"
)

func (e *env) settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show the freshness settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := e.printer(cmd, output.FormatTable, output.FormatJSON, output.FormatYAML)
			if err != nil {
				return err
			}
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			return p.Settings(a.Settings.Get())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting",
		Long: `Change one setting by its JSON name. Per-type thresholds use
type_thresholds.<type>; a value of 0 removes the override.

Examples:
  freshness settings set threshold_days 365
  freshness settings set type_thresholds.page 730
  freshness settings set excluded_ids 4,8,15`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := e.printer(cmd, output.FormatTable, output.FormatJSON, output.FormatYAML)
			if err != nil {
				return err
			}
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			next := a.Settings.Get()
			if err := settings.Set(&next, args[0], args[1]); err != nil {
				return err
			}
			if _, err := a.Settings.Update(cmd.Context(), next); err != nil {
				return err
			}
			p.Success("Updated %s.", args[0])
			return nil
		},
	})
	return cmd
}

func (e *env) sendTestEmailCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "send-test-email",
		Short: "Send the admin digest now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := e.printer(cmd, output.FormatTable)
			if err != nil {
				return err
			}
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Monitoring.SendTestDigest(cmd.Context(), to); err != nil {
				return err
			}
			p.Success("Test email sent.")
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Recipient (default: the configured digest recipient)")
	return cmd
}

func (e *env) snapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Record today's trend point",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := e.printer(cmd, output.FormatTable)
			if err != nil {
				return err
			}
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Monitoring.RecordSnapshot(cmd.Context()); err != nil {
				return err
			}
			p.Success("Trend snapshot recorded.")
			return nil
		},
	}
}

func (e *env) trendsCmd() *cobra.Command {
	var (
		days         int
		clearHistory bool
	)
	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Show recorded daily freshness counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}
			p, err := e.printer(cmd, output.FormatTable, output.FormatJSON, output.FormatCSV, output.FormatYAML)
			if err != nil {
				return err
			}
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			if clearHistory {
				if err := a.Trends.Clear(cmd.Context()); err != nil {
					return err
				}
				p.Success("Trend history cleared.")
				return nil
			}
			points, err := a.Trends.History(cmd.Context(), days)
			if err != nil {
				return err
			}
			return p.Trends(points)
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Number of days to show")
	cmd.Flags().BoolVar(&clearHistory, "clear", false, "Delete the recorded trend history")
	return cmd
}

func (e *env) migrateCmd() *cobra.Command {
	var target int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply content database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := e.printer(cmd, output.FormatTable)
			if err != nil {
				return err
			}
			backend, err := content.ParseBackend(e.cfg.DBBackend)
			if err != nil {
				return err
			}
			if backend == content.BackendMemory {
				return fmt.Errorf("the memory backend has no schema to migrate")
			}
			result, err := content.Migrate(backend, e.cfg.DBDSN, target)
			if err != nil {
				return err
			}
			if !result.Changed {
				p.Success("Schema is up to date (version %d).", result.To)
				return nil
			}
			p.Success("Migrated schema from version %d to %d.", result.From, result.To)
			return nil
		},
	}
	cmd.Flags().IntVar(&target, "target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	return cmd
}

func (e *env) networkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "network",
		Short: "Show freshness across every site in the tenants file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := e.printer(cmd, output.FormatTable, output.FormatJSON, output.FormatCSV, output.FormatYAML)
			if err != nil {
				return err
			}
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			if a.Network == nil {
				return fmt.Errorf("network mode requires TENANTS_FILE")
			}
			stats, err := a.Network.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return p.Network(stats)
		},
	}

	var limit int
	stale := &cobra.Command{
		Use:   "stale",
		Short: "List the oldest stale content across every site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1")
			}
			p, err := e.printer(cmd, output.FormatTable, output.FormatJSON, output.FormatCSV, output.FormatYAML, output.FormatIDs)
			if err != nil {
				return err
			}
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			if a.Network == nil {
				return fmt.Errorf("network mode requires TENANTS_FILE")
			}
			items, err := a.Network.StaleItems(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return p.NetworkStale(items)
		},
	}
	stale.Flags().IntVar(&limit, "limit", 20, "Maximum number of items to list")
	cmd.AddCommand(stale)
	return cmd
}

func (e *env) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the freshness MCP server on stdio",
		Long:  `Launch an MCP server that lets AI agents query and review stale content through standard tools.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			return mcp.Serve(cmd.Context(), a.Engine, a.Settings)
		},
	}
}

func (e *env) syncCmd() *cobra.Command {
	var postType string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import content and authors from the host site",
		Long: `Copy published content and authors from the WordPress REST API at
SOURCE_URL into the content database. SOURCE_USERNAME and SOURCE_PASSWORD
(an application password) are needed to import author emails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := e.printer(cmd, output.FormatTable)
			if err != nil {
				return err
			}
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}

			types := a.Settings.Get().ContentTypes
			if postType != "" {
				types = strings.Split(postType, ",")
			}
			src := sources.NewWordPressSource(e.cfg.SourceURL, e.cfg.SourceUsername, e.cfg.SourcePassword)
			result, err := sources.Sync(cmd.Context(), src, a.Content, types)
			if err != nil {
				return err
			}
			a.Engine.Invalidate()

			if result.Skipped > 0 {
				p.Warning("Skipped %d invalid item(s).", result.Skipped)
			}
			p.Success("Imported %d item(s) and %d author(s) from %s.", result.Items, result.Authors, e.cfg.SourceURL)
			return nil
		},
	}
	cmd.Flags().StringVar(&postType, "post-type", "", "Comma-separated content types (default: the monitored types)")
	return cmd
}
