package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/export"
	"github.com/cfmlabs/freshness-monitor/internal/freshness"
	"github.com/cfmlabs/freshness-monitor/internal/output"
	"github.com/cfmlabs/freshness-monitor/internal/settings"
	"github.com/spf13/cobra"
)

// formatParquet is accepted by export only
const formatParquet output.Format = "parquet"

func (e *env) statsCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show content freshness statistics",
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
			stats, err := a.Engine.Stats(cmd.Context(), a.Settings.Get(), refresh)
			if err != nil {
				return err
			}
			return p.Stats(*stats, freshness.Health(*stats))
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Recompute instead of using the cached snapshot")
	return cmd
}

func (e *env) listCmd() *cobra.Command {
	var (
		limit    int
		page     int
		postType string
		orderBy  string
		order    string
		author   int64
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stale content",
		Long: `List content older than its freshness threshold.

Examples:
  # Twenty oldest posts first
  freshness list --orderby modified --order asc

  # Identifiers only, for piping into review
  freshness list --format ids --limit 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := e.printer(cmd, output.FormatTable, output.FormatJSON, output.FormatCSV, output.FormatYAML, output.FormatIDs)
			if err != nil {
				return err
			}
			opts, err := listOptions(limit, page, postType, orderBy, order, author)
			if err != nil {
				return err
			}
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			result, err := a.Engine.ListStale(cmd.Context(), a.Settings.Get(), opts)
			if err != nil {
				return err
			}
			if err := p.Stale(result.Items); err != nil {
				return err
			}
			if p.Format == output.FormatTable && result.TotalPages > 1 {
				fmt.Fprintf(p.Err, "Page %d of %d (%d stale items)\n", result.Page, result.TotalPages, result.Total)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of items to show (0 = all)")
	cmd.Flags().IntVar(&page, "page", 1, "Page to show")
	cmd.Flags().StringVar(&postType, "post-type", "", "Comma-separated content types (default: all monitored types)")
	cmd.Flags().StringVar(&orderBy, "orderby", string(freshness.OrderModified), "Sort by modified or date or title or author or id")
	cmd.Flags().StringVar(&order, "order", "asc", "Sort direction: asc or desc")
	cmd.Flags().Int64Var(&author, "author", 0, "Only content by this author id")
	return cmd
}

func listOptions(limit, page int, postType, orderBy, order string, author int64) (freshness.ListOptions, error) {
	if limit < 0 {
		return freshness.ListOptions{}, fmt.Errorf("--limit must not be negative")
	}
	if page < 1 {
		return freshness.ListOptions{}, fmt.Errorf("--page must be at least 1")
	}
	field, ok := freshness.ParseOrderField(orderBy)
	if !ok {
		return freshness.ListOptions{}, fmt.Errorf("invalid --orderby %q", orderBy)
	}
	order = strings.ToLower(order)
	if order != "asc" && order != "desc" {
		return freshness.ListOptions{}, fmt.Errorf("invalid --order %q (expected asc or desc)", order)
	}
	if author < 0 {
		return freshness.ListOptions{}, fmt.Errorf("--author must be a positive id")
	}

	var types []string
	for _, t := range strings.Split(postType, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	return freshness.ListOptions{
		PerPage:  limit,
		Page:     page,
		OrderBy:  field,
		Order:    order,
		Types:    types,
		AuthorID: author,
	}, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid content id %q", s)
	}
	return id, nil
}

func (e *env) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <id>",
		Short: "Show the freshness of one content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := e.printer(cmd, output.FormatTable, output.FormatJSON, output.FormatYAML)
			if err != nil {
				return err
			}
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			f, err := a.Engine.Check(cmd.Context(), a.Settings.Get(), id)
			if errors.Is(err, freshness.ErrNotFound) {
				return fmt.Errorf("post #%d not found", id)
			}
			if err != nil {
				return err
			}
			return p.Check(f)
		},
	}
}

func (e *env) reviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review <id>...",
		Short: "Mark content as reviewed",
		Long: `Mark one or more content items as reviewed. Reviewed content is fresh
again until the threshold passes from the review date.

Examples:
  freshness review 12 14
  freshness list --format ids | xargs freshness review`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := settings.ParseIDList(strings.Join(args, ","))
			if err != nil {
				return err
			}
			p, err := e.printer(cmd, output.FormatTable, output.FormatJSON, output.FormatCSV, output.FormatYAML)
			if err != nil {
				return err
			}
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			result := a.Engine.MarkReviewedBulk(cmd.Context(), ids)
			p.Reviewed(result)
			if len(result.Updated) == 0 {
				return fmt.Errorf("no content was marked as reviewed")
			}
			return nil
		},
	}
}

func (e *env) exportCmd() *cobra.Command {
	var (
		path  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stale content as CSV or Parquet",
		Long: `Write every stale item to a file. The default file name is
stale-content-YYYY-MM-DD.csv in the current directory. Use --output - for stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := e.printer(cmd, output.FormatTable, output.FormatCSV, formatParquet)
			if err != nil {
				return err
			}
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			result, err := a.Engine.ListStale(cmd.Context(), a.Settings.Get(), freshness.ListOptions{
				PerPage: limit,
				Page:    1,
				OrderBy: freshness.OrderModified,
				Order:   "asc",
			})
			if err != nil {
				return err
			}

			parquet := p.Format == formatParquet
			// status lines stay off stdout when the file goes there
			p.Format = output.FormatCSV
			if len(result.Items) == 0 {
				p.Success(output.AllClear)
				return nil
			}

			if path == "" {
				path = export.Filename(time.Now())
				if parquet {
					path = export.ParquetFilename(time.Now())
				}
			}

			write := func(w io.Writer) error {
				if parquet {
					return export.WriteParquet(w, result.Items)
				}
				return export.WriteCSV(w, result.Items)
			}
			if path == "-" {
				return write(cmd.OutOrStdout())
			}

			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", path, err)
			}
			if err := writeAndClose(f, path, write); err != nil {
				return err
			}
			p.Success("Exported %d item(s) to %s.", len(result.Items), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "output", "o", "", "File to write (- for stdout)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of items (0 = all)")
	return cmd
}

// writeAndClose runs write against wc and closes it. A failed close is
// reported unless write already failed.
func writeAndClose(wc io.WriteCloser, name string, write func(io.Writer) error) error {
	err := write(wc)
	if cerr := wc.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to close %s: %w", name, cerr)
	}
	return err
}
