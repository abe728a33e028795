// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pdiddy/media-convert/internal/history"
	"github.com/pdiddy/media-convert/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past conversions",
	Long: `History lists conversions recorded in the history database, newest
first. Filter with --type, --name and --request. Use --export to write the
matching records with aggregate statistics as YAML or JSON.`,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if !cfg.History.Enabled {
		return errors.New("history is disabled (history.enabled=false)")
	}

	store, err := history.NewStore(history.ResolvePath(cfg.History, cfg.Paths.DataDir), cfg.History.MaxResults)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := historyOptsFromFlags(cmd)
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if format, _ := cmd.Flags().GetString("export"); format != "" {
		return store.Export(ctx, out, history.ExportFormat(format), opts)
	}

	if showStats, _ := cmd.Flags().GetBool("stats"); showStats {
		stats, err := store.Stats(ctx)
		if err != nil {
			return err
		}
		printStats(out, stats)
		return nil
	}

	records, err := store.List(ctx, opts)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	printHistory(out, records)
	return nil
}

func historyOptsFromFlags(cmd *cobra.Command) history.QueryOptions {
	kind, _ := cmd.Flags().GetString("type")
	name, _ := cmd.Flags().GetString("name")
	requestID, _ := cmd.Flags().GetString("request")
	limit, _ := cmd.Flags().GetInt("limit")
	return history.QueryOptions{
		Type:       types.FileKind(kind),
		Name:       name,
		RequestID:  requestID,
		MaxResults: limit,
	}
}

func printHistory(w io.Writer, records []types.ConversionRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No conversions recorded.")
		return
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		outcome := r.ConvertedName
		if outcome == "" {
			outcome = r.Message
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.CreatedAt.Local().Format(time.DateTime),
			string(r.Type),
			r.OriginalName,
			outcome,
			humanize.Bytes(uint64(max(r.InputBytes, 0))),
			(time.Duration(r.DurationMS) * time.Millisecond).String(),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"ID", "When", "Type", "File", "Result", "Size", "Took"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	))
	fmt.Fprintf(w, "%d record(s)\n", len(records))
}

func printStats(w io.Writer, s history.Stats) {
	fmt.Fprintln(w, renderTable(
		[]string{"Metric", "Value"},
		[][]string{
			{"Total", strconv.Itoa(s.Total)},
			{"Images", strconv.Itoa(s.Images)},
			{"Videos", strconv.Itoa(s.Videos)},
			{"Unsupported", strconv.Itoa(s.Unsupported)},
			{"Failed", strconv.Itoa(s.Failed)},
			{"Input", humanize.Bytes(uint64(max(s.InputBytes, 0)))},
		},
		[]columnAlignment{alignLeft, alignRight},
	))
}

func init() {
	historyCmd.Flags().String("type", "", "filter by result type: image, video, unsupported, error")
	historyCmd.Flags().String("name", "", "filter by original filename substring")
	historyCmd.Flags().String("request", "", "filter by request id")
	historyCmd.Flags().Int("limit", 0, "maximum number of records (default history.max_results)")
	historyCmd.Flags().Bool("json", false, "output records as JSON")
	historyCmd.Flags().Bool("stats", false, "print aggregate counts instead of records")
	historyCmd.Flags().String("export", "", "export records with stats: yaml or json")

	rootCmd.AddCommand(historyCmd)
}
