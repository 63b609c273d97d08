package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fitsync/internal/app"
	"fitsync/internal/domain"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one full sync pass and print the resulting state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, closer, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer closer.Close()

		ctx := cmd.Context()
		st, err := openStack(ctx, cfg, log, false, nil)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.prober().Ping(ctx); err != nil {
			return fmt.Errorf("remote unreachable: %w", err)
		}
		// Going online runs the pass.
		st.mgr.SetOnline(ctx, true)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		state := st.mgr.State()
		if err := enc.Encode(state); err != nil {
			return err
		}
		if state.LastError != "" {
			return fmt.Errorf("sync: %s", state.LastError)
		}
		return nil
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List changes waiting for delivery",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, closer, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer closer.Close()

		cache, err := openCache(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cache.Close()

		changes, err := cache.LoadQueue(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tKIND\tOP\tRECORD\tENQUEUED\tRETRIES")
		for _, c := range changes {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
				c.ID, c.Kind, c.Op, c.Record.ID, c.EnqueuedAt.Local().Format(time.DateTime), c.RetryCount)
		}
		return tw.Flush()
	},
}

var weightCmd = &cobra.Command{
	Use:   "weight",
	Short: "Record or list weight entries in the local cache",
}

var weightAddCmd = &cobra.Command{
	Use:   "add VALUE UNIT",
	Short: "Record a weight; it syncs on the next pass",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid value %q", args[0])
		}
		cfg, log, closer, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer closer.Close()

		st, err := openLocal(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer st.Close()

		entry, day, err := app.NewWeightService(st.cache, st.mgr).RecordWeight(cmd.Context(), value, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: recorded %s (%d pending)\n", day, entry.ID, st.mgr.State().PendingCount)
		return nil
	},
}

var weightListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent weight entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		cfg, log, closer, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer closer.Close()

		st, err := openLocal(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer st.Close()

		items, err := app.NewWeightService(st.cache, st.mgr).ListRecent(cmd.Context(), limit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DAY\tVALUE\tUNIT\tSTATUS")
		for _, r := range items {
			w := r.Payload.(domain.WeightLog)
			fmt.Fprintf(tw, "%s\t%.1f\t%s\t%s\n", w.Day, w.Value, w.Unit, r.SyncStatus)
		}
		return tw.Flush()
	},
}

func init() {
	weightListCmd.Flags().Int("limit", 14, "number of entries")
	weightCmd.AddCommand(weightAddCmd, weightListCmd)
}
