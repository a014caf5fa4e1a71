package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nadahalli/thumper/internal/app"
	"github.com/nadahalli/thumper/internal/config"
	"github.com/nadahalli/thumper/internal/logging"
	"github.com/nadahalli/thumper/internal/tcx"
	"github.com/nadahalli/thumper/internal/workout"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.NewViper()

	root := &cobra.Command{
		Use:           "thumper",
		Short:         "Jump rope workout tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if err := config.BindFlags(v, root.PersistentFlags()); err != nil {
		panic(err)
	}

	root.AddCommand(newRunCmd(v))
	root.AddCommand(newHistoryCmd(v))
	root.AddCommand(newExportCmd(v))
	root.AddCommand(newDeleteCmd(v))
	return root
}

func loadApp(ctx context.Context, v *viper.Viper, extraLog ...io.Writer) (*app.App, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, extraLog...)
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Track a workout in the terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			feed := logging.NewFeed()
			a, err := loadApp(cmd.Context(), v, feed)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.RunTUI(feed)
		},
	}
}

func newHistoryCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List saved workouts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.History.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no workouts")
				return nil
			}
			return printWorkouts(cmd, list)
		},
	}
}

func printWorkouts(cmd *cobra.Command, list []workout.Workout) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTART\tDURATION\tJUMPS\tJUMP TIME\tAVG HR")
	for _, w := range list {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			w.ID,
			w.StartTime.Local().Format("2006-01-02 15:04"),
			formatSeconds(w.DurationSeconds),
			optional(w.JumpCount),
			optionalSeconds(w.JumpTimeSeconds),
			optional(w.AvgHeartRate),
		)
	}
	return tw.Flush()
}

func newExportCmd(v *viper.Viper) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export [id...]",
		Short: "Write workouts as TCX; all workouts when no id is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			a, err := loadApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			var path string
			switch {
			case out != "":
				if len(ids) == 0 {
					all, err := a.History.List(ctx)
					if err != nil {
						return err
					}
					for _, w := range all {
						ids = append(ids, w.ID)
					}
				}
				path = out
				err = a.History.ExportIDs(ctx, ids, out)
			case len(ids) == 0:
				path, err = a.History.ExportAll(ctx)
			case len(ids) == 1:
				path, err = a.History.ExportOne(ctx, ids[0])
			default:
				path = filepath.Join(a.Config.ExportDir, tcx.AllFileName)
				err = a.History.ExportIDs(ctx, ids, path)
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exported %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: named after the workout in the export directory)")
	return cmd
}

func newDeleteCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a workout and its samples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			a, err := loadApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.History.Delete(cmd.Context(), ids[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted workout %d\n", ids[0])
			return nil
		},
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, errors.New("invalid workout id: " + arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func formatSeconds(total int) string {
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func optional(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func optionalSeconds(v *int) string {
	if v == nil {
		return "-"
	}
	return formatSeconds(*v)
}
