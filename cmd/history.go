package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	units "github.com/docker/go-units"
	"github.com/maxvaer/apiprobe/internal/history"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and compare saved sweep reports",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved reports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.List()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTARTED\tBASE HOST\tPROBED\tOK\tFAULTS")
		for _, s := range list {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\n", s.ID, s.StartedAt.Local().Format(time.DateTime), s.BaseHost, s.Total, s.Succeeded, s.Faults)
		}
		return tw.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one saved report (default: the latest)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		var rec *history.Record
		if len(args) == 1 {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			rec, err = store.Load(id)
			if err != nil {
				return err
			}
		} else if rec, err = store.Latest(); err != nil {
			return err
		}
		printRecord(cmd.OutOrStdout(), rec)
		return nil
	},
}

var historyDiffCmd = &cobra.Command{
	Use:   "diff [old-id new-id]",
	Short: "Compare two saved reports (default: the two latest)",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("diff takes no arguments or two report IDs")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		var oldID, newID uint64
		if len(args) == 2 {
			if oldID, err = parseID(args[0]); err != nil {
				return err
			}
			if newID, err = parseID(args[1]); err != nil {
				return err
			}
		} else {
			list, err := store.List()
			if err != nil {
				return err
			}
			if len(list) < 2 {
				return fmt.Errorf("need two saved reports to diff, %s has %d", store.Path(), len(list))
			}
			oldID, newID = list[len(list)-2].ID, list[len(list)-1].ID
		}

		before, err := store.Load(oldID)
		if err != nil {
			return err
		}
		after, err := store.Load(newID)
		if err != nil {
			return err
		}
		printDiff(cmd.OutOrStdout(), before, after, history.Diff(before, after))
		return nil
	},
}

func init() {
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyDiffCmd)
}

func openHistory() (*history.Store, error) {
	if opts.HistoryFile == "" {
		return nil, errors.New("--history-file is required")
	}
	return history.Open(opts.HistoryFile)
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid report id %q", s)
	}
	return id, nil
}

func verdict(e *history.Entry) string {
	switch {
	case e == nil:
		return "-"
	case e.Fault != "":
		return "FAULT"
	case e.Success:
		return "OK"
	default:
		return "FAILED"
	}
}

func status(e *history.Entry) string {
	if e == nil {
		return "-"
	}
	if e.Status == 0 {
		return "---"
	}
	return strconv.Itoa(e.Status)
}

func printRecord(w io.Writer, rec *history.Record) {
	s := rec.Summary()
	fmt.Fprintf(w, "Report %d: %s at %s (%s, %d workers)\n", rec.ID, rec.BaseHost,
		rec.StartedAt.Local().Format(time.DateTime), time.Duration(rec.DurationMS)*time.Millisecond, rec.Workers)
	fmt.Fprintf(w, "Probed: %d | Succeeded: %d | Faults: %d\n\n", s.Total, s.Succeeded, s.Faults)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCODE\tKIND\tSIZE\tVERDICT\tCANDIDATE")
	for i := range rec.Entries {
		e := &rec.Entries[i]
		size := "-"
		if e.Fault == "" {
			size = units.HumanSize(float64(e.Size))
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", e.Index, status(e), e.Kind, size, verdict(e), e.Key)
	}
	tw.Flush()
}

func printDiff(w io.Writer, before, after *history.Record, changes []history.Change) {
	fmt.Fprintf(w, "Comparing report %d with report %d\n", before.ID, after.ID)
	if len(changes) == 0 {
		fmt.Fprintln(w, "No changes.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANGE\tCANDIDATE\tBEFORE\tAFTER\tFIELDS")
	for _, c := range changes {
		key := c.Key
		if c.Occurrence > 0 {
			key = fmt.Sprintf("%s #%d", key, c.Occurrence+1)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s %s\t%s\n", c.Type, key,
			status(c.Old), verdict(c.Old), status(c.New), verdict(c.New), strings.Join(c.Fields, ","))
	}
	tw.Flush()
}
