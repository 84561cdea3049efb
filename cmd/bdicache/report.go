package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/bdicache/datarecording"
)

var reportCmd = &cobra.Command{
	Use:   "report RECORDING",
	Short: "Summarize a recording written by replay --record.",
	Long: `report reads a SQLite file written by replay --record and prints ` +
		`the replay summary and how many events of each kind were recorded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := readReport(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		rep.print(cmd.OutOrStdout())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

type eventCount struct {
	table string
	count int
	valid int
}

type recordingReport struct {
	summary *summaryRow
	events  []eventCount
}

func readReport(ctx context.Context, filename string) (recordingReport, error) {
	rep := recordingReport{}

	if ctx == nil {
		ctx = context.Background()
	}

	reader, err := datarecording.NewReader(filename)
	if err != nil {
		return rep, err
	}
	defer reader.Close()

	tables, err := reader.ListTables(ctx)
	if err != nil {
		return rep, err
	}

	summaryTable := bankName + "_Summary"

	for _, table := range tables {
		if table == summaryTable {
			rep.summary, err = readSummary(ctx, reader, table)
			if err != nil {
				return rep, err
			}

			continue
		}

		ev, err := countEvents(ctx, reader, table)
		if err != nil {
			return rep, err
		}

		rep.events = append(rep.events, ev)
	}

	return rep, nil
}

func readSummary(
	ctx context.Context,
	reader datarecording.DataReader,
	table string,
) (*summaryRow, error) {
	reader.MapTable(table, summaryRow{})

	rows, _, err := reader.Query(ctx, table, datarecording.QueryParams{Limit: 1})
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, nil
	}

	return rows[0].(*summaryRow), nil
}

// countEvents counts the rows of an event table. The valid count is the
// number of events that involved a valid line.
func countEvents(
	ctx context.Context,
	reader datarecording.DataReader,
	table string,
) (eventCount, error) {
	ev := eventCount{table: table}

	var err error

	ev.count, err = reader.Count(ctx, table, datarecording.QueryParams{})
	if err != nil {
		return ev, err
	}

	ev.valid, err = reader.Count(ctx, table,
		datarecording.QueryParams{Where: "Valid = 1"})
	if err != nil {
		return ev, err
	}

	return ev, nil
}

func (r recordingReport) print(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	if s := r.summary; s != nil {
		fmt.Fprintf(tw, "records\t%d\n", s.Records)
		fmt.Fprintf(tw, "skipped invalidations\t%d\n", s.Skipped)
		fmt.Fprintf(tw, "cycles\t%d\n", s.Cycles)
		fmt.Fprintf(tw, "accesses\t%d\n", s.Accesses)
		fmt.Fprintf(tw, "hits\t%d\n", s.Hits)
		fmt.Fprintf(tw, "misses\t%d\n", s.Misses)
		fmt.Fprintf(tw, "evictions\t%d\n", s.Evictions)
		fmt.Fprintf(tw, "writebacks\t%d\n", s.Writebacks)
		fmt.Fprintf(tw, "compression ratio\t%.3f\n", s.Ratio)
		fmt.Fprintln(tw)
	}

	fmt.Fprintln(tw, "event\tcount\tvalid")

	for _, ev := range r.events {
		name := strings.TrimPrefix(ev.table, bankName+"_")
		fmt.Fprintf(tw, "%s\t%d\t%d\n", name, ev.count, ev.valid)
	}

	tw.Flush()
}
