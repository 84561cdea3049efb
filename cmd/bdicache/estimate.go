package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/bdicache/compression"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate FILE",
	Short: "Estimate the BDI compressed size of every line of a file.",
	Long: `estimate splits FILE into cache lines, the last one padded with ` +
		`zeros, and reports how many lines compress to each size, how ` +
		`often each scheme wins, and the overall compression ratio.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lineSize, _ := cmd.Flags().GetInt("line-size")
		if lineSize <= 0 || lineSize%8 != 0 {
			return fmt.Errorf("line size %d is not a positive multiple of 8",
				lineSize)
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", args[0], err)
		}

		report := estimateLines(data, lineSize)
		report.print(cmd.OutOrStdout())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(estimateCmd)
	estimateCmd.Flags().Int("line-size", 64, "Bytes per cache line.")
}

type estimateReport struct {
	lineSize        int
	lines           int
	compressedBytes int
	sizes           map[int]int
	schemes         map[compression.Scheme]int
}

func estimateLines(data []byte, lineSize int) estimateReport {
	report := estimateReport{
		lineSize: lineSize,
		sizes:    make(map[int]int),
		schemes:  make(map[compression.Scheme]int),
	}

	for start := 0; start < len(data); start += lineSize {
		line := make([]byte, lineSize)
		copy(line, data[start:])

		res := compression.Analyze(line)

		report.lines++
		report.compressedBytes += res.Size
		report.sizes[res.Size]++
		report.schemes[res.Scheme]++
	}

	return report
}

func (r estimateReport) ratio() float64 {
	if r.compressedBytes == 0 {
		return 0
	}

	return float64(r.lines*r.lineSize) / float64(r.compressedBytes)
}

func (r estimateReport) print(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "lines\t%d\n", r.lines)
	fmt.Fprintf(tw, "compression ratio\t%.3f\n", r.ratio())

	fmt.Fprintf(tw, "\nsize (bytes)\tlines\n")

	sizes := make([]int, 0, len(r.sizes))
	for size := range r.sizes {
		sizes = append(sizes, size)
	}

	sort.Ints(sizes)

	for _, size := range sizes {
		fmt.Fprintf(tw, "%d\t%d\n", size, r.sizes[size])
	}

	fmt.Fprintf(tw, "\nscheme\tlines\n")

	for _, s := range compression.AllSchemes() {
		if n := r.schemes[s]; n > 0 {
			fmt.Fprintf(tw, "%s\t%d\n", s, n)
		}
	}

	tw.Flush()
}
