package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"github.com/sarchlab/bdicache/cache"
	"github.com/sarchlab/bdicache/coherence"
	"github.com/sarchlab/bdicache/datarecording"
	"github.com/sarchlab/bdicache/hashing"
	"github.com/sarchlab/bdicache/hooking"
	"github.com/sarchlab/bdicache/monitoring"
	"github.com/sarchlab/bdicache/replacement"
	"github.com/sarchlab/bdicache/stats"
	"github.com/sarchlab/bdicache/trace"
)

var replayCmd = &cobra.Command{
	Use:   "replay TRACE",
	Short: "Replay an access trace through a compressed bank.",
	Long: `replay feeds every record of TRACE to a bank driven by a ` +
		`write-back controller and prints what the bank did. Reads whose ` +
		`record carries no line data fetch the line from the backing memory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := replayConfigFromFlags(cmd)
		cfg.tracePath = args[0]

		res, err := runReplay(cfg)
		if err != nil {
			return err
		}

		res.print(cmd.OutOrStdout())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)

	f := replayCmd.Flags()
	f.Int("lines", 1024, "Number of lines of the bank.")
	f.Int("line-size", 64, "Bytes per line.")
	f.Int("assoc", 8, "Lines per set.")
	f.Int("segment", 1, "Allocation granularity in bytes.")
	f.String("array", "bdi", "Storage backend, bdi, setassoc, or zcache.")
	f.Int("candidates", 0,
		"Lines a zcache replacement considers, 0 for assoc squared.")
	f.String("policy", "lru", "Replacement policy, lru or srrip.")
	f.String("hash", "identity", "Set index hash, identity or murmur3.")
	f.Bool("sharers-aware", false,
		"Make LRU keep lines that were handed out to more readers.")
	f.Bool("always-evict-primary", true,
		"Evict the worst line on every insertion, even if the set has room.")
	f.Uint64("hit-latency", 1, "Cycles charged for a hit.")
	f.Uint64("miss-latency", 100, "Cycles charged for a miss.")
	f.String("record", "",
		"Record every content change into PATH.sqlite3.")
	f.String("events-csv", "",
		"Write every content change into PATH.csv.")
	f.StringSlice("events", nil,
		"Content changes to record and export, any of fill, evict, update, "+
			"invalidate. All by default.")
	f.Bool("monitor", false, "Serve the bank state over HTTP while replaying.")
	f.Int("monitor-port", 0, "Port of the monitoring server, 0 for any.")
	f.Bool("open-browser", false, "Open the monitoring page in a browser.")
}

type replayConfig struct {
	tracePath          string
	numLines           int
	lineSize           int
	assoc              int
	segmentSize        int
	arrayType          string
	candidates         int
	policy             string
	hash               string
	sharersAware       bool
	alwaysEvictPrimary bool
	hitLatency         uint64
	missLatency        uint64
	recordPath         string
	eventsCSVPath      string
	events             []string
	monitor            bool
	monitorPort        int
	openBrowser        bool
}

func replayConfigFromFlags(cmd *cobra.Command) replayConfig {
	f := cmd.Flags()
	cfg := replayConfig{}

	cfg.numLines, _ = f.GetInt("lines")
	cfg.lineSize, _ = f.GetInt("line-size")
	cfg.assoc, _ = f.GetInt("assoc")
	cfg.segmentSize, _ = f.GetInt("segment")
	cfg.arrayType, _ = f.GetString("array")
	cfg.candidates, _ = f.GetInt("candidates")
	cfg.policy, _ = f.GetString("policy")
	cfg.hash, _ = f.GetString("hash")
	cfg.sharersAware, _ = f.GetBool("sharers-aware")
	cfg.alwaysEvictPrimary, _ = f.GetBool("always-evict-primary")
	cfg.hitLatency, _ = f.GetUint64("hit-latency")
	cfg.missLatency, _ = f.GetUint64("miss-latency")
	cfg.recordPath, _ = f.GetString("record")
	cfg.eventsCSVPath, _ = f.GetString("events-csv")
	cfg.events, _ = f.GetStringSlice("events")
	cfg.monitor, _ = f.GetBool("monitor")
	cfg.monitorPort, _ = f.GetInt("monitor-port")
	cfg.openBrowser, _ = f.GetBool("open-browser")

	return cfg
}

type replayResult struct {
	records    int
	skipped    int
	cycles     uint64
	snapshot   stats.Snapshot
	writebacks uint64
	budget     int
}

// bankName is the name of the replayed bank in hooks, recordings, and the
// monitor.
const bankName = "Bank"

func runReplay(cfg replayConfig) (res replayResult, err error) {
	records, err := readTrace(cfg.tracePath)
	if err != nil {
		return res, err
	}

	storage := coherence.NewStorage(storageCapacity(records, cfg.lineSize))
	ctrl := coherence.NewSimple(storage, cfg.lineSize)
	ctrl.HitLatency = cfg.hitLatency
	ctrl.MissLatency = cfg.missLatency

	counters := stats.NewCounters()

	bank, err := buildBank(cfg, ctrl, counters)
	if err != nil {
		return res, err
	}

	bank.AcceptHook(hooking.NewLogHook(logger))

	positions, err := hookPositions(cfg.events)
	if err != nil {
		return res, err
	}

	if cfg.recordPath != "" {
		recorder := datarecording.New(cfg.recordPath)
		defer func() {
			recordSummary(recorder, res)
			if closeErr := recorder.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("cannot close the recording: %w", closeErr)
			}
		}()

		bank.AcceptHook(
			stats.NewRecordingHook(recorder, bankName+"_"), positions...)
	}

	if cfg.eventsCSVPath != "" {
		csvHook := stats.NewCSVHook(cfg.eventsCSVPath)
		csvHook.Init()
		defer csvHook.Close()

		bank.AcceptHook(csvHook, positions...)
	}

	var monitor *monitoring.Monitor
	if cfg.monitor {
		monitor, err = startMonitor(cfg, bank)
		if err != nil {
			return res, err
		}
	}

	guard := func(fn func()) { fn() }
	if monitor != nil {
		guard = monitor.Guard
	}

	var bar *monitoring.ProgressBar
	if monitor != nil {
		bar = monitor.CreateProgressBar("replay", uint64(len(records)))
		defer monitor.CompleteProgressBar(bar)
	}

	cycle := uint64(0)
	for _, rec := range records {
		guard(func() {
			var ok bool
			cycle, ok = replayRecord(bank, ctrl, rec, cycle)
			if !ok {
				res.skipped++
			}
		})

		if bar != nil {
			bar.IncrementFinished(1)
		}
	}

	res.records = len(records)
	res.cycles = cycle
	res.snapshot = counters.Snapshot()
	res.writebacks = ctrl.Writebacks()
	res.budget = bank.Budget()

	return res, nil
}

func readTrace(path string) ([]trace.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open trace: %w", err)
	}
	defer file.Close()

	records, err := trace.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return records, nil
}

func hookPositions(names []string) ([]*hooking.HookPos, error) {
	positions := make([]*hooking.HookPos, 0, len(names))

	for _, name := range names {
		pos, err := cache.HookPosByName(name)
		if err != nil {
			return nil, err
		}

		positions = append(positions, pos)
	}

	return positions, nil
}

func storageCapacity(records []trace.Record, lineSize int) uint64 {
	maxAddr := uint64(0)
	for _, rec := range records {
		maxAddr = max(maxAddr, rec.Address)
	}

	return (maxAddr + 1) * uint64(lineSize)
}

// buildBank turns the panics of an invalid configuration into an error.
func buildBank(
	cfg replayConfig,
	ctrl cache.Controller,
	collector stats.Collector,
) (bank *cache.Bank, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid bank configuration: %v", r)
		}
	}()

	builder := cache.MakeBuilder()
	if sharers, ok := ctrl.(replacement.Sharers); ok && cfg.sharersAware {
		builder = builder.WithSharers(sharers)
	}

	bank = builder.
		WithNumLines(cfg.numLines).
		WithLineSize(cfg.lineSize).
		WithWayAssociativity(cfg.assoc).
		WithSegmentSize(cfg.segmentSize).
		WithArrayType(cfg.arrayType).
		WithCandidates(cfg.candidates).
		WithReplaceStrategy(cfg.policy).
		WithHashFamily(hashing.New(cfg.hash)).
		WithAlwaysEvictPrimary(cfg.alwaysEvictPrimary).
		WithController(ctrl).
		WithCollector(collector).
		Build(bankName)

	return bank, nil
}

func startMonitor(
	cfg replayConfig,
	bank *cache.Bank,
) (*monitoring.Monitor, error) {
	monitor := monitoring.NewMonitor().
		WithPortNumber(cfg.monitorPort).
		WithLogger(logger)
	monitor.RegisterBank(bank)

	url, err := monitor.StartServer()
	if err != nil {
		return nil, err
	}

	if cfg.openBrowser {
		if err := browser.OpenURL(url + "/api/bank/" + bankName); err != nil {
			logger.WithError(err).Warn("cannot open a browser")
		}
	}

	return monitor, nil
}

// replayRecord sends one record to the bank and returns the cycle at which
// the bank is done with it. Invalidations of lines that are not cached are
// skipped.
func replayRecord(
	bank *cache.Bank,
	ctrl *coherence.Simple,
	rec trace.Record,
	cycle uint64,
) (uint64, bool) {
	req := rec.Request(xid.New().String(), cycle)
	_, resident := bank.Lookup(rec.Address)

	if rec.Op.IsInvalidation() {
		if !resident {
			logger.WithField("line", rec.LineNo).
				Warnf("%s of 0x%x, which is not cached", rec.Op, rec.Address)

			return cycle, false
		}

		return bank.Invalidate(req, rec.Op.InvType()), true
	}

	if req.Data == nil && !resident {
		req.Data = ctrl.Fetch(rec.Address)
	}

	return bank.Access(req), true
}

type summaryRow struct {
	Records    int
	Skipped    int
	Cycles     uint64
	Accesses   uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
	Ratio      float64
}

func recordSummary(recorder datarecording.DataRecorder, res replayResult) {
	row := summaryRow{
		Records:    res.records,
		Skipped:    res.skipped,
		Cycles:     res.cycles,
		Accesses:   res.snapshot.Accesses,
		Hits:       res.snapshot.Hits,
		Misses:     res.snapshot.Misses,
		Evictions:  res.snapshot.Evictions,
		Writebacks: res.writebacks,
		Ratio:      res.snapshot.CompressionRatio(),
	}

	recorder.CreateTable(bankName+"_Summary", row)
	recorder.InsertData(bankName+"_Summary", row)
}

func (r replayResult) print(w io.Writer) {
	s := r.snapshot
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	hitRate := 0.0
	if s.Accesses > 0 {
		hitRate = float64(s.Hits) / float64(s.Accesses)
	}

	fmt.Fprintf(tw, "records\t%d\n", r.records)
	fmt.Fprintf(tw, "skipped invalidations\t%d\n", r.skipped)
	fmt.Fprintf(tw, "cycles\t%d\n", r.cycles)
	fmt.Fprintf(tw, "accesses\t%d\n", s.Accesses)
	fmt.Fprintf(tw, "hits\t%d\n", s.Hits)
	fmt.Fprintf(tw, "misses\t%d\n", s.Misses)
	fmt.Fprintf(tw, "hit rate\t%.4f\n", hitRate)
	fmt.Fprintf(tw, "fills\t%d\n", s.Fills)
	fmt.Fprintf(tw, "updates\t%d\n", s.Updates)
	fmt.Fprintf(tw, "evictions\t%d\n", s.Evictions)
	fmt.Fprintf(tw, "invalidations\t%d\n", s.Invalidations)
	fmt.Fprintf(tw, "compressed lines\t%d\n", s.CompressedLines)
	fmt.Fprintf(tw, "full lines\t%d\n", s.FullLines)
	fmt.Fprintf(tw, "compression ratio\t%.3f\n", s.CompressionRatio())
	fmt.Fprintf(tw, "writebacks\t%d\n", r.writebacks)
	fmt.Fprintf(tw, "set budget (segments)\t%d\n", r.budget)

	tw.Flush()
}
