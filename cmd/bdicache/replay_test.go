package main

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const denseHex = "00254a6f94b9de03284d7297bce1062b50759abfe4092e53789dc2e70c31567b" +
	"a0c5ea0f34597ea3c8ed12375c81a6cbf0153a5f84a9cef3183d6287acd1f61b"

var _ = Describe("replay", func() {
	var (
		dir string
		cfg replayConfig
	)

	writeTrace := func(content string) string {
		path := filepath.Join(dir, "trace.txt")
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())

		return path
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		cfg = replayConfig{
			numLines:           16,
			lineSize:           64,
			assoc:              4,
			segmentSize:        8,
			arrayType:          "bdi",
			policy:             "lru",
			hash:               "identity",
			alwaysEvictPrimary: true,
			hitLatency:         1,
			missLatency:        100,
		}
	})

	It("should replay a trace", func() {
		cfg.tracePath = writeTrace(`
GETS 0
GETS 4
GETS 8 ` + denseHex + `
PUTX 4 ` + denseHex + ` 0 8
GETS 0
INV 4
INVX 100
`)

		res, err := runReplay(cfg)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.records).To(Equal(7))
		Expect(res.skipped).To(Equal(1))
		Expect(res.snapshot.Accesses).To(Equal(uint64(5)))
		Expect(res.snapshot.Hits).To(Equal(uint64(2)))
		Expect(res.snapshot.Misses).To(Equal(uint64(3)))
		Expect(res.snapshot.Updates).To(Equal(uint64(1)))
		Expect(res.snapshot.Invalidations).To(Equal(uint64(1)))
		Expect(res.writebacks).To(Equal(uint64(1)))
		Expect(res.cycles).To(Equal(uint64(3*100 + 2*1 + 1)))
		Expect(res.budget).To(Equal(16))

		buf := new(bytes.Buffer)
		res.print(buf)
		Expect(buf.String()).To(MatchRegexp(`hits\s+2`))
		Expect(buf.String()).To(MatchRegexp(`skipped invalidations\s+1`))
	})

	It("should replay on a zcache", func() {
		cfg.tracePath = writeTrace("GETS 0\nGETS 4\nGETS 0\n")
		cfg.arrayType = "zcache"
		cfg.hash = "murmur3"
		cfg.candidates = 8

		res, err := runReplay(cfg)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.snapshot.Hits).To(Equal(uint64(1)))
		Expect(res.snapshot.Misses).To(Equal(uint64(2)))
		Expect(res.budget).To(Equal(32))
	})

	It("should replay with a sharers-aware LRU", func() {
		cfg.tracePath = writeTrace("GETS 0\nGETS 0\nGETS 4\n")
		cfg.sharersAware = true

		res, err := runReplay(cfg)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.snapshot.Hits).To(Equal(uint64(1)))
	})

	It("should refuse sharers with a policy that ignores them", func() {
		cfg.tracePath = writeTrace("GETS 0\n")
		cfg.sharersAware = true
		cfg.policy = "srrip"

		_, err := runReplay(cfg)

		Expect(err).To(MatchError(ContainSubstring("cannot favor shared lines")))
	})

	It("should record and export every change", func() {
		cfg.tracePath = writeTrace("GETS 0\nGETS 4 " + denseHex + "\n")
		cfg.recordPath = filepath.Join(dir, "rec")
		cfg.eventsCSVPath = filepath.Join(dir, "events")

		_, err := runReplay(cfg)
		Expect(err).NotTo(HaveOccurred())

		Expect(filepath.Join(dir, "rec.sqlite3")).To(BeAnExistingFile())

		content, err := os.ReadFile(filepath.Join(dir, "events.csv"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(content)).To(HavePrefix("Pos, Where, ReqID"))
		Expect(string(content)).To(ContainSubstring("Fill, Bank"))
	})

	It("should export only the selected events", func() {
		cfg.tracePath = writeTrace("GETS 0\nGETS 4 " + denseHex + "\n")
		cfg.eventsCSVPath = filepath.Join(dir, "fills")
		cfg.events = []string{"fill"}

		_, err := runReplay(cfg)
		Expect(err).NotTo(HaveOccurred())

		content, err := os.ReadFile(filepath.Join(dir, "fills.csv"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(content)).To(ContainSubstring("Fill, Bank"))
		Expect(string(content)).NotTo(ContainSubstring("Evict"))
	})

	It("should reject unknown events", func() {
		cfg.tracePath = writeTrace("GETS 0\n")
		cfg.events = []string{"flush"}

		_, err := runReplay(cfg)

		Expect(err).To(MatchError(ContainSubstring("unknown hook position")))
	})

	It("should report an invalid configuration", func() {
		cfg.tracePath = writeTrace("GETS 0\n")
		cfg.segmentSize = 3

		_, err := runReplay(cfg)

		Expect(err).To(MatchError(ContainSubstring("invalid bank configuration")))
	})

	It("should report a malformed trace", func() {
		cfg.tracePath = writeTrace("GETS 0\nFLUSH 4\n")

		_, err := runReplay(cfg)

		Expect(err).To(MatchError(ContainSubstring("line 2")))
	})

	It("should report a missing trace", func() {
		cfg.tracePath = filepath.Join(dir, "none.txt")

		_, err := runReplay(cfg)

		Expect(err).To(MatchError(ContainSubstring("cannot open trace")))
	})
})
