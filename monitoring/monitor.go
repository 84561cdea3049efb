// Package monitoring serves the state of running banks over HTTP while a
// trace is being replayed.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/bdicache/cache"
	"github.com/sarchlab/bdicache/stats"
	"github.com/sarchlab/bdicache/tagging"
)

// Monitor exposes banks and progress bars through a web server.
//
// Banks are not safe for concurrent use. The replay loop must change them only
// inside Guard so that the server never reads a bank halfway through an
// access.
type Monitor struct {
	portNumber int
	logger     *logrus.Logger

	stateLock sync.Mutex
	banks     []*cache.Bank

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{logger: logrus.StandardLogger()}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warnf("port %d is not allowed for monitoring, "+
			"using a random port instead", portNumber)

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets where the monitor reports server errors.
func (m *Monitor) WithLogger(logger *logrus.Logger) *Monitor {
	m.logger = logger
	return m
}

// RegisterBank adds a bank to be monitored.
func (m *Monitor) RegisterBank(b *cache.Bank) {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	m.banks = append(m.banks, b)
}

// Guard runs fn while the server is not reading any bank.
func (m *Monitor) Guard(fn func()) {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	fn()
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := newProgressBar(name, total)

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the handler of every API route.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/list_banks", m.listBanks)
	r.HandleFunc("/api/bank/{name}", m.bankSummary)
	r.HandleFunc("/api/bank/{name}/details", m.bankDetails)
	r.HandleFunc("/api/bank/{name}/set/{set:[0-9]+}", m.setContent)
	r.HandleFunc("/api/field/{json}", m.fieldValue)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer starts serving in the background and returns the URL of the
// server.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("cannot start the monitor: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring replay with %s\n", url)

	go func() {
		err := http.Serve(listener, m.Router())
		m.logger.WithError(err).Error("monitor stopped")
	}()

	return url, nil
}

func (m *Monitor) listBanks(w http.ResponseWriter, _ *http.Request) {
	m.stateLock.Lock()
	names := make([]string, 0, len(m.banks))
	for _, b := range m.banks {
		names = append(names, b.Name())
	}
	m.stateLock.Unlock()

	m.writeJSON(w, names)
}

type bankSummaryRsp struct {
	Name          string          `json:"name"`
	LineSize      int             `json:"line_size"`
	SegmentSize   int             `json:"segment_size"`
	NumSets       int             `json:"num_sets"`
	Associativity int             `json:"associativity"`
	Budget        int             `json:"budget"`
	Stats         *stats.Snapshot `json:"stats,omitempty"`
}

type snapshotter interface {
	Snapshot() stats.Snapshot
}

func (m *Monitor) bankSummary(w http.ResponseWriter, r *http.Request) {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	b := m.findBankOr404(w, mux.Vars(r)["name"])
	if b == nil {
		return
	}

	rsp := bankSummaryRsp{
		Name:          b.Name(),
		LineSize:      b.LineSize(),
		SegmentSize:   b.SegmentSize(),
		NumSets:       b.Array().NumSets(),
		Associativity: b.Array().Associativity(),
		Budget:        b.Budget(),
	}

	if s, ok := b.Collector().(snapshotter); ok {
		snapshot := s.Snapshot()
		rsp.Stats = &snapshot
	}

	m.writeJSON(w, rsp)
}

func (m *Monitor) bankDetails(w http.ResponseWriter, r *http.Request) {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	b := m.findBankOr404(w, mux.Vars(r)["name"])
	if b == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(b)
	serializer.SetMaxDepth(1)

	if err := serializer.Serialize(w); err != nil {
		m.logger.WithError(err).Error("cannot serialize bank")
	}
}

type setContentRsp struct {
	SetID  int            `json:"set_id"`
	Size   int            `json:"size"`
	Budget int            `json:"budget"`
	Lines  []tagging.Line `json:"lines"`
}

func (m *Monitor) setContent(w http.ResponseWriter, r *http.Request) {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	b := m.findBankOr404(w, mux.Vars(r)["name"])
	if b == nil {
		return
	}

	array := b.Array()

	setID, err := strconv.Atoi(mux.Vars(r)["set"])
	if err != nil || setID >= array.NumSets() {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "set %s does not exist", mux.Vars(r)["set"])

		return
	}

	rsp := setContentRsp{
		SetID:  setID,
		Size:   array.SetSize(setID),
		Budget: array.SetBudget(),
	}

	rsp.Lines = array.SetLines(setID)

	m.writeJSON(w, rsp)
}

type fieldReq struct {
	BankName  string `json:"bank_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) fieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	b := m.findBankOr404(w, req.BankName)
	if b == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(b)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	if err := serializer.Serialize(w); err != nil {
		m.logger.WithError(err).Error("cannot serialize field")
	}
}

func (m *Monitor) findBankOr404(
	w http.ResponseWriter,
	name string,
) *cache.Bank {
	for _, b := range m.banks {
		if b.Name() == name {
			return b
		}
	}

	w.WriteHeader(http.StatusNotFound)
	fmt.Fprint(w, "Bank not found")

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	rsp, err := currentResources()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	m.writeJSON(w, rsp)
}

func currentResources() (resourceRsp, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return resourceRsp{}, err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return resourceRsp{}, err
	}

	memoryInfo, err := p.MemoryInfo()
	if err != nil {
		return resourceRsp{}, err
	}

	return resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	}, nil
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	time.Sleep(time.Second)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.logger.WithError(err).Error("cannot write response")
	}
}
