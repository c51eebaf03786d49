// Package monitoring serves a running core over HTTP so that its state can
// be inspected and advanced from a browser or a script.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/tomasim/timing/core"
)

// Monitor turns a simulation into a server. Every request holds the core
// lock, so a request that advances the core finishes before the next one is
// served.
type Monitor struct {
	lock       sync.Mutex
	core       *core.Core
	entry      uint32
	portNumber int
	logger     *slog.Logger
	listener   net.Listener
}

// NewMonitor creates a Monitor for c. The current PC of c is where a reset
// restarts.
func NewMonitor(c *core.Core) *Monitor {
	return &Monitor{
		core:   c,
		entry:  c.Pipeline.PC(),
		logger: slog.New(slog.DiscardHandler),
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// replaced with a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		portNumber = 0
	}
	m.portNumber = portNumber
	return m
}

// WithLogger sets the logger for server events.
func (m *Monitor) WithLogger(logger *slog.Logger) *Monitor {
	m.logger = logger
	return m
}

// Handler returns the API router.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/now", m.now).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", m.stats).Methods(http.MethodGet)
	r.HandleFunc("/api/state", m.state).Methods(http.MethodGet)
	r.HandleFunc("/api/dump", m.dump).Methods(http.MethodGet)
	r.HandleFunc("/api/tick/{cycles:[0-9]+}", m.tick).Methods(http.MethodPost)
	r.HandleFunc("/api/run", m.run).Methods(http.MethodPost)
	r.HandleFunc("/api/reset", m.reset).Methods(http.MethodPost)
	r.HandleFunc("/api/resource", m.resource).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.profile).Methods(http.MethodGet)
	return r
}

// StartServer listens on the configured port and serves the API in the
// background. It returns the URL of the server.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", "localhost:"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", err
	}
	m.listener = listener

	url := fmt.Sprintf("http://localhost:%d", listener.Addr().(*net.TCPAddr).Port)
	m.logger.Info("monitoring simulation", "url", url)

	go func() {
		err := http.Serve(listener, m.Handler())
		if err != nil {
			m.logger.Debug("monitor stopped", "err", err)
		}
	}()

	return url, nil
}

// OpenBrowser opens url with the system browser.
func (m *Monitor) OpenBrowser(url string) error {
	browser.Stdout = io.Discard
	browser.Stderr = os.Stderr
	return browser.OpenURL(url + "/api/state")
}

// Stop closes the listener.
func (m *Monitor) Stop() error {
	if m.listener == nil {
		return nil
	}
	return m.listener.Close()
}

type nowRsp struct {
	Cycle  uint64 `json:"cycle"`
	PC     uint32 `json:"pc"`
	Halted bool   `json:"halted"`
	Exit   uint8  `json:"exit_code"`
	Err    string `json:"error,omitempty"`
}

func (m *Monitor) snapshot() nowRsp {
	p := m.core.Pipeline
	rsp := nowRsp{
		Cycle:  p.Stats().Cycles,
		PC:     p.PC(),
		Halted: p.Halted(),
		Exit:   p.ExitCode(),
	}
	if err := p.Err(); err != nil {
		rsp.Err = err.Error()
	}
	return rsp
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	writeJSON(w, m.snapshot())
}

func (m *Monitor) stats(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	writeJSON(w, m.core.Pipeline.Stats())
}

func (m *Monitor) state(w http.ResponseWriter, r *http.Request) {
	depth := 3
	if d := r.URL.Query().Get("depth"); d != "" {
		v, err := strconv.Atoi(d)
		if err != nil || v < 1 {
			http.Error(w, "depth must be a positive integer", http.StatusBadRequest)
			return
		}
		depth = v
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(newStateView(m.core.Pipeline))
	serializer.SetMaxDepth(depth)

	w.Header().Set("Content-Type", "application/json")
	if err := serializer.Serialize(w); err != nil {
		m.logger.Error("serialize state", "err", err)
	}
}

func (m *Monitor) dump(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	w.Header().Set("Content-Type", "text/plain")
	m.core.Pipeline.Dump(w)
}

func (m *Monitor) tick(w http.ResponseWriter, r *http.Request) {
	cycles, err := strconv.ParseUint(mux.Vars(r)["cycles"], 10, 64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	if _, err := m.core.RunCycles(cycles); err != nil {
		m.logger.Warn("tick failed", "err", err)
	}
	writeJSON(w, m.snapshot())
}

func (m *Monitor) run(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, err := m.core.Run(); err != nil {
		m.logger.Warn("run failed", "err", err)
	}
	writeJSON(w, m.snapshot())
}

func (m *Monitor) reset(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.core.Reset()
	m.core.SetPC(m.entry)
	writeJSON(w, m.snapshot())
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) resource(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceRsp{CPUPercent: cpuPercent, MemorySize: memInfo.RSS})
}

// profile samples the process for the requested number of milliseconds
// (default 1000) and reports the hottest functions.
func (m *Monitor) profile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second
	if ms := r.URL.Query().Get("ms"); ms != "" {
		v, err := strconv.Atoi(ms)
		if err != nil || v <= 0 {
			http.Error(w, "ms must be a positive integer", http.StatusBadRequest)
			return
		}
		duration = time.Duration(v) * time.Millisecond
	}

	buf := bytes.NewBuffer(nil)
	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	time.Sleep(duration)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, TopFunctions(prof, 20))
}

// FunctionSamples is the flat sample count of one function.
type FunctionSamples struct {
	Name    string `json:"name"`
	Samples int64  `json:"samples"`
}

// TopFunctions returns the n functions with the most flat samples in prof,
// counting the first sample value of the leaf frame of each sample.
func TopFunctions(prof *profile.Profile, n int) []FunctionSamples {
	flat := make(map[string]int64)
	for _, s := range prof.Sample {
		if len(s.Location) == 0 || len(s.Value) == 0 {
			continue
		}
		lines := s.Location[0].Line
		if len(lines) == 0 || lines[0].Function == nil {
			continue
		}
		flat[lines[0].Function.Name] += s.Value[0]
	}

	out := make([]FunctionSamples, 0, len(flat))
	for name, v := range flat {
		out = append(out, FunctionSamples{Name: name, Samples: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Samples != out[j].Samples {
			return out[i].Samples > out[j].Samples
		}
		return out[i].Name < out[j].Name
	})

	if len(out) > n {
		out = out[:n]
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
