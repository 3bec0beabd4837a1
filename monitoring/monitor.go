// Package monitoring serves the progress of a running attack over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"reflect"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/cacheleak/attack"
	"github.com/sarchlab/cacheleak/hooking"
)

// Monitor turns an attack into a server that reports its progress. It is a
// hook; attach it to the orchestrator.
//
// The server runs on its own goroutine while the attack mutates the
// registered objects without locking. While a tracked attack runs, handlers
// serve only copies taken in hooks. Registered objects can be inspected
// before Track or after the attack is done.
type Monitor struct {
	portNumber int
	listener   net.Listener

	lock      sync.Mutex
	objects   map[string]any
	bars      []*ProgressBar
	roundBar  *ProgressBar
	byteBar   *ProgressBar
	status    Status
	decided   []byteStatus
	hits      []uint64
	running   bool
	openOnRun bool
}

// Status is the position of the attack.
type Status struct {
	State   string `json:"state"`
	Offset  int    `json:"offset"`
	Round   int    `json:"round"`
	Decided int    `json:"decided"`
	Total   int    `json:"total"`
	Secret  string `json:"secret"`
}

type byteStatus struct {
	Offset  int    `json:"offset"`
	Address string `json:"address"`
	Value   int    `json:"value"`
	Hits    uint64 `json:"hits"`
	Verdict string `json:"verdict"`
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		objects: make(map[string]any),
		status:  Status{State: attack.StateInit.String()},
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitor in a web browser.
func (m *Monitor) WithBrowser() *Monitor {
	m.openOnRun = true
	return m
}

// RegisterObject exposes an object, such as the orchestrator or the
// machine, for inspection.
func (m *Monitor) RegisterObject(name string, obj any) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.objects[name] = obj
}

// Track prepares the progress bars of an attack on secretLength bytes with
// rounds rounds each. Call it before the attack starts. Registered objects
// cannot be inspected from then until the attack is done.
func (m *Monitor) Track(secretLength, rounds int) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.running = true

	m.roundBar = newProgressBar("Rounds", uint64(secretLength*rounds))
	m.byteBar = newProgressBar("Bytes", uint64(secretLength))
	m.bars = append(m.bars, m.roundBar, m.byteBar)
	m.status.Total = secretLength
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := newProgressBar(name, total)

	m.lock.Lock()
	defer m.lock.Unlock()

	m.bars = append(m.bars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.lock.Lock()
	defer m.lock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.bars))
	for _, b := range m.bars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.bars = newBars
}

// Status returns the position of the attack.
func (m *Monitor) Status() Status {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.status
}

// Func updates the monitor from an attack event.
func (m *Monitor) Func(ctx hooking.HookCtx) {
	m.lock.Lock()
	defer m.lock.Unlock()

	switch ctx.Pos {
	case attack.HookPosRoundEnd:
		info := ctx.Detail.(attack.RoundInfo)
		m.status.State = attack.StateRounds.String()
		m.status.Offset = info.Offset
		m.status.Round = info.Round
		m.hits = append(m.hits[:0], info.Hits...)

		if m.roundBar != nil {
			m.roundBar.IncrementFinished(1)
		}
	case attack.HookPosByteDecided:
		b := ctx.Detail.(attack.ByteResult)
		m.status.State = attack.StateDecide.String()
		m.status.Decided++
		m.status.Secret += string([]byte{b.Value})
		m.decided = append(m.decided, byteStatus{
			Offset:  b.Offset,
			Address: fmt.Sprintf("0x%x", b.Address),
			Value:   int(b.Value),
			Hits:    b.Hits,
			Verdict: b.Verdict.String(),
		})

		if m.byteBar != nil {
			m.byteBar.IncrementFinished(1)
		}
	case attack.HookPosDone:
		m.status.State = attack.StateDone.String()
		m.running = false
	}
}

// Router returns the HTTP routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/status", m.getStatus)
	r.HandleFunc("/api/bytes", m.listBytes)
	r.HandleFunc("/api/hits", m.listHits)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/list_objects", m.listObjects)
	r.HandleFunc("/api/object/{name}", m.objectDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/value/{name}/{fields}", m.fieldValue)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.HandleFunc("/", m.index)

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.listener = listener
	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring attack with %s\n", url)

	router := m.Router()

	go func() {
		err := http.Serve(listener, router)
		if err != nil && !isClosedErr(err) {
			log.Panic(err)
		}
	}()

	if m.openOnRun {
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %s\n", err)
		}
	}

	return url
}

// StopServer closes the listener started by StartServer.
func (m *Monitor) StopServer() {
	if m.listener == nil {
		return
	}

	m.listener.Close()
	m.listener = nil
}

func isClosedErr(err error) bool {
	return strings.Contains(err.Error(), "use of closed network connection")
}

func (m *Monitor) index(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintln(w, "cacheleak monitor")
	fmt.Fprintln(w, "/api/status /api/bytes /api/hits /api/progress "+
		"/api/list_objects "+
		"/api/object/{name} /api/value/{name}/{a.b.c} /api/resource "+
		"/api/profile")
}

func (m *Monitor) getStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.Status())
}

func (m *Monitor) listBytes(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	decided := append([]byteStatus{}, m.decided...)
	m.lock.Unlock()

	writeJSON(w, decided)
}

func (m *Monitor) listHits(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	hits := append([]uint64{}, m.hits...)
	m.lock.Unlock()

	writeJSON(w, hits)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	bars := make([]progressSnapshot, 0, len(m.bars))
	for _, b := range m.bars {
		bars = append(bars, b.snapshot())
	}
	m.lock.Unlock()

	writeJSON(w, bars)
}

func (m *Monitor) listObjects(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	names := make([]string, 0, len(m.objects))
	for name := range m.objects {
		names = append(names, name)
	}
	m.lock.Unlock()

	sort.Strings(names)
	writeJSON(w, names)
}

func (m *Monitor) objectDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	m.inspect(w, name, func(obj any) {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(obj)
		serializer.SetMaxDepth(1)
		err := serializer.Serialize(w)

		dieOnErr(err)
	})
}

type fieldReq struct {
	ObjName   string `json:"obj_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	m.inspect(w, req.ObjName, func(obj any) {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(obj)
		serializer.SetMaxDepth(1)

		err := serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
		dieOnErr(err)

		err = serializer.Serialize(w)
		dieOnErr(err)
	})
}

func (m *Monitor) fieldValue(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	m.inspect(w, vars["name"], func(obj any) {
		elem, err := m.walkFields(obj, vars["fields"])
		if err != nil || !elem.IsValid() {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Error: cannot walk %s", vars["fields"])

			return
		}

		fmt.Fprintf(w, "{\"value\":%q}", fmt.Sprint(readValue(elem)))
	})
}

func readValue(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.Bool:
		return v.Bool()
	case reflect.String:
		return v.String()
	default:
		return v.Type().String()
	}
}

type fieldFormatError struct {
}

func (e fieldFormatError) Error() string {
	return "fieldFormatError"
}

func (m *Monitor) walkFields(
	obj any,
	fields string,
) (reflect.Value, error) {
	elem := reflect.ValueOf(obj)

	fieldNames := strings.Split(fields, ".")

	for len(fieldNames) > 0 {
		switch elem.Kind() {
		case reflect.Ptr, reflect.Interface:
			elem = elem.Elem()
		case reflect.Struct:
			elem = elem.FieldByName(fieldNames[0])
			fieldNames = fieldNames[1:]
		case reflect.Slice:
			index, err := strconv.Atoi(fieldNames[0])
			if err != nil || index < 0 || index >= elem.Len() {
				return elem, fieldFormatError{}
			}

			elem = elem.Index(index)
			fieldNames = fieldNames[1:]
		default:
			return elem, fieldFormatError{}
		}
	}

	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}

	return elem, nil
}

// inspect runs read on a registered object while holding the lock that the
// hooks take. It answers 409 while a tracked attack is running and 404 for
// unknown objects.
func (m *Monitor) inspect(
	w http.ResponseWriter,
	name string,
	read func(obj any),
) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.running {
		w.WriteHeader(http.StatusConflict)
		_, err := w.Write([]byte("Attack running"))
		dieOnErr(err)

		return
	}

	obj := m.objects[name]
	if obj == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Object not found"))
		dieOnErr(err)

		return
	}

	read(obj)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
