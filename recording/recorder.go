package recording

import (
	"os"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sarchlab/cacheleak/attack"
	"github.com/sarchlab/cacheleak/hooking"
)

// Table names.
const (
	RunTable   = "run_info"
	RoundTable = "round"
	ByteTable  = "byte_result"
)

type runInfo struct {
	RunID    string
	Property string
	Value    string
}

type roundEntry struct {
	RunID      string
	Offset     int
	Round      int
	Candidates int
	BestValue  int
	BestHits   uint64
}

type byteEntry struct {
	RunID       string
	Offset      int
	Address     uint64
	Value       int
	Hits        uint64
	RunnerUp    int
	RunnerUpHit uint64
	Verdict     string
	Rounds      int
}

// A Recorder is a hook that writes the progress of an attack into a
// database. One recorder records one run.
type Recorder struct {
	writer      Writer
	runID       string
	skipRounds  bool
	timeFormat  string
	startLogged bool
}

// NewRecorder creates the tables and returns a recorder for a new run.
func NewRecorder(w Writer) *Recorder {
	r := &Recorder{
		writer:     w,
		runID:      xid.New().String(),
		timeFormat: "2006-01-02 15:04:05.000000000",
	}

	w.CreateTable(RunTable, runInfo{})
	w.CreateTable(RoundTable, roundEntry{})
	w.CreateTable(ByteTable, byteEntry{})

	return r
}

// SkipRounds stops per-round entries from being recorded.
func (r *Recorder) SkipRounds() *Recorder {
	r.skipRounds = true
	return r
}

// RunID returns the identifier of the recorded run.
func (r *Recorder) RunID() string {
	return r.runID
}

// RecordProperty stores one key-value fact about the run.
func (r *Recorder) RecordProperty(property, value string) {
	r.writer.InsertData(RunTable, runInfo{
		RunID:    r.runID,
		Property: property,
		Value:    value,
	})
}

// Start records the start time and the command line.
func (r *Recorder) Start() {
	r.RecordProperty("Start Time", time.Now().Format(r.timeFormat))
	r.RecordProperty("Command", strings.Join(os.Args, " "))
	r.startLogged = true
}

// Func records the hook context.
func (r *Recorder) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case attack.HookPosRoundEnd:
		if !r.skipRounds {
			r.recordRound(ctx.Detail.(attack.RoundInfo))
		}
	case attack.HookPosByteDecided:
		r.recordByte(ctx.Detail.(attack.ByteResult))
	case attack.HookPosDone:
		r.recordDone(ctx.Detail.(attack.Result))
	}
}

func (r *Recorder) recordRound(info attack.RoundInfo) {
	entry := roundEntry{
		RunID:  r.runID,
		Offset: info.Offset,
		Round:  info.Round,
	}

	for v, hits := range info.Hits {
		if hits == 0 {
			continue
		}

		entry.Candidates++

		if hits > entry.BestHits {
			entry.BestValue = v
			entry.BestHits = hits
		}
	}

	r.writer.InsertData(RoundTable, entry)
}

func (r *Recorder) recordByte(b attack.ByteResult) {
	r.writer.InsertData(ByteTable, byteEntry{
		RunID:       r.runID,
		Offset:      b.Offset,
		Address:     b.Address,
		Value:       int(b.Value),
		Hits:        b.Hits,
		RunnerUp:    int(b.RunnerUp.Value),
		RunnerUpHit: b.RunnerUp.Count,
		Verdict:     b.Verdict.String(),
		Rounds:      b.Rounds,
	})
}

func (r *Recorder) recordDone(result attack.Result) {
	if r.startLogged {
		r.RecordProperty("End Time", time.Now().Format(r.timeFormat))
	}

	r.RecordProperty("Secret", string(result.Secret()))

	r.writer.Flush()
}
