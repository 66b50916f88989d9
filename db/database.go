// Package db implements the transition-matrix database (spec.md S4.8,
// component C8): today's per-state and per-virus/tool stratified counts,
// the current transition matrix and its per-day snapshots, the
// transmission event log, and the derived statistics computed from them.
//
// Database is intentionally independent of the epiworld package's Agent/
// Virus/Tool types: it only ever sees integer state ids and integer
// registered virus/tool ids, the same way the teacher's SISimulation
// keeps status bookkeeping (HostStatus/SetHostStatus) as plain int maps
// decoupled from the Host type.
package db

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
)

// StateCount is one (date, state, count) history row (total_hist.csv).
type StateCount struct {
	Date, State, Count int
}

// VirusStateCount is one (date, virus, state, count) history row
// (virus_hist.csv).
type VirusStateCount struct {
	Date, VirusID, State, Count int
}

// ToolStateCount is one (date, tool, state, count) history row
// (tool_hist.csv).
type ToolStateCount struct {
	Date, ToolID, State, Count int
}

// TransitionSnapshot is the flattened nstates*nstates transition matrix
// recorded for one day.
type TransitionSnapshot struct {
	Date   int
	Matrix []int
}

// Transmission is one transmission event: on Date, Source infected
// Target with VirusID; Source had been exposed since SourceExposureDate.
type Transmission struct {
	Date               int
	Source             int
	Target             int
	VirusID            int
	SourceExposureDate int
}

// VirusInfo is one registered virus variant (virus_info.csv). UID is an
// opaque, globally sortable identifier independent of the registration
// counter ID, the way the teacher's genotype tree nodes carry a
// ksuid.KSUID alongside their tree index (genotype.go). A fresh UID is
// minted at every registration, so it differs between replicates.
type VirusInfo struct {
	ID                int
	UID               ksuid.KSUID
	Name              string
	Sequence          int
	DateFirstRecorded int
	ParentID          int
}

// ToolInfo is one registered tool (tool_info.csv).
type ToolInfo struct {
	ID                int
	UID               ksuid.KSUID
	Name              string
	Sequence          int
	DateFirstRecorded int
}

// RtRecord is one row of the reproductive-number report.
type RtRecord struct {
	VirusID            int
	Source             int
	SourceExposureDate int
	Rt                 int
}

// GenTimeRecord is one row of the generation-time report.
type GenTimeRecord struct {
	VirusID            int
	Source             int
	SourceExposureDate int
	GenTime            int
}

// Database owns all per-day counters and their history.
type Database struct {
	mu sync.RWMutex

	nstates      int
	samplingFreq int
	today        int

	todayTotal       []int
	todayVirus       map[int][]int
	todayTool        map[int][]int
	transitionMatrix []int // idx(to,from) = to*nstates + from

	stateHistory      []StateCount
	virusHistory      []VirusStateCount
	toolHistory       []ToolStateCount
	transitionHistory []TransitionSnapshot
	transmissions     []Transmission

	viruses []VirusInfo
	tools   []ToolInfo
}

// New creates a Database for a model with nstates states and an initial
// population of n agents, all starting in state 0, recording history
// every samplingFreq days (1 means every day).
func New(nstates, n, samplingFreq int) *Database {
	if samplingFreq < 1 {
		samplingFreq = 1
	}
	d := &Database{
		nstates:          nstates,
		samplingFreq:     samplingFreq,
		todayTotal:       make([]int, nstates),
		todayVirus:       make(map[int][]int),
		todayTool:        make(map[int][]int),
		transitionMatrix: make([]int, nstates*nstates),
	}
	d.todayTotal[0] = n
	d.transitionMatrix[d.idx(0, 0)] = n
	return d
}

func (d *Database) idx(to, from int) int { return to*d.nstates + from }

// NumStates returns the configured number of states.
func (d *Database) NumStates() int { return d.nstates }

// Reset clears all counters and history, reinitializing the population
// of n agents into state 0. Used by Model.reset between replicates.
func (d *Database) Reset(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.today = 0
	for i := range d.todayTotal {
		d.todayTotal[i] = 0
	}
	d.todayTotal[0] = n
	d.todayVirus = make(map[int][]int)
	d.todayTool = make(map[int][]int)
	for i := range d.transitionMatrix {
		d.transitionMatrix[i] = 0
	}
	d.transitionMatrix[d.idx(0, 0)] = n
	d.stateHistory = nil
	d.virusHistory = nil
	d.toolHistory = nil
	d.transitionHistory = nil
	d.transmissions = nil
	d.viruses = nil
	d.tools = nil
}

// TotalMove moves one agent's contribution to today_total from "from" to
// "to". A no-op when from == to.
func (d *Database) TotalMove(from, to int) {
	if from == to {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.todayTotal[from]--
	d.todayTotal[to]++
}

func (d *Database) ensureVirusRow(vid int) {
	if _, ok := d.todayVirus[vid]; !ok {
		d.todayVirus[vid] = make([]int, d.nstates)
	}
}

func (d *Database) ensureToolRow(tid int) {
	if _, ok := d.todayTool[tid]; !ok {
		d.todayTool[tid] = make([]int, d.nstates)
	}
}

// VirusInc increments today_virus[vid][state] by one.
func (d *Database) VirusInc(vid, state int) {
	if vid < 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureVirusRow(vid)
	d.todayVirus[vid][state]++
}

// VirusDec decrements today_virus[vid][state] by one.
func (d *Database) VirusDec(vid, state int) {
	if vid < 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureVirusRow(vid)
	d.todayVirus[vid][state]--
}

// ToolInc increments today_tool[tid][state] by one.
func (d *Database) ToolInc(tid, state int) {
	if tid < 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureToolRow(tid)
	d.todayTool[tid][state]++
}

// ToolDec decrements today_tool[tid][state] by one.
func (d *Database) ToolDec(tid, state int) {
	if tid < 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureToolRow(tid)
	d.todayTool[tid][state]--
}

// TransitionMove adjusts the off-diagonal cell (to,from) by delta.
// Callers must ensure to != from; apart from Record's re-diagonalization,
// the diagonal is only touched by DiagonalMove so the two bookkeeping
// halves stay distinguishable.
func (d *Database) TransitionMove(to, from, delta int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transitionMatrix[d.idx(to, from)] += delta
}

// DiagonalMove adjusts the diagonal cell (state,state) by delta.
func (d *Database) DiagonalMove(state int, delta int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transitionMatrix[d.idx(state, state)] += delta
}

// TodayTotal returns a copy of the current per-state totals.
func (d *Database) TodayTotal() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]int, len(d.todayTotal))
	copy(out, d.todayTotal)
	return out
}

// TodayVirus returns a copy of today's per-state counts for vid, or a
// zeroed row if the virus has never been observed.
func (d *Database) TodayVirus(vid int) []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	row, ok := d.todayVirus[vid]
	out := make([]int, d.nstates)
	if ok {
		copy(out, row)
	}
	return out
}

// TodayTool returns a copy of today's per-state counts for tid.
func (d *Database) TodayTool(tid int) []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	row, ok := d.todayTool[tid]
	out := make([]int, d.nstates)
	if ok {
		copy(out, row)
	}
	return out
}

// TransitionMatrix returns a copy of the current working matrix, flattened
// idx(to,from) = to*nstates+from.
func (d *Database) TransitionMatrix() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]int, len(d.transitionMatrix))
	copy(out, d.transitionMatrix)
	return out
}

// RegisterVirus assigns the next sequence number to a virus variant and
// returns its registered id. parentID is -1 for the baseline (unmutated)
// definition, or the id of the virus instance it mutated from.
func (d *Database) RegisterVirus(name string, parentID, dateFirstRecorded int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := len(d.viruses)
	d.viruses = append(d.viruses, VirusInfo{
		ID:                id,
		UID:               ksuid.New(),
		Name:              name,
		Sequence:          id,
		DateFirstRecorded: dateFirstRecorded,
		ParentID:          parentID,
	})
	return id
}

// RegisterTool assigns the next id to a tool.
func (d *Database) RegisterTool(name string, dateFirstRecorded int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := len(d.tools)
	d.tools = append(d.tools, ToolInfo{
		ID:                id,
		UID:               ksuid.New(),
		Name:              name,
		Sequence:          id,
		DateFirstRecorded: dateFirstRecorded,
	})
	return id
}

// RecordTransmission appends one transmission event to the log.
func (d *Database) RecordTransmission(date, source, target, virusID, sourceExposureDate int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transmissions = append(d.transmissions, Transmission{
		Date:               date,
		Source:             source,
		Target:             target,
		VirusID:            virusID,
		SourceExposureDate: sourceExposureDate,
	})
}

// Record appends today's counters to history (subject to samplingFreq)
// and re-diagonalizes the working transition matrix so its diagonal
// reflects the just-recorded final counts (spec.md S4.8).
func (d *Database) Record(date int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	record := date == 0 || date%d.samplingFreq == 0
	if record {
		for s := 0; s < d.nstates; s++ {
			d.stateHistory = append(d.stateHistory, StateCount{Date: date, State: s, Count: d.todayTotal[s]})
		}
		for _, vid := range sortedIntKeys(d.todayVirus) {
			row := d.todayVirus[vid]
			for s := 0; s < d.nstates; s++ {
				d.virusHistory = append(d.virusHistory, VirusStateCount{Date: date, VirusID: vid, State: s, Count: row[s]})
			}
		}
		for _, tid := range sortedIntKeys(d.todayTool) {
			row := d.todayTool[tid]
			for s := 0; s < d.nstates; s++ {
				d.toolHistory = append(d.toolHistory, ToolStateCount{Date: date, ToolID: tid, State: s, Count: row[s]})
			}
		}
		snap := make([]int, len(d.transitionMatrix))
		copy(snap, d.transitionMatrix)
		d.transitionHistory = append(d.transitionHistory, TransitionSnapshot{Date: date, Matrix: snap})
	}

	for to := 0; to < d.nstates; to++ {
		for from := 0; from < d.nstates; from++ {
			if to == from {
				d.transitionMatrix[d.idx(to, from)] = d.todayTotal[to]
			} else {
				d.transitionMatrix[d.idx(to, from)] = 0
			}
		}
	}
	d.today = date
}

// sortedIntKeys returns m's keys in ascending order, so history rows come
// out in a stable order across runs regardless of Go's randomized map
// iteration (spec.md S4.1/S5/S8: two runs of the same seed must produce
// identical DB contents, including row order). Callers already holding
// d.mu call this directly; SortedVirusIDs/SortedToolIDs wrap it with the
// lock for external callers.
func sortedIntKeys(m map[int][]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// SortedVirusIDs returns the registered virus ids with any observed
// today_virus row, in ascending order.
func (d *Database) SortedVirusIDs() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sortedIntKeys(d.todayVirus)
}

// SortedToolIDs returns the registered tool ids with any observed
// today_tool row, in ascending order.
func (d *Database) SortedToolIDs() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sortedIntKeys(d.todayTool)
}

// VerifyInvariants checks DB1 (sum law), DB2 (diagonal law), and
// non-negativity. Intended to be called only when Model.Debug is set.
func (d *Database) VerifyInvariants(n int) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sum := 0
	for s, c := range d.todayTotal {
		if c < 0 {
			return errors.Errorf("today_total[%d]=%d is negative", s, c)
		}
		sum += c
	}
	if sum != n {
		return errors.Errorf("sum law violated: total=%d want=%d", sum, n)
	}
	for s := 0; s < d.nstates; s++ {
		diag := d.transitionMatrix[d.idx(s, s)]
		if diag != d.todayTotal[s] {
			return errors.Errorf("diagonal law violated at state %d: matrix=%d total=%d", s, diag, d.todayTotal[s])
		}
	}
	for vid, row := range d.todayVirus {
		for s, c := range row {
			if c < 0 {
				return errors.Errorf("today_virus[%d][%d]=%d is negative", vid, s, c)
			}
		}
	}
	for tid, row := range d.todayTool {
		for s, c := range row {
			if c < 0 {
				return errors.Errorf("today_tool[%d][%d]=%d is negative", tid, s, c)
			}
		}
	}
	return nil
}

// Viruses returns the registered virus variants in registration order.
func (d *Database) Viruses() []VirusInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]VirusInfo, len(d.viruses))
	copy(out, d.viruses)
	return out
}

// Tools returns the registered tools in registration order.
func (d *Database) Tools() []ToolInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]ToolInfo, len(d.tools))
	copy(out, d.tools)
	return out
}

// StateHistory returns the full per-day, per-state history.
func (d *Database) StateHistory() []StateCount {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]StateCount, len(d.stateHistory))
	copy(out, d.stateHistory)
	return out
}

// VirusHistory returns the full per-day, per-virus, per-state history.
func (d *Database) VirusHistory() []VirusStateCount {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]VirusStateCount, len(d.virusHistory))
	copy(out, d.virusHistory)
	return out
}

// ToolHistory returns the full per-day, per-tool, per-state history.
func (d *Database) ToolHistory() []ToolStateCount {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]ToolStateCount, len(d.toolHistory))
	copy(out, d.toolHistory)
	return out
}

// TransitionHistory returns every recorded day's transition-matrix
// snapshot.
func (d *Database) TransitionHistory() []TransitionSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]TransitionSnapshot, len(d.transitionHistory))
	copy(out, d.transitionHistory)
	return out
}

// Transmissions returns the full transmission log.
func (d *Database) Transmissions() []Transmission {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Transmission, len(d.transmissions))
	copy(out, d.transmissions)
	return out
}

// TransitionProbability sums every recorded snapshot and normalizes each
// from-state row to sum to 1 (spec.md S4.8).
func (d *Database) TransitionProbability() [][]float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sums := make([]int, d.nstates*d.nstates)
	for _, snap := range d.transitionHistory {
		for i, v := range snap.Matrix {
			sums[i] += v
		}
	}
	probs := make([][]float64, d.nstates)
	for from := 0; from < d.nstates; from++ {
		probs[from] = make([]float64, d.nstates)
		rowTotal := 0
		for to := 0; to < d.nstates; to++ {
			rowTotal += sums[d.idx(to, from)]
		}
		if rowTotal == 0 {
			continue
		}
		for to := 0; to < d.nstates; to++ {
			probs[from][to] = float64(sums[d.idx(to, from)]) / float64(rowTotal)
		}
	}
	return probs
}

type caseKey struct {
	VirusID, Agent, ExposureDate int
}

// ReproductiveNumber computes, for every distinct (virus, agent,
// exposure-date) infection case, how many onward transmissions it
// produced (spec.md S4.8).
func (d *Database) ReproductiveNumber() []RtRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	counts := make(map[caseKey]int)
	var order []caseKey
	ensure := func(k caseKey) {
		if _, ok := counts[k]; !ok {
			counts[k] = 0
			order = append(order, k)
		}
	}
	for _, t := range d.transmissions {
		src := caseKey{t.VirusID, t.Source, t.SourceExposureDate}
		ensure(src)
		counts[src]++
		ensure(caseKey{t.VirusID, t.Target, t.Date})
	}
	records := make([]RtRecord, 0, len(order))
	for _, k := range order {
		records = append(records, RtRecord{
			VirusID:            k.VirusID,
			Source:             k.Agent,
			SourceExposureDate: k.ExposureDate,
			Rt:                 counts[k],
		})
	}
	return records
}

// GenerationTime computes, for every transmission, the number of days
// until the first onward transmission sourced from its target, or -1 if
// none occurred (spec.md S4.8).
func (d *Database) GenerationTime() []GenTimeRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	records := make([]GenTimeRecord, 0, len(d.transmissions))
	for _, t := range d.transmissions {
		best := -1
		for _, t2 := range d.transmissions {
			if t2.VirusID == t.VirusID && t2.Source == t.Target && t2.Date >= t.Date {
				diff := t2.Date - t.Date
				if best == -1 || diff < best {
					best = diff
				}
			}
		}
		records = append(records, GenTimeRecord{
			VirusID:            t.VirusID,
			Source:             t.Source,
			SourceExposureDate: t.SourceExposureDate,
			GenTime:            best,
		})
	}
	return records
}
