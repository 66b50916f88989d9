package db

import "testing"

const unexpectedErrorWhileError = "encountered error while %s: %s"
const unequalIntParameterError = "unequal %s: expected %d, got %d"

func TestDatabase_New_SeedsPopulationIntoStateZero(t *testing.T) {
	d := New(3, 10, 1)
	if err := d.VerifyInvariants(10); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "verifying freshly constructed database", err)
	}
	total := d.TodayTotal()
	if total[0] != 10 {
		t.Errorf(unequalIntParameterError, "today_total[0]", 10, total[0])
	}
}

func TestDatabase_TotalMove_UpdatesSumLaw(t *testing.T) {
	d := New(3, 10, 1)
	d.TotalMove(0, 1)
	d.DiagonalMove(0, -1)
	d.DiagonalMove(1, 1)
	if err := d.VerifyInvariants(10); err != nil {
		t.Fatalf(unexpectedErrorWhileError, "verifying after one move", err)
	}
}

func TestDatabase_Record_RediagonalizesMatrix(t *testing.T) {
	d := New(2, 5, 1)
	d.TotalMove(0, 1)
	d.TransitionMove(1, 0, 1)
	d.DiagonalMove(0, -1)
	d.Record(0)
	matrix := d.TransitionMatrix()
	// idx(to,from) = to*nstates+from; after Record, off-diagonals are zero
	// and the diagonal matches today_total.
	if matrix[0*2+1] != 0 {
		t.Errorf(unequalIntParameterError, "off-diagonal cell after record", 0, matrix[0*2+1])
	}
	total := d.TodayTotal()
	if matrix[0*2+0] != total[0] {
		t.Errorf(unequalIntParameterError, "diagonal[0] after record", total[0], matrix[0*2+0])
	}
	if matrix[1*2+1] != total[1] {
		t.Errorf(unequalIntParameterError, "diagonal[1] after record", total[1], matrix[1*2+1])
	}
}

func TestDatabase_Record_RespectsSamplingFrequency(t *testing.T) {
	d := New(2, 5, 3)
	for day := 0; day < 6; day++ {
		d.Record(day)
	}
	// Days 0 and 3 are recorded: day%3==0 (plus day==0 itself).
	want := 2
	if got := len(d.StateHistory()) / d.NumStates(); got != want {
		t.Errorf(unequalIntParameterError, "number of sampled days", want, got)
	}
}

func TestDatabase_RegisterVirus_AssignsSequentialIDs(t *testing.T) {
	d := New(2, 5, 1)
	id0 := d.RegisterVirus("wildtype", -1, 0)
	id1 := d.RegisterVirus("mutant", id0, 4)
	if id0 != 0 || id1 != 1 {
		t.Errorf("unequal sequential virus ids: expected 0,1, got %d,%d", id0, id1)
	}
	viruses := d.Viruses()
	if viruses[1].ParentID != id0 {
		t.Errorf(unequalIntParameterError, "mutant parent id", id0, viruses[1].ParentID)
	}
	if viruses[0].UID.IsNil() || viruses[1].UID.IsNil() {
		t.Error("expected every registered virus to carry a non-nil UID")
	}
	if viruses[0].UID == viruses[1].UID {
		t.Error("expected distinct viruses to carry distinct UIDs")
	}
}

func TestDatabase_Record_VirusAndToolHistoryRowsAreSortedByID(t *testing.T) {
	d := New(2, 10, 1)
	// Register several viruses/tools out of the order their rows should
	// come out in, so a map-iteration-order regression would show up as a
	// shuffled VirusID/ToolID sequence instead of a merely-wrong count.
	ids := []int{}
	for _, name := range []string{"c", "a", "b", "e", "d"} {
		ids = append(ids, d.RegisterVirus(name, -1, 0))
	}
	for _, vid := range ids {
		d.VirusInc(vid, 0)
	}
	tids := []int{}
	for _, name := range []string{"z", "y", "x"} {
		tids = append(tids, d.RegisterTool(name, 0))
	}
	for _, tid := range tids {
		d.ToolInc(tid, 0)
	}

	d.Record(1)

	var seenVirusIDs []int
	for _, row := range d.VirusHistory() {
		if row.Date != 1 || row.State != 0 {
			continue
		}
		seenVirusIDs = append(seenVirusIDs, row.VirusID)
	}
	for i := 1; i < len(seenVirusIDs); i++ {
		if seenVirusIDs[i] <= seenVirusIDs[i-1] {
			t.Fatalf("virus_hist rows are not sorted ascending by virus id: %v", seenVirusIDs)
		}
	}

	var seenToolIDs []int
	for _, row := range d.ToolHistory() {
		if row.Date != 1 || row.State != 0 {
			continue
		}
		seenToolIDs = append(seenToolIDs, row.ToolID)
	}
	for i := 1; i < len(seenToolIDs); i++ {
		if seenToolIDs[i] <= seenToolIDs[i-1] {
			t.Fatalf("tool_hist rows are not sorted ascending by tool id: %v", seenToolIDs)
		}
	}
}

func TestDatabase_ReproductiveNumber_CountsOnwardTransmissions(t *testing.T) {
	d := New(3, 10, 1)
	d.RegisterVirus("flu", -1, 0)
	// Agent 0 (exposed day 0) infects agents 1 and 2. Agent 1 (exposed day
	// 2) infects nobody. Agent 2 (exposed day 2) infects agent 3.
	d.RecordTransmission(2, 0, 1, 0, 0)
	d.RecordTransmission(2, 0, 2, 0, 0)
	d.RecordTransmission(5, 2, 3, 0, 2)

	byAgent := make(map[int]RtRecord)
	for _, r := range d.ReproductiveNumber() {
		byAgent[r.Source] = r
	}
	if byAgent[0].Rt != 2 {
		t.Errorf(unequalIntParameterError, "Rt for agent 0", 2, byAgent[0].Rt)
	}
	if byAgent[1].Rt != 0 {
		t.Errorf(unequalIntParameterError, "Rt for agent 1", 0, byAgent[1].Rt)
	}
	if byAgent[2].Rt != 1 {
		t.Errorf(unequalIntParameterError, "Rt for agent 2", 1, byAgent[2].Rt)
	}
	if _, ok := byAgent[3]; !ok {
		t.Error("expected a zero-Rt case entry for agent 3 as a newly infected target")
	}
}

func TestDatabase_GenerationTime_FindsFirstOnwardTransmission(t *testing.T) {
	d := New(3, 10, 1)
	d.RecordTransmission(2, 0, 1, 0, 0)
	d.RecordTransmission(6, 1, 4, 0, 2)
	d.RecordTransmission(9, 1, 5, 0, 2)
	d.RecordTransmission(10, 2, 3, 0, 0)

	gen := d.GenerationTime()
	var forAgentZero, forAgentTwo GenTimeRecord
	for _, r := range gen {
		if r.Source == 0 && r.SourceExposureDate == 0 {
			forAgentZero = r
		}
		if r.Source == 2 {
			forAgentTwo = r
		}
	}
	if forAgentZero.GenTime != 4 {
		t.Errorf(unequalIntParameterError, "generation time for agent 0's transmission", 4, forAgentZero.GenTime)
	}
	if forAgentTwo.GenTime != -1 {
		t.Errorf(unequalIntParameterError, "generation time for agent 2's transmission with no onward spread", -1, forAgentTwo.GenTime)
	}
}

func TestDatabase_TransitionProbability_NormalizesRows(t *testing.T) {
	d := New(2, 10, 1)
	d.TotalMove(0, 1)
	d.TransitionMove(1, 0, 1)
	d.DiagonalMove(0, -1)
	d.Record(0)
	// After one day, 9 agents stayed in state 0, 1 moved 0->1; Record
	// snapshots the matrix before re-diagonalizing, so the move survives
	// into history.
	probs := d.TransitionProbability()
	if probs[0][1] != 0.1 {
		t.Errorf("unequal transition probability: expected row 0 -> 1 to be 0.1, got %f", probs[0][1])
	}
	if probs[0][0] != 0.9 {
		t.Errorf("unequal transition probability: expected row 0 -> 0 to be 0.9, got %f", probs[0][0])
	}
}

func TestDatabase_VerifyInvariants_CatchesNegativeCount(t *testing.T) {
	d := New(2, 5, 1)
	d.VirusInc(0, 0)
	d.VirusDec(0, 0)
	d.VirusDec(0, 0)
	if err := d.VerifyInvariants(5); err == nil {
		t.Error("expected an error while verifying a negative today_virus count, instead got none")
	}
}
