package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/epiworld-go/epiworld/db"
)

// CSVLogger writes simulation history as the nine files of spec.md S6,
// comma-separated (encoding/csv defaults, not whitespace-separated),
// one per logical table, named
// <basepath>.<suffix>.csv. Grounded on the teacher's CSVLogger
// (csv_logger.go): one path per output kind, computed once at
// construction.
type CSVLogger struct {
	basePath string
}

// NewCSVLogger returns a logger that writes files under basePath.
func NewCSVLogger(basePath string) *CSVLogger {
	return &CSVLogger{basePath: basePath}
}

func (l *CSVLogger) path(suffix string) string {
	return fmt.Sprintf("%s.%s.csv", l.basePath, suffix)
}

func (l *CSVLogger) writeRows(suffix string, header []string, rows [][]string) error {
	f, err := os.Create(l.path(suffix))
	if err != nil {
		return errors.Wrapf(ErrIOFailure, "creating %s: %s", l.path(suffix), err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return errors.Wrapf(ErrIOFailure, "writing %s header: %s", l.path(suffix), err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return errors.Wrapf(ErrIOFailure, "writing %s row: %s", l.path(suffix), err)
		}
	}
	w.Flush()
	return w.Error()
}

func itoa(i int) string { return strconv.Itoa(i) }

// WriteVirusInfo implements DataLogger (virus_info.csv).
func (l *CSVLogger) WriteVirusInfo(infos []db.VirusInfo) error {
	rows := make([][]string, 0, len(infos))
	for _, v := range infos {
		rows = append(rows, []string{itoa(v.ID), v.UID.String(), v.Name, itoa(v.Sequence), itoa(v.DateFirstRecorded), itoa(v.ParentID)})
	}
	return l.writeRows("virus_info", []string{"virus_id", "virus_uid", "virus_name", "sequence", "date_first_recorded", "parent_virus_id"}, rows)
}

// WriteVirusHistory implements DataLogger (virus_hist.csv).
func (l *CSVLogger) WriteVirusHistory(hist []db.VirusStateCount, labels StateLabeler, names func(int) string) error {
	rows := make([][]string, 0, len(hist))
	for _, r := range hist {
		rows = append(rows, []string{itoa(r.Date), itoa(r.VirusID), names(r.VirusID), labels(r.State), itoa(r.Count)})
	}
	return l.writeRows("virus_hist", []string{"date", "virus_id", "virus_name", "state_label", "count"}, rows)
}

// WriteToolInfo implements DataLogger (tool_info.csv).
func (l *CSVLogger) WriteToolInfo(infos []db.ToolInfo) error {
	rows := make([][]string, 0, len(infos))
	for _, t := range infos {
		rows = append(rows, []string{itoa(t.ID), t.UID.String(), t.Name, itoa(t.Sequence), itoa(t.DateFirstRecorded)})
	}
	return l.writeRows("tool_info", []string{"id", "tool_uid", "tool_name", "sequence", "date_first_recorded"}, rows)
}

// WriteToolHistory implements DataLogger (tool_hist.csv).
func (l *CSVLogger) WriteToolHistory(hist []db.ToolStateCount, labels StateLabeler, names func(int) string) error {
	rows := make([][]string, 0, len(hist))
	for _, r := range hist {
		rows = append(rows, []string{itoa(r.Date), itoa(r.ToolID), labels(r.State), itoa(r.Count)})
	}
	return l.writeRows("tool_hist", []string{"date", "id", "state_label", "count"}, rows)
}

// WriteTotalHistory implements DataLogger (total_hist.csv).
func (l *CSVLogger) WriteTotalHistory(hist []db.StateCount, labels StateLabeler, nVirusesAt func(date int) int) error {
	rows := make([][]string, 0, len(hist))
	for _, r := range hist {
		rows = append(rows, []string{itoa(r.Date), itoa(nVirusesAt(r.Date)), labels(r.State), itoa(r.Count)})
	}
	return l.writeRows("total_hist", []string{"date", "n_active_viruses", "state_label", "count"}, rows)
}

// WriteTransmissions implements DataLogger (transmission.csv).
func (l *CSVLogger) WriteTransmissions(events []db.Transmission, names func(int) string) error {
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{
			itoa(e.Date), itoa(e.VirusID), names(e.VirusID), itoa(e.SourceExposureDate), itoa(e.Source), itoa(e.Target),
		})
	}
	return l.writeRows("transmission", []string{"date", "virus_id", "virus_name", "source_exposure_date", "source", "target"}, rows)
}

// WriteTransitionHistory implements DataLogger (transition.csv).
func (l *CSVLogger) WriteTransitionHistory(snaps []db.TransitionSnapshot, labels StateLabeler) error {
	var rows [][]string
	for _, snap := range snaps {
		nstates := 0
		for nstates*nstates < len(snap.Matrix) {
			nstates++
		}
		for to := 0; to < nstates; to++ {
			for from := 0; from < nstates; from++ {
				count := snap.Matrix[to*nstates+from]
				rows = append(rows, []string{itoa(snap.Date), labels(from), labels(to), itoa(count)})
			}
		}
	}
	return l.writeRows("transition", []string{"date", "from_label", "to_label", "counts"}, rows)
}

// WriteReproductiveNumber implements DataLogger (reproductive_number.csv).
func (l *CSVLogger) WriteReproductiveNumber(rows []db.RtRecord, names func(int) string) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{itoa(r.VirusID), names(r.VirusID), itoa(r.Source), itoa(r.SourceExposureDate), itoa(r.Rt)})
	}
	return l.writeRows("reproductive_number", []string{"virus_id", "virus_name", "source", "source_exposure_date", "rt"}, out)
}

// WriteGenerationTime implements DataLogger (generation_time.csv).
func (l *CSVLogger) WriteGenerationTime(rows []db.GenTimeRecord) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{itoa(r.VirusID), itoa(r.Source), itoa(r.SourceExposureDate), itoa(r.GenTime)})
	}
	return l.writeRows("generation_time", []string{"virus_id", "source", "source_exposure_date", "gentime"}, out)
}

// Close is a no-op: CSVLogger opens and closes each file per write.
func (l *CSVLogger) Close() error { return nil }
