// Package report writes a Database's accumulated history out to the
// nine named files of spec.md S6, in either CSV or SQLite form. Both
// loggers implement DataLogger, mirroring the teacher's
// CSVLogger/SQLiteLogger pair in csv_logger.go/sqlite_logger.go.
package report

import "github.com/epiworld-go/epiworld/db"

// StateLabeler resolves a state id to its display label for report
// columns. Models that don't register labels fall back to the numeric
// id rendered as a string.
type StateLabeler func(state int) string

// DataLogger writes one Database's full history to its backing store.
type DataLogger interface {
	WriteVirusInfo(infos []db.VirusInfo) error
	WriteVirusHistory(rows []db.VirusStateCount, labels StateLabeler, names func(int) string) error
	WriteToolInfo(infos []db.ToolInfo) error
	WriteToolHistory(rows []db.ToolStateCount, labels StateLabeler, names func(int) string) error
	WriteTotalHistory(rows []db.StateCount, labels StateLabeler, nVirusesAt func(date int) int) error
	WriteTransmissions(rows []db.Transmission, names func(int) string) error
	WriteTransitionHistory(snaps []db.TransitionSnapshot, labels StateLabeler) error
	WriteReproductiveNumber(rows []db.RtRecord, names func(int) string) error
	WriteGenerationTime(rows []db.GenTimeRecord) error
	Close() error
}

// WriteAll drives every DataLogger method off one Database snapshot,
// matching the nine-file output contract of spec.md S6.
func WriteAll(logger DataLogger, database *db.Database, labels StateLabeler, virusName, toolName func(int) string) error {
	if err := logger.WriteVirusInfo(database.Viruses()); err != nil {
		return err
	}
	if err := logger.WriteVirusHistory(database.VirusHistory(), labels, virusName); err != nil {
		return err
	}
	if err := logger.WriteToolInfo(database.Tools()); err != nil {
		return err
	}
	if err := logger.WriteToolHistory(database.ToolHistory(), labels, toolName); err != nil {
		return err
	}
	nVirusesByDate := countVirusesByDate(database)
	if err := logger.WriteTotalHistory(database.StateHistory(), labels, nVirusesByDate); err != nil {
		return err
	}
	if err := logger.WriteTransmissions(database.Transmissions(), virusName); err != nil {
		return err
	}
	if err := logger.WriteTransitionHistory(database.TransitionHistory(), labels); err != nil {
		return err
	}
	if err := logger.WriteReproductiveNumber(database.ReproductiveNumber(), virusName); err != nil {
		return err
	}
	if err := logger.WriteGenerationTime(database.GenerationTime()); err != nil {
		return err
	}
	return nil
}

// countVirusesByDate returns a function counting distinct virus ids with
// a nonzero count on a given date, for total_hist.csv's n_active_viruses
// column.
func countVirusesByDate(database *db.Database) func(date int) int {
	byDate := make(map[int]map[int]bool)
	for _, row := range database.VirusHistory() {
		if row.Count == 0 {
			continue
		}
		if byDate[row.Date] == nil {
			byDate[row.Date] = make(map[int]bool)
		}
		byDate[row.Date][row.VirusID] = true
	}
	return func(date int) int { return len(byDate[date]) }
}
