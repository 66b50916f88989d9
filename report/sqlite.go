package report

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/epiworld-go/epiworld/db"
)

// SQLiteLogger writes simulation history into one SQLite database,
// one table per output kind, following the Schema constant in
// report/schema.go. Grounded on
// the teacher's SQLiteLogger (sqlite_logger.go: OpenSQLiteDB + one
// newTable call per logical table), simplified to a single database
// file instead of one file per table since a single run's entire
// history comfortably fits one file.
type SQLiteLogger struct {
	conn *sql.DB
}

// NewSQLiteLogger opens (creating if necessary) the SQLite database at
// path and creates its tables per Schema.
func NewSQLiteLogger(path string) (*SQLiteLogger, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(ErrIOFailure, "opening %s: %s", path, err)
	}
	if err := conn.Ping(); err != nil {
		return nil, errors.Wrapf(ErrIOFailure, "connecting to %s: %s", path, err)
	}
	if _, err := conn.Exec(Schema); err != nil {
		return nil, errors.Wrapf(ErrIOFailure, "creating schema in %s: %s", path, err)
	}
	return &SQLiteLogger{conn: conn}, nil
}

func (l *SQLiteLogger) exec(query string, args ...interface{}) error {
	if _, err := l.conn.Exec(query, args...); err != nil {
		return errors.Wrapf(ErrIOFailure, "executing %s: %s", query, err)
	}
	return nil
}

// WriteVirusInfo implements DataLogger.
func (l *SQLiteLogger) WriteVirusInfo(infos []db.VirusInfo) error {
	for _, v := range infos {
		if err := l.exec(`insert into virus_info (virus_id, virus_uid, virus_name, sequence, date_first_recorded, parent_virus_id) values (?, ?, ?, ?, ?, ?)`,
			v.ID, v.UID.String(), v.Name, v.Sequence, v.DateFirstRecorded, v.ParentID); err != nil {
			return err
		}
	}
	return nil
}

// WriteVirusHistory implements DataLogger.
func (l *SQLiteLogger) WriteVirusHistory(hist []db.VirusStateCount, labels StateLabeler, names func(int) string) error {
	for _, r := range hist {
		if err := l.exec(`insert into virus_hist (date, virus_id, virus_name, state_label, count) values (?, ?, ?, ?, ?)`,
			r.Date, r.VirusID, names(r.VirusID), labels(r.State), r.Count); err != nil {
			return err
		}
	}
	return nil
}

// WriteToolInfo implements DataLogger.
func (l *SQLiteLogger) WriteToolInfo(infos []db.ToolInfo) error {
	for _, t := range infos {
		if err := l.exec(`insert into tool_info (id, tool_uid, tool_name, sequence, date_first_recorded) values (?, ?, ?, ?, ?)`,
			t.ID, t.UID.String(), t.Name, t.Sequence, t.DateFirstRecorded); err != nil {
			return err
		}
	}
	return nil
}

// WriteToolHistory implements DataLogger.
func (l *SQLiteLogger) WriteToolHistory(hist []db.ToolStateCount, labels StateLabeler, names func(int) string) error {
	for _, r := range hist {
		if err := l.exec(`insert into tool_hist (date, id, state_label, count) values (?, ?, ?, ?)`,
			r.Date, r.ToolID, labels(r.State), r.Count); err != nil {
			return err
		}
	}
	return nil
}

// WriteTotalHistory implements DataLogger.
func (l *SQLiteLogger) WriteTotalHistory(hist []db.StateCount, labels StateLabeler, nVirusesAt func(date int) int) error {
	for _, r := range hist {
		if err := l.exec(`insert into total_hist (date, n_active_viruses, state_label, count) values (?, ?, ?, ?)`,
			r.Date, nVirusesAt(r.Date), labels(r.State), r.Count); err != nil {
			return err
		}
	}
	return nil
}

// WriteTransmissions implements DataLogger.
func (l *SQLiteLogger) WriteTransmissions(events []db.Transmission, names func(int) string) error {
	for _, e := range events {
		if err := l.exec(`insert into transmission (date, virus_id, virus_name, source_exposure_date, source, target) values (?, ?, ?, ?, ?, ?)`,
			e.Date, e.VirusID, names(e.VirusID), e.SourceExposureDate, e.Source, e.Target); err != nil {
			return err
		}
	}
	return nil
}

// WriteTransitionHistory implements DataLogger.
func (l *SQLiteLogger) WriteTransitionHistory(snaps []db.TransitionSnapshot, labels StateLabeler) error {
	for _, snap := range snaps {
		nstates := 0
		for nstates*nstates < len(snap.Matrix) {
			nstates++
		}
		for to := 0; to < nstates; to++ {
			for from := 0; from < nstates; from++ {
				count := snap.Matrix[to*nstates+from]
				if err := l.exec(`insert into transition (date, from_label, to_label, counts) values (?, ?, ?, ?)`,
					snap.Date, labels(from), labels(to), count); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// WriteReproductiveNumber implements DataLogger.
func (l *SQLiteLogger) WriteReproductiveNumber(rows []db.RtRecord, names func(int) string) error {
	for _, r := range rows {
		if err := l.exec(`insert into reproductive_number (virus_id, virus_name, source, source_exposure_date, rt) values (?, ?, ?, ?, ?)`,
			r.VirusID, names(r.VirusID), r.Source, r.SourceExposureDate, r.Rt); err != nil {
			return err
		}
	}
	return nil
}

// WriteGenerationTime implements DataLogger.
func (l *SQLiteLogger) WriteGenerationTime(rows []db.GenTimeRecord) error {
	for _, r := range rows {
		if err := l.exec(`insert into generation_time (virus_id, source, source_exposure_date, gentime) values (?, ?, ?, ?)`,
			r.VirusID, r.Source, r.SourceExposureDate, r.GenTime); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (l *SQLiteLogger) Close() error {
	if err := l.conn.Close(); err != nil {
		return errors.Wrap(ErrIOFailure, err.Error())
	}
	return nil
}
