// Command csv2sqlite loads the nine <base>.<suffix>.csv report files
// written by report.CSVLogger into a single SQLite database using
// report.Schema, for offline querying. Grounded on the teacher's
// bin/csv2sqlite/main.go (glob CSVs by suffix, create a table per
// content type, insert row by row inside one transaction per file).
package main

import (
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/epiworld-go/epiworld/report"
)

// suffixToTable mirrors the nine report.Schema tables by the CSV file
// suffix report.CSVLogger writes them under.
var suffixToTable = map[string]string{
	"virus_info":          "virus_info",
	"virus_hist":          "virus_hist",
	"tool_info":           "tool_info",
	"tool_hist":           "tool_hist",
	"total_hist":          "total_hist",
	"transmission":        "transmission",
	"transition":          "transition",
	"reproductive_number": "reproductive_number",
	"generation_time":     "generation_time",
}

func main() {
	basePath := flag.String("base", "", "CSV report basepath, e.g. ./run (matches run.*.csv) (required)")
	outPath := flag.String("out", "", "output SQLite database path (required)")
	flag.Parse()

	if *basePath == "" || *outPath == "" {
		fmt.Println("-base and -out are both required")
		flag.Usage()
		os.Exit(2)
	}

	conn, err := sql.Open("sqlite3", *outPath)
	if err != nil {
		log.Fatalf("error opening %s: %s", *outPath, err)
	}
	defer conn.Close()
	if _, err := conn.Exec(report.Schema); err != nil {
		log.Fatalf("error creating schema in %s: %s", *outPath, err)
	}

	start := time.Now()
	imported := 0
	for suffix, table := range suffixToTable {
		path := fmt.Sprintf("%s.%s.csv", *basePath, suffix)
		n, err := importCSV(conn, path, table)
		if err != nil {
			if os.IsNotExist(err) {
				log.Printf("skipping %s: not found\n", path)
				continue
			}
			log.Fatalf("error importing %s: %s", path, err)
		}
		log.Printf("imported %d rows from %s into %s\n", n, path, table)
		imported += n
	}
	log.Printf("imported %d total rows in %s\n", imported, time.Since(start))
}

func importCSV(conn *sql.DB, path, table string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("reading header of %s: %w", path, err)
	}

	placeholders := ""
	for i := range header {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
	}
	insertStmt := fmt.Sprintf("insert into %s (%s) values (%s)", table, columnList(header), placeholders)

	tx, err := conn.Begin()
	if err != nil {
		return 0, err
	}
	stmt, err := tx.Prepare(insertStmt)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	n := 0
	for {
		row, err := r.Read()
		if err != nil {
			break
		}
		values := make([]interface{}, len(row))
		for i, v := range row {
			values[i] = v
		}
		if _, err := stmt.Exec(values...); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("inserting row %d of %s: %w", n, path, err)
		}
		n++
	}
	return n, tx.Commit()
}

func columnList(header []string) string {
	out := ""
	for i, h := range header {
		if i > 0 {
			out += ", "
		}
		out += h
	}
	return out
}
