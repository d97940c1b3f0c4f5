// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package peakindex

import (
	"database/sql"
	"fmt"
	"sort"

	_ "github.com/mattn/go-sqlite3"
)

// The index of a run is persisted to a SQLite file between the MS2 and
// MBR passes so that only one run's peaks need to be in memory at a time.
// REAL columns store IEEE 754 doubles, so float64 values round-trip
// exactly.

func createSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS scans (
			scan_index INTEGER PRIMARY KEY,
			scan_number INTEGER NOT NULL,
			rt REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS peaks (
			scan_index INTEGER NOT NULL,
			mz REAL NOT NULL,
			intensity REAL NOT NULL,
			rt REAL NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save writes the whole index to a SQLite file at path,
// replacing any previous contents
func (x *Index) Save(path string) error {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return fmt.Errorf("opening index database: %w", err)
	}
	defer db.Close()

	if err := createSchema(db); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM scans`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM peaks`); err != nil {
		return err
	}

	scanStmt, err := tx.Prepare(`INSERT INTO scans (scan_index, scan_number, rt) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer scanStmt.Close()
	for _, s := range x.scans {
		if _, err := scanStmt.Exec(s.ScanIndex, s.ScanNumber, s.RT); err != nil {
			return fmt.Errorf("inserting scan %d: %w", s.ScanIndex, err)
		}
	}

	peakStmt, err := tx.Prepare(`INSERT INTO peaks (scan_index, mz, intensity, rt) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer peakStmt.Close()

	buckets := make([]int, 0, len(x.buckets))
	for b := range x.buckets {
		buckets = append(buckets, b)
	}
	sort.Ints(buckets)
	for _, b := range buckets {
		for _, p := range x.buckets[b] {
			if _, err := peakStmt.Exec(p.ScanIndex, p.Mz, p.Intensity, p.RT); err != nil {
				return fmt.Errorf("inserting peak: %w", err)
			}
		}
	}

	return tx.Commit()
}

// Load rebuilds an index from a SQLite file written by Save
func Load(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}
	defer db.Close()

	x := &Index{buckets: make(map[int][]*IndexedPeak)}

	rows, err := db.Query(`SELECT scan_index, scan_number, rt FROM scans ORDER BY scan_index`)
	if err != nil {
		return nil, fmt.Errorf("reading scans: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s Ms1ScanInfo
		if err := rows.Scan(&s.ScanIndex, &s.ScanNumber, &s.RT); err != nil {
			return nil, err
		}
		x.scans = append(x.scans, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	peakRows, err := db.Query(`SELECT scan_index, mz, intensity, rt FROM peaks`)
	if err != nil {
		return nil, fmt.Errorf("reading peaks: %w", err)
	}
	defer peakRows.Close()
	for peakRows.Next() {
		p := &IndexedPeak{}
		if err := peakRows.Scan(&p.ScanIndex, &p.Mz, &p.Intensity, &p.RT); err != nil {
			return nil, err
		}
		b := bucketOf(p.Mz)
		x.buckets[b] = append(x.buckets[b], p)
	}
	if err := peakRows.Err(); err != nil {
		return nil, err
	}

	x.sortBuckets()
	return x, nil
}
