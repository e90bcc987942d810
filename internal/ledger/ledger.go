// Package ledger implements the date-partitioned, append-only attendance
// store: one CSV file per calendar date with a fixed 7-column header.
package ledger

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/faults"
)

// Header is the attendance file header.
var Header = []string{"ID", "Name", "Department", "Branch", "Program", "Date", "Time"}

const (
	headerColumns = 7
	filePrefix    = "Attendance_"
	fileSuffix    = ".csv"

	// DateLayout and TimeLayout are the historical formats used in file
	// names and record fields.
	DateLayout = "02-01-2006"
	TimeLayout = "03:04:05 PM"
)

// Record is one attendance row.
type Record struct {
	ID         string
	Name       string
	Department string
	Branch     string
	Program    string
	Date       string // DD-MM-YYYY
	Time       string // hh:mm:ss AM/PM
}

func (r Record) row() []string {
	return []string{r.ID, r.Name, r.Department, r.Branch, r.Program, r.Date, r.Time}
}

// Filter narrows QueryAll results. Zero values match everything.
type Filter struct {
	StudentID string
	Date      string
}

func (f Filter) matches(r Record) bool {
	if f.StudentID != "" && r.ID != f.StudentID {
		return false
	}
	if f.Date != "" && r.Date != f.Date {
		return false
	}
	return true
}

// Ledger stores attendance records under a single directory.
type Ledger struct {
	dir    string
	lock   *flock.Flock
	logger *zap.Logger
}

func New(dir string, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		dir:    dir,
		lock:   flock.New(filepath.Join(dir, ".lock")),
		logger: logger,
	}
}

// FileName returns the attendance file name for a date string.
func FileName(date string) string { return filePrefix + date + fileSuffix }

func (l *Ledger) pathFor(date string) string {
	return filepath.Join(l.dir, FileName(date))
}

// NewRecord stamps a record for a student at the given instant.
func NewRecord(id, name, department, branch, program string, at time.Time) Record {
	return Record{
		ID:         id,
		Name:       name,
		Department: department,
		Branch:     branch,
		Program:    program,
		Date:       at.Format(DateLayout),
		Time:       at.Format(TimeLayout),
	}
}

// Append adds one row to the record's date file, creating the file with
// its header first when absent. The header is never duplicated.
func (l *Ledger) Append(r Record) error {
	if r.ID == "" || r.Date == "" {
		return faults.Validation("attendance record needs id and date")
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return faults.IO("creating attendance directory: %v", err)
	}

	path := l.pathFor(r.Date)
	info, statErr := os.Stat(path)
	needHeader := errors.Is(statErr, os.ErrNotExist) || (statErr == nil && info.Size() == 0)
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		return faults.IO("stat attendance file: %v", statErr)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return faults.IO("open attendance file: %v", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(Header); err != nil {
			return faults.IO("writing attendance header: %v", err)
		}
	}
	if err := w.Write(r.row()); err != nil {
		return faults.IO("writing attendance row: %v", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return faults.IO("flushing attendance file: %v", err)
	}
	return nil
}

// Dates lists the dates with an attendance file, most recent file name
// first (descending lexical order, matching the scan order of QueryAll).
func (l *Ledger) Dates() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, faults.IO("reading attendance directory: %v", err)
	}

	var dates []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		dates = append(dates, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

// QueryAll scans every date file in descending file name order and returns
// the rows matching the filter. A file whose header has fewer than the
// expected columns is treated as corrupt and skipped without error.
func (l *Ledger) QueryAll(filter Filter) ([]Record, error) {
	dates, err := l.Dates()
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, date := range dates {
		if filter.Date != "" && date != filter.Date {
			continue
		}
		rows, ok := l.readFile(l.pathFor(date))
		if !ok {
			continue
		}
		for _, row := range rows {
			r := recordFromRow(row)
			if filter.matches(r) {
				records = append(records, r)
			}
		}
	}
	return records, nil
}

// readFile returns the data rows of one attendance file. ok is false when
// the file is unreadable or its header is short; both are skipped by
// policy, not surfaced as errors.
func (l *Ledger) readFile(path string) ([][]string, bool) {
	f, err := os.Open(path)
	if err != nil {
		l.logger.Warn("skipping unreadable attendance file", zap.String("path", path), zap.Error(err))
		return nil, false
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil || len(header) < headerColumns {
		l.logger.Warn("skipping attendance file with short header", zap.String("path", path))
		return nil, false
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			return rows, true
		}
		if err != nil {
			l.logger.Warn("skipping malformed attendance row", zap.String("path", path), zap.Error(err))
			continue
		}
		if len(row) >= headerColumns {
			rows = append(rows, row)
		}
	}
}

func recordFromRow(row []string) Record {
	return Record{
		ID:         row[0],
		Name:       row[1],
		Department: row[2],
		Branch:     row[3],
		Program:    row[4],
		Date:       row[5],
		Time:       row[6],
	}
}

// DeleteWhere rewrites one date file keeping only the header and the rows
// whose id is not in idsToRemove. The rewrite goes through a temp file and
// an atomic rename. Returns the number of rows removed.
func (l *Ledger) DeleteWhere(date string, idsToRemove []string) (int, error) {
	// The existence check runs before the lock: with no attendance
	// directory the lock file itself cannot be created, and a missing date
	// is a not-found either way.
	path := l.pathFor(date)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return 0, faults.NotFound("no attendance file for %s", date)
	}

	if err := l.lock.Lock(); err != nil {
		return 0, faults.IO("locking ledger: %v", err)
	}
	defer l.lock.Unlock()

	remove := make(map[string]bool, len(idsToRemove))
	for _, id := range idsToRemove {
		remove[id] = true
	}

	rows, ok := l.readFile(path)
	if !ok {
		return 0, faults.IO("attendance file for %s is corrupt", date)
	}

	kept := rows[:0]
	removed := 0
	for _, row := range rows {
		if remove[row[0]] {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	if removed == 0 {
		return 0, nil
	}

	tmp, err := os.CreateTemp(l.dir, FileName(date)+".tmp-*")
	if err != nil {
		return 0, faults.IO("creating temp attendance file: %v", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(Header); err != nil {
		return 0, faults.IO("writing attendance header: %v", err)
	}
	for _, row := range kept {
		if err := w.Write(row); err != nil {
			return 0, faults.IO("writing attendance row: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, faults.IO("flushing attendance file: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, faults.IO("closing temp attendance file: %v", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, faults.IO("replacing attendance file: %v", err)
	}

	l.logger.Info("attendance rows deleted", zap.String("date", date), zap.Int("removed", removed))
	return removed, nil
}

// DeleteDate removes an entire date file.
func (l *Ledger) DeleteDate(date string) error {
	path := l.pathFor(date)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return faults.NotFound("no attendance file for %s", date)
		}
		return faults.IO("deleting attendance file: %v", err)
	}
	return nil
}
