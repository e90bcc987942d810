// Package registry implements the student record store: a CSV file of
// two-row record groups with serial reconciliation on removal.
package registry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/faults"
)

// DuplicateDecision is asked when Append finds an existing record with the
// same id or name. Returning true continues the append anyway.
type DuplicateDecision func(existing Student) bool

// Abort declines every collision; Continue accepts every collision.
func Abort(Student) bool    { return false }
func Continue(Student) bool { return true }

// Store reads and writes the registry file. Whole-file rewrites are
// serialized through an advisory lock next to the backing file.
type Store struct {
	path   string
	lock   *flock.Flock
	logger *zap.Logger
}

func New(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger,
	}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// groupReader yields record groups from the raw CSV rows: it skips blank
// rows, takes the next row as a group's first row and consumes the
// following row (the reserved second row) when present.
type groupReader struct {
	rows []([]string)
	pos  int
}

func newGroupReader(rows [][]string) *groupReader {
	// A proper header is consumed up front; anything shorter means the
	// file has no header and scanning restarts from the first row.
	if len(rows) > 0 && len(rows[0]) >= headerColumns {
		rows = rows[1:]
	}
	return &groupReader{rows: rows}
}

// next returns the first row of the next record group, or ok=false at end
// of stream. Truncated trailing groups end the stream cleanly.
func (g *groupReader) next() (row []string, ok bool) {
	for g.pos < len(g.rows) && isBlankRow(g.rows[g.pos]) {
		g.pos++
	}
	if g.pos >= len(g.rows) {
		return nil, false
	}
	row = g.rows[g.pos]
	g.pos++
	// Reserved second row of the group, unused but part of the framing.
	if g.pos < len(g.rows) {
		g.pos++
	}
	return row, true
}

// readRows loads every row of the registry file. A missing file yields no
// rows and no error.
func (s *Store) readRows() ([][]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, faults.IO("open registry: %v", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			// Malformed line: skip it and keep scanning.
			s.logger.Warn("skipping malformed registry row", zap.Error(err))
			continue
		}
		rows = append(rows, row)
	}
}

// Load parses the registry file group by group. Malformed groups are
// skipped; a missing file yields an empty slice.
func (s *Store) Load() ([]Student, error) {
	rows, err := s.readRows()
	if err != nil {
		return nil, err
	}

	var students []Student
	g := newGroupReader(rows)
	for {
		row, ok := g.next()
		if !ok {
			break
		}
		student, ok := studentFromRow(row)
		if !ok {
			s.logger.Warn("skipping malformed record group", zap.Strings("row", row))
			continue
		}
		students = append(students, student)
	}
	return students, nil
}

// NextSerial scans the first column of every row for integer values and
// returns max+1, or 1 when none parse. Rows need not be in serial order.
func (s *Store) NextSerial() (int, error) {
	rows, err := s.readRows()
	if err != nil {
		return 0, err
	}
	maxSerial := 0
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(row[0])); err == nil && n > maxSerial {
			maxSerial = n
		}
	}
	return maxSerial + 1, nil
}

// CheckDuplicates scans the file for records colliding with the student on
// id or normalized name and asks the decisions whether to proceed. It does
// not take the file lock; callers that go on to mutate must expect Append
// to repeat the check under the lock.
func (s *Store) CheckDuplicates(student Student, onDupID, onDupName DuplicateDecision) error {
	existing, err := s.Load()
	if err != nil {
		return err
	}
	wantName := NormalizeName(student.Name)
	for _, e := range existing {
		if e.ID == student.ID {
			if onDupID == nil || !onDupID(e) {
				return faults.Duplicate("student id %q already registered", student.ID)
			}
		}
		if NormalizeName(e.Name) == wantName {
			if onDupName == nil || !onDupName(e) {
				return faults.Duplicate("student name %q already registered", student.Name)
			}
		}
	}
	return nil
}

// Append writes one record group. onDupID and onDupName decide whether a
// collision on id or (normalized) name aborts the append; a nil decision
// aborts. When the file is absent or empty the header and its blank
// separator are written first.
func (s *Store) Append(student Student, onDupID, onDupName DuplicateDecision) error {
	if student.ID == "" || student.Name == "" {
		return faults.Validation("student id and name are required")
	}

	if err := s.lock.Lock(); err != nil {
		return faults.IO("locking registry: %v", err)
	}
	defer s.lock.Unlock()

	if err := s.CheckDuplicates(student, onDupID, onDupName); err != nil {
		return err
	}

	if student.Serial == 0 {
		next, err := s.NextSerial()
		if err != nil {
			return err
		}
		student.Serial = next
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return faults.IO("creating registry directory: %v", err)
	}

	info, statErr := os.Stat(s.path)
	needHeader := errors.Is(statErr, os.ErrNotExist) || (statErr == nil && info.Size() == 0)
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		return faults.IO("stat registry: %v", statErr)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return faults.IO("open registry for append: %v", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(Header); err != nil {
			return faults.IO("writing registry header: %v", err)
		}
		if err := w.Write(blankRow()); err != nil {
			return faults.IO("writing registry header separator: %v", err)
		}
	}
	for _, row := range [][]string{student.row1(), blankRow(), blankRow()} {
		if err := w.Write(row); err != nil {
			return faults.IO("writing record group: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return faults.IO("flushing registry: %v", err)
	}

	s.logger.Info("student registered",
		zap.String("id", student.ID),
		zap.Int("serial", student.Serial))
	return nil
}

// Remove deletes the record with the given id and rewrites the whole file
// with serials renumbered 1..N in the survivors' original relative order.
// The returned map carries the old->new serial assignments for survivors
// whose serial changed, so callers can relabel dependent artifacts.
func (s *Store) Remove(id string) (bool, map[int]int, error) {
	if err := s.lock.Lock(); err != nil {
		return false, nil, faults.IO("locking registry: %v", err)
	}
	defer s.lock.Unlock()

	students, err := s.Load()
	if err != nil {
		return false, nil, err
	}

	survivors := make([]Student, 0, len(students))
	found := false
	for _, student := range students {
		if student.ID == id {
			found = true
			continue
		}
		survivors = append(survivors, student)
	}
	if !found {
		return false, nil, nil
	}

	relabel := make(map[int]int)
	for i := range survivors {
		newSerial := i + 1
		if survivors[i].Serial != newSerial {
			relabel[survivors[i].Serial] = newSerial
			survivors[i].Serial = newSerial
		}
	}

	if err := s.rewrite(survivors); err != nil {
		return false, nil, err
	}
	s.logger.Info("student removed", zap.String("id", id), zap.Int("remaining", len(survivors)))
	return true, relabel, nil
}

// rewrite replaces the registry file atomically: full content is written to
// a temp file in the same directory and renamed over the original.
func (s *Store) rewrite(students []Student) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return faults.IO("creating registry directory: %v", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return faults.IO("creating temp registry: %v", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	w := csv.NewWriter(tmp)
	rows := [][]string{Header, blankRow()}
	for _, student := range students {
		rows = append(rows, student.row1(), blankRow(), blankRow())
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return faults.IO("writing registry: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return faults.IO("flushing registry: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return faults.IO("closing temp registry: %v", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return faults.IO("replacing registry: %v", err)
	}
	return nil
}

// Count counts logical records by maximal runs of non-blank rows, which
// matches the record-group framing. It always equals len(Load()).
func (s *Store) Count() (int, error) {
	rows, err := s.readRows()
	if err != nil {
		return 0, err
	}
	if len(rows) > 0 && len(rows[0]) >= headerColumns {
		rows = rows[1:]
	}
	count := 0
	prevHasData := false
	for _, row := range rows {
		if !isBlankRow(row) {
			if !prevHasData {
				count++
			}
			prevHasData = true
		} else {
			prevHasData = false
		}
	}
	return count, nil
}

// GetByID returns the first record with the given id, or nil when the id
// is absent or the file is missing.
func (s *Store) GetByID(id string) (*Student, error) {
	students, err := s.Load()
	if err != nil {
		return nil, err
	}
	for i := range students {
		if students[i].ID == id {
			return &students[i], nil
		}
	}
	return nil, nil
}

// GetBySerial resolves a training label back to its student.
func (s *Store) GetBySerial(serial int) (*Student, error) {
	students, err := s.Load()
	if err != nil {
		return nil, err
	}
	for i := range students {
		if students[i].Serial == serial {
			return &students[i], nil
		}
	}
	return nil, nil
}

// Verify reports structural problems with the registry file: a missing
// file or a header with too few columns.
func (s *Store) Verify() []string {
	var problems []string
	f, err := os.Open(s.path)
	if err != nil {
		problems = append(problems, fmt.Sprintf("registry file not found: %s", s.path))
		return problems
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil || len(header) < headerColumns {
		problems = append(problems, "registry file has incorrect format")
	}
	return problems
}
