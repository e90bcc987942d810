package registry

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Student is one enrolled identity. Serial is the dense 1..N rank of the
// record in the registry file and doubles as the face model training label;
// it is renumbered whenever a record is removed.
type Student struct {
	Serial     int
	ID         string
	Name       string
	Department string
	Branch     string
	Program    string
}

// Header is the registry file header. The blank columns are legacy padding:
// data rows carry their fields at the even indices only.
var Header = []string{"SERIAL NO.", "", "ID", "", "NAME", "", "DEPARTMENT", "", "BRANCH", "", "PROGRAM"}

const headerColumns = 11

// row1 renders the student as the first row of its record group.
func (s Student) row1() []string {
	return []string{
		strconv.Itoa(s.Serial), "",
		s.ID, "",
		s.Name, "",
		s.Department, "",
		s.Branch, "",
		s.Program,
	}
}

// studentFromRow parses a record group's first row. The row must have the
// full column count; shorter rows are malformed groups.
func studentFromRow(row []string) (Student, bool) {
	if len(row) < headerColumns {
		return Student{}, false
	}
	serial, err := strconv.Atoi(strings.TrimSpace(row[0]))
	if err != nil {
		return Student{}, false
	}
	return Student{
		Serial:     serial,
		ID:         strings.TrimSpace(row[2]),
		Name:       strings.TrimSpace(row[4]),
		Department: strings.TrimSpace(row[6]),
		Branch:     strings.TrimSpace(row[8]),
		Program:    strings.TrimSpace(row[10]),
	}, true
}

func blankRow() []string { return make([]string, headerColumns) }

func isBlankRow(row []string) bool {
	for _, field := range row {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeName normalizes a student name for duplicate comparison
// (lowercase, no diacritics, collapsed whitespace).
func NormalizeName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	return strings.Join(strings.Fields(name), " ")
}
