// Package labels loads per-file emotion quadrant labels from CSV.
//
// The expected layout is the EMOPIA label sheet: a header row naming an
// identifier column and a quadrant column holding 1-4 or Q1-Q4.
package labels

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Quadrant is a valence/arousal quadrant of the circumplex model
type Quadrant int

const (
	QuadrantUnknown Quadrant = iota
	Q1                       // high valence, high arousal
	Q2                       // low valence, high arousal
	Q3                       // low valence, low arousal
	Q4                       // high valence, low arousal
)

// Category is the human readable name of a quadrant
type Category string

const (
	CategoryUnknown Category = "unknown"
	CategoryHappy   Category = "happy"
	CategoryTense   Category = "tense"
	CategorySad     Category = "sad"
	CategoryCalm    Category = "calm"
)

var categories = map[Quadrant]Category{
	Q1: CategoryHappy,
	Q2: CategoryTense,
	Q3: CategorySad,
	Q4: CategoryCalm,
}

// ErrUnknownQuadrant is returned for codes outside 1-4
var ErrUnknownQuadrant = errors.New("unknown quadrant code")

// ParseQuadrant accepts "1".."4" and "Q1".."Q4" in any case
func ParseQuadrant(code string) (Quadrant, error) {
	code = strings.TrimSpace(code)
	code = strings.TrimPrefix(strings.ToUpper(code), "Q")
	n, err := strconv.Atoi(code)
	if err != nil || n < int(Q1) || n > int(Q4) {
		return QuadrantUnknown, errors.Wrapf(ErrUnknownQuadrant, "%q", code)
	}
	return Quadrant(n), nil
}

// Category maps the quadrant onto its fixed category
func (q Quadrant) Category() Category {
	if c, ok := categories[q]; ok {
		return c
	}
	return CategoryUnknown
}

func (q Quadrant) String() string {
	if q < Q1 || q > Q4 {
		return "Q?"
	}
	return "Q" + strconv.Itoa(int(q))
}

// Options names the columns to read
type Options struct {
	IDColumn   string
	CodeColumn string
}

// DefaultOptions matches the EMOPIA label.csv header
func DefaultOptions() Options {
	return Options{IDColumn: "ID", CodeColumn: "4Q"}
}

// Load reads the label file at path
func Load(path string, opts Options) ([]string, []Category, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open label file")
	}
	defer f.Close()
	return Read(f, opts)
}

// Read returns parallel slices of identifiers and categories in file order
func Read(r io.Reader, opts Options) ([]string, []Category, error) {
	if opts.IDColumn == "" || opts.CodeColumn == "" {
		opts = DefaultOptions()
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read label header")
	}
	idCol, codeCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case opts.IDColumn:
			idCol = i
		case opts.CodeColumn:
			codeCol = i
		}
	}
	if idCol < 0 || codeCol < 0 {
		return nil, nil, errors.Errorf("label header %v lacks %q or %q", header, opts.IDColumn, opts.CodeColumn)
	}

	var ids []string
	var cats []Category
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrapf(err, "line %d", line)
		}
		q, err := ParseQuadrant(record[codeCol])
		if err != nil {
			return nil, nil, errors.Wrapf(err, "line %d", line)
		}
		ids = append(ids, strings.TrimSpace(record[idCol]))
		cats = append(cats, q.Category())
	}
	return ids, cats, nil
}
