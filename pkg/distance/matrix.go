package distance

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Matrix is a parsed pairwise distance matrix. The file layout is a count N
// on the first line, then N rows of a name followed by distances in the
// declared name order. Rows may be full or lower-triangular; cells are read
// from the row of the larger index, which is always populated.
type Matrix struct {
	Names []string
	rows  [][]float64
	index map[string]int
}

// ParseMatrix reads the matrix layout written by the phylogenetics tool.
func ParseMatrix(r io.Reader) (*Matrix, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var n int
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		v, err := strconv.Atoi(strings.Fields(line)[0])
		if err != nil {
			return nil, fmt.Errorf("matrix header %q: %w", line, err)
		}
		n = v
		break
	}
	if n <= 0 {
		return nil, fmt.Errorf("matrix declares no sequences")
	}

	m := &Matrix{
		Names: make([]string, 0, n),
		rows:  make([][]float64, 0, n),
		index: make(map[string]int, n),
	}
	for len(m.Names) < n && sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		name := fields[0]
		vals := make([]float64, 0, len(fields)-1)
		for _, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("matrix row %s: %w", name, err)
			}
			vals = append(vals, v)
		}
		if _, dup := m.index[name]; dup {
			return nil, fmt.Errorf("matrix row %s appears twice", name)
		}
		m.index[name] = len(m.Names)
		m.Names = append(m.Names, name)
		m.rows = append(m.rows, vals)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(m.Names) != n {
		return nil, fmt.Errorf("matrix declares %d sequences but has %d rows", n, len(m.Names))
	}
	return m, nil
}

// ReadMatrix parses the matrix file at path.
func ReadMatrix(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := ParseMatrix(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func (m *Matrix) Len() int {
	return len(m.Names)
}

// Index returns the position of name in the declared order.
func (m *Matrix) Index(name string) (int, bool) {
	i, ok := m.index[name]
	return i, ok
}

// At returns the distance between positions i and j, reading the row of the
// larger index. ok is false for out-of-range positions or unpopulated cells.
func (m *Matrix) At(i, j int) (float64, bool) {
	if i < 0 || j < 0 || i >= len(m.rows) || j >= len(m.rows) {
		return 0, false
	}
	r, c := max(i, j), min(i, j)
	row := m.rows[r]
	if c >= len(row) {
		return 0, false
	}
	return row[c], true
}

// Between returns the distance between two named sequences.
func (m *Matrix) Between(a, b string) (float64, bool) {
	i, ok := m.index[a]
	if !ok {
		return 0, false
	}
	j, ok := m.index[b]
	if !ok {
		return 0, false
	}
	return m.At(i, j)
}
