package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yumyai/hadesign/internal/util"
)

var ErrNoLineageInput = errors.New("no input fasta for lineage")

// fastaSuffixes are tried in order when locating a lineage file.
var fastaSuffixes = []string{".fasta", ".fasta.gz", ".fa", ".fa.gz", ".fna", ".fna.gz"}

// SequenceDB is the folder that hosts one raw HA FASTA per lineage,
// e.g. data/H3N2.fasta.gz.
type SequenceDB struct {
	Dir string
}

func NewSequenceDB(dir string) (*SequenceDB, error) {
	if !util.DirExists(dir) {
		return nil, fmt.Errorf("sequence db %s: %w", dir, os.ErrNotExist)
	}
	return &SequenceDB{Dir: dir}, nil
}

// LineageFasta returns the input file of lineage.
func (seqdb *SequenceDB) LineageFasta(lineage string) (string, error) {
	for _, suf := range fastaSuffixes {
		p := filepath.Join(seqdb.Dir, lineage+suf)
		if util.FileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrNoLineageInput, lineage, seqdb.Dir)
}

// Lineages lists lineages with an input file, sorted.
func (seqdb *SequenceDB) Lineages() ([]string, error) {
	entries, err := os.ReadDir(seqdb.Dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		for _, suf := range fastaSuffixes {
			if name, ok := strings.CutSuffix(e.Name(), suf); ok && name != "" {
				if !seen[name] {
					seen[name] = true
					out = append(out, name)
				}
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
