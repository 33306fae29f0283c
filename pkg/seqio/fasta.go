// Package seqio reads and writes the FASTA files exchanged with the external
// aligner, clustering tool and phylogenetics tool.
package seqio

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/evolbioinfo/goalign/align"
	"github.com/evolbioinfo/goalign/io/fasta"
)

var ErrEmptyFasta = errors.New("no FASTA records found")

// Record is one FASTA entry. ID is the first whitespace-delimited word of the
// header; Header keeps the full line without '>'.
type Record struct {
	ID     string
	Header string
	Seq    string
}

// ReadFasta reads every record of a FASTA file. Files ending in .gz are
// decompressed transparently.
func ReadFasta(path string) ([]Record, error) {
	rc, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	recs, err := ParseFasta(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// ParseFasta reads unaligned records from r with goalign. Sequences are
// upper-cased and all whitespace inside them is dropped. A record repeating
// the full header of an earlier one is ignored.
func ParseFasta(r io.Reader) ([]Record, error) {
	br := bufio.NewReader(r)
	if blank, err := onlySpace(br); err != nil {
		return nil, err
	} else if blank {
		return nil, ErrEmptyFasta
	}

	p := fasta.NewParser(br)
	p.IgnoreIdentical(align.IGNORE_NAME)
	sb, err := p.ParseUnalign()
	if err != nil {
		return nil, fmt.Errorf("parse fasta: %w", err)
	}

	records := make([]Record, 0, sb.NbSequences())
	sb.Iterate(func(name, seq string) bool {
		header := strings.TrimSpace(name)
		id := header
		if f := strings.Fields(header); len(f) > 0 {
			id = f[0]
		}
		records = append(records, Record{
			ID:     id,
			Header: header,
			Seq:    strings.ToUpper(strings.Join(strings.Fields(seq), "")),
		})
		return false
	})

	if len(records) == 0 {
		return nil, ErrEmptyFasta
	}
	return records, nil
}

// onlySpace skips leading whitespace and reports whether nothing else is left.
func onlySpace(br *bufio.Reader) (bool, error) {
	for {
		c, _, err := br.ReadRune()
		if err == io.EOF {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		if !unicode.IsSpace(c) {
			return false, br.UnreadRune()
		}
	}
}

// WriteFasta writes records unwrapped, one sequence line per record.
func WriteFasta(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		header := r.Header
		if header == "" {
			header = r.ID
		}
		if _, err := fmt.Fprintf(bw, ">%s\n%s\n", header, r.Seq); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// FormatFasta renders records into a byte slice.
func FormatFasta(records []Record) []byte {
	var buf bytes.Buffer
	_ = WriteFasta(&buf, records)
	return buf.Bytes()
}

// WriteFastaFile writes records to path, replacing any existing file.
func WriteFastaFile(path string, records []Record) error {
	return os.WriteFile(path, FormatFasta(records), 0o644)
}

// Ungap removes gap symbols.
func Ungap(s string) string {
	return strings.ReplaceAll(s, "-", "")
}

func openReader(path string) (io.ReadCloser, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(fh)
		if err != nil {
			fh.Close()
			return nil, err
		}
		return struct {
			io.Reader
			io.Closer
		}{Reader: gr, Closer: fh}, nil
	}
	return fh, nil
}
