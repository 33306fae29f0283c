package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/seqio"
)

// createFakeTool writes an executable shell script named name into dir.
func createFakeTool(t *testing.T, dir, name, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are shell scripts")
	}
	path := filepath.Join(dir, name)
	content := "#!/usr/bin/env bash\n" + script + "\n"
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("write fake %s: %v", name, err)
	}
	return path
}

// prependPath puts dir first on PATH for the duration of the test.
func prependPath(t *testing.T, dir string) {
	t.Helper()
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestMafftAlign(t *testing.T) {
	bin := t.TempDir()
	createFakeTool(t, bin, "mafft", `cat <<'EOF'
>s1
MK-T
>s2
MKQT
EOF`)
	prependPath(t, bin)

	m := &Mafft{Dir: t.TempDir()}
	aln, err := m.Align(context.Background(), []seqio.Record{{ID: "s1", Seq: "MKT"}, {ID: "s2", Seq: "MKQT"}}, "year")
	require.NoError(t, err)
	assert.Equal(t, 4, aln.Length())
	assert.Equal(t, []string{"s1", "s2"}, aln.IDs)
	assert.FileExists(t, filepath.Join(m.Dir, "year_aligned.fasta"))
}

func TestMafftAlignSingleRecordSkipsTool(t *testing.T) {
	m := &Mafft{Bin: "/nonexistent/mafft", Dir: t.TempDir()}
	aln, err := m.Align(context.Background(), []seqio.Record{{ID: "only", Seq: "MKT"}}, "one")
	require.NoError(t, err)
	assert.Equal(t, "MKT", aln.Rows[0])
}

func TestMafftFailure(t *testing.T) {
	bin := t.TempDir()
	fake := createFakeTool(t, bin, "mafft", `echo "bad input" >&2; exit 3`)

	dir := t.TempDir()
	m := &Mafft{Bin: fake, Dir: dir}
	_, err := m.Align(context.Background(), []seqio.Record{{ID: "a", Seq: "M"}, {ID: "b", Seq: "K"}}, "year")
	require.Error(t, err)

	var terr *ToolError
	require.True(t, errors.As(err, &terr))
	assert.Contains(t, terr.Output, "bad input")
	assert.NoFileExists(t, filepath.Join(dir, "year_aligned.fasta"))
}

func TestMafftAddKeepLength(t *testing.T) {
	bin := t.TempDir()
	fake := createFakeTool(t, bin, "mafft", `cat "${@: -1}"; echo ">DESIGN_cobra"; echo "MK-T"`)

	frame, err := model.NewAlignment([]string{"s1"}, []string{"MKQT"})
	require.NoError(t, err)

	m := &Mafft{Bin: fake, Dir: t.TempDir()}
	out, err := m.AddKeepLength(context.Background(), []seqio.Record{{ID: "DESIGN_cobra", Seq: "MKT"}}, frame, "cobra")
	require.NoError(t, err)
	require.Equal(t, 2, out.NbSequences())
	assert.Equal(t, "MK-T", out.Rows[1])
}

func TestCDHitCluster(t *testing.T) {
	bin := t.TempDir()
	createFakeTool(t, bin, "cd-hit", `while [ $# -gt 0 ]; do
  case "$1" in
    -i) in="$2"; shift;;
    -o) out="$2"; shift;;
  esac
  shift
done
head -n 2 "$in" > "$out"`)
	prependPath(t, bin)

	c := &CDHit{Dir: t.TempDir()}
	reps, err := c.Cluster(context.Background(), []seqio.Record{{ID: "a", Seq: "MKT"}, {ID: "b", Seq: "MKT"}}, 0.95, "round1")
	require.NoError(t, err)
	require.Len(t, reps, 1)
	assert.Equal(t, "a", reps[0].ID)
}

func TestCDHitRejectsIdentity(t *testing.T) {
	c := &CDHit{Dir: t.TempDir()}
	_, err := c.Cluster(context.Background(), nil, 1.5, "bad")
	assert.Error(t, err)
}

func TestWordSize(t *testing.T) {
	assert.Equal(t, 5, wordSize(0.95))
	assert.Equal(t, 5, wordSize(0.90))
	assert.Equal(t, 4, wordSize(0.65))
	assert.Equal(t, 3, wordSize(0.55))
	assert.Equal(t, 2, wordSize(0.45))
}

func TestIQTreeTree(t *testing.T) {
	bin := t.TempDir()
	fake := createFakeTool(t, bin, "iqtree2", `echo "$@" > "$(dirname "$0")/argv"
while [ $# -gt 0 ]; do
  case "$1" in -pre) pre="$2"; shift;; esac
  shift
done
echo "(a,b);" > "$pre.treefile"
printf '2\na 0 0.1\nb 0.1 0\n' > "$pre.mldist"`)

	prefix := filepath.Join(t.TempDir(), "combined")
	q := &IQTree{Bin: fake}
	res, err := q.Tree(context.Background(), "aln.fasta", prefix)
	require.NoError(t, err)
	assert.Equal(t, prefix+".treefile", res.TreeFile)
	assert.FileExists(t, res.DistFile)

	argv, err := os.ReadFile(filepath.Join(bin, "argv"))
	require.NoError(t, err)
	assert.Contains(t, string(argv), "-keep-ident", "identical rows such as the medoid must stay in the matrix")
	assert.Contains(t, string(argv), "-m MFP -nt AUTO")
}

func TestIQTreeAncestralKeepsIdenticalSequences(t *testing.T) {
	q := &IQTree{Model: "LG+G4", Threads: "2"}
	args := append(q.baseArgs("aln.fasta", "asr"), "-te", "year.treefile", "-asr")
	assert.Contains(t, args, "-keep-ident")
	assert.Equal(t, []string{"-s", "aln.fasta", "-m", "LG+G4", "-nt", "2"}, args[:6])
}

func TestIQTreeAncestralMissingState(t *testing.T) {
	bin := t.TempDir()
	fake := createFakeTool(t, bin, "iqtree2", `exit 0`)

	q := &IQTree{Bin: fake}
	_, err := q.Ancestral(context.Background(), "aln.fasta", "tree", filepath.Join(t.TempDir(), "asr"))
	var terr *ToolError
	assert.True(t, errors.As(err, &terr))
}
