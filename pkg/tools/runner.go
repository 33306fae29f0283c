// Package tools wraps the external programs the pipeline delegates to:
// mafft for alignment, cd-hit for redundancy clustering and iqtree2 for tree
// inference, ancestral reconstruction and ML distances.
package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/yumyai/hadesign/logger"
)

// ToolError is returned when an external program cannot be started or exits
// non-zero. Output holds whatever it wrote to stderr.
type ToolError struct {
	Tool   string
	Args   []string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += " - " + lastLines(out, 5)
	}
	return msg
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// run executes bin with args. stdout, when non-nil, receives the program's
// standard output; otherwise it is folded into the error output.
func run(ctx context.Context, bin string, args []string, stdout io.Writer) error {
	logger.Debug("Running external tool", zap.String("tool", bin), zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, bin, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if stdout != nil {
		cmd.Stdout = stdout
	} else {
		cmd.Stdout = &stderr
	}

	if err := cmd.Run(); err != nil {
		terr := &ToolError{Tool: bin, Args: args, Output: stderr.String(), Err: err}
		logger.Warn("External tool failed", zap.String("tool", bin), zap.String("error message", terr.Error()))
		return terr
	}
	return nil
}

// runToFile runs bin and writes its standard output to path. The file is
// removed again when the tool fails, so no partial output is left behind.
func runToFile(ctx context.Context, bin string, args []string, path string) error {
	fd, err := os.Create(path)
	if err != nil {
		return err
	}

	runErr := run(ctx, bin, args, fd)
	closeErr := fd.Close()
	if runErr != nil {
		os.Remove(path)
		return runErr
	}
	return closeErr
}

func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
