package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// Dispatcher runs one console line.
type Dispatcher interface {
	Dispatch(ctx context.Context, line string) int
}

// repl feeds lines from in to d until EOF or ctx is done. The prompt is
// only printed when in is a terminal.
func repl(ctx context.Context, d Dispatcher, in io.Reader, out io.Writer, prompt string, interactive bool) error {
	sc := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(out, prompt)
		}
		if !sc.Scan() {
			return sc.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		d.Dispatch(ctx, sc.Text())
	}
}

// execLines runs every line and returns the first non-zero status.
func execLines(ctx context.Context, d Dispatcher, lines []string) int {
	first := 0
	for _, line := range lines {
		if ctx.Err() != nil {
			break
		}
		if code := d.Dispatch(ctx, line); code != 0 && first == 0 {
			first = code
		}
	}
	return first
}
