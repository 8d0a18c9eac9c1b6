package admin

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// PromptDialog renders message boxes as text and reads the operator's
// choice, one line per answer. The choice may be the button number, its
// label or its result. End of input dismisses the dialog.
type PromptDialog struct {
	mu      sync.Mutex
	in      *bufio.Reader
	out     io.Writer
	pending chan lineResult // read still running after a cancelled prompt
}

// NewPromptDialog creates a dialog reading from in and writing to out.
func NewPromptDialog(in io.Reader, out io.Writer) *PromptDialog {
	return &PromptDialog{in: bufio.NewReader(in), out: out}
}

type lineResult struct {
	line string
	err  error
}

// MessageBox implements ConfirmationDialog. Unrecognized answers are asked
// again.
func (d *PromptDialog) MessageBox(ctx context.Context, title, message string, buttons []Button) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fmt.Fprintf(d.out, "\n%s\n%s\n\n%s\n", title, strings.Repeat("-", utf8.RuneCountInString(title)), message)

	choices := make([]string, len(buttons))
	for i, b := range buttons {
		choices[i] = fmt.Sprintf("[%d] %s", i+1, b.Label)
	}
	prompt := strings.Join(choices, "  ") + ": "

	for {
		fmt.Fprint(d.out, prompt)

		if d.pending == nil {
			d.pending = make(chan lineResult, 1)
			go func(ch chan<- lineResult) {
				line, err := d.in.ReadString('\n')
				ch <- lineResult{line, err}
			}(d.pending)
		}

		var res lineResult
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res = <-d.pending:
			d.pending = nil
		}

		answer := strings.TrimSpace(res.line)
		if result, ok := matchButton(answer, buttons); ok {
			return result, nil
		}
		if res.err == io.EOF {
			fmt.Fprintln(d.out)
			return "", nil
		}
		if res.err != nil {
			return "", res.err
		}
		fmt.Fprintf(d.out, "Unknown choice %q\n", answer)
	}
}

func matchButton(answer string, buttons []Button) (string, bool) {
	if n, err := strconv.Atoi(answer); err == nil {
		if n >= 1 && n <= len(buttons) {
			return buttons[n-1].Result, true
		}
		return "", false
	}
	for _, b := range buttons {
		if strings.EqualFold(answer, b.Label) || strings.EqualFold(answer, b.Result) {
			return b.Result, true
		}
	}
	return "", false
}

// FixedDialog answers every message box with Result without showing
// anything, e.g. for --yes.
type FixedDialog struct {
	Result string

	mu    sync.Mutex
	shown []string
}

// MessageBox implements ConfirmationDialog.
func (d *FixedDialog) MessageBox(_ context.Context, title, _ string, _ []Button) (string, error) {
	d.mu.Lock()
	d.shown = append(d.shown, title)
	d.mu.Unlock()
	return d.Result, nil
}

// Shown returns the titles of the message boxes answered so far.
func (d *FixedDialog) Shown() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.shown...)
}
