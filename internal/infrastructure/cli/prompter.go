package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

// multilineTerminator ends a multi-line request.
const multilineTerminator = "END"

// errNoInput is returned when the user submits nothing.
var errNoInput = errors.New("no input provided")

// LineSource yields one line of user input per call. *readline.Instance
// satisfies it.
type LineSource interface {
	Readline() (string, error)
}

type prompted interface {
	SetPrompt(string)
}

type lineResult struct {
	line string
	err  error
}

// Prompter reads answers from a LineSource. A single background reader
// feeds every request, so a prompt abandoned because its context ended
// does not swallow the next answer.
type Prompter struct {
	src   LineSource
	out   io.Writer
	once  sync.Once
	lines chan lineResult
	done  chan struct{}
	stop  sync.Once

	mu  sync.Mutex
	err error
}

// NewPrompter wraps src; prompts are written to out unless src renders
// its own prompt.
func NewPrompter(src LineSource, out io.Writer) *Prompter {
	return &Prompter{src: src, out: out, lines: make(chan lineResult), done: make(chan struct{})}
}

// NewReaderSource adapts a plain reader, used when stdin is not a terminal.
func NewReaderSource(r io.Reader) LineSource {
	return &scannerSource{scanner: bufio.NewScanner(r)}
}

// NewReadlineSource opens an interactive line editor with history.
func NewReadlineSource(historyFile string, out io.Writer) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          "",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          out,
	})
}

type scannerSource struct {
	scanner *bufio.Scanner
}

func (s *scannerSource) Readline() (string, error) {
	if s.scanner.Scan() {
		return s.scanner.Text(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (p *Prompter) start() {
	go func() {
		for {
			line, err := p.src.Readline()
			select {
			case p.lines <- lineResult{line: line, err: err}:
			case <-p.done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
}

// Close releases the background reader once its pending read returns.
func (p *Prompter) Close() {
	p.stop.Do(func() { close(p.done) })
}

// ReadLine shows prompt and waits for one line or for ctx to end.
func (p *Prompter) ReadLine(ctx context.Context, prompt string) (string, error) {
	if ps, ok := p.src.(prompted); ok {
		ps.SetPrompt(prompt)
	} else if prompt != "" {
		fmt.Fprint(p.out, prompt)
	}
	p.mu.Lock()
	sticky := p.err
	p.mu.Unlock()
	if sticky != nil {
		return "", sticky
	}

	p.once.Do(p.start)
	select {
	case res := <-p.lines:
		if res.err != nil {
			p.mu.Lock()
			p.err = res.err
			p.mu.Unlock()
			return "", res.err
		}
		return strings.TrimRight(res.line, "\r\n"), nil
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", ctx.Err()
	}
}

// ReadRequest reads a single-line request, or with multiline every line up
// to END.
func (p *Prompter) ReadRequest(ctx context.Context, multiline bool) (string, error) {
	if !multiline {
		line, err := p.ReadLine(ctx, "request> ")
		if err != nil {
			return "", err
		}
		if line = strings.TrimSpace(line); line == "" {
			return "", errNoInput
		}
		return line, nil
	}

	fmt.Fprintf(p.out, "Enter request (type '%s' to finish):\n", multilineTerminator)
	var lines []string
	for {
		line, err := p.ReadLine(ctx, "... ")
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if strings.EqualFold(strings.TrimSpace(line), multilineTerminator) {
			break
		}
		lines = append(lines, line)
	}
	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if text == "" {
		return "", errNoInput
	}
	return text, nil
}

// AskYesNo returns true only for y or yes.
func (p *Prompter) AskYesNo(ctx context.Context, question string) (bool, error) {
	line, err := p.ReadLine(ctx, question+" [y/N]: ")
	if err != nil {
		return false, err
	}
	return isAffirmativeResponse(line), nil
}

// AskExplicit requires the literal word yes.
func (p *Prompter) AskExplicit(ctx context.Context, question string) (bool, error) {
	line, err := p.ReadLine(ctx, question+" Type 'yes' to confirm: ")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(line) == "yes", nil
}

func isAffirmativeResponse(response string) bool {
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}
