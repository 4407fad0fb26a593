package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/lensgrid/internal/inputs"
	"github.com/spf13/cobra"
)

// errEditCancelled is returned when interactive editing is interrupted.
var errEditCancelled = errors.New("edit cancelled, nothing saved")

// prompter asks for one value at a time.
type prompter interface {
	Prompt(label, current string) (string, error)
	Close() error
}

// newPrompter is replaced in tests.
var newPrompter = func(cmd *cobra.Command, historyFile string) (prompter, error) {
	return newReadlinePrompter(cmd.InOrStdin(), cmd.OutOrStdout(), historyFile)
}

type readlinePrompter struct {
	rl *readline.Instance
}

func newReadlinePrompter(in io.Reader, out io.Writer, historyFile string) (*readlinePrompter, error) {
	rc, ok := in.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(in)
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     historyFile,
		Stdin:           rc,
		Stdout:          out,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prompt: %w", err)
	}
	return &readlinePrompter{rl: rl}, nil
}

func (p *readlinePrompter) Prompt(label, current string) (string, error) {
	p.rl.SetPrompt(fmt.Sprintf("%s [%s]: ", label, current))
	line, err := p.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return "", errEditCancelled
	}
	if err != nil {
		return "", err
	}
	return line, nil
}

func (p *readlinePrompter) Close() error {
	return p.rl.Close()
}

// historyPath keeps prompt history next to the state database.
func historyPath(statePath string) string {
	if statePath == "" || statePath == ":memory:" {
		return ""
	}
	return filepath.Join(filepath.Dir(statePath), "inputs_history")
}

// editForm prompts for every field in order. An empty answer keeps the
// current value.
func editForm(form inputs.Form, p prompter) (inputs.Form, error) {
	for _, f := range inputs.Fields {
		current, _ := form.Get(f.Key)
		answer, err := p.Prompt(f.Label, current)
		if err != nil {
			return form, err
		}
		answer = strings.TrimSpace(answer)
		if answer == "" {
			continue
		}
		if err := form.Set(f.Key, answer); err != nil {
			return form, err
		}
	}
	return form, nil
}
