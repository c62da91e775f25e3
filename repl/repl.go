// repl (read eval print loop) adapts db to the command line.
package repl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"

	"github.com/Lava-10/queryCraft/compiler"
	"github.com/Lava-10/queryCraft/db"
	"github.com/Lava-10/queryCraft/vm"
)

const (
	// emptyHeaderValue is printed when the cell in a header is the empty string
	emptyHeaderValue = "<anonymous>"
	// prompt is the prompt.
	prompt = "querycraft> "
	// promptContinued is the prompt when it is pending termination for example
	// by a semi colon.
	promptContinued = "       ...> "
	historyFile     = ".querycraft_history"
)

type Repl struct {
	db       *db.DB
	terminal *term.Terminal
	// historyPath is where line history is kept between sessions. History is
	// not persisted when it is empty.
	historyPath string
}

// New returns a repl reading from and writing to rw. rw is typically a
// terminal in raw mode.
func New(d *db.DB, rw io.ReadWriter, historyPath string) *Repl {
	r := &Repl{
		db:          d,
		terminal:    term.NewTerminal(rw, prompt),
		historyPath: historyPath,
	}
	r.loadHistory()
	return r
}

// DefaultHistoryPath is the history file in the home directory.
func DefaultHistoryPath() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, historyFile), nil
}

// Run reads statements until .exit or the end of input. Statements are
// executed once terminated by a semicolon.
func (r *Repl) Run() error {
	defer r.saveHistory()
	r.writeLn("Welcome to queryCraft. Type .exit to exit")
	r.writeWarning("WARN database is running in memory and will not persist changes")

	previousInput := ""
	for {
		if previousInput == "" {
			r.terminal.SetPrompt(prompt)
		} else {
			r.terminal.SetPrompt(promptContinued)
		}
		line, err := r.terminal.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading line: %w", err)
		}
		input := previousInput + line
		if strings.TrimSpace(input) == "" {
			previousInput = ""
			continue
		}
		if previousInput == "" && strings.HasPrefix(strings.TrimSpace(input), ".") {
			if r.command(strings.TrimSpace(input)) {
				return nil
			}
			continue
		}

		statements, rest := SplitStatements(input)
		if rest != "" {
			previousInput = input + "\n"
			continue
		}
		previousInput = ""
		for _, statement := range statements {
			r.execute(statement)
		}
	}
}

// command runs a dot command and reports whether the repl should exit.
func (r *Repl) command(input string) bool {
	switch input {
	case ".exit":
		return true
	case ".tables":
		for _, name := range r.db.TableNames() {
			r.writeLn(name)
		}
	default:
		r.writeLn("Command not supported")
	}
	return false
}

func (r *Repl) execute(statement string) {
	result, err := r.db.Run(statement)
	if err != nil {
		r.writeLn("Err: " + err.Error())
		return
	}
	sb := &strings.Builder{}
	PrintResult(sb, result)
	r.terminal.Write([]byte(sb.String()))
	r.writeLn("Time: " + result.Duration.String())
}

// SplitStatements splits input into statements terminated by semicolons.
// Semicolons inside string literals and comments do not split. rest is the
// trailing text of a statement still waiting for its semicolon, or empty when
// the input ends with a terminated statement.
func SplitStatements(input string) (statements []string, rest string) {
	start := 0
	pending := false
	for _, t := range compiler.Tokenize(input) {
		switch {
		case t.Type == compiler.TokenEOF:
		case t.Type == compiler.TokenSeparator && t.Value == ";":
			if pending {
				statements = append(statements, strings.TrimSpace(input[start:t.Offset+1]))
			}
			start = t.Offset + 1
			pending = false
		default:
			pending = true
		}
	}
	if pending {
		rest = strings.TrimSpace(input[start:])
	}
	return statements, rest
}

// PrintResult writes the result rows as a table. Statements without result
// columns print the number of affected rows instead.
func PrintResult(w io.Writer, res *vm.Result) {
	if len(res.Columns) == 0 {
		if res.RowsAffected > 0 {
			fmt.Fprintf(w, "(%d rows affected)\n", res.RowsAffected)
		}
		return
	}
	header := make([]string, 0, len(res.Columns))
	for _, c := range res.Columns {
		if c == "" {
			c = emptyHeaderValue
		}
		header = append(header, c)
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, row := range res.Rows {
		cells := make([]string, 0, len(row))
		for _, v := range row {
			cells = append(cells, v.String())
		}
		table.Append(cells)
	}
	table.Render()
	if len(res.Rows) == 0 {
		fmt.Fprintln(w, "(0 rows)")
	}
}

func (r *Repl) writeLn(text string) {
	r.terminal.Write(([]byte)(text + "\n"))
}

func (r *Repl) writeWarning(text string) {
	r.terminal.Write(r.terminal.Escape.Yellow)
	r.writeLn(text)
	r.terminal.Write(r.terminal.Escape.Reset)
}

func (r *Repl) loadHistory() {
	if r.historyPath == "" {
		return
	}
	contents, err := os.ReadFile(r.historyPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		r.writeWarning("failed to load history " + err.Error())
		return
	}
	lines := strings.Split((string)(contents), "\n")
	slices.Reverse(lines)
	for _, line := range lines {
		if line == "" {
			continue
		}
		r.terminal.History.Add(line)
	}
}

func (r *Repl) saveHistory() {
	if r.historyPath == "" {
		return
	}
	history := []byte{}
	for i := range r.terminal.History.Len() {
		entry := r.terminal.History.At(i)
		history = append(history, ([]byte)(entry+"\n")...)
	}
	if err := os.WriteFile(r.historyPath, history, 0644); err != nil {
		r.writeWarning("failed to write history " + err.Error())
	}
}
