package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/term"

	"github.com/Lava-10/queryCraft/db"
	"github.com/Lava-10/queryCraft/history"
	"github.com/Lava-10/queryCraft/repl"
	"github.com/Lava-10/queryCraft/server"
	"github.com/Lava-10/queryCraft/trace"
)

const defaultPort = "3001"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	query  string
	debug  bool
	format string
	serve  bool
	addr   string
}

// defaultAddr is QUERYCRAFT_ADDR, or PORT on all interfaces, or port 3001.
func defaultAddr() string {
	if addr := os.Getenv("QUERYCRAFT_ADDR"); addr != "" {
		return addr
	}
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":" + defaultPort
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts := options{}
	fs := flag.NewFlagSet("querycraft", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.query, "q", "", "SQL statement to run (e.g., \"SELECT 1 + 1\")")
	fs.BoolVar(&opts.debug, "debug", false, "Print the stage trace of -q and log at debug level")
	fs.StringVar(&opts.format, "format", "table", "Output format: table, json")
	fs.BoolVar(&opts.serve, "serve", false, "Serve the HTTP API")
	fs.StringVar(&opts.addr, "addr", defaultAddr(), "Address of the HTTP API")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: querycraft [options]\n\n")
		fmt.Fprintf(stderr, "An in memory SQL engine. Starts a REPL when no options are given.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  querycraft -q \"SELECT 1 + 1\"\n")
		fmt.Fprintf(stderr, "  querycraft -debug -q \"SELECT upper('a')\"\n")
		fmt.Fprintf(stderr, "  querycraft -serve -addr :8080\n")
		fmt.Fprintf(stderr, "  querycraft < script.sql\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if opts.format != "table" && opts.format != "json" {
		fmt.Fprintf(stderr, "Error: -format must be table or json, got %s\n", opts.format)
		return 2
	}
	if opts.serve && opts.query != "" {
		fmt.Fprintf(stderr, "Error: -serve and -q cannot be used together\n")
		return 2
	}

	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	d := db.New(db.WithLogger(logger))

	switch {
	case opts.serve:
		return serve(d, opts.addr, logger)
	case opts.query != "" && opts.debug:
		return printTrace(d, opts.query, stdout, stderr)
	case opts.query != "":
		return runScript(d, opts.query, opts.format, stdout, stderr)
	}

	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return runRepl(d, f, stdout, stderr)
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading input: %s\n", err)
		return 1
	}
	return runScript(d, string(b), opts.format, stdout, stderr)
}

func serve(d *db.DB, addr string, logger *slog.Logger) int {
	h, err := history.New(history.DefaultSize)
	if err != nil {
		logger.Error("creating history", "err", err)
		return 1
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: server.New(d, h, logger),
	}
	logger.Info("server running", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "err", err)
		return 1
	}
	return 0
}

func printTrace(d *db.DB, query string, stdout, stderr io.Writer) int {
	s := trace.Run(d, query)
	b, err := trace.Marshal(s)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return 1
	}
	fmt.Fprintln(stdout, string(b))
	if _, err := trace.Failed(s); err != nil {
		return 1
	}
	return 0
}

// runScript runs every statement of script. A script without a trailing
// semicolon still runs its last statement, so an unterminated string literal
// is reported by the parser. It stops at the first error.
func runScript(d *db.DB, script, format string, stdout, stderr io.Writer) int {
	statements, rest := repl.SplitStatements(script)
	if rest != "" {
		statements = append(statements, rest)
	}
	for _, statement := range statements {
		res, err := d.Run(statement)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return 1
		}
		if format == "json" {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(trace.ResultValue(res)); err != nil {
				fmt.Fprintf(stderr, "Error: %s\n", err)
				return 1
			}
			continue
		}
		repl.PrintResult(stdout, res)
	}
	return 0
}

func runRepl(d *db.DB, stdin *os.File, stdout, stderr io.Writer) int {
	fd := int(stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return 1
	}
	defer term.Restore(fd, oldState)
	historyPath, err := repl.DefaultHistoryPath()
	if err != nil {
		historyPath = ""
	}
	rw := struct {
		io.Reader
		io.Writer
	}{stdin, stdout}
	if err := repl.New(d, rw, historyPath).Run(); err != nil {
		term.Restore(fd, oldState)
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return 1
	}
	return 0
}
