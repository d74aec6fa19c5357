package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joomcode/errorx"
	"github.com/patsak/brainfrick"
	slogmulti "github.com/samber/slog-multi"
)

func main() {
	code, fault := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	if fault != nil {
		errorx.Panic(fault)
	}
	os.Exit(code)
}

// run returns the exit status for setup problems and budget stops, and a
// non-nil fault when the program itself broke during execution.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	fs := flag.NewFlagSet("brainfrick", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "Verbose logging on stderr")
	configPath := fs.String("config", "", "TOML configuration file")
	logFile := fs.String("log-file", "", "Append JSON logs to this file")
	check := fs.Bool("check", false, "Reject programs with unbalanced brackets before running")
	jumps := fs.Bool("jump-table", false, "Precompute bracket targets")
	stepLimit := fs.Uint64("step-limit", 0, "Stop after this many steps (0 = unlimited)")
	tapeSize := fs.Int("tape-size", brainfrick.DefaultTapeSize, "Number of tape cells")
	dump := fs.Bool("dump", false, "Print the instruction listing instead of running")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: brainfrick [options] <path to program to run>\n\n")
		fmt.Fprintf(stderr, "Use - as the path to read the program from stdin.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1, nil
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1, nil
	}

	logger, closeLog, err := newLogger(stderr, *verbose, *logFile)
	if err != nil {
		fmt.Fprintf(stderr, "Could not open log file: %v\n", err)
		return 1, nil
	}
	defer closeLog()

	cfg := brainfrick.DefaultConfig()
	if *configPath != "" {
		cfg, err = brainfrick.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Could not load config: %v\n", err)
			return 1, nil
		}
		logger.Debug("config loaded", "path", *configPath)
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "check":
			cfg.CheckBrackets = *check
		case "jump-table":
			cfg.JumpTable = *jumps
		case "step-limit":
			cfg.StepLimit = *stepLimit
		case "tape-size":
			cfg.TapeSize = *tapeSize
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return 1, nil
	}
	logger.Debug("configuration", "tape_size", cfg.TapeSize, "step_limit", cfg.StepLimit,
		"jump_table", cfg.JumpTable, "check_brackets", cfg.CheckBrackets)

	inputFile := fs.Arg(0)
	program, err := readProgram(inputFile, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1, nil
	}
	logger.Debug("program loaded", "path", inputFile, "bytes", len(program))

	if cfg.CheckBrackets {
		if err := brainfrick.Validate(program); err != nil {
			logger.Debug("bracket check failed", "error", err)
			fmt.Fprintf(stderr, "Malformed program: %v\n", err)
			return 1, nil
		}
	}

	opts := append(cfg.Options(), brainfrick.WithInput(stdin), brainfrick.WithOutput(stdout))
	vm := brainfrick.NewVM(opts...)
	vm.Load(program)

	if *dump {
		fmt.Fprint(stdout, vm.CodeString())
		return 0, nil
	}

	if err := vm.Run(ctx); err != nil {
		logger.Error("execution stopped", "steps", vm.Steps(), "error", err)
		if errorx.IsOfType(err, brainfrick.StepLimitExceeded) || errorx.IsOfType(err, brainfrick.Cancelled) {
			fmt.Fprintf(stderr, "Execution stopped: %v\n", err)
			return 1, nil
		}
		return 1, err
	}
	logger.Debug("halted", "steps", vm.Steps())
	return 0, nil
}

func readProgram(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		code, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("Could not read program from stdin: %w", err)
		}
		return code, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Could not open file for reading: %w", err)
	}
	defer f.Close()
	code, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("Could not read file: %w", err)
	}
	return code, nil
}

func newLogger(stderr io.Writer, verbose bool, logFile string) (*slog.Logger, func(), error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	if verbose {
		level.Set(slog.LevelDebug)
	}
	handlers := []slog.Handler{
		slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}),
	}
	closeLog := func() {}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
		closeLog = func() { f.Close() }
	}
	return slog.New(slogmulti.Fanout(handlers...)), closeLog, nil
}
