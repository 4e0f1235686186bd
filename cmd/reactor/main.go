// Command reactor runs ReAct missions and single tool calls from the
// command line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/nugget/reactor/internal/buildinfo"
	"github.com/nugget/reactor/internal/config"
)

// main only builds the OS-level environment and hands off to [run], so
// the whole command can be driven from tests.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		stop()
		os.Exit(1)
	}
}

// Output formats.
const (
	outputText = "text"
	outputJSON = "json"
	outputHTML = "html"
)

// run is the real entry point. Results go to stdout; logs go to
// stderr so that -o json output stays machine readable.
//
// Arguments are parsed by hand because the flag package's global state
// gets in the way of calling run concurrently from tests.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case command != "":
			cmdArgs = append(cmdArgs, args[i])
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-"):
			command = args[i]
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	if outputFmt == "" {
		outputFmt = outputText
	}
	switch outputFmt {
	case outputText, outputJSON, outputHTML:
	default:
		return fmt.Errorf("unknown output format: %q (expected text, json or html)", outputFmt)
	}

	switch command {
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		return runAsk(ctx, stdout, stderr, configPath, outputFmt, cmdArgs)
	case "tool":
		if len(cmdArgs) == 0 {
			return errors.New("usage: reactor tool <name> [json-args]")
		}
		return runTool(ctx, stdout, stderr, configPath, outputFmt, cmdArgs)
	case "tools":
		return runTools(ctx, stdout, stderr, configPath, outputFmt)
	case "sessions":
		return runSessions(ctx, stdout, stderr, configPath, outputFmt, cmdArgs)
	case "show":
		if len(cmdArgs) != 1 {
			return errors.New("usage: reactor show <session-id>")
		}
		return runShow(ctx, stdout, stderr, configPath, outputFmt, cmdArgs[0])
	case "cancel":
		if len(cmdArgs) != 1 {
			return errors.New("usage: reactor cancel <session-id>")
		}
		return runCancel(ctx, stdout, stderr, configPath, cmdArgs[0])
	case "usage":
		return runUsage(ctx, stdout, stderr, configPath, outputFmt, cmdArgs)
	case "delegations":
		return runDelegations(ctx, stdout, stderr, configPath, outputFmt, cmdArgs)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()

	if outputFmt == outputJSON {
		return writeJSON(w, info)
	}

	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(w, buildinfo.String())
	for _, k := range keys {
		fmt.Fprintf(w, "  %-12s %s\n", k, info[k])
	}
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Usage: reactor [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  init [dir]                  Write an example config.yaml")
	fmt.Fprintln(w, "  ask [-ref r]... <goal>      Run a mission until it answers")
	fmt.Fprintln(w, "  tool <name> [json-args]     Run one tool directly")
	fmt.Fprintln(w, "  tools                       List registered tools")
	fmt.Fprintln(w, "  sessions [limit]            List stored sessions")
	fmt.Fprintln(w, "  show <session-id>           Print a stored session")
	fmt.Fprintln(w, "  cancel <session-id>         Ask a running mission to stop")
	fmt.Fprintln(w, "  delegations [parent-id]     List delegated sub-missions")
	fmt.Fprintln(w, "  usage [window]              Token usage over a window (default 24h)")
	fmt.Fprintln(w, "  version                     Print build information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>              Config file")
	fmt.Fprintln(w, "  -o, --output <format>       text (default), json or html")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/reactor/config.yaml, /etc/reactor/config.yaml")
	return nil
}

// newLogger creates a structured logger writing to w. Format must be
// "text" or "json"; anything else falls back to text.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// loadConfig locates and parses the config file. With no explicit path
// and nothing in the search paths, the built-in defaults are used.
// Returns the path that was loaded, or "" for defaults.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, "", err
		}
		return config.Default(), "", nil
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config: %w", err)
	}
	return cfg, cfgPath, nil
}

// setup loads config and builds the logger every subcommand uses.
func setup(stderr io.Writer, configPath string) (*config.Config, *slog.Logger, error) {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	// Validate has already rejected unknown levels.
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := newLogger(stderr, level, cfg.LogFormat)
	if cfgPath == "" {
		logger.Debug("no config file found, using defaults")
	} else {
		logger.Debug("config loaded", "path", cfgPath)
	}
	return cfg, logger, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
