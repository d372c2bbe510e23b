package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	consumedNone = 0
	consumedOne  = 1
	consumedTwo  = 2
	helpFlag     = "--help"
)

// Run is the main entry point. Returns the exit code.
//
// A signal on sigCh cancels the context every command runs under; open
// handles are still closed before Run returns. sigCh may be nil.
func Run(_ io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	flags, err := parseGlobalFlags(args[min(1, len(args)):])
	if err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printUsage(errOut, nil)

		return 1
	}

	cfg, err := loadConfig(loadConfigInput{
		WorkDirOverride: flags.workDir,
		ConfigPath:      flags.configPath,
		ChunkSize:       flags.chunkSize,
		Env:             env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	if flags.verbose {
		cfg.Logger = slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	commands := []*Command{
		CatCmd(&cfg),
		CpCmd(&cfg),
		PrintConfigCmd(&cfg),
	}

	if len(flags.remaining) == 0 || flags.remaining[0] == "-h" || flags.remaining[0] == helpFlag {
		printUsage(out, commands)

		return 0
	}

	name := flags.remaining[0]

	for _, cmd := range commands {
		if cmd.Name() != name {
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if sigCh != nil {
			go func() {
				select {
				case sig := <-sigCh:
					cfg.Logger.Debug("streamfile: cancelling", "signal", sig.String())
					cancel()
				case <-ctx.Done():
				}
			}()
		}

		return cmd.Run(ctx, NewIO(out, errOut), flags.remaining[1:])
	}

	fprintln(errOut, "error:", fmt.Errorf("%w: %s", errUnknownCommand, name))
	fprintln(errOut)
	printUsage(errOut, commands)

	return 1
}

type globalFlags struct {
	workDir    string
	configPath string
	chunkSize  int
	verbose    bool
	remaining  []string
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	var flags globalFlags

	idx := 0
	for idx < len(args) {
		consumed, err := parseFlag(args, idx, &flags)
		if err != nil {
			return globalFlags{}, err
		}

		if consumed == consumedNone {
			flags.remaining = args[idx:]

			break
		}

		idx += consumed
	}

	return flags, nil
}

// parseFlag parses the global flag at args[idx] and returns how many args it
// consumed, 0 if args[idx] is not a global flag.
func parseFlag(args []string, idx int, flags *globalFlags) (int, error) {
	arg := args[idx]

	value, consumed, ok, err := flagValue(args, idx, "-C", "--cwd")
	if ok {
		flags.workDir = value

		return consumed, err
	}

	value, consumed, ok, err = flagValue(args, idx, "-c", "--config")
	if ok {
		flags.configPath = value

		return consumed, err
	}

	value, consumed, ok, err = flagValue(args, idx, "", "--chunk-size")
	if ok {
		if err != nil {
			return consumedNone, err
		}

		n, convErr := strconv.Atoi(value)
		if convErr != nil || n <= 0 {
			return consumedNone, fmt.Errorf("%w: --chunk-size must be a positive integer, got %q", errConfigInvalid, value)
		}

		flags.chunkSize = n

		return consumed, nil
	}

	if arg == "-v" || arg == "--verbose" {
		flags.verbose = true

		return consumedOne, nil
	}

	if arg == "-h" || arg == helpFlag {
		flags.remaining = []string{helpFlag}

		return len(args) - idx, nil
	}

	if strings.HasPrefix(arg, "-") && arg != "-" {
		return consumedNone, fmt.Errorf("%w: %s", errUnknownFlag, arg)
	}

	return consumedNone, nil
}

// flagValue matches "-s v", "-sv", "--long v" and "--long=v". ok reports a
// match; err is set when the value is missing.
func flagValue(args []string, idx int, short, long string) (string, int, bool, error) {
	arg := args[idx]

	if (short != "" && arg == short) || arg == long {
		if idx+1 >= len(args) {
			return "", consumedNone, true, fmt.Errorf("%w: %s", errFlagRequiresArg, arg)
		}

		return args[idx+1], consumedTwo, true, nil
	}

	if after, found := strings.CutPrefix(arg, long+"="); found {
		return after, consumedOne, true, nil
	}

	if short != "" {
		if after, found := strings.CutPrefix(arg, short); found && !strings.HasPrefix(arg, "--") {
			return after, consumedOne, true, nil
		}
	}

	return "", consumedNone, false, nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, commands []*Command) {
	fprintln(w, `streamfile - scoped file streams

Usage: streamfile [global flags] <command> [args]

Global flags:
  -C, --cwd <dir>         Run as if started in <dir>
  -c, --config <file>     Use specified config file
      --chunk-size <n>    Read chunk size in bytes
  -v, --verbose           Log handle lifecycle to stderr
  -h, --help              Show help`)

	if len(commands) == 0 {
		return
	}

	fprintln(w)
	fprintln(w, "Commands:")

	for _, cmd := range commands {
		fprintln(w, cmd.HelpLine())
	}
}
