package main

import (
	"strings"

	"github.com/spf13/pflag"
)

// options holds the wrapper's own flags.
type options struct {
	dumpProfile      bool
	configPath       string
	sandboxDir       string
	verbose          bool
	reportViolations bool
	help             bool
}

// valueFlags are wrapper flags that take an argument.
var valueFlags = map[string]bool{
	"safe-config": true,
	"sandbox-dir": true,
}

// boolFlags are wrapper flags without an argument.
var boolFlags = map[string]bool{
	"dump-profile":      true,
	"safe-verbose":      true,
	"report-violations": true,
	"help-safe":         true,
}

func newFlagSet(o *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("cargo-safe", pflag.ContinueOnError)
	fs.BoolVar(&o.dumpProfile, "dump-profile", false, "print the sandbox profile and exit")
	fs.StringVar(&o.configPath, "safe-config", "", "config file (default: $CARGO_SAFE_CONFIG or <workspace>/.cargo-safe.yaml)")
	fs.StringVar(&o.sandboxDir, "sandbox-dir", "", "staging directory for CARGO_HOME and CARGO_TARGET_DIR (default: target/cargo-safe)")
	fs.BoolVar(&o.verbose, "safe-verbose", false, "enable debug logging")
	fs.BoolVar(&o.reportViolations, "report-violations", false, "log sandbox denials observed while cargo runs")
	fs.BoolVar(&o.help, "help-safe", false, "show cargo-safe help")
	fs.SortFlags = false
	return fs
}

// splitArgs separates wrapper flags from the arguments forwarded to cargo.
// A leading "safe" (added by cargo when run as `cargo safe`) is dropped.
// Wrapper flags are recognized anywhere before the first "--"; that
// separator and everything after it go to cargo unchanged.
func splitArgs(args []string) (wrapper, cargo []string) {
	if len(args) > 0 && args[0] == "safe" {
		args = args[1:]
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			cargo = append(cargo, args[i:]...)
			break
		}
		name, hasValue := flagName(arg)
		switch {
		case boolFlags[name]:
			wrapper = append(wrapper, arg)
		case valueFlags[name]:
			wrapper = append(wrapper, arg)
			if !hasValue && i+1 < len(args) {
				i++
				wrapper = append(wrapper, args[i])
			}
		default:
			cargo = append(cargo, arg)
		}
	}
	return wrapper, cargo
}

// flagName returns the name of a long flag and whether it carries an
// inline "=value". Anything else yields "".
func flagName(arg string) (string, bool) {
	if !strings.HasPrefix(arg, "--") || len(arg) == 2 {
		return "", false
	}
	name, _, found := strings.Cut(arg[2:], "=")
	return name, found
}

// parseOptions parses the wrapper flags and returns them with cargo's
// arguments.
func parseOptions(args []string) (*options, []string, *pflag.FlagSet, error) {
	wrapper, cargo := splitArgs(args)
	o := &options{}
	fs := newFlagSet(o)
	if err := fs.Parse(wrapper); err != nil {
		return nil, nil, fs, err
	}
	return o, cargo, fs, nil
}
