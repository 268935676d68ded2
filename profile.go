package cargosafe

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zhangyunhao116/cargosafe/internal/envutil"
	"github.com/zhangyunhao116/cargosafe/internal/pathutil"
	"github.com/zhangyunhao116/cargosafe/seatbelt"
)

// Environment is the process state a profile is derived from. The zero value
// describes an empty environment with /tmp as the temp directory.
type Environment struct {
	// Vars is the process environment in "KEY=VALUE" form. PATH and HOME
	// are read from it.
	Vars []string

	// TempDir is the OS temp directory. If empty, TMPDIR from Vars is used,
	// falling back to /tmp.
	TempDir string

	// Canonicalize resolves symlinks in a path. If nil, the absolute path
	// with all symlinks resolved is used.
	Canonicalize func(string) (string, error)
}

// CurrentEnvironment returns a snapshot of this process's environment.
func CurrentEnvironment() Environment {
	return Environment{
		Vars:    os.Environ(),
		TempDir: os.TempDir(),
	}
}

// tempDir returns the configured temp directory.
func (e Environment) tempDir() string {
	if e.TempDir != "" {
		return e.TempDir
	}
	if dir, ok := envutil.LookupNonEmpty(e.Vars, "TMPDIR"); ok {
		return dir
	}
	return "/tmp"
}

func (e Environment) canonicalize(p string) (string, error) {
	if e.Canonicalize != nil {
		return e.Canonicalize(p)
	}
	return pathutil.Canonicalize(p)
}

// Devices the toolchain opens for writing (dtrace probes, /dev/null, tty).
var writableDevices = []seatbelt.Filter{
	seatbelt.Literal("/dev/dtracehelper"),
	seatbelt.Literal("/dev/null"),
	seatbelt.Literal("/dev/tty"),
}

// systemReadFilters lists what any build needs to read regardless of the
// environment: devices, system configuration, timezone data, developer
// tools, frameworks and libraries, preferences, and cargo manifests.
var systemReadFilters = []seatbelt.Filter{
	// "/" must stay a literal: listing the root, not reading the disk.
	seatbelt.Literal("/"),
	seatbelt.Literal("/dev/autofs_nowait"),
	seatbelt.Literal("/dev/urandom"),
	seatbelt.Literal("/dev/random"),
	seatbelt.Literal("/dev/null"),
	seatbelt.Literal("/dev/tty"),
	seatbelt.Literal("/dev/dtracehelper"),
	seatbelt.Prefix("/private/etc/"),
	seatbelt.Prefix("/private/var/db/timezone/"),
	seatbelt.Prefix("/Applications/Xcode.app/Contents/Developer"),
	seatbelt.Prefix("/usr/lib/"),
	seatbelt.Prefix("/usr/lib/info/"),
	seatbelt.Prefix("/private/var/db/dyld/"),
	seatbelt.Prefix("/System/Library/Frameworks/"),
	seatbelt.Prefix("/System/Library/PrivateFrameworks/"),
	seatbelt.Prefix("/System/Library/"),
	seatbelt.Prefix("/System/Volumes/Preboot/Cryptexes/OS"),
	seatbelt.Prefix("/System/Cryptexes/OS/"),
	seatbelt.Prefix("/Library/Preferences/"),
	seatbelt.Regex("/.CFUserTextEncoding$"),
	seatbelt.Regex("/Cargo.(lock|toml)$"),
	seatbelt.Regex("/.cargo/config$"),
}

// outboundFilters allows HTTP(S) to any host plus the local DNS resolver.
var outboundFilters = []seatbelt.Filter{
	seatbelt.RemoteIP("*:80"),
	seatbelt.RemoteIP("*:443"),
	seatbelt.RemoteUnixSocket("/private/var/run/mDNSResponder"),
}

// baseRules returns the environment-independent part of the profile:
// default deny, the unconditional allowances, root metadata and devices.
func baseRules() []seatbelt.Rule {
	return []seatbelt.Rule{
		seatbelt.Deny(seatbelt.Default),
		seatbelt.Allow(seatbelt.ProcessAll),
		seatbelt.Allow(seatbelt.SysctlRead),
		seatbelt.Allow(seatbelt.MachLookup),
		seatbelt.Allow(seatbelt.IpcPosixShmReadData),
		seatbelt.Allow(seatbelt.UserPreferenceRead),
		seatbelt.Allow(seatbelt.FileReadMetadata, seatbelt.Prefix("/")),
		seatbelt.Allow(seatbelt.FileIoctl, seatbelt.Literal("/dev/dtracehelper")),
		seatbelt.Allow(seatbelt.FileWriteAll, clone(writableDevices)...),
	}
}

// BuildProfile assembles the sandbox profile for running cargo on workspace
// with its cache and build output redirected into sandboxDir. Both paths
// must be absolute. Rules are emitted in this order:
//
//  1. deny default
//  2. process*, sysctl-read, mach-lookup, POSIX shm reads, preference reads
//  3. file-read-metadata on everything
//  4. ioctl and writes on the dtrace helper, /dev/null and /dev/tty
//  5. reads under every PATH entry
//  6. reads of system files, frameworks, libraries and cargo manifests
//  7. outbound network to *:80, *:443 and the mDNSResponder socket
//  8. writes to <workspace>/Cargo.lock, reads under workspace
//  9. reads under ~/.rustup/, then a metadata deny under ~/.ssh/
//  10. reads and writes under the canonical temp directory
//  11. writes under <sandboxDir>/cargo and <sandboxDir>/target
//
// followed by rules from opts. A missing PATH or HOME drops the rules that
// depend on it, as does a path that cannot be written as profile text.
// Failing to canonicalize the temp directory returns an error wrapping
// ErrTempDir and no profile.
func BuildProfile(workspace, sandboxDir string, env Environment, opts ...Option) (*seatbelt.Profile, error) {
	o := applyOptions(opts)
	rules := baseRules()

	if filters := pathReadFilters(env.Vars); len(filters) > 0 {
		rules = append(rules, seatbelt.Allow(seatbelt.FileReadAll, filters...))
	}
	rules = append(rules,
		seatbelt.Allow(seatbelt.FileReadAll, clone(systemReadFilters)...),
		seatbelt.Allow(seatbelt.NetworkOutbound, clone(outboundFilters)...),
	)

	if ws, ok := pathutil.AsText(workspace); ok {
		// Cargo.lock is the only file cargo may write in the real
		// workspace; everything else goes to the staging directory.
		rules = append(rules,
			seatbelt.Allow(seatbelt.FileWriteAll, seatbelt.Literal(filepath.Join(ws, "Cargo.lock"))),
			seatbelt.Allow(seatbelt.FileReadAll, seatbelt.Prefix(ws)),
		)
	}

	if home, ok := envutil.LookupNonEmpty(env.Vars, "HOME"); ok {
		if home, ok := pathutil.AsText(home); ok {
			// Root metadata is readable (rule 3); keep key names under
			// ~/.ssh out of reach. This rule must follow rule 3.
			rules = append(rules,
				seatbelt.Allow(seatbelt.FileReadAll, seatbelt.Prefix(pathutil.Under(home, ".rustup"))),
				seatbelt.Deny(seatbelt.FileReadMetadata, seatbelt.Prefix(pathutil.Under(home, ".ssh"))),
			)
		}
	}

	tmp := env.tempDir()
	realTmp, err := env.canonicalize(tmp)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrTempDir, tmp, err)
	}
	if realTmp, ok := pathutil.AsText(realTmp); ok {
		rules = append(rules,
			seatbelt.Allow(seatbelt.FileReadAll, seatbelt.Prefix(realTmp)),
			seatbelt.Allow(seatbelt.FileWriteAll, seatbelt.Prefix(realTmp)),
		)
	}

	if sb, ok := pathutil.AsText(sandboxDir); ok {
		rules = append(rules, seatbelt.Allow(seatbelt.FileWriteAll,
			seatbelt.Prefix(CargoHome(sb)),
			seatbelt.Prefix(TargetDir(sb)),
		))
	}

	if filters := prefixFilters(o.extraRead); len(filters) > 0 {
		rules = append(rules, seatbelt.Allow(seatbelt.FileReadAll, filters...))
	}
	if filters := prefixFilters(o.extraWrite); len(filters) > 0 {
		rules = append(rules, seatbelt.Allow(seatbelt.FileWriteAll, filters...))
	}

	return &seatbelt.Profile{Rules: rules}, nil
}

// pathReadFilters returns one prefix filter per usable PATH entry. Empty
// entries are skipped: an empty prefix would match every file.
func pathReadFilters(vars []string) []seatbelt.Filter {
	path, ok := envutil.Lookup(vars, "PATH")
	if !ok {
		return nil
	}
	return prefixFilters(filepath.SplitList(path))
}

func prefixFilters(paths []string) []seatbelt.Filter {
	var filters []seatbelt.Filter
	for _, p := range paths {
		if p == "" {
			continue
		}
		if p, ok := pathutil.AsText(p); ok {
			filters = append(filters, seatbelt.Prefix(p))
		}
	}
	return filters
}

// clone copies a shared filter table so callers never alias package state.
func clone(filters []seatbelt.Filter) []seatbelt.Filter {
	return append([]seatbelt.Filter(nil), filters...)
}
