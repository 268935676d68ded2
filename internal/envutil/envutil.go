// Package envutil manipulates environment slices in "KEY=VALUE" form, the
// shape used by os.Environ and exec.Cmd.Env.
package envutil

import (
	"strings"
)

// key returns the name part of a "KEY=VALUE" entry.
func key(entry string) string {
	if idx := strings.IndexByte(entry, '='); idx >= 0 {
		return entry[:idx]
	}
	return entry
}

// Lookup returns the value of name in env and whether it was present.
// When name appears more than once the last entry wins, matching what a
// child started through os/exec observes.
func Lookup(env []string, name string) (string, bool) {
	prefix := name + "="
	for i := len(env) - 1; i >= 0; i-- {
		if strings.HasPrefix(env[i], prefix) {
			return env[i][len(prefix):], true
		}
	}
	return "", false
}

// LookupNonEmpty is Lookup but treats an empty value as unset.
func LookupNonEmpty(env []string, name string) (string, bool) {
	v, ok := Lookup(env, name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithoutPrefix returns a new slice without the variables whose name starts
// with prefix. Used to drop DYLD_* and LD_* before launching a child.
func WithoutPrefix(env []string, prefix string) []string {
	result := make([]string, 0, len(env))
	for _, e := range env {
		if !strings.HasPrefix(key(e), prefix) {
			result = append(result, e)
		}
	}
	return result
}

// Merge returns a new slice holding base with overrides applied. Entries of
// base whose name appears in overrides are replaced at their position;
// remaining overrides are appended in their original order.
func Merge(base, overrides []string) []string {
	byKey := make(map[string]string, len(overrides))
	order := make([]string, 0, len(overrides))
	for _, e := range overrides {
		k := key(e)
		if _, exists := byKey[k]; !exists {
			order = append(order, k)
		}
		byKey[k] = e
	}

	used := make(map[string]bool, len(byKey))
	result := make([]string, 0, len(base)+len(overrides))
	for _, e := range base {
		k := key(e)
		override, ok := byKey[k]
		switch {
		case !ok:
			result = append(result, e)
		case !used[k]:
			result = append(result, override)
			used[k] = true
		}
		// Later duplicates of an overridden key are dropped.
	}
	for _, k := range order {
		if !used[k] {
			result = append(result, byKey[k])
		}
	}
	return result
}
