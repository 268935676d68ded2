package cargosafe

// Option adjusts a single BuildProfile call.
type Option func(*buildOptions)

// buildOptions holds per-call settings applied via Option functions.
type buildOptions struct {
	extraRead  []string
	extraWrite []string
}

// WithExtraReadPaths grants read access to additional directory trees. The
// rule is appended after the standard rule set.
func WithExtraReadPaths(paths ...string) Option {
	cpy := append([]string(nil), paths...)
	return func(o *buildOptions) {
		o.extraRead = append(o.extraRead, cpy...)
	}
}

// WithExtraWritePaths grants write access to additional directory trees.
// The rule is appended after the standard rule set and after any extra read
// rule.
func WithExtraWritePaths(paths ...string) Option {
	cpy := append([]string(nil), paths...)
	return func(o *buildOptions) {
		o.extraWrite = append(o.extraWrite, cpy...)
	}
}

func applyOptions(opts []Option) buildOptions {
	var o buildOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
