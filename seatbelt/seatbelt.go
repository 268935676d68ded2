package seatbelt

import (
	"io"
	"strings"
)

const unknownStr = "unknown"

// Action is the verdict of a rule.
type Action int

const (
	// ActionAllow permits the operation.
	ActionAllow Action = iota

	// ActionDeny forbids the operation.
	ActionDeny
)

// String returns the SBPL keyword for the action.
func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionDeny:
		return "deny"
	default:
		return unknownStr
	}
}

// Operation is a category of system action governed by a rule.
type Operation int

// Operations. Each maps to one SBPL token; see operationTokens. Names ending
// in All are the wildcard forms (file-read*, process*, ...).
const (
	Default Operation = iota
	FileAll
	FileWriteAll
	FileReadAll
	FileIoctl
	IpcPosixShmReadData
	UserPreferenceRead
	FileReadMetadata
	NetworkOutbound
	MachLookup
	IpcAll
	MachAll
	NetworkAll
	ProcessAll
	ProcessFork
	Signal
	SysctlAll
	SysctlRead
	SystemAll

	numOperations
)

// operationTokens must list one token per Operation, in declaration order.
var operationTokens = [numOperations]string{
	Default:             "default",
	FileAll:             "file*",
	FileWriteAll:        "file-write*",
	FileReadAll:         "file-read*",
	FileIoctl:           "file-ioctl",
	IpcPosixShmReadData: "ipc-posix-shm-read-data",
	UserPreferenceRead:  "user-preference-read",
	FileReadMetadata:    "file-read-metadata",
	NetworkOutbound:     "network-outbound",
	MachLookup:          "mach-lookup",
	IpcAll:              "ipc*",
	MachAll:             "mach*",
	NetworkAll:          "network*",
	ProcessAll:          "process*",
	ProcessFork:         "process-fork",
	Signal:              "signal",
	SysctlAll:           "sysctl*",
	SysctlRead:          "sysctl-read",
	SystemAll:           "system*",
}

// Valid reports whether o is one of the declared operations.
func (o Operation) Valid() bool {
	return o >= 0 && o < numOperations
}

// String returns the SBPL token for the operation.
func (o Operation) String() string {
	if !o.Valid() {
		return unknownStr
	}
	return operationTokens[o]
}

// FilterKind identifies the predicate a Filter applies.
type FilterKind int

const (
	// KindLiteral matches exactly one path.
	KindLiteral FilterKind = iota

	// KindPrefix matches every path starting with the value.
	KindPrefix

	// KindRegex matches every path satisfying the pattern.
	KindRegex

	// KindRemoteIP matches a network peer, e.g. "*:443".
	KindRemoteIP

	// KindRemoteUnixSocket matches a local domain socket by path.
	KindRemoteUnixSocket
)

// String returns a short name for the kind.
func (k FilterKind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindPrefix:
		return "prefix"
	case KindRegex:
		return "regex"
	case KindRemoteIP:
		return "remote-ip"
	case KindRemoteUnixSocket:
		return "remote-unix-socket"
	default:
		return unknownStr
	}
}

// Filter narrows a rule to a set of resources. The zero value is a literal
// filter on the empty string; use the constructors.
type Filter struct {
	kind  FilterKind
	value string
}

// Literal returns a filter matching exactly path.
func Literal(path string) Filter { return Filter{kind: KindLiteral, value: path} }

// Prefix returns a filter matching every path that starts with path. The
// prefix itself does not have to exist.
func Prefix(path string) Filter { return Filter{kind: KindPrefix, value: path} }

// Regex returns a filter matching paths against pattern.
func Regex(pattern string) Filter { return Filter{kind: KindRegex, value: pattern} }

// RemoteIP returns a filter matching a remote "host:port" endpoint. The host
// may be "*".
func RemoteIP(endpoint string) Filter { return Filter{kind: KindRemoteIP, value: endpoint} }

// RemoteUnixSocket returns a filter matching a unix socket peer by path.
func RemoteUnixSocket(path string) Filter {
	return Filter{kind: KindRemoteUnixSocket, value: path}
}

// Kind returns the filter's predicate kind.
func (f Filter) Kind() FilterKind { return f.kind }

// Value returns the path, pattern or endpoint the filter was built with.
func (f Filter) Value() string { return f.value }

// String returns the filter's SBPL fragment without surrounding parentheses.
func (f Filter) String() string {
	var b strings.Builder
	f.write(&b)
	return b.String()
}

func (f Filter) write(b *strings.Builder) {
	switch f.kind {
	case KindLiteral:
		b.WriteString(`literal "`)
	case KindPrefix:
		b.WriteString(`prefix "`)
	case KindRegex:
		b.WriteString(`regex #"`)
	case KindRemoteIP:
		b.WriteString(`remote ip "`)
	case KindRemoteUnixSocket:
		b.WriteString(`remote unix-socket (path-literal "`)
		b.WriteString(f.value)
		b.WriteString(`")`)
		return
	default:
		b.WriteString(unknownStr + ` "`)
	}
	b.WriteString(f.value)
	b.WriteByte('"')
}

// Rule is a single (action operation filters...) form. A rule without
// filters applies to every resource of its operation.
type Rule struct {
	Action    Action
	Operation Operation
	Filters   []Filter
}

// Allow returns an allow rule for op scoped by filters.
func Allow(op Operation, filters ...Filter) Rule {
	return Rule{Action: ActionAllow, Operation: op, Filters: filters}
}

// Deny returns a deny rule for op scoped by filters.
func Deny(op Operation, filters ...Filter) Rule {
	return Rule{Action: ActionDeny, Operation: op, Filters: filters}
}

// String returns the rule's SBPL form without a trailing newline.
func (r Rule) String() string {
	var b strings.Builder
	r.write(&b)
	return b.String()
}

func (r Rule) write(b *strings.Builder) {
	b.WriteByte('(')
	b.WriteString(r.Action.String())
	b.WriteByte(' ')
	b.WriteString(r.Operation.String())
	if len(r.Filters) == 0 {
		b.WriteByte(')')
		return
	}
	b.WriteByte('\n')
	for _, f := range r.Filters {
		b.WriteString("  (")
		f.write(b)
		b.WriteString(")\n")
	}
	b.WriteByte(')')
}

// Profile is an ordered list of rules. Order is preserved on output; rules
// are never merged or deduplicated.
type Profile struct {
	Rules []Rule
}

// String returns the complete profile text, starting with "(version 1)".
// Every line, including the last, ends with a newline.
func (p *Profile) String() string {
	var b strings.Builder
	b.WriteString("(version 1)\n")
	for _, r := range p.Rules {
		r.write(&b)
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteTo writes the profile text to w.
func (p *Profile) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, p.String())
	return int64(n), err
}
