package cargosafe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// defaultLogStreamCommand tails the unified log for Seatbelt denials.
var defaultLogStreamCommand = []string{
	"log", "stream",
	"--style", "compact",
	"--predicate", `sender == "Sandbox" AND eventMessage CONTAINS "deny"`,
}

const (
	// defaultMaxViolations bounds the ring buffer when none is given.
	defaultMaxViolations = 100

	// defaultReadyTimeout bounds how long Start waits for the first line
	// of output. `log stream` prints a "Filtering the log data" header once
	// it is subscribed.
	defaultReadyTimeout = 2 * time.Second

	// defaultDrainDelay is how long Stop keeps reading before it ends the
	// stream. The log daemon delivers kernel messages with some latency.
	defaultDrainDelay = 500 * time.Millisecond
)

// noiseProcesses are system daemons whose denials show up in every log
// stream regardless of what the build does.
var noiseProcesses = []string{
	"mDNSResponder",
	"diagnosticd",
	"symptomsd",
	"syslogd",
	"logd",
	"opendirectoryd",
	"trustd",
	"securityd",
}

// violationPattern matches the kernel message body, for example
//
//	Sandbox: rustc(4242) deny(1) file-read-data /Users/me/.ssh/id_ed25519
//
// The process name may contain spaces; the target is optional.
var violationPattern = regexp.MustCompile(`Sandbox: (.+?)\((\d+)\) deny(?:\(\d+\))? (\S+)(?: (.+))?$`)

// Violation is one denied operation reported by the sandbox.
type Violation struct {
	Time      time.Time
	Process   string
	PID       int
	Operation string // e.g. "file-read-data", "network-outbound"
	Path      string // target of the operation, if any
	Raw       string
}

func (v Violation) String() string {
	if v.Path == "" {
		return fmt.Sprintf("%s(%d) deny %s", v.Process, v.PID, v.Operation)
	}
	return fmt.Sprintf("%s(%d) deny %s %s", v.Process, v.PID, v.Operation, v.Path)
}

// ViolationMonitor collects sandbox denials from the system log while a
// sandboxed command runs. The most recent maxSize violations are kept.
type ViolationMonitor struct {
	mu           sync.Mutex
	violations   []Violation
	maxSize      int
	dropped      int
	cancel       context.CancelFunc
	done         chan struct{}
	logStreamCmd []string
	readyTimeout time.Duration
	drainDelay   time.Duration
}

// MonitorOption configures a ViolationMonitor.
type MonitorOption func(*ViolationMonitor)

// WithLogStreamCommand replaces the `log stream` invocation. Each line the
// command prints is parsed as a log message.
func WithLogStreamCommand(cmd []string) MonitorOption {
	return func(m *ViolationMonitor) {
		m.logStreamCmd = append([]string(nil), cmd...)
	}
}

// WithReadyTimeout sets how long Start waits for the stream to produce its
// first line. Zero returns as soon as the command has started.
func WithReadyTimeout(d time.Duration) MonitorOption {
	return func(m *ViolationMonitor) {
		m.readyTimeout = d
	}
}

// WithDrainDelay sets how long Stop keeps collecting before it ends the
// stream.
func WithDrainDelay(d time.Duration) MonitorOption {
	return func(m *ViolationMonitor) {
		m.drainDelay = d
	}
}

// NewViolationMonitor creates a monitor keeping at most maxSize violations.
// If maxSize <= 0, defaults to 100.
func NewViolationMonitor(maxSize int, opts ...MonitorOption) *ViolationMonitor {
	if maxSize <= 0 {
		maxSize = defaultMaxViolations
	}
	m := &ViolationMonitor{
		violations:   make([]Violation, 0, maxSize),
		maxSize:      maxSize,
		logStreamCmd: defaultLogStreamCommand,
		readyTimeout: defaultReadyTimeout,
		drainDelay:   defaultDrainDelay,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Start launches the log stream command and begins collecting violations.
// It returns once the stream has printed its first line, the stream has
// ended, or the ready timeout has passed.
func (m *ViolationMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return errors.New("cargosafe: monitor already started")
	}
	if len(m.logStreamCmd) == 0 {
		m.mu.Unlock()
		return errors.New("cargosafe: empty log stream command")
	}

	ctx, cancel := context.WithCancel(ctx)
	//nolint:gosec // command is the default log stream or set by the caller
	cmd := exec.CommandContext(ctx, m.logStreamCmd[0], m.logStreamCmd[1:]...)
	cmd.WaitDelay = time.Second
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		m.mu.Unlock()
		return fmt.Errorf("cargosafe: log stream pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		m.mu.Unlock()
		return fmt.Errorf("cargosafe: start log stream: %w", err)
	}

	m.cancel = cancel
	m.done = make(chan struct{})
	ready := make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		var once sync.Once
		markReady := func() { once.Do(func() { close(ready) }) }
		defer markReady()

		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if v, ok := parseViolation(scanner.Text()); ok {
				m.add(v)
			}
			markReady()
		}
		// Cancellation is the normal way the stream ends.
		_ = cmd.Wait()
	}(m.done)
	timeout := m.readyTimeout
	m.mu.Unlock()

	if timeout <= 0 {
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ready:
	case <-timer.C:
	case <-ctx.Done():
	}
	return nil
}

// Stop keeps collecting for the drain delay, then terminates the log stream
// and waits for buffered lines to be processed. Violations remain available
// afterwards.
func (m *ViolationMonitor) Stop() error {
	m.mu.Lock()
	cancel, done, drain := m.cancel, m.done, m.drainDelay
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return errors.New("cargosafe: monitor not started")
	}
	if drain > 0 {
		select {
		case <-time.After(drain):
		case <-done:
		}
	}
	cancel()
	<-done
	return nil
}

// Violations returns a copy of the recorded violations, oldest first.
func (m *ViolationMonitor) Violations() []Violation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Violation(nil), m.violations...)
}

// Dropped returns how many violations were evicted from the buffer.
func (m *ViolationMonitor) Dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

func (m *ViolationMonitor) add(v Violation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.violations) >= m.maxSize {
		copy(m.violations, m.violations[1:])
		m.violations = m.violations[:len(m.violations)-1]
		m.dropped++
	}
	m.violations = append(m.violations, v)
}

// parseViolation extracts a violation from a log line. Lines that are not
// Seatbelt denials, or that come from known system daemons, are rejected.
func parseViolation(line string) (Violation, bool) {
	match := violationPattern.FindStringSubmatch(line)
	if match == nil {
		return Violation{}, false
	}
	process := match[1]
	for _, noise := range noiseProcesses {
		if process == noise {
			return Violation{}, false
		}
	}
	pid, err := strconv.Atoi(match[2])
	if err != nil {
		return Violation{}, false
	}
	return Violation{
		Time:      time.Now(),
		Process:   process,
		PID:       pid,
		Operation: match[3],
		Path:      strings.TrimSpace(match[4]),
		Raw:       line,
	}, true
}
