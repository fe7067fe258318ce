package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentfs/agentfs/internal/backend"
	"github.com/agentfs/agentfs/internal/backend/disk"
	"github.com/agentfs/agentfs/internal/shared/id"
)

// State is the executor lifecycle phase.
type State int

const (
	// StateCreated means the environment is acquired but no command ran yet.
	StateCreated State = iota
	// StateRunning is entered on the first Execute and persists until Stop.
	StateRunning
	// StateStopped means the environment is released; no call is valid.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Default execution settings.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultMaxOutput = 100 * 1024
)

// Config tunes an Executor.
type Config struct {
	// Workdir is the host-side workspace. Empty means a disposable
	// temporary directory owned (and removed) by the executor.
	Workdir string
	// Timeout applies when Execute is called with a zero timeout.
	Timeout time.Duration
	// MaxOutputBytes caps captured command output.
	MaxOutputBytes int
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = DefaultMaxOutput
	}
}

// Executor runs commands in one isolated environment and exposes the file
// contract over its workspace.
type Executor struct {
	id      id.SandboxID
	cfg     Config
	runner  Runner
	files   *disk.Store
	logger  *zap.Logger
	ownsDir bool

	mu       sync.Mutex
	state    State
	busy     bool
	cancelIn context.CancelFunc // cancels the in-flight command, set while busy

	sessions sessionTable
}

var _ backend.Executor = (*Executor)(nil)

// New acquires an environment via runner and returns a ready executor.
// A runner that fails to start fails construction outright.
func New(ctx context.Context, cfg Config, runner Runner, logger *zap.Logger) (*Executor, error) {
	cfg.defaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	workdir := cfg.Workdir
	ownsDir := false
	if workdir == "" {
		tmp, err := os.MkdirTemp("", "agentfs-sandbox-")
		if err != nil {
			return nil, fmt.Errorf("create workspace: %w", err)
		}
		workdir = tmp
		ownsDir = true
	}

	files, err := disk.New(workdir)
	if err != nil {
		if ownsDir {
			os.RemoveAll(workdir)
		}
		return nil, err
	}

	if err := runner.Start(ctx, workdir); err != nil {
		if ownsDir {
			os.RemoveAll(workdir)
		}
		return nil, fmt.Errorf("sandbox environment failed to start: %w", err)
	}

	e := &Executor{
		id:      id.NewSandboxID(),
		cfg:     cfg,
		runner:  runner,
		files:   files,
		logger:  logger,
		ownsDir: ownsDir,
		state:   StateCreated,
	}
	logger.Info("sandbox acquired",
		zap.String("sandbox_id", string(e.id)),
		zap.String("workdir", workdir))
	return e, nil
}

// NewLocal is a convenience constructor for a host-confined executor.
func NewLocal(ctx context.Context, cfg Config, logger *zap.Logger) (*Executor, error) {
	return New(ctx, cfg, NewLocalRunner(), logger)
}

// ID returns the stable identifier of the environment instance.
func (e *Executor) ID() string { return string(e.id) }

// State returns the current lifecycle phase.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Workdir returns the host-side workspace directory.
func (e *Executor) Workdir() string { return e.files.Root() }

// Execute runs one shell command in the environment. A zero timeout takes
// the configured default. Exceeding the timeout terminates the process and
// returns a normal result with a nil exit code and the captured output.
// A second call while one command is in flight fails fast with ErrBusy.
func (e *Executor) Execute(ctx context.Context, command string, timeout time.Duration) (backend.ExecutionResult, error) {
	if timeout <= 0 {
		timeout = e.cfg.Timeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e.mu.Lock()
	switch {
	case e.state == StateStopped:
		e.mu.Unlock()
		return backend.ExecutionResult{}, backend.ErrSandboxClosed
	case e.busy:
		e.mu.Unlock()
		return backend.ExecutionResult{}, backend.ErrBusy
	}
	e.busy = true
	e.state = StateRunning
	e.cancelIn = cancel
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.busy = false
		e.cancelIn = nil
		e.mu.Unlock()
	}()

	buf := newCappedBuffer(e.cfg.MaxOutputBytes)
	cmd := e.runner.Command(runCtx, command)
	cmd.Stdout = buf
	cmd.Stderr = buf

	start := time.Now()
	runErr := cmd.Run()
	result := backend.ExecutionResult{
		Output:    buf.String(),
		Truncated: buf.Truncated(),
		Duration:  time.Since(start),
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		// Timeout is a normal outcome; the process has been killed and the
		// exit code stays absent.
		e.logger.Warn("sandbox command timed out",
			zap.String("sandbox_id", string(e.id)),
			zap.Duration("timeout", timeout))
		return result, nil
	case ctx.Err() != nil:
		// Caller-level cancellation: the process is gone, hand back the
		// partial result alongside the cancellation.
		return result, ctx.Err()
	case runErr == nil:
		code := 0
		result.ExitCode = &code
		return result, nil
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			code := exitErr.ExitCode()
			result.ExitCode = &code
			return result, nil
		}
		// Could not be started at all; exit code stays absent.
		result.Output = runErr.Error()
		return result, nil
	}
}

// Stop terminates any in-flight command, closes every terminal session,
// and releases the environment. Idempotent.
func (e *Executor) Stop() error {
	e.mu.Lock()
	if e.state == StateStopped {
		e.mu.Unlock()
		return nil
	}
	e.state = StateStopped
	if e.cancelIn != nil {
		e.cancelIn()
	}
	e.mu.Unlock()

	e.sessions.closeAll()
	err := e.runner.Close()
	if e.ownsDir {
		os.RemoveAll(e.files.Root())
	}
	e.logger.Info("sandbox released", zap.String("sandbox_id", string(e.id)))
	return err
}

func (e *Executor) closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateStopped
}

// File operations relay into the environment's workspace.

func (e *Executor) List(ctx context.Context, path string) ([]backend.DirectoryEntry, error) {
	if e.closed() {
		return nil, backend.ErrSandboxClosed
	}
	return e.files.List(ctx, path)
}

func (e *Executor) Read(ctx context.Context, path string, offset, limit int) (string, error) {
	if e.closed() {
		return "", backend.ErrSandboxClosed
	}
	return e.files.Read(ctx, path, offset, limit)
}

func (e *Executor) Write(ctx context.Context, path, content string) (backend.WriteResult, error) {
	if e.closed() {
		return backend.WriteResult{}, backend.ErrSandboxClosed
	}
	return e.files.Write(ctx, path, content)
}

func (e *Executor) Edit(ctx context.Context, path, old, new string, replaceAll bool) (backend.EditResult, error) {
	if e.closed() {
		return backend.EditResult{}, backend.ErrSandboxClosed
	}
	return e.files.Edit(ctx, path, old, new, replaceAll)
}

func (e *Executor) Glob(ctx context.Context, pattern, path string) ([]backend.DirectoryEntry, error) {
	if e.closed() {
		return nil, backend.ErrSandboxClosed
	}
	return e.files.Glob(ctx, pattern, path)
}

func (e *Executor) Grep(ctx context.Context, pattern, path, fileGlob string) ([]backend.SearchMatch, error) {
	if e.closed() {
		return nil, backend.ErrSandboxClosed
	}
	return e.files.Grep(ctx, pattern, path, fileGlob)
}

// cappedBuffer captures output up to a byte limit, dropping the rest and
// remembering that it did.
type cappedBuffer struct {
	mu        sync.Mutex
	data      []byte
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := b.limit - len(b.data)
	if remaining <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		b.data = append(b.data, p[:remaining]...)
		b.truncated = true
		return len(p), nil
	}
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}

func (b *cappedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
