package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"

	"github.com/agentfs/agentfs/internal/backend"
	"github.com/agentfs/agentfs/internal/shared/id"
)

// sessionBufferSize bounds how much unread terminal output is retained.
const sessionBufferSize = 1024 * 1024

// TerminalInfo is the public representation of an interactive session.
type TerminalInfo struct {
	ID        string    `json:"id"`
	Shell     string    `json:"shell"`
	Cols      int       `json:"cols"`
	Rows      int       `json:"rows"`
	StartedAt time.Time `json:"started_at"`
	Active    bool      `json:"active"`
}

// terminal is one PTY-backed shell attached to the sandbox workspace.
type terminal struct {
	info TerminalInfo
	cmd  *exec.Cmd
	ptmx *os.File
	buf  *ringBuffer

	mu     sync.RWMutex
	closed bool
}

type sessionTable struct {
	mu       sync.Mutex
	sessions map[string]*terminal
}

// OpenTerminal starts an interactive shell inside the sandbox workspace.
// Shell defaults to /bin/sh; dimensions default to 80x24.
func (e *Executor) OpenTerminal(shell string, cols, rows int) (TerminalInfo, error) {
	if e.closed() {
		return TerminalInfo{}, backend.ErrSandboxClosed
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}

	// The session outlives any single call; it is torn down by
	// CloseTerminal or Stop, not by a context.
	cmd := e.runner.Command(context.Background(), shell)
	// The PTY puts the shell in its own session (setsid). The process-group
	// setup used for plain command runs conflicts with that, so strip it.
	cmd.SysProcAttr = nil
	cmd.Cancel = nil
	cmd.WaitDelay = 0
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return TerminalInfo{}, fmt.Errorf("start terminal: %w", err)
	}

	t := &terminal{
		info: TerminalInfo{
			ID:        string(id.NewTerminalID()),
			Shell:     shell,
			Cols:      cols,
			Rows:      rows,
			StartedAt: time.Now(),
			Active:    true,
		},
		cmd:  cmd,
		ptmx: ptmx,
		buf:  newRingBuffer(sessionBufferSize),
	}

	e.sessions.put(t)
	go t.pump()
	go t.reap(&e.sessions)
	return t.info, nil
}

// WriteTerminal sends input to a session.
func (e *Executor) WriteTerminal(terminalID string, input []byte) error {
	t, err := e.lookup(terminalID)
	if err != nil {
		return err
	}
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return fmt.Errorf("terminal closed: %s", terminalID)
	}
	_, err = t.ptmx.Write(input)
	return err
}

// ReadTerminal drains buffered output from a session.
func (e *Executor) ReadTerminal(terminalID string) ([]byte, error) {
	t, err := e.lookup(terminalID)
	if err != nil {
		return nil, err
	}
	return t.buf.readAll(), nil
}

// ResizeTerminal changes a session's dimensions.
func (e *Executor) ResizeTerminal(terminalID string, cols, rows int) error {
	t, err := e.lookup(terminalID)
	if err != nil {
		return err
	}
	return pty.Setsize(t.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// CloseTerminal terminates a session.
func (e *Executor) CloseTerminal(terminalID string) error {
	t, err := e.lookup(terminalID)
	if err != nil {
		return err
	}
	e.sessions.remove(terminalID)
	t.close()
	return nil
}

// Terminals lists active sessions.
func (e *Executor) Terminals() []TerminalInfo {
	return e.sessions.list()
}

func (e *Executor) lookup(terminalID string) (*terminal, error) {
	if e.closed() {
		return nil, backend.ErrSandboxClosed
	}
	t, ok := e.sessions.get(terminalID)
	if !ok {
		return nil, fmt.Errorf("terminal not found: %s", terminalID)
	}
	return t, nil
}

// pump copies PTY output into the ring buffer until the shell exits.
func (t *terminal) pump() {
	buf := make([]byte, 4096)
	for {
		n, err := t.ptmx.Read(buf)
		if n > 0 {
			t.buf.write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// reap waits for the shell to exit and marks the session closed.
func (t *terminal) reap(table *sessionTable) {
	t.cmd.Wait()
	t.mu.Lock()
	t.closed = true
	t.info.Active = false
	t.mu.Unlock()
	t.ptmx.Close()
	table.remove(t.info.ID)
}

func (t *terminal) close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.info.Active = false
	t.mu.Unlock()

	if t.cmd.Process != nil {
		t.cmd.Process.Kill()
	}
	t.ptmx.Close()
}

func (s *sessionTable) put(t *terminal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == nil {
		s.sessions = make(map[string]*terminal)
	}
	s.sessions[t.info.ID] = t
}

func (s *sessionTable) get(terminalID string) (*terminal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.sessions[terminalID]
	return t, ok
}

func (s *sessionTable) remove(terminalID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, terminalID)
}

func (s *sessionTable) list() []TerminalInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]TerminalInfo, 0, len(s.sessions))
	for _, t := range s.sessions {
		t.mu.RLock()
		infos = append(infos, t.info)
		t.mu.RUnlock()
	}
	return infos
}

func (s *sessionTable) closeAll() {
	s.mu.Lock()
	terminals := make([]*terminal, 0, len(s.sessions))
	for _, t := range s.sessions {
		terminals = append(terminals, t)
	}
	s.sessions = nil
	s.mu.Unlock()

	for _, t := range terminals {
		t.close()
	}
}

// ringBuffer is a bounded circular byte buffer; old output is discarded
// when unread data exceeds the capacity.
type ringBuffer struct {
	mu   sync.Mutex
	data []byte
	size int
	head int
	tail int
	full bool
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{data: make([]byte, size), size: size}
}

func (b *ringBuffer) write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range p {
		b.data[b.tail] = c
		b.tail = (b.tail + 1) % b.size
		if b.full {
			b.head = b.tail
		}
		if b.tail == b.head {
			b.full = true
		}
	}
}

func (b *ringBuffer) readAll() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.head == b.tail && !b.full {
		return []byte{}
	}
	var out []byte
	if b.tail > b.head && !b.full {
		out = append(out, b.data[b.head:b.tail]...)
	} else {
		out = append(out, b.data[b.head:]...)
		out = append(out, b.data[:b.tail]...)
	}
	b.head = b.tail
	b.full = false
	return out
}
