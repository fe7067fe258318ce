package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// ContainerWorkdir is where the workspace is mounted inside a container.
const ContainerWorkdir = "/workspace"

// Runner acquires and drives one isolated execution environment.
type Runner interface {
	// Start acquires the environment. Failure here fails the whole
	// executor construction.
	Start(ctx context.Context, workdir string) error

	// Command builds the process for one shell command, wired to the
	// environment. Cancelling ctx terminates the process.
	Command(ctx context.Context, command string) *exec.Cmd

	// Close releases the environment. Called once, from Stop.
	Close() error
}

// localRunner runs commands directly on the host, confined to the
// workspace directory. Used for tests and docker-less deployments.
type localRunner struct {
	workdir string
}

// NewLocalRunner creates a runner executing on the host.
func NewLocalRunner() Runner { return &localRunner{} }

func (r *localRunner) Start(ctx context.Context, workdir string) error {
	r.workdir = workdir
	return nil
}

func (r *localRunner) Command(ctx context.Context, command string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = r.workdir
	// The shell forks children of its own. Killing only the shell leaves
	// grandchildren running and holding the output pipe, so cancellation
	// must take down the whole process group.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second
	return cmd
}

func (r *localRunner) Close() error { return nil }

// dockerRunner keeps one disposable container alive and execs each command
// inside it. The workspace directory is bind-mounted so file operations on
// the host are visible in the container and vice versa.
type dockerRunner struct {
	image     string
	name      string
	container string
}

// NewDockerRunner creates a runner backed by a disposable container of the
// given image. The name is used for the container so leaks are traceable.
func NewDockerRunner(image, name string) Runner {
	return &dockerRunner{image: image, name: name}
}

func (r *dockerRunner) Start(ctx context.Context, workdir string) error {
	if _, err := exec.LookPath("docker"); err != nil {
		return fmt.Errorf("docker not available: %w", err)
	}
	out, err := exec.CommandContext(ctx, "docker", "run", "-d", "--rm",
		"--name", r.name,
		"-v", workdir+":"+ContainerWorkdir,
		"-w", ContainerWorkdir,
		r.image, "sleep", "infinity").Output()
	if err != nil {
		return fmt.Errorf("start container %s: %w", r.image, err)
	}
	r.container = strings.TrimSpace(string(out))
	return nil
}

func (r *dockerRunner) Command(ctx context.Context, command string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "docker", "exec",
		"-w", ContainerWorkdir, r.container, "sh", "-c", command)
	// Cancellation kills the docker client; WaitDelay keeps Run from
	// blocking on its pipes. Anything still alive inside the container is
	// reaped when Close removes it.
	cmd.WaitDelay = 5 * time.Second
	return cmd
}

func (r *dockerRunner) Close() error {
	if r.container == "" {
		return nil
	}
	err := exec.Command("docker", "rm", "-f", r.container).Run()
	r.container = ""
	return err
}
