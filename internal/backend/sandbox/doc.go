// Package sandbox implements the file contract plus command execution
// inside an isolated, disposable environment.
//
// An Executor owns one environment for its whole lifetime
// (Created -> Running -> Stopped): the environment is reused across
// commands, so filesystem state from one command is visible to the next.
// One command runs at a time; a concurrent Execute fails fast with ErrBusy.
// Stop terminates any in-flight command, releases the environment, and is
// idempotent. A command timeout is a normal outcome: the result comes back
// with a nil exit code and whatever output was captured.
//
// Two runners are provided: a local runner confining commands to a
// disposable workspace directory, and a docker runner keeping a disposable
// container alive with the workspace bind-mounted. File operations act on
// the shared workspace through a disk store, which is the relay channel
// into the environment.
package sandbox
