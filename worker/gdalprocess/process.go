package gdalprocess

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Task is a single GDAL command queued on a ProcessPool.
type Task struct {
	Ctx    context.Context
	Binary string
	Args   []string
	Resp   chan *Result
	Error  chan error
}

// NewTask returns a task whose reply channels never block the worker.
func NewTask(ctx context.Context, binary string, args ...string) *Task {
	return &Task{
		Ctx:    ctx,
		Binary: binary,
		Args:   args,
		Resp:   make(chan *Result, 1),
		Error:  make(chan error, 1),
	}
}

type Result struct {
	Stdout   []byte
	PID      int
	Duration time.Duration
}

// CommandError carries the exit status and the tail of stderr of a failed
// GDAL command.
type CommandError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	if len(e.Stderr) > 0 {
		return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

const maxStderrTail = 2048

type Process struct {
	ID        int
	TaskQueue chan *Task
	BinDir    string
	Log       zerolog.Logger
}

func NewProcess(tQueue chan *Task, binDir string, id int, log zerolog.Logger) *Process {
	return &Process{
		ID:        id,
		TaskQueue: tQueue,
		BinDir:    binDir,
		Log:       log.With().Int("worker", id).Logger(),
	}
}

// Start consumes the shared task queue until it is closed.
func (p *Process) Start() {
	go func() {
		for task := range p.TaskQueue {
			if err := task.Ctx.Err(); err != nil {
				task.Error <- err
				continue
			}

			res, err := p.run(task)
			if err != nil {
				task.Error <- err
				continue
			}
			task.Resp <- res
		}
	}()
}

func (p *Process) binaryPath(binary string) string {
	if len(p.BinDir) == 0 || filepath.IsAbs(binary) {
		return binary
	}
	return filepath.Join(p.BinDir, binary)
}

func (p *Process) run(task *Task) (*Result, error) {
	start := time.Now()
	cmdLine := strings.Join(append([]string{task.Binary}, task.Args...), " ")

	cmd := exec.CommandContext(task.Ctx, p.binaryPath(task.Binary), task.Args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, &CommandError{Command: cmdLine, Err: fmt.Errorf("failed to obtain subprocess stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		return nil, &CommandError{Command: cmdLine, Err: fmt.Errorf("failed to start process: %w", err)}
	}
	pid := cmd.Process.Pid
	p.Log.Debug().Int("pid", pid).Str("cmd", cmdLine).Msg("process running")

	// relay subprocess stderr to our log, with pid
	tail := p.relayStderr(stderrPipe, pid)

	// the pipe must be drained before Wait closes it
	stderr := <-tail
	err = cmd.Wait()
	if err != nil {
		if ctxErr := task.Ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &CommandError{Command: cmdLine, Stderr: stderr, Err: err}
	}

	return &Result{Stdout: stdout.Bytes(), PID: pid, Duration: time.Since(start)}, nil
}

func (p *Process) relayStderr(r io.Reader, pid int) <-chan string {
	tail := make(chan string, 1)
	go func() {
		var buf strings.Builder
		reader := bufio.NewReader(r)
		for {
			line, err := reader.ReadString('\n')
			if len(line) > 0 {
				line = strings.TrimRight(line, "\r\n")
				p.Log.Warn().Int("pid", pid).Msg(line)
				if buf.Len() < maxStderrTail {
					if buf.Len() > 0 {
						buf.WriteString("; ")
					}
					buf.WriteString(line)
				}
			}
			if err != nil {
				break
			}
		}
		tail <- buf.String()
	}()
	return tail
}
