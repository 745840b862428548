package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
)

// SpawnRequest describes one loader to start.
type SpawnRequest struct {
	// CtrlPath is the worker's control socket the loader dials.
	CtrlPath string
	Rank     int
	Device   string
	Host     string
	// NUMANode is the placement hint; NUMA enables numactl pinning.
	NUMANode int
	NUMA     bool
}

// Process is a running loader.
type Process interface {
	Wait() error
	Kill() error
	String() string
}

// Spawner starts loader processes.
type Spawner interface {
	Spawn(ctx context.Context, req SpawnRequest) (Process, error)
}

// ExecSpawner starts the loader as "<Binary> loader --ctrl <path>", wrapped
// in "numactl -N <node>" when pinning is requested and numactl is installed.
type ExecSpawner struct {
	Binary string
	Args   []string
	// LookPath finds numactl; defaults to exec.LookPath.
	LookPath func(string) (string, error)
}

// Command builds the loader command line.
func (s ExecSpawner) Command(req SpawnRequest) *exec.Cmd {
	args := append([]string{"loader", "--ctrl", req.CtrlPath}, s.Args...)
	if req.NUMA {
		look := s.LookPath
		if look == nil {
			look = exec.LookPath
		}
		if numactl, err := look("numactl"); err == nil {
			return exec.Command(numactl, append([]string{"-N", strconv.Itoa(req.NUMANode), s.Binary}, args...)...)
		}
	}
	return exec.Command(s.Binary, args...)
}

func (s ExecSpawner) Spawn(ctx context.Context, req SpawnRequest) (Process, error) {
	if s.Binary == "" {
		return nil, errors.New("spawn: loader binary not set")
	}
	cmd := s.Command(req)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	once sync.Once
	err  error
}

func (p *execProcess) Wait() error {
	p.once.Do(func() { p.err = p.cmd.Wait() })
	return p.err
}

func (p *execProcess) Kill() error {
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (p *execProcess) String() string {
	return fmt.Sprintf("pid %d", p.cmd.Process.Pid)
}

// InProcessSpawner runs the loader on a goroutine of this process.
type InProcessSpawner struct {
	Run func(ctx context.Context, ctrlPath string) error
}

func (s InProcessSpawner) Spawn(_ context.Context, req SpawnRequest) (Process, error) {
	if s.Run == nil {
		return nil, errors.New("spawn: no loader function")
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &goProcess{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.err = s.Run(ctx, req.CtrlPath)
	}()
	return p, nil
}

type goProcess struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (p *goProcess) Wait() error {
	<-p.done
	return p.err
}

func (p *goProcess) Kill() error {
	p.cancel()
	return nil
}

func (p *goProcess) String() string { return "in-process" }
