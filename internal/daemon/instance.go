// Package daemon tracks the running local API server through a small state file.
package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNotRunning is returned when no live server is recorded.
var ErrNotRunning = errors.New("server is not running")

// Instance describes a running server.
type Instance struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
}

// URL returns the base URL clients should use to reach the instance.
func (i *Instance) URL() string {
	return "http://" + dialAddr(i.Addr)
}

// dialAddr turns a listen address such as ":8080" into one a client can dial.
func dialAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

// InstanceFile stores the Instance of the server that owns it.
type InstanceFile struct {
	Path string
}

// NewInstanceFile creates an InstanceFile for the given path.
func NewInstanceFile(path string) *InstanceFile {
	return &InstanceFile{Path: path}
}

// Claim records the current process as the running server. It fails when
// another live process already holds the file; a stale record is replaced.
func (f *InstanceFile) Claim(addr string) (*Instance, error) {
	if inst, running := f.Running(); running {
		return nil, fmt.Errorf("server already running (PID %d at %s)", inst.PID, inst.URL())
	}

	inst := &Instance{PID: os.Getpid(), Addr: addr, StartedAt: time.Now().UTC()}
	if err := f.write(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func (f *InstanceFile) write(inst *Instance) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("encode instance: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := os.WriteFile(f.Path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write instance file: %w", err)
	}
	return nil
}

// Read returns the recorded instance, whether or not it is alive.
func (f *InstanceFile) Read() (*Instance, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	var inst Instance
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, fmt.Errorf("invalid instance file content: %w", err)
	}
	if inst.PID <= 0 {
		return nil, fmt.Errorf("invalid instance file content: pid %d", inst.PID)
	}
	return &inst, nil
}

// Running returns the recorded instance and whether its process is alive.
func (f *InstanceFile) Running() (*Instance, bool) {
	inst, err := f.Read()
	if err != nil {
		return nil, false
	}
	return inst, alive(inst.PID)
}

// Release removes the file if it still belongs to the current process.
func (f *InstanceFile) Release() error {
	inst, err := f.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if inst.PID != os.Getpid() {
		return nil
	}
	return os.Remove(f.Path)
}

// Stop asks the recorded server to shut down.
func (f *InstanceFile) Stop() (*Instance, error) {
	inst, running := f.Running()
	if !running {
		return nil, ErrNotRunning
	}
	if err := terminate(inst.PID); err != nil {
		return inst, fmt.Errorf("stop PID %d: %w", inst.PID, err)
	}
	return inst, nil
}
