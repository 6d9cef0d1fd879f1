package op

import (
	"fmt"
	"strings"

	"github.com/kairos-io/diskplan/internal/constants"
	"github.com/kairos-io/diskplan/pkg/layout"
)

// Emitter renders a planned layout into commands. It never changes the model.
type Emitter struct {
	// MountRoot is where the target system is assembled, /mnt by default.
	MountRoot string
}

func NewEmitter(mountRoot string) Emitter {
	if mountRoot == "" {
		mountRoot = constants.DefaultMountRoot
	}
	return Emitter{MountRoot: mountRoot}
}

// Script is the full command plan, one list per phase.
type Script struct {
	Partitions  []string
	Filesystems []string
	Mounts      []string
}

// Render runs the three phases. On error no commands are returned at all.
func (e Emitter) Render(m *layout.Model) (*Script, error) {
	parts, err := e.CreatePartitions(m)
	if err != nil {
		return nil, err
	}
	fs, err := e.CreateFilesystems(m)
	if err != nil {
		return nil, err
	}
	mounts, err := e.MountFilesystems(m)
	if err != nil {
		return nil, err
	}
	return &Script{Partitions: parts, Filesystems: fs, Mounts: mounts}, nil
}

// Phase returns the commands of a single phase by op name.
func (s *Script) Phase(name string) ([]string, error) {
	switch name {
	case constants.OpCreatePartitions:
		return s.Partitions, nil
	case constants.OpCreateFilesystems:
		return s.Filesystems, nil
	case constants.OpMountFilesystems:
		return s.Mounts, nil
	default:
		return nil, fmt.Errorf("unknown phase %q, expected one of %s", name, strings.Join(constants.Phases(), ", "))
	}
}

// Commands returns every command in execution order.
func (s *Script) Commands() []string {
	var out []string
	out = append(out, s.Partitions...)
	out = append(out, s.Filesystems...)
	return append(out, s.Mounts...)
}

// String renders a shell script that stops at the first failing command.
func (s *Script) String() string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\nset -e\n")
	for _, phase := range constants.Phases() {
		cmds, _ := s.Phase(phase)
		fmt.Fprintf(&b, "\n# %s\n", phase)
		for _, c := range cmds {
			b.WriteString(c)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
