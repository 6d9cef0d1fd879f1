package state

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	cnst "github.com/kairos-io/diskplan/internal/constants"
	internalUtils "github.com/kairos-io/diskplan/internal/utils"
	"github.com/kairos-io/diskplan/pkg/op"
	"github.com/spectrocloud-labs/herd"
)

var errNoModel = errors.New("no planned layout")

// CreatePartitionsDagStep renders the partition table commands.
func (s *State) CreatePartitionsDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpCreatePartitions, append(opts, herd.WithCallback(
		func(_ context.Context) error {
			if s.Model == nil {
				return errNoModel
			}
			cmds, err := s.emitter().CreatePartitions(s.Model)
			if err != nil {
				return err
			}
			internalUtils.Log.Debug().Int("commands", len(cmds)).Msg("Partitions rendered")
			s.script.Partitions = cmds
			return nil
		},
	))...)
}

// CreateFilesystemsDagStep renders encryption setup, mkfs and subvolume creation.
func (s *State) CreateFilesystemsDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpCreateFilesystems, append(opts, herd.WithCallback(
		func(_ context.Context) error {
			if s.Model == nil {
				return errNoModel
			}
			cmds, err := s.emitter().CreateFilesystems(s.Model)
			if err != nil {
				return err
			}
			internalUtils.Log.Debug().Int("commands", len(cmds)).Msg("Filesystems rendered")
			s.script.Filesystems = cmds
			return nil
		},
	))...)
}

// MountFilesystemsDagStep renders the mounts, root first.
func (s *State) MountFilesystemsDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpMountFilesystems, append(opts, herd.WithCallback(
		func(_ context.Context) error {
			if s.Model == nil {
				return errNoModel
			}
			cmds, err := s.emitter().MountFilesystems(s.Model)
			if err != nil {
				return err
			}
			internalUtils.Log.Debug().Int("commands", len(cmds)).Msg("Mounts rendered")
			s.script.Mounts = cmds
			return nil
		},
	))...)
}

// WriteFstabDagStep collects the fstab entries for the installed system.
func (s *State) WriteFstabDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpWriteFstab, append(opts, herd.WithCallback(
		func(_ context.Context) error {
			if s.Model == nil {
				return errNoModel
			}
			entries, err := s.emitter().FstabEntries(s.Model)
			if err != nil {
				return err
			}
			for _, e := range entries {
				internalUtils.Log.Debug().Str("what", op.FstabLine(e)).Msg("Adding line to fstab")
				s.AddToFstab(e)
			}
			return nil
		},
	))...)
}

// WriteScriptDagStep writes the rendered commands to s.Out.
func (s *State) WriteScriptDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpWriteScript, append(opts, herd.WithCallback(
		func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if s.Out == nil {
				return nil
			}

			if s.Phase != "" {
				cmds, err := s.script.Phase(s.Phase)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(s.Out, strings.Join(cmds, "\n"))
				return err
			}

			out := s.script.String()
			if len(s.fstabs) > 0 {
				out += s.fstabSection()
			}
			_, err := fmt.Fprint(s.Out, out)
			return err
		},
	))...)
}

// fstabSection writes the collected entries to etc/fstab under the mount root.
func (s *State) fstabSection() string {
	root := s.emitter().MountRoot
	var b strings.Builder
	fmt.Fprintf(&b, "\n# %s\n", cnst.OpWriteFstab)
	fmt.Fprintf(&b, "mkdir -p %s\n", path.Join(root, "etc"))
	fmt.Fprintf(&b, "cat > %s <<'EOF'\n", path.Join(root, "etc", "fstab"))
	for _, f := range s.fstabs {
		fmt.Fprintf(&b, "%s\n", op.FstabLine(f))
	}
	b.WriteString("EOF\n")
	return b.String()
}
