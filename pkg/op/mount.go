package op

import (
	"fmt"
	"path"
	"strings"

	"github.com/containerd/containerd/mount"
	"github.com/kairos-io/diskplan/internal/utils"
	"github.com/kairos-io/diskplan/pkg/layout"
	"github.com/kairos-io/diskplan/pkg/schema"
)

// MountFilesystems renders the mount phase in mount order. Encrypted
// partitions are expected to be unlocked already by the filesystem phase.
func (e Emitter) MountFilesystems(m *layout.Model) ([]string, error) {
	var cmds []string
	for _, p := range m.MountOrder {
		ops, err := e.MountOperations(p)
		if err != nil {
			return nil, err
		}
		for _, o := range ops {
			utils.Log.Debug().Str("what", o.MountOption.Source).Str("where", o.Target).Strs("options", o.MountOption.Options).Msg("Mount planned")
			cmds = append(cmds, o.Commands()...)
		}
	}
	return cmds, nil
}

// MountOperations returns the mounts for a partition. For btrfs the root
// subvolume always comes first.
func (e Emitter) MountOperations(p *layout.Partition) ([]MountOperation, error) {
	dev := p.BlockDevice()
	spec := fstabSpec(p)

	switch p.Format {
	case layout.FormatSwap:
		return []MountOperation{{
			MountOption: mount.Mount{Type: swapType, Source: dev},
			FstabSpec:   spec,
		}}, nil
	case layout.FormatVFAT32, layout.FormatExt4:
		if p.MountPoint == "" {
			return nil, partitionError(p, "mount_point", layout.ErrMissingMountPoint)
		}
		pass := 2
		if p.MountPoint == "/" {
			pass = 1
		}
		return []MountOperation{{
			MountOption:  mount.Mount{Type: p.Format.FsType(), Source: dev},
			Target:       e.target(p.MountPoint),
			MountPoint:   p.MountPoint,
			CreateTarget: p.MountPoint != "/",
			FstabSpec:    spec,
			PassNo:       pass,
		}}, nil
	case layout.FormatBtrfs:
		if _, ok := p.RootSubvolume(); !ok {
			return nil, partitionError(p, "Subvolumes", layout.ErrSubvolumeRoot)
		}
		var ops []MountOperation
		for _, s := range p.OrderedSubvolumes() {
			opts := append(splitOptions(s.MountOptions), fmt.Sprintf("subvol=%s", s.Name))
			ops = append(ops, MountOperation{
				MountOption:  mount.Mount{Type: p.Format.FsType(), Source: dev, Options: opts},
				Target:       e.target(s.MountPoint),
				MountPoint:   s.MountPoint,
				CreateTarget: !s.IsRoot(),
				FstabSpec:    spec,
			})
		}
		return ops, nil
	default:
		return nil, partitionError(p, "format", layout.ErrUnknownFormat)
	}
}

// FstabEntries returns the fstab of the installed system in mount order.
func (e Emitter) FstabEntries(m *layout.Model) (schema.FsTabs, error) {
	var entries schema.FsTabs
	for _, p := range m.MountOrder {
		ops, err := e.MountOperations(p)
		if err != nil {
			return nil, err
		}
		for _, o := range ops {
			entries = append(entries, o.FstabEntry())
		}
	}
	return entries, nil
}

func (e Emitter) target(mountPoint string) string {
	return path.Join(e.MountRoot, mountPoint)
}

// fstabSpec prefers the filesystem label, mappings are stable names already.
func fstabSpec(p *layout.Partition) string {
	if p.Encrypted || p.Label == "" {
		return p.BlockDevice()
	}
	return "LABEL=" + p.Label
}

func splitOptions(opts string) []string {
	var out []string
	for _, o := range strings.Split(opts, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
