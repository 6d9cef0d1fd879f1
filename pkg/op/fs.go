package op

import (
	"fmt"
	"path"

	"github.com/kairos-io/diskplan/internal/utils"
	"github.com/kairos-io/diskplan/pkg/layout"
)

// CreatePartitions renders one sgdisk call per partition in declaration order.
// Start and partition number are left to sgdisk (0), so the order matters.
func (e Emitter) CreatePartitions(m *layout.Model) ([]string, error) {
	var cmds []string
	for _, p := range m.PartitionOrder {
		if p.TypeCode == "" || p.Label == "" {
			return nil, partitionError(p, "type", layout.ErrUnknownRole)
		}
		cmds = append(cmds, fmt.Sprintf("sgdisk -n 0:0:%s -t 0:%s -c 0:%s %s", p.Size, p.TypeCode, p.Label, p.Device.Path))
	}
	return cmds, nil
}

// CreateFilesystems renders encryption setup, mkfs and btrfs subvolume
// creation in declaration order. Once an encrypted partition is opened every
// later command uses the mapping instead of the raw partition.
func (e Emitter) CreateFilesystems(m *layout.Model) ([]string, error) {
	var cmds []string
	for _, p := range m.PartitionOrder {
		l := utils.Log.With().Str("device", p.Device.Name).Str("partition", p.Key).Logger()

		if p.Encrypted {
			cmds = append(cmds,
				fmt.Sprintf("cryptsetup luksFormat %s", p.Path()),
				fmt.Sprintf("cryptsetup open %s %s", p.Path(), p.MappingName),
			)
			l.Debug().Str("what", p.Path()).Str("mapping", p.BlockDevice()).Msg("Encrypted partition")
		}
		dev := p.BlockDevice()

		switch p.Format {
		case layout.FormatVFAT32:
			cmds = append(cmds, fmt.Sprintf("mkfs.vfat -F32 -n %s %s", p.Label, dev))
		case layout.FormatSwap:
			cmds = append(cmds, fmt.Sprintf("mkswap -L %s %s", p.Label, dev))
		case layout.FormatBtrfs:
			cmds = append(cmds, fmt.Sprintf("mkfs.btrfs -f -L %s %s", p.Label, dev))
			cmds = append(cmds, e.createSubvolumes(dev, p.Subvolumes)...)
		case layout.FormatExt4:
			cmds = append(cmds, fmt.Sprintf("mkfs.ext4 -F -L %s %s", p.Label, dev))
		default:
			return nil, partitionError(p, "format", layout.ErrUnknownFormat)
		}
		l.Debug().Str("what", dev).Str("format", p.Format.String()).Msg("Filesystem planned")
	}
	return cmds, nil
}

// createSubvolumes mounts the top level of the btrfs filesystem on the
// working root just long enough to create the subvolumes.
func (e Emitter) createSubvolumes(dev string, subs []layout.Subvolume) []string {
	cmds := []string{fmt.Sprintf("mount %s %s", dev, e.MountRoot)}
	for _, s := range subs {
		cmds = append(cmds, fmt.Sprintf("btrfs sub create %s", path.Join(e.MountRoot, s.Name)))
	}
	return append(cmds, fmt.Sprintf("umount %s", e.MountRoot))
}

func partitionError(p *layout.Partition, field string, err error) error {
	return &layout.ConfigError{Device: p.Device.Name, Partition: p.Key, Field: field, Err: err}
}
