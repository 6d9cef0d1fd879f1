package layout

import (
	"fmt"
	"path"
	"strings"

	"github.com/docker/go-units"
	"github.com/kairos-io/diskplan/internal/constants"
	"github.com/samber/lo"
)

// Format is the filesystem requested for a partition.
type Format int

const (
	FormatUnknown Format = iota
	FormatVFAT32
	FormatSwap
	FormatBtrfs
	FormatExt4
)

var formatKeywords = map[string]Format{
	"vfat32": FormatVFAT32,
	"swap":   FormatSwap,
	"btrfs":  FormatBtrfs,
	"ext4":   FormatExt4,
}

// ParseFormat maps a template keyword to a Format.
func ParseFormat(s string) (Format, error) {
	if f, ok := formatKeywords[s]; ok {
		return f, nil
	}
	return FormatUnknown, fmt.Errorf("%w %q", ErrUnknownFormat, s)
}

func (f Format) String() string {
	switch f {
	case FormatVFAT32:
		return "vfat32"
	case FormatSwap:
		return "swap"
	case FormatBtrfs:
		return "btrfs"
	case FormatExt4:
		return "ext4"
	default:
		return "unknown"
	}
}

// FsType is the kernel filesystem name used by mount and fstab.
func (f Format) FsType() string {
	switch f {
	case FormatVFAT32:
		return "vfat"
	case FormatSwap:
		return "swap"
	case FormatBtrfs:
		return "btrfs"
	case FormatExt4:
		return "ext4"
	default:
		return ""
	}
}

type Device struct {
	Name string // symbolic name from the template
	Path string // e.g. /dev/sda
}

type Subvolume struct {
	Name         string
	MountPoint   string
	MountOptions string
}

// IsRoot reports whether the subvolume is mounted as the filesystem root.
func (s Subvolume) IsRoot() bool {
	return s.MountPoint == "/"
}

// Partition is a planned partition with all derived fields resolved.
type Partition struct {
	Device      Device
	Key         string
	Ordinal     string
	Role        string
	Size        string
	Format      Format
	Label       string
	TypeCode    string
	Encrypted   bool
	MappingName string
	MountPoint  string
	Subvolumes  []Subvolume
}

// Path is the raw partition device, e.g. /dev/sda3 or /dev/nvme0n1p3.
func (p *Partition) Path() string {
	return partitionPath(p.Device.Path, p.Ordinal)
}

// BlockDevice is what filesystems are created on and mounted from: the
// unlocked mapping for encrypted partitions, the raw partition otherwise.
func (p *Partition) BlockDevice() string {
	if p.Encrypted {
		return path.Join(constants.MapperDir, p.MappingName)
	}
	return p.Path()
}

// IsRoot reports whether the partition carries the root filesystem.
func (p *Partition) IsRoot() bool {
	return isRootRole(p.Role)
}

// RootSubvolume returns the subvolume mounted at /, if any.
func (p *Partition) RootSubvolume() (Subvolume, bool) {
	return lo.Find(p.Subvolumes, Subvolume.IsRoot)
}

// OrderedSubvolumes returns the root subvolume first and the rest in
// declaration order.
func (p *Partition) OrderedSubvolumes() []Subvolume {
	return stableRootFirst(p.Subvolumes, Subvolume.IsRoot)
}

// Model is the planned layout. It is read only once Plan returns.
type Model struct {
	Devices []Device
	// PartitionOrder follows the template and drives partitioning and
	// filesystem creation.
	PartitionOrder []*Partition
	// MountOrder has the root partition first.
	MountOrder []*Partition
}

// Summary describes each partition in a single line.
func (m *Model) Summary() []string {
	return lo.Map(m.PartitionOrder, func(p *Partition, _ int) string {
		size := p.Size
		switch b, err := sizeInBytes(p.Size); {
		case p.Size == "0":
			size = "remaining space"
		case err == nil && b > 0 && !strings.HasPrefix(p.Size, "-"):
			size = units.BytesSize(float64(b))
		}
		crypt := ""
		if p.Encrypted {
			crypt = fmt.Sprintf(" (luks -> %s)", p.BlockDevice())
		}
		return fmt.Sprintf("%s %s %s %s %s%s", p.Path(), p.Label, p.Role, size, p.Format, crypt)
	})
}

func stableRootFirst[T any](items []T, isRoot func(T) bool) []T {
	roots := lo.Filter(items, func(i T, _ int) bool { return isRoot(i) })
	rest := lo.Filter(items, func(i T, _ int) bool { return !isRoot(i) })
	return append(roots, rest...)
}
