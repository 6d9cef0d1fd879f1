package op

import (
	"fmt"
	"sort"
	"strings"

	"github.com/containerd/containerd/mount"
	"github.com/deniswernert/go-fstab"
	"github.com/samber/lo"
)

const swapType = "swap"

// MountOperation is a single planned mount. It renders to the commands that
// mount it under the working root and to the fstab line of the installed system.
type MountOperation struct {
	MountOption mount.Mount
	// Target is the path under the working mount root, e.g. /mnt/home
	Target string
	// MountPoint is the path on the installed system, e.g. /home
	MountPoint string
	// CreateTarget adds a mkdir before mounting
	CreateTarget bool
	// FstabSpec identifies the device in fstab, e.g. LABEL=HOME
	FstabSpec string
	PassNo    int
}

// Commands renders the operation. Swap gets activated instead of mounted.
func (m MountOperation) Commands() []string {
	if m.MountOption.Type == swapType {
		return []string{fmt.Sprintf("swapon %s", m.MountOption.Source)}
	}

	var cmds []string
	if m.CreateTarget {
		cmds = append(cmds, fmt.Sprintf("mkdir -p %s", m.Target))
	}
	if len(m.MountOption.Options) > 0 {
		cmds = append(cmds, fmt.Sprintf("mount -o %s %s %s", strings.Join(m.MountOption.Options, ","), m.MountOption.Source, m.Target))
	} else {
		cmds = append(cmds, fmt.Sprintf("mount %s %s", m.MountOption.Source, m.Target))
	}
	return cmds
}

// FstabEntry returns the entry for the installed system's fstab.
func (m MountOperation) FstabEntry() *fstab.Mount {
	entry := mountToFstab(m.MountOption)
	entry.File = m.MountPoint
	if m.MountOption.Type == swapType {
		entry.File = "none"
	}
	if m.FstabSpec != "" {
		entry.Spec = m.FstabSpec
	}
	entry.PassNo = m.PassNo
	return entry
}

func mountToFstab(m mount.Mount) *fstab.Mount {
	opts := map[string]string{}
	for _, o := range m.Options {
		key, value, _ := strings.Cut(o, "=")
		opts[key] = value
	}
	if len(opts) == 0 {
		opts["defaults"] = ""
	}
	return &fstab.Mount{
		Spec:    m.Source,
		VfsType: m.Type,
		MntOps:  opts,
		Freq:    0,
		PassNo:  0,
	}
}

// FstabLine renders an entry like fstab.Mount.String but with the options
// sorted, the map order would change the line on every run.
func FstabLine(m *fstab.Mount) string {
	keys := lo.Keys(m.MntOps)
	sort.Strings(keys)
	opts := lo.Map(keys, func(k string, _ int) string {
		if v := m.MntOps[k]; v != "" {
			return k + "=" + v
		}
		return k
	})
	return fmt.Sprintf("%s %s %s %s %d %d", m.Spec, m.File, m.VfsType, strings.Join(opts, ","), m.Freq, m.PassNo)
}
