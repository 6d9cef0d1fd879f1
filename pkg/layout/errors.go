package layout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kairos-io/diskplan/pkg/typecode"
)

var (
	ErrUnknownRole         = typecode.ErrUnknownRole
	ErrUnknownFormat       = errors.New("unknown filesystem")
	ErrUnknownCrypt        = errors.New("unknown encryption")
	ErrMissingMountPoint   = errors.New("missing mount point")
	ErrInvalidMountPoint   = errors.New("mount point must be absolute")
	ErrDuplicateMountPoint = errors.New("mount point used more than once")
	ErrDuplicateMapping    = errors.New("mapping name used more than once")
	ErrInvalidSize         = errors.New("invalid size")
	ErrInvalidOrdinal      = errors.New("invalid partition number")
	ErrSubvolumeRoot       = errors.New("btrfs needs exactly one subvolume mounted at /")
	ErrRootPartition       = errors.New("layout needs exactly one root partition")
	ErrUnknownDevice       = errors.New("device not found")
	ErrMissingField        = errors.New("missing required field")
	ErrUnsafeValue         = errors.New("contains characters not allowed in a command line")
	ErrMountOrder          = errors.New("mount point is declared after a mount point nested below it")
)

// ConfigError points at the partition and field that made planning fail.
type ConfigError struct {
	Device    string
	Partition string
	Field     string
	Err       error
}

func (e *ConfigError) Error() string {
	var where []string
	if e.Device != "" {
		where = append(where, "device "+e.Device)
	}
	if e.Partition != "" {
		where = append(where, "partition "+e.Partition)
	}
	if e.Field != "" {
		where = append(where, e.Field)
	}
	if len(where) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", strings.Join(where, " "), e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// StructuralError is returned when the layout has nothing to plan.
type StructuralError struct {
	Reason string
}

func (e *StructuralError) Error() string {
	return "invalid layout structure: " + e.Reason
}
