package layout

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/docker/go-units"
)

// Values end up unquoted in shell command lines.
var (
	safeDevice     = regexp.MustCompile(`^[A-Za-z0-9_./-]+$`)
	safeLabel      = regexp.MustCompile(`^[A-Za-z0-9_.@+-]+$`)
	safeSubvolume  = regexp.MustCompile(`^[A-Za-z0-9_.@+-][A-Za-z0-9_./@+-]*$`)
	safeMountPoint = regexp.MustCompile(`^/[A-Za-z0-9_./@+-]*$`)
	safeOptions    = regexp.MustCompile(`^[A-Za-z0-9_=,.:+-]+$`)
	sectors        = regexp.MustCompile(`^[0-9]+$`)
	// what sgdisk reads as an end value
	safeSize = regexp.MustCompile(`^[+-]?[0-9]+[KMGTPkmgtp]?$`)
)

// validateSize accepts what sgdisk takes as an end value: a sector number,
// 0 for the rest of the disk, or a size with a unit, optionally prefixed with
// + or -.
func validateSize(size string) error {
	if size == "" {
		return ErrMissingField
	}
	if !safeSize.MatchString(size) {
		return fmt.Errorf("%w %q", ErrInvalidSize, size)
	}
	if _, err := sizeInBytes(size); err != nil {
		return err
	}
	return nil
}

// sizeInBytes returns 0 for sector values and "rest of the disk".
func sizeInBytes(size string) (int64, error) {
	if sectors.MatchString(size) {
		return 0, nil
	}
	b, err := units.RAMInBytes(strings.TrimLeft(size, "+-"))
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidSize, size)
	}
	return b, nil
}

// CleanMountRoot checks the directory every target path is joined to. The
// host root is refused.
func CleanMountRoot(root string) (string, error) {
	mp, err := cleanMountPoint(root)
	if err != nil {
		return "", err
	}
	if mp == "/" {
		return "", fmt.Errorf("%w: mount root cannot be /", ErrInvalidMountPoint)
	}
	return mp, nil
}
