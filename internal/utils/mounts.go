package utils

import "github.com/moby/sys/mountinfo"

// IsMounted reports whether something is mounted at path on this host.
func IsMounted(path string) bool {
	mounted, err := mountinfo.Mounted(path)
	if err != nil {
		Log.Debug().Err(err).Str("what", path).Msg("Checking mount status")
		return false
	}
	return mounted
}
