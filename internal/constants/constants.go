package constants

const (
	OpCreatePartitions  = "create-partitions"
	OpCreateFilesystems = "create-filesystems"
	OpMountFilesystems  = "mount-filesystems"
	OpWriteFstab        = "write-fstab"
	OpWriteScript       = "write-script"

	// DefaultMountRoot is where the target system is assembled.
	DefaultMountRoot = "/mnt"
	// DefaultSubvolumeMountOptions is used for subvolumes without mount_option.
	DefaultSubvolumeMountOptions = "noatime,nodiratime"

	DevDir    = "/dev"
	MapperDir = "/dev/mapper"

	DefaultConfigFile = "/etc/diskplan/diskplan.env"
	EnvPrefix         = "DISKPLAN_"
)

// Phases in the order they run.
func Phases() []string {
	return []string{OpCreatePartitions, OpCreateFilesystems, OpMountFilesystems}
}
