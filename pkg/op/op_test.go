package op_test

import (
	"strings"

	"github.com/kairos-io/diskplan/pkg/layout"
	"github.com/kairos-io/diskplan/pkg/op"
	"github.com/kairos-io/diskplan/pkg/schema"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/lo"
)

func scenarioA() schema.Blockdevices {
	return schema.Blockdevices{
		Mapping: []schema.DeviceMapping{{Symbol: "disk0", Name: "sda"}},
		Devices: map[string][]schema.PartitionSpec{
			"disk0": {
				{Key: "part1", Type: "esp", Size: "+512M", Format: "vfat32", MountPoint: "/boot/efi"},
				{Key: "part2", Type: "swap", Size: "+2G", Format: "swap"},
				{Key: "part3", Type: "root_x86-64", Size: "0", Format: "btrfs", Subvolumes: []schema.SubvolumeSpec{
					{Subvolume: "@", MountPoint: "/"},
					{Subvolume: "@home", MountPoint: "/home"},
				}},
			},
		},
	}
}

// scenarioB has an ext4 root and an encrypted ext4 home on a second disk.
func scenarioB() schema.Blockdevices {
	return schema.Blockdevices{
		Mapping: []schema.DeviceMapping{{Symbol: "disk0", Name: "sda"}, {Symbol: "disk1", Name: "sdb"}},
		Devices: map[string][]schema.PartitionSpec{
			"disk0": {
				{Key: "part1", Type: "esp", Size: "+512M", Format: "vfat32", MountPoint: "/efi"},
				{Key: "part2", Type: "root_x86-64", Size: "0", Format: "ext4", Crypt: "luks", Label: "root", MountPoint: "/"},
			},
			"disk1": {
				{Key: "part1", Type: "home", Size: "0", Format: "ext4", Crypt: "luks", Label: "home", MountPoint: "/home"},
			},
		},
	}
}

func plan(bd schema.Blockdevices) *layout.Model {
	m, err := layout.Plan(bd)
	ExpectWithOffset(1, err).ToNot(HaveOccurred())
	return m
}

func indexOf(cmds []string, prefix string) int {
	for i, c := range cmds {
		if strings.HasPrefix(c, prefix) {
			return i
		}
	}
	return -1
}

var _ = Describe("command emitter", func() {
	var e op.Emitter

	BeforeEach(func() {
		e = op.NewEmitter("")
	})

	Context("scenario A", func() {
		var m *layout.Model

		BeforeEach(func() {
			m = plan(scenarioA())
		})

		It("creates one partition per declared partition", func() {
			cmds, err := e.CreatePartitions(m)
			Expect(err).ToNot(HaveOccurred())
			Expect(cmds).To(Equal([]string{
				"sgdisk -n 0:0:+512M -t 0:C12A7328-F81F-11D2-BA4B-00A0C93EC93B -c 0:ESP /dev/sda",
				"sgdisk -n 0:0:+2G -t 0:0657FD6D-A4AB-43C4-84E5-0933C84B4F4F -c 0:SWAP /dev/sda",
				"sgdisk -n 0:0:0 -t 0:4F68BCE3-E8CD-4DB1-96E7-FBCAF984B709 -c 0:ROOT /dev/sda",
			}))
		})

		It("creates filesystems and subvolumes", func() {
			cmds, err := e.CreateFilesystems(m)
			Expect(err).ToNot(HaveOccurred())
			Expect(cmds).To(Equal([]string{
				"mkfs.vfat -F32 -n ESP /dev/sda1",
				"mkswap -L SWAP /dev/sda2",
				"mkfs.btrfs -f -L ROOT /dev/sda3",
				"mount /dev/sda3 /mnt",
				"btrfs sub create /mnt/@",
				"btrfs sub create /mnt/@home",
				"umount /mnt",
			}))
		})

		It("mounts the root subvolume before anything else", func() {
			cmds, err := e.MountFilesystems(m)
			Expect(err).ToNot(HaveOccurred())
			Expect(cmds).To(Equal([]string{
				"mount -o noatime,nodiratime,subvol=@ /dev/sda3 /mnt",
				"mkdir -p /mnt/home",
				"mount -o noatime,nodiratime,subvol=@home /dev/sda3 /mnt/home",
				"mkdir -p /mnt/boot/efi",
				"mount /dev/sda1 /mnt/boot/efi",
				"swapon /dev/sda2",
			}))
		})

		It("renders the whole script", func() {
			s, err := e.Render(m)
			Expect(err).ToNot(HaveOccurred())
			Expect(s.Commands()).To(HaveLen(3 + 7 + 6))
			out := s.String()
			Expect(out).To(HavePrefix("#!/bin/sh\nset -e\n"))
			Expect(strings.Index(out, "# create-partitions")).To(BeNumerically("<", strings.Index(out, "# create-filesystems")))
			Expect(strings.Index(out, "# create-filesystems")).To(BeNumerically("<", strings.Index(out, "# mount-filesystems")))
			phase, err := s.Phase("mount-filesystems")
			Expect(err).ToNot(HaveOccurred())
			Expect(phase).To(Equal(s.Mounts))
			_, err = s.Phase("format")
			Expect(err).To(HaveOccurred())
		})

		It("honours a custom mount root", func() {
			e = op.NewEmitter("/target")
			cmds, err := e.MountFilesystems(m)
			Expect(err).ToNot(HaveOccurred())
			Expect(cmds[0]).To(Equal("mount -o noatime,nodiratime,subvol=@ /dev/sda3 /target"))
			Expect(cmds).To(ContainElement("mkdir -p /target/boot/efi"))
			fs, err := e.CreateFilesystems(m)
			Expect(err).ToNot(HaveOccurred())
			Expect(fs).To(ContainElement("btrfs sub create /target/@home"))
		})

		It("builds the fstab of the installed system", func() {
			entries, err := e.FstabEntries(m)
			Expect(err).ToNot(HaveOccurred())
			Expect(entries).To(HaveLen(4))

			Expect(entries[0].Spec).To(Equal("LABEL=ROOT"))
			Expect(entries[0].File).To(Equal("/"))
			Expect(entries[0].VfsType).To(Equal("btrfs"))
			Expect(entries[0].MntOps).To(HaveKeyWithValue("subvol", "@"))
			Expect(entries[0].MntOps).To(HaveKey("noatime"))

			Expect(entries[1].File).To(Equal("/home"))
			Expect(entries[1].MntOps).To(HaveKeyWithValue("subvol", "@home"))

			Expect(entries[2].Spec).To(Equal("LABEL=ESP"))
			Expect(entries[2].File).To(Equal("/boot/efi"))
			Expect(entries[2].VfsType).To(Equal("vfat"))
			Expect(entries[2].PassNo).To(Equal(2))
			Expect(entries[2].MntOps).To(HaveKey("defaults"))

			Expect(entries[3].File).To(Equal("none"))
			Expect(entries[3].VfsType).To(Equal("swap"))
		})
	})

	Context("fstab lines", func() {
		It("renders the options in a stable order", func() {
			entries, err := e.FstabEntries(plan(scenarioA()))
			Expect(err).ToNot(HaveOccurred())
			for i := 0; i < 20; i++ {
				Expect(op.FstabLine(entries[0])).To(Equal("LABEL=ROOT / btrfs nodiratime,noatime,subvol=@ 0 0"))
			}
			Expect(op.FstabLine(entries[2])).To(Equal("LABEL=ESP /boot/efi vfat defaults 0 2"))
			Expect(op.FstabLine(entries[3])).To(Equal("LABEL=SWAP none swap defaults 0 0"))
		})
	})

	Context("subvolume ordering", func() {
		It("mounts the root subvolume first whatever the declaration order", func() {
			bd := scenarioA()
			bd.Devices["disk0"][2].Subvolumes = []schema.SubvolumeSpec{
				{Subvolume: "@home", MountPoint: "/home", MountOption: "compress=zstd"},
				{Subvolume: "@", MountPoint: "/"},
			}
			m := plan(bd)
			cmds, err := e.MountFilesystems(m)
			Expect(err).ToNot(HaveOccurred())
			Expect(cmds[0]).To(Equal("mount -o noatime,nodiratime,subvol=@ /dev/sda3 /mnt"))
			Expect(cmds[2]).To(Equal("mount -o compress=zstd,subvol=@home /dev/sda3 /mnt/home"))

			// creation keeps the declaration order
			fs, err := e.CreateFilesystems(m)
			Expect(err).ToNot(HaveOccurred())
			home := lo.IndexOf(fs, "btrfs sub create /mnt/@home")
			root := lo.IndexOf(fs, "btrfs sub create /mnt/@")
			Expect(home).To(BeNumerically(">=", 0))
			Expect(root).To(BeNumerically(">", home))
		})
	})

	Context("scenario B", func() {
		var m *layout.Model

		BeforeEach(func() {
			m = plan(scenarioB())
		})

		It("formats and opens the encrypted partitions before mkfs", func() {
			cmds, err := e.CreateFilesystems(m)
			Expect(err).ToNot(HaveOccurred())
			Expect(cmds).To(Equal([]string{
				"mkfs.vfat -F32 -n ESP /dev/sda1",
				"cryptsetup luksFormat /dev/sda2",
				"cryptsetup open /dev/sda2 root",
				"mkfs.ext4 -F -L ROOT /dev/mapper/root",
				"cryptsetup luksFormat /dev/sdb1",
				"cryptsetup open /dev/sdb1 home",
				"mkfs.ext4 -F -L HOME /dev/mapper/home",
			}))
		})

		It("mounts from the mapping without unlocking again", func() {
			cmds, err := e.MountFilesystems(m)
			Expect(err).ToNot(HaveOccurred())
			Expect(cmds).To(Equal([]string{
				"mount /dev/mapper/root /mnt",
				"mkdir -p /mnt/efi",
				"mount /dev/sda1 /mnt/efi",
				"mkdir -p /mnt/home",
				"mount /dev/mapper/home /mnt/home",
			}))
			for _, c := range cmds {
				Expect(c).ToNot(ContainSubstring("cryptsetup"))
			}
		})

		It("never uses the raw partition after unlocking", func() {
			s, err := e.Render(m)
			Expect(err).ToNot(HaveOccurred())
			all := s.Commands()
			for _, p := range m.PartitionOrder {
				if !p.Encrypted {
					continue
				}
				opened := indexOf(all, "cryptsetup open "+p.Path())
				Expect(opened).To(BeNumerically(">=", 0))
				for _, c := range all[opened+1:] {
					Expect(strings.Fields(c)).ToNot(ContainElement(p.Path()), c)
				}
			}
		})

		It("uses the mapping in fstab", func() {
			entries, err := e.FstabEntries(m)
			Expect(err).ToNot(HaveOccurred())
			Expect(entries[0].Spec).To(Equal("/dev/mapper/root"))
			Expect(entries[0].PassNo).To(Equal(1))
			Expect(entries[1].Spec).To(Equal("LABEL=ESP"))
			Expect(entries[2].Spec).To(Equal("/dev/mapper/home"))
		})
	})

	Context("counts", func() {
		It("emits one partition and one mkfs command per partition", func() {
			for _, bd := range []schema.Blockdevices{scenarioA(), scenarioB()} {
				m := plan(bd)
				s, err := e.Render(m)
				Expect(err).ToNot(HaveOccurred())
				Expect(s.Partitions).To(HaveLen(len(m.PartitionOrder)))
				mkfs := 0
				for _, c := range s.Filesystems {
					if strings.HasPrefix(c, "mkfs.") || strings.HasPrefix(c, "mkswap ") {
						mkfs++
					}
				}
				Expect(mkfs).To(Equal(len(m.PartitionOrder)))
			}
		})
	})

	Context("models that were not planned", func() {
		It("refuses unknown formats instead of emitting placeholders", func() {
			m := &layout.Model{}
			p := &layout.Partition{
				Device:   layout.Device{Name: "disk0", Path: "/dev/sda"},
				Key:      "part1",
				Ordinal:  "1",
				Role:     "linux",
				Size:     "0",
				Label:    "LINU",
				TypeCode: "0FC63DAF-8483-4772-8E79-3D69D8477DE4",
			}
			m.PartitionOrder = []*layout.Partition{p}
			m.MountOrder = m.PartitionOrder

			s, err := e.Render(m)
			Expect(s).To(BeNil())
			Expect(err).To(MatchError(layout.ErrUnknownFormat))

			_, err = e.MountFilesystems(m)
			Expect(err).To(MatchError(layout.ErrUnknownFormat))
		})
	})
})
