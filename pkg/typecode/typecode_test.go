package typecode_test

import (
	"github.com/gofrs/uuid"
	"github.com/kairos-io/diskplan/pkg/typecode"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type code registry", func() {
	Context("Resolve", func() {
		It("returns a well formed GUID for every known role", func() {
			for _, role := range typecode.Roles() {
				code, err := typecode.Resolve(role)
				Expect(err).ToNot(HaveOccurred(), role)
				_, err = uuid.FromString(code)
				Expect(err).ToNot(HaveOccurred(), role)
				Expect(code).To(MatchRegexp(`^[0-9A-F]{8}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{12}$`), role)
			}
		})
		It("resolves the well known roles", func() {
			code, err := typecode.Resolve("esp")
			Expect(err).ToNot(HaveOccurred())
			Expect(code).To(Equal("C12A7328-F81F-11D2-BA4B-00A0C93EC93B"))
			code, err = typecode.Resolve("root_x86-64")
			Expect(err).ToNot(HaveOccurred())
			Expect(code).To(Equal("4F68BCE3-E8CD-4DB1-96E7-FBCAF984B709"))
			code, err = typecode.Resolve("linux")
			Expect(err).ToNot(HaveOccurred())
			Expect(code).To(Equal("0FC63DAF-8483-4772-8E79-3D69D8477DE4"))
		})
		It("passes through a raw GUID", func() {
			code, err := typecode.Resolve("21686148-6449-6e6f-744e-656564454649")
			Expect(err).ToNot(HaveOccurred())
			Expect(code).To(Equal("21686148-6449-6E6F-744E-656564454649"))
		})
		It("fails on unknown roles", func() {
			_, err := typecode.Resolve("xfs-data")
			Expect(err).To(HaveOccurred())
			Expect(err).To(MatchError(typecode.ErrUnknownRole))
			Expect(err.Error()).To(ContainSubstring("xfs-data"))
		})
		It("does not accept unseparated hex as a GUID", func() {
			_, err := typecode.Resolve("2168614864496e6f744e656564454649")
			Expect(err).To(MatchError(typecode.ErrUnknownRole))
		})
	})
	Context("IsRootRole", func() {
		It("matches architecture qualified roots only", func() {
			Expect(typecode.IsRootRole("root_x86-64")).To(BeTrue())
			Expect(typecode.IsRootRole("root_arm64")).To(BeTrue())
			Expect(typecode.IsRootRole("home")).To(BeFalse())
			Expect(typecode.IsRootRole("esp")).To(BeFalse())
		})
	})
	It("lists roles sorted", func() {
		roles := typecode.Roles()
		Expect(roles).To(ContainElements("esp", "swap", "home", "linux", "boot", "root_x86-64"))
		Expect(roles[0]).To(Equal("boot"))
	})
})
