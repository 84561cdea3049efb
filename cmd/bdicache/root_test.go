package main

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/pflag"
)

var _ = Describe("loadEnv", func() {
	var flags *pflag.FlagSet

	BeforeEach(func() {
		flags = pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.Int("line-size", 64, "")
		flags.String("policy", "lru", "")
	})

	It("should name variables after flags", func() {
		Expect(envName("always-evict-primary")).
			To(Equal("BDICACHE_ALWAYS_EVICT_PRIMARY"))
	})

	It("should fill unset flags from the env file", func() {
		envFile := filepath.Join(GinkgoT().TempDir(), "test.env")
		Expect(os.WriteFile(envFile,
			[]byte("BDICACHE_LINE_SIZE=128\nBDICACHE_POLICY=srrip\n"),
			0o600)).To(Succeed())
		DeferCleanup(func() {
			os.Unsetenv("BDICACHE_LINE_SIZE")
			os.Unsetenv("BDICACHE_POLICY")
		})

		Expect(flags.Set("policy", "lru")).To(Succeed())
		Expect(loadEnv(envFile, flags)).To(Succeed())

		lineSize, _ := flags.GetInt("line-size")
		policy, _ := flags.GetString("policy")
		Expect(lineSize).To(Equal(128))
		Expect(policy).To(Equal("lru"))
	})

	It("should ignore a missing env file", func() {
		missing := filepath.Join(GinkgoT().TempDir(), "none.env")

		Expect(loadEnv(missing, flags)).To(Succeed())
	})

	It("should report values that do not parse", func() {
		GinkgoT().Setenv("BDICACHE_LINE_SIZE", "big")

		err := loadEnv(filepath.Join(GinkgoT().TempDir(), "none.env"), flags)

		Expect(err).To(MatchError(ContainSubstring("BDICACHE_LINE_SIZE")))
	})
})
