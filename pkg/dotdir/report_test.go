package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/splice/pkg/dotdir"
)

type savedReport struct {
	RunID  string         `json:"run_id"`
	Counts map[string]int `json:"counts"`
}

var _ = Describe("dotdir.Manager last report", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		m = dotdir.NewManager()
	})

	It("reports nothing saved on a fresh directory", func() {
		var out savedReport
		ok, err := m.LoadLastReport(&out, tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("round trips a report", func() {
		in := savedReport{RunID: "run-1", Counts: map[string]int{"orphaned": 2}}
		Expect(m.SaveLastReport(in, tmpDir)).To(Succeed())
		Expect(filepath.Join(tmpDir, "last_report.json")).To(BeARegularFile())

		var out savedReport
		ok, err := m.LoadLastReport(&out, tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(out).To(Equal(in))
	})

	It("replaces the previous report", func() {
		Expect(m.SaveLastReport(savedReport{RunID: "first"}, tmpDir)).To(Succeed())
		Expect(m.SaveLastReport(savedReport{RunID: "second"}, tmpDir)).To(Succeed())

		var out savedReport
		_, err := m.LoadLastReport(&out, tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.RunID).To(Equal("second"))
	})

	It("rejects a nil report", func() {
		Expect(m.SaveLastReport(nil, tmpDir)).To(MatchError(ContainSubstring("nil report")))
	})

	It("fails on a corrupt file", func() {
		Expect(os.WriteFile(filepath.Join(tmpDir, "last_report.json"), []byte("not json"), 0o600)).To(Succeed())

		var out savedReport
		ok, err := m.LoadLastReport(&out, tmpDir)
		Expect(err).To(MatchError(ContainSubstring("parsing report")))
		Expect(ok).To(BeFalse())
	})

	It("clears the saved report and tolerates clearing twice", func() {
		Expect(m.SaveLastReport(savedReport{RunID: "x"}, tmpDir)).To(Succeed())
		Expect(m.ClearLastReport(tmpDir)).To(Succeed())
		Expect(m.ClearLastReport(tmpDir)).To(Succeed())
		Expect(filepath.Join(tmpDir, "last_report.json")).NotTo(BeAnExistingFile())
	})
})
