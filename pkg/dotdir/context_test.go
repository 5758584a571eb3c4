package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/dotdir"
)

var _ = Describe("dotdir.Manager context", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())
		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadContextState", func() {
		It("returns nil when no context file exists", func() {
			state, err := m.LoadContextState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})

		It("loads a valid context state", func() {
			// Write a context file manually
			data := `{"collection":"notes"}`
			err := os.WriteFile(filepath.Join(tmpDir, "context.json"), []byte(data), 0o644)
			Expect(err).NotTo(HaveOccurred())

			state, err := m.LoadContextState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).NotTo(BeNil())
			Expect(state.Collection).To(Equal("notes"))
		})

		It("returns error for invalid JSON", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "context.json"), []byte("not json"), 0o644)
			Expect(err).NotTo(HaveOccurred())

			state, err := m.LoadContextState(tmpDir)
			Expect(err).To(HaveOccurred())
			Expect(state).To(BeNil())
		})
	})

	Describe("SaveContext", func() {
		It("persists context state to disk", func() {
			state := &dotdir.ContextState{Collection: "scratch"}

			err := m.SaveContext(state, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			// Verify the file exists
			_, err = os.Stat(filepath.Join(tmpDir, "context.json"))
			Expect(err).NotTo(HaveOccurred())

			// Load it back and verify
			loaded, err := m.LoadContextState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Collection).To(Equal("scratch"))
		})

		It("returns error for nil state", func() {
			err := m.SaveContext(nil, tmpDir)
			Expect(err).To(HaveOccurred())
		})

		It("overwrites existing context state", func() {
			first := &dotdir.ContextState{Collection: "first"}
			second := &dotdir.ContextState{Collection: "second"}

			err := m.SaveContext(first, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = m.SaveContext(second, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			loaded, err := m.LoadContextState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Collection).To(Equal("second"))
		})
	})

	Describe("ClearContext", func() {
		It("removes the context file", func() {
			state := &dotdir.ContextState{Collection: "to-clear"}
			err := m.SaveContext(state, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = m.ClearContext(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			// Verify it's gone
			loaded, err := m.LoadContextState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(BeNil())
		})

		It("succeeds when no context file exists", func() {
			err := m.ClearContext(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("round-trip", func() {
		It("saves and loads context state correctly", func() {
			state := &dotdir.ContextState{Collection: "papers"}

			err := m.SaveContext(state, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			loaded, err := m.LoadContextState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(state))
		})
	})
})
