package receipt

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			name string
			ref  string
			err  error
		)

		BeforeEach(func() {
			name = "id-1_beleg.pdf"
		})

		JustBeforeEach(func() {
			ref, err = storage.Save(name, []byte("%PDF-1.4"))
		})

		When("saving succeeds", func() {
			It("returns the name as reference", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(ref).To(Equal(name))
			})

			It("writes the blob below the base directory", func() {
				Expect(filepath.Join(tmpDir, name)).To(BeAnExistingFile())
			})

			It("leaves no temp files behind", func() {
				entries, readErr := os.ReadDir(tmpDir)
				Expect(readErr).NotTo(HaveOccurred())
				Expect(entries).To(HaveLen(1))
			})
		})

		When("the name escapes the base directory", func() {
			BeforeEach(func() {
				name = "../outside.pdf"
			})

			It("refuses it", func() {
				Expect(err).To(MatchError(ContainSubstring("invalid storage reference")))
				Expect(filepath.Join(filepath.Dir(tmpDir), "outside.pdf")).NotTo(BeAnExistingFile())
			})
		})
	})

	Describe("Get", func() {
		var (
			ref  string
			data []byte
			err  error
		)

		JustBeforeEach(func() {
			data, err = storage.Get(ref)
		})

		When("the blob exists", func() {
			BeforeEach(func() {
				var saveErr error
				ref, saveErr = storage.Save("id-2_kassenbon.jpg", []byte("jpeg bytes"))
				Expect(saveErr).NotTo(HaveOccurred())
			})

			It("returns its bytes", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(Equal("jpeg bytes"))
			})
		})

		When("the blob does not exist", func() {
			BeforeEach(func() {
				ref = "nonexistent.jpg"
			})

			It("returns the error", func() {
				Expect(err).To(MatchError(ContainSubstring("reading file")))
			})
		})

		When("the reference is absolute", func() {
			BeforeEach(func() {
				ref = "/etc/passwd"
			})

			It("refuses it", func() {
				Expect(err).To(MatchError(ContainSubstring("invalid storage reference")))
			})
		})
	})

	Describe("Delete", func() {
		var (
			ref string
			err error
		)

		JustBeforeEach(func() {
			err = storage.Delete(ref)
		})

		When("the blob exists", func() {
			BeforeEach(func() {
				var saveErr error
				ref, saveErr = storage.Save("id-3_rechnung.heic", []byte("heic"))
				Expect(saveErr).NotTo(HaveOccurred())
			})

			It("removes it from disk", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(filepath.Join(tmpDir, ref)).NotTo(BeAnExistingFile())
				_, getErr := storage.Get(ref)
				Expect(getErr).To(HaveOccurred())
			})
		})

		When("the blob does not exist", func() {
			BeforeEach(func() {
				ref = "nonexistent.jpg"
			})

			It("returns the error", func() {
				Expect(err).To(MatchError(ContainSubstring("deleting file")))
			})
		})
	})

	Describe("NewLocalStorage", func() {
		It("creates a missing directory", func() {
			storagePath := filepath.Join(GinkgoT().TempDir(), "belege", "uploads")
			s, err := NewLocalStorage(storagePath)
			Expect(err).NotTo(HaveOccurred())
			Expect(storagePath).To(BeADirectory())

			_, err = s.Save("beleg.png", []byte("png"))
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
