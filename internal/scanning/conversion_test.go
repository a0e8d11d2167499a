package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	return img
}

var _ = Describe("DetectContentType", func() {
	DescribeTable("resolving the upload type",
		func(filename, declared, expected string) {
			Expect(DetectContentType(filename, declared)).To(Equal(expected))
		},
		Entry("declared type wins", "beleg.bin", "image/JPEG", "image/jpeg"),
		Entry("parameters are dropped", "beleg.pdf", "application/pdf; charset=binary", "application/pdf"),
		Entry("octet-stream falls back to extension", "IMG_0001.HEIC", "application/octet-stream", "image/heic"),
		Entry("missing type falls back to extension", "rechnung.pdf", "", "application/pdf"),
		Entry("unknown extension", "notes.txt", "", "application/octet-stream"),
	)
})

var _ = Describe("prepareImageData", func() {
	var (
		input       []byte
		contentType string
		output      []byte
		err         error
	)

	JustBeforeEach(func() {
		output, err = prepareImageData(input, contentType)
	})

	When("the upload is already PNG", func() {
		BeforeEach(func() {
			var buf bytes.Buffer
			Expect(png.Encode(&buf, testImage())).To(Succeed())
			input = buf.Bytes()
			contentType = "image/png"
		})

		It("passes it through", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(output).To(Equal(input))
		})
	})

	When("the upload is JPEG", func() {
		BeforeEach(func() {
			var buf bytes.Buffer
			Expect(jpeg.Encode(&buf, testImage(), nil)).To(Succeed())
			input = buf.Bytes()
			contentType = "image/jpeg"
		})

		It("converts it to PNG", func() {
			Expect(err).NotTo(HaveOccurred())
			_, format, decodeErr := image.Decode(bytes.NewReader(output))
			Expect(decodeErr).NotTo(HaveOccurred())
			Expect(format).To(Equal("png"))
		})
	})

	When("the upload is not an image", func() {
		BeforeEach(func() {
			input = []byte("definitely not an image")
			contentType = "text/plain"
		})

		It("returns an error", func() {
			Expect(err).To(MatchError(ContainSubstring("unsupported image format")))
		})
	})
})

var _ = Describe("isHEICFormat", func() {
	It("recognises the ftyp brand", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic0000")...)
		Expect(isHEICFormat(data)).To(BeTrue())
	})

	It("rejects other containers", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypisom0000")...)
		Expect(isHEICFormat(data)).To(BeFalse())
		Expect(isHEICFormat([]byte("short"))).To(BeFalse())
	})
})
