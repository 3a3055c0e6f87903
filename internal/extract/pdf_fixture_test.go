package extract

import (
	"bytes"
	"compress/zlib"
	"fmt"
)

// pdfBuilder assembles minimal but well-formed PDF files for tests.
type pdfBuilder struct {
	buf     bytes.Buffer
	offsets map[int]int
	maxObj  int
}

func newPDFBuilder() *pdfBuilder {
	b := &pdfBuilder{offsets: make(map[int]int)}
	b.buf.WriteString("%PDF-1.4\n")
	return b
}

func (b *pdfBuilder) addObject(num int, body string) {
	b.offsets[num] = b.buf.Len()
	if num > b.maxObj {
		b.maxObj = num
	}
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

func (b *pdfBuilder) addStream(num int, dict string, data []byte) {
	b.offsets[num] = b.buf.Len()
	if num > b.maxObj {
		b.maxObj = num
	}
	fmt.Fprintf(&b.buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", num, dict, len(data))
	b.buf.Write(data)
	b.buf.WriteString("\nendstream\nendobj\n")
}

func (b *pdfBuilder) finish(rootNum int) []byte {
	startxref := b.buf.Len()
	fmt.Fprintf(&b.buf, "xref\n0 %d\n0000000000 65535 f \n", b.maxObj+1)
	for i := 1; i <= b.maxObj; i++ {
		fmt.Fprintf(&b.buf, "%010d 00000 n \n", b.offsets[i])
	}
	fmt.Fprintf(&b.buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		b.maxObj+1, rootNum, startxref)
	return b.buf.Bytes()
}

func zlibCompress(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, _ = w.Write(data)
	_ = w.Close()
	return buf.Bytes()
}

// singlePagePDF builds a one-page document showing the given text and, when
// imageData is non-nil, painting one FlateDecode DeviceRGB image of the
// given dimensions.
func singlePagePDF(text string, imageData []byte, imgW, imgH int) []byte {
	b := newPDFBuilder()
	b.addObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.addObject(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")

	resources := "<< /Font << /F1 5 0 R >>"
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET\n", text)
	if imageData != nil {
		resources += " /XObject << /Im0 6 0 R >>"
		content += "q 100 0 0 100 72 600 cm /Im0 Do Q\n"
	}
	resources += " >>"

	b.addObject(3, fmt.Sprintf(
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources %s /Contents 4 0 R >>",
		resources))
	b.addStream(4, "", []byte(content))
	b.addObject(5, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	if imageData != nil {
		b.addStream(6, fmt.Sprintf(
			"/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /FlateDecode",
			imgW, imgH), zlibCompress(imageData))
	}
	return b.finish(1)
}

// multiPagePDF builds a document with one Flate-compressed content stream
// per page, each showing the corresponding text.
func multiPagePDF(pageTexts []string) []byte {
	b := newPDFBuilder()
	b.addObject(1, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := ""
	for i := range pageTexts {
		if i > 0 {
			kids += " "
		}
		kids += fmt.Sprintf("%d 0 R", 3+i*2)
	}
	b.addObject(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /Resources << /Font << /F1 99 0 R >> >> >>",
		kids, len(pageTexts)))

	for i, text := range pageTexts {
		pageNum := 3 + i*2
		contentNum := pageNum + 1
		b.addObject(pageNum, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R >>", contentNum))
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET\n", text)
		b.addStream(contentNum, "/Filter /FlateDecode", zlibCompress([]byte(content)))
	}

	b.addObject(99, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	return b.finish(1)
}

// rgbPixels returns w*h interleaved 8-bit RGB samples of a solid color.
func rgbPixels(w, h int, r, g, bl byte) []byte {
	out := make([]byte, 0, w*h*3)
	for i := 0; i < w*h; i++ {
		out = append(out, r, g, bl)
	}
	return out
}
