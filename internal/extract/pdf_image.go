package extract

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
)

// dataURIPrefix is the encoding convention for extracted images: every
// raster image is re-encoded as a PNG and exposed as a self-contained
// data URI.
const dataURIPrefix = "data:image/png;base64,"

// xobjectImage decodes an image XObject into a PNG data URI. Images using
// unsupported filters or color spaces are skipped rather than failing the
// page.
func (p *pdfParser) xobjectImage(v any) (string, bool) {
	obj := p.object(v)
	if obj == nil || obj.stream == nil {
		return "", false
	}
	dict, ok := obj.val.(pdfDict)
	if !ok || p.nameVal(dict["Subtype"]) != "Image" {
		return "", false
	}
	return p.encodeImage(dict, obj.stream)
}

// inlineImage consumes a BI ... ID <binary> EI sequence from a content
// stream. Abbreviated inline keys and filter names are normalized to their
// XObject equivalents before decoding.
func (p *pdfParser) inlineImage(l *lexer) (string, bool) {
	dict := pdfDict{}
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return "", false
		}
		if bytes.HasPrefix(l.data[l.pos:], []byte("ID")) && (l.pos+2 >= len(l.data) || isPDFSpace(l.data[l.pos+2])) {
			l.pos += 2
			break
		}
		val, op, ok := l.next()
		if !ok {
			return "", false
		}
		if op != "" {
			continue
		}
		key, ok := val.(pdfName)
		if !ok {
			continue
		}
		v, op, ok := l.next()
		if !ok {
			return "", false
		}
		if op == "" {
			dict[inlineKey(string(key))] = normalizeInlineValue(v)
		}
	}

	if l.pos < len(l.data) && isPDFSpace(l.data[l.pos]) {
		l.pos++
	}
	start := l.pos
	end := findInlineEnd(l.data, start)
	if end < 0 {
		return "", false
	}
	raw := l.data[start:end]
	l.pos = end + 3 // skip the separator and the "EI" marker

	return p.encodeImage(dict, raw)
}

// findInlineEnd locates the EI marker terminating inline image data.
func findInlineEnd(data []byte, start int) int {
	pos := start
	for {
		idx := bytes.Index(data[pos:], []byte("EI"))
		if idx < 0 {
			return -1
		}
		abs := pos + idx
		afterOK := abs+2 >= len(data) || isPDFSpace(data[abs+2]) || isPDFDelim(data[abs+2])
		beforeOK := abs > start && isPDFSpace(data[abs-1])
		if beforeOK && afterOK {
			return abs - 1
		}
		pos = abs + 2
	}
}

func inlineKey(key string) string {
	switch key {
	case "W":
		return "Width"
	case "H":
		return "Height"
	case "BPC":
		return "BitsPerComponent"
	case "CS":
		return "ColorSpace"
	case "F":
		return "Filter"
	case "DP":
		return "DecodeParms"
	case "IM":
		return "ImageMask"
	}
	return key
}

func normalizeInlineValue(v any) any {
	if n, ok := v.(pdfName); ok {
		switch n {
		case "Fl":
			return pdfName("FlateDecode")
		case "DCT":
			return pdfName("DCTDecode")
		case "AHx":
			return pdfName("ASCIIHexDecode")
		case "A85":
			return pdfName("ASCII85Decode")
		case "RGB":
			return pdfName("DeviceRGB")
		case "G":
			return pdfName("DeviceGray")
		case "CMYK":
			return pdfName("DeviceCMYK")
		}
	}
	return v
}

// encodeImage decodes raw image data to interleaved RGBA pixels and
// re-encodes it as a PNG data URI. PDF 24-bit RGB data is expanded to RGBA
// by inserting a full-opacity alpha channel per pixel.
func (p *pdfParser) encodeImage(dict pdfDict, raw []byte) (string, bool) {
	width, _ := p.intVal(dict["Width"])
	height, _ := p.intVal(dict["Height"])
	if width <= 0 || height <= 0 {
		return "", false
	}
	if mask, ok := p.resolve(dict["ImageMask"]).(bool); ok && mask {
		return "", false
	}

	filters := p.filterNames(dict["Filter"])

	// JPEG-compressed images decode through the image/jpeg pipeline.
	if len(filters) > 0 && filters[len(filters)-1] == "DCTDecode" {
		img, err := jpeg.Decode(bytes.NewReader(raw))
		if err != nil {
			return "", false
		}
		rgba := image.NewRGBA(img.Bounds())
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
		return pngDataURI(rgba)
	}

	data := raw
	for _, filter := range filters {
		switch filter {
		case "FlateDecode":
			decoded, err := flateDecode(data)
			if err != nil {
				return "", false
			}
			data = decoded
		default:
			return "", false
		}
	}

	// Predictor-encoded pixel data is not reconstructed.
	if parms := p.dictVal(dict["DecodeParms"]); parms != nil {
		if pred, ok := p.intVal(parms["Predictor"]); ok && pred > 1 {
			return "", false
		}
	}

	bpc, ok := p.intVal(dict["BitsPerComponent"])
	if !ok {
		bpc = 8
	}
	if bpc != 8 {
		return "", false
	}

	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	switch p.colorSpaceName(dict["ColorSpace"]) {
	case "DeviceRGB":
		if len(data) < width*height*3 {
			return "", false
		}
		for src, dst := 0, 0; dst < len(rgba.Pix); src, dst = src+3, dst+4 {
			rgba.Pix[dst] = data[src]
			rgba.Pix[dst+1] = data[src+1]
			rgba.Pix[dst+2] = data[src+2]
			rgba.Pix[dst+3] = 0xFF
		}
	case "DeviceGray":
		if len(data) < width*height {
			return "", false
		}
		for src, dst := 0, 0; dst < len(rgba.Pix); src, dst = src+1, dst+4 {
			rgba.Pix[dst] = data[src]
			rgba.Pix[dst+1] = data[src]
			rgba.Pix[dst+2] = data[src]
			rgba.Pix[dst+3] = 0xFF
		}
	default:
		return "", false
	}

	return pngDataURI(rgba)
}

// colorSpaceName resolves a color space entry to a device color space name,
// following ICCBased streams to their component count.
func (p *pdfParser) colorSpaceName(v any) string {
	switch cs := p.resolve(v).(type) {
	case pdfName:
		return string(cs)
	case []any:
		if len(cs) == 0 || p.nameVal(cs[0]) != "ICCBased" {
			return ""
		}
		if len(cs) < 2 {
			return ""
		}
		obj := p.object(cs[1])
		if obj == nil {
			return ""
		}
		dict, ok := obj.val.(pdfDict)
		if !ok {
			return ""
		}
		switch n, _ := p.intVal(dict["N"]); n {
		case 1:
			return "DeviceGray"
		case 3:
			return "DeviceRGB"
		}
	}
	return ""
}

func pngDataURI(rgba *image.RGBA) (string, bool) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return "", false
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), true
}
