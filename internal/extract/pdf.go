package extract

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/perkwise/perkdocs/internal/domain"
)

// maxPageTreeDepth bounds page-tree recursion against cyclic Kids entries.
const maxPageTreeDepth = 64

var pdfHeader = []byte("%PDF-")

// objStartRe matches the "N G obj" header of an indirect object.
var objStartRe = regexp.MustCompile(`(?s)(\d+)\s+(\d+)\s+obj\b`)

// ParsePDF parses a PDF buffer into page-structured text and embedded
// images. It reads the subset of the format needed for retrieval: indirect
// objects, Flate-compressed streams, the page tree, and the text-show and
// image-paint operators of page content streams. Objects are located by
// scanning rather than through the xref table, which also tolerates files
// with damaged cross-reference data.
func ParsePDF(data []byte) (*ParsedDocument, error) {
	if !bytes.HasPrefix(data, pdfHeader) {
		return nil, fmt.Errorf("%w: missing PDF header", domain.ErrExtractionFailed)
	}

	p := &pdfParser{data: data, objs: make(map[int]*pdfObject)}
	p.scanObjects()

	pages, err := p.collectPages()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: document has no pages", domain.ErrExtractionFailed)
	}

	doc := &ParsedDocument{PageCount: len(pages)}
	var full strings.Builder
	for i, page := range pages {
		text, images := p.renderPage(page)
		if i > 0 {
			full.WriteByte('\n')
		}
		full.WriteString(text)

		doc.Pages = append(doc.Pages, ParsedPage{PageNumber: i + 1, Text: text, Images: images})
		for _, img := range images {
			doc.Images = append(doc.Images, ImageRef{Page: i + 1, Data: img})
		}
	}
	doc.Text = full.String()

	return doc, nil
}

type pdfRef struct {
	num int
}

type pdfName string

type pdfString []byte

type pdfDict map[string]any

type pdfObject struct {
	val    any
	stream []byte
}

// pdfPage pairs a page dictionary with its effective (possibly inherited)
// resource dictionary.
type pdfPage struct {
	dict      pdfDict
	resources pdfDict
}

type pdfParser struct {
	data []byte
	objs map[int]*pdfObject
}

// scanObjects locates every "N G obj" header and parses the object body.
// Later definitions of the same object number win, matching incremental
// update semantics.
func (p *pdfParser) scanObjects() {
	type pendingStream struct {
		obj   *pdfObject
		dict  pdfDict
		start int
	}
	var pending []pendingStream

	for _, m := range objStartRe.FindAllSubmatchIndex(p.data, -1) {
		num := atoi(p.data[m[2]:m[3]])
		l := &lexer{data: p.data, pos: m[1]}
		val, op, ok := l.next()
		if !ok || op != "" {
			continue
		}

		obj := &pdfObject{val: val}
		p.objs[num] = obj

		dict, isDict := val.(pdfDict)
		if !isDict {
			continue
		}
		l.skipSpace()
		if !bytes.HasPrefix(p.data[l.pos:], []byte("stream")) {
			continue
		}
		start := l.pos + len("stream")
		if start < len(p.data) && p.data[start] == '\r' {
			start++
		}
		if start < len(p.data) && p.data[start] == '\n' {
			start++
		}
		pending = append(pending, pendingStream{obj: obj, dict: dict, start: start})
	}

	// Stream lengths may be indirect references, so slice stream data only
	// after the object table is complete.
	for _, ps := range pending {
		if n, ok := p.intVal(ps.dict["Length"]); ok && ps.start+n <= len(p.data) {
			tail := p.data[ps.start+n:]
			if isStreamEnd(tail) {
				ps.obj.stream = p.data[ps.start : ps.start+n]
				continue
			}
		}
		if end := bytes.Index(p.data[ps.start:], []byte("endstream")); end >= 0 {
			ps.obj.stream = trimStreamEOL(p.data[ps.start : ps.start+end])
		}
	}
}

func isStreamEnd(tail []byte) bool {
	for len(tail) > 0 && (tail[0] == '\r' || tail[0] == '\n' || tail[0] == ' ') {
		tail = tail[1:]
	}
	return bytes.HasPrefix(tail, []byte("endstream"))
}

func trimStreamEOL(s []byte) []byte {
	for len(s) > 0 && (s[len(s)-1] == '\r' || s[len(s)-1] == '\n') {
		s = s[:len(s)-1]
	}
	return s
}

// resolve follows indirect references to a concrete value.
func (p *pdfParser) resolve(v any) any {
	for i := 0; i < 32; i++ {
		ref, ok := v.(pdfRef)
		if !ok {
			return v
		}
		obj := p.objs[ref.num]
		if obj == nil {
			return nil
		}
		v = obj.val
	}
	return nil
}

func (p *pdfParser) object(v any) *pdfObject {
	if ref, ok := v.(pdfRef); ok {
		return p.objs[ref.num]
	}
	return nil
}

func (p *pdfParser) dictVal(v any) pdfDict {
	d, _ := p.resolve(v).(pdfDict)
	return d
}

func (p *pdfParser) nameVal(v any) string {
	n, _ := p.resolve(v).(pdfName)
	return string(n)
}

func (p *pdfParser) intVal(v any) (int, bool) {
	switch n := p.resolve(v).(type) {
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// collectPages walks the page tree from the document catalog. Documents
// whose trailer or catalog cannot be located fall back to collecting page
// objects in file order.
func (p *pdfParser) collectPages() ([]pdfPage, error) {
	catalog := p.findCatalog()
	if catalog == nil {
		return p.pagesByScan(), nil
	}

	var pages []pdfPage
	var walk func(v any, inherited pdfDict, depth int) error
	walk = func(v any, inherited pdfDict, depth int) error {
		if depth > maxPageTreeDepth {
			return fmt.Errorf("page tree too deep")
		}
		node := p.dictVal(v)
		if node == nil {
			return nil
		}

		resources := inherited
		if r := p.dictVal(node["Resources"]); r != nil {
			resources = r
		}

		switch p.nameVal(node["Type"]) {
		case "Pages":
			kids, _ := p.resolve(node["Kids"]).([]any)
			for _, kid := range kids {
				if err := walk(kid, resources, depth+1); err != nil {
					return err
				}
			}
		case "Page":
			pages = append(pages, pdfPage{dict: node, resources: resources})
		}
		return nil
	}

	if err := walk(catalog["Pages"], nil, 0); err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		pages = p.pagesByScan()
	}
	return pages, nil
}

// findCatalog parses trailer dictionaries for /Root, preferring the last
// trailer in the file, and falls back to scanning for a /Type /Catalog
// object.
func (p *pdfParser) findCatalog() pdfDict {
	var catalog pdfDict
	pos := 0
	for {
		idx := bytes.Index(p.data[pos:], []byte("trailer"))
		if idx < 0 {
			break
		}
		pos += idx + len("trailer")
		l := &lexer{data: p.data, pos: pos}
		if v, op, ok := l.next(); ok && op == "" {
			if d, ok := v.(pdfDict); ok {
				if root := p.dictVal(d["Root"]); root != nil {
					catalog = root
				}
			}
		}
	}
	if catalog != nil {
		return catalog
	}

	for _, obj := range p.objs {
		if d, ok := obj.val.(pdfDict); ok && p.nameVal(d["Type"]) == "Catalog" {
			return d
		}
	}
	return nil
}

func (p *pdfParser) pagesByScan() []pdfPage {
	maxNum := 0
	for num := range p.objs {
		if num > maxNum {
			maxNum = num
		}
	}
	var pages []pdfPage
	for num := 1; num <= maxNum; num++ {
		obj := p.objs[num]
		if obj == nil {
			continue
		}
		d, ok := obj.val.(pdfDict)
		if !ok || p.nameVal(d["Type"]) != "Page" {
			continue
		}
		pages = append(pages, pdfPage{dict: d, resources: p.dictVal(d["Resources"])})
	}
	return pages
}

// pageContent concatenates the decoded content stream(s) of a page.
func (p *pdfParser) pageContent(page pdfPage) []byte {
	contents := p.resolve(page.dict["Contents"])
	var parts []any
	if arr, ok := contents.([]any); ok {
		parts = arr
	} else {
		parts = []any{page.dict["Contents"]}
	}

	var buf bytes.Buffer
	for _, part := range parts {
		obj := p.object(part)
		if obj == nil || obj.stream == nil {
			continue
		}
		decoded := p.decodeStream(obj)
		if decoded == nil {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(decoded)
	}
	return buf.Bytes()
}

// decodeStream returns the decoded bytes of a stream object, or nil when a
// filter in its chain is unsupported.
func (p *pdfParser) decodeStream(obj *pdfObject) []byte {
	dict, _ := obj.val.(pdfDict)
	data := obj.stream
	for _, filter := range p.filterNames(dict["Filter"]) {
		switch filter {
		case "FlateDecode", "Fl":
			decoded, err := flateDecode(data)
			if err != nil {
				return nil
			}
			data = decoded
		default:
			return nil
		}
	}
	return data
}

func (p *pdfParser) filterNames(v any) []string {
	switch f := p.resolve(v).(type) {
	case pdfName:
		return []string{string(f)}
	case []any:
		names := make([]string, 0, len(f))
		for _, item := range f {
			names = append(names, p.nameVal(item))
		}
		return names
	}
	return nil
}

func flateDecode(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil && len(out) == 0 {
		return nil, err
	}
	return out, nil
}

// renderPage walks a page's content stream once, collecting both the shown
// text runs (in reading order as they appear in the stream) and every
// painted raster image.
func (p *pdfParser) renderPage(page pdfPage) (string, []string) {
	content := p.pageContent(page)
	xobjects := p.dictVal(page.resources["XObject"])

	var frags []string
	var images []string
	var operands []any

	l := &lexer{data: content}
	for {
		val, op, ok := l.next()
		if !ok {
			break
		}
		if op == "" {
			operands = append(operands, val)
			continue
		}

		switch op {
		case "Tj", "'", "\"":
			if s, ok := lastOperand[pdfString](operands); ok {
				frags = appendFragment(frags, decodeTextString(s))
			}
		case "TJ":
			if arr, ok := lastOperand[[]any](operands); ok {
				for _, item := range arr {
					if s, ok := item.(pdfString); ok {
						frags = appendFragment(frags, decodeTextString(s))
					}
				}
			}
		case "Do":
			if name, ok := lastOperand[pdfName](operands); ok && xobjects != nil {
				if uri, ok := p.xobjectImage(xobjects[string(name)]); ok {
					images = append(images, uri)
				}
			}
		case "BI":
			if uri, ok := p.inlineImage(l); ok {
				images = append(images, uri)
			}
		}
		operands = operands[:0]
	}

	return strings.Join(frags, " "), images
}

func appendFragment(frags []string, s string) []string {
	if s == "" {
		return frags
	}
	return append(frags, s)
}

func lastOperand[T any](operands []any) (T, bool) {
	for i := len(operands) - 1; i >= 0; i-- {
		if v, ok := operands[i].(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// decodeTextString decodes a content-stream text string. UTF-16BE strings
// carry a byte-order mark; everything else is treated as single-byte text.
func decodeTextString(s pdfString) string {
	if len(s) >= 2 && s[0] == 0xFE && s[1] == 0xFF {
		codes := make([]uint16, 0, (len(s)-2)/2)
		for i := 2; i+1 < len(s); i += 2 {
			codes = append(codes, uint16(s[i])<<8|uint16(s[i+1]))
		}
		return string(utf16.Decode(codes))
	}
	runes := make([]rune, len(s))
	for i, b := range s {
		runes[i] = rune(b)
	}
	return string(runes)
}

func atoi(b []byte) int {
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}
