package sax

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxRefLen is the longest character reference the parser accepts, counted
// from '&' through ';'. Longer runs without a ';' are malformed.
const maxRefLen = 12

// Parse drives the tokenizer over one document. It starts from the initial
// buffer (which may be nil) and requests more input through refill whenever
// the current buffer is exhausted mid document.
//
// Parse returns nil when the document's root element closed and the input is
// exhausted, the first non-nil error returned by events, the first error
// returned by refill, or a parse error (ErrUnexpectedEOF when the input ends
// mid document).
func Parse(initial []byte, events EventFunc, refill RefillFunc) error {
	p := &parser{buf: initial, events: events, refill: refill}
	return p.run()
}

type parser struct {
	buf    []byte
	pos    int
	events EventFunc
	refill RefillFunc
	eof    bool
	stack  []string
	closed bool // root element has been closed
}

func (p *parser) run() error {
	for {
		if p.pos >= len(p.buf) {
			got, err := p.more()
			if err != nil {
				return err
			}
			if got {
				continue
			}
			if len(p.stack) == 0 && p.closed {
				return nil
			}
			return ErrUnexpectedEOF
		}
		var err error
		if p.buf[p.pos] == '<' {
			err = p.markup()
		} else {
			err = p.text()
		}
		if err != nil {
			return err
		}
	}
}

// more requests another chunk, keeping everything from pos onward as the
// unconsumed tail. It returns false once the input source is exhausted and
// never invokes refill again after that.
func (p *parser) more() (bool, error) {
	if p.eof {
		return false, nil
	}
	tail := p.buf[p.pos:]
	next, err := p.refill(tail)
	if err != nil {
		return false, err
	}
	p.buf = next
	p.pos = 0
	if len(next) <= len(tail) {
		p.eof = true
		return false, nil
	}
	return true, nil
}

// need ensures at least n bytes are available from pos, refilling as needed.
func (p *parser) need(n int) error {
	for len(p.buf)-p.pos < n {
		got, err := p.more()
		if err != nil {
			return err
		}
		if !got {
			return ErrUnexpectedEOF
		}
	}
	return nil
}

func (p *parser) markup() error {
	if err := p.need(2); err != nil {
		return err
	}
	switch p.buf[p.pos+1] {
	case '?':
		p.pos += 2
		return p.skipPast([]byte("?>"))
	case '!':
		return p.declaration()
	case '/':
		return p.endTag()
	default:
		return p.startTag()
	}
}

// declaration handles comments, CDATA sections and DOCTYPE-style
// declarations, all introduced by "<!".
func (p *parser) declaration() error {
	if err := p.need(4); err != nil {
		return err
	}
	if bytes.HasPrefix(p.buf[p.pos:], []byte("<!--")) {
		p.pos += 4
		return p.skipPast([]byte("-->"))
	}
	if p.buf[p.pos+2] == '[' {
		if err := p.need(9); err != nil {
			return err
		}
		if bytes.HasPrefix(p.buf[p.pos:], []byte("<![CDATA[")) {
			p.pos += 9
			return p.cdata()
		}
	}
	p.pos += 2
	return p.skipPast([]byte(">"))
}

// skipPast advances past the next occurrence of seq, discarding everything
// before it and refilling as needed.
func (p *parser) skipPast(seq []byte) error {
	for {
		if i := bytes.Index(p.buf[p.pos:], seq); i >= 0 {
			p.pos += i + len(seq)
			return nil
		}
		// keep enough bytes to catch seq split across a chunk boundary
		keep := len(seq) - 1
		if avail := len(p.buf) - p.pos; avail < keep {
			keep = avail
		}
		p.pos = len(p.buf) - keep
		got, err := p.more()
		if err != nil {
			return err
		}
		if !got {
			return ErrUnexpectedEOF
		}
	}
}

// cdata emits the content of a CDATA section verbatim, without character
// reference decoding, until the closing "]]>".
func (p *parser) cdata() error {
	terminator := []byte("]]>")
	for {
		if i := bytes.Index(p.buf[p.pos:], terminator); i >= 0 {
			if err := p.emitRaw(p.buf[p.pos : p.pos+i]); err != nil {
				return err
			}
			p.pos += i + len(terminator)
			return nil
		}
		// hold back bytes that could be the start of a split terminator
		hold := len(p.buf) - p.pos
		if hold > len(terminator)-1 {
			hold = len(terminator) - 1
		}
		if err := p.emitRaw(p.buf[p.pos : len(p.buf)-hold]); err != nil {
			return err
		}
		p.pos = len(p.buf) - hold
		got, err := p.more()
		if err != nil {
			return err
		}
		if !got {
			return ErrUnexpectedEOF
		}
	}
}

// text consumes a run of character data up to the next markup byte.
func (p *parser) text() error {
	for {
		if i := bytes.IndexByte(p.buf[p.pos:], '<'); i >= 0 {
			seg := p.buf[p.pos : p.pos+i]
			p.pos += i
			return p.emitText(seg)
		}
		// no markup in sight: emit what is safe and hold back any bytes
		// that may be the start of a split character reference
		seg := p.buf[p.pos:]
		hold := holdback(seg)
		if err := p.emitText(seg[:len(seg)-hold]); err != nil {
			return err
		}
		p.pos = len(p.buf) - hold
		got, err := p.more()
		if err != nil {
			return err
		}
		if !got {
			if hold > 0 {
				return fmt.Errorf("sax: unterminated character reference at end of input")
			}
			return nil
		}
	}
}

// holdback returns how many trailing bytes of seg may belong to an
// incomplete character reference.
func holdback(seg []byte) int {
	for i := len(seg) - 1; i >= 0 && len(seg)-i <= maxRefLen; i-- {
		switch seg[i] {
		case ';':
			return 0
		case '&':
			return len(seg) - i
		}
	}
	return 0
}

// emitText decodes character references in seg and pushes a CharData event.
// Outside the root element only whitespace is tolerated, and it is dropped.
func (p *parser) emitText(seg []byte) error {
	if len(seg) == 0 {
		return nil
	}
	if len(p.stack) == 0 {
		if !isSpace(seg) {
			return fmt.Errorf("sax: character data outside root element")
		}
		return nil
	}
	out, err := decodeRefs(seg)
	if err != nil {
		return err
	}
	return p.events(Event{Kind: CharData, Text: out})
}

// emitRaw pushes seg as a CharData event without reference decoding.
func (p *parser) emitRaw(seg []byte) error {
	if len(seg) == 0 {
		return nil
	}
	if len(p.stack) == 0 {
		return fmt.Errorf("sax: character data outside root element")
	}
	return p.events(Event{Kind: CharData, Text: seg})
}

func (p *parser) startTag() error {
	end, err := p.findTagEnd()
	if err != nil {
		return err
	}
	raw := p.buf[p.pos+1 : end]
	selfClose := false
	if n := len(raw); n > 0 && raw[n-1] == '/' {
		selfClose = true
		raw = raw[:n-1]
	}
	name, attrs, err := parseTag(raw)
	if err != nil {
		return err
	}
	p.pos = end + 1
	if p.closed {
		return fmt.Errorf("sax: element <%s> after document element", name)
	}
	if selfClose {
		if len(p.stack) == 0 {
			p.closed = true
		}
	} else {
		p.stack = append(p.stack, name)
	}
	if err := p.events(Event{Kind: StartElement, Name: name, Attrs: attrs}); err != nil {
		return err
	}
	if selfClose {
		return p.events(Event{Kind: EndElement, Name: name})
	}
	return nil
}

func (p *parser) endTag() error {
	end, err := p.findTagEnd()
	if err != nil {
		return err
	}
	name := string(bytes.TrimSpace(p.buf[p.pos+2 : end]))
	p.pos = end + 1
	if len(p.stack) == 0 {
		return fmt.Errorf("sax: unmatched closing tag </%s>", name)
	}
	top := p.stack[len(p.stack)-1]
	if top != name {
		return fmt.Errorf("sax: mismatched closing tag </%s>, open element is <%s>", name, top)
	}
	p.stack = p.stack[:len(p.stack)-1]
	if len(p.stack) == 0 {
		p.closed = true
	}
	return p.events(Event{Kind: EndElement, Name: name})
}

// findTagEnd returns the index of the '>' closing the tag that starts at
// pos, refilling as needed. Quoted attribute values may contain '>'.
func (p *parser) findTagEnd() (int, error) {
	i := p.pos + 1
	var quote byte
	for {
		if i >= len(p.buf) {
			off := i - p.pos
			got, err := p.more()
			if err != nil {
				return 0, err
			}
			if !got {
				return 0, ErrUnexpectedEOF
			}
			i = p.pos + off
			continue
		}
		c := p.buf[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			i++
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '>':
			return i, nil
		}
		i++
	}
}

// parseTag splits the inside of a start tag into the element name and its
// attributes, decoding character references in attribute values.
func parseTag(raw []byte) (string, []Attr, error) {
	i := 0
	for i < len(raw) && !isSpaceByte(raw[i]) {
		i++
	}
	name := string(raw[:i])
	if name == "" {
		return "", nil, fmt.Errorf("sax: empty element name")
	}
	var attrs []Attr
	for {
		for i < len(raw) && isSpaceByte(raw[i]) {
			i++
		}
		if i >= len(raw) {
			return name, attrs, nil
		}
		start := i
		for i < len(raw) && raw[i] != '=' && !isSpaceByte(raw[i]) {
			i++
		}
		key := string(raw[start:i])
		for i < len(raw) && isSpaceByte(raw[i]) {
			i++
		}
		if i >= len(raw) || raw[i] != '=' {
			return "", nil, fmt.Errorf("sax: attribute %s of <%s> has no value", key, name)
		}
		i++
		for i < len(raw) && isSpaceByte(raw[i]) {
			i++
		}
		if i >= len(raw) || (raw[i] != '"' && raw[i] != '\'') {
			return "", nil, fmt.Errorf("sax: attribute %s of <%s> has an unquoted value", key, name)
		}
		q := raw[i]
		i++
		vstart := i
		for i < len(raw) && raw[i] != q {
			i++
		}
		if i >= len(raw) {
			return "", nil, fmt.Errorf("sax: attribute %s of <%s> has an unterminated value", key, name)
		}
		val, err := decodeRefs(raw[vstart:i])
		if err != nil {
			return "", nil, err
		}
		attrs = append(attrs, Attr{Name: key, Value: string(val)})
		i++
	}
}

// decodeRefs resolves predefined and numeric character references in seg.
// When seg contains none it is returned unchanged, without copying.
func decodeRefs(seg []byte) ([]byte, error) {
	amp := bytes.IndexByte(seg, '&')
	if amp < 0 {
		return seg, nil
	}
	out := make([]byte, 0, len(seg))
	for {
		out = append(out, seg[:amp]...)
		seg = seg[amp:]
		semi := bytes.IndexByte(seg, ';')
		if semi < 0 || semi > maxRefLen {
			return nil, fmt.Errorf("sax: malformed character reference %q", clip(seg))
		}
		r, err := resolveRef(string(seg[1:semi]))
		if err != nil {
			return nil, err
		}
		out = utf8.AppendRune(out, r)
		seg = seg[semi+1:]
		amp = bytes.IndexByte(seg, '&')
		if amp < 0 {
			return append(out, seg...), nil
		}
	}
}

func resolveRef(name string) (rune, error) {
	switch name {
	case "amp":
		return '&', nil
	case "lt":
		return '<', nil
	case "gt":
		return '>', nil
	case "apos":
		return '\'', nil
	case "quot":
		return '"', nil
	}
	if len(name) > 1 && name[0] == '#' {
		digits := name[1:]
		base := 10
		if digits[0] == 'x' || digits[0] == 'X' {
			digits = digits[1:]
			base = 16
		}
		n, err := strconv.ParseUint(digits, base, 32)
		if err == nil && utf8.ValidRune(rune(n)) {
			return rune(n), nil
		}
	}
	return 0, fmt.Errorf("sax: unknown character reference &%s;", name)
}

func clip(seg []byte) string {
	s := string(seg)
	if len(s) > maxRefLen {
		s = s[:maxRefLen] + "..."
	}
	return strings.ToValidUTF8(s, "�")
}

func isSpace(seg []byte) bool {
	for _, b := range seg {
		if !isSpaceByte(b) {
			return false
		}
	}
	return true
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
