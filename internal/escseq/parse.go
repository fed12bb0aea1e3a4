package escseq

import "strings"

// maxValue bounds numeric values so an absurd length cannot overflow.
const maxValue = 1 << 24

// Options carries the print settings that influence parsing. They are captured
// by the caller at call time.
type Options struct {
	CharacterSet    int
	MapCharacterSet bool
	TopLogo         string
	BottomLogo      string
}

// sequence is one scanned escape sequence before recognition.
type sequence struct {
	raw        string
	negated    bool
	valueIsLen bool
	hasValue   bool
	value      int
	subtype    int
	terminator byte
	payload    string
}

// Parse splits markup into parts. It never fails; see the package comment.
func Parse(markup string, opts Options) []Part {
	p := parser{opts: opts}
	return p.parse(markup)
}

type parser struct {
	opts  Options
	parts []Part
}

func (p *parser) parse(data string) []Part {
	for {
		index := strings.Index(data, Introducer)
		if index < 0 {
			break
		}
		if index > 0 {
			p.text(data[:index], false)
			data = data[index:]
		}

		seq, rest, ok := scan(data)
		if !ok {
			p.parts = append(p.parts, Unknown{Raw: data})
			return p.parts
		}
		p.parts = append(p.parts, p.recognize(seq))
		data = rest
	}
	p.text(data, true)
	return p.parts
}

// text splits plain text on CR and LF. A CR directly followed by LF is dropped
// and runs of CR collapse into one.
func (p *parser) text(s string, final bool) {
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\r' && c != '\n' {
			continue
		}
		p.plain(s[start:i])
		start = i + 1

		if c == '\n' {
			p.parts = append(p.parts, ControlChar{Char: '\n'})
			continue
		}
		if i+1 < len(s) && (s[i+1] == '\n' || s[i+1] == '\r') {
			continue
		}
		p.parts = append(p.parts, ControlChar{Char: '\r'})
		if final && i == len(s)-1 {
			p.parts = append(p.parts, PlainText{CharacterSet: p.opts.CharacterSet, MapCharacterSet: p.opts.MapCharacterSet})
		}
	}
	p.plain(s[start:])
}

func (p *parser) plain(s string) {
	if s == "" {
		return
	}
	p.parts = append(p.parts, PlainText{
		Text:            s,
		CharacterSet:    p.opts.CharacterSet,
		MapCharacterSet: p.opts.MapCharacterSet,
	})
}

// scan reads one escape sequence at the start of data. ok is false when data
// ends before the sequence is complete.
func scan(data string) (seq sequence, rest string, ok bool) {
	i := len(Introducer)
	if i >= len(data) {
		return seq, "", false
	}
	switch data[i] {
	case '!':
		seq.negated = true
		i++
	case '*':
		seq.valueIsLen = true
		i++
	}
	for ; i < len(data) && data[i] >= '0' && data[i] <= '9'; i++ {
		seq.hasValue = true
		if seq.value < maxValue {
			seq.value = seq.value*10 + int(data[i]-'0')
		}
	}
	for ; i < len(data) && data[i] >= 'a' && data[i] <= 'z'; i++ {
		seq.subtype = seq.subtype*1000 + int(data[i])
	}
	if i >= len(data) {
		return seq, "", false
	}

	c := data[i]
	if c < 'A' || c > 'Z' {
		// Not a sequence: report what was scanned and resume at the offending byte.
		seq.raw = data[:i]
		return seq, data[i:], true
	}
	seq.terminator = c
	i++

	if c == 'E' || c == 'R' || seq.valueIsLen {
		end := i + seq.value
		if end > len(data) {
			return seq, "", false
		}
		seq.payload = data[i:end]
		i = end
	}
	seq.raw = data[:i]
	return seq, data[i:], true
}
