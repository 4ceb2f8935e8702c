package document

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var bareKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var errMixedSequence = errors.New("sequence mixes mappings with other values")

// SerializationError reports a value that cannot be written in the document
// grammar. Path is the dotted key path of the offending value.
type SerializationError struct {
	Path   string
	Reason string
}

func (e *SerializationError) Error() string {
	path := e.Path
	if path == "" {
		path = "<root>"
	}
	return fmt.Sprintf("cannot serialize %s: %s", path, e.Reason)
}

// Encode renders m as a complete document: the root's plain keys first, then
// one block per top-level table (each array-of-tables element is its own
// block), blocks separated by a blank line.
func Encode(m *Map) (string, error) {
	pairs, tables, err := partition(nil, m)
	if err != nil {
		return "", err
	}

	var blocks []string
	if len(pairs) > 0 {
		var buf bytes.Buffer
		if err := writePairs(&buf, nil, m, pairs); err != nil {
			return "", err
		}
		blocks = append(blocks, buf.String())
	}

	for _, key := range tables {
		v, _ := m.Get(key)
		path := []string{key}
		if sub, ok := v.AsMap(); ok {
			var buf bytes.Buffer
			if err := writeTable(&buf, path, sub, false); err != nil {
				return "", err
			}
			blocks = append(blocks, buf.String())
			continue
		}
		elems, _ := v.AsSequence()
		for _, e := range elems {
			sub, _ := e.AsMap()
			var buf bytes.Buffer
			if err := writeTable(&buf, path, sub, true); err != nil {
				return "", err
			}
			blocks = append(blocks, buf.String())
		}
	}

	return strings.Join(blocks, "\n"), nil
}

// EncodeFragment renders m as one array-of-tables element named name, for
// example a single [[runners]] entry. An empty m renders only the header.
func EncodeFragment(name string, m *Map) (string, error) {
	if !bareKeyPattern.MatchString(name) {
		return "", &SerializationError{Path: name, Reason: "table name is not a bare key"}
	}
	var buf bytes.Buffer
	if err := writeTable(&buf, []string{name}, m, true); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// partition splits the keys of m into plain pairs and tables, keeping order
// within each group. It also validates every key of m.
func partition(path []string, m *Map) (pairs, tables []string, err error) {
	m.Range(func(k string, v Value) bool {
		if !bareKeyPattern.MatchString(k) {
			err = &SerializationError{Path: joinPath(strings.Join(path, "."), k), Reason: fmt.Sprintf("key %q is not a plain identifier", k)}
			return false
		}
		table, terr := isTable(v)
		if terr != nil {
			err = &SerializationError{Path: joinPath(strings.Join(path, "."), k), Reason: terr.Error()}
			return false
		}
		if table {
			tables = append(tables, k)
		} else {
			pairs = append(pairs, k)
		}
		return true
	})
	return pairs, tables, err
}

// isTable reports whether v is written as a table header (a mapping or a
// non-empty sequence made only of mappings).
func isTable(v Value) (bool, error) {
	switch v.Kind() {
	case KindMap:
		return true, nil
	case KindSequence:
		elems, _ := v.AsSequence()
		if len(elems) == 0 {
			return false, nil
		}
		maps := 0
		for _, e := range elems {
			if e.Kind() == KindMap {
				maps++
			}
		}
		switch maps {
		case 0:
			return false, nil
		case len(elems):
			return true, nil
		default:
			return false, errMixedSequence
		}
	}
	return false, nil
}

func writeTable(buf *bytes.Buffer, path []string, m *Map, array bool) error {
	header := strings.Join(path, ".")
	if array {
		fmt.Fprintf(buf, "[[%s]]\n", header)
	} else {
		fmt.Fprintf(buf, "[%s]\n", header)
	}

	pairs, tables, err := partition(path, m)
	if err != nil {
		return err
	}
	if err := writePairs(buf, path, m, pairs); err != nil {
		return err
	}

	for _, key := range tables {
		v, _ := m.Get(key)
		sub := append(append([]string(nil), path...), key)
		if nested, ok := v.AsMap(); ok {
			if err := writeTable(buf, sub, nested, false); err != nil {
				return err
			}
			continue
		}
		elems, _ := v.AsSequence()
		for _, e := range elems {
			nested, _ := e.AsMap()
			if err := writeTable(buf, sub, nested, true); err != nil {
				return err
			}
		}
	}
	return nil
}

func writePairs(buf *bytes.Buffer, path []string, m *Map, keys []string) error {
	prefix := strings.Join(path, ".")
	for _, key := range keys {
		v, _ := m.Get(key)
		text, err := inline(joinPath(prefix, key), v)
		if err != nil {
			return err
		}
		fmt.Fprintf(buf, "%s = %s\n", key, text)
	}
	return nil
}

// inline formats a scalar or a scalar sequence.
func inline(path string, v Value) (string, error) {
	switch v.Kind() {
	case KindString:
		s, _ := v.AsString()
		if !utf8.ValidString(s) {
			return "", &SerializationError{Path: path, Reason: "string is not valid UTF-8"}
		}
		return quote(s), nil
	case KindInteger:
		i, _ := v.AsInt()
		return strconv.FormatInt(i, 10), nil
	case KindBoolean:
		b, _ := v.AsBool()
		return strconv.FormatBool(b), nil
	case KindFloat:
		f, _ := v.AsFloat()
		return formatFloat(path, f)
	case KindSequence:
		elems, _ := v.AsSequence()
		parts := make([]string, len(elems))
		for i, e := range elems {
			if e.Kind() == KindMap {
				return "", &SerializationError{Path: fmt.Sprintf("%s[%d]", path, i), Reason: "mapping inside an inline sequence"}
			}
			s, err := inline(fmt.Sprintf("%s[%d]", path, i), e)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case KindMap:
		return "", &SerializationError{Path: path, Reason: "mapping cannot be written inline"}
	default:
		return "", &SerializationError{Path: path, Reason: "invalid value"}
	}
}

func formatFloat(path string, f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", &SerializationError{Path: path, Reason: fmt.Sprintf("float %v has no finite representation", f)}
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s, nil
}

func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\f':
			b.WriteString(`\f`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04X`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
