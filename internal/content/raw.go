package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type rawKind int

const (
	rawAbsent rawKind = iota
	rawText
	rawStructured
)

// Raw is stored content as it arrives from the collaborator: either
// serialized text, an already-structured JSON document, or nothing.
// It is resolved once here so callers never probe its shape.
type Raw struct {
	kind rawKind
	text string
	doc  json.RawMessage
}

// Text wraps serialized content, e.g. an edit typed by a reviewer.
func Text(s string) Raw {
	return Raw{kind: rawText, text: s}
}

// Structured wraps a JSON document that is already structured.
func Structured(doc []byte) Raw {
	return Raw{kind: rawStructured, doc: append(json.RawMessage(nil), doc...)}
}

// FromValue marshals v and wraps the result as structured content.
func FromValue(v any) (Raw, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Raw{}, fmt.Errorf("marshal content: %w", err)
	}
	return Structured(b), nil
}

// IsAbsent reports whether there is no usable content. Blank text counts as absent.
func (r Raw) IsAbsent() bool {
	switch r.kind {
	case rawText:
		return strings.TrimSpace(r.text) == ""
	case rawStructured:
		return false
	default:
		return true
	}
}

// IsZero lets encoding/json omit unset content with omitzero.
func (r Raw) IsZero() bool { return r.kind == rawAbsent }

// IsText reports whether the content arrived in serialized form.
func (r Raw) IsText() bool { return r.kind == rawText }

// IsStructured reports whether the content arrived already structured.
func (r Raw) IsStructured() bool { return r.kind == rawStructured }

// Bytes returns the bytes to decode.
func (r Raw) Bytes() []byte {
	switch r.kind {
	case rawText:
		return []byte(r.text)
	case rawStructured:
		return r.doc
	default:
		return nil
	}
}

// String returns the content as editable text. Structured documents are
// indented with two spaces; text is returned untouched.
func (r Raw) String() string {
	switch r.kind {
	case rawText:
		return r.text
	case rawStructured:
		var buf bytes.Buffer
		if err := json.Indent(&buf, r.doc, "", "  "); err != nil {
			return string(r.doc)
		}
		return buf.String()
	default:
		return ""
	}
}

func (r Raw) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case rawText:
		return json.Marshal(r.text)
	case rawStructured:
		return r.doc, nil
	default:
		return []byte("null"), nil
	}
}

func (r *Raw) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*r = Raw{}
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*r = Text(s)
	default:
		*r = Structured(trimmed)
	}
	return nil
}
