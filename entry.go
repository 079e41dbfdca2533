package ldapline

import (
	"github.com/ldapline/ldapline/internal/wire"
)

// Entry is one object returned by a search. Attribute values are kept as
// strings; binary values survive unchanged because Go strings carry
// arbitrary bytes.
type Entry struct {
	DN         string
	Attributes map[string][]string
}

// Get returns the first value of the named attribute, or "" when the entry
// does not carry it.
func (e *Entry) Get(name string) string {
	if vals := e.Attributes[name]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// GetAll returns every value of the named attribute.
func (e *Entry) GetAll(name string) []string {
	return e.Attributes[name]
}

// Has reports whether the entry carries the named attribute at all.
func (e *Entry) Has(name string) bool {
	_, ok := e.Attributes[name]
	return ok
}

func entryFromWire(we *wire.Entry) *Entry {
	if we == nil {
		return nil
	}
	e := &Entry{DN: we.DN, Attributes: make(map[string][]string, len(we.Attrs))}
	for _, a := range we.Attrs {
		e.Attributes[a.Name] = append(e.Attributes[a.Name], a.Values...)
	}
	return e
}
