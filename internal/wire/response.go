package wire

import (
	"errors"
	"fmt"

	ber "github.com/go-asn1-ber/asn1-ber"
)

// Result is the LDAPResult triple shared by most response operations.
type Result struct {
	Code       int
	MatchedDN  string
	Diagnostic string
}

// Success reports plain protocol success.
func (r Result) Success() bool {
	return r.Code == ResultSuccess
}

func childInt(p *ber.Packet, i int) (int64, bool) {
	if len(p.Children) <= i {
		return 0, false
	}
	v, ok := p.Children[i].Value.(int64)
	return v, ok
}

func childString(p *ber.Packet, i int) (string, bool) {
	if len(p.Children) <= i {
		return "", false
	}
	v, ok := p.Children[i].Value.(string)
	return v, ok
}

// ParseResult extracts the LDAPResult fields from a response operation.
func ParseResult(op *ber.Packet) (Result, error) {
	code, ok := childInt(op, 0)
	if !ok {
		return Result{}, errors.New("wire: response has no result code")
	}
	matched, _ := childString(op, 1)
	diag, _ := childString(op, 2)
	return Result{Code: int(code), MatchedDN: matched, Diagnostic: diag}, nil
}

// SASLCreds extracts serverSaslCreds from a bind response, if present.
func SASLCreds(op *ber.Packet) []byte {
	for _, child := range op.Children {
		if child.ClassType == ber.ClassContext && child.Tag == 7 {
			return child.Data.Bytes()
		}
	}
	return nil
}

// Entry is the wire shape of one search result entry, before the session
// layer converts it to its application value.
type Entry struct {
	DN    string
	Attrs []Attribute
}

// ParseEntry decodes a SearchResultEntry operation.
func ParseEntry(op *ber.Packet) (*Entry, error) {
	if op.Tag != ApplicationSearchResultEntry || len(op.Children) < 2 {
		return nil, errors.New("wire: malformed search result entry")
	}
	dn, ok := childString(op, 0)
	if !ok {
		return nil, errors.New("wire: search result entry has no object name")
	}
	entry := &Entry{DN: dn}
	for _, attr := range op.Children[1].Children {
		name, ok := childString(attr, 0)
		if !ok || len(attr.Children) < 2 {
			return nil, fmt.Errorf("wire: malformed attribute in entry %q", dn)
		}
		a := Attribute{Name: name}
		for _, val := range attr.Children[1].Children {
			s, ok := val.Value.(string)
			if !ok {
				s = string(val.Data.Bytes())
			}
			a.Values = append(a.Values, s)
		}
		entry.Attrs = append(entry.Attrs, a)
	}
	return entry, nil
}

// ExtendedResult is a decoded extended operation response.
type ExtendedResult struct {
	Result
	Name  string
	Value []byte
}

// ParseExtended decodes an ExtendedResponse operation, including the
// optional responseName [10] and responseValue [11] fields.
func ParseExtended(op *ber.Packet) (ExtendedResult, error) {
	res, err := ParseResult(op)
	if err != nil {
		return ExtendedResult{}, err
	}
	ext := ExtendedResult{Result: res}
	if len(op.Children) < 4 {
		return ext, nil
	}
	for _, child := range op.Children[3:] {
		if child.ClassType != ber.ClassContext {
			continue
		}
		switch child.Tag {
		case 10:
			ext.Name = string(child.Data.Bytes())
		case 11:
			ext.Value = child.Data.Bytes()
		}
	}
	return ext, nil
}
