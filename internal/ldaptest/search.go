package ldaptest

import (
	"strconv"
	"strings"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/lor00x/goldap/message"
)

const (
	oidWhoAmI = "1.3.6.1.4.1.4203.1.11.3"
	oidPaged  = "1.2.840.113556.1.4.319"
	oidSort   = "1.2.840.113556.1.4.473"
)

func (sess *session) handleSearch(id int, msg *message.LDAPMessage, req message.SearchRequest) {
	if d := sess.srv.SearchDelay; d > 0 {
		time.Sleep(d)
	}

	base := string(req.BaseObject())
	matches := sess.srv.match(base, int(req.Scope()), req.Filter())

	pageSize, cookie, paged := pagedRequest(msg)
	sortAttr, sortReverse, sorted := sortRequest(msg)
	if sorted {
		sortEntries(matches, sortAttr, sortReverse)
	}

	if base != "" && !sess.srv.baseExists(base) {
		sess.writeRaw(searchDone(id, message.ResultCodeNoSuchObject, nil, paged))
		return
	}

	start := 0
	if paged && cookie != "" {
		sess.srv.mu.Lock()
		start = sess.srv.cursors[cookie]
		delete(sess.srv.cursors, cookie)
		sess.srv.mu.Unlock()
	}

	end := len(matches)
	var nextCookie []byte
	if paged && pageSize > 0 && start+pageSize < len(matches) {
		end = start + pageSize
		sess.srv.mu.Lock()
		sess.srv.nextCur++
		key := "c" + strconv.Itoa(sess.srv.nextCur)
		sess.srv.cursors[key] = end
		sess.srv.mu.Unlock()
		nextCookie = []byte(key)
	}

	requested := attributeSelection(req)
	for _, e := range matches[start:end] {
		entry := message.SearchResultEntry{}
		entry.SetObjectName(e.DN)
		for name, vals := range e.Attributes {
			if !wantAttribute(requested, name) {
				continue
			}
			attrVals := make([]message.AttributeValue, len(vals))
			for i, v := range vals {
				attrVals[i] = message.AttributeValue(v)
			}
			entry.AddAttribute(message.AttributeDescription(name), attrVals...)
		}
		sess.writeOp(id, entry)
	}
	code := message.ResultCodeSuccess
	if sess.srv.SearchCode != 0 {
		code = sess.srv.SearchCode
	}
	sess.writeRaw(searchDone(id, code, nextCookie, paged))
}

// match selects directory entries under base with the given scope and
// filter.
func (s *Server) match(base string, scope int, filter message.Filter) []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Entry
	for _, e := range s.entries {
		if !inScope(e.DN, base, scope) {
			continue
		}
		if matchFilter(e, filter) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Server) baseExists(base string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := strings.ToLower(base)
	for _, e := range s.entries {
		dn := strings.ToLower(e.DN)
		if dn == lower || strings.HasSuffix(dn, ","+lower) {
			return true
		}
	}
	return false
}

func inScope(dn, base string, scope int) bool {
	dn, base = strings.ToLower(dn), strings.ToLower(base)
	switch scope {
	case 0:
		return dn == base
	case 1:
		rest, ok := strings.CutSuffix(dn, ","+base)
		return ok && !strings.Contains(rest, ",")
	default:
		return dn == base || strings.HasSuffix(dn, ","+base)
	}
}

func matchFilter(e *Entry, f message.Filter) bool {
	switch filter := f.(type) {
	case message.FilterEqualityMatch:
		want := string(filter.AssertionValue())
		for _, v := range e.Attributes[string(filter.AttributeDesc())] {
			if strings.EqualFold(v, want) {
				return true
			}
		}
		return false
	case message.FilterPresent:
		_, ok := e.Attributes[string(filter)]
		return ok
	case message.FilterAnd:
		for _, sub := range filter {
			if !matchFilter(e, sub) {
				return false
			}
		}
		return true
	case message.FilterOr:
		for _, sub := range filter {
			if matchFilter(e, sub) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func attributeSelection(req message.SearchRequest) []string {
	var out []string
	for _, a := range req.Attributes() {
		out = append(out, string(a))
	}
	return out
}

func wantAttribute(requested []string, name string) bool {
	if len(requested) == 0 {
		return true
	}
	for _, r := range requested {
		if r == "*" || strings.EqualFold(r, name) {
			return true
		}
	}
	return false
}

// pagedRequest extracts the paged-results control from a request.
func pagedRequest(msg *message.LDAPMessage) (size int, cookie string, ok bool) {
	value := controlValue(msg, oidPaged)
	if value == nil {
		return 0, "", false
	}
	pkt, err := ber.DecodePacketErr(value)
	if err != nil || len(pkt.Children) != 2 {
		return 0, "", false
	}
	n, ok2 := pkt.Children[0].Value.(int64)
	if !ok2 {
		return 0, "", false
	}
	return int(n), pkt.Children[1].Data.String(), true
}

// sortRequest extracts the first key of the server-side-sort control.
func sortRequest(msg *message.LDAPMessage) (attr string, reverse bool, ok bool) {
	value := controlValue(msg, oidSort)
	if value == nil {
		return "", false, false
	}
	pkt, err := ber.DecodePacketErr(value)
	if err != nil || len(pkt.Children) == 0 {
		return "", false, false
	}
	key := pkt.Children[0]
	if len(key.Children) == 0 {
		return "", false, false
	}
	attr = key.Children[0].Data.String()
	for _, child := range key.Children[1:] {
		if child.ClassType == ber.ClassContext && child.Tag == 1 && len(child.Data.Bytes()) > 0 {
			reverse = child.Data.Bytes()[0] != 0
		}
	}
	return attr, reverse, true
}

func controlValue(msg *message.LDAPMessage, oid string) []byte {
	controls := msg.Controls()
	if controls == nil {
		return nil
	}
	for _, ctrl := range *controls {
		if string(ctrl.ControlType()) != oid {
			continue
		}
		if v := ctrl.ControlValue(); v != nil {
			return v.Bytes()
		}
	}
	return nil
}

// searchDone frames a SearchResultDone by hand: goldap offers no way to
// attach response controls, and the paged cookie rides on one.
func searchDone(id, code int, cookie []byte, paged bool) []byte {
	env := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "LDAPMessage")
	env.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(id), "MessageID"))

	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, 5, nil, "SearchResultDone")
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(code), "ResultCode"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "", "MatchedDN"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "", "DiagnosticMessage"))
	env.AppendChild(op)

	if paged {
		inner := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "RealSearchControlValue")
		inner.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, 0, "Size"))
		inner.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, string(cookie), "Cookie"))

		ctrl := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Control")
		ctrl.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, oidPaged, "ControlType"))
		ctrl.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, string(inner.Bytes()), "ControlValue"))

		controls := ber.Encode(ber.ClassContext, ber.TypeConstructed, 0, nil, "Controls")
		controls.AppendChild(ctrl)
		env.AppendChild(controls)
	}
	return env.Bytes()
}

// whoAmIResponse frames the RFC 4532 extended response by hand so the
// authorization identity can ride in the responseValue field.
func whoAmIResponse(id int, authzID string) []byte {
	env := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "LDAPMessage")
	env.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(id), "MessageID"))

	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, 24, nil, "ExtendedResponse")
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, 0, "ResultCode"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "", "MatchedDN"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "", "DiagnosticMessage"))
	op.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 11, authzID, "ResponseValue"))
	env.AppendChild(op)
	return env.Bytes()
}
