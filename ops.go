package ldapline

import (
	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/ldapline/ldapline/internal/wire"
)

// Attribute is one attribute of an entry being added or modified.
type Attribute struct {
	Name   string
	Values []string
}

// Change is one modification step. Build them with AddChange, DeleteChange
// and ReplaceChange.
type Change struct {
	op   int
	attr Attribute
}

func AddChange(name string, values ...string) Change {
	return Change{op: wire.ModAdd, attr: Attribute{Name: name, Values: values}}
}

func DeleteChange(name string, values ...string) Change {
	return Change{op: wire.ModDelete, attr: Attribute{Name: name, Values: values}}
}

func ReplaceChange(name string, values ...string) Change {
	return Change{op: wire.ModReplace, attr: Attribute{Name: name, Values: values}}
}

// Add creates a new entry. It blocks for the server's answer regardless of
// the session mode.
func (c *Conn) Add(dn string, attrs []Attribute) error {
	if dn == "" {
		return usageError("add", "empty DN")
	}
	wireAttrs := make([]wire.Attribute, len(attrs))
	for i, a := range attrs {
		wireAttrs[i] = wire.Attribute{Name: a.Name, Values: a.Values}
	}
	return c.simpleOp("add", wire.Add(dn, wireAttrs))
}

// Delete removes the entry named by dn. Deleting the empty DN is a no-op:
// there is nothing to remove, and nothing goes on the wire.
func (c *Conn) Delete(dn string) error {
	if dn == "" {
		return nil
	}
	return c.simpleOp("delete", wire.Del(dn))
}

// Modify applies a sequence of changes to the entry named by dn, in
// order, as one atomic protocol operation.
func (c *Conn) Modify(dn string, changes []Change) error {
	if dn == "" {
		return usageError("modify", "empty DN")
	}
	if len(changes) == 0 {
		return usageError("modify", "no changes")
	}
	wireChanges := make([]wire.Change, len(changes))
	for i, ch := range changes {
		wireChanges[i] = wire.Change{
			Op:   ch.op,
			Attr: wire.Attribute{Name: ch.attr.Name, Values: ch.attr.Values},
		}
	}
	return c.simpleOp("modify", wire.Modify(dn, wireChanges))
}

// WhoAmI asks the server which authorization identity this session holds
// (RFC 4532). An anonymous session reports "anonym".
func (c *Conn) WhoAmI() (string, error) {
	c.mu.Lock()
	env, err := c.exchange(wire.Extended(wire.OIDWhoAmI, nil), nil)
	c.mu.Unlock()
	if err != nil {
		return "", err
	}
	ext, err := wire.ParseExtended(env.Op)
	if err != nil {
		return "", decodeError("whoami", err)
	}
	if !ext.Success() {
		return "", protocolError("whoami", ext.Result)
	}
	if len(ext.Value) == 0 {
		return "anonym", nil
	}
	return string(ext.Value), nil
}

// simpleOp runs one request/response operation and maps a non-success
// result code to an error.
func (c *Conn) simpleOp(name string, req *ber.Packet) error {
	c.mu.Lock()
	env, err := c.exchange(req, nil)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	res, err := wire.ParseResult(env.Op)
	if err != nil {
		return decodeError(name, err)
	}
	if !res.Success() {
		return protocolError(name, res)
	}
	c.log.Debug("operation complete", "op", name, "msgid", env.ID)
	return nil
}
