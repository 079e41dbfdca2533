package ad

import (
	"encoding/binary"
	"fmt"
)

// Security descriptor control flags.
const (
	ControlOwnerDefaulted = 0x0001
	ControlGroupDefaulted = 0x0002
	ControlDACLPresent    = 0x0004
	ControlDACLDefaulted  = 0x0008
	ControlSACLPresent    = 0x0010
	ControlSACLDefaulted  = 0x0020
	ControlSelfRelative   = 0x8000
)

// ACE types.
const (
	ACETypeAccessAllowed       = 0x00
	ACETypeAccessDenied        = 0x01
	ACETypeSystemAudit         = 0x02
	ACETypeAccessAllowedObject = 0x05
	ACETypeAccessDeniedObject  = 0x06
	ACETypeSystemAuditObject   = 0x07
)

// Object ACE flags.
const (
	aceObjectTypePresent          = 0x01
	aceInheritedObjectTypePresent = 0x02
)

// ACE is one access control entry. ObjectType and InheritedObjectType are
// set only on the object ACE types, where they scope the entry to a
// schema class or attribute.
type ACE struct {
	Type       uint8
	Flags      uint8
	AccessMask uint32

	ObjectFlags         uint32
	ObjectType          string
	InheritedObjectType string

	// TrusteeSID is the SID the entry applies to, in string form.
	TrusteeSID string
}

// IsObjectACE reports whether the entry carries object type GUIDs.
func (a *ACE) IsObjectACE() bool {
	return a.Type >= 0x05 && a.Type <= 0x08 || a.Type >= 0x0b && a.Type <= 0x0d
}

// ACL is a parsed access control list.
type ACL struct {
	Revision uint8
	ACEs     []ACE
}

// SecurityDescriptor is a parsed nTSecurityDescriptor value.
type SecurityDescriptor struct {
	Revision uint8
	Control  uint16
	OwnerSID string
	GroupSID string
	SACL     *ACL
	DACL     *ACL
}

// ParseSecurityDescriptor decodes a self-relative security descriptor as
// the directory returns it: a fixed 20-byte header with offsets to the
// owner SID, group SID, SACL and DACL, each of which may be absent.
func ParseSecurityDescriptor(raw []byte) (*SecurityDescriptor, error) {
	if len(raw) < 20 {
		return nil, fmt.Errorf("ad: security descriptor too short: %d bytes", len(raw))
	}
	sd := &SecurityDescriptor{
		Revision: raw[0],
		Control:  binary.LittleEndian.Uint16(raw[2:4]),
	}
	offOwner := binary.LittleEndian.Uint32(raw[4:8])
	offGroup := binary.LittleEndian.Uint32(raw[8:12])
	offSACL := binary.LittleEndian.Uint32(raw[12:16])
	offDACL := binary.LittleEndian.Uint32(raw[16:20])

	var err error
	if offOwner != 0 {
		if sd.OwnerSID, err = sidAt(raw, offOwner); err != nil {
			return nil, fmt.Errorf("ad: owner SID: %w", err)
		}
	}
	if offGroup != 0 {
		if sd.GroupSID, err = sidAt(raw, offGroup); err != nil {
			return nil, fmt.Errorf("ad: group SID: %w", err)
		}
	}
	if sd.Control&ControlSACLPresent != 0 && offSACL != 0 {
		if sd.SACL, err = parseACL(raw, offSACL); err != nil {
			return nil, fmt.Errorf("ad: SACL: %w", err)
		}
	}
	if sd.Control&ControlDACLPresent != 0 && offDACL != 0 {
		if sd.DACL, err = parseACL(raw, offDACL); err != nil {
			return nil, fmt.Errorf("ad: DACL: %w", err)
		}
	}
	return sd, nil
}

func sidAt(raw []byte, off uint32) (string, error) {
	if int(off) >= len(raw) {
		return "", fmt.Errorf("offset %d beyond descriptor of %d bytes", off, len(raw))
	}
	return SIDToString(raw[off:])
}

// parseACL decodes an ACL header (revision, size, count) and its ACEs.
func parseACL(raw []byte, off uint32) (*ACL, error) {
	if int(off)+8 > len(raw) {
		return nil, fmt.Errorf("offset %d beyond descriptor of %d bytes", off, len(raw))
	}
	body := raw[off:]
	size := binary.LittleEndian.Uint16(body[2:4])
	count := binary.LittleEndian.Uint16(body[4:6])
	if int(size) > len(body) {
		return nil, fmt.Errorf("ACL size %d exceeds remaining %d bytes", size, len(body))
	}
	acl := &ACL{Revision: body[0], ACEs: make([]ACE, 0, count)}

	pos := 8
	for i := 0; i < int(count); i++ {
		if pos+8 > int(size) {
			return nil, fmt.Errorf("ACE %d truncated", i)
		}
		ace, aceSize, err := parseACE(body[pos:size])
		if err != nil {
			return nil, fmt.Errorf("ACE %d: %w", i, err)
		}
		acl.ACEs = append(acl.ACEs, ace)
		pos += aceSize
	}
	return acl, nil
}

// parseACE decodes one entry: a 4-byte header, the access mask, then for
// object ACEs an object flags word and up to two GUIDs, and finally the
// trustee SID.
func parseACE(raw []byte) (ACE, int, error) {
	size := int(binary.LittleEndian.Uint16(raw[2:4]))
	if size < 8 || size > len(raw) {
		return ACE{}, 0, fmt.Errorf("bad ACE size %d", size)
	}
	ace := ACE{
		Type:       raw[0],
		Flags:      raw[1],
		AccessMask: binary.LittleEndian.Uint32(raw[4:8]),
	}
	pos := 8
	if ace.IsObjectACE() {
		if pos+4 > size {
			return ACE{}, 0, fmt.Errorf("object ACE truncated at flags")
		}
		ace.ObjectFlags = binary.LittleEndian.Uint32(raw[pos:])
		pos += 4
		var err error
		if ace.ObjectFlags&aceObjectTypePresent != 0 {
			if ace.ObjectType, err = guidField(raw, pos, size); err != nil {
				return ACE{}, 0, err
			}
			pos += 16
		}
		if ace.ObjectFlags&aceInheritedObjectTypePresent != 0 {
			if ace.InheritedObjectType, err = guidField(raw, pos, size); err != nil {
				return ACE{}, 0, err
			}
			pos += 16
		}
	}
	sid, err := SIDToString(raw[pos:size])
	if err != nil {
		return ACE{}, 0, fmt.Errorf("trustee: %w", err)
	}
	ace.TrusteeSID = sid
	return ace, size, nil
}

func guidField(raw []byte, pos, size int) (string, error) {
	if pos+16 > size {
		return "", fmt.Errorf("object ACE truncated at GUID")
	}
	return GUIDToString(raw[pos : pos+16])
}
