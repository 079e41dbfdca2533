package ldapline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntryAccessors(t *testing.T) {
	e := &Entry{
		DN: "uid=jdoe,ou=people,dc=example,dc=com",
		Attributes: map[string][]string{
			"uid":  {"jdoe"},
			"mail": {"jdoe@example.com", "john.doe@example.com"},
		},
	}

	assert.Equal(t, "jdoe", e.Get("uid"))
	assert.Equal(t, "jdoe@example.com", e.Get("mail"), "Get returns the first value")
	assert.Empty(t, e.Get("cn"))

	assert.Len(t, e.GetAll("mail"), 2)
	assert.Nil(t, e.GetAll("cn"))

	assert.True(t, e.Has("uid"))
	assert.False(t, e.Has("cn"))
}

func TestEntryFromWire(t *testing.T) {
	e := entryFromWire(nil)
	assert.Nil(t, e)
}
