package clientdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccountDataSetGet(t *testing.T) {
	c := New("conn1", "1.2.3.4")
	assert.False(t, c.IsAuthorized())
	assert.Equal(t, int32(0), c.AccountID())

	c.SetAccountData(TokenData{AccountID: 42, Username: "alice"})
	assert.True(t, c.IsAuthorized())
	assert.Equal(t, int32(42), c.AccountID())
}

func TestDeauthorizeTerminal(t *testing.T) {
	c := New("conn1", "1.2.3.4")
	c.SetAccountData(TokenData{AccountID: 1})
	assert.True(t, c.IsAuthorized())

	c.Deauthorize()
	assert.False(t, c.IsAuthorized())
	assert.True(t, c.IsDeauthorized())
}

func TestSessionSwapReturnsPrevious(t *testing.T) {
	c := New("conn1", "1.2.3.4")
	prev := c.SetSession(nil)
	assert.Nil(t, prev)
}

func TestRolesDeriveModerator(t *testing.T) {
	c := New("conn1", "1.2.3.4")
	c.SetRoles([]Role{{ID: 1, StringID: "mod", CanModerate: true}}, "#ff0000")
	assert.True(t, c.IsModerator())
	assert.Equal(t, "#ff0000", c.NameColor())
}

func TestResolveRolesSkipsUnknown(t *testing.T) {
	table := []Role{{ID: 1, StringID: "admin"}, {ID: 2, StringID: "mod"}}
	resolved, unknown := ResolveRoles("admin,bogus,mod", table)
	assert.Len(t, resolved, 2)
	assert.Equal(t, []string{"bogus"}, unknown)
}

func TestResolveRolesCapsAtMax(t *testing.T) {
	table := make([]Role, 0, MaxResolvedRoles+10)
	var ids []string
	for i := 0; i < MaxResolvedRoles+10; i++ {
		sid := string(rune('a'+i%26)) + string(rune('0'+i%10))
		table = append(table, Role{ID: uint8(i % 256), StringID: sid})
		ids = append(ids, sid)
	}
	joined := ""
	for i, id := range ids {
		if i > 0 {
			joined += ","
		}
		joined += id
	}
	resolved, _ := ResolveRoles(joined, table)
	assert.Len(t, resolved, MaxResolvedRoles)
}
