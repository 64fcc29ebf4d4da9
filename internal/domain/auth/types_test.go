package auth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_UnmarshalJSON_SingleRoleField(t *testing.T) {
	var u User
	err := json.Unmarshal([]byte(`{"id":1,"email":"a@b.com","name":"A","role":"ADMIN"}`), &u)
	require.NoError(t, err)

	assert.Equal(t, "1", u.ID)
	assert.Equal(t, "a@b.com", u.Email)
	assert.True(t, u.IsAdmin())
}

func TestUser_UnmarshalJSON_RolesArray(t *testing.T) {
	var u User
	err := json.Unmarshal([]byte(`{"id":"u-2","email":"b@c.com","name":"B","roles":["USER","ADMIN"]}`), &u)
	require.NoError(t, err)

	assert.Equal(t, "u-2", u.ID)
	assert.True(t, u.IsAdmin())
	assert.True(t, u.Roles.Has(RoleUser))
}

// The id field arrives as a string or a number depending on deployment
// variant; both must decode, numbers keeping their literal text.
func TestUser_UnmarshalJSON_IDVariants(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{`{"id":"u-2","email":"b@c.com"}`, "u-2"},
		{`{"id":7,"email":"b@c.com"}`, "7"},
		{`{"id":9007199254740993,"email":"b@c.com"}`, "9007199254740993"},
		{`{"id":null,"email":"b@c.com"}`, ""},
		{`{"email":"b@c.com"}`, ""},
	}
	for _, tt := range tests {
		var u User
		require.NoError(t, json.Unmarshal([]byte(tt.payload), &u), "payload %s", tt.payload)
		assert.Equal(t, tt.want, u.ID, "payload %s", tt.payload)
	}
}

// Both role representations must answer the is-admin question identically.
func TestUser_RoleEquivalence(t *testing.T) {
	var single, multi User
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"role":"ADMIN"}`), &single))
	require.NoError(t, json.Unmarshal([]byte(`{"id":2,"roles":["USER","ADMIN"]}`), &multi))

	assert.True(t, single.IsAdmin())
	assert.True(t, multi.IsAdmin())

	var plain User
	require.NoError(t, json.Unmarshal([]byte(`{"id":3,"roles":["USER"]}`), &plain))
	assert.False(t, plain.IsAdmin())
}

func TestUser_UnmarshalJSON_NoRoles(t *testing.T) {
	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"id":4,"email":"d@e.com"}`), &u))
	assert.False(t, u.IsAdmin())
	assert.Empty(t, u.Roles.Slice())
}

func TestRoleSet_NormalizesCase(t *testing.T) {
	rs := NewRoleSet("admin", " user ")
	assert.True(t, rs.IsAdmin())
	assert.Equal(t, []string{"ADMIN", "USER"}, rs.Slice())
}

func TestState_Loading(t *testing.T) {
	assert.False(t, State{Status: StatusUnchecked}.Loading())
	assert.True(t, State{Status: StatusChecking}.Loading())
	assert.False(t, State{Status: StatusAuthenticated}.Loading())
	assert.False(t, State{Status: StatusUnauthenticated}.Loading())
}

func TestClassifyPath(t *testing.T) {
	tests := []struct {
		path string
		want RouteFamily
	}{
		{"/", FamilyPublic},
		{"/blog/some-post", FamilyPublic},
		{"/login", FamilyAuth},
		{"/register", FamilyAuth},
		{"/dashboard", FamilyProtected},
		{"/dashboard/settings", FamilyProtected},
		{"/dashboards", FamilyPublic},
		{"/profile", FamilyProtected},
		{"/appointments/42", FamilyProtected},
		{"/chat", FamilyProtected},
		{"/admin", FamilyAdmin},
		{"/admin/users", FamilyAdmin},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyPath(tt.path), "path %s", tt.path)
	}
}

func TestRouteFamily_RequiresCheck(t *testing.T) {
	assert.False(t, FamilyPublic.RequiresCheck())
	assert.False(t, FamilyAuth.RequiresCheck())
	assert.True(t, FamilyProtected.RequiresCheck())
	assert.True(t, FamilyAdmin.RequiresCheck())
}
