package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core/studygroup"
)

func (env *testEnv) createStudyGroup(t *testing.T, token string, body interface{}) StudyGroupResponse {
	rec := env.do(http.MethodPost, "/v1/study-groups", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var g StudyGroupResponse
	decode(t, rec, &g)
	return g
}

func (env *testEnv) membership(t *testing.T, action, groupID, token string) MembershipResponse {
	rec := env.do(http.MethodPost, "/v1/study-groups/"+groupID+"/"+action, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res MembershipResponse
	decode(t, rec, &res)
	return res
}

func Test_studyGroupApi_create(t *testing.T) {
	env := setup(t)
	usr := env.student(t, "Jane Doe", "jane_doe")
	token := env.token(t, usr)

	tests := []httpTest{
		{
			name: "name required", method: http.MethodPost, path: "/v1/study-groups", token: token,
			body: []byte(`{"description": "nameless"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "this field is required"}),
		},
		{
			name: "too small", method: http.MethodPost, path: "/v1/study-groups", token: token,
			body: []byte(`{"name": "Solo", "max_members": 1}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "invalid tags", method: http.MethodPost, path: "/v1/study-groups", token: token,
			body: []byte(`{"name": "Tagged", "tags": 42}`), wantCode: http.StatusBadRequest,
		},
	}
	runHTTPTests(t, env, tests)

	t.Run("created", func(t *testing.T) {
		g := env.createStudyGroup(t, token, map[string]interface{}{
			"name": " Algo Club ",
			"tags": "algorithms, graphs ,,",
		})
		assert.NotEmpty(t, g.ID)
		assert.Equal(t, "Algo Club", g.Name)
		assert.Equal(t, []string{"algorithms", "graphs"}, g.Tags)
		assert.Equal(t, env.conf.Portal.DefaultGroupSize, g.MaxMembers)
		assert.Equal(t, usr.ID, g.CreatedBy)
		assert.True(t, g.Joined)
		require.Len(t, g.Members, 1)
		assert.Equal(t, usr.ID, g.Members[0].UserID)
		assert.Equal(t, "Jane Doe", g.Members[0].Name)
		assert.Equal(t, studygroup.RoleAdmin, g.Members[0].Role)
	})

	t.Run("tags list", func(t *testing.T) {
		g := env.createStudyGroup(t, token, map[string]interface{}{"name": "Bio Club", "tags": []string{" cells ", ""}})
		assert.Equal(t, []string{"cells"}, g.Tags)
	})
}

func Test_studyGroupApi_membership(t *testing.T) {
	env := setup(t)
	jane := env.student(t, "Jane", "jane_doe")
	john := env.student(t, "John", "john_doe")
	mary := env.student(t, "Mary", "mary_jane")
	janeToken, johnToken, maryToken := env.token(t, jane), env.token(t, john), env.token(t, mary)

	g := env.createStudyGroup(t, janeToken, map[string]interface{}{"name": "Duo", "max_members": 2})

	t.Run("join", func(t *testing.T) {
		res := env.membership(t, "join", g.ID, johnToken)
		assert.True(t, res.Joined)
		assert.False(t, res.Deleted)
		require.NotNil(t, res.Group)
		require.Len(t, res.Group.Members, 2)
		assert.Equal(t, john.ID, res.Group.Members[1].UserID)
		assert.Equal(t, studygroup.RoleMember, res.Group.Members[1].Role)
	})

	tests := []httpTest{
		{
			name: "already a member", method: http.MethodPost, path: "/v1/study-groups/" + g.ID + "/join", token: johnToken,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "already a member of this study group"}),
		},
		{
			name: "group full", method: http.MethodPost, path: "/v1/study-groups/" + g.ID + "/join", token: maryToken,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "study group is full"}),
		},
		{
			name: "not a member", method: http.MethodPost, path: "/v1/study-groups/" + g.ID + "/leave", token: maryToken,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "not a member of this study group"}),
		},
		{
			name: "unknown group", method: http.MethodPost, path: "/v1/study-groups/nope/join", token: maryToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "study group not found"}),
		},
	}
	runHTTPTests(t, env, tests)

	t.Run("admin leaves", func(t *testing.T) {
		res := env.membership(t, "leave", g.ID, janeToken)
		assert.False(t, res.Joined)
		assert.False(t, res.Deleted)
		require.NotNil(t, res.Group)
		require.Len(t, res.Group.Members, 1)
		assert.Equal(t, john.ID, res.Group.Members[0].UserID)
		assert.Equal(t, studygroup.RoleAdmin, res.Group.Members[0].Role)
	})

	t.Run("toggle", func(t *testing.T) {
		res := env.membership(t, "toggle-membership", g.ID, maryToken)
		assert.True(t, res.Joined)
		res = env.membership(t, "toggle-membership", g.ID, maryToken)
		assert.False(t, res.Joined)
		assert.False(t, res.Deleted)
	})

	t.Run("last member leaves", func(t *testing.T) {
		res := env.membership(t, "leave", g.ID, johnToken)
		assert.True(t, res.Deleted)
		assert.Nil(t, res.Group)

		rec := env.do(http.MethodGet, "/v1/study-groups/"+g.ID, johnToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_studyGroupApi_query(t *testing.T) {
	env := setup(t)
	jane := env.student(t, "Jane", "jane_doe")
	john := env.student(t, "John", "john_doe")
	janeToken, johnToken := env.token(t, jane), env.token(t, john)

	algo := env.createStudyGroup(t, janeToken, map[string]interface{}{"name": "Algo Club", "tags": "graphs"})
	bio := env.createStudyGroup(t, johnToken, map[string]interface{}{"name": "Bio Club", "description": "Cells & genes"})

	list := func(t *testing.T, query string) []StudyGroupResponse {
		rec := env.do(http.MethodGet, "/v1/study-groups"+query, janeToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var groups []StudyGroupResponse
		decode(t, rec, &groups)
		return groups
	}
	ids := func(groups []StudyGroupResponse) []string {
		res := make([]string, 0, len(groups))
		for _, g := range groups {
			res = append(res, g.ID)
		}
		return res
	}

	all := list(t, "")
	assert.Equal(t, []string{bio.ID, algo.ID}, ids(all))
	assert.False(t, all[0].Joined)
	assert.True(t, all[1].Joined)

	assert.Equal(t, []string{algo.ID}, ids(list(t, "?membership=joined")))
	assert.Equal(t, []string{bio.ID}, ids(list(t, "?membership=available")))
	assert.Equal(t, []string{algo.ID}, ids(list(t, "?search=GRAPH")))
	assert.Equal(t, []string{bio.ID}, ids(list(t, "?search=genes")))
	assert.Empty(t, list(t, "?search=chemistry"))

	rec := env.do(http.MethodGet, "/v1/study-groups/"+algo.ID, johnToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var got StudyGroupResponse
	decode(t, rec, &got)
	assert.False(t, got.Joined)
	assert.Equal(t, "Algo Club", got.Name)
}

func Test_studyGroupApi_presence(t *testing.T) {
	env := setup(t)
	jane := env.student(t, "Jane", "jane_doe")
	john := env.student(t, "John", "john_doe")
	janeToken, johnToken := env.token(t, jane), env.token(t, john)

	g := env.createStudyGroup(t, janeToken, map[string]interface{}{"name": "Algo Club"})
	_ = env.membership(t, "join", g.ID, johnToken)

	rec := env.do(http.MethodPost, "/v1/users/me/heartbeat", johnToken)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, "/v1/study-groups/"+g.ID, janeToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var got StudyGroupResponse
	decode(t, rec, &got)
	require.Len(t, got.Members, 2)
	assert.False(t, got.Members[0].Online)
	assert.True(t, got.Members[1].Online)
}

func Test_studyGroupApi_destroy(t *testing.T) {
	env := setup(t)
	jane := env.student(t, "Jane", "jane_doe")
	john := env.student(t, "John", "john_doe")
	janeToken, johnToken := env.token(t, jane), env.token(t, john)
	adminToken := env.token(t, env.admin(t))

	g := env.createStudyGroup(t, janeToken, map[string]interface{}{"name": "Algo Club"})
	other := env.createStudyGroup(t, johnToken, map[string]interface{}{"name": "Bio Club"})
	_ = env.membership(t, "join", g.ID, johnToken)

	tests := []httpTest{
		{
			name: "plain member", method: http.MethodDelete, path: "/v1/study-groups/" + g.ID, token: johnToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "only a group admin can delete this study group"}),
		},
		{name: "group admin", method: http.MethodDelete, path: "/v1/study-groups/" + g.ID, token: janeToken, wantCode: http.StatusNoContent},
		{name: "gone", method: http.MethodDelete, path: "/v1/study-groups/" + g.ID, token: janeToken, wantCode: http.StatusNotFound},
		{name: "site admin", method: http.MethodDelete, path: "/v1/study-groups/" + other.ID, token: adminToken, wantCode: http.StatusNoContent},
	}
	runHTTPTests(t, env, tests)
}
