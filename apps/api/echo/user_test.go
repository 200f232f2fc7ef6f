package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/recqa/apps/api/echo"
	"github.com/trezcool/recqa/core/user"
	testutil "github.com/trezcool/recqa/tests"
)

func Test_userApi_login(t *testing.T) {
	env := setup(t)
	pwd := "c0rrect-h0rse"
	testutil.CreateUser(t, env.usrRepo, "Bob", "bob@x.com", pwd, []string{user.RoleQA}, true)
	testutil.CreateUser(t, env.usrRepo, "Naughty", "naughty@x.com", pwd, nil, false)

	env.run(t, []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/api/users/login", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"email": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown email", method: http.MethodPost, path: "/api/users/login",
			body:     marshalObj(t, echoapi.LoginRequest{Email: "nobody@x.com", Password: pwd}),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/api/users/login",
			body:     marshalObj(t, echoapi.LoginRequest{Email: "bob@x.com", Password: "nope"}),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/api/users/login",
			body:     marshalObj(t, echoapi.LoginRequest{Email: "naughty@x.com", Password: pwd}),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("success", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/users/login", "", marshalObj(t, echoapi.LoginRequest{Email: " BOB@x.com ", Password: pwd}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp echoapi.LoginResponse
		unmarshal(t, rec, &resp)
		claims := new(echoapi.Claims)
		_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(env.conf.SecretKey), nil
		})
		require.NoError(t, err)
		assert.Equal(t, "bob@x.com", claims.Email)
		assert.True(t, claims.IsQA)
		assert.False(t, claims.IsAdmin)

		usr, err := env.usrRepo.GetUser(ctxBg, user.GetFilter{Email: "bob@x.com"})
		require.NoError(t, err)
		assert.False(t, usr.LastLogin.IsZero())
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	env := setup(t)

	rec := env.do(http.MethodPost, "/api/users/token-refresh", env.token(t, env.qa))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp echoapi.LoginResponse
	unmarshal(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)

	// refresh window is over
	claims := echoapi.GetUserClaims(env.conf, env.qa, time.Now().Add(-2*env.conf.Server.JWTRefreshExpirationDelta).Unix())
	expired, err := echoapi.GenerateToken(env.conf, claims)
	require.NoError(t, err)
	rec = env.do(http.MethodPost, "/api/users/token-refresh", expired)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func Test_userApi_query(t *testing.T) {
	env := setup(t)
	adminToken := env.token(t, env.admin)

	env.run(t, []httpTest{
		{name: "auth required", path: "/api/users", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "admin required", path: "/api/users", token: env.token(t, env.qa), wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden)},
		{name: "search", path: "/api/users?search=JAN", token: adminToken, wantCode: http.StatusOK, wantData: marshalObj(t, []user.User{env.teacher})},
		{name: "role", path: "/api/users?role=qa", token: adminToken, wantCode: http.StatusOK, wantData: marshalObj(t, []user.User{env.qa})},
		{name: "unknown role", path: "/api/users?role=lol", token: adminToken, wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{
			name: "ordering", path: "/api/users?ordering=-name", token: adminToken, wantCode: http.StatusOK,
			wantData: marshalObj(t, []user.User{env.qa, env.teacher, env.admin}),
		},
		{name: "roles", path: "/api/users/roles", token: adminToken, wantCode: http.StatusOK, wantData: marshalObj(t, user.Roles)},
	})
}

func Test_userApi_create(t *testing.T) {
	env := setup(t)
	pwd := "Sup3r-Secret!pass"
	newUser := func(email string, roles ...string) []byte {
		return marshalObj(t, user.NewUser{Name: "Sam", Email: email, Password: pwd, PasswordConfirm: pwd, Roles: roles})
	}

	env.run(t, []httpTest{
		{
			name: "admin required", method: http.MethodPost, path: "/api/users", body: newUser("sam@x.com"),
			token: env.token(t, env.qa), wantCode: http.StatusForbidden,
		},
		{
			name: "duplicate email", method: http.MethodPost, path: "/api/users", body: newUser("QA@x.com"),
			token: env.token(t, env.admin), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"email": user.ErrUserExists.Error()}),
		},
	})

	rec := env.do(http.MethodPost, "/api/users", env.token(t, env.admin), newUser("sam@x.com", user.RoleQA))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created user.User
	unmarshal(t, rec, &created)
	assert.Equal(t, "sam@x.com", created.Email)
	assert.Equal(t, []string{user.RoleQA}, created.Roles)

	rec = env.do(http.MethodPost, "/api/users/login", "", marshalObj(t, echoapi.LoginRequest{Email: "sam@x.com", Password: pwd}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_userApi_retrieveAndDelete(t *testing.T) {
	env := setup(t)
	adminToken := env.token(t, env.admin)

	env.run(t, []httpTest{
		{name: "self", path: "/api/users/" + env.qa.ID, token: env.token(t, env.qa), wantCode: http.StatusOK, wantData: marshalObj(t, env.qa)},
		{name: "other user", path: "/api/users/" + env.admin.ID, token: env.token(t, env.qa), wantCode: http.StatusNotFound},
		{name: "admin", path: "/api/users/" + env.qa.ID, token: adminToken, wantCode: http.StatusOK, wantData: marshalObj(t, env.qa)},
		{name: "delete self", method: http.MethodDelete, path: "/api/users/" + env.admin.ID, token: adminToken, wantCode: http.StatusForbidden},
		{name: "delete", method: http.MethodDelete, path: "/api/users/" + env.qa.ID, token: adminToken, wantCode: http.StatusNoContent},
		{name: "deleted", path: "/api/users/" + env.qa.ID, token: adminToken, wantCode: http.StatusNotFound},
	})
}

func Test_userApi_me(t *testing.T) {
	env := setup(t)

	env.run(t, []httpTest{
		{name: "auth required", path: "/api/users/me", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "teacher", path: "/api/users/me", token: env.token(t, env.teacher), wantCode: http.StatusOK, wantData: marshalObj(t, env.teacher)},
	})
}

func Test_userApi_teachers(t *testing.T) {
	env := setup(t)
	adam := testutil.CreateUser(t, env.usrRepo, "Adam", "t.adam@x.com", "", []string{user.RoleTeacher}, true)
	testutil.CreateUser(t, env.usrRepo, "Gone", "t.gone@x.com", "", []string{user.RoleTeacher}, false)

	roster := []echoapi.TeacherResponse{
		{ID: adam.ID, TeacherID: "t.adam@x.com", Name: "Adam"},
		{ID: env.teacher.ID, TeacherID: "t.jane@x.com", Name: "Jane"},
	}
	env.run(t, []httpTest{
		{name: "qa required", path: "/api/users/teachers", token: env.token(t, env.teacher), wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden)},
		{name: "qa", path: "/api/users/teachers", token: env.token(t, env.qa), wantCode: http.StatusOK, wantData: marshalObj(t, roster)},
		{name: "admin", path: "/api/users/teachers", token: env.token(t, env.admin), wantCode: http.StatusOK, wantData: marshalObj(t, roster)},
	})
}
