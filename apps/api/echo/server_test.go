package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/recqa/apps/api/echo"
	"github.com/trezcool/recqa/core"
	"github.com/trezcool/recqa/core/evaluation"
	"github.com/trezcool/recqa/core/grade"
	"github.com/trezcool/recqa/core/user"
	emailsvc "github.com/trezcool/recqa/services/email"
	dummydb "github.com/trezcool/recqa/storage/database/dummy"
	testutil "github.com/trezcool/recqa/tests"
)

var (
	ctxBg = context.Background()

	// every service runs on this clock
	now = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

type testEnv struct {
	app       *echoapi.Server
	conf      *core.Config
	db        *dummydb.DB
	usrRepo   user.Repository
	gradeRepo grade.Repository
	evalRepo  evaluation.Repository
	logger    *testutil.Logger

	admin, qa, teacher user.User
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db, err := dummydb.Open()
	require.NoError(t, err)

	env := &testEnv{
		conf:      testutil.NewConfig(),
		db:        db,
		usrRepo:   dummydb.NewUserRepository(db),
		gradeRepo: dummydb.NewGradeRepository(db),
		evalRepo:  dummydb.NewEvaluationRepository(db),
		logger:    new(testutil.Logger),
	}

	clock := func() time.Time { return now }
	emailsvc.ResetSentMessages()
	gradeSvc := grade.NewService(env.gradeRepo, emailsvc.NewConsoleServiceMock(env.conf))
	gradeSvc.SetClock(clock)
	evalSvc := evaluation.NewService(env.evalRepo)
	evalSvc.SetClock(clock)

	validate, translator := testutil.NewValidator()
	env.app = echoapi.NewServer(echoapi.ServerDeps{
		Conf:          env.conf,
		Logger:        env.logger,
		UserSvc:       user.NewService(env.usrRepo),
		GradeSvc:      gradeSvc,
		EvaluationSvc: evalSvc,
		Validate:      validate,
		Translator:    translator,
	})

	env.admin = testutil.CreateUser(t, env.usrRepo, "Admin", "admin@x.com", "", []string{user.RoleAdmin}, true)
	env.qa = testutil.CreateUser(t, env.usrRepo, "Quinn", "qa@x.com", "", []string{user.RoleQA}, true)
	env.teacher = testutil.CreateUser(t, env.usrRepo, "Jane", "t.jane@x.com", "", []string{user.RoleTeacher}, true)
	return env
}

func (env *testEnv) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := echoapi.GenerateToken(env.conf, echoapi.GetUserClaims(env.conf, usr))
	if err != nil {
		t.Fatalf("token(): %v", err)
	}
	return token
}

// do serves one request and returns the recorder.
func (env *testEnv) do(method, path, token string, body ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, body...)
	env.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (env *testEnv) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := env.do(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj(): %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("unmarshal(%s): %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func TestServer_home(t *testing.T) {
	env := setup(t)

	rec := env.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome to Recording QA API!")
}

func TestServer_metrics(t *testing.T) {
	env := setup(t)

	env.do(http.MethodGet, "/api/templates", env.token(t, env.qa))
	rec := env.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "recqa_http_requests_total"), "missing request counter")
	assert.Contains(t, body, `route="/api/templates"`)
}

func TestServer_errors(t *testing.T) {
	env := setup(t)

	env.run(t, []httpTest{
		{name: "unknown route", path: "/api/nope", wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "Not Found"})},
		{name: "missing token", path: "/api/evaluations", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "bad token", path: "/api/evaluations", token: "not.a.jwt", wantCode: http.StatusUnauthorized},
	})
}
