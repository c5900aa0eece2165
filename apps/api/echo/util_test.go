package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/academic"
	"github.com/trezcool/spis/core/dashboard"
	"github.com/trezcool/spis/core/messaging"
	"github.com/trezcool/spis/core/user"
	emailsvc "github.com/trezcool/spis/services/email"
	inmemdb "github.com/trezcool/spis/storage/database/inmem"
	"github.com/trezcool/spis/testutil"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpDetail{Detail: "forbidden"}
)

type fixture struct {
	app           *Server
	usrRepo       user.Repository
	academicRepo  academic.Repository
	messagingRepo messaging.Repository
	academicSvc   *academic.Service
}

func setup(t *testing.T) fixture {
	conf := testutil.Config()
	logger := testutil.Logger(conf)
	validate, translator := testutil.Validator()
	core.ParseEmailTemplates(conf, logger)
	emailsvc.ResetSentMessages()

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	academicRepo := inmemdb.NewAcademicRepository(db)
	messagingRepo := inmemdb.NewMessagingRepository(db)

	// set up services
	usrSvc := user.NewService(usrRepo)
	academicSvc := academic.NewService(academicRepo, usrSvc)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	// set up server
	app := NewServer(ServerDeps{
		Conf:         conf,
		Logger:       logger,
		UserSvc:      usrSvc,
		AcademicSvc:  academicSvc,
		MessagingSvc: messaging.NewService(messagingRepo, academicRepo, mailSvc, conf),
		DashboardSvc: dashboard.NewService(academicRepo, messagingRepo),
		Validate:     validate,
		Translator:   translator,
	})

	return fixture{
		app:           app,
		usrRepo:       usrRepo,
		academicRepo:  academicRepo,
		messagingRepo: messagingRepo,
		academicSvc:   academicSvc,
	}
}

func (f fixture) token(t *testing.T, usr user.User) string {
	token, err := f.app.auth.generateToken(f.app.auth.userClaims(usr))
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

// do serves one request and returns the recorder.
func (f fixture) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	f.app.ServeHTTP(rec, req)
	return rec
}

func (f fixture) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			checkCodeAndData(t, tt, f.do(method, tt.path, tt.token, tt.body))
		})
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpDetail struct {
	Detail string `json:"detail"`
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

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarchall(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarchall() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	if _, ok := j2.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func TestFieldKey(t *testing.T) {
	tests := []struct {
		ns   string
		want string
	}{
		{ns: "AttendanceInput.records[0].subject", want: "records[0].subject"},
		{ns: "StudentSignup.NewUser.password", want: "password"},
		{ns: "StudentSignup.usn", want: "usn"},
		{ns: "LoginRequest", want: "LoginRequest"},
	}
	for _, tt := range tests {
		t.Run(tt.ns, func(t *testing.T) {
			assert.Equal(t, tt.want, fieldKey(tt.ns))
		})
	}
}
