package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"syscall"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cuota/assets"
	"github.com/trezcool/cuota/core"
	"github.com/trezcool/cuota/core/ledger"
	"github.com/trezcool/cuota/core/user"
	emailsvc "github.com/trezcool/cuota/services/email"
	"github.com/trezcool/cuota/storage/database/inmem"
	"github.com/trezcool/cuota/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*Server
	conf       *core.Config
	usrRepo    user.Repository
	ledgerRepo ledger.Repository
	ledgerSvc  *ledger.Service
	mail       *emailsvc.ConsoleServiceMock
	tokens     *tokenIssuer
}

func setup(t *testing.T) testApp {
	t.Helper()
	conf := core.NewTestConfig()
	logger := testutil.NewLogger()

	validate := validator.New()
	translator := core.NewTranslator()
	require.NoError(t, core.InitValidators(validate, translator))
	require.NoError(t, user.InitValidators(validate, translator))
	require.NoError(t, core.ParseEmailTemplates(assets.FS, assets.EmailTemplatesDir, true))

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	ledgerRepo := inmemdb.NewLedgerRepository(db)
	mail := emailsvc.NewConsoleServiceMock(conf, logger)
	ledgerSvc := ledger.NewService(ledgerRepo, conf)

	srv := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    user.NewService(usrRepo, mail, conf),
		LedgerSvc:  ledgerSvc,
		Validate:   validate,
		Translator: translator,
	})
	return testApp{
		Server:     srv,
		conf:       conf,
		usrRepo:    usrRepo,
		ledgerRepo: ledgerRepo,
		ledgerSvc:  ledgerSvc,
		mail:       mail,
		tokens:     newTokenIssuer(srv.jwtConf, conf),
	}
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

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (app testApp) do(tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, app testApp, usr user.User) string {
	t.Helper()
	token, err := app.tokens.generateToken(app.tokens.userClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
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
	assert.Equal(t, tt.wantCode, rec.Code, "body: %s", rec.Body.String())
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

func runHTTPTests(t *testing.T, app testApp, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(tt))
		})
	}
}

func TestHome(t *testing.T) {
	app := setup(t)
	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to "+app.conf.AppName+" API!", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestServerErrors(t *testing.T) {
	app := setup(t)
	app.app.GET("/boom", func(echo.Context) error {
		return errors.Wrap(errors.New("db gone"), "loading students")
	})
	app.app.GET("/fatal", func(echo.Context) error {
		return errors.Wrap(core.NewShutdownError("ledger integrity"), "paying period")
	})

	checkCodeAndData(t, httpTest{wantCode: http.StatusInternalServerError, wantData: marchallObj(t, httpErr{Error: "Internal Server Error"})}, app.do(httpTest{path: "/boom"}))
	select {
	case sig := <-app.ShutdownSignal():
		t.Fatalf("unexpected shutdown signal %v", sig)
	default:
	}

	checkCodeAndData(t, httpTest{wantCode: http.StatusInternalServerError}, app.do(httpTest{path: "/fatal"}))
	select {
	case sig := <-app.ShutdownSignal():
		assert.Equal(t, syscall.SIGTERM, sig)
	default:
		t.Fatal("shutdown was not signaled")
	}

	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "Not Found"})}, app.do(httpTest{path: "/nowhere"}))
}
