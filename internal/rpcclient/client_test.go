package rpcclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lychee-technology/erpgate"
	"github.com/lychee-technology/erpgate/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func xmlrpcResponse(value string) string {
	return `<?xml version="1.0"?><methodResponse><params><param><value>` + value + `</value></param></params></methodResponse>`
}

func xmlrpcFault(code, message string) string {
	return `<?xml version="1.0"?><methodResponse><fault><value><struct>` +
		`<member><name>faultCode</name><value>` + code + `</value></member>` +
		`<member><name>faultString</name><value><string>` + message + `</string></value></member>` +
		`</struct></value></fault></methodResponse>`
}

type recordedCall struct {
	path string
	body string
}

func newTestServer(t *testing.T, respond func(path, body string) string) (*httptest.Server, *[]recordedCall) {
	t.Helper()
	calls := &[]recordedCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*calls = append(*calls, recordedCall{path: r.URL.Path, body: string(b)})
		w.Header().Set("Content-Type", "text/xml")
		_, _ = io.WriteString(w, respond(r.URL.Path, string(b)))
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func TestLogin(t *testing.T) {
	srv, calls := newTestServer(t, func(path, body string) string {
		if strings.Contains(body, "<string>bad</string>") {
			return xmlrpcResponse("<boolean>0</boolean>")
		}
		return xmlrpcResponse("<int>7</int>")
	})
	c, err := New(srv.URL+"/xmlrpc/", time.Second)
	require.NoError(t, err)

	uid, err := c.Login(context.Background(), "demo", "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, erpgate.SessionID(7), uid)
	require.Len(t, *calls, 1)
	assert.Equal(t, "/xmlrpc/common", (*calls)[0].path)
	assert.Contains(t, (*calls)[0].body, "<methodName>login</methodName>")

	uid, err = c.Login(context.Background(), "demo", "admin", "bad")
	require.NoError(t, err)
	assert.Equal(t, erpgate.SessionID(0), uid)
}

func TestCallEncodesExecute(t *testing.T) {
	srv, calls := newTestServer(t, func(path, body string) string {
		return xmlrpcResponse("<array><data><value><int>1</int></value><value><int>3</int></value></data></array>")
	})
	c, err := New(srv.URL+"/xmlrpc", time.Second)
	require.NoError(t, err)

	result, err := c.Call(context.Background(), "demo", 7, "secret", "res.partner", "search", []any{[]any{"name", "=", "Agrolait"}})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(3)}, result)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "/xmlrpc/object", call.path)
	assert.Contains(t, call.body, "<methodName>execute</methodName>")
	assert.Contains(t, call.body, "<string>res.partner</string>")
	assert.Contains(t, call.body, "<string>search</string>")
	assert.Contains(t, call.body, "<string>Agrolait</string>")
}

func TestCallDecodesStruct(t *testing.T) {
	srv, _ := newTestServer(t, func(path, body string) string {
		return xmlrpcResponse(`<struct><member><name>name</name><value><string>Partner</string></value></member>` +
			`<member><name>active</name><value><boolean>1</boolean></value></member></struct>`)
	})
	c, err := New(srv.URL+"/xmlrpc/", time.Second)
	require.NoError(t, err)

	result, err := c.Call(context.Background(), "demo", 7, "secret", "res.partner", "default_get", []string{"name"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Partner", "active": true}, result)
}

func TestExecWorkflow(t *testing.T) {
	srv, calls := newTestServer(t, func(path, body string) string {
		return xmlrpcResponse("<boolean>1</boolean>")
	})
	c, err := New(srv.URL+"/xmlrpc/", time.Second)
	require.NoError(t, err)

	require.NoError(t, c.ExecWorkflow(context.Background(), "demo", 7, "secret", "sale.order", "order_confirm", 4))
	require.Len(t, *calls, 1)
	assert.Contains(t, (*calls)[0].body, "<methodName>exec_workflow</methodName>")
	assert.Contains(t, (*calls)[0].body, "<string>order_confirm</string>")
}

func TestFaults(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		wantCode string
		wantKind erpgate.ErrorKind
	}{
		{
			name:     "string code object error",
			code:     "<string>warning -- Object Error\n\nObject res.foo doesn't exist</string>",
			message:  "Traceback",
			wantCode: "warning -- Object Error\n\nObject res.foo doesn't exist",
			wantKind: erpgate.KindNoSuchCollection,
		},
		{
			name:     "integer access denied",
			code:     "<int>3</int>",
			message:  "Access denied",
			wantCode: "AccessDenied",
			wantKind: erpgate.KindForbidden,
		},
		{
			name:     "integer access error",
			code:     "<int>4</int>",
			message:  "Record does not exist",
			wantCode: "AccessError",
			wantKind: erpgate.KindNoSuchResource,
		},
		{
			name:     "other fault",
			code:     "<string>ValidateError</string>",
			message:  "Error while validating constraint",
			wantCode: "ValidateError",
			wantKind: erpgate.KindBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, func(path, body string) string {
				return xmlrpcFault(tt.code, tt.message)
			})
			c, err := New(srv.URL+"/xmlrpc/", time.Second)
			require.NoError(t, err)

			_, err = c.Call(context.Background(), "demo", 7, "secret", "res.foo", "read", []any{1})
			require.Error(t, err)
			var fault *erpgate.Fault
			require.ErrorAs(t, err, &fault)
			assert.Equal(t, tt.wantCode, fault.Code)
			assert.Equal(t, tt.message, fault.Message)
			assert.Equal(t, tt.wantKind, erpgate.AsError(err, "res.foo", "/demo/res.foo/1").Kind)
		})
	}
}

func TestVersion(t *testing.T) {
	srv, _ := newTestServer(t, func(path, body string) string {
		return xmlrpcResponse(`<struct><member><name>server_version</name><value><string>6.1</string></value></member></struct>`)
	})
	c, err := New(srv.URL+"/xmlrpc/", time.Second)
	require.NoError(t, err)

	v, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "6.1", v["server_version"])
}

func TestCircuitBreakerOpensOnTransportFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := internal.NewCircuitBreaker(2, time.Minute, time.Minute)
	c, err := New(srv.URL+"/xmlrpc/", time.Second, WithCircuitBreaker(breaker))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := c.Login(context.Background(), "demo", "admin", "secret")
		require.Error(t, err)
		assert.Equal(t, erpgate.KindBackend, erpgate.AsError(err, "", "").Kind)
	}

	_, err = c.Login(context.Background(), "demo", "admin", "secret")
	require.Error(t, err)
	assert.Equal(t, erpgate.KindUnavailable, erpgate.AsError(err, "", "").Kind)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, "open", c.BreakerState())
}

func TestFaultsDoNotTripBreaker(t *testing.T) {
	srv, _ := newTestServer(t, func(path, body string) string {
		return xmlrpcFault("<string>ValidateError</string>", "bad value")
	})
	breaker := internal.NewCircuitBreaker(1, time.Minute, time.Minute)
	c, err := New(srv.URL+"/xmlrpc/", time.Second, WithCircuitBreaker(breaker))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := c.Call(context.Background(), "demo", 7, "secret", "res.partner", "write", []any{1}, map[string]any{"name": ""})
		var fault *erpgate.Fault
		require.ErrorAs(t, err, &fault)
	}
	assert.Equal(t, "closed", c.BreakerState())
}

func TestNewRejectsNonHTTPURL(t *testing.T) {
	_, err := New("ftp://example.com/xmlrpc", time.Second)
	assert.Error(t, err)

	c, err := NewFromConfig(erpgate.DefaultConfig().Backend)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8069/xmlrpc/", c.url)
}
