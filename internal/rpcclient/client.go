// Package rpcclient implements erpgate.Backend over the ERP server's
// XML-RPC endpoints.
package rpcclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/kolo/xmlrpc"
	"github.com/lychee-technology/erpgate"
	"github.com/lychee-technology/erpgate/internal"
	"go.uber.org/zap"
)

const (
	serviceCommon = "common"
	serviceObject = "object"
)

var errBreakerOpen = errors.New("circuit breaker is open")

// numeric fault codes some server versions use instead of exception names
var faultCodeNames = map[int]string{
	3: "AccessDenied",
	4: "AccessError",
}

// Client talks to {url}/common and {url}/object.
type Client struct {
	url     string
	http    *http.Client
	breaker *internal.CircuitBreaker
}

var _ erpgate.Backend = (*Client)(nil)
var _ erpgate.VersionReporter = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCircuitBreaker guards calls with cb.
func WithCircuitBreaker(cb *internal.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// New creates a client for the XML-RPC root rawURL, for example
// http://localhost:8069/xmlrpc/.
func New(rawURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return nil, fmt.Errorf("backend url must be http or https: %q", rawURL)
	}
	c := &Client{
		url:  strings.TrimRight(rawURL, "/") + "/",
		http: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromConfig builds a client with the breaker described by cfg.
func NewFromConfig(cfg erpgate.BackendConfig) (*Client, error) {
	breaker := internal.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerWindow, cfg.BreakerOpenDuration)
	return New(cfg.URL, cfg.Timeout, WithCircuitBreaker(breaker))
}

func (c *Client) Login(ctx context.Context, database, user, password string) (erpgate.SessionID, error) {
	result, err := c.call(ctx, serviceCommon, "login", database, user, password)
	if err != nil {
		return 0, err
	}
	switch v := result.(type) {
	case int64:
		return erpgate.SessionID(v), nil
	case int:
		return erpgate.SessionID(v), nil
	default:
		// false for rejected credentials
		return 0, nil
	}
}

func (c *Client) Call(ctx context.Context, database string, uid erpgate.SessionID, password, model, method string, args ...any) (any, error) {
	params := append([]any{database, int(uid), password, model, method}, args...)
	return c.call(ctx, serviceObject, "execute", params...)
}

func (c *Client) ExecWorkflow(ctx context.Context, database string, uid erpgate.SessionID, password, model, action string, id int) error {
	_, err := c.call(ctx, serviceObject, "exec_workflow", database, int(uid), password, model, action, id)
	return err
}

// Version reports the server version. It needs no credentials.
func (c *Client) Version(ctx context.Context) (map[string]any, error) {
	result, err := c.call(ctx, serviceCommon, "version")
	if err != nil {
		return nil, err
	}
	switch v := result.(type) {
	case map[string]any:
		return v, nil
	case string:
		return map[string]any{"server_version": v}, nil
	default:
		return map[string]any{"server_version": fmt.Sprintf("%v", v)}, nil
	}
}

// BreakerState reports the state of the circuit breaker guarding calls.
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

func (c *Client) call(ctx context.Context, service, method string, args ...any) (any, error) {
	req, err := xmlrpc.NewRequest(c.url+service, method, args)
	if err != nil {
		return nil, erpgate.NewInternalError("failed to encode backend call", err)
	}
	req = req.WithContext(ctx)

	if !c.breaker.Allow() {
		return nil, erpgate.NewUnavailableError(errBreakerOpen)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		zap.S().Warnw("backend call failed", "service", service, "method", method, "error", err)
		return nil, erpgate.NewErrorf(erpgate.KindBackend, "Backend call %s failed: %v", method, err).WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, erpgate.NewErrorf(erpgate.KindBackend, "Backend call %s failed: %v", method, err).WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		return nil, erpgate.NewErrorf(erpgate.KindBackend, "Backend call %s failed with HTTP status %d", method, resp.StatusCode)
	}
	c.breaker.RecordSuccess()

	if fault, ok := parseFault(body); ok {
		return nil, fault
	}

	var result any
	if err := xmlrpc.Response(body).Unmarshal(&result); err != nil {
		return nil, erpgate.NewContractError(fmt.Sprintf("unreadable response to %s: %v", method, err)).WithCause(err)
	}
	return result, nil
}

// parseFault extracts faultCode and faultString from a fault response. The
// server sends the code either as the exception name or as an integer.
func parseFault(body []byte) (*erpgate.Fault, bool) {
	if !bytes.Contains(body, []byte("<fault>")) {
		return nil, false
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, false
	}
	faultEl := doc.FindElement("//fault")
	if faultEl == nil {
		return nil, false
	}

	fault := &erpgate.Fault{}
	for _, member := range faultEl.FindElements(".//member") {
		nameEl := member.SelectElement("name")
		valueEl := member.SelectElement("value")
		if nameEl == nil || valueEl == nil {
			continue
		}
		text, isInt := memberValue(valueEl)
		switch strings.TrimSpace(nameEl.Text()) {
		case "faultCode":
			fault.Code = text
			if isInt {
				if code, err := strconv.Atoi(text); err == nil {
					if name, ok := faultCodeNames[code]; ok {
						fault.Code = name
					}
				}
			}
		case "faultString":
			fault.Message = text
		}
	}
	return fault, true
}

func memberValue(value *etree.Element) (string, bool) {
	if children := value.ChildElements(); len(children) > 0 {
		typed := children[0]
		isInt := typed.Tag == "int" || typed.Tag == "i4"
		return strings.TrimSpace(typed.Text()), isInt
	}
	return strings.TrimSpace(value.Text()), false
}
