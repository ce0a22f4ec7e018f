package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openziti/storelab/kernel/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	APIPrefix       = "/api/v1"
	RequestIDHeader = "X-Request-ID"

	maxResponseBody = 4 << 20
)

type HTTPClient struct {
	baseURL string
	http    *http.Client
	log     *logrus.Entry
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient talks to serverURL + /api/v1. timeout bounds every request;
// expiry surfaces as a server error.
func NewHTTPClient(serverURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(serverURL, "/") + APIPrefix,
		http:    &http.Client{Timeout: timeout},
		log:     logrus.WithField("component", "transport"),
	}
}

func (c *HTTPClient) ListStores(ctx context.Context) ([]model.Store, error) {
	var stores []model.Store
	if err := c.do(ctx, "list stores", http.MethodGet, "/stores", nil, &stores); err != nil {
		return nil, err
	}
	if stores == nil {
		stores = []model.Store{}
	}
	return stores, nil
}

func (c *HTTPClient) CreateStore(ctx context.Context, name string, storeType model.StoreType) (*model.Store, error) {
	body := struct {
		Name string          `json:"name"`
		Type model.StoreType `json:"type"`
	}{Name: name, Type: storeType}
	store := &model.Store{}
	if err := c.do(ctx, "create store", http.MethodPost, "/stores", body, store); err != nil {
		return nil, err
	}
	return store, nil
}

func (c *HTTPClient) DeleteStore(ctx context.Context, id string) error {
	return c.do(ctx, "delete store", http.MethodDelete, "/stores/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) GetAdminCredentials(ctx context.Context, id string) (*model.AdminCredentials, error) {
	creds := &model.AdminCredentials{}
	path := "/stores/" + url.PathEscape(id) + "/admin-credentials"
	if err := c.do(ctx, credentialsOp, http.MethodGet, path, nil, creds); err != nil {
		return nil, err
	}
	return creds, nil
}

func (c *HTTPClient) ListAuditEvents(ctx context.Context, limit int) ([]model.AuditEvent, error) {
	var events []model.AuditEvent
	path := fmt.Sprintf("/audit-events?limit=%d", limit)
	if err := c.do(ctx, "list audit events", http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.AuditEvent{}
	}
	return events, nil
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &Error{Category: CategoryServer, Op: op, Cause: errors.Wrap(err, "unable to encode request")}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Category: CategoryServer, Op: op, Cause: errors.Wrap(err, "unable to build request")}
	}
	requestId := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestId)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := c.log.WithFields(logrus.Fields{"op": op, "requestId": requestId})
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).Debug("request failed")
		return &Error{Category: CategoryServer, Op: op, Detail: transportDetail(err), Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &Error{Category: CategoryServer, Op: op, Status: resp.StatusCode, Detail: transportDetail(err), Cause: err}
	}
	log.Debugf("%s %s -> %d in %v", method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			Category: categorize(op, resp.StatusCode),
			Op:       op,
			Status:   resp.StatusCode,
			Detail:   parseDetail(data),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Category: CategoryServer, Op: op, Status: resp.StatusCode, Detail: "unexpected response from server", Cause: errors.Wrap(err, "unable to decode response")}
	}
	return nil
}

func transportDetail(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "request canceled"
	}
	return "unable to reach server"
}
