package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	appLog "rostercal/internal/log"
	"rostercal/internal/model"
)

// ErrMissingBaseURL is returned by every call when no endpoint is configured.
var ErrMissingBaseURL = errors.New("api: base URL is not configured")

const genericFailure = "Request failed"

// Action discriminates write calls on the single endpoint.
type Action string

const (
	ActionSubmit Action = "submit"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Error is a transport or application failure with a human-readable message.
type Error struct {
	// Status is the HTTP status code; 2xx means the API reported
	// result "error" in an otherwise successful response.
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Options configures a Client.
type Options struct {
	// BaseURL is the spreadsheet API endpoint.
	BaseURL string
	// TeamResource is sent as ?resource=<value> to read the team roster.
	TeamResource string
	// Timeout bounds each call; zero leaves it to the transport.
	Timeout time.Duration
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client talks to the spreadsheet-backed roster API.
type Client struct {
	client       *http.Client
	baseURL      string
	teamResource string
}

// NewClient creates a new Client. An empty BaseURL is accepted here and
// reported by each call instead.
func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	team := opts.TeamResource
	if team == "" {
		team = "team"
	}
	return &Client{
		client:       hc,
		baseURL:      strings.TrimSpace(opts.BaseURL),
		teamResource: team,
	}
}

// writeBody is the JSON body of every POST. Payload fields are inlined and
// omitted entirely for deletes.
type writeBody struct {
	Action Action `json:"action"`
	ID     string `json:"id,omitempty"`
	*model.Payload
}

// FetchRequests returns the raw body of the requests sheet.
func (c *Client) FetchRequests(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, nil, nil)
}

// FetchTeamMembers returns the raw body of the team roster sheet.
func (c *Client) FetchTeamMembers(ctx context.Context) ([]byte, error) {
	q := url.Values{}
	q.Set("resource", c.teamResource)
	return c.do(ctx, http.MethodGet, q, nil)
}

// Submit creates a new request row.
func (c *Client) Submit(ctx context.Context, p model.Payload) error {
	_, err := c.do(ctx, http.MethodPost, nil, payloadBody(ActionSubmit, "", p))
	return err
}

// Update overwrites the row identified by id.
func (c *Client) Update(ctx context.Context, id string, p model.Payload) error {
	if id == "" {
		return errors.New("api: update requires an id")
	}
	_, err := c.do(ctx, http.MethodPost, nil, payloadBody(ActionUpdate, id, p))
	return err
}

// Delete removes the row identified by id.
func (c *Client) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("api: delete requires an id")
	}
	_, err := c.do(ctx, http.MethodPost, nil, &writeBody{Action: ActionDelete, ID: id})
	return err
}

func payloadBody(action Action, id string, p model.Payload) *writeBody {
	return &writeBody{Action: action, ID: id, Payload: &p}
}

func (c *Client) do(ctx context.Context, method string, query url.Values, body *writeBody) ([]byte, error) {
	if c.baseURL == "" {
		return nil, ErrMissingBaseURL
	}

	target := c.baseURL
	if len(query) > 0 {
		u, err := url.Parse(c.baseURL)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	action := "read"
	if body != nil {
		action = string(body.Action)
	}
	appLog.Debug("api call start", "request_id", reqID, "method", method, "action", action, "url", redactURL(target))

	resp, err := c.client.Do(req)
	if err != nil {
		appLog.Error("api call failed", err, "request_id", reqID, "action", action, "url", redactURL(target))
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode, Message: errorMessage(data)}
		appLog.Error("api call non-OK", apiErr, "request_id", reqID, "action", action, "status", resp.StatusCode)
		return nil, apiErr
	}

	if isJSON(resp.Header.Get("Content-Type"), data) {
		if msg, failed := applicationError(data); failed {
			apiErr := &Error{Status: resp.StatusCode, Message: msg}
			appLog.Error("api reported error", apiErr, "request_id", reqID, "action", action)
			return nil, apiErr
		}
	}

	appLog.Debug("api call success", "request_id", reqID, "action", action, "status", resp.StatusCode, "bytes", len(data))
	return data, nil
}

// envelope is the success/error wrapper the API uses for every response.
type envelope struct {
	Result  string `json:"result"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// applicationError reports whether a 2xx body carries result "error".
func applicationError(data []byte) (string, bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", false
	}
	if !strings.EqualFold(env.Result, "error") {
		return "", false
	}
	if msg := firstNonEmpty(env.Message, env.Error); msg != "" {
		return msg, true
	}
	return genericFailure, true
}

// errorMessage extracts a message from a failed response body: the JSON
// message/error field if present, else the raw text, else a generic message.
func errorMessage(data []byte) string {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return genericFailure
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err == nil {
		if msg := firstNonEmpty(env.Message, env.Error); msg != "" {
			return msg
		}
	}
	return text
}

func isJSON(contentType string, data []byte) bool {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasSuffix(mt, "json") {
			return true
		}
	}
	// Apps Script often answers text/plain with a JSON body.
	return json.Valid(data)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// redactURL hides the path and query of the endpoint for logging purposes;
// Apps Script deployment ids in the path act as credentials.
//
//	https://script.google.com/macros/s/XYZ/exec -> https://script.google.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "api://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + redactedSuffix
}
