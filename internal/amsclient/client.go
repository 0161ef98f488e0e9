package amsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rotary-ams-gateway/config"
	"rotary-ams-gateway/internal/metrics"
	"rotary-ams-gateway/internal/model"
)

// Client calls the remote AMS REST API.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// NewHTTPClient builds the transport used for upstream calls.
func NewHTTPClient(cfg config.UpstreamConfig) (*http.Client, error) {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.HTTPProxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{Transport: transport, Timeout: cfg.Timeout}, nil
}

// New creates a client for baseURL. A nil httpClient uses a 15 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// WithToken returns a copy of the client that authenticates as token.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

type loginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	ExpoToken string `json:"expoToken"`
}

// Login exchanges credentials for an API token and the user profile.
// pushToken is the device push token forwarded to the AMS API; it may be empty.
func (c *Client) Login(ctx context.Context, username, password, pushToken string) (*model.LoginResult, error) {
	var out model.LoginResult
	req := loginRequest{Username: username, Password: password, ExpoToken: pushToken}
	if err := c.do(ctx, "login", http.MethodPost, "/api/login", req, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, fmt.Errorf("login: response carried no token")
	}
	return &out, nil
}

// AttendanceSheet fetches members, schedules and statuses.
func (c *Client) AttendanceSheet(ctx context.Context) (*model.AttendanceSheet, error) {
	var out model.AttendanceSheet
	if err := c.do(ctx, "attendance_sheet", http.MethodGet, "/api/attendance-sheet", nil, &out); err != nil {
		return nil, err
	}
	for i := range out.NonMakeupSchedules {
		out.NonMakeupSchedules[i].IsMakeup = false
	}
	for i := range out.MakeupSchedules {
		out.MakeupSchedules[i].IsMakeup = true
	}
	if out.AttendanceData == nil {
		out.AttendanceData = map[int64]model.MemberAttendance{}
	}
	return &out, nil
}

// ParseMemberID validates a scanned QR payload.
func ParseMemberID(scanned string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(scanned), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidScan, scanned)
	}
	return id, nil
}

type logAttendanceRequest struct {
	MemberID int64 `json:"member_id"`
}

// LogAttendance records the member encoded in a scanned QR code as present.
func (c *Client) LogAttendance(ctx context.Context, scanned string) (*model.ScanResult, error) {
	memberID, err := ParseMemberID(scanned)
	if err != nil {
		return nil, err
	}
	var out model.ScanResult
	if err := c.do(ctx, "log_attendance", http.MethodPost, "/api/attendance/log", logAttendanceRequest{MemberID: memberID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TodayAttendees lists today's attendance scans.
func (c *Client) TodayAttendees(ctx context.Context) ([]model.Attendee, error) {
	out := []model.Attendee{}
	if err := c.do(ctx, "today_attendees", http.MethodGet, "/api/attendance/today", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type notificationsResponse struct {
	Notifications []model.Notification `json:"notifications"`
}

// Notifications fetches the notification feed in collaborator order.
func (c *Client) Notifications(ctx context.Context) ([]model.Notification, error) {
	var out notificationsResponse
	if err := c.do(ctx, "notifications", http.MethodGet, "/api/notifications", nil, &out); err != nil {
		return nil, err
	}
	if out.Notifications == nil {
		return []model.Notification{}, nil
	}
	return out.Notifications, nil
}

// MarkNotificationsSeen flags every notification of the user as seen.
func (c *Client) MarkNotificationsSeen(ctx context.Context) error {
	return c.do(ctx, "mark_notifications_seen", http.MethodPut, "/api/notifications/mark-as-seen", nil, nil)
}

// ClearSeenNotifications deletes the notifications already seen.
func (c *Client) ClearSeenNotifications(ctx context.Context) error {
	return c.do(ctx, "clear_seen_notifications", http.MethodDelete, "/api/notifications/clear-seen", nil, nil)
}

// FinancialStatements lists the financial statement links.
func (c *Client) FinancialStatements(ctx context.Context) ([]model.Link, error) {
	out := []model.Link{}
	if err := c.do(ctx, "financial_statements", http.MethodGet, "/api/links?financial", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type publicationsResponse struct {
	Data []model.Publication `json:"data"`
}

// Publications lists the magazine issues.
func (c *Client) Publications(ctx context.Context) ([]model.Publication, error) {
	var out publicationsResponse
	if err := c.do(ctx, "publications", http.MethodGet, "/api/magazines", nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return []model.Publication{}, nil
	}
	return out.Data, nil
}

type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.UpstreamRequests.WithLabelValues(op, outcome).Inc()
		metrics.UpstreamDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	var body io.Reader
	if in != nil {
		jsonBody, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request payload: %w", op, err)
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: http request failed: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read response body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Operation: op, StatusCode: resp.StatusCode}
		var payload errorPayload
		if json.Unmarshal(raw, &payload) == nil {
			apiErr.Message = payload.Error
			if apiErr.Message == "" {
				apiErr.Message = payload.Message
			}
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: failed to unmarshal api response: %w", op, err)
	}
	return nil
}
