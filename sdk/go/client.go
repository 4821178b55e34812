package printlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Printline HTTP API client.
type Client struct {
	BaseURL     string
	ShopID      string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, shopID string) *Client {
	return &Client{
		BaseURL: baseURL,
		ShopID:  shopID,
		Timeout: 10 * time.Second,
	}
}

// Job represents the API production job model (partial).
type Job struct {
	ID              string  `json:"id"`
	OrderID         string  `json:"order_id"`
	Type            string  `json:"type"`
	Status          string  `json:"status"`
	Priority        int     `json:"priority"`
	Progress        int     `json:"progress"`
	DueDate         *string `json:"due_date,omitempty"`
	StartTime       *string `json:"start_time,omitempty"`
	EndTime         *string `json:"end_time,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
}

// Design represents the API design project model (partial).
type Design struct {
	ID       string  `json:"id"`
	OrderID  string  `json:"order_id"`
	Title    string  `json:"title"`
	Status   string  `json:"status"`
	Feedback *string `json:"feedback,omitempty"`
	DueDate  *string `json:"due_date,omitempty"`
}

// Payment represents the API payment model (partial).
type Payment struct {
	ID          string  `json:"id"`
	OrderID     string  `json:"order_id"`
	AmountCents int64   `json:"amount_cents"`
	Status      string  `json:"status"`
	ApprovedBy  *string `json:"approved_by,omitempty"`
}

// Order represents the API order model (partial).
type Order struct {
	ID          string  `json:"id"`
	ClientID    string  `json:"client_id"`
	Description string  `json:"description"`
	DueDate     *string `json:"due_date,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ShopID     string `json:"shop_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// Alert describes a deadline-classified open entity.
type Alert struct {
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Title   string `json:"title,omitempty"`
	DueDate string `json:"due_date"`
	Detail  struct {
		Tier          string `json:"tier"`
		DaysRemaining int    `json:"days_remaining"`
	} `json:"alert"`
}

// APIError wraps non-2xx responses, decoding the error envelope when present.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// CreateOrder opens an order for a client.
func (c *Client) CreateOrder(ctx context.Context, clientID, description, dueDate string) (Order, error) {
	body := map[string]any{
		"client_id":   clientID,
		"description": description,
	}
	if dueDate != "" {
		body["due_date"] = dueDate
	}
	var resp Order
	err := c.do(ctx, http.MethodPost, c.path("orders"), body, &resp)
	return resp, err
}

// CreateJob schedules a production job on an order.
func (c *Client) CreateJob(ctx context.Context, orderID, jobType string) (Job, error) {
	body := map[string]any{
		"order_id": orderID,
		"type":     jobType,
	}
	var resp Job
	err := c.do(ctx, http.MethodPost, c.path("jobs"), body, &resp)
	return resp, err
}

// TransitionJob moves a job to a new status.
func (c *Client) TransitionJob(ctx context.Context, id, target, expect string) (Job, error) {
	body := map[string]any{"target": target}
	if expect != "" {
		body["expected_status"] = expect
	}
	var resp Job
	endpoint := c.path(fmt.Sprintf("jobs/%s/transition", url.PathEscape(id)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// CreateDesign opens a design project on an order.
func (c *Client) CreateDesign(ctx context.Context, orderID, title string) (Design, error) {
	body := map[string]any{
		"order_id": orderID,
		"title":    title,
	}
	var resp Design
	err := c.do(ctx, http.MethodPost, c.path("designs"), body, &resp)
	return resp, err
}

// TransitionDesign moves a design to a new status. Feedback is required
// when rejecting out of review.
func (c *Client) TransitionDesign(ctx context.Context, id, target, feedback string) (Design, error) {
	body := map[string]any{"target": target}
	if feedback != "" {
		body["feedback"] = feedback
	}
	var resp Design
	endpoint := c.path(fmt.Sprintf("designs/%s/transition", url.PathEscape(id)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// CreatePayment records a pending payment on an order.
func (c *Client) CreatePayment(ctx context.Context, orderID string, amountCents int64) (Payment, error) {
	body := map[string]any{
		"order_id":     orderID,
		"amount_cents": amountCents,
	}
	var resp Payment
	err := c.do(ctx, http.MethodPost, c.path("payments"), body, &resp)
	return resp, err
}

// ApprovePayment approves a pending payment as the authenticated actor.
func (c *Client) ApprovePayment(ctx context.Context, id string) (Payment, error) {
	body := map[string]any{"target": "approved"}
	var resp Payment
	endpoint := c.path(fmt.Sprintf("payments/%s/transition", url.PathEscape(id)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// RejectPayment rejects a pending payment with a reason.
func (c *Client) RejectPayment(ctx context.Context, id, reason string) (Payment, error) {
	body := map[string]any{"target": "rejected", "reason": reason}
	var resp Payment
	endpoint := c.path(fmt.Sprintf("payments/%s/transition", url.PathEscape(id)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Alerts returns deadline alerts, most urgent first.
func (c *Client) Alerts(ctx context.Context) ([]Alert, error) {
	var resp struct {
		Items []Alert `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, c.path("alerts"), nil, &resp)
	return resp.Items, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := c.path("events")
	if limit > 0 {
		endpoint = appendQuery(endpoint, "limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		endpoint = appendQuery(endpoint, "cursor", cursor)
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) path(p string) string {
	endpoint := "v0/" + strings.TrimLeft(p, "/")
	if c.ShopID != "" {
		endpoint = appendQuery(endpoint, "shop", c.ShopID)
	}
	return endpoint
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func appendQuery(endpoint, key, value string) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + key + "=" + url.QueryEscape(value)
}
