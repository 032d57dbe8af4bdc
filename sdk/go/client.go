package essaybidsdk

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

// Client is a minimal Essay Bid HTTP API client.
type Client struct {
	BaseURL      string
	SessionToken string
	BearerToken  string
	HTTPClient   *http.Client
	Timeout      time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// User represents an account.
type User struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

// Request represents an essay request (partial).
type Request struct {
	ID                 string  `json:"id"`
	StudentID          string  `json:"student_id"`
	Title              string  `json:"title"`
	DueDate            string  `json:"due_date"`
	WordCount          int     `json:"word_count"`
	AssignmentType     string  `json:"assignment_type"`
	FieldOfStudy       string  `json:"field_of_study"`
	Status             string  `json:"status"`
	AssignedSupervisor *string `json:"assigned_supervisor,omitempty"`
}

// Bid represents a supervisor bid.
type Bid struct {
	ID           string  `json:"id"`
	RequestID    string  `json:"request_id"`
	SupervisorID string  `json:"supervisor_id"`
	Price        float64 `json:"price"`
	Notes        string  `json:"notes,omitempty"`
	Status       string  `json:"status"`
}

// Message represents a chat message.
type Message struct {
	ID         string `json:"id"`
	RequestID  string `json:"request_id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Body       string `json:"body"`
	Approved   bool   `json:"approved"`
}

// Notification represents a derived notification.
type Notification struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Kind      string `json:"kind"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login authenticates and stores the session token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	var resp struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return User{}, err
	}
	c.SessionToken = resp.Token
	return resp.User, nil
}

// CreateRequest opens a request for bidding.
func (c *Client) CreateRequest(ctx context.Context, title, dueDate string, wordCount int, assignmentType, fieldOfStudy string) (Request, error) {
	body := map[string]any{
		"title":           title,
		"due_date":        dueDate,
		"word_count":      wordCount,
		"assignment_type": assignmentType,
		"field_of_study":  fieldOfStudy,
	}
	var resp Request
	err := c.do(ctx, http.MethodPost, "requests", body, &resp)
	return resp, err
}

// Requests lists the requests visible to the caller.
func (c *Client) Requests(ctx context.Context, status string) ([]Request, error) {
	endpoint := "requests"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Request
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// CreateBid places a bid on a pending request.
func (c *Client) CreateBid(ctx context.Context, requestID string, price float64, notes string) (Bid, error) {
	body := map[string]any{
		"request_id": requestID,
		"price":      price,
		"notes":      notes,
	}
	var resp Bid
	err := c.do(ctx, http.MethodPost, "bids", body, &resp)
	return resp, err
}

// SetBidStatus accepts or rejects a pending bid.
func (c *Client) SetBidStatus(ctx context.Context, bidID, status string) (Bid, error) {
	var resp Bid
	endpoint := fmt.Sprintf("bids/%s/status", url.PathEscape(bidID))
	err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// SendMessage posts a chat message on a request.
func (c *Client) SendMessage(ctx context.Context, requestID, body string) (Message, error) {
	var resp Message
	err := c.do(ctx, http.MethodPost, "messages", map[string]any{
		"request_id": requestID,
		"body":       body,
	}, &resp)
	return resp, err
}

// Messages lists the chat messages visible to the caller on a request.
func (c *Client) Messages(ctx context.Context, requestID string) ([]Message, error) {
	endpoint := "messages?request_id=" + url.QueryEscape(requestID)
	var resp []Message
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Notifications lists the caller's notifications.
func (c *Client) Notifications(ctx context.Context, unreadOnly bool) ([]Notification, error) {
	endpoint := "notifications"
	if unreadOnly {
		endpoint += "?unread=true"
	}
	var resp []Notification
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// MarkNotificationRead marks one notification read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) (Notification, error) {
	var resp Notification
	endpoint := fmt.Sprintf("notifications/%s/read", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
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
	case c.SessionToken != "":
		req.Header.Set("X-Session-Token", c.SessionToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
