package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const postmarkURL = "https://api.postmarkapp.com/email"

// ErrNotConfigured is returned when no Postmark server token is set.
var ErrNotConfigured = errors.New("email client not configured: missing server token")

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendResetCode emails a six-digit password reset code.
func (c *Client) SendResetCode(ctx context.Context, toEmail, code string) error {
	textBody := fmt.Sprintf(
		"Your Essential Memories reset code is %s.\n\nEnter it in the app to choose a new password. It expires in 15 minutes.\n\nIf you did not ask for this, you can ignore this email.",
		code,
	)
	htmlBody := fmt.Sprintf(
		`<p>Your Essential Memories reset code is</p><p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p><p>It expires in 15 minutes. If you did not ask for this, you can ignore this email.</p>`,
		code,
	)
	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  "Your password reset code",
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
}

// SendWelcome greets a newly registered user.
func (c *Client) SendWelcome(ctx context.Context, toEmail, displayName string) error {
	name := displayName
	if name == "" {
		name = "there"
	}
	textBody := fmt.Sprintf(
		"Hi %s,\n\nWelcome to Essential Memories. Add the dates that matter and we will quiz you on one each day.\n\n%s",
		name, c.baseURL,
	)
	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p><p>Welcome to Essential Memories. Add the dates that matter and we will quiz you on one each day.</p><p><a href="%s">Open Essential Memories</a></p>`,
		name, c.baseURL,
	)
	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  "Welcome to Essential Memories",
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
}

func (c *Client) send(ctx context.Context, payload postmarkEmail) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", postmarkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
