package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	graphBaseURL     = "https://graph.microsoft.com/v1.0"
	graphScope       = "https://graph.microsoft.com/.default"
	tokenURLTemplate = "https://login.microsoftonline.com/%s/oauth2/v2.0/token" //nolint:gosec // URL template, not a credential

	httpTimeout = 30 * time.Second
)

// GraphConfig holds Microsoft Graph email notification settings.
type GraphConfig struct {
	TenantID     string `json:"tenant_id"`     // Azure AD tenant ID
	ClientID     string `json:"client_id"`     // App registration client ID
	ClientSecret string `json:"client_secret"` // App registration client secret
	FromAddress  string `json:"from_address"`  // Shared mailbox sender address
	Recipients   string `json:"recipients"`    // Comma-separated recipient addresses
}

// IsConfigured returns true when all required Graph settings are present.
func (c *GraphConfig) IsConfigured() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != "" &&
		c.FromAddress != "" && c.Recipients != ""
}

// GraphClient sends emails via the Microsoft Graph API.
type GraphClient struct {
	fromAddress string
	recipients  []string
	httpClient  *http.Client
}

// NewGraphClient creates a new email client using client-credentials OAuth2.
func NewGraphClient(cfg *GraphConfig) (*GraphClient, error) {
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("email notifications are not configured")
	}

	conf := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf(tokenURLTemplate, cfg.TenantID),
		Scopes:       []string{graphScope},
	}

	// Base HTTP client with timeout to prevent indefinite hangs.
	baseClient := &http.Client{Timeout: httpTimeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, baseClient)

	var recipients []string
	for _, r := range strings.Split(cfg.Recipients, ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}

	return &GraphClient{
		fromAddress: cfg.FromAddress,
		recipients:  recipients,
		httpClient:  conf.Client(ctx),
	}, nil
}

type graphMailRequest struct {
	Message graphMessage `json:"message"`
}

type graphMessage struct {
	Subject      string           `json:"subject"`
	Body         graphBody        `json:"body"`
	ToRecipients []graphRecipient `json:"toRecipients"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphEmailAddress struct {
	Address string `json:"address"`
}

// SendMail sends a plain-text email to the configured recipients.
func (g *GraphClient) SendMail(ctx context.Context, subject, body string) error {
	if len(g.recipients) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	msg := graphMailRequest{
		Message: graphMessage{
			Subject: subject,
			Body:    graphBody{ContentType: "Text", Content: body},
		},
	}
	for _, r := range g.recipients {
		msg.Message.ToRecipients = append(msg.Message.ToRecipients,
			graphRecipient{EmailAddress: graphEmailAddress{Address: r}})
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mail request: %w", err)
	}

	url := fmt.Sprintf("%s/users/%s/sendMail", graphBaseURL, g.fromAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("graph sendMail returned status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}
