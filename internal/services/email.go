package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/rocjay1/spend-audit/internal/models"
)

// EmailService sends audit notifications through the Azure Communication Services REST API.
type EmailService struct {
	endpoint   string
	sender     string
	cred       azcore.TokenCredential
	httpClient *http.Client
}

// NewEmailService reads COMMUNICATION_SERVICES_ENDPOINT and SENDER_EMAIL.
// A nil cred falls back to DefaultAzureCredential.
func NewEmailService(cred azcore.TokenCredential) (*EmailService, error) {
	endpoint := os.Getenv("COMMUNICATION_SERVICES_ENDPOINT")
	if endpoint == "" {
		return nil, fmt.Errorf("COMMUNICATION_SERVICES_ENDPOINT environment variable is required")
	}

	sender := os.Getenv("SENDER_EMAIL")
	if sender == "" {
		return nil, fmt.Errorf("SENDER_EMAIL environment variable is required")
	}

	if cred == nil {
		var err error
		cred, err = newDefaultAzureCredential()
		if err != nil {
			return nil, fmt.Errorf("failed to create default azure credential: %w", err)
		}
	}

	return &EmailService{
		endpoint:   endpoint,
		sender:     sender,
		cred:       cred,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

const (
	acsScope      = "https://communication.azure.com//.default"
	acsAPIVersion = "2023-03-31"
)

type emailAddress struct {
	Address string `json:"address"`
}

type emailRequest struct {
	SenderAddress string `json:"senderAddress"`
	Content       struct {
		Subject string `json:"subject"`
		HTML    string `json:"html"`
	} `json:"content"`
	Recipients struct {
		To []emailAddress `json:"to"`
	} `json:"recipients"`
}

func newEmailRequest(sender string, to []string, subject, body string) emailRequest {
	var r emailRequest
	r.SenderAddress = sender
	r.Content.Subject = subject
	r.Content.HTML = body
	for _, addr := range to {
		r.Recipients.To = append(r.Recipients.To, emailAddress{Address: addr})
	}
	return r
}

// SendEmail posts one HTML message. The service answers 202 once the message is queued.
func (s *EmailService) SendEmail(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients for %q", subject)
	}

	token, err := s.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{acsScope}})
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	payload, err := json.Marshal(newEmailRequest(s.sender, to, subject, body))
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	url := fmt.Sprintf("%s/emails:send?api-version=%s", strings.TrimSuffix(s.endpoint, "/"), acsAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.Token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("email rejected with status %d: %s", resp.StatusCode, detail)
	}

	slog.Info("sent email", "subject", subject, "recipients", len(to))
	return nil
}

// SendSummaryEmail sends the outcome of an audit run.
func (s *EmailService) SendSummaryEmail(ctx context.Context, recipients []string, run *models.AuditRun, warnings []string) error {
	return s.SendEmail(ctx, recipients, SummarySubject(run), RenderSummaryBody(run, warnings))
}

// SendErrorEmail sends an email listing why a run could not complete.
func (s *EmailService) SendErrorEmail(ctx context.Context, recipients []string, errors []string) error {
	return s.SendEmail(ctx, recipients, subjectFailed, RenderErrorBody(errors))
}

// SendReminderEmail asks the user to fix data-quality problems found in the latest run.
func (s *EmailService) SendReminderEmail(ctx context.Context, recipients []string, run *models.AuditRun, problems []string) error {
	return s.SendEmail(ctx, recipients, subjectReminder, RenderReminderBody(run, problems))
}
