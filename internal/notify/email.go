package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"usos/internal/log"
	"usos/internal/models"
)

// SESClient is the part of the SES v2 API the email notifier uses
type SESClient interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// JoinRequestLookup loads a join request by id
type JoinRequestLookup interface {
	GetByID(ctx context.Context, requestID string) (*models.JoinRequest, error)
}

// MemberLister lists the members of a family
type MemberLister interface {
	ListByFamily(ctx context.Context, familyID string) ([]models.User, error)
}

// UserLookup loads a user by id
type UserLookup interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
}

// EmailNotifier mails family members about new join requests and tells
// requesters when they are let in
type EmailNotifier struct {
	client     SESClient
	requests   JoinRequestLookup
	members    MemberLister
	users      UserLookup
	fromEmail  string
	fromName   string
	appBaseURL string
	logger     *log.Logger
}

// EmailConfig holds sender settings
type EmailConfig struct {
	AWSRegion  string
	FromEmail  string
	FromName   string
	AppBaseURL string
}

// NewSESClient loads the default AWS configuration for region
func NewSESClient(ctx context.Context, region string) (*sesv2.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return sesv2.NewFromConfig(cfg), nil
}

// NewEmailNotifier creates an email notifier
func NewEmailNotifier(client SESClient, cfg EmailConfig, requests JoinRequestLookup, members MemberLister, users UserLookup, logger *log.Logger) *EmailNotifier {
	return &EmailNotifier{
		client:     client,
		requests:   requests,
		members:    members,
		users:      users,
		fromEmail:  cfg.FromEmail,
		fromName:   cfg.FromName,
		appBaseURL: cfg.AppBaseURL,
		logger:     logger.WithComponent(log.ComponentEmail),
	}
}

// Notify ignores everything except join request creation and approval
func (n *EmailNotifier) Notify(ctx context.Context, e Event) error {
	if e.EntityType != EntityJoinRequest {
		return nil
	}
	switch e.Action {
	case ActionCreated:
		return n.joinRequested(ctx, e)
	case ActionApproved:
		return n.joinApproved(ctx, e)
	default:
		return nil
	}
}

func (n *EmailNotifier) joinRequested(ctx context.Context, e Event) error {
	req, err := n.requests.GetByID(ctx, e.EntityID)
	if err != nil {
		return err
	}
	if req == nil || !req.IsPending() {
		return nil
	}

	members, err := n.members.ListByFamily(ctx, req.FamilyID)
	if err != nil {
		return err
	}

	requester := req.RequesterName
	if requester == "" {
		requester = req.RequesterEmail
	}
	link := fmt.Sprintf("%s/setup?family=%s", n.appBaseURL, req.FamilyID)
	subject := fmt.Sprintf("%s wants to join your family", requester)

	for _, m := range members {
		text := fmt.Sprintf("Hi %s,\n\n%s asked to join your family.\nApprove or decline the request here:\n%s\n", m.DisplayName, requester, link)
		body := fmt.Sprintf(`<p>Hi %s,</p><p><strong>%s</strong> asked to join your family.</p><p><a href="%s">Approve or decline the request</a></p>`,
			html.EscapeString(m.DisplayName), html.EscapeString(requester), link)
		if err := n.send(ctx, m.Email, subject, body, text); err != nil {
			return err
		}
	}
	return nil
}

func (n *EmailNotifier) joinApproved(ctx context.Context, e Event) error {
	req, err := n.requests.GetByID(ctx, e.EntityID)
	if err != nil {
		return err
	}
	if req == nil || req.RequesterEmail == "" {
		return nil
	}

	approver := "Your partner"
	if req.ResolvedBy != nil {
		if u, err := n.users.GetByID(ctx, *req.ResolvedBy); err == nil && u != nil && u.DisplayName != "" {
			approver = u.DisplayName
		}
	}

	subject := "You're in!"
	text := fmt.Sprintf("%s approved your request. Open %s to get started.\n", approver, n.appBaseURL)
	body := fmt.Sprintf(`<p>%s approved your request.</p><p><a href="%s">Open the app</a> to get started.</p>`,
		html.EscapeString(approver), n.appBaseURL)
	return n.send(ctx, req.RequesterEmail, subject, body, text)
}

func (n *EmailNotifier) send(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := n.fromEmail
	if n.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", n.fromName, n.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	if _, err := n.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	n.logger.InfoContext(ctx, "Email sent", "to", toEmail, "subject", subject)
	return nil
}
