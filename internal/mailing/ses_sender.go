package mailing

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/mailflow/internal/domain"
	"github.com/ignite/mailflow/internal/pkg/logger"
)

// SESSender delivers campaigns through AWS SES using the SDK v2. The
// audience is every active subscriber in the store at dispatch time.
type SESSender struct {
	db     *sql.DB
	client *sesv2.Client
	region string
}

// NewSESSender creates an SES sender. Returns an error if the AWS config
// cannot be assembled from the given static credentials.
func NewSESSender(ctx context.Context, db *sql.DB, accessKey, secretKey, region string) (*SESSender, error) {
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &SESSender{
		db:     db,
		client: sesv2.NewFromConfig(cfg),
		region: region,
	}, nil
}

// SendCampaign resolves the active audience and delivers the campaign one
// message at a time (SES v2 has no true bulk send for simple content).
// Returns an error only when the whole run failed; partial per-recipient
// failures are logged and tolerated.
func (s *SESSender) SendCampaign(ctx context.Context, c *domain.Campaign) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT email FROM mailing_subscribers WHERE status = 'active' ORDER BY email
	`)
	if err != nil {
		return fmt.Errorf("resolve audience: %w", err)
	}
	defer rows.Close()

	var recipients []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			continue
		}
		recipients = append(recipients, email)
	}
	if len(recipients) == 0 {
		log.Printf("[SES] Campaign %s has no active recipients", c.ID)
		return nil
	}

	sent, failed := 0, 0
	for _, email := range recipients {
		if err := s.sendOne(ctx, c, email); err != nil {
			failed++
			log.Printf("[SES] Failed to send campaign %s to %s: %v", c.ID, logger.RedactEmail(email), err)
			continue
		}
		sent++
	}

	log.Printf("[SES] Campaign %s delivered: %d sent, %d failed of %d", c.ID, sent, failed, len(recipients))

	if sent == 0 {
		return fmt.Errorf("all %d sends failed for campaign %s", len(recipients), c.ID)
	}
	return nil
}

func (s *SESSender) sendOne(ctx context.Context, c *domain.Campaign, email string) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", c.FromName, c.FromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{email}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(c.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(c.HTMLContent), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("campaign_id"), Value: aws.String(c.ID)},
		},
	}
	if c.PlainContent != "" {
		input.Content.Simple.Body.Text = &types.Content{Data: aws.String(c.PlainContent), Charset: aws.String("UTF-8")}
	}

	_, err := s.client.SendEmail(ctx, input)
	return err
}
