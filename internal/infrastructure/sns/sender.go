package sns

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/go-auth-sms/internal/config"
)

// Sender delivers verification codes over SMS via AWS SNS.
type Sender interface {
	SendCode(ctx context.Context, phone, code string) error
}

type sender struct {
	client *sns.Client
}

func NewSender(cfg *config.Config) (Sender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, err
	}
	return &sender{client: sns.NewFromConfig(awsCfg)}, nil
}

func (s *sender) SendCode(ctx context.Context, phone, code string) error {
	message := fmt.Sprintf("Your verification code is %s. It expires in a few minutes.", code)
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: &phone,
		Message:     &message,
	})
	return err
}
