package aws

import (
	"accessbus/src/types"
	"context"
	"encoding/json"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher publishes events to a single topic with the event type as a
// message attribute so subscribers can filter.
type SNSPublisher struct {
	TopicArn string
	inner    SNSAPI
}

func GetSNSClient(ctx context.Context) (*sns.Client, error) {
	cfg, err := LoadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return sns.NewFromConfig(*cfg), nil
}

func NewSNSPublisher(topicArn string, client SNSAPI) *SNSPublisher {
	return &SNSPublisher{TopicArn: topicArn, inner: client}
}

func (s *SNSPublisher) Name() string {
	return "SNS"
}

func (s *SNSPublisher) Publish(ctx context.Context, evt types.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	out, err := s.inner.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.TopicArn),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(evt.Type)),
			},
		},
	})
	if err != nil {
		log.Printf("Error publishing %s to SNS: %s\n", evt.Type, err.Error())
		return err
	}
	log.Printf("Published %s: %s\n", evt.Type, aws.ToString(out.MessageId))
	return nil
}
