package sqs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/leshachaplin/loginpipe/internal/domain"
)

type Config struct {
	URL               string        `yaml:"url"`
	Endpoint          string        `yaml:"endpoint"`
	Region            string        `yaml:"region"`
	AccessKeyID       string        `yaml:"access_key_id"`
	SecretAccessKey   string        `yaml:"secret_access_key"`
	WaitTime          time.Duration `yaml:"wait_time"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
}

// API is the part of the SQS client the queue uses.
type API interface {
	ReceiveMessage(ctx context.Context, params *awssqs.ReceiveMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *awssqs.DeleteMessageBatchInput, optFns ...func(*awssqs.Options)) (*awssqs.DeleteMessageBatchOutput, error)
}

type Queue struct {
	api               API
	url               string
	waitTime          int32
	visibilityTimeout int32
}

func New(ctx context.Context, cfg Config) (*Queue, error) {
	if cfg.URL == "" {
		return nil, errors.New("sqs: queue url is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := awssqs.NewFromConfig(awsCfg, func(o *awssqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return NewWithAPI(client, cfg), nil
}

func NewWithAPI(api API, cfg Config) *Queue {
	return &Queue{
		api:               api,
		url:               cfg.URL,
		waitTime:          int32(cfg.WaitTime / time.Second),
		visibilityTimeout: int32(cfg.VisibilityTimeout / time.Second),
	}
}

func (q *Queue) Receive(ctx context.Context, maxCount int) ([]domain.QueueMessage, error) {
	in := &awssqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(q.url),
		MaxNumberOfMessages:         int32(maxCount),
		WaitTimeSeconds:             q.waitTime,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameAll},
	}
	if q.visibilityTimeout > 0 {
		in.VisibilityTimeout = q.visibilityTimeout
	}

	out, err := q.api.ReceiveMessage(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("sqs receive message: %w", err)
	}

	msgs := make([]domain.QueueMessage, len(out.Messages))
	for i, m := range out.Messages {
		msgs[i] = domain.QueueMessage{
			ID:            aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          aws.ToString(m.Body),
			Attributes:    m.Attributes,
		}
	}
	return msgs, nil
}

func (q *Queue) DeleteBatch(ctx context.Context, entries []domain.AckEntry) (domain.DeleteResult, error) {
	in := &awssqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(q.url),
		Entries:  make([]types.DeleteMessageBatchRequestEntry, len(entries)),
	}
	for i, e := range entries {
		in.Entries[i] = types.DeleteMessageBatchRequestEntry{
			Id:            aws.String(e.ID),
			ReceiptHandle: aws.String(e.ReceiptHandle),
		}
	}

	out, err := q.api.DeleteMessageBatch(ctx, in)
	if err != nil {
		return domain.DeleteResult{}, fmt.Errorf("sqs delete message batch: %w", err)
	}

	res := domain.DeleteResult{
		Successful: make([]string, len(out.Successful)),
		Failed:     make([]domain.DeleteFailure, len(out.Failed)),
	}
	for i, s := range out.Successful {
		res.Successful[i] = aws.ToString(s.Id)
	}
	for i, f := range out.Failed {
		res.Failed[i] = domain.DeleteFailure{
			ID:      aws.ToString(f.Id),
			Code:    aws.ToString(f.Code),
			Message: aws.ToString(f.Message),
		}
	}
	return res, nil
}
