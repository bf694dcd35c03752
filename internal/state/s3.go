package state

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Backend stores the document as a single S3 object replaced wholesale on
// every write, with exclusive access serialized through a DynamoDB lock item.
type S3Backend struct {
	bucket  string
	key     string
	region  string
	profile string
	encrypt bool

	s3Client *s3.Client
	lock     *dynamoLock
}

func newS3Backend(ctx context.Context, cfg Config) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 state backend requires 'bucket'")
	}

	b := &S3Backend{
		bucket:  cfg.Bucket,
		key:     cfg.Key,
		region:  cfg.Region,
		profile: cfg.Profile,
		encrypt: cfg.Encrypt,
	}
	if b.key == "" {
		b.key = "shellform/state.json"
	}
	if b.region == "" {
		b.region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(b.region)}
	if b.profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(b.profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	b.s3Client = s3.NewFromConfig(awsCfg)
	if cfg.DynamoDBTable != "" {
		lockID := fmt.Sprintf("%s/%s", b.bucket, b.key)
		b.lock = newDynamoLock(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, lockID)
	}

	return b, nil
}

func (b *S3Backend) Lock(ctx context.Context, timeout time.Duration) error {
	if b.lock == nil {
		return nil
	}
	return b.lock.Acquire(ctx, timeout)
}

func (b *S3Backend) Unlock(ctx context.Context) error {
	if b.lock == nil {
		return nil
	}
	return b.lock.Release(ctx)
}

func (b *S3Backend) Load(ctx context.Context) (*Document, error) {
	result, err := b.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		if isObjectMissing(err) {
			return NewDocument(""), nil
		}
		return nil, fmt.Errorf("reading state from s3://%s/%s: %w", b.bucket, b.key, err)
	}
	defer result.Body.Close()

	raw, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("reading state object body: %w", err)
	}
	if IsEncrypted(raw) {
		raw, err = Decrypt(raw)
		if err != nil {
			return nil, err
		}
	}
	return unmarshalDocument(raw)
}

func (b *S3Backend) Store(ctx context.Context, doc *Document) error {
	data, err := marshalDocument(doc)
	if err != nil {
		return err
	}
	data, err = Encrypt(data)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
		Body:   bytes.NewReader(data),
	}
	if b.encrypt {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	}

	if _, err := b.s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("writing state to s3://%s/%s: %w", b.bucket, b.key, err)
	}
	return nil
}

func isObjectMissing(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}
