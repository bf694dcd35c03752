package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/shellform-io/shellform/internal/logging"
)

const lockRetryInterval = time.Second

// dynamoLock serializes sessions against the same S3 object through a
// conditional put on a DynamoDB item keyed by "bucket/key".
type dynamoLock struct {
	client *dynamodb.Client
	table  string
	lockID string
	info   string
}

func newDynamoLock(client *dynamodb.Client, table, lockID string) *dynamoLock {
	return &dynamoLock{client: client, table: table, lockID: lockID}
}

// Acquire retries the conditional put until it wins or the timeout passes.
func (l *dynamoLock) Acquire(ctx context.Context, timeout time.Duration) error {
	l.info = uuid.NewString()
	who := lockHolder()
	deadline := time.Now().Add(timeout)

	for {
		_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(l.table),
			Item: map[string]dbtypes.AttributeValue{
				"LockID":  &dbtypes.AttributeValueMemberS{Value: l.lockID},
				"Info":    &dbtypes.AttributeValueMemberS{Value: l.info},
				"Who":     &dbtypes.AttributeValueMemberS{Value: who},
				"Created": &dbtypes.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
			},
			ConditionExpression: aws.String("attribute_not_exists(LockID)"),
		})
		if err == nil {
			return nil
		}
		if !isLockHeld(err) {
			return fmt.Errorf("acquiring state lock: %w", err)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w (item '%s' in DynamoDB table '%s')", ErrLockTimeout, l.lockID, l.table)
		}
		logging.Debug("state lock is held, retrying", "lock_id", l.lockID)

		select {
		case <-ctx.Done():
			return fmt.Errorf("acquiring state lock: %w", ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}
}

func (l *dynamoLock) Release(ctx context.Context) error {
	_, err := l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(l.table),
		Key: map[string]dbtypes.AttributeValue{
			"LockID": &dbtypes.AttributeValueMemberS{Value: l.lockID},
		},
	})
	if err != nil {
		return fmt.Errorf("releasing state lock: %w", err)
	}
	return nil
}

func isLockHeld(err error) bool {
	var ccf *dbtypes.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	return strings.Contains(err.Error(), "ConditionalCheckFailedException")
}

func lockHolder() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	u, err := user.Current()
	if err != nil {
		return host
	}
	return u.Username + "@" + host
}
