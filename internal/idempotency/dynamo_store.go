package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/imrishuroy/go-shipment-tracker/internal/aws"
	"github.com/imrishuroy/go-shipment-tracker/internal/obs"
)

// DynamoStore encapsulates idempotency operations against DynamoDB.
type DynamoStore struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration // TTL window applied when creating entries
	nowFunc   func() time.Time
}

// NewDynamoStore returns a configured DynamoStore.
// tableName: DynamoDB table name for idempotency entries.
// ttlWindow: lifetime of an entry (e.g., 48*time.Hour)
func NewDynamoStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// EnsureSchema creates the table if needed and enables TTL on expires_at for new tables.
func (s *DynamoStore) EnsureSchema(ctx context.Context) (err error) {
	defer obs.Time(ctx, "idempotency.EnsureSchema")(&err)

	created, err := aws.EnsureTable(ctx, s.client, s.tableName, "idempotency_key")
	if err != nil {
		return fmt.Errorf("idempotency schema: %w", err)
	}
	if !created {
		return nil
	}

	_, err = s.client.UpdateTimeToLive(ctx, &dyn.UpdateTimeToLiveInput{
		TableName: &s.tableName,
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: awsString("expires_at"),
			Enabled:       awsBool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("idempotency schema: enable ttl: %w", err)
	}
	return nil
}

// CreateIfNotExists creates an IN_PROGRESS record unless a live one exists.
// DynamoDB deletes expired items lazily, so an expired record may be overwritten.
func (s *DynamoStore) CreateIfNotExists(ctx context.Context, key string) (bool, error) {
	now := s.nowFunc()
	rec := Record{
		IdempotencyKey: key,
		Status:         StatusInProgress,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttlWindow).Unix(),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	input := &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(idempotency_key) OR expires_at <= :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	}

	_, err = s.client.PutItem(ctx, input)
	if err != nil {
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}

	return true, nil
}

// Get retrieves a live record by key. Missing or expired records return (nil, nil).
func (s *DynamoStore) Get(ctx context.Context, key string) (*Record, error) {
	input := &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"idempotency_key": &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: awsBool(true),
	}
	out, err := s.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	if rec.Expired(s.nowFunc()) {
		return nil, nil
	}
	return &rec, nil
}

// MarkDone sets status to DONE and stores the response body & status to replay.
func (s *DynamoStore) MarkDone(ctx context.Context, key, shipmentID, responseBody string, responseStatus int) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"idempotency_key": &types.AttributeValueMemberS{Value: key},
		},
		UpdateExpression: awsString("SET #s = :done, shipment_id = :sid, response_body = :rb, response_status = :rs, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":done": &types.AttributeValueMemberS{Value: StatusDone},
			":sid":  &types.AttributeValueMemberS{Value: shipmentID},
			":rb":   &types.AttributeValueMemberS{Value: responseBody},
			":rs":   &types.AttributeValueMemberN{Value: strconv.Itoa(responseStatus)},
			":ua":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	}
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		return fmt.Errorf("update item (mark done): %w", err)
	}
	return nil
}

// MarkFailed marks the record FAILED and stores a note.
func (s *DynamoStore) MarkFailed(ctx context.Context, key, note string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"idempotency_key": &types.AttributeValueMemberS{Value: key},
		},
		UpdateExpression: awsString("SET #s = :failed, note = :n, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed": &types.AttributeValueMemberS{Value: StatusFailed},
			":n":      &types.AttributeValueMemberS{Value: note},
			":ua":     &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	}
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		return fmt.Errorf("update item (mark failed): %w", err)
	}
	return nil
}

// Rearm flips FAILED -> IN_PROGRESS. Any other current state yields ErrNotFailed.
func (s *DynamoStore) Rearm(ctx context.Context, key string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"idempotency_key": &types.AttributeValueMemberS{Value: key},
		},
		UpdateExpression:    awsString("SET #s = :inprogress, updated_at = :ua, expires_at = :exp"),
		ConditionExpression: awsString("#s = :failed"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":inprogress": &types.AttributeValueMemberS{Value: StatusInProgress},
			":failed":     &types.AttributeValueMemberS{Value: StatusFailed},
			":ua":         &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
			":exp":        &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(s.ttlWindow).Unix(), 10)},
		},
	}
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return ErrNotFailed
		}
		return fmt.Errorf("update item (rearm): %w", err)
	}
	return nil
}

// Helpers
func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
