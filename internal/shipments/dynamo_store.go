package shipments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/imrishuroy/go-shipment-tracker/internal/aws"
	"github.com/imrishuroy/go-shipment-tracker/internal/obs"
)

// maxBatchWrite is the DynamoDB limit on requests per BatchWriteItem call.
const maxBatchWrite = 25

// maxBatchAttempts bounds how often throttled (unprocessed) requests are resubmitted.
const maxBatchAttempts = 6

// DynamoStore encapsulates shipment operations on a DynamoDB table keyed by id.
type DynamoStore struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
	newID     func() string
	backoff   time.Duration // first resubmit delay, doubled per attempt
}

// NewDynamoStore creates a new shipments DynamoStore.
func NewDynamoStore(client aws.DynamoDBAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
		newID:     uuid.NewString,
		backoff:   50 * time.Millisecond,
	}
}

// EnsureSchema creates the table when missing and seeds it when empty.
func (s *DynamoStore) EnsureSchema(ctx context.Context) (err error) {
	defer obs.Time(ctx, "shipments.EnsureSchema")(&err)

	if _, err := aws.EnsureTable(ctx, s.client, s.tableName, "id"); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	out, err := s.client.Scan(ctx, &dyn.ScanInput{
		TableName:            &s.tableName,
		ProjectionExpression: awsString("id"),
		Limit:                awsInt32(1),
	})
	if err != nil {
		return fmt.Errorf("init schema: scan table: %w", err)
	}
	if len(out.Items) > 0 {
		return nil
	}

	log.Println("Inserting initial demo data...")
	if err := s.putSeeds(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// List scans the whole table.
func (s *DynamoStore) List(ctx context.Context) (_ []Shipment, err error) {
	defer obs.Time(ctx, "shipments.List")(&err)

	out := make([]Shipment, 0, 16)
	p := dyn.NewScanPaginator(s.client, &dyn.ScanInput{TableName: &s.tableName})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list shipments: scan: %w", err)
		}
		var batch []Shipment
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("list shipments: unmarshal: %w", err)
		}
		out = append(out, batch...)
	}
	return out, nil
}

// Create puts a new item guarded by attribute_not_exists(id).
func (s *DynamoStore) Create(ctx context.Context, in NewShipment) (_ string, err error) {
	defer obs.Time(ctx, "shipments.Create")(&err)

	sh := newShipment(s.newID(), in, s.nowFunc())
	item, err := attributevalue.MarshalMap(sh)
	if err != nil {
		return "", fmt.Errorf("create shipment: marshal: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(id)"),
	})
	if err != nil {
		return "", fmt.Errorf("create shipment: put item: %w", err)
	}
	return sh.ID, nil
}

// UpdateStatus sets status and createdAt on an existing item.
// A failed attribute_exists(id) condition means the id is unknown and yields false.
func (s *DynamoStore) UpdateStatus(ctx context.Context, id, status string) (_ bool, err error) {
	defer obs.Time(ctx, "shipments.UpdateStatus")(&err)

	now := s.nowFunc().UTC()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:         awsString("SET #s = :s, createdAt = :c"),
		ConditionExpression:      awsString("attribute_exists(id)"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: status},
			":c": &types.AttributeValueMemberS{Value: now.Format(timeLayout)},
		},
	}

	_, err = s.client.UpdateItem(ctx, input)
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return false, nil
		}
		return false, fmt.Errorf("update shipment status id=%s: %w", id, err)
	}
	return true, nil
}

// Reset deletes every item and writes the seed set.
// Throttled requests are resubmitted, but DynamoDB has no cross-batch transaction:
// an error part-way (including throttling that outlasts the retries) can leave the
// table partly emptied and without seed rows. Calling Reset again repairs it.
func (s *DynamoStore) Reset(ctx context.Context) (err error) {
	defer obs.Time(ctx, "shipments.Reset")(&err)

	var deletes []types.WriteRequest
	p := dyn.NewScanPaginator(s.client, &dyn.ScanInput{
		TableName:            &s.tableName,
		ProjectionExpression: awsString("id"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("reset shipments: scan: %w", err)
		}
		for _, item := range page.Items {
			deletes = append(deletes, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{
					Key: map[string]types.AttributeValue{"id": item["id"]},
				},
			})
		}
	}

	if err := s.batchWrite(ctx, deletes); err != nil {
		return fmt.Errorf("reset shipments: delete: %w", err)
	}
	if err := s.putSeeds(ctx); err != nil {
		return fmt.Errorf("reset shipments: %w", err)
	}
	return nil
}

func (s *DynamoStore) putSeeds(ctx context.Context) error {
	now := s.nowFunc()
	puts := make([]types.WriteRequest, 0, len(SeedShipments))
	for _, seed := range SeedShipments {
		item, err := attributevalue.MarshalMap(newShipment(s.newID(), seed, now))
		if err != nil {
			return fmt.Errorf("seed %s: marshal: %w", seed.TrackingID, err)
		}
		puts = append(puts, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	if err := s.batchWrite(ctx, puts); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	return nil
}

// batchWrite sends reqs in chunks of maxBatchWrite and resubmits unprocessed
// requests with exponential backoff.
func (s *DynamoStore) batchWrite(ctx context.Context, reqs []types.WriteRequest) error {
	for start := 0; start < len(reqs); start += maxBatchWrite {
		end := min(start+maxBatchWrite, len(reqs))
		pending := reqs[start:end]
		delay := s.backoff
		for attempt := 1; len(pending) > 0; attempt++ {
			if attempt > maxBatchAttempts {
				return fmt.Errorf("batch write: %d unprocessed items after %d attempts", len(pending), maxBatchAttempts)
			}
			if attempt > 1 {
				select {
				case <-ctx.Done():
					return fmt.Errorf("batch write: %w", ctx.Err())
				case <-time.After(delay):
				}
				delay *= 2
			}
			out, err := s.client.BatchWriteItem(ctx, &dyn.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{s.tableName: pending},
			})
			if err != nil {
				return fmt.Errorf("batch write: %w", err)
			}
			pending = out.UnprocessedItems[s.tableName]
		}
	}
	return nil
}

func awsString(s string) *string { return &s }

func awsInt32(v int32) *int32 { return &v }
