package idempotency

import (
	"context"
	"errors"
	"strconv"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-shipment-tracker/internal/aws"
)

var _ aws.DynamoDBAPI = (*simpleMock)(nil)

// simpleMock is a very small in-memory mock for the calls DynamoStore makes.
// NOTE: condition handling covers only the expressions the store issues.
type simpleMock struct {
	mu          sync.Mutex
	exists      bool
	ttlEnabled  bool
	table       map[string]map[string]types.AttributeValue
	putCalls    int
	getCalls    int
	updateCalls int
}

func newSimpleMock() *simpleMock {
	return &simpleMock{
		table: map[string]map[string]types.AttributeValue{},
	}
}

func keyValue(item map[string]types.AttributeValue) (string, error) {
	keyAttr, ok := item["idempotency_key"].(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("missing key")
	}
	return keyAttr.Value, nil
}

func numberValue(av types.AttributeValue) int64 {
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	v, _ := strconv.ParseInt(n.Value, 10, 64)
	return v
}

func (m *simpleMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	k, err := keyValue(params.Item)
	if err != nil {
		return nil, err
	}
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(idempotency_key) OR expires_at <= :now" {
		if existing, ok := m.table[k]; ok {
			now := numberValue(params.ExpressionAttributeValues[":now"])
			if numberValue(existing["expires_at"]) > now {
				// simulate conditional failure
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}
	m.table[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *simpleMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	k, err := keyValue(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.table[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *simpleMock) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	k, err := keyValue(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.table[k]
	if !ok {
		return nil, errors.New("item not found")
	}
	vals := params.ExpressionAttributeValues
	if params.ConditionExpression != nil && *params.ConditionExpression == "#s = :failed" {
		curr, ok := item["status"].(*types.AttributeValueMemberS)
		if !ok || curr.Value != StatusFailed {
			return nil, &types.ConditionalCheckFailedException{}
		}
		item["status"] = vals[":inprogress"]
		item["expires_at"] = vals[":exp"]
		item["updated_at"] = vals[":ua"]
		m.table[k] = item
		return &dyn.UpdateItemOutput{Attributes: item}, nil
	}
	// very naive update: copy known placeholders onto their attributes
	fields := map[string]string{
		":sid": "shipment_id",
		":rb":  "response_body",
		":rs":  "response_status",
		":ua":  "updated_at",
		":n":   "note",
	}
	for placeholder, attr := range fields {
		if v, ok := vals[placeholder]; ok {
			item[attr] = v
		}
	}
	if v, ok := vals[":done"]; ok {
		item["status"] = v
	}
	if v, ok := vals[":failed"]; ok {
		item["status"] = v
	}
	m.table[k] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *simpleMock) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *simpleMock) BatchWriteItem(ctx context.Context, params *dyn.BatchWriteItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchWriteItemOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *simpleMock) DescribeTable(ctx context.Context, params *dyn.DescribeTableInput, optFns ...func(*dyn.Options)) (*dyn.DescribeTableOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists {
		return nil, &types.ResourceNotFoundException{}
	}
	return &dyn.DescribeTableOutput{Table: &types.TableDescription{TableStatus: types.TableStatusActive}}, nil
}

func (m *simpleMock) CreateTable(ctx context.Context, params *dyn.CreateTableInput, optFns ...func(*dyn.Options)) (*dyn.CreateTableOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exists = true
	return &dyn.CreateTableOutput{TableDescription: &types.TableDescription{TableStatus: types.TableStatusActive}}, nil
}

func (m *simpleMock) UpdateTimeToLive(ctx context.Context, params *dyn.UpdateTimeToLiveInput, optFns ...func(*dyn.Options)) (*dyn.UpdateTimeToLiveOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if params.TimeToLiveSpecification == nil || *params.TimeToLiveSpecification.AttributeName != "expires_at" {
		return nil, errors.New("unexpected ttl attribute")
	}
	m.ttlEnabled = true
	return &dyn.UpdateTimeToLiveOutput{}, nil
}
