package shipments

import (
	"context"
	"errors"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-shipment-tracker/internal/aws"
)

var _ aws.DynamoDBAPI = (*mockDynamo)(nil)

// mockDynamo is a single-table in-memory stand-in keyed by "id".
// It understands only the condition expressions DynamoStore issues.
type mockDynamo struct {
	mu        sync.Mutex
	exists    bool
	items     map[string]map[string]types.AttributeValue
	order     []string
	scanCalls int

	batchCalls int
	failBatch  bool
	// throttleBatches makes the next N BatchWriteItem calls apply only the first
	// request and hand the rest back as unprocessed.
	throttleBatches int
	// rejectBatches hands every write request back as unprocessed.
	rejectBatches bool
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func keyOf(item map[string]types.AttributeValue) (string, error) {
	v, ok := item["id"].(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("no id attribute")
	}
	return v.Value, nil
}

func (m *mockDynamo) put(k string, item map[string]types.AttributeValue) {
	if _, ok := m.items[k]; !ok {
		m.order = append(m.order, k)
	}
	m.items[k] = item
}

func (m *mockDynamo) remove(k string) {
	delete(m.items, k)
	for i, o := range m.order {
		if o == k {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	return &dyn.GetItemOutput{Item: m.items[k]}, nil
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, err := keyOf(params.Item)
	if err != nil {
		return nil, err
	}
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(id)" {
		if _, exists := m.items[k]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.put(k, params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, exists := m.items[k]
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_exists(id)" && !exists {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if !exists {
		item = map[string]types.AttributeValue{"id": params.Key["id"]}
	}
	if v, ok := params.ExpressionAttributeValues[":s"]; ok {
		item["status"] = v
	}
	if v, ok := params.ExpressionAttributeValues[":c"]; ok {
		item["createdAt"] = v
	}
	m.put(k, item)
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

// Scan returns items in insertion order in a single page.
func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanCalls++
	out := make([]map[string]types.AttributeValue, 0, len(m.order))
	for _, k := range m.order {
		if params.Limit != nil && int32(len(out)) >= *params.Limit {
			break
		}
		out = append(out, m.items[k])
	}
	return &dyn.ScanOutput{Items: out, Count: int32(len(out))}, nil
}

func (m *mockDynamo) BatchWriteItem(ctx context.Context, params *dyn.BatchWriteItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchWriteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	if m.failBatch {
		return nil, errors.New("throttled")
	}
	unprocessed := map[string][]types.WriteRequest{}
	for table, reqs := range params.RequestItems {
		if len(reqs) > maxBatchWrite {
			return nil, errors.New("too many items in batch")
		}
		if m.rejectBatches {
			unprocessed[table] = reqs
			continue
		}
		if m.throttleBatches > 0 && len(reqs) > 1 {
			m.throttleBatches--
			unprocessed[table] = reqs[1:]
			reqs = reqs[:1]
		}
		for _, r := range reqs {
			switch {
			case r.PutRequest != nil:
				k, err := keyOf(r.PutRequest.Item)
				if err != nil {
					return nil, err
				}
				m.put(k, r.PutRequest.Item)
			case r.DeleteRequest != nil:
				k, err := keyOf(r.DeleteRequest.Key)
				if err != nil {
					return nil, err
				}
				m.remove(k)
			}
		}
	}
	return &dyn.BatchWriteItemOutput{UnprocessedItems: unprocessed}, nil
}

func (m *mockDynamo) DescribeTable(ctx context.Context, params *dyn.DescribeTableInput, optFns ...func(*dyn.Options)) (*dyn.DescribeTableOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists {
		return nil, &types.ResourceNotFoundException{}
	}
	return &dyn.DescribeTableOutput{Table: &types.TableDescription{TableName: params.TableName, TableStatus: types.TableStatusActive}}, nil
}

func (m *mockDynamo) CreateTable(ctx context.Context, params *dyn.CreateTableInput, optFns ...func(*dyn.Options)) (*dyn.CreateTableOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exists {
		return nil, &types.ResourceInUseException{}
	}
	m.exists = true
	return &dyn.CreateTableOutput{TableDescription: &types.TableDescription{TableName: params.TableName, TableStatus: types.TableStatusActive}}, nil
}

func (m *mockDynamo) UpdateTimeToLive(ctx context.Context, params *dyn.UpdateTimeToLiveInput, optFns ...func(*dyn.Options)) (*dyn.UpdateTimeToLiveOutput, error) {
	return &dyn.UpdateTimeToLiveOutput{}, nil
}
