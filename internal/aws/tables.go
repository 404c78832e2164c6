package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const tableWaitTimeout = 2 * time.Minute

// EnsureTable creates an on-demand table with a single string hash key if it does not exist.
// It reports whether the table was created by this call.
func EnsureTable(ctx context.Context, client DynamoDBAPI, tableName, hashKey string) (bool, error) {
	_, err := client.DescribeTable(ctx, &dyn.DescribeTableInput{TableName: &tableName})
	if err == nil {
		return false, nil
	}
	var nf *types.ResourceNotFoundException
	if !errors.As(err, &nf) {
		return false, fmt.Errorf("describe table %s: %w", tableName, err)
	}

	out, err := client.CreateTable(ctx, &dyn.CreateTableInput{
		TableName: &tableName,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: &hashKey, AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: &hashKey, KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return false, fmt.Errorf("create table %s: %w", tableName, err)
	}
	if out.TableDescription != nil && out.TableDescription.TableStatus == types.TableStatusActive {
		return true, nil
	}

	waiter := dyn.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dyn.DescribeTableInput{TableName: &tableName}, tableWaitTimeout); err != nil {
		return true, fmt.Errorf("wait for table %s: %w", tableName, err)
	}
	return true, nil
}
