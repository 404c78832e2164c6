package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the stores.
// Tests substitute in-memory fakes.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error)
	PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error)
	Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dyn.BatchWriteItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchWriteItemOutput, error)
	DescribeTable(ctx context.Context, params *dyn.DescribeTableInput, optFns ...func(*dyn.Options)) (*dyn.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dyn.CreateTableInput, optFns ...func(*dyn.Options)) (*dyn.CreateTableOutput, error)
	UpdateTimeToLive(ctx context.Context, params *dyn.UpdateTimeToLiveInput, optFns ...func(*dyn.Options)) (*dyn.UpdateTimeToLiveOutput, error)
}

// CloudWatchAPI is the subset of the CloudWatch client used for metrics.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}
