package aws

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// MetricPublisher wraps a CloudWatch client and a metric namespace.
type MetricPublisher struct {
	CloudWatch CloudWatchAPI
	Namespace  string
	nowFunc    func() time.Time
}

// NewMetricPublisher returns a MetricPublisher bound to a namespace.
func NewMetricPublisher(cw CloudWatchAPI, namespace string) *MetricPublisher {
	return &MetricPublisher{
		CloudWatch: cw,
		Namespace:  namespace,
		nowFunc:    time.Now,
	}
}

// PutCount sends a single Count datapoint named after the event.
func (p *MetricPublisher) PutCount(ctx context.Context, name string, value float64) error {
	ts := p.nowFunc()
	input := &cloudwatch.PutMetricDataInput{
		Namespace: &p.Namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: &name,
				Value:      &value,
				Unit:       cwtypes.StandardUnitCount,
				Timestamp:  &ts,
			},
		},
	}
	if _, err := p.CloudWatch.PutMetricData(ctx, input); err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}

// Inc records one occurrence of event. Failures are logged and never surface to the request.
func (p *MetricPublisher) Inc(ctx context.Context, event string) {
	if err := p.PutCount(ctx, event, 1); err != nil {
		log.Printf("cloudwatch metric event=%s err=%v", event, err)
	}
}
