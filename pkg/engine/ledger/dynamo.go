package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	attrContainer = "container_id"
	attrInstance  = "instance_id"
	attrEntry     = "entry"

	// BatchWriteItem accepts at most 25 requests.
	dynamoBatchSize = 25
	dynamoRetries   = 5
)

// DynamoBackend keeps one item per entry: partition key container_id, sort
// key instance_id, and the JSON entry in the "entry" attribute.
type DynamoBackend struct {
	Client *dynamodb.Client
	Table  string
}

func NewDynamoBackend(cfg aws.Config, table string) *DynamoBackend {
	return &DynamoBackend{Client: dynamodb.NewFromConfig(cfg), Table: table}
}

// CreateTable creates the on-demand table and waits until it is active.
// An existing table is left alone.
func (b *DynamoBackend) CreateTable(ctx context.Context) error {
	_, err := b.Client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(b.Table),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrContainer), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrInstance), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrContainer), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attrInstance), KeyType: types.KeyTypeRange},
		},
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("failed to create table %s: %w", b.Table, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(b.Client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(b.Table)}, 2*time.Minute)
}

// items pages through a Query for one container or a Scan of the table.
func (b *DynamoBackend) items(ctx context.Context, containerID string) ([]map[string]types.AttributeValue, error) {
	var out []map[string]types.AttributeValue
	if containerID != "" {
		p := dynamodb.NewQueryPaginator(b.Client, &dynamodb.QueryInput{
			TableName:                 aws.String(b.Table),
			KeyConditionExpression:    aws.String("#c = :c"),
			ExpressionAttributeNames:  map[string]string{"#c": attrContainer},
			ExpressionAttributeValues: map[string]types.AttributeValue{":c": &types.AttributeValueMemberS{Value: containerID}},
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to query ledger table: %w", err)
			}
			out = append(out, page.Items...)
		}
		return out, nil
	}

	p := dynamodb.NewScanPaginator(b.Client, &dynamodb.ScanInput{TableName: aws.String(b.Table)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger table: %w", err)
		}
		out = append(out, page.Items...)
	}
	return out, nil
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (b *DynamoBackend) Load(ctx context.Context, containerID string) ([]Entry, error) {
	items, err := b.items(ctx, containerID)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(items))
	for _, item := range items {
		var e Entry
		if err := json.Unmarshal([]byte(stringAttr(item, attrEntry)), &e); err != nil {
			return nil, fmt.Errorf("failed to decode %s/%s: %w", stringAttr(item, attrContainer), stringAttr(item, attrInstance), err)
		}
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}

func (b *DynamoBackend) Put(ctx context.Context, containerID string, entries []Entry) error {
	reqs := make([]types.WriteRequest, 0, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode %s/%s: %w", containerID, e.InstanceID, err)
		}
		reqs = append(reqs, types.WriteRequest{PutRequest: &types.PutRequest{Item: map[string]types.AttributeValue{
			attrContainer: &types.AttributeValueMemberS{Value: containerID},
			attrInstance:  &types.AttributeValueMemberS{Value: e.InstanceID},
			attrEntry:     &types.AttributeValueMemberS{Value: string(data)},
		}}})
	}
	return b.batchWrite(ctx, reqs)
}

func (b *DynamoBackend) Delete(ctx context.Context, containerID string) error {
	items, err := b.items(ctx, containerID)
	if err != nil {
		return err
	}
	reqs := make([]types.WriteRequest, 0, len(items))
	for _, item := range items {
		reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{
			attrContainer: item[attrContainer],
			attrInstance:  item[attrInstance],
		}}})
	}
	return b.batchWrite(ctx, reqs)
}

// batchWrite sends reqs in chunks and resubmits unprocessed items with a
// short backoff.
func (b *DynamoBackend) batchWrite(ctx context.Context, reqs []types.WriteRequest) error {
	for start := 0; start < len(reqs); start += dynamoBatchSize {
		pending := reqs[start:min(start+dynamoBatchSize, len(reqs))]
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt == dynamoRetries {
				return fmt.Errorf("failed to write ledger table %s: %d items unprocessed", b.Table, len(pending))
			}
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(attempt*50) * time.Millisecond):
				}
			}
			out, err := b.Client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{b.Table: pending},
			})
			if err != nil {
				return fmt.Errorf("failed to write ledger table %s: %w", b.Table, err)
			}
			pending = out.UnprocessedItems[b.Table]
		}
	}
	return nil
}

func (b *DynamoBackend) Close() error { return nil }
