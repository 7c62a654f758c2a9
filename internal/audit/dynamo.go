package audit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// globalPartition holds entries that are not tied to a company
const globalPartition = "global"

// DynamoAPI is the subset of the DynamoDB client used by DynamoRecorder
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoRecorder implements Recorder on a DynamoDB table partitioned by company
// with a created_at#id sort key.
type DynamoRecorder struct {
	client DynamoAPI
	table  string
}

// NewDynamoRecorder creates a DynamoDB audit recorder
func NewDynamoRecorder(client DynamoAPI, table string) *DynamoRecorder {
	return &DynamoRecorder{client: client, table: table}
}

// dynamoItem is the stored shape of an Entry
type dynamoItem struct {
	Partition string                 `dynamodbav:"pk"`
	SortKey   string                 `dynamodbav:"sk"`
	ID        string                 `dynamodbav:"id"`
	Action    string                 `dynamodbav:"action"`
	Actor     string                 `dynamodbav:"actor"`
	CompanyID string                 `dynamodbav:"company_id,omitempty"`
	Details   map[string]interface{} `dynamodbav:"details,omitempty"`
	CreatedAt time.Time              `dynamodbav:"created_at"`
}

func toItem(entry *Entry) dynamoItem {
	item := dynamoItem{
		Partition: partitionFor(entry.CompanyID),
		SortKey:   entry.CreatedAt.UTC().Format(time.RFC3339Nano) + "#" + entry.ID.String(),
		ID:        entry.ID.String(),
		Action:    string(entry.Action),
		Actor:     entry.Actor,
		Details:   entry.Details,
		CreatedAt: entry.CreatedAt,
	}
	if entry.CompanyID != nil {
		item.CompanyID = entry.CompanyID.String()
	}
	return item
}

func (i dynamoItem) toEntry() (*Entry, error) {
	id, err := uuid.Parse(i.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid audit entry id %q: %w", i.ID, err)
	}
	entry := &Entry{
		ID:        id,
		Action:    Action(i.Action),
		Actor:     i.Actor,
		Details:   i.Details,
		CreatedAt: i.CreatedAt,
	}
	if i.CompanyID != "" {
		companyID, err := uuid.Parse(i.CompanyID)
		if err != nil {
			return nil, fmt.Errorf("invalid audit company id %q: %w", i.CompanyID, err)
		}
		entry.CompanyID = &companyID
	}
	return entry, nil
}

func partitionFor(companyID *uuid.UUID) string {
	if companyID == nil {
		return globalPartition
	}
	return companyID.String()
}

func (r *DynamoRecorder) Record(ctx context.Context, entry *Entry) error {
	item, err := attributevalue.MarshalMap(toItem(entry))
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

func (r *DynamoRecorder) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	var items []map[string]types.AttributeValue

	if filter.CompanyID != nil {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.table),
			KeyConditionExpression: aws.String("pk = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: filter.CompanyID.String()},
			},
			ScanIndexForward: aws.Bool(false),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query audit entries: %w", err)
		}
		items = out.Items
	} else {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{TableName: aws.String(r.table)})
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entries: %w", err)
		}
		items = out.Items
	}

	entries := make([]*Entry, 0, len(items))
	for _, item := range items {
		var stored dynamoItem
		if err := attributevalue.UnmarshalMap(item, &stored); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit entry: %w", err)
		}
		entry, err := stored.toEntry()
		if err != nil {
			return nil, err
		}
		if filter.Action != nil && entry.Action != *filter.Action {
			continue
		}
		if filter.Actor != "" && entry.Actor != filter.Actor {
			continue
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if limit := filter.limit(); len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
