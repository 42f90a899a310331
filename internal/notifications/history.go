package notifications

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"cloudnotes/internal/types"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

// ItemQuerier abstracts the DynamoDB Query operation. It is satisfied by
// *dynamodb.Client and accepted by dynamodb.NewQueryPaginator.
type ItemQuerier interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// HistoryStore reads the audit log.
type HistoryStore struct {
	client ItemQuerier
	table  string
}

func NewHistoryStore(client ItemQuerier, table string) *HistoryStore {
	return &HistoryStore{client: client, table: table}
}

// ListByRecipient returns up to limit records for userID, newest first.
// The sort key is a random id, so ordering happens after reading the whole
// partition.
func (s *HistoryStore) ListByRecipient(ctx context.Context, userID string, limit int) ([]types.NotificationRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("recipientUserId = :uid"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":uid": &ddbtypes.AttributeValueMemberS{Value: userID},
		},
	})

	var records []types.NotificationRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("notifications: query history for %s: %w", userID, err)
		}
		var batch []types.NotificationRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("notifications: decode history: %w", err)
		}
		records = append(records, batch...)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	if len(records) > limit {
		records = records[:limit]
	}
	if records == nil {
		records = []types.NotificationRecord{}
	}
	return records, nil
}
