// Package files stores user uploads in S3 and their metadata in DynamoDB.
package files

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

// DocumentClient is the subset of the DynamoDB API used for file metadata.
type DocumentClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// MetadataStore keeps one item per file, keyed by (userId, fileId).
type MetadataStore struct {
	client DocumentClient
	table  string
}

func NewMetadataStore(client DocumentClient, table string) *MetadataStore {
	return &MetadataStore{client: client, table: table}
}

func (s *MetadataStore) key(userID, fileID string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"userId": &ddbtypes.AttributeValueMemberS{Value: userID},
		"fileId": &ddbtypes.AttributeValueMemberS{Value: fileID},
	}
}

func (s *MetadataStore) Put(ctx context.Context, meta *types.FileMetadata) error {
	item, err := attributevalue.MarshalMap(meta)
	if err != nil {
		return fmt.Errorf("files: marshal metadata: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("files: put metadata %s: %w", meta.FileID, err)
	}
	return nil
}

// Get returns nil without error when the user has no such file.
func (s *MetadataStore) Get(ctx context.Context, userID, fileID string) (*types.FileMetadata, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(userID, fileID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("files: get metadata %s: %w", fileID, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var meta types.FileMetadata
	if err := attributevalue.UnmarshalMap(out.Item, &meta); err != nil {
		return nil, fmt.Errorf("files: decode metadata %s: %w", fileID, err)
	}
	return &meta, nil
}

func (s *MetadataStore) Delete(ctx context.Context, userID, fileID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(userID, fileID),
	})
	if err != nil {
		return fmt.Errorf("files: delete metadata %s: %w", fileID, err)
	}
	return nil
}

// ListByUser returns every file of userID, newest upload first.
func (s *MetadataStore) ListByUser(ctx context.Context, userID string) ([]types.FileMetadata, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("userId = :uid"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":uid": &ddbtypes.AttributeValueMemberS{Value: userID},
		},
	})

	files := []types.FileMetadata{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("files: list metadata for %s: %w", userID, err)
		}
		var batch []types.FileMetadata
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("files: decode metadata list: %w", err)
		}
		files = append(files, batch...)
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].UploadTimestamp.After(files[j].UploadTimestamp)
	})
	return files, nil
}
