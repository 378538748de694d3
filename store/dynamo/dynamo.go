package dynamo

import (
	"context"
	"fmt"

	"github.com/zlnvch/sessionq/store"
)

type DynamoRunStore struct {
	client    dynamoClient
	tableName string
}

func NewDynamoRunStore(ctx context.Context, devMode bool, dynamodbEndpoint string, tableName string) (*DynamoRunStore, error) {
	client, err := newDynamoDBClient(context.Background(), devMode, dynamodbEndpoint)
	if err != nil {
		return nil, err
	}

	tables, err := getTables(client, ctx)
	if err != nil {
		return nil, err
	}

	foundTable := false
	for _, table := range tables {
		if table == tableName {
			foundTable = true
			break
		}
	}
	if !foundTable {
		return nil, fmt.Errorf("given table name '%s' not found in dynamodb", tableName)
	}

	return &DynamoRunStore{client: client, tableName: tableName}, nil
}

func (runStore *DynamoRunStore) RecordSessionResult(ctx context.Context, result store.SessionResult) error {
	return putItem(runStore, ctx, sessionResultToDynamo(result))
}

func (runStore *DynamoRunStore) GetSessionResult(ctx context.Context, sessionID string) (store.SessionResult, error) {
	dr, err := getItem[dynamoSessionResult](runStore, ctx, "SESSION#"+sessionID, "RESULT", true)
	if err != nil {
		return store.SessionResult{}, err
	}

	return sessionResultFromDynamo(dr), nil
}
