package database

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbpkg "github.com/nischalstha-ns/e-commerce-sub001/pkg/dynamodb"
	"github.com/nischalstha-ns/e-commerce-sub001/repository"
)

// NewDynamoClient builds the DynamoDB client and, when create is set,
// makes sure the carts table exists.
func NewDynamoClient(ctx context.Context, cfg sdkaws.Config, table string, create bool) (*dynamodb.Client, error) {
	client := ddbpkg.NewClientFromConfig(cfg)
	if !create {
		return client, nil
	}
	if err := ddbpkg.EnsureTable(ctx, client, table, repository.DynamoHashKey, time.Minute); err != nil {
		return nil, fmt.Errorf("ensure table %s: %w", table, err)
	}
	return client, nil
}
