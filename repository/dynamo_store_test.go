package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nischalstha-ns/e-commerce-sub001/models"
	"github.com/nischalstha-ns/e-commerce-sub001/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fake DynamoDB table ----

// fakeDynamo understands the update expressions DynamoStore issues.
type fakeDynamo struct {
	mu        sync.Mutex
	items     map[string]map[string]types.AttributeValue
	getErr    error
	updateErr error
	// beforeUpdate runs before the condition check, to simulate a racing writer.
	beforeUpdate func(f *fakeDynamo)
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func ownerOf(key map[string]types.AttributeValue) string {
	if s, ok := key["owner_id"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: copyAV(f.items[ownerOf(in.Key)])}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.beforeUpdate != nil {
		f.beforeUpdate(f)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	owner := ownerOf(in.Key)
	cur, ok := f.items[owner]
	if in.ConditionExpression != nil {
		prev := in.ExpressionAttributeValues[":prev"].(*types.AttributeValueMemberS).Value
		got, _ := cur["updated_at"].(*types.AttributeValueMemberS)
		if !ok || got == nil || got.Value != prev {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	if !ok {
		cur = map[string]types.AttributeValue{"owner_id": &types.AttributeValueMemberS{Value: owner}}
		f.items[owner] = cur
	}
	now := in.ExpressionAttributeValues[":now"]
	cur["items"] = in.ExpressionAttributeValues[":items"]
	cur["updated_at"] = now
	if created, ok := in.ExpressionAttributeValues[":created"]; ok {
		cur["created_at"] = created
	} else if _, ok := cur["created_at"]; !ok {
		cur["created_at"] = now
	}
	return &dynamodb.UpdateItemOutput{Attributes: copyAV(cur)}, nil
}

func (f *fakeDynamo) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{TableName: in.TableName}}, nil
}

func copyAV(src map[string]types.AttributeValue) map[string]types.AttributeValue {
	if src == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// ---- tests ----

func TestDynamoStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) repository.CartStore {
		return repository.NewDynamoStore(newFakeDynamo(), "carts")
	})
}

func TestDynamoStore_DeleteConflict(t *testing.T) {
	fake := newFakeDynamo()
	store := repository.NewDynamoStore(fake, "carts")
	ctx := context.Background()

	_, err := store.WriteCart(ctx, "u1", []models.CartLineItem{item("p1", 1, nil, nil)})
	require.NoError(t, err)

	fake.beforeUpdate = func(f *fakeDynamo) {
		f.mu.Lock()
		f.items["u1"]["updated_at"] = &types.AttributeValueMemberS{Value: "racing-writer"}
		f.mu.Unlock()
	}

	_, err = store.DeleteLineItem(ctx, "u1", models.NewLineItemKey("p1", nil, nil))
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestDynamoStore_BackendError(t *testing.T) {
	fake := newFakeDynamo()
	fake.getErr = errors.New("throttled")
	store := repository.NewDynamoStore(fake, "carts")

	_, err := store.ReadCart(context.Background(), "u1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrCartNotFound)
}

func TestDynamoStore_Ping(t *testing.T) {
	store := repository.NewDynamoStore(newFakeDynamo(), "carts")
	assert.NoError(t, store.Ping(context.Background()))
}

func TestDynamoStore_ImportCartKeepsTimestamps(t *testing.T) {
	store := repository.NewDynamoStore(newFakeDynamo(), "carts")
	ctx := context.Background()
	created := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	err := store.ImportCart(ctx, &models.Cart{
		OwnerID:   "u1",
		Items:     []models.CartLineItem{item("p1", 2, strPtr("M"), nil), item("p2", 1, nil, nil)},
		CreatedAt: created,
		UpdatedAt: updated,
	})
	require.NoError(t, err)

	got, err := store.ReadCart(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.True(t, updated.Equal(got.UpdatedAt))
	require.Len(t, got.Items, 2)
	assert.Equal(t, "p1", got.Items[0].ProductID)

	err = store.ImportCart(ctx, &models.Cart{OwnerID: ""})
	assert.ErrorIs(t, err, repository.ErrInvalidIdentifier)
}
