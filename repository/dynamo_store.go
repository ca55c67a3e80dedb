package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nischalstha-ns/e-commerce-sub001/models"
)

// ErrConflict reports that a conditional write lost against another writer.
var ErrConflict = errors.New("cart modified concurrently")

// DynamoHashKey is the partition key of the carts table.
const DynamoHashKey = "owner_id"

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoStore keeps each cart as one item with partition key owner_id.
type DynamoStore struct {
	client DynamoAPI
	table  string
	now    func() time.Time
}

func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{
		client: client,
		table:  table,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// DdbCart is the stored item shape. Timestamps are RFC3339Nano strings.
type DdbCart struct {
	OwnerID   string        `dynamodbav:"owner_id"`
	Items     []DdbCartItem `dynamodbav:"items"`
	CreatedAt string        `dynamodbav:"created_at"`
	UpdatedAt string        `dynamodbav:"updated_at"`
}

type DdbCartItem struct {
	ProductID     string  `dynamodbav:"product_id"`
	Quantity      int     `dynamodbav:"quantity"`
	SelectedSize  *string `dynamodbav:"selected_size"`
	SelectedColor *string `dynamodbav:"selected_color"`
	AddedAt       string  `dynamodbav:"added_at"`
}

func (d *DynamoStore) ReadCart(ctx context.Context, ownerID string) (*models.Cart, error) {
	if err := ValidateOwnerID(ownerID); err != nil {
		return nil, err
	}
	key, err := d.key(ownerID)
	if err != nil {
		return nil, err
	}
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &d.table,
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrCartNotFound
	}

	var dc DdbCart
	if err := attributevalue.UnmarshalMap(out.Item, &dc); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return dc.ToModel(), nil
}

func (d *DynamoStore) WriteCart(ctx context.Context, ownerID string, items []models.CartLineItem) (*models.Cart, error) {
	if err := validateItems(ownerID, items); err != nil {
		return nil, err
	}
	return d.update(ctx, ownerID, items, nil)
}

// DeleteLineItem is read-filter-write, guarded by a condition on the
// updated_at value that was read.
func (d *DynamoStore) DeleteLineItem(ctx context.Context, ownerID string, key models.LineItemKey) (*models.Cart, error) {
	if err := ValidateKey(ownerID, key); err != nil {
		return nil, err
	}
	cart, err := d.ReadCart(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	items, _ := withoutKey(cart.Items, key)
	prev := cart.UpdatedAt.Format(time.RFC3339Nano)
	return d.update(ctx, ownerID, items, &prev)
}

func (d *DynamoStore) Ping(ctx context.Context) error {
	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &d.table})
	return err
}

// ImportCart stores cart with its own timestamps instead of now. Used when
// copying carts from another store.
func (d *DynamoStore) ImportCart(ctx context.Context, cart *models.Cart) error {
	if err := validateItems(cart.OwnerID, cart.Items); err != nil {
		return err
	}
	key, err := d.key(cart.OwnerID)
	if err != nil {
		return err
	}
	itemsAV, err := attributevalue.Marshal(itemsToDdb(cart.Items))
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	updated := cart.UpdatedAt
	if updated.IsZero() {
		updated = d.now()
	}
	created := cart.CreatedAt
	if created.IsZero() {
		created = updated
	}

	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &d.table,
		Key:              key,
		UpdateExpression: aws.String("SET #items = :items, #updated = :now, #created = :created"),
		ExpressionAttributeNames: map[string]string{
			"#items":   "items",
			"#updated": "updated_at",
			"#created": "created_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":items":   itemsAV,
			":now":     &types.AttributeValueMemberS{Value: updated.UTC().Format(time.RFC3339Nano)},
			":created": &types.AttributeValueMemberS{Value: created.UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamodb UpdateItem failed: %w", err)
	}
	return nil
}

func (d *DynamoStore) update(ctx context.Context, ownerID string, items []models.CartLineItem, expectUpdatedAt *string) (*models.Cart, error) {
	key, err := d.key(ownerID)
	if err != nil {
		return nil, err
	}
	itemsAV, err := attributevalue.Marshal(itemsToDdb(items))
	if err != nil {
		return nil, fmt.Errorf("marshal items: %w", err)
	}
	now := d.now().Format(time.RFC3339Nano)

	input := &dynamodb.UpdateItemInput{
		TableName:        &d.table,
		Key:              key,
		UpdateExpression: aws.String("SET #items = :items, #updated = :now, #created = if_not_exists(#created, :now)"),
		ExpressionAttributeNames: map[string]string{
			"#items":   "items",
			"#updated": "updated_at",
			"#created": "created_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":items": itemsAV,
			":now":   &types.AttributeValueMemberS{Value: now},
		},
		ReturnValues: types.ReturnValueAllNew,
	}
	if expectUpdatedAt != nil {
		input.ConditionExpression = aws.String("#updated = :prev")
		input.ExpressionAttributeValues[":prev"] = &types.AttributeValueMemberS{Value: *expectUpdatedAt}
	}

	out, err := d.client.UpdateItem(ctx, input)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("dynamodb UpdateItem failed: %w", err)
	}

	var dc DdbCart
	if err := attributevalue.UnmarshalMap(out.Attributes, &dc); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return dc.ToModel(), nil
}

func (d *DynamoStore) key(ownerID string) (map[string]types.AttributeValue, error) {
	key, err := attributevalue.MarshalMap(map[string]string{DynamoHashKey: ownerID})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	return key, nil
}

// ToModel converts the stored item to the domain cart.
func (dc DdbCart) ToModel() *models.Cart {
	cart := models.NewEmptyCart(dc.OwnerID)
	if t, err := time.Parse(time.RFC3339Nano, dc.CreatedAt); err == nil {
		cart.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, dc.UpdatedAt); err == nil {
		cart.UpdatedAt = t
	}
	for _, it := range dc.Items {
		item := models.CartLineItem{
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			SelectedSize:  it.SelectedSize,
			SelectedColor: it.SelectedColor,
		}
		if t, err := time.Parse(time.RFC3339Nano, it.AddedAt); err == nil {
			item.AddedAt = t
		}
		cart.Items = append(cart.Items, item)
	}
	return cart
}

func itemsToDdb(items []models.CartLineItem) []DdbCartItem {
	out := make([]DdbCartItem, 0, len(items))
	for _, it := range items {
		out = append(out, DdbCartItem{
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			SelectedSize:  it.SelectedSize,
			SelectedColor: it.SelectedColor,
			AddedAt:       it.AddedAt.Format(time.RFC3339Nano),
		})
	}
	return out
}
