package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"puzzle-pals-server/apperrors"
)

// Dynamo is the DynamoDB-backed Store. All attributes are stored as string
// (S) values.
type Dynamo struct {
	client *dynamodb.Client
}

var _ Store = (*Dynamo)(nil)

// DynamoOptions configure the DynamoDB client. Endpoint and the static
// credentials are for local development (DynamoDB Local); leave them empty
// to use the default AWS credential chain.
type DynamoOptions struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewDynamo builds a DynamoDB client from the options.
func NewDynamo(ctx context.Context, opts DynamoOptions) (*Dynamo, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return &Dynamo{client: client}, nil
}

// marshal converts an Item to DynamoDB string attributes.
func marshal(item Item) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = &types.AttributeValueMemberS{Value: v}
	}
	return out
}

// unmarshal converts DynamoDB attributes back to an Item, keeping only
// string values (the service never writes anything else).
func unmarshal(attrs map[string]types.AttributeValue) Item {
	out := make(Item, len(attrs))
	for k, v := range attrs {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			out[k] = s.Value
		}
	}
	return out
}

func marshalKey(t Table, key Key) map[string]types.AttributeValue {
	out := map[string]types.AttributeValue{
		t.PartitionKey: &types.AttributeValueMemberS{Value: key.Partition},
	}
	if t.SortKey != "" {
		out[t.SortKey] = &types.AttributeValueMemberS{Value: key.Sort}
	}
	return out
}

// projection builds a ProjectionExpression with aliased names, since several
// attributes (Status, UID) collide with DynamoDB reserved words.
func projection(fields []string) (expr *string, names map[string]string) {
	if len(fields) == 0 {
		return nil, nil
	}
	names = make(map[string]string, len(fields))
	parts := make([]string, len(fields))
	for i, f := range fields {
		alias := fmt.Sprintf("#p%d", i)
		names[alias] = f
		parts[i] = alias
	}
	return aws.String(strings.Join(parts, ", ")), names
}

// wrapErr maps SDK failures onto the shared sentinels.
func wrapErr(op string, err error) error {
	var cond *types.ConditionalCheckFailedException
	if errors.As(err, &cond) {
		return fmt.Errorf("%w: %s", apperrors.ErrConflict, op)
	}
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, r := range canceled.CancellationReasons {
			if r.Code != nil && *r.Code == "ConditionalCheckFailed" {
				return fmt.Errorf("%w: %s", apperrors.ErrConflict, op)
			}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %v", apperrors.ErrUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Put writes an item unconditionally.
func (d *Dynamo) Put(ctx context.Context, t Table, item Item) error {
	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.Name),
		Item:      marshal(item),
	})
	if err != nil {
		return wrapErr("put "+t.Name, err)
	}
	return nil
}

// PutIfAbsent writes the item conditioned on the partition key not existing
// yet; an existing item surfaces as ErrConflict.
func (d *Dynamo) PutIfAbsent(ctx context.Context, t Table, item Item) error {
	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(t.Name),
		Item:                marshal(item),
		ConditionExpression: aws.String(fmt.Sprintf("attribute_not_exists(%s)", t.PartitionKey)),
	})
	if err != nil {
		return wrapErr("put-if-absent "+t.Name, err)
	}
	return nil
}

// Get reads one item; ErrNotFound when absent.
func (d *Dynamo) Get(ctx context.Context, t Table, key Key, fields ...string) (Item, error) {
	expr, names := projection(fields)
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(t.Name),
		Key:                      marshalKey(t, key),
		ProjectionExpression:     expr,
		ExpressionAttributeNames: names,
	})
	if err != nil {
		return nil, wrapErr("get "+t.Name, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%w: %s %v", apperrors.ErrNotFound, t.Name, key)
	}
	return unmarshal(out.Item), nil
}

// batchGetMaxKeys is the BatchGetItem request limit imposed by DynamoDB.
const batchGetMaxKeys = 100

// splitBatch takes at most max keys off the front of pending.
func splitBatch(pending []map[string]types.AttributeValue, max int) (chunk, rest []map[string]types.AttributeValue) {
	if len(pending) <= max {
		return pending, nil
	}
	return pending[:max], pending[max:]
}

// BatchGet reads many items, requesting at most batchGetMaxKeys per call and
// re-requesting unprocessed keys until the backend has answered all of them.
// Missing keys are simply absent.
func (d *Dynamo) BatchGet(ctx context.Context, t Table, keys []Key, fields ...string) ([]Item, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	expr, names := projection(fields)
	pending := make([]map[string]types.AttributeValue, len(keys))
	for i, k := range keys {
		pending[i] = marshalKey(t, k)
	}

	var items []Item
	for len(pending) > 0 {
		chunk, rest := splitBatch(pending, batchGetMaxKeys)
		out, err := d.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: map[string]types.KeysAndAttributes{
				t.Name: {
					Keys:                     chunk,
					ProjectionExpression:     expr,
					ExpressionAttributeNames: names,
				},
			},
		})
		if err != nil {
			return nil, wrapErr("batch-get "+t.Name, err)
		}
		for _, attrs := range out.Responses[t.Name] {
			items = append(items, unmarshal(attrs))
		}
		pending = rest
		if kaa, ok := out.UnprocessedKeys[t.Name]; ok {
			pending = append(pending, kaa.Keys...)
		}
	}
	return items, nil
}

// Query reads one partition (or index partition) with the optional sort-key
// condition and equality filters, following pagination to exhaustion.
func (d *Dynamo) Query(ctx context.Context, t Table, q Query) ([]Item, error) {
	names := map[string]string{"#pk": t.PartitionKey}
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: q.Partition},
	}
	sortKey := t.SortKey
	if q.Index != nil {
		names["#pk"] = q.Index.PartitionKey
		sortKey = q.Index.SortKey
	}

	keyCond := "#pk = :pk"
	switch q.Sort {
	case SortEquals:
		names["#sk"] = sortKey
		values[":sk"] = &types.AttributeValueMemberS{Value: q.SortValue}
		keyCond += " AND #sk = :sk"
	case SortBetween:
		names["#sk"] = sortKey
		values[":sklo"] = &types.AttributeValueMemberS{Value: q.SortValue}
		values[":skhi"] = &types.AttributeValueMemberS{Value: q.SortUpper}
		keyCond += " AND #sk BETWEEN :sklo AND :skhi"
	case SortBeginsWith:
		names["#sk"] = sortKey
		values[":sk"] = &types.AttributeValueMemberS{Value: q.SortValue}
		keyCond += " AND begins_with(#sk, :sk)"
	}

	var filterExpr *string
	if len(q.Filter) > 0 {
		parts := make([]string, 0, len(q.Filter))
		i := 0
		for k, v := range q.Filter {
			alias := fmt.Sprintf("#f%d", i)
			names[alias] = k
			values[fmt.Sprintf(":f%d", i)] = &types.AttributeValueMemberS{Value: v}
			parts = append(parts, fmt.Sprintf("%s = :f%d", alias, i))
			i++
		}
		filterExpr = aws.String(strings.Join(parts, " AND "))
	}

	projExpr, projNames := projection(q.Fields)
	for alias, f := range projNames {
		names[alias] = f
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(t.Name),
		KeyConditionExpression:    aws.String(keyCond),
		FilterExpression:          filterExpr,
		ProjectionExpression:      projExpr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}
	if q.Index != nil {
		input.IndexName = aws.String(q.Index.Name)
	}
	if q.Limit > 0 {
		input.Limit = aws.Int32(int32(q.Limit))
	}

	var items []Item
	for {
		out, err := d.client.Query(ctx, input)
		if err != nil {
			return nil, wrapErr("query "+t.Name, err)
		}
		for _, attrs := range out.Items {
			items = append(items, unmarshal(attrs))
		}
		if q.Limit > 0 && len(items) >= q.Limit {
			return items[:q.Limit], nil
		}
		if out.LastEvaluatedKey == nil {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// updateExpression renders "SET #u0 = :u0, ..." for the given attributes.
func updateExpression(set Item) (string, map[string]string, map[string]types.AttributeValue) {
	names := make(map[string]string, len(set))
	values := make(map[string]types.AttributeValue, len(set))
	parts := make([]string, 0, len(set))
	i := 0
	for k, v := range set {
		alias := fmt.Sprintf("#u%d", i)
		names[alias] = k
		values[fmt.Sprintf(":u%d", i)] = &types.AttributeValueMemberS{Value: v}
		parts = append(parts, fmt.Sprintf("%s = :u%d", alias, i))
		i++
	}
	return "SET " + strings.Join(parts, ", "), names, values
}

// Update sets attributes on an existing item; ErrConflict if it is absent.
func (d *Dynamo) Update(ctx context.Context, t Table, key Key, set Item) error {
	expr, names, values := updateExpression(set)
	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.Name),
		Key:                       marshalKey(t, key),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String(fmt.Sprintf("attribute_exists(%s)", t.PartitionKey)),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return wrapErr("update "+t.Name, err)
	}
	return nil
}

// TransactWrite submits all ops as one TransactWriteItems call; a failed
// per-op condition cancels the whole set and surfaces as ErrConflict.
func (d *Dynamo) TransactWrite(ctx context.Context, ops ...TransactOp) error {
	items := make([]types.TransactWriteItem, len(ops))
	for i, op := range ops {
		cond := conditionFor(op)
		switch op.Kind {
		case TransactPut:
			items[i] = types.TransactWriteItem{Put: &types.Put{
				TableName:           aws.String(op.Table.Name),
				Item:                marshal(op.Item),
				ConditionExpression: cond,
			}}
		case TransactUpdate:
			expr, names, values := updateExpression(op.Item)
			items[i] = types.TransactWriteItem{Update: &types.Update{
				TableName:                 aws.String(op.Table.Name),
				Key:                       marshalKey(op.Table, op.Key),
				UpdateExpression:          aws.String(expr),
				ConditionExpression:       cond,
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
			}}
		case TransactDelete:
			items[i] = types.TransactWriteItem{Delete: &types.Delete{
				TableName:           aws.String(op.Table.Name),
				Key:                 marshalKey(op.Table, op.Key),
				ConditionExpression: cond,
			}}
		}
	}

	_, err := d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		return wrapErr("transact-write", err)
	}
	return nil
}

func conditionFor(op TransactOp) *string {
	pk := op.Table.PartitionKey
	sk := op.Table.SortKey
	switch op.Precondition {
	case PrecondExists:
		if sk != "" {
			return aws.String(fmt.Sprintf("attribute_exists(%s) AND attribute_exists(%s)", pk, sk))
		}
		return aws.String(fmt.Sprintf("attribute_exists(%s)", pk))
	case PrecondNotExists:
		if sk != "" {
			return aws.String(fmt.Sprintf("attribute_not_exists(%s)", sk))
		}
		return aws.String(fmt.Sprintf("attribute_not_exists(%s)", pk))
	default:
		return nil
	}
}

// Close is a no-op; the SDK client holds no long-lived resources of its own.
func (d *Dynamo) Close() {}
