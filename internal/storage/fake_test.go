package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is an in-memory single table understanding just the
// expressions the store issues.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	pageSize int

	transactCalls int
	batchCalls    int
	putCalls      int

	transactErr error
	// failBatchCall makes the Nth BatchWriteItem call (1-based) fail.
	failBatchCall int
	// unprocessedCalls makes that many calls apply only their first request.
	unprocessedCalls int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func itemKey(item map[string]types.AttributeValue) string {
	return str(item["PK"]) + "|" + str(item["SK"])
}

func (f *fakeDynamo) sortedItems() []map[string]types.AttributeValue {
	keys := make([]string, 0, len(f.items))
	for k := range f.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]map[string]types.AttributeValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, f.items[k])
	}
	return out
}

func (f *fakeDynamo) page(all []map[string]types.AttributeValue, start map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue) {
	if start != nil {
		startKey := itemKey(start)
		for i, it := range all {
			if itemKey(it) == startKey {
				all = all[i+1:]
				break
			}
		}
	}
	if f.pageSize > 0 && len(all) > f.pageSize {
		last := all[f.pageSize-1]
		return all[:f.pageSize], map[string]types.AttributeValue{"PK": last["PK"], "SK": last["SK"]}
	}
	return all, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	f.items[itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := str(in.ExpressionAttributeValues[":pk"])
	prefix := str(in.ExpressionAttributeValues[":prefix"])
	var matched []map[string]types.AttributeValue
	for _, it := range f.sortedItems() {
		if str(it["PK"]) == pk && strings.HasPrefix(str(it["SK"]), prefix) {
			matched = append(matched, it)
		}
	}
	items, last := f.page(matched, in.ExclusiveStartKey)
	return &dynamodb.QueryOutput{Items: items, LastEvaluatedKey: last, Count: int32(len(items))}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// DynamoDB filters after paging, so pages may come back short.
	items, last := f.page(f.sortedItems(), in.ExclusiveStartKey)
	var kept []map[string]types.AttributeValue
	for _, it := range items {
		if sk, ok := in.ExpressionAttributeValues[":sk"]; ok && str(it["SK"]) != str(sk) {
			continue
		}
		if st, ok := in.ExpressionAttributeValues[":status"]; ok && str(it["status"]) != str(st) {
			continue
		}
		kept = append(kept, it)
	}
	return &dynamodb.ScanOutput{Items: kept, LastEvaluatedKey: last}, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactCalls++
	if f.transactErr != nil {
		return nil, f.transactErr
	}
	if len(in.TransactItems) > MaxTransactItems {
		return nil, errors.New("ValidationException: too many items")
	}
	seen := map[string]bool{}
	for _, ti := range in.TransactItems {
		var k string
		switch {
		case ti.Put != nil:
			k = itemKey(ti.Put.Item)
		case ti.Delete != nil:
			k = itemKey(ti.Delete.Key)
		}
		if seen[k] {
			return nil, fmt.Errorf("ValidationException: duplicate key %s", k)
		}
		seen[k] = true
	}
	for _, ti := range in.TransactItems {
		switch {
		case ti.Put != nil:
			f.items[itemKey(ti.Put.Item)] = ti.Put.Item
		case ti.Delete != nil:
			delete(f.items, itemKey(ti.Delete.Key))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	if f.failBatchCall == f.batchCalls {
		return nil, errors.New("ProvisionedThroughputExceededException")
	}
	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}
	for table, reqs := range in.RequestItems {
		if len(reqs) > BatchSize {
			return nil, errors.New("ValidationException: too many requests")
		}
		apply := reqs
		if f.unprocessedCalls > 0 {
			f.unprocessedCalls--
			apply = reqs[:1]
			if len(reqs) > 1 {
				out.UnprocessedItems[table] = reqs[1:]
			}
		}
		for _, r := range apply {
			switch {
			case r.PutRequest != nil:
				f.items[itemKey(r.PutRequest.Item)] = r.PutRequest.Item
			case r.DeleteRequest != nil:
				delete(f.items, itemKey(r.DeleteRequest.Key))
			}
		}
	}
	return out, nil
}

func (f *fakeDynamo) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{TableName: in.TableName}}, nil
}
