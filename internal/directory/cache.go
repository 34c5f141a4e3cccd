package directory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/awsx"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
)

// defaultCacheTTL bounds staleness of cached account metadata. Account
// names and emails change rarely; an hour keeps Organizations traffic low
// without serving long-dead entries.
const defaultCacheTTL = time.Hour

// AccountCache is a DynamoDB-backed metadata cache keyed by account id, with
// a TTL attribute so the table expires entries on its own.
type AccountCache struct {
	client awsx.DynamoDBClient
	table  string
	ttl    time.Duration

	// now is injectable for tests.
	now func() time.Time
}

// NewAccountCache builds a cache over the named table. ttl <= 0 selects the
// default.
func NewAccountCache(client awsx.DynamoDBClient, table string, ttl time.Duration) *AccountCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &AccountCache{client: client, table: table, ttl: ttl, now: time.Now}
}

// Get returns the cached account and true on a hit. Entries past their TTL
// are treated as misses even if DynamoDB has not expired them yet.
func (c *AccountCache) Get(ctx context.Context, id string) (models.Account, bool, error) {
	out, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.table),
		Key: map[string]ddbtypes.AttributeValue{
			"accountId": &ddbtypes.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return models.Account{}, false, fmt.Errorf("cache get %s: %w", id, err)
	}
	if out.Item == nil {
		return models.Account{}, false, nil
	}

	if exp, ok := numberAttr(out.Item, "ttl"); ok && exp <= c.now().Unix() {
		return models.Account{}, false, nil
	}

	return models.Account{
		ID:     id,
		Name:   stringAttr(out.Item, "accountName"),
		Email:  stringAttr(out.Item, "accountEmail"),
		Status: models.AccountStatus(stringAttr(out.Item, "accountStatus")),
	}, true, nil
}

// Put upserts one account's metadata with a fresh TTL.
func (c *AccountCache) Put(ctx context.Context, acct models.Account) error {
	expires := c.now().Add(c.ttl).Unix()
	_, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item: map[string]ddbtypes.AttributeValue{
			"accountId":     &ddbtypes.AttributeValueMemberS{Value: acct.ID},
			"accountName":   &ddbtypes.AttributeValueMemberS{Value: acct.Name},
			"accountEmail":  &ddbtypes.AttributeValueMemberS{Value: acct.Email},
			"accountStatus": &ddbtypes.AttributeValueMemberS{Value: string(acct.Status)},
			"lastUpdated":   &ddbtypes.AttributeValueMemberS{Value: c.now().UTC().Format(time.RFC3339)},
			"ttl":           &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(expires, 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("cache put %s: %w", acct.ID, err)
	}
	return nil
}

func stringAttr(item map[string]ddbtypes.AttributeValue, key string) string {
	if v, ok := item[key].(*ddbtypes.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func numberAttr(item map[string]ddbtypes.AttributeValue, key string) (int64, bool) {
	v, ok := item[key].(*ddbtypes.AttributeValueMemberN)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v.Value, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
