package directory

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
)

type mockOrganizations struct {
	pages []*organizations.ListAccountsOutput
	calls int
	err   error
}

func (m *mockOrganizations) ListAccounts(_ context.Context, _ *organizations.ListAccountsInput, _ ...func(*organizations.Options)) (*organizations.ListAccountsOutput, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	page := m.pages[0]
	if len(m.pages) > 1 {
		m.pages = m.pages[1:]
	}
	return page, nil
}

type mockIAM struct {
	aliases []string
	err     error
}

func (m *mockIAM) ListAccountAliases(_ context.Context, _ *iam.ListAccountAliasesInput, _ ...func(*iam.Options)) (*iam.ListAccountAliasesOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &iam.ListAccountAliasesOutput{AccountAliases: m.aliases}, nil
}

type mockDynamoDB struct {
	items  map[string]map[string]ddbtypes.AttributeValue
	getErr error
	putErr error
	puts   int
}

func (m *mockDynamoDB) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	key := in.Key["accountId"].(*ddbtypes.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: m.items[key]}, nil
}

func (m *mockDynamoDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.puts++
	if m.putErr != nil {
		return nil, m.putErr
	}
	if m.items == nil {
		m.items = make(map[string]map[string]ddbtypes.AttributeValue)
	}
	key := in.Item["accountId"].(*ddbtypes.AttributeValueMemberS).Value
	m.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func orgAccount(id, name string, status orgtypes.AccountStatus) orgtypes.Account {
	return orgtypes.Account{
		Id:     aws.String(id),
		Name:   aws.String(name),
		Email:  aws.String(name + "@example.com"),
		Status: status,
	}
}

func TestListActiveAccounts(t *testing.T) {
	orgs := &mockOrganizations{pages: []*organizations.ListAccountsOutput{
		{
			Accounts: []orgtypes.Account{
				orgAccount("111111111111", "prod-payments", orgtypes.AccountStatusActive),
				orgAccount("222222222222", "retired", orgtypes.AccountStatusSuspended),
			},
			NextToken: aws.String("page-2"),
		},
		{
			Accounts: []orgtypes.Account{
				orgAccount("333333333333", "dev-sandbox", orgtypes.AccountStatusActive),
			},
		},
	}}
	dir := New(orgs, &mockIAM{}, nil, zap.NewNop())

	accounts, err := dir.ListActiveAccounts(context.Background())
	if err != nil {
		t.Fatalf("ListActiveAccounts: %v", err)
	}
	if orgs.calls != 2 {
		t.Errorf("ListAccounts called %d times; want 2 pages", orgs.calls)
	}
	if len(accounts) != 2 {
		t.Fatalf("got %d accounts; want the 2 active ones", len(accounts))
	}
	if accounts[0].ID != "111111111111" || accounts[0].Name != "prod-payments" {
		t.Errorf("first account = %+v", accounts[0])
	}
	if accounts[1].ID != "333333333333" {
		t.Errorf("second account = %+v", accounts[1])
	}
	for _, a := range accounts {
		if a.Status != models.AccountStatusActive {
			t.Errorf("account %s status = %s", a.ID, a.Status)
		}
	}
}

func TestGetAccount_NoCache(t *testing.T) {
	orgs := &mockOrganizations{pages: []*organizations.ListAccountsOutput{{
		Accounts: []orgtypes.Account{
			orgAccount("111111111111", "prod-payments", orgtypes.AccountStatusActive),
		},
	}}}
	dir := New(orgs, &mockIAM{}, nil, zap.NewNop())

	acct, err := dir.GetAccount(context.Background(), "111111111111")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct.Name != "prod-payments" {
		t.Errorf("Name = %q", acct.Name)
	}

	if _, err := dir.GetAccount(context.Background(), "999999999999"); err == nil {
		t.Fatal("expected an error for an unknown account")
	}
}

func TestGetAccount_CacheHitSkipsOrganizations(t *testing.T) {
	ddb := &mockDynamoDB{}
	cache := NewAccountCache(ddb, "account-cache", 0)
	if err := cache.Put(context.Background(), models.Account{
		ID: "111111111111", Name: "prod-payments", Status: models.AccountStatusActive,
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	orgs := &mockOrganizations{err: errors.New("should not be called")}
	dir := New(orgs, &mockIAM{}, cache, zap.NewNop())

	acct, err := dir.GetAccount(context.Background(), "111111111111")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct.Name != "prod-payments" {
		t.Errorf("Name = %q", acct.Name)
	}
	if orgs.calls != 0 {
		t.Errorf("Organizations called %d times on a cache hit", orgs.calls)
	}
}

func TestGetAccount_CacheFailureFallsThrough(t *testing.T) {
	ddb := &mockDynamoDB{getErr: errors.New("table unavailable"), putErr: errors.New("table unavailable")}
	cache := NewAccountCache(ddb, "account-cache", 0)
	orgs := &mockOrganizations{pages: []*organizations.ListAccountsOutput{{
		Accounts: []orgtypes.Account{
			orgAccount("111111111111", "prod-payments", orgtypes.AccountStatusActive),
		},
	}}}
	dir := New(orgs, &mockIAM{}, cache, zap.NewNop())

	acct, err := dir.GetAccount(context.Background(), "111111111111")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct.Name != "prod-payments" {
		t.Errorf("Name = %q", acct.Name)
	}
}

func TestGetAccount_MissBackfillsCache(t *testing.T) {
	ddb := &mockDynamoDB{}
	cache := NewAccountCache(ddb, "account-cache", 0)
	orgs := &mockOrganizations{pages: []*organizations.ListAccountsOutput{{
		Accounts: []orgtypes.Account{
			orgAccount("111111111111", "prod-payments", orgtypes.AccountStatusActive),
		},
	}}}
	dir := New(orgs, &mockIAM{}, cache, zap.NewNop())

	if _, err := dir.GetAccount(context.Background(), "111111111111"); err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if ddb.puts != 1 {
		t.Errorf("cache Put called %d times; want backfill", ddb.puts)
	}

	if _, err := dir.GetAccount(context.Background(), "111111111111"); err != nil {
		t.Fatalf("GetAccount (cached): %v", err)
	}
	if orgs.calls != 1 {
		t.Errorf("Organizations called %d times; want the second lookup cached", orgs.calls)
	}
}

func TestCacheGet_ExpiredEntryIsAMiss(t *testing.T) {
	ddb := &mockDynamoDB{}
	cache := NewAccountCache(ddb, "account-cache", time.Hour)
	if err := cache.Put(context.Background(), models.Account{ID: "111111111111", Name: "prod-payments"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	cache.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, ok, err := cache.Get(context.Background(), "111111111111")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expired entry served as a hit")
	}
}

func TestCachePut_WritesTTL(t *testing.T) {
	ddb := &mockDynamoDB{}
	cache := NewAccountCache(ddb, "account-cache", time.Hour)
	fixed := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return fixed }

	if err := cache.Put(context.Background(), models.Account{ID: "111111111111"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	item := ddb.items["111111111111"]
	ttl, ok := item["ttl"].(*ddbtypes.AttributeValueMemberN)
	if !ok {
		t.Fatal("no ttl attribute written")
	}
	want := strconv.FormatInt(fixed.Add(time.Hour).Unix(), 10)
	if ttl.Value != want {
		t.Errorf("ttl = %s; want %s", ttl.Value, want)
	}
}

func TestManagementAlias(t *testing.T) {
	dir := New(&mockOrganizations{}, &mockIAM{aliases: []string{"acme-management"}}, nil, zap.NewNop())
	alias, err := dir.ManagementAlias(context.Background())
	if err != nil {
		t.Fatalf("ManagementAlias: %v", err)
	}
	if alias != "acme-management" {
		t.Errorf("alias = %q", alias)
	}

	none := New(&mockOrganizations{}, &mockIAM{}, nil, zap.NewNop())
	alias, err = none.ManagementAlias(context.Background())
	if err != nil {
		t.Fatalf("ManagementAlias: %v", err)
	}
	if alias != "" {
		t.Errorf("alias = %q; want empty", alias)
	}
}
