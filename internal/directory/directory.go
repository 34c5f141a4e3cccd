// Package directory enumerates the organization's member accounts and
// enriches them with metadata. It is a read-through listing abstraction:
// callers see one flat slice; pagination and the optional metadata cache are
// internal concerns.
package directory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/awsx"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
)

// Directory lists and resolves organization accounts.
type Directory interface {
	// ListActiveAccounts returns an immutable snapshot of every ACTIVE
	// account in the organization.
	ListActiveAccounts(ctx context.Context) ([]models.Account, error)

	// GetAccount resolves one account by id, consulting the metadata cache
	// first when one is configured.
	GetAccount(ctx context.Context, id string) (models.Account, error)
}

// DefaultDirectory is the production Directory backed by AWS Organizations,
// with IAM alias resolution and an optional DynamoDB read-through cache.
type DefaultDirectory struct {
	orgs  awsx.OrganizationsClient
	iam   awsx.IAMClient
	cache *AccountCache
	log   *zap.Logger
}

// New constructs a directory. cache may be nil to disable caching entirely;
// every lookup then goes straight to Organizations.
func New(orgs awsx.OrganizationsClient, iamClient awsx.IAMClient, cache *AccountCache, log *zap.Logger) *DefaultDirectory {
	return &DefaultDirectory{orgs: orgs, iam: iamClient, cache: cache, log: log}
}

// ListActiveAccounts pages through Organizations ListAccounts and returns
// the ACTIVE subset. Suspended and closing accounts are dropped: their
// trails no longer deliver and alerting on them is noise.
func (d *DefaultDirectory) ListActiveAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account

	var nextToken *string
	for {
		out, err := d.orgs.ListAccounts(ctx, &organizations.ListAccountsInput{
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("list organization accounts: %w", err)
		}

		for _, acct := range out.Accounts {
			if acct.Status != orgtypes.AccountStatusActive {
				continue
			}
			accounts = append(accounts, toModel(acct))
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	return accounts, nil
}

// GetAccount resolves one account by id. Cache failures are non-fatal: the
// directory logs and falls through to Organizations, then back-fills the
// cache best-effort.
func (d *DefaultDirectory) GetAccount(ctx context.Context, id string) (models.Account, error) {
	if d.cache != nil {
		acct, ok, err := d.cache.Get(ctx, id)
		if err != nil {
			d.log.Warn("account cache read failed", zap.String("account", id), zap.Error(err))
		} else if ok {
			return acct, nil
		}
	}

	accounts, err := d.ListActiveAccounts(ctx)
	if err != nil {
		return models.Account{}, err
	}
	for _, acct := range accounts {
		if acct.ID != id {
			continue
		}
		if d.cache != nil {
			if err := d.cache.Put(ctx, acct); err != nil {
				d.log.Warn("account cache write failed", zap.String("account", id), zap.Error(err))
			}
		}
		return acct, nil
	}
	return models.Account{}, fmt.Errorf("account %s not found in organization", id)
}

// ManagementAlias returns the IAM account alias of the calling (management)
// account, or "" when none is set. Used to label reports and documents.
func (d *DefaultDirectory) ManagementAlias(ctx context.Context) (string, error) {
	out, err := d.iam.ListAccountAliases(ctx, &iam.ListAccountAliasesInput{})
	if err != nil {
		return "", fmt.Errorf("list account aliases: %w", err)
	}
	if len(out.AccountAliases) == 0 {
		return "", nil
	}
	return out.AccountAliases[0], nil
}

func toModel(acct orgtypes.Account) models.Account {
	return models.Account{
		ID:     aws.ToString(acct.Id),
		Name:   aws.ToString(acct.Name),
		Email:  aws.ToString(acct.Email),
		Status: models.AccountStatus(acct.Status),
	}
}
