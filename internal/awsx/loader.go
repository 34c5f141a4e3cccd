// Package awsx loads AWS SDK v2 configuration and exposes narrow,
// mock-friendly client interfaces for every AWS service the pipeline touches.
// It is the sole entry point for AWS credential management; no other package
// constructs SDK clients directly.
package awsx

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Session is a resolved AWS environment: the SDK configuration, the caller's
// account id, and the initialised service clients. It is the unit passed into
// component constructors.
type Session struct {
	// AccountID is the resolved AWS account ID for the active credentials
	// (via STS).
	AccountID string

	// Region is the region the configuration resolved to.
	Region string

	// Config is the fully loaded AWS SDK v2 configuration.
	Config aws.Config

	// Clients holds initialised service clients.
	Clients *ClientSet
}

// Loader resolves AWS credentials into a Session.
//
// Implementations must use the AWS SDK v2 only. Never shell out to the aws CLI.
type Loader interface {
	Load(ctx context.Context, region string) (*Session, error)
}

// DefaultLoader is the production Loader. It uses the SDK's default
// credential chain (environment, shared config, instance/task role).
//
// Inject a custom ClientFactory via NewLoaderWithFactory to replace real SDK
// clients with mocks in unit tests.
type DefaultLoader struct {
	factory ClientFactory
}

// NewLoader returns a loader backed by the real AWS SDK.
func NewLoader() *DefaultLoader {
	return &DefaultLoader{factory: NewClientSet}
}

// NewLoaderWithFactory returns a loader that uses f to create its ClientSet.
// Pass a mock factory in tests.
func NewLoaderWithFactory(f ClientFactory) *DefaultLoader {
	return &DefaultLoader{factory: f}
}

// Load resolves the default credential chain, pins the region, and returns a
// Session with the caller's account id resolved through STS.
func (l *DefaultLoader) Load(ctx context.Context, region string) (*Session, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	clients := l.factory(cfg)

	accountID, err := resolveAccountID(ctx, clients.STS)
	if err != nil {
		return nil, fmt.Errorf("resolve caller account ID: %w", err)
	}

	return &Session{
		AccountID: accountID,
		Region:    cfg.Region,
		Config:    cfg,
		Clients:   clients,
	}, nil
}

// resolveAccountID calls STS GetCallerIdentity to retrieve the numeric AWS
// account ID for the credentials currently loaded in stsClient.
func resolveAccountID(ctx context.Context, stsClient STSClient) (string, error) {
	out, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("STS GetCallerIdentity: %w", err)
	}
	if out.Account == nil {
		return "", fmt.Errorf("STS GetCallerIdentity returned nil account")
	}
	return aws.ToString(out.Account), nil
}
