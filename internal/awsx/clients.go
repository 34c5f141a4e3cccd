package awsx

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	ce "github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/qbusiness"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// ---------------------------------------------------------------------------
// Per-service client interfaces
//
// Each interface covers only the operations used by this project. Using narrow
// interfaces instead of the full SDK clients makes mocking in unit tests
// trivial: create a struct that satisfies the interface and return canned data.
// ---------------------------------------------------------------------------

// STSClient is the subset of STS operations used by the loader.
type STSClient interface {
	GetCallerIdentity(
		ctx context.Context,
		params *sts.GetCallerIdentityInput,
		optFns ...func(*sts.Options),
	) (*sts.GetCallerIdentityOutput, error)
}

// OrganizationsClient covers the Organizations operations used by the
// account directory.
type OrganizationsClient interface {
	ListAccounts(
		ctx context.Context,
		params *organizations.ListAccountsInput,
		optFns ...func(*organizations.Options),
	) (*organizations.ListAccountsOutput, error)
}

// IAMClient covers the IAM operations used for account alias resolution.
type IAMClient interface {
	ListAccountAliases(
		ctx context.Context,
		params *iam.ListAccountAliasesInput,
		optFns ...func(*iam.Options),
	) (*iam.ListAccountAliasesOutput, error)
}

// SNSClient covers the SNS operations used by the notification sink.
type SNSClient interface {
	Publish(
		ctx context.Context,
		params *sns.PublishInput,
		optFns ...func(*sns.Options),
	) (*sns.PublishOutput, error)
}

// CloudWatchClient covers the CloudWatch operations used for root-cause
// metric checks and pipeline cycle metrics.
type CloudWatchClient interface {
	GetMetricStatistics(
		ctx context.Context,
		params *cloudwatch.GetMetricStatisticsInput,
		optFns ...func(*cloudwatch.Options),
	) (*cloudwatch.GetMetricStatisticsOutput, error)

	PutMetricData(
		ctx context.Context,
		params *cloudwatch.PutMetricDataInput,
		optFns ...func(*cloudwatch.Options),
	) (*cloudwatch.PutMetricDataOutput, error)
}

// CostExplorerClient covers the Cost Explorer operations used by cost-impact
// analysis.
type CostExplorerClient interface {
	GetCostAndUsage(
		ctx context.Context,
		params *ce.GetCostAndUsageInput,
		optFns ...func(*ce.Options),
	) (*ce.GetCostAndUsageOutput, error)
}

// EC2Client covers the EC2 operations used for alert-time usage verification.
type EC2Client interface {
	DescribeInstances(
		ctx context.Context,
		params *ec2.DescribeInstancesInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeInstancesOutput, error)

	DescribeVolumes(
		ctx context.Context,
		params *ec2.DescribeVolumesInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeVolumesOutput, error)
}

// LambdaClient covers the Lambda operations used for usage verification.
type LambdaClient interface {
	ListFunctions(
		ctx context.Context,
		params *lambda.ListFunctionsInput,
		optFns ...func(*lambda.Options),
	) (*lambda.ListFunctionsOutput, error)
}

// QBusinessClient covers the Q Business operations used by the document sink.
type QBusinessClient interface {
	BatchPutDocument(
		ctx context.Context,
		params *qbusiness.BatchPutDocumentInput,
		optFns ...func(*qbusiness.Options),
	) (*qbusiness.BatchPutDocumentOutput, error)
}

// DynamoDBClient covers the DynamoDB operations used by the account cache.
type DynamoDBClient interface {
	GetItem(
		ctx context.Context,
		params *dynamodb.GetItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.GetItemOutput, error)

	PutItem(
		ctx context.Context,
		params *dynamodb.PutItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.PutItemOutput, error)
}

// ---------------------------------------------------------------------------
// ClientSet and ClientFactory
// ---------------------------------------------------------------------------

// ClientSet holds fully initialised AWS service clients for one resolved
// configuration. All fields are interfaces so they can be replaced with mocks
// in tests without importing the AWS SDK in test files.
type ClientSet struct {
	STS           STSClient
	Organizations OrganizationsClient
	IAM           IAMClient
	SNS           SNSClient
	CloudWatch    CloudWatchClient
	CostExplorer  CostExplorerClient
	EC2           EC2Client
	Lambda        LambdaClient
	QBusiness     QBusinessClient
	DynamoDB      DynamoDBClient
}

// ClientFactory creates a ClientSet from an aws.Config.
// Swap this in tests to inject mock clients.
type ClientFactory func(cfg aws.Config) *ClientSet

// NewClientSet is the production ClientFactory. It constructs real AWS SDK
// clients from cfg. Cost Explorer and Organizations are always pointed at
// us-east-1 because they are global services only reachable in that region.
func NewClientSet(cfg aws.Config) *ClientSet {
	globalCfg := cfg
	globalCfg.Region = "us-east-1"

	return &ClientSet{
		STS:           sts.NewFromConfig(cfg),
		Organizations: organizations.NewFromConfig(globalCfg),
		IAM:           iam.NewFromConfig(cfg),
		SNS:           sns.NewFromConfig(cfg),
		CloudWatch:    cloudwatch.NewFromConfig(cfg),
		CostExplorer:  ce.NewFromConfig(globalCfg),
		EC2:           ec2.NewFromConfig(cfg),
		Lambda:        lambda.NewFromConfig(cfg),
		QBusiness:     qbusiness.NewFromConfig(cfg),
		DynamoDB:      dynamodb.NewFromConfig(cfg),
	}
}
