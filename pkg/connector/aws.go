package connector

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// AWSCredentials is the decrypted shape of a "aws" connector's
// credentials blob.
type AWSCredentials struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token,omitempty"`
	Region          string `json:"region"`
}

// awsClient holds the STS client built from a connector's stored
// credentials, mirroring the teacher's ambient-config Client but
// keyed to explicit, per-tenant static credentials rather than the
// process's own AWS environment.
type awsClient struct {
	Config aws.Config
	STS    *sts.Client
}

// baseEndpointOverride lets integration tests point the STS client at a
// LocalStack container instead of real AWS; left empty in production.
var baseEndpointOverride string

func newAWSClient(ctx context.Context, creds AWSCredentials) (*awsClient, error) {
	provider := credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(creds.Region),
		config.WithCredentialsProvider(provider),
	}
	if baseEndpointOverride != "" {
		opts = append(opts, config.WithBaseEndpoint(baseEndpointOverride))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("connector: load AWS config: %w", err)
	}
	return &awsClient{Config: cfg, STS: sts.NewFromConfig(cfg)}, nil
}

// verifyIdentity checks the credentials are valid and returns the
// caller's account ID, the same check the teacher runs at session
// bootstrap, run here on demand against a tenant's stored credentials.
func (c *awsClient) verifyIdentity(ctx context.Context) (string, error) {
	result, err := c.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("connector: get caller identity: %w", err)
	}
	return *result.Account, nil
}

// ValidateAWSCredentials confirms the given credentials authenticate
// against AWS STS and returns the account they resolve to.
func ValidateAWSCredentials(ctx context.Context, creds AWSCredentials) (string, error) {
	client, err := newAWSClient(ctx, creds)
	if err != nil {
		return "", err
	}
	return client.verifyIdentity(ctx)
}
