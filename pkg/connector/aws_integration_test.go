//go:build integration

package connector

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
)

// TestValidateAWSCredentials_Integration is a hermetic test: it brings
// its own cloud. Requires Docker.
func TestValidateAWSCredentials_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := localstack.RunContainer(ctx,
		testcontainers.WithImage("localstack/localstack:3.0"),
	)
	if err != nil {
		t.Fatalf("failed to start LocalStack: %v", err)
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	}()

	endpoint, err := container.PortEndpoint(ctx, "4566/tcp", "http")
	if err != nil {
		t.Fatalf("failed to get endpoint: %v", err)
	}

	baseEndpointOverride = endpoint
	defer func() { baseEndpointOverride = "" }()

	account, err := ValidateAWSCredentials(ctx, AWSCredentials{
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Region:          "us-east-1",
	})
	if err != nil {
		t.Fatalf("ValidateAWSCredentials against LocalStack: %v", err)
	}
	if account == "" {
		t.Error("expected a non-empty account ID from LocalStack STS")
	}
}
