package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/biaslens/evalcore/detect"
	"github.com/biaslens/evalcore/vault"
)

// s3API is the slice of the S3 client the collector uses; narrowed for tests.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// ObjectStoreCollector ships evidence to an S3-compatible bucket.
//
// Key layout: evidence/{sanitizedRunId}/{sanitizedTestCaseId}/{iteration}-{sanitizedRefId}.json
type ObjectStoreCollector struct {
	client s3API
	bucket string
}

// NewObjectStore builds a collector from decrypted credentials.
func NewObjectStore(ctx context.Context, creds *vault.StoredCredentials) (*ObjectStoreCollector, error) {
	region := creds.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, Classify(0, "failed to initialize object store client", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if creds.Endpoint != "" {
			o.BaseEndpoint = aws.String(creds.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &ObjectStoreCollector{client: client, bucket: creds.Bucket}, nil
}

// StorageType implements Collector.
func (c *ObjectStoreCollector) StorageType() string { return StorageObjectStore }

// StoreEvidence implements Collector. Writes are idempotent: re-putting the
// same key overwrites with identical content.
func (c *ObjectStoreCollector) StoreEvidence(ctx context.Context, data EvidenceData) (ReferenceInfo, error) {
	key := fmt.Sprintf("evidence/%s/%s/%d-%s.json",
		detect.SanitizeID(data.EvaluationRunID),
		detect.SanitizeID(data.TestCaseID),
		data.Iteration,
		detect.SanitizeID(data.ReferenceID))

	body, err := json.Marshal(data)
	if err != nil {
		return ReferenceInfo{}, Classify(400, "failed to encode evidence payload", err)
	}

	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"reference-id":      data.ReferenceID,
			"evaluation-run-id": data.EvaluationRunID,
			"test-case-id":      data.TestCaseID,
			"iteration":         fmt.Sprintf("%d", data.Iteration),
		},
	})
	if err != nil {
		return ReferenceInfo{}, classifyAWSErr("put object", err)
	}

	return ReferenceInfo{
		ReferenceID:     data.ReferenceID,
		StorageLocation: fmt.Sprintf("s3://%s/%s", c.bucket, key),
		StorageType:     StorageObjectStore,
	}, nil
}

// TestConnection implements Collector: verifies the bucket exists and that a
// small test object can be written.
func (c *ObjectStoreCollector) TestConnection(ctx context.Context) error {
	if _, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return classifyAWSErr("head bucket", err)
	}

	key := fmt.Sprintf("evidence/.connection-test-%s", uuid.NewString())
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader([]byte(`{"connectionTest":true}`)),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return classifyAWSErr("test object write", err)
	}
	return nil
}

func classifyAWSErr(op string, err error) *CollectorError {
	status := 0
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}

	message := "object store " + op + " failed"
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		// Service error codes like NoSuchBucket or AccessDenied carry more
		// signal than the transport status alone.
		message = fmt.Sprintf("%s (%s)", message, apiErr.ErrorCode())
	}
	return Classify(status, message, err)
}
