package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	StorageClass    string
}

// Archive is the closed-order receipt archive, an S3-compatible bucket
// (Cloudflare R2 in production). Receipts are written once and never
// mutated; retrieval is by presigned link.
type Archive struct {
	bucket       string
	storageClass string
	client       *s3.Client
}

func NewArchive(ctx context.Context, cfg Config) (*Archive, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("object store endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "auto"
	}

	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...any) (aws.Endpoint, error) {
		if service == s3.ServiceID {
			return aws.Endpoint{URL: endpoint, HostnameImmutable: true}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			strings.TrimSpace(cfg.AccessKeyID),
			strings.TrimSpace(cfg.SecretAccessKey),
			"",
		)),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Cloudflare R2 (S3-compatible) generally requires path-style.
		o.UsePathStyle = true
	})

	return &Archive{
		bucket:       strings.TrimSpace(cfg.Bucket),
		storageClass: strings.TrimSpace(cfg.StorageClass),
		client:       client,
	}, nil
}

// ReceiptKey is the canonical archive key for an order's receipt.
func ReceiptKey(orderID int64, closedAt time.Time) string {
	return fmt.Sprintf("receipts/%s/order-%d.pdf", closedAt.UTC().Format("2006/01/02"), orderID)
}

func (a *Archive) Put(ctx context.Context, key string, body []byte, contentType string) error {
	key = strings.TrimLeft(key, "/")
	ct := strings.TrimSpace(contentType)
	if ct == "" {
		ct = "application/octet-stream"
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(ct),
	}
	if sc := parseStorageClass(a.storageClass); sc != nil {
		input.StorageClass = *sc
	}

	_, err := a.client.PutObject(ctx, input)
	return err
}

func (a *Archive) Get(ctx context.Context, key string) ([]byte, error) {
	key = strings.TrimLeft(key, "/")
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// PresignGet returns a time-limited download link for an archived receipt.
func (a *Archive) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	key = strings.TrimLeft(key, "/")
	if expires <= 0 {
		expires = 15 * time.Minute
	}

	p := s3.NewPresignClient(a.client)
	out, err := p.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

func parseStorageClass(v string) *types.StorageClass {
	v = strings.TrimSpace(strings.ToUpper(v))
	if v == "" {
		return nil
	}
	sc := types.StorageClass(v)
	return &sc
}
