// Package storagemeter measures the bytes an organization actually stores in
// S3 and reconciles the cached storage counter of the quota engine with it.
//
// The cached counter drifts when uploads or deletions bypass
// AddStorageUsage (failed requests, manual bucket cleanup). Reconcile applies
// the difference as a relative update, so it never overwrites concurrent
// increments with a stale absolute value.
package storagemeter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"

	"github.com/opsdesk/platform/pkg/logger"
	"github.com/opsdesk/platform/pkg/quota"
)

const bytesPerMb = 1024 * 1024

var (
	ErrInvalidConfig     = errors.New("storagemeter: bucket and region are required")
	ErrFailedToLoadAWS   = errors.New("storagemeter: failed to load aws config")
	ErrBucketNotFound    = errors.New("storagemeter: bucket not found")
	ErrAccessDenied      = errors.New("storagemeter: access denied")
	ErrFailedToListUsage = errors.New("storagemeter: failed to list objects")
)

// ListClient is the S3 operation the meter needs. *s3.Client implements it.
type ListClient interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Meter sums object sizes per organization prefix.
type Meter struct {
	client       ListClient
	bucket       string
	prefixFormat string
	log          *slog.Logger
}

// Option configures a Meter.
type Option func(*meterOptions)

type meterOptions struct {
	client          ListClient
	log             *slog.Logger
	s3ClientOptions []func(*s3.Options)
}

// WithClient sets a pre-configured client, mostly for tests.
func WithClient(client ListClient) Option {
	return func(o *meterOptions) { o.client = client }
}

// WithLogger sets the logger used by Reconcile.
func WithLogger(l *slog.Logger) Option {
	return func(o *meterOptions) { o.log = l }
}

// WithS3ClientOption adds a custom S3 client option.
func WithS3ClientOption(opt func(*s3.Options)) Option {
	return func(o *meterOptions) { o.s3ClientOptions = append(o.s3ClientOptions, opt) }
}

// New creates a Meter. Without WithClient it builds an S3 client from cfg
// and the default AWS configuration chain.
func New(ctx context.Context, cfg Config, opts ...Option) (*Meter, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}

	o := &meterOptions{log: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	client := o.client
	if client == nil {
		awsOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			awsOpts = append(awsOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
			))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, awsOpts...)
		if err != nil {
			return nil, errors.Join(ErrFailedToLoadAWS, err)
		}
		client = s3.NewFromConfig(awsCfg, func(so *s3.Options) {
			if cfg.Endpoint != "" {
				so.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			so.UsePathStyle = cfg.ForcePathStyle
			for _, opt := range o.s3ClientOptions {
				opt(so)
			}
		})
	}

	prefix := cfg.PrefixFormat
	if prefix == "" {
		prefix = "orgs/%d/"
	}

	return &Meter{
		client:       client,
		bucket:       cfg.Bucket,
		prefixFormat: prefix,
		log:          o.log,
	}, nil
}

// Prefix returns the key prefix holding the organization's objects.
func (m *Meter) Prefix(orgID int64) string {
	return fmt.Sprintf(m.prefixFormat, orgID)
}

// UsageMb returns the organization's stored bytes in MB, rounded up.
func (m *Meter) UsageMb(ctx context.Context, orgID int64) (int64, error) {
	paginator := s3.NewListObjectsV2Paginator(m.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.bucket),
		Prefix: aws.String(m.Prefix(orgID)),
	})

	var total int64
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, classifyS3Error(err)
		}
		for _, obj := range page.Contents {
			total += aws.ToInt64(obj.Size)
		}
	}
	return bytesToMb(total), nil
}

// StorageAccount is the part of the quota service Reconcile drives.
// *quota.Service implements it.
type StorageAccount interface {
	EnsureLimits(ctx context.Context, orgID int64) error
	GetLimits(ctx context.Context, orgID int64) (*quota.OrganizationLimits, error)
	AddStorageUsage(ctx context.Context, orgID int64, deltaMb int64) error
}

// Reconcile measures actual usage and applies actual-cached to the storage
// counter. It returns the applied delta.
func (m *Meter) Reconcile(ctx context.Context, acct StorageAccount, orgID int64) (int64, error) {
	if err := acct.EnsureLimits(ctx, orgID); err != nil {
		return 0, err
	}

	actual, err := m.UsageMb(ctx, orgID)
	if err != nil {
		return 0, err
	}
	limits, err := acct.GetLimits(ctx, orgID)
	if err != nil {
		return 0, err
	}

	delta := actual - limits.CurrentStorageMb
	if delta == 0 {
		return 0, nil
	}
	if err := acct.AddStorageUsage(ctx, orgID, delta); err != nil {
		return 0, err
	}

	m.log.InfoContext(ctx, "storage usage reconciled",
		logger.OrganizationID(orgID),
		slog.Int64("cached_mb", limits.CurrentStorageMb),
		slog.Int64("actual_mb", actual),
	)
	return delta, nil
}

// ReconcileAll reconciles several organizations with at most concurrency
// requests in flight. It stops at the first error.
func (m *Meter) ReconcileAll(ctx context.Context, acct StorageAccount, orgIDs []int64, concurrency int) (map[int64]int64, error) {
	deltas := make([]int64, len(orgIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i, orgID := range orgIDs {
		g.Go(func() error {
			d, err := m.Reconcile(gctx, acct, orgID)
			if err != nil {
				return fmt.Errorf("reconcile organization %d: %w", orgID, err)
			}
			deltas[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make(map[int64]int64, len(orgIDs))
	for i, orgID := range orgIDs {
		result[orgID] = deltas[i]
	}
	return result, nil
}

func bytesToMb(b int64) int64 {
	return (b + bytesPerMb - 1) / bytesPerMb
}

func classifyS3Error(err error) error {
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return errors.Join(ErrBucketNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket":
			return errors.Join(ErrBucketNotFound, err)
		case "AccessDenied":
			return errors.Join(ErrAccessDenied, err)
		}
	}
	return errors.Join(ErrFailedToListUsage, err)
}
