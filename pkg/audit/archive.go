package audit

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/alertdesk/pkg/observability"
)

// ArchiveConfig configures the S3 destination for audit archives
type ArchiveConfig struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
	Prefix       string `yaml:"prefix"`
}

// NewS3Client creates an S3 client for cfg, using static credentials when
// both keys are set and the default credential chain otherwise
func NewS3Client(ctx context.Context, cfg ArchiveConfig) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	}), nil
}

// ObjectUploader is the part of the S3 API the archiver needs
type ObjectUploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ArchiveResult describes one uploaded trail
type ArchiveResult struct {
	Trail    Trail
	Key      string
	Entries  int
	Checksum string
}

// Archiver copies the audit trails to object storage as NDJSON. It only
// reads the audit tables; archived rows stay in the database.
type Archiver struct {
	reader   Reader
	uploader ObjectUploader
	bucket   string
	prefix   string
	now      func() time.Time
}

// NewArchiver creates an archiver writing to bucket under prefix
func NewArchiver(reader Reader, uploader ObjectUploader, bucket, prefix string) *Archiver {
	if prefix == "" {
		prefix = "audit"
	}
	return &Archiver{
		reader:   reader,
		uploader: uploader,
		bucket:   bucket,
		prefix:   prefix,
		now:      time.Now,
	}
}

// Archive uploads one object per trail and returns what was written
func (a *Archiver) Archive(ctx context.Context) (results []ArchiveResult, err error) {
	ctx, span := observability.StartSpan(ctx, "audit.Archive", attribute.String("s3.bucket", a.bucket))
	defer func() { observability.EndSpan(span, err) }()

	stamp := a.now().UTC().Format("20060102T150405Z")

	for _, trail := range []Trail{TrailOverrides, TrailRoles, TrailAPIKeys} {
		var buf bytes.Buffer
		n, err := a.collect(ctx, trail, &buf)
		if err != nil {
			return results, fmt.Errorf("failed to read %s trail: %w", trail, err)
		}

		sum := sha256.Sum256(buf.Bytes())
		checksum := hex.EncodeToString(sum[:])
		key := path.Join(a.prefix, stamp, string(trail)+".ndjson")

		_, err = a.uploader.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(buf.Bytes()),
			ContentType: aws.String("application/x-ndjson"),
			Metadata: map[string]string{
				"checksum-sha256": checksum,
				"entries":         fmt.Sprintf("%d", n),
			},
		})
		if err != nil {
			return results, fmt.Errorf("failed to upload %s: %w", key, err)
		}

		results = append(results, ArchiveResult{Trail: trail, Key: key, Entries: n, Checksum: checksum})
	}

	return results, nil
}

// collect writes every entry of trail to buf as NDJSON, oldest page last
func (a *Archiver) collect(ctx context.Context, trail Trail, buf *bytes.Buffer) (int, error) {
	encoder := json.NewEncoder(buf)
	filter := Filter{Limit: MaxLimit}
	written := 0

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		var rows []interface{}
		var total int64
		switch trail {
		case TrailOverrides:
			page, err := a.reader.QueryOverrides(ctx, filter)
			if err != nil {
				return written, err
			}
			for _, e := range page.Entries {
				rows = append(rows, e)
			}
			total = page.Total
		case TrailRoles:
			page, err := a.reader.QueryRoleChanges(ctx, filter)
			if err != nil {
				return written, err
			}
			for _, e := range page.Entries {
				rows = append(rows, e)
			}
			total = page.Total
		case TrailAPIKeys:
			page, err := a.reader.QueryAPIKeyEvents(ctx, filter)
			if err != nil {
				return written, err
			}
			for _, e := range page.Entries {
				rows = append(rows, e)
			}
			total = page.Total
		default:
			return written, fmt.Errorf("unknown trail %q", trail)
		}

		for _, row := range rows {
			if err := encoder.Encode(row); err != nil {
				return written, fmt.Errorf("failed to encode entry: %w", err)
			}
		}
		written += len(rows)

		if len(rows) < filter.Limit || int64(written) >= total {
			return written, nil
		}
		filter.Offset += len(rows)
	}
}
