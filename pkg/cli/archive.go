package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/platinummonkey/alertdesk/pkg/audit"
)

// newUploader builds the S3 client; tests replace it
var newUploader = func(ctx context.Context, cfg audit.ArchiveConfig) (audit.ObjectUploader, error) {
	return audit.NewS3Client(ctx, cfg)
}

func newArchiveCommand(e *env) *Command {
	cmd := &Command{
		Name:        "archive-audit",
		Description: "Copy the audit trails to S3 as NDJSON (rows are kept)",
		Flags:       flag.NewFlagSet("archive-audit", flag.ContinueOnError),
	}
	cmd.Flags.SetOutput(e.out)
	bucket := cmd.Flags.String("bucket", e.cfg.Archive.Bucket, "Destination bucket")
	prefix := cmd.Flags.String("prefix", e.cfg.Archive.Prefix, "Object key prefix")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return e.runArchive(ctx, *bucket, *prefix)
	}
	return cmd
}

func (e *env) runArchive(ctx context.Context, bucket, prefix string) error {
	if bucket == "" {
		return errors.New("bucket is required (-bucket or ALERTDESK_ARCHIVE_BUCKET)")
	}

	archiveCfg := e.cfg.Archive
	archiveCfg.Bucket = bucket
	uploader, err := newUploader(ctx, archiveCfg)
	if err != nil {
		return err
	}

	_, auditLog, closeDB, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	results, err := audit.NewArchiver(auditLog, uploader, bucket, prefix).Archive(ctx)
	for _, r := range results {
		fmt.Fprintf(e.out, "s3://%s/%s  %d entries  sha256=%s\n", bucket, r.Key, r.Entries, r.Checksum)
	}
	if err != nil {
		return err
	}

	e.logger.WithField("bucket", bucket).Infof("Archived %d audit trails", len(results))
	return nil
}
