package archive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/asboyob/hassio-google-drive-backup/internal/config"
)

// S3Archive is an S3-backed implementation of the engine.Archive interface.
// Each snapshot is one object under the configured prefix; the record's
// appProperties travel as object metadata, so listing needs one HeadObject
// per snapshot but the content is never touched.
type S3Archive struct {
	name     string
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3Archive creates an S3 archive from configuration. Credentials come
// from the config when set, otherwise from the default AWS chain.
func NewS3Archive(ctx context.Context, cfg config.ArchiveConfig) (*S3Archive, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Archive{
		name:     cfg.Name,
		bucket:   cfg.S3Bucket,
		prefix:   cfg.S3Prefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (a *S3Archive) key(id string) string { return a.prefix + id }

// List returns the raw records of every archived snapshot.
func (a *S3Archive) List(ctx context.Context) ([]map[string]any, error) {
	var records []map[string]any

	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(a.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing objects: %w", err)
		}
		for _, obj := range page.Contents {
			id := strings.TrimPrefix(aws.ToString(obj.Key), a.prefix)
			head, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
				Bucket: aws.String(a.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				return nil, fmt.Errorf("reading metadata of %s: %w", id, err)
			}
			props := make(map[string]string, len(head.Metadata))
			for k, v := range head.Metadata {
				props[k] = v
			}
			records = append(records, map[string]any{
				"id":            id,
				"size":          aws.ToInt64(head.ContentLength),
				"appProperties": props,
			})
		}
	}
	return records, nil
}

// Upload streams snapshot content into a new object carrying the properties
// as metadata, and returns the created raw record. The multipart uploader
// does not need the size up front, so size is ignored here.
func (a *S3Archive) Upload(ctx context.Context, props map[string]string, r io.Reader, size int64) (map[string]any, error) {
	id := uuid.New().String()

	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(a.bucket),
		Key:      aws.String(a.key(id)),
		Body:     r,
		Metadata: props,
	})
	if err != nil {
		return nil, fmt.Errorf("uploading object: %w", err)
	}

	head, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(id)),
	})
	if err != nil {
		return nil, fmt.Errorf("reading back uploaded object: %w", err)
	}

	owned := make(map[string]string, len(props))
	for k, v := range props {
		owned[k] = v
	}
	return map[string]any{
		"id":            id,
		"size":          aws.ToInt64(head.ContentLength),
		"appProperties": owned,
	}, nil
}

// Download writes the content identified by id to w.
func (a *S3Archive) Download(ctx context.Context, id string, w io.Writer) error {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(id)),
	})
	if err != nil {
		return fmt.Errorf("fetching object %s: %w", id, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading object %s: %w", id, err)
	}
	return nil
}

// Delete removes the object.
func (a *S3Archive) Delete(ctx context.Context, id string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(id)),
	})
	if err != nil {
		return fmt.Errorf("deleting object %s: %w", id, err)
	}
	return nil
}

// SetRetained rewrites the retained property via a same-key copy with
// replaced metadata; S3 has no way to update metadata in place.
func (a *S3Archive) SetRetained(ctx context.Context, id string, retained bool) error {
	head, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(id)),
	})
	if err != nil {
		return fmt.Errorf("reading metadata of %s: %w", id, err)
	}

	metadata := make(map[string]string, len(head.Metadata))
	for k, v := range head.Metadata {
		metadata[k] = v
	}
	metadata["retained"] = fmt.Sprintf("%t", retained)

	_, err = a.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(a.bucket),
		CopySource:        aws.String(a.bucket + "/" + a.key(id)),
		Key:               aws.String(a.key(id)),
		Metadata:          metadata,
		MetadataDirective: types.MetadataDirectiveReplace,
	})
	if err != nil {
		return fmt.Errorf("rewriting metadata of %s: %w", id, err)
	}
	return nil
}

// ValidateSetup verifies that the bucket is reachable.
func (a *S3Archive) ValidateSetup(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", a.bucket, err)
	}
	return nil
}
