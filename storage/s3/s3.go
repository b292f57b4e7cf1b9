// Package s3 provides a storage.Provider over one S3-compatible bucket.
// Directories are key prefixes ending in "/"; Mkdir writes an empty marker
// object so empty directories survive.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marusama/semaphore/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ghyeongl/pendingfs/logging"
	"github.com/ghyeongl/pendingfs/storage"
)

// Scheme is the URI scheme of S3 entries.
const Scheme = "s3"

// DefaultConcurrency bounds in-flight requests for prefix-wide copies and
// deletes.
const DefaultConcurrency = 8

const caps = storage.CapList | storage.CapRead | storage.CapWrite | storage.CapDelete |
	storage.CapMkdir | storage.CapCopy | storage.CapMove | storage.CapDownload |
	storage.CapUpload | storage.CapContainers | storage.CapConnection |
	storage.CapMetadata | storage.CapServerSideCopy

// Config holds S3 connection settings.
type Config struct {
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint"`
	Bucket      string `mapstructure:"bucket" yaml:"bucket"`
	AccessKey   string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey   string `mapstructure:"secret_key" yaml:"-"`
	Region      string `mapstructure:"region" yaml:"region"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
}

// API is the subset of *s3.Client the provider calls.
type API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Provider implements storage.Provider on a bucket.
type Provider struct {
	storage.CapabilitySet
	api    API
	bucket string
	sem    semaphore.Semaphore
}

var _ storage.Provider = (*Provider)(nil)

// New builds a client from cfg. Static credentials are used when AccessKey
// is set; otherwise the default AWS chain applies.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	p := NewWithAPI(client, cfg.Bucket, cfg.Concurrency)
	logging.Sub("s3").Info("s3 provider ready", "bucket", cfg.Bucket, "endpoint", cfg.Endpoint, "region", cfg.Region)
	return p, nil
}

// NewWithAPI wraps an existing client. concurrency <= 0 uses
// DefaultConcurrency.
func NewWithAPI(api API, bucket string, concurrency int) *Provider {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Provider{
		CapabilitySet: storage.CapabilitySet{Set: caps},
		api:           api,
		bucket:        bucket,
		sem:           semaphore.New(concurrency),
	}
}

func (p *Provider) Scheme() string    { return Scheme }
func (p *Provider) Container() string { return p.bucket }
func (p *Provider) Close() error      { return nil }

func objectKey(name string) string {
	return storage.CleanPath(name)
}

func dirPrefix(name string) string {
	key := storage.CleanPath(name)
	if key == "" {
		return ""
	}
	return key + "/"
}

// List returns the direct children of dir.
func (p *Provider) List(ctx context.Context, dir string) ([]storage.Entry, error) {
	prefix := dirPrefix(dir)
	pager := s3.NewListObjectsV2Paginator(p.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(p.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var entries []storage.Entry
	seen := false
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, classify("list", dir, err)
		}
		for _, cp := range page.CommonPrefixes {
			seen = true
			key := strings.TrimSuffix(aws.ToString(cp.Prefix), "/")
			entries = append(entries, storage.Entry{
				ID:   key + "/",
				Name: storage.BaseName(key),
				Type: storage.Directory,
				Path: key,
			})
		}
		for _, obj := range page.Contents {
			seen = true
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			entries = append(entries, objectEntry(key, obj.Size, obj.LastModified, obj.ETag))
		}
	}
	if !seen && prefix != "" {
		return nil, storage.NewError("list", dir, storage.StatusNotFound, storage.ErrNotDirectory)
	}

	storage.SortEntries(entries)
	logging.Sub("s3").Debug("list", "bucket", p.bucket, "prefix", prefix, "count", len(entries))
	return entries, nil
}

func objectEntry(key string, size *int64, modified *time.Time, etag *string) storage.Entry {
	e := storage.Entry{
		ID:       key,
		Name:     storage.BaseName(key),
		Type:     storage.File,
		Path:     key,
		Size:     size,
		Modified: modified,
	}
	if etag != nil {
		e.Metadata = map[string]string{"etag": strings.Trim(*etag, `"`)}
	}
	return e
}

// Read streams an object.
func (p *Provider) Read(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := p.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(objectKey(name)),
	})
	if err != nil {
		return nil, classify("read", name, err)
	}
	return out.Body, nil
}

// Write uploads body as one object.
func (p *Provider) Write(ctx context.Context, name string, body io.Reader) error {
	key := objectKey(name)
	if key == "" {
		return storage.NewError("write", name, storage.StatusError, storage.ErrInvalidPath)
	}
	var data []byte
	if body != nil {
		var err error
		if data, err = io.ReadAll(body); err != nil {
			return storage.Classify("write", name, err)
		}
	}
	if err := p.put(ctx, key, data); err != nil {
		return classify("write", name, err)
	}
	logging.Sub("s3").Debug("put object", "key", key, "size", len(data))
	return nil
}

func (p *Provider) put(ctx context.Context, key string, data []byte) error {
	_, err := p.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	return err
}

// Delete removes an object, or every object below a directory prefix.
func (p *Provider) Delete(ctx context.Context, name string) error {
	key := objectKey(name)
	if key == "" {
		return storage.NewError("delete", name, storage.StatusPermissionDenied, storage.ErrInvalidPath)
	}
	isFile, err := p.headExists(ctx, key)
	if err != nil {
		return classify("delete", name, err)
	}
	if isFile && !strings.HasSuffix(name, "/") {
		if err := p.deleteKey(ctx, key); err != nil {
			return classify("delete", name, err)
		}
		logging.Sub("s3").Debug("delete object", "key", key)
		return nil
	}

	keys, err := p.keysUnder(ctx, key+"/")
	if err != nil {
		return classify("delete", name, err)
	}
	if len(keys) == 0 {
		return storage.NewError("delete", name, storage.StatusNotFound, fmt.Errorf("no such key or prefix"))
	}
	err = p.fanOut(ctx, keys, func(ctx context.Context, k string) error {
		return p.deleteKey(ctx, k)
	})
	if err != nil {
		return classify("delete", name, err)
	}
	logging.Sub("s3").Debug("delete prefix", "prefix", key+"/", "objects", len(keys))
	return nil
}

func (p *Provider) deleteKey(ctx context.Context, key string) error {
	_, err := p.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	return err
}

// Copy duplicates an object, or every object below a directory prefix,
// server side.
func (p *Provider) Copy(ctx context.Context, src, dst string) error {
	from, to := objectKey(src), objectKey(dst)
	if from == "" || to == "" {
		return storage.NewError("copy", src, storage.StatusError, storage.ErrInvalidPath)
	}
	if exists, err := p.Exists(ctx, dst); err != nil {
		return classify("copy", dst, err)
	} else if exists {
		return storage.NewError("copy", dst, storage.StatusAlreadyExists, fmt.Errorf("destination exists"))
	}

	isFile, err := p.headExists(ctx, from)
	if err != nil {
		return classify("copy", src, err)
	}
	if isFile && !strings.HasSuffix(src, "/") {
		if err := p.copyKey(ctx, from, to); err != nil {
			return classify("copy", src, err)
		}
		logging.Sub("s3").Debug("copy object", "src", from, "dst", to)
		return nil
	}

	if strings.HasPrefix(to+"/", from+"/") {
		return storage.NewError("copy", dst, storage.StatusError, fmt.Errorf("destination inside source %s", src))
	}
	keys, err := p.keysUnder(ctx, from+"/")
	if err != nil {
		return classify("copy", src, err)
	}
	if len(keys) == 0 {
		return storage.NewError("copy", src, storage.StatusNotFound, fmt.Errorf("no such key or prefix"))
	}
	err = p.fanOut(ctx, keys, func(ctx context.Context, k string) error {
		return p.copyKey(ctx, k, to+"/"+strings.TrimPrefix(k, from+"/"))
	})
	if err != nil {
		return classify("copy", src, err)
	}
	logging.Sub("s3").Debug("copy prefix", "src", from+"/", "dst", to+"/", "objects", len(keys))
	return nil
}

func (p *Provider) copyKey(ctx context.Context, src, dst string) error {
	_, err := p.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(p.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String(p.bucket + "/" + src),
	})
	return err
}

// Move is a copy followed by a delete of the source.
func (p *Provider) Move(ctx context.Context, src, dst string) error {
	if objectKey(src) == objectKey(dst) {
		return storage.NewError("move", dst, storage.StatusError, fmt.Errorf("destination is source"))
	}
	if err := p.Copy(ctx, src, dst); err != nil {
		return storage.Classify("move", src, err)
	}
	if err := p.Delete(ctx, src); err != nil {
		return storage.Classify("move", src, err)
	}
	return nil
}

// Mkdir writes an empty "name/" marker.
func (p *Provider) Mkdir(ctx context.Context, name string) error {
	key := objectKey(name)
	if key == "" {
		return storage.NewError("mkdir", name, storage.StatusAlreadyExists, fmt.Errorf("bucket root"))
	}
	exists, err := p.Exists(ctx, key)
	if err != nil {
		return classify("mkdir", name, err)
	}
	if exists {
		return storage.NewError("mkdir", name, storage.StatusAlreadyExists, fmt.Errorf("already exists"))
	}
	if err := p.put(ctx, key+"/", nil); err != nil {
		return classify("mkdir", name, err)
	}
	return nil
}

// Exists reports whether name is an object or a non-empty prefix.
func (p *Provider) Exists(ctx context.Context, name string) (bool, error) {
	key := objectKey(name)
	if key == "" {
		return true, nil
	}
	ok, err := p.headExists(ctx, key)
	if err != nil || ok {
		return ok, err
	}
	return p.prefixExists(ctx, key+"/")
}

// GetMetadata heads an object, falling back to prefix detection.
func (p *Provider) GetMetadata(ctx context.Context, name string) (*storage.Entry, error) {
	key := objectKey(name)
	if key == "" {
		return &storage.Entry{ID: "", Name: p.bucket, Type: storage.Bucket}, nil
	}
	out, err := p.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		e := objectEntry(key, out.ContentLength, out.LastModified, out.ETag)
		if out.ContentType != nil {
			if e.Metadata == nil {
				e.Metadata = map[string]string{}
			}
			e.Metadata["content-type"] = *out.ContentType
		}
		return &e, nil
	}
	if storage.StatusOf(classify("metadata", name, err)) != storage.StatusNotFound {
		return nil, classify("metadata", name, err)
	}
	ok, err := p.prefixExists(ctx, key+"/")
	if err != nil {
		return nil, classify("metadata", name, err)
	}
	if !ok {
		return nil, storage.NewError("metadata", name, storage.StatusNotFound, fmt.Errorf("no such key or prefix"))
	}
	return &storage.Entry{ID: key + "/", Name: storage.BaseName(key), Type: storage.Directory, Path: key}, nil
}

func (p *Provider) headExists(ctx context.Context, key string) (bool, error) {
	_, err := p.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if storage.StatusOf(classify("head", key, err)) == storage.StatusNotFound {
		return false, nil
	}
	return false, err
}

func (p *Provider) prefixExists(ctx context.Context, prefix string) (bool, error) {
	out, err := p.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, err
	}
	return len(out.Contents) > 0, nil
}

func (p *Provider) keysUnder(ctx context.Context, prefix string) ([]string, error) {
	pager := s3.NewListObjectsV2Paginator(p.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(prefix),
	})
	var keys []string
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// fanOut runs fn for every key with at most the provider's concurrency in
// flight. The first failure cancels the rest.
func (p *Provider) fanOut(ctx context.Context, keys []string, fn func(context.Context, string) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, k := range keys {
		if err := p.sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer p.sem.Release(1)
			return fn(gctx, k)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
