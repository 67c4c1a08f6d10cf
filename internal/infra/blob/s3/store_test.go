package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"vivariumcore/internal/blob/blobtest"
	"vivariumcore/internal/blob/core"
)

type fakeObject struct {
	body        []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

// fakeBucket mimics the S3 object API in memory, returning one key per list page when
// pageSize is 1 so pagination is exercised.
type fakeBucket struct {
	mu       sync.Mutex
	objects  map[string]fakeObject
	pageSize int
	headErr  error
	listed   int
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string]fakeObject{}, pageSize: 1}
}

func (b *fakeBucket) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.headErr != nil {
		return nil, b.headErr
	}
	obj, ok := b.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.body))),
		ContentType:   aws.String(obj.contentType),
		ETag:          aws.String(`"etag-` + aws.ToString(in.Key) + `"`),
		Metadata:      obj.metadata,
		LastModified:  aws.Time(obj.modified),
	}, nil
}

func (b *fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.body)),
		ContentLength: aws.Int64(int64(len(obj.body))),
		ContentType:   aws.String(obj.contentType),
		Metadata:      obj.metadata,
		LastModified:  aws.Time(obj.modified),
	}, nil
}

func (b *fakeBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[aws.ToString(in.Key)] = fakeObject{
		body:        body,
		contentType: aws.ToString(in.ContentType),
		metadata:    in.Metadata,
		modified:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	return &s3.PutObjectOutput{}, nil
}

func (b *fakeBucket) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (b *fakeBucket) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listed++
	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	start := 0
	if in.ContinuationToken != nil {
		start, _ = strconv.Atoi(*in.ContinuationToken)
	}
	end := len(keys)
	if b.pageSize > 0 && start+b.pageSize < end {
		end = start + b.pageSize
	}
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(b.objects[k].body))),
			LastModified: aws.Time(b.objects[k].modified),
		})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func TestS3StoreContract(t *testing.T) {
	blobtest.RunStoreContract(t, func(*testing.T) core.Store {
		return &Store{api: newFakeBucket(), bucket: "vivarium"}
	})
}

func TestListFollowsContinuationTokens(t *testing.T) {
	bucket := newFakeBucket()
	store := &Store{api: bucket, bucket: "vivarium"}
	ctx := context.Background()
	for _, key := range []string{"exports/1", "exports/2", "exports/3"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	infos, err := store.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 3 || bucket.listed != 3 {
		t.Fatalf("got %d infos over %d pages", len(infos), bucket.listed)
	}
}

func TestHeadTrimsETagAndMapsErrors(t *testing.T) {
	bucket := newFakeBucket()
	store := &Store{api: bucket, bucket: "vivarium"}
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("abc"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	info, err := store.Head(ctx, "k")
	if err != nil || info.ETag != "etag-k" || info.Size != 3 {
		t.Fatalf("head = %+v, %v", info, err)
	}
	bucket.headErr = errors.New("throttled")
	if _, err := store.Head(ctx, "k"); err == nil || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected raw error, got %v", err)
	}
	if _, err := store.Put(ctx, "k2", strings.NewReader("x"), core.PutOptions{}); err == nil || errors.Is(err, core.ErrExists) {
		t.Fatalf("expected put to surface head failure, got %v", err)
	}
	if _, err := store.Delete(ctx, "k"); err == nil {
		t.Fatalf("expected delete to surface head failure")
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestPresignWithStaticCredentials(t *testing.T) {
	store, err := New(context.Background(), Config{
		Bucket:          "vivarium",
		Region:          "eu-west-2",
		Endpoint:        "http://minio.local:9000",
		UsePathStyle:    true,
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if store.Driver() != core.DriverS3 || store.Bucket() != "vivarium" {
		t.Fatalf("unexpected store %+v", store)
	}
	u, err := store.PresignURL(context.Background(), "exports/a.json", core.SignedURLOptions{Expiry: 5 * time.Minute})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	for _, want := range []string{"http://minio.local:9000/vivarium/exports/a.json", "X-Amz-Expires=300", "X-Amz-Signature="} {
		if !strings.Contains(u, want) {
			t.Errorf("url %q missing %q", u, want)
		}
	}
}
