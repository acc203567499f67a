package vault

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"tidy-go/internal/tidy"
)

// fakeS3 is an in-memory bucket implementing s3Client and s3Uploader.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	headErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &manager.UploadOutput{Key: in.Key}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func TestS3Vault(t *testing.T) {
	testVaultContract(t, func(t *testing.T) tidy.Vault {
		fake := newFakeS3()
		return newS3Vault("s3", "bucket", "backups", fake, fake)
	})
}

func TestS3Vault_Keys(t *testing.T) {
	fake := newFakeS3()
	v := newS3Vault("s3", "bucket", "/backups/tidy/", fake, fake)

	if err := v.PutMetadata("host-1", "hashes", bytes.NewReader([]byte("db")), 2, 9); err != nil {
		t.Fatalf("PutMetadata() error = %v", err)
	}

	for _, key := range []string{"bucket/backups/tidy/host-1/hashes.db", "bucket/backups/tidy/host-1/hashes.version"} {
		if _, ok := fake.objects[key]; !ok {
			t.Errorf("object %s not uploaded; have %v", key, keys(fake.objects))
		}
	}
	if got := string(fake.objects["bucket/backups/tidy/host-1/hashes.version"]); got != "9" {
		t.Errorf("version object = %q, want 9", got)
	}
}

func TestS3Vault_ValidateSetup(t *testing.T) {
	fake := newFakeS3()
	v := newS3Vault("s3", "bucket", "", fake, fake)

	if err := v.ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}

	fake.headErr = errors.New("forbidden")
	if err := v.ValidateSetup(); err == nil {
		t.Error("ValidateSetup() expected error when bucket is unreachable")
	}
}

func keys(m map[string][]byte) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}
