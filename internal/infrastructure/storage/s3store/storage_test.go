package s3store

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/kirillkom/submission-vault/internal/core/domain"
)

type fakeAPI struct {
	objects     map[string][]byte
	copySources []string
	putErr      error
	deleteErr   error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{objects: make(map[string][]byte)}
}

func (f *fakeAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	raw, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Key)] = raw
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	raw, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(raw))}, nil
}

func (f *fakeAPI) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeAPI) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	source := aws.ToString(in.CopySource)
	f.copySources = append(f.copySources, source)
	key := strings.TrimPrefix(source, "vault-bucket/")
	key = strings.ReplaceAll(key, "%20", " ")
	raw, ok := f.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	f.objects[aws.ToString(in.Key)] = raw
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeAPI) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestMoveCopiesThenDeletes(t *testing.T) {
	api := newFakeAPI()
	storage := New(api, "vault-bucket", nil)
	ctx := context.Background()

	if err := storage.Save(ctx, "staging/abc_my file.pdf", strings.NewReader("pdf"), 3, "application/pdf"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	id, err := storage.Move(ctx, "staging/abc_my file.pdf", "vault/2025/v1_my_file.pdf")
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if id != "vault/2025/v1_my_file.pdf" {
		t.Fatalf("unexpected id %s", id)
	}
	if len(api.copySources) != 1 || api.copySources[0] != "vault-bucket/staging/abc_my%20file.pdf" {
		t.Fatalf("unexpected copy sources %v", api.copySources)
	}
	if _, ok := api.objects["staging/abc_my file.pdf"]; ok {
		t.Fatalf("expected source removed")
	}
	if string(api.objects[id]) != "pdf" {
		t.Fatalf("expected content at target")
	}
}

func TestMoveSourceDeleteFailureNamesTarget(t *testing.T) {
	api := newFakeAPI()
	storage := New(api, "vault-bucket", nil)
	ctx := context.Background()

	if err := storage.Save(ctx, "staging/abc_a.pdf", strings.NewReader("pdf"), 3, "application/pdf"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	api.deleteErr = &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}

	_, err := storage.Move(ctx, "staging/abc_a.pdf", "vault/2025/v1_a.pdf")
	if err == nil {
		t.Fatalf("expected Move() to fail when the source cannot be removed")
	}
	if !strings.Contains(err.Error(), "vault/2025/v1_a.pdf") {
		t.Fatalf("expected error to name the target key, got %v", err)
	}
	found, err := storage.Exists(ctx, "vault/2025/v1_a.pdf")
	if err != nil || !found {
		t.Fatalf("expected the copy to remain discoverable, found=%v err=%v", found, err)
	}
}

func TestExistsMapsNotFound(t *testing.T) {
	api := newFakeAPI()
	storage := New(api, "vault-bucket", nil)

	ok, err := storage.Exists(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if ok {
		t.Fatalf("expected missing object")
	}
}

func TestEnsureContainerWritesMarkerOnce(t *testing.T) {
	api := newFakeAPI()
	storage := New(api, "vault-bucket", nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		got, err := storage.EnsureContainer(ctx, "vault/2025/1st")
		if err != nil {
			t.Fatalf("EnsureContainer() error = %v", err)
		}
		if got != "vault/2025/1st" {
			t.Fatalf("unexpected container %s", got)
		}
	}
	if _, ok := api.objects["vault/2025/1st/"]; !ok || len(api.objects) != 1 {
		t.Fatalf("expected one folder marker, got %v", api.objects)
	}
}

func TestSaveThrottledIsTemporary(t *testing.T) {
	api := newFakeAPI()
	api.putErr = &smithy.GenericAPIError{Code: "SlowDown", Message: "reduce request rate"}
	storage := New(api, "vault-bucket", nil)

	err := storage.Save(context.Background(), "staging/a.txt", strings.NewReader("a"), 1, "")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestOpenRequiresBucket(t *testing.T) {
	_, err := Open(context.Background(), Config{}, nil)
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
