package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evidencevault/internal/config"
)

func TestNewNameIsRandomAndKeepsExtension(t *testing.T) {
	re := regexp.MustCompile(`^[0-9a-f]{32}\.pdf$`)
	a, err := NewName("Case Report.PDF")
	require.NoError(t, err)
	b, err := NewName("../../etc/report.pdf")
	require.NoError(t, err)
	assert.Regexp(t, re, a)
	assert.Regexp(t, re, b)
	assert.NotEqual(t, a, b)

	bare, err := NewName("README")
	require.NoError(t, err)
	assert.Len(t, bare, 32)
}

func TestLocalRoundTrip(t *testing.T) {
	st := NewLocalFs(afero.NewMemMapFs())
	ctx := context.Background()

	n, err := st.Put(ctx, "abc.txt", strings.NewReader("hello evidence"))
	require.NoError(t, err)
	assert.Equal(t, int64(14), n)

	rc, err := st.Open(ctx, "abc.txt")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello evidence", string(got))

	require.NoError(t, st.Remove(ctx, "abc.txt"))
	require.NoError(t, st.Remove(ctx, "abc.txt"))
	_, err = st.Open(ctx, "abc.txt")
	require.ErrorIs(t, err, ErrNotFound)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestLocalPutFailureLeavesNothingBehind(t *testing.T) {
	mem := afero.NewMemMapFs()
	st := NewLocalFs(mem)

	_, err := st.Put(context.Background(), "abc.bin", failingReader{})
	require.Error(t, err)

	entries, err := afero.ReadDir(mem, "/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalRejectsTraversal(t *testing.T) {
	st := NewLocalFs(afero.NewMemMapFs())
	ctx := context.Background()
	for _, name := range []string{"", "..", "../x", "a/b", `a\b`, ".hidden"} {
		_, err := st.Put(ctx, name, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if in.ContentLength == nil || *in.ContentLength != int64(len(b)) {
		return nil, errors.New("content length mismatch")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3RoundTrip(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	st := NewS3WithClient(fake, "evidence", "uploads/")
	ctx := context.Background()

	n, err := st.Put(ctx, "abc.pdf", strings.NewReader("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	assert.Contains(t, fake.objects, "evidence/uploads/abc.pdf")

	n, err = st.Put(ctx, "def.bin", io.MultiReader(strings.NewReader("ab"), strings.NewReader("cd")))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	rc, err := st.Open(ctx, "abc.pdf")
	require.NoError(t, err)
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "%PDF-1.7", string(got))

	require.NoError(t, st.Remove(ctx, "abc.pdf"))
	_, err = st.Open(ctx, "abc.pdf")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFromConfigLocal(t *testing.T) {
	dir := t.TempDir()
	st, err := FromConfig(context.Background(), config.Config{BlobBackend: config.BlobLocal, BlobDir: dir + "/uploads"})
	require.NoError(t, err)

	_, err = st.Put(context.Background(), "a.txt", strings.NewReader("on disk"))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(dir, "uploads", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "on disk", string(b))

	_, err = FromConfig(context.Background(), config.Config{BlobBackend: "ftp"})
	require.Error(t, err)
}
