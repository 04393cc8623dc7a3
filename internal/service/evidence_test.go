package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evidencevault/internal/auth"
	"evidencevault/internal/blob"
	"evidencevault/internal/logging"
	"evidencevault/internal/models"
)

func TestUploadDownloadRoundTrip(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	b := h.officer(t, "b@example.com", "B100")

	payload := []byte("%PDF-1.7\x00\x01binary\xff")
	e, err := h.svc.UploadEvidence(ctx, b, "10.0.0.1", UploadInput{
		CaseNumber:  " CASE-1 ",
		Description: "scene photos",
		FileName:    `C:\Users\b\report.pdf`,
		ContentType: "application/pdf; charset=binary",
		Size:        -1,
		Body:        bytes.NewReader(payload),
	})
	require.NoError(t, err)
	assert.Equal(t, "CASE-1", e.CaseNumber)
	assert.Equal(t, "report.pdf", e.OriginalFileName)
	assert.NotEqual(t, "report.pdf", e.FileName)
	assert.Equal(t, int64(len(payload)), e.FileSize)
	assert.Equal(t, "application/pdf", e.FileType)
	assert.Equal(t, b.UserID, e.OfficerID)
	assert.False(t, e.Encrypted)
	assert.Equal(t, models.EvidenceActive, e.Status)

	got, rc, err := h.svc.DownloadEvidence(ctx, b, "10.0.0.1", e.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, payload, body)
	assert.Equal(t, "report.pdf", got.OriginalFileName)

	detail, err := h.svc.GetEvidence(ctx, b, e.ID)
	require.NoError(t, err)
	require.Len(t, detail.Logs, 2)
	actions := []string{detail.Logs[0].Action, detail.Logs[1].Action}
	assert.ElementsMatch(t, []string{models.ActionUpload, models.ActionDownload}, actions)
	assert.Equal(t, "Officer B100", detail.Logs[0].UserName)
}

func TestUploadValidationLeavesNoBlob(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	b := h.officer(t, "b@example.com", "B100")

	cases := map[string]UploadInput{
		"missing case": {FileName: "a.pdf", ContentType: "application/pdf", Body: strings.NewReader("x")},
		"missing file": {CaseNumber: "C", ContentType: "application/pdf"},
		"bad type":     {CaseNumber: "C", FileName: "a.exe", ContentType: "application/x-msdownload", Body: strings.NewReader("x")},
		"declared too large": {
			CaseNumber: "C", FileName: "a.pdf", ContentType: "application/pdf",
			Size: 2 << 20, Body: strings.NewReader("x"),
		},
		"body too large": {
			CaseNumber: "C", FileName: "a.pdf", ContentType: "application/pdf",
			Size: -1, Body: bytes.NewReader(make([]byte, (1<<20)+1)),
		},
		"streamed body too large": {
			CaseNumber: "C", FileName: "a.pdf", ContentType: "application/pdf",
			Size: -1, Body: io.MultiReader(bytes.NewReader(make([]byte, 1<<20)), strings.NewReader("x")),
		},
		"parent dir name": {CaseNumber: "C", FileName: "..", ContentType: "application/pdf", Body: strings.NewReader("x")},
		"nested parent":   {CaseNumber: "C", FileName: "a/..", ContentType: "application/pdf", Body: strings.NewReader("x")},
	}
	for name, in := range cases {
		_, err := h.svc.UploadEvidence(ctx, b, "", in)
		assert.True(t, IsValidation(err), "%s: %v", name, err)
	}
	assert.Equal(t, 0, h.blobCount(t))

	list, err := h.svc.ListEvidence(ctx, h.admin, models.EvidenceQuery{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUploadRecordFailureRemovesBlob(t *testing.T) {
	h := newHarness(t, Options{})
	ghost := models.Identity{UserID: "no-such-user", Name: "Ghost", Role: models.RoleOfficer}

	_, err := h.svc.UploadEvidence(context.Background(), ghost, "", UploadInput{
		CaseNumber: "C", FileName: "a.pdf", ContentType: "application/pdf",
		Size: 1, Body: strings.NewReader("x"),
	})
	require.Error(t, err)
	assert.False(t, IsValidation(err))
	assert.Equal(t, 0, h.blobCount(t))
}

func TestEncryptTwiceConflicts(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	b := h.officer(t, "b@example.com", "B100")
	e := h.upload(t, b, "CASE-1", "a.pdf", "x")

	got, err := h.svc.EncryptEvidence(ctx, b, "", e.ID)
	require.NoError(t, err)
	assert.True(t, got.Encrypted)
	_, err = h.svc.EncryptEvidence(ctx, b, "", e.ID)
	require.ErrorIs(t, err, ErrAlreadyEncrypted)

	got, err = h.svc.DecryptEvidence(ctx, h.admin, "", e.ID)
	require.NoError(t, err)
	assert.False(t, got.Encrypted)
	_, err = h.svc.DecryptEvidence(ctx, h.admin, "", e.ID)
	require.ErrorIs(t, err, ErrNotEncrypted)
}

func TestDeletedEvidenceIsNotFound(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	b := h.officer(t, "b@example.com", "B100")
	e := h.upload(t, b, "CASE-1", "a.pdf", "x")
	enc := h.upload(t, b, "CASE-1", "b.pdf", "y")
	_, err := h.svc.EncryptEvidence(ctx, b, "", enc.ID)
	require.NoError(t, err)

	for _, ev := range []models.Evidence{e, enc} {
		require.NoError(t, h.svc.DeleteEvidence(ctx, h.admin, "", ev.ID))

		_, err = h.svc.EncryptEvidence(ctx, h.admin, "", ev.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = h.svc.DecryptEvidence(ctx, h.admin, "", ev.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, h.svc.DeleteEvidence(ctx, h.admin, "", ev.ID), ErrNotFound)
		_, err = h.svc.GetEvidence(ctx, b, ev.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, _, err = h.svc.DownloadEvidence(ctx, h.admin, "", ev.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	}

	_, err = h.svc.GetEvidence(ctx, h.admin, "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestForbiddenMatrix(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	a := h.officer(t, "a@example.com", "A100")
	b := h.officer(t, "b@example.com", "B100")
	owned := h.upload(t, a, "CASE-1", "a.pdf", "x")

	_, err := h.svc.GetEvidence(ctx, b, owned.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, _, err = h.svc.DownloadEvidence(ctx, b, "", owned.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = h.svc.EncryptEvidence(ctx, b, "", owned.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// Decrypt and delete stay admin-only even for the owner.
	_, err = h.svc.EncryptEvidence(ctx, a, "", owned.ID)
	require.NoError(t, err)
	_, err = h.svc.DecryptEvidence(ctx, a, "", owned.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, h.svc.DeleteEvidence(ctx, a, "", owned.ID), ErrForbidden)

	_, err = h.svc.ListUsers(ctx, a, "")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = h.svc.CreateUser(ctx, a, "", CreateUserInput{Name: "x", Email: "x@example.com", Password: officerPassword, Role: "admin"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, h.svc.ResetPassword(ctx, a, "", b.UserID, "Whatever123!"), ErrForbidden)
	assert.ErrorIs(t, h.svc.DeleteUser(ctx, a, "", b.UserID), ErrForbidden)

	_, err = h.svc.GetEvidence(ctx, h.admin, owned.ID)
	assert.NoError(t, err)
}

func TestListEvidenceOwnerScoped(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	a := h.officer(t, "a@example.com", "A100")
	b := h.officer(t, "b@example.com", "B100")
	h.upload(t, a, "CASE-1", "a.pdf", "x")
	h.upload(t, b, "CASE-1", "b.pdf", "y")
	h.upload(t, b, "CASE-2", "c.pdf", "z")

	mine, err := h.svc.ListEvidence(ctx, b, models.EvidenceQuery{OfficerID: a.UserID})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, e := range mine {
		assert.Equal(t, b.UserID, e.OfficerID)
		assert.Equal(t, "Officer B100", e.OfficerName)
	}

	all, err := h.svc.ListEvidence(ctx, h.admin, models.EvidenceQuery{CaseNumber: "CASE-1"})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMutationsProduceOneEntryEach(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	b := h.officer(t, "b@example.com", "B100")
	before := h.auditTotal(t)

	const n = 5
	for i := 0; i < n; i++ {
		e := h.upload(t, b, "CASE-N", "f.pdf", "x")
		_, err := h.svc.EncryptEvidence(ctx, b, "", e.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, before+2*n, h.auditTotal(t))

	entries, _, err := h.svc.ListAudit(ctx, h.admin, models.AuditQuery{Action: "encrypt"})
	require.NoError(t, err)
	require.Len(t, entries, n)
	for _, e := range entries {
		assert.Equal(t, b.UserID, e.ActorID)
		assert.Equal(t, models.ScopeEvidence, e.Scope)
	}
}

func TestCaseOneScenario(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	badge := "B100"
	_, err := h.svc.CreateUser(ctx, h.admin, "", CreateUserInput{
		Name: "B", Email: "b@example.com", Password: officerPassword, Role: "officer", BadgeNumber: &badge,
	})
	require.NoError(t, err)

	sess, err := h.svc.Login(ctx, "b@example.com", officerPassword)
	require.NoError(t, err)
	b, err := h.svc.Verify(ctx, sess.Token)
	require.NoError(t, err)

	e := h.upload(t, b, "CASE-1", "report.pdf", "%PDF-1.4")
	assert.Equal(t, b.UserID, e.OfficerID)
	assert.False(t, e.Encrypted)

	e, err = h.svc.EncryptEvidence(ctx, b, "", e.ID)
	require.NoError(t, err)
	assert.True(t, e.Encrypted)

	e, err = h.svc.DecryptEvidence(ctx, h.admin, "", e.ID)
	require.NoError(t, err)
	assert.False(t, e.Encrypted)

	require.NoError(t, h.svc.DeleteEvidence(ctx, h.admin, "", e.ID))
	_, err = h.svc.GetEvidence(ctx, b, e.ID)
	require.ErrorIs(t, err, ErrNotFound)

	entries, total, err := h.svc.ListAudit(ctx, h.admin, models.AuditQuery{Scope: models.ScopeEvidence})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	var actions []string
	for _, entry := range entries {
		require.NotNil(t, entry.EvidenceID)
		assert.Equal(t, e.ID, *entry.EvidenceID)
		actions = append(actions, entry.Action)
	}
	assert.ElementsMatch(t, []string{models.ActionUpload, models.ActionEncrypt, models.ActionDecrypt, models.ActionDelete}, actions)
}

// recordingS3 keeps objects in memory and remembers the body type each
// PutObject call received.
type recordingS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	bodies  []string
}

func (f *recordingS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies = append(f.bodies, fmt.Sprintf("%T", in.Body))
	f.objects[*in.Key] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *recordingS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *recordingS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestUploadStreamsSeekableBodyToS3(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	b := h.officer(t, "b@example.com", "B100")

	fake := &recordingS3{objects: map[string][]byte{}}
	cfg := testConfig()
	svc := New(cfg, h.st, blob.NewS3WithClient(fake, "evidence", "uploads/"),
		auth.NewTokenIssuer(strings.Repeat("k", 32), cfg.TokenTTL()), logging.Discard(), Options{})

	content := bytes.Repeat([]byte("%PDF"), 4096)
	path := filepath.Join(t.TempDir(), "part")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	e, err := svc.UploadEvidence(ctx, b, "", UploadInput{
		CaseNumber: "CASE-9", FileName: "scan.pdf", ContentType: "application/pdf",
		Size: int64(len(content)), Body: f,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), e.FileSize)
	assert.Equal(t, []string{"*os.File"}, fake.bodies)

	_, rc, err := svc.DownloadEvidence(ctx, b, "", e.ID)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, content, got)
}

func TestUploadRejectsOversizedSeekableBodyBeforeStoring(t *testing.T) {
	h := newHarness(t, Options{})
	b := h.officer(t, "b@example.com", "B100")

	fake := &recordingS3{objects: map[string][]byte{}}
	cfg := testConfig()
	svc := New(cfg, h.st, blob.NewS3WithClient(fake, "evidence", "uploads/"),
		auth.NewTokenIssuer(strings.Repeat("k", 32), cfg.TokenTTL()), logging.Discard(), Options{})

	_, err := svc.UploadEvidence(context.Background(), b, "", UploadInput{
		CaseNumber: "C", FileName: "big.pdf", ContentType: "application/pdf",
		Size: -1, Body: bytes.NewReader(make([]byte, cfg.UploadMaxBytes+1)),
	})
	assert.True(t, IsValidation(err), "%v", err)
	assert.Empty(t, fake.bodies)
	assert.Empty(t, fake.objects)
}
