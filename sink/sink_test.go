package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/chaos-io/removebg/raster"
	"github.com/chaos-io/removebg/util"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cutout() raster.Image {
	img := raster.New(3, 2)
	img.Set(1, 1, 200, 150, 100, 255)
	return img
}

func TestExportName(t *testing.T) {
	name := ExportName()
	assert.True(t, strings.HasPrefix(name, "remove-bg-pro-"))
	assert.True(t, strings.HasSuffix(name, ".png"))

	created, ok := exportTime(name)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), created, 2*time.Second)

	_, ok = exportTime("remove-bg-pro-notaksuid.png")
	assert.False(t, ok)
	_, ok = exportTime("photo.png")
	assert.False(t, ok)
}

func TestFileSink_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	s := NewFileSink(dir)

	res, err := s.Save(context.Background(), cutout())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, res.Name), res.Location)
	assert.Positive(t, res.Bytes)

	img, err := util.OpenImage(res.Location)
	require.NoError(t, err)
	got := raster.FromImage(img)
	assert.Equal(t, cutout().Pix, got.Pix)
}

func TestFileSink_SaveInvalid(t *testing.T) {
	_, err := NewFileSink(t.TempDir()).Save(context.Background(), raster.Image{})
	assert.ErrorContains(t, err, "invalid image")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewFileSink(t.TempDir()).Save(ctx, cutout())
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeUploader struct {
	container string
	name      string
	data      []byte
	ct        string
	err       error
}

func (f *fakeUploader) UploadBuffer(ctx context.Context, containerName string, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error) {
	f.container, f.name, f.data = containerName, blobName, buffer
	if o != nil && o.HTTPHeaders != nil && o.HTTPHeaders.BlobContentType != nil {
		f.ct = *o.HTTPHeaders.BlobContentType
	}
	return azblob.UploadBufferResponse{}, f.err
}

func (f *fakeUploader) URL() string {
	return "https://acct.blob.core.windows.net/"
}

func TestAzureBlobSink_Save(t *testing.T) {
	up := &fakeUploader{}
	s := &AzureBlobSink{client: up, container: "exports"}

	res, err := s.Save(context.Background(), cutout())
	require.NoError(t, err)
	assert.Equal(t, "exports", up.container)
	assert.Equal(t, res.Name, up.name)
	assert.Equal(t, "image/png", up.ct)
	assert.Equal(t, len(up.data), res.Bytes)
	assert.Equal(t, "https://acct.blob.core.windows.net/exports/"+res.Name, res.Location)

	up.err = errors.New("403 AuthorizationFailure")
	_, err = s.Save(context.Background(), cutout())
	assert.ErrorContains(t, err, "upload failed")
}

func TestNewAzureBlobSink_BadConnectionString(t *testing.T) {
	_, err := NewAzureBlobSink("not-a-connection-string", "exports")
	assert.Error(t, err)
}

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("png"), 0o644))
}

func TestSweeper_Sweep(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	old, err := ksuid.NewRandomWithTime(now.Add(-48 * time.Hour))
	require.NoError(t, err)
	fresh, err := ksuid.NewRandomWithTime(now.Add(-time.Hour))
	require.NoError(t, err)

	oldName := namePrefix + old.String() + nameSuffix
	freshName := namePrefix + fresh.String() + nameSuffix
	touch(t, dir, oldName)
	touch(t, dir, freshName)
	touch(t, dir, "keep-me.png")

	s := NewSweeper(dir, 24*time.Hour)
	s.now = func() time.Time { return now }

	removed, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, filepath.Join(dir, oldName))
	assert.FileExists(t, filepath.Join(dir, freshName))
	assert.FileExists(t, filepath.Join(dir, "keep-me.png"))
}

func TestSweeper_MissingDir(t *testing.T) {
	removed, err := NewSweeper(filepath.Join(t.TempDir(), "nope"), time.Hour).Sweep()
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSweeper_StartStop(t *testing.T) {
	s := NewSweeper(t.TempDir(), time.Hour)
	require.NoError(t, s.Start("@every 1h"))
	s.Stop()

	assert.Error(t, NewSweeper(t.TempDir(), time.Hour).Start("not a schedule"))

	disabled := NewSweeper(t.TempDir(), 0)
	require.NoError(t, disabled.Start("@every 1h"))
	disabled.Stop()
}
