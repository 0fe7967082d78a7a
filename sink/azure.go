package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/chaos-io/removebg/raster"
	"github.com/chaos-io/removebg/util"
)

// blobUploader *azblob.Client 的子集
type blobUploader interface {
	UploadBuffer(ctx context.Context, containerName string, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
	URL() string
}

type AzureBlobSink struct {
	client    blobUploader
	container string
}

func NewAzureBlobSink(connectionString, container string) (*AzureBlobSink, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	return &AzureBlobSink{client: client, container: container}, nil
}

func (s *AzureBlobSink) Save(ctx context.Context, img raster.Image) (Result, error) {
	if !img.Valid() {
		return Result{}, fmt.Errorf("save export: invalid image %dx%d", img.Width, img.Height)
	}

	data, err := util.EncodePNG(img.NRGBA())
	if err != nil {
		return Result{}, err
	}

	name := ExportName()
	contentType := "image/png"
	_, err = s.client.UploadBuffer(ctx, s.container, name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return Result{}, fmt.Errorf("upload failed: %w", err)
	}

	location := strings.TrimRight(s.client.URL(), "/") + "/" + s.container + "/" + name
	slog.Info("export uploaded", "container", s.container, "name", name, "bytes", len(data))
	return Result{Name: name, Location: location, Bytes: len(data)}, nil
}
