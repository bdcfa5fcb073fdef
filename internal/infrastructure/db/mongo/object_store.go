package mongo

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

const defaultContentType = "application/octet-stream"

// ObjectStore keeps uploaded files in a GridFS bucket, named by their path,
// and serves them under baseURL + "/v1/files/".
type ObjectStore struct {
	bucket  *gridfs.Bucket
	baseURL string
}

func NewObjectStore(db *mongo.Database, baseURL string) (*ObjectStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketUploads))
	if err != nil {
		return nil, storeErr("open gridfs bucket", err)
	}
	return &ObjectStore{bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *ObjectStore) Upload(ctx context.Context, path string, r io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = defaultContentType
	}
	opts := options.GridFSUpload().SetMetadata(bson.M{"content_type": contentType})
	if _, err := s.bucket.UploadFromStream(path, r, opts); err != nil {
		return "", storeErr("upload object", err)
	}
	return s.URL(path), nil
}

// Open returns the newest revision of the file stored under path.
func (s *ObjectStore) Open(ctx context.Context, path string) (io.ReadCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	stream, err := s.bucket.OpenDownloadStreamByName(path)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", storeErr("open object", err)
	}

	contentType := defaultContentType
	if meta := stream.GetFile().Metadata; meta != nil {
		if v, ok := meta.Lookup("content_type").StringValueOK(); ok && v != "" {
			contentType = v
		}
	}
	return stream, contentType, nil
}

func (s *ObjectStore) URL(path string) string {
	return s.baseURL + "/v1/files/" + strings.TrimLeft(path, "/")
}
