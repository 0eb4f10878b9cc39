package s3store

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/studio1767/filesync/internal/remote"
)

// Delete removes the object with key id. Keys outside the store prefix
// are refused as not found rather than touched.
func (st *Store) Delete(ctx context.Context, id string) error {
	if !strings.HasPrefix(id, st.objectsPrefix()) {
		return &remote.Error{Op: "delete", StatusCode: http.StatusNotFound, Err: remote.ErrNotFound}
	}

	_, err := st.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(st.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return wrapError("delete", err)
	}
	return nil
}

func wrapError(op string, err error) error {
	var responseError *awshttp.ResponseError
	if errors.As(err, &responseError) {
		status := responseError.HTTPStatusCode()
		if status == http.StatusNotFound {
			err = remote.ErrNotFound
		}
		return &remote.Error{Op: op, StatusCode: status, Err: err}
	}
	return &remote.Error{Op: op, Err: err}
}
