package s3store

import (
	"context"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/studio1767/filesync/internal/remote"
)

// List pages through every object under the store prefix. The name is
// the last key segment; encrypted objects report Size -1 since only the
// ciphertext length is known.
func (st *Store) List(ctx context.Context, fn func([]remote.Object) error) error {
	prefix := st.objectsPrefix()

	paginator := s3.NewListObjectsV2Paginator(st.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(st.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return wrapError("list", err)
		}

		objects := make([]remote.Object, 0, len(page.Contents))
		for _, item := range page.Contents {
			key := aws.ToString(item.Key)

			// <prefix>/objects/<uuid>/<name>
			rest := strings.TrimPrefix(key, prefix)
			if strings.Count(rest, "/") != 1 {
				continue
			}

			obj := remote.Object{
				ID:        key,
				Name:      path.Base(rest),
				Size:      aws.ToInt64(item.Size),
				CreatedAt: aws.ToTime(item.LastModified),
			}
			if name, ok := strings.CutSuffix(obj.Name, encryptedSuffix); ok && st.Encrypted() {
				obj.Name = name
				obj.Size = -1
			}
			objects = append(objects, obj)
		}

		if len(objects) == 0 {
			continue
		}
		if err := fn(objects); err != nil {
			return err
		}
	}

	return nil
}
