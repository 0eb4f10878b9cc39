package s3store

import (
	"context"
	"io"
	"os"
	"time"

	"filippo.io/age"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/studio1767/filesync/internal/remote"
)

func (st *Store) Upload(ctx context.Context, path, name string) (remote.Object, error) {

	f, err := os.Open(path)
	if err != nil {
		return remote.Object{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return remote.Object{}, err
	}

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return remote.Object{}, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return remote.Object{}, err
	}

	mdata := map[string]string{
		metaPurpose: remote.Purpose,
	}
	contentType := mtype.String()

	var source io.Reader = f

	// the encrypter is a writer but the uploader needs a reader
	//   so use an io.Pipe with goroutine
	if st.Encrypted() {
		mdata[metaEncrypt] = "age"
		contentType = "application/octet-stream"

		reader, writer := io.Pipe()
		defer reader.Close()

		go func(writer *io.PipeWriter, source io.Reader) {
			ewriter, err := age.Encrypt(writer, st.recipients...)
			if err != nil {
				writer.CloseWithError(err)
				return
			}

			_, err = io.Copy(ewriter, source)
			if cerr := ewriter.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				writer.CloseWithError(err)
			} else {
				writer.Close()
			}

		}(writer, source)

		source = reader
	}

	counter := NewReadCounter(source)

	// don't know the ContentLength in advance once encrypted so use an Uploader
	key := st.key(uuid.NewString(), name)
	uploader := manager.NewUploader(st.client)

	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(st.bucket),
		Key:         aws.String(key),
		Body:        counter,
		ContentType: aws.String(contentType),
		Metadata:    mdata,
	})
	if err != nil {
		return remote.Object{}, wrapError("upload", err)
	}

	obj := remote.Object{
		ID:        key,
		Name:      name,
		Size:      info.Size(),
		CreatedAt: time.Now().UTC(),
	}
	return obj, nil
}
