package s3store

import (
	"context"
	"os"
	"path"
	"strings"

	"filippo.io/age"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/studio1767/filesync/internal/remote"
)

// API is the subset of the S3 client the store uses.
type API interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

const (
	metaPurpose = "filesync-purpose"
	metaEncrypt = "filesync-encrypt"

	// encrypted objects carry this suffix so listings can tell them apart
	// without a HEAD per object
	encryptedSuffix = ".age"
)

// Store keeps synced files under <prefix>/objects/<uuid>/<filename>. The
// object key is the remote id.
type Store struct {
	client     API
	bucket     string
	prefix     string
	recipients []age.Recipient
}

// New wraps an existing client. With recipients set every upload is age
// encrypted.
func New(client API, bucket, prefix string, recipients []age.Recipient) (*Store, error) {
	if bucket == "" {
		return nil, &ErrNoBucket{}
	}
	st := Store{
		client:     client,
		bucket:     bucket,
		prefix:     strings.Trim(prefix, "/"),
		recipients: recipients,
	}
	return &st, nil
}

// NewFromProfile loads the named shared config profile and, if
// recipientsFile is set, the age recipients to encrypt to.
func NewFromProfile(ctx context.Context, profile, bucket, prefix, recipientsFile string) (*Store, error) {
	var opts []func(*config.LoadOptions) error
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	var recipients []age.Recipient
	if recipientsFile != "" {
		recipients, err = LoadRecipients(recipientsFile)
		if err != nil {
			return nil, err
		}
	}

	return New(s3.NewFromConfig(cfg), bucket, prefix, recipients)
}

func LoadRecipients(recipients_file string) ([]age.Recipient, error) {
	f, err := os.Open(recipients_file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	recipients, err := age.ParseRecipients(f)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, &ErrNoRecipients{file: recipients_file}
	}
	return recipients, nil
}

func (st *Store) Encrypted() bool {
	return len(st.recipients) > 0
}

func (st *Store) objectsPrefix() string {
	return path.Join(st.prefix, "objects") + "/"
}

func (st *Store) key(id, name string) string {
	key := st.objectsPrefix() + id + "/" + name
	if st.Encrypted() {
		key += encryptedSuffix
	}
	return key
}

var _ remote.Store = (*Store)(nil)
var _ remote.Lister = (*Store)(nil)
