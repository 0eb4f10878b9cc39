package s3store

import (
	"fmt"
)

type ErrNoRecipients struct {
	file string
}

func (e *ErrNoRecipients) Error() string {
	return fmt.Sprintf("no age recipients found in '%s'", e.file)
}

type ErrNoBucket struct{}

func (e *ErrNoBucket) Error() string {
	return "s3 store needs a bucket name"
}
