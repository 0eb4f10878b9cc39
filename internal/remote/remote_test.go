package remote_test

import (
	"errors"
	"fmt"

	"github.com/stretchr/testify/require"
	"testing"

	"github.com/studio1767/filesync/internal/remote"
)

func TestDestinationRoundTrip(t *testing.T) {
	for _, d := range []remote.Destination{remote.Files(), remote.VectorStoreDestination("vs_123")} {
		parsed, ok := remote.ParseDestination(d.String())
		require.True(t, ok)
		require.Equal(t, d, parsed)
	}

	_, ok := remote.ParseDestination("vector_store:")
	require.False(t, ok)
	_, ok = remote.ParseDestination("bucket")
	require.False(t, ok)
}

func TestErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("upload a.txt: %w", &remote.Error{Op: "delete", StatusCode: 404, Err: remote.ErrNotFound})
	require.True(t, errors.Is(err, remote.ErrNotFound))

	var rerr *remote.Error
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, 404, rerr.StatusCode)
}
