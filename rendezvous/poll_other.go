//go:build !linux

package rendezvous

import (
	"context"
	"time"

	"github.com/Fraser999/crust/types"
)

func waitReadable(ctx context.Context, fd int, timeout time.Duration) error {
	return types.UnsupportedError{}
}
