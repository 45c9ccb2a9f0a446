package async_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/camkit/arlo/pkg/async"
)

func TestExecFunctionality(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	future := async.Exec(ctx, 42, func(ctx context.Context, num int) error {
		time.Sleep(50 * time.Millisecond)
		if num != 42 {
			return errors.New("unexpected number")
		}
		return nil
	})

	if err := future.Await(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !future.IsComplete() {
		t.Error("future should be complete after Await")
	}
}

func TestExecError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("send failed")
	future := async.Exec(context.Background(), "req", func(ctx context.Context, s string) error {
		return wantErr
	})

	if err := future.Await(); !errors.Is(err, wantErr) {
		t.Errorf("expected %v, got %v", wantErr, err)
	}
}

func TestExecAwaitWithTimeout(t *testing.T) {
	t.Parallel()

	future := async.Exec(context.Background(), 0, func(ctx context.Context, _ int) error {
		time.Sleep(time.Second)
		return nil
	})

	err := future.AwaitWithTimeout(20 * time.Millisecond)
	if !errors.Is(err, async.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestExecCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	future := async.Exec(ctx, 0, func(ctx context.Context, _ int) error {
		return nil
	})

	if err := future.Await(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
