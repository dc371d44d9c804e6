package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	errs.Add(nil, context.Canceled)
	require.NoError(t, errs.Aggregate())

	errs.Add(errors.New("first"))
	require.EqualError(t, errs.Aggregate(), "first")

	errs.Add(errors.New("second"))
	require.EqualError(t, errs.Aggregate(), "Multiple errors:\nfirst\nsecond")
}

func TestRunAllStopsOnFirstExit(t *testing.T) {
	failure := errors.New("port closed")
	blocked := RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	failed := NamedRun("failed", RunFunc(func(ctx context.Context) error {
		return failure
	}))
	require.Equal(t, "failed", failed.(Named).Name())
	require.Equal(t, failure, RunAll(context.Background(), blocked, failed))
}

func TestRunAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, RunAll(ctx, RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})))
}

func TestLoopTriggerNext(t *testing.T) {
	loop := NewLoop()
	loop.Interval = time.Hour
	calledCh := make(chan int, 8)
	loop.AddController(PrLvLow, ControlFunc(func(cc ControlContext) error {
		calledCh <- cc.PriorityLevel()
		return nil
	}))
	loop.AddController(PrLvHigh, ControlFunc(func(cc ControlContext) error {
		calledCh <- cc.PriorityLevel()
		return errors.New("logged only")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()

	loop.TriggerNext()
	require.Equal(t, PrLvHigh, <-calledCh)
	require.Equal(t, PrLvLow, <-calledCh)

	cancel()
	require.NoError(t, <-errCh)
}

func TestLoopStopsWithRunnable(t *testing.T) {
	failure := errors.New("quit")
	loop := NewLoop().AddRunnable(RunFunc(func(ctx context.Context) error {
		return failure
	}))
	require.Equal(t, failure, loop.Run(context.Background()))
}

func TestRunWithContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	unblock := make(chan struct{})
	canceled := false
	cancel()
	err := RunWithContextCancel(ctx, func() {
		canceled = true
		close(unblock)
	}, func() error {
		<-unblock
		return nil
	})
	require.Equal(t, context.Canceled, err)
	require.True(t, canceled)
}
