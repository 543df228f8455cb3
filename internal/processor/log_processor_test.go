package processor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goran-ethernal/ChainHound/internal/logger"
	"github.com/goran-ethernal/ChainHound/internal/testutil"
	"github.com/goran-ethernal/ChainHound/pkg/handler"
	"github.com/stretchr/testify/require"
)

func TestLogProcessor_ScansHalfOpenRangesUpToHead(t *testing.T) {
	chain := testutil.NewFakeChain("mainnet", 50_000)
	h := newRecordingEventHandler(handler.ModeSerial)

	p := NewLogProcessor(eventSource(handler.ModeSerial, 100, 10_000), h, chain, nil, testConfig(), logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, p.Run)

	require.Eventually(t, func() bool { return p.Cursor() == 50_000 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	require.Equal(t, []testutil.LogQuery{
		{From: 100, To: 10_099},
		{From: 10_100, To: 20_099},
		{From: 20_100, To: 30_099},
		{From: 30_100, To: 40_099},
		{From: 40_100, To: 49_999},
	}, chain.Queries())
}

func TestLogProcessor_ClampsFirstRangeToHead(t *testing.T) {
	chain := testutil.NewFakeChain("mainnet", 30)
	h := newRecordingEventHandler(handler.ModeSerial)

	p := NewLogProcessor(eventSource(handler.ModeSerial, 0, 100), h, chain, nil, testConfig(), logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, p.Run)

	require.Eventually(t, func() bool { return p.Cursor() == 30 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	require.Equal(t, []testutil.LogQuery{{From: 0, To: 29}}, chain.Queries())
}

func TestLogProcessor_SuspendsWhenCaughtUpAndResumes(t *testing.T) {
	chain := testutil.NewFakeChain("mainnet", 50_000)
	h := newRecordingEventHandler(handler.ModeSerial)

	p := NewLogProcessor(eventSource(handler.ModeSerial, 50_000, 10_000), h, chain, nil, testConfig(), logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runAsync(ctx, p.Run)

	// the head is re-checked after every poll interval without scanning anything
	require.Eventually(t, func() bool { return chain.HeadCalls() >= 3 }, time.Second, 5*time.Millisecond)
	require.Empty(t, chain.Queries())
	require.Equal(t, uint64(50_000), p.Cursor())

	chain.AddLogs(testutil.EventLog(tokenAddress, transferTopic, 50_004, 0))
	chain.SetHead(50_010)

	require.Eventually(t, func() bool { return p.Cursor() == 50_010 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []testutil.LogQuery{{From: 50_000, To: 50_009}}, chain.Queries())
	require.Equal(t, []uint64{50_004}, h.handled())

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestLogProcessor_CursorIsMonotonicAndContiguous(t *testing.T) {
	chain := testutil.NewFakeChain("mainnet", 1_000)
	h := newRecordingEventHandler(handler.ModeParallel)

	p := NewLogProcessor(eventSource(handler.ModeParallel, 7, 90), h, chain, nil, testConfig(), logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, p.Run)

	require.Eventually(t, func() bool { return p.Cursor() == 1_000 }, time.Second, 5*time.Millisecond)
	chain.SetHead(1_500)
	require.Eventually(t, func() bool { return p.Cursor() == 1_500 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	queries := chain.Queries()
	require.NotEmpty(t, queries)
	require.Equal(t, uint64(7), queries[0].From)
	for i := 1; i < len(queries); i++ {
		require.Equal(t, queries[i-1].To+1, queries[i].From, "ranges must neither overlap nor leave gaps")
		require.LessOrEqual(t, queries[i].To-queries[i].From+1, uint64(90))
	}
	require.Equal(t, uint64(1_499), queries[len(queries)-1].To)
}

func TestLogProcessor_SerialPreservesOrderAcrossRanges(t *testing.T) {
	chain := testutil.NewFakeChain("mainnet", 100)
	for block := 1; block <= 99; block += 7 {
		chain.AddLogs(testutil.EventLog(tokenAddress, transferTopic, uint64(block), 0))
	}

	h := newRecordingEventHandler(handler.ModeSerial)
	h.fn = func(context.Context, *handler.EventContext) error {
		time.Sleep(time.Millisecond)
		return nil
	}

	p := NewLogProcessor(eventSource(handler.ModeSerial, 0, 10), h, chain, nil, testConfig(), logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, p.Run)

	require.Eventually(t, func() bool { return p.Cursor() == 100 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	handled := h.handled()
	require.Len(t, handled, 15)
	require.IsIncreasing(t, handled)
}

func TestLogProcessor_SerialHandlerErrorStopsSource(t *testing.T) {
	chain := testutil.NewFakeChain("mainnet", 100)
	chain.AddLogs(
		testutil.EventLog(tokenAddress, transferTopic, 5, 0),
		testutil.EventLog(tokenAddress, transferTopic, 15, 0),
		testutil.EventLog(tokenAddress, transferTopic, 25, 0),
	)

	boom := errors.New("boom")
	h := newRecordingEventHandler(handler.ModeSerial)
	h.fn = func(_ context.Context, evt *handler.EventContext) error {
		if evt.Log.BlockNumber == 15 {
			return boom
		}
		return nil
	}

	p := NewLogProcessor(eventSource(handler.ModeSerial, 0, 10), h, chain, nil, testConfig(), logger.NewNopLogger())

	err := p.Run(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, []uint64{5}, h.handled())
	require.Equal(t, uint64(10), p.Cursor(), "the failed range is not marked as processed")
	require.Len(t, chain.Queries(), 2)
}

func TestLogProcessor_SerialPanicStopsSource(t *testing.T) {
	chain := testutil.NewFakeChain("mainnet", 100)
	chain.AddLogs(testutil.EventLog(tokenAddress, transferTopic, 5, 0))

	h := newRecordingEventHandler(handler.ModeSerial)
	h.fn = func(context.Context, *handler.EventContext) error {
		panic("unexpected")
	}

	p := NewLogProcessor(eventSource(handler.ModeSerial, 0, 10), h, chain, nil, testConfig(), logger.NewNopLogger())

	err := p.Run(context.Background())
	require.ErrorContains(t, err, "handler panicked")
}

func TestLogProcessor_ParallelToleratesHandlerFailures(t *testing.T) {
	chain := testutil.NewFakeChain("mainnet", 100)
	for block := uint64(0); block < 100; block += 10 {
		chain.AddLogs(testutil.EventLog(tokenAddress, transferTopic, block, 0))
	}

	var calls atomic.Int32
	h := newRecordingEventHandler(handler.ModeParallel)
	h.fn = func(_ context.Context, evt *handler.EventContext) error {
		calls.Add(1)
		switch evt.Log.BlockNumber {
		case 20:
			return errors.New("boom")
		case 40:
			panic("unexpected")
		}
		return nil
	}

	p := NewLogProcessor(eventSource(handler.ModeParallel, 0, 25), h, chain, nil, testConfig(), logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, p.Run)

	require.Eventually(t, func() bool { return p.Cursor() == 100 }, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	require.Equal(t, int32(10), calls.Load())
	require.Len(t, h.handled(), 8)
}

func TestLogProcessor_ParallelAdvancesWithoutWaitingAndDrainsOnExit(t *testing.T) {
	chain := testutil.NewFakeChain("mainnet", 100)
	chain.AddLogs(testutil.EventLog(tokenAddress, transferTopic, 3, 0))

	release := make(chan struct{})
	var finished atomic.Bool

	h := newRecordingEventHandler(handler.ModeParallel)
	h.fn = func(context.Context, *handler.EventContext) error {
		<-release
		finished.Store(true)
		return nil
	}

	p := NewLogProcessor(eventSource(handler.ModeParallel, 0, 10), h, chain, nil, testConfig(), logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, p.Run)

	// the handler of block 3 is still blocked while later ranges are scanned
	require.Eventually(t, func() bool { return p.Cursor() == 100 }, time.Second, 5*time.Millisecond)
	require.False(t, finished.Load())

	cancel()

	select {
	case <-done:
		t.Fatal("Run returned before the in-flight handler finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.ErrorIs(t, <-done, context.Canceled)
	require.True(t, finished.Load())
}

func TestLogProcessor_FiltersForeignAndRemovedLogs(t *testing.T) {
	chain := testutil.NewFakeChain("mainnet", 100)

	removed := testutil.EventLog(tokenAddress, transferTopic, 7, 1)
	removed.Removed = true

	chain.AddLogs(
		testutil.EventLog(tokenAddress, transferTopic, 5, 0),
		testutil.EventLog(otherAddress, transferTopic, 6, 0),
		testutil.EventLog(tokenAddress, mustTopic("Approval(address,address,uint256)"), 6, 1),
		removed,
	)

	h := newRecordingEventHandler(handler.ModeSerial)
	p := NewLogProcessor(eventSource(handler.ModeSerial, 0, 100), h, chain, nil, testConfig(), logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, p.Run)

	require.Eventually(t, func() bool { return p.Cursor() == 100 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	require.Equal(t, []uint64{5}, h.handled())
}

func TestLogProcessor_EventContext(t *testing.T) {
	chain := testutil.NewFakeChain("mainnet", 100)
	chain.AddLogs(testutil.EventLog(tokenAddress, transferTopic, 5, 0))

	got := make(chan *handler.EventContext, 1)
	h := newRecordingEventHandler(handler.ModeSerial)
	h.fn = func(_ context.Context, evt *handler.EventContext) error {
		got <- evt
		return nil
	}

	registrar := &noopRegistrar{}
	p := NewLogProcessor(eventSource(handler.ModeSerial, 0, 100), h, chain, registrar, testConfig(), logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, p.Run)

	evt := <-got
	cancel()
	<-done

	require.Equal(t, tokenAddress, evt.ContractAddress)
	require.Equal(t, uint64(5), evt.Log.BlockNumber)
	require.Same(t, chain, evt.Client)
	require.Same(t, registrar, evt.Templates)
}

func TestLogProcessor_TransportErrorsStopSource(t *testing.T) {
	boom := errors.New("connection refused")

	t.Run("logs", func(t *testing.T) {
		chain := testutil.NewFakeChain("mainnet", 100)
		chain.FailLogs(boom)

		p := NewLogProcessor(eventSource(handler.ModeParallel, 0, 10), newRecordingEventHandler(handler.ModeParallel),
			chain, nil, testConfig(), logger.NewNopLogger())

		err := p.Run(context.Background())
		require.ErrorIs(t, err, boom)
		require.ErrorContains(t, err, "[0, 10)")
		require.Equal(t, uint64(0), p.Cursor())
	})

	t.Run("range clamped to head", func(t *testing.T) {
		chain := testutil.NewFakeChain("mainnet", 25)
		chain.FailLogs(boom)

		p := NewLogProcessor(eventSource(handler.ModeSerial, 20, 10), newRecordingEventHandler(handler.ModeSerial),
			chain, nil, testConfig(), logger.NewNopLogger())

		err := p.Run(context.Background())

		var rangeErr *RangeError
		require.ErrorAs(t, err, &rangeErr)
		require.Equal(t, uint64(20), rangeErr.From)
		require.Equal(t, uint64(25), rangeErr.End)
		require.ErrorIs(t, err, boom)
	})

	t.Run("head", func(t *testing.T) {
		chain := testutil.NewFakeChain("mainnet", 100)
		chain.FailHead(boom)

		p := NewLogProcessor(eventSource(handler.ModeParallel, 0, 10), newRecordingEventHandler(handler.ModeParallel),
			chain, nil, testConfig(), logger.NewNopLogger())

		err := p.Run(context.Background())
		require.ErrorIs(t, err, boom)
		require.Empty(t, chain.Queries())
	})
}

func TestLogProcessor_InvalidSignatureFailsBeforeQuerying(t *testing.T) {
	chain := testutil.NewFakeChain("mainnet", 100)
	h := newRecordingEventHandler(handler.ModeSerial)
	h.signature = "not an event"

	p := NewLogProcessor(eventSource(handler.ModeSerial, 0, 10), h, chain, nil, testConfig(), logger.NewNopLogger())

	err := p.Run(context.Background())
	require.ErrorContains(t, err, "invalid event signature")
	require.Zero(t, chain.HeadCalls())
}

type noopRegistrar struct{}

func (*noopRegistrar) Register(context.Context, handler.Template) error { return nil }
