package threadlet_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/danfuzz/lactoserv-sub004/threadlet"
)

var _ = Describe("Threadlet", func() {
	It("runs the main body until Stop cancels it", func() {
		var running atomic.Bool

		main := func(ctx context.Context) error {
			running.Store(true)
			<-ctx.Done()
			running.Store(false)
			return nil
		}

		tl := threadlet.New(nil, main)
		Expect(tl.IsRunning()).To(BeFalse())

		err := tl.Start(context.Background())
		Expect(err).To(BeNil())

		Eventually(running.Load).Should(BeTrue())
		Eventually(tl.IsRunning).Should(BeTrue())

		err = tl.Stop(context.Background())
		Expect(err).To(BeNil())
		Expect(tl.IsRunning()).To(BeFalse())
	})

	It("closes the stop signal as soon as Stop is called, not after mainBody exits", func() {
		release := make(chan struct{})

		// main ignores ctx and only returns once release is closed, so the
		// stop signal closing while main is still running can only happen
		// if Stop() itself closes it rather than the post-exit cleanup.
		main := func(ctx context.Context) error {
			<-release
			return nil
		}

		tl := threadlet.New(nil, main)
		Expect(tl.Start(context.Background())).To(BeNil())
		Eventually(tl.IsRunning).Should(BeTrue())

		stopSig := tl.WhenStopRequested()

		stopped := make(chan struct{})
		go func() {
			defer close(stopped)
			_ = tl.Stop(context.Background())
		}()

		Eventually(stopSig, time.Second).Should(BeClosed())
		Expect(tl.ShouldStop()).To(BeTrue())

		close(release)
		Eventually(stopped, time.Second).Should(BeClosed())
	})

	It("aborts the transition to running when startBody fails", func() {
		boom := errors.New("boom")
		start := func(ctx context.Context) error { return boom }
		main := func(ctx context.Context) error { return nil }

		tl := threadlet.New(start, main)
		err := tl.Start(context.Background())
		Expect(err).NotTo(BeNil())
		Expect(tl.IsRunning()).To(BeFalse())
	})

	It("stores a mainBody error and surfaces it from Stop", func() {
		boom := errors.New("boom")
		main := func(ctx context.Context) error {
			<-ctx.Done()
			return boom
		}

		tl := threadlet.New(nil, main)
		Expect(tl.Start(context.Background())).To(BeNil())
		Eventually(tl.IsRunning).Should(BeTrue())

		err := tl.Stop(context.Background())
		Expect(err).NotTo(BeNil())
	})

	It("is idempotent when Stop is called while idle", func() {
		tl := threadlet.New(nil, func(ctx context.Context) error { return nil })
		err := tl.Stop(context.Background())
		Expect(err).To(BeNil())
	})

	It("restarts the previous instance", func() {
		var startCount atomic.Int32
		main := func(ctx context.Context) error {
			startCount.Add(1)
			<-ctx.Done()
			return nil
		}

		tl := threadlet.New(nil, main)
		Expect(tl.Start(context.Background())).To(BeNil())
		Eventually(tl.IsRunning).Should(BeTrue())

		initial := startCount.Load()
		Expect(tl.Restart(context.Background())).To(BeNil())
		Eventually(func() int32 { return startCount.Load() }, time.Second).Should(BeNumerically(">", initial))

		_ = tl.Stop(context.Background())
	})
})
