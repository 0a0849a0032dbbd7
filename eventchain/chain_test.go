package eventchain_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/danfuzz/lactoserv-sub004/eventchain"
)

var _ = Describe("EventSource", func() {
	It("never surfaces the kickoff placeholder", func() {
		src := eventchain.NewEventSource[string](2)
		_, ok := src.CurrentNow()
		Expect(ok).To(BeFalse())
		_, ok = src.EarliestNow()
		Expect(ok).To(BeFalse())
	})

	It("fails a second emit on the same event with ErrorAlreadyEmitted", func() {
		src := eventchain.NewEventSource[string](1)
		first, err := src.Emit("A")
		Expect(err).To(BeNil())

		// Emitting again on the source's stored predecessor (the kickoff)
		// must fail since its successor already exists.
		_, err = src.Kickoff().Emit("duplicate")
		Expect(err).NotTo(BeNil())

		_, ok := first.NextNow()
		Expect(ok).To(BeFalse())
	})

	It("retains exactly keepCount+1 events after four emissions with keepCount=2", func() {
		src := eventchain.NewEventSource[string](2)

		for _, payload := range []string{"A", "B", "C", "D"} {
			_, err := src.Emit(payload)
			Expect(err).To(BeNil())
		}

		current, ok := src.CurrentNow()
		Expect(ok).To(BeTrue())
		Expect(current.Payload()).To(Equal("D"))

		earliest, ok := src.EarliestNow()
		Expect(ok).To(BeTrue())
		Expect(earliest.Payload()).To(Equal("B"))

		count := 0
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		for ev := earliest; ; {
			count++
			if ev == current {
				break
			}
			var err error
			ev, err = ev.Next(ctx)
			Expect(err).To(BeNil())
		}
		Expect(count).To(Equal(3))
	})
})

var _ = Describe("EventSink", func() {
	It("walks the chain in order and stops draining once caught up", func() {
		src := eventchain.NewEventSource[int](10)

		var mu sync.Mutex
		var seen []int

		sink := eventchain.NewEventSink[int](func(_ context.Context, ev *eventchain.LinkedEvent[int]) error {
			mu.Lock()
			seen = append(seen, ev.Payload())
			mu.Unlock()
			return nil
		}, src.Kickoff())

		for i := 1; i <= 3; i++ {
			_, err := src.Emit(i)
			Expect(err).To(BeNil())
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = sink.Run(context.Background())
		}()

		Eventually(func() []int {
			mu.Lock()
			defer mu.Unlock()
			return append([]int(nil), seen...)
		}).Should(Equal([]int{1, 2, 3}))

		sink.Stop()
		Eventually(done).Should(BeClosed())
	})

	It("surfaces a processor error on the run that caused it", func() {
		src := eventchain.NewEventSource[int](10)
		boom := errors.New("boom")

		sink := eventchain.NewEventSink[int](func(_ context.Context, ev *eventchain.LinkedEvent[int]) error {
			if ev.Payload() == 2 {
				return boom
			}
			return nil
		}, src.Kickoff())

		_, _ = src.Emit(1)
		_, _ = src.Emit(2)

		err := sink.Run(context.Background())
		Expect(err).To(Equal(boom))
	})
})
