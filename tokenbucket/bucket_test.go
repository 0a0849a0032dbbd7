package tokenbucket_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/danfuzz/lactoserv-sub004/timesource"
	"github.com/danfuzz/lactoserv-sub004/tokenbucket"
)

var _ = Describe("TokenBucket", func() {
	var clock *timesource.Fake

	BeforeEach(func() {
		clock = timesource.NewFake(0)
	})

	Context("steady-state grant sequence", func() {
		It("grants full bursts then partial amounts as volume depletes", func() {
			tb, err := tokenbucket.New(tokenbucket.Config{
				BurstSize:    10,
				FlowRate:     1,
				AllowPartial: true,
				TimeSource:   clock,
			})
			Expect(err).To(BeNil())

			res, err := tb.TakeNow(tokenbucket.Request{Min: 0, Max: 10})
			Expect(err).To(BeNil())
			Expect(res.Granted).To(BeTrue())
			Expect(res.Amount).To(Equal(10.0))

			res, err = tb.TakeNow(tokenbucket.Request{Min: 0, Max: 5})
			Expect(err).To(BeNil())
			Expect(res.Granted).To(BeTrue())
			Expect(res.Amount).To(Equal(0.0))

			clock.Advance(5)

			res, err = tb.TakeNow(tokenbucket.Request{Min: 1, Max: 10})
			Expect(err).To(BeNil())
			Expect(res.Granted).To(BeTrue())
			Expect(res.Amount).To(Equal(5.0))
		})

		It("rounds Min/Max to whole tokens when AllowPartial is false", func() {
			tb, err := tokenbucket.New(tokenbucket.Config{
				BurstSize:    10,
				FlowRate:     1,
				AllowPartial: false,
				TimeSource:   clock,
			})
			Expect(err).To(BeNil())

			res, err := tb.TakeNow(tokenbucket.Request{Min: 0.5, Max: 3.9})
			Expect(err).To(BeNil())
			Expect(res.Granted).To(BeTrue())
			Expect(res.Amount).To(Equal(3.0))
		})

		It("reports EstimatedWait computed from pre-grant volume (spec §8 scenario 1)", func() {
			tb, err := tokenbucket.New(tokenbucket.Config{
				BurstSize:    10,
				FlowRate:     5,
				AllowPartial: true,
				TimeSource:   clock,
			})
			Expect(err).To(BeNil())

			res, err := tb.TakeNow(tokenbucket.Request{Min: 10, Max: 10})
			Expect(err).To(BeNil())
			Expect(res.Granted).To(BeTrue())
			Expect(res.Amount).To(Equal(10.0))
			Expect(res.EstimatedWait).To(Equal(0.0))

			clock.Advance(1)
			res, err = tb.TakeNow(tokenbucket.Request{Min: 0, Max: 10})
			Expect(err).To(BeNil())
			Expect(res.Granted).To(BeTrue())
			Expect(res.Amount).To(Equal(5.0))
			Expect(res.EstimatedWait).To(Equal(0.0))

			clock.Advance(0.5)
			res, err = tb.TakeNow(tokenbucket.Request{Min: 0, Max: 10})
			Expect(err).To(BeNil())
			Expect(res.Granted).To(BeTrue())
			Expect(res.Amount).To(Equal(2.5))
		})

		It("rejects a Min that exceeds burst size as impossible", func() {
			tb, err := tokenbucket.New(tokenbucket.Config{
				BurstSize:  10,
				FlowRate:   1,
				TimeSource: clock,
			})
			Expect(err).To(BeNil())

			_, takeErr := tb.TakeNow(tokenbucket.Request{Min: 11, Max: 11})
			Expect(takeErr).NotTo(BeNil())
		})
	})

	Context("queue overflow with maxWaiters", func() {
		It("refuses to queue a waiter once maxWaiters is reached", func() {
			tb, err := tokenbucket.New(tokenbucket.Config{
				BurstSize:    1,
				FlowRate:     1,
				MaxWaiters:   1,
				AllowPartial: true,
				TimeSource:   clock,
			})
			Expect(err).To(BeNil())

			res, err := tb.TakeNow(tokenbucket.Request{Min: 1, Max: 1})
			Expect(err).To(BeNil())
			Expect(res.Granted).To(BeTrue())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			firstDone := make(chan struct{})
			go func() {
				defer close(firstDone)
				amount, err := tb.RequestGrant(ctx, tokenbucket.Request{Min: 1, Max: 1})
				Expect(err).To(BeNil())
				Expect(amount).To(Equal(1.0))
			}()

			Eventually(func() int {
				return tb.Snapshot().WaitersCount
			}).Should(Equal(1))

			amount, grantErr := tb.RequestGrant(ctx, tokenbucket.Request{Min: 1, Max: 1})
			Expect(grantErr).To(BeNil())
			Expect(amount).To(Equal(0.0))

			clock.Advance(1)
			Eventually(firstDone).Should(BeClosed())
		})

		It("releases a waiter's slot when its context is cancelled", func() {
			tb, err := tokenbucket.New(tokenbucket.Config{
				BurstSize:    1,
				FlowRate:     1,
				MaxWaiters:   1,
				AllowPartial: true,
				TimeSource:   clock,
			})
			Expect(err).To(BeNil())

			res, err := tb.TakeNow(tokenbucket.Request{Min: 1, Max: 1})
			Expect(err).To(BeNil())
			Expect(res.Granted).To(BeTrue())

			ctx, cancel := context.WithCancel(context.Background())

			blockedDone := make(chan struct{})
			go func() {
				defer close(blockedDone)
				amount, _ := tb.RequestGrant(ctx, tokenbucket.Request{Min: 1, Max: 1})
				Expect(amount).To(Equal(0.0))
			}()

			Eventually(func() int {
				return tb.Snapshot().WaitersCount
			}).Should(Equal(1))

			cancel()
			Eventually(blockedDone, time.Second).Should(BeClosed())

			Eventually(func() int {
				return tb.Snapshot().WaitersCount
			}).Should(Equal(0))
		})
	})
})
