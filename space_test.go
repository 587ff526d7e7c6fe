package qdemo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSpace(t *testing.T) {
	Convey("Given a result space", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		space := newSpace(ctx, log.Default(), time.Hour)

		Reset(func() {
			space.Close()
			cancel()
		})

		Convey("A stored value should be awaitable afterwards", func() {
			space.Store("job", "value", nil, time.Minute)
			v := await(space.Await("job"))
			So(v.Value, ShouldEqual, "value")
			So(v.Error, ShouldBeNil)
		})

		Convey("Every waiter should receive a value stored later", func() {
			first, second := space.Await("job"), space.Await("job")
			space.Store("job", 42, nil, 0)
			So(await(first).Value, ShouldEqual, 42)
			So(await(second).Value, ShouldEqual, 42)
		})

		Convey("Expired values should be swept", func() {
			space.Store("short", 1, nil, time.Millisecond)
			space.Store("forever", 2, nil, 0)
			space.sweep(time.Now().Add(time.Second))

			space.mu.Lock()
			_, short := space.values["short"]
			_, forever := space.values["forever"]
			space.mu.Unlock()
			So(short, ShouldBeFalse)
			So(forever, ShouldBeTrue)
		})

		Convey("Closing should release pending waiters", func() {
			pending := space.Await("never")
			space.Close()
			So(errors.Is(await(pending).Error, ErrPoolClosed), ShouldBeTrue)
			So(errors.Is(await(space.Await("after")).Error, ErrPoolClosed), ShouldBeTrue)
		})
	})
}

func TestBroadcastGroup(t *testing.T) {
	Convey("Given a progress group with two subscribers", t, func() {
		group := NewBroadcastGroup(ProgressGroup, time.Minute)
		all := group.Subscribe(4)
		bv := group.Subscribe(4, OnlyDemo("bernstein_vazirani"))

		Convey("Events should reach every interested subscriber", func() {
			group.Send(Event{Demo: "bernstein_vazirani", Stage: StageRun})
			group.Send(Event{Demo: "grover", Stage: StageDone})

			So((<-all).Demo, ShouldEqual, "bernstein_vazirani")
			So((<-all).Stage, ShouldEqual, StageDone)
			e := <-bv
			So(e.Stage, ShouldEqual, StageRun)
			So(e.At.IsZero(), ShouldBeFalse)
			So(len(bv), ShouldEqual, 0)
		})

		Convey("A full subscriber should miss events rather than block", func() {
			for i := 0; i < 6; i++ {
				group.Send(Event{Demo: "grover", Stage: StageRun})
			}
			sent, dropped := group.Stats()
			So(sent, ShouldEqual, 4)
			So(dropped, ShouldEqual, 2)
		})

		Convey("Unsubscribing and closing should close the channels", func() {
			group.Unsubscribe(bv)
			_, open := <-bv
			So(open, ShouldBeFalse)

			group.Close()
			_, open = <-all
			So(open, ShouldBeFalse)
			group.Send(Event{Demo: "grover"})
		})

		Convey("It should expire once idle past its TTL", func() {
			So(group.Expired(time.Now()), ShouldBeFalse)
			So(group.Expired(time.Now().Add(2*time.Minute)), ShouldBeTrue)
		})
	})

	Convey("Given a space without the group", t, func() {
		space := newSpace(context.Background(), log.Default(), time.Hour)
		defer space.Close()

		Convey("Subscribing should yield nil", func() {
			So(space.Subscribe("missing", 1), ShouldBeNil)
			space.CreateBroadcastGroup("missing", 0)
			So(space.Subscribe("missing", 1), ShouldNotBeNil)
		})
	})
}
