package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/dronesoccer/internal/domain/dedupe"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a default deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When a batch id is recorded twice", func() {
			first := d.SeenAndRecord(ctx, "batch-1")
			second := d.SeenAndRecord(ctx, "batch-1")

			Convey("Then only the second call reports a duplicate", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a recorded id is unrecorded", func() {
			d.SeenAndRecord(ctx, "batch-1")
			d.Unrecord(ctx, "batch-1")
			d.Unrecord(ctx, "missing")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "batch-1"), ShouldBeFalse)
			})
		})
	})

	Convey("Given a deduper bounded to three ids", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for _, id := range []string{"a", "b", "c", "d"} {
			d.SeenAndRecord(ctx, id)
		}

		Convey("Then the oldest id was evicted", func() {
			So(d.Size(), ShouldEqual, 3)
			So(d.SeenAndRecord(ctx, "d"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := range 1000 {
			d.SeenAndRecord(ctx, fmt.Sprintf("batch-%d", i))
		}

		Convey("Then nothing is evicted", func() {
			So(d.Size(), ShouldEqual, 1000)
			So(d.SeenAndRecord(ctx, "batch-0"), ShouldBeTrue)
		})
	})

	Convey("Given concurrent uploads of the same batches", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			fresh int
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range 100 {
					if !d.SeenAndRecord(ctx, fmt.Sprintf("batch-%d", i)) {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each batch is accepted exactly once", func() {
			So(fresh, ShouldEqual, 100)
			So(d.Size(), ShouldEqual, 100)
		})
	})
}
