package detectorsim

import (
	"math/rand"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDetector(t *testing.T) {
	Convey("Given a seeded detector", t, func() {
		base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

		Convey("When running the same seed twice", func() {
			first := collect(rand.New(rand.NewSource(7)), base, 500)
			second := collect(rand.New(rand.NewSource(7)), base, 500)

			Convey("Then the streams should be identical", func() {
				So(second, ShouldResemble, first)
			})
		})

		Convey("When running many ticks", func() {
			counts := make(map[string]int)
			for _, d := range collect(rand.New(rand.NewSource(1)), base, 5000) {
				counts[d.Kind]++
			}

			Convey("Then the common channels should all fire", func() {
				So(counts["FOCUS_LOST"], ShouldBeGreaterThan, 0)
				So(counts["NO_FACE"], ShouldBeGreaterThan, 0)
				So(counts["PHONE_DETECTED"], ShouldBeGreaterThan, 0)
			})

			Convey("And every focus loss should eventually restore", func() {
				diff := counts["FOCUS_LOST"] - counts["FOCUS_RESTORED"]
				So(diff, ShouldBeBetweenOrEqual, 0, 1)
			})

			Convey("And rare channels should stay rarer than common ones", func() {
				So(counts["DEVICE_DETECTED"], ShouldBeLessThan, counts["FOCUS_LOST"])
				So(counts["MULTIPLE_FACES"], ShouldBeLessThan, counts["NO_FACE"]*3)
			})
		})

		Convey("When inspecting confidences", func() {
			for _, d := range collect(rand.New(rand.NewSource(2)), base, 200) {
				So(d.Confidence, ShouldBeBetweenOrEqual, 0.0, 1.0)
			}
		})
	})
}

func TestExpectedScore(t *testing.T) {
	Convey("Given recorded detection counts", t, func() {
		Convey("When no detections were recorded", func() {
			So(expectedScore(nil), ShouldEqual, 100)
		})

		Convey("When a mixed log was recorded", func() {
			counts := map[string]int{
				"NO_FACE":        1,
				"FOCUS_LOST":     2,
				"PHONE_DETECTED": 1,
			}
			So(expectedScore(counts), ShouldEqual, 76)
		})

		Convey("When deductions exceed the ceiling", func() {
			counts := map[string]int{"PHONE_DETECTED": 20}
			So(expectedScore(counts), ShouldEqual, 0)
		})

		Convey("When only benign detections were recorded", func() {
			counts := map[string]int{"FOCUS_RESTORED": 5, "FACE_RESTORED": 2}
			So(expectedScore(counts), ShouldEqual, 100)
		})
	})
}

func collect(rng *rand.Rand, base time.Time, ticks int) []detection {
	det := newDetector(rng)
	var out []detection
	ts := base
	for i := 0; i < ticks; i++ {
		out = append(out, det.tick(ts)...)
		ts = ts.Add(time.Second)
	}
	return out
}
