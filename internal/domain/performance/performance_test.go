package performance_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/okian/podium/internal/domain/performance"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParse_Run(t *testing.T) {
	Convey("Given raw race times", t, func() {
		cases := []struct {
			raw    string
			micros uint64
		}{
			{"9.58", 9_580_000},
			{"9,58", 9_580_000},
			{" 10 ", 10_000_000},
			{"43.03", 43_030_000},
			{"1:40.91", 100_910_000},
			{"0:09.58", 9_580_000},
			{"3:26.00", 206_000_000},
			{"2:01:09", 7_269_000_000},
			{"2:01:09.5", 7_269_500_000},
			{"12.345678", 12_345_678},
			{"75.3", 75_300_000},
		}

		Convey("When parsing well formed input", func() {
			for _, c := range cases {
				v, err := performance.Parse(c.raw, performance.Run)
				So(err, ShouldBeNil)
				So(v.Unit(), ShouldEqual, performance.UnitDuration)
				So(v.Micros(), ShouldEqual, c.micros)
			}
		})

		Convey("When parsing malformed input", func() {
			for _, raw := range []string{"", "abc", "9.", ".58", "1:60.00", "1:75:00.00", "1:2:3:4", "9.1234567", "9.5s", "1::00", "--9.58"} {
				_, err := performance.Parse(raw, performance.Run)
				So(err, ShouldNotBeNil)
				So(errors.Is(err, performance.ErrMalformed), ShouldBeTrue)

				var perr *performance.ParseError
				So(errors.As(err, &perr), ShouldBeTrue)
				So(perr.Raw, ShouldEqual, raw)
				So(perr.Kind, ShouldEqual, performance.Run)
			}
		})

		Convey("When parsing a negative time", func() {
			_, err := performance.Parse("-9.58", performance.Run)

			Convey("Then it should be reported as negative, not malformed", func() {
				So(errors.Is(err, performance.ErrNegative), ShouldBeTrue)
				So(errors.Is(err, performance.ErrMalformed), ShouldBeFalse)
			})
		})

		Convey("When parsing a negative zero", func() {
			v, err := performance.Parse("-0.00", performance.Run)
			So(err, ShouldBeNil)
			So(v.Micros(), ShouldEqual, uint64(0))
		})
	})
}

func TestParse_Distance(t *testing.T) {
	Convey("Given raw field measurements", t, func() {
		Convey("When parsing dot, comma and suffixed forms", func() {
			for _, raw := range []string{"6.52", "6,52", "6.52m", "6.52 m"} {
				v, err := performance.Parse(raw, performance.Jump)
				So(err, ShouldBeNil)
				So(v.Unit(), ShouldEqual, performance.UnitDistance)
				So(v.Meters(), ShouldEqual, 6.52)
			}
		})

		Convey("When parsing whole meters", func() {
			v, err := performance.Parse("23", performance.Throw)
			So(err, ShouldBeNil)
			So(v.Meters(), ShouldEqual, 23.0)
		})

		Convey("When parsing malformed input", func() {
			for _, raw := range []string{"", "m", "six", "1e3", "6.", "6.5.2", "NaN", "Inf", "6:52"} {
				_, err := performance.Parse(raw, performance.Throw)
				So(errors.Is(err, performance.ErrMalformed), ShouldBeTrue)
			}
		})

		Convey("When parsing a negative distance", func() {
			_, err := performance.Parse("-2,10", performance.Jump)
			So(errors.Is(err, performance.ErrNegative), ShouldBeTrue)
		})
	})

	Convey("Given an unknown kind", t, func() {
		_, err := performance.Parse("1", performance.Kind(9))
		So(errors.Is(err, performance.ErrUnknownKind), ShouldBeTrue)
	})
}

func TestCanonical(t *testing.T) {
	Convey("Given parsed values", t, func() {
		Convey("Then durations under a minute use the seconds form", func() {
			So(performance.MustParse("9.58", performance.Run).Canonical(), ShouldEqual, "9.58")
			So(performance.MustParse("59.99", performance.Run).Canonical(), ShouldEqual, "59.99")
			So(performance.MustParse("0:09.5", performance.Run).Canonical(), ShouldEqual, "9.50")
		})

		Convey("Then longer durations use the full hour form", func() {
			So(performance.MustParse("60", performance.Run).Canonical(), ShouldEqual, "0:01:00.00")
			So(performance.MustParse("1:40.91", performance.Run).Canonical(), ShouldEqual, "0:01:40.91")
			So(performance.MustParse("2:01:09", performance.Run).Canonical(), ShouldEqual, "2:01:09.00")
		})

		Convey("Then distances use two decimals", func() {
			So(performance.MustParse("6.5", performance.Jump).Canonical(), ShouldEqual, "6.50")
			So(performance.MustParse("23,56", performance.Throw).Canonical(), ShouldEqual, "23.56")
		})

		Convey("Then extra precision is kept", func() {
			So(performance.Duration(9_581_234).Canonical(), ShouldEqual, "9.581234")
			d, err := performance.Distance(6.523)
			So(err, ShouldBeNil)
			So(d.Canonical(), ShouldEqual, "6.523")
		})
	})
}

func TestCanonical_RoundTrip(t *testing.T) {
	Convey("Given every accepted raw string", t, func() {
		runs := []string{"9.58", "9,58", "10", "43.03", "1:40.91", "0:59.99", "3:26", "2:01:09", "12.345678", "0.000001", "3599.99", "99:59:59.99"}
		fields := []string{"6.52", "8,95", "23", "0.01", "98.48", "6.523", "0.1", "74.08m"}

		Convey("Then the canonical form re-parses to an equal value", func() {
			for _, raw := range runs {
				v := performance.MustParse(raw, performance.Run)
				back, err := performance.Parse(v.Canonical(), performance.Run)
				So(err, ShouldBeNil)
				So(back.Equal(v), ShouldBeTrue)
			}
			for _, raw := range fields {
				v := performance.MustParse(raw, performance.Throw)
				back, err := performance.Parse(v.Canonical(), performance.Throw)
				So(err, ShouldBeNil)
				So(back.Equal(v), ShouldBeTrue)
			}
		})
	})

	Convey("Given values built directly", t, func() {
		Convey("Then arbitrary microsecond durations round-trip", func() {
			for _, us := range []uint64{0, 1, 9_580_001, 59_999_999, 60_000_000, 7_269_123_456, 1 << 62} {
				v := performance.Duration(us)
				back, err := performance.Parse(v.Canonical(), performance.Run)
				So(err, ShouldBeNil)
				So(back.Micros(), ShouldEqual, us)
			}
		})

		Convey("Then arbitrary distances round-trip", func() {
			for _, m := range []float64{0, 0.1 + 0.2, 6.523, 23.56 * 0.8, 1e9 + 0.5} {
				v, err := performance.Distance(m)
				So(err, ShouldBeNil)
				back, err := performance.Parse(v.Canonical(), performance.Jump)
				So(err, ShouldBeNil)
				So(back.Meters(), ShouldEqual, m)
			}
		})
	})
}

func TestIsBetterThan(t *testing.T) {
	Convey("Given race times", t, func() {
		fast := performance.MustParse("9.58", performance.Run)
		slow := performance.MustParse("9.69", performance.Run)

		Convey("Then lower is better", func() {
			So(fast.IsBetterThan(slow, performance.Run), ShouldBeTrue)
			So(slow.IsBetterThan(fast, performance.Run), ShouldBeFalse)
		})

		Convey("Then an equal time is not better", func() {
			So(fast.IsBetterThan(performance.MustParse("9,58", performance.Run), performance.Run), ShouldBeFalse)
		})
	})

	Convey("Given field measurements", t, func() {
		long := performance.MustParse("8.95", performance.Jump)
		short := performance.MustParse("8.90", performance.Jump)

		Convey("Then higher is better for jumps and throws", func() {
			So(long.IsBetterThan(short, performance.Jump), ShouldBeTrue)
			So(long.IsBetterThan(short, performance.Throw), ShouldBeTrue)
			So(short.IsBetterThan(long, performance.Jump), ShouldBeFalse)
			So(long.IsBetterThan(long, performance.Jump), ShouldBeFalse)
		})
	})

	Convey("Given values that do not match the kind", t, func() {
		d := performance.MustParse("9.58", performance.Run)
		m := performance.MustParse("9.58", performance.Jump)

		Convey("Then neither is better", func() {
			So(d.IsBetterThan(m, performance.Run), ShouldBeFalse)
			So(m.IsBetterThan(d, performance.Run), ShouldBeFalse)
			So(d.IsBetterThan(performance.Duration(10_000_000), performance.Jump), ShouldBeFalse)
		})
	})
}

func TestConstructors(t *testing.T) {
	Convey("Given the value constructors", t, func() {
		Convey("Then invalid distances are refused", func() {
			_, err := performance.Distance(-1)
			So(errors.Is(err, performance.ErrNegative), ShouldBeTrue)
			_, err = performance.Distance(math.Inf(1))
			So(errors.Is(err, performance.ErrMalformed), ShouldBeTrue)
			_, err = performance.Distance(math.NaN())
			So(errors.Is(err, performance.ErrMalformed), ShouldBeTrue)
		})

		Convey("Then durations convert from time.Duration", func() {
			v, err := performance.DurationOf(9580 * time.Millisecond)
			So(err, ShouldBeNil)
			So(v.Canonical(), ShouldEqual, "9.58")
			_, err = performance.DurationOf(-time.Second)
			So(errors.Is(err, performance.ErrNegative), ShouldBeTrue)
		})

		Convey("Then parts rebuild the value", func() {
			v, err := performance.FromParts(performance.UnitDuration, 9_580_000, 0)
			So(err, ShouldBeNil)
			So(v.Equal(performance.MustParse("9.58", performance.Run)), ShouldBeTrue)
			_, err = performance.FromParts(0, 0, 0)
			So(errors.Is(err, performance.ErrMalformed), ShouldBeTrue)
		})
	})
}

func TestValueJSON(t *testing.T) {
	Convey("Given a derived distance", t, func() {
		v, err := performance.Distance(23.56 * 0.8)
		So(err, ShouldBeNil)

		Convey("When encoding and decoding it", func() {
			b, err := json.Marshal(v)
			So(err, ShouldBeNil)
			var back performance.Value
			So(json.Unmarshal(b, &back), ShouldBeNil)

			Convey("Then no precision is lost", func() {
				So(back.Equal(v), ShouldBeTrue)
			})
		})

		Convey("When decoding an ambiguous payload", func() {
			var back performance.Value
			err := json.Unmarshal([]byte(`{"duration_us":1,"distance_m":1}`), &back)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestKindText(t *testing.T) {
	Convey("Given kind and profile names", t, func() {
		for _, k := range performance.Kinds {
			b, err := k.MarshalText()
			So(err, ShouldBeNil)
			var back performance.Kind
			So(back.UnmarshalText(b), ShouldBeNil)
			So(back, ShouldEqual, k)
		}
		p, err := performance.ParseRunningProfile(" Middle ")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, performance.Middle)
		_, err = performance.ParseKind("swim")
		So(errors.Is(err, performance.ErrUnknownKind), ShouldBeTrue)
	})
}
