package format_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/podium/internal/domain/format"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/performance"
)

func meters(t *testing.T, m float64) performance.Value {
	t.Helper()
	v, err := performance.Distance(m)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestDisplay_Sprint(t *testing.T) {
	Convey("Given short race times", t, func() {
		cases := []struct {
			us   uint64
			want string
		}{
			{9_580_000, "9.58s"},
			{9_581_000, "9.59s"},
			{9_589_999, "9.59s"},
			{10_000_000, "10.00s"},
			{75_300_000, "75.30s"},
			{0, "0.00s"},
		}

		Convey("Then they render in seconds and never in colon form", func() {
			for _, c := range cases {
				So(format.Display(performance.Duration(c.us), performance.Run, performance.Short), ShouldEqual, c.want)
			}
		})
	})
}

func TestDisplay_Clock(t *testing.T) {
	Convey("Given middle and long race times", t, func() {
		cases := []struct {
			us      uint64
			profile performance.RunningProfile
			want    string
		}{
			{206_000_000, performance.Middle, "3:26.00"},
			{100_910_000, performance.Middle, "1:40.91"},
			{9_580_000, performance.Middle, "0:09.58"},
			{1_571_170_000, performance.Long, "26:11.17"},
			{3_599_990_000, performance.Long, "59:59.99"},
			{3_599_995_000, performance.Long, "1h00min00s"},
			{7_269_000_000, performance.Long, "2h01min09s"},
			{7_269_000_001, performance.Long, "2h01min10s"},
			{36_005_000_000, performance.Long, "10h00min05s"},
		}

		Convey("Then the hour segment appears only from one hour on", func() {
			for _, c := range cases {
				So(format.Display(performance.Duration(c.us), performance.Run, c.profile), ShouldEqual, c.want)
			}
		})
	})
}

func TestDisplay_Distance(t *testing.T) {
	Convey("Given field measurements", t, func() {
		Convey("When the value has more than centimetre precision", func() {
			Convey("Then it is truncated, not rounded", func() {
				So(format.Display(meters(t, 6.523), performance.Jump, performance.Short), ShouldEqual, "6.52m")
				So(format.Display(meters(t, 6.529), performance.Jump, performance.Short), ShouldEqual, "6.52m")
				So(format.Display(meters(t, 23.56*0.8), performance.Throw, performance.Short), ShouldEqual, "18.84m")
			})
		})

		Convey("When the value is an exact centimetre count", func() {
			Convey("Then binary representation does not lose a centimetre", func() {
				So(format.Display(meters(t, 6.52), performance.Jump, performance.Short), ShouldEqual, "6.52m")
				So(format.Display(meters(t, 8.95), performance.Jump, performance.Short), ShouldEqual, "8.95m")
				So(format.Display(meters(t, 0.29), performance.Throw, performance.Short), ShouldEqual, "0.29m")
				So(format.Display(meters(t, 98.48), performance.Throw, performance.Long), ShouldEqual, "98.48m")
			})
		})

		Convey("When the value is small", func() {
			So(format.Display(meters(t, 0.1), performance.Jump, performance.Short), ShouldEqual, "0.10m")
			So(format.Display(meters(t, 0), performance.Jump, performance.Short), ShouldEqual, "0.00m")
		})
	})

	Convey("Given a value of the wrong unit", t, func() {
		Convey("Then the canonical form is returned", func() {
			So(format.Display(meters(t, 6.52), performance.Run, performance.Short), ShouldEqual, "6.52")
			So(format.Display(performance.Duration(9_580_000), performance.Jump, performance.Short), ShouldEqual, "9.58")
		})
	})
}

func TestLabels(t *testing.T) {
	Convey("Given categories and genders", t, func() {
		Convey("Then every value has a label", func() {
			for _, c := range model.Categories {
				So(format.CategoryLabel(c), ShouldNotBeBlank)
			}
			So(format.CategoryLabel(model.U20), ShouldEqual, "Under 20")
			So(format.CategoryLabel(model.Master), ShouldEqual, "Masters")
			So(format.GenderLabel(model.Women), ShouldEqual, "Women")
		})

		Convey("Then a key renders with its discipline name", func() {
			k := model.RecordKey{DisciplineID: "100m", Gender: model.Men, Category: model.Senior}
			So(format.KeyLabel(k, "100 metres"), ShouldEqual, "100 metres Men, Senior")
			So(format.KeyLabel(k, ""), ShouldEqual, "100m Men, Senior")
		})
	})
}
