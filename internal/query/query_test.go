package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/family-events/internal/model"
)

func ev(id, title string, start *model.Timestamp, city model.City, cost model.Cost, ages model.AgeRange, tags ...model.ActivityType) model.Event {
	e := model.Event{
		ID:            id,
		Title:         title,
		Location:      model.Location{City: city},
		ActivityTypes: tags,
		AgeRange:      ages,
		Cost:          cost,
		Source:        model.SourceParks,
	}
	if start != nil {
		e.Timing = model.OneTime(*start, nil)
	} else {
		e.Timing = model.Recurring(model.Schedule{Hours: model.Hours{Open: "09:00", Close: "17:00"}})
	}
	return e
}

func ts(month time.Month, day int) *model.Timestamp {
	t := model.NewTimestamp(2026, month, day, 10, 0)
	return &t
}

func ptr[T any](v T) *T { return &v }

func titles(events []model.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Title)
	}
	return out
}

// Wednesday.
var today = model.NewDate(2026, time.March, 4)

func sample() []model.Event {
	return []model.Event{
		ev("1", "Owl Prowl", ts(time.March, 7), "Annandale", model.Cost{Amount: 8, Per: model.PerPerson}, model.AgeRange{Min: 5, Max: 12}, model.ActivityNature),
		ev("2", "storytime", ts(time.March, 5), "Fairfax", model.Cost{Amount: 0, Per: model.PerPerson}, model.AgeRange{Min: 1, Max: 3}, model.ActivityEducational),
		ev("3", "Stars", ts(time.April, 10), "Chantilly", model.Free(), model.AllAges(), model.ActivityScience),
		ev("4", "Farm Park", nil, "Herndon", model.Cost{Amount: 20, Per: model.PerFamily}, model.AllAges(), model.ActivityNature),
		ev("5", "Jubilee", ts(time.May, 23), "Fairfax", model.Cost{Amount: 15, Per: model.PerPerson}, model.AllAges(), model.ActivitySeasonal, model.ActivityNature),
	}
}

func TestWindowFor(t *testing.T) {
	tests := []struct {
		preset   DatePreset
		today    model.Date
		from, to model.Date
	}{
		{ThisWeekend, today, model.NewDate(2026, time.March, 7), model.NewDate(2026, time.March, 8)},
		{ThisWeekend, model.NewDate(2026, time.March, 7), model.NewDate(2026, time.March, 7), model.NewDate(2026, time.March, 8)},
		{ThisWeekend, model.NewDate(2026, time.March, 8), model.NewDate(2026, time.March, 7), model.NewDate(2026, time.March, 8)},
		{ThisWeek, today, today, model.NewDate(2026, time.March, 8)},
		{ThisMonth, today, today, model.NewDate(2026, time.March, 31)},
		{NextMonth, today, model.NewDate(2026, time.April, 1), model.NewDate(2026, time.April, 30)},
		{NextMonth, model.NewDate(2026, time.December, 15), model.NewDate(2027, time.January, 1), model.NewDate(2027, time.January, 31)},
	}
	for _, tt := range tests {
		t.Run(string(tt.preset)+" "+tt.today.String(), func(t *testing.T) {
			w, ok := WindowFor(tt.preset, tt.today)
			require.True(t, ok)
			assert.Equal(t, tt.from.String(), w.From.String())
			assert.Equal(t, tt.to.String(), w.To.String())
		})
	}

	_, ok := WindowFor(AnyDate, today)
	assert.False(t, ok)
}

func TestApply_Filters(t *testing.T) {
	events := sample()

	got := Apply(events, Filter{ActivityTypes: []model.ActivityType{model.ActivityNature}}, today)
	assert.Equal(t, []string{"Owl Prowl", "Jubilee", "Farm Park"}, titles(got))

	got = Apply(events, Filter{Cities: []model.City{"Fairfax"}}, today)
	assert.Equal(t, []string{"storytime", "Jubilee"}, titles(got))

	got = Apply(events, Filter{MaxCost: ptr(0.0)}, today)
	assert.Equal(t, []string{"storytime", "Stars"}, titles(got))

	got = Apply(events, Filter{MaxCost: ptr(10.0)}, today)
	assert.Equal(t, []string{"storytime", "Owl Prowl", "Stars"}, titles(got))

	got = Apply(events, Filter{Ages: &model.AgeRange{Min: 13, Max: 17}}, today)
	assert.Equal(t, []string{"Stars", "Jubilee", "Farm Park"}, titles(got))

	got = Apply(events, Filter{Date: ThisWeekend}, today)
	assert.Equal(t, []string{"Owl Prowl", "Farm Park"}, titles(got))

	got = Apply(events, Filter{Date: NextMonth}, today)
	assert.Equal(t, []string{"Stars", "Farm Park"}, titles(got))
}

func TestApply_FreeEquivalence(t *testing.T) {
	zero := ev("a", "A", ts(time.March, 5), "Fairfax", model.Cost{Amount: 0, Per: model.PerPerson}, model.AllAges(), model.ActivityArts)
	free := ev("b", "B", ts(time.March, 5), "Fairfax", model.Free(), model.AllAges(), model.ActivityArts)
	for _, limit := range []float64{0, 5} {
		f := Filter{MaxCost: ptr(limit)}
		assert.Equal(t, f.Match(zero), f.Match(free))
	}
	events := []model.Event{zero, free}
	Sort(events, SortCost)
	assert.Equal(t, []string{"A", "B"}, titles(events))
}

func TestSort(t *testing.T) {
	events := sample()

	Sort(events, SortDateDesc)
	assert.Equal(t, []string{"Farm Park", "Jubilee", "Stars", "Owl Prowl", "storytime"}, titles(events))

	Sort(events, SortName)
	assert.Equal(t, []string{"Farm Park", "Jubilee", "Owl Prowl", "Stars", "storytime"}, titles(events))

	Sort(events, SortCost)
	assert.Equal(t, []string{"Stars", "storytime", "Owl Prowl", "Jubilee", "Farm Park"}, titles(events))
}

func TestFilter_Active(t *testing.T) {
	assert.Zero(t, Filter{Date: AnyDate}.Active())
	assert.Equal(t, 3, Filter{
		Cities:  []model.City{"Reston"},
		MaxCost: ptr(0.0),
		Date:    ThisMonth,
	}.Active())
}

func TestParse(t *testing.T) {
	p, err := ParseDatePreset("")
	require.NoError(t, err)
	assert.Equal(t, AnyDate, p)
	_, err = ParseDatePreset("someday")
	assert.Error(t, err)

	s, err := ParseSort("cost")
	require.NoError(t, err)
	assert.Equal(t, SortCost, s)
	_, err = ParseSort("random")
	assert.Error(t, err)
}
