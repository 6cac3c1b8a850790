package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fleetops/suivi/core/user"
)

func intp(i int) *int { return &i }

func TestEvaluation_CalculateScore(t *testing.T) {
	brake := &Criterion{Name: "Freinage", MinValue: 1, MaxValue: 5, Active: true}
	speed := &Criterion{Name: "Vitesse", MinValue: 0, MaxValue: 10, Active: true}
	old := &Criterion{Name: "Ancien", MinValue: 0, MaxValue: 10}
	sixteen := &Criterion{Name: "Manoeuvres", MinValue: 0, MaxValue: 16, Active: true}

	tests := []struct {
		name  string
		notes []Note
		want  *float64
	}{
		{name: "no notes"},
		{name: "no values", notes: []Note{{Criterion: brake}, {Criterion: speed}}},
		{name: "full marks", notes: []Note{{Value: intp(5), Criterion: brake}}, want: floatp(100)},
		{name: "mixed", notes: []Note{{Value: intp(4), Criterion: brake}, {Value: intp(8), Criterion: speed}}, want: floatp(80)},
		{name: "rounded", notes: []Note{{Value: intp(1), Criterion: brake}, {Value: intp(1), Criterion: speed}}, want: floatp(13.3)},
		{name: "half to even down", notes: []Note{{Value: intp(1), Criterion: sixteen}}, want: floatp(6.2)},
		{name: "half to even up", notes: []Note{{Value: intp(3), Criterion: sixteen}}, want: floatp(18.8)},
		{name: "missing value skipped", notes: []Note{{Value: intp(4), Criterion: brake}, {Criterion: speed}}, want: floatp(80)},
		{name: "inactive criterion skipped", notes: []Note{{Value: intp(2), Criterion: brake}, {Value: intp(0), Criterion: old}}, want: floatp(40)},
		{name: "criterion not loaded", notes: []Note{{Value: intp(2)}}},
		{name: "zero max", notes: []Note{{Value: intp(0), Criterion: &Criterion{Active: true}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluation{Notes: tt.notes}.CalculateScore())
		})
	}
}

func floatp(f float64) *float64 { return &f }

func TestEvaluation_CompletionStatus(t *testing.T) {
	ev := Evaluation{Notes: []Note{{Value: intp(3)}, {Value: nil}, {Value: intp(0)}}}

	tests := []struct {
		name   string
		active int
		want   Completion
		str    string
	}{
		{name: "none", active: 0, want: Completion{Status: CompletionNone, Given: 2}, str: "no active criterion"},
		{name: "complete", active: 2, want: Completion{Status: CompletionComplete, Given: 2, Total: 2}, str: "complete (2/2)"},
		{name: "incomplete", active: 4, want: Completion{Status: CompletionIncomplete, Given: 2, Total: 4}, str: "incomplete (2/4)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ev.CompletionStatus(tt.active)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.str, got.String())
		})
	}
}

func TestParseNoteValue(t *testing.T) {
	tests := []struct {
		raw     interface{}
		want    int
		wantErr bool
	}{
		{raw: float64(4), want: 4},
		{raw: 7, want: 7},
		{raw: " 3 ", want: 3},
		{raw: "-1", want: -1},
		{raw: 2.5, wantErr: true},
		{raw: "abc", wantErr: true},
		{raw: true, wantErr: true},
		{raw: []interface{}{1}, wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseNoteValue(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.raw)
			continue
		}
		if assert.NoError(t, err, "%v", tt.raw) {
			assert.Equal(t, tt.want, got)
		}
	}
}

func TestCriterion(t *testing.T) {
	c := Criterion{Name: "Freinage", MinValue: 1, MaxValue: 5}
	assert.Equal(t, "Freinage (1-5)", c.String())
	assert.True(t, c.InRange(1))
	assert.True(t, c.InRange(5))
	assert.False(t, c.InRange(0))
	assert.False(t, c.InRange(6))
}

func TestEvaluatorNames(t *testing.T) {
	last, first := evaluatorNames(user.User{LastName: " Curie ", FirstName: "Marie"})
	assert.Equal(t, "Curie", last)
	assert.Equal(t, "Marie", first)

	last, first = evaluatorNames(user.User{})
	assert.Equal(t, DefaultLastName, last)
	assert.Equal(t, DefaultFirstName, first)

	assert.Equal(t, "Marie Curie", Evaluator{LastName: "Curie", FirstName: "Marie"}.FullName())
}
