package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rotary-ams-gateway/internal/model"
)

var roster = []model.Member{
	{ID: 1, FirstName: "Maria", LastName: "Santos"},
	{ID: 2, FirstName: "Jose", LastName: "Rizal"},
	{ID: 3, FirstName: "Mario", LastName: "Reyes"},
}

func TestFilterMembers(t *testing.T) {
	testCases := []struct {
		name     string
		query    string
		expected []int64
	}{
		{name: "empty query keeps everyone in order", query: "", expected: []int64{1, 2, 3}},
		{name: "case insensitive", query: "MAR", expected: []int64{1, 3}},
		{name: "spans first and last name", query: "a s", expected: []int64{1}},
		{name: "last name", query: "rizal", expected: []int64{2}},
		{name: "no match", query: "xyz", expected: []int64{}},
		{name: "double space never matches", query: "maria  santos", expected: []int64{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ids := []int64{}
			for _, m := range FilterMembers(roster, tc.query) {
				ids = append(ids, m.ID)
			}
			assert.Equal(t, tc.expected, ids)
		})
	}
}

func TestFilterMembers_Idempotent(t *testing.T) {
	for _, q := range []string{"", "mar", "Reyes", "zzz"} {
		once := FilterMembers(roster, q)
		assert.Equal(t, once, FilterMembers(once, q), "query %q", q)
	}
}

func TestFilterMembers_Empty(t *testing.T) {
	assert.Empty(t, FilterMembers(nil, "a"))
	assert.Empty(t, FilterMembers(nil, ""))
}
