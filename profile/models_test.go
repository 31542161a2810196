package profile

import "testing"

func TestCompletionRate(t *testing.T) {
	cases := []struct {
		name       string
		successful int
		total      int
		want       float64
	}{
		{name: "no matches yet", successful: 0, total: 0, want: 100},
		{name: "perfect record", successful: 3, total: 3, want: 100},
		{name: "half", successful: 1, total: 2, want: 50},
		{name: "none successful", successful: 0, total: 4, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CompletionRate(tc.successful, tc.total); got != tc.want {
				t.Fatalf("CompletionRate(%d, %d) = %v, want %v", tc.successful, tc.total, got, tc.want)
			}
		})
	}
}
