package mathx_test

import (
	"fmt"
	"testing"

	"github.jpl.nasa.gov/bdube/simsync/mathx"
)

func ExampleRound() {
	fmt.Println(mathx.Round(1.234, 0.01))
	// Output: 1.23
}

func ExampleRoundHalfUp() {
	fmt.Println(mathx.RoundHalfUp(1.5))
	// Output: 2
}

func TestRoundHalfUp(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{0.49, 0},
		{0.5, 1},
		{1.49, 1},
		{1.5, 2},
		{2.5, 3},
		{10000, 10000},
	}
	for _, tc := range cases {
		got := mathx.RoundHalfUp(tc.in)
		if got != tc.want {
			t.Errorf("RoundHalfUp(%v) = %d, expected %d", tc.in, got, tc.want)
		}
	}
}
