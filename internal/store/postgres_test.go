package store

import "testing"

func TestPgLimit(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{-5, 0},
		{-1, 0},
		{0, 0},
		{1, 1},
		{25, 25},
	}
	for _, c := range cases {
		if got := pgLimit(c.in); got != c.want {
			t.Errorf("pgLimit(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
