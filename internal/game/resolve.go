package game

import "github.com/scythe504/rps-backend/internal"

// Winner names the side of a round that won.
type Winner int

const (
	WinnerNone Winner = iota
	WinnerA
	WinnerB
)

func (w Winner) String() string {
	switch w {
	case WinnerA:
		return "A"
	case WinnerB:
		return "B"
	default:
		return "none"
	}
}

// Outcome is the result of one round. It is never stored.
type Outcome struct {
	Winner Winner
	A      internal.Choice
	B      internal.Choice
}

var beats = map[internal.Choice]internal.Choice{
	internal.Rock:     internal.Scissors,
	internal.Scissors: internal.Paper,
	internal.Paper:    internal.Rock,
}

// Beats reports whether c wins against other.
func Beats(c, other internal.Choice) bool {
	return beats[c] == other && other != ""
}

// Resolve decides a round. Swapping a and b swaps the winner.
func Resolve(a, b internal.Choice) Outcome {
	out := Outcome{Winner: WinnerNone, A: a, B: b}
	switch {
	case a == b:
	case Beats(a, b):
		out.Winner = WinnerA
	case Beats(b, a):
		out.Winner = WinnerB
	}
	return out
}
