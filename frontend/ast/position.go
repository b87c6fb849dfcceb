package ast

import (
	"fmt"
)

// Positioner allows finding the location in the original source file.
type Positioner interface {
	Pos() int // offset of the first character belonging to the node
	End() int // offset of the first character immediately after the node
}

// Range is a span of source offsets, as handed to us by the parser.
type Range struct {
	PosStart int
	PosEnd   int
}

// Pos returns the starting offset of the range.
func (r Range) Pos() int { return r.PosStart }

// End returns the ending offset of the range.
func (r Range) End() int { return r.PosEnd }

// Contains reports whether other lies entirely within r.
func (r Range) Contains(other Range) bool {
	return r.PosStart <= other.PosStart && other.PosEnd <= r.PosEnd
}

func (r Range) String() string {
	if r.PosStart == r.PosEnd {
		return fmt.Sprintf("%d", r.PosStart)
	}
	return fmt.Sprintf("%d-%d", r.PosStart, r.PosEnd)
}

// RangeBetween creates a Range between two Positioners.
func RangeBetween(fst, snd Positioner) Range {
	return Range{fst.Pos(), snd.End()}
}

// RangeOf creates a Range from a Positioner.
func RangeOf(node Positioner) Range {
	if node == nil {
		return Range{}
	}
	if asRange, ok := node.(*Range); ok {
		return *asRange
	}
	if asRange, ok := node.(Range); ok {
		return asRange
	}
	return Range{node.Pos(), node.End()}
}
