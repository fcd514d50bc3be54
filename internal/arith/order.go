package arith

import (
	"github.com/rhartert/yagh"

	"github.com/dkarv/mcsat/internal/vardb"
)

// valueOrder is the activity-ordered set of undecided arithmetic
// variables, mirroring internal/bcp's varOrder but without phase saving
// (arithmetic decisions pick a value within the current bounds, not a
// polarity) -- grounded the same way on yass.VarOrder's yagh-backed heap
// (internal/sat/ordering.go).
type valueOrder struct {
	heap   *yagh.IntMap[float64]
	scores []float64
}

func newValueOrder() *valueOrder {
	return &valueOrder{heap: yagh.New[float64](0)}
}

func (o *valueOrder) addVar(idx vardb.VarIndex) {
	if int(idx) != len(o.scores) {
		panic("arith: valueOrder.addVar called out of order")
	}
	o.scores = append(o.scores, 0)
	o.heap.GrowBy(1)
	o.heap.Put(int(idx), 0)
}

func (o *valueOrder) reinsert(v vardb.VarIndex) {
	o.heap.Put(int(v), -o.scores[v])
}

func (o *valueOrder) next(assigned func(vardb.VarIndex) bool) (vardb.VarIndex, bool) {
	for {
		item, ok := o.heap.Pop()
		if !ok {
			return 0, false
		}
		v := vardb.VarIndex(item.Elem)
		if assigned(v) {
			continue
		}
		return v, true
	}
}
