package timely

import "testing"

type countingOperator struct {
	path      []int
	remaining int
	scheduled int
	progress  *OperatorProgress[int]
}

func (c *countingOperator) Path() []int  { return c.path }
func (c *countingOperator) Inputs() int  { return 1 }
func (c *countingOperator) Outputs() int { return 1 }
func (c *countingOperator) GetInternalSummary() ([][]*Antichain[int], []*ChangeBatch[int]) {
	le := func(a, b int) bool { return a <= b }
	anti := NewAntichain[int](le)
	anti.Insert(1)
	return [][]*Antichain[int]{{anti}}, []*ChangeBatch[int]{NewChangeBatch[int]()}
}
func (c *countingOperator) SetExternalSummary(_ [][]*Antichain[int]) {}
func (c *countingOperator) Schedule() bool {
	c.scheduled++
	if c.remaining > 0 {
		c.remaining--
		return true
	}
	return false
}
func (c *countingOperator) Progress() *OperatorProgress[int] {
	if c.progress == nil {
		c.progress = NewOperatorProgress[int](c.Inputs(), c.Outputs())
	}
	return c.progress
}
func (c *countingOperator) NotifyMe() bool { return false }

func intLessEqual(a, b int) bool { return a <= b }

func TestWorkerSchedulesActivatedDataflow(t *testing.T) {
	sub := NewSubgraph[int, int](
		[]int{0},
		0,
		func(a, b int) (int, bool) { return a + b, true },
		intLessEqual,
		intLessEqual,
		func(sum, t int) (int, bool) { return sum + t, true },
	)
	op := &countingOperator{path: []int{0, 0}, remaining: 2}
	sub.AddChild(op)
	sub.Finalize()

	w := NewWorker[int, int](0, 1)
	w.AddDataflow(sub)

	if !w.Step() {
		t.Fatalf("expected Step to report a hosted dataflow")
	}
	if op.scheduled != 1 {
		t.Fatalf("scheduled = %d, want 1 (worker should not re-schedule without reactivation)", op.scheduled)
	}

	w.Activations().Activate(addressKey(sub.Path()))
	if !w.Step() {
		t.Fatalf("expected Step to report a hosted dataflow")
	}
	if op.scheduled != 2 {
		t.Fatalf("scheduled = %d, want 2", op.scheduled)
	}

	w.Activations().Activate(addressKey(sub.Path()))
	if !w.Step() {
		t.Fatalf("expected Step to keep reporting a hosted dataflow even once its work is exhausted")
	}
	if op.scheduled != 3 {
		t.Fatalf("scheduled = %d, want 3", op.scheduled)
	}

	w.RemoveDataflow(sub.Path())
	if w.Step() {
		t.Fatalf("expected Step to report no hosted dataflow after RemoveDataflow")
	}
}

func TestWorkerStepOrParkReportsActivity(t *testing.T) {
	sub := NewSubgraph[int, int](
		[]int{0},
		0,
		func(a, b int) (int, bool) { return a + b, true },
		intLessEqual,
		intLessEqual,
		func(sum, t int) (int, bool) { return sum + t, true },
	)
	op := &countingOperator{path: []int{0, 0}, remaining: 1}
	sub.AddChild(op)
	sub.Finalize()

	w := NewWorker[int, int](0, 1)
	w.AddDataflow(sub)

	if !w.StepOrPark(0) {
		t.Fatalf("expected StepOrPark to report activity while the operator has remaining work")
	}
	if op.scheduled != 1 {
		t.Fatalf("scheduled = %d, want 1", op.scheduled)
	}
}

func TestReachabilityComputesTransitiveSummary(t *testing.T) {
	r := NewReachability[int, int](0, func(a, b int) (int, bool) { return a + b, true }, intLessEqual)
	src := Location{Node: 0, Port: 0, Kind: Source}
	mid := Location{Node: 1, Port: 0, Kind: Target}
	midOut := Location{Node: 1, Port: 0, Kind: Source}
	dst := Location{Node: 2, Port: 0, Kind: Target}

	r.AddSourceTarget(src, mid, 1)
	r.AddTargetTarget(mid, midOut, 1)
	r.AddSourceTarget(midOut, dst, 2)

	computed := r.Compute()
	anti, ok := computed[src][dst]
	if !ok {
		t.Fatalf("expected a summary from src to dst")
	}
	elems := anti.Elements()
	if len(elems) != 1 || elems[0] != 4 {
		t.Fatalf("summary from src to dst = %v, want [4]", elems)
	}
}

func TestSubgraphPropagatesProducedOutputToBoundary(t *testing.T) {
	sub := NewSubgraph[int, int](
		[]int{0},
		0,
		func(a, b int) (int, bool) { return a + b, true },
		intLessEqual,
		intLessEqual,
		func(sum, t int) (int, bool) { return sum + t, true },
	)
	sub.SetPorts(0, 1)
	op := &countingOperator{path: []int{0, 0}}
	idx := sub.AddChild(op)
	sub.Connect(
		Location{Node: idx, Port: 0, Kind: Source},
		Location{Node: BoundaryNode, Port: 0, Kind: Target},
		1,
	)
	sub.Finalize()

	op.Progress().Produced[0].Update(5, 1)
	sub.Schedule()

	if sub.Progress().Produced[0].IsEmpty() {
		t.Fatalf("expected a produced-output change to bubble to the subgraph's own boundary")
	}
}
