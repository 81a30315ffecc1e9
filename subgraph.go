package timely

// BoundaryNode is the Location.Node value reserved for a Subgraph's own
// external ports: Kind Source means the scope's own input (a timestamp
// handed in from the enclosing scope), Kind Target means the scope's own
// output (a timestamp about to be handed up), matching original_source's
// nested::Source::GraphInput / nested::Target::GraphOutput distinction
// from its ChildOutput / ChildInput counterparts.
const BoundaryNode = -1

// subgraphEdge is a direct dataflow edge between two locations inside a
// scope, recorded by Connect and replayed into Reachability.AddSourceTarget
// at Finalize time (spec.md §4.5; original_source's Subgraph::connect).
type subgraphEdge[T comparable, S any] struct {
	from, to Location
	summary  S
}

// Subgraph is itself an Operator: a scope containing child operators, a
// reachability computation over their declared internal summaries and
// their real dataflow edges, and a progress tracker that fans frontier
// changes out to children and upward to the enclosing scope (spec.md
// §4.7).
type Subgraph[T comparable, S any] struct {
	path     []int
	children []Operator[T, S]
	edges    []subgraphEdge[T, S]

	pathSummary func(a, b S) (S, bool)
	identity    S
	leSummary   func(a, b S) bool
	order       Order[T]
	resultsIn   func(sum S, t T) (T, bool)

	reachability *Reachability[T, S]
	tracker      *Tracker[T, S]
	broadcaster  *Broadcaster[T]

	external [][]*Antichain[S]

	inputs, outputs int
	progress        *OperatorProgress[T]
	priorFrontiers  []*Antichain[T]
}

// NewSubgraph builds an empty scope at path, ready to accept children via
// AddChild before Finalize computes reachability.
func NewSubgraph[T comparable, S any](path []int, identity S, pathSummary func(a, b S) (S, bool), leSummary func(a, b S) bool, order Order[T], resultsIn func(sum S, t T) (T, bool)) *Subgraph[T, S] {
	return &Subgraph[T, S]{
		path:        path,
		pathSummary: pathSummary,
		identity:    identity,
		leSummary:   leSummary,
		order:       order,
		resultsIn:   resultsIn,
		progress:    NewOperatorProgress[T](0, 0),
	}
}

// SetPorts declares this subgraph's own port counts, needed when it is
// nested as a child of a larger scope so GetInternalSummary/Progress
// report real sizes instead of the root-scope default of none.
func (s *Subgraph[T, S]) SetPorts(inputs, outputs int) {
	s.inputs = inputs
	s.outputs = outputs
	s.progress = NewOperatorProgress[T](inputs, outputs)
	s.priorFrontiers = nil
}

// SetBroadcaster wires an all-to-all exchange channel for this
// subgraph's progress updates (spec.md §4.7 step 3, §9). A subgraph with
// no broadcaster treats its own outgoing updates as already merged,
// correct for a single-worker computation.
func (s *Subgraph[T, S]) SetBroadcaster(b *Broadcaster[T]) {
	s.broadcaster = b
}

// AddChild registers a child operator, returning the index assigned to
// it — the Location.Node callers should use when wiring Connect edges to
// or from this child. Must be called before Finalize.
func (s *Subgraph[T, S]) AddChild(op Operator[T, S]) int {
	idx := len(s.children)
	s.children = append(s.children, op)
	return idx
}

// Connect records a direct dataflow edge from a child's output (or this
// scope's own input, via BoundaryNode) to a child's input (or this
// scope's own output, via BoundaryNode), carrying summary. Must be
// called before Finalize (spec.md §4.5's source-target edges;
// original_source's Subgraph::connect(source, target)).
func (s *Subgraph[T, S]) Connect(from, to Location, summary S) {
	s.edges = append(s.edges, subgraphEdge[T, S]{from, to, summary})
}

// Finalize computes reachability across every child's internal summary
// and this scope's real edges, distributes the per-child external
// summaries, seeds the progress tracker with every child's initial
// capabilities, and builds the tracker that Schedule will drive (spec.md
// §4.5, §4.6, §4.7).
func (s *Subgraph[T, S]) Finalize() {
	s.reachability = NewReachability[T, S](s.identity, s.pathSummary, s.leSummary)

	initialCaps := make([][]*ChangeBatch[T], len(s.children))
	for idx, child := range s.children {
		internal, caps := child.GetInternalSummary()
		initialCaps[idx] = caps
		for input, byOutput := range internal {
			for output, antichain := range byOutput {
				if antichain == nil {
					continue
				}
				for _, sum := range antichain.Elements() {
					from := Location{Node: idx, Port: input, Kind: Target}
					to := Location{Node: idx, Port: output, Kind: Source}
					s.reachability.AddTargetTarget(from, to, sum)
				}
			}
		}
	}

	for _, e := range s.edges {
		s.reachability.AddSourceTarget(e.from, e.to, e.summary)
	}

	computed := s.reachability.Compute()

	s.external = make([][]*Antichain[S], len(s.children))
	for idx, child := range s.children {
		byInput := make([]*Antichain[S], child.Inputs())
		for input := range byInput {
			loc := Location{Node: idx, Port: input, Kind: Target}
			byOutput := computed[loc]
			merged := NewAntichain[S](s.leSummary)
			for _, anti := range byOutput {
				for _, sum := range anti.Elements() {
					merged.Insert(sum)
				}
			}
			byInput[input] = merged
		}
		s.external[idx] = byInput
		child.SetExternalSummary(wrapExternal(byInput))
	}

	summaries := map[Location]map[Location]*Antichain[S]{}
	for loc, byTo := range computed {
		summaries[loc] = byTo
	}
	s.tracker = NewTracker[T, S](s.order, PointstampSummaries[T, S](summaries), s.resultsIn)

	for idx, caps := range initialCaps {
		for output, cb := range caps {
			if cb == nil {
				continue
			}
			loc := Location{Node: idx, Port: output, Kind: Source}
			for _, d := range cb.Drain() {
				s.tracker.UpdateSource(loc, d.T, d.Delta)
			}
		}
	}
}

func wrapExternal[S any](byInput []*Antichain[S]) [][]*Antichain[S] {
	out := make([][]*Antichain[S], len(byInput))
	for i, a := range byInput {
		out[i] = []*Antichain[S]{a}
	}
	return out
}

// Path implements Operator.
func (s *Subgraph[T, S]) Path() []int { return s.path }

// Inputs implements Operator.
func (s *Subgraph[T, S]) Inputs() int { return s.inputs }

// Outputs implements Operator.
func (s *Subgraph[T, S]) Outputs() int { return s.outputs }

// GetInternalSummary implements Operator for a subgraph nested inside a
// larger scope: it reuses the reachability already computed among its own
// children. A nested subgraph's own initial output capabilities are
// whatever its children bubble up through Schedule rather than something
// known at Finalize time, so it reports none here (spec.md §6; a known
// simplification recorded in DESIGN.md — nested scopes are wired but not
// exercised end-to-end by tests).
func (s *Subgraph[T, S]) GetInternalSummary() ([][]*Antichain[S], []*ChangeBatch[T]) {
	caps := make([]*ChangeBatch[T], s.outputs)
	for i := range caps {
		caps[i] = NewChangeBatch[T]()
	}
	return s.external, caps
}

// SetExternalSummary implements Operator.
func (s *Subgraph[T, S]) SetExternalSummary(summaries [][]*Antichain[S]) {}

// Progress implements Operator.
func (s *Subgraph[T, S]) Progress() *OperatorProgress[T] { return s.progress }

// Schedule implements the scope scheduling protocol: ingest any frontier
// changes the enclosing scope delivered since last round, schedule every
// child once and collect what it reports consuming, producing, and
// holding, exchange those changes with peer workers, propagate them to a
// fixed point, hand each child its refreshed input frontiers, and bubble
// this scope's own unrouted output changes up for its own Progress to
// report (spec.md §4.7, schedule()).
func (s *Subgraph[T, S]) Schedule() bool {
	s.ingestExternalFrontiers()

	active := false
	var outgoing []ProgressTriple[T]

	for idx, child := range s.children {
		if child.Schedule() {
			active = true
		}
		p := child.Progress()
		outgoing = append(outgoing, collectTriples(idx, Target, p.Consumed)...)
		outgoing = append(outgoing, collectTriples(idx, Source, p.Produced)...)
		outgoing = append(outgoing, collectTriples(idx, Source, p.Internal)...)
	}

	merged := outgoing
	if s.broadcaster != nil {
		merged = s.broadcaster.SendAndRecv(outgoing)
	}
	for _, tr := range merged {
		loc := Location{Node: tr.Node, Port: tr.Port, Kind: tr.Kind}
		if tr.Kind == Source {
			s.tracker.UpdateSource(loc, tr.T, tr.Delta)
		} else {
			s.tracker.UpdateTarget(loc, tr.T, tr.Delta)
		}
	}

	s.tracker.PropagateAll()

	for idx, child := range s.children {
		p := child.Progress()
		for input := range p.Frontiers {
			loc := Location{Node: idx, Port: input, Kind: Target}
			p.Frontiers[input] = s.tracker.Frontier(loc)
		}
	}

	s.bubbleOutputChanges()

	return active
}

// collectTriples drains every ChangeBatch in batches (one per port) into
// ProgressTriples addressed at (node, port, kind), the step 1-2
// translation from a child's own progress report into the wire shape the
// broadcaster exchanges (spec.md §4.7).
func collectTriples[T comparable](node int, kind PortKind, batches []*ChangeBatch[T]) []ProgressTriple[T] {
	var out []ProgressTriple[T]
	for port, cb := range batches {
		if cb == nil {
			continue
		}
		for _, d := range cb.Drain() {
			out = append(out, ProgressTriple[T]{Node: node, Port: port, Kind: kind, T: d.T, Delta: d.Delta})
		}
	}
	return out
}

// ingestExternalFrontiers diffs this scope's own Progress().Frontiers —
// written by an enclosing Subgraph after its own propagation pass —
// against what was last seen, and feeds the difference into this scope's
// tracker at its GraphInput locations (spec.md §4.7 step 4, the
// feed-back leg, applied one level up when this subgraph is itself a
// child).
func (s *Subgraph[T, S]) ingestExternalFrontiers() {
	if s.tracker == nil || len(s.progress.Frontiers) == 0 {
		return
	}
	if s.priorFrontiers == nil {
		s.priorFrontiers = make([]*Antichain[T], len(s.progress.Frontiers))
	}
	for input, front := range s.progress.Frontiers {
		if front == nil {
			continue
		}
		prev := s.priorFrontiers[input]
		if prev == nil {
			prev = NewAntichain[T](s.order)
		}
		loc := Location{Node: BoundaryNode, Port: input, Kind: Source}
		for _, fd := range diffFrontiers(s.order, prev, front) {
			s.tracker.UpdateSource(loc, fd.T, fd.Delta)
		}
		s.priorFrontiers[input] = front
	}
}

// bubbleOutputChanges moves frontier deltas the tracker accumulated at
// this scope's own GraphOutput locations — the ones with nowhere further
// to propagate inside this scope — into this subgraph's own Progress, so
// an enclosing Subgraph's next Schedule pass drains them exactly like any
// other child's produced output (spec.md §4.7 step 5).
func (s *Subgraph[T, S]) bubbleOutputChanges() {
	for loc, deltas := range s.tracker.OutputChanges {
		if loc.Node != BoundaryNode || loc.Kind != Target {
			continue
		}
		if loc.Port >= len(s.progress.Produced) {
			continue
		}
		for _, fd := range deltas {
			s.progress.Produced[loc.Port].Update(fd.T, fd.Delta)
		}
		delete(s.tracker.OutputChanges, loc)
	}
}

// NotifyMe implements Operator; subgraphs are always opportunistically
// scheduled rather than notification-driven.
func (s *Subgraph[T, S]) NotifyMe() bool { return false }

// Tracker exposes the subgraph's progress tracker so a worker loop can
// feed external frontier changes in and read output changes back out.
func (s *Subgraph[T, S]) Tracker() *Tracker[T, S] {
	return s.tracker
}
