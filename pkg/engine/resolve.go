package engine

import (
	"github.com/wavelang/engine/pkg/engine/buffer"
	"github.com/wavelang/engine/pkg/engine/stage"
	"github.com/wavelang/engine/pkg/graph"
)

// newArgBuffer allocates the reusable ResolvedArgument slice for one task,
// shaped to its argument list: array arguments get their Elements slice
// sized up front. A task's argument shape is static for the lifetime of the
// graph, so this runs once at Initialize and the per-chunk marshaling below
// fills the same buffer in place without allocating.
func newArgBuffer(g graph.Graph, taskIndex int) []graph.ResolvedArgument {
	args := g.TaskArguments(taskIndex)
	out := make([]graph.ResolvedArgument, len(args))
	for i, a := range args {
		out[i].Kind = a.Kind
		if a.Kind.IsArray() {
			out[i].Elements = make([]graph.ResolvedArgument, len(a.Elements))
		}
	}
	return out
}

// resolveArgumentsInto marshals a task's graph.Argument list into dst (the
// task's preallocated argument buffer, exposed through TaskContext.Arg),
// dereferencing every buffer reference through the buffer manager.
func resolveArgumentsInto(dst []graph.ResolvedArgument, bufMgr *buffer.Manager, s stage.Stage, g graph.Graph, taskIndex int) {
	args := g.TaskArguments(taskIndex)
	for i, a := range args {
		resolveArgumentInto(&dst[i], bufMgr, s, a)
	}
}

// resolveConstantArgumentsInto is the initializer/voice-initializer variant:
// those callbacks may only read constant arguments, so buffer-backed ones
// are cleared to their zero value rather than dereferenced (no live buffer
// is guaranteed to exist at those lifecycle points).
func resolveConstantArgumentsInto(dst []graph.ResolvedArgument, g graph.Graph, taskIndex int) {
	args := g.TaskArguments(taskIndex)
	for i, a := range args {
		ra := &dst[i]
		ra.Kind = a.Kind
		if a.Kind.IsOutput() {
			clearResolved(ra) // outputs are never read as constants
			continue
		}
		if a.Kind.IsArray() {
			kind := scalarKindFor(a.Kind)
			for j, e := range a.Elements {
				el := &ra.Elements[j]
				el.Kind = kind
				constantElementInto(el, e)
			}
			continue
		}
		constantElementInto(ra, a.Scalar)
	}
}

func resolveArgumentInto(ra *graph.ResolvedArgument, bufMgr *buffer.Manager, s stage.Stage, a graph.Argument) {
	ra.Kind = a.Kind

	if a.Kind.IsOutput() {
		buf := bufMgr.ResolveInput(s, a.BufferIndex())
		clearResolved(ra)
		ra.IsConst = buf.Constant
		if buf.Primitive == graph.PrimitiveBool {
			ra.BoolBuf = buf.Bool
		} else {
			ra.RealBuf = buf.Real
		}
		return
	}

	if a.Kind.IsArray() {
		kind := scalarKindFor(a.Kind)
		for j, e := range a.Elements {
			el := &ra.Elements[j]
			el.Kind = kind
			resolveScalarInto(el, bufMgr, s, kind, e)
		}
		return
	}

	resolveScalarInto(ra, bufMgr, s, a.Kind, a.Scalar)
}

func resolveScalarInto(ra *graph.ResolvedArgument, bufMgr *buffer.Manager, s stage.Stage, kind graph.ArgumentKind, e graph.ElementRef) {
	clearResolved(ra)
	if kind == graph.ArgStringIn {
		ra.IsConst = true
		ra.StrConst = e.ConstString
		return
	}
	if !e.IsBuffer {
		ra.IsConst = true
		ra.RealConst = e.ConstReal
		ra.BoolConst = e.ConstBool
		return
	}
	buf := bufMgr.ResolveInput(s, e.BufferIndex)
	ra.IsConst = buf.Constant
	switch buf.Primitive {
	case graph.PrimitiveBool:
		ra.BoolBuf = buf.Bool
		if buf.Constant && len(buf.Bool) > 0 {
			ra.BoolConst = buf.Bool[0]
		}
	default:
		ra.RealBuf = buf.Real
		if buf.Constant && len(buf.Real) > 0 {
			ra.RealConst = buf.Real[0]
		}
	}
}

func constantElementInto(ra *graph.ResolvedArgument, e graph.ElementRef) {
	clearResolved(ra)
	if e.IsBuffer {
		return // buffer-backed; left unresolved at constant-only lifecycle points
	}
	ra.IsConst = true
	ra.RealConst = e.ConstReal
	ra.BoolConst = e.ConstBool
	ra.StrConst = e.ConstString
}

// clearResolved resets every value field of a reused ResolvedArgument,
// preserving Kind and the preallocated Elements slice. Stale buffer slices
// from the previous chunk must never leak into a callback that expects a
// constant-only or freshly resolved view.
func clearResolved(ra *graph.ResolvedArgument) {
	ra.RealBuf = nil
	ra.BoolBuf = nil
	ra.IsConst = false
	ra.RealConst = 0
	ra.BoolConst = false
	ra.StrConst = ""
}

func scalarKindFor(arrayKind graph.ArgumentKind) graph.ArgumentKind {
	switch arrayKind {
	case graph.ArgBoolArrayIn:
		return graph.ArgBoolIn
	case graph.ArgStringArrayIn:
		return graph.ArgStringIn
	default:
		return graph.ArgRealIn
	}
}
