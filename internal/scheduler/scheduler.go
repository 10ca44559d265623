// Package scheduler executes a batch of tool calls concurrently while
// preserving the deterministic, input-order result sequence core.Loop's
// sequential execution (and the original batch tool's flat fan-out)
// already guarantee, adding dependency-aware leveling on top: a tool
// call that writes a path later calls read or write must finish first.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gencode-labs/gencode/internal/log"
	"github.com/gencode-labs/gencode/internal/message"
)

// Dispatcher is the single-call execution seam the scheduler drives;
// internal/tool.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, tc message.ToolCall) *message.ToolResult
}

// PathSet describes which paths a tool call reads and writes, used to
// build the dependency DAG. Bash and any tool without a narrower
// convention write-all (conservatively depend on, and block, everything
// before them).
type PathSet struct {
	Reads     []string
	Writes    []string
	WritesAll bool
}

// PathsOf derives a PathSet for a tool call from its name and parsed
// params, following the same per-tool convention the permission engine
// uses to build rule strings: Read/Grep/Glob read their file_path (or
// path); WebFetch/WebSearch touch no local path; Edit/Write write
// file_path; Bash and unknown tools write-all.
func PathsOf(toolName string, params map[string]any) PathSet {
	switch toolName {
	case "Read", "Grep", "Glob":
		if fp, ok := params["file_path"].(string); ok && fp != "" {
			return PathSet{Reads: []string{fp}}
		}
		if p, ok := params["path"].(string); ok && p != "" {
			return PathSet{Reads: []string{p}}
		}
		return PathSet{}
	case "WebFetch", "WebSearch":
		return PathSet{}
	case "Edit", "Write":
		if fp, ok := params["file_path"].(string); ok && fp != "" {
			return PathSet{Writes: []string{fp}}
		}
		return PathSet{WritesAll: true}
	case "Bash":
		return PathSet{WritesAll: true}
	default:
		return PathSet{WritesAll: true}
	}
}

// item is one call plus its position and derived path set.
type item struct {
	index int
	call  message.ToolCall
	paths PathSet
}

// Batch runs a set of tool calls, level by level, bounded by
// maxConcurrent (0 or negative means unbounded within a level).
type Batch struct {
	Dispatcher     Dispatcher
	MaxConcurrent  int
	DeriveParams   func(tc message.ToolCall) map[string]any
}

// Execute runs calls and returns results in the same order as calls,
// regardless of completion order. A per-call panic is recovered and
// turned into an Internal error result rather than crashing the batch.
// Cancelling ctx abandons any calls not yet started or mid-flight;
// abandoned calls are not present in partial output (the caller gets a
// cancellation error result for them instead).
func (b *Batch) Execute(ctx context.Context, calls []message.ToolCall) []message.ToolResult {
	items := make([]item, len(calls))
	for i, tc := range calls {
		var params map[string]any
		if b.DeriveParams != nil {
			params = b.DeriveParams(tc)
		}
		items[i] = item{index: i, call: tc, paths: PathsOf(tc.Name, params)}
	}

	levels := levelize(items)
	results := make([]message.ToolResult, len(calls))

	for _, level := range levels {
		if ctx.Err() != nil {
			fillCancelled(results, level, ctx.Err())
			continue
		}
		b.runLevel(ctx, level, results)
	}

	return results
}

func (b *Batch) runLevel(ctx context.Context, level []item, results []message.ToolResult) {
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	if b.MaxConcurrent > 0 {
		g.SetLimit(b.MaxConcurrent)
	}

	for _, it := range level {
		it := it
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Logger().Error("tool call panicked",
						zap.String("tool", it.call.Name),
						zap.Any("panic", r),
						zap.String("stack", string(debug.Stack())))
					results[it.index] = *message.ErrorResult(it.call,
						fmt.Sprintf("internal error: tool %q panicked: %v", it.call.Name, r))
				}
			}()

			if gctx.Err() != nil {
				results[it.index] = *message.ErrorResult(it.call, "cancelled: "+gctx.Err().Error())
				return nil
			}
			if ctx.Err() != nil {
				results[it.index] = *message.ErrorResult(it.call, "cancelled: "+ctx.Err().Error())
				return nil
			}

			results[it.index] = *b.Dispatcher.Dispatch(ctx, it.call)
			return nil
		})
	}

	_ = g.Wait()
}

func fillCancelled(results []message.ToolResult, level []item, err error) {
	for _, it := range level {
		results[it.index] = *message.ErrorResult(it.call, "cancelled: "+err.Error())
	}
}

// levelize groups items into dependency levels: level N depends on every
// write in levels < N that overlaps its reads or writes (or is
// WritesAll, or the item itself is WritesAll — in which case it depends
// on ALL earlier items). Earlier level index = executes first.
func levelize(items []item) [][]item {
	n := len(items)
	levelOf := make([]int, n)

	for i := 0; i < n; i++ {
		dep := 0
		for j := 0; j < i; j++ {
			if overlaps(items[i], items[j]) && levelOf[j]+1 > dep {
				dep = levelOf[j] + 1
			}
		}
		levelOf[i] = dep
	}

	maxLevel := 0
	for _, l := range levelOf {
		if l > maxLevel {
			maxLevel = l
		}
	}

	levels := make([][]item, maxLevel+1)
	for i, l := range levelOf {
		levels[l] = append(levels[l], items[i])
	}
	return levels
}

func overlaps(a, b item) bool {
	if a.paths.WritesAll || b.paths.WritesAll {
		return true
	}
	for _, w := range b.paths.Writes {
		for _, r := range a.paths.Reads {
			if r == w {
				return true
			}
		}
		for _, aw := range a.paths.Writes {
			if aw == w {
				return true
			}
		}
	}
	for _, w := range a.paths.Writes {
		for _, r := range b.paths.Reads {
			if r == w {
				return true
			}
		}
	}
	return false
}
