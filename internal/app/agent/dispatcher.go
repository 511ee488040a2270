// Package agent runs one assistant turn end to end: send the user's message
// to the model, then execute any tool calls the response carries against the
// record layer, strictly in order, reporting a result per call id back to
// the assistant channel before the next call starts.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/focusdeck/focusdeck/internal/app/syncer"
	"github.com/focusdeck/focusdeck/internal/domain"
	"github.com/focusdeck/focusdeck/internal/infra/observability"
)

// TurnState tracks a chat turn through its lifecycle.
type TurnState string

const (
	StateSent             TurnState = "SENT"
	StateAwaitingModel    TurnState = "AWAITING_MODEL"
	StateTextOnly         TurnState = "TEXT_ONLY"
	StateToolCallsPending TurnState = "TOOL_CALLS_PENDING"
	StateExecutingTools   TurnState = "EXECUTING_TOOLS"
	StateResponded        TurnState = "RESPONDED"
	StateDone             TurnState = "DONE"
	StateCancelled        TurnState = "CANCELLED"
)

// Turn is the outcome of one dispatched chat turn. History records every
// state the turn passed through, in order, ending with State.
type Turn struct {
	State    TurnState
	History  []TurnState
	Response *domain.ModelResponse
	Results  []domain.ToolResult
}

func (t *Turn) setState(s TurnState) {
	t.State = s
	t.History = append(t.History, s)
}

// Dispatcher wires the model to the record layer. Tool mutations flow
// through the sync coordinator, the same path direct user edits take.
type Dispatcher struct {
	model       domain.ModelClient
	coordinator *syncer.Coordinator
	now         func() time.Time
	newID       func() string
}

// New creates a dispatcher.
func New(model domain.ModelClient, coordinator *syncer.Coordinator) *Dispatcher {
	return &Dispatcher{
		model:       model,
		coordinator: coordinator,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// SetClock overrides the clock used for default task dates. For tests.
func (d *Dispatcher) SetClock(now func() time.Time) { d.now = now }

// SetIDGenerator overrides record id generation. For tests.
func (d *Dispatcher) SetIDGenerator(fn func() string) { d.newID = fn }

// RunTurn sends one user turn to the model and executes the response's tool
// calls sequentially, sending each ToolResult through the responder before
// the next call begins. If ctx is cancelled before a call executes, the
// remaining calls are skipped and no further results are sent; mutations
// already applied stand.
func (d *Dispatcher) RunTurn(ctx context.Context, req domain.ModelRequest, responder domain.ToolResponder) (*Turn, error) {
	turn := &Turn{}
	turn.setState(StateSent)

	turn.setState(StateAwaitingModel)
	resp, err := d.model.Send(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			turn.setState(StateCancelled)
			return turn, fmt.Errorf("%w: model call abandoned", domain.ErrTurnCancelled)
		}
		return turn, fmt.Errorf("model send: %w", err)
	}
	turn.Response = resp

	if ctx.Err() != nil {
		turn.setState(StateCancelled)
		return turn, fmt.Errorf("%w: before tool execution", domain.ErrTurnCancelled)
	}

	if len(resp.ToolCalls) == 0 {
		turn.setState(StateTextOnly)
		return turn, nil
	}
	turn.setState(StateToolCallsPending)
	turn.setState(StateExecutingTools)
	for _, call := range resp.ToolCalls {
		if ctx.Err() != nil {
			turn.setState(StateCancelled)
			return turn, fmt.Errorf("%w: %d of %d tool calls skipped",
				domain.ErrTurnCancelled, len(resp.ToolCalls)-len(turn.Results), len(resp.ToolCalls))
		}
		res := d.execute(ctx, call)
		outcome := "success"
		if !res.Success {
			outcome = "error"
		}
		observability.ToolCalls.WithLabelValues(call.Name, outcome).Inc()
		if err := responder.SendToolResult(ctx, res); err != nil {
			return turn, fmt.Errorf("send tool result for %s: %w", call.ID, err)
		}
		turn.Results = append(turn.Results, res)
	}
	turn.setState(StateResponded)
	turn.setState(StateDone)
	return turn, nil
}

// ─── Tool Execution ─────────────────────────────────────────────────────────

// taskArgs is the argument payload shared by the task tools. Pointer fields
// distinguish "absent" from "set to zero value" so updates merge field by
// field instead of replacing wholesale.
type taskArgs struct {
	ID          string  `json:"id,omitempty"`
	Title       string  `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Date        *string `json:"date,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
	ProjectID   *string `json:"projectId,omitempty"`
}

func (d *Dispatcher) execute(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	res := domain.ToolResult{CallID: call.ID}

	var args taskArgs
	if len(call.Args) > 0 {
		if err := json.Unmarshal(call.Args, &args); err != nil {
			res.Error = fmt.Sprintf("bad arguments: %v", err)
			return res
		}
	}

	switch call.Name {
	case "create_task":
		return d.createTask(ctx, call.ID, args)
	case "update_task":
		return d.updateTask(ctx, call.ID, args)
	case "delete_task":
		return d.deleteTask(ctx, call.ID, args)
	default:
		res.Error = fmt.Sprintf("unknown tool %q", call.Name)
		return res
	}
}

func (d *Dispatcher) createTask(ctx context.Context, callID string, args taskArgs) domain.ToolResult {
	res := domain.ToolResult{CallID: callID}
	if args.Title == "" {
		res.Error = "title is required"
		return res
	}

	task := domain.Task{
		ID:       args.ID,
		Title:    args.Title,
		Category: "personal",
		Priority: "medium",
		Date:     d.now().UTC().Format("2006-01-02"),
	}
	if task.ID == "" {
		task.ID = d.newID()
	}
	if args.Description != nil {
		task.Description = *args.Description
	}
	if args.Category != nil {
		task.Category = *args.Category
	}
	if args.Priority != nil {
		task.Priority = *args.Priority
	}
	if args.Date != nil {
		task.Date = *args.Date
	}
	if args.Completed != nil {
		task.Completed = *args.Completed
	}
	if args.ProjectID != nil {
		task.ProjectID = *args.ProjectID
	}

	if err := d.coordinator.Upsert(ctx, task); err != nil {
		log.Printf("[agent] create_task failed: %v", err)
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.RecordID = task.ID
	return res
}

func (d *Dispatcher) updateTask(ctx context.Context, callID string, args taskArgs) domain.ToolResult {
	res := domain.ToolResult{CallID: callID}
	task, ok := d.resolveTask(args.ID, args.Title)
	if !ok {
		res.Error = "not found"
		return res
	}

	if args.Title != "" && args.ID != "" {
		// Title was a new value, not a lookup key.
		task.Title = args.Title
	}
	if args.Description != nil {
		task.Description = *args.Description
	}
	if args.Category != nil {
		task.Category = *args.Category
	}
	if args.Priority != nil {
		task.Priority = *args.Priority
	}
	if args.Date != nil {
		task.Date = *args.Date
	}
	if args.Completed != nil {
		task.Completed = *args.Completed
	}
	if args.ProjectID != nil {
		task.ProjectID = *args.ProjectID
	}

	if err := d.coordinator.Upsert(ctx, task); err != nil {
		log.Printf("[agent] update_task failed: %v", err)
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.RecordID = task.ID
	return res
}

func (d *Dispatcher) deleteTask(ctx context.Context, callID string, args taskArgs) domain.ToolResult {
	res := domain.ToolResult{CallID: callID}
	task, ok := d.resolveTask(args.ID, args.Title)
	if !ok {
		res.Error = "not found"
		return res
	}
	if err := d.coordinator.Delete(ctx, domain.KindTask, task.ID); err != nil {
		log.Printf("[agent] delete_task failed: %v", err)
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.RecordID = task.ID
	return res
}

// resolveTask finds the target task by exact id when one is given. Without
// an id it falls back to a case-insensitive substring match on the title.
func (d *Dispatcher) resolveTask(id, title string) (domain.Task, bool) {
	snapshot := d.coordinator.Snapshot()
	if id != "" {
		for _, t := range snapshot.Tasks {
			if t.ID == id {
				return t, true
			}
		}
		return domain.Task{}, false
	}
	if title == "" {
		return domain.Task{}, false
	}
	needle := strings.ToLower(title)
	for _, t := range snapshot.Tasks {
		if strings.Contains(strings.ToLower(t.Title), needle) {
			return t, true
		}
	}
	return domain.Task{}, false
}
