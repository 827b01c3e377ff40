// File: internal/provision/engine.go
// Brief: CloudFormation-backed reconcile/delete with event streaming.

// Package provision submits compiled templates to the provisioning engine.
// The engine owns resource ordering, rollback, and all-or-nothing stack
// semantics; this package only drives create-or-update, waits for the stack
// to settle, and resolves outputs afterwards.
package provision

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// API is the CloudFormation surface the engine needs. Tests provide fakes.
type API interface {
	DescribeStacks(ctx context.Context, in *cloudformation.DescribeStacksInput, opts ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	CreateStack(ctx context.Context, in *cloudformation.CreateStackInput, opts ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, in *cloudformation.UpdateStackInput, opts ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
	DeleteStack(ctx context.Context, in *cloudformation.DeleteStackInput, opts ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error)
	DescribeStackEvents(ctx context.Context, in *cloudformation.DescribeStackEventsInput, opts ...func(*cloudformation.Options)) (*cloudformation.DescribeStackEventsOutput, error)
	GetTemplate(ctx context.Context, in *cloudformation.GetTemplateInput, opts ...func(*cloudformation.Options)) (*cloudformation.GetTemplateOutput, error)
}

// Action classifies what Reconcile did.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionNoop   Action = "noop"
)

// Event is one engine-side resource event observed while waiting for settle.
type Event struct {
	Time         time.Time
	LogicalID    string
	ResourceType string
	Status       string
	Reason       string
}

// Result reports the outcome of one reconcile.
type Result struct {
	StackName string
	Action    Action
	Status    string
	Outputs   map[string]string
}

// Engine drives one CloudFormation region.
type Engine struct {
	api API
	log *zap.Logger

	// PollInterval caps the settle-polling backoff. Tests shrink it.
	PollInterval time.Duration
}

// New wraps a CloudFormation client.
func New(api API, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{api: api, log: log, PollInterval: 5 * time.Second}
}

// NewFromConfig builds an engine on a real client.
func NewFromConfig(cfg aws.Config, log *zap.Logger) *Engine {
	return New(cloudformation.NewFromConfig(cfg), log)
}

// Reconcile creates the stack when absent and updates it when present. An
// engine answer of "no updates" is a successful no-op. The emit callback,
// when non-nil, receives resource events while the stack settles.
func (e *Engine) Reconcile(ctx context.Context, stackName, templateBody string, emit func(Event)) (*Result, error) {
	existing, err := e.describe(ctx, stackName)
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("describe stack %s: %w", stackName, err)
	}

	action := ActionCreate
	if existing != nil {
		if existing.StackStatus == types.StackStatusRollbackComplete {
			return nil, fmt.Errorf("stack %s is stuck in %s; delete it before re-applying", stackName, existing.StackStatus)
		}
		action = ActionUpdate
	}

	since := time.Now().UTC()
	switch action {
	case ActionCreate:
		_, err = e.api.CreateStack(ctx, &cloudformation.CreateStackInput{
			StackName:    aws.String(stackName),
			TemplateBody: aws.String(templateBody),
		})
		if err != nil {
			return nil, fmt.Errorf("create stack %s: %w", stackName, err)
		}
	case ActionUpdate:
		_, err = e.api.UpdateStack(ctx, &cloudformation.UpdateStackInput{
			StackName:    aws.String(stackName),
			TemplateBody: aws.String(templateBody),
		})
		if err != nil {
			if isNoUpdates(err) {
				e.log.Debug("stack already converged", zap.String("stack", stackName))
				return &Result{
					StackName: stackName,
					Action:    ActionNoop,
					Status:    string(existing.StackStatus),
					Outputs:   outputMap(existing),
				}, nil
			}
			return nil, fmt.Errorf("update stack %s: %w", stackName, err)
		}
	}

	final, err := e.waitSettle(ctx, stackName, since, emit)
	if err != nil {
		return nil, err
	}
	result := &Result{
		StackName: stackName,
		Action:    action,
		Status:    string(final.StackStatus),
		Outputs:   outputMap(final),
	}
	if !settledClean(final.StackStatus) {
		return result, fmt.Errorf("stack %s settled in %s: %s", stackName, final.StackStatus, aws.ToString(final.StackStatusReason))
	}
	return result, nil
}

// Outputs resolves the outputs of a settled stack. All declared outputs must
// be present; a settled stack missing one means its resources were never
// created.
func (e *Engine) Outputs(ctx context.Context, stackName string, want []string) (map[string]string, error) {
	st, err := e.describe(ctx, stackName)
	if err != nil {
		return nil, fmt.Errorf("describe stack %s: %w", stackName, err)
	}
	got := outputMap(st)
	var missing []string
	for _, name := range want {
		if _, ok := got[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("stack %s (%s) is missing outputs %v", stackName, st.StackStatus, missing)
	}
	return got, nil
}

// LiveTemplate downloads the template the engine currently holds for a stack.
func (e *Engine) LiveTemplate(ctx context.Context, stackName string) (string, error) {
	out, err := e.api.GetTemplate(ctx, &cloudformation.GetTemplateInput{StackName: aws.String(stackName)})
	if err != nil {
		return "", fmt.Errorf("get template for %s: %w", stackName, err)
	}
	return aws.ToString(out.TemplateBody), nil
}

// Status returns the engine-side status of a stack, or "" when it does not
// exist.
func (e *Engine) Status(ctx context.Context, stackName string) (string, error) {
	st, err := e.describe(ctx, stackName)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("describe stack %s: %w", stackName, err)
	}
	return string(st.StackStatus), nil
}

// Delete removes a stack and waits until the engine forgets it. Deleting an
// absent stack is a no-op.
func (e *Engine) Delete(ctx context.Context, stackName string, emit func(Event)) error {
	if _, err := e.describe(ctx, stackName); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("describe stack %s: %w", stackName, err)
	}
	since := time.Now().UTC()
	if _, err := e.api.DeleteStack(ctx, &cloudformation.DeleteStackInput{StackName: aws.String(stackName)}); err != nil {
		return fmt.Errorf("delete stack %s: %w", stackName, err)
	}
	final, err := e.waitSettle(ctx, stackName, since, emit)
	if err != nil {
		return err
	}
	if final == nil || final.StackStatus == types.StackStatusDeleteComplete {
		return nil
	}
	return fmt.Errorf("stack %s settled in %s: %s", stackName, final.StackStatus, aws.ToString(final.StackStatusReason))
}

func (e *Engine) describe(ctx context.Context, stackName string) (*types.Stack, error) {
	out, err := e.api.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{StackName: aws.String(stackName)})
	if err != nil {
		return nil, err
	}
	if len(out.Stacks) == 0 {
		return nil, &notFoundError{stackName: stackName}
	}
	return &out.Stacks[0], nil
}

// waitSettle polls the stack until it reaches a terminal status, forwarding
// new resource events as they appear. A vanished stack settles as nil, which
// delete treats as done.
func (e *Engine) waitSettle(ctx context.Context, stackName string, since time.Time, emit func(Event)) (*types.Stack, error) {
	seen := map[string]struct{}{}
	var final *types.Stack

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = e.PollInterval
	bo.MaxElapsedTime = 0

	poll := func() error {
		e.streamEvents(ctx, stackName, since, seen, emit)
		st, err := e.describe(ctx, stackName)
		if err != nil {
			if isNotFound(err) {
				final = nil
				return nil
			}
			// Transient describe errors (throttling, network) retry.
			return err
		}
		if terminalStatus(st.StackStatus) {
			final = st
			return nil
		}
		return fmt.Errorf("stack %s still %s", stackName, st.StackStatus)
	}
	if err := backoff.Retry(poll, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("wait for stack %s: %w", stackName, err)
	}
	// Pick up events emitted between the last poll and settle.
	e.streamEvents(ctx, stackName, since, seen, emit)
	return final, nil
}

func (e *Engine) streamEvents(ctx context.Context, stackName string, since time.Time, seen map[string]struct{}, emit func(Event)) {
	if emit == nil {
		return
	}
	out, err := e.api.DescribeStackEvents(ctx, &cloudformation.DescribeStackEventsInput{StackName: aws.String(stackName)})
	if err != nil {
		return
	}
	// The engine returns newest first; forward fresh ones oldest first.
	var fresh []types.StackEvent
	for _, ev := range out.StackEvents {
		id := aws.ToString(ev.EventId)
		if _, dup := seen[id]; dup {
			continue
		}
		if ev.Timestamp != nil && ev.Timestamp.Before(since) {
			continue
		}
		seen[id] = struct{}{}
		fresh = append(fresh, ev)
	}
	for i := len(fresh) - 1; i >= 0; i-- {
		ev := fresh[i]
		emit(Event{
			Time:         aws.ToTime(ev.Timestamp),
			LogicalID:    aws.ToString(ev.LogicalResourceId),
			ResourceType: aws.ToString(ev.ResourceType),
			Status:       string(ev.ResourceStatus),
			Reason:       aws.ToString(ev.ResourceStatusReason),
		})
	}
}

func outputMap(st *types.Stack) map[string]string {
	out := map[string]string{}
	if st == nil {
		return out
	}
	for _, o := range st.Outputs {
		out[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}
	return out
}

func terminalStatus(s types.StackStatus) bool {
	switch s {
	case types.StackStatusCreateComplete,
		types.StackStatusCreateFailed,
		types.StackStatusUpdateComplete,
		types.StackStatusUpdateRollbackComplete,
		types.StackStatusUpdateRollbackFailed,
		types.StackStatusRollbackComplete,
		types.StackStatusRollbackFailed,
		types.StackStatusDeleteComplete,
		types.StackStatusDeleteFailed:
		return true
	}
	return false
}

func settledClean(s types.StackStatus) bool {
	return s == types.StackStatusCreateComplete || s == types.StackStatusUpdateComplete
}

type notFoundError struct {
	stackName string
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("stack %s does not exist", e.stackName)
}

func isNotFound(err error) bool {
	var nf *notFoundError
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), "does not exist")
	}
	return false
}

func isNoUpdates(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), "No updates are to be performed")
	}
	return false
}
