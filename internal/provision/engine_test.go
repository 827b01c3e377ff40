package provision

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
)

type fakeCFN struct {
	mu sync.Mutex

	// Scripted DescribeStacks answers; the last one repeats.
	describes []func() (*cloudformation.DescribeStacksOutput, error)
	idx       int

	events []types.StackEvent

	created   []string
	updated   []string
	deleted   []string
	updateErr error
	template  string
}

func notFoundErr(name string) error {
	return &smithy.GenericAPIError{Code: "ValidationError", Message: "Stack with id " + name + " does not exist"}
}

func describeStatus(status types.StackStatus, outputs map[string]string) func() (*cloudformation.DescribeStacksOutput, error) {
	return func() (*cloudformation.DescribeStacksOutput, error) {
		st := types.Stack{StackName: aws.String("s"), StackStatus: status}
		for k, v := range outputs {
			st.Outputs = append(st.Outputs, types.Output{OutputKey: aws.String(k), OutputValue: aws.String(v)})
		}
		return &cloudformation.DescribeStacksOutput{Stacks: []types.Stack{st}}, nil
	}
}

func describeNotFound(name string) func() (*cloudformation.DescribeStacksOutput, error) {
	return func() (*cloudformation.DescribeStacksOutput, error) { return nil, notFoundErr(name) }
}

func (f *fakeCFN) DescribeStacks(ctx context.Context, in *cloudformation.DescribeStacksInput, opts ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.describes) == 0 {
		return nil, notFoundErr(aws.ToString(in.StackName))
	}
	fn := f.describes[f.idx]
	if f.idx < len(f.describes)-1 {
		f.idx++
	}
	return fn()
}

func (f *fakeCFN) CreateStack(ctx context.Context, in *cloudformation.CreateStackInput, opts ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, aws.ToString(in.StackName))
	f.template = aws.ToString(in.TemplateBody)
	return &cloudformation.CreateStackOutput{StackId: aws.String("arn:stack/s")}, nil
}

func (f *fakeCFN) UpdateStack(ctx context.Context, in *cloudformation.UpdateStackInput, opts ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updated = append(f.updated, aws.ToString(in.StackName))
	f.template = aws.ToString(in.TemplateBody)
	return &cloudformation.UpdateStackOutput{StackId: aws.String("arn:stack/s")}, nil
}

func (f *fakeCFN) DeleteStack(ctx context.Context, in *cloudformation.DeleteStackInput, opts ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.StackName))
	return &cloudformation.DeleteStackOutput{}, nil
}

func (f *fakeCFN) DescribeStackEvents(ctx context.Context, in *cloudformation.DescribeStackEventsInput, opts ...func(*cloudformation.Options)) (*cloudformation.DescribeStackEventsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &cloudformation.DescribeStackEventsOutput{StackEvents: f.events}, nil
}

func (f *fakeCFN) GetTemplate(ctx context.Context, in *cloudformation.GetTemplateInput, opts ...func(*cloudformation.Options)) (*cloudformation.GetTemplateOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &cloudformation.GetTemplateOutput{TemplateBody: aws.String(f.template)}, nil
}

func fastEngine(f *fakeCFN) *Engine {
	e := New(f, nil)
	e.PollInterval = 5 * time.Millisecond
	return e
}

func TestReconcile_CreatesWhenAbsent(t *testing.T) {
	later := time.Now().Add(time.Minute)
	f := &fakeCFN{
		describes: []func() (*cloudformation.DescribeStacksOutput, error){
			describeNotFound("s"),
			describeStatus(types.StackStatusCreateInProgress, nil),
			describeStatus(types.StackStatusCreateComplete, map[string]string{
				"DashboardURL":          "https://console.example/dash",
				"NotificationChannelId": "arn:topic/s",
			}),
		},
		events: []types.StackEvent{
			{EventId: aws.String("2"), Timestamp: aws.Time(later), LogicalResourceId: aws.String("MessageVisibleAlarm"), ResourceType: aws.String("AWS::CloudWatch::Alarm"), ResourceStatus: types.ResourceStatusCreateComplete},
			{EventId: aws.String("1"), Timestamp: aws.Time(later), LogicalResourceId: aws.String("AlarmNotificationTopic"), ResourceType: aws.String("AWS::SNS::Topic"), ResourceStatus: types.ResourceStatusCreateComplete},
		},
	}
	var streamed []Event
	res, err := fastEngine(f).Reconcile(context.Background(), "s", "{}", func(ev Event) { streamed = append(streamed, ev) })
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Action != ActionCreate || res.Status != string(types.StackStatusCreateComplete) {
		t.Fatalf("result=%+v", res)
	}
	if res.Outputs["NotificationChannelId"] != "arn:topic/s" {
		t.Fatalf("outputs=%v", res.Outputs)
	}
	if len(f.created) != 1 || len(f.updated) != 0 {
		t.Fatalf("created=%v updated=%v", f.created, f.updated)
	}
	if len(streamed) != 2 {
		t.Fatalf("events=%d", len(streamed))
	}
	// Oldest first despite the engine answering newest first.
	if streamed[0].LogicalID != "AlarmNotificationTopic" || streamed[1].LogicalID != "MessageVisibleAlarm" {
		t.Fatalf("event order=%+v", streamed)
	}
}

func TestReconcile_UpdatesWhenPresent(t *testing.T) {
	f := &fakeCFN{
		describes: []func() (*cloudformation.DescribeStacksOutput, error){
			describeStatus(types.StackStatusCreateComplete, nil),
			describeStatus(types.StackStatusUpdateComplete, nil),
		},
	}
	res, err := fastEngine(f).Reconcile(context.Background(), "s", "{}", nil)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Action != ActionUpdate || len(f.updated) != 1 || len(f.created) != 0 {
		t.Fatalf("result=%+v updated=%v created=%v", res, f.updated, f.created)
	}
}

func TestReconcile_NoChangesIsNoop(t *testing.T) {
	f := &fakeCFN{
		describes: []func() (*cloudformation.DescribeStacksOutput, error){
			describeStatus(types.StackStatusUpdateComplete, map[string]string{"DashboardURL": "u"}),
		},
		updateErr: &smithy.GenericAPIError{Code: "ValidationError", Message: "No updates are to be performed."},
	}
	res, err := fastEngine(f).Reconcile(context.Background(), "s", "{}", nil)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Action != ActionNoop || res.Outputs["DashboardURL"] != "u" {
		t.Fatalf("result=%+v", res)
	}
}

func TestReconcile_RollbackCompleteNeedsDelete(t *testing.T) {
	f := &fakeCFN{
		describes: []func() (*cloudformation.DescribeStacksOutput, error){
			describeStatus(types.StackStatusRollbackComplete, nil),
		},
	}
	_, err := fastEngine(f).Reconcile(context.Background(), "s", "{}", nil)
	if err == nil || !strings.Contains(err.Error(), "delete it before re-applying") {
		t.Fatalf("err=%v", err)
	}
}

func TestReconcile_FailedSettleSurfacesStatus(t *testing.T) {
	f := &fakeCFN{
		describes: []func() (*cloudformation.DescribeStacksOutput, error){
			describeNotFound("s"),
			describeStatus(types.StackStatusRollbackComplete, nil),
		},
	}
	res, err := fastEngine(f).Reconcile(context.Background(), "s", "{}", nil)
	if err == nil || !strings.Contains(err.Error(), "ROLLBACK_COMPLETE") {
		t.Fatalf("err=%v", err)
	}
	if res == nil || res.Action != ActionCreate {
		t.Fatalf("result=%+v", res)
	}
}

func TestDelete_WaitsForDisappearance(t *testing.T) {
	f := &fakeCFN{
		describes: []func() (*cloudformation.DescribeStacksOutput, error){
			describeStatus(types.StackStatusCreateComplete, nil),
			describeStatus(types.StackStatusDeleteInProgress, nil),
			describeNotFound("s"),
		},
	}
	if err := fastEngine(f).Delete(context.Background(), "s", nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(f.deleted) != 1 {
		t.Fatalf("deleted=%v", f.deleted)
	}
}

func TestDelete_AbsentStackIsNoop(t *testing.T) {
	f := &fakeCFN{}
	if err := fastEngine(f).Delete(context.Background(), "s", nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(f.deleted) != 0 {
		t.Fatalf("deleted=%v", f.deleted)
	}
}

func TestOutputs_MissingOutputIsError(t *testing.T) {
	f := &fakeCFN{
		describes: []func() (*cloudformation.DescribeStacksOutput, error){
			describeStatus(types.StackStatusCreateComplete, map[string]string{"DashboardURL": "u"}),
		},
	}
	_, err := fastEngine(f).Outputs(context.Background(), "s", []string{"DashboardURL", "NotificationChannelId"})
	if err == nil || !strings.Contains(err.Error(), "NotificationChannelId") {
		t.Fatalf("err=%v", err)
	}
}

func TestStatus_AbsentStackIsEmpty(t *testing.T) {
	f := &fakeCFN{}
	status, err := fastEngine(f).Status(context.Background(), "s")
	if err != nil || status != "" {
		t.Fatalf("status=%q err=%v", status, err)
	}
}

func TestLiveTemplate(t *testing.T) {
	f := &fakeCFN{template: "{\"Resources\":{}}"}
	body, err := fastEngine(f).LiveTemplate(context.Background(), "s")
	if err != nil || body != "{\"Resources\":{}}" {
		t.Fatalf("body=%q err=%v", body, err)
	}
}
