package cloud

import (
	"context"
	"errors"
	"gamewarden/internal/domain"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

type fakeECS struct {
	updates   []*ecs.UpdateServiceInput
	updateErr error
	taskArns  []string
	tasks     []ecstypes.Task
}

func (f *fakeECS) UpdateService(_ context.Context, in *ecs.UpdateServiceInput, _ ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error) {
	f.updates = append(f.updates, in)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &ecs.UpdateServiceOutput{}, nil
}

func (f *fakeECS) ListTasks(_ context.Context, in *ecs.ListTasksInput, _ ...func(*ecs.Options)) (*ecs.ListTasksOutput, error) {
	if in.DesiredStatus != ecstypes.DesiredStatusRunning {
		return nil, errors.New("expected RUNNING filter")
	}
	return &ecs.ListTasksOutput{TaskArns: f.taskArns}, nil
}

func (f *fakeECS) DescribeTasks(_ context.Context, _ *ecs.DescribeTasksInput, _ ...func(*ecs.Options)) (*ecs.DescribeTasksOutput, error) {
	return &ecs.DescribeTasksOutput{Tasks: f.tasks}, nil
}

type fakeEC2 struct {
	publicIP string
	asked    []string
}

func (f *fakeEC2) DescribeNetworkInterfaces(_ context.Context, in *ec2.DescribeNetworkInterfacesInput, _ ...func(*ec2.Options)) (*ec2.DescribeNetworkInterfacesOutput, error) {
	f.asked = append(f.asked, in.NetworkInterfaceIds...)
	nic := ec2types.NetworkInterface{}
	if f.publicIP != "" {
		nic.Association = &ec2types.NetworkInterfaceAssociation{PublicIp: aws.String(f.publicIP)}
	}
	return &ec2.DescribeNetworkInterfacesOutput{NetworkInterfaces: []ec2types.NetworkInterface{nic}}, nil
}

func newTestController(e *fakeECS, c *fakeEC2) (*ECSController, *[]domain.AccountDescriptor) {
	var seen []domain.AccountDescriptor
	ctrl := NewECSController("", "", slog.New(slog.DiscardHandler))
	ctrl.newClients = func(_ context.Context, acct domain.AccountDescriptor) (ecsAPI, ec2API, error) {
		seen = append(seen, acct)
		return e, c, nil
	}
	return ctrl, &seen
}

func eniTask(id string) ecstypes.Task {
	return ecstypes.Task{
		TaskArn: aws.String("arn:task/1"),
		Attachments: []ecstypes.Attachment{
			{
				Type: aws.String(eniAttachmentType),
				Details: []ecstypes.KeyValuePair{
					{Name: aws.String("subnetId"), Value: aws.String("subnet-1")},
					{Name: aws.String(eniDetailName), Value: aws.String(id)},
				},
			},
		},
	}
}

var acct = domain.AccountDescriptor{AccountLabel: "eu", AccessKey: "AKIA", AccessSecret: "s", Region: "eu-west-1"}

func TestSetDesiredCount(t *testing.T) {
	e := &fakeECS{}
	ctrl, seen := newTestController(e, &fakeEC2{})

	if err := ctrl.SetDesiredCount(context.Background(), acct, 1); err != nil {
		t.Fatalf("SetDesiredCount: %v", err)
	}
	if len(e.updates) != 1 {
		t.Fatalf("UpdateService called %d times", len(e.updates))
	}
	in := e.updates[0]
	if aws.ToString(in.Cluster) != DefaultCluster || aws.ToString(in.Service) != DefaultService {
		t.Errorf("cluster/service = %s/%s", aws.ToString(in.Cluster), aws.ToString(in.Service))
	}
	if aws.ToInt32(in.DesiredCount) != 1 {
		t.Errorf("DesiredCount = %d, want 1", aws.ToInt32(in.DesiredCount))
	}
	if len(*seen) != 1 || (*seen)[0] != acct {
		t.Errorf("clients built for %v, want %v", *seen, acct)
	}
}

func TestSetDesiredCountFailure(t *testing.T) {
	e := &fakeECS{updateErr: errors.New("AccessDenied")}
	ctrl, _ := newTestController(e, &fakeEC2{})

	err := ctrl.SetDesiredCount(context.Background(), acct, 0)
	var scaleErr *ScalingError
	if !errors.As(err, &scaleErr) {
		t.Fatalf("err = %v, want *ScalingError", err)
	}
	if scaleErr.DesiredCount != 0 || scaleErr.Account != "eu" {
		t.Errorf("ScalingError = %+v", scaleErr)
	}
}

func TestResolvePublicEndpoint(t *testing.T) {
	e := &fakeECS{taskArns: []string{"arn:task/1"}, tasks: []ecstypes.Task{eniTask("eni-123")}}
	c := &fakeEC2{publicIP: "203.0.113.7"}
	ctrl, _ := newTestController(e, c)

	ip, err := ctrl.ResolvePublicEndpoint(context.Background(), acct)
	if err != nil {
		t.Fatalf("ResolvePublicEndpoint: %v", err)
	}
	if ip != "203.0.113.7" {
		t.Errorf("ip = %q", ip)
	}
	if len(c.asked) != 1 || c.asked[0] != "eni-123" {
		t.Errorf("asked for interfaces %v", c.asked)
	}
}

func TestResolvePublicEndpointNoTask(t *testing.T) {
	ctrl, _ := newTestController(&fakeECS{}, &fakeEC2{})

	_, err := ctrl.ResolvePublicEndpoint(context.Background(), acct)
	if !errors.Is(err, ErrNoRunningTask) {
		t.Fatalf("err = %v, want ErrNoRunningTask", err)
	}
}

func TestResolvePublicEndpointNoPublicIP(t *testing.T) {
	e := &fakeECS{taskArns: []string{"arn:task/1"}, tasks: []ecstypes.Task{eniTask("eni-123")}}
	ctrl, _ := newTestController(e, &fakeEC2{})

	_, err := ctrl.ResolvePublicEndpoint(context.Background(), acct)
	if err == nil || errors.Is(err, ErrNoRunningTask) {
		t.Fatalf("err = %v, want a non-ErrNoRunningTask failure", err)
	}
}

func TestNetworkInterfaceID(t *testing.T) {
	id, err := networkInterfaceID(eniTask("eni-abc"))
	if err != nil || id != "eni-abc" {
		t.Errorf("networkInterfaceID = %q, %v", id, err)
	}

	_, err = networkInterfaceID(ecstypes.Task{TaskArn: aws.String("arn:task/2")})
	if !errors.Is(err, errNoENI) {
		t.Errorf("err = %v, want errNoENI", err)
	}
}
