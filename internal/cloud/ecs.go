package cloud

import (
	"context"
	"errors"
	"fmt"
	"gamewarden/internal/domain"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

const (
	DefaultCluster = "palworld"
	DefaultService = "palworld-server"

	eniAttachmentType = "ElasticNetworkInterface"
	eniDetailName     = "networkInterfaceId"
)

type ecsAPI interface {
	UpdateService(ctx context.Context, in *ecs.UpdateServiceInput, optFns ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error)
	ListTasks(ctx context.Context, in *ecs.ListTasksInput, optFns ...func(*ecs.Options)) (*ecs.ListTasksOutput, error)
	DescribeTasks(ctx context.Context, in *ecs.DescribeTasksInput, optFns ...func(*ecs.Options)) (*ecs.DescribeTasksOutput, error)
}

type ec2API interface {
	DescribeNetworkInterfaces(ctx context.Context, in *ec2.DescribeNetworkInterfacesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeNetworkInterfacesOutput, error)
}

type clientFactory func(ctx context.Context, acct domain.AccountDescriptor) (ecsAPI, ec2API, error)

// ECSController scales a single-task ECS service and finds the public IP of
// its task through the task's network interface.
type ECSController struct {
	Cluster string
	Service string

	log        *slog.Logger
	newClients clientFactory
}

func NewECSController(cluster, service string, logger *slog.Logger) *ECSController {
	if cluster == "" {
		cluster = DefaultCluster
	}
	if service == "" {
		service = DefaultService
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ECSController{
		Cluster:    cluster,
		Service:    service,
		log:        logger.With("component", "ecs"),
		newClients: awsClients,
	}
}

func awsClients(ctx context.Context, acct domain.AccountDescriptor) (ecsAPI, ec2API, error) {
	if acct.AccessKey == "" || acct.AccessSecret == "" {
		return nil, nil, fmt.Errorf("account %s: missing access key (%+v)", acct.AccountLabel, acct.Redacted())
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(acct.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(acct.AccessKey, acct.AccessSecret, ""),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("load aws config for %s: %w", acct.AccountLabel, err)
	}
	return ecs.NewFromConfig(cfg), ec2.NewFromConfig(cfg), nil
}

func (c *ECSController) SetDesiredCount(ctx context.Context, acct domain.AccountDescriptor, count int) error {
	ecsClient, _, err := c.newClients(ctx, acct)
	if err != nil {
		return &ScalingError{Account: acct.AccountLabel, DesiredCount: count, Err: err}
	}

	_, err = ecsClient.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:      aws.String(c.Cluster),
		Service:      aws.String(c.Service),
		DesiredCount: aws.Int32(int32(count)),
	})
	if err != nil {
		return &ScalingError{Account: acct.AccountLabel, DesiredCount: count, Err: err}
	}

	c.log.Info("desired count updated", "account", acct.AccountLabel, "region", acct.Region, "count", count)
	return nil
}

func (c *ECSController) ResolvePublicEndpoint(ctx context.Context, acct domain.AccountDescriptor) (string, error) {
	ecsClient, ec2Client, err := c.newClients(ctx, acct)
	if err != nil {
		return "", err
	}

	tasks, err := ecsClient.ListTasks(ctx, &ecs.ListTasksInput{
		Cluster:       aws.String(c.Cluster),
		ServiceName:   aws.String(c.Service),
		DesiredStatus: ecstypes.DesiredStatusRunning,
	})
	if err != nil {
		return "", fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks.TaskArns) == 0 {
		return "", fmt.Errorf("%s/%s: %w", c.Cluster, c.Service, ErrNoRunningTask)
	}

	desc, err := ecsClient.DescribeTasks(ctx, &ecs.DescribeTasksInput{
		Cluster: aws.String(c.Cluster),
		Tasks:   tasks.TaskArns[:1],
	})
	if err != nil {
		return "", fmt.Errorf("describe tasks: %w", err)
	}
	if len(desc.Tasks) == 0 {
		return "", fmt.Errorf("%s/%s: task vanished: %w", c.Cluster, c.Service, ErrNoRunningTask)
	}

	eni, err := networkInterfaceID(desc.Tasks[0])
	if err != nil {
		return "", err
	}

	nics, err := ec2Client.DescribeNetworkInterfaces(ctx, &ec2.DescribeNetworkInterfacesInput{
		NetworkInterfaceIds: []string{eni},
	})
	if err != nil {
		return "", fmt.Errorf("describe network interface %s: %w", eni, err)
	}
	for _, nic := range nics.NetworkInterfaces {
		if nic.Association != nil && aws.ToString(nic.Association.PublicIp) != "" {
			return aws.ToString(nic.Association.PublicIp), nil
		}
	}
	return "", fmt.Errorf("network interface %s has no public ip", eni)
}

var errNoENI = errors.New("task has no network interface attachment")

func networkInterfaceID(task ecstypes.Task) (string, error) {
	for _, att := range task.Attachments {
		if aws.ToString(att.Type) != eniAttachmentType {
			continue
		}
		for _, kv := range att.Details {
			if aws.ToString(kv.Name) == eniDetailName && aws.ToString(kv.Value) != "" {
				return aws.ToString(kv.Value), nil
			}
		}
	}
	return "", fmt.Errorf("%s: %w", aws.ToString(task.TaskArn), errNoENI)
}
