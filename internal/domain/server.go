package domain

import "time"

// AccountDescriptor carries everything needed to talk to the cloud account
// that hosts one server. The json/yaml keys match the SERVERS_CONFIG shape.
type AccountDescriptor struct {
	AccountLabel string `json:"profileName" yaml:"profileName"`
	AccessKey    string `json:"accessKeyId" yaml:"accessKeyId"`
	AccessSecret string `json:"secretAccessKey" yaml:"secretAccessKey"`
	Region       string `json:"region" yaml:"region"`
}

// Redacted returns a copy safe to log or serialize.
func (a AccountDescriptor) Redacted() AccountDescriptor {
	a.AccessSecret = ""
	if len(a.AccessKey) > 4 {
		a.AccessKey = "****" + a.AccessKey[len(a.AccessKey)-4:]
	}
	return a
}

// ServerProfile matches one entry of the SERVERS_CONFIG array.
type ServerProfile struct {
	Name    string            `json:"name" yaml:"name"`
	Account AccountDescriptor `json:"awsAccount" yaml:"awsAccount"`
}

type Intent string

const (
	IntentStart        Intent = "start"
	IntentStop         Intent = "stop"
	IntentGracefulStop Intent = "graceful-stop"
	IntentExec         Intent = "exec"
)

type LifecycleRequest struct {
	Server string `json:"server"`
	Intent Intent `json:"intent"`
}

type Status string

const (
	StatusCompleted Status = "completed"
	StatusDegraded  Status = "degraded"
	StatusRejected  Status = "rejected"
	StatusFailed    Status = "failed"
)

type Result struct {
	ID         string    `json:"id"`
	Server     string    `json:"server"`
	Intent     Intent    `json:"intent"`
	Status     Status    `json:"status"`
	Endpoint   string    `json:"endpoint,omitempty"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Step names carried by Event.
const (
	StepAccepted  = "accepted"
	StepResolved  = "resolved"
	StepConnected = "connected"
	StepSaved     = "saved"
	StepShutdown  = "shutdown"
	StepCommand   = "command"
	StepScaled    = "scaled"
	StepFailed    = "failed"
	StepDone      = "done"
)

type Event struct {
	Server      string    `json:"server"`
	OperationID string    `json:"operationId"`
	Intent      Intent    `json:"intent"`
	Step        string    `json:"step"`
	Message     string    `json:"message"`
	Time        time.Time `json:"time"`
}

// ServerStatus is a registry entry plus whatever operation currently holds
// its guard.
type ServerStatus struct {
	Name   string     `json:"name"`
	Region string     `json:"region"`
	Busy   bool       `json:"busy"`
	Intent Intent     `json:"intent,omitempty"`
	Since  *time.Time `json:"since,omitempty"`
}
