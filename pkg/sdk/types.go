package sdk

import "time"

type ServerStatus struct {
	Name   string     `json:"name"`
	Region string     `json:"region"`
	Busy   bool       `json:"busy"`
	Intent string     `json:"intent,omitempty"`
	Since  *time.Time `json:"since,omitempty"`
}

type OperationResult struct {
	ID         string    `json:"id"`
	Server     string    `json:"server"`
	Intent     string    `json:"intent"`
	Status     string    `json:"status"`
	Endpoint   string    `json:"endpoint,omitempty"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

func (r OperationResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

type Event struct {
	Server      string    `json:"server"`
	OperationID string    `json:"operationId"`
	Intent      string    `json:"intent"`
	Step        string    `json:"step"`
	Message     string    `json:"message"`
	Time        time.Time `json:"time"`
}

type ExecRequest struct {
	Command string `json:"command"`
}

type Health struct {
	Status  string `json:"status"`
	Servers int    `json:"servers"`
}
