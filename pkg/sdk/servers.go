package sdk

import (
	"fmt"
	"net/url"
)

func (c *Client) Health() (*Health, error) {
	var h Health
	err := c.get("/healthz", &h)
	return &h, err
}

func (c *Client) ListServers() ([]ServerStatus, error) {
	var servers []ServerStatus
	err := c.get("/servers", &servers)
	return servers, err
}

func (c *Client) StartServer(name string) (*OperationResult, error) {
	return c.operation(fmt.Sprintf("/servers/%s/start", url.PathEscape(name)), nil)
}

func (c *Client) StopServer(name string) (*OperationResult, error) {
	return c.operation(fmt.Sprintf("/servers/%s/stop", url.PathEscape(name)), nil)
}

func (c *Client) GracefulStopServer(name string) (*OperationResult, error) {
	return c.operation(fmt.Sprintf("/servers/%s/graceful-stop", url.PathEscape(name)), nil)
}

func (c *Client) Exec(name, command string) (*OperationResult, error) {
	return c.operation(fmt.Sprintf("/servers/%s/exec", url.PathEscape(name)), ExecRequest{Command: command})
}

func (c *Client) ListOperations(name string, limit int) ([]OperationResult, error) {
	path := fmt.Sprintf("/servers/%s/operations", url.PathEscape(name))
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var ops []OperationResult
	err := c.get(path, &ops)
	return ops, err
}

func (c *Client) GetOperation(id string) (*OperationResult, error) {
	var op OperationResult
	err := c.get("/operations/"+url.PathEscape(id), &op)
	return &op, err
}

func (c *Client) EventsURL(name string) (string, error) {
	return c.GetWebSocketURL(fmt.Sprintf("/ws/servers/%s/events", url.PathEscape(name)))
}
