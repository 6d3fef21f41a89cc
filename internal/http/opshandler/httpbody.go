package opshandler

type HealthResponse struct {
	Status string `json:"status"`
} // @name HealthResponse

type OnlineResponse struct {
	Employees   []string `json:"employees"`
	Connections int      `json:"connections"`
} // @name OnlineResponse
