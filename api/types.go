package api

import "github.com/squarefactory/minerd/supervisor"

type Error struct {
	Error string `json:"error"`
	// Data names the miner the request was about.
	Data string `json:"data,omitempty"`
}

type OK struct {
	Data string `json:"data"`
}

// Miners is what the API needs from the supervisor.
type Miners interface {
	States() []supervisor.State
	Restart(name string) error
}
