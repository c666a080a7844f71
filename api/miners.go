package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/squarefactory/minerd/supervisor"
)

// Status lists the supervision state of every miner.
func Status(w http.ResponseWriter, r *http.Request, m Miners) {
	render.JSON(w, r, m.States())
}

// Restart terminates a miner, the supervisor relaunches it after the restart delay.
func Restart(w http.ResponseWriter, r *http.Request, m Miners) {
	name := chi.URLParam(r, "name")

	err := m.Restart(name)
	switch {
	case err == nil:
		render.JSON(w, r, OK{fmt.Sprintf("miner %s restarting", name)})
	case errors.Is(err, supervisor.ErrUnknownMiner):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, Error{Error: err.Error(), Data: name})
	case errors.Is(err, supervisor.ErrNotRunning):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, Error{Error: err.Error(), Data: name})
	default:
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, Error{Error: err.Error(), Data: name})
		log.Errorw("restart failed", "miner", name, "err", err)
	}
}
