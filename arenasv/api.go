package main

import (
	"encoding/json"
	"expvar"
	"net/http"

	"golang.org/x/sync/singleflight"

	"arenasv/arenasv/arena"
)

var httpRequestGroup singleflight.Group

type activeBattle struct {
	ID        int      `json:"id"`
	UserCount int      `json:"user_count"`
	Ticks     int      `json:"ticks"`
	Live      []int    `json:"live,omitempty"`
	Pickups   int      `json:"pickups"`
	States    []string `json:"states,omitempty"`
}

type statusResponse struct {
	Sessions        []SessionInfo   `json:"sessions"`
	ActiveBattles   []*activeBattle `json:"active_battles"`
	RegisteredUsers int             `json:"registered_users"`
}

func (sv *Server) status() (*statusResponse, error) {
	resp := &statusResponse{
		Sessions: sv.Snapshot(),
	}

	for _, b := range sv.battles.Active() {
		ab := &activeBattle{ID: b.ID}
		b.mtx.Lock()
		ab.UserCount = b.userCount
		ab.Ticks = b.arena.Ticks
		ab.Pickups = b.arena.Pickups()
		for id, c := range b.arena.Combatants {
			if c.State == arena.Live {
				ab.Live = append(ab.Live, id)
			}
			if c.State != arena.Unjoined {
				ab.States = append(ab.States, c.State.String())
			}
		}
		b.mtx.Unlock()
		resp.ActiveBattles = append(resp.ActiveBattles, ab)
	}

	n, err := getDB().CountUsers()
	if err != nil {
		return nil, err
	}
	resp.RegisteredUsers = n
	return resp, nil
}

func (sv *Server) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/arena/status", func(w http.ResponseWriter, r *http.Request) {
		resp, err, _ := httpRequestGroup.Do("/arena/status", func() (interface{}, error) {
			return sv.status()
		})
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	mux.Handle("/debug/vars", expvar.Handler())
	return mux
}
