// Package api exposes the simulator core over HTTP: submit a run, poll its
// progress, and fetch its result once finished. It holds no simulation
// semantics of its own - every handler is a thin caller of engine.Simulator.
package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/fomy/simd/persist"
)

// API is the HTTP front end for the simulator core. It is safe for
// concurrent use.
type API struct {
	router *httprouter.Router
	log    *persist.Logger

	runs *runRegistry
}

// New builds an API with an empty run registry, ready to mount at any path
// prefix the caller chooses.
func New(log *persist.Logger) *API {
	a := &API{
		log:  log,
		runs: newRunRegistry(),
	}
	router := httprouter.New()
	router.POST("/runs", a.runsHandlerPOST)
	router.GET("/runs/:id", a.runHandlerGET)
	router.POST("/runs/:id/stop", a.runStopHandlerPOST)
	a.router = router
	return a
}

// ServeHTTP makes API an http.Handler directly.
func (a *API) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	a.router.ServeHTTP(w, req)
}
