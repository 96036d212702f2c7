package main

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/mux"

	"github.com/mikajuvonen67/tcnopen/pdcom"
	"github.com/mikajuvonen67/tcnopen/pdqueue"
)

// serveDebug exposes /stats and /elements over HTTP, and /ws for a live
// PdInfo event stream, for inspecting a running batch-mode session.
//
// Grounded on agent/rest_agent.go's mux.Router-per-handler style, adapted
// from bundle registration endpoints to read-only session introspection.
func serveDebug(addr string, session *pdcom.Session) {
	hub := newEventHub()
	attachEventHub(session, hub)

	router := mux.NewRouter()
	router.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		handleStats(w, session)
	}).Methods(http.MethodGet)
	router.HandleFunc("/elements", func(w http.ResponseWriter, r *http.Request) {
		handleElements(w, session)
	}).Methods(http.MethodGet)
	router.HandleFunc("/ws", hub.serveWS)

	log.WithField("addr", addr).Info("trdpdemo: debug HTTP/WS listening")
	if err := http.ListenAndServe(addr, router); err != nil {
		log.WithError(err).Error("debug HTTP server stopped")
	}
}

func handleStats(w http.ResponseWriter, session *pdcom.Session) {
	snap := session.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		log.WithError(err).Warn("trdpdemo: failed to write /stats response")
	}
}

// elementSummary is the JSON-visible subset of an element's bookkeeping for
// /elements; it deliberately omits the frame buffer itself.
type elementSummary struct {
	ComID     uint32 `json:"comId"`
	Interval  string `json:"interval"`
	NumRxTx   uint32 `json:"numRxTx"`
	NumMissed uint32 `json:"numMissed"`
}

func summarize(e *pdqueue.Element) elementSummary {
	return elementSummary{
		ComID:     e.Address.ComID,
		Interval:  e.Interval.String(),
		NumRxTx:   e.NumRxTx,
		NumMissed: e.NumMissed,
	}
}

func handleElements(w http.ResponseWriter, session *pdcom.Session) {
	var pubs, subs []elementSummary

	session.SendQueue.Each(func(e *pdqueue.Element) { pubs = append(pubs, summarize(e)) })
	session.RecvQueue.Each(func(e *pdqueue.Element) { subs = append(subs, summarize(e)) })

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(struct {
		Publishers  []elementSummary `json:"publishers"`
		Subscribers []elementSummary `json:"subscribers"`
	}{Publishers: pubs, Subscribers: subs}); err != nil {
		log.WithError(err).Warn("trdpdemo: failed to write /elements response")
	}
}
