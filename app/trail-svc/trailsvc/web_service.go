package trailsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	logger "log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/OpenTransitTools/fleettrail/business/data/fleet"
	"github.com/OpenTransitTools/fleettrail/business/trail"
	"github.com/bluele/gcache"
	"github.com/gorilla/mux"
)

// snapshotSource provides the snapshots served by the web service
type snapshotSource interface {
	snapshots() []fleet.Snapshot
	latest() (fleet.Snapshot, bool)
	state() (newest int64, size int)
	// view returns snapshots together with the state they were read at
	view() (snapshots []fleet.Snapshot, newest int64, size int)
}

//defaultHttpHandler simple default http handler for default route
type defaultHttpHandler struct {
}

//ServeHTTP implements defaultHttpHandler http.Handler interface
func (h *defaultHttpHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Application-Status", "OK")
}

//trailHandler holds data needed to respond and log history, current and trail requests
type trailHandler struct {
	log           *logger.Logger
	source        snapshotSource
	options       trail.Options
	defaultWindow int
	cache         gcache.Cache
}

//trailHandler factory. options supplies the palette and thresholds for every computed model
func makeTrailHandler(log *logger.Logger,
	source snapshotSource,
	options trail.Options,
	defaultWindow int,
	cacheSize int,
	cacheExpiration time.Duration) *trailHandler {
	return &trailHandler{
		log:           log,
		source:        source,
		options:       options,
		defaultWindow: defaultWindow,
		cache:         gcache.New(cacheSize).LRU().Expiration(cacheExpiration).Build(),
	}
}

//serveHistory sends every snapshot held, oldest first
func (t *trailHandler) serveHistory(w http.ResponseWriter, _ *http.Request) {
	jsonData, err := json.Marshal(t.source.snapshots())
	if err != nil {
		t.log.Printf("Error marshaling history to json: error:%v\n", err)
		writeJSONError(w, http.StatusInternalServerError, "Error serving request")
		return
	}
	t.writeJSON(w, jsonData)
}

//serveCurrent sends the newest snapshot, 404 if no snapshot has been received
func (t *trailHandler) serveCurrent(w http.ResponseWriter, _ *http.Request) {
	snapshot, present := t.source.latest()
	if !present {
		writeJSONError(w, http.StatusNotFound, "no snapshot available")
		return
	}
	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		t.log.Printf("Error marshaling current snapshot to json: error:%v\n", err)
		writeJSONError(w, http.StatusInternalServerError, "Error serving request")
		return
	}
	t.writeJSON(w, jsonData)
}

//serveTrails sends the trail.Model computed over the newest "window" snapshots
func (t *trailHandler) serveTrails(w http.ResponseWriter, r *http.Request) {
	window, err := t.parseWindow(r.FormValue("window"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonData, err := t.trailModelJSON(window)
	if err != nil {
		t.log.Printf("Error computing trails over %d snapshots: error:%v\n", window, err)
		if errors.Is(err, trail.ErrMalformedInput) {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "Error serving request")
		return
	}
	t.writeJSON(w, jsonData)
}

//parseWindow reads the window query parameter, using defaultWindow when absent
func (t *trailHandler) parseWindow(value string) (int, error) {
	if len(value) == 0 {
		return t.defaultWindow, nil
	}
	window, err := strconv.Atoi(value)
	if err != nil || window < 1 {
		return 0, fmt.Errorf("window must be a positive number of snapshots, got %q", value)
	}
	return window, nil
}

//trailModelJSON returns the encoded trail.Model for window, computing it only when the history has changed
func (t *trailHandler) trailModelJSON(window int) ([]byte, error) {
	stateNewest, stateSize := t.source.state()
	cached, err := t.cache.Get(trailCacheKey{newest: stateNewest, size: stateSize}.forWindow(window))
	if err == nil {
		return cached.([]byte), nil
	}

	// the history may change between state and view, the model is cached under the state it was computed from
	snapshots, newest, size := t.source.view()
	key := trailCacheKey{newest: newest, size: size}.forWindow(window)
	options := t.options
	options.Order = trail.OldestFirst
	options.Window = window
	model, err := trail.Compute(snapshots, options)
	if err != nil {
		return nil, err
	}
	jsonData, err := json.Marshal(model)
	if err != nil {
		return nil, err
	}
	if err = t.cache.Set(key, jsonData); err != nil {
		t.log.Printf("unable to cache trail model %s: %v", key, err)
	}
	return jsonData, nil
}

//trailCacheKey identifies a history state, the newest snapshot timestamp and the number held
type trailCacheKey struct {
	newest int64
	size   int
}

func (k trailCacheKey) forWindow(window int) string {
	return fmt.Sprintf("%d:%d:%d", k.newest, k.size, window)
}

func (t *trailHandler) writeJSON(w http.ResponseWriter, jsonData []byte) {
	w.Header().Set("Content-Type", "application/json")
	byteCount, err := w.Write(jsonData)
	if err != nil {
		t.log.Printf("Error writing json response: %s", err)
		return
	}
	t.log.Printf("wrote %d bytes in json response.", byteCount)
}

//jsonError is the body of every error response
type jsonError struct {
	Error string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonError{Error: message})
}

//createRouter routes requests to trailHandler
func createRouter(handler *trailHandler) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/", &defaultHttpHandler{})
	r.HandleFunc("/history", handler.serveHistory).Methods(http.MethodGet)
	r.HandleFunc("/current", handler.serveCurrent).Methods(http.MethodGet)
	r.HandleFunc("/trails", handler.serveTrails).Methods(http.MethodGet)
	return r
}

//createServer creates configured http.Server for responding to trail requests
func createServer(handler *trailHandler, httpPort int) *http.Server {
	srv := &http.Server{
		Addr:         strings.Join([]string{"0.0.0.0", strconv.Itoa(httpPort)}, ":"),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      createRouter(handler),
	}
	return srv
}

//runWebService starts up trail web service, and terminates on shutdown signal
func runWebService(log *logger.Logger,
	wg *sync.WaitGroup,
	handler *trailHandler,
	httpPort int,
	shutdownSignal chan bool,
) {
	defer wg.Done()
	srv := createServer(handler, httpPort)
	log.Printf("Starting server on port %d", httpPort)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Printf("server ListenAndServe ended. %s", err)
		}
	}()

	<-shutdownSignal
	log.Printf("ending webservice on shutdown signal")
	shutdownCtx, serverCancelFunc := context.WithTimeout(context.Background(), time.Duration(5)*time.Second)
	defer serverCancelFunc()
	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		log.Printf("error shutting down webservice, error:%s", err)
	}
}
