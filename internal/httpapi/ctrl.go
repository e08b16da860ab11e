// ABOUTME: HTTP controller exposing the discovered servers
// ABOUTME: JSON server list, websocket event stream and Prometheus metrics
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/collabnet/svnedge-discovery/internal/version"
	"github.com/collabnet/svnedge-discovery/pkg/discovery"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/horockey/go-toolbox/http_helpers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const (
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
)

// ErrServerNotFound is returned for names that are not running
var ErrServerNotFound = errors.New("server not found")

// ServerLister is the part of the discovery client the controller reads
type ServerLister interface {
	Servers() []discovery.ServerRecord
}

// Controller serves the discovery state over HTTP
type Controller struct {
	serv     *http.Server
	lister   ServerLister
	hub      *hub
	upgrader websocket.Upgrader
	logger   zerolog.Logger
	metrics  *metrics
}

// New creates a controller listening on addr. gatherer backs /metrics.
func New(
	addr string,
	lister ServerLister,
	gatherer prometheus.Gatherer,
	logger zerolog.Logger,
) *Controller {
	ctrl := Controller{
		serv: &http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
		},
		lister: lister,
		upgrader: websocket.Upgrader{
			// The event stream is read only, any origin may watch it
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
	ctrl.metrics = newMetrics(func() float64 { return float64(ctrl.hub.len()) })
	ctrl.hub = newHub(ctrl.metrics.droppedCnt)

	router := mux.NewRouter()
	router.HandleFunc("/servers", ctrl.getServersHandler).Methods(http.MethodGet)
	router.HandleFunc("/servers/{name}", ctrl.getServerHandler).Methods(http.MethodGet)
	router.HandleFunc("/events", ctrl.eventsHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.Use(ctrl.metricsMW)

	ctrl.serv.Handler = router

	return &ctrl
}

// Observer returns the observer feeding the event stream
func (ctrl *Controller) Observer() discovery.Observer {
	return ctrl.hub
}

// Handler returns the router, for tests and embedding
func (ctrl *Controller) Handler() http.Handler {
	return ctrl.serv.Handler
}

func (ctrl *Controller) Metrics() []prometheus.Collector {
	return ctrl.metrics.list()
}

// Start serves until ctx is done
func (ctrl *Controller) Start(ctx context.Context) (resErr error) {
	var wg sync.WaitGroup
	defer wg.Wait()

	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		ctrl.logger.Info().Str("addr", ctrl.serv.Addr).Msg("http api listening")
		if err := ctrl.serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.Canceled) {
			resErr = errors.Join(resErr, fmt.Errorf("running context: %w", ctx.Err()))
		}

		sdCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := ctrl.serv.Shutdown(sdCtx); err != nil {
			resErr = errors.Join(resErr, fmt.Errorf("shutting down server: %w", err))
		}
		return resErr

	case err := <-errCh:
		return fmt.Errorf("running server: %w", err)
	}
}

func (ctrl *Controller) metricsMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		route := req.URL.Path
		if cur := mux.CurrentRoute(req); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		ctrl.metrics.requestsCnt.WithLabelValues(route).Inc()
		w.Header().Set("Server", version.UserAgent())

		next.ServeHTTP(w, req)

		ctrl.metrics.handleTimeHist.Observe(time.Since(start).Seconds())
	})
}

func (ctrl *Controller) getServersHandler(w http.ResponseWriter, _ *http.Request) {
	_ = http_helpers.RespondOK(w, ctrl.lister.Servers())
}

func (ctrl *Controller) getServerHandler(w http.ResponseWriter, req *http.Request) {
	name, found := mux.Vars(req)["name"]
	if !found {
		_ = http_helpers.RespondWithErr(w, http.StatusBadRequest, errors.New("missing name"))
		return
	}

	rec, found := lo.Find(ctrl.lister.Servers(), func(r discovery.ServerRecord) bool {
		return r.ServiceName() == name
	})
	if !found {
		_ = http_helpers.RespondWithErr(w, http.StatusNotFound, fmt.Errorf("%w: %s", ErrServerNotFound, name))
		return
	}

	_ = http_helpers.RespondOK(w, rec)
}

func (ctrl *Controller) eventsHandler(w http.ResponseWriter, req *http.Request) {
	conn, err := ctrl.upgrader.Upgrade(w, req, nil)
	if err != nil {
		ctrl.logger.Warn().
			Err(fmt.Errorf("upgrading connection: %w", err)).
			Send()
		return
	}
	defer func() { _ = conn.Close() }()

	id, records := ctrl.hub.subscribe()
	defer ctrl.hub.unsubscribe(id)

	ctrl.logger.Debug().
		Str("remote", req.RemoteAddr).
		Str("subscriber", id.String()).
		Msg("event subscriber connected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					ctrl.logger.Debug().Err(err).Msg("event subscriber read failed")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case rec, ok := <-records:
			if !ok {
				return
			}
			data, err := json.Marshal(rec)
			if err != nil {
				ctrl.logger.Error().
					Err(fmt.Errorf("marshaling record: %w", err)).
					Send()
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}
