// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/relabs-tech/cube_tracker/internal/config"
	"github.com/relabs-tech/cube_tracker/internal/control"
	"github.com/relabs-tech/cube_tracker/internal/orientation"
	"github.com/relabs-tech/cube_tracker/internal/position"
	"github.com/relabs-tech/cube_tracker/internal/replay"
	"github.com/relabs-tech/cube_tracker/internal/sample"
	"github.com/relabs-tech/cube_tracker/internal/scoring"
	"github.com/relabs-tech/cube_tracker/internal/store"
	"github.com/relabs-tech/cube_tracker/internal/telemetry"
	"github.com/relabs-tech/cube_tracker/internal/transport"
	"github.com/relabs-tech/cube_tracker/internal/wire"
)

const (
	statsLogInterval = time.Minute
	maxUploadBytes   = 16 << 20
)

// recorder is the state behind the recorder's HTTP and websocket API.
type recorder struct {
	cfg       *config.Config
	store     *store.Store
	decoder   *telemetry.Decoder
	registry  *transport.Registry
	router    *transport.Router
	sender    transport.Sender // nil when no link is open
	hub       *liveHub
	newEngine func() *replay.Engine

	// ctx bounds background work started by requests (traces).
	ctx context.Context
}

// RunRecorder records telemetry from the configured link into the store
// and serves the history, replay, scoring and command API.
func RunRecorder() error {
	cfg := config.Get()

	backend, closeBackend, err := openBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closeBackend()

	st := store.New(backend,
		store.WithInterval(millis(cfg.FlushInterval)),
		store.WithPen(penFromConfig(cfg)),
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			log.Printf("recorder: final flush error: %v", err)
		}
		log.Println("recorder: store flushed")
	}()

	link, err := openLink(cfg, cfg.MQTTClientIDRecorder)
	if err != nil {
		return err
	}
	defer link.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rc := newRecorder(ctx, cfg, st, link)
	go rc.hub.run(ctx)

	go func() {
		if err := link.Listen(ctx, rc.router.Handle, rc.registry); err != nil {
			log.Printf("recorder: link error: %v", err)
			stop()
		}
	}()
	go rc.logStats(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           rc.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		log.Println("recorder: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("recorder: web server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newRecorder(ctx context.Context, cfg *config.Config, st *store.Store, sender transport.Sender) *recorder {
	dec := telemetry.NewDecoder(st)
	reg := transport.NewRegistry()
	hub := newLiveHub()
	hub.attach(dec, surfaceTransform(cfg).Apply)

	dec.OnSignalLost(func(ev telemetry.SignalLost) {
		log.Printf("recorder: %s lost position", ev.DeviceKey)
	})

	return &recorder{
		cfg:       cfg,
		store:     st,
		decoder:   dec,
		registry:  reg,
		router:    transport.NewRouter(dec, reg),
		sender:    sender,
		hub:       hub,
		newEngine: func() *replay.Engine { return newReplayEngine(cfg) },
		ctx:       ctx,
	}
}

func (rc *recorder) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/devices", rc.handleDevices)
	mux.HandleFunc("GET /api/history", rc.handleHistory)
	mux.HandleFunc("GET /api/render", rc.handleRender)
	mux.HandleFunc("GET /api/stats", rc.handleStats)
	mux.HandleFunc("GET /api/pen", rc.handleGetPen)
	mux.HandleFunc("POST /api/pen", rc.handleSetPen)
	mux.HandleFunc("POST /api/score", rc.handleScore)
	mux.HandleFunc("POST /api/command", rc.handleCommand)
	mux.Handle("/ws/live", rc.hub)
	mux.HandleFunc("/ws/replay", rc.handleReplayWS)

	// Static files from WEB_ROOT as the root
	mux.Handle("/", http.FileServer(http.Dir(rc.cfg.WebRoot)))
	return mux
}

func (rc *recorder) logStats(ctx context.Context) {
	ticker := time.NewTicker(statsLogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := rc.decoder.Stats()
			log.Printf("recorder: positions=%d orientations=%d lost=%d dropped=%d unrouted=%d",
				s.Positions, s.Orientations, s.Lost, s.Dropped, rc.router.Dropped())
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("recorder: json encode error: %v", err)
	}
}

func deviceParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	device := r.URL.Query().Get("device")
	if device == "" {
		http.Error(w, "device is required", http.StatusBadRequest)
		return "", false
	}
	return device, true
}

// DeviceInfo is one entry of /api/devices.
type DeviceInfo struct {
	Device          string                   `json:"deviceName"`
	Capabilities    transport.Capabilities   `json:"capabilities"`
	Connected       bool                     `json:"connected"`
	Pending         int                      `json:"pending"`
	LastPose        *position.Pose           `json:"lastPose,omitempty"`
	LastOrientation *orientation.Orientation `json:"lastOrientation,omitempty"`
}

func (rc *recorder) handleDevices(w http.ResponseWriter, r *http.Request) {
	stored, err := rc.store.Keys()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	seen := make(map[string]bool)
	for _, k := range append(rc.registry.Devices(), stored...) {
		seen[k] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]DeviceInfo, 0, len(keys))
	for _, k := range keys {
		info := DeviceInfo{Device: k, Pending: len(rc.store.Pending(k))}
		info.Capabilities, info.Connected = rc.registry.Capabilities(k)
		if p, ok := rc.decoder.LastPose(k); ok {
			info.LastPose = &p
		}
		if o, ok := rc.decoder.LastOrientation(k); ok {
			info.LastOrientation = &o
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (rc *recorder) handleHistory(w http.ResponseWriter, r *http.Request) {
	device, ok := deviceParam(w, r)
	if !ok {
		return
	}
	history, err := rc.store.History(device)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// RenderResponse is the body of /api/render.
type RenderResponse struct {
	Device   string           `json:"deviceName"`
	Index    int              `json:"index"`
	Length   int              `json:"length"`
	Segments []replay.Segment `json:"segments"`
}

func (rc *recorder) handleRender(w http.ResponseWriter, r *http.Request) {
	device, ok := deviceParam(w, r)
	if !ok {
		return
	}
	history, err := rc.store.History(device)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	index := len(history)
	if v := r.URL.Query().Get("index"); v != "" {
		index, err = strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid index", http.StatusBadRequest)
			return
		}
	}

	segs, err := rc.newEngine().Render(history, index)
	if errors.Is(err, replay.ErrIndexOutOfRange) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if segs == nil {
		segs = []replay.Segment{}
	}
	writeJSON(w, http.StatusOK, RenderResponse{Device: device, Index: index, Length: len(history), Segments: segs})
}

// StatsResponse is the body of /api/stats.
type StatsResponse struct {
	telemetry.Stats
	Unrouted uint64 `json:"unrouted"`
}

func (rc *recorder) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{Stats: rc.decoder.Stats(), Unrouted: rc.router.Dropped()})
}

func (rc *recorder) handleGetPen(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rc.store.Pen())
}

func (rc *recorder) handleSetPen(w http.ResponseWriter, r *http.Request) {
	var pen sample.Pen
	if err := json.NewDecoder(r.Body).Decode(&pen); err != nil {
		http.Error(w, "invalid pen: "+err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := scoring.ParseHexColor(pen.Color); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if pen.Alpha < 0 || pen.Alpha > 1 || pen.LineWidth <= 0 {
		http.Error(w, "alpha must be 0-1 and lineWidth positive", http.StatusBadRequest)
		return
	}
	rc.store.SetPen(pen)
	writeJSON(w, http.StatusOK, pen)
}

// ScoreResponse is the body of /api/score.
type ScoreResponse struct {
	scoring.Result
	Overlay string `json:"overlay"` // PNG data URL
}

func (rc *recorder) handleScore(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}
	device := r.FormValue("device")
	if device == "" {
		http.Error(w, "device is required", http.StatusBadRequest)
		return
	}

	target := rc.cfg.ScoreTargetColor
	if v := r.FormValue("target"); v != "" {
		target = v
	}
	targetColor, err := scoring.ParseHexColor(target)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tolerance := rc.cfg.ScoreTolerance
	if v := r.FormValue("tolerance"); v != "" {
		tolerance, err = strconv.ParseFloat(v, 64)
		if err != nil || tolerance < 0 {
			http.Error(w, "invalid tolerance", http.StatusBadRequest)
			return
		}
	}

	file, _, err := r.FormFile("reference")
	if err != nil {
		http.Error(w, "reference image is required", http.StatusBadRequest)
		return
	}
	defer file.Close()
	ref, _, err := image.Decode(file)
	if err != nil {
		http.Error(w, "invalid reference image: "+err.Error(), http.StatusBadRequest)
		return
	}

	history, err := rc.store.History(device)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	overlay, res, err := scoreHistory(rc.newEngine(), history, ref, rc.cfg.CanvasWidth, rc.cfg.CanvasHeight, targetColor, tolerance)
	if errors.Is(err, scoring.ErrNoUserPixels) {
		http.Error(w, "nothing drawn for "+device, http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, overlay); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	log.Printf("recorder: %s scored %.2f%%", device, res.Percent)
	writeJSON(w, http.StatusOK, ScoreResponse{
		Result:  res,
		Overlay: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
}

// CommandRequest is the body of /api/command. Exactly one action is used,
// checked in the order preset, moveTo, eulerConfig, trace.
type CommandRequest struct {
	Device      string       `json:"deviceName"`
	Preset      string       `json:"preset,omitempty"`
	DurationMS  int          `json:"durationMs,omitempty"` // with preset: timed drive
	MoveTo      *MoveRequest `json:"moveTo,omitempty"`
	EulerConfig bool         `json:"eulerConfig,omitempty"`
	Trace       bool         `json:"trace,omitempty"` // retrace the device's stored history
}

// MoveRequest is a move-to target in mat coordinates.
type MoveRequest struct {
	X     uint16 `json:"x"`
	Y     uint16 `json:"y"`
	Angle uint16 `json:"angle"`
}

func (rc *recorder) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid command: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Device == "" {
		http.Error(w, "deviceName is required", http.StatusBadRequest)
		return
	}
	if rc.sender == nil {
		http.Error(w, "no link to the cubes", http.StatusServiceUnavailable)
		return
	}

	ctl := control.New(rc.sender, req.Device)
	ctx := r.Context()
	var err error

	switch {
	case req.Preset != "" && req.DurationMS > 0:
		left, right, ok := presetDrives(req.Preset)
		if !ok {
			http.Error(w, "unknown preset: "+req.Preset, http.StatusBadRequest)
			return
		}
		err = ctl.DriveFor(ctx, left, right, millis(req.DurationMS))
	case req.Preset != "":
		err = ctl.Preset(ctx, req.Preset)
		if errors.Is(err, control.ErrUnknownPreset) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	case req.MoveTo != nil:
		err = ctl.MoveTo(ctx, req.MoveTo.X, req.MoveTo.Y, req.MoveTo.Angle)
	case req.EulerConfig:
		err = ctl.ConfigureEuler(ctx)
	case req.Trace:
		history, herr := rc.store.History(req.Device)
		if herr != nil {
			http.Error(w, herr.Error(), http.StatusInternalServerError)
			return
		}
		go func() {
			if _, err := ctl.Trace(rc.ctx, history, millis(rc.cfg.TraceInterval)); err != nil {
				log.Printf("recorder: trace %s: %v", req.Device, err)
			}
		}()
		writeJSON(w, http.StatusAccepted, map[string]interface{}{"deviceName": req.Device, "points": len(history)})
		return
	default:
		http.Error(w, "no command given", http.StatusBadRequest)
		return
	}

	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deviceName": req.Device, "status": "sent"})
}

// presetDrives returns the motor settings behind a named preset.
func presetDrives(name string) (left, right wire.MotorDrive, ok bool) {
	fwd := wire.MotorDrive{Dir: wire.DirForward, Speed: wire.DefaultSpeed}
	back := wire.MotorDrive{Dir: wire.DirBackward, Speed: wire.DefaultSpeed}
	switch name {
	case "forward":
		return fwd, fwd, true
	case "backward":
		return back, back, true
	case "right":
		return fwd, back, true
	case "left":
		return back, fwd, true
	case "stop":
		idle := wire.MotorDrive{Dir: wire.DirForward}
		return idle, idle, true
	}
	return wire.MotorDrive{}, wire.MotorDrive{}, false
}
