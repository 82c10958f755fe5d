package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"ok-to-wake/internal/device"
	"ok-to-wake/internal/light"
	"ok-to-wake/internal/schedule"
)

const maxBody = 1 << 16

func (s *Server) handleControlPage(w http.ResponseWriter, r *http.Request) {
	snap := s.dev.Snapshot()
	colors := make([]string, 0, 4)
	for _, c := range []light.Color{light.Green, light.Red, light.Blue, light.Off} {
		colors = append(colors, c.String())
	}
	s.render(w, "control.html", map[string]any{
		"Title":   "Ok-to-wake",
		"State":   snap,
		"Windows": schedule.FormatWindows(snap.Windows),
		"Colors":  colors,
		"Version": s.version,
		"APIKey":  s.apiKey,
	})
}

// handleSetColorLegacy serves the plain-text GET /setColor?color= route.
func (s *Server) handleSetColorLegacy(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("color")
	if name == "" {
		http.Error(w, "Missing color parameter", http.StatusBadRequest)
		return
	}
	c, err := light.ParseColor(name)
	if err != nil {
		http.Error(w, "Unknown color "+name, http.StatusBadRequest)
		return
	}
	if _, err := s.dev.Dispatch(device.SetColor{Color: c}); err != nil {
		s.logger.Error("set color", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Color changed to " + c.String()))
}

func (s *Server) handleAPIState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.dev.Snapshot())
}

func (s *Server) handleAPIColor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Color string `json:"color"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	c, err := light.ParseColor(req.Color)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "unknown color")
		return
	}
	s.dispatch(w, device.SetColor{Color: c})
}

func (s *Server) handleAPIBrightness(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Percent *int `json:"percent"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Percent == nil {
		s.writeError(w, http.StatusBadRequest, "percent is required")
		return
	}
	s.dispatch(w, device.SetBrightness{Percent: *req.Percent})
}

// handleAPISetWindows accepts the stored "HH:MM-HH:MM,..." form. Malformed
// entries are skipped and reported back.
func (s *Server) handleAPISetWindows(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Windows string `json:"windows"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	windows, errs := schedule.ParseWindows(req.Windows)
	skipped := make([]string, 0, len(errs))
	for _, err := range errs {
		skipped = append(skipped, err.Error())
	}
	cmd := device.SetWindows{Windows: windows}
	res, err := s.dev.Dispatch(cmd)
	if err != nil {
		s.writeDispatchError(w, cmd, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"result":  res,
		"windows": schedule.FormatWindows(windows),
		"skipped": skipped,
	})
}

func (s *Server) handleAPIClearWindows(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, device.ClearWindows{})
}

func (s *Server) handleAPIManual(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	s.dispatch(w, device.ToggleManual{Enabled: req.Enabled})
}

func (s *Server) handleAPIForget(w http.ResponseWriter, r *http.Request) {
	res, err := s.dev.Dispatch(device.ForgetNetwork{})
	if err != nil {
		s.logger.Error("forget network", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, res)
	if res.RestartProvisioning && s.restart != nil {
		go s.restart()
	}
}

func (s *Server) handleAPIVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) dispatch(w http.ResponseWriter, cmd device.Command) {
	res, err := s.dev.Dispatch(cmd)
	if err != nil {
		s.writeDispatchError(w, cmd, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeDispatchError(w http.ResponseWriter, cmd device.Command, err error) {
	if errors.Is(err, schedule.ErrMalformedEntry) || errors.Is(err, device.ErrUnknownCommand) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("dispatch", "cmd", cmd, "err", err)
	s.writeError(w, http.StatusInternalServerError, "internal server error")
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
