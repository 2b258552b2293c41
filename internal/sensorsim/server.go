package sensorsim

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// DefaultAddr matches the sensor URL cabingain polls by default.
const DefaultAddr = "127.0.0.1:5005"

const maxUpdateBytes = 64 << 10

// Server is the Echo application serving the simulated feed.
type Server struct {
	echo     *echo.Echo
	state    *Store
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// New constructs the simulator around store. A nil store starts at the
// default readings.
func New(store *Store, logger *slog.Logger) *Server {
	if store == nil {
		store = NewStore(State{CabinDB: DefaultCabinDB, SpeedKMH: DefaultSpeedKMH})
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:  e,
		state: store,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		log: logger,
	}
	s.registerRoutes()
	return s
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Store returns the state backing the server.
func (s *Server) Store() *Store {
	return s.state
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleIndex)
	s.echo.GET("/state", s.handleState)
	s.echo.POST("/update", s.handleUpdate)
	s.echo.GET("/speed", s.handleSpeed)
	s.echo.GET("/ws", s.handleWebSocket)
}

// Run starts Echo and blocks until ctx cancellation or startup failure.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		return nil
	}
}

func (s *Server) handleIndex(c echo.Context) error {
	return c.HTML(http.StatusOK, controlPanel)
}

func (s *Server) handleState(c echo.Context) error {
	return c.JSON(http.StatusOK, s.state.Get())
}

type speedResponse struct {
	Speed float64 `json:"speed"`
}

func (s *Server) handleSpeed(c echo.Context) error {
	return c.JSON(http.StatusOK, speedResponse{Speed: s.state.Get().SpeedKMH})
}

func (s *Server) handleUpdate(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxUpdateBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body")
	}
	fields := map[string]json.RawMessage{}
	if len(body) == 0 || json.Unmarshal(body, &fields) != nil || len(fields) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "missing json")
	}

	var p Patch
	if v, ok := parseNumber(fields["cabin_db"]); ok {
		p.CabinDB = &v
	}
	if v, ok := parseNumber(fields["speed_kmh"]); ok {
		p.SpeedKMH = &v
	}
	st := s.state.Apply(p)
	s.log.Debug("state updated", "cabin_db", st.CabinDB, "speed_kmh", st.SpeedKMH)
	return c.JSON(http.StatusOK, st)
}

// parseNumber accepts a JSON number or a numeric string.
func parseNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil && string(raw) != "null" {
		return v, true
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(str, 64)
	if err != nil || !finite(v) {
		return 0, false
	}
	return v, true
}
