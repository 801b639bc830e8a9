// Package status implements the read-only status server (component C8): a
// small Echo server exposing the durable progress record and a tail of the
// CSV output, for a human or a dashboard to watch a run without touching the
// state file directly. Grounded on the teacher's command/web server — same
// Echo-serving-CSV-as-JSON idiom, narrowed to the two resources a harvest run
// actually has: state and output rows.
package status

import (
	"encoding/csv"
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/scottluskcis/repo-stats-go/internal/state"
)

// Server wraps an Echo instance bound to a state store and an output path.
type Server struct {
	echo       *echo.Echo
	store      *state.Store
	outputPath func() string
}

// New builds a Server. outputPath is a thunk rather than a fixed string since
// the harvest engine may not have opened the sink yet when the server
// starts.
func New(store *state.Store, outputPath func() string) *Server {
	s := &Server{echo: echo.New(), store: store, outputPath: outputPath}
	s.echo.HideBanner = true
	s.echo.GET("/healthz", s.handleHealthz)
	s.echo.GET("/state", s.handleState)
	s.echo.GET("/rows", s.handleRows)
	return s
}

// Start blocks serving on addr (host:port), matching the teacher's
// e.Start(*addr) call shape.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(c echo.Context) error {
	st, err := s.store.Snapshot()
	if err != nil {
		if os.IsNotExist(err) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "no state file yet"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, st)
}

// handleRows returns the last N rows (default 20, via ?tail=N) of the output
// CSV, rendered as header-keyed objects.
func (s *Server) handleRows(c echo.Context) error {
	tail := 20
	if raw := c.QueryParam("tail"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			tail = n
		}
	}

	path := s.outputPath()
	if path == "" {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no output file yet"})
	}

	rows, err := readTail(path, tail)
	if err != nil {
		if os.IsNotExist(err) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "output file not found", "path": path})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, rows)
}

func readTail(path string, n int) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []map[string]string{}, nil
	}

	headers := records[0]
	body := records[1:]
	if len(body) > n {
		body = body[len(body)-n:]
	}

	rows := make([]map[string]string, 0, len(body))
	for _, rec := range body {
		obj := make(map[string]string, len(headers))
		for i := 0; i < len(headers) && i < len(rec); i++ {
			obj[headers[i]] = rec[i]
		}
		rows = append(rows, obj)
	}
	return rows, nil
}
