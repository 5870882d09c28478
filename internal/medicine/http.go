package medicine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"MediStore/pkg/kit"
)

const (
	maxFormBody   = 1 << 20
	maxFormMemory = 1 << 20
	readyTimeout  = 1 * time.Second

	msgNotFound = "Medicine not found"
)

type Server struct {
	Store   Store
	Log     *zap.Logger
	Metrics *StoreMetrics

	// serializes load-mutate-save cycles
	mu sync.Mutex
}

type notFoundResp struct {
	Error string `json:"error"`
}

type mutationResp struct {
	Message string `json:"message"`
	Summary
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.Store.Ping(ctx); err != nil {
		s.logger().Warn("readyz failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	c, ok := s.load(w, r)
	if !ok {
		return
	}
	kit.WriteJSON(w, http.StatusOK, c)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	name := pathName(r)

	c, ok := s.load(w, r)
	if !ok {
		return
	}

	i := c.IndexOf(name)
	if i < 0 {
		writeNotFound(w)
		return
	}
	kit.WriteJSON(w, http.StatusOK, c.Medicines[i])
}

func (s *Server) handleAverage(w http.ResponseWriter, r *http.Request) {
	c, ok := s.load(w, r)
	if !ok {
		return
	}
	kit.WriteJSON(w, http.StatusOK, Average(c.Medicines))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	f, ok := decodeMedicineForm(w, r, true)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.load(w, r)
	if !ok {
		return
	}

	c.Medicines = append(c.Medicines, Medicine{Name: f.Name, Price: f.Price})
	s.save(r, c)

	s.logger().Debug("medicine created", zap.String("name", f.Name), zap.Float64("price", f.Price))
	writeMutation(w, "created", f.Name, c)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	f, ok := decodeMedicineForm(w, r, true)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.load(w, r)
	if !ok {
		return
	}

	i := c.IndexOf(f.Name)
	if i < 0 {
		writeNotFound(w)
		return
	}

	c.Medicines[i].Price = f.Price
	s.save(r, c)

	s.logger().Debug("medicine updated", zap.String("name", f.Name), zap.Float64("price", f.Price))
	writeMutation(w, "updated", f.Name, c)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	f, ok := decodeMedicineForm(w, r, false)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.load(w, r)
	if !ok {
		return
	}

	i := c.IndexOf(f.Name)
	if i < 0 {
		writeNotFound(w)
		return
	}

	c.Medicines = slices.Delete(c.Medicines, i, i+1)
	s.save(r, c)

	s.logger().Debug("medicine deleted", zap.String("name", f.Name))
	writeMutation(w, "deleted", f.Name, c)
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) (Collection, bool) {
	c, err := s.Store.Load(r.Context())
	if err != nil {
		if isTimeoutErr(err) {
			kit.WriteError(w, r, http.StatusGatewayTimeout, "timeout", nil)
			return Collection{}, false
		}
		s.logger().Error("load medicines failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return Collection{}, false
	}
	s.Metrics.records(len(c.Medicines))
	return c, true
}

// save is best effort: the response to the client does not change when the
// write fails.
func (s *Server) save(r *http.Request, c Collection) {
	if err := s.Store.Save(context.WithoutCancel(r.Context()), c); err != nil {
		s.logger().Error("save medicines failed",
			zap.Error(err),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
		s.Metrics.saveFailure()
		return
	}
	s.Metrics.records(len(c.Medicines))
}

func writeNotFound(w http.ResponseWriter) {
	kit.WriteJSON(w, http.StatusOK, notFoundResp{Error: msgNotFound})
}

func writeMutation(w http.ResponseWriter, verb, name string, c Collection) {
	kit.WriteJSON(w, http.StatusOK, mutationResp{
		Message: fmt.Sprintf("Medicine %s successfully with name: %s", verb, name),
		Summary: Average(c.Medicines),
	})
}

func pathName(r *http.Request) string {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return name
	}
	if u, err := url.PathUnescape(name); err == nil {
		return u
	}
	return name
}

type medicineForm struct {
	Name  string
	Price float64
}

func decodeMedicineForm(w http.ResponseWriter, r *http.Request, withPrice bool) (medicineForm, bool) {
	vals, err := readForm(w, r)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			kit.WriteError(w, r, http.StatusRequestEntityTooLarge, "request body too large", map[string]any{"max_bytes": mbe.Limit})
			return medicineForm{}, false
		}
		kit.WriteError(w, r, http.StatusBadRequest, "bad form", map[string]any{"cause": err.Error()})
		return medicineForm{}, false
	}

	var (
		f      medicineForm
		issues = map[string]string{}
	)

	f.Name = vals.Get("name")
	if f.Name == "" {
		issues["name"] = "field required"
	}

	if withPrice {
		raw := strings.TrimSpace(vals.Get("price"))
		switch p, err := strconv.ParseFloat(raw, 64); {
		case raw == "":
			issues["price"] = "field required"
		case err != nil, math.IsNaN(p), math.IsInf(p, 0):
			issues["price"] = "value is not a valid float"
		default:
			f.Price = p
		}
	}

	if len(issues) > 0 {
		kit.WriteValidationError(w, r, issues)
		return medicineForm{}, false
	}
	return f, true
}

// readForm decodes url-encoded and multipart bodies for any method;
// net/http's ParseForm ignores the body of DELETE requests.
func readForm(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	defer func() { _ = r.Body.Close() }()

	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		ct = ""
	}

	switch ct {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return nil, err
		}
		return r.PostForm, nil
	case "application/x-www-form-urlencoded", "":
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		return url.ParseQuery(string(b))
	default:
		return url.Values{}, nil
	}
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
