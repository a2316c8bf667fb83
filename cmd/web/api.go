package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ai-thumbnail-pro/internal/imageref"
	"ai-thumbnail-pro/internal/session"
	"ai-thumbnail-pro/internal/wizard"
)

const (
	msgSessionNotFound = "session not found"
	msgPickBoth        = "タイトルとキャッチコピーを1つずつ選んでください。"
	msgPickImage       = "画像を1つ選んでください。"
	msgNoThumbnail     = "thumbnail not found"
	multipartMemory    = 32 << 20
)

type server struct {
	sessions       *session.Store
	maxUpload      int64
	requestTimeout time.Duration
	logger         *slog.Logger

	// baseCtx outlives requests; step work keeps running after the 202.
	baseCtx context.Context
	run     func(func())
}

type apiError struct {
	Error string `json:"error"`
}

type sessionResponse struct {
	ID    string       `json:"id"`
	State wizard.State `json:"state"`
}

type selectionRequest struct {
	Title       string `json:"title"`
	Catchphrase string `json:"catchphrase"`
}

type imageRequest struct {
	ImageRef string `json:"imageRef"`
}

func (s *server) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", s.handleCreate)
	mux.HandleFunc("GET /api/sessions/{id}", s.withSession(s.handleGet))
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDelete)
	mux.HandleFunc("POST /api/sessions/{id}/source", s.withSession(s.handleSource))
	mux.HandleFunc("POST /api/sessions/{id}/selection", s.withSession(s.handleSelection))
	mux.HandleFunc("POST /api/sessions/{id}/image", s.withSession(s.handleImage))
	mux.HandleFunc("POST /api/sessions/{id}/restart", s.withSession(s.handleRestart))
	mux.HandleFunc("GET /api/sessions/{id}/thumbnails/{n}", s.withSession(s.handleThumbnail))
}

func (s *server) withSession(next func(http.ResponseWriter, *http.Request, session.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.Get(r.PathValue("id"))
		if !ok {
			writeJSON(w, http.StatusNotFound, apiError{Error: msgSessionNotFound})
			return
		}
		next(w, r, sess)
	}
}

func (s *server) handleCreate(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	s.logger.Info("session created", "session_id", sess.ID)
	writeJSON(w, http.StatusCreated, sessionResponse{ID: sess.ID, State: sess.Wizard.State()})
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request, sess session.Session) {
	writeJSON(w, http.StatusOK, sessionResponse{ID: sess.ID, State: sess.Wizard.State()})
}

func (s *server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.sessions.Delete(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleSource(w http.ResponseWriter, r *http.Request, sess session.Session) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, apiError{Error: wizard.ValidationMessage(wizard.ValidateVideoSize(s.maxUpload+1, s.maxUpload))})
			return
		}
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid multipart form"})
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	var src wizard.VideoSource
	switch strings.TrimSpace(r.FormValue("kind")) {
	case string(wizard.SourceFile):
		content, filename, err := readUpload(r, "video")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "failed to read video"})
			return
		}
		src = wizard.FileSource(content, filename, r.FormValue("description"))
	case string(wizard.SourceYouTube):
		src = wizard.YouTubeSource(r.FormValue("url"))
	default:
		writeJSON(w, http.StatusBadRequest, apiError{Error: wizard.ErrUnknownSource.Error()})
		return
	}

	s.start(w, sess, wizard.SubmitSource{Source: src})
}

func (s *server) handleSelection(w http.ResponseWriter, r *http.Request, sess session.Session) {
	var req selectionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid json"})
		return
	}

	st := sess.Wizard.State()
	if !s.checkStep(w, st, wizard.StepTitles) {
		return
	}
	if !st.CanSubmitSelection(req.Title, req.Catchphrase) {
		writeJSON(w, http.StatusBadRequest, apiError{Error: msgPickBoth})
		return
	}

	s.start(w, sess, wizard.SubmitSelection{Title: req.Title, Catchphrase: req.Catchphrase})
}

func (s *server) handleImage(w http.ResponseWriter, r *http.Request, sess session.Session) {
	var req imageRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid json"})
		return
	}

	st := sess.Wizard.State()
	if !s.checkStep(w, st, wizard.StepImages) {
		return
	}
	if !st.CanSubmitImage(req.ImageRef) {
		writeJSON(w, http.StatusBadRequest, apiError{Error: msgPickImage})
		return
	}

	s.start(w, sess, wizard.SubmitImage{ImageRef: req.ImageRef})
}

func (s *server) handleRestart(w http.ResponseWriter, r *http.Request, sess session.Session) {
	st := sess.Wizard.Restart()
	s.logger.Info("session restarted", "session_id", sess.ID)
	writeJSON(w, http.StatusOK, sessionResponse{ID: sess.ID, State: st})
}

func (s *server) handleThumbnail(w http.ResponseWriter, r *http.Request, sess session.Session) {
	n, err := strconv.Atoi(r.PathValue("n"))
	st := sess.Wizard.State()
	if err != nil || st.Step != wizard.StepResult || n < 1 || n > len(st.FinalImages) {
		writeJSON(w, http.StatusNotFound, apiError{Error: msgNoThumbnail})
		return
	}

	data, err := imageref.ToPNG(st.FinalImages[n-1])
	if err != nil {
		s.logger.Error("thumbnail export failed", "session_id", sess.ID, "n", n, "err", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}

	w.Header().Set("content-type", "image/png")
	w.Header().Set("content-disposition", fmt.Sprintf(`attachment; filename="thumbnail_option_%d.png"`, n))
	w.Header().Set("content-length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *server) checkStep(w http.ResponseWriter, st wizard.State, step int) bool {
	switch {
	case st.Loading():
		writeJSON(w, http.StatusConflict, apiError{Error: wizard.ErrBusy.Error()})
		return false
	case st.Failed(), st.Step != step:
		writeJSON(w, http.StatusConflict, apiError{Error: wizard.ErrWrongStep.Error()})
		return false
	}
	return true
}

// start moves the wizard into loading, hands the work to s.run and replies
// with the loading state. Clients poll GET /api/sessions/{id} for the result.
func (s *server) start(w http.ResponseWriter, sess session.Session, action wizard.Action) {
	p, err := sess.Wizard.Start(action)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, wizard.ErrBusy), errors.Is(err, wizard.ErrWrongStep):
			status = http.StatusConflict
		case wizard.IsValidation(err):
			status = http.StatusBadRequest
		}
		writeJSON(w, status, apiError{Error: wizard.ValidationMessage(err)})
		return
	}

	loading := sess.Wizard.State()
	s.run(func() {
		ctx, cancel := context.WithTimeout(s.baseCtx, s.requestTimeout)
		defer cancel()

		st := p.Run(ctx)
		s.logger.Info("step finished", "session_id", sess.ID, "step", st.Step, "overlay", st.Overlay.String())
	})

	writeJSON(w, http.StatusAccepted, sessionResponse{ID: sess.ID, State: loading})
}

func readUpload(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http", "method", r.Method, "path", r.URL.Path, "status", rec.status, "dur_ms", time.Since(start).Milliseconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
