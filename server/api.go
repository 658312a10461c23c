package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cyclopcam/emotrack/pkg/emotion"
	"github.com/cyclopcam/emotrack/pkg/iox"
	"github.com/cyclopcam/emotrack/pkg/kibi"
	"github.com/cyclopcam/emotrack/pkg/rundb"
	"github.com/cyclopcam/emotrack/pkg/videox"
	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
	"gorm.io/gorm"
)

func (s *Server) setupHttpRoutes() error {
	router := httprouter.New()

	handle := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.Log, router, method, route, handle)
	}

	// We create a unique rate limiter for each endpoint, so we don't need httprate.KeyByEndpoint
	ratelimited := func(method, route string, handle func(w http.ResponseWriter, r *http.Request), requestLimit int, windowLength time.Duration) {
		limited := httprate.Limit(requestLimit, windowLength, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(handle)).ServeHTTP(w, r)
		})
	}

	handle("GET", "/api/ping", s.httpPing)
	ratelimited("POST", "/api/analyze", s.httpAnalyze, s.Config.AnalyzePerMinute, time.Minute)
	handle("GET", "/api/progress", s.httpProgress)
	handle("GET", "/api/runs", s.httpListRuns)
	handle("GET", "/api/runs/:id", s.httpGetRun)
	handle("GET", "/api/runs/:id/results", s.httpGetRunResults)
	handle("GET", "/api/runs/:id/summary", s.httpGetRunSummary)
	handle("GET", "/api/runs/:id/table", s.httpGetRunTable)

	s.httpRouter = router
	return nil
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type pingJSON struct {
		Time int64 `json:"time"`
	}
	www.SendJSON(w, &pingJSON{
		Time: time.Now().Unix(),
	})
}

// Parse fps, start, and end from the query string
func (s *Server) parseSampling(r *http.Request) videox.SampleOptions {
	opt := videox.SampleOptions{
		RatePerSecond: s.Config.DefaultSampleRate,
	}
	if v := www.QueryValue(r, "fps"); v != "" {
		fps, err := strconv.Atoi(v)
		if err != nil {
			www.PanicBadRequestf("Invalid fps '%v'", v)
		}
		opt.RatePerSecond = fps
	}
	if v := www.QueryValue(r, "start"); v != "" {
		start, err := strconv.ParseFloat(v, 64)
		if err != nil {
			www.PanicBadRequestf("Invalid start '%v'", v)
		}
		opt.StartSecond = start
	}
	if v := www.QueryValue(r, "end"); v != "" {
		end, err := strconv.ParseFloat(v, 64)
		if err != nil {
			www.PanicBadRequestf("Invalid end '%v'", v)
		}
		opt.EndSecond = &end
	}
	return opt
}

// httpAnalyze accepts a multipart upload with a "video" file, analyzes it, and records the run.
// Query parameters: fps, start, end (seconds).
func (s *Server) httpAnalyze(w http.ResponseWriter, r *http.Request) {
	// Leave room for the other multipart fields
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+1024*1024)
	if err := r.ParseMultipartForm(maxMultipartMemoryBytes); err != nil {
		www.PanicBadRequestf("Invalid upload: %v", err)
	}
	file, header, err := r.FormFile("video")
	if err != nil {
		www.PanicBadRequestf("Missing 'video' file: %v", err)
	}
	defer file.Close()
	sampling := s.parseSampling(r)

	tmp, err := os.CreateTemp(s.Config.TempDir, "upload-*"+filepath.Ext(header.Filename))
	www.Check(err)
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName)

	if err := iox.WriteStreamToFileLimited(tmpName, file, s.maxUpload); err != nil {
		if errors.Is(err, iox.ErrTooLarge) {
			www.PanicBadRequestf("Video is larger than %v", kibi.FormatBytes(s.maxUpload))
		}
		www.PanicServerErrorf("Failed to save upload: %v", err)
	}
	s.Log.Infof("Received %v (%v)", header.Filename, kibi.FormatBytes(header.Size))

	run, agg := s.analyzeVideo(tmpName, header.Filename, sampling)

	type response struct {
		Run     *rundb.Run          `json:"run"`
		Results emotion.Aggregation `json:"results"`
	}
	www.SendJSON(w, &response{Run: run, Results: agg})
}

// analyzeVideo runs the pipeline on a local file, saves the artifacts, and records the run.
// Errors are raised as HTTP panics.
func (s *Server) analyzeVideo(filename, videoName string, sampling videox.SampleOptions) (*rundb.Run, emotion.Aggregation) {
	s.analyzeLock.Lock()
	defer s.analyzeLock.Unlock()

	s.Log.Infof("Analyzing %v", videoName)
	s.progress.broadcast(progressMessage{Type: "start", Video: videoName})

	result, err := emotion.RunOnVideoFile(s.Log, s.classifier, filename, emotion.Options{
		Sampling: sampling,
		Progress: func(p emotion.Progress) {
			s.progress.broadcast(progressMessage{Type: "progress", Video: videoName, Progress: p})
		},
	})
	if err != nil {
		s.progress.broadcast(progressMessage{Type: "error", Video: videoName, Error: err.Error()})
		if errors.Is(err, videox.ErrInvalidRange) || errors.Is(err, videox.ErrInvalidRate) || errors.Is(err, videox.ErrSourceOpen) {
			www.PanicBadRequestf("%v", err)
		}
		www.PanicServerErrorf("Analysis failed: %v", err)
	}

	artifacts, err := emotion.SaveArtifacts(s.storage, result.Aggregation, true, true)
	www.Check(err)

	run := &rundb.Run{
		Video:           videoName,
		RatePerSecond:   sampling.RatePerSecond,
		StartSecond:     result.Plan.StartSecond,
		EndSecond:       sampling.EndSecond,
		FramesSampled:   result.FramesSampled,
		FramesFailed:    result.FramesFailed,
		SecondsAnalyzed: len(result.Aggregation),
		ResultsArtifact: artifacts.Results,
		SummaryArtifact: artifacts.Summary,
		TableArtifact:   artifacts.Table,
	}
	if artifacts.Stats != nil {
		run.SetSummary(artifacts.Stats)
	}
	www.Check(s.Runs.Record(run))

	s.progress.broadcast(progressMessage{Type: "done", Video: videoName, RunID: run.ID})
	return run, result.Aggregation
}

func (s *Server) httpListRuns(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	limit := www.QueryInt(r, "limit")
	if limit <= 0 {
		limit = DefaultListRunsLimit
	}
	runs, err := s.Runs.List(limit)
	www.Check(err)
	www.SendJSON(w, runs)
}

// getRun resolves the :id route parameter, which may also be "latest"
func (s *Server) getRun(params httprouter.Params) *rundb.Run {
	var run *rundb.Run
	var err error
	if params.ByName("id") == "latest" {
		run, err = s.Runs.Latest()
	} else {
		id := www.ParseID(params.ByName("id"))
		if id == 0 {
			www.PanicBadRequestf("Invalid run ID '%v'", params.ByName("id"))
		}
		run, err = s.Runs.Get(id)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		www.PanicNotFound()
	}
	www.Check(err)
	return run
}

func (s *Server) httpGetRun(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.getRun(params))
}

func (s *Server) httpGetRunResults(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	run := s.getRun(params)
	s.sendArtifact(w, run.ResultsArtifact, "application/json")
}

func (s *Server) httpGetRunSummary(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	run := s.getRun(params)
	s.sendArtifact(w, run.SummaryArtifact, "application/json")
}

func (s *Server) httpGetRunTable(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	run := s.getRun(params)
	s.sendArtifact(w, run.TableArtifact, "text/csv")
}

func (s *Server) sendArtifact(w http.ResponseWriter, name, contentType string) {
	if name == "" {
		// eg the summary of an empty run
		www.PanicNotFound()
	}
	f, err := s.storage.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) {
		www.PanicNotFound()
	}
	www.Check(err)
	defer f.Reader.Close()
	w.Header().Set("Content-Type", contentType)
	if f.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f.Reader); err != nil {
		s.Log.Warnf("Failed to send artifact %v: %v", name, err)
	}
}
