package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cyclopcam/emotrack/pkg/kibi"
	"github.com/cyclopcam/emotrack/pkg/nn"
	"github.com/cyclopcam/emotrack/pkg/nnload"
	"github.com/cyclopcam/emotrack/pkg/rundb"
	"github.com/cyclopcam/emotrack/pkg/storage"
	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Server accepts video uploads over HTTP, analyzes them, and keeps the results
type Server struct {
	Log    logs.Log
	Runs   *rundb.RunDB
	Config Config

	signalIn   chan os.Signal
	httpServer *http.Server
	httpRouter *httprouter.Router
	storage    storage.Storage
	wsUpgrader websocket.Upgrader
	progress   *progressHub
	maxUpload  int64 // bytes

	// The classifier is not safe for concurrent use, so we analyze one video at a time
	analyzeLock sync.Mutex
	classifier  nn.EmotionClassifier
}

// NewServer loads the config file, the classifier, and the run DB
func NewServer(configFile string) (*Server, error) {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	logger, err := logs.NewLog()
	if err != nil {
		return nil, err
	}
	classifier, err := nnload.LoadClassifier(logger, nnload.Options{
		ModelDir:    cfg.Model.Dir,
		ModelName:   cfg.Model.Name,
		RemoteURL:   cfg.Model.RemoteURL,
		DownloadURL: cfg.Model.DownloadURL,
	})
	if err != nil {
		return nil, fmt.Errorf("Failed to load emotion classifier: %w", err)
	}
	s, err := New(logger, *cfg, classifier)
	if err != nil {
		classifier.Close()
		return nil, err
	}
	return s, nil
}

// New creates a server from an already loaded config and classifier.
// The server takes ownership of the classifier.
func New(logger logs.Log, cfg Config, classifier nn.EmotionClassifier) (*Server, error) {
	cfg.setDefaults()
	maxUpload, err := kibi.ParseBytes(cfg.MaxUpload)
	if err != nil {
		return nil, fmt.Errorf("Invalid maxUpload '%v': %w", cfg.MaxUpload, err)
	}
	runs, err := rundb.Open(logger, cfg.DB)
	if err != nil {
		return nil, err
	}

	// Open blob store
	var storageServer storage.Storage
	if cfg.Storage.GCS != nil {
		// Google Cloud Storage
		storageServer, err = storage.NewStorageGCS(logger, cfg.Storage.GCS.Bucket, cfg.Storage.GCS.Prefix)
		if err != nil {
			return nil, err
		}
	} else if cfg.Storage.Filesystem != nil {
		// Filesystem
		storageServer, err = storage.NewStorageFS(logger, cfg.Storage.Filesystem.Root)
		if err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("One of the storage options must be configured (i.e. either 'filesystem' or 'gcs')")
	}

	if err := os.MkdirAll(cfg.TempDir, 0755); err != nil {
		return nil, fmt.Errorf("Failed to create temp dir %v: %w", cfg.TempDir, err)
	}

	s := &Server{
		Log:        logger,
		Runs:       runs,
		Config:     cfg,
		storage:    storageServer,
		classifier: classifier,
		progress:   newProgressHub(logger),
		maxUpload:  maxUpload,
	}
	if err := s.setupHttpRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// port example: ":8081"
func (s *Server) ListenHTTP(port string) error {
	s.Log.Infof("Listening on %v", port)
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.httpRouter,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) ListenForKillSignals() {
	s.Log.Infof("ListenForKillSignals starting")
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'. ListenForKillSignals will exit after shutdown", sig.String())
			s.Shutdown()
		} else {
			// This path gets hit when Shutdown() is called by something other than ourselves, and Shutdown() closes the signalIn channel.
			s.Log.Infof("signalIn closed. ListenForKillSignals will exit now")
		}
	}()
}

func (s *Server) Shutdown() {
	s.Log.Infof("Shutdown")
	if s.signalIn != nil {
		signal.Stop(s.signalIn)
		close(s.signalIn)
	}
	if s.httpServer != nil {
		s.Log.Infof("Closing HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := s.httpServer.Shutdown(ctx)
		defer cancel()
		if err != nil {
			s.Log.Warnf("HTTP server shutdown error: %v", err)
		}
	}
	s.progress.closeAll()

	// Wait for an analysis in progress to finish
	s.analyzeLock.Lock()
	s.classifier.Close()
	s.analyzeLock.Unlock()

	s.Log.Infof("Shutdown complete")
	s.Log.Close()
}
