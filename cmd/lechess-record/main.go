package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lechess/lechess-record/internal/boardimg"
	"github.com/lechess/lechess-record/internal/bridge"
	appcfg "github.com/lechess/lechess-record/internal/config"
	"github.com/lechess/lechess-record/internal/journal"
	"github.com/lechess/lechess-record/internal/msgcat"
	"github.com/lechess/lechess-record/internal/obslog"
	"github.com/lechess/lechess-record/internal/pgnindex"
	"github.com/lechess/lechess-record/internal/progress"
	"github.com/lechess/lechess-record/internal/session"
	"github.com/lechess/lechess-record/internal/viz"
)

func main() {
	pgnPath := flag.String("pgn", "", "path to the PGN file to record")
	repoID := flag.String("repo-id", "", "dataset repo id the episodes belong to")
	color := flag.String("color", "", "record only this side's moves (white|black, empty for both)")
	resume := flag.Bool("resume", false, "resume at the move saved for this repo id")
	flag.Parse()

	if *pgnPath == "" || *repoID == "" {
		fmt.Fprintln(os.Stderr, "usage: lechess-record -pgn <file> -repo-id <id> [-color white|black] [-resume]")
		os.Exit(2)
	}

	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logging init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	messages, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	filter, err := pgnindex.ParseColorFilter(*color)
	if err != nil {
		log.Fatalf("color filter error: %v", err)
	}

	f, err := os.Open(*pgnPath)
	if err != nil {
		log.Fatalf("open pgn: %v", err)
	}
	indexer, err := pgnindex.New(f, filter, boardimg.NewRasterBoardRenderer())
	_ = f.Close()
	if err != nil {
		log.Fatalf("parse pgn: %v", err)
	}
	if indexer.Len() == 0 {
		fmt.Println(messages.MustRender("notice.no_moves", map[string]any{"Color": *color}))
		os.Exit(1)
	}
	fmt.Printf("Found %d moves for %s\n", indexer.Len(), filterLabel(filter))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := session.NewSignals()

	// bridge HTTP client and pendant event stream
	client := bridge.NewClient(cfg.BridgeBaseURL, bridge.WithFPS(cfg.RecordFPS))
	events := bridge.NewEventStream(cfg.BridgeWSURL)
	events.OnEvent(func(ev bridge.Event) {
		switch ev.Type {
		case bridge.EventRerecord:
			signals.RaiseRerecord()
		case bridge.EventExitEarly:
			signals.RaiseExitEarly()
		case bridge.EventStop:
			signals.RaiseStop()
		case bridge.EventResume:
			client.NotifyResume()
		}
	})
	cctx, ccancel := context.WithTimeout(ctx, 10*time.Second)
	err = events.Connect(cctx)
	ccancel()
	if err != nil {
		log.Fatalf("bridge ws connect error: %v", err)
	}
	defer func() { _ = events.Close(context.Background()) }()

	var display session.Display
	if cfg.ViewerBaseURL != "" {
		display = viz.NewClient(cfg.ViewerBaseURL)
	}

	var announce session.Announcer
	if cfg.PlaySounds {
		announce = client
	}

	var epJournal session.Journal
	if cfg.DatabaseURL != "" {
		repo, err := journal.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("journal init error: %v", err)
		}
		defer func() { _ = repo.Close() }()
		epJournal = repo
	}

	var progressSink session.ProgressSink
	var progressStore *progress.Store
	startIndex := 0
	if cfg.RedisURL != "" {
		progressStore, err = progress.NewStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("progress store init error: %v", err)
		}
		defer func() { _ = progressStore.Close() }()
		progressSink = progressStore.Sink(*repoID)
		if *resume {
			st, err := progressStore.Load(ctx, *repoID)
			if err != nil {
				log.Fatalf("load progress error: %v", err)
			}
			if st != nil {
				startIndex = st.MoveIdx
				fmt.Printf("Resuming at move %d (%d episodes recorded)\n", st.MoveIdx+1, st.Episodes)
			}
		}
	}

	// SIGINT/SIGTERM stops the session at the next loop checkpoint
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		signals.RaiseStop()
		cancel()
	}()

	controller, err := session.NewController(session.Params{
		Index:              indexer,
		Recorder:           client,
		Store:              client,
		Display:            display,
		Observer:           client,
		Announce:           announce,
		Input:              session.NewStdinReader(),
		Journal:            epJournal,
		Progress:           progressSink,
		Messages:           messages,
		Signals:            signals,
		Out:                os.Stdout,
		Logger:             logger,
		RepoID:             *repoID,
		EpisodeTime:        time.Duration(cfg.EpisodeTimeSec) * time.Second,
		CheckpointInterval: cfg.CheckpointInterval,
		StartIndex:         startIndex,
	})
	if err != nil {
		log.Fatalf("controller init error: %v", err)
	}

	summary, err := controller.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("session error", zap.Error(err))
	}
	fmt.Printf("Recorded %d episodes (stopped at move %d of %d)\n",
		summary.RecordedEpisodes, summary.LastIndex, indexer.Len())

	// a finished game needs no resume point
	if progressStore != nil && summary.LastIndex >= indexer.Len() {
		if err := progressStore.Clear(context.Background(), *repoID); err != nil {
			logger.Warn("clear progress failed", zap.Error(err))
		}
	}
}

func filterLabel(f pgnindex.ColorFilter) string {
	if f == pgnindex.FilterNone {
		return "both sides"
	}
	return string(f)
}
