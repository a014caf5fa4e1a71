// Package app wires configuration, storage and device adapters together.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/nadahalli/thumper/internal/audio"
	"github.com/nadahalli/thumper/internal/bt"
	"github.com/nadahalli/thumper/internal/clock"
	"github.com/nadahalli/thumper/internal/config"
	"github.com/nadahalli/thumper/internal/history"
	"github.com/nadahalli/thumper/internal/logging"
	"github.com/nadahalli/thumper/internal/session"
	"github.com/nadahalli/thumper/internal/settings"
	"github.com/nadahalli/thumper/internal/store"
	"github.com/nadahalli/thumper/internal/ui"
	"github.com/nadahalli/thumper/internal/wakelock"
)

const shutdownTimeout = 5 * time.Second

// App holds what every command needs: the logger, the workout store and the
// history service built on it.
type App struct {
	Config  config.Config
	Logger  *log.Logger
	Store   *store.SQLiteStore
	History *history.Service

	logFile io.Closer
}

// New opens the log file and the database. Extra writers receive a copy of
// every log line.
func New(ctx context.Context, cfg config.Config, extraLog ...io.Writer) (*App, error) {
	logger, logFile, err := logging.New(logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}, extraLog...)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		_ = logFile.Close()
		return nil, fmt.Errorf("open workout store: %w", err)
	}
	logger.Printf("App: using database %s", cfg.DBPath)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Store:   st,
		History: history.NewService(st, cfg.ExportDir, logger),
		logFile: logFile,
	}, nil
}

// NewSession builds the session controller and its device adapters from the
// configuration.
func (a *App) NewSession() (*session.Controller, error) {
	clk := clock.NewReal(a.Logger)

	kv, err := settings.Open(a.Config.SettingsPath, a.Logger)
	if err != nil {
		a.Logger.Printf("App: settings unavailable, using defaults: %v", err)
	}

	var source session.AudioSource
	if a.Config.Audio.File != "" {
		wav, err := audio.LoadWAVSource(a.Config.Audio.File, a.Config.Audio.BlockFrames, clk, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("load audio file: %w", err)
		}
		a.Logger.Printf("App: replaying %s instead of the microphone", a.Config.Audio.File)
		source = wav
	} else {
		source = audio.NewCapture(audio.Config{
			SampleRate:  a.Config.Audio.SampleRate,
			BlockFrames: a.Config.Audio.BlockFrames,
		}, a.Logger)
	}

	var hr session.HeartRateSource
	if a.Config.HR.Mock {
		a.Logger.Println("App: using the simulated heart rate monitor")
		hr = bt.NewMockMonitor(clk, a.Logger, uint64(time.Now().UnixNano()))
	} else {
		hr = bt.NewHeartRateMonitor(bluetooth.DefaultAdapter, a.Logger)
	}

	var lock session.WakeLock = wakelock.Noop{}
	if a.Config.WakeLock {
		lock = wakelock.NewScreenSaver(a.Logger)
	}

	return session.NewController(session.Deps{
		Audio:     source,
		HeartRate: hr,
		WakeLock:  lock,
		Store:     a.Store,
		Settings:  kv,
		Clock:     clk,
		Logger:    a.Logger,
	}, session.WithDetectorTiming(a.Config.Detector.CooldownMs, a.Config.Detector.MaxGapMs)), nil
}

// RunTUI blocks in the terminal UI until the user quits, then tears the
// session down.
func (a *App) RunTUI(feed *logging.Feed) error {
	ctrl, err := a.NewSession()
	if err != nil {
		return err
	}
	uiController := ui.NewController(ctrl, a.History, a.Config.HR.ScanTimeout, a.Logger)
	var logs ui.LogSource
	if feed != nil {
		logs = feed
	}
	view := ui.NewView(uiController, logs, a.Logger)

	runErr := view.Run()

	view.Shutdown()
	uiController.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	ctrl.Close(ctx)
	return runErr
}

func (a *App) Close() error {
	a.Logger.Println("App: closing")
	return errors.Join(a.Store.Close(), a.logFile.Close())
}
