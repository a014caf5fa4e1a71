// Package config resolves runtime settings from defaults, an optional
// config.yaml in the data directory, THUMPER_* environment variables and
// command-line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "THUMPER"
	ConfigFileName = "config"

	KeyDataDir           = "data_dir"
	KeyDBPath            = "db_path"
	KeySettingsPath      = "settings_path"
	KeyExportDir         = "export_dir"
	KeyLogFile           = "log.file"
	KeyLogMaxSizeMB      = "log.max_size_mb"
	KeyLogMaxBackups     = "log.max_backups"
	KeyLogMaxAgeDays     = "log.max_age_days"
	KeyDetectorCooldown  = "detector.cooldown_ms"
	KeyDetectorMaxGap    = "detector.max_gap_ms"
	KeyAudioSampleRate   = "audio.sample_rate"
	KeyAudioBlockFrames  = "audio.block_frames"
	KeyAudioFile         = "audio.file"
	KeyHRMock            = "hr.mock"
	KeyHRScanTimeout     = "hr.scan_timeout"
	KeyWakeLockEnabled   = "wakelock.enabled"
	defaultDataDirName   = ".thumper"
	minSampleRate        = 8000
	maxSampleRate        = 192000
	defaultSampleRate    = 44100
	defaultBlockFrames   = 2048
	defaultCooldownMs    = 200
	defaultMaxGapMs      = 2000
	defaultScanTimeout   = 30 * time.Second
	defaultLogMaxSizeMB  = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAgeDays = 28
)

type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type DetectorConfig struct {
	CooldownMs int64
	MaxGapMs   int64
}

type AudioConfig struct {
	SampleRate  uint32
	BlockFrames uint32
	// File replays a WAV recording instead of opening the microphone.
	File string
}

type HRConfig struct {
	Mock        bool
	ScanTimeout time.Duration
}

type Config struct {
	DataDir      string
	DBPath       string
	SettingsPath string
	ExportDir    string
	Log          LogConfig
	Detector     DetectorConfig
	Audio        AudioConfig
	HR           HRConfig
	WakeLock     bool
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyDataDir, filepath.Join("~", defaultDataDirName))
	v.SetDefault(KeyDBPath, "")
	v.SetDefault(KeySettingsPath, "")
	v.SetDefault(KeyExportDir, "")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyLogMaxSizeMB, defaultLogMaxSizeMB)
	v.SetDefault(KeyLogMaxBackups, defaultLogMaxBackups)
	v.SetDefault(KeyLogMaxAgeDays, defaultLogMaxAgeDays)
	v.SetDefault(KeyDetectorCooldown, defaultCooldownMs)
	v.SetDefault(KeyDetectorMaxGap, defaultMaxGapMs)
	v.SetDefault(KeyAudioSampleRate, defaultSampleRate)
	v.SetDefault(KeyAudioBlockFrames, defaultBlockFrames)
	v.SetDefault(KeyAudioFile, "")
	v.SetDefault(KeyHRMock, false)
	v.SetDefault(KeyHRScanTimeout, defaultScanTimeout)
	v.SetDefault(KeyWakeLockEnabled, true)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags registers the command-line overrides on fs and binds them to v.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.String("data-dir", "", "directory for the database, settings and logs")
	fs.String("db", "", "workout database path")
	fs.String("log-file", "", "log file path")
	fs.String("audio-file", "", "replay a 16-bit mono WAV file instead of the microphone")
	fs.Uint32("sample-rate", defaultSampleRate, "microphone sample rate in Hz")
	fs.Bool("mock-hr", false, "use a simulated heart-rate monitor")
	fs.Bool("wakelock", true, "keep the screen awake during a workout")

	bindings := map[string]string{
		KeyDataDir:         "data-dir",
		KeyDBPath:          "db",
		KeyLogFile:         "log-file",
		KeyAudioFile:       "audio-file",
		KeyAudioSampleRate: "sample-rate",
		KeyHRMock:          "mock-hr",
		KeyWakeLockEnabled: "wakelock",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load merges config.yaml from the resolved data directory, if present, and
// returns the validated result.
func Load(v *viper.Viper) (Config, error) {
	dataDir, err := expandHome(v.GetString(KeyDataDir))
	if err != nil {
		return Config{}, err
	}
	if dataDir == "" {
		return Config{}, errors.New("data_dir is required")
	}

	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dataDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		DataDir:      dataDir,
		DBPath:       v.GetString(KeyDBPath),
		SettingsPath: v.GetString(KeySettingsPath),
		ExportDir:    v.GetString(KeyExportDir),
		Log: LogConfig{
			File:       v.GetString(KeyLogFile),
			MaxSizeMB:  v.GetInt(KeyLogMaxSizeMB),
			MaxBackups: v.GetInt(KeyLogMaxBackups),
			MaxAgeDays: v.GetInt(KeyLogMaxAgeDays),
		},
		Detector: DetectorConfig{
			CooldownMs: v.GetInt64(KeyDetectorCooldown),
			MaxGapMs:   v.GetInt64(KeyDetectorMaxGap),
		},
		Audio: AudioConfig{
			SampleRate:  v.GetUint32(KeyAudioSampleRate),
			BlockFrames: v.GetUint32(KeyAudioBlockFrames),
			File:        v.GetString(KeyAudioFile),
		},
		HR: HRConfig{
			Mock:        v.GetBool(KeyHRMock),
			ScanTimeout: v.GetDuration(KeyHRScanTimeout),
		},
		WakeLock: v.GetBool(KeyWakeLockEnabled),
	}

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(dataDir, "thumper.db")
	}
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = filepath.Join(dataDir, "settings.yaml")
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = filepath.Join(dataDir, "exports")
	}
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(dataDir, "thumper.log")
	}
	for _, p := range []*string{&cfg.DBPath, &cfg.SettingsPath, &cfg.ExportDir, &cfg.Log.File, &cfg.Audio.File} {
		if *p, err = expandHome(*p); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Detector.CooldownMs <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyDetectorCooldown, c.Detector.CooldownMs))
	}
	if c.Detector.MaxGapMs <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyDetectorMaxGap, c.Detector.MaxGapMs))
	}
	if c.Audio.SampleRate < minSampleRate || c.Audio.SampleRate > maxSampleRate {
		errs = append(errs, fmt.Errorf("%s must be within [%d, %d], got %d",
			KeyAudioSampleRate, minSampleRate, maxSampleRate, c.Audio.SampleRate))
	}
	if c.Audio.BlockFrames == 0 || c.Audio.BlockFrames > c.Audio.SampleRate {
		errs = append(errs, fmt.Errorf("%s must be within [1, sample rate], got %d", KeyAudioBlockFrames, c.Audio.BlockFrames))
	}
	if c.HR.ScanTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", KeyHRScanTimeout, c.HR.ScanTimeout))
	}
	if c.Log.MaxSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyLogMaxSizeMB, c.Log.MaxSizeMB))
	}
	if c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		errs = append(errs, errors.New("log retention cannot be negative"))
	}
	return errors.Join(errs...)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
