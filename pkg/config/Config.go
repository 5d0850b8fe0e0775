package config

import "os"
import "path/filepath"
import "time"


//=========================================== Cluster Config


/*
	defaults mirror production cadences, tests override the clock and the
	timeouts directly on the module opts
*/

type ClusterConfig struct {
	MemberID       int32
	ClusterMembers string
	ClusterDir     string

	MemberStatusEndpoints []string
	MemberEndpoints       string

	AppVersion int32

	ServiceCount int

	MaxConcurrentSessions  int
	PendingMessageCapacity int

	SessionTimeout          time.Duration
	LeaderHeartbeatInterval time.Duration
	LeaderHeartbeatTimeout  time.Duration
	ElectionTimeout         time.Duration
	CatchupTimeout          time.Duration
	TerminationTimeout      time.Duration

	WheelTickResolution time.Duration
	TicksPerWheel       int

	FileSyncLevel int
}

func DefaultConfig() *ClusterConfig {
	homedir, homeErr := os.UserHomeDir()
	if homeErr != nil { homedir = "." }

	return &ClusterConfig{
		ClusterDir: filepath.Join(homedir, ".cluster"),
		AppVersion: SemanticVersion(1, 0, 0),
		ServiceCount: 1,
		MaxConcurrentSessions: 250,
		PendingMessageCapacity: 8192,
		SessionTimeout: 10 * time.Second,
		LeaderHeartbeatInterval: 200 * time.Millisecond,
		LeaderHeartbeatTimeout: 10 * time.Second,
		ElectionTimeout: time.Second,
		CatchupTimeout: 30 * time.Second,
		TerminationTimeout: 10 * time.Second,
		WheelTickResolution: 8 * time.Millisecond,
		TicksPerWheel: 1024,
		FileSyncLevel: 1,
	}
}

func (cfg *ClusterConfig) ArchivePath() string {
	return filepath.Join(cfg.ClusterDir, "archive.db")
}

func (cfg *ClusterConfig) RecordingLogPath() string {
	return filepath.Join(cfg.ClusterDir, "recordinglog.db")
}

/*
	app versions pack major.minor.patch the same way the snapshot and log
	validation unpack them, major in the high bits
*/

func SemanticVersion(major int32, minor int32, patch int32) int32 {
	return major << 16 | minor << 8 | patch
}
