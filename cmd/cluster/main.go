package main

import "net"
import "net/http"
import "os"
import "os/signal"
import "strings"
import "syscall"
import "time"

import "github.com/prometheus/client_golang/prometheus/promhttp"
import "github.com/spf13/cobra"

import "github.com/sirgallo/cluster/pkg/archive"
import "github.com/sirgallo/cluster/pkg/config"
import "github.com/sirgallo/cluster/pkg/connpool"
import "github.com/sirgallo/cluster/pkg/consensus"
import "github.com/sirgallo/cluster/pkg/counters"
import "github.com/sirgallo/cluster/pkg/logger"
import "github.com/sirgallo/cluster/pkg/recordinglog"
import "github.com/sirgallo/cluster/pkg/transport"


const NAME = "Main"
var Log = clog.NewCustomLog(NAME)


func main() {
	root := &cobra.Command{ Use: "cluster", Short: "replicated state machine cluster member" }
	root.AddCommand(newRunCmd())

	runErr := root.Execute()
	if runErr != nil { Log.Fatal("unable to run command:", runErr.Error()) }
}

func newRunCmd() *cobra.Command {
	var memberId int32
	var members, clusterDir, statusEndpoints, memberEndpoints, metricsAddr, bridgeAddr string
	var serviceCount, fileSyncLevel int
	var bridgePort int

	cmd := &cobra.Command{
		Use: "run",
		Short: "Run a consensus module agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			cfg.MemberID = memberId
			cfg.ClusterMembers = members
			cfg.ServiceCount = serviceCount
			cfg.FileSyncLevel = fileSyncLevel
			cfg.MemberEndpoints = memberEndpoints

			if clusterDir != "" { cfg.ClusterDir = clusterDir }
			if statusEndpoints != "" { cfg.MemberStatusEndpoints = strings.Split(statusEndpoints, ",") }

			return runAgent(cfg, metricsAddr, bridgeAddr, bridgePort)
		},
	}

	cmd.Flags().Int32Var(&memberId, "member-id", 0, "this member's id")
	cmd.Flags().StringVar(&members, "members", "", "encoded cluster members")
	cmd.Flags().StringVar(&clusterDir, "cluster-dir", "", "cluster state directory")
	cmd.Flags().StringVar(&statusEndpoints, "status-endpoints", "", "peer status channels for dynamic join")
	cmd.Flags().StringVar(&memberEndpoints, "member-endpoints", "", "this member's encoded endpoints for dynamic join")
	cmd.Flags().IntVar(&serviceCount, "service-count", 1, "number of hosted services")
	cmd.Flags().IntVar(&fileSyncLevel, "file-sync-level", 1, "recording log fsync level")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "prometheus metrics listen address")
	cmd.Flags().StringVar(&bridgeAddr, "bridge-addr", "", "stream bridge listen address, empty disables")
	cmd.Flags().IntVar(&bridgePort, "bridge-port", 54340, "stream bridge port recorded on the bridge server, the listen address comes from bridge-addr")

	return cmd
}

func runAgent(cfg *config.ClusterConfig, metricsAddr string, bridgeAddr string, bridgePort int) error {
	medium := transport.NewTransportMedium()

	arc, archiveErr := archive.NewArchive(archive.ArchiveOpts{ DBPath: cfg.ArchivePath() })
	if archiveErr != nil { return archiveErr }

	rlog, rlogErr := recordinglog.NewRecordingLog(recordinglog.RecordingLogOpts{
		DBPath: cfg.RecordingLogPath(),
		FileSyncLevel: cfg.FileSyncLevel,
	})
	if rlogErr != nil { return rlogErr }

	if bridgeAddr != "" {
		listener, listenErr := net.Listen("tcp", bridgeAddr)
		if listenErr != nil { return listenErr }

		bridge := transport.NewBridgeServer(medium, bridgePort)
		bridge.Start(listener)

		Log.Info("stream bridge listening on:", bridgeAddr)
	}

	terminated := make(chan os.Signal, 1)

	agent, agentErr := consensus.NewConsensusModuleAgent(consensus.ConsensusModuleOpts{
		MemberID: cfg.MemberID,
		ClusterMembers: cfg.ClusterMembers,
		ClusterDir: cfg.ClusterDir,
		MemberStatusEndpoints: cfg.MemberStatusEndpoints,
		MemberEndpoints: cfg.MemberEndpoints,
		AppVersion: cfg.AppVersion,
		ServiceCount: cfg.ServiceCount,
		Medium: medium,
		Archive: arc,
		RecordingLog: rlog,
		TerminationHook: func() { terminated <- syscall.SIGTERM },
		MaxConcurrentSessions: cfg.MaxConcurrentSessions,
		PendingMessageCapacity: cfg.PendingMessageCapacity,
		SessionTimeoutNs: cfg.SessionTimeout.Nanoseconds(),
		LeaderHeartbeatIntervalNs: cfg.LeaderHeartbeatInterval.Nanoseconds(),
		LeaderHeartbeatTimeoutNs: cfg.LeaderHeartbeatTimeout.Nanoseconds(),
		ElectionTimeoutNs: cfg.ElectionTimeout.Nanoseconds(),
		CatchupTimeoutNs: cfg.CatchupTimeout.Nanoseconds(),
		TerminationTimeoutNs: cfg.TerminationTimeout.Nanoseconds(),
		WheelTickResolutionNs: cfg.WheelTickResolution.Nanoseconds(),
		TicksPerWheel: cfg.TicksPerWheel,
	})
	if agentErr != nil { return agentErr }

	go func() {
		counters.RegisterMetrics()
		connpool.RegisterMetrics()

		http.Handle("/metrics", promhttp.Handler())

		srvErr := http.ListenAndServe(metricsAddr, nil)
		if srvErr != nil { Log.Warn("metrics server stopped:", srvErr.Error()) }
	}()

	startErr := agent.OnStart()
	if startErr != nil { return startErr }

	signal.Notify(terminated, syscall.SIGINT, syscall.SIGTERM)

	Log.Info("consensus module agent running, member:", cfg.MemberID)

	for {
		select {
			case <- terminated:
				Log.Info("agent terminated")
				return nil
			default:
				if agent.DoWork() == 0 { time.Sleep(time.Millisecond) }
		}
	}
}
