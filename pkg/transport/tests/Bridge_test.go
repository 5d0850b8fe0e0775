package transporttests

import "net"
import "strings"
import "testing"
import "time"

import "github.com/sirgallo/cluster/pkg/connpool"
import "github.com/sirgallo/cluster/pkg/transport"


/*
	loopback bridge: frames offered on one medium forward over grpc into the
	remote medium's stream for the same channel + stream id
*/

func TestBridgeForwardsFramesAcrossMediums(t *testing.T) {
	remoteMedium := transport.NewTransportMedium()

	listener, listenErr := net.Listen("tcp", "127.0.0.1:0")
	if listenErr != nil { t.Fatalf("unable to listen: %s", listenErr.Error()) }

	addr := listener.Addr().String()
	port := addr[strings.LastIndex(addr, ":"):]

	server := transport.NewBridgeServer(remoteMedium, 0)
	server.Start(listener)
	t.Cleanup(func() { server.Stop() })

	pool := connpool.NewConnectionPool(connpool.ConnectionPoolOpts{ MaxConn: 4 })

	localMedium := transport.NewTransportMedium()
	pub := localMedium.AddPublication("member-status:1", 108)

	destination := &transport.BridgeDestination{
		ConnectionPool: pool,
		Host: "127.0.0.1",
		Port: port,
		Channel: "member-status:1",
		StreamID: 108,
	}

	pub.AddDestination(destination)

	remoteSub := remoteMedium.AddSubscription("member-status:1", 108)

	result := pub.Offer([]byte("hello-bridge"))

	t.Logf("actual offer result: %d, expected: > 0\n", result)
	if result <= 0 {
		t.Fatalf("offer not accepted: actual(%d)\n", result)
	}

	var received []string
	deadline := time.Now().Add(5 * time.Second)

	for len(received) == 0 && time.Now().Before(deadline) {
		remoteSub.Poll(func(bytes []byte, position int64) transport.PollAction {
			received = append(received, string(bytes))
			return transport.PollContinue
		}, 10)

		time.Sleep(10 * time.Millisecond)
	}

	expectedTotal := 1
	t.Logf("actual received: %d, expected received: %d\n", len(received), expectedTotal)
	if len(received) != expectedTotal || received[0] != "hello-bridge" {
		t.Errorf("frame not forwarded over bridge: actual(%v)\n", received)
	}
}
