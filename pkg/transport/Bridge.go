package transport

import "context"
import "encoding/json"
import "net"

import "google.golang.org/grpc"
import "google.golang.org/grpc/encoding"

import "github.com/sirgallo/cluster/pkg/connpool"
import "github.com/sirgallo/cluster/pkg/logger"
import "github.com/sirgallo/cluster/pkg/utils"


//=========================================== Stream Bridge


const BridgeName = "StreamBridge"
var Log = clog.NewCustomLog(BridgeName)

/*
	gRPC codec for JSON payloads so no protobuf codegen is needed for
	internal member to member calls
*/

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(b []byte, v interface{}) error { return json.Unmarshal(b, v) }
func (jsonCodec) Name() string { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type FrameEnvelope struct {
	Channel  string
	StreamID int32
	Bytes    []byte
}

type PublishAck struct {
	Position int64
}

/*
	Bridge Server
		the remote half of a stream, incoming envelopes are offered onto the
		local medium stream for their channel + stream id, where the agent's
		adapters poll them in order
*/

type BridgeServer struct {
	Medium *TransportMedium
	Port   string

	server       *grpc.Server
	publications map[string]*Publication
}

func NewBridgeServer(medium *TransportMedium, port int) *BridgeServer {
	return &BridgeServer{
		Medium: medium,
		Port: utils.NormalizePort(port),
		publications: make(map[string]*Publication),
	}
}

func (bridge *BridgeServer) Publish(ctx context.Context, envelope *FrameEnvelope) (*PublishAck, error) {
	key := streamKey(envelope.Channel, envelope.StreamID)

	pub, exists := bridge.publications[key]
	if ! exists {
		pub = bridge.Medium.AddPublication(envelope.Channel, envelope.StreamID)
		bridge.publications[key] = pub
	}

	position := pub.Offer(envelope.Bytes)

	return &PublishAck{ Position: position }, nil
}

func (bridge *BridgeServer) Start(listener net.Listener) {
	srv := grpc.NewServer(grpc.ForceServerCodec(jsonCodec{}))
	srv.RegisterService(&bridgeServiceDesc, bridge)

	bridge.server = srv

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil { Log.Error("bridge server stopped:", serveErr.Error()) }
	}()
}

func (bridge *BridgeServer) Stop() {
	if bridge.server != nil { bridge.server.Stop() }
}

/*
	service descriptor and handlers, hand written, no codegen required
*/

type bridgeService interface {
	Publish(ctx context.Context, envelope *FrameEnvelope) (*PublishAck, error)
}

var bridgeServiceDesc = grpc.ServiceDesc{
	ServiceName: "cluster.v1.StreamBridge",
	HandlerType: (*bridgeService)(nil),
	Methods: []grpc.MethodDesc{
		{ MethodName: "Publish", Handler: bridgePublishHandler },
	},
	Streams: []grpc.StreamDesc{},
	Metadata: "cluster/v1/streambridge",
}

func bridgePublishHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(FrameEnvelope)
	if decErr := dec(in); decErr != nil { return nil, decErr }

	if interceptor == nil { return srv.(bridgeService).Publish(ctx, in) }

	info := &grpc.UnaryServerInfo{ Server: srv, FullMethod: "/cluster.v1.StreamBridge/Publish" }
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(bridgeService).Publish(ctx, req.(*FrameEnvelope))
	}

	return interceptor(ctx, in, info, handler)
}

/*
	Bridge Destination
		transport.FrameSink forwarding accepted frames to a remote member's
		bridge server, attached as a publication destination

		delivery uses the teacher's exponential backoff, a member that stays
		unreachable re-syncs through catch up rather than failing the offer
*/

type BridgeDestination struct {
	ConnectionPool *connpool.ConnectionPool
	Host           string
	Port           string
	Channel        string
	StreamID       int32
}

func NewBridgeDestination(pool *connpool.ConnectionPool, host string, port int, channel string, streamId int32) *BridgeDestination {
	return &BridgeDestination{
		ConnectionPool: pool,
		Host: host,
		Port: utils.NormalizePort(port),
		Channel: channel,
		StreamID: streamId,
	}
}

func (destination *BridgeDestination) OnFrame(frame Frame) error {
	conn, connErr := destination.ConnectionPool.GetConnection(destination.Host, destination.Port)
	if connErr != nil { return connErr }

	envelope := &FrameEnvelope{
		Channel: destination.Channel,
		StreamID: destination.StreamID,
		Bytes: frame.Bytes,
	}

	publishRPC := func() (*PublishAck, error) {
		ack := new(PublishAck)

		invokeErr := conn.Invoke(context.Background(), "/cluster.v1.StreamBridge/Publish", envelope, ack, grpc.ForceCodec(jsonCodec{}))
		if invokeErr != nil { return utils.GetZero[*PublishAck](), invokeErr }

		return ack, nil
	}

	maxRetries := 3
	expOpts := utils.ExpBackoffOpts{ MaxRetries: &maxRetries, TimeoutInMilliseconds: 1 }
	expBackoff := utils.NewExponentialBackoffStrat[*PublishAck](expOpts)

	_, rpcErr := expBackoff.PerformBackoff(publishRPC)
	if rpcErr != nil {
		destination.ConnectionPool.CloseAllConnections(destination.Host)
		return rpcErr
	}

	destination.ConnectionPool.PutConnection(destination.Host, conn)

	return nil
}
