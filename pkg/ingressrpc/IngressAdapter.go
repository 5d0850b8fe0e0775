package ingressrpc

import "github.com/sirgallo/cluster/pkg/logger"
import "github.com/sirgallo/cluster/pkg/transport"
import "github.com/sirgallo/cluster/pkg/utils"


//=========================================== Ingress Adapter


var Log = clog.NewCustomLog(NAME)

type IngressAdapter struct {
	Subscription *transport.Subscription
	Sink         IngressSink
}

func NewIngressAdapter(subscription *transport.Subscription, sink IngressSink) *IngressAdapter {
	return &IngressAdapter{
		Subscription: subscription,
		Sink: sink,
	}
}

func (adapter *IngressAdapter) Poll(fragmentLimit int) int {
	if adapter.Subscription == nil { return 0 }

	handler := func(bytes []byte, position int64) transport.PollAction {
		msg, decodeErr := utils.DecodeBytesToStruct[IngressMessage](bytes)
		if decodeErr != nil {
			Log.Error("unable to decode ingress message:", decodeErr.Error())
			return transport.PollContinue
		}

		return adapter.dispatch(msg)
	}

	return adapter.Subscription.Poll(handler, fragmentLimit)
}

func (adapter *IngressAdapter) Close() {
	if adapter.Subscription != nil { adapter.Subscription.Close() }
}

func (adapter *IngressAdapter) dispatch(msg *IngressMessage) transport.PollAction {
	switch msg.Kind {
		case KindSessionConnect:
			return adapter.Sink.OnSessionConnect(msg)
		case KindSessionClose:
			return adapter.Sink.OnSessionClose(msg)
		case KindIngressMessage:
			return adapter.Sink.OnIngressMessage(msg)
		case KindSessionKeepAlive:
			return adapter.Sink.OnSessionKeepAlive(msg)
		case KindChallengeResponse:
			return adapter.Sink.OnChallengeResponse(msg)
		case KindAdminRequest:
			return adapter.Sink.OnAdminRequest(msg)
		default:
			Log.Warn("unknown ingress message kind:", string(msg.Kind))
			return transport.PollContinue
	}
}
