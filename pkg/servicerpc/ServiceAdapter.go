package servicerpc

import "github.com/sirgallo/cluster/pkg/logger"
import "github.com/sirgallo/cluster/pkg/transport"
import "github.com/sirgallo/cluster/pkg/utils"


//=========================================== Service Control Adapter


var Log = clog.NewCustomLog(NAME)

type ServiceAdapter struct {
	Subscription *transport.Subscription
	Sink         ServiceControlSink
}

func NewServiceAdapter(subscription *transport.Subscription, sink ServiceControlSink) *ServiceAdapter {
	return &ServiceAdapter{
		Subscription: subscription,
		Sink: sink,
	}
}

func (adapter *ServiceAdapter) Poll(fragmentLimit int) int {
	handler := func(bytes []byte, position int64) transport.PollAction {
		msg, decodeErr := utils.DecodeBytesToStruct[ServiceControlMessage](bytes)
		if decodeErr != nil {
			Log.Error("unable to decode service control message:", decodeErr.Error())
			return transport.PollContinue
		}

		adapter.dispatch(msg)

		return transport.PollContinue
	}

	return adapter.Subscription.Poll(handler, fragmentLimit)
}

func (adapter *ServiceAdapter) dispatch(msg *ServiceControlMessage) {
	switch msg.Kind {
		case KindServiceAck:
			adapter.Sink.OnServiceAck(msg)
		case KindServiceMessage:
			adapter.Sink.OnServiceMessage(msg)
		case KindScheduleTimer:
			adapter.Sink.OnScheduleTimer(msg)
		case KindCancelTimer:
			adapter.Sink.OnCancelTimer(msg)
		case KindCloseSession:
			adapter.Sink.OnServiceCloseSession(msg)
		case KindClusterMembersQuery:
			adapter.Sink.OnClusterMembersQuery(msg)
		default:
			Log.Warn("unknown service control message kind:", string(msg.Kind))
	}
}
