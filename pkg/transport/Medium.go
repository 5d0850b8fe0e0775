package transport

import "fmt"


//=========================================== Transport Medium


/*
	Transport Medium
		the in process registry of streams, the analog of a media driver

		publications and subscriptions attach to the stream for their channel +
		stream id pair, creating it on first use
*/

func NewTransportMedium() *TransportMedium {
	return &TransportMedium{
		Streams: make(map[string]*Stream),
	}
}

func (medium *TransportMedium) StreamFor(channel string, streamId int32) *Stream {
	medium.Mutex.Lock()
	defer medium.Mutex.Unlock()

	key := streamKey(channel, streamId)

	stream, exists := medium.Streams[key]
	if ! exists {
		stream = &Stream{
			Channel: channel,
			StreamID: streamId,
		}

		medium.Streams[key] = stream
	}

	return stream
}

func (medium *TransportMedium) AddPublication(channel string, streamId int32) *Publication {
	stream := medium.StreamFor(channel, streamId)

	return &Publication{
		Stream: stream,
		Window: DefaultPublicationWindow,
	}
}

func (medium *TransportMedium) AddSubscription(channel string, streamId int32) *Subscription {
	stream := medium.StreamFor(channel, streamId)

	image := &Image{
		Stream: stream,
		Position: stream.StartPosition,
	}

	stream.Mutex.Lock()
	image.Position = stream.Position
	stream.images = append(stream.images, image)
	stream.Mutex.Unlock()

	return &Subscription{
		Channel: channel,
		StreamID: streamId,
		Image: image,
	}
}

/*
	Add Subscription At:
		attach an image at an explicit position, used when joining a live log
		stream at a known join position instead of the current tail
*/

func (medium *TransportMedium) AddSubscriptionAt(channel string, streamId int32, position int64) *Subscription {
	stream := medium.StreamFor(channel, streamId)

	image := &Image{
		Stream: stream,
		Position: position,
	}

	stream.Mutex.Lock()
	stream.images = append(stream.images, image)
	stream.Mutex.Unlock()

	return &Subscription{
		Channel: channel,
		StreamID: streamId,
		Image: image,
	}
}

func streamKey(channel string, streamId int32) string {
	return fmt.Sprintf("%s:%d", channel, streamId)
}
