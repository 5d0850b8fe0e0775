package transport


//=========================================== Publication


/*
	Offer
		append a frame to the stream

		returns the resulting stream position (> 0) on success, BackPressured
		when the slowest consumer is further behind than the publication window
		allows, or NotConnected when the publication or stream has been closed

		destinations receive every accepted frame in offer order, a failing
		destination does not fail the offer, the frame is already durable in
		the stream and the destination re-syncs through catch up
*/

func (pub *Publication) Offer(bytes []byte) int64 {
	if pub.closed { return NotConnected }

	stream := pub.Stream

	stream.Mutex.Lock()

	if stream.Closed {
		stream.Mutex.Unlock()
		return NotConnected
	}

	if stream.Position - stream.slowestImagePosition() >= pub.Window {
		stream.Mutex.Unlock()
		return BackPressured
	}

	framed := make([]byte, len(bytes))
	copy(framed, bytes)

	stream.Position = stream.Position + int64(len(bytes)) + FrameHeaderLength
	frame := Frame{ Position: stream.Position, Bytes: framed }
	stream.Frames = append(stream.Frames, frame)

	destinations := pub.destinations
	newPosition := stream.Position

	stream.Mutex.Unlock()

	for _, destination := range destinations {
		destination.OnFrame(frame)
	}

	return newPosition
}

func (pub *Publication) Position() int64 {
	pub.Stream.Mutex.Lock()
	defer pub.Stream.Mutex.Unlock()

	return pub.Stream.Position
}

func (pub *Publication) IsConnected() bool {
	if pub.closed { return false }

	pub.Stream.Mutex.Lock()
	defer pub.Stream.Mutex.Unlock()

	return ! pub.Stream.Closed
}

func (pub *Publication) Close() {
	pub.closed = true
}

/*
	Close Stream
		close the underlying stream as well as the publication, remaining
		images observe end of stream once they have drained buffered frames
*/

func (pub *Publication) CloseStream() {
	pub.Stream.Mutex.Lock()
	pub.Stream.Closed = true
	pub.Stream.Mutex.Unlock()

	pub.closed = true
}

/*
	destinations are dynamic, passive followers are added to the log
	publication as they join and removed when promoted or evicted
*/

func (pub *Publication) AddDestination(sink FrameSink) {
	pub.Stream.Mutex.Lock()
	defer pub.Stream.Mutex.Unlock()

	pub.destinations = append(pub.destinations, sink)
}

func (pub *Publication) RemoveDestination(sink FrameSink) {
	pub.Stream.Mutex.Lock()
	defer pub.Stream.Mutex.Unlock()

	var remaining []FrameSink
	for _, destination := range pub.destinations {
		if destination != sink { remaining = append(remaining, destination) }
	}

	pub.destinations = remaining
}

func (stream *Stream) slowestImagePosition() int64 {
	slowest := stream.Position

	for _, image := range stream.images {
		if ! image.Closed && image.Position < slowest { slowest = image.Position }
	}

	return slowest
}
