package transport


//=========================================== Subscription / Image


/*
	Controlled Poll
		consume frames in stream order up to the fragment limit

		the handler steers consumption:
			PollContinue --> the frame is consumed, polling continues
			PollBreak    --> the frame is consumed, polling stops
			PollAbort    --> the frame is NOT consumed, polling stops, the same
			                 frame is redelivered on the next poll
*/

func (image *Image) ControlledPoll(handler FragmentHandler, fragmentLimit int) int {
	if image.Closed { return 0 }

	stream := image.Stream
	polled := 0

	for polled < fragmentLimit {
		stream.Mutex.Lock()
		frame, exists := stream.frameAfter(image.Position)
		stream.Mutex.Unlock()

		if ! exists { break }

		action := handler(frame.Bytes, frame.Position)
		if action == PollAbort { break }

		image.Position = frame.Position
		polled++

		if action == PollBreak { break }
	}

	return polled
}

/*
	Bounded Controlled Poll
		same as ControlledPoll but never consumes past maxPosition, used by the
		log adapter to hold followers at min(commit position, append position)
*/

func (image *Image) BoundedControlledPoll(handler FragmentHandler, maxPosition int64, fragmentLimit int) int {
	if image.Closed { return 0 }

	stream := image.Stream
	polled := 0

	for polled < fragmentLimit {
		stream.Mutex.Lock()
		frame, exists := stream.frameAfter(image.Position)
		stream.Mutex.Unlock()

		if ! exists { break }
		if frame.Position > maxPosition { break }

		action := handler(frame.Bytes, frame.Position)
		if action == PollAbort { break }

		image.Position = frame.Position
		polled++

		if action == PollBreak { break }
	}

	return polled
}

func (image *Image) IsEndOfStream() bool {
	stream := image.Stream

	stream.Mutex.Lock()
	defer stream.Mutex.Unlock()

	return stream.Closed && image.Position >= stream.Position
}

func (image *Image) IsClosed() bool {
	if image.Closed { return true }

	stream := image.Stream

	stream.Mutex.Lock()
	defer stream.Mutex.Unlock()

	return stream.Closed
}

func (image *Image) Close() {
	image.Closed = true
}

func (sub *Subscription) Poll(handler FragmentHandler, fragmentLimit int) int {
	return sub.Image.ControlledPoll(handler, fragmentLimit)
}

func (sub *Subscription) Close() {
	sub.Image.Close()
}

/*
	Truncate To
		discard frames beyond the position, used when a new leadership term
		begins below the stream tail left by a deposed leader

		image positions beyond the truncation point are clamped back, bounded
		polling already prevented consumption past the commit position
*/

func (stream *Stream) TruncateTo(position int64) {
	stream.Mutex.Lock()
	defer stream.Mutex.Unlock()

	var kept []Frame
	for _, frame := range stream.Frames {
		if frame.Position <= position { kept = append(kept, frame) }
	}

	stream.Frames = kept
	if stream.Position > position { stream.Position = position }

	for _, image := range stream.images {
		if image.Position > position { image.Position = position }
	}
}

/*
	Seek To
		advance an empty or lagging stream base to the position a recovered
		member continues from, frames already buffered are never skipped
*/

func (stream *Stream) SeekTo(position int64) {
	stream.Mutex.Lock()
	defer stream.Mutex.Unlock()

	if len(stream.Frames) == 0 && stream.Position < position {
		stream.StartPosition = position
		stream.Position = position

		for _, image := range stream.images {
			if image.Position < position { image.Position = position }
		}
	}
}

func (stream *Stream) frameAfter(position int64) (Frame, bool) {
	for _, frame := range stream.Frames {
		if frame.Position > position { return frame, true }
	}

	return Frame{}, false
}
