// ABOUTME: Sealed outbound payload variants accepted by Socket.SendMessage.
// ABOUTME: Text, media with caption, and push-to-talk audio.

package wa

// Payload is a sealed union of the outbound message shapes.
type Payload interface {
	isPayload()
}

// TextPayload is a plain text message.
type TextPayload struct {
	Text string
}

func (TextPayload) isPayload() {}

// ImagePayload is an image with an optional caption.
type ImagePayload struct {
	Data    []byte
	Caption string
}

func (ImagePayload) isPayload() {}

// AudioPayload is an audio message. PTT renders as a voice note.
type AudioPayload struct {
	Data     []byte
	MIMEType string
	PTT      bool
}

func (AudioPayload) isPayload() {}
