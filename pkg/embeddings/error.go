package embeddings

import "errors"

// ErrEmbed is returned when a provider fails to produce an embedding. The
// provider's own error rides along in the message.
var ErrEmbed = errors.New("embedding failed")
