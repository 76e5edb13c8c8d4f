package io

import (
	"github.com/ezrec/um/translate"
)

var (
	// Channel errors
	ErrChannelClosed = translate.Error("channel closed")
)
