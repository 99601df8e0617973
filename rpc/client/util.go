package client

import (
	"github.com/ValentinKolb/dBot/rpc/codec"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("client")
)

const (
	// PushFileTag is the command name of a file push
	PushFileTag = "pushFile"
	// PullFileTag is the command name of a file pull
	PullFileTag = "pullFile"

	replyTrue = "true"
)

// isTrue reports whether a text reply signals success
func isTrue(reply string) bool {
	return reply == replyTrue
}

// isAbsent reports whether a text reply is the "does not exist" sentinel
func isAbsent(reply string) bool {
	return codec.IsNull([]byte(reply))
}
