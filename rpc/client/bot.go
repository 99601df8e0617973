package client

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dBot/lib/wait"
	"github.com/ValentinKolb/dBot/rpc/codec"
	"github.com/ValentinKolb/dBot/rpc/transport"
	"os"
)

// Bot issues commands on one driver session. The reply shapes of all driver
// commands reduce to the helpers below: plain text, boolean, optional text,
// polled text and binary file transfer.
type Bot struct {
	ch   transport.IChannel
	spec wait.Spec
}

// NewBot creates a bot for the channel. spec is used by Poll when the caller does not pass its own.
func NewBot(ch transport.IChannel, spec wait.Spec) *Bot {
	return &Bot{
		ch:   ch,
		spec: spec,
	}
}

// Channel returns the underlying channel
func (b *Bot) Channel() transport.IChannel {
	return b.ch
}

// Spec returns the default wait spec of the bot
func (b *Bot) Spec() wait.Spec {
	return b.spec
}

// --------------------------------------------------------------------------
// Text commands
// --------------------------------------------------------------------------

// Call sends a command and returns the text reply
func (b *Bot) Call(args ...any) (string, error) {
	return b.ch.RequestString(args...)
}

// CallBool sends a command and reports whether the driver answered "true"
func (b *Bot) CallBool(args ...any) (bool, error) {
	reply, err := b.ch.RequestString(args...)
	if err != nil {
		return false, err
	}
	return isTrue(reply), nil
}

// CallOptional sends a command whose reply is "null" when the result does not exist
func (b *Bot) CallOptional(args ...any) (string, bool, error) {
	reply, err := b.ch.RequestString(args...)
	if err != nil {
		return "", false, err
	}
	if isAbsent(reply) {
		return "", false, nil
	}
	return reply, true, nil
}

// Poll repeats a command with the default wait spec of the bot until the reply
// differs from sentinel. It returns false if the wait time elapsed.
func (b *Bot) Poll(ctx context.Context, sentinel string, args ...any) (string, bool, error) {
	return b.PollWith(ctx, b.spec, wait.Equal(sentinel), args...)
}

// PollWith repeats a command until pending rejects the reply or spec elapsed
func (b *Bot) PollWith(ctx context.Context, spec wait.Spec, pending wait.Predicate[string], args ...any) (string, bool, error) {
	return wait.Until(ctx, spec, pending, func() (string, error) {
		return b.ch.RequestString(args...)
	})
}

// PollBool repeats a boolean command until the driver answers "true"
func (b *Bot) PollBool(ctx context.Context, spec wait.Spec, args ...any) (bool, error) {
	_, ok, err := wait.Until(ctx, spec, func(reply string) bool { return !isTrue(reply) }, func() (string, error) {
		return b.ch.RequestString(args...)
	})
	return ok, err
}

// --------------------------------------------------------------------------
// File transfer
// --------------------------------------------------------------------------

// PushFile transfers data to remotePath on the device
func (b *Bot) PushFile(remotePath string, data []byte) (bool, error) {
	reply, err := b.ch.Push(PushFileTag, remotePath, data)
	if err != nil {
		return false, err
	}
	return isTrue(string(reply)), nil
}

// PushLocalFile transfers a local file to remotePath on the device
func (b *Bot) PushLocalFile(localPath, remotePath string) (bool, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", localPath, err)
	}
	Logger.Debugf("pushing %s (%d bytes) to %s", localPath, len(data), remotePath)
	return b.PushFile(remotePath, data)
}

// PullFile returns the content of remotePath on the device, false if the file does not exist
func (b *Bot) PullFile(remotePath string) ([]byte, bool, error) {
	data, err := b.ch.Pull(PullFileTag, remotePath)
	if err != nil {
		return nil, false, err
	}
	if codec.IsNull(data) {
		return nil, false, nil
	}
	return data, true, nil
}

// PullLocalFile stores the content of remotePath in localPath. It returns false and
// leaves localPath untouched if the file does not exist on the device.
func (b *Bot) PullLocalFile(remotePath, localPath string) (bool, error) {
	data, ok, err := b.PullFile(remotePath)
	if err != nil || !ok {
		return false, err
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", localPath, err)
	}
	return true, nil
}

// EntryPoint adapts a function working on a Bot to a session entry point
func EntryPoint(spec wait.Spec, fn func(bot *Bot) error) transport.EntryPoint {
	return func(ch transport.IChannel) error {
		return fn(NewBot(ch, spec))
	}
}
