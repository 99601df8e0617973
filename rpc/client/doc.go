// Package client contains the command helpers every driver command is built from.
// A Bot wraps one session channel and turns raw replies into the shapes used by
// the Android, Windows and Web command sets.
//
// Reply shapes:
//
//   - Call: plain text reply, trailing whitespace removed
//   - CallBool: true if the driver answered "true"
//   - CallOptional: absent if the driver answered "null"
//   - Poll / PollWith / PollBool: the command is repeated through lib/wait until
//     the reply is no longer the "not yet" sentinel or the wait time elapsed
//   - PushFile / PullFile: binary transfer, PullFile reports a missing file as absent
//
// Transport errors are returned unchanged and are never retried here.
//
// Usage Example:
//
//	entry := func(ch transport.IChannel) error {
//	    bot := client.NewBot(ch, wait.DefaultSpec())
//
//	    id, err := bot.Call("getAndroidId")
//	    if err != nil {
//	        return err
//	    }
//
//	    // Wait for an image to appear, "-1.0|-1.0" means not found yet
//	    pos, found, err := bot.Poll(ctx, "-1.0|-1.0", "findImage", "button.png", 0, 0, 0, 0, 0.95)
//	    ...
//	}
package client
