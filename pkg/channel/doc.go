// Package channel delivers messages to recipients over an external messaging API.
//
// A [Sender] returns nil when the message was accepted, an error wrapping
// [ErrPermanent] when the recipient can never be reached (blocked the bot,
// deactivated, unknown chat), and any other error for failures worth retrying.
//
// [Telegram] is the production sender built on telebot. [SenderFunc] adapts
// plain functions, mostly for tests.
package channel
