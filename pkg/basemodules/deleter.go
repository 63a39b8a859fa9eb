// Copyright 2024-2026 Aiku AI

package basemodules

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/aiku/smartbot/pkg/dispatcher"
)

const (
	ConfirmDeleteAll = "i_am_sure"
	// DeleteAllConcurrency caps the number of parallel deletes issued by
	// delete_all_messages.
	DeleteAllConcurrency = 16
)

// Deleter returns the module with the del, delme and delete_all_messages commands.
func Deleter() *dispatcher.Module {
	return dispatcher.NewModule("Deleter", "Module for deleting messages", "🗑").
		MustFunction("del", "Delete the message in reply to which the command was sent",
			dispatcher.NeedEvent|dispatcher.NeedDispatcher, deleteReplied).
		MustFunction("delme", "Delete user messages\nUsage: delme *amount*",
			dispatcher.NeedAll, deleteOwn).
		MustFunction("delete_all_messages", "Delete ALL user messages in current chat\nUsage: delete_all_messages",
			dispatcher.NeedAll, deleteAllOwn)
}

// deleteMessages deletes msgs concurrently and returns the first failure.
// A limit of zero or less means no limit.
func deleteMessages(ctx context.Context, limit int, msgs ...dispatcher.Message) error {
	eg, egCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		eg.SetLimit(limit)
	}
	for _, msg := range msgs {
		eg.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("deleting message %s panicked: %v", msg.ID(), r)
				}
			}()
			if err := msg.Delete(egCtx); err != nil {
				return fmt.Errorf("failed to delete message %s: %w", msg.ID(), err)
			}
			return nil
		})
	}
	return eg.Wait()
}

// collectOwn gathers self-authored messages sent before evt.
func collectOwn(ctx context.Context, client dispatcher.Client, evt dispatcher.Event, limit int) ([]dispatcher.Message, error) {
	var msgs []dispatcher.Message
	opts := dispatcher.IterOptions{Limit: limit, FromSelf: true, Before: evt.ID()}
	for msg, err := range client.IterMessages(ctx, evt.ChatID(), opts) {
		if err != nil {
			return nil, fmt.Errorf("failed to iterate messages: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func deleteReplied(ctx context.Context, hc *dispatcher.Context) error {
	evt := hc.Event
	d := hc.Dispatcher.Decoration()
	var reply dispatcher.Message
	if evt.IsReply() {
		var err error
		reply, err = evt.ReplyMessage(ctx)
		if errors.Is(err, dispatcher.ErrReplyUnavailable) {
			hc.Log.Debug().Err(err).Msg("Replied message can't be deleted alone")
			return evt.Edit(ctx, d.Bold("❌ Replied message can't be deleted without its thread"))
		} else if err != nil {
			return fmt.Errorf("failed to get reply message: %w", err)
		}
	}
	if reply == nil || reply.IsService() {
		return evt.Edit(ctx, d.Bold("❌ Command should be used in reply to other message"))
	}
	hc.Log.Debug().Str("reply_id", reply.ID()).Msg("Deleting replied message")
	return deleteMessages(ctx, 0, evt, reply)
}

func deleteOwn(ctx context.Context, hc *dispatcher.Context) error {
	evt := hc.Event
	d := hc.Dispatcher.Decoration()
	amount, err := strconv.Atoi(hc.CommandArgs.Get(0))
	if err != nil || amount <= 0 {
		return evt.Edit(ctx, d.Bold("❌ Wrong usage\nExample: "+d.Code(d.Quote("delme *amount*"))))
	}
	msgs, err := collectOwn(ctx, hc.Client, evt, amount)
	if err != nil {
		return err
	}
	hc.Log.Debug().Int("amount", amount).Int("found", len(msgs)).Msg("Deleting own messages")
	return deleteMessages(ctx, 0, append([]dispatcher.Message{evt}, msgs...)...)
}

func deleteAllOwn(ctx context.Context, hc *dispatcher.Context) error {
	evt := hc.Event
	d := hc.Dispatcher.Decoration()
	if hc.CommandArgs.Get(0) != ConfirmDeleteAll {
		confirmation := d.Code(d.Quote("delete_all_messages " + ConfirmDeleteAll))
		return evt.Edit(ctx, d.Bold(
			"❗ This command will delete ALL your messages in this chat\n"+
				"\n"+
				d.Quote(`Type "`)+confirmation+d.Quote(`" for confirm.`),
		))
	}
	msgs, err := collectOwn(ctx, hc.Client, evt, 0)
	if err != nil {
		return err
	}
	hc.Log.Info().Int("found", len(msgs)).Str("chat_id", evt.ChatID()).Msg("Deleting all own messages")
	return deleteMessages(ctx, DeleteAllConcurrency, append([]dispatcher.Message{evt}, msgs...)...)
}
