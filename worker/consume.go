package main

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

type messageCommitter interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// process archives one message and commits it once it is either indexed or parked in the
// DLQ. It reports whether the offset was committed.
func process(ctx context.Context, log *slog.Logger, arch *archiver, dlq *deadLetter, commits messageCommitter, msg kafka.Message) bool {
	if err := arch.handle(ctx, msg); err != nil {
		log.Warn("archive alert failed, sending to DLQ",
			slog.Any("err", err),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
		)
		if !dlq.send(ctx, msg, err) {
			// kafka-go commits offsets per partition, so a later commit skips this message.
			log.Error("DLQ write failed, message may be lost if later messages commit",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)
			return false
		}
	}

	if err := commits.CommitMessages(ctx, msg); err != nil {
		log.Error("commit message", slog.Any("err", err))
		return false
	}
	return true
}
