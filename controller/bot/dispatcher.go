package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// limiters of a shard are dropped once this many users are tracked
const maxTrackedUsers = 10_000

// Run routes updates to cfg.Workers shards by user id until updates
// is closed or ctx is done. Updates of one user are handled in order,
// a slow upstream call blocks only its own shard.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	var (
		shards = make([]chan tgbotapi.Update, b.cfg.Workers)
		wg     = sync.WaitGroup{}
	)

	wg.Add(len(shards))
	for i := range shards {
		shards[i] = make(chan tgbotapi.Update, b.cfg.QueueSize)

		go func(id int, in <-chan tgbotapi.Update) {
			defer wg.Done()
			b.worker(ctx, id, in)
		}(i, shards[i])
	}

	log.Info().Int("workers", len(shards)).Msg("dispatching updates")

	defer func() {
		for _, s := range shards {
			close(s)
		}
		wg.Wait()
		log.Info().Msg("all bot workers stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case u, isOpen := <-updates:
			if !isOpen {
				return nil
			}

			shard := shards[shardOf(userOf(u), len(shards))]

			select {
			case shard <- u:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (b *Bot) worker(ctx context.Context, id int, in <-chan tgbotapi.Update) {
	limiters := make(map[int64]*rate.Limiter)

	for u := range in {
		if ctx.Err() != nil {
			continue
		}

		if b.cfg.FloodRate > 0 {
			user := userOf(u)

			lim, ok := limiters[user]
			if !ok {
				if len(limiters) >= maxTrackedUsers {
					limiters = make(map[int64]*rate.Limiter)
				}
				lim = rate.NewLimiter(rate.Limit(b.cfg.FloodRate), b.cfg.FloodBurst)
				limiters[user] = lim
			}

			if !lim.Allow() {
				b.throttled(u)
				continue
			}
		}

		b.Handle(ctx, u)
	}

	log.Debug().Int("worker", id).Msg("bot worker stopped")
}

// throttled drops update, pressed buttons still get an answer
func (b *Bot) throttled(u tgbotapi.Update) {
	b.metrics.ObserveBotUpdate("throttled")
	log.Warn().Int64("user_id", userOf(u)).Int("update_id", u.UpdateID).Msg("flood limit reached, dropping update")

	if u.CallbackQuery == nil {
		return
	}

	if _, err := b.sender.Request(tgbotapi.NewCallback(u.CallbackQuery.ID, slowDownText)); err != nil {
		log.Error().Err(err).Msg("unable to answer callback")
	}
}

func shardOf(user int64, n int) int {
	return int(uint64(user) % uint64(n))
}
