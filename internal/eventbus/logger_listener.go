package eventbus

import (
	"context"

	"github.com/annel0/mmo-region/internal/logging"
)

// StartLoggingListener пишет все события шины в лог компонента eventbus.
// Важные события (PriorityHigh и выше) идут в WARN. Не блокирует.
func StartLoggingListener(ctx context.Context, bus EventBus) (Subscription, error) {
	log := logging.GetComponentLogger("eventbus")
	sub, err := bus.Subscribe(ctx, Filter{}, func(ctx context.Context, ev *Envelope) {
		if ev.Priority >= PriorityHigh {
			log.Warn("📣 %s %s", ev.EventType, ev.Payload)
			return
		}
		log.Debug("📨 %s %s src=%s %s", ev.EventType, ev.ID, ev.Source, ev.Payload)
	})
	if err != nil {
		return nil, err
	}
	log.Info("🪵 Логирование событий шины включено")
	return sub, nil
}
