package eventbus

import (
	"context"

	"github.com/annel0/commoncore/internal/logging"
)

// StartLoggingListener подписывается на все события и пишет их в лог компонента.
// Функция неблокирующая.
func StartLoggingListener(ctx context.Context, bus EventBus, log *logging.Logger) (Subscription, error) {
	if log == nil {
		log = logging.Default()
	}
	sub, err := bus.Subscribe(ctx, Filter{}, func(ctx context.Context, ev *Envelope) {
		if se, err := DecodeSceneEvent(ev); err == nil && se.Scene != "" {
			log.Debug("[EventBus] %s %s scene=%s saved=%d restored=%d spawned=%d skipped=%d",
				ev.ID, ev.EventType, se.Scene, se.Saved, se.Restored, se.Spawned, se.Skipped)
			return
		}
		log.Debug("[EventBus] %s %s src=%s prio=%d size=%dB", ev.ID, ev.EventType, ev.Source, ev.Priority, len(ev.Payload))
	})
	if err != nil {
		return nil, err
	}
	log.Info("🪵 LoggingListener: подписка на все события активирована")
	return sub, nil
}
