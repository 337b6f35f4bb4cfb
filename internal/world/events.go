package world

import (
	"context"
	"encoding/json"

	"github.com/annel0/mmo-region/internal/eventbus"
)

// eventSource имя источника событий менеджера регионов
const eventSource = "region-manager"

// Типы событий жизненного цикла регионов
const (
	EventRegionCreated          = "RegionCreated"
	EventRegionDestroyed        = "RegionDestroyed"
	EventRegionGenerationFailed = "RegionGenerationFailed"
	EventPlayerTransferFailed   = "PlayerTransferFailed"
)

// RegionEvent полезная нагрузка событий жизненного цикла
type RegionEvent struct {
	RegionID  uint64 `json:"region_id"`
	Prototype string `json:"prototype"`
	Seed      int64  `json:"seed"`
	Attempts  int    `json:"attempts,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Player    string `json:"player,omitempty"`
}

// publish отправляет событие в шину, если она подключена. Ошибки только логируются.
func (m *RegionManager) publish(ctx context.Context, eventType string, ev RegionEvent) {
	if m.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		m.log.Warn("⚠️ Событие %s не сериализовано: %v", eventType, err)
		return
	}
	env := eventbus.NewEnvelope(eventSource, eventType, payload)
	if eventType == EventRegionGenerationFailed || eventType == EventPlayerTransferFailed {
		env.Priority = eventbus.PriorityHigh
	}
	if err := m.bus.Publish(ctx, env); err != nil {
		m.log.Warn("⚠️ Событие %s не опубликовано: %v", eventType, err)
	}
}
