package game

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/winenight-backend/internal"
)

// =============================================================================
// BROADCASTING
// =============================================================================

func encode(msgType string, data any) ([]byte, error) {
	return json.Marshal(internal.Message[any]{Type: msgType, Data: data})
}

// sendTo queues one message for a single connection.
func (m *Manager) sendTo(connID, msgType string, data any) {
	payload, err := encode(msgType, data)
	if err != nil {
		log.Error().Err(err).Str("type", msgType).Msg("[sendTo] marshal failed")
		return
	}
	m.deliver(connID, payload)
}

// broadcast queues one message for every recipient of the room. The caller
// holds room.Mu, which keeps per-room ordering intact.
func (m *Manager) broadcast(room *internal.Room, msgType string, data any) {
	payload, err := encode(msgType, data)
	if err != nil {
		log.Error().Err(err).Str("room", room.Code).Str("type", msgType).Msg("[broadcast] marshal failed")
		return
	}
	recipients := room.Recipients()
	for _, connID := range recipients {
		m.deliver(connID, payload)
	}
	log.Debug().Str("room", room.Code).Str("type", msgType).Int("recipients", len(recipients)).Msg("[broadcast] sent")
}

func (m *Manager) deliver(connID string, payload []byte) {
	c, ok := m.registry.Client(connID)
	if !ok {
		return
	}
	c.Send(payload)
}

// sendError reports err to one connection. Unclassified errors are logged
// and surfaced without detail.
func (m *Manager) sendError(connID, msgType string, err error) {
	data, known := internal.PublicError(err)
	if known {
		log.Debug().Err(err).Str("conn", connID).Str("type", msgType).Msg("[sendError] request rejected")
	} else {
		log.Error().Err(err).Str("conn", connID).Str("type", msgType).Msg("[sendError] request failed")
	}
	m.sendTo(connID, internal.EventError, data)
}
