package realtime

import (
	"context"
	"log/slog"

	"realtime-service/internal/bus"
	"realtime-service/internal/models"
	"realtime-service/internal/ws"
)

// Presence drives the connection lifecycle: CONNECTING, JOINED, DISCONNECTED.
type Presence struct {
	registry   *ws.Registry
	membership *Membership
	publisher  bus.Publisher
	logger     *slog.Logger
}

func NewPresence(registry *ws.Registry, membership *Membership, publisher bus.Publisher, logger *slog.Logger) *Presence {
	return &Presence{
		registry:   registry,
		membership: membership,
		publisher:  publisher,
		logger:     logger.With("component", "presence"),
	}
}

// Connect registers c, joins its rooms and, on the chat namespace, announces
// it to every room and sends it the peers known online on this instance.
func (p *Presence) Connect(ctx context.Context, c *ws.Client) {
	if c.State() != ws.StateConnecting {
		return
	}
	p.registry.Register(c)

	rooms := p.membership.RoomsFor(ctx, c.Namespace, c.UserID())
	ids := make([]string, 0, len(rooms))
	for _, room := range rooms {
		ids = append(ids, room.ID)
	}
	if !p.registry.Join(c, ids...) {
		p.logger.Debug("connection closed during room lookup", "conn_id", c.ID())
		return
	}

	chat := c.Namespace == models.ChatNamespace
	if chat {
		p.announce(ctx, c, ids, models.TopicPresenceOnline)
		c.Send(models.EventOnlineStatuses, p.onlineStatuses(c.UserID(), rooms))
	}

	if !c.Transition(ws.StateConnecting, ws.StateJoined) {
		// Finalized while announcing; its disconnect saw CONNECTING and sent
		// no offline, so retract here.
		if chat {
			p.announce(ctx, c, ids, models.TopicPresenceOffline)
		}
		p.logger.Debug("connection closed before joining", "conn_id", c.ID())
		return
	}
	p.logger.Debug("connection joined", "conn_id", c.ID(), "user_id", c.UserID(), "namespace", c.Namespace, "rooms", len(ids))
}

func (p *Presence) announce(ctx context.Context, c *ws.Client, rooms []string, topic models.Topic) {
	for _, room := range rooms {
		broadcast(ctx, p.publisher, p.logger, models.ChatNamespace, room, topic,
			models.PresencePayload{UserID: c.UserID(), ChatroomID: room})
	}
}

// onlineStatuses lists, per room, the other participants connected to this
// instance. It is best-effort: peers on other instances arrive later as
// become-online events.
func (p *Presence) onlineStatuses(userID string, rooms []models.Chatroom) []models.PresencePayload {
	seen := make(map[string]struct{})
	var candidates []string
	for _, room := range rooms {
		for _, other := range room.Others(userID) {
			if _, ok := seen[other]; !ok {
				seen[other] = struct{}{}
				candidates = append(candidates, other)
			}
		}
	}
	online := p.registry.UsersOnline(models.ChatNamespace, candidates)

	statuses := make([]models.PresencePayload, 0, len(online))
	for _, room := range rooms {
		for _, other := range room.Others(userID) {
			if _, ok := online[other]; ok {
				statuses = append(statuses, models.PresencePayload{UserID: other, ChatroomID: room.ID})
			}
		}
	}
	return statuses
}

// Disconnect finalizes c. It always completes, even when ctx is already
// canceled, and is safe to call more than once.
func (p *Presence) Disconnect(ctx context.Context, c *ws.Client) {
	ctx = context.WithoutCancel(ctx)

	switch {
	case c.Transition(ws.StateJoined, ws.StateDisconnected):
		if c.Namespace == models.ChatNamespace {
			p.announce(ctx, c, c.Rooms(), models.TopicPresenceOffline)
		}
	case c.Transition(ws.StateConnecting, ws.StateDisconnected):
	default:
		return
	}

	p.registry.Unregister(c)
	c.Close()
	p.logger.Debug("connection disconnected", "conn_id", c.ID(), "user_id", c.UserID(), "namespace", c.Namespace)
}
