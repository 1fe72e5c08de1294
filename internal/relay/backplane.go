package relay

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"codesync/internal/models"
)

const backplaneChannel = "codesync:rooms"

// envelope is what crosses the wire between server instances. Origin lets an
// instance drop its own publications when they come back around.
type envelope struct {
	Origin  string         `json:"origin"`
	RoomID  string         `json:"roomId"`
	Exclude string         `json:"exclude,omitempty"`
	Frame   models.WSFrame `json:"frame"`
}

// Backplane widens event fan-out across server instances over redis pub/sub.
// Identity and membership stay instance-local; only frames travel.
type Backplane struct {
	log        *zap.SugaredLogger
	rdb        *redis.Client
	instanceID string
}

func NewBackplane(log *zap.SugaredLogger, redisAddr string) *Backplane {
	return &Backplane{
		log:        log,
		rdb:        redis.NewClient(&redis.Options{Addr: redisAddr}),
		instanceID: uuid.New().String(),
	}
}

// Publish ships a room frame to the other instances. Failures are logged
// and dropped; the backplane is best-effort like any other delivery here.
func (b *Backplane) Publish(roomID, excludeID string, frame models.WSFrame) {
	env := envelope{Origin: b.instanceID, RoomID: roomID, Exclude: excludeID, Frame: frame}
	payload, err := json.Marshal(env)
	if err != nil {
		b.log.Warnw("backplane marshal failed", "error", err)
		return
	}
	if err := b.rdb.Publish(context.Background(), backplaneChannel, payload).Err(); err != nil {
		b.log.Warnw("backplane publish failed", "error", err)
	}
}

// Subscribe replays frames from other instances into the local fan-out until
// ctx is cancelled. Run it on its own goroutine.
func (b *Backplane) Subscribe(ctx context.Context, deliver func(roomID, excludeID string, frame models.WSFrame)) {
	sub := b.rdb.Subscribe(ctx, backplaneChannel)
	defer sub.Close()

	b.log.Infow("backplane subscribed", "channel", backplaneChannel, "instance", b.instanceID)
	for msg := range sub.Channel() {
		b.apply([]byte(msg.Payload), deliver)
	}
}

func (b *Backplane) apply(payload []byte, deliver func(roomID, excludeID string, frame models.WSFrame)) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		b.log.Warnw("backplane payload unreadable", "error", err)
		return
	}
	if env.Origin == b.instanceID {
		return
	}
	deliver(env.RoomID, env.Exclude, env.Frame)
}

func (b *Backplane) Close() error { return b.rdb.Close() }
