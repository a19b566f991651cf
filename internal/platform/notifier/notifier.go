package notifier

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tunehaus/backstage/pkg/logctx"
)

// Notifier dispatches renewal reminders. Delivery and templating live in the
// platform's notification service; from the core's perspective this is
// fire-and-forget.
type Notifier interface {
	SendRenewalReminder(ctx context.Context, userID, communityID string, expiresAt time.Time)
}

// LogNotifier emits reminders as structured log events, the default sink
// until a delivery channel is attached.
type LogNotifier struct {
	log *zap.SugaredLogger
}

func New(log *zap.SugaredLogger) *LogNotifier { return &LogNotifier{log: log} }

func (n *LogNotifier) SendRenewalReminder(ctx context.Context, userID, communityID string, expiresAt time.Time) {
	logctx.FromCtx(ctx, n.log).Infow("renewal_reminder",
		"user_id", userID,
		"community_id", communityID,
		"expires_at", expiresAt,
	)
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Provide(func(n *LogNotifier) Notifier { return n }),
)
