package workers

import (
	"context"

	"github.com/hetulpatel/pricearb/internal/cache"
	"github.com/hetulpatel/pricearb/internal/logging"
	"github.com/hetulpatel/pricearb/internal/models"
	"github.com/hetulpatel/pricearb/internal/queue"
	"github.com/hetulpatel/pricearb/internal/service"
)

// Notify receives opportunities that are new or wider than any seen before.
type Notify func(ctx context.Context, opp models.Opportunity)

// DetectHandler runs detection on each announced snapshot, saves the result
// and reports opportunities the cache has not seen at this spread. notify may
// be nil, in which case they are only logged.
func DetectHandler(tracker *service.Tracker, best cache.OpportunityCache, notify Notify) Handler {
	return func(ctx context.Context, ev queue.SnapshotEvent) error {
		res, err := tracker.Detect(ctx, service.DetectRequest{SnapshotID: ev.SnapshotID, Save: true})
		if err != nil {
			return err
		}
		fresh := 0
		for _, o := range res.Opportunities {
			isNew, err := cache.Track(ctx, best, o)
			if err != nil {
				logging.Warnf("[engine] %v", err)
				continue
			}
			if !isNew {
				continue
			}
			fresh++
			logging.Infof("[engine] %s: buy %s @ %s, sell %s @ %s, profit %s (%s%%)",
				o.ItemName, o.BuyFrom, o.BuyPrice.StringFixed(2), o.SellTo, o.SellPrice.StringFixed(2),
				o.ProfitAmount.StringFixed(2), o.ProfitPercent.StringFixed(2))
			if notify != nil {
				notify(ctx, o)
			}
		}
		logging.Infof("[engine] snapshot %s: %d opportunities, %d new or improved",
			ev.SnapshotID, len(res.Opportunities), fresh)
		return nil
	}
}
