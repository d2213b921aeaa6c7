package handlers

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skintrack/server/internal/models"
	"github.com/skintrack/server/internal/observability"
	"github.com/skintrack/server/internal/stats"
)

// DashboardStore is the read surface the dashboard fans out over
type DashboardStore interface {
	ListRecentCheckIns(ctx context.Context, ownerID string, limit int) ([]*models.CheckIn, error)
	GetActiveTest(ctx context.Context, ownerID string) (*models.Test, error)
	CountPhotos(ctx context.Context, ownerID string) (int, error)
}

// DashboardHandler serves the derived metrics
type DashboardHandler struct {
	store        DashboardStore
	streakWindow int
	recentLimit  int
	now          func() time.Time
	logger       *observability.Logger
}

// NewDashboardHandler creates a new DashboardHandler. streakWindow is how
// many recent check-ins are read to compute the streak.
func NewDashboardHandler(store DashboardStore, streakWindow, recentLimit int, logger *observability.Logger) *DashboardHandler {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if streakWindow < stats.MaxStreakDays {
		streakWindow = stats.MaxStreakDays
	}
	return &DashboardHandler{
		store:        store,
		streakWindow: streakWindow,
		recentLimit:  recentLimit,
		now:          time.Now,
		logger:       logger.WithField("handler", "dashboard"),
	}
}

// Get returns streak, active test, days remaining and recent check-ins.
// An optional tz query parameter (IANA name) sets the calendar used for
// the streak.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerOf(w, r)
	if !ok {
		return
	}

	now := h.now()
	if tz := r.URL.Query().Get("tz"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Unknown time zone.")
			return
		}
		now = now.In(loc)
	}

	var (
		checkIns   []*models.CheckIn
		activeTest *models.Test
		photoCount int
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		checkIns, err = h.store.ListRecentCheckIns(ctx, ownerID, h.streakWindow)
		return err
	})
	g.Go(func() error {
		var err error
		activeTest, err = h.store.GetActiveTest(ctx, ownerID)
		return err
	})
	g.Go(func() error {
		var err error
		photoCount, err = h.store.CountPhotos(ctx, ownerID)
		return err
	})
	if err := g.Wait(); err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}

	resp := models.DashboardResponse{
		Streak:         stats.Streak(checkIns, now),
		ActiveTest:     activeTest,
		PhotoCount:     photoCount,
		RecentCheckIns: checkIns,
	}
	if len(checkIns) > h.recentLimit {
		resp.RecentCheckIns = checkIns[:h.recentLimit]
	}
	if activeTest != nil {
		days := stats.DaysRemaining(activeTest, now)
		resp.DaysRemaining = &days
	}
	if len(checkIns) > 0 {
		y, m, d := checkIns[0].CreatedAt.In(now.Location()).Date()
		ny, nm, nd := now.Date()
		resp.CheckedInToday = y == ny && m == nm && d == nd
	}

	respondJSON(w, http.StatusOK, resp)
}
