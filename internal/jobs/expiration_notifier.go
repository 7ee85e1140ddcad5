// expiration_notifier.go implements the check-expiration job: it looks for
// chemicals expiring inside the notification window and emails one
// consolidated digest to every active, verified admin. The background loop is
// a no-op when notifications.enabled is false or no SMTP host is configured,
// so it is always safe to start; Check can still be run on demand.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MiRedo238/Chemsphere-sub000/internal/config"
	"github.com/MiRedo238/Chemsphere-sub000/internal/db/models"
	"github.com/MiRedo238/Chemsphere-sub000/internal/telemetry"
)

// DefaultExpirationWindowDays is used when notifications.expiration_window_days is unset.
const DefaultExpirationWindowDays = 90

// ExpiringChemicals finds chemicals by expiration date.
// *repositories.ChemicalRepository implements it.
type ExpiringChemicals interface {
	ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.Chemical, error)
}

// AdminDirectory lists the accounts that receive the digest.
// *repositories.UserRepository implements it.
type AdminDirectory interface {
	ListActiveVerifiedAdmins(ctx context.Context) ([]*models.User, error)
}

// Summary reports one run of the job.
type Summary struct {
	Success       bool `json:"success"`
	Processed     int  `json:"processed"`
	Notifications int  `json:"notifications"`
	AdminCount    int  `json:"admin_count"`
}

// ExpirationNotifier periodically emails admins a digest of chemicals that
// are about to expire.
type ExpirationNotifier struct {
	chemicals ExpiringChemicals
	admins    AdminDirectory
	mailer    Mailer
	cfg       *config.NotificationsConfig
	interval  time.Duration
	window    int
	now       func() time.Time
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewExpirationNotifier creates a new ExpirationNotifier. The check interval
// defaults to 24h and the window to DefaultExpirationWindowDays.
func NewExpirationNotifier(chemicals ExpiringChemicals, admins AdminDirectory, mailer Mailer, cfg *config.NotificationsConfig) *ExpirationNotifier {
	hours := cfg.ExpirationCheckIntervalHours
	if hours <= 0 {
		hours = 24
	}
	window := cfg.ExpirationWindowDays
	if window <= 0 {
		window = DefaultExpirationWindowDays
	}
	return &ExpirationNotifier{
		chemicals: chemicals,
		admins:    admins,
		mailer:    mailer,
		cfg:       cfg,
		interval:  time.Duration(hours) * time.Hour,
		window:    window,
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

// Start runs Check immediately and then on the configured interval until ctx
// is cancelled or Stop is called.
func (n *ExpirationNotifier) Start(ctx context.Context) {
	if !n.cfg.Enabled {
		slog.Info("expiration notifier disabled", "reason", "notifications.enabled=false")
		return
	}
	if n.cfg.SMTP.Host == "" {
		slog.Info("expiration notifier disabled", "reason", "notifications.smtp.host not set")
		return
	}

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	slog.Info("expiration notifier started", "interval", n.interval, "window_days", n.window)

	n.runCheck(ctx)

	for {
		select {
		case <-ticker.C:
			n.runCheck(ctx)
		case <-n.stopChan:
			slog.Info("expiration notifier stopped")
			return
		case <-ctx.Done():
			slog.Info("expiration notifier context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit. It is safe to call more than once.
func (n *ExpirationNotifier) Stop() {
	n.stopOnce.Do(func() { close(n.stopChan) })
}

func (n *ExpirationNotifier) runCheck(ctx context.Context) {
	summary, err := n.Check(ctx)
	if err != nil {
		slog.Error("expiration check failed", "error", err)
		return
	}
	slog.Info("expiration check complete",
		"processed", summary.Processed,
		"notifications", summary.Notifications,
		"admins", summary.AdminCount,
	)
}

// Check runs the job once. Delivery failures are logged and counted
// against the summary; only query failures return an error.
func (n *ExpirationNotifier) Check(ctx context.Context) (*Summary, error) {
	today := n.now().UTC().Truncate(24 * time.Hour)
	until := today.AddDate(0, 0, n.window)

	chems, err := n.chemicals.ListExpiringBetween(ctx, today, until)
	if err != nil {
		return nil, fmt.Errorf("query expiring chemicals: %w", err)
	}
	if len(chems) == 0 {
		return &Summary{Success: true}, nil
	}

	admins, err := n.admins.ListActiveVerifiedAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("query admin users: %w", err)
	}

	summary := &Summary{Success: true, Processed: len(chems), AdminCount: len(admins)}
	if len(admins) == 0 {
		slog.Warn("chemicals are expiring but no admin can be notified", "chemicals", len(chems))
		return summary, nil
	}
	if n.mailer == nil {
		slog.Warn("no mailer configured, skipping expiration digest", "chemicals", len(chems))
		return summary, nil
	}

	subject := fmt.Sprintf("ChemSphere: %d chemical(s) expiring within %d days", len(chems), n.window)
	body := composeDigest(chems, today, n.window)
	for _, admin := range admins {
		if admin.Email == "" {
			continue
		}
		if err := n.mailer.Send(ctx, admin.Email, subject, body); err != nil {
			slog.Warn("failed to send expiration digest", "to", admin.Email, "error", err)
			continue
		}
		summary.Notifications++
		telemetry.ExpirationNotificationsSentTotal.Inc()
	}
	return summary, nil
}

// composeDigest renders the plain-text digest, soonest expiry first.
func composeDigest(chems []*models.Chemical, today time.Time, window int) string {
	sorted := make([]*models.Chemical, len(chems))
	copy(sorted, chems)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ExpirationDate.Before(*sorted[j].ExpirationDate)
	})

	lines := []string{
		"Hello,",
		"",
		fmt.Sprintf("The following %d chemical(s) expire within the next %d days:", len(sorted), window),
		"",
	}
	for _, c := range sorted {
		exp := c.ExpirationDate.UTC()
		days := int(exp.Truncate(24*time.Hour).Sub(today).Hours() / 24)
		var where []string
		if c.BatchNumber != "" {
			where = append(where, "batch "+c.BatchNumber)
		}
		if c.Location != "" {
			where = append(where, c.Location)
		}
		name := c.Name
		if len(where) > 0 {
			name += " (" + strings.Join(where, ", ") + ")"
		}
		lines = append(lines, fmt.Sprintf("  - %s: expires %s, %s; %s %s left",
			name, exp.Format("2006-01-02"), daysLeft(days), formatQuantity(c.CurrentQuantity), c.Unit))
	}
	lines = append(lines,
		"",
		"Review these items in ChemSphere and plan replacement or disposal.",
		"",
		"ChemSphere",
	)
	return strings.Join(lines, "\r\n")
}

func daysLeft(days int) string {
	switch days {
	case 0:
		return "today"
	case 1:
		return "in 1 day"
	}
	return fmt.Sprintf("in %d days", days)
}

func formatQuantity(q float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", q), "0"), ".")
}
