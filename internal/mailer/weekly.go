package mailer

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/musclelog/server/internal/domain"
	"github.com/musclelog/server/internal/store"
)

// WeeklySchedule is the cron expression for the summary job: Mondays 08:00 UTC.
const WeeklySchedule = "0 8 * * 1"

// WeeklyJob assembles and sends the weekly summary email to every opted-in
// Pro user.
type WeeklyJob struct {
	repo   store.Repository
	sender Sender
}

// NewWeeklyJob creates the weekly summary job.
func NewWeeklyJob(repo store.Repository, sender Sender) *WeeklyJob {
	return &WeeklyJob{repo: repo, sender: sender}
}

// Run executes one pass of the job. A failure for one user is logged and
// skipped; it never aborts the rest of the batch. Implements cron.Job.
func (j *WeeklyJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	profiles, err := j.repo.ListWeeklyEmailProfiles(ctx)
	if err != nil {
		slog.Error("weekly email: failed to list recipients", "error", err)
		return
	}
	if len(profiles) == 0 {
		slog.Info("weekly email: no recipients")
		return
	}

	sent, failed := 0, 0
	since := domain.DateOnly(time.Now().UTC().AddDate(0, 0, -7))
	for _, p := range profiles {
		if err := j.sendOne(ctx, p, since); err != nil {
			slog.Error("weekly email failed", "user_id", p.UserID, "error", err)
			failed++
			continue
		}
		sent++
	}
	slog.Info("weekly email batch complete", "sent", sent, "failed", failed)
}

func (j *WeeklyJob) sendOne(ctx context.Context, p *domain.Profile, since string) error {
	if p.Email == "" {
		return fmt.Errorf("profile has no email address")
	}

	workouts, err := j.repo.CountSessionsSince(ctx, p.UserID, since)
	if err != nil {
		return fmt.Errorf("failed to count sessions: %w", err)
	}
	totalCalories, entries, err := j.repo.FoodTotalsSince(ctx, p.UserID, since)
	if err != nil {
		return fmt.Errorf("failed to total food logs: %w", err)
	}

	avgCalories := 0.0
	if entries > 0 {
		avgCalories = totalCalories / 7
	}

	name := p.DisplayName
	if name == "" {
		name = "there"
	}
	body := renderWeeklyHTML(name, workouts, entries, avgCalories)

	if err := j.sender.Send(ctx, p.Email, "Your week with MuscleLog", body); err != nil {
		return err
	}
	return nil
}

func renderWeeklyHTML(name string, workouts, foodEntries int, avgCalories float64) string {
	greeting := fmt.Sprintf("Hi %s,", html.EscapeString(name))

	summary := fmt.Sprintf(
		"<p>This week you logged <strong>%d workout session%s</strong> and <strong>%d meal%s</strong>.</p>",
		workouts, plural(workouts), foodEntries, plural(foodEntries),
	)
	if avgCalories > 0 {
		summary += fmt.Sprintf("<p>Your daily average was about <strong>%.0f kcal</strong>.</p>", avgCalories)
	}

	nudge := "<p>Keep it up. Consistency beats intensity.</p>"
	if workouts == 0 {
		nudge = "<p>No workouts logged this week. A short session today is a great restart.</p>"
	}

	return fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 520px;">
<p>%s</p>
%s
%s
<p style="color: #888; font-size: 12px;">You receive this because weekly summaries are enabled in your MuscleLog settings.</p>
</div>`, greeting, summary, nudge)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
