package server

import (
	"log/slog"
	"net/http"

	gogithub "github.com/google/go-github/v68/github"
)

// handleGitHubWebhook accepts GitHub webhook deliveries and turns pull
// request activity into queued review jobs. Payload signatures are checked
// against server.webhook_secret; with no secret configured the check is
// skipped, which Start warns about.
func (s *Server) handleGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := gogithub.ValidatePayload(r, []byte(s.cfg.Server.WebhookSecret))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}
	event, err := gogithub.ParseWebHook(gogithub.WebHookType(r), payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported webhook payload")
		return
	}

	switch ev := event.(type) {
	case *gogithub.PingEvent:
		writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
	case *gogithub.PullRequestEvent:
		s.handlePullRequestEvent(w, ev)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	}
}

// handlePullRequestEvent queues a review for freshly opened or updated pull
// requests. Everything else (closed, labeled, review requests) is ignored.
func (s *Server) handlePullRequestEvent(w http.ResponseWriter, ev *gogithub.PullRequestEvent) {
	action := ev.GetAction()
	if action != "opened" && action != "synchronize" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "action": action})
		return
	}
	project := ev.GetRepo().GetFullName()
	number := ev.GetPullRequest().GetNumber()
	if project == "" || number == 0 {
		writeError(w, http.StatusBadRequest, "pull request payload missing repository or number")
		return
	}

	slog.Info("server: webhook requested review",
		"project", project, "pr", number, "action", action)
	if !s.enqueue(job{
		Kind:     jobKindPR,
		Platform: "github",
		Project:  project,
		Number:   number,
		Trigger:  "webhook",
	}) {
		writeError(w, http.StatusServiceUnavailable, "job queue is full")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "queued",
		"project": project,
		"pr":      number,
	})
}
