package handler

import (
	"net/http"

	"github.com/pushdeck/pushdeck/internal/api/models"
	"github.com/pushdeck/pushdeck/internal/api/response"
	"github.com/pushdeck/pushdeck/internal/dispatch"
	"github.com/pushdeck/pushdeck/internal/feedback"
)

// JobsHandler exposes manual triggers for the background jobs the worker runs
// on a schedule. Sweeps and polls are serialized internally, so a manual
// trigger overlapping a scheduled run just waits its turn.
type JobsHandler struct {
	orchestrator *dispatch.Orchestrator
	poller       *feedback.Poller
}

// NewJobsHandler creates a new JobsHandler.
func NewJobsHandler(orchestrator *dispatch.Orchestrator, poller *feedback.Poller) *JobsHandler {
	return &JobsHandler{orchestrator: orchestrator, poller: poller}
}

// DeliverPending handles POST /v1/jobs/deliveries - sweep pending
// notifications and broadcasts through the provider.
func (h *JobsHandler) DeliverPending(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.orchestrator.ProcessPendingNotifications(r.Context())
	if err != nil {
		response.InternalError(w, r, "notification sweep failed")
		return
	}

	broadcasts, err := h.orchestrator.ProcessPendingBroadcasts(r.Context())
	if err != nil {
		response.InternalError(w, r, "broadcast sweep failed")
		return
	}

	response.JSON(w, r, http.StatusOK, map[string]models.SweepResult{
		"notifications": models.SweepResultFromDomain(notifications),
		"broadcasts":    models.SweepResultFromDomain(broadcasts),
	})
}

// PollFeedback handles POST /v1/jobs/feedback - run one feedback poll against
// the provider and deactivate reported devices.
func (h *JobsHandler) PollFeedback(w http.ResponseWriter, r *http.Request) {
	result, err := h.poller.Run(r.Context())
	if err != nil {
		response.InternalError(w, r, "feedback poll failed")
		return
	}
	response.JSON(w, r, http.StatusOK, models.FeedbackRunFromDomain(result))
}
