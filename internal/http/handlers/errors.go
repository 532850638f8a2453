package handlers

import (
	"net/http"

	"github.com/yungbote/neurobridge-coursegen/internal/data/repos"
	"github.com/yungbote/neurobridge-coursegen/internal/llm"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/apierr"
	"github.com/yungbote/neurobridge-coursegen/internal/services"
	"github.com/yungbote/neurobridge-coursegen/internal/workflow"
)

var serviceErrorRules = []apierr.Rule{
	{Target: workflow.ErrInvalidInput, Status: http.StatusBadRequest, Code: "invalid_input"},
	{Target: repos.ErrNotFound, Status: http.StatusNotFound, Code: "generation_not_found"},
	{Target: services.ErrRunFinished, Status: http.StatusConflict, Code: "generation_finished"},
	{Target: llm.ErrNotConfigured, Status: http.StatusServiceUnavailable, Code: "llm_not_configured"},
	{Target: services.ErrPersistenceDisabled, Status: http.StatusNotImplemented, Code: "persistence_disabled"},
}

func mapServiceError(err error) *apierr.Error {
	return apierr.Match(err, serviceErrorRules)
}

// mapRunError is mapServiceError for requests addressing one run.
func mapRunError(err error, runID string) *apierr.Error {
	return mapServiceError(err).ForRun(runID)
}
