package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCatalogSync is the task type for one full marketplace sync run.
	TaskCatalogSync = "catalog:sync"
)

// CatalogSyncPayload names the marketplace source a sync task targets.
type CatalogSyncPayload struct {
	Source string `json:"source"`
}

// NewCatalogSyncTask constructs an Asynq task for the given source.
func NewCatalogSyncTask(source string) (*asynq.Task, error) {
	data, err := json.Marshal(CatalogSyncPayload{Source: source})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogSync, data), nil
}
