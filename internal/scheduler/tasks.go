package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskRunCycle = "outreach.cycle"

type RunCyclePayload struct {
	TriggeredAt string `json:"triggeredAt"`
	Manual      bool   `json:"manual,omitempty"`
}

func NewRunCycleTask(payload RunCyclePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRunCycle, data), nil
}

func ParseRunCyclePayload(task *asynq.Task) (RunCyclePayload, error) {
	var payload RunCyclePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return RunCyclePayload{}, err
	}
	return payload, nil
}
