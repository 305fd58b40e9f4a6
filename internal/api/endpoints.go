package api

import (
	"context"
	"net/http"
)

const (
	PathBalance    = "/user/balance"
	PathProfile    = "/user/profile"
	PathFarmStatus = "/farm/status"
	PathFarmStart  = "/farm/start"
)

var successMessages = map[string]string{
	PathBalance:    "Fetched balance successfully",
	PathProfile:    "Fetched profile successfully",
	PathFarmStatus: "Fetched farming status successfully",
	PathFarmStart:  "Successfully started farming action.",
}

func successMessage(path string) string {
	if msg, ok := successMessages[path]; ok {
		return msg
	}
	return "Request succeeded"
}

func (e *Executor) Balance(ctx context.Context) Outcome {
	return e.Execute(ctx, http.MethodGet, PathBalance)
}

func (e *Executor) Profile(ctx context.Context) Outcome {
	return e.Execute(ctx, http.MethodGet, PathProfile)
}

func (e *Executor) FarmStatus(ctx context.Context) Outcome {
	return e.Execute(ctx, http.MethodGet, PathFarmStatus)
}

func (e *Executor) StartFarming(ctx context.Context) Outcome {
	return e.Execute(ctx, http.MethodPost, PathFarmStart)
}
