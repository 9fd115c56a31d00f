package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/san-kum/cstrsim/internal/reactor"
)

const PredictionPath = "/v1/prediction"

// Brain queries an exported policy. The observation is posted as JSON and
// the response carries the adjustment under "Tc_adjust".
type Brain struct {
	URL     string
	Timeout time.Duration
}

func NewBrain(url string) *Brain {
	return &Brain{
		URL:     strings.TrimRight(url, "/"),
		Timeout: 5 * time.Second,
	}
}

func (b *Brain) Compute(obs reactor.Observation) (float64, error) {
	agent := fiber.Post(b.URL + PredictionPath).JSON(obs)
	if b.Timeout > 0 {
		agent = agent.Timeout(b.Timeout)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return 0, fmt.Errorf("brain request: %w", errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		return 0, fmt.Errorf("brain request: status %d: %s", code, strings.TrimSpace(string(body)))
	}

	var action reactor.Action
	if err := json.Unmarshal(body, &action); err != nil {
		return 0, fmt.Errorf("decode brain response: %w", err)
	}
	return action.CoolantDelta, nil
}
