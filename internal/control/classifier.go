package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gopkg.in/yaml.v3"
)

// Logistic is a logistic-regression runaway classifier:
// p = 1 / (1 + exp(-(w·x + b))).
type Logistic struct {
	Weights []float64 `yaml:"weights" json:"weights"`
	Bias    float64   `yaml:"bias" json:"bias"`
}

// LoadLogistic reads classifier coefficients from a YAML file.
func LoadLogistic(path string) (*Logistic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var l Logistic
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse classifier %s: %w", path, err)
	}
	if len(l.Weights) == 0 {
		return nil, fmt.Errorf("classifier %s has no weights", path)
	}
	return &l, nil
}

func (l *Logistic) PredictProba(features []float64) (float64, error) {
	if len(features) != len(l.Weights) {
		return 0, fmt.Errorf("classifier expects %d features, got %d", len(l.Weights), len(features))
	}
	z := l.Bias
	for i, w := range l.Weights {
		z += w * features[i]
	}
	return 1 / (1 + math.Exp(-z)), nil
}

// RemoteClassifier posts {"features": [...]} to URL and reads
// {"probability": p}.
type RemoteClassifier struct {
	URL     string
	Timeout time.Duration
}

func NewRemoteClassifier(url string) *RemoteClassifier {
	return &RemoteClassifier{URL: url, Timeout: 5 * time.Second}
}

func (r *RemoteClassifier) PredictProba(features []float64) (float64, error) {
	agent := fiber.Post(r.URL).
		JSON(fiber.Map{"features": features}).
		Timeout(r.Timeout)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return 0, fmt.Errorf("classifier request: %w", errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		return 0, fmt.Errorf("classifier request: status %d: %s", code, strings.TrimSpace(string(body)))
	}

	var resp struct {
		Probability *float64 `json:"probability"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode classifier response: %w", err)
	}
	if resp.Probability == nil {
		return 0, errors.New("classifier response has no probability")
	}
	return *resp.Probability, nil
}
