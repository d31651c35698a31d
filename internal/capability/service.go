// Package capability issues and validates the signed single-step links that
// let leaders, department heads and IT act without an account.
package capability

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"offboarding-workflow/internal/domain"
	"offboarding-workflow/internal/metrics"
)

// ErrTokenInvalid is the only error callers ever see for a rejected token.
var ErrTokenInvalid = stderrors.New("capability token invalid")

type Reason string

const (
	ReasonMalformed    Reason = "malformed"
	ReasonBadSignature Reason = "bad_signature"
	ReasonExpired      Reason = "expired"
	ReasonStaleStep    Reason = "stale_step"
)

type Claims struct {
	SubmissionID string      `json:"submission_id"`
	Step         domain.Step `json:"step"`
	IssuedAt     int64       `json:"iat"`
	ExpiresAt    int64       `json:"exp"`
}

func (c Claims) Expiry() time.Time {
	return time.Unix(c.ExpiresAt, 0).UTC()
}

// Logger represents the methods used by the service to log information.
type Logger interface {
	Debugf(string, ...interface{})
	Warningf(string, ...interface{})
}

type Config struct {
	Secret  []byte
	TTL     time.Duration
	Clock   clock.Clock
	Logger  Logger
	Metrics *metrics.Collector
}

// Validate returns an error if config cannot drive the Service.
func (config Config) Validate() error {
	if len(config.Secret) == 0 {
		return errors.NotValidf("empty Secret")
	}
	if config.TTL <= 0 {
		return errors.NotValidf("non-positive TTL")
	}
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

type Service struct {
	config Config
}

func NewService(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Service{config: config}, nil
}

func (s *Service) TTL() time.Duration {
	return s.config.TTL
}

// Issue signs a token authorizing exactly one action on step. A non-positive
// ttl falls back to the configured TTL.
func (s *Service) Issue(submissionID string, step domain.Step, ttl time.Duration) (string, error) {
	if strings.TrimSpace(submissionID) == "" {
		return "", errors.NotValidf("empty submission id")
	}
	if step == domain.StepNone {
		return "", errors.NotValidf("token for step %q", step)
	}
	if ttl <= 0 {
		ttl = s.config.TTL
	}
	now := s.config.Clock.Now()
	claims := Claims{
		SubmissionID: submissionID,
		Step:         step,
		IssuedAt:     now.Unix(),
		ExpiresAt:    now.Add(ttl).Unix(),
	}
	raw, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + s.sign(payload), nil
}

// Validate accepts token only if it is authentic, unexpired and bound to
// currentStep.
func (s *Service) Validate(token string, currentStep domain.Step) (Claims, error) {
	claims, err := s.Inspect(token)
	if err != nil {
		return Claims{}, err
	}
	if currentStep == domain.StepNone || claims.Step != currentStep {
		s.reject(ReasonStaleStep, claims.SubmissionID, fmt.Sprintf("token step %s, current step %s", claims.Step, currentStep))
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}

// Inspect checks signature and expiry only. The step binding is left to the
// caller, which has to load the submission first.
func (s *Service) Inspect(token string) (Claims, error) {
	payload, sig, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || payload == "" || sig == "" || strings.Contains(sig, ".") {
		s.reject(ReasonMalformed, "", "expected payload.signature")
		return Claims{}, ErrTokenInvalid
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(payload))) {
		s.reject(ReasonBadSignature, "", "")
		return Claims{}, ErrTokenInvalid
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		s.reject(ReasonMalformed, "", err.Error())
		return Claims{}, ErrTokenInvalid
	}
	var claims Claims
	if err := json.Unmarshal(raw, &claims); err != nil {
		s.reject(ReasonMalformed, "", err.Error())
		return Claims{}, ErrTokenInvalid
	}
	if claims.SubmissionID == "" || claims.Step == "" || claims.ExpiresAt == 0 {
		s.reject(ReasonMalformed, claims.SubmissionID, "missing claims")
		return Claims{}, ErrTokenInvalid
	}

	if s.config.Clock.Now().After(claims.Expiry()) {
		s.reject(ReasonExpired, claims.SubmissionID, "expired at "+claims.Expiry().Format(time.RFC3339))
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}

func (s *Service) sign(payload string) string {
	mac := hmac.New(sha256.New, s.config.Secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Service) reject(reason Reason, submissionID, detail string) {
	s.config.Metrics.TokenRejected(string(reason))
	if reason == ReasonBadSignature {
		s.config.Logger.Warningf("rejected capability token: %s", reason)
		return
	}
	s.config.Logger.Debugf("rejected capability token for submission %q: %s %s", submissionID, reason, detail)
}
