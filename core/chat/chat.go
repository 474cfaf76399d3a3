// Package chat implements the study assistant widget.
package chat

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
)

// Roles of a Turn
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var unavailableMsg = "the assistant is unavailable right now, please try again later"

type (
	Turn struct {
		Role    string `json:"role" validate:"required,oneof=user assistant"`
		Content string `json:"content" validate:"required"`
	}

	Request struct {
		Message string `json:"message" validate:"notblank"`
		History []Turn `json:"history" validate:"dive"`
	}

	Reply struct {
		Reply string `json:"reply"`
		Model string `json:"model"`
	}

	Completion struct {
		Content string
		Model   string
	}

	// Completer generates the next assistant turn of a conversation.
	Completer interface {
		Complete(ctx context.Context, turns []Turn) (Completion, error)
	}

	// Limiter counts the hits of key in fixed windows.
	Limiter interface {
		// Allow records a hit & reports whether key is still within limit; if not, retryAfter tells when it will be.
		Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration, err error)
	}

	Service struct {
		completer Completer
		limiter   Limiter
		validate  *validator.Validate
		logger    core.Logger
		conf      core.ChatConfig
		prompt    string
	}
)

func NewService(completer Completer, limiter Limiter, validate *validator.Validate, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		completer: completer,
		limiter:   limiter,
		validate:  validate,
		logger:    logger,
		conf:      conf.Chat,
		prompt:    conf.AI.SystemPrompt,
	}
}

func (svc *Service) validateRequest(req *Request) error {
	req.Message = core.CleanString(req.Message)
	if err := svc.validate.Struct(req); err != nil {
		return err
	}
	if n := utf8.RuneCountInString(req.Message); n > svc.conf.MaxMessageLen {
		msg := fmt.Sprintf("message must be at most %d characters", svc.conf.MaxMessageLen)
		return core.NewValidationError(errors.New(msg), core.FieldError{Field: "message", Error: msg})
	}
	return nil
}

// Reply asks the assistant to answer req.Message in the context of the conversation so far.
func (svc *Service) Reply(ctx context.Context, usr user.User, req Request) (Reply, error) {
	if err := svc.validateRequest(&req); err != nil {
		return Reply{}, err
	}

	allowed, retryAfter, err := svc.limiter.Allow(ctx, "chat:"+usr.ID, svc.conf.RateLimit, svc.conf.RateWindow)
	if err != nil {
		// fail open
		svc.logger.Error("checking chat rate limit", errors.Wrap(err, "limiter.Allow"), usr)
	} else if !allowed {
		return Reply{}, core.NewRateLimitError(retryAfter)
	}

	history := req.History
	if len(history) > svc.conf.MaxHistory {
		history = history[len(history)-svc.conf.MaxHistory:]
	}
	turns := make([]Turn, 0, len(history)+2)
	turns = append(turns, Turn{Role: RoleSystem, Content: svc.prompt})
	turns = append(turns, history...)
	turns = append(turns, Turn{Role: RoleUser, Content: req.Message})

	completion, err := svc.completer.Complete(ctx, turns)
	if err != nil {
		svc.logger.Error("completing chat", errors.Wrap(err, "completer.Complete"), usr)
		return Reply{}, core.NewUnavailableError(unavailableMsg, err)
	}
	return Reply{Reply: completion.Content, Model: completion.Model}, nil
}
