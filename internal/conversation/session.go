package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/atelierhq/roomora-backend/internal/platform/logger"
)

// Model is the provider call behind Continue. Given the restored history and
// the new user parts it returns the model's reply turn, which may carry text,
// images and continuation tokens.
type Model interface {
	Continue(ctx context.Context, history []Turn, parts []Part) (Turn, error)
}

// ErrNoImageReply is returned when the model, after one nudge, still produced
// no image for an image-editing exchange.
var ErrNoImageReply = errors.New("conversation: model returned no image")

// Session drives one continuity-backed exchange: restore, prune, call the
// model, persist.
type Session struct {
	log    *logger.Logger
	store  Store
	model  Model
	budget int
}

func NewSession(log *logger.Logger, store Store, model Model, budget int) *Session {
	if budget <= 0 {
		budget = DefaultImageBudget
	}
	return &Session{
		log:    log.With("service", "ConversationSession"),
		store:  store,
		model:  model,
		budget: budget,
	}
}

const imageNudge = "Produce the edited image now. Respond with the image itself, not a description of it."

// Continue restores the session under key (bootstrapping an empty history
// when none exists), prunes old image payloads to stay within budget, issues
// the model call and persists the extended history. When the reply carries no
// image it retries exactly once with an explicit nudge before giving up.
func (s *Session) Continue(ctx context.Context, key string, parts []Part) (Turn, error) {
	history, err := s.store.Load(ctx, key)
	if errors.Is(err, ErrNoSession) {
		history = nil
	} else if err != nil {
		return Turn{}, err
	}

	if stripped := PruneImages(history, countImageParts(parts), s.budget); stripped > 0 {
		s.log.Debug("pruned session images", "key", key, "stripped", stripped)
	}

	reply, err := s.model.Continue(ctx, history, parts)
	if err != nil {
		return Turn{}, err
	}
	if !hasImage(reply) {
		s.log.Debug("model reply had no image; nudging once", "key", key)
		nudged := append(append([]Part{}, parts...), Part{Text: imageNudge})
		reply, err = s.model.Continue(ctx, history, nudged)
		if err != nil {
			return Turn{}, err
		}
		if !hasImage(reply) {
			return Turn{}, ErrNoImageReply
		}
	}

	history = append(history, Turn{Role: RoleUser, Parts: parts}, reply)
	if err := s.store.Save(ctx, key, history); err != nil {
		return Turn{}, fmt.Errorf("persist session: %w", err)
	}
	return reply, nil
}
