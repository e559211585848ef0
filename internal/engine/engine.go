// Package engine orchestrates one conversation turn: retrieve, compose,
// generate, persist.
package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"studymaster/internal/index"
	"studymaster/internal/ingest"
	"studymaster/internal/prompt"
	"studymaster/internal/store"
)

var (
	// ErrTurnInFlight is returned when a turn arrives while a prior turn for
	// the same session is still being generated.
	ErrTurnInFlight = errors.New("a turn is already in flight for this session")

	// ErrGeneration marks a backend failure. The user's turn is already
	// recorded when this is returned; the assistant's turn is not.
	ErrGeneration = errors.New("generation failed")
)

// Generator is the generation backend for one (instruction, user text) pair.
type Generator interface {
	Generate(ctx context.Context, instruction, userText string) (string, error)
	GenerateStream(ctx context.Context, instruction, userText string, onFragment func(string) error) (string, error)
}

type Engine struct {
	store      store.Store
	generator  Generator
	retrievalK int
	logger     *zap.Logger
}

func New(s store.Store, g Generator, retrievalK int, logger *zap.Logger) *Engine {
	return &Engine{
		store:      s,
		generator:  g,
		retrievalK: retrievalK,
		logger:     logger,
	}
}

// HandleTurn processes one user turn and returns the assistant's reply.
func (e *Engine) HandleTurn(ctx context.Context, sess *Session, userText string) (string, error) {
	return e.handleTurn(ctx, sess, userText, nil)
}

// HandleTurnStream is HandleTurn with the reply additionally delivered as an
// ordered sequence of fragments through onFragment. The assistant turn is
// recorded only after the stream completes.
func (e *Engine) HandleTurnStream(ctx context.Context, sess *Session, userText string, onFragment func(string) error) (string, error) {
	return e.handleTurn(ctx, sess, userText, onFragment)
}

func (e *Engine) handleTurn(ctx context.Context, sess *Session, userText string, onFragment func(string) error) (string, error) {
	if userText == "" {
		return "", errors.New("user text cannot be empty")
	}
	if !sess.begin() {
		return "", ErrTurnInFlight
	}
	defer sess.end()

	// The user's turn is recorded no matter how the rest of the turn ends.
	if _, err := e.store.AppendTurn(sess.UserID, store.RoleUser, userText); err != nil {
		return "", fmt.Errorf("failed to record user turn: %w", err)
	}

	var segments []ingest.Segment
	if idx := sess.Index(); idx != nil {
		var err error
		segments, err = idx.Query(ctx, userText, e.retrievalK)
		if err != nil {
			return "", fmt.Errorf("retrieval failed: %w", err)
		}
		e.logger.Debug("retrieved context",
			zap.Int64("user_id", sess.UserID),
			zap.Int("segments", len(segments)))
	}

	instruction, err := prompt.Compose(sess.Mode, sess.Style, sess.QuizQuestions, segments)
	if err != nil {
		return "", err
	}

	var reply string
	if onFragment != nil {
		reply, err = e.generator.GenerateStream(ctx, instruction, userText, onFragment)
	} else {
		reply, err = e.generator.Generate(ctx, instruction, userText)
	}
	if err != nil {
		e.logger.Warn("generation backend failed",
			zap.Int64("user_id", sess.UserID),
			zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	if _, err := e.store.AppendTurn(sess.UserID, store.RoleAssistant, reply); err != nil {
		return "", fmt.Errorf("failed to record assistant turn: %w", err)
	}
	return reply, nil
}

// History returns the session owner's persisted turns, oldest first.
func (e *Engine) History(sess *Session, limit int) ([]store.Turn, error) {
	return e.store.TurnsByUser(sess.UserID, limit)
}

// Reset clears the session's persisted history and in-memory index.
func (e *Engine) Reset(sess *Session) error {
	if !sess.begin() {
		return ErrTurnInFlight
	}
	defer sess.end()

	if err := e.store.DeleteTurnsByUser(sess.UserID); err != nil {
		return err
	}
	sess.SetIndex(nil)
	return nil
}

// UpdateSettings applies new mode/style/quiz-count values. Changing the study
// mode clears the session history: the conversation restarts under the new
// behavior variant.
func (e *Engine) UpdateSettings(sess *Session, mode prompt.StudyMode, style prompt.ResponseStyle, quizQuestions int) error {
	if !sess.begin() {
		return ErrTurnInFlight
	}
	defer sess.end()

	if mode != sess.Mode {
		if err := e.store.DeleteTurnsByUser(sess.UserID); err != nil {
			return fmt.Errorf("failed to clear history on mode change: %w", err)
		}
	}
	sess.Mode = mode
	sess.Style = style
	sess.QuizQuestions = quizQuestions
	return nil
}

// AttachIndex replaces the session's index after a new document upload.
func (e *Engine) AttachIndex(sess *Session, idx *index.Index) error {
	if !sess.begin() {
		return ErrTurnInFlight
	}
	defer sess.end()
	sess.SetIndex(idx)
	return nil
}
