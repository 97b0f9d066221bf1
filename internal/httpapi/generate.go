package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"codebuddy/internal/postprocess"
	"codebuddy/pkg/types"
)

// handleGenerate godoc
//
//	@Summary		Generate code and return it without a markdown fence
//	@Description	Blocks until generation completes. The language is detected when omitted or "auto".
//	@Tags			generation
//	@Accept			json
//	@Produce		json
//	@Param			body	body		types.GenerationRequest	true	"Generation request"
//	@Success		200		{object}	types.GenerateResponse
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		429		{object}	types.ErrorResponse
//	@Failure		503		{object}	types.ErrorResponse
//	@Router			/generate [post]
func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req types.GenerationRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	rl := newReqLog(r, "generate")
	rl.begin(req.Language)

	ctx, cancel := requestContext(r.Context())
	defer cancel()
	var final *types.Chunk
	err := s.Models.Generate(ctx, req, func(c types.Chunk) error {
		if c.Kind == types.ChunkFinal {
			final = &c
		}
		return nil
	})
	if err == nil && final == nil {
		err = errors.New("generation produced no result")
	}
	if err != nil {
		// If context was canceled (client disconnect), just return.
		if canceled(r.Context()) {
			return
		}
		rl.end(writeError(w, err), err)
		return
	}
	writeJSON(w, http.StatusOK, types.GenerateResponse{
		Code:     postprocess.UnwrapFence(final.Text),
		Language: final.Language,
	})
	rl.end(http.StatusOK, nil)
}

// handleGenerateStream godoc
//
//	@Summary		Generate code as an NDJSON stream of chunks
//	@Description	Emits status chunks followed by one final chunk with fenced code.
//	@Tags			generation
//	@Accept			json
//	@Produce		application/x-ndjson
//	@Param			body	body		types.GenerationRequest	true	"Generation request"
//	@Success		200		{object}	types.Chunk
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		429		{object}	types.ErrorResponse
//	@Router			/generate/stream [post]
func (s *server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	var req types.GenerationRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	rl := newReqLog(r, "stream")
	rl.begin(req.Language)

	flush := func() {}
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	ctx, cancel := requestContext(r.Context())
	defer cancel()

	enc := json.NewEncoder(w)
	started := false
	err := s.Assistant.Generate(ctx, req, func(c types.Chunk) error {
		if !started {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		rl.chunk(string(c.Kind), c.Text)
		if err := enc.Encode(c); err != nil {
			return err
		}
		flush()
		return nil
	})
	if err == nil {
		rl.end(http.StatusOK, nil)
		return
	}
	if canceled(r.Context()) {
		return
	}
	if !started {
		rl.end(writeError(w, err), err)
		return
	}
	// Headers are gone; report the failure as the last line.
	status := statusFor(err)
	_ = enc.Encode(types.ErrorResponse{Error: err.Error(), Code: status})
	flush()
	rl.end(status, err)
}

// handleFeedback godoc
//
//	@Summary	Save the last exchange of a conversation as rated feedback
//	@Tags		training
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.FeedbackRequest	true	"Conversation"
//	@Success	201		{object}	types.SaveResult
//	@Failure	400		{object}	types.SaveResult
//	@Router		/feedback [post]
func (s *server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req types.FeedbackRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	name, err := s.Assistant.Feedback(req.History, req.Positive)
	kind := "Negative"
	if req.Positive {
		kind = "Positive"
	}
	writeSaveResult(w, name, err, kind+" feedback saved to "+name)
}

// writeSaveResult reports a store write as a SaveResult.
func writeSaveResult(w http.ResponseWriter, name string, err error, msg string) {
	if err != nil {
		writeJSON(w, statusFor(err), types.SaveResult{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, types.SaveResult{Success: true, Message: msg, Name: name})
}

func normalizeLanguage(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
